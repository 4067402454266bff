package middleware

import "github.com/gofiber/fiber/v2"

type Middleware interface {
	Middleware() fiber.Handler
}

type Transport struct {
	PanicRecoverMiddleware Middleware
	FingerprintMiddleware  Middleware
	MetricsMiddleware      Middleware
	ShieldMiddleware       Middleware
	AdminAuthMiddleware    Middleware
}

// Proxy returns the chain mounted in front of the upstream, in order.
func (t Transport) Proxy() []interface{} {
	return handlers(t.PanicRecoverMiddleware, t.FingerprintMiddleware, t.MetricsMiddleware, t.ShieldMiddleware)
}

// Admin returns the chain protecting the operator API.
func (t Transport) Admin() []interface{} {
	return handlers(t.PanicRecoverMiddleware, t.FingerprintMiddleware, t.AdminAuthMiddleware)
}

func handlers(mws ...Middleware) []interface{} {
	out := make([]interface{}, 0, len(mws))
	for _, mw := range mws {
		if mw != nil {
			out = append(out, mw.Middleware())
		}
	}
	return out
}
