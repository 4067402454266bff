package types

import (
	"context"
	"net/http"
	"time"
)

// RequestContext is the view of an inbound request the shield plugins work on.
type RequestContext struct {
	Context   context.Context
	TraceID   string
	IP        string
	Method    string
	Path      string
	RawPath   string
	RawQuery  string
	Headers   map[string][]string
	Body      []byte
	Staff     bool
	Metadata  map[string]interface{}
	ProcessAt time.Time
}

// ResponseContext carries the outcome of the request back through the
// post_response stage.
type ResponseContext struct {
	Context    context.Context
	Headers    map[string][]string
	StatusCode int
	Metadata   map[string]interface{}
}

func NewResponseContext(ctx context.Context) *ResponseContext {
	return &ResponseContext{
		Context:  ctx,
		Headers:  make(map[string][]string),
		Metadata: make(map[string]interface{}),
	}
}

func (r *RequestContext) Header(name string) string {
	if r.Headers == nil {
		return ""
	}
	if v, ok := r.Headers[name]; ok && len(v) > 0 {
		return v[0]
	}
	if v, ok := r.Headers[http.CanonicalHeaderKey(name)]; ok && len(v) > 0 {
		return v[0]
	}
	return ""
}

func (r *RequestContext) UserAgent() string {
	return r.Header("User-Agent")
}

func (r *RequestContext) Referer() string {
	return r.Header("Referer")
}

// IsMutating reports whether the method changes server state.
func (r *RequestContext) IsMutating() bool {
	switch r.Method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

func (r *RequestContext) SetMetadata(key string, value interface{}) {
	if r.Metadata == nil {
		r.Metadata = make(map[string]interface{})
	}
	r.Metadata[key] = value
}

func (r *ResponseContext) SetHeader(name, value string) {
	if r.Headers == nil {
		r.Headers = make(map[string][]string)
	}
	r.Headers[name] = []string{value}
}
