package common

type contextKey string

const (
	TraceIdKey         contextKey = "trace_id"
	ClientIPKey        contextKey = "client_ip"
	RequestContextKey  contextKey = "request_context"
	OperatorContextKey contextKey = "operator"
	LatencyContextKey  contextKey = "__execution_time"
)
