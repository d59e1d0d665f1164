package ctxutil

import "context"

type traceDataKey struct{}

// TraceData correlates one HTTP request or socket connection across log lines.
type TraceData struct {
	TraceID   string
	RequestID string
}

func WithTraceData(ctx context.Context, td *TraceData) context.Context {
	return context.WithValue(ctx, traceDataKey{}, td)
}

func GetTraceData(ctx context.Context) *TraceData {
	if td, ok := ctx.Value(traceDataKey{}).(*TraceData); ok {
		return td
	}
	return nil
}

// LogFields returns the trace and identity attributes carried by ctx as
// alternating key/value pairs.
func LogFields(ctx context.Context) []interface{} {
	var fields []interface{}
	if td := GetTraceData(ctx); td != nil {
		fields = append(fields, "trace_id", td.TraceID, "request_id", td.RequestID)
	}
	if id := GetIdentity(ctx); id != nil {
		fields = append(fields, "tenant_id", id.TenantID)
		if id.UserID != nil {
			fields = append(fields, "user_id", *id.UserID)
		}
	}
	return fields
}
