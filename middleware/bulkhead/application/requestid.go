package application

import "context"

type contextKey string

const requestIDKey contextKey = "request_id"

// ContextWithRequestID anexa o id da requisição ao contexto, usado nos logs do gate.
func ContextWithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}
