package core

import "context"

type contextKey string

const (
	ctxKeyActor    contextKey = "import_actor"
	ctxKeyClientIP contextKey = "import_client_ip"
)

// ContextWithActor records the authenticated caller driving a pipeline.
func ContextWithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, ctxKeyActor, actor)
}

// ContextWithClientIP records the caller's address for pipeline logs.
func ContextWithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, ctxKeyClientIP, ip)
}

// ActorFromContext returns the caller set by ContextWithActor, or "".
func ActorFromContext(ctx context.Context) string {
	v, _ := ctx.Value(ctxKeyActor).(string)
	return v
}

// ClientIPFromContext returns the address set by ContextWithClientIP, or "".
func ClientIPFromContext(ctx context.Context) string {
	v, _ := ctx.Value(ctxKeyClientIP).(string)
	return v
}
