package auth

import "context"

// Caller is the explicit identity handed to every remote call: who is
// attempting, and the bearer token the classroom API expects.
type Caller struct {
	Subject string
	Role    string
	Token   string
}

type ctxKey string

const ctxKeyCaller ctxKey = "caller"

func WithCaller(ctx context.Context, c Caller) context.Context {
	return context.WithValue(ctx, ctxKeyCaller, c)
}

func CallerFromContext(ctx context.Context) (Caller, bool) {
	c, ok := ctx.Value(ctxKeyCaller).(Caller)
	return c, ok
}

func SubjectFromContext(ctx context.Context) string {
	c, _ := CallerFromContext(ctx)
	return c.Subject
}
