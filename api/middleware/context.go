package middleware

import "context"

type callerCtxKey struct{}

// caller is the authenticated principal resolved by Auth.
type caller struct {
	userID    string
	role      string
	sessionID string
}

func callerFrom(ctx context.Context) caller {
	if ctx == nil {
		return caller{}
	}
	c, _ := ctx.Value(callerCtxKey{}).(caller)
	return c
}

func withCaller(ctx context.Context, update func(*caller)) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	c := callerFrom(ctx)
	update(&c)
	return context.WithValue(ctx, callerCtxKey{}, c)
}

func UserIDFromContext(ctx context.Context) string { return callerFrom(ctx).userID }

func RoleFromContext(ctx context.Context) string { return callerFrom(ctx).role }

// SessionIDFromContext returns the submission session of the caller. Orders
// placed under one session are serialized by the submission gate.
func SessionIDFromContext(ctx context.Context) string { return callerFrom(ctx).sessionID }

func WithUserID(ctx context.Context, userID string) context.Context {
	return withCaller(ctx, func(c *caller) { c.userID = userID })
}

func WithRole(ctx context.Context, role string) context.Context {
	return withCaller(ctx, func(c *caller) { c.role = role })
}

func WithSessionID(ctx context.Context, sessionID string) context.Context {
	return withCaller(ctx, func(c *caller) { c.sessionID = sessionID })
}
