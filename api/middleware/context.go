package middleware

import "context"

type contextKey string

const (
	ctxHolderID     contextKey = "holder_id"
	ctxAdminSubject contextKey = "admin_subject"
)

func HolderIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxHolderID).(string); ok {
		return v
	}
	return ""
}

func AdminSubjectFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxAdminSubject).(string); ok {
		return v
	}
	return ""
}

// WithHolderID injects the claim holder identifier into the context.
func WithHolderID(ctx context.Context, holderID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxHolderID, holderID)
}

// WithAdminSubject injects the admin token subject into the context.
func WithAdminSubject(ctx context.Context, subject string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxAdminSubject, subject)
}
