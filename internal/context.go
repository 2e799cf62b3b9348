package internal

import (
	"context"
	"time"
)

type ctxKey string

const ContextPrincipalKey ctxKey = "principal"

// Principal is the authenticated caller resolved by the access gateway.
type Principal struct {
	ID      int64
	Email   string
	TokenID string
}

func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	if ctx == nil {
		return nil, false
	}
	p, ok := ctx.Value(ContextPrincipalKey).(*Principal)
	return p, ok && p != nil
}

func ContextWithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, ContextPrincipalKey, p)
}

// WithTimeout returns a context with timeout, defaulting to 5 seconds if duration is zero or negative.
func WithTimeout(ctx context.Context, duration time.Duration) (context.Context, context.CancelFunc) {
	if duration <= 0 {
		duration = 5 * time.Second
	}
	return context.WithTimeout(ctx, duration)
}
