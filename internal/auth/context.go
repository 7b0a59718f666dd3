package auth

import (
	"context"
	"errors"
)

// CallerKind records how an internal caller authenticated.
type CallerKind string

const (
	CallerSharedToken  CallerKind = "shared_token"
	CallerServiceToken CallerKind = "service_token"
)

// Caller identifies the telephony node behind an internal request. NodeID is
// empty for shared-token callers.
type Caller struct {
	Kind   CallerKind
	NodeID string
}

type ctxKey int

const ctxCaller ctxKey = iota

func WithCaller(ctx context.Context, c Caller) context.Context {
	return context.WithValue(ctx, ctxCaller, c)
}

func CallerFrom(ctx context.Context) (Caller, error) {
	if c, ok := ctx.Value(ctxCaller).(Caller); ok && c.Kind != "" {
		return c, nil
	}
	return Caller{}, errors.New("caller not in context")
}
