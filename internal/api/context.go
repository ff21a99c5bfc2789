package api

import (
	"context"

	"github.com/example/hoaxify/internal/token"
)

type ctxKey string

const (
	// identityKey holds *token.Identity. Set by Server.Authenticate.
	identityKey ctxKey = "identity"
	// requestIDKey holds the request id string. Set by RequestID.
	requestIDKey ctxKey = "request_id"
)

func withIdentity(ctx context.Context, id *token.Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFrom returns the caller resolved by the authentication middleware,
// or nil for anonymous requests.
func IdentityFrom(ctx context.Context) *token.Identity {
	id, _ := ctx.Value(identityKey).(*token.Identity)
	return id
}

// callerID is 0 for anonymous requests.
func callerID(ctx context.Context) int64 {
	if id := IdentityFrom(ctx); id != nil {
		return id.ID
	}
	return 0
}

func withRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}
