// Package auth carries the identity of the browser behind a request.
package auth

import "context"

type contextKey struct{}

type requestIDKey struct{}

// ClientContext identifies the browser making the request.
type ClientContext struct {
	ClientID string
	// Fresh is set when the client id cookie was issued by this request.
	Fresh bool
}

func WithClient(ctx context.Context, cc ClientContext) context.Context {
	return context.WithValue(ctx, contextKey{}, cc)
}

func FromContext(ctx context.Context) (ClientContext, bool) {
	cc, ok := ctx.Value(contextKey{}).(ClientContext)
	return cc, ok
}

// ClientID returns the browser's client id, or "" outside the client middleware.
func ClientID(ctx context.Context) string {
	cc, ok := FromContext(ctx)
	if !ok {
		return ""
	}
	return cc.ClientID
}

func IsFresh(ctx context.Context) bool {
	cc, ok := FromContext(ctx)
	if !ok {
		return false
	}
	return cc.Fresh
}

func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
