package namespace

import (
	"context"
)

// contextKey is a private type for context keys to avoid collisions
type contextKey int

const (
	// namespaceContextKey is the key for storing a Namespace in a context.Context
	namespaceContextKey contextKey = iota
)

// ContextWith adds a Namespace to a context.Context. The transport layer uses
// this to carry the caller's active namespace down to tool handlers; the engine
// itself always takes the namespace as an explicit parameter so that concurrent
// calls with different namespaces never interfere.
func ContextWith(ctx context.Context, ns Namespace) context.Context {
	return context.WithValue(ctx, namespaceContextKey, ns)
}

// FromContext retrieves the Namespace from a context.Context.
// If none is set, it returns All and false.
func FromContext(ctx context.Context) (Namespace, bool) {
	ns, ok := ctx.Value(namespaceContextKey).(Namespace)
	return ns, ok
}
