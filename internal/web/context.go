package web

import (
	"context"

	"github.com/JonMunkholm/SoilMap/internal/session"
)

type stateKey struct{}

// withState stores the session state of the current request.
func withState(ctx context.Context, st *session.State) context.Context {
	return context.WithValue(ctx, stateKey{}, st)
}

// stateFrom returns the session state loaded by the session middleware.
// It returns a fresh state when none is attached, as in handler tests that
// bypass the middleware.
func stateFrom(ctx context.Context) *session.State {
	if st, ok := ctx.Value(stateKey{}).(*session.State); ok {
		return st
	}
	return session.New()
}
