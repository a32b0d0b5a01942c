package web

import (
	"errors"
	"net/http"

	"github.com/JonMunkholm/SoilMap/internal/logging"
	"github.com/JonMunkholm/SoilMap/internal/session"
)

// loadSession attaches the caller's session state to the request context.
// Unknown or expired IDs start an empty session under the same ID; a missing
// or malformed cookie gets a new ID. Nothing is persisted until a handler
// saves.
func (s *Server) loadSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		cfg := s.cfg.Session

		var st *session.State
		if c, err := r.Cookie(cfg.CookieName); err == nil && session.ValidID(c.Value) {
			st, err = s.store.Get(ctx, c.Value)
			switch {
			case errors.Is(err, session.ErrNotFound):
				st = session.New()
				st.ID = c.Value
			case err != nil:
				s.respondError(w, r, err, http.StatusServiceUnavailable)
				return
			}
		} else {
			st = session.New()
		}

		http.SetCookie(w, &http.Cookie{
			Name:     cfg.CookieName,
			Value:    st.ID,
			Path:     "/",
			MaxAge:   int(cfg.TTL.Seconds()),
			HttpOnly: true,
			Secure:   cfg.CookieSecure,
			SameSite: http.SameSiteLaxMode,
		})

		ctx = logging.ContextWith(ctx, "session_id", st.ID)
		next.ServeHTTP(w, r.WithContext(withState(ctx, st)))
	})
}

// saveState persists st and logs failures; callers respond with the error.
func (s *Server) saveState(r *http.Request, st *session.State) error {
	if err := s.store.Save(r.Context(), st); err != nil {
		logging.FromContext(r.Context()).Error("session save failed", "error", err)
		return err
	}
	return nil
}
