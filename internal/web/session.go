package web

import (
	"context"
	"net/http"

	"github.com/JonMunkholm/vendorrates/internal/app"
	"github.com/JonMunkholm/vendorrates/internal/logging"
)

// SessionCookie names the cookie carrying the operator session id.
const SessionCookie = "vr_session"

type stateKey struct{}

// withSession loads the operator state for the session cookie, starting a
// new session when the cookie is missing or has expired.
func (s *Server) withSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var id string
		if c, err := r.Cookie(SessionCookie); err == nil {
			id = c.Value
		}

		st, created := s.sessions.GetOrCreate(id)
		if created {
			http.SetCookie(w, &http.Cookie{
				Name:     SessionCookie,
				Value:    st.ID(),
				Path:     "/",
				HttpOnly: true,
				Secure:   r.TLS != nil,
				SameSite: http.SameSiteLaxMode,
			})
			logging.FromContext(r.Context()).Debug("session started", "session_id", st.ID())
		}

		ctx := context.WithValue(r.Context(), stateKey{}, st)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// stateFrom returns the state stored by withSession.
func stateFrom(r *http.Request) *app.State {
	st, _ := r.Context().Value(stateKey{}).(*app.State)
	return st
}
