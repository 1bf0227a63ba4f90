package middleware

import (
	"net/http"
	"sync"

	"github.com/google/uuid"

	"github.com/dukerupert/sovaehr/internal/auth"
	"github.com/dukerupert/sovaehr/internal/guard"
	"github.com/dukerupert/sovaehr/internal/session"
)

const (
	ClientCookieName = "sovaehr_client"
	clientCookieAge  = 400 * 24 * 60 * 60
	signInPath       = "/signin"
)

// ClientID makes sure every request carries a browser client id, issuing a
// new cookie when the request has none or a malformed one.
func ClientID(secure bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cc := auth.ClientContext{}
			if cookie, err := r.Cookie(ClientCookieName); err == nil {
				if id, err := uuid.Parse(cookie.Value); err == nil {
					cc.ClientID = id.String()
				}
			}

			if cc.ClientID == "" {
				cc.ClientID = uuid.NewString()
				cc.Fresh = true
				http.SetCookie(w, &http.Cookie{
					Name:     ClientCookieName,
					Value:    cc.ClientID,
					Path:     "/",
					MaxAge:   clientCookieAge,
					HttpOnly: true,
					Secure:   secure,
					SameSite: http.SameSiteLaxMode,
				})
			}

			next.ServeHTTP(w, r.WithContext(auth.WithClient(r.Context(), cc)))
		})
	}
}

// RequireSession runs the session guard for the browser and redirects to the
// sign-in page unless the stored token passes. Malformed and expired tokens
// are cleared by the guard before redirecting.
// HTMX-aware: returns HX-Redirect header instead of 303 redirect for HTMX requests.
func RequireSession(sessions *session.Provider, g *guard.Guard) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientID := auth.ClientID(r.Context())
			if clientID == "" {
				redirectToSignIn(w, r)
				return
			}

			res := g.Check(sessions.For(clientID))
			if !res.Allowed() {
				redirectToSignIn(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func redirectToSignIn(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("HX-Request") == "true" {
		w.Header().Set("HX-Redirect", signInPath)
		w.WriteHeader(http.StatusOK)
		return
	}
	http.Redirect(w, r, signInPath, http.StatusSeeOther)
}

// InFlightGuard tracks keys with a request currently being served.
type InFlightGuard struct {
	mu     sync.Mutex
	active map[string]struct{}
}

func NewInFlightGuard() *InFlightGuard {
	return &InFlightGuard{active: make(map[string]struct{})}
}

// Acquire marks key busy and reports whether it was free.
func (g *InFlightGuard) Acquire(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, busy := g.active[key]; busy {
		return false
	}
	g.active[key] = struct{}{}
	return true
}

func (g *InFlightGuard) Release(key string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.active, key)
}

// InFlight rejects a request with 409 while another request with the same
// key is still being served. The key combines the browser and the route.
func InFlight(g *InFlightGuard) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := auth.ClientID(r.Context()) + " " + r.Method + " " + r.URL.Path
			if !g.Acquire(key) {
				http.Error(w, "A submission is already in progress", http.StatusConflict)
				return
			}
			defer g.Release(key)
			next.ServeHTTP(w, r)
		})
	}
}
