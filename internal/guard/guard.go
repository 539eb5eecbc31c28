// Package guard decides whether a protected view may render for the
// current session.
package guard

import (
	"encoding/json"
	"net/http"

	"github.com/guardian-ibera/firewatch/internal/session"
)

type Outcome int

const (
	// Wait means the session is still resolving; nothing protected may render.
	Wait Outcome = iota
	Render
	Redirect
)

type Decision struct {
	Outcome  Outcome
	Location string
}

// Decide is a pure function of the session state.
func Decide(s session.Snapshot, loginPath string) Decision {
	switch s.State {
	case session.Authenticated:
		return Decision{Outcome: Render}
	case session.Unauthenticated:
		return Decision{Outcome: Redirect, Location: loginPath}
	}
	return Decision{Outcome: Wait}
}

type SessionSource interface {
	Snapshot() session.Snapshot
}

// Middleware gates next behind Decide. Redirects use 303 so the browser
// replaces the guarded request instead of keeping it in history; while the
// session resolves, a neutral 503 with Retry-After is written instead.
func Middleware(src SessionSource, loginPath string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			d := Decide(src.Snapshot(), loginPath)
			switch d.Outcome {
			case Render:
				next.ServeHTTP(w, r)
			case Redirect:
				http.Redirect(w, r, d.Location, http.StatusSeeOther)
			default:
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", "1")
				w.Header().Set("Cache-Control", "no-store")
				w.WriteHeader(http.StatusServiceUnavailable)
				json.NewEncoder(w).Encode(map[string]string{"status": "initializing"})
			}
		})
	}
}
