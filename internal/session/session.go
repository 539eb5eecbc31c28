// Package session owns the client's authentication state: the persisted
// token, the process-wide request credential and the resolved identity.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/guardian-ibera/firewatch/internal/credential"
	"github.com/guardian-ibera/firewatch/internal/gateway"
	"github.com/guardian-ibera/firewatch/internal/model"
	"github.com/guardian-ibera/firewatch/internal/store"
)

type State int

const (
	Initializing State = iota
	Unauthenticated
	Authenticated
)

func (s State) String() string {
	switch s {
	case Unauthenticated:
		return "unauthenticated"
	case Authenticated:
		return "authenticated"
	}
	return "initializing"
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// ErrInvalidCredentials wraps an Unauthorized login response.
var ErrInvalidCredentials = errors.New("invalid email or password")

// Snapshot is a value copy of the session, safe to hand to views.
type Snapshot struct {
	State State       `json:"state"`
	User  *model.User `json:"user,omitempty"`
}

// Gateway is the subset of the remote API the session needs.
type Gateway interface {
	Login(ctx context.Context, email, password string) (model.Token, error)
	CurrentUser(ctx context.Context) (model.User, error)
}

// Store is the process-wide session. Login and Verify are expected to be
// sequenced by the caller; they never overlap in practice.
type Store struct {
	gw     Gateway
	tokens store.TokenStore
	cred   *credential.Credential

	mu        sync.RWMutex
	state     State
	user      *model.User
	ready     chan struct{}
	readyOnce sync.Once
	listener  func(Snapshot)
}

func New(gw Gateway, tokens store.TokenStore, cred *credential.Credential) *Store {
	return &Store{
		gw:     gw,
		tokens: tokens,
		cred:   cred,
		state:  Initializing,
		ready:  make(chan struct{}),
	}
}

// OnChange registers a callback invoked after every transition.
func (s *Store) OnChange(fn func(Snapshot)) {
	s.mu.Lock()
	s.listener = fn
	s.mu.Unlock()
}

func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() Snapshot {
	snap := Snapshot{State: s.state}
	if s.user != nil {
		u := *s.user
		snap.User = &u
	}
	return snap
}

// Ready is closed once the session has left Initializing.
func (s *Store) Ready() <-chan struct{} {
	return s.ready
}

// Verify resolves the persisted token, if any, into an identity. Without a
// token it settles on Unauthenticated without touching the network.
func (s *Store) Verify(ctx context.Context) error {
	token, err := s.tokens.LoadToken(ctx)
	if err != nil {
		s.set(Unauthenticated, nil)
		return fmt.Errorf("load persisted token: %w", err)
	}
	if token == "" {
		slog.Info("no persisted session token")
		s.set(Unauthenticated, nil)
		return nil
	}

	s.cred.Set(token)
	u, err := s.gw.CurrentUser(ctx)
	if err != nil {
		s.rejectIdentity(ctx, "verify", err)
		return err
	}
	slog.Info("session restored", "user", u.Email)
	s.set(Authenticated, &u)
	return nil
}

// Login exchanges credentials for a token, resolves the identity and only
// then persists the token.
func (s *Store) Login(ctx context.Context, email, password string) error {
	tok, err := s.gw.Login(ctx, email, password)
	if err != nil {
		s.loginFailed(ctx)
		if errors.Is(err, gateway.ErrUnauthorized) {
			slog.Info("login rejected", "email", email)
			return fmt.Errorf("%w: %w", ErrInvalidCredentials, err)
		}
		slog.Warn("login failed", "email", email, "error", err)
		return err
	}

	s.cred.Set(tok.AccessToken)
	u, err := s.gw.CurrentUser(ctx)
	if err != nil {
		slog.Warn("identity lookup failed", "op", "login", "error", err)
		s.loginFailed(ctx)
		return err
	}

	if err := s.tokens.SaveToken(ctx, tok.AccessToken); err != nil {
		// The session still works for this process; it just won't survive a restart.
		slog.Warn("failed to persist session token", "error", err)
	}
	slog.Info("logged in", "user", u.Email)
	s.set(Authenticated, &u)
	return nil
}

// loginFailed leaves no session behind: neither the credential nor any
// token persisted by an earlier login survives a failed attempt.
func (s *Store) loginFailed(ctx context.Context) {
	s.cred.Clear()
	if err := s.tokens.ClearToken(ctx); err != nil {
		slog.Warn("failed to clear persisted token", "error", err)
	}
	s.set(Unauthenticated, nil)
}

// rejectIdentity handles a failed identity lookup. Unauthorized means the
// token is dead and is dropped for good; any other failure detaches the
// credential but keeps the persisted token for a later Verify.
func (s *Store) rejectIdentity(ctx context.Context, op string, err error) {
	s.cred.Clear()
	if errors.Is(err, gateway.ErrUnauthorized) {
		slog.Info("session token rejected", "op", op)
		if cerr := s.tokens.ClearToken(ctx); cerr != nil {
			slog.Warn("failed to clear persisted token", "error", cerr)
		}
	} else {
		slog.Warn("identity lookup failed", "op", op, "error", err)
	}
	s.set(Unauthenticated, nil)
}

// Logout drops the token and the credential. It never touches the network.
func (s *Store) Logout(ctx context.Context) {
	s.cred.Clear()
	if err := s.tokens.ClearToken(ctx); err != nil {
		slog.Warn("failed to clear persisted token", "error", err)
	}
	if s.Snapshot().State == Unauthenticated {
		return
	}
	slog.Info("logged out")
	s.set(Unauthenticated, nil)
}

// Expire reacts to an Unauthorized response seen anywhere else in the
// client. generation is the credential generation the rejected request was
// issued with; a response to an older credential leaves the current session
// alone. It is a no-op unless the session is Authenticated.
func (s *Store) Expire(ctx context.Context, generation uint64) {
	if s.Snapshot().State != Authenticated {
		return
	}
	if current := s.cred.Generation(); generation != current {
		slog.Info("ignoring unauthorized response for a previous credential",
			"issued_with", generation, "current", current)
		return
	}
	slog.Info("session expired")
	s.Logout(ctx)
}

func (s *Store) set(state State, u *model.User) {
	s.mu.Lock()
	changed := s.state != state || (u != nil) != (s.user != nil)
	s.state = state
	s.user = u
	snap := s.snapshotLocked()
	listener := s.listener
	s.mu.Unlock()

	if state != Initializing {
		s.readyOnce.Do(func() { close(s.ready) })
	}
	if changed && listener != nil {
		listener(snap)
	}
}
