package store

import "context"

// TokenStore persists the single opaque session token across restarts.
type TokenStore interface {
	// LoadToken returns the persisted token, or "" when none is stored.
	LoadToken(ctx context.Context) (string, error)
	// SaveToken replaces the persisted token.
	SaveToken(ctx context.Context, token string) error
	// ClearToken removes the persisted token. Clearing an absent token is not an error.
	ClearToken(ctx context.Context) error
}
