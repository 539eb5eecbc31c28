package store

import (
	"context"
	"database/sql"
	"fmt"
)

// Postgres keeps the token in a single-row table keyed by client name, for
// installations where several kiosks share one profile database.
type Postgres struct {
	db     *sql.DB
	client string
}

func NewPostgres(db *sql.DB, client string) *Postgres {
	return &Postgres{db: db, client: client}
}

func (p *Postgres) Migrate(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS session_tokens (
			client      TEXT PRIMARY KEY,
			token       TEXT NOT NULL,
			updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
	`
	_, err := p.db.ExecContext(ctx, query)
	return err
}

func (p *Postgres) SaveToken(ctx context.Context, token string) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO session_tokens (client, token) VALUES ($1, $2)
		ON CONFLICT (client) DO UPDATE SET token = EXCLUDED.token, updated_at = NOW()`,
		p.client, token,
	)
	if err != nil {
		return fmt.Errorf("save token: %w", err)
	}
	return nil
}

func (p *Postgres) LoadToken(ctx context.Context) (string, error) {
	var token string
	err := p.db.QueryRowContext(ctx,
		"SELECT token FROM session_tokens WHERE client = $1",
		p.client,
	).Scan(&token)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("load token: %w", err)
	}
	return token, nil
}

func (p *Postgres) ClearToken(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, "DELETE FROM session_tokens WHERE client = $1", p.client)
	if err != nil {
		return fmt.Errorf("clear token: %w", err)
	}
	return nil
}
