package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Querier is the subset of *pgxpool.Pool the store needs.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresStore implements Provider over the users and access_tokens tables
// created by cmd/migrate.
type PostgresStore struct {
	db Querier
}

func NewPostgresStore(db Querier) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) VerifyToken(ctx context.Context, token string) (*User, error) {
	tokenHash := HashToken(token)
	u, err := s.scanUser(s.db.QueryRow(ctx, `
		SELECT u.id, u.email
		FROM access_tokens t
		JOIN users u ON u.id = t.user_id
		WHERE t.token_hash = $1
		  AND t.revoked_at IS NULL
		  AND t.expires_at > NOW()
	`, tokenHash))
	if err != nil {
		return nil, err
	}

	// Update last_used_at asynchronously (fire-and-forget)
	go func() {
		bgCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		s.db.Exec(bgCtx, `UPDATE access_tokens SET last_used_at = NOW() WHERE token_hash = $1`, tokenHash)
	}()

	return u, nil
}

// FindByRefreshToken matches on the stored SHA-256 of the refresh token.
func (s *PostgresStore) FindByRefreshToken(ctx context.Context, token string) (*User, error) {
	return s.scanUser(s.db.QueryRow(ctx, `
		SELECT id, email
		FROM users
		WHERE refresh_token_hash = $1
		ORDER BY created_at
		LIMIT 1
	`, HashToken(token)))
}

func (s *PostgresStore) FindByIDAndEmail(ctx context.Context, id, email string) (*User, error) {
	return s.scanUser(s.db.QueryRow(ctx, `
		SELECT id, email
		FROM users
		WHERE id = $1 AND email = $2
		LIMIT 1
	`, id, email))
}

func (s *PostgresStore) scanUser(row pgx.Row) (*User, error) {
	var u User
	if err := row.Scan(&u.ID, &u.Email); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query users: %w", err)
	}
	return &u, nil
}
