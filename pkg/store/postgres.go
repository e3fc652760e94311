package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore shares commitments between server instances through a
// Postgres table. Single use relies on DELETE ... RETURNING: when two
// transactions race on one row the loser re-checks after the winner commits
// and finds nothing to delete.
type PostgresStore struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// NewPostgresStore connects to connStr and applies the embedded migrations.
// The caller is responsible for calling Close() on the store.
func NewPostgresStore(ctx context.Context, connStr string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, unavailable("connect", err)
	}

	err = runMigrations(ctx, "postgres", func(ctx context.Context, query string) error {
		_, err := pool.Exec(ctx, query)
		return err
	})
	if err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{
		pool: pool,
		now:  time.Now,
	}, nil
}

func (s *PostgresStore) Put(ctx context.Context, commitment string, secret []byte, ttl time.Duration) error {
	if err := validateTTL(ttl); err != nil {
		return err
	}

	q := `
	INSERT INTO commitments (hash, secret, expires_at) VALUES ($1, $2, $3)
	ON CONFLICT (hash) DO UPDATE SET secret = EXCLUDED.secret, expires_at = EXCLUDED.expires_at;
	`
	if _, err := s.pool.Exec(ctx, q, commitment, secret, s.now().Add(ttl).UnixNano()); err != nil {
		return storeError(ctx, "put", err)
	}

	return nil
}

func (s *PostgresStore) TakeAndInvalidate(ctx context.Context, commitment string) ([]byte, bool, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, false, storeError(ctx, "take", err)
	}
	defer tx.Rollback(ctx)

	q := `
	DELETE FROM commitments WHERE hash = $1
	RETURNING secret, expires_at;
	`
	var secret []byte
	var expiresAt int64
	if err := tx.QueryRow(ctx, q, commitment).Scan(&secret, &expiresAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) && ctx.Err() == nil {
			return nil, false, nil
		}
		return nil, false, storeError(ctx, "take", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, false, storeError(ctx, "take", err)
	}

	if s.now().UnixNano() >= expiresAt {
		return nil, false, nil
	}

	return secret, true, nil
}

func (s *PostgresStore) PurgeExpired(ctx context.Context) (int, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM commitments WHERE expires_at <= $1;`, s.now().UnixNano())
	if err != nil {
		return 0, storeError(ctx, "purge", err)
	}

	return int(tag.RowsAffected()), nil
}

func (s *PostgresStore) Close(ctx context.Context) error {
	s.pool.Close()
	return nil
}
