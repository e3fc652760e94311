package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore persists commitments in a local SQLite database. All access goes
// through a single connection so writers never contend for the file lock.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteStore opens the database at path and applies the embedded migrations.
// The caller is responsible for calling Close() on the store.
func NewSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, unavailable("connect", err)
	}

	err = runMigrations(ctx, "sqlite", func(ctx context.Context, query string) error {
		_, err := db.ExecContext(ctx, query)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteStore{
		db:  db,
		now: time.Now,
	}, nil
}

func (s *SQLiteStore) Put(ctx context.Context, commitment string, secret []byte, ttl time.Duration) error {
	if err := validateTTL(ttl); err != nil {
		return err
	}

	q := `
	INSERT OR REPLACE INTO commitments (hash, secret, expires_at)
	VALUES (?, ?, ?);
	`
	if _, err := s.db.ExecContext(ctx, q, commitment, secret, s.now().Add(ttl).UnixNano()); err != nil {
		return storeError(ctx, "put", err)
	}

	return nil
}

// TakeAndInvalidate deletes the row and reads it back in a single statement.
// The delete only becomes visible once the transaction commits, so a cancelled
// call leaves the entry in place.
func (s *SQLiteStore) TakeAndInvalidate(ctx context.Context, commitment string) ([]byte, bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, storeError(ctx, "take", err)
	}
	defer tx.Rollback()

	q := `
	DELETE FROM commitments WHERE hash = ?
	RETURNING secret, expires_at;
	`
	var secret []byte
	var expiresAt int64
	if err := tx.QueryRowContext(ctx, q, commitment).Scan(&secret, &expiresAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) && ctx.Err() == nil {
			return nil, false, nil
		}
		return nil, false, storeError(ctx, "take", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, false, storeError(ctx, "take", err)
	}

	if s.now().UnixNano() >= expiresAt {
		return nil, false, nil
	}

	return secret, true, nil
}

func (s *SQLiteStore) PurgeExpired(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM commitments WHERE expires_at <= ?;`, s.now().UnixNano())
	if err != nil {
		return 0, storeError(ctx, "purge", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, storeError(ctx, "purge", err)
	}

	return int(n), nil
}

func (s *SQLiteStore) Close(ctx context.Context) error {
	return s.db.Close()
}
