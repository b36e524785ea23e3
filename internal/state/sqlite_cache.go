package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Get returns the cached ELM for a key, if present.
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var elm []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT elm FROM elm_cache WHERE key = ?`, key,
	).Scan(&elm)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("reading cache: %w", err)
	}
	return elm, true, nil
}

// Put stores the ELM for a key, replacing any previous entry.
func (s *Store) Put(ctx context.Context, key string, elm []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO elm_cache (key, elm, created_at) VALUES (?, ?, ?)
		 ON CONFLICT (key) DO UPDATE SET elm = excluded.elm, created_at = excluded.created_at`,
		key, elm, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("writing cache: %w", err)
	}
	return nil
}

// Prune deletes cache entries older than the retention window and
// returns how many were removed.
func (s *Store) Prune(ctx context.Context, keep time.Duration) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM elm_cache WHERE created_at < ?`, time.Now().UTC().Add(-keep),
	)
	if err != nil {
		return 0, fmt.Errorf("pruning cache: %w", err)
	}
	return res.RowsAffected()
}

// CacheSize returns the number of cache entries.
func (s *Store) CacheSize(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM elm_cache`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting cache: %w", err)
	}
	return n, nil
}
