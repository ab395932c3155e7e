// Package storage persists cache snapshots in SQLite so a fresh process
// can render last-known data before its first revalidation completes.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"fintrack/internal/cache"
	"fintrack/internal/log"

	_ "modernc.org/sqlite"
)

// SnapshotRepository implements cache.Snapshotter on a local SQLite file.
type SnapshotRepository struct {
	db     *sql.DB
	logger *log.Logger
}

func NewSnapshotRepository(dbPath string, logger *log.Logger) (*SnapshotRepository, error) {
	if logger == nil {
		logger = log.New(log.DefaultConfig()).WithComponent(log.ComponentStorage)
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SnapshotRepository{db: db, logger: logger}, nil
}

func (r *SnapshotRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Save upserts the snapshot for key.
func (r *SnapshotRepository) Save(ctx context.Context, key string, value []byte, fetchedAt time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO cache_snapshots (cache_key, value, fetched_at)
		VALUES (?, ?, ?)
		ON CONFLICT (cache_key) DO UPDATE SET
			value = excluded.value,
			fetched_at = excluded.fetched_at`,
		key, value, fetchedAt.UTC())
	if err != nil {
		return fmt.Errorf("save snapshot %s: %w", key, err)
	}
	return nil
}

// Load returns all persisted snapshots.
func (r *SnapshotRepository) Load(ctx context.Context) ([]cache.Snapshot, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT cache_key, value, fetched_at
		FROM cache_snapshots
		ORDER BY cache_key`)
	if err != nil {
		return nil, fmt.Errorf("load snapshots: %w", err)
	}
	defer rows.Close()

	var snapshots []cache.Snapshot
	for rows.Next() {
		var snap cache.Snapshot
		if err := rows.Scan(&snap.Key, &snap.Value, &snap.FetchedAt); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		snapshots = append(snapshots, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshots: %w", err)
	}
	return snapshots, nil
}

// Delete removes the snapshot for key, if present.
func (r *SnapshotRepository) Delete(ctx context.Context, key string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM cache_snapshots WHERE cache_key = ?`, key); err != nil {
		return fmt.Errorf("delete snapshot %s: %w", key, err)
	}
	return nil
}

// Clear drops every snapshot. Used on logout.
func (r *SnapshotRepository) Clear(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM cache_snapshots`); err != nil {
		return fmt.Errorf("clear snapshots: %w", err)
	}
	r.logger.InfoContext(ctx, "cleared cache snapshots")
	return nil
}

// Purge removes snapshots older than the cutoff. Stale beyond this horizon
// is worse than an empty screen.
func (r *SnapshotRepository) Purge(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().Add(-olderThan).UTC()
	res, err := r.db.ExecContext(ctx, `DELETE FROM cache_snapshots WHERE fetched_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge snapshots: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("purge snapshots rows affected: %w", err)
	}
	if n > 0 {
		r.logger.InfoContext(ctx, "purged expired cache snapshots", log.FieldKeyCount, n)
	}
	return n, nil
}
