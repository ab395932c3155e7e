package cache

import (
	"context"
	"time"
)

// Snapshot is one persisted cache value.
type Snapshot struct {
	Key       string
	Value     []byte
	FetchedAt time.Time
}

// Snapshotter persists last-good cache values across process restarts.
// Implementations: the SQLite repository in internal/storage; nil disables
// persistence entirely.
type Snapshotter interface {
	Save(ctx context.Context, key string, value []byte, fetchedAt time.Time) error
	Load(ctx context.Context) ([]Snapshot, error)
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
}
