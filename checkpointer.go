package agent

import (
	"context"
	"errors"
)

// Checkpointer persists and restores run snapshots
type Checkpointer interface {
	// Save stores a snapshot of the state and returns its id
	Save(ctx context.Context, state *State, stepName string, iteration int, metadata map[string]any) (string, error)

	// Load returns a checkpoint or ErrCheckpointNotFound
	Load(ctx context.Context, id string) (*CheckpointRecord, error)

	// List returns summaries ordered oldest to newest
	List(ctx context.Context) ([]*CheckpointSummary, error)

	// Delete removes a checkpoint, reporting whether it existed
	Delete(ctx context.Context, id string) (bool, error)
}

// ErrBlobNotFound is returned by a CheckpointStore for a missing key.
var ErrBlobNotFound = errors.New("blob not found")

// CheckpointStore is the key-value blob storage beneath a CheckpointManager.
type CheckpointStore interface {
	// Put writes a blob, replacing any existing value
	Put(ctx context.Context, key string, data []byte) error

	// Get reads a blob or returns ErrBlobNotFound
	Get(ctx context.Context, key string) ([]byte, error)

	// Delete removes a blob. Missing keys are not an error
	Delete(ctx context.Context, key string) error

	// Size returns the stored size of a blob in bytes
	Size(ctx context.Context, key string) (int64, error)
}

// StoreLocker is implemented by stores that can serialize index updates
// across processes. The returned function releases the lock.
type StoreLocker interface {
	Lock(ctx context.Context) (func() error, error)
}
