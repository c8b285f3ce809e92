package agent

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/klauspost/compress/gzip"
)

const (
	// DefaultMaxCheckpoints is the retention limit when none is configured.
	DefaultMaxCheckpoints = 10

	// IndexKey is the store key of the checkpoint index.
	IndexKey = "index.json"

	compressedExt = ".json.gz"
	plainExt      = ".json"
)

// CheckpointManagerOptions configures a CheckpointManager
type CheckpointManagerOptions struct {
	Store CheckpointStore

	// MaxCheckpoints bounds the number of retained checkpoints. Older
	// checkpoints are evicted first.
	MaxCheckpoints int

	// DisableCompression stores records as plain JSON instead of gzip.
	DisableCompression bool

	Logger *slog.Logger

	// Now overrides the clock used for ids and timestamps.
	Now func() time.Time
}

// CheckpointManager stores state snapshots in a CheckpointStore, keeping an
// ordered index and evicting the oldest snapshots beyond a fixed count.
type CheckpointManager struct {
	store          CheckpointStore
	maxCheckpoints int
	compress       bool
	logger         *slog.Logger
	now            func() time.Time
	mutex          sync.Mutex
}

var _ Checkpointer = (*CheckpointManager)(nil)

// NewCheckpointManager creates a new checkpoint manager
func NewCheckpointManager(opts CheckpointManagerOptions) (*CheckpointManager, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("checkpoint store is required")
	}
	if opts.MaxCheckpoints < 0 {
		return nil, fmt.Errorf("max checkpoints must not be negative")
	}
	if opts.MaxCheckpoints == 0 {
		opts.MaxCheckpoints = DefaultMaxCheckpoints
	}
	if opts.Logger == nil {
		opts.Logger = NewDiscardLogger()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &CheckpointManager{
		store:          opts.Store,
		maxCheckpoints: opts.MaxCheckpoints,
		compress:       !opts.DisableCompression,
		logger:         opts.Logger,
		now:            opts.Now,
	}, nil
}

// MaxCheckpoints returns the retention limit.
func (m *CheckpointManager) MaxCheckpoints() int {
	return m.maxCheckpoints
}

// Save stores a deep copy of the state, appends it to the index and evicts
// the oldest checkpoints beyond the retention limit.
func (m *CheckpointManager) Save(ctx context.Context, state *State, stepName string, iteration int, metadata map[string]any) (string, error) {
	if state == nil {
		return "", fmt.Errorf("state is required")
	}
	snapshot := state.Clone()
	stateJSON, err := json.Marshal(snapshot)
	if err != nil {
		return "", fmt.Errorf("failed to marshal state: %w", err)
	}

	var id string
	err = m.withIndex(ctx, func(idx *checkpointIndex) (bool, error) {
		now := m.now()
		idx.Sequence++
		id = newCheckpointID(now, idx.Sequence, stateJSON)

		record := &CheckpointRecord{
			ID:        id,
			State:     snapshot,
			Timestamp: now,
			StepName:  stepName,
			Iteration: iteration,
			Metadata:  copyMap(metadata),
		}
		location := id + plainExt
		if m.compress {
			location = id + compressedExt
		}
		data, err := m.encode(record)
		if err != nil {
			return false, err
		}
		if err := m.store.Put(ctx, location, data); err != nil {
			return false, fmt.Errorf("failed to write checkpoint %s: %w", id, err)
		}
		idx.add(&CheckpointSummary{
			ID:        id,
			Location:  location,
			Timestamp: now,
			StepName:  stepName,
			Iteration: iteration,
			Metadata:  copyMap(metadata),
		})
		m.evict(ctx, idx)
		return true, nil
	})
	if err != nil {
		return "", err
	}
	m.logger.Debug("saved checkpoint", "checkpoint_id", id, "step", stepName, "iteration", iteration)
	return id, nil
}

// Load returns the checkpoint with the given id. Unknown ids and index
// entries whose data is missing both return ErrCheckpointNotFound.
func (m *CheckpointManager) Load(ctx context.Context, id string) (*CheckpointRecord, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	idx, err := m.readIndex(ctx)
	if err != nil {
		return nil, err
	}
	summary, ok := idx.Checkpoints[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrCheckpointNotFound, id)
	}
	data, err := m.store.Get(ctx, summary.Location)
	if err != nil {
		if errors.Is(err, ErrBlobNotFound) {
			m.logger.Warn("checkpoint data missing", "checkpoint_id", id, "location", summary.Location)
			return nil, fmt.Errorf("%w: %s", ErrCheckpointNotFound, id)
		}
		return nil, fmt.Errorf("failed to read checkpoint %s: %w", id, err)
	}
	record, err := m.decode(summary.Location, data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode checkpoint %s: %w", id, err)
	}
	return record, nil
}

// List returns the stored checkpoints ordered oldest to newest.
func (m *CheckpointManager) List(ctx context.Context) ([]*CheckpointSummary, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	idx, err := m.readIndex(ctx)
	if err != nil {
		return nil, err
	}
	summaries := make([]*CheckpointSummary, 0, len(idx.Order))
	for _, id := range idx.Order {
		if summary, ok := idx.Checkpoints[id]; ok {
			summaries = append(summaries, summary)
		}
	}
	return summaries, nil
}

// Latest returns the most recently saved checkpoint.
func (m *CheckpointManager) Latest(ctx context.Context) (*CheckpointSummary, error) {
	summaries, err := m.List(ctx)
	if err != nil {
		return nil, err
	}
	if len(summaries) == 0 {
		return nil, ErrCheckpointNotFound
	}
	return summaries[len(summaries)-1], nil
}

// Delete removes a checkpoint. It returns false for unknown ids.
func (m *CheckpointManager) Delete(ctx context.Context, id string) (bool, error) {
	var removed *CheckpointSummary
	err := m.withIndex(ctx, func(idx *checkpointIndex) (bool, error) {
		summary, ok := idx.remove(id)
		if !ok {
			return false, nil
		}
		removed = summary
		return true, nil
	})
	if err != nil || removed == nil {
		return false, err
	}
	// The index no longer lists the checkpoint, so a failure here only
	// leaves an orphaned blob behind.
	if err := m.store.Delete(ctx, removed.Location); err != nil {
		m.logger.Warn("failed to delete checkpoint data", "checkpoint_id", id, "error", err)
	}
	return true, nil
}

// Clear removes every checkpoint and returns how many were removed.
func (m *CheckpointManager) Clear(ctx context.Context) (int, error) {
	var removed []*CheckpointSummary
	err := m.withIndex(ctx, func(idx *checkpointIndex) (bool, error) {
		for _, id := range idx.Order {
			if summary, ok := idx.Checkpoints[id]; ok {
				removed = append(removed, summary)
			}
		}
		idx.Checkpoints = map[string]*CheckpointSummary{}
		idx.Order = []string{}
		return true, nil
	})
	if err != nil {
		return 0, err
	}
	for _, summary := range removed {
		if err := m.store.Delete(ctx, summary.Location); err != nil {
			m.logger.Warn("failed to delete checkpoint data", "checkpoint_id", summary.ID, "error", err)
		}
	}
	return len(removed), nil
}

// Size returns the stored size of one checkpoint in bytes.
func (m *CheckpointManager) Size(ctx context.Context, id string) (int64, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	idx, err := m.readIndex(ctx)
	if err != nil {
		return 0, err
	}
	summary, ok := idx.Checkpoints[id]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrCheckpointNotFound, id)
	}
	size, err := m.store.Size(ctx, summary.Location)
	if errors.Is(err, ErrBlobNotFound) {
		return 0, fmt.Errorf("%w: %s", ErrCheckpointNotFound, id)
	}
	return size, err
}

// TotalSize returns the combined stored size of all checkpoints.
func (m *CheckpointManager) TotalSize(ctx context.Context) (int64, error) {
	summaries, err := m.List(ctx)
	if err != nil {
		return 0, err
	}
	var total int64
	for _, summary := range summaries {
		size, err := m.store.Size(ctx, summary.Location)
		if err != nil {
			if errors.Is(err, ErrBlobNotFound) {
				continue
			}
			return 0, err
		}
		total += size
	}
	return total, nil
}

// withIndex runs fn against the current index under both the in-process
// mutex and the store lock, persisting the index when fn reports a change.
func (m *CheckpointManager) withIndex(ctx context.Context, fn func(idx *checkpointIndex) (bool, error)) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if locker, ok := m.store.(StoreLocker); ok {
		unlock, err := locker.Lock(ctx)
		if err != nil {
			return fmt.Errorf("failed to lock checkpoint index: %w", err)
		}
		defer func() {
			if err := unlock(); err != nil {
				m.logger.Warn("failed to unlock checkpoint index", "error", err)
			}
		}()
	}

	idx, err := m.readIndex(ctx)
	if err != nil {
		return err
	}
	changed, err := fn(idx)
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}
	return m.writeIndex(ctx, idx)
}

// evict removes the oldest checkpoints beyond the retention limit. Failing
// to delete data is logged and the entry is dropped from the index anyway.
func (m *CheckpointManager) evict(ctx context.Context, idx *checkpointIndex) {
	for len(idx.Order) > m.maxCheckpoints {
		oldest := idx.Order[0]
		summary, _ := idx.remove(oldest)
		if summary == nil {
			continue
		}
		if err := m.store.Delete(ctx, summary.Location); err != nil {
			m.logger.Warn("failed to evict checkpoint", "checkpoint_id", oldest, "error", err)
			continue
		}
		m.logger.Debug("evicted checkpoint", "checkpoint_id", oldest)
	}
}

func (m *CheckpointManager) readIndex(ctx context.Context) (*checkpointIndex, error) {
	data, err := m.store.Get(ctx, IndexKey)
	if err != nil {
		if errors.Is(err, ErrBlobNotFound) {
			return newCheckpointIndex(), nil
		}
		return nil, fmt.Errorf("failed to read checkpoint index: %w", err)
	}
	idx := newCheckpointIndex()
	if err := json.Unmarshal(data, idx); err != nil {
		return nil, fmt.Errorf("failed to unmarshal checkpoint index: %w", err)
	}
	if idx.Checkpoints == nil {
		idx.Checkpoints = map[string]*CheckpointSummary{}
	}
	return idx, nil
}

func (m *CheckpointManager) writeIndex(ctx context.Context, idx *checkpointIndex) error {
	data, err := json.MarshalIndent(idx, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint index: %w", err)
	}
	if err := m.store.Put(ctx, IndexKey, data); err != nil {
		return fmt.Errorf("failed to write checkpoint index: %w", err)
	}
	return nil
}

func (m *CheckpointManager) encode(record *CheckpointRecord) ([]byte, error) {
	data, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal checkpoint: %w", err)
	}
	if !m.compress {
		return data, nil
	}
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(data); err != nil {
		return nil, fmt.Errorf("failed to compress checkpoint: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("failed to compress checkpoint: %w", err)
	}
	return buf.Bytes(), nil
}

// decode reads a record, using the location suffix to detect compression
// so records written under either setting stay readable.
func (m *CheckpointManager) decode(location string, data []byte) (*CheckpointRecord, error) {
	if strings.HasSuffix(location, compressedExt) {
		zr, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		defer zr.Close()
		if data, err = io.ReadAll(zr); err != nil {
			return nil, err
		}
	}
	var record CheckpointRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, err
	}
	return &record, nil
}

// newCheckpointID combines a timestamp, a sequence number that is unique
// within the index, and a digest of the state.
func newCheckpointID(now time.Time, sequence uint64, stateJSON []byte) string {
	sum := sha256.Sum256(stateJSON)
	return fmt.Sprintf("checkpoint_%s_%06d_%s",
		now.UTC().Format("20060102_150405"),
		sequence,
		hex.EncodeToString(sum[:])[:8])
}
