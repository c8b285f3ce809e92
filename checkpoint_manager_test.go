package agent

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckpointManagerSaveLoad(t *testing.T) {
	ctx := context.Background()
	for _, compress := range []bool{true, false} {
		t.Run(fmt.Sprintf("compress=%v", compress), func(t *testing.T) {
			manager, err := NewCheckpointManager(CheckpointManagerOptions{
				Store:              NewMemoryStore(),
				DisableCompression: !compress,
			})
			require.NoError(t, err)

			s := NewState("q", 5)
			s.Context["documents"] = []any{map[string]any{"title": "doc", "score": 0.5}}
			s.AddReasoningStep("think", "echo", "")
			s.Metadata.PendingAction = &ToolInvocation{Tool: "echo", Input: map[string]any{"query": "x"}}

			id, err := manager.Save(ctx, s, "reason", 1, map[string]any{"thread_id": "t1"})
			require.NoError(t, err)
			require.Regexp(t, `^checkpoint_\d{8}_\d{6}_\d{6}_[0-9a-f]{8}$`, id)

			record, err := manager.Load(ctx, id)
			require.NoError(t, err)
			require.Equal(t, id, record.ID)
			require.Equal(t, "reason", record.StepName)
			require.Equal(t, 1, record.Iteration)
			require.Equal(t, "t1", record.Metadata["thread_id"])
			require.Equal(t, "q", record.State.Metadata.Query)
			require.Equal(t, "echo", record.State.Metadata.PendingAction.Tool)
			require.Equal(t, "doc", record.State.Context["documents"].([]any)[0].(map[string]any)["title"])
		})
	}
}

func TestCheckpointManagerSnapshotIsIsolated(t *testing.T) {
	ctx := context.Background()
	manager := newTestManager(t, 3)
	s := NewState("q", 5)
	id, err := manager.Save(ctx, s, "start", 0, nil)
	require.NoError(t, err)

	s.AddReasoningStep("later", "", "")
	s.FinalAnswer = "changed"

	record, err := manager.Load(ctx, id)
	require.NoError(t, err)
	require.Empty(t, record.State.ReasoningSteps)
	require.Empty(t, record.State.FinalAnswer)
}

func TestCheckpointManagerIDsAreUnique(t *testing.T) {
	ctx := context.Background()
	frozen := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	manager, err := NewCheckpointManager(CheckpointManagerOptions{
		Store:          NewMemoryStore(),
		MaxCheckpoints: 100,
		Now:            func() time.Time { return frozen },
	})
	require.NoError(t, err)

	s := NewState("q", 5)
	seen := map[string]bool{}
	for i := 0; i < 20; i++ {
		id, err := manager.Save(ctx, s, "reason", 0, nil)
		require.NoError(t, err)
		require.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
}

func TestCheckpointManagerListAndDelete(t *testing.T) {
	ctx := context.Background()
	manager := newTestManager(t, 5)

	var ids []string
	for i := 0; i < 3; i++ {
		id, err := manager.Save(ctx, NewState(fmt.Sprintf("q%d", i), 5), "observe", i, nil)
		require.NoError(t, err)
		ids = append(ids, id)

		list, err := manager.List(ctx)
		require.NoError(t, err)
		count := 0
		for _, summary := range list {
			if summary.ID == id {
				count++
			}
		}
		require.Equal(t, 1, count)
	}

	list, err := manager.List(ctx)
	require.NoError(t, err)
	require.Equal(t, ids, summaryIDs(list))

	latest, err := manager.Latest(ctx)
	require.NoError(t, err)
	require.Equal(t, ids[2], latest.ID)

	deleted, err := manager.Delete(ctx, ids[1])
	require.NoError(t, err)
	require.True(t, deleted)

	list, err = manager.List(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{ids[0], ids[2]}, summaryIDs(list))

	_, err = manager.Load(ctx, ids[1])
	require.ErrorIs(t, err, ErrCheckpointNotFound)

	deleted, err = manager.Delete(ctx, ids[1])
	require.NoError(t, err)
	require.False(t, deleted)

	deleted, err = manager.Delete(ctx, "checkpoint_unknown")
	require.NoError(t, err)
	require.False(t, deleted)
}

func TestCheckpointManagerRetention(t *testing.T) {
	ctx := context.Background()
	manager := newTestManager(t, 3)

	var ids []string
	for i := 1; i <= 4; i++ {
		id, err := manager.Save(ctx, NewState(fmt.Sprintf("q%d", i), 5), "observe", i, nil)
		require.NoError(t, err)
		ids = append(ids, id)
	}

	list, err := manager.List(ctx)
	require.NoError(t, err)
	require.Equal(t, ids[1:], summaryIDs(list))

	_, err = manager.Load(ctx, ids[0])
	require.ErrorIs(t, err, ErrCheckpointNotFound)

	for _, id := range ids[1:] {
		_, err := manager.Load(ctx, id)
		require.NoError(t, err)
	}
}

func TestCheckpointManagerRetentionProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	properties.Property("the newest max checkpoints survive", prop.ForAll(
		func(limit, extra int) bool {
			ctx := context.Background()
			store := NewMemoryStore()
			manager, err := NewCheckpointManager(CheckpointManagerOptions{Store: store, MaxCheckpoints: limit})
			if err != nil {
				return false
			}
			var ids []string
			for i := 0; i < limit+extra; i++ {
				id, err := manager.Save(ctx, NewState("q", 1), "observe", i, nil)
				if err != nil {
					return false
				}
				ids = append(ids, id)
			}
			list, err := manager.List(ctx)
			if err != nil || len(list) != limit {
				return false
			}
			for i, summary := range list {
				if summary.ID != ids[extra+i] {
					return false
				}
			}
			// One blob per checkpoint plus the index
			return store.Len() == limit+1
		},
		gen.IntRange(1, 6),
		gen.IntRange(1, 6),
	))

	properties.TestingRun(t)
}

// failingDeleteStore refuses to delete blobs.
type failingDeleteStore struct {
	*MemoryStore
}

func (s *failingDeleteStore) Delete(ctx context.Context, key string) error {
	return errors.New("disk on fire")
}

func TestCheckpointManagerEvictionFailureDoesNotAbortSave(t *testing.T) {
	ctx := context.Background()
	manager, err := NewCheckpointManager(CheckpointManagerOptions{
		Store:          &failingDeleteStore{MemoryStore: NewMemoryStore()},
		MaxCheckpoints: 1,
	})
	require.NoError(t, err)

	_, err = manager.Save(ctx, NewState("a", 1), "observe", 1, nil)
	require.NoError(t, err)
	second, err := manager.Save(ctx, NewState("b", 1), "observe", 2, nil)
	require.NoError(t, err)

	list, err := manager.List(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{second}, summaryIDs(list))
}

func TestCheckpointManagerMissingDataIsNotFound(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	manager, err := NewCheckpointManager(CheckpointManagerOptions{Store: store})
	require.NoError(t, err)

	id, err := manager.Save(ctx, NewState("q", 1), "answer", 1, nil)
	require.NoError(t, err)
	list, err := manager.List(ctx)
	require.NoError(t, err)
	require.NoError(t, store.Delete(ctx, list[0].Location))

	_, err = manager.Load(ctx, id)
	require.ErrorIs(t, err, ErrCheckpointNotFound)
	_, err = manager.Size(ctx, id)
	require.ErrorIs(t, err, ErrCheckpointNotFound)
}

func TestCheckpointManagerClearAndSizes(t *testing.T) {
	ctx := context.Background()
	manager := newTestManager(t, 5)

	_, err := manager.Latest(ctx)
	require.ErrorIs(t, err, ErrCheckpointNotFound)

	var total int64
	for i := 0; i < 3; i++ {
		id, err := manager.Save(ctx, NewState("q", 1), "observe", i, nil)
		require.NoError(t, err)
		size, err := manager.Size(ctx, id)
		require.NoError(t, err)
		require.Positive(t, size)
		total += size
	}
	sum, err := manager.TotalSize(ctx)
	require.NoError(t, err)
	require.Equal(t, total, sum)

	removed, err := manager.Clear(ctx)
	require.NoError(t, err)
	require.Equal(t, 3, removed)

	list, err := manager.List(ctx)
	require.NoError(t, err)
	require.Empty(t, list)

	// Ids keep increasing after a clear
	id, err := manager.Save(ctx, NewState("q", 1), "observe", 0, nil)
	require.NoError(t, err)
	require.Contains(t, id, "_000004_")
}

func TestFileStoreCheckpointManager(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	manager, err := NewFileCheckpointManager(dir, CheckpointManagerOptions{MaxCheckpoints: 2})
	require.NoError(t, err)

	id, err := manager.Save(ctx, NewState("q", 3), "answer", 1, nil)
	require.NoError(t, err)
	require.FileExists(t, filepath.Join(dir, IndexKey))
	require.FileExists(t, filepath.Join(dir, id+".json.gz"))

	// A second manager over the same directory sees the same index
	other, err := NewFileCheckpointManager(dir, CheckpointManagerOptions{MaxCheckpoints: 2})
	require.NoError(t, err)
	record, err := other.Load(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "q", record.State.Metadata.Query)

	require.NoError(t, os.Remove(filepath.Join(dir, id+".json.gz")))
	_, err = other.Load(ctx, id)
	require.ErrorIs(t, err, ErrCheckpointNotFound)
}

func TestFileStoreConcurrentSaves(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	// Separate managers share only the directory, so the file lock is what
	// keeps their index updates from being lost.
	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		manager, err := NewFileCheckpointManager(dir, CheckpointManagerOptions{MaxCheckpoints: 100})
		require.NoError(t, err)
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 5; i++ {
				_, err := manager.Save(ctx, NewState("q", 1), "observe", i, nil)
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()

	manager, err := NewFileCheckpointManager(dir, CheckpointManagerOptions{MaxCheckpoints: 100})
	require.NoError(t, err)
	list, err := manager.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 20)
}

func TestFileStoreRejectsPathKeys(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	require.Error(t, store.Put(context.Background(), "../escape", []byte("x")))
	_, err = store.Get(context.Background(), "missing")
	require.ErrorIs(t, err, ErrBlobNotFound)
}

func TestNullCheckpointer(t *testing.T) {
	ctx := context.Background()
	c := NewNullCheckpointer()
	id, err := c.Save(ctx, NewState("q", 1), "answer", 0, nil)
	require.NoError(t, err)
	require.Empty(t, id)
	_, err = c.Load(ctx, "x")
	require.ErrorIs(t, err, ErrCheckpointNotFound)
}

func summaryIDs(summaries []*CheckpointSummary) []string {
	ids := make([]string, 0, len(summaries))
	for _, summary := range summaries {
		ids = append(ids, summary.ID)
	}
	return ids
}
