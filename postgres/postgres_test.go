package postgres

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sync"
	"testing"

	"github.com/deepnoodle-ai/agent"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
)

var (
	testDSN       string
	skipPostgres  bool
	testContainer testcontainers.Container
)

func TestMain(m *testing.M) {
	flag.Parse()
	if !testing.Short() {
		setupPostgres()
	} else {
		skipPostgres = true
	}
	code := m.Run()
	if testContainer != nil {
		testContainer.Terminate(context.Background())
	}
	os.Exit(code)
}

func setupPostgres() {
	ctx := context.Background()
	var err error
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("docker not available: %v", r)
			}
		}()
		var container *tcpostgres.PostgresContainer
		container, err = tcpostgres.Run(ctx, "postgres:16-alpine",
			tcpostgres.WithDatabase("agent"),
			tcpostgres.WithUsername("agent"),
			tcpostgres.WithPassword("agent"),
			tcpostgres.BasicWaitStrategies(),
		)
		if err == nil {
			testContainer = container
			testDSN, err = container.ConnectionString(ctx, "sslmode=disable")
		}
	}()
	if err != nil {
		fmt.Printf("Docker not available, postgres tests will be skipped: %v\n", err)
		skipPostgres = true
	}
}

func openTestStore(t *testing.T, table string) *Store {
	t.Helper()
	if skipPostgres {
		t.Skip("postgres is not available")
	}
	store, err := Open(context.Background(), testDSN, Options{Table: table})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStore(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t, "store_test")

	_, err := store.Get(ctx, "missing")
	require.ErrorIs(t, err, agent.ErrBlobNotFound)

	require.NoError(t, store.Put(ctx, "a", []byte("one")))
	require.NoError(t, store.Put(ctx, "a", []byte("three")))
	data, err := store.Get(ctx, "a")
	require.NoError(t, err)
	require.Equal(t, "three", string(data))

	size, err := store.Size(ctx, "a")
	require.NoError(t, err)
	require.Equal(t, int64(5), size)

	require.NoError(t, store.Delete(ctx, "a"))
	_, err = store.Size(ctx, "a")
	require.ErrorIs(t, err, agent.ErrBlobNotFound)
}

func TestCheckpointManagerOnPostgres(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t, "manager_test")

	// Separate managers share only the database, so the advisory lock keeps
	// their index updates from being lost.
	var wg sync.WaitGroup
	for w := 0; w < 3; w++ {
		manager, err := agent.NewCheckpointManager(agent.CheckpointManagerOptions{Store: store, MaxCheckpoints: 100})
		require.NoError(t, err)
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 4; i++ {
				_, err := manager.Save(ctx, agent.NewState("q", 3), "observe", i, nil)
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()

	manager, err := agent.NewCheckpointManager(agent.CheckpointManagerOptions{Store: store, MaxCheckpoints: 100})
	require.NoError(t, err)
	list, err := manager.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 12)

	record, err := manager.Load(ctx, list[0].ID)
	require.NoError(t, err)
	require.Equal(t, "q", record.State.Metadata.Query)
}

func TestInvalidTableName(t *testing.T) {
	_, err := NewStore(context.Background(), nil, Options{Table: "drop table;"})
	require.ErrorContains(t, err, "invalid table name")
}
