// Package postgres stores checkpoints in a PostgreSQL table.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"hash/fnv"
	"regexp"
	"time"

	"github.com/deepnoodle-ai/agent"
	_ "github.com/lib/pq"
)

// DefaultTable holds checkpoint blobs when no table is configured
const DefaultTable = "agent_checkpoints"

var tableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

var (
	_ agent.CheckpointStore = (*Store)(nil)
	_ agent.StoreLocker     = (*Store)(nil)
)

// Store is a CheckpointStore over a single PostgreSQL table. Index updates
// from different processes are serialized with an advisory lock.
type Store struct {
	db      *sql.DB
	table   string
	lockKey int64
	owned   bool
}

// Options configures a Store
type Options struct {
	Table string
}

// Open connects to the database at dsn and creates the table if needed.
func Open(ctx context.Context, dsn string, opts Options) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	store, err := NewStore(ctx, db, opts)
	if err != nil {
		db.Close()
		return nil, err
	}
	store.owned = true
	return store, nil
}

// NewStore uses an existing connection pool. The caller keeps ownership of db.
func NewStore(ctx context.Context, db *sql.DB, opts Options) (*Store, error) {
	if opts.Table == "" {
		opts.Table = DefaultTable
	}
	if !tableName.MatchString(opts.Table) {
		return nil, fmt.Errorf("invalid table name %q", opts.Table)
	}
	h := fnv.New64a()
	h.Write([]byte(opts.Table))
	s := &Store{db: db, table: opts.Table, lockKey: int64(h.Sum64())}
	if err := s.migrate(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// NewCheckpointManager connects to dsn and returns a manager on top of it
// along with the store, which must be closed when done.
func NewCheckpointManager(ctx context.Context, dsn string, opts agent.CheckpointManagerOptions) (*agent.CheckpointManager, *Store, error) {
	store, err := Open(ctx, dsn, Options{})
	if err != nil {
		return nil, nil, err
	}
	opts.Store = store
	manager, err := agent.NewCheckpointManager(opts)
	if err != nil {
		store.Close()
		return nil, nil, err
	}
	return manager, store, nil
}

func (s *Store) migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			key        TEXT PRIMARY KEY,
			data       BYTEA NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`, s.table))
	if err != nil {
		return fmt.Errorf("create table %s: %w", s.table, err)
	}
	return nil
}

func (s *Store) Put(ctx context.Context, key string, data []byte) error {
	_, err := s.db.ExecContext(ctx, fmt.Sprintf(`
		INSERT INTO %s (key, data, updated_at) VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE SET data = EXCLUDED.data, updated_at = EXCLUDED.updated_at`, s.table),
		key, data, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT data FROM %s WHERE key = $1`, s.table), key).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, agent.ErrBlobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	return data, nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE key = $1`, s.table), key)
	if err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

func (s *Store) Size(ctx context.Context, key string) (int64, error) {
	var size int64
	err := s.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT octet_length(data) FROM %s WHERE key = $1`, s.table), key).Scan(&size)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, agent.ErrBlobNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("size %s: %w", key, err)
	}
	return size, nil
}

// Lock takes a session advisory lock on a dedicated connection. Advisory
// locks belong to the session, so the same connection must release it.
func (s *Store) Lock(ctx context.Context) (func() error, error) {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("lock connection: %w", err)
	}
	if _, err := conn.ExecContext(ctx, `SELECT pg_advisory_lock($1)`, s.lockKey); err != nil {
		conn.Close()
		return nil, fmt.Errorf("advisory lock: %w", err)
	}
	return func() error {
		defer conn.Close()
		_, err := conn.ExecContext(context.Background(), `SELECT pg_advisory_unlock($1)`, s.lockKey)
		return err
	}, nil
}

// Close closes the pool if the store opened it
func (s *Store) Close() error {
	if !s.owned {
		return nil
	}
	return s.db.Close()
}
