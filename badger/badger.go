// Package badger stores checkpoints in an embedded BadgerDB database.
package badger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/deepnoodle-ai/agent"
	"github.com/dgraph-io/badger/v4"
)

// DefaultPrefix namespaces checkpoint keys inside a shared database
const DefaultPrefix = "checkpoints/"

var _ agent.CheckpointStore = (*Store)(nil)

// Config configures a Store
type Config struct {
	// Path is the database directory. Ignored when InMemory is set.
	Path string

	// InMemory keeps the database in memory, for tests
	InMemory bool

	// SyncWrites fsyncs every write
	SyncWrites bool

	// Prefix namespaces all keys. Defaults to DefaultPrefix.
	Prefix string

	// Logger receives BadgerDB's internal log output. Nil disables it.
	Logger *slog.Logger
}

// Store is a CheckpointStore over BadgerDB. BadgerDB allows a single process
// per directory, so the manager's in-process lock is sufficient.
type Store struct {
	db     *badger.DB
	prefix string
	owned  bool
}

type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...any) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...any) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...any) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...any) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// Open opens the database described by cfg. Close the store when done.
func Open(cfg Config) (*Store, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for a persistent database")
	}
	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, fmt.Errorf("create database directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites).WithNumVersionsToKeep(1)
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}
	store := NewStore(db, cfg.Prefix)
	store.owned = true
	return store, nil
}

// NewStore wraps an already open database. The caller keeps ownership of db.
func NewStore(db *badger.DB, prefix string) *Store {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Store{db: db, prefix: prefix}
}

// NewCheckpointManager opens a database and returns a manager on top of it
// along with the store, which must be closed when done.
func NewCheckpointManager(cfg Config, opts agent.CheckpointManagerOptions) (*agent.CheckpointManager, *Store, error) {
	store, err := Open(cfg)
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

func (s *Store) key(key string) []byte {
	return []byte(s.prefix + key)
}

func (s *Store) Put(ctx context.Context, key string, data []byte) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(s.key(key), data)
	})
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	var data []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(s.key(key))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, agent.ErrBlobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	return data, nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(s.key(key))
	})
}

func (s *Store) Size(ctx context.Context, key string) (int64, error) {
	var size int64
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(s.key(key))
		if err != nil {
			return err
		}
		size = item.ValueSize()
		return nil
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return 0, agent.ErrBlobNotFound
	}
	return size, err
}

// Keys lists the stored keys without the prefix, in key order.
func (s *Store) Keys(ctx context.Context) ([]string, error) {
	var keys []string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(s.prefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, string(it.Item().Key()[len(s.prefix):]))
		}
		return nil
	})
	return keys, err
}

// Close closes the database if the store opened it
func (s *Store) Close() error {
	if !s.owned {
		return nil
	}
	return s.db.Close()
}
