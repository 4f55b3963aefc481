package embedder

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"

	"github.com/dshills/eventsage/internal/vector"
	"github.com/dshills/eventsage/pkg/logger"
)

// DiskCache persists embeddings in badger so restarts and re-imports do not
// pay for inference twice. Keys are "model|sha256(text)".
type DiskCache struct {
	db *badger.DB
}

// badgerLogger adapts logger.Logger to badger.Logger
type badgerLogger struct {
	log logger.Logger
}

var _ badger.Logger = (*badgerLogger)(nil)

func (b *badgerLogger) Errorf(msg string, items ...any) {
	b.log.Error(context.Background(), fmt.Sprintf(msg, items...))
}

func (b *badgerLogger) Warningf(msg string, items ...any) {
	b.log.Warn(context.Background(), fmt.Sprintf(msg, items...))
}

func (b *badgerLogger) Infof(msg string, items ...any) {
	b.log.Debug(context.Background(), fmt.Sprintf(msg, items...))
}

func (b *badgerLogger) Debugf(msg string, items ...any) {
	b.log.Debug(context.Background(), fmt.Sprintf(msg, items...))
}

// OpenDiskCache opens or creates a cache directory. An empty dir opens an
// in-memory store, which is only useful in tests.
func OpenDiskCache(dir string, log logger.Logger) (*DiskCache, error) {
	if log == nil {
		log = logger.Nop()
	}

	var opts badger.Options
	if dir == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create cache dir: %w", err)
		}
		opts = badger.DefaultOptions(dir)
	}
	opts.Logger = &badgerLogger{log: log.Named("badger")}
	opts.Compression = options.None

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open embedding cache: %w", err)
	}
	return &DiskCache{db: db}, nil
}

// DiskKey builds the cache key for text embedded by model
func DiskKey(model, text string) []byte {
	return []byte(model + "|" + ComputeHash(text))
}

// Get returns the cached vector for key
func (d *DiskCache) Get(key []byte) ([]float32, bool, error) {
	var vec []float32
	err := d.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			vec = vector.Decode(val)
			return nil
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return vec, true, nil
}

// Set stores vec under key
func (d *DiskCache) Set(key []byte, vec []float32) error {
	return d.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, vector.Encode(vec))
	})
}

// Close flushes and closes the store
func (d *DiskCache) Close() error {
	return d.db.Close()
}
