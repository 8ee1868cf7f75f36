package invoice

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"go.etcd.io/bbolt"
)

const (
	cacheBucket = "invoices"
	cacheKey    = "all"
)

// Cache is the durable local read model. It always holds the complete
// collection snapshot under one slot; there is no per-record API.
//
// Cache failures are best-effort by contract: Load never fails (a missing or
// corrupt slot reads as empty) and ReplaceAll swallows write errors. Local
// storage trouble must never block the caller.
type Cache interface {
	Load() []Invoice
	ReplaceAll(invs []Invoice)
	Close() error
}

// BoltCache implements Cache using BoltDB.
type BoltCache struct {
	db *bbolt.DB
}

// NewBoltCache opens the cache file, creating the bucket if needed.
func NewBoltCache(path string) (*BoltCache, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening boltdb: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(cacheBucket))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating bucket: %w", err)
	}

	return &BoltCache{db: db}, nil
}

// Load reads the cached collection. Absent or corrupt data reads as an empty
// collection.
func (b *BoltCache) Load() []Invoice {
	invs := make([]Invoice, 0)
	err := b.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(cacheBucket)).Get([]byte(cacheKey))
		if data == nil {
			return nil
		}
		return json.Unmarshal(data, &invs)
	})
	if err != nil {
		slog.Warn("Failed to load cached invoices, starting empty", "error", err)
		return make([]Invoice, 0)
	}
	return invs
}

// ReplaceAll atomically overwrites the whole collection. Failures are logged
// and swallowed.
func (b *BoltCache) ReplaceAll(invs []Invoice) {
	err := b.db.Update(func(tx *bbolt.Tx) error {
		data, err := json.Marshal(invs)
		if err != nil {
			return fmt.Errorf("marshaling invoices: %w", err)
		}
		return tx.Bucket([]byte(cacheBucket)).Put([]byte(cacheKey), data)
	})
	if err != nil {
		slog.Warn("Failed to persist invoices to cache", "error", err)
	}
}

// Close closes the underlying database.
func (b *BoltCache) Close() error {
	return b.db.Close()
}
