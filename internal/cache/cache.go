// Package cache persists downloaded image bytes keyed by file code.
package cache

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"
)

// DefaultMaxAge is how long cached bytes are kept between sweeps
const DefaultMaxAge = 7 * 24 * time.Hour

var bucketImages = []byte("images")

const stampSize = 8

// Cache is a bbolt-backed byte store. Each record is an 8-byte big-endian
// unix-millisecond timestamp followed by the raw bytes.
type Cache struct {
	db  *bbolt.DB
	now func() time.Time
}

// Open creates or opens the cache file at path
func Open(path string) (*Cache, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("create cache dir: %w", err)
		}
	}

	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketImages)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init cache: %w", err)
	}
	return &Cache{db: db, now: time.Now}, nil
}

// Close releases the underlying file
func (c *Cache) Close() error {
	return c.db.Close()
}

// Get returns the bytes stored under key
func (c *Cache) Get(key string) ([]byte, bool, error) {
	var out []byte
	err := c.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(bucketImages).Get([]byte(key))
		if len(v) < stampSize {
			return nil
		}
		out = make([]byte, len(v)-stampSize)
		copy(out, v[stampSize:])
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return out, out != nil, nil
}

// Set stores data under key, replacing any previous value
func (c *Cache) Set(key string, data []byte) error {
	if key == "" {
		return errors.New("cache key must not be empty")
	}
	record := make([]byte, stampSize+len(data))
	binary.BigEndian.PutUint64(record, uint64(c.now().UnixMilli()))
	copy(record[stampSize:], data)

	return c.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketImages).Put([]byte(key), record)
	})
}

// DeleteExpired removes records stored more than maxAge ago
func (c *Cache) DeleteExpired(maxAge time.Duration) (int, error) {
	cutoff := c.now().Add(-maxAge).UnixMilli()
	deleted := 0
	err := c.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketImages)
		var stale [][]byte
		err := b.ForEach(func(k, v []byte) error {
			if len(v) < stampSize || int64(binary.BigEndian.Uint64(v[:stampSize])) < cutoff {
				stale = append(stale, append([]byte(nil), k...))
			}
			return nil
		})
		if err != nil {
			return err
		}
		for _, k := range stale {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		deleted = len(stale)
		return nil
	})
	return deleted, err
}

// ClearAll drops every record
func (c *Cache) ClearAll() error {
	return c.db.Update(func(tx *bbolt.Tx) error {
		if tx.Bucket(bucketImages) != nil {
			if err := tx.DeleteBucket(bucketImages); err != nil {
				return err
			}
		}
		_, err := tx.CreateBucket(bucketImages)
		return err
	})
}

// Len returns the number of records
func (c *Cache) Len() (int, error) {
	n := 0
	err := c.db.View(func(tx *bbolt.Tx) error {
		n = tx.Bucket(bucketImages).Stats().KeyN
		return nil
	})
	return n, err
}
