// Package bbolt provides the file-backed credential KV used by default.
//
// The console and consolectl share one file. bbolt holds an exclusive lock
// for as long as a database is open, so every operation opens the file,
// runs one transaction and closes it again. Reads take the shared lock.
package bbolt

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/louisbranch/groupbuy-console/internal/platform/timeouts"
	"go.etcd.io/bbolt"
)

const credentialBucket = "console_credentials"

var errClosed = errors.New("storage is not configured")

// Store is a BoltDB-backed KV.
type Store struct {
	path string

	mu     sync.Mutex
	closed bool
}

// Open checks that the BoltDB file at path can be created and locked, and
// prepares its bucket. Another process holding the write lock makes a call
// fail after timeouts.StoreOpen.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	s := &Store{path: filepath.Clean(path)}
	err := s.update(func(*bbolt.Bucket) error { return nil })
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Close stops further use of the store. The file itself is never held open
// between calls.
func (s *Store) Close() error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Get returns a copy of the value stored at key.
func (s *Store) Get(key string) ([]byte, bool, error) {
	var value []byte
	err := s.view(func(bucket *bbolt.Bucket) error {
		if raw := bucket.Get([]byte(key)); raw != nil {
			// bbolt memory is only valid inside the transaction.
			value = append([]byte{}, raw...)
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return value, value != nil, nil
}

// Put stores value at key.
func (s *Store) Put(key string, value []byte) error {
	return s.update(func(bucket *bbolt.Bucket) error {
		return bucket.Put([]byte(key), value)
	})
}

// Delete removes keys in one transaction.
func (s *Store) Delete(keys ...string) error {
	return s.update(func(bucket *bbolt.Bucket) error {
		for _, key := range keys {
			if err := bucket.Delete([]byte(key)); err != nil {
				return fmt.Errorf("delete %s: %w", key, err)
			}
		}
		return nil
	})
}

func (s *Store) view(fn func(*bbolt.Bucket) error) error {
	return s.withDB(true, func(db *bbolt.DB) error {
		return db.View(func(tx *bbolt.Tx) error {
			bucket := tx.Bucket([]byte(credentialBucket))
			if bucket == nil {
				// Created by Open; a missing bucket means nothing was stored.
				return nil
			}
			return fn(bucket)
		})
	})
}

func (s *Store) update(fn func(*bbolt.Bucket) error) error {
	return s.withDB(false, func(db *bbolt.DB) error {
		return db.Update(func(tx *bbolt.Tx) error {
			bucket, err := tx.CreateBucketIfNotExists([]byte(credentialBucket))
			if err != nil {
				return fmt.Errorf("create credential bucket: %w", err)
			}
			return fn(bucket)
		})
	})
}

// withDB opens the file for a single transaction. The mutex keeps this
// process from racing itself for the lock.
func (s *Store) withDB(readOnly bool, fn func(*bbolt.DB) error) (err error) {
	if s == nil {
		return errClosed
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errClosed
	}

	db, err := bbolt.Open(s.path, 0o600, &bbolt.Options{Timeout: timeouts.StoreOpen, ReadOnly: readOnly})
	if err != nil {
		return fmt.Errorf("open credential db: %w", err)
	}
	defer func() {
		if closeErr := db.Close(); err == nil && closeErr != nil {
			err = fmt.Errorf("close credential db: %w", closeErr)
		}
	}()
	return fn(db)
}
