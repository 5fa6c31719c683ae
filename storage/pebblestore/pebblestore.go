// Package pebblestore provides a durable ordered store backend on Pebble.
//
// Pebble is an LSM key-value store with ascending iteration over byte
// keys, which is exactly what the deadline index needs: the scan walks
// due deadlines as a prefix of the key space and stops at the first
// future one.
package pebblestore

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/cockroachdb/pebble"

	"github.com/c360/embargo/errors"
	"github.com/c360/embargo/storage"
)

// Store is a Pebble-backed implementation of storage.OrderedStore.
type Store struct {
	db     *pebble.DB
	path   string
	closed atomic.Bool
}

var _ storage.OrderedStore = (*Store)(nil)

// Open opens (creating if necessary) a Pebble database at path.
func Open(path string) (*Store, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, errors.WrapFatal(err, "pebblestore", "Open", fmt.Sprintf("open %s", path))
	}

	return &Store{db: db, path: path}, nil
}

// Path returns the database directory.
func (s *Store) Path() string {
	return s.path
}

// Get retrieves the value for key.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	if s.closed.Load() {
		return nil, errors.ErrStoreClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	value, closer, err := s.db.Get([]byte(key))
	if err != nil {
		if err == pebble.ErrNotFound {
			return nil, errors.ErrKeyNotFound
		}
		return nil, errors.WrapTransient(err, "pebblestore", "Get", fmt.Sprintf("read %s", key))
	}

	out := make([]byte, len(value))
	copy(out, value)
	if err := closer.Close(); err != nil {
		return nil, errors.WrapTransient(err, "pebblestore", "Get", "release value")
	}
	return out, nil
}

// Put stores value at key. Writes are synced; the indexes are the sole
// durable state and must survive restart.
func (s *Store) Put(ctx context.Context, key string, value []byte) error {
	if s.closed.Load() {
		return errors.ErrStoreClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := s.db.Set([]byte(key), value, pebble.Sync); err != nil {
		return errors.WrapTransient(err, "pebblestore", "Put", fmt.Sprintf("write %s", key))
	}
	return nil
}

// Delete removes the value at key. Absent keys are a no-op.
func (s *Store) Delete(ctx context.Context, key string) error {
	if s.closed.Load() {
		return errors.ErrStoreClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := s.db.Delete([]byte(key), pebble.Sync); err != nil {
		return errors.WrapTransient(err, "pebblestore", "Delete", fmt.Sprintf("delete %s", key))
	}
	return nil
}

// Ascend iterates keys in ascending byte order.
func (s *Store) Ascend(ctx context.Context, fn func(key string, value []byte) (bool, error)) error {
	if s.closed.Load() {
		return errors.ErrStoreClosed
	}

	iter, err := s.db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return errors.WrapTransient(err, "pebblestore", "Ascend", "create iterator")
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		if err := ctx.Err(); err != nil {
			return err
		}

		value, err := iter.ValueAndErr()
		if err != nil {
			return errors.WrapTransient(err, "pebblestore", "Ascend", "read value")
		}

		key := make([]byte, len(iter.Key()))
		copy(key, iter.Key())
		val := make([]byte, len(value))
		copy(val, value)

		cont, err := fn(string(key), val)
		if err != nil {
			return err
		}
		if !cont {
			return nil
		}
	}

	if err := iter.Error(); err != nil {
		return errors.WrapTransient(err, "pebblestore", "Ascend", "iterate")
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	if err := s.db.Close(); err != nil {
		return errors.WrapFatal(err, "pebblestore", "Close", "close db")
	}
	return nil
}
