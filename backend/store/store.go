// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package store

//go:generate mockgen -source store.go -destination store_mocks.go -package store

import (
	"github.com/Fantom-foundation/triedb/common"
)

const (
	// ErrClosedStore is returned by all operations on a closed store.
	ErrClosedStore = common.ConstError("store is closed")
	// ErrInvalidKey is returned by keyed operations for nil keys. The key is
	// checked before the store is accessed.
	ErrInvalidKey = common.ConstError("invalid key: nil keys are not supported")
)

// Store is a key/value store for byte-string keys and values. It is the
// backing store of trie nodes and the contract shared by all decorators
// (locking, caching, pruning) wrapping a durable engine.
//
// Absence of a key is not an error; it is reported through the found flag
// of Get. A nil or empty value passed to Put deletes the key, and a nil value
// in a batch deletes the key as part of the batch.
type Store interface {
	// Open (re-)opens the store and reports whether it is open afterwards.
	// Opening an open store has no effect.
	Open() bool
	// Close releases the resources of the store. Subsequent operations fail
	// with ErrClosedStore until the store is opened again.
	Close() error
	IsOpen() bool
	IsClosed() bool

	// IsEmpty checks whether the store contains any key.
	IsEmpty() (bool, error)
	// Keys lists all keys of the store. The result is never nil.
	Keys() ([][]byte, error)

	Get(key []byte) ([]byte, bool, error)
	Put(key []byte, value []byte) error
	Delete(key []byte) error
	// PutBatch applies all updates of the batch atomically. Keys mapped to
	// nil are deleted.
	PutBatch(batch map[string][]byte) error
	DeleteBatch(keys [][]byte) error

	// Commit makes all changes durable. It is a no-op for auto-committing
	// stores.
	Commit() error

	// ApproximateSize estimates the size of the store on disk in bytes, or
	// returns -1 if the store does not support estimates.
	ApproximateSize() (int64, error)
	IsPersistent() bool
	// Path returns the storage location of persistent stores.
	Path() (string, bool)
}

// CheckKey verifies that the given key may be used for keyed operations.
func CheckKey(key []byte) error {
	if key == nil {
		return ErrInvalidKey
	}
	return nil
}

// CheckKeys verifies that none of the given keys is nil.
func CheckKeys(keys [][]byte) error {
	for _, key := range keys {
		if key == nil {
			return ErrInvalidKey
		}
	}
	return nil
}

// IsDelete reports whether the given value represents a deletion.
func IsDelete(value []byte) bool {
	return len(value) == 0
}
