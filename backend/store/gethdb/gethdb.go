// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package gethdb

import (
	"fmt"
	"sync"

	"github.com/Fantom-foundation/triedb/backend/store"
	"github.com/ethereum/go-ethereum/ethdb"
	"github.com/ethereum/go-ethereum/ethdb/leveldb"
	"github.com/ethereum/go-ethereum/ethdb/memorydb"
)

// Store exposes a go-ethereum key/value database as a store.Store. It is
// used for in-memory stores based on geth's memorydb and for geth's own
// LevelDB wrapper, which adds metrics and compaction tuning on top of
// goleveldb.
type Store struct {
	mu         sync.RWMutex
	db         ethdb.KeyValueStore
	open       func() (ethdb.KeyValueStore, error)
	path       string
	persistent bool
}

// NewMemoryStore creates an empty in-memory store. Re-opening a closed
// memory store yields an empty store.
func NewMemoryStore() *Store {
	res := &Store{
		open: func() (ethdb.KeyValueStore, error) {
			return memorydb.New(), nil
		},
	}
	res.Open()
	return res
}

// OpenLevelDBStore opens a store backed by geth's LevelDB wrapper in the
// given directory. The cache size is given in MiB.
func OpenLevelDBStore(path string, cache int, handles int) (*Store, error) {
	res := &Store{
		open: func() (ethdb.KeyValueStore, error) {
			return leveldb.New(path, cache, handles, "triedb/gethdb/", false)
		},
		path:       path,
		persistent: true,
	}
	db, err := res.open()
	if err != nil {
		return nil, err
	}
	res.db = db
	return res, nil
}

// Wrap exposes an existing geth database. Once closed, the store can not be
// re-opened.
func Wrap(db ethdb.KeyValueStore) *Store {
	return &Store{
		db: db,
		open: func() (ethdb.KeyValueStore, error) {
			return nil, fmt.Errorf("wrapped databases can not be re-opened")
		},
	}
}

func (s *Store) Open() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db != nil {
		return true
	}
	db, err := s.open()
	if err != nil {
		return false
	}
	s.db = db
	return true
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *Store) IsOpen() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.db != nil
}

func (s *Store) IsClosed() bool {
	return !s.IsOpen()
}

func (s *Store) access(op func(db ethdb.KeyValueStore) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return store.ErrClosedStore
	}
	return op(s.db)
}

func (s *Store) IsEmpty() (res bool, err error) {
	err = s.access(func(db ethdb.KeyValueStore) error {
		iter := db.NewIterator(nil, nil)
		defer iter.Release()
		res = !iter.Next()
		return iter.Error()
	})
	return
}

func (s *Store) Keys() (res [][]byte, err error) {
	res = [][]byte{}
	err = s.access(func(db ethdb.KeyValueStore) error {
		iter := db.NewIterator(nil, nil)
		defer iter.Release()
		for iter.Next() {
			key := make([]byte, len(iter.Key()))
			copy(key, iter.Key())
			res = append(res, key)
		}
		return iter.Error()
	})
	return
}

func (s *Store) Get(key []byte) (value []byte, found bool, err error) {
	if err := store.CheckKey(key); err != nil {
		return nil, false, err
	}
	err = s.access(func(db ethdb.KeyValueStore) error {
		res, err := db.Get(key)
		if err != nil {
			// geth databases signal missing keys through backend specific errors
			if has, hasErr := db.Has(key); hasErr == nil && !has {
				return nil
			}
			return err
		}
		value, found = res, true
		return nil
	})
	return
}

func (s *Store) Put(key []byte, value []byte) error {
	if err := store.CheckKey(key); err != nil {
		return err
	}
	return s.access(func(db ethdb.KeyValueStore) error {
		if store.IsDelete(value) {
			return db.Delete(key)
		}
		return db.Put(key, value)
	})
}

func (s *Store) Delete(key []byte) error {
	if err := store.CheckKey(key); err != nil {
		return err
	}
	return s.access(func(db ethdb.KeyValueStore) error {
		return db.Delete(key)
	})
}

func (s *Store) PutBatch(batch map[string][]byte) error {
	return s.access(func(db ethdb.KeyValueStore) error {
		update := db.NewBatch()
		for key, value := range batch {
			var err error
			if store.IsDelete(value) {
				err = update.Delete([]byte(key))
			} else {
				err = update.Put([]byte(key), value)
			}
			if err != nil {
				return err
			}
		}
		return update.Write()
	})
}

func (s *Store) DeleteBatch(keys [][]byte) error {
	if err := store.CheckKeys(keys); err != nil {
		return err
	}
	return s.access(func(db ethdb.KeyValueStore) error {
		update := db.NewBatch()
		for _, key := range keys {
			if err := update.Delete(key); err != nil {
				return err
			}
		}
		return update.Write()
	})
}

func (s *Store) Commit() error {
	return s.access(func(ethdb.KeyValueStore) error { return nil })
}

// ApproximateSize is not supported by geth's database interface.
func (s *Store) ApproximateSize() (int64, error) {
	return -1, s.access(func(ethdb.KeyValueStore) error { return nil })
}

func (s *Store) IsPersistent() bool {
	return s.persistent
}

func (s *Store) Path() (string, bool) {
	return s.path, s.persistent
}
