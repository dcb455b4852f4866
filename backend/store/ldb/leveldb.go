// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package ldb

import (
	"errors"
	"sync"

	"github.com/Fantom-foundation/triedb/backend/store"
	"github.com/ethereum/go-ethereum/log"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// Store is a store.Store implementation backed by a LevelDB instance in a
// directory. LevelDB is safe for concurrent single-key operations; the lock
// of this type only guards the open/closed state of the database handle.
type Store struct {
	path    string
	options *opt.Options
	mu      sync.RWMutex
	db      *leveldb.DB
}

// OpenStore opens or creates a LevelDB store in the given directory.
func OpenStore(path string) (*Store, error) {
	return OpenStoreWithOptions(path, nil)
}

// OpenStoreWithOptions opens or creates a LevelDB store using the given
// LevelDB options. A nil options value uses LevelDB's defaults.
func OpenStoreWithOptions(path string, options *opt.Options) (*Store, error) {
	db, err := leveldb.OpenFile(path, options)
	if err != nil {
		return nil, err
	}
	return &Store{path: path, options: options, db: db}, nil
}

func (s *Store) Open() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db != nil {
		return true
	}
	db, err := leveldb.OpenFile(s.path, s.options)
	if err != nil {
		log.Error("Failed to open LevelDB store", "path", s.path, "err", err)
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

// access runs the given operation on the database if the store is open.
func (s *Store) access(op func(db *leveldb.DB) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return store.ErrClosedStore
	}
	return op(s.db)
}

func (s *Store) IsEmpty() (res bool, err error) {
	err = s.access(func(db *leveldb.DB) error {
		iter := db.NewIterator(nil, nil)
		defer iter.Release()
		res = !iter.Next()
		return iter.Error()
	})
	return
}

func (s *Store) Keys() (res [][]byte, err error) {
	res = [][]byte{}
	err = s.access(func(db *leveldb.DB) error {
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
	err = s.access(func(db *leveldb.DB) error {
		res, err := db.Get(key, nil)
		if errors.Is(err, leveldb.ErrNotFound) {
			return nil
		}
		if err != nil {
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
	return s.access(func(db *leveldb.DB) error {
		if store.IsDelete(value) {
			return db.Delete(key, nil)
		}
		return db.Put(key, value, nil)
	})
}

func (s *Store) Delete(key []byte) error {
	if err := store.CheckKey(key); err != nil {
		return err
	}
	return s.access(func(db *leveldb.DB) error {
		return db.Delete(key, nil)
	})
}

func (s *Store) PutBatch(batch map[string][]byte) error {
	return s.access(func(db *leveldb.DB) error {
		update := new(leveldb.Batch)
		for key, value := range batch {
			if store.IsDelete(value) {
				update.Delete([]byte(key))
			} else {
				update.Put([]byte(key), value)
			}
		}
		return db.Write(update, nil)
	})
}

func (s *Store) DeleteBatch(keys [][]byte) error {
	if err := store.CheckKeys(keys); err != nil {
		return err
	}
	return s.access(func(db *leveldb.DB) error {
		update := new(leveldb.Batch)
		for _, key := range keys {
			update.Delete(key)
		}
		return db.Write(update, nil)
	})
}

// Commit is a no-op since LevelDB writes are durable once acknowledged.
func (s *Store) Commit() error {
	return s.access(func(*leveldb.DB) error { return nil })
}

func (s *Store) ApproximateSize() (res int64, err error) {
	err = s.access(func(db *leveldb.DB) error {
		sizes, err := db.SizeOf([]util.Range{{}})
		if err != nil {
			return err
		}
		res = sizes.Sum()
		return nil
	})
	return
}

func (s *Store) IsPersistent() bool {
	return true
}

func (s *Store) Path() (string, bool) {
	return s.path, true
}
