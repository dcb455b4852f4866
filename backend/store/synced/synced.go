// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package synced

import (
	"sync"

	"github.com/Fantom-foundation/triedb/backend/store"
)

type syncedStore struct {
	mu     sync.Mutex
	nested store.Store
}

// Sync wraps the provided store into a synchronizing wrapper making sure that
// at any time only one operation is performed on the given store.
func Sync(nested store.Store) store.Store {
	if res, ok := nested.(*syncedStore); ok {
		return res
	}
	return &syncedStore{nested: nested}
}

func (s *syncedStore) Open() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nested.Open()
}

func (s *syncedStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nested.Close()
}

func (s *syncedStore) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nested.IsOpen()
}

func (s *syncedStore) IsClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nested.IsClosed()
}

func (s *syncedStore) IsEmpty() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nested.IsEmpty()
}

func (s *syncedStore) Keys() ([][]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nested.Keys()
}

func (s *syncedStore) Get(key []byte) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nested.Get(key)
}

func (s *syncedStore) Put(key []byte, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nested.Put(key, value)
}

func (s *syncedStore) Delete(key []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nested.Delete(key)
}

func (s *syncedStore) PutBatch(batch map[string][]byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nested.PutBatch(batch)
}

func (s *syncedStore) DeleteBatch(keys [][]byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nested.DeleteBatch(keys)
}

func (s *syncedStore) Commit() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nested.Commit()
}

func (s *syncedStore) ApproximateSize() (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nested.ApproximateSize()
}

func (s *syncedStore) IsPersistent() bool {
	return s.nested.IsPersistent()
}

func (s *syncedStore) Path() (string, bool) {
	return s.nested.Path()
}
