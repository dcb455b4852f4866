// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package cache

import (
	"sync"

	"github.com/Fantom-foundation/triedb/backend/store"
	"github.com/VictoriaMetrics/fastcache"
	"github.com/ethereum/go-ethereum/metrics"
)

var (
	cacheHitMeter  = metrics.NewRegisteredMeter("triedb/store/cache/hit", nil)
	cacheMissMeter = metrics.NewRegisteredMeter("triedb/store/cache/miss", nil)
)

// Store wraps a store and keeps a clean cache of recently read or written
// values. Writes go through to the wrapped store before the cache is updated.
type Store struct {
	mu    sync.RWMutex
	store store.Store
	cache *fastcache.Cache
}

// NewStore creates a new store wrapping the input one, and creates a new
// cache with the given capacity in bytes.
func NewStore(nested store.Store, cacheCapacity int) *Store {
	return &Store{
		store: nested,
		cache: fastcache.New(cacheCapacity),
	}
}

func (m *Store) Open() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.store.Open()
}

func (m *Store) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cache.Reset()
	return m.store.Close()
}

func (m *Store) IsOpen() bool {
	return m.store.IsOpen()
}

func (m *Store) IsClosed() bool {
	return m.store.IsClosed()
}

func (m *Store) IsEmpty() (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.store.IsEmpty()
}

func (m *Store) Keys() ([][]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.store.Keys()
}

func (m *Store) Get(key []byte) ([]byte, bool, error) {
	if err := store.CheckKey(key); err != nil {
		return nil, false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.store.IsClosed() {
		return nil, false, store.ErrClosedStore
	}
	if value, found := m.cache.HasGet(nil, key); found {
		cacheHitMeter.Mark(1)
		return value, true, nil
	}
	cacheMissMeter.Mark(1)
	value, found, err := m.store.Get(key)
	if err == nil && found {
		m.cache.Set(key, value)
	}
	return value, found, err
}

func (m *Store) Put(key []byte, value []byte) error {
	if err := store.CheckKey(key); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.store.Put(key, value); err != nil {
		return err
	}
	m.update(key, value)
	return nil
}

func (m *Store) Delete(key []byte) error {
	if err := store.CheckKey(key); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.store.Delete(key); err != nil {
		return err
	}
	m.cache.Del(key)
	return nil
}

func (m *Store) PutBatch(batch map[string][]byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.store.PutBatch(batch); err != nil {
		// the batch may have been partially applied by non-atomic stores
		for key := range batch {
			m.cache.Del([]byte(key))
		}
		return err
	}
	for key, value := range batch {
		m.update([]byte(key), value)
	}
	return nil
}

func (m *Store) DeleteBatch(keys [][]byte) error {
	if err := store.CheckKeys(keys); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	err := m.store.DeleteBatch(keys)
	for _, key := range keys {
		m.cache.Del(key)
	}
	return err
}

func (m *Store) update(key []byte, value []byte) {
	if store.IsDelete(value) {
		m.cache.Del(key)
	} else {
		m.cache.Set(key, value)
	}
}

func (m *Store) Commit() error {
	return m.store.Commit()
}

func (m *Store) ApproximateSize() (int64, error) {
	return m.store.ApproximateSize()
}

func (m *Store) IsPersistent() bool {
	return m.store.IsPersistent()
}

func (m *Store) Path() (string, bool) {
	return m.store.Path()
}

// Stats returns the statistics of the underlying cache.
func (m *Store) Stats() fastcache.Stats {
	var stats fastcache.Stats
	m.cache.UpdateStats(&stats)
	return stats
}
