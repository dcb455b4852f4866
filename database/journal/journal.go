// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

// Package journal provides a store decorator deferring physical deletes
// until the block causing them is final. Inserts and deletes are recorded
// per block, such that the changes of abandoned forks can be rolled back and
// replaced data can be reclaimed once a block is confirmed.
package journal

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/Fantom-foundation/triedb/backend/store"
	"github.com/Fantom-foundation/triedb/common"
	mapset "github.com/deckarep/golang-set/v2"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/metrics"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

var (
	pruneMeter   = metrics.NewRegisteredMeter("triedb/journal/prune", nil)
	sweptMeter   = metrics.NewRegisteredMeter("triedb/journal/swept", nil)
	deletedMeter = metrics.NewRegisteredMeter("triedb/journal/deleted", nil)
)

// JournalEntry is the set of changes attributed to a single block.
type JournalEntry struct {
	BlockHash    common.Hash
	BlockNumber  uint64
	InsertedKeys mapset.Set[string]
	DeletedKeys  mapset.Set[string]
}

func newJournalEntry() *JournalEntry {
	return &JournalEntry{
		InsertedKeys: mapset.NewThreadUnsafeSet[string](),
		DeletedKeys:  mapset.NewThreadUnsafeSet[string](),
	}
}

func (e *JournalEntry) clone() JournalEntry {
	return JournalEntry{
		BlockHash:    e.BlockHash,
		BlockNumber:  e.BlockNumber,
		InsertedKeys: e.InsertedKeys.Clone(),
		DeletedKeys:  e.DeletedKeys.Clone(),
	}
}

// keyRef tracks the references to a key inserted through the journal.
// journalRefs counts the live entries and the current delta inserting the
// key, dbRef marks keys being part of the canonical state.
type keyRef struct {
	dbRef       bool
	journalRefs int
}

func (r *keyRef) total() int {
	if r.dbRef {
		return r.journalRefs + 1
	}
	return r.journalRefs
}

// PruneDataSource is a store.Store decorator deferring deletes. Writes are
// forwarded to the wrapped store immediately while deletes are recorded in
// the current delta. StoreBlockChanges attributes the current delta to a
// block, and Prune applies the deletes of a canonical block and rolls back
// the inserts of all competing blocks.
//
// While pruning is disabled, inserts are forwarded and deletes are dropped,
// so no data is ever removed from the wrapped store.
//
// A PruneDataSource is safe for concurrent use.
type PruneDataSource struct {
	mu      sync.RWMutex
	source  store.Store
	enabled atomic.Bool

	current *JournalEntry
	updates map[uint64][]*JournalEntry
	refs    map[string]*keyRef
}

// NewPruneDataSource creates a journal on top of the given store. Pruning
// is initially disabled.
func NewPruneDataSource(source store.Store) *PruneDataSource {
	return &PruneDataSource{
		source:  source,
		current: newJournalEntry(),
		updates: map[uint64][]*JournalEntry{},
		refs:    map[string]*keyRef{},
	}
}

// SetPruneEnabled enables or disables the recording of changes.
func (s *PruneDataSource) SetPruneEnabled(enabled bool) {
	s.enabled.Store(enabled)
}

func (s *PruneDataSource) IsPruneEnabled() bool {
	return s.enabled.Load()
}

func (s *PruneDataSource) Open() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.source.Open()
}

func (s *PruneDataSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.source.Close()
}

func (s *PruneDataSource) IsOpen() bool {
	return s.source.IsOpen()
}

func (s *PruneDataSource) IsClosed() bool {
	return s.source.IsClosed()
}

func (s *PruneDataSource) checkOpen() error {
	if s.source.IsClosed() {
		return store.ErrClosedStore
	}
	return nil
}

func (s *PruneDataSource) IsEmpty() (bool, error) {
	keys, err := s.Keys()
	if err != nil {
		return false, err
	}
	return len(keys) == 0, nil
}

// Keys lists the keys of the wrapped store, except for keys deleted in the
// current delta.
func (s *PruneDataSource) Keys() ([][]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys, err := s.source.Keys()
	if err != nil || s.current.DeletedKeys.Cardinality() == 0 {
		return keys, err
	}
	res := make([][]byte, 0, len(keys))
	for _, key := range keys {
		if !s.current.DeletedKeys.Contains(string(key)) {
			res = append(res, key)
		}
	}
	return res, nil
}

// Get fetches the value of the given key. Keys deleted in the current delta
// are reported absent although they are still present in the wrapped store.
func (s *PruneDataSource) Get(key []byte) ([]byte, bool, error) {
	if err := store.CheckKey(key); err != nil {
		return nil, false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return nil, false, err
	}
	if s.current.DeletedKeys.Contains(string(key)) {
		return nil, false, nil
	}
	return s.source.Get(key)
}

func (s *PruneDataSource) Put(key []byte, value []byte) error {
	if err := store.CheckKey(key); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return err
	}
	if store.IsDelete(value) {
		if s.enabled.Load() {
			s.current.DeletedKeys.Add(string(key))
		}
		return nil
	}
	if !s.enabled.Load() {
		return s.source.Put(key, value)
	}
	present, err := s.isPresent(string(key))
	if err != nil {
		return err
	}
	if err := s.source.Put(key, value); err != nil {
		return err
	}
	s.recordInsert(string(key), present)
	return nil
}

func (s *PruneDataSource) Delete(key []byte) error {
	return s.Put(key, nil)
}

func (s *PruneDataSource) PutBatch(batch map[string][]byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return err
	}
	inserts := make(map[string][]byte, len(batch))
	var deletes []string
	for key, value := range batch {
		if store.IsDelete(value) {
			deletes = append(deletes, key)
		} else {
			inserts[key] = value
		}
	}
	if !s.enabled.Load() {
		if len(inserts) == 0 {
			return nil
		}
		return s.source.PutBatch(inserts)
	}

	presence := make(map[string]bool, len(inserts))
	for key := range inserts {
		present, err := s.isPresent(key)
		if err != nil {
			return err
		}
		presence[key] = present
	}
	if len(inserts) > 0 {
		if err := s.source.PutBatch(inserts); err != nil {
			return err
		}
	}
	for key, present := range presence {
		s.recordInsert(key, present)
	}
	for _, key := range deletes {
		s.current.DeletedKeys.Add(key)
	}
	return nil
}

func (s *PruneDataSource) DeleteBatch(keys [][]byte) error {
	if err := store.CheckKeys(keys); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return err
	}
	if s.enabled.Load() {
		for _, key := range keys {
			s.current.DeletedKeys.Add(string(key))
		}
	}
	return nil
}

// isPresent checks whether a key not yet known to the journal is present in
// the wrapped store. It has to be called before the key is written.
func (s *PruneDataSource) isPresent(key string) (bool, error) {
	if _, found := s.refs[key]; found {
		return false, nil
	}
	_, present, err := s.source.Get([]byte(key))
	if err != nil {
		return false, fmt.Errorf("failed to check presence of key %x: %w", key, err)
	}
	return present, nil
}

// recordInsert registers the insertion of the key in the current delta once
// the key got written. The reference of a key not yet known to the journal
// is initialized with its presence before the write.
func (s *PruneDataSource) recordInsert(key string, present bool) {
	s.current.DeletedKeys.Remove(key)
	if !s.current.InsertedKeys.Add(key) {
		return
	}
	ref, found := s.refs[key]
	if !found {
		ref = &keyRef{dbRef: present}
		s.refs[key] = ref
	}
	ref.journalRefs++
}

// release drops a journal reference of the given key. Keys without
// journal references are forgotten.
func (s *PruneDataSource) release(key string) *keyRef {
	ref, found := s.refs[key]
	if !found {
		return &keyRef{}
	}
	ref.journalRefs--
	if ref.journalRefs <= 0 {
		delete(s.refs, key)
	}
	return ref
}

// refUpdate stages modifications of key references during a prune. They
// only take effect through apply, once the pruned keys got deleted.
type refUpdate struct {
	refs   map[string]*keyRef
	staged map[string]*keyRef // nil for forgotten keys
}

func (u *refUpdate) get(key string) *keyRef {
	if ref, found := u.staged[key]; found {
		return ref
	}
	ref, found := u.refs[key]
	if !found {
		return nil
	}
	clone := *ref
	u.staged[key] = &clone
	return &clone
}

// release is like PruneDataSource.release on the staged references.
func (u *refUpdate) release(key string) *keyRef {
	ref := u.get(key)
	if ref == nil {
		return &keyRef{}
	}
	ref.journalRefs--
	if ref.journalRefs <= 0 {
		u.staged[key] = nil
	}
	return ref
}

func (u *refUpdate) apply() {
	for key, ref := range u.staged {
		if ref == nil {
			delete(u.refs, key)
		} else {
			u.refs[key] = ref
		}
	}
}

func (s *PruneDataSource) Commit() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.source.Commit()
}

func (s *PruneDataSource) ApproximateSize() (int64, error) {
	return s.source.ApproximateSize()
}

func (s *PruneDataSource) IsPersistent() bool {
	return s.source.IsPersistent()
}

func (s *PruneDataSource) Path() (string, bool) {
	return s.source.Path()
}

// StoreBlockChanges attributes all changes since the last call to the given
// block and starts a new delta. Changes stored twice for the same block are
// merged into a single entry.
func (s *PruneDataSource) StoreBlockChanges(blockHash common.Hash, blockNumber uint64) {
	if !s.enabled.Load() {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	delta := s.current
	s.current = newJournalEntry()
	delta.BlockHash = blockHash
	delta.BlockNumber = blockNumber

	for _, entry := range s.updates[blockNumber] {
		if entry.BlockHash != blockHash {
			continue
		}
		delta.InsertedKeys.Each(func(key string) bool {
			entry.DeletedKeys.Remove(key)
			if !entry.InsertedKeys.Add(key) {
				s.release(key)
			}
			return false
		})
		entry.DeletedKeys = entry.DeletedKeys.Union(delta.DeletedKeys)
		log.Trace("Merged block changes", "number", blockNumber, "hash", blockHash,
			"inserted", entry.InsertedKeys.Cardinality(), "deleted", entry.DeletedKeys.Cardinality())
		return
	}
	s.updates[blockNumber] = append(s.updates[blockNumber], delta)
}

// Prune declares the given block canonical and final. Keys deleted by the
// block and not inserted again by any live change are removed from the
// wrapped store. All other blocks with a number not exceeding the given
// block number are treated as abandoned forks; keys only inserted by those
// blocks are removed. Pruning an unknown block has no effect.
func (s *PruneDataSource) Prune(blockHash common.Hash, blockNumber uint64) error {
	if !s.enabled.Load() {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	canonical := slices.IndexFunc(s.updates[blockNumber], func(entry *JournalEntry) bool {
		return entry.BlockHash == blockHash
	})
	if canonical < 0 {
		return nil
	}
	entry := s.updates[blockNumber][canonical]

	// references and entries are only modified after the deletes succeeded
	refs := &refUpdate{refs: s.refs, staged: map[string]*keyRef{}}
	deleted := map[string]struct{}{}
	entry.InsertedKeys.Each(func(key string) bool {
		refs.release(key).dbRef = true
		return false
	})
	entry.DeletedKeys.Each(func(key string) bool {
		if ref := refs.get(key); ref == nil || ref.journalRefs == 0 {
			deleted[key] = struct{}{}
		} else {
			ref.dbRef = false
		}
		return false
	})

	heights := maps.Keys(s.updates)
	slices.Sort(heights)
	processed := make([]uint64, 0, len(heights))
	swept := 0
	for _, height := range heights {
		if height > blockNumber {
			break
		}
		for _, fork := range s.updates[height] {
			if fork == entry {
				continue
			}
			fork.InsertedKeys.Each(func(key string) bool {
				if refs.release(key).total() == 0 {
					deleted[key] = struct{}{}
				}
				return false
			})
			swept++
		}
		processed = append(processed, height)
	}

	if len(deleted) > 0 {
		keys := make([][]byte, 0, len(deleted))
		for key := range deleted {
			keys = append(keys, []byte(key))
		}
		if err := s.source.DeleteBatch(keys); err != nil {
			return fmt.Errorf("failed to delete pruned keys of block %d: %w", blockNumber, err)
		}
	}
	refs.apply()
	for _, height := range processed {
		delete(s.updates, height)
	}

	pruneMeter.Mark(1)
	sweptMeter.Mark(int64(swept))
	deletedMeter.Mark(int64(len(deleted)))
	log.Debug("Pruned block", "number", blockNumber, "hash", blockHash, "deleted", len(deleted), "swept", swept)
	return nil
}

// InsertedKeysCount returns the number of keys inserted in the current delta.
func (s *PruneDataSource) InsertedKeysCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.InsertedKeys.Cardinality()
}

// DeletedKeysCount returns the number of keys deleted in the current delta.
func (s *PruneDataSource) DeletedKeysCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.DeletedKeys.Cardinality()
}

// BlockUpdates returns copies of all entries not pruned yet, ordered by
// block number.
func (s *PruneDataSource) BlockUpdates() []JournalEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	heights := maps.Keys(s.updates)
	slices.Sort(heights)
	res := []JournalEntry{}
	for _, height := range heights {
		for _, entry := range s.updates[height] {
			res = append(res, entry.clone())
		}
	}
	return res
}
