// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package mpt

import (
	"fmt"

	"github.com/Fantom-foundation/triedb/backend/store"
	"github.com/Fantom-foundation/triedb/common"
	mapset "github.com/deckarep/golang-set/v2"
)

// NodeCache retains the nodes of a trie in memory, indexed by their content
// hash. Nodes are either clean, i.e. identical to the content of the backing
// store, or dirty, i.e. created since the last commit. Every node is
// retained together with its canonical encoding, which hashes to the key it
// is indexed by.
//
// Dirtiness is tracked through generations: every commit starts a new
// generation and entries created in the current generation are dirty.
// A NodeCache is not safe for concurrent use.
type NodeCache struct {
	source     store.Store
	algorithm  common.HashAlgorithm
	entries    map[common.Hash]*cacheEntry
	removed    mapset.Set[common.Hash]
	generation uint64 // the generation of entries added now
	synced     uint64 // the last committed generation
	maxClean   int    // the number of clean entries retained after a commit
}

type cacheEntry struct {
	node       Node
	encoded    []byte
	generation uint64 // 0 for entries loaded from the backing store
}

// defaultMaxCleanEntries is the number of clean nodes kept in memory between
// commits.
const defaultMaxCleanEntries = 1 << 18

// NewNodeCache creates an empty cache backed by the given store.
func NewNodeCache(source store.Store, algorithm common.HashAlgorithm) *NodeCache {
	return &NodeCache{
		source:     source,
		algorithm:  algorithm,
		entries:    map[common.Hash]*cacheEntry{},
		removed:    mapset.NewThreadUnsafeSet[common.Hash](),
		generation: 1,
		maxClean:   defaultMaxCleanEntries,
	}
}

// Put registers a node with its encoding as a dirty entry and returns the
// node's hash. Putting a node that was marked removed revives it.
func (c *NodeCache) Put(node Node, encoded []byte) common.Hash {
	hash := c.algorithm.Hash(encoded)
	c.removed.Remove(hash)
	if entry, found := c.entries[hash]; found && entry.generation <= c.synced {
		// clean entries are already present in the backing store
		return hash
	}
	c.entries[hash] = &cacheEntry{node: node, encoded: encoded, generation: c.generation}
	return hash
}

// Get resolves the node with the given hash. Nodes not present in the cache
// are loaded from the backing store. Absent nodes are reported through the
// boolean result.
func (c *NodeCache) Get(hash common.Hash) (Node, bool, error) {
	entry, err := c.lookup(hash)
	if err != nil || entry == nil {
		return nil, false, err
	}
	return entry.node, true, nil
}

// GetEncoded returns the canonical encoding of the node with the given hash.
func (c *NodeCache) GetEncoded(hash common.Hash) ([]byte, bool, error) {
	entry, err := c.lookup(hash)
	if err != nil || entry == nil {
		return nil, false, err
	}
	return entry.encoded, true, nil
}

func (c *NodeCache) lookup(hash common.Hash) (*cacheEntry, error) {
	if entry, found := c.entries[hash]; found {
		return entry, nil
	}
	data, found, err := c.source.Get(hash[:])
	if err != nil {
		return nil, fmt.Errorf("failed to load node %v: %w", hash, err)
	}
	if !found {
		return nil, nil
	}
	node, err := DecodeNode(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode node %v: %w", hash, err)
	}
	entry := &cacheEntry{node: node, encoded: data}
	c.entries[hash] = entry
	return entry, nil
}

// MarkRemoved schedules the deletion of the node with the given hash from
// the backing store on the next commit. Nodes still reachable from the
// committed root are retained.
func (c *NodeCache) MarkRemoved(hash common.Hash) {
	c.removed.Add(hash)
	if entry, found := c.entries[hash]; found && entry.generation <= c.synced {
		delete(c.entries, hash)
	}
}

// IsDirty is true if there are uncommitted changes.
func (c *NodeCache) IsDirty() bool {
	if c.removed.Cardinality() > 0 {
		return true
	}
	for _, entry := range c.entries {
		if entry.generation > c.synced {
			return true
		}
	}
	return false
}

// Size returns the number of nodes currently retained in memory.
func (c *NodeCache) Size() int {
	return len(c.entries)
}

// Commit writes all dirty nodes reachable from the given root and the
// deletion of removed nodes no longer reachable from it to the backing
// store in a single batch. A root embedded in its reference is stored as
// well, to be resolvable through its hash. Dirty nodes not reachable from
// the root are dropped. If flush is set, the backing store is committed as
// well. It returns the number of written and removed nodes.
func (c *NodeCache) Commit(root NodeRef, flush bool) (int, int, error) {
	if node, ok := root.Embedded(); ok {
		root = NewHashRef(c.Put(node, EncodeNode(node)))
	}
	batch := map[string][]byte{}
	if hash, ok := root.Hash(); ok {
		c.collectDirty(hash, batch)
	}
	written := len(batch)
	obsolete := mapset.NewThreadUnsafeSet[common.Hash]()
	c.removed.Each(func(hash common.Hash) bool {
		if _, reachable := batch[string(hash[:])]; !reachable {
			obsolete.Add(hash)
		}
		return false
	})
	if hash, ok := root.Hash(); ok && obsolete.Cardinality() > 0 {
		if err := c.retainReachable(hash, obsolete); err != nil {
			return 0, 0, err
		}
	}
	obsolete.Each(func(hash common.Hash) bool {
		batch[string(hash[:])] = nil
		return false
	})
	removed := len(batch) - written

	if len(batch) > 0 {
		if err := c.source.PutBatch(batch); err != nil {
			return 0, 0, fmt.Errorf("failed to write nodes: %w", err)
		}
	}
	if flush {
		if err := c.source.Commit(); err != nil {
			return 0, 0, fmt.Errorf("failed to commit node store: %w", err)
		}
	}

	for hash, entry := range c.entries {
		if encoded := batch[string(hash[:])]; entry.generation > c.synced && encoded == nil {
			delete(c.entries, hash)
		}
	}
	c.synced = c.generation
	c.generation++
	c.removed.Clear()
	if len(c.entries) > c.maxClean {
		c.entries = map[common.Hash]*cacheEntry{}
	}
	return written, removed, nil
}

// collectDirty adds the encodings of all dirty nodes reachable from the node
// with the given hash to the batch. Clean nodes only have clean descendants.
func (c *NodeCache) collectDirty(hash common.Hash, batch map[string][]byte) {
	entry, found := c.entries[hash]
	if !found || entry.generation <= c.synced {
		return
	}
	key := string(hash[:])
	if _, done := batch[key]; done {
		return
	}
	batch[key] = entry.encoded
	for _, child := range childHashes(entry.node, nil) {
		c.collectDirty(child, batch)
	}
}

// retainReachable drops all nodes reachable from the node with the given
// hash from the obsolete set. A node replaced on one path may still be
// referenced on another path of the same trie.
func (c *NodeCache) retainReachable(root common.Hash, obsolete mapset.Set[common.Hash]) error {
	visited := mapset.NewThreadUnsafeSet[common.Hash]()
	stack := []common.Hash{root}
	for len(stack) > 0 && obsolete.Cardinality() > 0 {
		hash := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if !visited.Add(hash) {
			continue
		}
		obsolete.Remove(hash)
		entry, err := c.lookup(hash)
		if err != nil {
			return err
		}
		if entry != nil {
			stack = childHashes(entry.node, stack)
		}
	}
	return nil
}

// Undo drops all changes since the last commit.
func (c *NodeCache) Undo() {
	for hash, entry := range c.entries {
		if entry.generation > c.synced {
			delete(c.entries, hash)
		}
	}
	c.removed.Clear()
}

// Copy creates an independent cache sharing the backing store. Nodes are
// immutable and shared among the copies.
func (c *NodeCache) Copy() *NodeCache {
	entries := make(map[common.Hash]*cacheEntry, len(c.entries))
	for hash, entry := range c.entries {
		entries[hash] = entry
	}
	return &NodeCache{
		source:     c.source,
		algorithm:  c.algorithm,
		entries:    entries,
		removed:    c.removed.Clone(),
		generation: c.generation,
		synced:     c.synced,
		maxClean:   c.maxClean,
	}
}
