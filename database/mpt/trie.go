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
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/Fantom-foundation/triedb/backend/store"
	"github.com/Fantom-foundation/triedb/common"
	"github.com/Fantom-foundation/triedb/database/mpt/rlp"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/metrics"
)

var syncTimer = metrics.NewRegisteredTimer("triedb/trie/sync", nil)

// Trie is a Merkle Patricia Trie mapping byte-string keys to byte-string
// values, using Ethereum's node layout and encoding. Nodes are addressed by
// their content hash and retained in a NodeCache backed by a key/value
// store. Updates are copy-on-write: modified nodes and all their ancestors
// are replaced by new nodes, which are written to the store on Sync.
//
// A Trie is not safe for concurrent use. Callers need to serialize all
// operations on a single instance; independent instances created through
// Copy may be used concurrently.
type Trie struct {
	config     MptConfig
	source     store.Store
	cache      *NodeCache
	root       NodeRef
	syncedRoot NodeRef
	pruning    bool
}

// NewTrie creates an empty trie backed by the given store.
func NewTrie(source store.Store, config MptConfig) (*Trie, error) {
	if source == nil {
		return nil, fmt.Errorf("no node store provided")
	}
	if err := config.validate(); err != nil {
		return nil, err
	}
	return &Trie{
		config:  config,
		source:  source,
		cache:   NewNodeCache(source, config.Hashing),
		pruning: config.PruningEnabled,
	}, nil
}

// EmptyRootHash returns the root hash of an empty trie under the given
// hashing algorithm, the hash of the encoding of the empty string.
func EmptyRootHash(algorithm common.HashAlgorithm) common.Hash {
	return algorithm.Hash(rlp.Encode(rlp.String{}))
}

// Config returns the configuration this trie was created with.
func (t *Trie) Config() MptConfig {
	return t.config
}

// Root returns a reference to the current root node.
func (t *Trie) Root() NodeRef {
	return t.root
}

// SetRoot resets the trie to the given root. Both references obtained from
// Root and references to committed nodes are accepted.
func (t *Trie) SetRoot(root NodeRef) {
	t.root = root
}

// SetRootHash resets the trie to the committed root with the given hash.
// The hash of the empty trie results in an empty trie.
func (t *Trie) SetRootHash(hash common.Hash) {
	if hash == EmptyRootHash(t.config.Hashing) {
		t.root = NodeRef{}
		return
	}
	t.root = NewHashRef(hash)
}

// RootHash computes the hash of the current root node.
func (t *Trie) RootHash() common.Hash {
	if hash, ok := t.root.Hash(); ok {
		return hash
	}
	if node, ok := t.root.Embedded(); ok {
		return t.config.Hashing.Hash(EncodeNode(node))
	}
	return EmptyRootHash(t.config.Hashing)
}

// SetPruningEnabled controls whether nodes replaced by updates are deleted
// from the backing store on the next sync.
func (t *Trie) SetPruningEnabled(enabled bool) {
	t.pruning = enabled
}

// IsPruningEnabled reports whether replaced nodes get deleted.
func (t *Trie) IsPruningEnabled() bool {
	return t.pruning
}

// IsDirty is true if there are changes not yet synced.
func (t *Trie) IsDirty() bool {
	return t.root != t.syncedRoot || t.cache.IsDirty()
}

// Get looks up the value associated to the given key.
func (t *Trie) Get(key []byte) ([]byte, bool, error) {
	path := KeyToNibblePath(key)
	ref := t.root
	for {
		node, err := t.resolve(ref)
		if err != nil {
			return nil, false, err
		}
		switch n := node.(type) {
		case EmptyNode:
			return nil, false, nil
		case *LeafNode:
			if !equalPath(n.Path, path) {
				return nil, false, nil
			}
			return bytes.Clone(n.Value), true, nil
		case *ExtensionNode:
			if !IsPrefixOf(n.Path, path) {
				return nil, false, nil
			}
			path = path[len(n.Path):]
			ref = n.Child
		case *BranchNode:
			if len(path) == 0 {
				return bytes.Clone(n.Value), n.Value != nil, nil
			}
			ref = n.Children[path[0]]
			path = path[1:]
		default:
			return nil, false, fmt.Errorf("unsupported node type %T", node)
		}
	}
}

// Update associates the given value to the key. An empty value deletes the
// key.
func (t *Trie) Update(key []byte, value []byte) error {
	if len(value) == 0 {
		return t.Delete(key)
	}
	root, err := t.insert(t.root, KeyToNibblePath(key), bytes.Clone(value))
	if err != nil {
		return err
	}
	t.root = root
	return nil
}

// Delete removes the given key from the trie. Deleting a missing key is a
// no-op.
func (t *Trie) Delete(key []byte) error {
	root, _, err := t.delete(t.root, KeyToNibblePath(key))
	if err != nil {
		return err
	}
	t.root = root
	return nil
}

// Sync writes all modified nodes to the backing store. If pruning is
// enabled, replaced nodes are deleted. If flush is set, the backing store
// is committed as well.
func (t *Trie) Sync(flush bool) error {
	start := time.Now()
	// small roots are stored on sync although their parents embed them
	if node, ok := t.syncedRoot.Embedded(); ok && t.pruning {
		if old := t.config.Hashing.Hash(EncodeNode(node)); old != t.RootHash() {
			t.cache.MarkRemoved(old)
		}
	}
	written, removed, err := t.cache.Commit(t.root, flush)
	if err != nil {
		return err
	}
	t.syncedRoot = t.root
	syncTimer.UpdateSince(start)
	log.Trace("Synced trie", "nodes", written, "removed", removed, "root", t.RootHash())
	return nil
}

// Commit syncs the trie and commits the backing store.
func (t *Trie) Commit() error {
	return t.Sync(true)
}

// Undo discards all changes since the last sync.
func (t *Trie) Undo() {
	t.cache.Undo()
	t.root = t.syncedRoot
}

// Copy creates an independent trie sharing the backing store and the
// current root. Modifications of either trie do not affect the other.
func (t *Trie) Copy() *Trie {
	return &Trie{
		config:     t.config,
		source:     t.source,
		cache:      t.cache.Copy(),
		root:       t.root,
		syncedRoot: t.syncedRoot,
		pruning:    t.pruning,
	}
}

// IsValidRoot checks whether the root node with the given hash can be
// resolved.
func (t *Trie) IsValidRoot(hash common.Hash) bool {
	if hash == EmptyRootHash(t.config.Hashing) {
		return true
	}
	_, found, err := t.cache.Get(hash)
	return err == nil && found
}

// Validate checks that all nodes reachable from the current root can be
// resolved. Missing nodes are reported through an error wrapping
// ErrMissingNode.
func (t *Trie) Validate() error {
	var start []byte
	if hash, ok := t.root.Hash(); ok {
		start = hash[:]
	} else if node, ok := t.root.Embedded(); ok {
		start = EncodeNode(node)
	} else {
		return nil
	}
	missing, err := t.MissingNodes(start)
	if err != nil {
		return err
	}
	if missing.Cardinality() > 0 {
		return fmt.Errorf("%w: %d nodes missing, including %v", ErrMissingNode, missing.Cardinality(), missing.ToSlice()[0])
	}
	return nil
}

func (t *Trie) resolve(ref NodeRef) (Node, error) {
	if node, ok := ref.Embedded(); ok {
		return node, nil
	}
	hash, ok := ref.Hash()
	if !ok {
		return EmptyNode{}, nil
	}
	node, found, err := t.cache.Get(hash)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("%w: %v", ErrMissingNode, hash)
	}
	return node, nil
}

// store registers a new node and returns the reference to be used by its
// parent. Nodes with an encoding shorter than a hash are embedded.
func (t *Trie) store(node Node) NodeRef {
	encoded := EncodeNode(node)
	if len(encoded) < common.HashSize {
		return NewEmbeddedRef(node)
	}
	return NewHashRef(t.cache.Put(node, encoded))
}

// markRemoved schedules the deletion of the referenced node if pruning is
// enabled.
func (t *Trie) markRemoved(ref NodeRef) {
	if !t.pruning {
		return
	}
	if hash, ok := ref.Hash(); ok {
		t.cache.MarkRemoved(hash)
	}
}

func (t *Trie) insert(ref NodeRef, path []Nibble, value []byte) (NodeRef, error) {
	node, err := t.resolve(ref)
	if err != nil {
		return NodeRef{}, err
	}
	var res Node
	switch n := node.(type) {
	case EmptyNode:
		return t.store(&LeafNode{Path: path, Value: value}), nil

	case *LeafNode:
		if equalPath(n.Path, path) {
			if bytes.Equal(n.Value, value) {
				return ref, nil
			}
			res = &LeafNode{Path: n.Path, Value: value}
			break
		}
		shared := GetCommonPrefixLength(n.Path, path)
		branch := &BranchNode{}
		t.addToBranch(branch, n.Path[shared:], n.Value)
		t.addToBranch(branch, path[shared:], value)
		res = t.withPrefix(path[:shared], branch)

	case *ExtensionNode:
		shared := GetCommonPrefixLength(n.Path, path)
		if shared == len(n.Path) {
			child, err := t.insert(n.Child, path[shared:], value)
			if err != nil {
				return NodeRef{}, err
			}
			if child == n.Child {
				return ref, nil
			}
			res = &ExtensionNode{Path: n.Path, Child: child}
			break
		}
		branch := &BranchNode{}
		if shared+1 == len(n.Path) {
			branch.Children[n.Path[shared]] = n.Child
		} else {
			branch.Children[n.Path[shared]] = t.store(&ExtensionNode{Path: n.Path[shared+1:], Child: n.Child})
		}
		t.addToBranch(branch, path[shared:], value)
		res = t.withPrefix(path[:shared], branch)

	case *BranchNode:
		updated := *n
		if len(path) == 0 {
			if bytes.Equal(n.Value, value) {
				return ref, nil
			}
			updated.Value = value
		} else {
			child, err := t.insert(n.Children[path[0]], path[1:], value)
			if err != nil {
				return NodeRef{}, err
			}
			if child == n.Children[path[0]] {
				return ref, nil
			}
			updated.Children[path[0]] = child
		}
		res = &updated

	default:
		return NodeRef{}, fmt.Errorf("unsupported node type %T", node)
	}
	t.markRemoved(ref)
	return t.store(res), nil
}

// addToBranch places a value at the given path below a new branch node.
func (t *Trie) addToBranch(branch *BranchNode, path []Nibble, value []byte) {
	if len(path) == 0 {
		branch.Value = value
		return
	}
	branch.Children[path[0]] = t.store(&LeafNode{Path: path[1:], Value: value})
}

func (t *Trie) withPrefix(prefix []Nibble, branch *BranchNode) Node {
	if len(prefix) == 0 {
		return branch
	}
	return &ExtensionNode{Path: prefix, Child: t.store(branch)}
}

// delete removes the given path from the referenced sub-trie. It returns
// the reference to the resulting sub-trie and whether it was modified.
func (t *Trie) delete(ref NodeRef, path []Nibble) (NodeRef, bool, error) {
	node, err := t.resolve(ref)
	if err != nil {
		return NodeRef{}, false, err
	}
	switch n := node.(type) {
	case EmptyNode:
		return ref, false, nil

	case *LeafNode:
		if !equalPath(n.Path, path) {
			return ref, false, nil
		}
		t.markRemoved(ref)
		return NodeRef{}, true, nil

	case *ExtensionNode:
		if !IsPrefixOf(n.Path, path) {
			return ref, false, nil
		}
		child, changed, err := t.delete(n.Child, path[len(n.Path):])
		if err != nil || !changed {
			return ref, false, err
		}
		t.markRemoved(ref)
		res, err := t.extend(n.Path, child)
		return res, true, err

	case *BranchNode:
		updated := *n
		if len(path) == 0 {
			if n.Value == nil {
				return ref, false, nil
			}
			updated.Value = nil
		} else {
			child, changed, err := t.delete(n.Children[path[0]], path[1:])
			if err != nil || !changed {
				return ref, false, err
			}
			updated.Children[path[0]] = child
		}
		t.markRemoved(ref)
		res, err := t.collapse(&updated)
		return res, true, err
	}
	return NodeRef{}, false, fmt.Errorf("unsupported node type %T", node)
}

// extend prepends the given path to the referenced sub-trie, merging it
// into leaf and extension nodes.
func (t *Trie) extend(prefix []Nibble, child NodeRef) (NodeRef, error) {
	if len(prefix) == 0 || child.IsEmpty() {
		return child, nil
	}
	node, err := t.resolve(child)
	if err != nil {
		return NodeRef{}, err
	}
	switch c := node.(type) {
	case *LeafNode:
		t.markRemoved(child)
		return t.store(&LeafNode{Path: concat(prefix, c.Path), Value: c.Value}), nil
	case *ExtensionNode:
		t.markRemoved(child)
		return t.store(&ExtensionNode{Path: concat(prefix, c.Path), Child: c.Child}), nil
	}
	return t.store(&ExtensionNode{Path: prefix, Child: child}), nil
}

// collapse replaces branch nodes left with a single child or only a value by
// an equivalent shorter structure.
func (t *Trie) collapse(branch *BranchNode) (NodeRef, error) {
	count, pos := branch.numChildren()
	switch {
	case count == 0 && branch.Value == nil:
		return NodeRef{}, nil
	case count == 0:
		return t.store(&LeafNode{Path: []Nibble{}, Value: branch.Value}), nil
	case count == 1 && branch.Value == nil:
		return t.extend([]Nibble{Nibble(pos)}, branch.Children[pos])
	}
	return t.store(branch), nil
}

func equalPath(a, b []Nibble) bool {
	return len(a) == len(b) && GetCommonPrefixLength(a, b) == len(a)
}

// IsMissingNode is true if the given error reports a missing trie node.
func IsMissingNode(err error) bool {
	return errors.Is(err, ErrMissingNode)
}
