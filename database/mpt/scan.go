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
	"strings"

	"github.com/Fantom-foundation/triedb/backend/store"
	"github.com/Fantom-foundation/triedb/common"
	mapset "github.com/deckarep/golang-set/v2"
)

// saveBatchSize is the number of nodes written to a target store per batch.
const saveBatchSize = 1024

// startHashes determines the stored nodes a scan starts from. The input is
// either the hash of a node or the encoding of a node, in which case the
// scan starts from its stored children.
func (t *Trie) startHashes(rootOrEncoded []byte) ([]common.Hash, error) {
	if len(rootOrEncoded) == 0 {
		return nil, nil
	}
	if hash, ok := common.HashFromBytes(rootOrEncoded); ok {
		if hash == EmptyRootHash(t.config.Hashing) {
			return nil, nil
		}
		return []common.Hash{hash}, nil
	}
	node, err := DecodeNode(rootOrEncoded)
	if err != nil {
		return nil, err
	}
	return childHashes(node, nil), nil
}

// MissingNodes collects the hashes of all nodes reachable from the given
// root that are not present in the node store. Missing nodes do not cause
// the scan to fail.
func (t *Trie) MissingNodes(rootOrEncoded []byte) (mapset.Set[common.Hash], error) {
	queue, err := t.startHashes(rootOrEncoded)
	if err != nil {
		return nil, err
	}
	res := mapset.NewThreadUnsafeSet[common.Hash]()
	visited := mapset.NewThreadUnsafeSet[common.Hash]()
	for len(queue) > 0 {
		hash := queue[0]
		queue = queue[1:]
		if !visited.Add(hash) {
			continue
		}
		node, found, err := t.cache.Get(hash)
		if err != nil {
			return nil, err
		}
		if !found {
			res.Add(hash)
			continue
		}
		queue = childHashes(node, queue)
	}
	return res, nil
}

// ReferencedNodes collects up to limit nodes reachable from the given root in
// breadth-first order, mapping their hashes to their encodings. Missing
// nodes are skipped. A non-positive limit yields an empty result.
func (t *Trie) ReferencedNodes(rootOrEncoded []byte, limit int) (map[common.Hash][]byte, error) {
	res := map[common.Hash][]byte{}
	if limit <= 0 {
		return res, nil
	}
	queue, err := t.startHashes(rootOrEncoded)
	if err != nil {
		return nil, err
	}
	visited := mapset.NewThreadUnsafeSet[common.Hash]()
	for len(queue) > 0 && len(res) < limit {
		hash := queue[0]
		queue = queue[1:]
		if !visited.Add(hash) {
			continue
		}
		entry, err := t.cache.lookup(hash)
		if err != nil {
			return nil, err
		}
		if entry == nil {
			continue
		}
		res[hash] = entry.encoded
		queue = childHashes(entry.node, queue)
	}
	return res, nil
}

// Keys returns the hashes of all stored nodes reachable from the given root.
func (t *Trie) Keys(root common.Hash) (mapset.Set[common.Hash], error) {
	res := mapset.NewThreadUnsafeSet[common.Hash]()
	err := t.VisitTrie(root, MakeVisitor(func(_ Node, info NodeInfo) VisitResponse {
		res.Add(info.Hash)
		return VisitResponseContinue
	}))
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Size returns the number of stored nodes reachable from the given root.
func (t *Trie) Size(root common.Hash) (int, error) {
	count := 0
	err := t.VisitTrie(root, MakeVisitor(func(Node, NodeInfo) VisitResponse {
		count++
		return VisitResponseContinue
	}))
	return count, err
}

// Dump produces a human readable listing of the nodes reachable from the
// given root, indented by their depth.
func (t *Trie) Dump(root common.Hash) (string, error) {
	var builder strings.Builder
	fmt.Fprintf(&builder, "root: %v\n", root)
	err := t.VisitTrie(root, MakeVisitor(func(node Node, info NodeInfo) VisitResponse {
		fmt.Fprintf(&builder, "%s%v => %v\n", strings.Repeat("  ", info.Depth), info.Hash, node)
		return VisitResponseContinue
	}))
	if err != nil {
		return "", err
	}
	return builder.String(), nil
}

// SaveFullState copies all stored nodes reachable from the given root into
// the target store and commits it. It returns the number of copied nodes.
func (t *Trie) SaveFullState(root common.Hash, target store.Store) (int, error) {
	return t.saveState(root, target, false)
}

// SaveDiffState is like SaveFullState but does not descend into sub-tries
// whose root is already present in the target store.
func (t *Trie) SaveDiffState(root common.Hash, target store.Store) (int, error) {
	return t.saveState(root, target, true)
}

func (t *Trie) saveState(root common.Hash, target store.Store, diff bool) (int, error) {
	count := 0
	batch := make(map[string][]byte, saveBatchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := target.PutBatch(batch); err != nil {
			return err
		}
		batch = make(map[string][]byte, saveBatchSize)
		return nil
	}

	var err error
	visitErr := t.VisitTrie(root, MakeVisitor(func(_ Node, info NodeInfo) VisitResponse {
		if diff {
			var present bool
			_, present, err = target.Get(info.Hash[:])
			if err != nil {
				return VisitResponseAbort
			}
			if present {
				return VisitResponsePrune
			}
		}
		batch[string(info.Hash[:])] = info.Encoded
		count++
		if len(batch) >= saveBatchSize {
			if err = flush(); err != nil {
				return VisitResponseAbort
			}
		}
		return VisitResponseContinue
	}))
	if visitErr != nil {
		return 0, visitErr
	}
	if err != nil {
		return 0, fmt.Errorf("failed to write nodes: %w", err)
	}
	if err := flush(); err != nil {
		return 0, fmt.Errorf("failed to write nodes: %w", err)
	}
	if err := target.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit target store: %w", err)
	}
	return count, nil
}
