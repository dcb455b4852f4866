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
	"github.com/Fantom-foundation/triedb/backend/store"
	"github.com/Fantom-foundation/triedb/common"
)

// SecureTrie is a Trie using the hashes of keys as navigation paths. This
// bounds the depth of the trie independently of the key distribution.
// All other operations are inherited from the wrapped Trie.
type SecureTrie struct {
	*Trie
	hasher *common.CachedHasher
}

// NewSecureTrie creates an empty secure trie backed by the given store.
func NewSecureTrie(source store.Store, config MptConfig) (*SecureTrie, error) {
	trie, err := NewTrie(source, config)
	if err != nil {
		return nil, err
	}
	return &SecureTrie{
		Trie:   trie,
		hasher: common.NewCachedHasher(config.Hashing, config.HashCacheCapacity),
	}, nil
}

func (t *SecureTrie) Get(key []byte) ([]byte, bool, error) {
	return t.Trie.Get(t.hashKey(key))
}

func (t *SecureTrie) Update(key []byte, value []byte) error {
	return t.Trie.Update(t.hashKey(key), value)
}

func (t *SecureTrie) Delete(key []byte) error {
	return t.Trie.Delete(t.hashKey(key))
}

// Copy creates an independent secure trie sharing the key hash cache.
func (t *SecureTrie) Copy() *SecureTrie {
	return &SecureTrie{
		Trie:   t.Trie.Copy(),
		hasher: t.hasher,
	}
}

func (t *SecureTrie) hashKey(key []byte) []byte {
	hash := t.hasher.Hash(key)
	return hash[:]
}
