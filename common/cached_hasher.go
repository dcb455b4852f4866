// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package common

import (
	lru "github.com/hashicorp/golang-lru"
)

// CachedHasher allows for hashing input keys.
// It caches the keys and returns an already cached value
// when it exists in the cache.
// If the key is not in the cache, it is hashed, stored in the cache
// and returned.
// This structure is safe for concurrent access.
type CachedHasher struct {
	algorithm HashAlgorithm
	cache     *lru.Cache // nil if caching is disabled
}

// NewCachedHasher creates a new hasher, that will use cache of computed hashes sized to the input capacity.
// If the capacity is set to zero, or negative, no cache will be used.
func NewCachedHasher(algorithm HashAlgorithm, cacheCapacity int) *CachedHasher {
	res := &CachedHasher{algorithm: algorithm}
	if cacheCapacity > 0 {
		// lru.New only fails for non-positive sizes
		res.cache, _ = lru.New(cacheCapacity)
	}
	return res
}

// Algorithm returns the hash algorithm used by this hasher.
func (h *CachedHasher) Algorithm() HashAlgorithm {
	return h.algorithm
}

// Hash hashes the input data. It uses an internal cache, returning the hash
// from the cache, if the input was already used and is retained in the cache.
func (h *CachedHasher) Hash(data []byte) Hash {
	if h.cache == nil {
		return h.algorithm.Hash(data)
	}
	if res, found := h.cache.Get(string(data)); found {
		return res.(Hash)
	}
	res := h.algorithm.Hash(data)
	h.cache.Add(string(data), res)
	return res
}

// Len returns the number of hashes currently retained in the cache.
func (h *CachedHasher) Len() int {
	if h.cache == nil {
		return 0
	}
	return h.cache.Len()
}
