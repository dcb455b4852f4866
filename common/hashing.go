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
	"fmt"
	"hash"
	"sync"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/sha3"
)

// HashAlgorithm selects the 256-bit content hash used for trie nodes and
// hashed keys. Changing the algorithm changes every root hash but none of
// the trie logic.
type HashAlgorithm byte

const (
	// Blake2b256 is the default content hash of the trie.
	Blake2b256 HashAlgorithm = iota
	// Keccak256 is the legacy Keccak variant used by Ethereum. It is used for
	// cross-checking root hashes against other implementations.
	Keccak256
)

var allHashAlgorithms = []HashAlgorithm{Blake2b256, Keccak256}

func (a HashAlgorithm) String() string {
	switch a {
	case Blake2b256:
		return "blake2b-256"
	case Keccak256:
		return "keccak-256"
	default:
		return fmt.Sprintf("unknown(%d)", byte(a))
	}
}

// ParseHashAlgorithm resolves an algorithm by its String() name.
func ParseHashAlgorithm(name string) (HashAlgorithm, error) {
	for _, cur := range allHashAlgorithms {
		if cur.String() == name {
			return cur, nil
		}
	}
	return 0, fmt.Errorf("unknown hash algorithm %q", name)
}

// NewHasher creates a fresh hasher instance for this algorithm.
func (a HashAlgorithm) NewHasher() hash.Hash {
	switch a {
	case Keccak256:
		return sha3.NewLegacyKeccak256()
	default:
		// only fails for keys longer than 64 bytes
		hasher, _ := blake2b.New256(nil)
		return hasher
	}
}

// Hash computes the hash of the given data using a pooled hasher.
func (a HashAlgorithm) Hash(data []byte) Hash {
	pool := a.pool()
	hasher := pool.getHasher()
	defer pool.returnHasher(hasher)
	return GetHash(hasher, data)
}

func (a HashAlgorithm) pool() *hasherPool {
	if a == Keccak256 {
		return keccakPool
	}
	return blake2bPool
}

var (
	blake2bPool = newHasherPool(Blake2b256)
	keccakPool  = newHasherPool(Keccak256)
)

// GetHash resets the given hasher and computes the hash of the data.
func GetHash(hasher hash.Hash, data []byte) (res Hash) {
	hasher.Reset()
	hasher.Write(data)
	copy(res[:], hasher.Sum(nil))
	return
}

// hasherPool is a synchronised pool of hashers. Whenever a hasher is required
// it is either returned from the pool, or created as new, if no hasher is available in the pool
type hasherPool struct {
	algorithm HashAlgorithm
	pool      []hash.Hash
	lock      *sync.Mutex
}

func newHasherPool(algorithm HashAlgorithm) *hasherPool {
	return &hasherPool{
		algorithm: algorithm,
		pool:      make([]hash.Hash, 0, 100),
		lock:      &sync.Mutex{},
	}
}

// getHasher returns a hasher. The hasher is either from the pool,
// or created as a new one.
func (p *hasherPool) getHasher() hash.Hash {
	p.lock.Lock()
	defer p.lock.Unlock()

	if len(p.pool) > 0 {
		hasher := p.pool[len(p.pool)-1]
		p.pool = p.pool[0 : len(p.pool)-1]
		return hasher
	}
	return p.algorithm.NewHasher()
}

// returnHasher returns the hasher back to the pool. It is not checked if the method was
// called at most once for the same hasher. It is up to the caller.
func (p *hasherPool) returnHasher(hasher hash.Hash) {
	p.lock.Lock()
	defer p.lock.Unlock()

	p.pool = append(p.pool, hasher)
}
