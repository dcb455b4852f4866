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
	"encoding/hex"
	"fmt"
	"strings"

	geth "github.com/ethereum/go-ethereum/common"
)

// HashSize is the number of bytes of a content hash.
const HashSize = 32

// Hash is the content hash of a trie node or the hash of a block.
type Hash [HashSize]byte

func (h Hash) String() string {
	return fmt.Sprintf("%x", h[:])
}

// Bytes returns a copy of the hash as a byte slice.
func (h Hash) Bytes() []byte {
	res := make([]byte, HashSize)
	copy(res, h[:])
	return res
}

// ToGeth converts the hash into its go-ethereum counterpart.
func (h Hash) ToGeth() geth.Hash {
	return geth.Hash(h)
}

// HashFromBytes converts a byte slice into a hash. The slice must be exactly
// HashSize bytes long.
func HashFromBytes(data []byte) (Hash, bool) {
	var res Hash
	if len(data) != HashSize {
		return res, false
	}
	copy(res[:], data)
	return res, true
}

// ParseHash parses a hex encoded hash, with or without 0x prefix.
func ParseHash(s string) (Hash, error) {
	var res Hash
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	data, err := hex.DecodeString(s)
	if err != nil {
		return res, fmt.Errorf("invalid hash %q: %w", s, err)
	}
	if len(data) != HashSize {
		return res, fmt.Errorf("invalid hash %q: expected %d bytes, got %d", s, HashSize, len(data))
	}
	copy(res[:], data)
	return res, nil
}
