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
)

// Nibble is a 4-bit unsigned integer in the range 0-F. It is a single letter
// used to navigate in the MPT structure.
type Nibble byte

// Rune converts a Nibble in a hexa-decimal rune (0-9a-f).
func (n Nibble) Rune() rune {
	if n < 10 {
		return rune('0' + n)
	} else if n < 16 {
		return rune('a' + n - 10)
	} else {
		return '?'
	}
}

// String converts a Nibble in a hexa-decimal string (0-9a-f).
func (n Nibble) String() string {
	return string(n.Rune())
}

// KeyToNibblePath converts the given key into a slice of Nibbles, high
// nibble of each byte first.
func KeyToNibblePath(key []byte) []Nibble {
	res := make([]Nibble, len(key)*2)
	parseNibbles(res, key)
	return res
}

func parseNibbles(dst []Nibble, src []byte) {
	for i := 0; i < len(src); i++ {
		dst[2*i] = Nibble(src[i] >> 4)
		dst[2*i+1] = Nibble(src[i] & 0xF)
	}
}

// GetCommonPrefixLength computes the length of the common prefix of the given
// Nibble-slices.
func GetCommonPrefixLength(a, b []Nibble) int {
	lengthA := len(a)
	if lengthA > len(b) {
		return GetCommonPrefixLength(b, a)
	}
	for i := 0; i < lengthA; i++ {
		if a[i] != b[i] {
			return i
		}
	}
	return lengthA
}

// IsPrefixOf tests whether one Nibble slice is the prefix of another.
func IsPrefixOf(a, b []Nibble) bool {
	return len(a) <= len(b) && GetCommonPrefixLength(a, b) == len(a)
}

// concat creates a new path holding the given nibbles. The inputs are not
// modified.
func concat(parts ...[]Nibble) []Nibble {
	size := 0
	for _, part := range parts {
		size += len(part)
	}
	res := make([]Nibble, 0, size)
	for _, part := range parts {
		res = append(res, part...)
	}
	return res
}

func pathString(path []Nibble) string {
	var builder strings.Builder
	for _, cur := range path {
		builder.WriteRune(cur.Rune())
	}
	return builder.String()
}

// EncodeCompactPath produces the hex-prefix encoding of a partial path as
// stored in leaf and extension nodes. The high nibble of the first byte is
// 2*isLeaf + isOdd; for odd lengths the first path nibble shares this byte.
// see https://github.com/ethereum/go-ethereum/blob/v1.12.0/trie/encoding.go#L37
func EncodeCompactPath(path []Nibble, isLeaf bool) []byte {
	oddLength := len(path)%2 == 1
	res := make([]byte, len(path)/2+1)

	if isLeaf {
		res[0] = 1 << 5
	}
	if oddLength {
		res[0] |= 1<<4 | byte(path[0])
		path = path[1:]
	}
	for i := 0; i < len(path); i += 2 {
		res[i/2+1] = byte(path[i])<<4 | byte(path[i+1])
	}
	return res
}

// DecodeCompactPath reverses EncodeCompactPath, returning the path and the
// leaf flag.
func DecodeCompactPath(compact []byte) ([]Nibble, bool, error) {
	if len(compact) == 0 {
		return nil, false, fmt.Errorf("%w: empty compact path", ErrDecode)
	}
	flag := compact[0] >> 4
	if flag > 3 {
		return nil, false, fmt.Errorf("%w: invalid compact path flag %d", ErrDecode, flag)
	}
	isLeaf := flag&2 != 0
	oddLength := flag&1 != 0
	if !oddLength && compact[0]&0xF != 0 {
		return nil, false, fmt.Errorf("%w: non-zero padding in compact path", ErrDecode)
	}

	res := make([]Nibble, 0, 2*len(compact))
	if oddLength {
		res = append(res, Nibble(compact[0]&0xF))
	}
	for _, cur := range compact[1:] {
		res = append(res, Nibble(cur>>4), Nibble(cur&0xF))
	}
	return res, isLeaf, nil
}
