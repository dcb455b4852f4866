// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package rlp

import (
	"fmt"

	"github.com/Fantom-foundation/triedb/common"
)

// The definition of the RLP encoding can be found here:
// https://ethereum.org/en/developers/docs/data-structures-and-encoding/rlp
//
// Based on Appendix B of https://ethereum.github.io/yellowpaper/paper.pdf
//
// Recursive-Length Prefix (RLP) serialization is based on a recursive
// structure definition of an `item`. An item is defined as
//   - a string of bytes
//   - a list of items
// Note the recursive definition in the second line. This recursive step
// allows arbitrarily nested structures to be encoded. Trie nodes are encoded
// as lists of strings, where child nodes are either referenced by their hash
// or embedded as nested lists.

// ErrMalformed is returned for any input that is not a valid RLP stream.
const ErrMalformed = common.ConstError("malformed RLP")

// Item is an interface for everything that can be RLP encoded by this package.
type Item interface {
	// write writes the RLP encoding of this item to the given writer.
	write(writer) writer

	// getEncodedLength computes the encoded length of this item in bytes.
	getEncodedLength() int
}

// Encode is a convenience function for serializing an item structure.
func Encode(item Item) []byte {
	return EncodeInto(make([]byte, 0, item.getEncodedLength()), item)
}

// EncodeInto appends the encoding of the given item to dst.
func EncodeInto(dst []byte, item Item) []byte {
	writer := writer(dst)
	return item.write(writer)
}

// Decode parses a single RLP item. The input must be consumed entirely.
func Decode(rlp []byte) (Item, error) {
	item, consumed, err := decode(rlp)
	if err != nil {
		return nil, err
	}
	if consumed != uint64(len(rlp)) {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrMalformed, uint64(len(rlp))-consumed)
	}
	return item, nil
}

// decode decodes the first item of an RLP stream and reports the number
// of bytes it occupies. It checks the first byte of the stream to determine
// the type of the item and may recursively call itself to decode nested items.
func decode(rlp []byte) (Item, uint64, error) {
	if len(rlp) == 0 {
		return nil, 0, fmt.Errorf("%w: input is empty", ErrMalformed)
	}

	l := rlp[0]
	switch {
	case l < 0x80: // single byte
		return String{Str: rlp[0:1]}, 1, nil

	case l <= 0xb7: // short string
		length := uint64(l - 0x80)
		if uint64(len(rlp)) < length+1 {
			return nil, 0, fmt.Errorf("%w: expected %d bytes, got: %d", ErrMalformed, length+1, len(rlp))
		}
		return String{Str: rlp[1 : length+1]}, length + 1, nil

	case l < 0xc0: // long string
		offset, length, err := readLongSize(rlp, l-0xb7)
		if err != nil {
			return nil, 0, err
		}
		return String{Str: rlp[offset : offset+length]}, offset + length, nil

	case l <= 0xf7: // short list
		length := uint64(l - 0xc0)
		if uint64(len(rlp)) < length+1 {
			return nil, 0, fmt.Errorf("%w: expected %d bytes, got: %d", ErrMalformed, length+1, len(rlp))
		}
		items, err := decodeList(rlp[1 : length+1])
		return List{Items: items}, length + 1, err

	default: // long list
		offset, length, err := readLongSize(rlp, l-0xf7)
		if err != nil {
			return nil, 0, err
		}
		items, err := decodeList(rlp[offset : offset+length])
		return List{Items: items}, offset + length, err
	}
}

// readLongSize reads the big-endian length following the prefix byte of a
// long string or list. It returns the offset of the payload and its length.
func readLongSize(rlp []byte, sizeLength byte) (uint64, uint64, error) {
	length, err := readSize(rlp[1:], sizeLength)
	if err != nil {
		return 0, 0, err
	}
	offset := uint64(sizeLength) + 1
	if length > uint64(len(rlp))-offset {
		return 0, 0, fmt.Errorf("%w: expected %d bytes, got: %d", ErrMalformed, offset+length, len(rlp))
	}
	return offset, length, nil
}

// decodeList decodes a list of items from the given RLP stream.
// The function expects an RLP stream with possibly multiple items encoded
// while the prefix with the length is already cut out.
// It consumes chunks of input RLP by passing it to the decoder
// until the input is empty.
func decodeList(rlp []byte) ([]Item, error) {
	items := make([]Item, 0, 17)
	buf := rlp
	for len(buf) > 0 {
		item, offset, err := decode(buf)
		if err != nil {
			return nil, err
		}

		items = append(items, item)
		buf = buf[offset:]
	}

	return items, nil
}

// writer is a specialized writer for this package writing encoded RLP
// content in a pre-allocated buffer.
type writer []byte

func (w writer) Write(data []byte) writer {
	return append(w, data...)
}

func (w writer) Put(c byte) writer {
	return append(w, c)
}

// ----------------------------------------------------------------------------
//                           Core Item Types
// ----------------------------------------------------------------------------

// String is the atomic ground type of an RLP input structure representing a
// (potentially empty) string of bytes.
type String struct {
	Str []byte
}

func (s String) write(writer writer) writer {
	l := len(s.Str)
	// Single-element strings are encoded as a single byte if the
	// value is small enough.
	if l == 1 && s.Str[0] < 0x80 {
		return writer.Write(s.Str)
	}
	// For the rest, the length is encoded, followed by the string itself.
	writer = encodeLength(l, 0x80, writer)
	return writer.Write(s.Str)
}

func (s String) getEncodedLength() int {
	l := len(s.Str)
	if l == 1 && s.Str[0] < 0x80 {
		return 1
	}
	return l + getEncodedLengthLength(l)
}

// Hash is used specifically to hold a pointer to a hash referencing a
// child node. Its encoding is identical to a 32 byte String.
type Hash struct {
	Hash *common.Hash
}

func (s Hash) write(writer writer) writer {
	writer = encodeLength(common.HashSize, 0x80, writer)
	return writer.Write(s.Hash[:])
}

func (s Hash) getEncodedLength() int {
	// 32 bytes of hash + one byte to store length
	return common.HashSize + 1
}

// List composes a list of items into a new item to be serialized.
type List struct {
	Items []Item
}

func (l List) write(writer writer) writer {
	length := 0
	for i := 0; i < len(l.Items); i++ {
		length += l.Items[i].getEncodedLength()
	}
	writer = encodeLength(length, 0xc0, writer)
	for i := 0; i < len(l.Items); i++ {
		writer = l.Items[i].write(writer)
	}
	return writer
}

func (l List) getEncodedLength() int {
	sum := 0
	for _, item := range l.Items {
		sum += item.getEncodedLength()
	}
	return sum + getEncodedLengthLength(sum)
}

// encodeLength is utility function used by String and List structures to
// encode the length of the string or list in the output stream.
func encodeLength(length int, offset byte, writer writer) writer {
	if length < 56 {
		return writer.Put(offset + byte(length))
	}
	numBytesForLength := getNumBytes(uint64(length))
	writer = writer.Put(offset + 55 + numBytesForLength)
	for i := byte(0); i < numBytesForLength; i++ {
		writer = writer.Put(byte(length >> (8 * (numBytesForLength - i - 1))))
	}
	return writer
}

// getNumBytes computes the minimum number of bytes required to represent
// the given value in big-endian encoding.
func getNumBytes(value uint64) byte {
	if value == 0 {
		return 0
	}
	for res := byte(1); ; res++ {
		if value >>= 8; value == 0 {
			return res
		}
	}
}

func getEncodedLengthLength(length int) int {
	if length < 56 {
		return 1
	}
	return int(getNumBytes(uint64(length))) + 1
}

// Encoded allows for embedding an already RLP encoded data fragment in a new
// RLP encoding. It is used for child nodes embedded in their parents.
type Encoded struct {
	Data []byte
}

func (e Encoded) write(writer writer) writer {
	return writer.Write(e.Data)
}

func (e Encoded) getEncodedLength() int {
	return len(e.Data)
}

func readSize(b []byte, slen byte) (uint64, error) {
	if slen == 0 || slen > 8 {
		return 0, fmt.Errorf("%w: invalid size length %d", ErrMalformed, slen)
	}
	if int(slen) > len(b) {
		return 0, fmt.Errorf("%w: expected %d bytes, got: %d", ErrMalformed, slen, len(b))
	}
	var s uint64
	for _, cur := range b[:slen] {
		s = s<<8 | uint64(cur)
	}
	return s, nil
}
