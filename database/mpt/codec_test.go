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
	"testing"

	"github.com/Fantom-foundation/triedb/common"
	"github.com/Fantom-foundation/triedb/database/mpt/rlp"
)

func TestEncodeNode_ProducesEthereumEncoding(t *testing.T) {
	hash := common.Hash{1, 2, 3}
	tests := map[string]struct {
		node Node
		want []byte
	}{
		"empty": {EmptyNode{}, []byte{0x80}},
		"leaf": {
			&LeafNode{Path: []Nibble{1, 2, 3}, Value: []byte("abc")},
			[]byte{0xc7, 0x82, 0x31, 0x23, 0x83, 'a', 'b', 'c'},
		},
		"leaf with single byte value": {
			&LeafNode{Path: []Nibble{}, Value: []byte{0x01}},
			[]byte{0xc2, 0x20, 0x01},
		},
		"extension": {
			&ExtensionNode{Path: []Nibble{1}, Child: NewHashRef(hash)},
			append([]byte{0xe2, 0x11, 0xa0}, hash[:]...),
		},
	}
	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			if got := EncodeNode(test.node); !bytes.Equal(got, test.want) {
				t.Errorf("unexpected encoding, wanted %x, got %x", test.want, got)
			}
		})
	}
}

func TestEncodeNode_BranchHasSeventeenElements(t *testing.T) {
	branch := &BranchNode{Value: []byte("v")}
	branch.Children[3] = NewEmbeddedRef(&LeafNode{Path: []Nibble{}, Value: []byte("x")})

	item, err := rlp.Decode(EncodeNode(branch))
	if err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	list, ok := item.(rlp.List)
	if !ok || len(list.Items) != 17 {
		t.Fatalf("branch should be encoded as 17 element list, got %v", item)
	}
	if _, ok := list.Items[3].(rlp.List); !ok {
		t.Errorf("embedded child should be encoded inline, got %v", list.Items[3])
	}
	if value, ok := list.Items[16].(rlp.String); !ok || string(value.Str) != "v" {
		t.Errorf("value should be in slot 16, got %v", list.Items[16])
	}
}

func TestDecodeNode_RoundTrip(t *testing.T) {
	hash := common.Hash{0xab}
	embedded := &LeafNode{Path: []Nibble{0xf}, Value: []byte("small")}
	branch := &BranchNode{}
	branch.Children[0] = NewHashRef(hash)
	branch.Children[7] = NewEmbeddedRef(embedded)
	valueBranch := &BranchNode{Value: []byte("value")}
	valueBranch.Children[15] = NewHashRef(hash)

	nodes := []Node{
		EmptyNode{},
		&LeafNode{Path: []Nibble{}, Value: []byte("a")},
		&LeafNode{Path: []Nibble{1, 2, 3, 4}, Value: bytes.Repeat([]byte{0x42}, 100)},
		&ExtensionNode{Path: []Nibble{1, 2, 3}, Child: NewHashRef(hash)},
		&ExtensionNode{Path: []Nibble{4}, Child: NewEmbeddedRef(embedded)},
		branch,
		valueBranch,
	}
	for _, node := range nodes {
		decoded, err := DecodeNode(EncodeNode(node))
		if err != nil {
			t.Fatalf("failed to decode %v: %v", node, err)
		}
		if got, want := decoded.String(), node.String(); got != want {
			t.Errorf("unexpected decoded node, wanted %s, got %s", want, got)
		}
		if !bytes.Equal(EncodeNode(decoded), EncodeNode(node)) {
			t.Errorf("re-encoding of %v differs", node)
		}
	}
}

func TestDecodeNode_EmptyBranchValueIsNil(t *testing.T) {
	branch := &BranchNode{}
	branch.Children[1] = NewHashRef(common.Hash{1})
	branch.Children[2] = NewHashRef(common.Hash{2})
	decoded, err := DecodeNode(EncodeNode(branch))
	if err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if value := decoded.(*BranchNode).Value; value != nil {
		t.Errorf("empty branch value should be decoded as nil, got %x", value)
	}
}

func TestDecodeNode_MalformedInputIsDetected(t *testing.T) {
	invalidBranch := make([]rlp.Item, 17)
	for i := range invalidBranch {
		invalidBranch[i] = rlp.String{}
	}
	invalidBranch[16] = rlp.List{}

	invalidChild := make([]rlp.Item, 17)
	for i := range invalidChild {
		invalidChild[i] = rlp.String{}
	}
	invalidChild[4] = rlp.String{Str: []byte{1, 2, 3}}

	tests := map[string][]byte{
		"no data":              {},
		"truncated":            {0xc7, 0x82, 0x31},
		"non-empty string":     {0x82, 0x01, 0x02},
		"three elements":       {0xc3, 0x80, 0x80, 0x80},
		"invalid path flag":    {0xc2, 0x40, 0x80},
		"path is list":         {0xc2, 0xc0, 0x80},
		"extension w/o child":  {0xc2, 0x00, 0x80},
		"short child hash":     {0xc4, 0x00, 0x82, 0x01, 0x02},
		"leaf value is list":   {0xc2, 0x20, 0xc0},
		"branch value is list": rlp.Encode(rlp.List{Items: invalidBranch}),
		"invalid branch child": rlp.Encode(rlp.List{Items: invalidChild}),
		"trailing data":        {0x80, 0x80},
	}
	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := DecodeNode(data); !errors.Is(err, ErrDecode) {
				t.Errorf("expected decoding error, got %v", err)
			}
		})
	}
}

func TestChildHashes_ListsStoredChildren(t *testing.T) {
	a, b := common.Hash{1}, common.Hash{2}
	branch := &BranchNode{}
	branch.Children[2] = NewHashRef(a)
	branch.Children[5] = NewEmbeddedRef(&LeafNode{Path: []Nibble{1}, Value: []byte("x")})
	branch.Children[9] = NewHashRef(b)

	got := childHashes(branch, nil)
	if len(got) != 2 || got[0] != a || got[1] != b {
		t.Errorf("unexpected child hashes, wanted [%v %v], got %v", a, b, got)
	}

	ext := &ExtensionNode{Path: []Nibble{1}, Child: NewHashRef(a)}
	if got := childHashes(ext, nil); len(got) != 1 || got[0] != a {
		t.Errorf("unexpected child hashes of extension: %v", got)
	}
	if got := childHashes(&LeafNode{Value: []byte("x")}, nil); len(got) != 0 {
		t.Errorf("leaf nodes should not have children, got %v", got)
	}
}
