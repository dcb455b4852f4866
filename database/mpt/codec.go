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
	"fmt"

	"github.com/Fantom-foundation/triedb/common"
	"github.com/Fantom-foundation/triedb/database/mpt/rlp"
)

// The canonical encoding of nodes follows Ethereum's MPT:
//
//  - empty nodes are encoded as the empty string
//  - leaf nodes are 2-element lists [compact(path, leaf), value]
//  - extension nodes are 2-element lists [compact(path, ext), child]
//  - branch nodes are 17-element lists [child_0, ..., child_15, value]
//
// Children are encoded as the empty string if absent, as a 32 byte string
// holding the hash of the child, or as the child's own encoding if that is
// shorter than 32 bytes.

// EncodeNode produces the canonical encoding of the given node.
func EncodeNode(node Node) []byte {
	return rlp.Encode(nodeItem(node))
}

func nodeItem(node Node) rlp.Item {
	switch n := node.(type) {
	case *LeafNode:
		return rlp.List{Items: []rlp.Item{
			rlp.String{Str: EncodeCompactPath(n.Path, true)},
			rlp.String{Str: n.Value},
		}}
	case *ExtensionNode:
		return rlp.List{Items: []rlp.Item{
			rlp.String{Str: EncodeCompactPath(n.Path, false)},
			refItem(n.Child),
		}}
	case *BranchNode:
		items := make([]rlp.Item, 17)
		for i := range n.Children {
			items[i] = refItem(n.Children[i])
		}
		items[16] = rlp.String{Str: n.Value}
		return rlp.List{Items: items}
	default:
		return rlp.String{}
	}
}

func refItem(ref NodeRef) rlp.Item {
	if hash, ok := ref.Hash(); ok {
		return rlp.Hash{Hash: &hash}
	}
	if node, ok := ref.Embedded(); ok {
		return nodeItem(node)
	}
	return rlp.String{}
}

// DecodeNode parses the canonical encoding of a node. Any malformed input
// results in an error wrapping ErrDecode.
func DecodeNode(data []byte) (Node, error) {
	item, err := rlp.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return decodeNodeItem(item)
}

func decodeNodeItem(item rlp.Item) (Node, error) {
	switch it := item.(type) {
	case rlp.String:
		if len(it.Str) != 0 {
			return nil, fmt.Errorf("%w: unexpected string of %d bytes as node", ErrDecode, len(it.Str))
		}
		return EmptyNode{}, nil
	case rlp.List:
		switch len(it.Items) {
		case 2:
			return decodeShortNode(it.Items)
		case 17:
			return decodeBranchNode(it.Items)
		}
		return nil, fmt.Errorf("%w: invalid number of list elements: %d", ErrDecode, len(it.Items))
	}
	return nil, fmt.Errorf("%w: unsupported item %T", ErrDecode, item)
}

func decodeShortNode(items []rlp.Item) (Node, error) {
	compact, ok := items[0].(rlp.String)
	if !ok {
		return nil, fmt.Errorf("%w: path is not a string", ErrDecode)
	}
	path, isLeaf, err := DecodeCompactPath(compact.Str)
	if err != nil {
		return nil, err
	}
	if isLeaf {
		value, ok := items[1].(rlp.String)
		if !ok {
			return nil, fmt.Errorf("%w: leaf value is not a string", ErrDecode)
		}
		return &LeafNode{Path: path, Value: bytes.Clone(value.Str)}, nil
	}
	child, err := decodeRef(items[1])
	if err != nil {
		return nil, err
	}
	if child.IsEmpty() {
		return nil, fmt.Errorf("%w: extension without child", ErrDecode)
	}
	return &ExtensionNode{Path: path, Child: child}, nil
}

func decodeBranchNode(items []rlp.Item) (Node, error) {
	res := &BranchNode{}
	for i := 0; i < 16; i++ {
		child, err := decodeRef(items[i])
		if err != nil {
			return nil, err
		}
		res.Children[i] = child
	}
	value, ok := items[16].(rlp.String)
	if !ok {
		return nil, fmt.Errorf("%w: branch value is not a string", ErrDecode)
	}
	if len(value.Str) > 0 {
		res.Value = bytes.Clone(value.Str)
	}
	return res, nil
}

func decodeRef(item rlp.Item) (NodeRef, error) {
	switch it := item.(type) {
	case rlp.String:
		switch len(it.Str) {
		case 0:
			return NodeRef{}, nil
		case common.HashSize:
			hash, _ := common.HashFromBytes(it.Str)
			return NewHashRef(hash), nil
		}
		return NodeRef{}, fmt.Errorf("%w: invalid child reference of %d bytes", ErrDecode, len(it.Str))
	case rlp.List:
		node, err := decodeNodeItem(it)
		if err != nil {
			return NodeRef{}, err
		}
		return NewEmbeddedRef(node), nil
	}
	return NodeRef{}, fmt.Errorf("%w: unsupported child item %T", ErrDecode, item)
}

// childHashes appends the hashes of all stored children of the given node to
// res, descending into embedded children.
func childHashes(node Node, res []common.Hash) []common.Hash {
	addRef := func(ref NodeRef) {
		if hash, ok := ref.Hash(); ok {
			res = append(res, hash)
		} else if embedded, ok := ref.Embedded(); ok {
			res = childHashes(embedded, res)
		}
	}
	switch n := node.(type) {
	case *ExtensionNode:
		addRef(n.Child)
	case *BranchNode:
		for _, child := range n.Children {
			addRef(child)
		}
	}
	return res
}
