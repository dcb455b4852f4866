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

	"github.com/Fantom-foundation/triedb/common"
)

// This file defines the node types of the Merkle Patricia Trie (MPT). There
// are four different types of nodes:
//
//  - empty nodes     ... the root node of empty sub-tries
//  - leaf nodes      ... nodes holding a value and the remaining key path
//  - extension nodes ... shortcuts for long-sequences of 1-child branches
//  - branch nodes    ... inner trie nodes splitting navigation paths; the
//                        value slot holds the value of a key ending exactly
//                        at the branch
//
// Nodes are immutable once created. Updates produce new nodes replacing their
// ancestors up to the root, such that nodes may be shared between tries and
// their content hash stays valid for their lifetime.
//
// Nodes reference their children through NodeRefs, which either embed small
// child nodes directly or point to a node stored under its content hash.

// Node is the closed set of trie node types. The set of implementations is
// fixed to EmptyNode, *LeafNode, *ExtensionNode, and *BranchNode.
type Node interface {
	fmt.Stringer
	isNode()
}

// EmptyNode is the root of an empty (sub-)trie.
type EmptyNode struct{}

// LeafNode holds a value and the path from its parent to the end of the key.
type LeafNode struct {
	Path  []Nibble
	Value []byte
}

// ExtensionNode is a shortcut over a sequence of nibbles shared by all keys
// in the sub-trie rooted by its child.
type ExtensionNode struct {
	Path  []Nibble
	Child NodeRef
}

// BranchNode splits the navigation path on the next nibble. Value is nil if
// no key ends at this branch.
type BranchNode struct {
	Children [16]NodeRef
	Value    []byte
}

func (EmptyNode) isNode()      {}
func (*LeafNode) isNode()      {}
func (*ExtensionNode) isNode() {}
func (*BranchNode) isNode()    {}

func (EmptyNode) String() string {
	return "Empty"
}

func (n *LeafNode) String() string {
	return fmt.Sprintf("Leaf{path: %s, value: 0x%x}", pathString(n.Path), n.Value)
}

func (n *ExtensionNode) String() string {
	return fmt.Sprintf("Extension{path: %s, child: %v}", pathString(n.Path), n.Child)
}

func (n *BranchNode) String() string {
	var builder strings.Builder
	builder.WriteString("Branch{")
	first := true
	for i, child := range n.Children {
		if child.IsEmpty() {
			continue
		}
		if !first {
			builder.WriteString(", ")
		}
		first = false
		fmt.Fprintf(&builder, "%v: %v", Nibble(i), child)
	}
	if n.Value != nil {
		if !first {
			builder.WriteString(", ")
		}
		fmt.Fprintf(&builder, "value: 0x%x", n.Value)
	}
	builder.WriteString("}")
	return builder.String()
}

// numChildren returns the number of non-empty children of the branch and the
// position of the last one, or -1 if there is none.
func (n *BranchNode) numChildren() (int, int) {
	count, pos := 0, -1
	for i, child := range n.Children {
		if !child.IsEmpty() {
			count++
			pos = i
		}
	}
	return count, pos
}

// NodeRef references a node from its parent or as the root of a trie. A
// reference is either empty, holds the content hash of a node stored in
// the node cache, or embeds a node whose encoding is shorter than a hash.
type NodeRef struct {
	hash     common.Hash
	hashed   bool
	embedded Node
}

// NewHashRef creates a reference to the node stored under the given hash.
func NewHashRef(hash common.Hash) NodeRef {
	return NodeRef{hash: hash, hashed: true}
}

// NewEmbeddedRef creates a reference embedding the given node. Embedding an
// empty node yields the empty reference.
func NewEmbeddedRef(node Node) NodeRef {
	if _, ok := node.(EmptyNode); ok || node == nil {
		return NodeRef{}
	}
	return NodeRef{embedded: node}
}

// IsEmpty is true if the reference points to an empty sub-trie.
func (r NodeRef) IsEmpty() bool {
	return !r.hashed && r.embedded == nil
}

// Hash returns the referenced hash if the reference points to a stored node.
func (r NodeRef) Hash() (common.Hash, bool) {
	return r.hash, r.hashed
}

// Embedded returns the embedded node if the reference embeds its node.
func (r NodeRef) Embedded() (Node, bool) {
	return r.embedded, r.embedded != nil
}

func (r NodeRef) String() string {
	switch {
	case r.hashed:
		return "0x" + r.hash.String()
	case r.embedded != nil:
		return "<" + r.embedded.String() + ">"
	default:
		return "-"
	}
}
