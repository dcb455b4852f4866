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

//go:generate mockgen -source visitor.go -destination visitor_mocks.go -package mpt

import (
	"fmt"
	"strings"

	"github.com/Fantom-foundation/triedb/common"
	mapset "github.com/deckarep/golang-set/v2"
)

// ----------------------------------------------------------------------------
//                            Visitor Interface
// ----------------------------------------------------------------------------

// NodeVisitor defines an interface for any consumer interested in visiting
// the stored nodes of a trie. It is intended for generic trie analysis and
// export infrastructure.
type NodeVisitor interface {
	// Visit is called for each stored node. Through the response the visitor
	// can control the visiting process. It may be
	//  - continued: keep processing additional nodes
	//  - aborted: stop processing nodes and end node iteration
	//  - pruned: skip the child nodes of the current node and continue with
	//       the next node following the last descendent of the current node
	Visit(Node, NodeInfo) VisitResponse
}

type NodeInfo struct {
	Hash    common.Hash // the hash of the visited node
	Encoded []byte      // the canonical encoding of the node
	Depth   int         // the number of stored ancestors of the node
}

type VisitResponse int

const (
	VisitResponseContinue VisitResponse = 0
	VisitResponseAbort    VisitResponse = 1
	VisitResponsePrune    VisitResponse = 2
)

// VisitTrie visits all stored nodes reachable from the given root in
// pre-order. Nodes shared by multiple parents are only visited once. The
// visit fails with an error wrapping ErrMissingNode if a reachable node is
// not present.
func (t *Trie) VisitTrie(root common.Hash, visitor NodeVisitor) error {
	if root == EmptyRootHash(t.config.Hashing) {
		return nil
	}
	type item struct {
		hash  common.Hash
		depth int
	}
	visited := mapset.NewThreadUnsafeSet[common.Hash]()
	stack := []item{{hash: root}}
	var children []common.Hash
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if !visited.Add(cur.hash) {
			continue
		}
		entry, err := t.cache.lookup(cur.hash)
		if err != nil {
			return err
		}
		if entry == nil {
			return fmt.Errorf("%w: %v", ErrMissingNode, cur.hash)
		}
		switch visitor.Visit(entry.node, NodeInfo{Hash: cur.hash, Encoded: entry.encoded, Depth: cur.depth}) {
		case VisitResponseAbort:
			return nil
		case VisitResponsePrune:
			continue
		}
		children = childHashes(entry.node, children[:0])
		for i := len(children) - 1; i >= 0; i-- {
			stack = append(stack, item{hash: children[i], depth: cur.depth + 1})
		}
	}
	return nil
}

// ----------------------------------------------------------------------------
//                          Lambda Visitor
// ----------------------------------------------------------------------------

// MakeVisitor wraps a function into the node visitor interface.
func MakeVisitor(visit func(Node, NodeInfo) VisitResponse) NodeVisitor {
	return &lambdaVisitor{visit}
}

type lambdaVisitor struct {
	visit func(Node, NodeInfo) VisitResponse
}

func (v *lambdaVisitor) Visit(n Node, i NodeInfo) VisitResponse {
	return v.visit(n, i)
}

// ----------------------------------------------------------------------------
//                            Node Statistics
// ----------------------------------------------------------------------------

// GetTrieNodeStatistics computes node statistics for the trie with the given
// root.
func GetTrieNodeStatistics(trie *Trie, root common.Hash) (NodeStatistic, error) {
	collector := &nodeStatisticsCollector{}
	if err := trie.VisitTrie(root, collector); err != nil {
		return NodeStatistic{}, err
	}
	return collector.stats, nil
}

type NodeStatistic struct {
	numBranches   int
	numExtensions int
	numLeaves     int
	numEmbedded   int
	numBytes      int

	numChildren [17]int

	depths []int
}

// NumNodes returns the number of stored nodes.
func (s *NodeStatistic) NumNodes() int {
	return s.numBranches + s.numExtensions + s.numLeaves
}

func (s *NodeStatistic) String() string {
	builder := strings.Builder{}

	builder.WriteString("Node types:\n")
	builder.WriteString(fmt.Sprintf("Branches, %d\n", s.numBranches))
	builder.WriteString(fmt.Sprintf("Extensions, %d\n", s.numExtensions))
	builder.WriteString(fmt.Sprintf("Leaves, %d\n", s.numLeaves))
	builder.WriteString(fmt.Sprintf("Embedded, %d\n", s.numEmbedded))
	builder.WriteString(fmt.Sprintf("Bytes, %d\n", s.numBytes))

	builder.WriteString("Branch-Node-Size Distribution:\n")
	for i, count := range s.numChildren {
		builder.WriteString(fmt.Sprintf("%d, %d\n", i, count))
	}

	if len(s.depths) > 0 {
		builder.WriteString("Node depth distribution:\n")
		for i, count := range s.depths {
			builder.WriteString(fmt.Sprintf("%d, %d\n", i, count))
		}
	}

	return builder.String()
}

type nodeStatisticsCollector struct {
	stats NodeStatistic
}

func (c *nodeStatisticsCollector) Visit(node Node, info NodeInfo) VisitResponse {
	c.registerDepth(info)
	c.stats.numBytes += len(info.Encoded)
	c.count(node)
	return VisitResponseContinue
}

func (c *nodeStatisticsCollector) count(node Node) {
	switch t := node.(type) {
	case *BranchNode:
		c.visitBranch(t)
	case *ExtensionNode:
		c.stats.numExtensions++
		c.countEmbedded(t.Child)
	case *LeafNode:
		c.stats.numLeaves++
	}
}

// countEmbedded counts nodes embedded in their parent's encoding.
func (c *nodeStatisticsCollector) countEmbedded(ref NodeRef) {
	embedded, ok := ref.Embedded()
	if !ok {
		return
	}
	c.stats.numEmbedded++
	switch t := embedded.(type) {
	case *ExtensionNode:
		c.countEmbedded(t.Child)
	case *BranchNode:
		for _, child := range t.Children {
			c.countEmbedded(child)
		}
	}
}

func (c *nodeStatisticsCollector) visitBranch(b *BranchNode) {
	c.stats.numBranches++
	numChildren, _ := b.numChildren()
	c.stats.numChildren[numChildren]++
	for _, child := range b.Children {
		c.countEmbedded(child)
	}
}

func (c *nodeStatisticsCollector) registerDepth(info NodeInfo) {
	for len(c.stats.depths) <= info.Depth {
		c.stats.depths = append(c.stats.depths, 0)
	}
	c.stats.depths[info.Depth]++
}
