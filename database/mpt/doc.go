// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

// Package mpt implements a Merkle-Patricia Trie in the node layout used by
// Ethereum. Nodes are RLP encoded and addressed by the hash of their
// encoding; nodes with an encoding shorter than a hash are embedded in their
// parent instead of being stored on their own.
//
// A Trie keeps its modified nodes in a NodeCache until Sync writes the ones
// reachable from the current root to the backing store.Store. With pruning
// enabled, nodes replaced by an update are deleted from the store on the
// next Sync. A SecureTrie addresses values through hashed keys.
//
// Node hashes use Blake2b-256 by default; Keccak-256 is available through
// the Ethereum configuration for cross-checking against other clients.
package mpt
