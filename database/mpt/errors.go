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

import "github.com/Fantom-foundation/triedb/common"

const (
	// ErrDecode is returned for malformed node encodings.
	ErrDecode = common.ConstError("invalid node encoding")
	// ErrMissingNode is returned, wrapped with the node's hash, if a node
	// required by an operation is not present in the node store.
	ErrMissingNode = common.ConstError("missing trie node")
)
