// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package main

import (
	"fmt"

	"github.com/Fantom-foundation/triedb/database/mpt"
	"github.com/urfave/cli/v2"
)

var MissingCmd = cli.Command{
	Action:    missing,
	Name:      "missing",
	Usage:     "lists the nodes of a trie missing in the database",
	ArgsUsage: "<directory> <root>",
	Flags: []cli.Flag{
		&backendFlag,
		&trieFlag,
	},
}

func missing(context *cli.Context) error {
	dir, root, err := parseArgs(context, 2)
	if err != nil {
		return err
	}
	return withTrie(context, dir, root, func(trie *mpt.Trie) error {
		nodes, err := trie.MissingNodes(root[:])
		if err != nil {
			return err
		}
		out := context.App.Writer
		if nodes.Cardinality() == 0 {
			fmt.Fprintf(out, "Trie %v is complete\n", root)
			return nil
		}
		fmt.Fprintf(out, "Trie %v is missing %d nodes:\n", root, nodes.Cardinality())
		for _, hash := range nodes.ToSlice() {
			fmt.Fprintf(out, "\t%v\n", hash)
		}
		return nil
	})
}
