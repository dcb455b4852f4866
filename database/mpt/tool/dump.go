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

var DumpCmd = cli.Command{
	Action:    dump,
	Name:      "dump",
	Usage:     "prints the nodes of a trie",
	ArgsUsage: "<directory> <root>",
	Flags: []cli.Flag{
		&backendFlag,
		&trieFlag,
	},
}

func dump(context *cli.Context) error {
	dir, root, err := parseArgs(context, 2)
	if err != nil {
		return err
	}
	return withTrie(context, dir, root, func(trie *mpt.Trie) error {
		nodes, err := trie.Dump(root)
		if err != nil {
			return err
		}
		_, err = fmt.Fprint(context.App.Writer, nodes)
		return err
	})
}
