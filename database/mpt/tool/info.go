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

	"github.com/Fantom-foundation/triedb/common"
	"github.com/Fantom-foundation/triedb/database/mpt"
	"github.com/urfave/cli/v2"
)

var InfoCmd = cli.Command{
	Action: info,
	Name:   "info",
	Usage:  "lists information about a trie database",
	Flags: []cli.Flag{
		&backendFlag,
		&trieFlag,
		&rootFlag,
	},
	ArgsUsage: "<directory>",
}

var (
	rootFlag = cli.StringFlag{
		Name:  "root",
		Usage: "compute and print node statistics of the trie with the given root",
	}
)

func info(context *cli.Context) error {
	if context.Args().Len() != 1 {
		return fmt.Errorf("missing directory storing the database")
	}
	dir := context.Args().Get(0)

	db, err := openDatabase(context, dir)
	if err != nil {
		return err
	}
	defer db.Close()

	out := context.App.Writer
	keys, err := db.Store().Keys()
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Directory contains a trie database with the following properties:\n")
	fmt.Fprintf(out, "\tBackend:            %v\n", db.Config().Backend)
	fmt.Fprintf(out, "\tTrie configuration: %v\n", db.Config().Trie.Name)
	fmt.Fprintf(out, "\tHashing:            %v\n", db.Config().Trie.Hashing)
	fmt.Fprintf(out, "\tStored nodes:       %d\n", len(keys))
	if size, err := db.Store().ApproximateSize(); err == nil && size >= 0 {
		fmt.Fprintf(out, "\tApproximate size:   %d bytes\n", size)
	}

	if !context.IsSet(rootFlag.Name) {
		return nil
	}
	root, err := common.ParseHash(context.String(rootFlag.Name))
	if err != nil {
		return err
	}
	trie, err := db.NewTrie(root)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "\nCollecting Node Statistics ...\n")
	stats, err := mpt.GetTrieNodeStatistics(trie, root)
	if err != nil {
		return err
	}
	fmt.Fprint(out, "\n--- Node Statistics ---\n")
	fmt.Fprintln(out, stats.String())
	return nil
}
