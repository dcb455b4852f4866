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
	"errors"
	"fmt"
	"time"

	"github.com/Fantom-foundation/triedb/database/mpt"
	"github.com/urfave/cli/v2"
)

var ExportCmd = cli.Command{
	Action:    addPerformanceDiagnoses(doExport),
	Name:      "export",
	Usage:     "copies the nodes of a trie into another database",
	ArgsUsage: "<directory> <root> <target directory>",
	Flags: []cli.Flag{
		&backendFlag,
		&trieFlag,
		&diffFlag,
	},
}

var (
	diffFlag = cli.BoolFlag{
		Name:  "diff",
		Usage: "skip sub-tries already present in the target database",
	}
)

func doExport(context *cli.Context) error {
	dir, root, err := parseArgs(context, 3)
	if err != nil {
		return err
	}
	trg := context.Args().Get(2)
	if trg == dir {
		return fmt.Errorf("source and target directory must differ")
	}

	target, err := openDatabase(context, trg)
	if err != nil {
		return fmt.Errorf("failed to open target database: %w", err)
	}

	start := time.Now()
	var count int
	exportErr := withTrie(context, dir, root, func(trie *mpt.Trie) error {
		var err error
		if context.Bool(diffFlag.Name) {
			count, err = trie.SaveDiffState(root, target.Store())
		} else {
			count, err = trie.SaveFullState(root, target.Store())
		}
		return err
	})
	if err := errors.Join(exportErr, target.Close()); err != nil {
		return err
	}
	fmt.Fprintf(context.App.Writer, "Exported %d nodes of trie %v in %v\n", count, root, time.Since(start).Round(time.Millisecond))
	return nil
}
