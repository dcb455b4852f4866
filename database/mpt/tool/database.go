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
	"github.com/Fantom-foundation/triedb/database"
	"github.com/Fantom-foundation/triedb/database/mpt"
	"github.com/urfave/cli/v2"
)

var (
	backendFlag = cli.StringFlag{
		Name:  "backend",
		Usage: "the key/value backend of the database (leveldb, geth-leveldb)",
		Value: string(database.LevelDbBackend),
	}
	trieFlag = cli.StringFlag{
		Name:  "trie",
		Usage: "the trie configuration of the database (Aion, Ethereum)",
		Value: mpt.AionConfig.Name,
	}
)

func openDatabase(context *cli.Context, dir string) (*database.Database, error) {
	config, found := mpt.GetConfigByName(context.String(trieFlag.Name))
	if !found {
		return nil, fmt.Errorf("unknown trie configuration %q", context.String(trieFlag.Name))
	}
	return database.OpenDatabase(database.Config{
		Directory: dir,
		Backend:   database.Backend(context.String(backendFlag.Name)),
		Trie:      config,
	})
}

// parseArgs checks the number of arguments and resolves the database
// directory and the root hash given as the first two arguments.
func parseArgs(context *cli.Context, want int) (string, common.Hash, error) {
	if context.Args().Len() != want {
		return "", common.Hash{}, fmt.Errorf("expected %d arguments, got %d, usage: %s", want, context.Args().Len(), context.Command.ArgsUsage)
	}
	root, err := common.ParseHash(context.Args().Get(1))
	return context.Args().Get(0), root, err
}

// withTrie opens the database in the given directory and runs the given
// operation on a trie positioned at the given root.
func withTrie(context *cli.Context, dir string, root common.Hash, op func(*mpt.Trie) error) (err error) {
	db, err := openDatabase(context, dir)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("error closing database: %w", closeErr)
		}
	}()
	trie, err := db.NewTrie(root)
	if err != nil {
		return err
	}
	return op(trie)
}
