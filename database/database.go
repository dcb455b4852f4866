// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

// Package database assembles the node storage of tries. A database opens a
// durable key/value backend, decorates it with locking, caching and the
// pruning journal, and creates tries reading and writing through this chain.
package database

import (
	"errors"
	"fmt"

	"github.com/Fantom-foundation/triedb/backend/store"
	"github.com/Fantom-foundation/triedb/backend/store/cache"
	"github.com/Fantom-foundation/triedb/backend/store/synced"
	"github.com/Fantom-foundation/triedb/common"
	"github.com/Fantom-foundation/triedb/database/journal"
	"github.com/Fantom-foundation/triedb/database/mpt"
	"github.com/ethereum/go-ethereum/log"
)

// Database is the node storage shared by the tries of a node.
type Database struct {
	config    Config
	journal   *journal.PruneDataSource
	marked    bool // whether the directory carries the in-use mark
	recovered bool
}

// OpenDatabase opens or creates the database described by the given
// configuration.
func OpenDatabase(config Config) (*Database, error) {
	config = config.withDefaults()
	if err := config.check(); err != nil {
		return nil, err
	}
	marked := config.Backend != MemoryBackend && config.Directory != ""
	recovered := false
	if marked {
		var err error
		if recovered, err = markOpen(config.Directory); err != nil {
			return nil, err
		}
		if recovered {
			log.Warn("Trie database was not closed properly, recently written nodes may be missing", "directory", config.Directory)
		}
	}
	base, err := openBackend(config)
	if err != nil {
		if marked && !recovered {
			err = errors.Join(err, markClosed(config.Directory))
		}
		return nil, fmt.Errorf("failed to open %s backend: %w", config.Backend, err)
	}
	var chain store.Store = synced.Sync(base)
	if config.CacheSize > 0 {
		chain = cache.NewStore(chain, config.CacheSize)
	}
	res := &Database{
		config:    config,
		journal:   journal.NewPruneDataSource(chain),
		marked:    marked,
		recovered: recovered,
	}
	res.journal.SetPruneEnabled(config.Pruning)
	log.Info("Opened trie database", "backend", config.Backend, "directory", config.Directory,
		"cache", config.CacheSize, "pruning", config.Pruning, "trie", config.Trie.Name,
		"triePruning", config.Trie.PruningEnabled)
	return res, nil
}

// Config returns the effective configuration of this database.
func (d *Database) Config() Config {
	return d.config
}

// Recovered reports whether the database was not closed properly when it
// was used last.
func (d *Database) Recovered() bool {
	return d.recovered
}

// Store is the decorated node store of this database.
func (d *Database) Store() store.Store {
	return d.journal
}

// Journal provides access to the pruning journal for inspection.
func (d *Database) Journal() *journal.PruneDataSource {
	return d.journal
}

// NewTrie creates a trie stored in this database, positioned at the given
// root. Use the empty root hash of the configured algorithm for new tries.
func (d *Database) NewTrie(root common.Hash) (*mpt.Trie, error) {
	trie, err := mpt.NewTrie(d.journal, d.config.Trie)
	if err != nil {
		return nil, err
	}
	trie.SetRootHash(root)
	return trie, nil
}

// NewSecureTrie is like NewTrie but creates a trie hashing its keys.
func (d *Database) NewSecureTrie(root common.Hash) (*mpt.SecureTrie, error) {
	trie, err := mpt.NewSecureTrie(d.journal, d.config.Trie)
	if err != nil {
		return nil, err
	}
	trie.SetRootHash(root)
	return trie, nil
}

// EmptyRootHash is the root hash of empty tries of this database.
func (d *Database) EmptyRootHash() common.Hash {
	return mpt.EmptyRootHash(d.config.Trie.Hashing)
}

// StoreBlockChanges attributes all node changes since the last call to the
// given block.
func (d *Database) StoreBlockChanges(blockHash common.Hash, blockNumber uint64) {
	d.journal.StoreBlockChanges(blockHash, blockNumber)
}

// Prune declares the given block final and deletes the nodes it replaced as
// well as the nodes of competing forks.
func (d *Database) Prune(blockHash common.Hash, blockNumber uint64) error {
	return d.journal.Prune(blockHash, blockNumber)
}

// Flush commits all written nodes to the backend.
func (d *Database) Flush() error {
	return d.journal.Commit()
}

// Close flushes and closes the database.
func (d *Database) Close() error {
	err := errors.Join(d.journal.Commit(), d.journal.Close())
	if d.marked {
		err = errors.Join(err, markClosed(d.config.Directory))
	}
	log.Info("Closed trie database", "directory", d.config.Directory, "err", err)
	return err
}
