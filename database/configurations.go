// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package database

import (
	"fmt"
	"path/filepath"

	"github.com/Fantom-foundation/triedb/backend/store"
	"github.com/Fantom-foundation/triedb/backend/store/gethdb"
	"github.com/Fantom-foundation/triedb/backend/store/ldb"
	"github.com/Fantom-foundation/triedb/common"
	"github.com/Fantom-foundation/triedb/database/mpt"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// Backend names the durable key/value engine holding the trie nodes.
type Backend string

const (
	// LevelDbBackend stores nodes in a goleveldb instance.
	LevelDbBackend Backend = "leveldb"
	// GethLevelDbBackend stores nodes in a go-ethereum managed LevelDB.
	GethLevelDbBackend Backend = "geth-leveldb"
	// MemoryBackend keeps nodes in memory only.
	MemoryBackend Backend = "memory"
)

// storeDirectory is the sub-directory of the database directory holding the
// node store.
const storeDirectory = "nodes"

const UnsupportedConfiguration = common.ConstError("unsupported configuration")

// Config summarizes the parameters of a database.
type Config struct {
	// Directory is the location of persistent backends.
	Directory string
	// Backend selects the key/value engine, defaults to leveldb if a
	// directory is given and to memory otherwise.
	Backend Backend
	// CacheSize is the capacity of the read cache in bytes, disabled if 0.
	CacheSize int
	// Pruning enables the pruning journal deleting the nodes of discarded
	// forks.
	Pruning bool
	// Trie is the configuration of tries created through the database. Its
	// PruningEnabled flag additionally deletes nodes replaced by updates. This
	// is only valid if the tries of the database do not share nodes with each
	// other and requires Pruning to be enabled.
	Trie mpt.MptConfig
}

// DefaultConfig is the configuration of an in-memory database without
// pruning using Aion tries.
var DefaultConfig = Config{
	Backend:   MemoryBackend,
	CacheSize: 16 << 20,
	Trie:      mpt.AionConfig,
}

func (c Config) withDefaults() Config {
	if c.Backend == "" {
		if c.Directory == "" {
			c.Backend = MemoryBackend
		} else {
			c.Backend = LevelDbBackend
		}
	}
	if c.Trie.Name == "" {
		c.Trie = mpt.AionConfig
	}
	return c
}

// BackendFactory opens the node store of the given backend kind in the given
// directory.
type BackendFactory func(directory string) (store.Store, error)

var backendRegistry = map[Backend]BackendFactory{}

// RegisterBackend makes a backend available for new databases. Registering
// the same backend twice is a programming error.
func RegisterBackend(backend Backend, factory BackendFactory) {
	if _, found := backendRegistry[backend]; found {
		panic(fmt.Sprintf("attempted to register multiple factories for %v", backend))
	}
	backendRegistry[backend] = factory
}

// GetAllRegisteredBackends lists the names of all available backends.
func GetAllRegisteredBackends() []Backend {
	res := maps.Keys(backendRegistry)
	slices.Sort(res)
	return res
}

func (c Config) check() error {
	if c.Trie.PruningEnabled && !c.Pruning {
		return fmt.Errorf("%w: pruning of replaced trie nodes requires the pruning journal", UnsupportedConfiguration)
	}
	return nil
}

func openBackend(config Config) (store.Store, error) {
	factory, found := backendRegistry[config.Backend]
	if !found {
		return nil, fmt.Errorf("%w: no registered backend %q", UnsupportedConfiguration, config.Backend)
	}
	if config.Backend != MemoryBackend && config.Directory == "" {
		return nil, fmt.Errorf("%w: backend %q requires a directory", UnsupportedConfiguration, config.Backend)
	}
	return factory(filepath.Join(config.Directory, storeDirectory))
}

func init() {
	RegisterBackend(LevelDbBackend, func(directory string) (store.Store, error) {
		return ldb.OpenStore(directory)
	})
	RegisterBackend(GethLevelDbBackend, func(directory string) (store.Store, error) {
		return gethdb.OpenLevelDBStore(directory, 16, 16)
	})
	RegisterBackend(MemoryBackend, func(string) (store.Store, error) {
		return gethdb.NewMemoryStore(), nil
	})
}
