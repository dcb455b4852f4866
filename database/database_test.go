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
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/Fantom-foundation/triedb/common"
	"github.com/Fantom-foundation/triedb/database/mpt"
)

func openTestDatabase(t *testing.T, config Config) *Database {
	t.Helper()
	db, err := OpenDatabase(config)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() {
		if db.Store().IsOpen() {
			db.Close()
		}
	})
	return db
}

func fill(t *testing.T, trie interface{ Update([]byte, []byte) error }, prefix string, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		key := fmt.Sprintf("%s-%d", prefix, i)
		if err := trie.Update([]byte(key), []byte("value-of-"+key+"-with-some-padding")); err != nil {
			t.Fatalf("failed to update trie: %v", err)
		}
	}
}

func commit(t *testing.T, trie *mpt.Trie) common.Hash {
	t.Helper()
	if err := trie.Sync(false); err != nil {
		t.Fatalf("failed to sync trie: %v", err)
	}
	return trie.RootHash()
}

// isValidRoot checks the root through a fresh trie, bypassing the node cache
// of existing tries.
func isValidRoot(t *testing.T, db *Database, root common.Hash) bool {
	t.Helper()
	trie, err := db.NewTrie(root)
	if err != nil {
		t.Fatalf("failed to create trie: %v", err)
	}
	return trie.IsValidRoot(root) && trie.Validate() == nil
}

func pruningTrieConfig() mpt.MptConfig {
	res := mpt.AionConfig
	res.PruningEnabled = true
	return res
}

func numStoredNodes(t *testing.T, db *Database) int {
	t.Helper()
	keys, err := db.Store().Keys()
	if err != nil {
		t.Fatalf("failed to list keys: %v", err)
	}
	return len(keys)
}

func TestDatabase_AllBackendsAreRegistered(t *testing.T) {
	want := fmt.Sprint([]Backend{GethLevelDbBackend, LevelDbBackend, MemoryBackend})
	if got := fmt.Sprint(GetAllRegisteredBackends()); got != want {
		t.Errorf("unexpected backends, wanted %v, got %v", want, got)
	}
}

func TestDatabase_AllBackendsStoreDataInNodeDirectory(t *testing.T) {
	for _, backend := range GetAllRegisteredBackends() {
		backend := backend
		t.Run(string(backend), func(t *testing.T) {
			t.Parallel()
			dir := t.TempDir()
			db, err := OpenDatabase(Config{Directory: dir, Backend: backend})
			if err != nil {
				t.Fatalf("failed to open database: %v", err)
			}
			trie, err := db.NewTrie(db.EmptyRootHash())
			if err != nil {
				t.Fatalf("failed to create trie: %v", err)
			}
			fill(t, trie, "key", 10)
			commit(t, trie)
			if err := db.Close(); err != nil {
				t.Fatalf("failed to close database: %v", err)
			}

			entries, err := os.ReadDir(dir)
			if err != nil {
				t.Fatalf("failed to list directory: %v", err)
			}
			if backend == MemoryBackend {
				if len(entries) != 0 {
					t.Errorf("memory backend should not write to disk, found %v", entries)
				}
				return
			}
			if len(entries) != 1 || entries[0].Name() != storeDirectory || !entries[0].IsDir() {
				t.Errorf("data should only be stored in the node directory, found %v", entries)
			}
		})
	}
}

func TestDatabase_DefaultsDependOnDirectory(t *testing.T) {
	if got := (Config{}).withDefaults().Backend; got != MemoryBackend {
		t.Errorf("unexpected default backend without directory, got %v", got)
	}
	config := Config{Directory: "somewhere"}.withDefaults()
	if config.Backend != LevelDbBackend {
		t.Errorf("unexpected default backend with directory, got %v", config.Backend)
	}
	if config.Trie.Name != mpt.AionConfig.Name {
		t.Errorf("unexpected default trie configuration, got %v", config.Trie.Name)
	}
}

func TestDatabase_InvalidConfigurationsAreRejected(t *testing.T) {
	tests := map[string]Config{
		"unknown backend":      {Backend: "unknown"},
		"leveldb without dir":  {Backend: LevelDbBackend},
		"geth ldb without dir": {Backend: GethLevelDbBackend},
		"trie pruning only":    {Trie: pruningTrieConfig()},
	}
	for name, config := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := OpenDatabase(config); !errors.Is(err, UnsupportedConfiguration) {
				t.Errorf("expected unsupported configuration error, got %v", err)
			}
		})
	}
}

func TestDatabase_InvalidTrieConfigurationIsRejected(t *testing.T) {
	db := openTestDatabase(t, Config{Trie: mpt.MptConfig{Name: "broken", Hashing: 17}})
	if _, err := db.NewTrie(db.EmptyRootHash()); err == nil {
		t.Errorf("creating a trie with an invalid configuration should fail")
	}
}

func TestDatabase_TriesSurviveReopening(t *testing.T) {
	for _, backend := range []Backend{LevelDbBackend, GethLevelDbBackend} {
		t.Run(string(backend), func(t *testing.T) {
			config := Config{Directory: t.TempDir(), Backend: backend, Trie: mpt.EthereumConfig}
			db, err := OpenDatabase(config)
			if err != nil {
				t.Fatalf("failed to open database: %v", err)
			}
			trie, err := db.NewSecureTrie(db.EmptyRootHash())
			if err != nil {
				t.Fatalf("failed to create trie: %v", err)
			}
			fill(t, trie, "key", 100)
			root := commit(t, trie.Trie)
			if err := db.Close(); err != nil {
				t.Fatalf("failed to close database: %v", err)
			}

			db = openTestDatabase(t, config)
			trie, err = db.NewSecureTrie(root)
			if err != nil {
				t.Fatalf("failed to create trie: %v", err)
			}
			if err := trie.Validate(); err != nil {
				t.Errorf("reopened trie is incomplete: %v", err)
			}
			value, found, err := trie.Get([]byte("key-42"))
			if err != nil || !found || string(value) != "value-of-key-42-with-some-padding" {
				t.Errorf("unexpected value after reopening: %q, %t, %v", value, found, err)
			}
		})
	}
}

func TestDatabase_PruningRemovesReplacedNodes(t *testing.T) {
	db := openTestDatabase(t, Config{Pruning: true, CacheSize: 1 << 20, Trie: pruningTrieConfig()})
	trie, err := db.NewTrie(db.EmptyRootHash())
	if err != nil {
		t.Fatalf("failed to create trie: %v", err)
	}
	if !trie.IsPruningEnabled() || !db.Journal().IsPruneEnabled() {
		t.Fatalf("pruning should be enabled")
	}

	fill(t, trie, "key", 100)
	root1 := commit(t, trie)
	db.StoreBlockChanges(common.Hash{1}, 1)

	fill(t, trie, "other", 50)
	root2 := commit(t, trie)
	db.StoreBlockChanges(common.Hash{2}, 2)

	if err := db.Prune(common.Hash{1}, 1); err != nil {
		t.Fatalf("failed to prune: %v", err)
	}
	if !isValidRoot(t, db, root1) {
		t.Errorf("nodes of block 1 should be retained until block 2 is final")
	}
	if err := db.Prune(common.Hash{2}, 2); err != nil {
		t.Fatalf("failed to prune: %v", err)
	}
	if isValidRoot(t, db, root1) {
		t.Errorf("nodes replaced by block 2 should be deleted")
	}
	if err := trie.Validate(); err != nil {
		t.Errorf("current trie should be complete: %v", err)
	}
	size, err := trie.Size(root2)
	if err != nil {
		t.Fatalf("failed to compute trie size: %v", err)
	}
	if got := numStoredNodes(t, db); got != size {
		t.Errorf("store should only contain nodes of the current trie, wanted %d, got %d", size, got)
	}
}

func TestDatabase_JournalPruningLeavesTriePruningDisabled(t *testing.T) {
	db := openTestDatabase(t, Config{Pruning: true})
	trie, err := db.NewTrie(db.EmptyRootHash())
	if err != nil {
		t.Fatalf("failed to create trie: %v", err)
	}
	if !db.Journal().IsPruneEnabled() {
		t.Errorf("journal pruning should be enabled")
	}
	if trie.IsPruningEnabled() {
		t.Errorf("pruning of replaced nodes should require an explicit trie configuration")
	}
}

func TestDatabase_PruningRetainsIdenticalLeavesOfOtherKeys(t *testing.T) {
	db := openTestDatabase(t, Config{Pruning: true, Trie: pruningTrieConfig()})
	trie, err := db.NewTrie(db.EmptyRootHash())
	if err != nil {
		t.Fatalf("failed to create trie: %v", err)
	}
	// both keys end up in leaves with the same remaining path and value
	key1, key2 := []byte("\x10same-suffix"), []byte("\x20same-suffix")
	value := []byte("a value long enough to keep the leaves out of their parent")
	for _, key := range [][]byte{key1, key2} {
		if err := trie.Update(key, value); err != nil {
			t.Fatalf("failed to update trie: %v", err)
		}
	}
	commit(t, trie)
	db.StoreBlockChanges(common.Hash{1}, 1)
	if err := db.Prune(common.Hash{1}, 1); err != nil {
		t.Fatalf("failed to prune: %v", err)
	}

	if err := trie.Update(key1, []byte("an updated value replacing one of the identical leaves")); err != nil {
		t.Fatalf("failed to update trie: %v", err)
	}
	root := commit(t, trie)
	db.StoreBlockChanges(common.Hash{2}, 2)
	if err := db.Prune(common.Hash{2}, 2); err != nil {
		t.Fatalf("failed to prune: %v", err)
	}

	fresh, err := db.NewTrie(root)
	if err != nil {
		t.Fatalf("failed to create trie: %v", err)
	}
	if err := fresh.Validate(); err != nil {
		t.Errorf("trie should be complete: %v", err)
	}
	got, found, err := fresh.Get(key2)
	if err != nil {
		t.Fatalf("failed to read untouched key: %v", err)
	}
	if !found || string(got) != string(value) {
		t.Errorf("unexpected value of untouched key, wanted %q, got %q", value, got)
	}
}

func TestDatabase_WithoutPruningAllRootsRemainValid(t *testing.T) {
	db := openTestDatabase(t, DefaultConfig)
	trie, err := db.NewTrie(db.EmptyRootHash())
	if err != nil {
		t.Fatalf("failed to create trie: %v", err)
	}
	fill(t, trie, "key", 100)
	root1 := commit(t, trie)
	db.StoreBlockChanges(common.Hash{1}, 1)
	fill(t, trie, "other", 50)
	commit(t, trie)
	db.StoreBlockChanges(common.Hash{2}, 2)
	if err := db.Prune(common.Hash{2}, 2); err != nil {
		t.Fatalf("failed to prune: %v", err)
	}

	old, err := db.NewTrie(root1)
	if err != nil {
		t.Fatalf("failed to create trie: %v", err)
	}
	if err := old.Validate(); err != nil {
		t.Errorf("historic trie should be complete: %v", err)
	}
}

func TestDatabase_PruningDiscardsForks(t *testing.T) {
	db := openTestDatabase(t, Config{Pruning: true})
	base, err := db.NewTrie(db.EmptyRootHash())
	if err != nil {
		t.Fatalf("failed to create trie: %v", err)
	}
	fill(t, base, "key", 50)
	root1 := commit(t, base)
	db.StoreBlockChanges(common.Hash{1}, 1)
	if err := db.Prune(common.Hash{1}, 1); err != nil {
		t.Fatalf("failed to prune: %v", err)
	}

	canonical, _ := db.NewTrie(root1)
	fill(t, canonical, "canonical", 20)
	canonicalRoot := commit(t, canonical)
	db.StoreBlockChanges(common.Hash{0xa}, 2)

	fork, _ := db.NewTrie(root1)
	fill(t, fork, "fork", 20)
	forkRoot := commit(t, fork)
	db.StoreBlockChanges(common.Hash{0xb}, 2)

	if err := db.Prune(common.Hash{0xa}, 2); err != nil {
		t.Fatalf("failed to prune: %v", err)
	}
	if isValidRoot(t, db, forkRoot) {
		t.Errorf("nodes of the fork should be deleted")
	}
	if !isValidRoot(t, db, canonicalRoot) {
		t.Errorf("canonical trie should be complete")
	}
	if got, want := canonical.RootHash(), canonicalRoot; got != want {
		t.Errorf("unexpected root, wanted %v, got %v", want, got)
	}
	if n := len(db.Journal().BlockUpdates()); n != 0 {
		t.Errorf("all block updates should be processed, got %d", n)
	}
}

func TestDatabase_ClosedDatabaseRejectsAccesses(t *testing.T) {
	dir := t.TempDir()
	db, err := OpenDatabase(Config{Directory: dir})
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	trie, err := db.NewTrie(db.EmptyRootHash())
	if err != nil {
		t.Fatalf("failed to create trie: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("failed to close database: %v", err)
	}
	fill(t, trie, "key", 10)
	if err := trie.Sync(false); err == nil {
		t.Errorf("syncing a trie of a closed database should fail")
	}
	if err := db.Close(); err == nil {
		t.Errorf("closing a closed database should fail")
	}
	if _, err := os.Stat(filepath.Join(dir, storeDirectory)); err != nil {
		t.Errorf("node directory should exist: %v", err)
	}
}
