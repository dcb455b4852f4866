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
	"bytes"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Fantom-foundation/triedb/common"
	"github.com/Fantom-foundation/triedb/database"
	"github.com/Fantom-foundation/triedb/database/mpt"
)

// createTestDatabase creates a database in a temporary directory holding a
// trie with a few entries and returns the directory and the trie root.
func createTestDatabase(t *testing.T) (string, common.Hash) {
	t.Helper()
	dir := t.TempDir()
	db, err := database.OpenDatabase(database.Config{Directory: dir, Trie: mpt.AionConfig})
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	trie, err := db.NewTrie(db.EmptyRootHash())
	if err != nil {
		t.Fatalf("failed to create trie: %v", err)
	}
	for i := 0; i < 100; i++ {
		key := fmt.Sprintf("key-%d", i)
		if err := trie.Update([]byte(key), []byte("a somewhat longer value of "+key)); err != nil {
			t.Fatalf("failed to update trie: %v", err)
		}
	}
	if err := trie.Commit(); err != nil {
		t.Fatalf("failed to commit trie: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("failed to close database: %v", err)
	}
	return dir, trie.RootHash()
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ErrWriter = &out
	err := app.Run(append([]string{"triedb"}, args...))
	return out.String(), err
}

func TestTool_InfoListsDatabaseProperties(t *testing.T) {
	dir, root := createTestDatabase(t)
	out, err := run(t, "info", dir)
	if err != nil {
		t.Fatalf("info failed: %v", err)
	}
	for _, want := range []string{"leveldb", "Aion", "blake2b-256", "Stored nodes"} {
		if !strings.Contains(out, want) {
			t.Errorf("output should contain %q, got %s", want, out)
		}
	}
	if strings.Contains(out, "Node Statistics") {
		t.Errorf("statistics should only be printed on request")
	}

	out, err = run(t, "info", "--root", root.String(), dir)
	if err != nil {
		t.Fatalf("info failed: %v", err)
	}
	if !strings.Contains(out, "Node Statistics") || !strings.Contains(out, "Branches") {
		t.Errorf("output should contain node statistics, got %s", out)
	}
}

func TestTool_InfoRequiresDirectory(t *testing.T) {
	if _, err := run(t, "info"); err == nil {
		t.Errorf("info without directory should fail")
	}
}

func TestTool_MissingReportsCompleteTrie(t *testing.T) {
	dir, root := createTestDatabase(t)
	out, err := run(t, "missing", dir, root.String())
	if err != nil {
		t.Fatalf("missing failed: %v", err)
	}
	if !strings.Contains(out, "is complete") {
		t.Errorf("trie should be complete, got %s", out)
	}
}

func TestTool_MissingReportsUnknownRoot(t *testing.T) {
	dir, _ := createTestDatabase(t)
	root := common.Hash{1, 2, 3}
	out, err := run(t, "missing", dir, root.String())
	if err != nil {
		t.Fatalf("missing failed: %v", err)
	}
	if !strings.Contains(out, "missing 1 nodes") || !strings.Contains(out, root.String()) {
		t.Errorf("root should be reported missing, got %s", out)
	}
}

func TestTool_DumpPrintsNodes(t *testing.T) {
	dir, root := createTestDatabase(t)
	out, err := run(t, "dump", dir, root.String())
	if err != nil {
		t.Fatalf("dump failed: %v", err)
	}
	if !strings.HasPrefix(out, "root: "+root.String()) {
		t.Errorf("unexpected dump output: %s", out)
	}
}

func TestTool_ArgumentsAreChecked(t *testing.T) {
	dir, root := createTestDatabase(t)
	tests := map[string][]string{
		"missing root":   {"dump", dir},
		"invalid root":   {"dump", dir, "xyz"},
		"too many":       {"missing", dir, root.String(), "extra"},
		"unknown config": {"dump", "--trie", "unknown", dir, root.String()},
		"same target":    {"export", dir, root.String(), dir},
	}
	for name, args := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := run(t, args...); err == nil {
				t.Errorf("command %v should fail", args)
			}
		})
	}
}

func TestTool_ExportCopiesTrie(t *testing.T) {
	dir, root := createTestDatabase(t)
	target := filepath.Join(t.TempDir(), "target")

	out, err := run(t, "export", dir, root.String(), target)
	if err != nil {
		t.Fatalf("export failed: %v", err)
	}
	if !strings.Contains(out, "Exported") {
		t.Errorf("unexpected export output: %s", out)
	}
	out, err = run(t, "missing", target, root.String())
	if err != nil {
		t.Fatalf("missing failed: %v", err)
	}
	if !strings.Contains(out, "is complete") {
		t.Errorf("exported trie should be complete, got %s", out)
	}

	// a second differential export has nothing left to copy
	out, err = run(t, "export", "--diff", dir, root.String(), target)
	if err != nil {
		t.Fatalf("export failed: %v", err)
	}
	if !strings.Contains(out, "Exported 0 nodes") {
		t.Errorf("differential export should skip present nodes, got %s", out)
	}
}

func TestTool_VerbosityIsChecked(t *testing.T) {
	dir, _ := createTestDatabase(t)
	if _, err := run(t, "--verbosity", "9", "info", dir); err == nil {
		t.Errorf("invalid verbosity should be rejected")
	}
	out, err := run(t, "--verbosity", "3", "info", dir)
	if err != nil {
		t.Fatalf("info failed: %v", err)
	}
	if !strings.Contains(out, "Opened trie database") {
		t.Errorf("info logs should be printed, got %s", out)
	}
}
