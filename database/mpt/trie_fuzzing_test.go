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

import (
	"bytes"
	"testing"
)

// FuzzTrie_RandomOperations interprets the fuzzer input as a sequence of
// update, delete and sync operations on short keys and compares the trie
// content with a reference map after every step.
func FuzzTrie_RandomOperations(f *testing.F) {
	f.Add([]byte{0, 1, 2, 0, 1, 3, 1, 1, 2})
	f.Add([]byte{0, 0x10, 5, 0, 0x11, 6, 2, 1, 0x10, 0, 0x12, 7})
	f.Add(bytes.Repeat([]byte{0, 7, 1}, 20))

	f.Fuzz(func(t *testing.T, ops []byte) {
		trie, db := newTestTrie(t, AionConfig)
		trie.SetPruningEnabled(true)
		reference := map[byte][]byte{}

		for i := 0; i < len(ops); {
			op := ops[i] % 3
			i++
			switch op {
			case 0: // update
				if i+1 >= len(ops) {
					return
				}
				key, length := ops[i], int(ops[i+1]%40)+1
				i += 2
				value := bytes.Repeat([]byte{key}, length)
				if err := trie.Update([]byte{key}, value); err != nil {
					t.Fatalf("failed to update: %v", err)
				}
				reference[key] = value
			case 1: // delete
				if i >= len(ops) {
					return
				}
				key := ops[i]
				i++
				if err := trie.Delete([]byte{key}); err != nil {
					t.Fatalf("failed to delete: %v", err)
				}
				delete(reference, key)
			case 2: // sync
				if err := trie.Sync(false); err != nil {
					t.Fatalf("failed to sync: %v", err)
				}
				if err := trie.Validate(); err != nil {
					t.Fatalf("trie is invalid after sync: %v", err)
				}
			}

			for key, want := range reference {
				got, found, err := trie.Get([]byte{key})
				if err != nil {
					t.Fatalf("failed to get: %v", err)
				}
				if !found || !bytes.Equal(got, want) {
					t.Fatalf("unexpected value for key %x, wanted %x, got %x", key, want, got)
				}
			}
		}

		// The root hash only depends on the content.
		other, _ := newTestTrie(t, AionConfig)
		for key, value := range reference {
			if err := other.Update([]byte{key}, value); err != nil {
				t.Fatalf("failed to update: %v", err)
			}
		}
		if got, want := trie.RootHash(), other.RootHash(); got != want {
			t.Errorf("root hash depends on update history, wanted %v, got %v", want, got)
		}

		syncTrie(t, trie)
		size, err := trie.Size(trie.RootHash())
		if err != nil {
			t.Fatalf("failed to compute size: %v", err)
		}
		keys, err := db.Keys()
		if err != nil {
			t.Fatalf("failed to list store keys: %v", err)
		}
		if len(keys) != size {
			t.Errorf("pruned store should only contain reachable nodes, wanted %d, got %d", size, len(keys))
		}
	})
}
