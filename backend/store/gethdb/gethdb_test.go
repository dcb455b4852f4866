// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package gethdb

import (
	"testing"

	"github.com/Fantom-foundation/triedb/backend/store"
	"github.com/Fantom-foundation/triedb/backend/store/storetest"
	"github.com/ethereum/go-ethereum/ethdb/memorydb"
)

func TestMemoryStore_Compliance(t *testing.T) {
	storetest.RunComplianceTests(t, func(t *testing.T) store.Store {
		return NewMemoryStore()
	})
}

func TestLevelDBStore_Compliance(t *testing.T) {
	storetest.RunComplianceTests(t, func(t *testing.T) store.Store {
		s, err := OpenLevelDBStore(t.TempDir(), 16, 16)
		if err != nil {
			t.Fatalf("failed to open store: %v", err)
		}
		return s
	})
}

func TestMemoryStore_IsNotPersistent(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()
	if s.IsPersistent() {
		t.Errorf("memory store should not be persistent")
	}
	if _, ok := s.Path(); ok {
		t.Errorf("memory store should not have a path")
	}
}

func TestLevelDBStore_DataIsPersisted(t *testing.T) {
	dir := t.TempDir()
	s, err := OpenLevelDBStore(dir, 16, 16)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	storetest.Put(t, s, []byte("key"), []byte("value"))
	if err := s.Close(); err != nil {
		t.Fatalf("failed to close: %v", err)
	}
	if !s.Open() {
		t.Fatalf("failed to re-open")
	}
	defer s.Close()
	storetest.ExpectValue(t, s, []byte("key"), []byte("value"))
}

func TestWrap_ExposesExistingDatabase(t *testing.T) {
	db := memorydb.New()
	if err := db.Put([]byte("key"), []byte("value")); err != nil {
		t.Fatalf("failed to prepare database: %v", err)
	}
	s := Wrap(db)
	storetest.ExpectValue(t, s, []byte("key"), []byte("value"))
	storetest.Put(t, s, []byte("other"), []byte("data"))
	if has, _ := db.Has([]byte("other")); !has {
		t.Errorf("writes should reach the wrapped database")
	}
	if err := s.Close(); err != nil {
		t.Fatalf("failed to close: %v", err)
	}
	if s.Open() {
		t.Errorf("wrapped databases should not be re-openable")
	}
}
