// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

// Package storetest provides a test suite checking the store.Store contract,
// shared by all store implementations and decorators.
package storetest

import (
	"bytes"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"

	"github.com/Fantom-foundation/triedb/backend/store"
)

// Factory creates a new, empty and open store for a test.
type Factory func(t *testing.T) store.Store

// RunComplianceTests runs the full contract test suite on stores created by
// the given factory.
func RunComplianceTests(t *testing.T, factory Factory) {
	tests := map[string]func(*testing.T, store.Store){
		"EmptyStore":                 testEmptyStore,
		"PutAndGet":                  testPutAndGet,
		"PutOfNilValueDeletes":       testPutOfNilValueDeletes,
		"Delete":                     testDelete,
		"PutBatch":                   testPutBatch,
		"DeleteBatch":                testDeleteBatch,
		"Keys":                       testKeys,
		"NilKeysAreRejected":         testNilKeysAreRejected,
		"ClosedStoreRejectsAccesses": testClosedStoreRejectsAccesses,
		"StoreCanBeReopened":         testStoreCanBeReopened,
		"ConcurrentAccess":           testConcurrentAccess,
	}
	names := make([]string, 0, len(tests))
	for name := range tests {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		test := tests[name]
		t.Run(name, func(t *testing.T) {
			s := factory(t)
			defer s.Close()
			test(t, s)
		})
	}
}

// Get fetches a value and fails the test on errors.
func Get(t *testing.T, s store.Store, key []byte) ([]byte, bool) {
	t.Helper()
	value, found, err := s.Get(key)
	if err != nil {
		t.Fatalf("failed to get key %x: %v", key, err)
	}
	return value, found
}

// ExpectValue checks that the store maps the key to the given value.
func ExpectValue(t *testing.T, s store.Store, key, want []byte) {
	t.Helper()
	got, found := Get(t, s, key)
	if !found {
		t.Errorf("key %x not found, wanted %x", key, want)
		return
	}
	if !bytes.Equal(got, want) {
		t.Errorf("unexpected value for key %x, wanted %x, got %x", key, want, got)
	}
}

// ExpectAbsent checks that the store does not contain the key.
func ExpectAbsent(t *testing.T, s store.Store, key []byte) {
	t.Helper()
	if got, found := Get(t, s, key); found {
		t.Errorf("key %x should be absent, got %x", key, got)
	}
}

// Put stores a value and fails the test on errors.
func Put(t *testing.T, s store.Store, key, value []byte) {
	t.Helper()
	if err := s.Put(key, value); err != nil {
		t.Fatalf("failed to put key %x: %v", key, err)
	}
}

func testEmptyStore(t *testing.T, s store.Store) {
	empty, err := s.IsEmpty()
	if err != nil {
		t.Fatalf("failed to check for emptiness: %v", err)
	}
	if !empty {
		t.Errorf("new store should be empty")
	}
	keys, err := s.Keys()
	if err != nil {
		t.Fatalf("failed to list keys: %v", err)
	}
	if keys == nil || len(keys) != 0 {
		t.Errorf("unexpected keys of empty store: %v", keys)
	}
	ExpectAbsent(t, s, []byte("a"))
	if !s.IsOpen() || s.IsClosed() {
		t.Errorf("new store should be open")
	}
}

func testPutAndGet(t *testing.T, s store.Store) {
	Put(t, s, []byte("a"), []byte("1"))
	Put(t, s, []byte("b"), []byte("2"))
	ExpectValue(t, s, []byte("a"), []byte("1"))
	ExpectValue(t, s, []byte("b"), []byte("2"))
	Put(t, s, []byte("a"), []byte("3"))
	ExpectValue(t, s, []byte("a"), []byte("3"))

	empty, err := s.IsEmpty()
	if err != nil || empty {
		t.Errorf("store should not be empty, got %t, err %v", empty, err)
	}
}

func testPutOfNilValueDeletes(t *testing.T, s store.Store) {
	Put(t, s, []byte("a"), []byte("1"))
	Put(t, s, []byte("a"), nil)
	ExpectAbsent(t, s, []byte("a"))
}

func testDelete(t *testing.T, s store.Store) {
	Put(t, s, []byte("a"), []byte("1"))
	if err := s.Delete([]byte("a")); err != nil {
		t.Fatalf("failed to delete key: %v", err)
	}
	ExpectAbsent(t, s, []byte("a"))
	if err := s.Delete([]byte("missing")); err != nil {
		t.Errorf("deleting a missing key should succeed, got %v", err)
	}
}

func testPutBatch(t *testing.T, s store.Store) {
	Put(t, s, []byte("c"), []byte("old"))
	err := s.PutBatch(map[string][]byte{
		"a": []byte("1"),
		"b": []byte("2"),
		"c": nil,
	})
	if err != nil {
		t.Fatalf("failed to put batch: %v", err)
	}
	ExpectValue(t, s, []byte("a"), []byte("1"))
	ExpectValue(t, s, []byte("b"), []byte("2"))
	ExpectAbsent(t, s, []byte("c"))
}

func testDeleteBatch(t *testing.T, s store.Store) {
	for _, key := range []string{"a", "b", "c"} {
		Put(t, s, []byte(key), []byte(key))
	}
	if err := s.DeleteBatch([][]byte{[]byte("a"), []byte("c"), []byte("x")}); err != nil {
		t.Fatalf("failed to delete batch: %v", err)
	}
	ExpectAbsent(t, s, []byte("a"))
	ExpectValue(t, s, []byte("b"), []byte("b"))
	ExpectAbsent(t, s, []byte("c"))
}

func testKeys(t *testing.T, s store.Store) {
	want := []string{"a", "b", "c"}
	for _, key := range want {
		Put(t, s, []byte(key), []byte("v"))
	}
	keys, err := s.Keys()
	if err != nil {
		t.Fatalf("failed to list keys: %v", err)
	}
	got := make([]string, 0, len(keys))
	for _, key := range keys {
		got = append(got, string(key))
	}
	sort.Strings(got)
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("unexpected keys, wanted %v, got %v", want, got)
	}
}

func testNilKeysAreRejected(t *testing.T, s store.Store) {
	if _, _, err := s.Get(nil); !errors.Is(err, store.ErrInvalidKey) {
		t.Errorf("get with nil key should fail, got %v", err)
	}
	if err := s.Put(nil, []byte("v")); !errors.Is(err, store.ErrInvalidKey) {
		t.Errorf("put with nil key should fail, got %v", err)
	}
	if err := s.Delete(nil); !errors.Is(err, store.ErrInvalidKey) {
		t.Errorf("delete with nil key should fail, got %v", err)
	}
	if err := s.DeleteBatch([][]byte{[]byte("a"), nil}); !errors.Is(err, store.ErrInvalidKey) {
		t.Errorf("delete batch with nil key should fail, got %v", err)
	}
}

func testClosedStoreRejectsAccesses(t *testing.T, s store.Store) {
	Put(t, s, []byte("a"), []byte("1"))
	if err := s.Close(); err != nil {
		t.Fatalf("failed to close store: %v", err)
	}
	if s.IsOpen() || !s.IsClosed() {
		t.Errorf("closed store should report being closed")
	}
	key := []byte("a")
	checks := map[string]error{}
	_, _, checks["Get"] = s.Get(key)
	checks["Put"] = s.Put(key, []byte("2"))
	checks["Delete"] = s.Delete(key)
	checks["PutBatch"] = s.PutBatch(map[string][]byte{"a": []byte("2")})
	checks["DeleteBatch"] = s.DeleteBatch([][]byte{key})
	_, checks["Keys"] = s.Keys()
	_, checks["IsEmpty"] = s.IsEmpty()
	checks["Commit"] = s.Commit()
	_, checks["ApproximateSize"] = s.ApproximateSize()
	for op, err := range checks {
		if !errors.Is(err, store.ErrClosedStore) {
			t.Errorf("%s on closed store should fail with closed store error, got %v", op, err)
		}
	}
}

func testStoreCanBeReopened(t *testing.T, s store.Store) {
	if !s.Open() {
		t.Fatalf("opening an open store should succeed")
	}
	if err := s.Close(); err != nil {
		t.Fatalf("failed to close store: %v", err)
	}
	if !s.Open() {
		t.Fatalf("failed to re-open store")
	}
	Put(t, s, []byte("a"), []byte("1"))
	ExpectValue(t, s, []byte("a"), []byte("1"))
}

func testConcurrentAccess(t *testing.T, s store.Store) {
	const (
		numWorkers = 8
		numKeys    = 100
	)
	var wg sync.WaitGroup
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for j := 0; j < numKeys; j++ {
				key := []byte(fmt.Sprintf("%d-%d", worker, j))
				if err := s.Put(key, key); err != nil {
					t.Errorf("failed to put: %v", err)
					return
				}
				value, found, err := s.Get(key)
				if err != nil || !found || !bytes.Equal(value, key) {
					t.Errorf("unexpected result of concurrent get: %x, %t, %v", value, found, err)
					return
				}
			}
		}(i)
	}
	wg.Wait()
	keys, err := s.Keys()
	if err != nil {
		t.Fatalf("failed to list keys: %v", err)
	}
	if got, want := len(keys), numWorkers*numKeys; got != want {
		t.Errorf("unexpected number of keys, wanted %d, got %d", want, got)
	}
}
