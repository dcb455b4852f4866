// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package cache

import (
	"errors"
	"testing"

	"github.com/Fantom-foundation/triedb/backend/store"
	"github.com/Fantom-foundation/triedb/backend/store/gethdb"
	"github.com/Fantom-foundation/triedb/backend/store/storetest"
	"github.com/golang/mock/gomock"
)

const testCacheSize = 1 << 20

func TestCachedStore_Compliance(t *testing.T) {
	storetest.RunComplianceTests(t, func(t *testing.T) store.Store {
		return NewStore(gethdb.NewMemoryStore(), testCacheSize)
	})
}

func TestCachedStore_SecondGetIsServedFromCache(t *testing.T) {
	ctrl := gomock.NewController(t)
	nested := store.NewMockStore(ctrl)
	s := NewStore(nested, testCacheSize)

	key := []byte("key")
	nested.EXPECT().IsClosed().Return(false).Times(2)
	nested.EXPECT().Get(key).Return([]byte("value"), true, nil).Times(1)

	for i := 0; i < 2; i++ {
		storetest.ExpectValue(t, s, key, []byte("value"))
	}
	if stats := s.Stats(); stats.EntriesCount != 1 {
		t.Errorf("unexpected number of cached entries: %d", stats.EntriesCount)
	}
}

func TestCachedStore_MissingKeysAreNotCached(t *testing.T) {
	ctrl := gomock.NewController(t)
	nested := store.NewMockStore(ctrl)
	s := NewStore(nested, testCacheSize)

	key := []byte("key")
	nested.EXPECT().IsClosed().Return(false).Times(2)
	nested.EXPECT().Get(key).Return(nil, false, nil).Times(2)

	for i := 0; i < 2; i++ {
		storetest.ExpectAbsent(t, s, key)
	}
}

func TestCachedStore_DeleteInvalidatesCache(t *testing.T) {
	s := NewStore(gethdb.NewMemoryStore(), testCacheSize)
	defer s.Close()
	key := []byte("key")
	storetest.Put(t, s, key, []byte("value"))
	storetest.ExpectValue(t, s, key, []byte("value"))
	if err := s.Delete(key); err != nil {
		t.Fatalf("failed to delete: %v", err)
	}
	storetest.ExpectAbsent(t, s, key)

	storetest.Put(t, s, key, []byte("value"))
	if err := s.DeleteBatch([][]byte{key}); err != nil {
		t.Fatalf("failed to delete batch: %v", err)
	}
	storetest.ExpectAbsent(t, s, key)
}

func TestCachedStore_FailedBatchInvalidatesCache(t *testing.T) {
	ctrl := gomock.NewController(t)
	nested := store.NewMockStore(ctrl)
	s := NewStore(nested, testCacheSize)

	key := []byte("key")
	injected := errors.New("injected")
	nested.EXPECT().Put(key, []byte("old")).Return(nil)
	nested.EXPECT().PutBatch(gomock.Any()).Return(injected)
	nested.EXPECT().IsClosed().Return(false)
	nested.EXPECT().Get(key).Return([]byte("new"), true, nil)

	storetest.Put(t, s, key, []byte("old"))
	if err := s.PutBatch(map[string][]byte{"key": []byte("new")}); !errors.Is(err, injected) {
		t.Fatalf("expected injected error, got %v", err)
	}
	storetest.ExpectValue(t, s, key, []byte("new"))
}

func TestCachedStore_NestedErrorsArePropagated(t *testing.T) {
	ctrl := gomock.NewController(t)
	nested := store.NewMockStore(ctrl)
	s := NewStore(nested, testCacheSize)

	injected := errors.New("injected")
	nested.EXPECT().IsClosed().Return(false)
	nested.EXPECT().Get(gomock.Any()).Return(nil, false, injected)

	if _, _, err := s.Get([]byte("key")); !errors.Is(err, injected) {
		t.Errorf("expected injected error, got %v", err)
	}
}
