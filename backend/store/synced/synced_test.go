// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package synced

import (
	"testing"

	"github.com/Fantom-foundation/triedb/backend/store"
	"github.com/Fantom-foundation/triedb/backend/store/gethdb"
	"github.com/Fantom-foundation/triedb/backend/store/storetest"
	"github.com/golang/mock/gomock"
)

func TestSyncedStore_Compliance(t *testing.T) {
	storetest.RunComplianceTests(t, func(t *testing.T) store.Store {
		return Sync(gethdb.NewMemoryStore())
	})
}

func TestSyncedStore_ForwardsCalls(t *testing.T) {
	ctrl := gomock.NewController(t)
	nested := store.NewMockStore(ctrl)
	s := Sync(nested)

	key := []byte("key")
	gomock.InOrder(
		nested.EXPECT().Put(key, []byte("value")).Return(nil),
		nested.EXPECT().Get(key).Return([]byte("value"), true, nil),
		nested.EXPECT().Commit().Return(nil),
		nested.EXPECT().Close().Return(nil),
	)

	if err := s.Put(key, []byte("value")); err != nil {
		t.Fatalf("failed to put: %v", err)
	}
	if _, found, err := s.Get(key); err != nil || !found {
		t.Fatalf("failed to get: %t, %v", found, err)
	}
	if err := s.Commit(); err != nil {
		t.Fatalf("failed to commit: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("failed to close: %v", err)
	}
}
