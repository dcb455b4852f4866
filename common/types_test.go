// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package common

import (
	"strings"
	"testing"
)

func TestHash_ParseAcceptsPrintedForm(t *testing.T) {
	want := Keccak256.Hash([]byte("dog"))
	for _, str := range []string{want.String(), "0x" + want.String(), strings.ToUpper(want.String())} {
		got, err := ParseHash(str)
		if err != nil {
			t.Fatalf("failed to parse %q: %v", str, err)
		}
		if got != want {
			t.Errorf("unexpected hash, wanted %v, got %v", want, got)
		}
	}
}

func TestHash_ParseRejectsInvalidInput(t *testing.T) {
	for _, str := range []string{"", "0x12", "xyz", strings.Repeat("00", HashSize+1)} {
		if _, err := ParseHash(str); err == nil {
			t.Errorf("expected %q to be rejected", str)
		}
	}
}

func TestHash_FromBytesRequiresExactLength(t *testing.T) {
	want := Blake2b256.Hash(nil)
	if got, ok := HashFromBytes(want.Bytes()); !ok || got != want {
		t.Errorf("failed to convert bytes, wanted %v, got %v", want, got)
	}
	if _, ok := HashFromBytes(want.Bytes()[1:]); ok {
		t.Errorf("short input should be rejected")
	}
}

func TestHash_BytesReturnsCopy(t *testing.T) {
	hash := Blake2b256.Hash([]byte("dog"))
	data := hash.Bytes()
	data[0]++
	if data[0] == hash[0] {
		t.Errorf("modifying the bytes changed the hash")
	}
}

func TestHash_ConvertsToGeth(t *testing.T) {
	hash := Keccak256.Hash([]byte("dog"))
	if got := hash.ToGeth().Hex(); got != "0x"+hash.String() {
		t.Errorf("unexpected geth hash, wanted 0x%v, got %v", hash, got)
	}
}
