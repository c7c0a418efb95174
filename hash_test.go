// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package bdat

import "testing"

func TestLegacyHashEmptyName(t *testing.T) {
	if got := legacyHash(""); got != 0 {
		t.Fatalf("legacyHash(\"\") = %d, want 0", got)
	}
}

func TestLegacyHashDeterministic(t *testing.T) {
	a := legacyHash("Flags")
	b := legacyHash("Flags")
	if a != b {
		t.Fatalf("legacyHash not deterministic: %d != %d", a, b)
	}
}

func TestLegacyHashTruncatesAtEightBytes(t *testing.T) {
	// Anything beyond the 8th character must not change the hash.
	short := legacyHash("12345678")
	long := legacyHash("12345678abcdefg")
	if short != long {
		t.Fatalf("legacyHash should ignore bytes past 8: %d != %d", short, long)
	}
}

func TestLegacyHashSlotWithinFactor(t *testing.T) {
	const factor = 61
	slot := legacyHashSlot("ItemName", factor)
	if slot >= factor {
		t.Fatalf("legacyHashSlot returned %d, out of range [0,%d)", slot, factor)
	}
}

func TestModernHashLabelDeterministic(t *testing.T) {
	a := modernHashLabel("MNU_Flag")
	b := modernHashLabel("MNU_Flag")
	if a != b {
		t.Fatalf("modernHashLabel not deterministic: %d != %d", a, b)
	}
	if a == modernHashLabel("MNU_Flg") {
		t.Fatal("distinct names hashed to the same label (unexpected collision)")
	}
}
