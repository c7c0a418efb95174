// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package bdat

import "github.com/spaolacci/murmur3"

// legacyHash reproduces the closed-addressing column-name hash the legacy
// dialect's emitter and the game's own loader both use: the first 8 bytes
// of the name (or 0 for an empty name) folded with a base-7 multiplier.
func legacyHash(name string) uint32 {
	if len(name) == 0 {
		return 0
	}
	h := uint32(name[0])
	n := len(name)
	if n > 8 {
		n = 8
	}
	for i := 1; i < n; i++ {
		h = h*7 + uint32(name[i])
	}
	return h
}

// legacyHashSlot resolves a column name to its slot in the closed-
// addressing hash table of the given factor. Ties are resolved by walking
// the slot's next_offset chain, not by this function.
func legacyHashSlot(name string, hashFactor uint32) uint32 {
	return legacyHash(name) % hashFactor
}

// modernHashLabel computes the 32-bit Murmur3 hash label the modern
// dialect uses in place of plain names, for both table and column names
// and for Hash-typed cell values.
func modernHashLabel(name string) uint32 {
	return murmur3.Sum32([]byte(name))
}
