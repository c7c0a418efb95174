// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package bdat

import "fmt"

// scramble is the legacy dialect's weak XOR stream cipher. It is stateful:
// each two-byte step derives its XOR pair from the 16-bit key, then feeds
// the key forward from the *ciphertext* bytes at that position, so that
// unscrambling a buffer reproduces the exact keystream scrambling it used.
// decrypt(encrypt(x, k), k) == x holds because both directions chain the
// key from the same ciphertext-side bytes; they simply arrive at them from
// opposite ends (decrypt already holds them, encrypt just produced them).
//
// Modeled on the key-feedback XOR loop the teacher uses to unmask the
// `@comp.id` rich-header entries (richheader.go), generalized from a
// single derived key into BDAT's two-range stream.
func scrambleRange(data []byte, start, end uint32, key uint16, encrypting bool) error {
	if start > end || end > uint32(len(data)) {
		return fmt.Errorf("%w: scramble range [0x%x,0x%x) outside buffer of size %d",
			ErrInvalidFormat, start, end, len(data))
	}
	if (end-start)%2 != 0 {
		return fmt.Errorf("%w: scramble range [0x%x,0x%x) has odd length",
			ErrInvalidFormat, start, end)
	}

	k1 := byte(key>>8) ^ 0xFF
	k2 := byte(key) ^ 0xFF

	for i := start; i < end; i += 2 {
		a, b := data[i], data[i+1]
		outA, outB := a^k1, b^k2

		if encrypting {
			// Ciphertext is the value we just produced.
			k1, k2 = outA, outB
		} else {
			// Ciphertext is the value we were handed.
			k1, k2 = a, b
		}

		data[i], data[i+1] = outA, outB
	}
	return nil
}

// decryptRange undoes scrambling in place.
func decryptRange(data []byte, start, end uint32, key uint16) error {
	return scrambleRange(data, start, end, key, false)
}

// encryptRange scrambles a plaintext range in place.
func encryptRange(data []byte, start, end uint32, key uint16) error {
	return scrambleRange(data, start, end, key, true)
}

// scrambleSections applies decryptRange/encryptRange to the name-table→
// hash-table range and, when requested, the string table, matching the
// legacy header's scramble flag (bit 1). Both ranges use the same key,
// the checksum stored at header offset 18.
func scrambleSections(data []byte, key uint16, nameTableStart, hashTableStart, stringTableStart, stringTableEnd uint32, scrambleStrings, encrypting bool) error {
	op := decryptRange
	if encrypting {
		op = encryptRange
	}
	if err := op(data, nameTableStart, hashTableStart, key); err != nil {
		return err
	}
	if scrambleStrings {
		if err := op(data, stringTableStart, stringTableEnd, key); err != nil {
			return err
		}
	}
	return nil
}
