// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package bdat

import "testing"

func TestStringPoolAppendGet(t *testing.T) {
	p := newStringPool(EncodingUTF8)
	off1 := p.append("Apple")
	off2 := p.append("Banana")

	s1, err := p.get(off1)
	if err != nil || s1 != "Apple" {
		t.Fatalf("get(off1) = %q, %v, want Apple, nil", s1, err)
	}
	s2, err := p.get(off2)
	if err != nil || s2 != "Banana" {
		t.Fatalf("get(off2) = %q, %v, want Banana, nil", s2, err)
	}
}

func TestStringPoolGetOutOfBounds(t *testing.T) {
	p := newStringPool(EncodingUTF8)
	p.append("x")
	if _, err := p.get(1000); err == nil {
		t.Fatal("expected an error reading an offset past the pool's data")
	}
}

func TestStringPoolGetUnterminated(t *testing.T) {
	p := wrapStringPool([]byte("no nul here"), EncodingUTF8)
	if _, err := p.get(0); err == nil {
		t.Fatal("expected ErrTruncated reading an unterminated string")
	}
}

func TestStringPoolShiftJISRoundTrip(t *testing.T) {
	p := newStringPool(EncodingShiftJIS)
	const want = "ゲーム"
	off := p.append(want)

	got, err := p.get(off)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != want {
		t.Fatalf("Shift-JIS round trip: got %q, want %q", got, want)
	}
}

func TestStringPoolHashSentinel(t *testing.T) {
	p := newStringPool(EncodingUTF8)
	if p.hasHashSentinel() {
		t.Fatal("empty pool should not report a hash sentinel")
	}
	p.writeHashSentinel()
	if !p.hasHashSentinel() {
		t.Fatal("expected hasHashSentinel() to be true after writeHashSentinel()")
	}
}
