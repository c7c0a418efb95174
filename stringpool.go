// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package bdat

import (
	"bytes"
	"fmt"

	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/encoding/unicode"
)

// LegacyEncoding selects how a legacy string pool's bytes are decoded to
// UTF-8 Go strings. Modern pools are always interpreted as UTF-8/hashed;
// only the legacy dialect was observed shipping Shift-JIS text for titles
// localized in Japan.
type LegacyEncoding uint8

const (
	// EncodingUTF8 treats pool bytes as already being UTF-8 (the common case).
	EncodingUTF8 LegacyEncoding = iota
	// EncodingShiftJIS decodes pool bytes as Shift-JIS before use.
	EncodingShiftJIS
)

// stringPool is an append-only (on write), offset-indexed (on read) byte
// pool. Offsets passed to get and returned by append are relative to the
// pool's first byte. Legacy String cells store table-relative offsets,
// which rowBytesLayout.stringBase translates before they reach the pool
// (spec.md §4.3, §6).
type stringPool struct {
	data     []byte
	encoding LegacyEncoding
}

func newStringPool(encoding LegacyEncoding) *stringPool {
	return &stringPool{encoding: encoding}
}

// wrapStringPool builds a read-only pool over already-resolved bytes.
func wrapStringPool(data []byte, encoding LegacyEncoding) *stringPool {
	return &stringPool{data: data, encoding: encoding}
}

// get returns the nul-terminated string starting at offset, decoded to
// UTF-8. offset is relative to the pool's own start.
func (p *stringPool) get(offset uint32) (string, error) {
	if offset > uint32(len(p.data)) {
		return "", fmt.Errorf("%w: string offset 0x%x outside pool of size %d",
			ErrInvalidFormat, offset, len(p.data))
	}
	end := bytes.IndexByte(p.data[offset:], 0)
	if end < 0 {
		return "", fmt.Errorf("%w: unterminated string at offset 0x%x", ErrTruncated, offset)
	}
	raw := p.data[offset : offset+uint32(end)]
	return decodeLegacyText(raw, p.encoding)
}

// append writes s nul-terminated at the pool's current end and returns
// its offset. Legacy pools under EncodingShiftJIS round-trip through
// encodeLegacyText so that a decode/re-encode cycle reproduces the
// original bytes rather than silently re-emitting the UTF-8 form.
func (p *stringPool) append(s string) uint32 {
	offset := uint32(len(p.data))
	raw, err := encodeLegacyText(s, p.encoding)
	if err != nil {
		raw = []byte(s)
	}
	p.data = append(p.data, raw...)
	p.data = append(p.data, 0)
	return offset
}

// hashSentinel is the leading zero byte the modern pool uses to signal
// that table/column names in this file are hashed rather than interned as
// strings. Emitters that use hashed names must reproduce it.
const hashSentinel = 0

func (p *stringPool) writeHashSentinel() {
	p.data = append([]byte{hashSentinel}, p.data...)
}

func (p *stringPool) hasHashSentinel() bool {
	return len(p.data) > 0 && p.data[0] == hashSentinel
}

func decodeLegacyText(raw []byte, encoding LegacyEncoding) (string, error) {
	if encoding != EncodingShiftJIS {
		return decodeModernName(raw)
	}
	decoded, err := japanese.ShiftJIS.NewDecoder().Bytes(raw)
	if err != nil {
		// Fall back to a best-effort UTF-8 interpretation rather than
		// failing the whole decode over a single mistyped string.
		return string(raw), nil
	}
	return string(decoded), nil
}

// encodeLegacyText is the inverse of decodeLegacyText, used by the legacy
// encoder when emitting a pool built under EncodingShiftJIS.
func encodeLegacyText(s string, encoding LegacyEncoding) ([]byte, error) {
	if encoding != EncodingShiftJIS {
		return []byte(s), nil
	}
	return japanese.ShiftJIS.NewEncoder().Bytes([]byte(s))
}

// decodeModernName strips a byte-order mark before interpreting pool
// bytes as UTF-8: the modern dialect's table/column name hashes, debug
// strings and DebugString cells all route through this (decodeLegacyText
// calls it for every pool not built under EncodingShiftJIS), and modern
// exports were observed carrying a stray UTF-8 BOM on some strings via
// x/text's BOM-aware decoder.
func decodeModernName(raw []byte) (string, error) {
	decoder := unicode.BOMOverride(unicode.UTF8.NewDecoder())
	decoded, err := decoder.Bytes(raw)
	if err != nil {
		return string(raw), nil
	}
	return string(decoded), nil
}
