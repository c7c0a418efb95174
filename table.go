// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package bdat

import "fmt"

// Dialect distinguishes the two incompatible BDAT families. Rather than a
// polymorphic base type, each dialect gets its own parallel codec
// (legacy.go/legacy_encode.go and modern.go/modern_encode.go) sharing this
// value/schema model and producing the same Table output type.
type Dialect uint8

const (
	// DialectLegacy covers the pre-XC3 family (Wii/3DS/XCX/XC2/DE variants).
	DialectLegacy Dialect = iota
	// DialectModern covers the XC3 family: version byte 4, hashed names.
	DialectModern
)

// LegacyVariant narrows the legacy dialect by hardware target. It governs
// header size, column-node layout, float encoding and byte order.
type LegacyVariant uint8

const (
	// VariantWii: 64-byte header, inline column nodes, big-endian, IEEE float.
	VariantWii LegacyVariant = iota
	// Variant3DS: 32-byte header ('TADB' byte order), inline column nodes,
	// little-endian, IEEE float.
	Variant3DS
	// VariantXCX: 64-byte header, separate column-node section, big-endian,
	// 20.12 fixed-point float.
	VariantXCX
	// VariantXC2: 64-byte header, separate column-node section,
	// little-endian, IEEE float.
	VariantXC2
	// VariantDE (Definitive Edition): same layout as XC2.
	VariantDE
)

// hasInlineColumnNodes reports whether column nodes are inlined in the
// name table (Wii/3DS) rather than living in their own section (XCX+).
func (v LegacyVariant) hasInlineColumnNodes() bool {
	return v == VariantWii || v == Variant3DS
}

// headerSize returns the legacy table header's byte size for this variant.
func (v LegacyVariant) headerSize() uint32 {
	if v == Variant3DS {
		return 32
	}
	return 64
}

// fixedPointFloat reports whether Float cells use 20.12 fixed point
// instead of IEEE-754 binary32.
func (v LegacyVariant) fixedPointFloat() bool {
	return v == VariantXCX
}

// Table is the dialect-agnostic, fully-decoded in-memory representation
// of one BDAT table: schema, rows, and the string pool handle they
// resolved string cells against. It is produced either by decoding a
// buffer (the decoder owns the data; the original buffer may be dropped)
// or built programmatically by a caller.
type Table struct {
	Name    Name
	Schema  Schema
	BaseID  uint32
	Rows    []Row
	Dialect Dialect

	pool *stringPool
}

// Row returns the row with the given game-visible row id. Index = id -
// BaseID; ids outside [BaseID, BaseID+len(Rows)) fail with ErrNoSuchRow.
func (t *Table) Row(id uint32) (Row, error) {
	if id < t.BaseID {
		return Row{}, fmt.Errorf("%w: row id %d below base id %d", ErrNoSuchRow, id, t.BaseID)
	}
	idx := id - t.BaseID
	if idx >= uint32(len(t.Rows)) {
		return Row{}, fmt.Errorf("%w: row id %d", ErrNoSuchRow, id)
	}
	return t.Rows[idx], nil
}

// Get resolves a cell by row id and plain column name.
func (t *Table) Get(id uint32, column string) (Value, error) {
	row, err := t.Row(id)
	if err != nil {
		return Value{}, err
	}
	return row.Get(t.Schema, column)
}

// GetHash resolves a cell by row id and column hash label (modern dialect).
func (t *Table) GetHash(id uint32, hash uint32) (Value, error) {
	row, err := t.Row(id)
	if err != nil {
		return Value{}, err
	}
	return row.GetHash(t.Schema, hash)
}

// RowCount returns the number of rows in the table.
func (t *Table) RowCount() int { return len(t.Rows) }
