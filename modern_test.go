// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package bdat

import (
	"errors"
	"testing"
)

func TestModernRoundTripEmptyTable(t *testing.T) {
	in := &Table{
		Name:    Name{Hash: modernHashLabel("EMPTY_Table"), Hashed: true},
		Schema:  Schema{},
		BaseID:  0,
		Rows:    nil,
		Dialect: DialectModern,
	}

	encoded, err := encodeModernTable(in, LittleEndian)
	if err != nil {
		t.Fatalf("encodeModernTable: %v", err)
	}
	out, err := decodeModernTable(encoded, 0, LittleEndian)
	if err != nil {
		t.Fatalf("decodeModernTable: %v", err)
	}
	if out.RowCount() != 0 {
		t.Fatalf("empty table decoded with %d rows", out.RowCount())
	}
	if out.Name.Hash != in.Name.Hash {
		t.Fatalf("name hash: got %#x, want %#x", out.Name.Hash, in.Name.Hash)
	}
}

func TestModernRoundTripSingleColumn(t *testing.T) {
	schema := Schema{
		{Name: Name{Hash: modernHashLabel("Value"), Hashed: true}, Type: ValueSInt},
	}
	in := &Table{
		Name:   Name{Hash: modernHashLabel("SGL_Table"), Hashed: true},
		Schema: schema,
		BaseID: 5,
		Rows: []Row{
			NewRow(5, []Value{NewIntValue(ValueSInt, -7)}),
			NewRow(6, []Value{NewIntValue(ValueSInt, 42)}),
		},
		Dialect: DialectModern,
	}

	encoded, err := encodeModernTable(in, LittleEndian)
	if err != nil {
		t.Fatalf("encodeModernTable: %v", err)
	}
	out, err := decodeModernTable(encoded, 0, LittleEndian)
	if err != nil {
		t.Fatalf("decodeModernTable: %v", err)
	}
	if out.RowCount() != 2 {
		t.Fatalf("row count: got %d, want 2", out.RowCount())
	}
	v, err := out.GetHash(6, schema[0].Name.Hash)
	if err != nil {
		t.Fatalf("GetHash: %v", err)
	}
	i, _ := v.Int()
	if i != 42 {
		t.Fatalf("row 6 value = %d, want 42", i)
	}
}

func TestModernRowIDMapSortedAndBinarySearchable(t *testing.T) {
	schema := Schema{
		{Name: Name{Hash: modernHashLabel("ItemID"), Hashed: true}, Type: ValueHash},
		{Name: Name{Hash: modernHashLabel("Amount"), Hashed: true}, Type: ValueUShort},
	}
	in := &Table{
		Name:   Name{Hash: modernHashLabel("SHP_Data"), Hashed: true},
		Schema: schema,
		BaseID: 0,
		Rows: []Row{
			NewRow(0, []Value{NewIntValue(ValueHash, 500), NewIntValue(ValueUShort, 1)}),
			NewRow(1, []Value{NewIntValue(ValueHash, 100), NewIntValue(ValueUShort, 2)}),
			NewRow(2, []Value{NewIntValue(ValueHash, 300), NewIntValue(ValueUShort, 3)}),
		},
		Dialect: DialectModern,
	}

	encoded, err := encodeModernTable(in, LittleEndian)
	if err != nil {
		t.Fatalf("encodeModernTable: %v", err)
	}
	h, err := parseModernTableHeader(encoded, 0, LittleEndian)
	if err != nil {
		t.Fatalf("parseModernTableHeader: %v", err)
	}
	if h.RowIDIndexOffset == 0 {
		t.Fatal("expected a row-id map to be emitted for a Hash-typed column")
	}

	if err := verifyModernRowIDMap(encoded, h.RowIDIndexOffset, h.RowCount, LittleEndian); err != nil {
		t.Fatalf("verifyModernRowIDMap: %v", err)
	}

	idx, err := lookupModernRowByHash(encoded, h.RowIDIndexOffset, h.RowCount, LittleEndian, 300)
	if err != nil {
		t.Fatalf("lookupModernRowByHash: %v", err)
	}
	if idx != 2 {
		t.Fatalf("lookupModernRowByHash(300) = %d, want 2 (original row index)", idx)
	}

	if _, err := lookupModernRowByHash(encoded, h.RowIDIndexOffset, h.RowCount, LittleEndian, 999); !errors.Is(err, ErrNoSuchRow) {
		t.Fatalf("lookup of a missing hash: got %v, want ErrNoSuchRow", err)
	}
}

func TestVerifyModernRowIDMapRejectsUnsorted(t *testing.T) {
	w := newWriter(LittleEndian)
	w.putU32(500)
	w.putU32(0)
	w.putU32(100)
	w.putU32(1)

	if err := verifyModernRowIDMap(w.buf, 0, 2, LittleEndian); !errors.Is(err, ErrSchemaViolation) {
		t.Fatalf("expected ErrSchemaViolation for an unsorted row-id map, got %v", err)
	}
}

func TestModernEncodeRejectsNonScalarColumn(t *testing.T) {
	schema := Schema{
		{Name: Name{Hash: 1, Hashed: true}, Type: ValueUByte, Shape: ShapeList, Arity: 2},
	}
	in := &Table{Name: Name{Hash: 2, Hashed: true}, Schema: schema, Dialect: DialectModern}
	if _, err := encodeModernTable(in, LittleEndian); !errors.Is(err, ErrSchemaViolation) {
		t.Fatalf("expected ErrSchemaViolation for a non-scalar modern column, got %v", err)
	}
}

func TestParseModernTableHeaderBadVersion(t *testing.T) {
	w := newWriter(LittleEndian)
	w.buf = make([]byte, modernTableHeaderSize)
	copy(w.buf, modernMagic[:])
	w.putU8At(modernOffVersion, 9)

	if _, err := parseModernTableHeader(w.buf, 0, LittleEndian); !errors.Is(err, ErrUnsupportedDialect) {
		t.Fatalf("expected ErrUnsupportedDialect, got %v", err)
	}
}
