// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package bdat

import (
	"errors"
	"reflect"
	"testing"
)

func sampleLegacyTable() *Table {
	schema := Schema{
		{Name: Name{Text: "ItemId"}, Type: ValueUInt, Offset: 0},
		{Name: Name{Text: "Price"}, Type: ValueUShort, Offset: 4},
		{Name: Name{Text: "Flags"}, Type: ValueUByte, Offset: 6},
		{Name: Name{Text: "Rare"}, Type: ValueUByte, Shape: ShapeFlag, Parent: 2, Shift: 0, Mask: 1},
		{Name: Name{Text: "Name"}, Type: ValueString, Offset: 7},
	}
	rows := []Row{
		NewRow(0, []Value{
			NewIntValue(ValueUInt, 1001),
			NewIntValue(ValueUShort, 250),
			NewIntValue(ValueUByte, 1),
			NewIntValue(ValueUByte, 1),
			NewStringValue(ValueString, "Potion"),
		}),
		NewRow(1, []Value{
			NewIntValue(ValueUInt, 1002),
			NewIntValue(ValueUShort, 500),
			NewIntValue(ValueUByte, 0),
			NewIntValue(ValueUByte, 0),
			NewStringValue(ValueString, "Ether"),
		}),
	}
	return &Table{
		Name:    Name{Text: "ITM_Data"},
		Schema:  schema,
		BaseID:  0,
		Rows:    rows,
		Dialect: DialectLegacy,
	}
}

func TestLegacyRoundTripWii(t *testing.T) {
	in := sampleLegacyTable()
	encoded, err := encodeLegacyTable(in, VariantWii, BigEndian, false, EncodingUTF8)
	if err != nil {
		t.Fatalf("encodeLegacyTable: %v", err)
	}

	out, err := decodeLegacyTable(encoded, 0, uint32(len(encoded)), VariantWii, BigEndian, EncodingUTF8)
	if err != nil {
		t.Fatalf("decodeLegacyTable: %v", err)
	}

	if out.Name.Text != in.Name.Text {
		t.Fatalf("name: got %q, want %q", out.Name.Text, in.Name.Text)
	}
	if len(out.Rows) != len(in.Rows) {
		t.Fatalf("row count: got %d, want %d", len(out.Rows), len(in.Rows))
	}
	for i := range in.Rows {
		for ci := range in.Schema {
			want := in.Rows[i].cells[ci]
			got := out.Rows[i].cells[ci]
			if !reflect.DeepEqual(want, got) {
				t.Fatalf("row %d col %d: got %+v, want %+v", i, ci, got, want)
			}
		}
	}
}

func TestLegacyRoundTrip3DS(t *testing.T) {
	in := sampleLegacyTable()
	encoded, err := encodeLegacyTable(in, Variant3DS, LittleEndian, false, EncodingUTF8)
	if err != nil {
		t.Fatalf("encodeLegacyTable: %v", err)
	}
	out, err := decodeLegacyTable(encoded, 0, uint32(len(encoded)), Variant3DS, LittleEndian, EncodingUTF8)
	if err != nil {
		t.Fatalf("decodeLegacyTable: %v", err)
	}
	if out.RowCount() != in.RowCount() {
		t.Fatalf("row count: got %d, want %d", out.RowCount(), in.RowCount())
	}
}

func TestLegacyRoundTripXCXFixedPointFloat(t *testing.T) {
	schema := Schema{
		{Name: Name{Text: "Scale"}, Type: ValueFloat, Offset: 0},
	}
	in := &Table{
		Name:   Name{Text: "XCX_Tune"},
		Schema: schema,
		Rows: []Row{
			NewRow(0, []Value{NewFloatValue(1.5)}),
			NewRow(1, []Value{NewFloatValue(-2.25)}),
		},
		Dialect: DialectLegacy,
	}

	encoded, err := encodeLegacyTable(in, VariantXCX, BigEndian, false, EncodingUTF8)
	if err != nil {
		t.Fatalf("encodeLegacyTable: %v", err)
	}
	out, err := decodeLegacyTable(encoded, 0, uint32(len(encoded)), VariantXCX, BigEndian, EncodingUTF8)
	if err != nil {
		t.Fatalf("decodeLegacyTable: %v", err)
	}

	for i, row := range in.Rows {
		want, _ := row.cells[0].Float()
		got, _ := out.Rows[i].cells[0].Float()
		if got != want {
			t.Fatalf("row %d: fixed-point float got %v, want %v", i, got, want)
		}
	}
}

func TestLegacyRoundTripScrambledXC2(t *testing.T) {
	in := sampleLegacyTable()
	encoded, err := encodeLegacyTable(in, VariantXC2, LittleEndian, true, EncodingUTF8)
	if err != nil {
		t.Fatalf("encodeLegacyTable: %v", err)
	}

	out, err := decodeLegacyTable(encoded, 0, uint32(len(encoded)), VariantXC2, LittleEndian, EncodingUTF8)
	if err != nil {
		t.Fatalf("decodeLegacyTable (scrambled): %v", err)
	}
	if out.Name.Text != in.Name.Text {
		t.Fatalf("scrambled round trip name: got %q, want %q", out.Name.Text, in.Name.Text)
	}
	for i := range in.Rows {
		idVal, _ := out.Rows[i].cells[0].Int()
		wantVal, _ := in.Rows[i].cells[0].Int()
		if idVal != wantVal {
			t.Fatalf("scrambled round trip row %d cell 0: got %d, want %d", i, idVal, wantVal)
		}
	}
}

func TestLegacyFlagCellDerivedFromParent(t *testing.T) {
	in := sampleLegacyTable()
	encoded, err := encodeLegacyTable(in, VariantWii, BigEndian, false, EncodingUTF8)
	if err != nil {
		t.Fatalf("encodeLegacyTable: %v", err)
	}
	out, err := decodeLegacyTable(encoded, 0, uint32(len(encoded)), VariantWii, BigEndian, EncodingUTF8)
	if err != nil {
		t.Fatalf("decodeLegacyTable: %v", err)
	}

	rare, err := out.Get(0, "Rare")
	if err != nil {
		t.Fatalf("Get(Rare): %v", err)
	}
	v, _ := rare.Int()
	if v != 1 {
		t.Fatalf("row 0 Rare flag = %d, want 1", v)
	}

	notRare, err := out.Get(1, "Rare")
	if err != nil {
		t.Fatalf("Get(Rare): %v", err)
	}
	v2, _ := notRare.Int()
	if v2 != 0 {
		t.Fatalf("row 1 Rare flag = %d, want 0", v2)
	}
}

func TestLegacyRoundTripListColumnDistinctElements(t *testing.T) {
	schema := Schema{
		{Name: Name{Text: "Resists"}, Type: ValueUShort, Shape: ShapeList, Arity: 4, Offset: 0},
	}
	in := &Table{
		Name:   Name{Text: "ITM_Resist"},
		Schema: schema,
		Rows: []Row{
			NewRow(0, []Value{NewListValue(ValueUShort, []Value{
				NewIntValue(ValueUShort, 10),
				NewIntValue(ValueUShort, 20),
				NewIntValue(ValueUShort, 30),
				NewIntValue(ValueUShort, 40),
			})}),
			NewRow(1, []Value{NewListValue(ValueUShort, []Value{
				NewIntValue(ValueUShort, 0),
				NewIntValue(ValueUShort, 5),
				NewIntValue(ValueUShort, 0),
				NewIntValue(ValueUShort, 99),
			})}),
		},
		Dialect: DialectLegacy,
	}

	encoded, err := encodeLegacyTable(in, VariantWii, BigEndian, false, EncodingUTF8)
	if err != nil {
		t.Fatalf("encodeLegacyTable: %v", err)
	}
	out, err := decodeLegacyTable(encoded, 0, uint32(len(encoded)), VariantWii, BigEndian, EncodingUTF8)
	if err != nil {
		t.Fatalf("decodeLegacyTable: %v", err)
	}

	for ri, row := range in.Rows {
		wantVals := row.cells[0].Values()
		gotVals := out.Rows[ri].cells[0].Values()
		if len(gotVals) != len(wantVals) {
			t.Fatalf("row %d: got %d list elements, want %d", ri, len(gotVals), len(wantVals))
		}
		for ei := range wantVals {
			want, _ := wantVals[ei].Int()
			got, _ := gotVals[ei].Int()
			if got != want {
				t.Fatalf("row %d element %d: got %d, want %d", ri, ei, got, want)
			}
		}
	}

	// A non-matching element count must be rejected at encode time rather
	// than silently truncated or padded.
	badSchema := Schema{{Name: Name{Text: "Resists"}, Type: ValueUShort, Shape: ShapeList, Arity: 4, Offset: 0}}
	bad := &Table{
		Name:   Name{Text: "ITM_Bad"},
		Schema: badSchema,
		Rows: []Row{NewRow(0, []Value{NewListValue(ValueUShort, []Value{
			NewIntValue(ValueUShort, 1),
			NewIntValue(ValueUShort, 2),
		})})},
		Dialect: DialectLegacy,
	}
	if _, err := encodeLegacyTable(bad, VariantWii, BigEndian, false, EncodingUTF8); !errors.Is(err, ErrSchemaViolation) {
		t.Fatalf("expected ErrSchemaViolation for a short list cell, got %v", err)
	}
}

func TestLegacyVariantDESharesXC2Layout(t *testing.T) {
	if VariantDE.headerSize() != VariantXC2.headerSize() {
		t.Fatalf("VariantDE.headerSize() = %d, want %d (same as XC2)", VariantDE.headerSize(), VariantXC2.headerSize())
	}
	if VariantDE.fixedPointFloat() != VariantXC2.fixedPointFloat() {
		t.Fatal("VariantDE and VariantXC2 must agree on fixed-point float encoding")
	}
	if VariantDE.hasInlineColumnNodes() != VariantXC2.hasInlineColumnNodes() {
		t.Fatal("VariantDE and VariantXC2 must agree on column-node layout")
	}
}

func TestLegacyHeaderSizes(t *testing.T) {
	if Variant3DS.headerSize() != legacy3DSHeaderSize {
		t.Fatalf("Variant3DS.headerSize() = %d, want %d", Variant3DS.headerSize(), legacy3DSHeaderSize)
	}
	if VariantWii.headerSize() != legacyFullHeaderSize {
		t.Fatalf("VariantWii.headerSize() = %d, want %d", VariantWii.headerSize(), legacyFullHeaderSize)
	}
}

func TestParseLegacyTableHeaderTruncated(t *testing.T) {
	if _, err := parseLegacyTableHeader([]byte{1, 2, 3}, 0, VariantWii, BigEndian, 64); err == nil {
		t.Fatal("expected an error parsing a header from a too-short buffer")
	}
}

func TestParseLegacyTableHeaderBadMagic(t *testing.T) {
	data := make([]byte, legacyFullHeaderSize)
	copy(data, []byte("XXXX"))
	if _, err := parseLegacyTableHeader(data, 0, VariantWii, BigEndian, uint32(len(data))); err == nil {
		t.Fatal("expected an error for bad magic")
	}
}
