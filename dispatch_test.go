// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package bdat

import (
	"errors"
	"testing"
)

func TestDispatchLegacyWiiVsXCX(t *testing.T) {
	in := sampleLegacyTable()

	wii, err := WriteFile([]*Table{in}, WriteOptions{Dialect: DialectLegacy, Variant: VariantWii, End: BigEndian})
	if err != nil {
		t.Fatalf("WriteFile(Wii): %v", err)
	}
	bf, err := OpenBytes(wii, nil)
	if err != nil {
		t.Fatalf("OpenBytes(Wii): %v", err)
	}
	if bf.dialect != DialectLegacy || bf.end != BigEndian {
		t.Fatalf("Wii dispatch: got dialect=%v end=%v", bf.dialect, bf.end)
	}

	xcxSchema := Schema{{Name: Name{Text: "Scale"}, Type: ValueFloat}}
	xcx := &Table{Name: Name{Text: "XCX_T"}, Schema: xcxSchema, Rows: []Row{NewRow(0, []Value{NewFloatValue(1.0)})}}
	xcxBytes, err := WriteFile([]*Table{xcx}, WriteOptions{Dialect: DialectLegacy, Variant: VariantXCX, End: BigEndian})
	if err != nil {
		t.Fatalf("WriteFile(XCX): %v", err)
	}
	bf2, err := OpenBytes(xcxBytes, nil)
	if err != nil {
		t.Fatalf("OpenBytes(XCX): %v", err)
	}
	table, err := bf2.GetTable("XCX_T")
	if err != nil {
		t.Fatalf("GetTable: %v", err)
	}
	f, _ := table.Rows[0].cells[0].Float()
	if f != 1.0 {
		t.Fatalf("XCX fixed-point round trip via dispatch: got %v, want 1.0", f)
	}
}

func TestDispatch3DSSingleTable(t *testing.T) {
	in := sampleLegacyTable()
	encoded, err := WriteFile([]*Table{in}, WriteOptions{Dialect: DialectLegacy, Variant: Variant3DS, End: LittleEndian})
	if err != nil {
		t.Fatalf("WriteFile(3DS): %v", err)
	}
	bf, err := OpenBytes(encoded, nil)
	if err != nil {
		t.Fatalf("OpenBytes(3DS): %v", err)
	}
	if len(bf.Tables()) != 1 {
		t.Fatalf("Tables() = %d, want 1", len(bf.Tables()))
	}
}

func TestDispatchModernEndianness(t *testing.T) {
	schema := Schema{{Name: Name{Hash: modernHashLabel("A"), Hashed: true}, Type: ValueUByte}}
	tbl := &Table{Name: Name{Hash: modernHashLabel("MOD_E"), Hashed: true}, Schema: schema,
		Rows: []Row{NewRow(0, []Value{NewIntValue(ValueUByte, 9)})}}

	out, err := WriteFile([]*Table{tbl}, WriteOptions{Dialect: DialectModern, End: BigEndian})
	if err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	bf, err := OpenBytes(out, nil)
	if err != nil {
		t.Fatalf("OpenBytes: %v", err)
	}
	if bf.end != BigEndian {
		t.Fatalf("sniffed endianness = %v, want BigEndian", bf.end)
	}
}

func TestDispatchUnrecognizedMagic(t *testing.T) {
	if _, err := OpenBytes([]byte{0, 1, 2, 3, 4, 5, 6, 7}, nil); !errors.Is(err, ErrInvalidFormat) {
		t.Fatalf("expected ErrInvalidFormat for garbage input, got %v", err)
	}
}

func TestDispatchTooSmall(t *testing.T) {
	if _, err := OpenBytes([]byte{1, 2}, nil); !errors.Is(err, ErrTruncated) {
		t.Fatalf("expected ErrTruncated for a tiny buffer, got %v", err)
	}
}

func TestDispatchFindMissingTable(t *testing.T) {
	in := sampleLegacyTable()
	encoded, err := WriteFile([]*Table{in}, WriteOptions{Dialect: DialectLegacy, Variant: VariantWii, End: BigEndian})
	if err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	bf, err := OpenBytes(encoded, nil)
	if err != nil {
		t.Fatalf("OpenBytes: %v", err)
	}
	if _, err := bf.GetTable("NOPE"); !errors.Is(err, ErrNoSuchTable) {
		t.Fatalf("GetTable(NOPE): got %v, want ErrNoSuchTable", err)
	}
}

func TestDispatchMapScrambledTableThenGetTableStillWorks(t *testing.T) {
	in := sampleLegacyTable()
	encoded, err := WriteFile([]*Table{in}, WriteOptions{Dialect: DialectLegacy, Variant: VariantXC2, End: LittleEndian, Scramble: true})
	if err != nil {
		t.Fatalf("WriteFile (scrambled): %v", err)
	}
	bf, err := OpenBytes(encoded, nil)
	if err != nil {
		t.Fatalf("OpenBytes: %v", err)
	}
	// A scrambled legacy table is indexed by name (from a decrypted copy of
	// its string table). MapTable refuses it, since zero-copy access would
	// need a decrypted copy, while GetTable decodes it from a private one.
	if _, err := bf.MapTable(in.Name.Text); !errors.Is(err, ErrWouldRequireCopy) {
		t.Fatalf("MapTable on a scrambled legacy table: got %v, want ErrWouldRequireCopy", err)
	}
	got, err := bf.GetTable(in.Name.Text)
	if err != nil {
		t.Fatalf("GetTable after MapTable: %v", err)
	}
	if got.RowCount() != len(in.Rows) {
		t.Fatalf("row count: got %d, want %d", got.RowCount(), len(in.Rows))
	}
}
