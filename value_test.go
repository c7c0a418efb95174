// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package bdat

import (
	"errors"
	"testing"
)

func TestValueTypeSize(t *testing.T) {
	tests := []struct {
		typ  ValueType
		want uint32
	}{
		{ValueUByte, 1},
		{ValueSByte, 1},
		{ValuePercent, 1},
		{ValueUnknown1, 1},
		{ValueUShort, 2},
		{ValueSShort, 2},
		{ValueMessageStudioIndex, 2},
		{ValueUInt, 4},
		{ValueSInt, 4},
		{ValueString, 4},
		{ValueFloat, 4},
		{ValueHash, 4},
		{ValueDebugString, 4},
	}
	for _, tt := range tests {
		got, err := tt.typ.Size()
		if err != nil {
			t.Fatalf("Size(%v): %v", tt.typ, err)
		}
		if got != tt.want {
			t.Fatalf("Size(%v) = %d, want %d", tt.typ, got, tt.want)
		}
	}
}

func TestValueTypeSizeUnknown(t *testing.T) {
	if _, err := ValueType(0xFF).Size(); !errors.Is(err, ErrInvalidFormat) {
		t.Fatalf("expected ErrInvalidFormat, got %v", err)
	}
}

func TestValueTypeIsModernOnly(t *testing.T) {
	if ValueUInt.IsModernOnly() {
		t.Fatal("ValueUInt should not be modern-only")
	}
	if !ValueHash.IsModernOnly() {
		t.Fatal("ValueHash should be modern-only")
	}
	if !ValuePercent.IsModernOnly() {
		t.Fatal("ValuePercent should be modern-only")
	}
}

func TestValueTypeIsInteger(t *testing.T) {
	for _, typ := range []ValueType{ValueUByte, ValueUShort, ValueUInt, ValueSByte, ValueSShort, ValueSInt} {
		if !typ.IsInteger() {
			t.Fatalf("%v should be an integer type", typ)
		}
	}
	for _, typ := range []ValueType{ValueString, ValueFloat, ValueHash, ValuePercent} {
		if typ.IsInteger() {
			t.Fatalf("%v should not be an integer type", typ)
		}
	}
}

func TestValueAccessorsTypeMismatch(t *testing.T) {
	v := NewIntValue(ValueSInt, 42)
	if _, err := v.Float(); !errors.Is(err, ErrTypeMismatch) {
		t.Fatalf("Float() on an int value: got %v, want ErrTypeMismatch", err)
	}
	if _, err := v.String(); !errors.Is(err, ErrTypeMismatch) {
		t.Fatalf("String() on an int value: got %v, want ErrTypeMismatch", err)
	}

	s := NewStringValue(ValueString, "hello")
	if _, err := s.Int(); !errors.Is(err, ErrTypeMismatch) {
		t.Fatalf("Int() on a string value: got %v, want ErrTypeMismatch", err)
	}
}

func TestPercentValueExposedAsFraction(t *testing.T) {
	v := NewPercentValue(50)
	f, err := v.Float()
	if err != nil {
		t.Fatalf("Float(): %v", err)
	}
	if f != 0.5 {
		t.Fatalf("Percent(50).Float() = %v, want 0.5", f)
	}
	i, err := v.Int()
	if err != nil || i != 50 {
		t.Fatalf("Percent(50).Int() = %v, %v, want 50, nil", i, err)
	}
}

func TestColumnStrideFlagIsZero(t *testing.T) {
	c := Column{Type: ValueUByte, Shape: ShapeFlag}
	stride, err := c.Stride()
	if err != nil || stride != 0 {
		t.Fatalf("flag column Stride() = %d, %v, want 0, nil", stride, err)
	}
}

func TestColumnStrideList(t *testing.T) {
	c := Column{Type: ValueUShort, Shape: ShapeList, Arity: 4}
	stride, err := c.Stride()
	if err != nil {
		t.Fatalf("Stride(): %v", err)
	}
	if stride != 8 {
		t.Fatalf("list column Stride() = %d, want 8", stride)
	}
}

func TestSchemaRowStride(t *testing.T) {
	schema := Schema{
		{Name: Name{Text: "ID"}, Type: ValueUInt, Offset: 0},
		{Name: Name{Text: "Value"}, Type: ValueUShort, Offset: 4},
		{Name: Name{Text: "FlagBit"}, Type: ValueUByte, Shape: ShapeFlag, Parent: 1, Shift: 0, Mask: 1},
	}
	stride, err := schema.RowStride()
	if err != nil {
		t.Fatalf("RowStride(): %v", err)
	}
	if stride != 6 {
		t.Fatalf("RowStride() = %d, want 6", stride)
	}
}

func TestSchemaIndexLookup(t *testing.T) {
	schema := Schema{
		{Name: Name{Text: "Name"}},
		{Name: Name{Hash: 0xCAFEBABE, Hashed: true}},
	}
	if idx := schema.IndexOf("Name"); idx != 0 {
		t.Fatalf("IndexOf(Name) = %d, want 0", idx)
	}
	if idx := schema.IndexOf("Missing"); idx != -1 {
		t.Fatalf("IndexOf(Missing) = %d, want -1", idx)
	}
	if idx := schema.IndexOfHash(0xCAFEBABE); idx != 1 {
		t.Fatalf("IndexOfHash = %d, want 1", idx)
	}
	if idx := schema.IndexOfHash(0); idx != -1 {
		t.Fatalf("IndexOfHash(0) = %d, want -1", idx)
	}
}

func TestNameString(t *testing.T) {
	plain := Name{Text: "Flags"}
	if plain.String() != "Flags" {
		t.Fatalf("Name.String() = %q, want Flags", plain.String())
	}
	hashed := Name{Hash: 0x1234, Hashed: true}
	if hashed.String() != "<0x00001234>" {
		t.Fatalf("hashed Name.String() = %q, want <0x00001234>", hashed.String())
	}
}
