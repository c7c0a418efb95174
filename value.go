// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package bdat

import "fmt"

// ValueType is the on-wire numeric tag of a cell's storage type. Tags 1-8
// are shared by both dialects; 9-13 only appear in the modern dialect.
type ValueType uint8

const (
	// ValueUByte is an unsigned 8-bit integer.
	ValueUByte ValueType = 1
	// ValueUShort is an unsigned 16-bit integer.
	ValueUShort ValueType = 2
	// ValueUInt is an unsigned 32-bit integer.
	ValueUInt ValueType = 3
	// ValueSByte is a signed 8-bit integer.
	ValueSByte ValueType = 4
	// ValueSShort is a signed 16-bit integer.
	ValueSShort ValueType = 5
	// ValueSInt is a signed 32-bit integer.
	ValueSInt ValueType = 6
	// ValueString is a 32-bit offset into the string pool, absolute to the
	// table start.
	ValueString ValueType = 7
	// ValueFloat is IEEE-754 binary32, except under the legacy XCX variant
	// where it is a 20.12 fixed-point encoding.
	ValueFloat ValueType = 8
	// ValueHash is a 32-bit hash label (modern only).
	ValueHash ValueType = 9
	// ValuePercent is a raw byte, exposed as a fraction scaled by 0.01
	// (modern only).
	ValuePercent ValueType = 10
	// ValueDebugString is a 32-bit string-pool offset, semantically
	// identical to ValueString (modern only).
	ValueDebugString ValueType = 11
	// ValueUnknown1 is an opaque 1-byte pass-through value (modern only).
	ValueUnknown1 ValueType = 12
	// ValueMessageStudioIndex is a 16-bit index into an external
	// message-studio table (modern only).
	ValueMessageStudioIndex ValueType = 13
)

// Size returns the on-wire byte width of a single value of this type. XCX
// fixed-point floats are the same 4-byte width as IEEE-754 binary32, so
// the float-encoding sub-variant does not change sizing.
func (t ValueType) Size() (uint32, error) {
	switch t {
	case ValueUByte, ValueSByte, ValuePercent, ValueUnknown1:
		return 1, nil
	case ValueUShort, ValueSShort, ValueMessageStudioIndex:
		return 2, nil
	case ValueUInt, ValueSInt, ValueString, ValueFloat, ValueHash, ValueDebugString:
		return 4, nil
	default:
		return 0, fmt.Errorf("%w: unknown value type %d", ErrInvalidFormat, t)
	}
}

// IsModernOnly reports whether this tag is only valid in the modern dialect.
func (t ValueType) IsModernOnly() bool {
	return t >= ValueHash
}

// IsInteger reports whether this type decodes to an integer Value, as
// required of a flag cell's parent column.
func (t ValueType) IsInteger() bool {
	switch t {
	case ValueUByte, ValueUShort, ValueUInt, ValueSByte, ValueSShort, ValueSInt:
		return true
	default:
		return false
	}
}

// CellShape describes how a column's row bytes are laid out.
type CellShape uint8

const (
	// ShapeScalar stores one value of the column's type at its row offset.
	ShapeScalar CellShape = iota
	// ShapeList stores a fixed arity of same-typed values contiguously
	// starting at the row offset (legacy only).
	ShapeList
	// ShapeFlag is a virtual view over a parent scalar integer column:
	// (parent_value >> shift) & mask. Flag cells consume no row bytes of
	// their own (legacy only).
	ShapeFlag
)

// Value is the tagged cell-value sum. The accessor matching Type is
// meaningful (Percent answers both Int and Float); the others return
// ErrTypeMismatch. A cell decoded from a
// ShapeList column carries its elements in list; Int/Float/String on such
// a value address element 0, matching how a list column's declared Type
// describes each element uniformly. Callers that need every element use
// Values/At/Len.
type Value struct {
	Type ValueType
	i    int64
	f    float32
	s    string
	list []Value
}

// Int returns the value as a signed 64-bit integer. Valid for every
// integer-typed tag (1-6, 9, 12, 13) and for Percent's raw byte.
func (v Value) Int() (int64, error) {
	if v.list != nil {
		return v.list[0].Int()
	}
	switch v.Type {
	case ValueUByte, ValueUShort, ValueUInt, ValueSByte, ValueSShort, ValueSInt,
		ValueHash, ValuePercent, ValueUnknown1, ValueMessageStudioIndex:
		return v.i, nil
	default:
		return 0, fmt.Errorf("%w: value is %v, not an integer type", ErrTypeMismatch, v.Type)
	}
}

// Float returns the value as a float32. Valid for Float and Percent (the
// latter exposed as raw*0.01, per spec).
func (v Value) Float() (float32, error) {
	if v.list != nil {
		return v.list[0].Float()
	}
	switch v.Type {
	case ValueFloat:
		return v.f, nil
	case ValuePercent:
		return float32(v.i) * 0.01, nil
	default:
		return 0, fmt.Errorf("%w: value is %v, not a float type", ErrTypeMismatch, v.Type)
	}
}

// String returns the value as a resolved string. Valid for String and
// DebugString.
func (v Value) String() (string, error) {
	if v.list != nil {
		return v.list[0].String()
	}
	switch v.Type {
	case ValueString, ValueDebugString:
		return v.s, nil
	default:
		return "", fmt.Errorf("%w: value is %v, not a string type", ErrTypeMismatch, v.Type)
	}
}

// Len returns the number of elements a ShapeList cell carries (1 for a
// scalar cell).
func (v Value) Len() int {
	if v.list != nil {
		return len(v.list)
	}
	return 1
}

// Values returns every element of the cell, in declared order. A scalar
// cell returns a single-element slice wrapping itself.
func (v Value) Values() []Value {
	if v.list != nil {
		return v.list
	}
	return []Value{v}
}

// At returns the i'th element of the cell (i must be 0 for a scalar
// cell). Out-of-range indices fail with ErrNoSuchColumn, matching the
// column-index-out-of-range error GetIndex uses.
func (v Value) At(i int) (Value, error) {
	vals := v.Values()
	if i < 0 || i >= len(vals) {
		return Value{}, fmt.Errorf("%w: list element %d", ErrNoSuchColumn, i)
	}
	return vals[i], nil
}

func intValue(t ValueType, i int64) Value     { return Value{Type: t, i: i} }
func floatValue(f float32) Value              { return Value{Type: ValueFloat, f: f} }
func percentValue(raw uint8) Value            { return Value{Type: ValuePercent, i: int64(raw)} }
func stringValue(t ValueType, s string) Value { return Value{Type: t, s: s} }

// NewIntValue builds an integer-typed cell value, for callers assembling a
// Table programmatically (e.g. the bdat pack command rebuilding cells from
// a JSON dump).
func NewIntValue(t ValueType, i int64) Value { return intValue(t, i) }

// NewFloatValue builds a Float cell value.
func NewFloatValue(f float32) Value { return floatValue(f) }

// NewPercentValue builds a Percent cell value from its raw byte.
func NewPercentValue(raw uint8) Value { return percentValue(raw) }

// NewStringValue builds a String or DebugString cell value.
func NewStringValue(t ValueType, s string) Value { return stringValue(t, s) }

// NewListValue builds a ShapeList cell from its per-index element values,
// for callers assembling a Table programmatically. elems must be
// non-empty and every element's Type must equal t.
func NewListValue(t ValueType, elems []Value) Value {
	return Value{Type: t, list: elems}
}

// Name identifies a column either by a plain UTF-8 string (legacy, always;
// modern, never) or a 32-bit hash label (modern, always).
type Name struct {
	Text   string
	Hash   uint32
	Hashed bool
}

func (n Name) String() string {
	if n.Hashed {
		return fmt.Sprintf("<0x%08x>", n.Hash)
	}
	return n.Text
}

// Column is one entry in a table's Schema.
type Column struct {
	Name   Name
	Type   ValueType
	Shape  CellShape
	Offset uint32 // byte position inside each row's fixed-stride record

	// Arity is the list length for ShapeList columns (1 for scalar/flag).
	Arity uint16

	// Parent, Shift and Mask apply only to ShapeFlag columns: the stored
	// value is (row.Column[Parent].Int() >> Shift) & Mask.
	Parent uint32
	Shift  uint8
	Mask   uint32
}

// Stride returns the number of row bytes this column itself contributes
// (0 for flag columns, which are virtual views over another column).
func (c Column) Stride() (uint32, error) {
	if c.Shape == ShapeFlag {
		return 0, nil
	}
	size, err := c.Type.Size()
	if err != nil {
		return 0, err
	}
	arity := uint32(c.Arity)
	if arity == 0 {
		arity = 1
	}
	return size * arity, nil
}

// Schema is the ordered sequence of columns describing every row in a
// table.
type Schema []Column

// RowStride computes max(col.Offset + sizeof(col.Type)*col.Arity) over the
// scalar/list columns, the invariant spec.md §3 requires to match the
// stride stored in the table header exactly.
func (s Schema) RowStride() (uint32, error) {
	var stride uint32
	for _, col := range s {
		width, err := col.Stride()
		if err != nil {
			return 0, err
		}
		if width == 0 {
			continue
		}
		end := col.Offset + width
		if end > stride {
			stride = end
		}
	}
	return stride, nil
}

// IndexOf returns the index of the column with the given plain name, or -1.
func (s Schema) IndexOf(name string) int {
	for i, c := range s {
		if !c.Name.Hashed && c.Name.Text == name {
			return i
		}
	}
	return -1
}

// IndexOfHash returns the index of the column with the given hash label, or -1.
func (s Schema) IndexOfHash(hash uint32) int {
	for i, c := range s {
		if c.Name.Hashed && c.Name.Hash == hash {
			return i
		}
	}
	return -1
}
