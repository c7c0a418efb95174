// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package bdat

import "fmt"

// Row is an ordered tuple of cells, index-aligned with the owning Table's
// Schema: one entry per column, including virtual flag columns.
type Row struct {
	ID    uint32
	cells []Value
}

// NewRow builds a Row from its id and cells, for callers assembling a
// Table programmatically rather than decoding one from bytes.
func NewRow(id uint32, cells []Value) Row {
	return Row{ID: id, cells: cells}
}

// Get looks a cell up by column name (plain or hashed, whichever the
// dialect uses).
func (r Row) Get(schema Schema, name string) (Value, error) {
	idx := schema.IndexOf(name)
	if idx < 0 {
		return Value{}, fmt.Errorf("%w: %q", ErrNoSuchColumn, name)
	}
	return r.GetIndex(idx)
}

// GetHash looks a cell up by its column's hash label (modern dialect).
func (r Row) GetHash(schema Schema, hash uint32) (Value, error) {
	idx := schema.IndexOfHash(hash)
	if idx < 0 {
		return Value{}, fmt.Errorf("%w: hash 0x%08x", ErrNoSuchColumn, hash)
	}
	return r.GetIndex(idx)
}

// GetIndex looks a cell up by its column's position in the schema.
func (r Row) GetIndex(idx int) (Value, error) {
	if idx < 0 || idx >= len(r.cells) {
		return Value{}, fmt.Errorf("%w: column index %d", ErrNoSuchColumn, idx)
	}
	return r.cells[idx], nil
}

// rowBytesLayout bundles the decode options that vary by dialect/variant
// but are otherwise identical between the legacy and modern row decoders.
type rowBytesLayout struct {
	end           Endianness
	fixedPointXCX bool // legacy XCX: Float is 20.12 fixed point, not IEEE-754

	// stringBase is the table-relative byte offset of the string pool's
	// own first byte. Legacy String(7) cells store an offset "absolute
	// to table start" (spec.md §6), a different addressing base than the
	// pool-relative name_offset legacy column nodes use, so it must be
	// translated by subtracting stringBase before indexing into pool; it
	// is zero for the modern dialect, whose DebugString(11) cells are
	// already pool-relative ("u32 offset in string table").
	stringBase uint32
}

// decodeRowCells decodes one row's fixed-stride bytes into a []Value
// slice index-aligned with schema. Scalar and list columns are decoded
// from raw, in declared order, before any flag column is resolved, since
// a flag's value is derived from its (already-decoded) parent.
func decodeRowCells(schema Schema, raw []byte, pool *stringPool, layout rowBytesLayout) ([]Value, error) {
	cells := make([]Value, len(schema))

	for i, col := range schema {
		if col.Shape == ShapeFlag {
			continue
		}
		v, err := decodeScalarOrList(col, raw, pool, layout)
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", col.Name, err)
		}
		cells[i] = v
	}

	for i, col := range schema {
		if col.Shape != ShapeFlag {
			continue
		}
		if int(col.Parent) >= len(schema) || int(col.Parent) >= i {
			return nil, fmt.Errorf("%w: flag column %s has invalid parent index %d",
				ErrSchemaViolation, col.Name, col.Parent)
		}
		parentCol := schema[col.Parent]
		if !parentCol.Type.IsInteger() {
			return nil, fmt.Errorf("%w: flag column %s parent %s is not an integer column",
				ErrSchemaViolation, col.Name, parentCol.Name)
		}
		parentVal, err := cells[col.Parent].Int()
		if err != nil {
			return nil, err
		}
		cells[i] = intValue(parentCol.Type, (parentVal>>col.Shift)&int64(col.Mask))
	}

	return cells, nil
}

// decodeScalarOrList decodes a scalar column's single value, or a list
// column's full arity of same-typed values contiguous from the row
// offset, per the list_arity read spec.md §4.4 requires.
func decodeScalarOrList(col Column, raw []byte, pool *stringPool, layout rowBytesLayout) (Value, error) {
	width, err := col.Type.Size()
	if err != nil {
		return Value{}, err
	}
	arity := uint32(col.Arity)
	if arity == 0 {
		arity = 1
	}
	if uint32(len(raw)) < col.Offset+width*arity {
		return Value{}, fmt.Errorf("%w: row stride %d too small for column at offset %d",
			ErrTruncated, len(raw), col.Offset)
	}

	if col.Shape != ShapeList {
		return decodeOneScalar(col.Type, raw[col.Offset:col.Offset+width], pool, layout)
	}

	elems := make([]Value, arity)
	for i := uint32(0); i < arity; i++ {
		off := col.Offset + i*width
		v, err := decodeOneScalar(col.Type, raw[off:off+width], pool, layout)
		if err != nil {
			return Value{}, fmt.Errorf("list element %d: %w", i, err)
		}
		elems[i] = v
	}
	return NewListValue(col.Type, elems), nil
}

// decodeOneScalar decodes a single width-sized field into a Value of type
// t, the element primitive shared by scalar cells and every element of a
// list cell.
func decodeOneScalar(t ValueType, field []byte, pool *stringPool, layout rowBytesLayout) (Value, error) {
	cur := newCursor(field, layout.end)

	switch t {
	case ValueUByte:
		v, err := cur.u8()
		return intValue(t, int64(v)), err
	case ValueSByte:
		v, err := cur.u8()
		return intValue(t, int64(int8(v))), err
	case ValueUShort, ValueMessageStudioIndex:
		v, err := cur.u16()
		return intValue(t, int64(v)), err
	case ValueSShort:
		v, err := cur.u16()
		return intValue(t, int64(int16(v))), err
	case ValueUInt, ValueHash:
		v, err := cur.u32()
		return intValue(t, int64(v)), err
	case ValueSInt:
		v, err := cur.u32()
		return intValue(t, int64(int32(v))), err
	case ValueUnknown1:
		v, err := cur.u8()
		return intValue(t, int64(v)), err
	case ValuePercent:
		v, err := cur.u8()
		return percentValue(v), err
	case ValueFloat:
		if layout.fixedPointXCX {
			v, err := cur.fixed2012()
			return floatValue(v), err
		}
		v, err := cur.f32()
		return floatValue(v), err
	case ValueString:
		offset, err := cur.u32()
		if err != nil {
			return Value{}, err
		}
		if offset < layout.stringBase {
			return Value{}, fmt.Errorf("%w: string offset 0x%x precedes string table at 0x%x",
				ErrInvalidFormat, offset, layout.stringBase)
		}
		s, err := pool.get(offset - layout.stringBase)
		if err != nil {
			return Value{}, err
		}
		return stringValue(t, s), nil
	case ValueDebugString:
		offset, err := cur.u32()
		if err != nil {
			return Value{}, err
		}
		s, err := pool.get(offset)
		if err != nil {
			return Value{}, err
		}
		return stringValue(t, s), nil
	default:
		return Value{}, fmt.Errorf("%w: unsupported value type %d", ErrInvalidFormat, t)
	}
}
