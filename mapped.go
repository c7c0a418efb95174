// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package bdat

import "fmt"

// MappedTable is a zero-copy accessor over a borrowed buffer: it resolves
// a table's schema and section bounds once, then reads each row's fields
// directly out of the source buffer on demand, never materializing a
// []Row. The borrow is read-only; the caller owns the buffer's lifetime.
type MappedTable struct {
	data   []byte
	schema Schema
	pool   *stringPool
	layout rowBytesLayout

	rowDataOffset uint32
	rowStride     uint32
	rowCount      uint32
	baseID        uint32

	tableName Name
}

// RowView is a single row's fields, resolved lazily from the owning
// MappedTable's borrowed buffer.
type RowView struct {
	table *MappedTable
	raw   []byte
	id    uint32
}

// MapLegacyTable builds a zero-copy accessor over a legacy table already
// located at offset in data. Scrambled tables are rejected: the name
// table and string pool are cipher-scrambled on disk, so resolving even
// the schema without a writable copy to decrypt into is impossible
// (spec.md §4.6).
func MapLegacyTable(data []byte, offset, tableEnd uint32, variant LegacyVariant, end Endianness, encoding LegacyEncoding) (*MappedTable, error) {
	h, err := parseLegacyTableHeader(data, offset, variant, end, tableEnd)
	if err != nil {
		return nil, err
	}
	if h.scrambled() {
		return nil, fmt.Errorf("%w: legacy table at 0x%x is scrambled", ErrWouldRequireCopy, offset)
	}

	if offset+h.StringTableOffset+h.StringTableSize > uint32(len(data)) {
		return nil, fmt.Errorf("%w: string table at 0x%x truncated", ErrTruncated, offset+h.StringTableOffset)
	}
	pool := wrapStringPool(data[offset+h.StringTableOffset:offset+h.StringTableOffset+h.StringTableSize], encoding)

	tableName, err := pool.get(0)
	if err != nil {
		return nil, fmt.Errorf("table name: %w", err)
	}

	columnInfoOffset := offset + variant.headerSize()
	nodes, err := walkLegacyNames(data, offset, h, end, pool)
	if err != nil {
		return nil, err
	}
	if uint16(len(nodes)) != h.ColumnCount {
		return nil, fmt.Errorf("%w: name table yielded %d columns, header declares %d",
			ErrSchemaViolation, len(nodes), h.ColumnCount)
	}

	schema := make(Schema, len(nodes))
	for i, node := range nodes {
		info, err := parseLegacyColumnInfo(data, columnInfoOffset+uint32(node.InfoOffset), end)
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", node.Name, err)
		}
		schema[i] = Column{
			Name:   Name{Text: node.Name},
			Type:   info.Type,
			Shape:  info.Shape,
			Offset: info.Offset,
			Arity:  info.Arity,
			Parent: uint32(info.ParentIdx),
			Shift:  info.Shift,
			Mask:   uint32(info.Mask),
		}
	}

	stride, err := schema.RowStride()
	if err != nil {
		return nil, err
	}
	if uint16(stride) != h.RowStride {
		return nil, fmt.Errorf("%w: computed row stride %d does not match header stride %d",
			ErrSchemaViolation, stride, h.RowStride)
	}

	return &MappedTable{
		data:          data,
		schema:        schema,
		pool:          pool,
		layout:        rowBytesLayout{end: end, fixedPointXCX: variant.fixedPointFloat(), stringBase: h.StringTableOffset},
		rowDataOffset: offset + h.RowDataOffset,
		rowStride:     uint32(h.RowStride),
		rowCount:      h.RowCount,
		baseID:        h.BaseRowID,
		tableName:     Name{Text: tableName},
	}, nil
}

// MapModernTable builds a zero-copy accessor over a modern table already
// located at offset in data. The modern dialect never scrambles its
// sections, so there is no analogous rejection case.
func MapModernTable(data []byte, offset uint32, end Endianness) (*MappedTable, error) {
	h, err := parseModernTableHeader(data, offset, end)
	if err != nil {
		return nil, err
	}
	if err := skipModernDebugSections(data, offset, h.ColumnInfoOffset, end); err != nil {
		return nil, err
	}

	if offset+h.StringTableOffset+h.StringTableSize > uint32(len(data)) {
		return nil, fmt.Errorf("%w: string table at 0x%x truncated", ErrTruncated, offset+h.StringTableOffset)
	}
	pool := wrapStringPool(data[offset+h.StringTableOffset:offset+h.StringTableOffset+h.StringTableSize], EncodingUTF8)
	if !pool.hasHashSentinel() {
		return nil, fmt.Errorf("%w: modern string table missing hashed-name sentinel", ErrInvalidFormat)
	}

	tableNameHash, err := readModernNameHash(pool, modernNameHashOffset, end)
	if err != nil {
		return nil, fmt.Errorf("table name: %w", err)
	}

	columnInfoAbs := offset + h.ColumnInfoOffset
	schema := make(Schema, h.ColumnCount)
	for i := uint32(0); i < h.ColumnCount; i++ {
		entryOffset := columnInfoAbs + i*modernColumnInfoSize
		if entryOffset+modernColumnInfoSize > uint32(len(data)) {
			return nil, fmt.Errorf("%w: column info %d truncated", ErrTruncated, i)
		}
		typTag := data[entryOffset]
		namePointer := end.order().Uint32(data[entryOffset+1:])
		nameHash, err := readModernNameHash(pool, namePointer, end)
		if err != nil {
			return nil, fmt.Errorf("column %d name: %w", i, err)
		}
		if _, err := ValueType(typTag).Size(); err != nil {
			return nil, err
		}
		schema[i] = Column{
			Name:   Name{Hash: nameHash, Hashed: true},
			Type:   ValueType(typTag),
			Shape:  ShapeScalar,
			Offset: rowOffsetForIndex(schema[:i]),
			Arity:  1,
		}
	}

	stride, err := schema.RowStride()
	if err != nil {
		return nil, err
	}
	if stride != h.RowStride {
		return nil, fmt.Errorf("%w: computed row stride %d does not match header stride %d",
			ErrSchemaViolation, stride, h.RowStride)
	}

	return &MappedTable{
		data:          data,
		schema:        schema,
		pool:          pool,
		layout:        rowBytesLayout{end: end},
		rowDataOffset: offset + h.RowDataOffset,
		rowStride:     h.RowStride,
		rowCount:      h.RowCount,
		baseID:        h.BaseRowID,
		tableName:     Name{Hash: tableNameHash, Hashed: true},
	}, nil
}

// Name returns the table's name, resolved the same way Table.Name would be.
func (m *MappedTable) Name() Name { return m.tableName }

// RowCount returns the number of rows addressable through this accessor.
func (m *MappedTable) RowCount() int { return int(m.rowCount) }

// Row resolves a row view by game-visible row id, validating its bounds
// but not decoding any of its cells yet.
func (m *MappedTable) Row(id uint32) (RowView, error) {
	if id < m.baseID {
		return RowView{}, fmt.Errorf("%w: row id %d below base id %d", ErrNoSuchRow, id, m.baseID)
	}
	idx := id - m.baseID
	if idx >= m.rowCount {
		return RowView{}, fmt.Errorf("%w: row id %d", ErrNoSuchRow, id)
	}

	start := m.rowDataOffset + idx*m.rowStride
	if start+m.rowStride > uint32(len(m.data)) {
		return RowView{}, fmt.Errorf("%w: row %d at 0x%x truncated", ErrTruncated, idx, start)
	}

	return RowView{table: m, raw: m.data[start : start+m.rowStride], id: id}, nil
}

// ID returns the row's game-visible row id.
func (r RowView) ID() uint32 { return r.id }

// Get resolves a single cell by plain column name, decoding only that
// column's bytes (and its parent's, for a flag column).
func (r RowView) Get(name string) (Value, error) {
	idx := r.table.schema.IndexOf(name)
	if idx < 0 {
		return Value{}, fmt.Errorf("%w: %q", ErrNoSuchColumn, name)
	}
	return r.GetIndex(idx)
}

// GetHash resolves a single cell by column hash label (modern dialect).
func (r RowView) GetHash(hash uint32) (Value, error) {
	idx := r.table.schema.IndexOfHash(hash)
	if idx < 0 {
		return Value{}, fmt.Errorf("%w: hash 0x%08x", ErrNoSuchColumn, hash)
	}
	return r.GetIndex(idx)
}

// GetIndex resolves a single cell by schema position.
func (r RowView) GetIndex(idx int) (Value, error) {
	if idx < 0 || idx >= len(r.table.schema) {
		return Value{}, fmt.Errorf("%w: column index %d", ErrNoSuchColumn, idx)
	}
	col := r.table.schema[idx]

	if col.Shape != ShapeFlag {
		return decodeScalarOrList(col, r.raw, r.table.pool, r.table.layout)
	}

	if int(col.Parent) >= len(r.table.schema) || int(col.Parent) >= idx {
		return Value{}, fmt.Errorf("%w: flag column %s has invalid parent index %d",
			ErrSchemaViolation, col.Name, col.Parent)
	}
	parentCol := r.table.schema[col.Parent]
	if !parentCol.Type.IsInteger() {
		return Value{}, fmt.Errorf("%w: flag column %s parent %s is not an integer column",
			ErrSchemaViolation, col.Name, parentCol.Name)
	}
	parentVal, err := decodeScalarOrList(parentCol, r.raw, r.table.pool, r.table.layout)
	if err != nil {
		return Value{}, err
	}
	pv, err := parentVal.Int()
	if err != nil {
		return Value{}, err
	}
	return intValue(parentCol.Type, (pv>>col.Shift)&int64(col.Mask)), nil
}
