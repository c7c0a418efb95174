// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package bdat

import (
	"fmt"
	"sort"
)

// encodeModernTable emits one table's bytes in the modern layout. The
// returned buffer is table-relative (offset 0); the file-level writer
// places it and records the file-relative table offset.
//
// A row-id→index map is emitted automatically whenever the schema carries
// a Hash-typed column: that column's per-row values are exactly the
// "id or label" keys spec.md's row-id map is built over, so its presence
// needs no separate flag or name heuristic.
func encodeModernTable(t *Table, end Endianness) ([]byte, error) {
	for _, col := range t.Schema {
		if col.Shape != ShapeScalar {
			return nil, fmt.Errorf("%w: modern dialect has no non-scalar columns", ErrSchemaViolation)
		}
	}

	stride, err := t.Schema.RowStride()
	if err != nil {
		return nil, err
	}

	pool := newStringPool(EncodingUTF8)
	pool.writeHashSentinel()
	pool.append32(t.Name.Hash, end)

	columnInfo := newWriter(end)
	namePointers := make([]uint32, len(t.Schema))
	for i, col := range t.Schema {
		namePointers[i] = pool.append32(col.Name.Hash, end)
	}
	for i, col := range t.Schema {
		columnInfo.putU8(uint8(col.Type))
		columnInfo.putU32(namePointers[i])
	}

	idColumn := -1
	for i, col := range t.Schema {
		if col.Type == ValueHash {
			idColumn = i
			break
		}
	}

	rowIDMap := newWriter(end)
	if idColumn >= 0 {
		type entry struct {
			hash uint32
			idx  uint32
		}
		entries := make([]entry, len(t.Rows))
		for i, row := range t.Rows {
			v, err := row.GetIndex(idColumn)
			if err != nil {
				return nil, err
			}
			key, err := v.Int()
			if err != nil {
				return nil, err
			}
			entries[i] = entry{hash: uint32(key), idx: uint32(i)}
		}
		sort.Slice(entries, func(a, b int) bool { return entries[a].hash < entries[b].hash })
		for _, e := range entries {
			rowIDMap.putU32(e.hash)
			rowIDMap.putU32(e.idx)
		}
	}

	rowData := newWriter(end)
	layout := rowBytesLayout{end: end}
	for _, row := range t.Rows {
		rowBytes, err := encodeRowCells(t.Schema, row.cells, pool, layout, stride)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", row.ID, err)
		}
		rowData.putBytes(rowBytes)
	}

	columnInfoOffset := uint32(modernTableHeaderSize)
	rowIDIndexOffset := columnInfoOffset + columnInfo.len()
	rowDataOffset := rowIDIndexOffset + rowIDMap.len()
	stringTableOffset := rowDataOffset + rowData.len()

	out := newWriter(end)
	out.buf = make([]byte, modernTableHeaderSize)
	copy(out.buf[modernOffMagic:], modernMagic[:])
	out.putU8At(modernOffVersion, modernVersion)
	out.putU32At(modernOffColumnCount, uint32(len(t.Schema)))
	out.putU32At(modernOffRowCount, uint32(len(t.Rows)))
	out.putU32At(modernOffBaseRowID, t.BaseID)
	out.putU32At(modernOffColumnInfo, columnInfoOffset)
	if idColumn >= 0 {
		out.putU32At(modernOffRowIDIndex, rowIDIndexOffset)
	}
	out.putU32At(modernOffRowData, rowDataOffset)
	out.putU32At(modernOffRowStride, stride)
	out.putU32At(modernOffStringTable, stringTableOffset)
	out.putU32At(modernOffStringTableSize, uint32(len(pool.data)))

	out.buf = append(out.buf, columnInfo.buf...)
	out.buf = append(out.buf, rowIDMap.buf...)
	out.buf = append(out.buf, rowData.buf...)
	out.buf = append(out.buf, pool.data...)

	out.padTo(modernTableAlign)
	return out.buf, nil
}

// append32 writes a raw 32-bit value (a hash label, not a nul-terminated
// string) at the pool's current end and returns its offset.
func (p *stringPool) append32(v uint32, end Endianness) uint32 {
	offset := uint32(len(p.data))
	var b [4]byte
	end.order().PutUint32(b[:], v)
	p.data = append(p.data, b[:]...)
	return offset
}
