// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package bdat

import "fmt"

// encodeLegacyTable emits one table's bytes for the given variant,
// endianness and scramble request. The returned buffer is table-relative
// (offset 0); the file-level writer is responsible for placing it and
// recording its file-relative table offset.
func encodeLegacyTable(t *Table, variant LegacyVariant, end Endianness, scrambleOut bool, encoding LegacyEncoding) ([]byte, error) {
	stride, err := t.Schema.RowStride()
	if err != nil {
		return nil, err
	}
	if stride > 0xFFFF {
		return nil, fmt.Errorf("%w: row stride %d overflows u16", ErrWriteOverflow, stride)
	}

	slots := partitionBySlot(t.Schema)

	pool := newStringPool(encoding)
	pool.append(t.Name.String())

	headerSize := variant.headerSize()
	columnInfoSize := alignUp(uint32(len(t.Schema))*legacyColumnInfoSize, legacyColumnInfoAlign)

	nameTableOffset := headerSize + columnInfoSize

	// Lay out name-table nodes in slot-major order; within a slot, in the
	// caller's relative order (a stable partition), so that nodes sharing a
	// slot are adjacent and can be chained. The decoder restores declared
	// order from each node's info_offset.
	type nodeOut struct {
		colIdx     int
		infoOffset uint16
	}
	var nodes []nodeOut
	for _, idxs := range slots {
		for _, idx := range idxs {
			nodes = append(nodes, nodeOut{colIdx: idx, infoOffset: uint16(idx * legacyColumnInfoSize)})
		}
	}

	nameTable := newWriter(end)
	nodeOffsets := make([]uint16, len(nodes))
	for i, n := range nodes {
		col := t.Schema[n.colIdx]
		nodeStart := nameTable.len()
		if nodeStart > 0xFFFF {
			return nil, fmt.Errorf("%w: name table grew beyond 64KiB", ErrWriteOverflow)
		}
		nodeOffsets[i] = uint16(nodeStart)

		next := uint16(legacyNoNext)
		if i+1 < len(nodes) && sameSlot(t.Schema, nodes[i].colIdx, nodes[i+1].colIdx) {
			next = nodeStart + nodeEntrySize(variant, col.Name.Text)
		}

		nameTable.putU16(n.infoOffset)
		nameTable.putU16(next)
		if variant.hasInlineColumnNodes() {
			nameTable.putBytes([]byte(col.Name.Text))
			nameTable.putU8(0)
			if nameTable.len()%2 != 0 {
				nameTable.putU8(0)
			}
		} else {
			nameOffset := pool.append(col.Name.Text)
			if nameOffset > 0xFFFF {
				return nil, fmt.Errorf("%w: string pool offset overflows u16", ErrWriteOverflow)
			}
			nameTable.putU16(uint16(nameOffset))
		}
	}

	hashTable := newWriter(end)
	hashFactor := legacyDefaultHashFactor(len(t.Schema))
	heads := make([]uint16, hashFactor)
	for i := range heads {
		heads[i] = legacyNoNext
	}
	for i, n := range nodes {
		slot := legacyHashSlot(t.Schema[n.colIdx].Name.Text, uint32(hashFactor))
		if heads[slot] == legacyNoNext {
			heads[slot] = nodeOffsets[i]
		}
	}
	for _, head := range heads {
		hashTable.putU16(head)
	}

	// Assemble section offsets, table-relative. rowDataStart is knowable
	// now (nameTable/hashTable are already built above); rowData's own
	// size is just rowCount*stride padded to alignment, independent of
	// cell content, so stringTableStart can be precomputed too. This
	// matters because legacy String(7) cells store an offset absolute to
	// table start (spec.md §6), so encodeRowCells below needs
	// stringTableStart before it writes a single string offset.
	nameTableStart := nameTableOffset
	hashTableStart := nameTableStart + nameTable.len()
	rowDataStart := alignUp(hashTableStart+hashTable.len(), legacyRowDataAlign)
	rowDataSize := alignUp(uint32(len(t.Rows))*uint32(stride), legacyRowDataAlign)
	stringTableStart := rowDataStart + rowDataSize

	rowData := newWriter(end)
	layout := rowBytesLayout{end: end, fixedPointXCX: variant.fixedPointFloat(), stringBase: stringTableStart}
	for _, row := range t.Rows {
		rowBytes, err := encodeRowCells(t.Schema, row.cells, pool, layout, uint32(stride))
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", row.ID, err)
		}
		rowData.putBytes(rowBytes)
	}
	rowData.padTo(legacyRowDataAlign)

	columnInfo := newWriter(end)
	for _, col := range t.Schema {
		writeLegacyColumnInfo(columnInfo, col)
	}
	for columnInfo.len()%legacyColumnInfoAlign != 0 {
		columnInfo.putU8(0)
	}

	// Keep the string table an even number of bytes so it can be scrambled.
	if len(pool.data)%2 != 0 {
		pool.data = append(pool.data, 0)
	}
	stringTableSize := uint32(len(pool.data))

	out := newWriter(end)
	out.buf = make([]byte, headerSize)
	magic := legacyMagic
	if variant == Variant3DS {
		magic = legacyMagicReversed
	}
	copy(out.buf[legacyOffMagic:], magic[:])

	flags := uint8(0)
	if scrambleOut {
		flags |= legacyFlagScrambled
	}
	out.putU8At(legacyOffFlags, flags)
	out.putU16At(legacyOffHashFactor, uint16(hashFactor))
	out.putU32At(legacyOffRowCount, uint32(len(t.Rows)))
	out.putU32At(legacyOffBaseRowID, t.BaseID)
	out.putU16At(legacyOffRowStride, uint16(stride))
	out.putU16At(legacyOffColumnCount, uint16(len(t.Schema)))
	out.putU32At(legacyOffNameTable, nameTableStart)
	out.putU32At(legacyOffHashTable, hashTableStart)

	if headerSize == legacyFullHeaderSize {
		out.putU32At(legacyOffRowData, rowDataStart)
		out.putU32At(legacyOffStringTable, stringTableStart)
		out.putU32At(legacyOffStringTableSize, stringTableSize)
	}

	out.buf = append(out.buf, columnInfo.buf...)
	out.buf = append(out.buf, nameTable.buf...)
	out.buf = append(out.buf, hashTable.buf...)
	for uint32(len(out.buf)) < rowDataStart {
		out.buf = append(out.buf, 0)
	}
	out.buf = append(out.buf, rowData.buf...)
	out.buf = append(out.buf, pool.data...)

	checksum := legacyChecksum(out.buf, 0x20, stringTableStart+stringTableSize)
	out.putU16At(legacyOffChecksum, checksum)

	if scrambleOut {
		err := scrambleSections(out.buf, checksum,
			nameTableStart, hashTableStart,
			stringTableStart, stringTableStart+stringTableSize,
			true, true)
		if err != nil {
			return nil, err
		}
	}

	out.padTo(legacyTableEndAlign)
	return out.buf, nil
}

// legacyChecksum sums each byte shifted by its position mod 4, truncated
// to 16 bits, matching the encode-side routine spec.md §4.4 describes.
func legacyChecksum(data []byte, start, end uint32) uint16 {
	var sum uint32
	for i := start; i < end; i++ {
		sum += uint32(data[i]) << (i & 3)
	}
	return uint16(sum)
}

// legacyDefaultHashFactor returns the game's conventional table size (61)
// for any non-empty schema, whatever its column count (columns sharing a
// slot are chained), and 1 for a schema with no columns.
func legacyDefaultHashFactor(columnCount int) int {
	if columnCount == 0 {
		return 1
	}
	return 61
}

func sameSlot(schema Schema, a, b int) bool {
	hf := uint32(legacyDefaultHashFactor(len(schema)))
	return legacyHashSlot(schema[a].Name.Text, hf) == legacyHashSlot(schema[b].Name.Text, hf)
}

// partitionBySlot stable-partitions column indices by hash slot, slot
// ascending, preserving each slot's relative order — the layout the
// decoder's hash-walk reconstructs.
func partitionBySlot(schema Schema) [][]int {
	hf := uint32(legacyDefaultHashFactor(len(schema)))
	buckets := make([][]int, hf)
	for i, col := range schema {
		slot := legacyHashSlot(col.Name.Text, hf)
		buckets[slot] = append(buckets[slot], i)
	}
	return buckets
}

func nodeEntrySize(variant LegacyVariant, name string) uint16 {
	if variant.hasInlineColumnNodes() {
		n := legacyNodeSize3DSWii + len(name) + 1
		if n%2 != 0 {
			n++
		}
		return uint16(n)
	}
	return legacyNodeSizeXCXPlus
}

func writeLegacyColumnInfo(w *writer, col Column) {
	w.putU8(uint8(col.Type))
	w.putU8(uint8(col.Shape))
	w.putU16(0)
	w.putU32(col.Offset)
	arity := col.Arity
	if arity == 0 {
		arity = 1
	}
	w.putU16(arity)
	w.putU16(uint16(col.Parent))
	w.putU8(col.Shift)
	w.putU8(0)
	w.putU16(uint16(col.Mask))
}

// encodeRowCells lays out one row's cells into a stride-byte buffer.
// Flag cells are skipped (they contribute no bytes of their own).
func encodeRowCells(schema Schema, cells []Value, pool *stringPool, layout rowBytesLayout, stride uint32) ([]byte, error) {
	raw := make([]byte, stride)
	for i, col := range schema {
		if col.Shape == ShapeFlag {
			continue
		}
		if err := encodeScalarOrList(col, cells[i], raw, pool, layout); err != nil {
			return nil, fmt.Errorf("column %s: %w", col.Name, err)
		}
	}
	return raw, nil
}

// encodeScalarOrList writes a scalar column's single value, or a list
// column's per-index elements (cells[i].Values()), contiguously from the
// row offset — the inverse of decodeScalarOrList.
func encodeScalarOrList(col Column, v Value, raw []byte, pool *stringPool, layout rowBytesLayout) error {
	width, err := col.Type.Size()
	if err != nil {
		return err
	}
	arity := col.Arity
	if arity == 0 {
		arity = 1
	}
	if uint32(len(raw)) < col.Offset+width*uint32(arity) {
		return fmt.Errorf("%w: row buffer too small for column at offset %d", ErrSchemaViolation, col.Offset)
	}

	elems := v.Values()
	if uint16(len(elems)) != arity {
		return fmt.Errorf("%w: column %s declares arity %d but cell carries %d elements",
			ErrSchemaViolation, col.Name, arity, len(elems))
	}

	for slot := uint32(0); slot < uint32(arity); slot++ {
		field := raw[col.Offset+slot*width : col.Offset+(slot+1)*width]
		w := &writer{end: layout.end}
		elem := elems[slot]
		switch col.Type {
		case ValueUByte, ValueSByte, ValueUnknown1:
			iv, err := elem.Int()
			if err != nil {
				return err
			}
			w.putU8(uint8(iv))
		case ValuePercent:
			iv, err := elem.Int()
			if err != nil {
				return err
			}
			w.putU8(uint8(iv))
		case ValueUShort, ValueSShort, ValueMessageStudioIndex:
			iv, err := elem.Int()
			if err != nil {
				return err
			}
			w.putU16(uint16(iv))
		case ValueUInt, ValueSInt, ValueHash:
			iv, err := elem.Int()
			if err != nil {
				return err
			}
			w.putU32(uint32(iv))
		case ValueFloat:
			fv, err := elem.Float()
			if err != nil {
				return err
			}
			if layout.fixedPointXCX {
				w.putFixed2012(fv)
			} else {
				w.putF32(fv)
			}
		case ValueString:
			s, err := elem.String()
			if err != nil {
				return err
			}
			offset := pool.append(s) + layout.stringBase
			w.putU32(offset)
		case ValueDebugString:
			s, err := elem.String()
			if err != nil {
				return err
			}
			offset := pool.append(s)
			w.putU32(offset)
		default:
			return fmt.Errorf("%w: unsupported value type %d", ErrInvalidFormat, col.Type)
		}
		copy(field, w.buf)
	}
	return nil
}
