// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package bdat

import (
	"fmt"
	"sort"
)

// Legacy table header layout (64 bytes for Wii/XCX/XC2/DE; 32 bytes for
// 3DS, which derives the trailing offsets instead of storing them). The
// checksum field at offset 0x12 (18) doubles as the scramble key, per
// spec.md §4.4.
const (
	legacyFlagScrambled = 0x02

	legacyOffMagic           = 0x00
	legacyOffFlags           = 0x04
	// 0x05 is reserved; no field of the observed header layout uses it, and
	// the dialect/variant/endianness sniff relies only on magic bytes, the
	// file-level header (legacyFileOffTableList) and trial decoding (see
	// sniffLegacyTableVariant in dispatch.go) rather than a stamped byte.
	legacyOffHashFactor = 0x06
	legacyOffRowCount        = 0x08
	legacyOffBaseRowID       = 0x0C
	legacyOffRowStride       = 0x10
	legacyOffChecksum        = 0x12
	legacyOffColumnCount     = 0x14
	legacyOffNameTable       = 0x18
	legacyOffHashTable       = 0x1C
	legacyOffRowData         = 0x20 // full header only
	legacyOffStringTable     = 0x24 // full header only
	legacyOffStringTableSize = 0x28 // full header only

	legacyFullHeaderSize  = 64
	legacy3DSHeaderSize   = 32
	legacyColumnInfoSize  = 16
	legacyNodeSize3DSWii  = 4 // info_offset, next_offset; name bytes follow
	legacyNodeSizeXCXPlus = 6 // info_offset, next_offset, name_offset
	legacyNoNext          = 0xFFFF

	legacyRowDataAlign = 32
	legacyTableEndAlign = 64
	legacyColumnInfoAlign = 4
)

var legacyMagic = [4]byte{'B', 'D', 'A', 'T'}
var legacyMagicReversed = [4]byte{'T', 'A', 'D', 'B'}

// legacyTableHeader is the parsed form of a legacy table's fixed header,
// common to every variant (3DS derives the last three offsets instead of
// storing them).
type legacyTableHeader struct {
	Variant          LegacyVariant
	Flags            uint8
	HashFactor       uint32
	RowCount         uint32
	BaseRowID        uint32
	RowStride        uint16
	ChecksumKey      uint16
	ColumnCount      uint16
	NameTableOffset  uint32
	HashTableOffset  uint32
	RowDataOffset    uint32
	StringTableOffset uint32
	StringTableSize  uint32
}

func (h legacyTableHeader) scrambled() bool {
	return h.Flags&legacyFlagScrambled != 0
}

// parseLegacyTableHeader reads a table header starting at offset. tableEnd
// bounds the table (the next table's file offset, or the file size for
// the last table) and is needed to derive the 3DS variant's trailing
// offsets.
func parseLegacyTableHeader(data []byte, offset uint32, variant LegacyVariant, end Endianness, tableEnd uint32) (legacyTableHeader, error) {
	headerSize := variant.headerSize()
	if offset+headerSize > uint32(len(data)) {
		return legacyTableHeader{}, fmt.Errorf("%w: legacy table header at 0x%x truncated", ErrTruncated, offset)
	}

	cur := newCursor(data, end)
	h := legacyTableHeader{Variant: variant}

	magic := data[offset : offset+4]
	if !(bytesEqual(magic, legacyMagic[:]) || bytesEqual(magic, legacyMagicReversed[:])) {
		return legacyTableHeader{}, fmt.Errorf("%w: bad legacy magic at 0x%x", ErrInvalidFormat, offset)
	}

	cur.seek(offset + legacyOffFlags)
	flags, err := cur.u8()
	if err != nil {
		return legacyTableHeader{}, err
	}
	h.Flags = flags

	cur.seek(offset + legacyOffHashFactor)
	hf, err := cur.u16()
	if err != nil {
		return legacyTableHeader{}, err
	}
	h.HashFactor = uint32(hf)

	cur.seek(offset + legacyOffRowCount)
	if h.RowCount, err = cur.u32(); err != nil {
		return legacyTableHeader{}, err
	}

	cur.seek(offset + legacyOffBaseRowID)
	if h.BaseRowID, err = cur.u32(); err != nil {
		return legacyTableHeader{}, err
	}

	cur.seek(offset + legacyOffRowStride)
	if h.RowStride, err = cur.u16(); err != nil {
		return legacyTableHeader{}, err
	}

	cur.seek(offset + legacyOffChecksum)
	if h.ChecksumKey, err = cur.u16(); err != nil {
		return legacyTableHeader{}, err
	}

	cur.seek(offset + legacyOffColumnCount)
	if h.ColumnCount, err = cur.u16(); err != nil {
		return legacyTableHeader{}, err
	}

	cur.seek(offset + legacyOffNameTable)
	if h.NameTableOffset, err = cur.u32(); err != nil {
		return legacyTableHeader{}, err
	}

	cur.seek(offset + legacyOffHashTable)
	if h.HashTableOffset, err = cur.u32(); err != nil {
		return legacyTableHeader{}, err
	}

	if headerSize == legacyFullHeaderSize {
		cur.seek(offset + legacyOffRowData)
		if h.RowDataOffset, err = cur.u32(); err != nil {
			return legacyTableHeader{}, err
		}
		cur.seek(offset + legacyOffStringTable)
		if h.StringTableOffset, err = cur.u32(); err != nil {
			return legacyTableHeader{}, err
		}
		cur.seek(offset + legacyOffStringTableSize)
		if h.StringTableSize, err = cur.u32(); err != nil {
			return legacyTableHeader{}, err
		}
	} else {
		// 3DS: row data and string table are not stored explicitly; they
		// follow the hash table and row data respectively, each aligned
		// per the dialect's section padding rules.
		h.RowDataOffset = alignUp(h.HashTableOffset+h.HashFactor*2, legacyRowDataAlign)
		h.StringTableOffset = alignUp(h.RowDataOffset+h.RowCount*uint32(h.RowStride), legacyRowDataAlign)
		// tableEnd is file-absolute; StringTableOffset is table-relative
		// (like every other *Offset field here), so the derived size must
		// subtract the table's own file-absolute start too.
		absStringTableEnd := offset + h.StringTableOffset
		if tableEnd < absStringTableEnd {
			return legacyTableHeader{}, fmt.Errorf("%w: table end 0x%x precedes derived string table at 0x%x",
				ErrInvalidFormat, tableEnd, absStringTableEnd)
		}
		h.StringTableSize = tableEnd - absStringTableEnd
	}

	return h, nil
}

func alignUp(v, n uint32) uint32 {
	if v%n == 0 {
		return v
	}
	return v + (n - v%n)
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// legacyColumnInfo is one entry of the column-info array: the column's
// storage shape, independent of its name (resolved separately via the
// name table / hash table walk).
type legacyColumnInfo struct {
	Type       ValueType
	Shape      CellShape
	Offset     uint32
	Arity      uint16
	ParentIdx  uint16
	Shift      uint8
	Mask       uint16
}

func parseLegacyColumnInfo(data []byte, offset uint32, end Endianness) (legacyColumnInfo, error) {
	cur := newCursor(data, end)
	cur.seek(offset)

	typTag, err := cur.u8()
	if err != nil {
		return legacyColumnInfo{}, err
	}
	shapeTag, err := cur.u8()
	if err != nil {
		return legacyColumnInfo{}, err
	}
	cur.skip(2) // reserved
	rowOffset, err := cur.u32()
	if err != nil {
		return legacyColumnInfo{}, err
	}
	arity, err := cur.u16()
	if err != nil {
		return legacyColumnInfo{}, err
	}
	parentIdx, err := cur.u16()
	if err != nil {
		return legacyColumnInfo{}, err
	}
	shift, err := cur.u8()
	if err != nil {
		return legacyColumnInfo{}, err
	}
	cur.skip(1) // reserved
	mask, err := cur.u16()
	if err != nil {
		return legacyColumnInfo{}, err
	}

	return legacyColumnInfo{
		Type:      ValueType(typTag),
		Shape:     CellShape(shapeTag),
		Offset:    rowOffset,
		Arity:     arity,
		ParentIdx: parentIdx,
		Shift:     shift,
		Mask:      mask,
	}, nil
}

// legacyNode is a parsed name-table entry: the info_offset/next_offset
// pair shared by both inline and separate layouts, plus the resolved
// column name.
type legacyNode struct {
	InfoOffset uint16
	NextOffset uint16
	Name       string
}

// walkLegacyNames walks the hash table slot by slot and, within each
// occupied slot, follows the next_offset chain to collect every node. The
// collected nodes are then returned sorted by info_offset, i.e. in
// column-info (declared) order, which is the order Column.Parent indices
// and row cells refer to.
func walkLegacyNames(data []byte, offset uint32, h legacyTableHeader, end Endianness, pool *stringPool) ([]legacyNode, error) {
	absHashTableOffset := offset + h.HashTableOffset
	absNameTableOffset := offset + h.NameTableOffset
	hashTableSize := h.HashFactor * 2
	if absHashTableOffset+hashTableSize > uint32(len(data)) {
		return nil, fmt.Errorf("%w: hash table at 0x%x truncated", ErrTruncated, absHashTableOffset)
	}

	cur := newCursor(data, end)
	var nodes []legacyNode

	for slot := uint32(0); slot < h.HashFactor; slot++ {
		cur.seek(absHashTableOffset + slot*2)
		head, err := cur.u16()
		if err != nil {
			return nil, err
		}
		if head == legacyNoNext {
			continue
		}

		visited := make(map[uint16]bool)
		nodeOffset := head
		for {
			if visited[nodeOffset] {
				return nil, fmt.Errorf("%w: cyclic name-table chain at slot %d", ErrInvalidFormat, slot)
			}
			visited[nodeOffset] = true

			node, next, err := parseLegacyNode(data, absNameTableOffset+uint32(nodeOffset), h.Variant, end, pool)
			if err != nil {
				return nil, err
			}
			nodes = append(nodes, node)

			if next == legacyNoNext {
				break
			}
			nodeOffset = next
		}
	}

	sort.SliceStable(nodes, func(a, b int) bool { return nodes[a].InfoOffset < nodes[b].InfoOffset })
	return nodes, nil
}

func parseLegacyNode(data []byte, absOffset uint32, variant LegacyVariant, end Endianness, pool *stringPool) (legacyNode, uint16, error) {
	cur := newCursor(data, end)
	cur.seek(absOffset)

	infoOffset, err := cur.u16()
	if err != nil {
		return legacyNode{}, 0, err
	}
	nextOffset, err := cur.u16()
	if err != nil {
		return legacyNode{}, 0, err
	}

	var name string
	if variant.hasInlineColumnNodes() {
		start := absOffset + legacyNodeSize3DSWii
		strEnd := start
		for strEnd < uint32(len(data)) && data[strEnd] != 0 {
			strEnd++
		}
		if strEnd >= uint32(len(data)) {
			return legacyNode{}, 0, fmt.Errorf("%w: unterminated inline column name at 0x%x", ErrTruncated, start)
		}
		name = string(data[start:strEnd])
	} else {
		nameOffset, err := cur.u16()
		if err != nil {
			return legacyNode{}, 0, err
		}
		name, err = pool.get(uint32(nameOffset))
		if err != nil {
			return legacyNode{}, 0, err
		}
	}

	return legacyNode{InfoOffset: infoOffset, NextOffset: nextOffset, Name: name}, nextOffset, nil
}

// decodeLegacyTable decodes one table at the given offset. tableEnd is
// the file-relative offset one past the table's last byte (the next
// table's offset, or the file size for the last table).
func decodeLegacyTable(data []byte, offset, tableEnd uint32, variant LegacyVariant, end Endianness, encoding LegacyEncoding) (*Table, error) {
	h, err := parseLegacyTableHeader(data, offset, variant, end, tableEnd)
	if err != nil {
		return nil, err
	}

	working := data
	if h.scrambled() {
		working = append([]byte(nil), data...)
		err := scrambleSections(working, h.ChecksumKey,
			offset+h.NameTableOffset, offset+h.HashTableOffset,
			offset+h.StringTableOffset, offset+h.StringTableOffset+h.StringTableSize,
			true, false)
		if err != nil {
			return nil, err
		}
	}

	if offset+h.StringTableOffset+h.StringTableSize > uint32(len(working)) {
		return nil, fmt.Errorf("%w: string table at 0x%x truncated", ErrTruncated, offset+h.StringTableOffset)
	}
	pool := wrapStringPool(working[offset+h.StringTableOffset:offset+h.StringTableOffset+h.StringTableSize], encoding)

	tableName, err := pool.get(0)
	if err != nil {
		return nil, fmt.Errorf("table name: %w", err)
	}

	columnInfoOffset := offset + variant.headerSize()
	nodes, err := walkLegacyNames(working, offset, h, end, pool)
	if err != nil {
		return nil, err
	}
	if uint16(len(nodes)) != h.ColumnCount {
		return nil, fmt.Errorf("%w: name table yielded %d columns, header declares %d",
			ErrSchemaViolation, len(nodes), h.ColumnCount)
	}

	schema := make(Schema, len(nodes))
	for i, node := range nodes {
		info, err := parseLegacyColumnInfo(working, columnInfoOffset+uint32(node.InfoOffset), end)
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

	rowDataOffset := offset + h.RowDataOffset
	layout := rowBytesLayout{end: end, fixedPointXCX: variant.fixedPointFloat(), stringBase: h.StringTableOffset}

	rows := make([]Row, h.RowCount)
	for i := uint32(0); i < h.RowCount; i++ {
		rowStart := rowDataOffset + i*uint32(h.RowStride)
		if rowStart+uint32(h.RowStride) > uint32(len(working)) {
			return nil, fmt.Errorf("%w: row %d at 0x%x truncated", ErrTruncated, i, rowStart)
		}
		raw := working[rowStart : rowStart+uint32(h.RowStride)]
		cells, err := decodeRowCells(schema, raw, pool, layout)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		rows[i] = Row{ID: h.BaseRowID + i, cells: cells}
	}

	return &Table{
		Name:    Name{Text: tableName},
		Schema:  schema,
		BaseID:  h.BaseRowID,
		Rows:    rows,
		Dialect: DialectLegacy,
		pool:    pool,
	}, nil
}
