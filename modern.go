// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package bdat

import "fmt"

// Modern table header layout (48 bytes), per spec.md §4.5/§6.
const (
	modernVersion = 4

	modernOffMagic           = 0x00
	modernOffVersion         = 0x04
	modernOffColumnCount     = 0x08
	modernOffRowCount        = 0x0C
	modernOffBaseRowID       = 0x10
	modernOffColumnInfo      = 0x18
	modernOffRowIDIndex      = 0x1C
	modernOffRowData         = 0x20
	modernOffRowStride       = 0x24
	modernOffStringTable     = 0x28
	modernOffStringTableSize = 0x2C

	modernTableHeaderSize = 0x30

	modernColumnInfoSize = 5 // value_type_id:u8, name_hash_pointer:u32
	modernRowIDMapSize   = 8 // hash:u32, index:u32

	modernDebugSectionsOffset = 0x30
	modernDebugRowTag         = 1
	modernDebugColumnTag      = 2

	modernTableAlign = 4

	// modernNameHashOffset is the fixed offset (relative to the string
	// table) where the table's own hashed name lives: the string table
	// always begins with the hashed-name sentinel byte followed
	// immediately by the first non-sentinel entry, which spec.md §4.3
	// says is the table name.
	modernNameHashOffset = 1
)

var modernMagic = [4]byte{'B', 'D', 'A', 'T'}

// modernTableHeader is the parsed form of a modern table's fixed header.
type modernTableHeader struct {
	ColumnCount      uint32
	RowCount         uint32
	BaseRowID        uint32
	ColumnInfoOffset uint32
	RowIDIndexOffset uint32
	RowDataOffset    uint32
	RowStride        uint32
	StringTableOffset uint32
	StringTableSize  uint32
}

func parseModernTableHeader(data []byte, offset uint32, end Endianness) (modernTableHeader, error) {
	if offset+modernTableHeaderSize > uint32(len(data)) {
		return modernTableHeader{}, fmt.Errorf("%w: modern table header at 0x%x truncated", ErrTruncated, offset)
	}
	if !bytesEqual(data[offset:offset+4], modernMagic[:]) {
		return modernTableHeader{}, fmt.Errorf("%w: bad modern magic at 0x%x", ErrInvalidFormat, offset)
	}
	if data[offset+modernOffVersion] != modernVersion {
		return modernTableHeader{}, fmt.Errorf("%w: modern table version byte %d at 0x%x",
			ErrUnsupportedDialect, data[offset+modernOffVersion], offset)
	}

	cur := newCursor(data, end)
	var h modernTableHeader
	var err error

	cur.seek(offset + modernOffColumnCount)
	if h.ColumnCount, err = cur.u32(); err != nil {
		return modernTableHeader{}, err
	}
	cur.seek(offset + modernOffRowCount)
	if h.RowCount, err = cur.u32(); err != nil {
		return modernTableHeader{}, err
	}
	cur.seek(offset + modernOffBaseRowID)
	if h.BaseRowID, err = cur.u32(); err != nil {
		return modernTableHeader{}, err
	}
	cur.seek(offset + modernOffColumnInfo)
	if h.ColumnInfoOffset, err = cur.u32(); err != nil {
		return modernTableHeader{}, err
	}
	cur.seek(offset + modernOffRowIDIndex)
	if h.RowIDIndexOffset, err = cur.u32(); err != nil {
		return modernTableHeader{}, err
	}
	cur.seek(offset + modernOffRowData)
	if h.RowDataOffset, err = cur.u32(); err != nil {
		return modernTableHeader{}, err
	}
	cur.seek(offset + modernOffRowStride)
	if h.RowStride, err = cur.u32(); err != nil {
		return modernTableHeader{}, err
	}
	cur.seek(offset + modernOffStringTable)
	if h.StringTableOffset, err = cur.u32(); err != nil {
		return modernTableHeader{}, err
	}
	cur.seek(offset + modernOffStringTableSize)
	if h.StringTableSize, err = cur.u32(); err != nil {
		return modernTableHeader{}, err
	}

	return h, nil
}

// skipModernDebugSections walks the optional debug sections between the
// header and the column-info array, returning without error: the decoder
// recognizes and skips them, it never fails on their presence. The
// encoder never emits them (spec.md §4.5).
func skipModernDebugSections(data []byte, tableOffset, columnInfoOffset uint32, end Endianness) error {
	cur := newCursor(data, end)
	pos := tableOffset + modernDebugSectionsOffset
	limit := tableOffset + columnInfoOffset

	for pos < limit {
		cur.seek(pos)
		id, err := cur.u32()
		if err != nil {
			return err
		}
		if id != modernDebugRowTag && id != modernDebugColumnTag {
			// Not a recognized debug section; leave the remaining gap
			// alone; the column-info offset in the header is authoritative.
			return nil
		}
		size, err := cur.u32()
		if err != nil {
			return err
		}
		pos += 8 + size
	}
	return nil
}

// readModernNameHash reads a fixed-width name hash at offset in the shared
// stringPool, the accessor the modern dialect adds on top of
// nul-terminated debug strings.
func readModernNameHash(pool *stringPool, offset uint32, end Endianness) (uint32, error) {
	if offset+4 > uint32(len(pool.data)) {
		return 0, fmt.Errorf("%w: name hash pointer 0x%x outside string table", ErrInvalidFormat, offset)
	}
	return end.order().Uint32(pool.data[offset:]), nil
}

// decodeModernTable decodes one table at the given file-relative offset.
func decodeModernTable(data []byte, offset uint32, end Endianness) (*Table, error) {
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

	if h.RowIDIndexOffset != 0 {
		if err := verifyModernRowIDMap(data, offset+h.RowIDIndexOffset, h.RowCount, end); err != nil {
			return nil, err
		}
	}

	rowDataOffset := offset + h.RowDataOffset
	layout := rowBytesLayout{end: end}

	rows := make([]Row, h.RowCount)
	for i := uint32(0); i < h.RowCount; i++ {
		rowStart := rowDataOffset + i*h.RowStride
		if rowStart+h.RowStride > uint32(len(data)) {
			return nil, fmt.Errorf("%w: row %d at 0x%x truncated", ErrTruncated, i, rowStart)
		}
		raw := data[rowStart : rowStart+h.RowStride]
		cells, err := decodeRowCells(schema, raw, pool, layout)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		rows[i] = Row{ID: h.BaseRowID + i, cells: cells}
	}

	return &Table{
		Name:    Name{Hash: tableNameHash, Hashed: true},
		Schema:  schema,
		BaseID:  h.BaseRowID,
		Rows:    rows,
		Dialect: DialectModern,
		pool:    pool,
	}, nil
}

// rowOffsetForIndex computes a scalar column's row offset as the sum of
// its predecessors' widths; the modern dialect has no list or flag
// columns, so row layout is always a simple sequential packing.
func rowOffsetForIndex(decoded Schema) uint32 {
	var off uint32
	for _, c := range decoded {
		w, _ := c.Type.Size()
		off += w
	}
	return off
}

// verifyModernRowIDMap checks that the stored (hash,index) pairs are
// sorted ascending by hash and number exactly rowCount, per spec.md §3's
// modern invariant and §8's testable property.
func verifyModernRowIDMap(data []byte, offset, rowCount uint32, end Endianness) error {
	size := rowCount * modernRowIDMapSize
	if offset+size > uint32(len(data)) {
		return fmt.Errorf("%w: row-id map at 0x%x truncated", ErrTruncated, offset)
	}
	var prevHash uint32
	for i := uint32(0); i < rowCount; i++ {
		entry := data[offset+i*modernRowIDMapSize:]
		hash := end.order().Uint32(entry)
		if i > 0 && hash < prevHash {
			return fmt.Errorf("%w: row-id map not sorted ascending at entry %d", ErrSchemaViolation, i)
		}
		prevHash = hash
	}
	return nil
}

// lookupModernRowByHash binary-searches the row-id→index map for hash,
// returning the row index or ErrNoSuchRow, without a full table decode.
// Within the package only the tests call it.
func lookupModernRowByHash(data []byte, offset, rowCount uint32, end Endianness, hash uint32) (uint32, error) {
	lo, hi := 0, int(rowCount)
	for lo < hi {
		mid := (lo + hi) / 2
		entry := data[offset+uint32(mid)*modernRowIDMapSize:]
		h := end.order().Uint32(entry)
		switch {
		case h == hash:
			return end.order().Uint32(entry[4:]), nil
		case h < hash:
			lo = mid + 1
		default:
			hi = mid
		}
	}
	return 0, fmt.Errorf("%w: hash 0x%08x not in row-id map", ErrNoSuchRow, hash)
}
