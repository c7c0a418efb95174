// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package bdat

import (
	"fmt"
	"os"

	mmap "github.com/edsrzf/mmap-go"

	"github.com/xenotools/bdat/internal/log"
)

// Modern file header layout, preceding every modern table's own header.
const (
	fileOffMagic      = 0x00
	fileOffVersion    = 0x04
	fileOffTableCount = 0x08
	fileOffFileSize   = 0x0C
	fileOffTableList  = 0x10

	fileHeaderSize = 0x10
)

// Legacy file header layout, preceding every legacy table in a packed
// file: table_count:u32, file_size:u32, table_offsets:u16[table_count],
// each offset file-relative (spec.md §6).
const (
	legacyFileOffTableCount = 0x00
	legacyFileOffFileSize   = 0x04
	legacyFileOffTableList  = 0x08
)

func legacyFileHeaderSize(tableCount int) uint32 {
	return legacyFileOffTableList + uint32(tableCount)*2
}

// tableEntry records where one decoded or mapped table lives in the
// source buffer, so BdatFile can re-parse it lazily on GetTable/MapTable
// without keeping every table resident.
type tableEntry struct {
	name    string
	hash    uint32
	hashed  bool
	offset  uint32
	end     uint32 // legacy only: one past the table's last byte
	variant LegacyVariant
}

// BdatFile is the uniform handle the dispatch layer hands back: it knows
// the dialect, endianness and the offset of every table in the buffer,
// and decodes or maps individual tables on demand.
type BdatFile struct {
	data     []byte
	dialect  Dialect
	end      Endianness
	encoding LegacyEncoding
	tables   []tableEntry

	// Anomalies collects non-fatal oddities noticed while indexing tables
	// (a modern table whose name hash cannot be resolved) alongside the
	// logger, rather than failing the whole open.
	Anomalies []string

	mm     mmap.MMap
	f      *os.File
	logger *log.Helper
}

func (bf *BdatFile) addAnomaly(a string) {
	for _, existing := range bf.Anomalies {
		if existing == a {
			return
		}
	}
	bf.Anomalies = append(bf.Anomalies, a)
}

// Options configures Open/OpenBytes. The zero value is a sane default: a
// filtered stdout logger at Warn and UTF-8 legacy string decoding.
type Options struct {
	// LegacyEncoding selects how legacy string-pool bytes are interpreted.
	// Modern pools are always UTF-8/hashed and ignore this field.
	LegacyEncoding LegacyEncoding

	// Logger receives non-fatal diagnostics (a modern table whose name
	// hash cannot be resolved). A filtered stdout logger is used when nil.
	Logger log.Logger
}

func (o *Options) helper() *log.Helper {
	if o == nil || o.Logger == nil {
		return log.NewHelper(log.NewFilter(log.NewStdLogger("bdat"), log.FilterLevel(log.LevelWarn)))
	}
	return log.NewHelper(o.Logger)
}

// Open memory-maps the named file and dispatches it, mirroring the
// teacher's mmap-backed constructor: the file descriptor and mapping are
// held by the returned handle until Close.
func Open(name string, opts *Options) (*BdatFile, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	data, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		f.Close()
		return nil, err
	}

	bf, err := dispatch(data, opts)
	if err != nil {
		data.Unmap()
		f.Close()
		return nil, err
	}
	bf.mm = data
	bf.f = f
	return bf, nil
}

// OpenBytes dispatches an already-resident buffer (e.g. loaded over the
// network, or produced in-process). The buffer is borrowed: the caller
// must not mutate it while any MappedTable derived from this handle is
// alive.
func OpenBytes(data []byte, opts *Options) (*BdatFile, error) {
	return dispatch(data, opts)
}

// Close releases the memory mapping and file descriptor, if Open was used
// to construct this handle. It is a no-op for handles built with
// OpenBytes.
func (bf *BdatFile) Close() error {
	if bf.mm != nil {
		_ = bf.mm.Unmap()
	}
	if bf.f != nil {
		return bf.f.Close()
	}
	return nil
}

// Tables lists every table name (or, for modern/hashed tables, a
// formatted hash label) found in the buffer. It is display-only: a
// hashed entry's formatted string cannot be fed back into GetTable,
// which only resolves plain names (legacy) — use TableRefs and
// GetTableRef/MapTableRef for round-trippable lookups instead.
func (bf *BdatFile) Tables() []string {
	names := make([]string, len(bf.tables))
	for i, t := range bf.tables {
		names[i] = tableEntryDisplay(t)
	}
	return names
}

func tableEntryDisplay(t tableEntry) string {
	if t.hashed {
		return fmt.Sprintf("<0x%08x>", t.hash)
	}
	return t.name
}

// TableRef identifies one table in the buffer the way tableEntry does
// internally: a plain name for the legacy dialect, or a hash label for
// the modern dialect, alongside the same display string Tables() would
// format it as. Unlike a bare string from Tables(), a TableRef carries
// enough to resolve back to a Table or MappedTable regardless of
// dialect.
type TableRef struct {
	Name    string
	Hash    uint32
	Hashed  bool
	Display string
}

// TableRefs lists every table in the buffer as a TableRef, each
// resolvable via GetTableRef/MapTableRef without the caller needing to
// know whether the file is legacy or modern.
func (bf *BdatFile) TableRefs() []TableRef {
	refs := make([]TableRef, len(bf.tables))
	for i, t := range bf.tables {
		refs[i] = TableRef{Name: t.name, Hash: t.hash, Hashed: t.hashed, Display: tableEntryDisplay(t)}
	}
	return refs
}

// FindRef resolves a display string (as Tables()/TableRef.Display format
// it) back into a TableRef: a hashed "<0x%08x>" form for the modern
// dialect, a plain name otherwise.
func (bf *BdatFile) FindRef(display string) (TableRef, error) {
	var hash uint32
	if n, err := fmt.Sscanf(display, "<0x%08x>", &hash); err == nil && n == 1 {
		t, err := bf.findHash(hash)
		if err != nil {
			return TableRef{}, err
		}
		return TableRef{Name: t.name, Hash: t.hash, Hashed: t.hashed, Display: display}, nil
	}
	t, err := bf.find(display)
	if err != nil {
		return TableRef{}, err
	}
	return TableRef{Name: t.name, Hash: t.hash, Hashed: t.hashed, Display: display}, nil
}

// GetTableRef fully decodes the table a TableRef identifies, routing to
// GetTable or GetTableHash depending on whether it is hashed.
func (bf *BdatFile) GetTableRef(ref TableRef) (*Table, error) {
	if ref.Hashed {
		return bf.GetTableHash(ref.Hash)
	}
	return bf.GetTable(ref.Name)
}

// MapTableRef builds a zero-copy accessor over the table a TableRef
// identifies, routing to MapTable or MapTableHash depending on whether
// it is hashed.
func (bf *BdatFile) MapTableRef(ref TableRef) (*MappedTable, error) {
	if ref.Hashed {
		return bf.MapTableHash(ref.Hash)
	}
	return bf.MapTable(ref.Name)
}

func (bf *BdatFile) find(name string) (tableEntry, error) {
	for _, t := range bf.tables {
		if !t.hashed && t.name == name {
			return t, nil
		}
	}
	return tableEntry{}, fmt.Errorf("%w: %q", ErrNoSuchTable, name)
}

func (bf *BdatFile) findHash(hash uint32) (tableEntry, error) {
	for _, t := range bf.tables {
		if t.hashed && t.hash == hash {
			return t, nil
		}
	}
	return tableEntry{}, fmt.Errorf("%w: hash 0x%08x", ErrNoSuchTable, hash)
}

// GetTable fully decodes the named table into a Table.
func (bf *BdatFile) GetTable(name string) (*Table, error) {
	t, err := bf.find(name)
	if err != nil {
		return nil, err
	}
	return bf.decodeEntry(t)
}

// GetTableHash fully decodes the table identified by its hash label
// (modern dialect).
func (bf *BdatFile) GetTableHash(hash uint32) (*Table, error) {
	t, err := bf.findHash(hash)
	if err != nil {
		return nil, err
	}
	return bf.decodeEntry(t)
}

func (bf *BdatFile) decodeEntry(t tableEntry) (*Table, error) {
	if bf.dialect == DialectModern {
		return decodeModernTable(bf.data, t.offset, bf.end)
	}
	return decodeLegacyTable(bf.data, t.offset, t.end, t.variant, bf.end, bf.encoding)
}

// MapTable builds a zero-copy accessor over the named table.
func (bf *BdatFile) MapTable(name string) (*MappedTable, error) {
	t, err := bf.find(name)
	if err != nil {
		return nil, err
	}
	return bf.mapEntry(t)
}

// MapTableHash builds a zero-copy accessor over the table identified by
// its hash label (modern dialect).
func (bf *BdatFile) MapTableHash(hash uint32) (*MappedTable, error) {
	t, err := bf.findHash(hash)
	if err != nil {
		return nil, err
	}
	return bf.mapEntry(t)
}

func (bf *BdatFile) mapEntry(t tableEntry) (*MappedTable, error) {
	if bf.dialect == DialectModern {
		return MapModernTable(bf.data, t.offset, bf.end)
	}
	return MapLegacyTable(bf.data, t.offset, t.end, t.variant, bf.end, bf.encoding)
}

// dispatch sniffs data's dialect, variant and endianness, then indexes
// every table it contains without fully decoding any of them.
func dispatch(data []byte, opts *Options) (*BdatFile, error) {
	if len(data) < 5 {
		return nil, fmt.Errorf("%w: buffer smaller than any table header", ErrTruncated)
	}

	helper := opts.helper()
	encoding := LegacyEncoding(0)
	if opts != nil {
		encoding = opts.LegacyEncoding
	}

	if data[fileOffVersion] == modernVersion && bytesEqual(data[0:4], modernMagic[:]) {
		return dispatchModern(data, helper)
	}

	return dispatchLegacy(data, encoding, helper)
}

// dispatchModern indexes a modern file's table list. Endianness is
// resolved by trying both byte orders and keeping whichever makes the
// stored file_size consistent with the buffer's actual length, per
// spec.md §4.7.
func dispatchModern(data []byte, helper *log.Helper) (*BdatFile, error) {
	end, err := sniffModernEndianness(data)
	if err != nil {
		return nil, err
	}

	cur := newCursor(data, end)
	cur.seek(fileOffTableCount)
	tableCount, err := cur.u32()
	if err != nil {
		return nil, err
	}
	cur.seek(fileOffFileSize)
	fileSize, err := cur.u32()
	if err != nil {
		return nil, err
	}
	if fileSize > uint32(len(data)) {
		return nil, fmt.Errorf("%w: modern file_size %d exceeds buffer of %d bytes",
			ErrInvalidFormat, fileSize, len(data))
	}

	entries := make([]tableEntry, tableCount)
	var anomalies []string
	cur.seek(fileOffTableList)
	for i := uint32(0); i < tableCount; i++ {
		offset, err := cur.u32()
		if err != nil {
			return nil, err
		}
		hash, err := modernTableNameHashAt(data, offset, end)
		if err != nil {
			helper.Warnf("table %d: could not resolve name hash: %v", i, err)
			anomalies = append(anomalies, fmt.Sprintf("table %d: unresolvable name hash", i))
		}
		entries[i] = tableEntry{hash: hash, hashed: true, offset: offset}
	}

	return &BdatFile{data: data, dialect: DialectModern, end: end, tables: entries,
		Anomalies: anomalies, logger: helper}, nil
}

// modernTableNameHashAt peeks a modern table's hashed name without
// decoding the rest of it, used while building the file's table index.
func modernTableNameHashAt(data []byte, offset uint32, end Endianness) (uint32, error) {
	h, err := parseModernTableHeader(data, offset, end)
	if err != nil {
		return 0, err
	}
	pool := wrapStringPool(data[offset+h.StringTableOffset:offset+h.StringTableOffset+h.StringTableSize], EncodingUTF8)
	return readModernNameHash(pool, modernNameHashOffset, end)
}

// sniffModernEndianness tries both byte orders for the file header and
// keeps the one whose file_size is plausible against len(data).
func sniffModernEndianness(data []byte) (Endianness, error) {
	for _, end := range []Endianness{LittleEndian, BigEndian} {
		if len(data) < fileHeaderSize {
			continue
		}
		fileSize := end.order().Uint32(data[fileOffFileSize:])
		tableCount := end.order().Uint32(data[fileOffTableCount:])
		if fileSize <= uint32(len(data)) && fileHeaderSize+uint64(tableCount)*4 <= uint64(len(data)) {
			return end, nil
		}
	}
	return 0, fmt.Errorf("%w: could not determine modern file endianness", ErrInvalidFormat)
}

// dispatchLegacy reads the legacy file header (table_count, file_size,
// table_offsets) spec.md §6 defines, then indexes each table it lists.
// Endianness of the file header itself is resolved the same way the
// modern dialect's is (§4.7): try both byte orders and keep whichever
// makes file_size plausible against the buffer and the first table
// offset land on a legacy magic. All tables in one legacy file share a
// single variant/endianness, sniffed once against the first table and
// reused for the rest (3DS is the exception: its reversed magic is
// self-describing per table).
func dispatchLegacy(data []byte, encoding LegacyEncoding, helper *log.Helper) (*BdatFile, error) {
	fileEnd, tableCount, err := sniffLegacyFileEndianness(data)
	if err != nil {
		return nil, err
	}
	if tableCount == 0 {
		return nil, fmt.Errorf("%w: legacy file declares zero tables", ErrInvalidFormat)
	}

	cur := newCursor(data, fileEnd)
	cur.seek(legacyFileOffFileSize)
	fileSize, err := cur.u32()
	if err != nil {
		return nil, err
	}

	cur.seek(legacyFileOffTableList)
	offsets := make([]uint32, tableCount)
	for i := range offsets {
		off, err := cur.u16()
		if err != nil {
			return nil, err
		}
		offsets[i] = uint32(off)
	}

	var variant LegacyVariant
	var end Endianness
	var resolved bool
	entries := make([]tableEntry, len(offsets))
	for i, offset := range offsets {
		tableEnd := fileSize
		if i+1 < len(offsets) {
			tableEnd = offsets[i+1]
		}
		if offset+4 > uint32(len(data)) {
			return nil, fmt.Errorf("%w: table %d offset 0x%x outside buffer", ErrTruncated, i, offset)
		}

		if bytesEqual(data[offset:offset+4], legacyMagicReversed[:]) {
			variant, end = Variant3DS, LittleEndian
		} else if !resolved {
			variant, end, err = sniffLegacyTableVariant(data, offset, tableEnd, encoding)
			if err != nil {
				return nil, err
			}
			resolved = true
		}

		entry, _, err := indexLegacyTable(data, offset, variant, end, tableEnd, encoding)
		if err != nil {
			return nil, err
		}
		entries[i] = entry
	}

	return &BdatFile{data: data, dialect: DialectLegacy, end: end, encoding: encoding,
		tables: entries, logger: helper}, nil
}

// sniffLegacyFileEndianness tries both byte orders for the legacy file
// header and keeps the one whose file_size is plausible against len(data)
// and whose first table offset lands on a recognizable legacy magic,
// mirroring sniffModernEndianness.
func sniffLegacyFileEndianness(data []byte) (Endianness, uint32, error) {
	for _, end := range []Endianness{LittleEndian, BigEndian} {
		if len(data) < legacyFileOffTableList+2 {
			continue
		}
		tableCount := end.order().Uint32(data[legacyFileOffTableCount:])
		fileSize := end.order().Uint32(data[legacyFileOffFileSize:])
		if tableCount == 0 || uint64(legacyFileHeaderSize(int(tableCount))) > uint64(len(data)) {
			continue
		}
		if uint64(fileSize) > uint64(len(data)) {
			continue
		}
		firstOffset := end.order().Uint16(data[legacyFileOffTableList:])
		if uint32(firstOffset)+4 > uint32(len(data)) {
			continue
		}
		magic := data[firstOffset : firstOffset+4]
		if bytesEqual(magic, legacyMagic[:]) || bytesEqual(magic, legacyMagicReversed[:]) {
			return end, tableCount, nil
		}
	}
	return 0, 0, fmt.Errorf("%w: could not determine legacy file endianness", ErrInvalidFormat)
}

// sniffLegacyTableVariant narrows a non-3DS legacy table to its variant
// and endianness by trial decode: Wii and XCX share a 64-byte big-endian
// header and are only distinguishable by their column-node layout (inline
// vs. separate section), and XC2/DE share a 64-byte little-endian header
// with no wire-distinguishable difference at all (DE is reported as XC2,
// matching table.go's documented ambiguity). The first candidate that
// decodes the table without error is kept. XCX is tried before Wii: an
// XCX table read as Wii can decode without error (a name offset whose
// high byte is zero reads as an empty inline name), while a Wii table
// read as XCX takes two bytes of an inline name as a string-pool offset,
// which normally falls outside the pool and fails.
func sniffLegacyTableVariant(data []byte, offset, tableEnd uint32, encoding LegacyEncoding) (LegacyVariant, Endianness, error) {
	candidates := []struct {
		variant LegacyVariant
		end     Endianness
	}{
		{VariantXCX, BigEndian},
		{VariantWii, BigEndian},
		{VariantXC2, LittleEndian},
	}
	for _, c := range candidates {
		if _, err := decodeLegacyTable(data, offset, tableEnd, c.variant, c.end, encoding); err == nil {
			return c.variant, c.end, nil
		}
	}
	return 0, 0, fmt.Errorf("%w: could not disambiguate legacy variant/endianness at 0x%x", ErrUnsupportedDialect, offset)
}

// indexLegacyTable resolves one table's name and end offset without
// decoding its rows. For a scrambled table the name is read from a
// decrypted copy of the string table, which is scrambled independently of
// the name table, so data itself is left untouched.
func indexLegacyTable(data []byte, offset uint32, variant LegacyVariant, end Endianness, tableEnd uint32, encoding LegacyEncoding) (tableEntry, uint32, error) {
	h, err := parseLegacyTableHeader(data, offset, variant, end, tableEnd)
	if err != nil {
		return tableEntry{}, 0, err
	}

	resolvedEnd := offset + h.StringTableOffset + h.StringTableSize

	entry := tableEntry{offset: offset, end: resolvedEnd, variant: variant}

	if offset+h.StringTableOffset+h.StringTableSize > uint32(len(data)) {
		return tableEntry{}, 0, fmt.Errorf("%w: string table at 0x%x truncated", ErrTruncated, offset+h.StringTableOffset)
	}
	strBytes := data[offset+h.StringTableOffset : offset+h.StringTableOffset+h.StringTableSize]
	if h.scrambled() {
		strBytes = append([]byte(nil), strBytes...)
		if err := decryptRange(strBytes, 0, uint32(len(strBytes)), h.ChecksumKey); err != nil {
			return tableEntry{}, 0, err
		}
	}
	pool := wrapStringPool(strBytes, encoding)
	name, err := pool.get(0)
	if err != nil {
		return tableEntry{}, 0, fmt.Errorf("table name: %w", err)
	}
	entry.name = name
	return entry, resolvedEnd, nil
}
