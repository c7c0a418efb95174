// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package bdat

import "fmt"

// WriteOptions configures WriteFile's encode pass.
type WriteOptions struct {
	Dialect  Dialect
	Variant  LegacyVariant // legacy dialect only
	End      Endianness
	Scramble bool // legacy dialect only: scramble name-table and string sections
	Encoding LegacyEncoding
}

// WriteFile re-emits a byte-exact file from a set of in-memory tables,
// the inverse of dispatch+GetTable. Both dialects get a file header
// preceding the per-table bodies: modern's 16-byte header (magic,
// version, table count, file size, 32-bit table offsets) and legacy's
// (table count, file size, 16-bit table offsets) per spec.md §6.
func WriteFile(tables []*Table, opts WriteOptions) ([]byte, error) {
	if len(tables) == 0 {
		return nil, fmt.Errorf("%w: no tables to write", ErrSchemaViolation)
	}

	if opts.Dialect == DialectModern {
		return writeModernFile(tables, opts.End)
	}
	return writeLegacyFile(tables, opts)
}

func writeLegacyFile(tables []*Table, opts WriteOptions) ([]byte, error) {
	bodies := make([][]byte, len(tables))
	for i, t := range tables {
		buf, err := encodeLegacyTable(t, opts.Variant, opts.End, opts.Scramble, opts.Encoding)
		if err != nil {
			return nil, fmt.Errorf("table %q: %w", t.Name, err)
		}
		bodies[i] = buf
	}

	headerSize := legacyFileHeaderSize(len(tables))
	offsets := make([]uint32, len(tables))
	cursor := headerSize
	for i, body := range bodies {
		if cursor > 0xFFFF {
			return nil, fmt.Errorf("%w: legacy file table offset overflows u16", ErrWriteOverflow)
		}
		offsets[i] = cursor
		cursor += uint32(len(body))
	}

	w := newWriter(opts.End)
	w.buf = make([]byte, headerSize)
	w.putU32At(legacyFileOffTableCount, uint32(len(tables)))
	w.putU32At(legacyFileOffFileSize, cursor)
	for i, off := range offsets {
		w.putU16At(legacyFileOffTableList+uint32(i)*2, uint16(off))
	}

	for _, body := range bodies {
		w.buf = append(w.buf, body...)
	}
	return w.buf, nil
}

func writeModernFile(tables []*Table, end Endianness) ([]byte, error) {
	bodies := make([][]byte, len(tables))
	for i, t := range tables {
		buf, err := encodeModernTable(t, end)
		if err != nil {
			return nil, fmt.Errorf("table %q: %w", t.Name, err)
		}
		bodies[i] = buf
	}

	headerSize := uint32(fileHeaderSize) + uint32(len(tables))*4
	offsets := make([]uint32, len(tables))
	cursor := headerSize
	for i, body := range bodies {
		offsets[i] = cursor
		cursor += uint32(len(body))
	}

	w := newWriter(end)
	w.buf = make([]byte, headerSize)
	copy(w.buf[fileOffMagic:], modernMagic[:])
	w.putU8At(fileOffVersion, modernVersion)
	w.putU32At(fileOffTableCount, uint32(len(tables)))
	w.putU32At(fileOffFileSize, cursor)
	for i, off := range offsets {
		w.putU32At(fileOffTableList+uint32(i)*4, off)
	}

	for _, body := range bodies {
		w.buf = append(w.buf, body...)
	}
	return w.buf, nil
}
