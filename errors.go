// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package bdat

import "errors"

// Error kinds returned by the codec. Every decode error returned by this
// package wraps one of these with the byte offset and section being
// parsed; encode errors are returned before any byte of output is
// committed by the caller.
var (
	// ErrTruncated is returned when a read runs past the end of the buffer.
	ErrTruncated = errors.New("bdat: truncated")

	// ErrInvalidFormat is returned for a bad magic, unknown type tag, or an
	// impossible offset.
	ErrInvalidFormat = errors.New("bdat: invalid format")

	// ErrUnsupportedDialect is returned when the version byte is not 4 and
	// the header layout does not match any known legacy variant.
	ErrUnsupportedDialect = errors.New("bdat: unsupported dialect")

	// ErrSchemaViolation is returned for an inconsistent column/row
	// invariant, such as a flag column whose parent is missing or is not
	// an integer column.
	ErrSchemaViolation = errors.New("bdat: schema violation")

	// ErrNoSuchTable is returned when a table name is not present in the file.
	ErrNoSuchTable = errors.New("bdat: no such table")

	// ErrNoSuchRow is returned for a row id outside [base_id, base_id+row_count).
	ErrNoSuchRow = errors.New("bdat: no such row")

	// ErrNoSuchColumn is returned when a column name or index does not exist.
	ErrNoSuchColumn = errors.New("bdat: no such column")

	// ErrTypeMismatch is returned when the caller requests the wrong value
	// type from a cell.
	ErrTypeMismatch = errors.New("bdat: type mismatch")

	// ErrWouldRequireCopy is returned when mapped access is attempted on a
	// still-scrambled buffer; the caller must decrypt into a writable copy
	// first.
	ErrWouldRequireCopy = errors.New("bdat: mapped access would require a copy")

	// ErrWriteOverflow is returned when the emitter computes a section
	// size exceeding the dialect's addressing limits (legacy u16 offsets).
	ErrWriteOverflow = errors.New("bdat: write overflow")
)
