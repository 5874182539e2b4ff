// Package span implements the addressing primitives shared by every other
// package in the engine: byte offsets, byte ranges, zero/one-indexed
// row/column pairs, and the per-file line index that converts between them.
package span

import "fmt"

// BytePos is a nonnegative byte offset into a source file.
type BytePos uint32

// Add returns pos shifted forward by n bytes.
func (pos BytePos) Add(n uint32) BytePos { return pos + BytePos(n) }

// Sub returns pos shifted backward by n bytes. Clamped at zero.
func (pos BytePos) Sub(n uint32) BytePos {
	if uint32(pos) < n {
		return 0
	}
	return pos - BytePos(n)
}

// Inc returns the next byte position.
func (pos BytePos) Inc() BytePos { return pos + 1 }

// ByteRange is a half-open [Start, End) range over BytePos.
type ByteRange struct {
	Start BytePos
	End   BytePos
}

// Contains reports whether pos lies within [Start, End).
func (r ByteRange) Contains(pos BytePos) bool {
	return pos >= r.Start && pos < r.End
}

// Shift returns r translated by offset bytes.
func (r ByteRange) Shift(offset int64) ByteRange {
	shift := func(p BytePos) BytePos {
		v := int64(p) + offset
		if v < 0 {
			return 0
		}
		return BytePos(v)
	}
	return ByteRange{Start: shift(r.Start), End: shift(r.End)}
}

// Overlaps reports whether r and other share at least one byte.
func (r ByteRange) Overlaps(other ByteRange) bool {
	return r.Start < other.End && other.Start < r.End
}

// Len returns the number of bytes spanned.
func (r ByteRange) Len() uint32 {
	if r.End <= r.Start {
		return 0
	}
	return uint32(r.End - r.Start)
}

// Row is a zero-indexed line number. RLS clients speak zero-indexed rows
// over the wire (LSP); save-analysis JSON from the compiler is one-indexed.
// Both are modeled explicitly so a stray off-by-one never compiles silently.
type Row struct{ Zero uint32 }

// RowOneIndexed builds a Row from a one-indexed line number (as emitted by
// the compiler's save-analysis JSON).
func RowOneIndexed(n uint32) Row {
	if n == 0 {
		return Row{Zero: 0}
	}
	return Row{Zero: n - 1}
}

// OneIndexed returns the row as a one-indexed line number.
func (r Row) OneIndexed() uint32 { return r.Zero + 1 }

// Column is a zero-indexed, byte-counted column offset within its line.
type Column struct{ Zero uint32 }

// ColumnOneIndexed builds a Column from a one-indexed compiler column.
func ColumnOneIndexed(n uint32) Column {
	if n == 0 {
		return Column{Zero: 0}
	}
	return Column{Zero: n - 1}
}

func (c Column) OneIndexed() uint32 { return c.Zero + 1 }

// RowRange is an inclusive [Start, End] pair of rows, as used by Span's
// row/column surface (e.g. idents()'s overlap query in spec §4.1).
type RowRange struct {
	Start Row
	End   Row
}

// ColRange is a half-open [Start, End) pair of columns on a single line.
type ColRange struct {
	Start Column
	End   Column
}

// Span identifies a region of source text by file path plus byte range.
// This is the canonical, internal representation; Location (location.go)
// is its LSP-serialized counterpart.
type Span struct {
	FilePath string
	Range    ByteRange
}

func (s Span) String() string {
	return fmt.Sprintf("%s:%d-%d", s.FilePath, s.Range.Start, s.Range.End)
}

// RowColSpan is the row/column surface of a span, used whenever a caller
// only has line-oriented coordinates (e.g. an LSP position). It round-trips
// through a LineIndex (lineindex.go) to/from Span.
type RowColSpan struct {
	FilePath string
	Rows     RowRange
	Cols     ColRange
}
