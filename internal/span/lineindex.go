package span

import (
	"fmt"
	"unicode/utf16"
	"unicode/utf8"
)

// BadLocationError reports a row/column that could not be resolved against
// a LineIndex. Two distinct causes are tracked (mirroring the original
// rls-vfs column-conversion code rather than collapsing both into one
// generic message): a column past the end of an otherwise valid line, and
// a UTF-16 code-unit offset that lands in the middle of a multi-byte rune.
type BadLocationError struct {
	Path        string
	Row         Row
	Col         Column
	MidRune     bool
	PastLineEnd bool
}

func (e *BadLocationError) Error() string {
	if e.MidRune {
		return fmt.Sprintf("%s:%d:%d: column lies inside a multi-byte character", e.Path, e.Row.OneIndexed(), e.Col.OneIndexed())
	}
	if e.PastLineEnd {
		return fmt.Sprintf("%s:%d:%d: column past end of line", e.Path, e.Row.OneIndexed(), e.Col.OneIndexed())
	}
	return fmt.Sprintf("%s:%d:%d: bad location", e.Path, e.Row.OneIndexed(), e.Col.OneIndexed())
}

// LineIndex is the per-file line-start index every Span <-> (Row, Column)
// conversion goes through. Offsets are byte offsets of line starts; an
// artificial extra entry one past the end of the text is always appended
// so "row == len(lines)" (the line after the last newline) is addressable.
type LineIndex struct {
	Path    string
	Offsets []BytePos // Offsets[i] = byte offset of the start of row i
	Text    []byte
}

// NewLineIndex builds a LineIndex by scanning text for '\n' bytes.
func NewLineIndex(path string, text []byte) *LineIndex {
	offsets := make([]BytePos, 0, 64)
	offsets = append(offsets, 0)
	for i, b := range text {
		if b == '\n' {
			offsets = append(offsets, BytePos(i+1))
		}
	}
	offsets = append(offsets, BytePos(len(text))) // sentinel: one past EOF
	return &LineIndex{Path: path, Offsets: offsets, Text: text}
}

// NumLines returns the number of addressable rows (excluding the trailing
// sentinel entry).
func (li *LineIndex) NumLines() int {
	if len(li.Offsets) == 0 {
		return 0
	}
	return len(li.Offsets) - 1
}

func (li *LineIndex) lineBytes(row Row) ([]byte, error) {
	idx := int(row.Zero)
	if idx < 0 || idx+1 >= len(li.Offsets) {
		return nil, &BadLocationError{Path: li.Path, Row: row, PastLineEnd: true}
	}
	start := li.Offsets[idx]
	end := li.Offsets[idx+1]
	return li.Text[start:end], nil
}

// BytePosToRowCol converts an absolute byte offset into a (Row, Column)
// pair using the per-file line index. Column is measured in bytes.
func (li *LineIndex) BytePosToRowCol(pos BytePos) (Row, Column, error) {
	if int(pos) > len(li.Text) {
		return Row{}, Column{}, &BadLocationError{Path: li.Path, PastLineEnd: true}
	}
	// Binary search for the last line start <= pos. The trailing sentinel is
	// excluded so pos == len(text) resolves to the last real row.
	lo, hi := 0, len(li.Offsets)-2
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if li.Offsets[mid] <= pos {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	row := Row{Zero: uint32(lo)}
	col := Column{Zero: uint32(pos) - uint32(li.Offsets[lo])}
	return row, col, nil
}

// RowColToBytePos converts a (Row, Column) pair, with Column measured in
// bytes, to an absolute byte offset.
func (li *LineIndex) RowColToBytePos(row Row, col Column) (BytePos, error) {
	line, err := li.lineBytes(row)
	if err != nil {
		return 0, err
	}
	if uint32(len(line)) < col.Zero {
		return 0, &BadLocationError{Path: li.Path, Row: row, Col: col, PastLineEnd: true}
	}
	start := li.Offsets[row.Zero]
	return start.Add(col.Zero), nil
}

// Utf16ColToBytePos converts a UTF-16 code-unit column (as sent by LSP
// clients that chose UTF-16 position encoding) on the given row to a byte
// offset within that line. Fails with BadLocationError{MidRune: true} when
// the requested code-unit offset lands inside a multi-byte UTF-8 rune
// (i.e. does not fall on a UTF-16 code point boundary), and with
// BadLocationError{PastLineEnd: true} when it exceeds the line's length.
func (li *LineIndex) Utf16ColToBytePos(row Row, utf16Col uint32) (BytePos, error) {
	line, err := li.lineBytes(row)
	if err != nil {
		return 0, err
	}
	var byteOff uint32
	var unitsSeen uint32
	for byteOff < uint32(len(line)) {
		if unitsSeen == utf16Col {
			return li.Offsets[row.Zero].Add(byteOff), nil
		}
		r, size := utf8.DecodeRune(line[byteOff:])
		units := uint32(1)
		if utf16.IsSurrogate(r) || r > 0xFFFF {
			units = 2
		}
		if unitsSeen < utf16Col && utf16Col < unitsSeen+units {
			return 0, &BadLocationError{Path: li.Path, Row: row, Col: Column{Zero: utf16Col}, MidRune: true}
		}
		unitsSeen += units
		byteOff += uint32(size)
	}
	if unitsSeen == utf16Col {
		return li.Offsets[row.Zero].Add(byteOff), nil
	}
	return 0, &BadLocationError{Path: li.Path, Row: row, Col: Column{Zero: utf16Col}, PastLineEnd: true}
}

// BytePosToUtf16Col is the inverse of Utf16ColToBytePos: given an absolute
// byte offset known to be on the given row, return its UTF-16 code-unit
// column.
func (li *LineIndex) BytePosToUtf16Col(row Row, pos BytePos) (uint32, error) {
	line, err := li.lineBytes(row)
	if err != nil {
		return 0, err
	}
	start := li.Offsets[row.Zero]
	target := uint32(pos) - uint32(start)
	if target > uint32(len(line)) {
		return 0, &BadLocationError{Path: li.Path, Row: row, PastLineEnd: true}
	}
	var byteOff, units uint32
	for byteOff < target {
		r, size := utf8.DecodeRune(line[byteOff:])
		if utf16.IsSurrogate(r) || r > 0xFFFF {
			units += 2
		} else {
			units++
		}
		byteOff += uint32(size)
	}
	return units, nil
}

// ScalarColToBytePos converts a Unicode scalar-value (code point) column on
// the given row to a byte offset within that line. Unlike the UTF-16
// variant there is no mid-rune case: every byte offset that starts a rune
// is addressable by exactly one scalar column.
func (li *LineIndex) ScalarColToBytePos(row Row, scalarCol uint32) (BytePos, error) {
	line, err := li.lineBytes(row)
	if err != nil {
		return 0, err
	}
	var byteOff, seen uint32
	for byteOff < uint32(len(line)) {
		if seen == scalarCol {
			return li.Offsets[row.Zero].Add(byteOff), nil
		}
		_, size := utf8.DecodeRune(line[byteOff:])
		byteOff += uint32(size)
		seen++
	}
	if seen == scalarCol {
		return li.Offsets[row.Zero].Add(byteOff), nil
	}
	return 0, &BadLocationError{Path: li.Path, Row: row, Col: Column{Zero: scalarCol}, PastLineEnd: true}
}

// BytePosToScalarCol is the inverse of ScalarColToBytePos.
func (li *LineIndex) BytePosToScalarCol(row Row, pos BytePos) (uint32, error) {
	line, err := li.lineBytes(row)
	if err != nil {
		return 0, err
	}
	start := li.Offsets[row.Zero]
	target := uint32(pos) - uint32(start)
	if target > uint32(len(line)) {
		return 0, &BadLocationError{Path: li.Path, Row: row, PastLineEnd: true}
	}
	var byteOff, count uint32
	for byteOff < target {
		_, size := utf8.DecodeRune(line[byteOff:])
		byteOff += uint32(size)
		count++
	}
	return count, nil
}

// ToSpan converts a RowColSpan to a byte-addressed Span using this index.
func (li *LineIndex) ToSpan(rc RowColSpan) (Span, error) {
	start, err := li.RowColToBytePos(rc.Rows.Start, rc.Cols.Start)
	if err != nil {
		return Span{}, err
	}
	end, err := li.RowColToBytePos(rc.Rows.End, rc.Cols.End)
	if err != nil {
		return Span{}, err
	}
	return Span{FilePath: rc.FilePath, Range: ByteRange{Start: start, End: end}}, nil
}

// ToRowColSpan converts a byte-addressed Span to its row/column surface.
func (li *LineIndex) ToRowColSpan(s Span) (RowColSpan, error) {
	startRow, startCol, err := li.BytePosToRowCol(s.Range.Start)
	if err != nil {
		return RowColSpan{}, err
	}
	endRow, endCol, err := li.BytePosToRowCol(s.Range.End)
	if err != nil {
		return RowColSpan{}, err
	}
	return RowColSpan{
		FilePath: s.FilePath,
		Rows:     RowRange{Start: startRow, End: endRow},
		Cols:     ColRange{Start: startCol, End: endCol},
	}, nil
}
