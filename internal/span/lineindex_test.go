package span

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLineIndexRoundTrip(t *testing.T) {
	text := []byte("fn main() {\n    let x = 1;\n}\n")
	li := NewLineIndex("main.rs", text)

	for pos := BytePos(0); int(pos) <= len(text); pos++ {
		row, col, err := li.BytePosToRowCol(pos)
		require.NoError(t, err)
		back, err := li.RowColToBytePos(row, col)
		require.NoError(t, err)
		require.Equal(t, pos, back, "pos %d round trip", pos)
	}
}

func TestUtf16WideChar(t *testing.T) {
	// U+1F622 CRYING FACE: 4 UTF-8 bytes, 2 UTF-16 code units.
	text := []byte("\U0001F622")
	li := NewLineIndex("wide.rs", text)

	start, err := li.Utf16ColToBytePos(Row{Zero: 0}, 0)
	require.NoError(t, err)
	require.Equal(t, BytePos(0), start)

	end, err := li.Utf16ColToBytePos(Row{Zero: 0}, 2)
	require.NoError(t, err)
	require.Equal(t, BytePos(len(text)), end)

	_, err = li.Utf16ColToBytePos(Row{Zero: 0}, 1)
	require.Error(t, err)
	var badLoc *BadLocationError
	require.ErrorAs(t, err, &badLoc)
	require.True(t, badLoc.MidRune)
}

func TestColumnPastLineEnd(t *testing.T) {
	li := NewLineIndex("f.rs", []byte("abc\n"))
	_, err := li.RowColToBytePos(Row{Zero: 0}, Column{Zero: 10})
	require.Error(t, err)
	var badLoc *BadLocationError
	require.ErrorAs(t, err, &badLoc)
	require.True(t, badLoc.PastLineEnd)
}

func TestScalarColWideChar(t *testing.T) {
	// U+1F622 is one scalar value regardless of its UTF-16 width.
	text := []byte("\U0001F622x")
	li := NewLineIndex("wide.rs", text)

	mid, err := li.ScalarColToBytePos(Row{Zero: 0}, 1)
	require.NoError(t, err)
	require.Equal(t, BytePos(4), mid)

	col, err := li.BytePosToScalarCol(Row{Zero: 0}, 4)
	require.NoError(t, err)
	require.Equal(t, uint32(1), col)

	_, err = li.ScalarColToBytePos(Row{Zero: 0}, 99)
	require.Error(t, err)
	var badLoc *BadLocationError
	require.ErrorAs(t, err, &badLoc)
	require.True(t, badLoc.PastLineEnd)
}

func TestByteRangeOps(t *testing.T) {
	r := ByteRange{Start: 10, End: 20}
	require.True(t, r.Contains(10))
	require.True(t, r.Contains(19))
	require.False(t, r.Contains(20))

	shifted := r.Shift(5)
	require.Equal(t, ByteRange{Start: 15, End: 25}, shifted)

	require.True(t, r.Overlaps(ByteRange{Start: 15, End: 25}))
	require.False(t, r.Overlaps(ByteRange{Start: 20, End: 30}))
}
