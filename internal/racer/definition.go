package racer

import (
	"github.com/standardbeagle/rls-core/internal/span"
)

// definition runs the raw (unguarded) definition pass: parse, find the
// identifier touching (row, col), return the first top-level item with a
// matching name.
func definition(text []byte, path string, row, col uint32) (*span.Location, bool, error) {
	parser, err := newRustParser()
	if err != nil {
		return nil, false, err
	}
	defer parser.Close()

	tree := parser.Parse(text, nil)
	if tree == nil {
		return nil, false, errParseFailed
	}
	defer tree.Close()

	offset := offsetAt(text, row, col)
	name := identifierAt(text, offset)
	if name == "" {
		return nil, false, nil
	}

	items := collectItems(tree.RootNode(), text)
	for _, it := range items {
		if it.Name != name {
			continue
		}
		li := span.NewLineIndex(path, text)
		startRow, startCol, err := li.BytePosToRowCol(span.BytePos(it.ByteStart))
		if err != nil {
			continue
		}
		endRow, endCol, err := li.BytePosToRowCol(span.BytePos(it.ByteStart) + span.BytePos(len(it.Name)))
		if err != nil {
			continue
		}
		rc := span.RowColSpan{
			FilePath: path,
			Rows:     span.RowRange{Start: startRow, End: endRow},
			Cols:     span.ColRange{Start: startCol, End: endCol},
		}
		loc := span.ToLocation(rc)
		return &loc, true, nil
	}
	return nil, false, nil
}
