package handlers

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/standardbeagle/rls-core/internal/lsp"
	"github.com/standardbeagle/rls-core/internal/span"
)

// Deglob handles `rustWorkspace/deglob`: given a `use foo::*;` glob's
// location, replaces the `*` with the explicit names it expanded to
// (braced when there's more than one). Params is a plain LSP Location --
// the client passes either the `*` character's own zero-width cursor
// position (Start == End) or its exact range.
//
// The original RLS sends a separate outgoing workspace/applyEdit request
// and acks the deglob request itself; this returns the WorkspaceEdit
// directly as the response instead, the same shape Rename already
// returns, since nothing else in this engine has a mechanism to issue
// requests back to the client.
func (s *Server) Deglob(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	var loc span.Location
	if err := lsp.ParseParams(raw, &loc); err != nil {
		return nil, err
	}
	path, err := toPath(loc.URI)
	if err != nil {
		return WorkspaceEdit{Changes: map[string][]TextEdit{}}, nil
	}
	text, err := s.VFS.LoadFile(path)
	if err != nil {
		return WorkspaceEdit{Changes: map[string][]TextEdit{}}, nil
	}

	byteRange, ok := globStarRange([]byte(text), path, loc.Range)
	if !ok {
		return WorkspaceEdit{Changes: map[string][]TextEdit{}}, nil
	}
	glob, ok := s.Analysis.GlobAt(span.Span{FilePath: path, Range: byteRange})
	if !ok {
		return WorkspaceEdit{Changes: map[string][]TextEdit{}}, nil
	}

	editLoc, err := byteRangeToLocation(path, []byte(text), byteRange)
	if err != nil {
		return WorkspaceEdit{Changes: map[string][]TextEdit{}}, nil
	}

	return WorkspaceEdit{Changes: map[string][]TextEdit{
		span.PathToURI(path): {{Range: editLoc.Range, NewText: deglobExpansionText(glob.ExpansionText)}},
	}}, nil
}

// deglobExpansionText wraps a multi-name glob expansion in braces
// ("{Foo, Bar}"), matching the original's rule: a comma in the expansion
// means more than one name came through the glob.
func deglobExpansionText(expansion string) string {
	if strings.Contains(expansion, ",") {
		return "{" + expansion + "}"
	}
	return expansion
}

// globStarRange resolves r to the byte range of the single `*` character
// it identifies. A zero-width r (Start == End, the common case: the
// client sends the cursor position, not a selection) scans that line for
// exactly one `*`, failing if there's none or more than one; otherwise r
// is trusted to already span the `*` and is converted directly.
func globStarRange(text []byte, path string, r span.Range) (span.ByteRange, bool) {
	li := span.NewLineIndex(path, text)
	if r.Start != r.End {
		start, err := li.Utf16ColToBytePos(span.Row{Zero: r.Start.Line}, r.Start.Character)
		if err != nil {
			return span.ByteRange{}, false
		}
		end, err := li.Utf16ColToBytePos(span.Row{Zero: r.End.Line}, r.End.Character)
		if err != nil {
			return span.ByteRange{}, false
		}
		return span.ByteRange{Start: start, End: end}, true
	}

	row := span.Row{Zero: r.Start.Line}
	line, ok := lineBytes(li, row)
	if !ok {
		return span.ByteRange{}, false
	}
	col := -1
	for i, b := range line {
		if b == '*' {
			if col != -1 {
				return span.ByteRange{}, false // ambiguous: more than one `*` on the line
			}
			col = i
		}
	}
	if col == -1 {
		return span.ByteRange{}, false
	}
	start, err := li.RowColToBytePos(row, span.Column{Zero: uint32(col)})
	if err != nil {
		return span.ByteRange{}, false
	}
	return span.ByteRange{Start: start, End: start.Inc()}, true
}

// lineBytes returns row's raw bytes (including its trailing newline, if
// any) using LineIndex's exported Offsets/Text fields -- the index's own
// lineBytes helper isn't exported outside internal/span.
func lineBytes(li *span.LineIndex, row span.Row) ([]byte, bool) {
	idx := int(row.Zero)
	if idx < 0 || idx+1 >= len(li.Offsets) {
		return nil, false
	}
	return li.Text[li.Offsets[idx]:li.Offsets[idx+1]], true
}
