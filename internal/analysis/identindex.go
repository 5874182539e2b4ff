package analysis

import (
	"sort"

	"github.com/standardbeagle/rls-core/internal/span"
)

// identEntry is one column-indexed entry on a row.
type identEntry struct {
	colStart uint32
	colEnd   uint32
	ident    Ident
}

// identRow holds all idents starting on one line, kept sorted by column start
// so overlap queries can binary-search.
type identRow struct {
	lineNo  uint32
	entries []identEntry // sorted by colStart
}

// IdentIndex is the per-file (row -> col_start -> {col_end, id, kind})
// nested ordered map, supporting an overlap query: scan rows in
// [rowStart, rowEnd], then columns with colStart <= queryColEnd &&
// colEnd >= queryColStart.
type IdentIndex struct {
	rows []identRow // sorted by lineNo
}

// NewIdentIndex creates an empty index.
func NewIdentIndex() *IdentIndex { return &IdentIndex{} }

// Insert adds an ident occurrence. entries within a row stay sorted by
// column start; rows stay sorted by line number.
func (idx *IdentIndex) Insert(lineNo uint32, colStart, colEnd uint32, ident Ident) {
	i := sort.Search(len(idx.rows), func(i int) bool { return idx.rows[i].lineNo >= lineNo })
	if i < len(idx.rows) && idx.rows[i].lineNo == lineNo {
		r := &idx.rows[i]
		j := sort.Search(len(r.entries), func(j int) bool { return r.entries[j].colStart >= colStart })
		entry := identEntry{colStart: colStart, colEnd: colEnd, ident: ident}
		r.entries = append(r.entries, identEntry{})
		copy(r.entries[j+1:], r.entries[j:])
		r.entries[j] = entry
		return
	}
	newRow := identRow{lineNo: lineNo, entries: []identEntry{{colStart: colStart, colEnd: colEnd, ident: ident}}}
	idx.rows = append(idx.rows, identRow{})
	copy(idx.rows[i+1:], idx.rows[i:])
	idx.rows[i] = newRow
}

// Overlapping returns every Ident whose column range overlaps
// [query.Cols.Start, query.Cols.End] on any row in
// [query.Rows.Start, query.Rows.End]. Both column bounds are inclusive on
// both sides, so a zero-width query touching either end of an ident
// matches it.
func (idx *IdentIndex) Overlapping(query span.RowColSpan) []Ident {
	var out []Ident
	startLine := query.Rows.Start.Zero
	endLine := query.Rows.End.Zero
	lo := sort.Search(len(idx.rows), func(i int) bool { return idx.rows[i].lineNo >= startLine })
	for i := lo; i < len(idx.rows) && idx.rows[i].lineNo <= endLine; i++ {
		for _, e := range idx.rows[i].entries {
			if e.colStart <= query.Cols.End.Zero && e.colEnd >= query.Cols.Start.Zero {
				out = append(out, e.ident)
			}
		}
	}
	return out
}
