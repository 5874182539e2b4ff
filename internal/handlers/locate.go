package handlers

import (
	"github.com/standardbeagle/rls-core/internal/analysis"
	"github.com/standardbeagle/rls-core/internal/span"
)

// toPath resolves a TextDocumentIdentifier's URI to a filesystem path, the
// way every handler needs to before touching the VFS or the analysis index.
func toPath(uri string) (string, error) {
	return span.URIToPath(uri)
}

// scalarColAt converts an LSP Position (UTF-16 columns, per the wire
// protocol) into the Unicode-scalar column the analysis index and racer
// fallback are addressed in, round-tripping through the file's LineIndex.
func scalarColAt(text []byte, pos span.Position) (row, col uint32, err error) {
	li := span.NewLineIndex("", text)
	r := span.Row{Zero: pos.Line}
	bp, err := li.Utf16ColToBytePos(r, pos.Character)
	if err != nil {
		return 0, 0, err
	}
	scalar, err := li.BytePosToScalarCol(r, bp)
	if err != nil {
		return 0, 0, err
	}
	return pos.Line, scalar, nil
}

// identAt resolves the single narrowest Ident overlapping pos, the
// zero-width-cursor overlap query every query handler starts from
// (the analysis index's idents() query).
func identAt(a *analysis.Analysis, path string, text []byte, pos span.Position) (analysis.Ident, bool) {
	_, col, err := scalarColAt(text, pos)
	if err != nil {
		return analysis.Ident{}, false
	}
	row := span.Row{Zero: pos.Line}
	query := span.RowColSpan{
		FilePath: path,
		Rows:     span.RowRange{Start: row, End: row},
		Cols:     span.ColRange{Start: span.Column{Zero: col}, End: span.Column{Zero: col}},
	}
	hits := a.Idents(path, query)
	if len(hits) == 0 {
		return analysis.Ident{}, false
	}
	// Prefer the narrowest match so nested idents (e.g. a method call whose
	// receiver and method name overlap at the dot) resolve to the innermost.
	best := hits[0]
	for _, h := range hits[1:] {
		if h.Span.Len() < best.Span.Len() {
			best = h
		}
	}
	return best, true
}

// byteRangeToLocation converts a span.Span into an LSP Location using path's
// current VFS text to build a LineIndex.
func byteRangeToLocation(path string, text []byte, r span.ByteRange) (span.Location, error) {
	li := span.NewLineIndex(path, text)
	rc, err := li.ToRowColSpan(span.Span{FilePath: path, Range: r})
	if err != nil {
		return span.Location{}, err
	}
	return span.ToLocation(rc), nil
}

// refsForIdent answers "every reference to whatever ident resolves to",
// a find_all_refs call, starting from an already-located Ident
// instead of a raw span. def_id_for_span is only ever populated from
// recorded ref spans (never a def's own span: "id ∈
// def_id_for_span(s) ⇔ s ∈ ref_spans[d]"), so FindAllRefs's own span-first
// lookup only works when ident.Span is itself a ref occurrence. When the
// cursor is on the declaration instead, this walks WithRefSpans directly
// using the id the Ident already carries (the declaration span is the
// Ident's own span), keeping FindAllRefs's forceUnique ambiguity check but
// skipping the aliased-import rejection it applies at ref sites (a def's
// own name is never itself an alias occurrence).
func refsForIdent(a *analysis.Analysis, path string, ident analysis.Ident, includeDecl, forceUnique bool) []span.Span {
	if ident.Kind == analysis.IdentRef {
		return a.FindAllRefs(span.Span{FilePath: path, Range: ident.Span}, includeDecl, forceUnique)
	}

	var out []span.Span
	if includeDecl {
		out = append(out, span.Span{FilePath: path, Range: ident.Span})
	}
	var refs []span.Span
	a.WithRefSpans(ident.ID, func(spans []span.Span) { refs = append(refs, spans...) })
	if forceUnique {
		for _, rs := range refs {
			if r, ok := a.DefIDForSpan(rs); ok && r.Kind != analysis.RefSingle {
				return nil
			}
		}
	}
	return append(out, refs...)
}
