package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/standardbeagle/rls-core/internal/analysis"
	"github.com/standardbeagle/rls-core/internal/lsp"
	"github.com/standardbeagle/rls-core/internal/span"
)

// Query handlers never return a protocol error for a miss: a failed
// lookup surfaces as an empty/absent result, since editors treat
// "no definition" as routine rather than exceptional.

func (s *Server) loadText(uri string) (string, string, error) {
	path, err := toPath(uri)
	if err != nil {
		return "", "", err
	}
	text, err := s.VFS.LoadFile(path)
	if err != nil {
		return "", "", err
	}
	return path, text, nil
}

// Hover handles `textDocument/hover`. Falls back to racer's declaration-line
// summary when the analysis index has no ident there, which
// happens whenever the build hasn't produced save-analysis data yet.
func (s *Server) Hover(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	var params TextDocumentPositionParams
	if err := lsp.ParseParams(raw, &params); err != nil {
		return nil, err
	}
	path, text, err := s.loadText(params.TextDocument.URI)
	if err != nil {
		return nil, nil
	}

	if ident, ok := identAt(s.Analysis, path, []byte(text), params.Position); ok {
		var contents string
		s.Analysis.WithDefs(ident.ID, func(d *analysis.Def) {
			contents = hoverText(d)
		})
		if contents != "" {
			return Hover{Contents: contents}, nil
		}
	}

	if s.Racer != nil {
		_, col, cerr := scalarColAt([]byte(text), params.Position)
		if cerr == nil {
			if text, found := s.Racer.Hover(path, params.Position.Line, col); found {
				return Hover{Contents: text}, nil
			}
		}
	}
	return nil, nil
}

func hoverText(d *analysis.Def) string {
	var b strings.Builder
	if d.Value != "" {
		b.WriteString(d.Value)
	} else {
		fmt.Fprintf(&b, "%s %s", d.Kind, d.Name)
	}
	if d.Docs != "" {
		b.WriteString("\n\n")
		b.WriteString(d.Docs)
	}
	return b.String()
}

// Definition handles `textDocument/definition`, falling back to racer's
// tree-sitter-level declaration search when the index has nothing
// recorded for the span.
func (s *Server) Definition(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	var params TextDocumentPositionParams
	if err := lsp.ParseParams(raw, &params); err != nil {
		return nil, err
	}
	path, text, err := s.loadText(params.TextDocument.URI)
	if err != nil {
		return nil, nil
	}

	if ident, ok := identAt(s.Analysis, path, []byte(text), params.Position); ok {
		var loc span.Location
		var found bool
		s.Analysis.WithDefs(ident.ID, func(d *analysis.Def) {
			declText := []byte(text)
			if d.Span.FilePath != path {
				if loaded, err := s.VFS.LoadFile(d.Span.FilePath); err == nil {
					declText = []byte(loaded)
				}
			}
			if l, err := byteRangeToLocation(d.Span.FilePath, declText, d.Span.Range); err == nil {
				loc = l
				found = true
			}
		})
		if found {
			return []span.Location{loc}, nil
		}
	}

	if s.Racer != nil {
		_, col, cerr := scalarColAt([]byte(text), params.Position)
		if cerr == nil {
			if loc, found := s.Racer.Definition(path, params.Position.Line, col); found {
				return []span.Location{*loc}, nil
			}
		}
	}
	return []span.Location{}, nil
}

// References handles `textDocument/references`.
func (s *Server) References(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	var params ReferenceParams
	if err := lsp.ParseParams(raw, &params); err != nil {
		return nil, err
	}
	path, text, err := s.loadText(params.TextDocument.URI)
	if err != nil {
		return []span.Location{}, nil
	}
	ident, ok := identAt(s.Analysis, path, []byte(text), params.Position)
	if !ok {
		return []span.Location{}, nil
	}
	spans := refsForIdent(s.Analysis, path, ident, params.Context.IncludeDeclaration, false)
	return s.spansToLocations(spans), nil
}

// DocumentHighlight reuses FindAllRefs scoped to the current file, since
// "highlight occurrences" is references-without-cross-file-decoration.
func (s *Server) DocumentHighlight(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	var params TextDocumentPositionParams
	if err := lsp.ParseParams(raw, &params); err != nil {
		return nil, err
	}
	path, text, err := s.loadText(params.TextDocument.URI)
	if err != nil {
		return []span.Location{}, nil
	}
	ident, ok := identAt(s.Analysis, path, []byte(text), params.Position)
	if !ok {
		return []span.Location{}, nil
	}
	spans := refsForIdent(s.Analysis, path, ident, true, false)
	var out []span.Location
	for _, sp := range spans {
		if sp.FilePath != path {
			continue
		}
		if loc, err := byteRangeToLocation(path, []byte(text), sp.Range); err == nil {
			out = append(out, loc)
		}
	}
	if out == nil {
		out = []span.Location{}
	}
	return out, nil
}

func (s *Server) spansToLocations(spans []span.Span) []span.Location {
	out := make([]span.Location, 0, len(spans))
	cache := make(map[string][]byte)
	for _, sp := range spans {
		text, ok := cache[sp.FilePath]
		if !ok {
			loaded, err := s.VFS.LoadFile(sp.FilePath)
			if err != nil {
				continue
			}
			text = []byte(loaded)
			cache[sp.FilePath] = text
		}
		if loc, err := byteRangeToLocation(sp.FilePath, text, sp.Range); err == nil {
			out = append(out, loc)
		}
	}
	return out
}

func symbolKind(k analysis.DefKind) int {
	// LSP's SymbolKind enum, the subset DefKind maps onto.
	switch k {
	case analysis.DefKindModule:
		return 2 // Module
	case analysis.DefKindStruct:
		return 23 // Struct
	case analysis.DefKindEnum:
		return 10 // Enum
	case analysis.DefKindTrait:
		return 11 // Interface
	case analysis.DefKindFunction:
		return 12 // Function
	case analysis.DefKindMethod:
		return 6 // Method
	case analysis.DefKindField:
		return 8 // Field
	case analysis.DefKindStatic, analysis.DefKindConst:
		return 14 // Constant
	case analysis.DefKindTupleVariant:
		return 22 // EnumMember
	default:
		return 13 // Variable
	}
}

// DocumentSymbol handles `textDocument/documentSymbol`: every def whose
// span's file matches the requested document.
func (s *Server) DocumentSymbol(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	var params DocumentSymbolParams
	if err := lsp.ParseParams(raw, &params); err != nil {
		return nil, err
	}
	path, err := toPath(params.TextDocument.URI)
	if err != nil {
		return []SymbolInformation{}, nil
	}
	loaded, err := s.VFS.LoadFile(path)
	if err != nil {
		return []SymbolInformation{}, nil
	}
	text := []byte(loaded)
	defs := s.Analysis.QueryDefs(analysis.Query{Kind: analysis.QuerySubstring, Text: ""})
	out := make([]SymbolInformation, 0)
	for _, d := range defs {
		if d.Span.FilePath != path {
			continue
		}
		loc, err := byteRangeToLocation(path, text, d.Span.Range)
		if err != nil {
			continue
		}
		out = append(out, SymbolInformation{Name: d.Name, Kind: symbolKind(d.Kind), Location: loc})
	}
	return out, nil
}

// WorkspaceSymbol handles `workspace/symbol`: a fuzzy name search across
// the whole index (query_defs with QueryFuzzy).
func (s *Server) WorkspaceSymbol(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	var params WorkspaceSymbolParams
	if err := lsp.ParseParams(raw, &params); err != nil {
		return nil, err
	}
	kind := analysis.QueryFuzzy
	if params.Query == "" {
		kind = analysis.QuerySubstring
	}
	defs := s.Analysis.QueryDefs(analysis.Query{Kind: kind, Text: params.Query})
	out := make([]SymbolInformation, 0, len(defs))
	cache := make(map[string][]byte)
	for _, d := range defs {
		text, ok := cache[d.Span.FilePath]
		if !ok {
			loaded, err := s.VFS.LoadFile(d.Span.FilePath)
			if err != nil {
				continue
			}
			text = []byte(loaded)
			cache[d.Span.FilePath] = text
		}
		loc, err := byteRangeToLocation(d.Span.FilePath, text, d.Span.Range)
		if err != nil {
			continue
		}
		out = append(out, SymbolInformation{Name: d.Name, Kind: symbolKind(d.Kind), Location: loc})
	}
	return out, nil
}

// Implementations handles `rustDocument/implementations`: every impl span
// recorded against the def at the cursor.
func (s *Server) Implementations(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	var params TextDocumentPositionParams
	if err := lsp.ParseParams(raw, &params); err != nil {
		return nil, err
	}
	path, text, err := s.loadText(params.TextDocument.URI)
	if err != nil {
		return []span.Location{}, nil
	}
	ident, ok := identAt(s.Analysis, path, []byte(text), params.Position)
	if !ok {
		return []span.Location{}, nil
	}
	// FindImpls is keyed by def id directly, so ident.ID (always the
	// resolved target, def or ref alike) is the right key with no
	// DefIDForSpan indirection needed.
	spans := s.Analysis.FindImpls(ident.ID)
	return s.spansToLocations(spans), nil
}

// Completion handles `textDocument/completion`: name-index prefix matches,
// falling back to racer's source-level completions when the name index
// has no match at the cursor.
func (s *Server) Completion(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	var params TextDocumentPositionParams
	if err := lsp.ParseParams(raw, &params); err != nil {
		return nil, err
	}
	path, text, err := s.loadText(params.TextDocument.URI)
	if err != nil {
		return CompletionList{Items: []CompletionItemLSP{}}, nil
	}

	_, col, cerr := scalarColAt([]byte(text), params.Position)
	if cerr != nil {
		return CompletionList{Items: []CompletionItemLSP{}}, nil
	}
	prefix := prefixAt([]byte(text), params.Position.Line, col)

	items := make([]CompletionItemLSP, 0)
	if prefix != "" {
		defs := s.Analysis.QueryDefs(analysis.Query{Kind: analysis.QueryPrefix, Text: prefix})
		for _, d := range defs {
			items = append(items, CompletionItemLSP{Label: d.Name, Kind: symbolKind(d.Kind), Detail: d.Value, Documentation: d.Docs})
		}
	}

	if s.Racer != nil && len(items) == 0 {
		for _, it := range s.Racer.Complete(path, params.Position.Line, col) {
			items = append(items, CompletionItemLSP{Label: it.Label, Detail: it.Detail, InsertText: it.InsertText, Documentation: it.Docs})
		}
	}
	return CompletionList{Items: items}, nil
}

// prefixAt scans backward from (row, scalarCol) for the identifier prefix
// being typed, the same rule racer's completion uses but over VFS text
// rather than tree-sitter's byte buffer.
func prefixAt(text []byte, row, scalarCol uint32) string {
	li := span.NewLineIndex("", text)
	bp, err := li.ScalarColToBytePos(span.Row{Zero: row}, scalarCol)
	if err != nil {
		return ""
	}
	start := uint32(bp)
	for start > 0 {
		b := text[start-1]
		if (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9') || b == '_' {
			start--
			continue
		}
		break
	}
	return string(text[start:bp])
}

// CompletionResolve handles `completionItem/resolve`: the items this
// engine returns are already fully populated, so resolve is an identity
// pass-through.
func (s *Server) CompletionResolve(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	var item CompletionItemLSP
	if err := lsp.ParseParams(raw, &item); err != nil {
		return nil, err
	}
	return item, nil
}
