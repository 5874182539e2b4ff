package handlers

import (
	"context"
	"encoding/json"
	"os/exec"
	"strings"

	"github.com/standardbeagle/rls-core/internal/build"
	"github.com/standardbeagle/rls-core/internal/buildqueue"
	"github.com/standardbeagle/rls-core/internal/lsp"
	"github.com/standardbeagle/rls-core/internal/rlslog"
	"github.com/standardbeagle/rls-core/internal/span"
	"github.com/standardbeagle/rls-core/internal/vfs"
)

func (s *Server) suggestionsFor(file string) []build.Suggestion {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.suggestions[file]
}

// ReplaceSuggestions swaps in a whole build's suggestions at once: any file
// that held suggestions before but has none in byFile is cleared, matching
// diagnostics' "files no longer reported are cleared" rule.
func (s *Server) ReplaceSuggestions(byFile map[string][]build.Suggestion) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.suggestions == nil {
		s.suggestions = make(map[string][]build.Suggestion)
	}
	for f := range s.suggestions {
		if _, ok := byFile[f]; !ok {
			delete(s.suggestions, f)
		}
	}
	for f, sugg := range byFile {
		if len(sugg) == 0 {
			delete(s.suggestions, f)
			continue
		}
		s.suggestions[f] = sugg
	}
}

// Rename handles `textDocument/rename`: every reference plus the
// declaration gets replaced with newName, grouped into one WorkspaceEdit
// per file.
func (s *Server) Rename(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	var params RenameParams
	if err := lsp.ParseParams(raw, &params); err != nil {
		return nil, err
	}
	path, text, err := s.loadText(params.TextDocument.URI)
	if err != nil {
		return WorkspaceEdit{Changes: map[string][]TextEdit{}}, nil
	}
	ident, ok := identAt(s.Analysis, path, []byte(text), params.Position)
	if !ok {
		return WorkspaceEdit{Changes: map[string][]TextEdit{}}, nil
	}
	spans := refsForIdent(s.Analysis, path, ident, true, true)
	if spans == nil {
		// forceUnique rejected the rename (ambiguous or aliased): surface
		// this as "nothing to do", not an error.
		return WorkspaceEdit{Changes: map[string][]TextEdit{}}, nil
	}

	changes := make(map[string][]TextEdit)
	cache := map[string][]byte{path: []byte(text)}
	for _, sp := range spans {
		fileText, ok := cache[sp.FilePath]
		if !ok {
			loaded, err := s.VFS.LoadFile(sp.FilePath)
			if err != nil {
				continue
			}
			fileText = []byte(loaded)
			cache[sp.FilePath] = fileText
		}
		loc, err := byteRangeToLocation(sp.FilePath, fileText, sp.Range)
		if err != nil {
			continue
		}
		uri := span.PathToURI(sp.FilePath)
		changes[uri] = append(changes[uri], TextEdit{Range: loc.Range, NewText: params.NewName})
	}
	return WorkspaceEdit{Changes: changes}, nil
}

// CodeAction handles `textDocument/codeAction`: surfaces the build's
// suggested replacements overlapping the requested range as
// rls.applySuggestion commands.
func (s *Server) CodeAction(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	var params CodeActionParams
	if err := lsp.ParseParams(raw, &params); err != nil {
		return nil, err
	}
	path, err := toPath(params.TextDocument.URI)
	if err != nil {
		return []Command{}, nil
	}

	out := make([]Command, 0)
	for _, sug := range s.suggestionsFor(path) {
		if int(params.Range.Start.Line) > sug.LineEnd-1 || int(params.Range.End.Line) < sug.LineStart-1 {
			continue
		}
		out = append(out, Command{
			Title:   sug.Label,
			Command: "rls.applySuggestion",
			Arguments: []interface{}{map[string]interface{}{
				"uri":       params.TextDocument.URI,
				"lineStart": sug.LineStart,
				"colStart":  sug.ColStart,
				"lineEnd":   sug.LineEnd,
				"colEnd":    sug.ColEnd,
				"newText":   sug.NewText,
			}},
		})
	}
	return out, nil
}

type applySuggestionArgs struct {
	URI       string `json:"uri"`
	LineStart int    `json:"lineStart"`
	ColStart  int    `json:"colStart"`
	LineEnd   int    `json:"lineEnd"`
	ColEnd    int    `json:"colEnd"`
	NewText   string `json:"newText"`
}

// ExecuteCommand handles `workspace/executeCommand`'s two commands:
// rls.applySuggestion (apply one build-generated fix directly to the VFS)
// and rls.run (force an immediate rebuild).
func (s *Server) ExecuteCommand(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	var params ExecuteCommandParams
	if err := lsp.ParseParams(raw, &params); err != nil {
		return nil, err
	}
	switch params.Command {
	case "rls.applySuggestion":
		if len(params.Arguments) == 0 {
			return nil, nil
		}
		var args applySuggestionArgs
		if err := json.Unmarshal(params.Arguments[0], &args); err != nil {
			return nil, err
		}
		path, err := toPath(args.URI)
		if err != nil {
			return nil, nil
		}
		change := vfs.Change{ReplaceText: &vfs.ReplaceText{
			Path:     path,
			StartRow: uint32(args.LineStart - 1),
			StartCol: uint32(args.ColStart - 1),
			EndRow:   uint32(args.LineEnd - 1),
			EndCol:   uint32(args.ColEnd - 1),
			Text:     args.NewText,
			Encoding: vfs.EncodingScalar,
		}}
		if err := s.VFS.OnChanges([]vfs.Change{change}); err != nil {
			rlslog.LSP("applySuggestion failed: %v", err)
		}
		s.requestBuild(buildqueue.Immediate)
		return nil, nil
	case "rls.run":
		s.requestBuild(buildqueue.Immediate)
		return nil, nil
	default:
		return nil, nil
	}
}

// Formatting handles `textDocument/formatting` by shelling out to rustfmt
// (or cfg.RustfmtPath) over the document's current text and returning a
// single whole-file TextEdit. Rustfmt's own configuration is explicitly out
// of scope here; this only invokes the binary.
func (s *Server) Formatting(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	var params struct {
		TextDocument TextDocumentIdentifier `json:"textDocument"`
	}
	if err := lsp.ParseParams(raw, &params); err != nil {
		return nil, err
	}
	path, text, err := s.loadText(params.TextDocument.URI)
	if err != nil {
		return []TextEdit{}, nil
	}
	formatted, err := s.runRustfmt(ctx, text)
	if err != nil {
		rlslog.LSP("rustfmt failed: %v", err)
		return []TextEdit{}, nil
	}
	li := span.NewLineIndex(path, []byte(text))
	endRow := uint32(li.NumLines())
	return []TextEdit{{
		Range:   span.Range{Start: span.Position{}, End: span.Position{Line: endRow}},
		NewText: formatted,
	}}, nil
}

// RangeFormatting handles `textDocument/rangeFormatting` the same way,
// since rustfmt has no stable range-only mode; it formats the whole file
// and returns the edit anchored at the full document, leaving the client
// to diff against the requested range.
func (s *Server) RangeFormatting(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	return s.Formatting(ctx, raw)
}

func (s *Server) runRustfmt(ctx context.Context, text string) (string, error) {
	bin := "rustfmt"
	if cfg := s.Config(); cfg != nil && cfg.RustfmtPath != "" {
		bin = cfg.RustfmtPath
	}
	cmd := exec.CommandContext(ctx, bin)
	cmd.Stdin = strings.NewReader(text)
	out, err := cmd.Output()
	if err != nil {
		return "", err
	}
	return string(out), nil
}
