package handlers

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/rls-core/internal/analysis"
	"github.com/standardbeagle/rls-core/internal/buildqueue"
	"github.com/standardbeagle/rls-core/internal/config"
	"github.com/standardbeagle/rls-core/internal/ids"
	"github.com/standardbeagle/rls-core/internal/span"
	"github.com/standardbeagle/rls-core/internal/vfs"
)

// widgetSource is a one-function fixture: `fn widget_new` declared at the
// byte range [3, 13) on line 1 (`fn widget_new() {}`), referenced once on
// line 2 (`widget_new();`).
const widgetSource = "fn widget_new() {}\nwidget_new();\n"

// widgetFile is absolute so span.PathToURI/URIToPath round-trip it exactly
// (a relative path would be resolved against the test binary's cwd).
const widgetFile = "/proj/src/lib.rs"

func widgetCrate() analysis.RawCrateAnalysis {
	return analysis.RawCrateAnalysis{
		PrimaryCrateID: ids.CrateId{Name: "widgets", Disambiguator: 1},
		Defs: []analysis.RawDef{
			{ID: 0, Kind: analysis.DefKindModule, Span: analysis.RawSpan{FilePath: widgetFile}},
			{ID: 1, Kind: analysis.DefKindFunction, Name: "widget_new", Qualname: "widgets::widget_new", Span: analysis.RawSpan{
				FilePath: widgetFile, ByteStart: 3, ByteEnd: 13, LineStart: 1, ColStart: 4, LineEnd: 1, ColEnd: 14,
			}},
		},
		Refs: []analysis.RawRef{
			{Span: analysis.RawSpan{FilePath: widgetFile, ByteStart: 19, ByteEnd: 29, LineStart: 2, ColStart: 1, ColEnd: 11}, RefCrate: 0, RefID: 1},
		},
	}
}

type fakeRunner struct {
	mu    sync.Mutex
	calls []buildqueue.Priority
}

func (f *fakeRunner) RunBuild(dir string, priority buildqueue.Priority) (*buildqueue.Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, priority)
	f.mu.Unlock()
	return &buildqueue.Result{Dir: dir}, nil
}

func newTestServer(t *testing.T) (*Server, *vfs.VFS[FileData]) {
	t.Helper()
	a := analysis.New()
	require.NoError(t, analysis.LowerInto(a, widgetCrate()))

	v := vfs.New[FileData]("")
	require.NoError(t, v.OnChanges([]vfs.Change{{AddFile: &vfs.AddFile{Path: widgetFile, Text: widgetSource}}}))

	q := buildqueue.New(&fakeRunner{}, time.Millisecond)
	cfg := config.Default()
	s := New(a, v, q, nil, cfg)
	s.SetRoot("/proj")
	return s, v
}

func posAt(line, char uint32) span.Position { return span.Position{Line: line, Character: char} }

func TestHoverReturnsAnalysisDefinition(t *testing.T) {
	s, _ := newTestServer(t)
	params := TextDocumentPositionParams{
		TextDocument: TextDocumentIdentifier{URI: span.PathToURI(widgetFile)},
		Position:     posAt(1, 2), // inside "widget_new();" on line 2
	}
	raw, err := json.Marshal(params)
	require.NoError(t, err)

	result, err := s.Hover(context.Background(), raw)
	require.NoError(t, err)
	hover, ok := result.(Hover)
	require.True(t, ok)
	require.Contains(t, hover.Contents, "widget_new")
}

func TestDefinitionResolvesToDeclaration(t *testing.T) {
	s, _ := newTestServer(t)
	params := TextDocumentPositionParams{
		TextDocument: TextDocumentIdentifier{URI: span.PathToURI(widgetFile)},
		Position:     posAt(1, 2),
	}
	raw, err := json.Marshal(params)
	require.NoError(t, err)

	result, err := s.Definition(context.Background(), raw)
	require.NoError(t, err)
	locs, ok := result.([]span.Location)
	require.True(t, ok)
	require.Len(t, locs, 1)
	require.Equal(t, uint32(0), locs[0].Range.Start.Line, "declaration is on line 1 (zero-indexed line 0)")
}

func TestReferencesFindsCallSite(t *testing.T) {
	s, _ := newTestServer(t)
	params := ReferenceParams{
		TextDocumentPositionParams: TextDocumentPositionParams{
			TextDocument: TextDocumentIdentifier{URI: span.PathToURI(widgetFile)},
			Position:     posAt(0, 5), // inside "widget_new" in the fn declaration
		},
		Context: ReferenceContext{IncludeDeclaration: false},
	}
	raw, err := json.Marshal(params)
	require.NoError(t, err)

	result, err := s.References(context.Background(), raw)
	require.NoError(t, err)
	locs, ok := result.([]span.Location)
	require.True(t, ok)
	require.Len(t, locs, 1)
	require.Equal(t, uint32(1), locs[0].Range.Start.Line, "the one call site is on line 2 (zero-indexed line 1)")
}

func TestDocumentSymbolListsOnlyRequestedFile(t *testing.T) {
	s, _ := newTestServer(t)
	params := DocumentSymbolParams{TextDocument: TextDocumentIdentifier{URI: span.PathToURI(widgetFile)}}
	raw, err := json.Marshal(params)
	require.NoError(t, err)

	result, err := s.DocumentSymbol(context.Background(), raw)
	require.NoError(t, err)
	syms, ok := result.([]SymbolInformation)
	require.True(t, ok)

	found := false
	for _, sym := range syms {
		require.Equal(t, span.PathToURI(widgetFile), sym.Location.URI)
		if sym.Name == "widget_new" {
			found = true
		}
	}
	require.True(t, found)
}

func TestWorkspaceSymbolFuzzyMatchesName(t *testing.T) {
	s, _ := newTestServer(t)
	params := WorkspaceSymbolParams{Query: "widgt_new"} // one edit away from widget_new
	raw, err := json.Marshal(params)
	require.NoError(t, err)

	result, err := s.WorkspaceSymbol(context.Background(), raw)
	require.NoError(t, err)
	syms, ok := result.([]SymbolInformation)
	require.True(t, ok)
	require.NotEmpty(t, syms)
}

func TestDidChangeUpdatesVFSAndRequestsBuild(t *testing.T) {
	s, v := newTestServer(t)
	runner := &fakeRunner{}
	s.Queue = buildqueue.New(runner, time.Millisecond)

	params := DidChangeTextDocumentParams{
		TextDocument: VersionedTextDocumentIdentifier{TextDocumentIdentifier: TextDocumentIdentifier{URI: span.PathToURI(widgetFile)}},
		ContentChanges: []TextDocumentContentChangeEvent{
			{Text: "fn widget_new() { /* updated */ }\nwidget_new();\n"},
		},
	}
	raw, err := json.Marshal(params)
	require.NoError(t, err)

	_, err = s.DidChange(context.Background(), raw)
	require.NoError(t, err)

	text, err := v.LoadFile(widgetFile)
	require.NoError(t, err)
	require.Contains(t, text, "updated")

	require.Eventually(t, func() bool {
		runner.mu.Lock()
		defer runner.mu.Unlock()
		return len(runner.calls) == 1
	}, time.Second, 5*time.Millisecond)
}

func TestDidChangeWatchedFilesTriggersCargoPriorityBuild(t *testing.T) {
	s, _ := newTestServer(t)
	runner := &fakeRunner{}
	s.Queue = buildqueue.New(runner, time.Millisecond)

	params := DidChangeWatchedFilesParams{Changes: []FileEvent{{URI: span.PathToURI("Cargo.toml"), Type: 2}}}
	raw, err := json.Marshal(params)
	require.NoError(t, err)

	_, err = s.DidChangeWatchedFiles(context.Background(), raw)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		runner.mu.Lock()
		defer runner.mu.Unlock()
		return len(runner.calls) == 1 && runner.calls[0] == buildqueue.Cargo
	}, time.Second, 5*time.Millisecond)
}

func TestInitializeResolvesRootFromURI(t *testing.T) {
	s, _ := newTestServer(t)
	root := "/workspace/widgets"
	raw, err := json.Marshal(map[string]string{"rootUri": span.PathToURI(root)})
	require.NoError(t, err)

	_, err = s.Initialize(context.Background(), raw)
	require.NoError(t, err)
	require.Equal(t, root, s.Root())
}

func TestExecuteCommandRlsRunForcesImmediateBuild(t *testing.T) {
	s, _ := newTestServer(t)
	runner := &fakeRunner{}
	s.Queue = buildqueue.New(runner, time.Millisecond)

	raw, err := json.Marshal(ExecuteCommandParams{Command: "rls.run"})
	require.NoError(t, err)
	_, err = s.ExecuteCommand(context.Background(), raw)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		runner.mu.Lock()
		defer runner.mu.Unlock()
		return len(runner.calls) == 1 && runner.calls[0] == buildqueue.Immediate
	}, time.Second, 5*time.Millisecond)
}
