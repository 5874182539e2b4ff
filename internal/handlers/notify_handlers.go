package handlers

import (
	"context"
	"encoding/json"

	"github.com/standardbeagle/rls-core/internal/buildqueue"
	"github.com/standardbeagle/rls-core/internal/config"
	"github.com/standardbeagle/rls-core/internal/lsp"
	"github.com/standardbeagle/rls-core/internal/rlslog"
	"github.com/standardbeagle/rls-core/internal/vfs"
)

// DidOpen handles `textDocument/didOpen`: seeds the VFS with the client's
// in-memory copy of the file.
func (s *Server) DidOpen(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	var params DidOpenTextDocumentParams
	if err := lsp.ParseParams(raw, &params); err != nil {
		return nil, err
	}
	path, err := toPath(params.TextDocument.URI)
	if err != nil {
		return nil, nil
	}
	change := vfs.Change{AddFile: &vfs.AddFile{Path: path, Text: params.TextDocument.Text}}
	if err := s.VFS.OnChanges([]vfs.Change{change}); err != nil {
		rlslog.LSP("didOpen: %v", err)
	}
	return nil, nil
}

// DidChange handles `textDocument/didChange`: applies every incremental
// edit to the VFS, then enqueues a debounced Normal-priority build.
func (s *Server) DidChange(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	var params DidChangeTextDocumentParams
	if err := lsp.ParseParams(raw, &params); err != nil {
		return nil, err
	}
	path, err := toPath(params.TextDocument.URI)
	if err != nil {
		return nil, nil
	}

	changes := make([]vfs.Change, 0, len(params.ContentChanges))
	for _, c := range params.ContentChanges {
		if c.Range == nil {
			changes = append(changes, vfs.Change{AddFile: &vfs.AddFile{Path: path, Text: c.Text}})
			continue
		}
		changes = append(changes, vfs.Change{ReplaceText: &vfs.ReplaceText{
			Path:     path,
			StartRow: c.Range.Start.Line,
			StartCol: c.Range.Start.Character,
			EndRow:   c.Range.End.Line,
			EndCol:   c.Range.End.Character,
			Text:     c.Text,
			Encoding: vfs.EncodingUTF16,
		}})
	}
	if err := s.VFS.OnChanges(changes); err != nil {
		rlslog.LSP("didChange: %v", err)
	}
	s.requestBuild(buildqueue.Normal)
	return nil, nil
}

// DidSave handles `textDocument/didSave`: marks the file settled in the VFS
// and enqueues a non-debounced Immediate build.
func (s *Server) DidSave(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	var params DidSaveTextDocumentParams
	if err := lsp.ParseParams(raw, &params); err != nil {
		return nil, err
	}
	path, err := toPath(params.TextDocument.URI)
	if err != nil {
		return nil, nil
	}
	if err := s.VFS.FileSaved(path); err != nil {
		rlslog.LSP("didSave: %v", err)
	}
	s.requestBuild(buildqueue.Immediate)
	return nil, nil
}

// fileEventChangeTypeDeleted is the Deleted value of LSP's FileChangeType
// enum (didChangeWatchedFiles).
const fileEventChangeTypeDeleted = 3

// DidChangeWatchedFiles handles `workspace/didChangeWatchedFiles`: any
// Cargo.toml event forces a full Cargo-priority rebuild.
func (s *Server) DidChangeWatchedFiles(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	var params DidChangeWatchedFilesParams
	if err := lsp.ParseParams(raw, &params); err != nil {
		return nil, err
	}
	for _, ev := range params.Changes {
		path, err := toPath(ev.URI)
		if err != nil {
			continue
		}
		if base(path) == "Cargo.toml" {
			if ev.Type != fileEventChangeTypeDeleted {
				s.VFS.FlushFile(path)
			}
			s.requestBuild(buildqueue.Cargo)
			return nil, nil
		}
	}
	return nil, nil
}

func base(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' || path[i] == '\\' {
			return path[i+1:]
		}
	}
	return path
}

// DidChangeConfiguration handles `workspace/didChangeConfiguration`:
// re-validates and re-normalizes the incoming settings and swaps them in,
// then requests a rebuild since most config keys affect the build command.
func (s *Server) DidChangeConfiguration(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	var params DidChangeConfigurationParams
	if err := lsp.ParseParams(raw, &params); err != nil {
		return nil, err
	}
	var incoming config.Config
	if len(params.Settings) > 0 {
		if err := json.Unmarshal(params.Settings, &incoming); err != nil {
			rlslog.LSP("didChangeConfiguration: invalid settings: %v", err)
			return nil, nil
		}
	}
	v := config.NewValidator()
	if err := v.ValidateAndNormalize(&incoming, config.ChannelUnknown); err != nil {
		rlslog.LSP("didChangeConfiguration: %v", err)
		return nil, nil
	}
	s.SetConfig(&incoming)
	s.requestBuild(buildqueue.Cargo)
	return nil, nil
}
