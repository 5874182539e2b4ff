package handlers

import (
	"context"
	"encoding/json"

	"github.com/standardbeagle/rls-core/internal/buildqueue"
	"github.com/standardbeagle/rls-core/internal/lsp"
	"github.com/standardbeagle/rls-core/internal/rlslog"
	"github.com/standardbeagle/rls-core/internal/span"
)

// Initialize handles the `initialize` request: resolves the workspace
// root (rootUri preferred over rootPath), kicks off the first build,
// and reports the server's capabilities.
func (s *Server) Initialize(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	var params lsp.InitializeParams
	if err := lsp.ParseParams(raw, &params); err != nil {
		return nil, err
	}

	value, isURI := params.RootPath()
	root := value
	if isURI {
		if p, err := span.URIToPath(value); err == nil {
			root = p
		}
	}
	s.SetRoot(root)

	rlslog.LSP("initialize: root=%s", root)
	s.requestBuild(buildqueue.Cargo)

	return lsp.InitializeResult{Capabilities: lsp.DefaultCapabilities()}, nil
}

// Initialized handles the `initialized` notification: a no-op today, kept
// as an explicit handler so unknown-method logging doesn't fire for it.
func (s *Server) Initialized(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	return nil, nil
}

// Shutdown is registered for symmetry with the dispatcher's own shutdown
// handling (internal/lsp.Dispatcher.Serve already flips shutDown and acks
// the request before any handler runs), so nothing beyond marking local
// state is needed here.
func (s *Server) Shutdown(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	s.mu.Lock()
	s.shutDown = true
	s.mu.Unlock()
	return struct{}{}, nil
}
