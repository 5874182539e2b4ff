package handlers

import "github.com/standardbeagle/rls-core/internal/lsp"

// Register wires every Action Handler into d's routing table, split the
// same way: lightweight lifecycle/notification
// handlers run synchronously, query handlers that touch the analysis
// index or racer run worklike (spawned + timeout-raced).
func (s *Server) Register(d *lsp.Dispatcher) {
	d.Handle("initialize", s.Initialize)
	d.Handle("initialized", s.Initialized)
	d.Handle("shutdown", s.Shutdown)

	d.Handle("textDocument/didOpen", s.DidOpen)
	d.Handle("textDocument/didChange", s.DidChange)
	d.Handle("textDocument/didSave", s.DidSave)
	d.Handle("workspace/didChangeWatchedFiles", s.DidChangeWatchedFiles)
	d.Handle("workspace/didChangeConfiguration", s.DidChangeConfiguration)

	d.HandleWorklike("textDocument/hover", s.Hover)
	d.HandleWorklike("textDocument/definition", s.Definition)
	d.HandleWorklike("textDocument/references", s.References)
	d.HandleWorklike("textDocument/documentHighlight", s.DocumentHighlight)
	d.HandleWorklike("textDocument/documentSymbol", s.DocumentSymbol)
	d.HandleWorklike("workspace/symbol", s.WorkspaceSymbol)
	d.HandleWorklike("textDocument/completion", s.Completion)
	d.Handle("completionItem/resolve", s.CompletionResolve)
	d.HandleWorklike("textDocument/rename", s.Rename)
	d.HandleWorklike("textDocument/codeAction", s.CodeAction)
	d.HandleWorklike("rustDocument/implementations", s.Implementations)
	d.HandleWorklike("rustWorkspace/deglob", s.Deglob)
	d.Handle("workspace/executeCommand", s.ExecuteCommand)
	d.HandleWorklike("textDocument/formatting", s.Formatting)
	d.HandleWorklike("textDocument/rangeFormatting", s.RangeFormatting)
}
