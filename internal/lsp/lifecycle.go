package lsp

import "encoding/json"

// InitializeParams is the subset of `initialize`'s params the core engine
// needs: the workspace root, preferring rootUri over the deprecated
// rootPath.
type InitializeParams struct {
	RootURI  *string `json:"rootUri"`
	RootPath *string `json:"rootPath"`
}

// RootPath resolves the "rootUri (preferred) or rootPath" rule.
// Callers still need to turn a rootUri into a filesystem path (see
// internal/span.URIToPath) -- this only picks which field wins.
func (p InitializeParams) RootPath() (value string, isURI bool) {
	if p.RootURI != nil && *p.RootURI != "" {
		return *p.RootURI, true
	}
	if p.RootPath != nil {
		return *p.RootPath, false
	}
	return "", false
}

// ServerCapabilities is the `initialize` response's capabilities object,
// covering the methods this engine treats as load-bearing.
type ServerCapabilities struct {
	TextDocumentSync                int                   `json:"textDocumentSync"` // 2 = incremental
	HoverProvider                   bool                  `json:"hoverProvider"`
	CompletionProvider              CompletionOptions     `json:"completionProvider"`
	DefinitionProvider              bool                  `json:"definitionProvider"`
	ReferencesProvider              bool                  `json:"referencesProvider"`
	DocumentSymbolProvider          bool                  `json:"documentSymbolProvider"`
	WorkspaceSymbolProvider         bool                  `json:"workspaceSymbolProvider"`
	RenameProvider                  bool                  `json:"renameProvider"`
	DocumentFormattingProvider      bool                  `json:"documentFormattingProvider"`
	DocumentRangeFormattingProvider bool                  `json:"documentRangeFormattingProvider"`
	CodeActionProvider              bool                  `json:"codeActionProvider"`
	ExecuteCommandProvider          ExecuteCommandOptions `json:"executeCommandProvider"`
}

type CompletionOptions struct {
	TriggerCharacters []string `json:"triggerCharacters"`
}

type ExecuteCommandOptions struct {
	Commands []string `json:"commands"`
}

// DefaultCapabilities is the capabilities object this server advertises:
// incremental sync, hover, completion with `.`/`:` triggers, definition,
// references, document and workspace symbols, rename, whole-file and range
// formatting, code actions, and the rls.applySuggestion and rls.run
// commands.
func DefaultCapabilities() ServerCapabilities {
	const incrementalSync = 2
	return ServerCapabilities{
		TextDocumentSync:                incrementalSync,
		HoverProvider:                   true,
		CompletionProvider:              CompletionOptions{TriggerCharacters: []string{".", ":"}},
		DefinitionProvider:              true,
		ReferencesProvider:              true,
		DocumentSymbolProvider:          true,
		WorkspaceSymbolProvider:         true,
		RenameProvider:                  true,
		DocumentFormattingProvider:      true,
		DocumentRangeFormattingProvider: true,
		CodeActionProvider:              true,
		ExecuteCommandProvider:          ExecuteCommandOptions{Commands: []string{"rls.applySuggestion", "rls.run"}},
	}
}

// InitializeResult is the `initialize` response body.
type InitializeResult struct {
	Capabilities ServerCapabilities `json:"capabilities"`
}

// ParseParams is a small helper every Action Handler uses to decode its
// typed Params from the raw json.RawMessage the Dispatcher hands it,
// mapping a decode failure onto the InvalidParams error code.
func ParseParams(raw json.RawMessage, v interface{}) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, v)
}
