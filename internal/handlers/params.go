package handlers

import (
	"encoding/json"

	"github.com/standardbeagle/rls-core/internal/span"
)

// TextDocumentIdentifier identifies an open document by URI, as every LSP
// params object embeds it.
type TextDocumentIdentifier struct {
	URI string `json:"uri"`
}

// TextDocumentPositionParams is the shape shared by hover, definition,
// references, completion and the rest of the cursor-anchored requests.
type TextDocumentPositionParams struct {
	TextDocument TextDocumentIdentifier `json:"textDocument"`
	Position     span.Position          `json:"position"`
}

type ReferenceContext struct {
	IncludeDeclaration bool `json:"includeDeclaration"`
}

type ReferenceParams struct {
	TextDocumentPositionParams
	Context ReferenceContext `json:"context"`
}

type DocumentSymbolParams struct {
	TextDocument TextDocumentIdentifier `json:"textDocument"`
}

type WorkspaceSymbolParams struct {
	Query string `json:"query"`
}

// SymbolInformation is workspace/symbol and textDocument/documentSymbol's
// flat result shape (the pre-hierarchical form every client still accepts).
type SymbolInformation struct {
	Name          string        `json:"name"`
	Kind          int           `json:"kind"`
	Location      span.Location `json:"location"`
	ContainerName string        `json:"containerName,omitempty"`
}

type CompletionItemLSP struct {
	Label         string `json:"label"`
	Kind          int    `json:"kind,omitempty"`
	Detail        string `json:"detail,omitempty"`
	Documentation string `json:"documentation,omitempty"`
	InsertText    string `json:"insertText,omitempty"`
}

type CompletionList struct {
	IsIncomplete bool                `json:"isIncomplete"`
	Items        []CompletionItemLSP `json:"items"`
}

type Hover struct {
	Contents string `json:"contents"`
}

type TextEdit struct {
	Range   span.Range `json:"range"`
	NewText string     `json:"newText"`
}

type WorkspaceEdit struct {
	Changes map[string][]TextEdit `json:"changes"`
}

type RenameParams struct {
	TextDocumentPositionParams
	NewName string `json:"newName"`
}

type Diagnostic struct {
	Range    span.Range `json:"range"`
	Severity int        `json:"severity"`
	Code     string     `json:"code,omitempty"`
	Message  string     `json:"message"`
}

type CodeActionContext struct {
	Diagnostics []Diagnostic `json:"diagnostics"`
}

type CodeActionParams struct {
	TextDocument TextDocumentIdentifier `json:"textDocument"`
	Range        span.Range             `json:"range"`
	Context      CodeActionContext      `json:"context"`
}

type Command struct {
	Title     string        `json:"title"`
	Command   string        `json:"command"`
	Arguments []interface{} `json:"arguments,omitempty"`
}

type ExecuteCommandParams struct {
	Command   string            `json:"command"`
	Arguments []json.RawMessage `json:"arguments"`
}

type VersionedTextDocumentIdentifier struct {
	TextDocumentIdentifier
	Version int `json:"version"`
}

type TextDocumentContentChangeEvent struct {
	Range       *span.Range `json:"range"`
	RangeLength *uint32     `json:"rangeLength"`
	Text        string      `json:"text"`
}

type DidOpenTextDocumentParams struct {
	TextDocument struct {
		TextDocumentIdentifier
		LanguageID string `json:"languageId"`
		Version    int    `json:"version"`
		Text       string `json:"text"`
	} `json:"textDocument"`
}

type DidChangeTextDocumentParams struct {
	TextDocument   VersionedTextDocumentIdentifier  `json:"textDocument"`
	ContentChanges []TextDocumentContentChangeEvent `json:"contentChanges"`
}

type DidSaveTextDocumentParams struct {
	TextDocument TextDocumentIdentifier `json:"textDocument"`
	Text         *string                `json:"text"`
}

type FileEvent struct {
	URI  string `json:"uri"`
	Type int    `json:"type"`
}

type DidChangeWatchedFilesParams struct {
	Changes []FileEvent `json:"changes"`
}

type DidChangeConfigurationParams struct {
	Settings json.RawMessage `json:"settings"`
}
