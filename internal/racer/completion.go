package racer

import (
	"errors"
	"strings"

	"github.com/standardbeagle/rls-core/internal/span"
)

// CompletionItem mirrors the LSP completion-result shape.
type CompletionItem struct {
	Label      string
	Detail     string
	InsertText string
	Kind       string
	Docs       string
}

var errParseFailed = errors.New("racer: tree-sitter parse failed")

func offsetAt(text []byte, row, col uint32) uint32 {
	li := span.NewLineIndex("", text)
	pos, err := li.ScalarColToBytePos(span.Row{Zero: row}, col)
	if err != nil {
		return uint32(len(text))
	}
	return uint32(pos)
}

func isIdentByte(b byte) bool {
	return b == '_' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}

// identifierPrefixAt scans backward from byte offset over identifier
// characters, returning whatever partial identifier the cursor sits after.
func identifierPrefixAt(text []byte, offset uint32) string {
	start := offset
	for start > 0 && isIdentByte(text[start-1]) {
		start--
	}
	return string(text[start:offset])
}

// identifierAt returns the full identifier token touching byte offset
// (looking both backward and forward from it), used by Definition/Hover
// which need the whole name, not just the prefix typed so far.
func identifierAt(text []byte, offset uint32) string {
	start, end := offset, offset
	for start > 0 && isIdentByte(text[start-1]) {
		start--
	}
	for int(end) < len(text) && isIdentByte(text[end]) {
		end++
	}
	return string(text[start:end])
}

// complete runs the raw (unguarded) completion pass: parse, locate the
// identifier prefix at (row, col), return every collected item whose name
// has that prefix.
func complete(text []byte, row, col uint32) ([]CompletionItem, error) {
	parser, err := newRustParser()
	if err != nil {
		return nil, err
	}
	defer parser.Close()

	tree := parser.Parse(text, nil)
	if tree == nil {
		return nil, errParseFailed
	}
	defer tree.Close()

	offset := offsetAt(text, row, col)
	prefix := identifierPrefixAt(text, offset)

	items := collectItems(tree.RootNode(), text)
	results := make([]CompletionItem, 0, len(items))
	for _, it := range items {
		if prefix != "" && !strings.HasPrefix(it.Name, prefix) {
			continue
		}
		results = append(results, CompletionItem{
			Label:      it.Name,
			Detail:     it.Kind,
			InsertText: it.Name,
			Kind:       it.Kind,
		})
	}
	return results, nil
}
