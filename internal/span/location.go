package span

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
)

// Position is the LSP wire representation of a single (zero-indexed) row
// and a zero-indexed, UTF-16-code-unit column.
type Position struct {
	Line      uint32 `json:"line"`
	Character uint32 `json:"character"`
}

// Range is the LSP wire representation of [Start, End).
type Range struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

// Location is a Span serialized for the wire: a file URI plus an LSP Range.
type Location struct {
	URI   string `json:"uri"`
	Range Range  `json:"range"`
}

// PathToURI converts a filesystem path to a file:// URI, LSP's wire format
// for document identity.
func PathToURI(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	abs = filepath.ToSlash(abs)
	if !strings.HasPrefix(abs, "/") {
		abs = "/" + abs
	}
	u := &url.URL{Scheme: "file", Path: abs}
	return u.String()
}

// URIToPath converts a file:// URI back to a filesystem path.
func URIToPath(uri string) (string, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return "", fmt.Errorf("parse uri %q: %w", uri, err)
	}
	if u.Scheme != "file" {
		return "", fmt.Errorf("unsupported uri scheme %q", u.Scheme)
	}
	return filepath.FromSlash(u.Path), nil
}

// ToLocation converts a RowColSpan into an LSP Location, copying its row
// and column numbers unchanged (no byte-to-UTF-16 column conversion is
// done here).
func ToLocation(rc RowColSpan) Location {
	return Location{
		URI: PathToURI(rc.FilePath),
		Range: Range{
			Start: Position{Line: rc.Rows.Start.Zero, Character: rc.Cols.Start.Zero},
			End:   Position{Line: rc.Rows.End.Zero, Character: rc.Cols.End.Zero},
		},
	}
}
