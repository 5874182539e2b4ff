package racer

import "strings"

// hover runs the raw (unguarded) hover pass: parse, find the identifier
// touching (row, col), return the declaration's first source line as a
// best-effort "type/doc string".
func hover(text []byte, row, col uint32) (string, bool, error) {
	parser, err := newRustParser()
	if err != nil {
		return "", false, err
	}
	defer parser.Close()

	tree := parser.Parse(text, nil)
	if tree == nil {
		return "", false, errParseFailed
	}
	defer tree.Close()

	offset := offsetAt(text, row, col)
	name := identifierAt(text, offset)
	if name == "" {
		return "", false, nil
	}

	items := collectItems(tree.RootNode(), text)
	for _, it := range items {
		if it.Name != name {
			continue
		}
		line := declarationSignatureLine(text, it.ByteStart)
		return line, true, nil
	}
	return "", false, nil
}

// declarationSignatureLine returns the full source line containing start,
// trimmed, as a stand-in for a real signature (no type inference).
func declarationSignatureLine(text []byte, start uint) string {
	lineStart := start
	for lineStart > 0 && text[lineStart-1] != '\n' {
		lineStart--
	}
	lineEnd := start
	for int(lineEnd) < len(text) && text[lineEnd] != '\n' {
		lineEnd++
	}
	return strings.TrimSpace(string(text[lineStart:lineEnd]))
}
