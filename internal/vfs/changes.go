package vfs

// Encoding selects the code-unit an editor's ReplaceText column is measured
// in. The LSP client negotiates this once per session; the VFS carries it
// per change because a test can freely mix both within one batch.
type Encoding int

const (
	// EncodingScalar measures columns in Unicode scalar values (code points).
	EncodingScalar Encoding = iota
	// EncodingUTF16 measures columns in UTF-16 code units, as most LSP
	// clients (VS Code among them) negotiate by default.
	EncodingUTF16
)

// AddFile creates path with text, replacing any existing content.
type AddFile struct {
	Path string
	Text string
}

// ReplaceText replaces a range of an already-tracked text file. StartRow/
// StartCol always apply; if Len is non-nil, the replaced range runs
// [start, start+*Len) in Encoding units on StartRow, and EndRow/EndCol are
// ignored. Otherwise EndRow/EndCol determine the end of the range.
type ReplaceText struct {
	Path     string
	StartRow uint32
	StartCol uint32
	EndRow   uint32
	EndCol   uint32
	Len      *uint32
	Text     string
	Encoding Encoding
}

// Change is one entry of an on_changes batch: exactly one of AddFile or
// ReplaceText is set.
type Change struct {
	AddFile     *AddFile
	ReplaceText *ReplaceText
}
