// Package vfs implements a virtual file system: an in-memory mirror of
// on-disk source, overlaid with unsaved editor edits, addressable by byte,
// line, or (row, column). Grounded on the lock-free content store
// (internal/core/file_content_store.go) and its companion loader
// (internal/core/file_loader.go), generalized from a write-serialized
// content cache into an addressable text store with per-file user data.
package vfs

import (
	"os"
	"path/filepath"
	"sync"
	"unicode/utf16"
	"unicode/utf8"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/sync/singleflight"

	"github.com/standardbeagle/rls-core/internal/rlserrors"
	"github.com/standardbeagle/rls-core/internal/span"
)

// Kind distinguishes a Text file (addressable, mutable via on_changes) from
// a Binary one (opaque bytes, never diffed or column-addressed).
type Kind int

const (
	KindText Kind = iota
	KindBinary
)

// entry is one cached file. U is the caller's per-file user-data payload
// (e.g. a parsed AST, or nothing at all -- instantiate VFS[struct{}]).
type entry[U any] struct {
	mu sync.Mutex

	kind Kind

	text  []byte
	lines *span.LineIndex

	bytes []byte

	changed  bool
	fastHash uint64

	hasUserData bool
	userData    U
}

// VFS is the process-wide text store. Root anchors relative paths for disk
// reads; pass "" to treat every path as already absolute.
type VFS[U any] struct {
	mu    sync.RWMutex
	files map[string]*entry[U]
	group singleflight.Group
	root  string
}

// New creates an empty VFS rooted at root (used to resolve relative paths
// on disk loads; pass "" if callers always supply absolute paths).
func New[U any](root string) *VFS[U] {
	return &VFS[U]{
		files: make(map[string]*entry[U]),
		root:  root,
	}
}

func (v *VFS[U]) diskPath(path string) string {
	if v.root == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(v.root, path)
}

func (v *VFS[U]) newTextEntry(path string, text []byte) *entry[U] {
	return &entry[U]{
		kind:     KindText,
		text:     text,
		lines:    span.NewLineIndex(path, text),
		fastHash: xxhash.Sum64(text),
	}
}

func (v *VFS[U]) newBinaryEntry(content []byte) *entry[U] {
	return &entry[U]{kind: KindBinary, bytes: content, fastHash: xxhash.Sum64(content)}
}

// --- loading ---
//
// The spec's pending_files/files two-lock parking protocol is implemented
// here with singleflight.Group: concurrent LoadFile calls for the same
// path collapse into a single disk read (the "at most one read per path in
// flight" guarantee), and FlushFile relies on the same Group to wait out a
// load currently in flight for a path.

func (v *VFS[U]) getCached(path string) (*entry[U], bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	e, ok := v.files[path]
	return e, ok
}

// ensureLoaded returns the cached entry for path, reading it from disk
// (at most once across concurrent callers) if absent.
func (v *VFS[U]) ensureLoaded(path string) (*entry[U], error) {
	if e, ok := v.getCached(path); ok {
		return e, nil
	}

	result, err, _ := v.group.Do(path, func() (interface{}, error) {
		if e, ok := v.getCached(path); ok {
			return e, nil
		}
		content, rerr := os.ReadFile(v.diskPath(path))
		if rerr != nil {
			return nil, rlserrors.NewVFSError(rlserrors.Io, path, rerr)
		}
		var e *entry[U]
		if looksBinary(content) {
			e = v.newBinaryEntry(content)
		} else {
			e = v.newTextEntry(path, content)
		}
		v.mu.Lock()
		v.files[path] = e
		v.mu.Unlock()
		return e, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*entry[U]), nil
}

// FlushFile blocks until no load is in flight for path, then removes it
// from the cache. A load already in flight when FlushFile is called
// completes first (its callers still get its result), and the entry it
// cached is then removed.
func (v *VFS[U]) FlushFile(path string) {
	v.group.Do(path, func() (interface{}, error) { return nil, nil })
	v.mu.Lock()
	delete(v.files, path)
	v.mu.Unlock()
}

// Clear empties the cache. Any load already in flight is unaffected: it
// completes and writes into the (now empty) cache, becoming observable
// afterward, exactly as describes.
func (v *VFS[U]) Clear() {
	v.mu.Lock()
	v.files = make(map[string]*entry[U])
	v.mu.Unlock()
}

// --- reads ---

// LoadFile ensures path is cached and returns its full text (Text files
// only; Binary files return BadFileKind).
func (v *VFS[U]) LoadFile(path string) (string, error) {
	e, err := v.ensureLoaded(path)
	if err != nil {
		return "", err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.kind != KindText {
		return "", rlserrors.NewVFSError(rlserrors.BadFileKind, path, nil)
	}
	return string(e.text), nil
}

// LoadBytes is LoadFile's Binary-file counterpart.
func (v *VFS[U]) LoadBytes(path string) ([]byte, error) {
	e, err := v.ensureLoaded(path)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.kind != KindBinary {
		return nil, rlserrors.NewVFSError(rlserrors.BadFileKind, path, nil)
	}
	out := make([]byte, len(e.bytes))
	copy(out, e.bytes)
	return out, nil
}

// LoadLine returns the text of row (0-indexed, newline excluded).
func (v *VFS[U]) LoadLine(path string, row span.Row) (string, error) {
	e, err := v.ensureLoaded(path)
	if err != nil {
		return "", err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.kind != KindText {
		return "", rlserrors.NewVFSError(rlserrors.BadFileKind, path, nil)
	}
	idx := int(row.Zero)
	if idx < 0 || idx >= e.lines.NumLines() {
		return "", rlserrors.NewVFSError(rlserrors.BadLocation, path, &span.BadLocationError{Path: path, Row: row, PastLineEnd: true})
	}
	start := e.lines.Offsets[idx]
	end := e.lines.Offsets[idx+1]
	line := e.text[start:end]
	if len(line) > 0 && line[len(line)-1] == '\n' {
		line = line[:len(line)-1]
	}
	return string(line), nil
}

// LoadLines returns rows [start, end) as individual strings.
func (v *VFS[U]) LoadLines(path string, start, end span.Row) ([]string, error) {
	out := make([]string, 0, int(end.Zero)-int(start.Zero))
	for r := start.Zero; r < end.Zero; r++ {
		line, err := v.LoadLine(path, span.Row{Zero: r})
		if err != nil {
			return nil, err
		}
		out = append(out, line)
	}
	return out, nil
}

// LoadSpan returns the text covered by s.
func (v *VFS[U]) LoadSpan(s span.Span) (string, error) {
	e, err := v.ensureLoaded(s.FilePath)
	if err != nil {
		return "", err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.kind != KindText {
		return "", rlserrors.NewVFSError(rlserrors.BadFileKind, s.FilePath, nil)
	}
	if int(s.Range.End) > len(e.text) || s.Range.Start > s.Range.End {
		return "", rlserrors.NewVFSError(rlserrors.BadLocation, s.FilePath, nil)
	}
	return string(e.text[s.Range.Start:s.Range.End]), nil
}

// FileSaved clears the changed flag on path.
func (v *VFS[U]) FileSaved(path string) error {
	e, err := v.ensureLoaded(path)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.kind != KindText {
		return rlserrors.NewVFSError(rlserrors.BadFileKind, path, nil)
	}
	e.changed = false
	return nil
}

// --- user data ---

// WithUserData runs f against the current slot for path (hasValue reports
// whether one was previously stored). If f returns a VFSError whose Cause
// is NoUserDataForFile, the slot is cleared instead of updated.
func (v *VFS[U]) WithUserData(path string, f func(hasValue bool, cur U) (U, error)) error {
	e, ok := v.getCached(path)
	if !ok {
		return rlserrors.NewVFSError(rlserrors.FileNotCached, path, nil)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	next, err := f(e.hasUserData, e.userData)
	if err != nil {
		if isNoUserData(err) {
			var zero U
			e.userData = zero
			e.hasUserData = false
			return nil
		}
		return err
	}
	e.userData = next
	e.hasUserData = true
	return nil
}

// EnsureUserData returns the stored slot for path, lazily constructing it
// via f when absent.
func (v *VFS[U]) EnsureUserData(path string, f func() (U, error)) (U, error) {
	var zero U
	e, ok := v.getCached(path)
	if !ok {
		return zero, rlserrors.NewVFSError(rlserrors.FileNotCached, path, nil)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.hasUserData {
		return e.userData, nil
	}
	val, err := f()
	if err != nil {
		return zero, err
	}
	e.userData = val
	e.hasUserData = true
	return val, nil
}

func isNoUserData(err error) bool {
	ve, ok := err.(*rlserrors.VFSError)
	return ok && ve.Cause == rlserrors.NoUserDataForFile
}

// --- mutation ---

// OnChanges applies changes in order. A failure on one file's change is
// recorded and that file's remaining changes in the batch are skipped, but
// independent files proceed (mirrors the lowering pipeline's
// never-abort-the-whole-batch policy in ).
func (v *VFS[U]) OnChanges(changes []Change) error {
	failed := make(map[string]bool)
	var errs []error

	for _, c := range changes {
		var path string
		switch {
		case c.AddFile != nil:
			path = c.AddFile.Path
		case c.ReplaceText != nil:
			path = c.ReplaceText.Path
		default:
			continue
		}
		if failed[path] {
			continue
		}
		if err := v.applyOne(c); err != nil {
			failed[path] = true
			errs = append(errs, err)
		}
	}
	return rlserrors.NewMultiError(errs)
}

func (v *VFS[U]) applyOne(c Change) error {
	if c.AddFile != nil {
		v.mu.Lock()
		v.files[c.AddFile.Path] = v.newTextEntry(c.AddFile.Path, []byte(c.AddFile.Text))
		v.mu.Unlock()
		return nil
	}
	return v.applyReplace(c.ReplaceText)
}

func (v *VFS[U]) applyReplace(r *ReplaceText) error {
	e, ok := v.getCached(r.Path)
	if !ok {
		return rlserrors.NewVFSError(rlserrors.FileNotCached, r.Path, nil)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.kind != KindText {
		return rlserrors.NewVFSError(rlserrors.BadFileKind, r.Path, nil)
	}

	startByte, err := colToBytePos(e.lines, span.Row{Zero: r.StartRow}, r.StartCol, r.Encoding)
	if err != nil {
		return rlserrors.NewVFSError(rlserrors.BadLocation, r.Path, err)
	}

	var endByte span.BytePos
	if r.Len != nil {
		endByte, err = advanceByUnits(e.text, startByte, *r.Len, r.Encoding)
	} else {
		endByte, err = colToBytePos(e.lines, span.Row{Zero: r.EndRow}, r.EndCol, r.Encoding)
	}
	if err != nil {
		return rlserrors.NewVFSError(rlserrors.BadLocation, r.Path, err)
	}
	if endByte < startByte {
		startByte, endByte = endByte, startByte
	}

	newText := make([]byte, 0, len(e.text)-int(endByte-startByte)+len(r.Text))
	newText = append(newText, e.text[:startByte]...)
	newText = append(newText, []byte(r.Text)...)
	newText = append(newText, e.text[endByte:]...)

	e.text = newText
	e.lines = span.NewLineIndex(r.Path, newText)
	e.fastHash = xxhash.Sum64(newText)
	e.changed = true
	var zero U
	e.userData = zero
	e.hasUserData = false
	return nil
}

// colToBytePos dispatches to the scalar or UTF-16 column conversion
// depending on encoding.
func colToBytePos(li *span.LineIndex, row span.Row, col uint32, enc Encoding) (span.BytePos, error) {
	if enc == EncodingScalar {
		return li.ScalarColToBytePos(row, col)
	}
	return li.Utf16ColToBytePos(row, col)
}

func advanceByUnits(text []byte, start span.BytePos, n uint32, enc Encoding) (span.BytePos, error) {
	b := int(start)
	if enc == EncodingScalar {
		for i := uint32(0); i < n; i++ {
			if b >= len(text) {
				return 0, &span.BadLocationError{PastLineEnd: true}
			}
			_, size := utf8.DecodeRune(text[b:])
			b += size
		}
		return span.BytePos(b), nil
	}
	var seen uint32
	for seen < n {
		if b >= len(text) {
			return 0, &span.BadLocationError{PastLineEnd: true}
		}
		r, size := utf8.DecodeRune(text[b:])
		units := uint32(1)
		if utf16.IsSurrogate(r) || r > 0xFFFF {
			units = 2
		}
		if seen+units > n {
			return 0, &span.BadLocationError{MidRune: true}
		}
		seen += units
		b += size
	}
	return span.BytePos(b), nil
}
