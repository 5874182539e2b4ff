package vfs

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/rls-core/internal/rlserrors"
)

func TestAddFileThenLoad(t *testing.T) {
	v := New[struct{}]("")
	require.NoError(t, v.OnChanges([]Change{{AddFile: &AddFile{Path: "a.rs", Text: "fn main() {}\n"}}}))

	text, err := v.LoadFile("a.rs")
	require.NoError(t, err)
	require.Equal(t, "fn main() {}\n", text)
}

func TestReplaceTextScalarAndUTF16(t *testing.T) {
	v := New[struct{}]("")
	require.NoError(t, v.OnChanges([]Change{{AddFile: &AddFile{Path: "a.rs", Text: "let x = 1;\n"}}}))

	n := uint32(1)
	require.NoError(t, v.OnChanges([]Change{{ReplaceText: &ReplaceText{
		Path: "a.rs", StartRow: 0, StartCol: 4, Len: &n, Text: "y", Encoding: EncodingScalar,
	}}}))
	text, err := v.LoadFile("a.rs")
	require.NoError(t, err)
	require.Equal(t, "let y = 1;\n", text)

	// U+1F622 takes two UTF-16 code units, so the 'x' after it is at
	// UTF-16 column 2.
	require.NoError(t, v.OnChanges([]Change{{AddFile: &AddFile{Path: "b.rs", Text: "\U0001F622x;\n"}}}))
	require.NoError(t, v.OnChanges([]Change{{ReplaceText: &ReplaceText{
		Path: "b.rs", StartRow: 0, StartCol: 2, Len: &n, Text: "y", Encoding: EncodingUTF16,
	}}}))
	text, err = v.LoadFile("b.rs")
	require.NoError(t, err)
	require.Equal(t, "\U0001F622y;\n", text)
}

func TestReplaceTextByRowColEnd(t *testing.T) {
	v := New[struct{}]("")
	require.NoError(t, v.OnChanges([]Change{{AddFile: &AddFile{Path: "a.rs", Text: "abcdef\n"}}}))
	require.NoError(t, v.OnChanges([]Change{{ReplaceText: &ReplaceText{
		Path: "a.rs", StartRow: 0, StartCol: 1, EndRow: 0, EndCol: 4, Text: "XYZ", Encoding: EncodingScalar,
	}}}))
	text, err := v.LoadFile("a.rs")
	require.NoError(t, err)
	require.Equal(t, "aXYZef\n", text)
}

func TestOnChangesBadFileSkipsOnlyThatFile(t *testing.T) {
	v := New[struct{}]("")
	require.NoError(t, v.OnChanges([]Change{{AddFile: &AddFile{Path: "ok.rs", Text: "ok\n"}}}))

	n := uint32(1)
	err := v.OnChanges([]Change{
		{ReplaceText: &ReplaceText{Path: "missing.rs", StartRow: 0, StartCol: 0, Len: &n, Text: "x", Encoding: EncodingScalar}},
		{AddFile: &AddFile{Path: "ok2.rs", Text: "fine\n"}},
	})
	require.Error(t, err)

	text, loadErr := v.LoadFile("ok2.rs")
	require.NoError(t, loadErr)
	require.Equal(t, "fine\n", text)
}

func TestFileSavedClearsChangedAndRejectsBinary(t *testing.T) {
	v := New[struct{}]("")
	require.NoError(t, v.OnChanges([]Change{{AddFile: &AddFile{Path: "a.rs", Text: "x\n"}}}))
	n := uint32(0)
	require.NoError(t, v.OnChanges([]Change{{ReplaceText: &ReplaceText{Path: "a.rs", StartRow: 0, StartCol: 0, Len: &n, Text: "", Encoding: EncodingScalar}}}))
	e, ok := v.getCached("a.rs")
	require.True(t, ok)
	require.True(t, e.changed)
	require.NoError(t, v.FileSaved("a.rs"))
	require.False(t, e.changed)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "blob.bin"), []byte{0, 1, 2, 0}, 0o644))
	vb := New[struct{}](dir)
	var ve *rlserrors.VFSError
	require.ErrorAs(t, vb.FileSaved("blob.bin"), &ve)
	require.Equal(t, rlserrors.BadFileKind, ve.Cause)
}

func TestUserDataLifecycle(t *testing.T) {
	v := New[int]("")
	require.NoError(t, v.OnChanges([]Change{{AddFile: &AddFile{Path: "a.rs", Text: "x\n"}}}))

	val, err := v.EnsureUserData("a.rs", func() (int, error) { return 42, nil })
	require.NoError(t, err)
	require.Equal(t, 42, val)

	val2, err := v.EnsureUserData("a.rs", func() (int, error) { return 99, nil })
	require.NoError(t, err)
	require.Equal(t, 42, val2, "EnsureUserData must not recompute once set")

	err = v.WithUserData("a.rs", func(hasValue bool, cur int) (int, error) {
		require.True(t, hasValue)
		return 0, rlserrors.NewVFSError(rlserrors.NoUserDataForFile, "a.rs", nil)
	})
	require.NoError(t, err)

	_, err = v.EnsureUserData("a.rs", func() (int, error) { return 7, nil })
	require.NoError(t, err)
}

func TestReplaceInvalidatesUserData(t *testing.T) {
	v := New[int]("")
	require.NoError(t, v.OnChanges([]Change{{AddFile: &AddFile{Path: "a.rs", Text: "abc\n"}}}))
	_, err := v.EnsureUserData("a.rs", func() (int, error) { return 1, nil })
	require.NoError(t, err)

	n := uint32(1)
	require.NoError(t, v.OnChanges([]Change{{ReplaceText: &ReplaceText{Path: "a.rs", StartRow: 0, StartCol: 0, Len: &n, Text: "z", Encoding: EncodingScalar}}}))

	calls := 0
	_, err = v.EnsureUserData("a.rs", func() (int, error) { calls++; return 2, nil })
	require.NoError(t, err)
	require.Equal(t, 1, calls, "user data slot must be cleared by a text mutation")
}

func TestLoadFileDedupsConcurrentDiskReads(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "lib.rs")
	require.NoError(t, os.WriteFile(path, []byte("mod foo;\n"), 0o644))

	v := New[struct{}](dir)

	var wg sync.WaitGroup
	results := make([]string, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			text, err := v.LoadFile("lib.rs")
			require.NoError(t, err)
			results[i] = text
		}(i)
	}
	wg.Wait()
	for _, r := range results {
		require.Equal(t, "mod foo;\n", r)
	}
}

func TestFlushThenClear(t *testing.T) {
	v := New[struct{}]("")
	require.NoError(t, v.OnChanges([]Change{{AddFile: &AddFile{Path: "a.rs", Text: "x\n"}}}))
	v.FlushFile("a.rs")
	_, ok := v.getCached("a.rs")
	require.False(t, ok)

	require.NoError(t, v.OnChanges([]Change{{AddFile: &AddFile{Path: "b.rs", Text: "y\n"}}}))
	v.Clear()
	_, ok = v.getCached("b.rs")
	require.False(t, ok)
}
