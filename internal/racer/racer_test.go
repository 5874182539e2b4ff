package racer

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const sampleSource = `mod helpers;

struct Widget {
    name: String,
}

fn widget_new() -> Widget {
    Widget { name: String::new() }
}

fn widget_render(w: &Widget) {
    println!("{}", w.name);
}

fn main() {
    widget_r
}
`

// locate returns the zero-indexed (row, col) of the first rune of marker
// within text, computed the same way a real editor would report a cursor
// position -- so tests don't depend on hand-counted byte offsets.
func locate(t *testing.T, text, marker string) (uint32, uint32) {
	t.Helper()
	idx := strings.Index(text, marker)
	require.GreaterOrEqual(t, idx, 0, "marker %q not found", marker)
	before := text[:idx]
	row := uint32(strings.Count(before, "\n"))
	lastNL := strings.LastIndex(before, "\n")
	col := uint32(len([]rune(before[lastNL+1:])))
	return row, col
}

type fakeSource struct {
	files map[string]string
}

func (f *fakeSource) LoadFile(path string) (string, error) {
	return f.files[path], nil
}

func TestCompleteMatchesPrefix(t *testing.T) {
	fb := &Fallback{Source: &fakeSource{files: map[string]string{"a.rs": sampleSource}}, Timeout: time.Second}
	row, col := locate(t, sampleSource, "widget_r\n")
	items := fb.Complete("a.rs", row, col+uint32(len("widget_r")))

	var labels []string
	for _, it := range items {
		labels = append(labels, it.Label)
	}
	require.Contains(t, labels, "widget_render")
	require.NotContains(t, labels, "widget_new", "widget_new does not share the widget_r prefix")
	require.NotContains(t, labels, "main", "main does not share the widget_r prefix")
}

func TestDefinitionIgnoresFieldAccess(t *testing.T) {
	fb := &Fallback{Source: &fakeSource{files: map[string]string{"a.rs": sampleSource}}, Timeout: time.Second}
	row, col := locate(t, sampleSource, "name);")
	loc, found := fb.Definition("a.rs", row, col+1)
	require.False(t, found, "w.name is a field access, not a top-level item")
	require.Nil(t, loc)
}

func TestDefinitionFindsFunctionName(t *testing.T) {
	fb := &Fallback{Source: &fakeSource{files: map[string]string{"a.rs": sampleSource}}, Timeout: time.Second}
	row, col := locate(t, sampleSource, "widget_new")
	loc, found := fb.Definition("a.rs", row, col+2)
	require.True(t, found)
	require.NotNil(t, loc)
}

func TestHoverReturnsDeclarationLine(t *testing.T) {
	fb := &Fallback{Source: &fakeSource{files: map[string]string{"a.rs": sampleSource}}, Timeout: time.Second}
	row, col := locate(t, sampleSource, "Widget {")
	text, found := fb.Hover("a.rs", row, col+2)
	require.True(t, found)
	require.Contains(t, text, "struct Widget")
}

func TestFallbackReturnsEmptyOnMissingFile(t *testing.T) {
	fb := &Fallback{Source: &fakeSource{files: map[string]string{}}, Timeout: time.Second}
	items := fb.Complete("missing.rs", 0, 0)
	require.Nil(t, items)
}

func TestWithGuardRecoversPanic(t *testing.T) {
	got := withGuard(time.Second, func() (int, error) {
		panic("boom")
	})
	require.Equal(t, 0, got)
}

func TestWithGuardTimesOut(t *testing.T) {
	got := withGuard(10*time.Millisecond, func() (int, error) {
		time.Sleep(100 * time.Millisecond)
		return 42, nil
	})
	require.Equal(t, 0, got)
}
