package analysis

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/rls-core/internal/ids"
	"github.com/standardbeagle/rls-core/internal/span"
)

func simpleCrate(name string, disambig uint64) RawCrateAnalysis {
	return RawCrateAnalysis{
		PrimaryCrateID: ids.CrateId{Name: name, Disambiguator: disambig},
		Defs: []RawDef{
			{ID: 0, Kind: DefKindModule, Name: "", Qualname: "", Span: RawSpan{FilePath: "src/lib.rs"}},
			{ID: 1, Kind: DefKindStruct, Name: "Foo", Qualname: "crate::Foo", Span: RawSpan{
				FilePath: "src/lib.rs", ByteStart: 10, ByteEnd: 13, LineStart: 1, ColStart: 8, LineEnd: 1, ColEnd: 11,
			}},
		},
		Timestamp: time.Now(),
		Path:      "save-analysis/lib.json",
	}
}

func TestLowerBasicDefs(t *testing.T) {
	a := New()
	raw := simpleCrate("mycrate", 1)
	require.NoError(t, LowerInto(a, raw))

	defs := a.MatchingDefs("Foo")
	require.Len(t, defs, 1)
	require.Equal(t, "Foo", defs[0].Name)
}

func TestCongruentDefSuppressesSecondLowering(t *testing.T) {
	a := New()
	bin := simpleCrate("mycrate", 1)
	require.NoError(t, LowerInto(a, bin))

	// Second crate: same name, different disambiguator (e.g. the `test`
	// target), with a def sharing local id 1 and an identical span --
	// this must be suppressed as a congruent duplicate.
	testCrate := simpleCrate("mycrate", 2)
	invalidating := map[ids.CrateId]struct{}{testCrate.PrimaryCrateID: {}}
	require.NoError(t, lowerWithInvalidation(a, testCrate, invalidating))

	matches := a.MatchingDefs("Foo")
	require.Len(t, matches, 1, "congruent duplicate def must not appear twice")
}

func TestDefIDForSpanRefSpansConsistency(t *testing.T) {
	a := New()
	raw := RawCrateAnalysis{
		PrimaryCrateID: ids.CrateId{Name: "c", Disambiguator: 1},
		Defs: []RawDef{
			{ID: 0, Kind: DefKindModule, Span: RawSpan{FilePath: "a.rs"}},
			{ID: 1, Kind: DefKindFunction, Name: "foo", Span: RawSpan{FilePath: "a.rs", ByteStart: 1, ByteEnd: 4, LineStart: 1, ColStart: 1, ColEnd: 4}},
		},
		Refs: []RawRef{
			{Span: RawSpan{FilePath: "a.rs", ByteStart: 20, ByteEnd: 23, LineStart: 2, ColStart: 1, ColEnd: 4}, RefCrate: 0, RefID: 1},
		},
	}
	require.NoError(t, LowerInto(a, raw))

	id := ids.NewGlobalId(0, 1)
	var gotRefSpans []span.Span
	found := a.WithRefSpans(id, func(spans []span.Span) { gotRefSpans = spans })
	require.True(t, found)
	require.Len(t, gotRefSpans, 1)

	for _, rs := range gotRefSpans {
		ref, ok := a.DefIDForSpan(rs)
		require.True(t, ok)
		require.Contains(t, ref.IDs(), id)
	}
}
