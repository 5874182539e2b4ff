package analysis

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/rls-core/internal/ids"
)

const sampleSaveAnalysisJSON = `{
	"prelude": {
		"crate_id": {"name": "mycrate", "disambiguator": [1, 0]},
		"external_crates": [
			{"file_name": "libstd.rlib", "num": 1, "id": {"name": "std", "disambiguator": [2, 0]}}
		]
	},
	"defs": [
		{"kind": "Mod", "id": 0, "span": {"file_name": "src/lib.rs", "byte_start": 0, "byte_end": 0, "line_start": 1, "column_start": 1, "line_end": 1, "column_end": 1}, "name": "", "qualname": "", "value": "", "docs": ""},
		{"kind": "Struct", "id": 1, "span": {"file_name": "src/lib.rs", "byte_start": 10, "byte_end": 13, "line_start": 2, "column_start": 8, "line_end": 2, "column_end": 11}, "name": "Foo", "qualname": "crate::Foo", "value": "struct Foo", "docs": "a struct"}
	],
	"imports": [
		{"kind": "GlobUse", "ref_id": null, "span": {"file_name": "src/lib.rs", "byte_start": 30, "byte_end": 31, "line_start": 3, "column_start": 13, "line_end": 3, "column_end": 14}, "name": "", "value": "Bar, Baz"}
	],
	"refs": [
		{"kind": "Mod", "span": {"file_name": "src/main.rs", "byte_start": 5, "byte_end": 8, "line_start": 1, "column_start": 5, "line_end": 1, "column_end": 8}, "ref_id": {"krate": 0, "index": 1}}
	],
	"relations": [
		{"kind": "Impl", "span": {"file_name": "src/lib.rs", "byte_start": 40, "byte_end": 60, "line_start": 4, "column_start": 0, "line_end": 4, "column_end": 20}, "from": {"krate": 0, "index": 1}, "to": {"krate": 0, "index": 0}}
	]
}`

func TestParseSaveAnalysisDecodesDefsImportsRefsAndRelations(t *testing.T) {
	raw, err := ParseSaveAnalysis([]byte(sampleSaveAnalysisJSON), "/proj", "", time.Unix(0, 0), "save-analysis/mycrate.json")
	require.NoError(t, err)

	require.Equal(t, ids.CrateId{Name: "mycrate", Disambiguator: 1}, raw.PrimaryCrateID)
	require.Len(t, raw.ExternalCrates, 1)
	require.Equal(t, ids.CrateId{Name: "std", Disambiguator: 2}, raw.ExternalCrates[0].ID)

	require.Len(t, raw.Defs, 2)
	require.Equal(t, "Foo", raw.Defs[1].Name)
	require.Equal(t, DefKindStruct, raw.Defs[1].Kind)
	require.Equal(t, DefKindModule, raw.Defs[0].Kind)

	require.Len(t, raw.Imports, 1)
	require.True(t, raw.Imports[0].IsGlob)
	require.Equal(t, "Bar, Baz", raw.Imports[0].Expansion)

	require.Len(t, raw.Refs, 1)
	require.Equal(t, uint32(1), raw.Refs[0].RefID)

	require.Len(t, raw.Relations, 1)
	require.Equal(t, RawRelationImpl, raw.Relations[0].Kind)
	require.NotNil(t, raw.Relations[0].To)
	require.Equal(t, uint32(0), *raw.Relations[0].To)
}

func TestParseSaveAnalysisLowersCleanlyIntoAnalysis(t *testing.T) {
	raw, err := ParseSaveAnalysis([]byte(sampleSaveAnalysisJSON), "/proj", "", time.Unix(0, 0), "save-analysis/mycrate.json")
	require.NoError(t, err)

	a := New()
	require.NoError(t, LowerInto(a, raw))

	defs := a.MatchingDefs("Foo")
	require.Len(t, defs, 1)
}

func TestParseSaveAnalysisRejectsInvalidJSON(t *testing.T) {
	_, err := ParseSaveAnalysis([]byte("not json"), "", "", time.Time{}, "")
	require.Error(t, err)
}
