package analysis

import (
	"strings"
	"time"

	"github.com/standardbeagle/rls-core/internal/ids"
)

// RawSpan mirrors a span the compiler emits in save-analysis JSON: a file
// path (relative to the compilation working directory unless already
// absolute) plus one-indexed row/col bounds, as emitted by rustc.
type RawSpan struct {
	FilePath  string
	ByteStart uint32
	ByteEnd   uint32
	LineStart uint32 // one-indexed
	ColStart  uint32 // one-indexed
	LineEnd   uint32
	ColEnd    uint32
}

// RawDef mirrors one entry of save-analysis JSON's "defs" array.
type RawDef struct {
	ID       uint32 // compiler-local def index
	Kind     DefKind
	Span     RawSpan
	Name     string
	Qualname string
	Parent   *uint32
	Value    string
	Docs     string
}

// RawImport is one `use` item recorded by the compiler: a glob import, or a
// plain import whose RefID names the imported def.
type RawImport struct {
	Span       RawSpan
	RefID      *uint32 // nil => glob import, or an import with no resolved target
	IsGlob     bool
	Expansion  string // only set when IsGlob
	Alias      *RawSpan
	AliasedDef *uint32
}

// RawRef mirrors save-analysis "refs": a span resolving to a def id, which
// may live in another crate (hence RefCrate/RefID rather than a local
// index alone).
type RawRef struct {
	Span     RawSpan
	RefCrate uint32 // local crate-number index (0 == primary, per prelude)
	RefID    uint32
}

// RawRelationKind is the subset of save-analysis "relations" the lowering
// pipeline cares about: Impl.
type RawRelationKind int

const (
	RawRelationImpl RawRelationKind = iota
)

// RawRelation mirrors one save-analysis "relations" entry.
type RawRelation struct {
	Kind RawRelationKind
	From uint32  // crate-local def id of the impl's Self type
	To   *uint32 // crate-local def id of the trait, nil for inherent impls
	Span RawSpan
}

// RawExternalCrate is one entry of save-analysis's
// "prelude.external_crates".
type RawExternalCrate struct {
	LocalNum uint32
	ID       ids.CrateId
}

// RawCrateAnalysis is one save-analysis JSON document: everything the
// lowering pipeline needs for a single compiled crate.
type RawCrateAnalysis struct {
	PrimaryCrateID ids.CrateId
	ExternalCrates []RawExternalCrate
	Defs           []RawDef
	Imports        []RawImport
	Refs           []RawRef
	Relations      []RawRelation

	Timestamp   time.Time
	Path        string // path of the save-analysis file itself
	BaseDir     string // prepended to relative raw span paths
	PathRewrite string // overrides BaseDir when non-empty
}

// resolvePath applies path resolution: PathRewrite wins if
// set, else BaseDir is prepended to relative paths.
func (c *RawCrateAnalysis) resolvePath(p string) string {
	if strings.HasPrefix(p, "/") || p == "" {
		return p
	}
	if c.PathRewrite != "" {
		return joinPath(c.PathRewrite, p)
	}
	if c.BaseDir != "" {
		return joinPath(c.BaseDir, p)
	}
	return p
}

func joinPath(base, rel string) string {
	if base == "" {
		return rel
	}
	if strings.HasSuffix(base, "/") {
		return base + rel
	}
	return base + "/" + rel
}

// badSpan rejects spans a lowering pass should skip: compiler-synthesized
// paths (ending in '>', e.g. "<anon>"), and zero-length (0,0) spans for
// anything other than a module (whole-crate root defs legitimately have
// a degenerate span).
func badSpan(s RawSpan, kind DefKind) bool {
	if strings.HasSuffix(s.FilePath, ">") {
		return true
	}
	if s.ByteStart == 0 && s.ByteEnd == 0 && kind != DefKindModule {
		return true
	}
	return false
}
