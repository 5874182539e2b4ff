// Package analysis implements the lowering pipeline and query surface for
// the Rust Language Server's symbol database: turning raw save-analysis
// JSON into the globally addressed, cross-crate symbol database
// (Analysis / PerCrateAnalysis) and answering definition/reference/
// impl/name queries against it.
//
// Grounded on the symbol store (internal/core/symbol.go) for the
// def/children/parent shape, and on internal/search/engine.go's
// trigram/FST-flavoured matching for the fuzzy name search.
package analysis

import (
	"github.com/standardbeagle/rls-core/internal/ids"
	"github.com/standardbeagle/rls-core/internal/span"
)

// DefKind classifies a Def the way save-analysis does (subset relevant to
// this package: Module is load-bearing for root_id detection, the rest are
// opaque strings from the compiler's point of view).
type DefKind string

const (
	DefKindModule       DefKind = "Module"
	DefKindStruct       DefKind = "Struct"
	DefKindEnum         DefKind = "Enum"
	DefKindTrait        DefKind = "Trait"
	DefKindFunction     DefKind = "Function"
	DefKindMethod       DefKind = "Method"
	DefKindField        DefKind = "Field"
	DefKindStatic       DefKind = "Static"
	DefKindConst        DefKind = "Const"
	DefKindLocal        DefKind = "Local"
	DefKindTupleVariant DefKind = "TupleVariant"
)

// Def is one definition in the symbol database.
type Def struct {
	ID          ids.GlobalId
	Kind        DefKind
	Span        span.Span
	Name        string
	Qualname    string
	Parent      *ids.GlobalId
	Value       string // type/signature text
	Docs        string
	DistroCrate bool
}

// RefKind distinguishes how many defs a single source span resolves to:
// exactly one (Single), exactly two (e.g. a shorthand struct field init
// that is simultaneously a field ref and a local-var ref: Double), or
// three-or-more via macro expansion (Multi, with a count).
type RefKind int

const (
	RefSingle RefKind = iota
	RefDouble
	RefMulti
)

// Ref is the variant record tracking how many defs a
// source span resolves to.
type Ref struct {
	Kind   RefKind
	First  ids.GlobalId
	Second ids.GlobalId // valid only when Kind == RefDouble
	Count  int          // valid only when Kind == RefMulti (count >= 3)
}

// IDs returns every def id this Ref resolves to (1, 2, or an unspecified
// but known-to-be->=3 count of which only the first id lowering recorded
// is retained -- matching the save-analysis reality that Multi only
// tracks "this span is ambiguous among N defs", not which N).
func (r Ref) IDs() []ids.GlobalId {
	switch r.Kind {
	case RefSingle:
		return []ids.GlobalId{r.First}
	case RefDouble:
		return []ids.GlobalId{r.First, r.Second}
	default:
		return []ids.GlobalId{r.First}
	}
}

// addID runs the Single -> Double -> Multi(count>=3) state machine for
// combining a newly discovered ref at a span with whatever was already
// recorded there.
func addID(existing *Ref, id ids.GlobalId) Ref {
	if existing == nil {
		return Ref{Kind: RefSingle, First: id}
	}
	switch existing.Kind {
	case RefSingle:
		if existing.First == id {
			return *existing
		}
		return Ref{Kind: RefDouble, First: existing.First, Second: id}
	case RefDouble:
		if existing.First == id || existing.Second == id {
			return *existing
		}
		return Ref{Kind: RefMulti, First: existing.First, Count: 3}
	default: // RefMulti
		return Ref{Kind: RefMulti, First: existing.First, Count: existing.Count + 1}
	}
}

// Glob records a `use...::*;` import: its source span and the
// pre-expansion text the compiler emitted for it.
type Glob struct {
	Span          span.Span
	ExpansionText string
}

// ImplRelation records one impl block: an inherent impl (TraitID absent)
// or a trait impl.
type ImplRelation struct {
	SelfID  ids.GlobalId
	TraitID ids.GlobalId // ids.NoID when inherent
	Span    span.Span
}

// IdentKind says whether an Ident span is itself a definition or a
// reference to one.
type IdentKind int

const (
	IdentDef IdentKind = iota
	IdentRef
)

// Ident is one identifier occurrence recorded for overlap queries
// (idents()).
type Ident struct {
	Span span.ByteRange
	ID   ids.GlobalId
	Kind IdentKind
}
