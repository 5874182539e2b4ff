package analysis

import (
	"time"

	"github.com/standardbeagle/rls-core/internal/ids"
	"github.com/standardbeagle/rls-core/internal/span"
)

// PerCrateAnalysis is the lowered symbol database for one compiled crate.
type PerCrateAnalysis struct {
	GlobalCrateNum uint32
	Timestamp      time.Time
	Path           string // save-analysis file this store was lowered from
	RootID         *ids.GlobalId

	Defs         map[ids.GlobalId]*Def
	DefIDForSpan map[span.Span]Ref
	DefsPerFile  map[string][]ids.GlobalId // insertion order preserved
	Children     map[ids.GlobalId]map[ids.GlobalId]struct{}
	DefNames     map[string][]ids.GlobalId // exact name -> defs
	RefSpans     map[ids.GlobalId][]span.Span
	Globs        map[span.Span]Glob
	Impls        map[ids.GlobalId][]span.Span

	Idents map[string]*IdentIndex // per file path

	fst *defFST
}

// NewPerCrateAnalysis creates an empty store for the given crate number.
func NewPerCrateAnalysis(globalCrateNum uint32) *PerCrateAnalysis {
	return &PerCrateAnalysis{
		GlobalCrateNum: globalCrateNum,
		Defs:           make(map[ids.GlobalId]*Def),
		DefIDForSpan:   make(map[span.Span]Ref),
		DefsPerFile:    make(map[string][]ids.GlobalId),
		Children:       make(map[ids.GlobalId]map[ids.GlobalId]struct{}),
		DefNames:       make(map[string][]ids.GlobalId),
		RefSpans:       make(map[ids.GlobalId][]span.Span),
		Globs:          make(map[span.Span]Glob),
		Impls:          make(map[ids.GlobalId][]span.Span),
		Idents:         make(map[string]*IdentIndex),
	}
}

// buildFST finalizes the name-search index. Must be called after all defs
// have been inserted and before any query_defs call against this crate.
func (p *PerCrateAnalysis) buildFST() {
	pairs := make([]struct {
		name string
		id   ids.GlobalId
	}, 0, len(p.Defs))
	for id, def := range p.Defs {
		pairs = append(pairs, struct {
			name string
			id   ids.GlobalId
		}{name: lower(def.Name), id: id})
	}
	f := newDefFST()
	f.build(pairs)
	p.fst = f
}

func lower(s string) string {
	out := make([]byte, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		out[i] = c
	}
	return string(out)
}

// WithDefs runs f while holding a short-lived, read-only view of the def
// for id, matching the "with_defs" borrow-scoped query shape.
func (p *PerCrateAnalysis) WithDefs(id ids.GlobalId, f func(*Def)) bool {
	def, ok := p.Defs[id]
	if !ok {
		return false
	}
	f(def)
	return true
}

// WithDefsAndThen is WithDefs but f's return value is propagated.
func WithDefsAndThen[T any](p *PerCrateAnalysis, id ids.GlobalId, f func(*Def) T) (T, bool) {
	var zero T
	def, ok := p.Defs[id]
	if !ok {
		return zero, false
	}
	return f(def), true
}

// ForEachChild iterates id's direct children.
func (p *PerCrateAnalysis) ForEachChild(id ids.GlobalId, f func(ids.GlobalId)) {
	for child := range p.Children[id] {
		f(child)
	}
}

// WithRefSpans runs f with every recorded ref span for id.
func (p *PerCrateAnalysis) WithRefSpans(id ids.GlobalId, f func([]span.Span)) {
	f(p.RefSpans[id])
}

// LocalDefIDForSpan restricts DefIDForSpan to defs this crate itself owns
// (local_def_id_for_span).
func (p *PerCrateAnalysis) LocalDefIDForSpan(s span.Span) (Ref, bool) {
	ref, ok := p.DefIDForSpan[s]
	if !ok {
		return Ref{}, false
	}
	for _, id := range ref.IDs() {
		if _, owned := p.Defs[id]; !owned {
			return Ref{}, false
		}
	}
	return ref, true
}

func (p *PerCrateAnalysis) identIndexFor(file string) *IdentIndex {
	idx, ok := p.Idents[file]
	if !ok {
		idx = NewIdentIndex()
		p.Idents[file] = idx
	}
	return idx
}
