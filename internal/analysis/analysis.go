package analysis

import (
	"sort"
	"strings"
	"sync"

	"github.com/standardbeagle/rls-core/internal/ids"
	"github.com/standardbeagle/rls-core/internal/rlserrors"
	"github.com/standardbeagle/rls-core/internal/span"
)

// Analysis is the top-level, process-wide symbol database.
// Mutated only via Update, which atomically replaces one crate's store;
// readers take a brief lock to copy out small owned values, keeping
// critical sections short.
type Analysis struct {
	mu             sync.RWMutex
	perCrate       map[ids.CrateId]*PerCrateAnalysis
	aliasedImports map[ids.GlobalId]struct{}
	crateNames     map[string][]ids.CrateId

	DocURLBase string
	SrcURLBase string

	crateMap *ids.GlobalCrateMap
}

// New creates an empty Analysis backed by a fresh GlobalCrateMap.
func New() *Analysis {
	return &Analysis{
		perCrate:       make(map[ids.CrateId]*PerCrateAnalysis),
		aliasedImports: make(map[ids.GlobalId]struct{}),
		crateNames:     make(map[string][]ids.CrateId),
		crateMap:       ids.NewGlobalCrateMap(),
	}
}

// CrateMap exposes the process-wide crate number assignment table.
func (a *Analysis) CrateMap() *ids.GlobalCrateMap { return a.crateMap }

// Update atomically replaces the entry for crate.
func (a *Analysis) Update(crate ids.CrateId, pca *PerCrateAnalysis) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.perCrate[crate] = pca
	names := a.crateNames[crate.Name]
	found := false
	for _, c := range names {
		if c == crate {
			found = true
			break
		}
	}
	if !found {
		a.crateNames[crate.Name] = append(names, crate)
	}
}

// MarkAliasedImport records that id was brought in via `use X as Y;`, so
// renames don't propagate through the alias.
func (a *Analysis) MarkAliasedImport(id ids.GlobalId) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.aliasedImports[id] = struct{}{}
}

func (a *Analysis) isAliasedImport(id ids.GlobalId) bool {
	_, ok := a.aliasedImports[id]
	return ok
}

// HardReload drops the entire Analysis and rebuilds it from scratch by
// lowering every crate produced by build, swapping the result in
// atomically so a partial failure (any crate's lowering returning an
// error) leaves the previous state untouched.
func (a *Analysis) HardReload(crates []RawCrateAnalysis) error {
	fresh := New()
	fresh.DocURLBase = a.DocURLBase
	fresh.SrcURLBase = a.SrcURLBase

	var errs []error
	for _, raw := range crates {
		if err := LowerInto(fresh, raw); err != nil {
			errs = append(errs, err)
		}
	}
	if multi := rlserrors.NewMultiError(errs); multi != nil {
		return multi
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.perCrate = fresh.perCrate
	a.aliasedImports = fresh.aliasedImports
	a.crateNames = fresh.crateNames
	a.crateMap = fresh.crateMap
	return nil
}

// --- queries ---

// withCrateOwning finds the PerCrateAnalysis that owns id (by crate
// number) and runs f against it.
func (a *Analysis) withCrateOwning(id ids.GlobalId, f func(*PerCrateAnalysis) bool) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	for _, pca := range a.perCrate {
		if pca.GlobalCrateNum == id.CrateNum() {
			return f(pca)
		}
	}
	return false
}

// DefIDForSpan resolves the Ref recorded at s, searching every crate
// (a span belongs to exactly one file, but which crate lowered it isn't
// known to the caller).
func (a *Analysis) DefIDForSpan(s span.Span) (Ref, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	for _, pca := range a.perCrate {
		if ref, ok := pca.DefIDForSpan[s]; ok {
			return ref, true
		}
	}
	return Ref{}, false
}

// LocalDefIDForSpan restricts the lookup to the crate that contains the
// span's file among its own defs.
func (a *Analysis) LocalDefIDForSpan(s span.Span) (Ref, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	for _, pca := range a.perCrate {
		if ref, ok := pca.LocalDefIDForSpan(s); ok {
			return ref, true
		}
	}
	return Ref{}, false
}

// WithDefs runs f against the def for id, wherever it lives.
func (a *Analysis) WithDefs(id ids.GlobalId, f func(*Def)) bool {
	return a.withCrateOwning(id, func(pca *PerCrateAnalysis) bool {
		return pca.WithDefs(id, f)
	})
}

// ForEachChild iterates id's direct children.
func (a *Analysis) ForEachChild(id ids.GlobalId, f func(ids.GlobalId)) {
	a.withCrateOwning(id, func(pca *PerCrateAnalysis) bool {
		pca.ForEachChild(id, f)
		return true
	})
}

// WithRefSpans runs f with every ref span recorded for id.
func (a *Analysis) WithRefSpans(id ids.GlobalId, f func([]span.Span)) bool {
	return a.withCrateOwning(id, func(pca *PerCrateAnalysis) bool {
		pca.WithRefSpans(id, f)
		return true
	})
}

// FindAllRefs resolves the def at span s and returns its ref spans,
// honoring includeDecl (prepend the def's own span) and forceUnique
// (reject aliased imports, and bail to empty if any recorded span at that
// def is itself ambiguous).
func (a *Analysis) FindAllRefs(s span.Span, includeDecl, forceUnique bool) []span.Span {
	ref, ok := a.DefIDForSpan(s)
	if !ok {
		return nil
	}
	id := ref.First
	if forceUnique && a.isAliasedImport(id) {
		return nil
	}

	var out []span.Span
	if includeDecl {
		a.WithDefs(id, func(d *Def) { out = append(out, d.Span) })
	}
	var spans []span.Span
	a.WithRefSpans(id, func(s []span.Span) { spans = append(spans, s...) })

	if forceUnique {
		for _, rs := range spans {
			if r, ok := a.DefIDForSpan(rs); ok && r.Kind != RefSingle {
				return nil
			}
		}
	}
	out = append(out, spans...)
	return out
}

// GlobAt returns the Glob recorded at span s, searching every crate (globs
// are keyed by their own span, not a def id, so there is no owning crate to
// narrow the search to up front).
func (a *Analysis) GlobAt(s span.Span) (Glob, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	for _, pca := range a.perCrate {
		if g, ok := pca.Globs[s]; ok {
			return g, true
		}
	}
	return Glob{}, false
}

// FindImpls returns every impl span recorded against id, across crates.
func (a *Analysis) FindImpls(id ids.GlobalId) []span.Span {
	a.mu.RLock()
	defer a.mu.RUnlock()
	var out []span.Span
	for _, pca := range a.perCrate {
		out = append(out, pca.Impls[id]...)
	}
	return out
}

// QueryDefs runs q against every crate's name index and unions the
// results into Def values.
func (a *Analysis) QueryDefs(q Query) []*Def {
	a.mu.RLock()
	defer a.mu.RUnlock()
	var out []*Def
	for _, pca := range a.perCrate {
		if pca.fst == nil {
			continue
		}
		for _, id := range pca.fst.matchIDs(q) {
			if d, ok := pca.Defs[id]; ok {
				out = append(out, d)
			}
		}
	}
	return out
}

// MatchingDefs is QueryDefs(prefix(stem)), case-insensitive.
func (a *Analysis) MatchingDefs(stem string) []*Def {
	return a.QueryDefs(Query{Kind: QueryPrefix, Text: strings.ToLower(stem)})
}

// Idents answers the overlap query against the per-file Ident index for
// the file named by file.
func (a *Analysis) Idents(file string, query span.RowColSpan) []Ident {
	a.mu.RLock()
	defer a.mu.RUnlock()
	var out []Ident
	for _, pca := range a.perCrate {
		if idx, ok := pca.Idents[file]; ok {
			out = append(out, idx.Overlapping(query)...)
		}
	}
	return out
}

// Search returns the spans of both def and refs for every def exactly
// matching name: def span first, then ref spans in insertion order.
func (a *Analysis) Search(name string) []span.Span {
	a.mu.RLock()
	defer a.mu.RUnlock()

	type hit struct {
		crateNum uint32
		id       ids.GlobalId
	}
	var hits []hit
	for _, pca := range a.perCrate {
		for _, id := range pca.DefNames[name] {
			hits = append(hits, hit{crateNum: pca.GlobalCrateNum, id: id})
		}
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].id < hits[j].id })

	var out []span.Span
	for _, h := range hits {
		for _, pca := range a.perCrate {
			if pca.GlobalCrateNum != h.crateNum {
				continue
			}
			if def, ok := pca.Defs[h.id]; ok {
				out = append(out, def.Span)
			}
			out = append(out, pca.RefSpans[h.id]...)
		}
	}
	return out
}
