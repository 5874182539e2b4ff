package analysis

import (
	"github.com/standardbeagle/rls-core/internal/ids"
	"github.com/standardbeagle/rls-core/internal/span"
)

// congruentDefKey identifies a def for the "congruent duplicate" check:
// same compiler-local id and same span, lowered from a different
// (non-invalidated) homonym crate.
type congruentDefKey struct {
	crateName string
	localID   uint32
	file      string
	start     span.BytePos
	end       span.BytePos
}

type congruentGlobKey struct {
	crateName string
	file      string
	start     span.BytePos
	end       span.BytePos
}

// LowerInto lowers one raw save-analysis document into a.perCrate, mutating
// a's GlobalCrateMap and per-crate stores. The set of CrateIds treated as
// about to be replaced is always just raw.PrimaryCrateID, so a crate being
// re-lowered never suppresses itself via the congruent-dup check.
func LowerInto(a *Analysis, raw RawCrateAnalysis) error {
	return lowerWithInvalidation(a, raw, map[ids.CrateId]struct{}{raw.PrimaryCrateID: {}})
}

func lowerWithInvalidation(a *Analysis, raw RawCrateAnalysis, invalidating map[ids.CrateId]struct{}) error {
	globalNum := a.crateMap.Get(raw.PrimaryCrateID)

	// Crate-number mapping: slot 0 is this crate; slots from 1 map
	// external_crates by local number, sorted as encountered.
	localToGlobal := map[uint32]uint32{0: globalNum}
	for _, ext := range raw.ExternalCrates {
		localToGlobal[ext.LocalNum] = a.crateMap.Get(ext.ID)
	}

	pca := NewPerCrateAnalysis(globalNum)
	pca.Timestamp = raw.Timestamp
	pca.Path = raw.Path

	existingCongruentDefs := congruentDefSet(a, invalidating)
	existingCongruentGlobs := congruentGlobSet(a, invalidating)

	// Step 1: defs.
	localIDToGlobal := make(map[uint32]ids.GlobalId, len(raw.Defs))
	for _, rd := range raw.Defs {
		if badSpan(rd.Span, rd.Kind) {
			continue
		}
		file := raw.resolvePath(rd.Span.FilePath)
		key := congruentDefKey{
			crateName: raw.PrimaryCrateID.Name,
			localID:   rd.ID,
			file:      file,
			start:     span.BytePos(rd.Span.ByteStart),
			end:       span.BytePos(rd.Span.ByteEnd),
		}
		if existingCongruentDefs[key] {
			continue
		}

		id := ids.NewGlobalId(globalNum, rd.ID)
		localIDToGlobal[rd.ID] = id
		s := span.Span{FilePath: file, Range: span.ByteRange{Start: span.BytePos(rd.Span.ByteStart), End: span.BytePos(rd.Span.ByteEnd)}}

		var parent *ids.GlobalId
		if rd.Parent != nil {
			if pid, ok := localIDToGlobal[*rd.Parent]; ok {
				parent = &pid
			}
		}

		def := &Def{
			ID:       id,
			Kind:     rd.Kind,
			Span:     s,
			Name:     rd.Name,
			Qualname: rd.Qualname,
			Parent:   parent,
			Value:    rd.Value,
			Docs:     rd.Docs,
		}
		pca.Defs[id] = def
		pca.DefsPerFile[file] = append(pca.DefsPerFile[file], id)
		pca.DefNames[rd.Name] = append(pca.DefNames[rd.Name], id)
		if rd.Span.LineStart > 0 {
			idx := pca.identIndexFor(file)
			idx.Insert(rd.Span.LineStart-1, rd.Span.ColStart-1, rd.Span.ColEnd-1, Ident{Span: s.Range, ID: id, Kind: IdentDef})
		}

		if rd.Kind == DefKindModule && rd.Name == "" && pca.RootID == nil {
			rootID := id
			pca.RootID = &rootID
		}
		if parent != nil {
			if pca.Children[*parent] == nil {
				pca.Children[*parent] = make(map[ids.GlobalId]struct{})
			}
			pca.Children[*parent][id] = struct{}{}
		}
	}

	// Step 2: imports (globs and ref/alias imports).
	for _, imp := range raw.Imports {
		file := raw.resolvePath(imp.Span.FilePath)
		s := rawSpanToSpan(imp.Span, file)
		if imp.IsGlob {
			key := congruentGlobKey{crateName: raw.PrimaryCrateID.Name, file: file, start: s.Range.Start, end: s.Range.End}
			if existingCongruentGlobs[key] {
				continue
			}
			pca.Globs[s] = Glob{Span: s, ExpansionText: imp.Expansion}
			continue
		}
		if imp.RefID == nil {
			continue
		}
		targetID := ids.NewGlobalId(globalNum, *imp.RefID)
		if _, ok := localIDToGlobal[*imp.RefID]; !ok {
			if _, ok2 := lookupCrossCrateDef(a, targetID); !ok2 {
				continue
			}
		}
		recordRef(pca, s, targetID)
		if imp.Alias != nil {
			aliasFile := raw.resolvePath(imp.Alias.FilePath)
			aliasSpan := rawSpanToSpan(*imp.Alias, aliasFile)
			recordRef(pca, aliasSpan, targetID)
			a.MarkAliasedImport(targetID)
		}
	}

	// Step 3: refs.
	for _, r := range raw.Refs {
		global, ok := localToGlobal[r.RefCrate]
		if !ok {
			continue
		}
		targetID := ids.NewGlobalId(global, r.RefID)
		if global == globalNum {
			if _, ok := localIDToGlobal[r.RefID]; !ok {
				continue
			}
		} else if _, ok := lookupCrossCrateDef(a, targetID); !ok {
			continue
		}
		file := raw.resolvePath(r.Span.FilePath)
		s := rawSpanToSpan(r.Span, file)
		recordRef(pca, s, targetID)

		if r.Span.LineStart > 0 {
			idx := pca.identIndexFor(file)
			idx.Insert(r.Span.LineStart-1, r.Span.ColStart-1, r.Span.ColEnd-1, Ident{Span: s.Range, ID: targetID, Kind: IdentRef})
		}
	}

	// Step 4: impls.
	for _, rel := range raw.Relations {
		if rel.Kind != RawRelationImpl {
			continue
		}
		fromID, ok := localIDToGlobal[rel.From]
		if !ok {
			continue
		}
		file := raw.resolvePath(rel.Span.FilePath)
		s := rawSpanToSpan(rel.Span, file)
		pca.Impls[fromID] = append(pca.Impls[fromID], s)
		if rel.To != nil {
			toID := ids.NewGlobalId(globalNum, *rel.To)
			if toID != ids.NoID {
				pca.Impls[toID] = append(pca.Impls[toID], s)
			}
		}
	}

	// Step 5: parent fixup -- save-analysis sometimes omits parent links;
	// walk Children and set any missing Def.Parent from it.
	for parent, children := range pca.Children {
		p := parent
		for child := range children {
			if d, ok := pca.Defs[child]; ok && d.Parent == nil {
				d.Parent = &p
			}
		}
	}

	pca.buildFST()
	a.Update(raw.PrimaryCrateID, pca)
	return nil
}

func rawSpanToSpan(rs RawSpan, file string) span.Span {
	return span.Span{FilePath: file, Range: span.ByteRange{Start: span.BytePos(rs.ByteStart), End: span.BytePos(rs.ByteEnd)}}
}

func recordRef(pca *PerCrateAnalysis, s span.Span, id ids.GlobalId) {
	existing, had := pca.DefIDForSpan[s]
	var newRef Ref
	if had {
		newRef = addID(&existing, id)
	} else {
		newRef = addID(nil, id)
	}
	pca.DefIDForSpan[s] = newRef
	pca.RefSpans[id] = append(pca.RefSpans[id], s)
}

func lookupCrossCrateDef(a *Analysis, id ids.GlobalId) (*Def, bool) {
	var found *Def
	a.withCrateOwning(id, func(pca *PerCrateAnalysis) bool {
		if d, ok := pca.Defs[id]; ok {
			found = d
			return true
		}
		return false
	})
	return found, found != nil
}

// congruentDefSet computes, over every already-lowered crate not in
// invalidating, the set of (local id, span) pairs available to suppress a
// duplicate lowering ("congruent def" rule).
func congruentDefSet(a *Analysis, invalidating map[ids.CrateId]struct{}) map[congruentDefKey]bool {
	out := make(map[congruentDefKey]bool)
	a.mu.RLock()
	defer a.mu.RUnlock()
	for crateID, pca := range a.perCrate {
		if _, skip := invalidating[crateID]; skip {
			continue
		}
		for id, def := range pca.Defs {
			out[congruentDefKey{
				crateName: crateID.Name,
				localID:   id.LocalIndex(),
				file:      def.Span.FilePath,
				start:     def.Span.Range.Start,
				end:       def.Span.Range.End,
			}] = true
		}
	}
	return out
}

func congruentGlobSet(a *Analysis, invalidating map[ids.CrateId]struct{}) map[congruentGlobKey]bool {
	out := make(map[congruentGlobKey]bool)
	a.mu.RLock()
	defer a.mu.RUnlock()
	for crateID, pca := range a.perCrate {
		if _, skip := invalidating[crateID]; skip {
			continue
		}
		for s := range pca.Globs {
			out[congruentGlobKey{crateName: crateID.Name, file: s.FilePath, start: s.Range.Start, end: s.Range.End}] = true
		}
	}
	return out
}
