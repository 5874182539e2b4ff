package analysis

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/standardbeagle/rls-core/internal/ids"
)

// Wire shapes for a single `-Z save-analysis` JSON document, as emitted by
// rustc next to its crate output (historically under
// target/<profile>/save-analysis/<crate>-<hash>.json). These mirror the
// field names of the rls_data::Analysis the compiler serializes; they
// exist only to be converted into RawCrateAnalysis below, since the
// lowering pipeline (lower.go) is built against that shape rather than the
// wire encoding directly.

type saCrateID struct {
	Name          string   `json:"name"`
	Disambiguator []uint64 `json:"disambiguator"`
}

type saSpan struct {
	FileName    string `json:"file_name"`
	ByteStart   uint32 `json:"byte_start"`
	ByteEnd     uint32 `json:"byte_end"`
	LineStart   uint32 `json:"line_start"`
	ColumnStart uint32 `json:"column_start"`
	LineEnd     uint32 `json:"line_end"`
	ColumnEnd   uint32 `json:"column_end"`
}

type saID struct {
	CrateID uint32 `json:"krate"`
	Index   uint32 `json:"index"`
}

type saExternalCrate struct {
	FileName string    `json:"file_name"`
	Num      uint32    `json:"num"`
	ID       saCrateID `json:"id"`
}

type saDef struct {
	Kind     string  `json:"kind"`
	ID       uint32  `json:"id"`
	Span     saSpan  `json:"span"`
	Name     string  `json:"name"`
	Qualname string  `json:"qualname"`
	Value    string  `json:"value"`
	Parent   *uint32 `json:"parent"`
	Docs     string  `json:"docs"`
}

type saImport struct {
	Kind      string  `json:"kind"` // "ExternCrate", "Use", or "GlobUse"
	RefID     *saID   `json:"ref_id"`
	Span      saSpan  `json:"span"`
	Name      string  `json:"name"`
	Value     string  `json:"value"` // nonempty for GlobUse: the expanded names, joined
	AliasSpan *saSpan `json:"alias_span"`
}

type saRef struct {
	Kind  string `json:"kind"`
	Span  saSpan `json:"span"`
	RefID saID   `json:"ref_id"`
}

type saRelation struct {
	Kind string `json:"kind"` // "Impl" is the only kind lower.go consumes
	Span saSpan `json:"span"`
	From saID   `json:"from"`
	To   saID   `json:"to"`
}

type saPrelude struct {
	CrateID        saCrateID         `json:"crate_id"`
	ExternalCrates []saExternalCrate `json:"external_crates"`
}

// saAnalysis is the top-level save-analysis document.
type saAnalysis struct {
	Prelude   saPrelude    `json:"prelude"`
	Imports   []saImport   `json:"imports"`
	Defs      []saDef      `json:"defs"`
	Refs      []saRef      `json:"refs"`
	Relations []saRelation `json:"relations"`
}

func (id saID) valid() bool { return id.Index != ^uint32(0) || id.CrateID != ^uint32(0) }

func toRawSpan(s saSpan) RawSpan {
	return RawSpan{
		FilePath:  s.FileName,
		ByteStart: s.ByteStart,
		ByteEnd:   s.ByteEnd,
		LineStart: s.LineStart,
		ColStart:  s.ColumnStart,
		LineEnd:   s.LineEnd,
		ColEnd:    s.ColumnEnd,
	}
}

func toCrateID(c saCrateID) ids.CrateId {
	var disambig uint64
	for _, d := range c.Disambiguator {
		disambig ^= d
	}
	return ids.CrateId{Name: c.Name, Disambiguator: disambig}
}

// toDefKind passes the compiler's own kind string through unchanged:
// DefKind is a string type mirroring save-analysis's own vocabulary, with
// "Mod" normalized to DefKindModule (the one kind lower.go's root_id
// detection and badSpan special-case by value).
func toDefKind(kind string) DefKind {
	if kind == "Mod" {
		return DefKindModule
	}
	return DefKind(kind)
}

// ParseSaveAnalysis decodes one save-analysis JSON document (data) into a
// RawCrateAnalysis ready for LowerInto. baseDir/pathRewrite/timestamp/
// sourcePath populate the RawCrateAnalysis fields lower.go's path
// resolution and PerCrateAnalysis bookkeeping need but that aren't part of
// the wire format itself.
func ParseSaveAnalysis(data []byte, baseDir, pathRewrite string, timestamp time.Time, sourcePath string) (RawCrateAnalysis, error) {
	var doc saAnalysis
	if err := json.Unmarshal(data, &doc); err != nil {
		return RawCrateAnalysis{}, fmt.Errorf("parse save-analysis json: %w", err)
	}

	raw := RawCrateAnalysis{
		PrimaryCrateID: toCrateID(doc.Prelude.CrateID),
		Timestamp:      timestamp,
		Path:           sourcePath,
		BaseDir:        baseDir,
		PathRewrite:    pathRewrite,
	}

	for _, ext := range doc.Prelude.ExternalCrates {
		raw.ExternalCrates = append(raw.ExternalCrates, RawExternalCrate{
			LocalNum: ext.Num,
			ID:       toCrateID(ext.ID),
		})
	}

	for _, d := range doc.Defs {
		raw.Defs = append(raw.Defs, RawDef{
			ID:       d.ID,
			Kind:     toDefKind(d.Kind),
			Span:     toRawSpan(d.Span),
			Name:     d.Name,
			Qualname: d.Qualname,
			Parent:   d.Parent,
			Value:    d.Value,
			Docs:     d.Docs,
		})
	}

	for _, imp := range doc.Imports {
		ri := RawImport{Span: toRawSpan(imp.Span)}
		if imp.Kind == "GlobUse" {
			ri.IsGlob = true
			ri.Expansion = imp.Value
		} else if imp.RefID != nil && imp.RefID.valid() {
			idx := imp.RefID.Index
			ri.RefID = &idx
		}
		if imp.AliasSpan != nil {
			as := toRawSpan(*imp.AliasSpan)
			ri.Alias = &as
		}
		raw.Imports = append(raw.Imports, ri)
	}

	for _, r := range doc.Refs {
		raw.Refs = append(raw.Refs, RawRef{
			Span:     toRawSpan(r.Span),
			RefCrate: r.RefID.CrateID,
			RefID:    r.RefID.Index,
		})
	}

	for _, rel := range doc.Relations {
		if rel.Kind != "Impl" {
			continue
		}
		rr := RawRelation{Kind: RawRelationImpl, From: rel.From.Index, Span: toRawSpan(rel.Span)}
		if rel.To.valid() {
			to := rel.To.Index
			rr.To = &to
		}
		raw.Relations = append(raw.Relations, rr)
	}

	return raw, nil
}

// ParseSaveAnalysisFile reads path and parses it via ParseSaveAnalysis,
// using the file's own mtime as the RawCrateAnalysis timestamp.
func ParseSaveAnalysisFile(path, baseDir, pathRewrite string) (RawCrateAnalysis, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return RawCrateAnalysis{}, fmt.Errorf("read save-analysis file %s: %w", path, err)
	}
	info, err := os.Stat(path)
	var ts time.Time
	if err == nil {
		ts = info.ModTime()
	}
	return ParseSaveAnalysis(data, baseDir, pathRewrite, ts, path)
}
