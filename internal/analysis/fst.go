package analysis

import (
	"sort"
	"strings"

	"github.com/hbollon/go-edlib"

	"github.com/standardbeagle/rls-core/internal/ids"
)

// defFST is the finite-state-transducer-shaped name index: lowercase(name)
// -> index into a parallel payload list, with names sharing a lowercased
// key sharing one payload list (so "Foo" and "foo" group together).
// Grounded on the trigram/FST hybrid search engine (internal/search/engine.go),
// simplified here to the sorted-key + grouped-payload shape the query
// surface needs: ordered iteration for prefix queries, a full scan for
// substring/fuzzy.
type defFST struct {
	keys   []string         // sorted, deduplicated lowercased names
	values [][]ids.GlobalId // values[i] = every def id whose lowercased name == keys[i]
}

func newDefFST() *defFST { return &defFST{} }

// build sorts and groups the given (lowercaseName, id) pairs. Must be
// called once after all defs for a crate have been collected.
func (f *defFST) build(pairs []struct {
	name string
	id   ids.GlobalId
}) {
	byKey := make(map[string][]ids.GlobalId)
	for _, p := range pairs {
		byKey[p.name] = append(byKey[p.name], p.id)
	}
	f.keys = make([]string, 0, len(byKey))
	for k := range byKey {
		f.keys = append(f.keys, k)
	}
	sort.Strings(f.keys)
	f.values = make([][]ids.GlobalId, len(f.keys))
	for i, k := range f.keys {
		f.values[i] = byKey[k]
	}
}

// QueryKind selects which matching mode query_defs runs.
type QueryKind int

const (
	QueryPrefix QueryKind = iota
	QuerySubstring
	QueryFuzzy
)

// Query describes one name-search request.
type Query struct {
	Kind QueryKind
	Text string
	// MaxDistance bounds the Levenshtein distance accepted for QueryFuzzy.
	// Zero means "use the default" (2).
	MaxDistance int
}

const defaultFuzzyDistance = 2

func (f *defFST) matchIDs(q Query) []ids.GlobalId {
	needle := strings.ToLower(q.Text)
	var out []ids.GlobalId
	switch q.Kind {
	case QueryPrefix:
		i := sort.SearchStrings(f.keys, needle)
		for ; i < len(f.keys) && strings.HasPrefix(f.keys[i], needle); i++ {
			out = append(out, f.values[i]...)
		}
	case QuerySubstring:
		for i, k := range f.keys {
			if strings.Contains(k, needle) {
				out = append(out, f.values[i]...)
			}
		}
	case QueryFuzzy:
		maxDist := q.MaxDistance
		if maxDist <= 0 {
			maxDist = defaultFuzzyDistance
		}
		for i, k := range f.keys {
			if edlib.LevenshteinDistance(k, needle) <= maxDist {
				out = append(out, f.values[i]...)
			}
		}
	}
	return out
}
