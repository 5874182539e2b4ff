// Package ids implements the cross-crate identifier scheme: a 64-bit
// GlobalId packing a process-wide crate number into its high 32 bits and
// a compiler-local def index into its low 32 bits, plus the
// GlobalCrateMap that hands out crate numbers.
//
// The packing itself is grounded on the composite-id codec
// (internal/idcodec/composite_id.go), which packs a FileID and a local
// symbol id into one uint64 the same way; GlobalId generalizes that to
// crate-number/local-def-index pairs.
package ids

import (
	"sync"

	"github.com/standardbeagle/rls-core/internal/encoding"
)

// GlobalId is a 64-bit, process-wide unique identifier for a definition:
// high 32 bits = global crate number, low 32 bits = compiler-local def
// index. NoID is the all-ones sentinel meaning "no id".
type GlobalId uint64

// NoID is the sentinel GlobalId meaning "absent".
const NoID GlobalId = GlobalId(^uint64(0))

// NewGlobalId packs a crate number and local def index into a GlobalId.
func NewGlobalId(crateNum uint32, localIndex uint32) GlobalId {
	return GlobalId(encoding.PackUint32Pair(localIndex, crateNum))
}

// CrateNum returns the high 32 bits: the global crate number.
func (id GlobalId) CrateNum() uint32 {
	_, hi := encoding.UnpackUint32Pair(uint64(id))
	return hi
}

// LocalIndex returns the low 32 bits: the compiler-local def index.
func (id GlobalId) LocalIndex() uint32 {
	lo, _ := encoding.UnpackUint32Pair(uint64(id))
	return lo
}

// Valid reports whether id is not the NoID sentinel.
func (id GlobalId) Valid() bool { return id != NoID }

// CrateId identifies one compiled crate instance: a name plus a
// disambiguator distinguishing e.g. the `bin` and `test` targets of the
// same package, which share a name but compile to distinct crates.
type CrateId struct {
	Name          string
	Disambiguator uint64
}

// GlobalCrateMap assigns global, never-reused crate numbers to CrateIds in
// insertion order. One instance lives for the lifetime of the process (or
// is reset wholesale on a hard reload).
type GlobalCrateMap struct {
	mu      sync.Mutex
	numbers map[CrateId]uint32
	next    uint32
}

// NewGlobalCrateMap creates an empty map; the first crate registered gets
// number 0.
func NewGlobalCrateMap() *GlobalCrateMap {
	return &GlobalCrateMap{numbers: make(map[CrateId]uint32)}
}

// Get returns the existing global number for id, or assigns and returns a
// fresh one if id has never been seen. Numbers are never reused, even
// across a crate's re-lowering.
func (m *GlobalCrateMap) Get(id CrateId) uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n, ok := m.numbers[id]; ok {
		return n
	}
	n := m.next
	m.numbers[id] = n
	m.next++
	return n
}

// Lookup returns the global number for id without assigning one.
func (m *GlobalCrateMap) Lookup(id CrateId) (uint32, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.numbers[id]
	return n, ok
}

// Len returns how many distinct crates have been registered.
func (m *GlobalCrateMap) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.numbers)
}
