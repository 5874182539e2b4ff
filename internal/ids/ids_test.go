package ids

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGlobalIdPacking(t *testing.T) {
	id := NewGlobalId(3, 77)
	require.Equal(t, uint32(3), id.CrateNum())
	require.Equal(t, uint32(77), id.LocalIndex())
	require.True(t, id.Valid())
	require.False(t, NoID.Valid())
}

func TestShortCodeRoundTrip(t *testing.T) {
	id := NewGlobalId(1, 500)
	code := id.ShortCode()
	back, err := ParseShortCode(code)
	require.NoError(t, err)
	require.Equal(t, id, back)
}

func TestGlobalCrateMapAssignsOnce(t *testing.T) {
	m := NewGlobalCrateMap()
	bin := CrateId{Name: "foo", Disambiguator: 1}
	test := CrateId{Name: "foo", Disambiguator: 2}

	n1 := m.Get(bin)
	n2 := m.Get(test)
	n1again := m.Get(bin)

	require.NotEqual(t, n1, n2, "bin and test targets of same package are distinct crates")
	require.Equal(t, n1, n1again, "a crate's number never changes")
	require.Equal(t, 2, m.Len())
}
