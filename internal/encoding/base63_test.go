package encoding

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBase63RoundTrip(t *testing.T) {
	for _, v := range []uint64{0, 1, 62, 63, 1000000, ^uint64(0)} {
		enc := Base63Encode(v)
		dec, err := Base63Decode(enc)
		require.NoError(t, err)
		require.Equal(t, v, dec)
	}
}

func TestBase63DecodeErrors(t *testing.T) {
	_, err := Base63Decode("")
	require.ErrorIs(t, err, ErrEmptyString)

	_, err = Base63Decode("!!!")
	require.ErrorIs(t, err, ErrInvalidChar)
}

func TestPackUnpackUint32Pair(t *testing.T) {
	packed := PackUint32Pair(42, 99)
	lo, hi := UnpackUint32Pair(packed)
	require.Equal(t, uint32(42), lo)
	require.Equal(t, uint32(99), hi)
}
