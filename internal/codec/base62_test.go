package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeKnownValues(t *testing.T) {
	assert.Equal(t, "0", Encode(0))
	assert.Equal(t, "a", Encode(10))
	assert.Equal(t, "10", Encode(62))
}

func TestEncodeCeilingIsSixSymbols(t *testing.T) {
	ceiling := uint64(1)
	for i := 0; i < 6; i++ {
		ceiling *= base
	}
	ceiling--

	encoded := Encode(ceiling)
	assert.Len(t, encoded, 6)

	decoded, err := Decode(encoded)
	require.NoError(t, err)
	assert.Equal(t, ceiling, decoded)
}

func TestRoundTrip(t *testing.T) {
	values := []uint64{0, 1, 10, 61, 62, 63, 1000, 56800235583, 1 << 40}
	for _, v := range values {
		encoded := Encode(v)
		decoded, err := Decode(encoded)
		require.NoError(t, err)
		assert.Equal(t, v, decoded, "round-trip mismatch for %d", v)
	}
}

func TestDecodeRejectsInvalidSymbols(t *testing.T) {
	_, err := Decode("abc!def")
	assert.Error(t, err)

	_, err = Decode("")
	assert.Error(t, err)
}

func TestValid(t *testing.T) {
	assert.True(t, Valid("abc123XYZ"))
	assert.False(t, Valid(""))
	assert.False(t, Valid("abc-def"))
}
