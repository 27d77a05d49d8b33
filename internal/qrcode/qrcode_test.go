package qrcode

import (
	"bytes"
	"image/png"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeProducesValidPNG(t *testing.T) {
	data, err := Encode("https://sho.rt/abc123")
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)

	bounds := img.Bounds()
	assert.Equal(t, bounds.Dx(), bounds.Dy())
}

func TestEncodeRejectsOversizedURL(t *testing.T) {
	_, err := Encode("https://example.com/" + strings.Repeat("x", 200))
	assert.ErrorIs(t, err, ErrTooLong)
}

func TestRSEncodeLengthMatchesECCCount(t *testing.T) {
	ecc := rsEncode([]byte{1, 2, 3, 4, 5}, 6)
	assert.Len(t, ecc, 6)
}
