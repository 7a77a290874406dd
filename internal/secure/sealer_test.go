package secure

import (
	"bytes"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSealer(t *testing.T, fill byte) *Sealer {
	t.Helper()
	s, err := NewSealer(bytes.Repeat([]byte{fill}, MinSecretLength))
	require.NoError(t, err)
	return s
}

func TestSealOpen(t *testing.T) {
	s := testSealer(t, 7)

	sealed, err := s.Seal("4210112345671")
	require.NoError(t, err)
	assert.NotContains(t, sealed, "4210112345671")

	plain, err := s.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, "4210112345671", plain)
}

func TestSeal_RandomNonce(t *testing.T) {
	s := testSealer(t, 7)

	a, err := s.Seal("4210112345671")
	require.NoError(t, err)
	b, err := s.Seal("4210112345671")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestOpen_WrongKey(t *testing.T) {
	sealed, err := testSealer(t, 7).Seal("4210112345671")
	require.NoError(t, err)

	_, err = testSealer(t, 8).Open(sealed)
	assert.ErrorIs(t, err, ErrOpen)
}

func TestOpen_Malformed(t *testing.T) {
	s := testSealer(t, 7)

	for _, in := range []string{"", "not base64!", base64.StdEncoding.EncodeToString([]byte("short"))} {
		_, err := s.Open(in)
		assert.ErrorIs(t, err, ErrMalformed, "input %q", in)
	}
}

func TestBlindIndex(t *testing.T) {
	s := testSealer(t, 7)

	assert.Equal(t, s.BlindIndex("4210112345671"), s.BlindIndex("4210112345671"))
	assert.NotEqual(t, s.BlindIndex("4210112345671"), s.BlindIndex("4210112345672"))
	assert.NotEqual(t, s.BlindIndex("4210112345671"), testSealer(t, 8).BlindIndex("4210112345671"))
	assert.Len(t, s.BlindIndex("x"), 64)
}

func TestNewSealer_ShortSecret(t *testing.T) {
	_, err := NewSealer([]byte("too short"))
	assert.ErrorIs(t, err, ErrSecretTooShort)

	_, err = NewSealerFromBase64("%%%")
	assert.Error(t, err)
}
