package keys

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/nostrbackup/internal/foundation/errors"
)

// Test vector from NIP-19.
const (
	vectorHex  = "7e7e9c42a91bfef19fa929e5fda1b72e0ebc1a4c1141673e2794234d86addf4e"
	vectorNpub = "npub10elfcs4fr0l0r8af98jlmgdh9c8tcxjvz9qkw038js35mp4dma8qzvjptg"
)

func TestEncodeNpub(t *testing.T) {
	npub, err := EncodeNpub(vectorHex)
	require.NoError(t, err)
	assert.Equal(t, vectorNpub, npub)
}

func TestDecodeNpub(t *testing.T) {
	hexKey, err := DecodeNpub(vectorNpub)
	require.NoError(t, err)
	assert.Equal(t, vectorHex, hexKey)
}

func TestParsePubkey(t *testing.T) {
	fromNpub, err := ParsePubkey(" " + vectorNpub + " ")
	require.NoError(t, err)
	assert.Equal(t, vectorHex, fromNpub)

	fromHex, err := ParsePubkey(vectorHex)
	require.NoError(t, err)
	assert.Equal(t, vectorHex, fromHex)
}

func TestInvalidInputsAreValidationErrors(t *testing.T) {
	for _, fn := range []func() error{
		func() error { _, err := EncodeNpub("zz"); return err },
		func() error { _, err := EncodeNpub("abcd"); return err },
		func() error { _, err := DecodeNpub("npub1invalid"); return err },
		func() error { _, err := ParsePubkey("not-a-key"); return err },
	} {
		err := fn()
		require.Error(t, err)
		assert.True(t, errors.HasCategory(err, errors.CategoryValidation), err.Error())
	}
}
