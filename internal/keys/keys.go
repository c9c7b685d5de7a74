// Package keys converts public keys between hex and NIP-19 npub form.
package keys

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcutil/bech32"

	"git.home.luguber.info/inful/nostrbackup/internal/foundation/errors"
)

const npubPrefix = "npub"

// EncodeNpub encodes a 32-byte hex public key as npub.
func EncodeNpub(pubkeyHex string) (string, error) {
	data, err := hex.DecodeString(pubkeyHex)
	if err != nil {
		return "", errors.WrapError(err, errors.CategoryValidation, "public key is not valid hex").
			WithContext("pubkey", pubkeyHex).
			Build()
	}
	if len(data) != 32 {
		return "", errors.ValidationError("public key must be 32 bytes").
			WithContext("length", len(data)).
			Build()
	}
	words, err := bech32.ConvertBits(data, 8, 5, true)
	if err != nil {
		return "", errors.WrapError(err, errors.CategoryInternal, "convert bits").Build()
	}
	return bech32.Encode(npubPrefix, words)
}

// DecodeNpub decodes an npub into its hex public key.
func DecodeNpub(npub string) (string, error) {
	prefix, words, err := bech32.Decode(npub)
	if err != nil {
		return "", errors.WrapError(err, errors.CategoryValidation, "invalid bech32 string").
			WithContext("value", npub).
			Build()
	}
	if prefix != npubPrefix {
		return "", errors.ValidationError(fmt.Sprintf("expected %s prefix, got %s", npubPrefix, prefix)).Build()
	}
	data, err := bech32.ConvertBits(words, 5, 8, false)
	if err != nil {
		return "", errors.WrapError(err, errors.CategoryValidation, "invalid npub payload").Build()
	}
	if len(data) != 32 {
		return "", errors.ValidationError("npub payload must be 32 bytes").
			WithContext("length", len(data)).
			Build()
	}
	return hex.EncodeToString(data), nil
}

// ParsePubkey accepts either an npub or a hex public key and returns hex.
func ParsePubkey(value string) (string, error) {
	value = strings.TrimSpace(value)
	if strings.HasPrefix(value, npubPrefix+"1") {
		return DecodeNpub(value)
	}
	data, err := hex.DecodeString(value)
	if err != nil || len(data) != 32 {
		return "", errors.ValidationError("pubkey must be an npub or 64 hex characters").
			WithContext("value", value).
			Build()
	}
	return strings.ToLower(value), nil
}
