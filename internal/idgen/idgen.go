// Package idgen mints pairing request ids and claim tokens backed by nanoid,
// which draws from crypto/rand.
package idgen

import (
	"fmt"

	nanoid "github.com/matoous/go-nanoid/v2"
)

// HexAlphabet yields lowercase hexadecimal request ids.
const HexAlphabet = "0123456789abcdef"

// TokenAlphabet defines the character set for claim tokens.
const TokenAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// RequestIDLength is 32 hex characters, i.e. 128 bits.
const RequestIDLength = 32

// ClaimTokenLength is 43 base62 characters, just over 256 bits.
const ClaimTokenLength = 43

// RequestID returns a fresh 128-bit request id encoded as lowercase hex.
func RequestID() (string, error) {
	id, err := nanoid.Generate(HexAlphabet, RequestIDLength)
	if err != nil {
		return "", fmt.Errorf("idgen: %w", err)
	}
	return id, nil
}

// ClaimToken returns a fresh unpredictable claim token.
func ClaimToken() (string, error) {
	tok, err := nanoid.Generate(TokenAlphabet, ClaimTokenLength)
	if err != nil {
		return "", fmt.Errorf("idgen: %w", err)
	}
	return tok, nil
}
