package shortcode

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// Alphabet used for generated codes. 0, O, I and l are excluded so
// codes stay unambiguous when read aloud or transcribed.
const charset = "abcdefghijkmnopqrstuvwxyzABCDEFGHJKLMNPQRSTUVWXYZ123456789"

// DefaultLength is the code length used when the caller has no
// preference.
const DefaultLength = 6

// Generator produces short codes. The URL service depends on this
// interface so tests can inject a deterministic sequence.
type Generator interface {
	Generate(length int) (string, error)
}

// CryptoRandGenerator draws characters uniformly from charset using
// crypto/rand. Codes double as capability URLs, so they must be
// unguessable.
type CryptoRandGenerator struct{}

func NewCryptoRandGenerator() *CryptoRandGenerator {
	return &CryptoRandGenerator{}
}

func (g *CryptoRandGenerator) Generate(length int) (string, error) {
	if length <= 0 {
		length = DefaultLength
	}

	code := make([]byte, length)
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", fmt.Errorf("failed to generate random number: %w", err)
		}
		code[i] = charset[n.Int64()]
	}

	return string(code), nil
}
