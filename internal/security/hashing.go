package security

import (
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// Hasher hashes and verifies knowledge-based challenge answers using bcrypt.
// Plaintext answers must never be logged or persisted.
type Hasher struct {
	Cost int
}

// NewHasher returns a Hasher with the given bcrypt cost, clamped to bcrypt's range.
// Zero or negative selects bcrypt.DefaultCost.
func NewHasher(cost int) *Hasher {
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}
	if cost < bcrypt.MinCost {
		cost = bcrypt.MinCost
	}
	if cost > bcrypt.MaxCost {
		cost = bcrypt.MaxCost
	}
	return &Hasher{Cost: cost}
}

// NormalizeAnswer canonicalizes a spoken or typed answer: trimmed, lower-cased,
// internal whitespace collapsed to single spaces.
func NormalizeAnswer(answer string) string {
	return strings.Join(strings.Fields(strings.ToLower(answer)), " ")
}

// HashAnswer normalizes answer and returns its bcrypt hash.
func (h *Hasher) HashAnswer(answer string) (string, error) {
	norm := NormalizeAnswer(answer)
	if norm == "" {
		return "", errors.New("security: empty answer")
	}
	b, err := bcrypt.GenerateFromPassword([]byte(norm), h.Cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// MatchAnswer reports whether answer (after normalization) matches the stored hash.
// A malformed hash never matches.
func (h *Hasher) MatchAnswer(hash, answer string) bool {
	norm := NormalizeAnswer(answer)
	if norm == "" || hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(norm)) == nil
}
