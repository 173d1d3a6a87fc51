// Package hash derives stable pseudonymous identifiers for phone
// numbers. Raw numbers are never stored and never logged; every layer
// above the webhook sees only the hash.
package hash

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Hasher produces salted SHA-256 subject hashes.
type Hasher struct {
	salt string
}

// New creates a hasher with the given salt. The salt must stay constant
// for the life of a deployment or subjects lose their session history.
func New(salt string) *Hasher {
	return &Hasher{salt: salt}
}

// Subject hashes a phone number into a subject identifier. The number is
// canonicalized first so "+1 555 010 0000" and "+15550100000" map to the
// same subject.
func (h *Hasher) Subject(phone string) string {
	canonical := Canonicalize(phone)
	sum := sha256.Sum256([]byte(h.salt + canonical))
	return hex.EncodeToString(sum[:])
}

// Canonicalize strips spaces, dashes, dots, and parentheses, keeping the
// leading + and digits of an E.164 number.
func Canonicalize(phone string) string {
	var b strings.Builder
	for i, r := range phone {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '+' && i == 0:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Truncate shortens a hash for log lines. Twelve hex characters is enough
// to correlate entries without reproducing the full identifier.
func Truncate(subjectHash string) string {
	if len(subjectHash) <= 12 {
		return subjectHash
	}
	return subjectHash[:12] + "..."
}
