package hash

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSubject_StableAndSalted(t *testing.T) {
	h := New("salt-a")

	first := h.Subject("+15550100000")
	second := h.Subject("+15550100000")
	assert.Equal(t, first, second)
	assert.Len(t, first, 64)

	other := New("salt-b").Subject("+15550100000")
	assert.NotEqual(t, first, other)
}

func TestSubject_CanonicalizesFormatting(t *testing.T) {
	h := New("salt")
	want := h.Subject("+15550100000")

	for _, phone := range []string{
		"+1 555 010 0000",
		"+1-555-010-0000",
		"+1 (555) 010.0000",
	} {
		assert.Equal(t, want, h.Subject(phone), phone)
	}
}

func TestCanonicalize(t *testing.T) {
	assert.Equal(t, "+15550100000", Canonicalize("+1 (555) 010-0000"))
	assert.Equal(t, "15550100000", Canonicalize("1 555 010 0000"))
	// A plus anywhere but the front is junk, not a prefix.
	assert.Equal(t, "1555", Canonicalize("1+555"))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abcdefghijkl...", Truncate("abcdefghijklmnop"))
	assert.Equal(t, "short", Truncate("short"))
}
