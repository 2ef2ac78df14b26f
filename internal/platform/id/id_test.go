package id

import (
	"strings"
	"testing"
)

func TestNewShape(t *testing.T) {
	t.Parallel()

	value := New()
	if len(value) != 26 {
		t.Fatalf("id length = %d, want 26: %q", len(value), value)
	}
	if value != strings.ToLower(value) {
		t.Errorf("id is not lowercase: %q", value)
	}
	for _, r := range value {
		if (r < 'a' || r > 'z') && (r < '2' || r > '7') {
			t.Errorf("id contains non-base32 rune %q: %q", r, value)
		}
	}
}

func TestNewUniqueness(t *testing.T) {
	t.Parallel()

	seen := make(map[string]struct{}, 1000)
	for i := 0; i < 1000; i++ {
		value := New()
		if _, ok := seen[value]; ok {
			t.Fatalf("duplicate id after %d draws: %q", i, value)
		}
		seen[value] = struct{}{}
	}
}
