package randutil

import (
	"strings"
	"testing"
)

func TestString(t *testing.T) {
	for _, n := range []int{5, 12, 32} {
		s := String(n)
		if len(s) != n {
			t.Fatalf("expected length %d, got %q", n, s)
		}
		if s != strings.ToLower(s) {
			t.Fatalf("expected lowercase, got %q", s)
		}
	}
}

func TestHex(t *testing.T) {
	h := Hex(32)
	if len(h) != 64 {
		t.Fatalf("expected 64 hex characters, got %d (%q)", len(h), h)
	}
}
