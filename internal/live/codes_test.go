package live

import (
	"strings"
	"testing"
)

func TestRoomCodeShape(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		code, err := newRoomCode()
		if err != nil {
			t.Fatalf("newRoomCode: %v", err)
		}
		if len(code) != codeLength {
			t.Fatalf("expected %d chars, got %q", codeLength, code)
		}
		for _, ch := range code {
			if !strings.ContainsRune(codeAlphabet, ch) {
				t.Fatalf("character %q outside alphabet in %q", ch, code)
			}
		}
		seen[code] = true
	}
	// 200 draws from 32^6 should essentially never collide.
	if len(seen) < 190 {
		t.Fatalf("suspiciously many collisions: %d unique of 200", len(seen))
	}
}

func TestRoomCodeExcludesAmbiguousChars(t *testing.T) {
	for _, ch := range "IO01" {
		if strings.ContainsRune(codeAlphabet, ch) {
			t.Fatalf("alphabet must not contain %q", ch)
		}
	}
	if len(codeAlphabet) != 32 {
		t.Fatalf("expected 32-char alphabet, got %d", len(codeAlphabet))
	}
}
