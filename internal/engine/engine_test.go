package engine

import (
	"testing"
)

func TestApplySANFlipsTurn(t *testing.T) {
	e := New()
	if e.Turn() != White {
		t.Fatalf("expected white to move first, got %q", e.Turn())
	}
	san, err := e.ApplySAN("e4")
	if err != nil {
		t.Fatalf("ApplySAN: %v", err)
	}
	if san != "e4" {
		t.Fatalf("expected canonical SAN e4, got %q", san)
	}
	if e.Turn() != Black {
		t.Fatalf("expected black to move, got %q", e.Turn())
	}
	if e.Ply() != 1 {
		t.Fatalf("expected ply 1, got %d", e.Ply())
	}
}

func TestUCIFallback(t *testing.T) {
	e := New()
	san, err := e.ApplySAN("e2e4")
	if err != nil {
		t.Fatalf("ApplySAN: %v", err)
	}
	if san != "e4" {
		t.Fatalf("expected UCI input to canonicalise to e4, got %q", san)
	}
}

func TestIllegalMoveRejected(t *testing.T) {
	e := New()
	if _, err := e.ApplySAN("Ke2"); err == nil {
		t.Fatalf("expected illegal move to be rejected")
	}
	if _, err := e.ApplySAN(""); err == nil {
		t.Fatalf("expected empty move to be rejected")
	}
	if e.Ply() != 0 {
		t.Fatalf("rejected moves must not advance the game, ply=%d", e.Ply())
	}
}

func TestParseDoesNotMutate(t *testing.T) {
	e := New()
	mv, err := e.ParseSAN("e4")
	if err != nil {
		t.Fatalf("ParseSAN: %v", err)
	}
	if e.Ply() != 0 {
		t.Fatalf("ParseSAN must not play the move, ply=%d", e.Ply())
	}
	if err := e.Apply(mv); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if e.Ply() != 1 {
		t.Fatalf("expected ply 1 after Apply, got %d", e.Ply())
	}
}

func TestCheckmateOutcome(t *testing.T) {
	e := New()
	for _, san := range []string{"e4", "e5", "Bc4", "Nc6", "Qh5", "Nf6", "Qxf7#"} {
		if _, err := e.ApplySAN(san); err != nil {
			t.Fatalf("ApplySAN(%s): %v", san, err)
		}
	}
	done, result, reason := e.Outcome()
	if !done {
		t.Fatalf("expected terminal position")
	}
	if result != "1-0" || reason != "checkmate" {
		t.Fatalf("expected 1-0 by checkmate, got %q %q", result, reason)
	}
}

func TestSANHistory(t *testing.T) {
	e := New()
	moves := []string{"e4", "e5", "Nf3"}
	for _, san := range moves {
		if _, err := e.ApplySAN(san); err != nil {
			t.Fatalf("ApplySAN(%s): %v", san, err)
		}
	}
	got := e.SANHistory()
	if len(got) != len(moves) {
		t.Fatalf("expected %d moves, got %d", len(moves), len(got))
	}
	for i := range moves {
		if got[i] != moves[i] {
			t.Fatalf("move %d: expected %q, got %q", i, moves[i], got[i])
		}
	}
}
