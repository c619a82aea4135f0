package store

import (
	"context"
	"testing"
)

func TestMemoryAppendIdempotent(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	id, err := m.CreateGame(ctx, testMeta())
	if err != nil {
		t.Fatalf("CreateGame: %v", err)
	}
	mv := MoveRecord{Ply: 0, SAN: "e4", Side: "w"}
	for i := 0; i < 4; i++ {
		if err := m.AppendMove(ctx, id, mv); err != nil {
			t.Fatalf("AppendMove #%d: %v", i, err)
		}
	}
	doc := m.Game(id)
	if doc == nil || len(doc.Moves) != 1 {
		t.Fatalf("expected exactly one stored move, got %+v", doc)
	}

	if err := m.FinishGame(ctx, id, "1/2-1/2", "stalemate"); err != nil {
		t.Fatalf("FinishGame: %v", err)
	}
	doc = m.Game(id)
	if doc.Result != "1/2-1/2" || doc.Reason != "stalemate" {
		t.Fatalf("unexpected result: %+v", doc)
	}

	if err := m.AppendMove(ctx, "missing", mv); err == nil {
		t.Fatalf("unknown game must error")
	}
}
