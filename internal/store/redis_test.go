package store

import (
	"context"
	"fmt"
	"strings"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
)

func newTestRedis(t *testing.T) (*Redis, func()) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	r, err := NewRedis(fmt.Sprintf("redis://%s/0", mr.Addr()))
	if err != nil {
		mr.Close()
		t.Fatalf("NewRedis: %v", err)
	}
	return r, func() {
		_ = r.Close()
		mr.Close()
	}
}

func testMeta() GameMeta {
	return GameMeta{
		GameType:    "multiplayer",
		TimeControl: "5+0",
		StartingFEN: "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1",
		White:       PlayerMeta{Name: "Alice"},
		Black:       PlayerMeta{Name: "Bob"},
	}
}

func TestRedisCreateAndLoad(t *testing.T) {
	r, cleanup := newTestRedis(t)
	defer cleanup()
	ctx := context.Background()

	id, err := r.CreateGame(ctx, testMeta())
	if err != nil {
		t.Fatalf("CreateGame: %v", err)
	}
	if id == "" {
		t.Fatalf("expected non-empty id")
	}
	doc, err := r.LoadGame(ctx, id)
	if err != nil || doc == nil {
		t.Fatalf("LoadGame: %v doc=%v", err, doc)
	}
	if doc.Meta.White.Name != "Alice" || len(doc.Moves) != 0 {
		t.Fatalf("unexpected doc: %+v", doc)
	}
}

func TestRedisAppendMoveIdempotent(t *testing.T) {
	r, cleanup := newTestRedis(t)
	defer cleanup()
	ctx := context.Background()

	id, err := r.CreateGame(ctx, testMeta())
	if err != nil {
		t.Fatalf("CreateGame: %v", err)
	}
	mv := MoveRecord{Ply: 0, SAN: "e4", FEN: "fen-after-e4", PlayedAt: 1000, Side: "w"}
	for i := 0; i < 3; i++ {
		if err := r.AppendMove(ctx, id, mv); err != nil {
			t.Fatalf("AppendMove #%d: %v", i, err)
		}
	}
	doc, err := r.LoadGame(ctx, id)
	if err != nil {
		t.Fatalf("LoadGame: %v", err)
	}
	if len(doc.Moves) != 1 {
		t.Fatalf("k calls must store exactly one move, got %d", len(doc.Moves))
	}

	if err := r.AppendMove(ctx, id, MoveRecord{Ply: 5, SAN: "e5"}); err == nil {
		t.Fatalf("a ply gap must be rejected")
	}
}

func TestRedisFinishGame(t *testing.T) {
	r, cleanup := newTestRedis(t)
	defer cleanup()
	ctx := context.Background()

	id, err := r.CreateGame(ctx, testMeta())
	if err != nil {
		t.Fatalf("CreateGame: %v", err)
	}
	_ = r.AppendMove(ctx, id, MoveRecord{Ply: 0, SAN: "e4", Side: "w"})
	_ = r.AppendMove(ctx, id, MoveRecord{Ply: 1, SAN: "e5", Side: "b"})

	if err := r.FinishGame(ctx, id, "1-0", "resignation"); err != nil {
		t.Fatalf("FinishGame: %v", err)
	}
	doc, err := r.LoadGame(ctx, id)
	if err != nil {
		t.Fatalf("LoadGame: %v", err)
	}
	if doc.Result != "1-0" || doc.Reason != "resignation" || doc.EndedAt == nil {
		t.Fatalf("unexpected final doc: %+v", doc)
	}
	if !strings.Contains(doc.PGN, "1. e4 e5") || !strings.Contains(doc.PGN, "1-0") {
		t.Fatalf("unexpected PGN: %q", doc.PGN)
	}
	if !strings.Contains(doc.PGN, `[Termination "resignation"]`) {
		t.Fatalf("PGN must carry the termination header: %q", doc.PGN)
	}
}
