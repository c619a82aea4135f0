package msgcat

import (
	"testing"
)

func TestEmbeddedDefaults(t *testing.T) {
	c, err := New("")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	cases := map[string]string{
		"error.first_frame":          "First message must be auth with sessionId",
		"error.not_your_turn":        "Not your turn",
		"error.invalid_move":         "Invalid move",
		"error.room_not_found":       "Room not found",
		"error.room_not_accepting":   "Room is not accepting players",
		"error.already_in_room":      "You are already in this room",
		"error.not_a_player":         "You are not a player in this room",
		"error.not_in_room":          "Not in a room",
		"error.game_not_in_progress": "Game not in progress",
		"error.already_in_queue":     "Already in queue",
		"error.already_in_game":      "Already in a game",
	}
	for key, want := range cases {
		if got := c.Text(key); got != want {
			t.Fatalf("Text(%q) = %q, want %q", key, got, want)
		}
	}
}

func TestMissingKeyFallsBackToKey(t *testing.T) {
	c, err := New("")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if c.Has("error.no_such_key") {
		t.Fatalf("unexpected key")
	}
	if got := c.Text("error.no_such_key"); got != "error.no_such_key" {
		t.Fatalf("missing keys must surface as themselves, got %q", got)
	}
}
