package store

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// PlayerMeta describes one seat at game creation time.
type PlayerMeta struct {
	Name string `json:"name"`
	IsAI bool   `json:"is_ai"`
	Elo  *int   `json:"elo"`
}

// GameMeta is the payload for CreateGame.
type GameMeta struct {
	GameType    string     `json:"game_type"`
	TimeControl string     `json:"time_control"`
	StartingFEN string     `json:"starting_fen"`
	White       PlayerMeta `json:"white"`
	Black       PlayerMeta `json:"black"`
}

// MoveRecord is one stored half-move.
type MoveRecord struct {
	Ply      int    `json:"ply"`
	SAN      string `json:"san"`
	FEN      string `json:"fen"`
	PlayedAt int64  `json:"played_at_ms"`
	Side     string `json:"side"`
}

// GameStore is the append-and-finalize persistence contract. AppendMove is
// idempotent on (id, ply); calling it again with a ply that is already stored
// succeeds without effect. All methods are best-effort from the caller's view:
// the live room state stays authoritative when a call fails.
type GameStore interface {
	CreateGame(ctx context.Context, meta GameMeta) (string, error)
	AppendMove(ctx context.Context, id string, mv MoveRecord) error
	FinishGame(ctx context.Context, id, result, reason string) error
	Close() error
}

// buildPGN renders the stored SAN list with archive headers.
func buildPGN(meta GameMeta, moves []MoveRecord, result, reason string, endedAt time.Time) string {
	var b strings.Builder
	b.WriteString("[Event \"Live game\"]\n")
	b.WriteString(fmt.Sprintf("[Date \"%04d.%02d.%02d\"]\n", endedAt.Year(), int(endedAt.Month()), endedAt.Day()))
	b.WriteString(fmt.Sprintf("[White \"%s\"]\n", sanitizePGN(meta.White.Name)))
	b.WriteString(fmt.Sprintf("[Black \"%s\"]\n", sanitizePGN(meta.Black.Name)))
	if strings.TrimSpace(meta.TimeControl) != "" {
		b.WriteString(fmt.Sprintf("[TimeControl \"%s\"]\n", sanitizePGN(meta.TimeControl)))
	}
	if strings.TrimSpace(reason) != "" {
		b.WriteString(fmt.Sprintf("[Termination \"%s\"]\n", sanitizePGN(strings.ToLower(reason))))
	}
	b.WriteString(fmt.Sprintf("[Result \"%s\"]\n\n", result))

	for i := 0; i < len(moves); i += 2 {
		turn := (i / 2) + 1
		b.WriteString(fmt.Sprintf("%d. %s", turn, strings.TrimSpace(moves[i].SAN)))
		if i+1 < len(moves) {
			b.WriteString(" ")
			b.WriteString(strings.TrimSpace(moves[i+1].SAN))
		}
		b.WriteString(" ")
	}
	b.WriteString(result)
	return b.String()
}

func sanitizePGN(s string) string {
	s = strings.ReplaceAll(s, "\\", " ")
	s = strings.ReplaceAll(s, "\"", "'")
	return strings.TrimSpace(s)
}
