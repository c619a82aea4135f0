package engine

import (
	"strings"

	nchess "github.com/corentings/chess/v2"
)

// Color identifies a chess side on the wire.
type Color string

const (
	White Color = "w"
	Black Color = "b"
)

// Opponent returns the other side.
func (c Color) Opponent() Color {
	if c == White {
		return Black
	}
	return White
}

// Errors
type staticErr string

func (e staticErr) Error() string { return string(e) }

const ErrIllegalMove = staticErr("illegal move")

// Engine wraps a single authoritative game position. It validates SAN input,
// tracks the move list, and reports terminal states. Not safe for concurrent
// use; callers serialize access.
type Engine struct {
	game *nchess.Game
}

// New returns an engine at the standard starting position.
func New() *Engine {
	return &Engine{game: nchess.NewGame()}
}

// Turn returns the side to move.
func (e *Engine) Turn() Color {
	if e.game.Position().Turn() == nchess.White {
		return White
	}
	return Black
}

// FEN returns the current position.
func (e *Engine) FEN() string { return e.game.FEN() }

// Ply returns the number of half-moves played.
func (e *Engine) Ply() int { return len(e.game.Moves()) }

// SANHistory returns the canonical SAN of every move played, in order.
func (e *Engine) SANHistory() []string {
	moves := e.game.Moves()
	positions := e.game.Positions()
	out := make([]string, 0, len(moves))
	notation := nchess.AlgebraicNotation{}
	for i, mv := range moves {
		out = append(out, notation.Encode(positions[i], mv))
	}
	return out
}

// Move is a decoded, not-yet-played move bound to the position it was
// decoded against.
type Move struct {
	mv  *nchess.Move
	san string
}

// SAN returns the canonical SAN encoding of the move.
func (m *Move) SAN() string { return m.san }

// ParseSAN decodes a move given in SAN (UCI accepted as a fallback) against
// the current position without playing it.
func (e *Engine) ParseSAN(input string) (*Move, error) {
	text := strings.TrimSpace(input)
	if text == "" {
		return nil, ErrIllegalMove
	}
	pos := e.game.Position()
	notationSAN := nchess.AlgebraicNotation{}
	move, err := notationSAN.Decode(pos, text)
	if err != nil {
		move, err = nchess.UCINotation{}.Decode(pos, strings.ToLower(text))
		if err != nil {
			return nil, ErrIllegalMove
		}
	}
	return &Move{mv: move, san: notationSAN.Encode(pos, move)}, nil
}

// Apply plays a previously parsed move. After the move, claimable draws
// (threefold repetition, fifty-move rule) are claimed automatically so
// Outcome reflects them.
func (e *Engine) Apply(m *Move) error {
	if err := e.game.Move(m.mv, nil); err != nil {
		return ErrIllegalMove
	}
	e.claimDraws()
	return nil
}

// ApplySAN parses and plays a move in one step. Returns the canonical SAN of
// the move actually played.
func (e *Engine) ApplySAN(input string) (string, error) {
	m, err := e.ParseSAN(input)
	if err != nil {
		return "", err
	}
	if err := e.Apply(m); err != nil {
		return "", err
	}
	return m.san, nil
}

// claimDraws converts claimable draw conditions into a terminal outcome.
// Stalemate, insufficient material, fivefold and 75-move are already automatic
// in the underlying library.
func (e *Engine) claimDraws() {
	if e.game.Outcome() != nchess.NoOutcome {
		return
	}
	for _, method := range []nchess.Method{nchess.ThreefoldRepetition, nchess.FiftyMoveRule} {
		for _, eligible := range e.game.EligibleDraws() {
			if eligible == method {
				_ = e.game.Draw(method)
				return
			}
		}
	}
}

// Outcome reports whether the position is terminal, and if so the result
// ("1-0", "0-1", "1/2-1/2") and reason (checkmate, stalemate, repetition,
// insufficient, fifty-move).
func (e *Engine) Outcome() (bool, string, string) {
	switch e.game.Outcome() {
	case nchess.WhiteWon:
		return true, "1-0", reasonFromMethod(e.game.Method())
	case nchess.BlackWon:
		return true, "0-1", reasonFromMethod(e.game.Method())
	case nchess.Draw:
		return true, "1/2-1/2", reasonFromMethod(e.game.Method())
	default:
		return false, "", ""
	}
}

func reasonFromMethod(method nchess.Method) string {
	switch method {
	case nchess.Checkmate:
		return "checkmate"
	case nchess.Stalemate:
		return "stalemate"
	case nchess.ThreefoldRepetition, nchess.FivefoldRepetition:
		return "repetition"
	case nchess.InsufficientMaterial:
		return "insufficient"
	case nchess.FiftyMoveRule, nchess.SeventyFiveMoveRule:
		return "fifty-move"
	default:
		return strings.ToLower(method.String())
	}
}
