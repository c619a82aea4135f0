package live

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/park285/chess-live-server/internal/engine"
)

// Time-control sentinels.
const (
	tcNone = "none"
	tcAny  = "any"
)

var tcPattern = regexp.MustCompile(`^\d+\+\d+$`)

// TimeControl is a parsed "M+S" spec, or untimed.
type TimeControl struct {
	Tag         string
	Untimed     bool
	BaseMs      int64
	IncrementMs int64
}

// ParseTimeControl parses "M+S" (minutes + increment seconds) or "none".
// The "any" wildcard is matchmaker-only and must be normalised away before a
// room is ever created.
func ParseTimeControl(tag string) (TimeControl, error) {
	tag = strings.TrimSpace(tag)
	if tag == tcNone {
		return TimeControl{Tag: tcNone, Untimed: true}, nil
	}
	if !tcPattern.MatchString(tag) {
		return TimeControl{}, errBadTimeControl
	}
	parts := strings.SplitN(tag, "+", 2)
	minutes, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return TimeControl{}, errBadTimeControl
	}
	incSec, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return TimeControl{}, errBadTimeControl
	}
	return TimeControl{
		Tag:         tag,
		BaseMs:      minutes * 60_000,
		IncrementMs: incSec * 1_000,
	}, nil
}

// queueTag validates a matchmaking tag: "M+S", "none" or "any".
func queueTag(tag string) (string, error) {
	tag = strings.TrimSpace(tag)
	if tag == tcNone || tag == tcAny {
		return tag, nil
	}
	if _, err := ParseTimeControl(tag); err != nil {
		return "", err
	}
	return tag, nil
}

// Clock tracks remaining time per side in milliseconds. Nil for untimed
// rooms. All methods assume the owner's serialization.
type Clock struct {
	WMs          int64
	BMs          int64
	IncrementMs  int64
	LastMoveAtMs int64
}

func newClock(tc TimeControl, nowMs int64) *Clock {
	if tc.Untimed {
		return nil
	}
	return &Clock{
		WMs:          tc.BaseMs,
		BMs:          tc.BaseMs,
		IncrementMs:  tc.IncrementMs,
		LastMoveAtMs: nowMs,
	}
}

func (c *Clock) side(color engine.Color) *int64 {
	if color == engine.White {
		return &c.WMs
	}
	return &c.BMs
}

// ApplyMove charges the mover for elapsed time and credits the Fischer
// increment. The opening move carries no deduction: clocks do not count
// against white until after move 1. Returns true when the mover flagged; the
// flagged clock is clamped to zero and the increment withheld.
func (c *Clock) ApplyMove(mover engine.Color, nowMs int64, firstMove bool) bool {
	if !firstMove {
		remaining := c.side(mover)
		*remaining -= nowMs - c.LastMoveAtMs
		if *remaining <= 0 {
			*remaining = 0
			return true
		}
		*remaining += c.IncrementMs
	}
	c.LastMoveAtMs = nowMs
	return false
}

// Snapshot returns the live display values: the side to move is charged for
// time elapsed since the last move, the other side reads verbatim. Neither
// value goes negative on the wire.
func (c *Clock) Snapshot(turn engine.Color, nowMs int64) *clockPayload {
	p := &clockPayload{W: c.WMs, B: c.BMs}
	live := p.W
	if turn == engine.Black {
		live = p.B
	}
	live -= nowMs - c.LastMoveAtMs
	if live < 0 {
		live = 0
	}
	if turn == engine.White {
		p.W = live
	} else {
		p.B = live
	}
	return p
}
