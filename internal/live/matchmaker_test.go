package live

import (
	"testing"
)

type stubConn struct {
	alive  bool
	frames []Envelope
}

func (s *stubConn) Send(env Envelope) {
	if s.alive {
		s.frames = append(s.frames, env)
	}
}
func (s *stubConn) Alive() bool  { return s.alive }
func (s *stubConn) Close(string) { s.alive = false }

func entry(session, tag string) *queueEntry {
	return &queueEntry{session: session, name: session, conn: &stubConn{alive: true}, tag: tag}
}

func TestSpecificTagPairsFIFO(t *testing.T) {
	m := NewMatchmaker("5+0")
	m.Enqueue(entry("a", "3+2"))
	m.Enqueue(entry("b", "3+2"))

	opp, tc := m.PopOpponent("3+2")
	if opp == nil || opp.session != "a" {
		t.Fatalf("expected head of queue (a), got %+v", opp)
	}
	if tc != "3+2" {
		t.Fatalf("expected effective tc 3+2, got %q", tc)
	}
	if !m.InQueue("b") {
		t.Fatalf("b must still be queued")
	}
}

func TestWildcardAdoptsSpecificTag(t *testing.T) {
	m := NewMatchmaker("5+0")
	m.Enqueue(entry("x", "3+2"))

	opp, tc := m.PopOpponent("any")
	if opp == nil || opp.session != "x" {
		t.Fatalf("expected x, got %+v", opp)
	}
	if tc != "3+2" {
		t.Fatalf("wildcard joiner must adopt the queue's tag, got %q", tc)
	}
}

func TestSpecificBeatsWildcardOpponent(t *testing.T) {
	m := NewMatchmaker("5+0")
	m.Enqueue(entry("w", "any"))

	opp, tc := m.PopOpponent("10+5")
	if opp == nil || opp.session != "w" {
		t.Fatalf("expected wildcard opponent, got %+v", opp)
	}
	if tc != "10+5" {
		t.Fatalf("the specific side wins the pairing tag, got %q", tc)
	}
}

func TestWildcardMeetsWildcardUsesDefault(t *testing.T) {
	m := NewMatchmaker("5+0")
	m.Enqueue(entry("w", "any"))

	_, tc := m.PopOpponent("any")
	if tc != "5+0" {
		t.Fatalf("any vs any runs at the default, got %q", tc)
	}
}

func TestDeadOpponentDiscarded(t *testing.T) {
	m := NewMatchmaker("5+0")
	dead := entry("dead", "3+0")
	dead.conn.Close("gone")
	m.Enqueue(dead)
	m.Enqueue(entry("live", "3+0"))

	opp, _ := m.PopOpponent("3+0")
	if opp == nil || opp.session != "live" {
		t.Fatalf("dead entries must be discarded, got %+v", opp)
	}
	if m.InQueue("dead") {
		t.Fatalf("dead entry must not remain queued")
	}
}

func TestLeaveRemovesEntry(t *testing.T) {
	m := NewMatchmaker("5+0")
	m.Enqueue(entry("a", "3+0"))
	if !m.Leave("a") {
		t.Fatalf("expected Leave to find the entry")
	}
	if m.InQueue("a") || m.Size() != 0 {
		t.Fatalf("queue must be empty after Leave")
	}
	if m.Leave("a") {
		t.Fatalf("second Leave must be a no-op")
	}
}
