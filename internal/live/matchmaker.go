package live

import (
	"sort"
)

// queueEntry is one waiting player.
type queueEntry struct {
	session string
	name    string
	conn    Transport
	tag     string
}

// Matchmaker holds per-tag FIFO queues, including the "any" wildcard queue.
// No locking of its own; the owning Server serializes all access.
type Matchmaker struct {
	queues     map[string][]*queueEntry
	defaultTag string
}

func NewMatchmaker(defaultTag string) *Matchmaker {
	return &Matchmaker{
		queues:     make(map[string][]*queueEntry),
		defaultTag: defaultTag,
	}
}

// InQueue reports whether session is waiting in any queue.
func (m *Matchmaker) InQueue(session string) bool {
	for _, q := range m.queues {
		for _, e := range q {
			if e.session == session {
				return true
			}
		}
	}
	return false
}

// Enqueue appends the entry to its tag's queue and returns the 1-based
// position.
func (m *Matchmaker) Enqueue(e *queueEntry) int {
	m.queues[e.tag] = append(m.queues[e.tag], e)
	return len(m.queues[e.tag])
}

// Leave removes the session from whichever queue holds it.
func (m *Matchmaker) Leave(session string) bool {
	for tag, q := range m.queues {
		for i, e := range q {
			if e.session == session {
				m.queues[tag] = append(q[:i], q[i+1:]...)
				if len(m.queues[tag]) == 0 {
					delete(m.queues, tag)
				}
				return true
			}
		}
	}
	return false
}

// PopOpponent selects an opponent for a joiner with the given tag and returns
// it together with the effective time control of the match.
//
// A specific tag pops its own queue first and falls back to the wildcard
// queue; the specific side's tag wins in that pairing. The wildcard scans
// tags in sorted order (deterministic) and adopts the popped queue's tag,
// defaulting when that queue is also the wildcard. Entries whose connection
// is no longer alive are discarded and selection retries.
func (m *Matchmaker) PopOpponent(tag string) (*queueEntry, string) {
	for {
		var e *queueEntry
		if tag == tcAny {
			e = m.popFirstNonEmpty()
		} else {
			if e = m.popHead(tag); e == nil {
				e = m.popHead(tcAny)
			}
		}
		if e == nil {
			return nil, ""
		}
		if !e.conn.Alive() {
			continue
		}
		effective := tag
		if tag == tcAny {
			effective = e.tag
		}
		if effective == tcAny {
			effective = m.defaultTag
		}
		return e, effective
	}
}

func (m *Matchmaker) popFirstNonEmpty() *queueEntry {
	tags := make([]string, 0, len(m.queues))
	for t := range m.queues {
		tags = append(tags, t)
	}
	sort.Strings(tags)
	for _, t := range tags {
		if e := m.popHead(t); e != nil {
			return e
		}
	}
	return nil
}

func (m *Matchmaker) popHead(tag string) *queueEntry {
	q := m.queues[tag]
	if len(q) == 0 {
		return nil
	}
	e := q[0]
	if len(q) == 1 {
		delete(m.queues, tag)
	} else {
		m.queues[tag] = q[1:]
	}
	return e
}

// Size returns the number of waiting players across all queues.
func (m *Matchmaker) Size() int {
	n := 0
	for _, q := range m.queues {
		n += len(q)
	}
	return n
}
