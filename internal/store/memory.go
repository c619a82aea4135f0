package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Memory is a map-backed GameStore for tests and storeless deployments.
type Memory struct {
	mu    sync.Mutex
	games map[string]*gameDoc
}

func NewMemory() *Memory {
	return &Memory{games: make(map[string]*gameDoc)}
}

func (m *Memory) Close() error { return nil }

func (m *Memory) CreateGame(_ context.Context, meta GameMeta) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc := &gameDoc{
		ID:        uuid.NewString(),
		Meta:      meta,
		Moves:     []MoveRecord{},
		CreatedAt: time.Now(),
	}
	m.games[doc.ID] = doc
	return doc.ID, nil
}

func (m *Memory) AppendMove(_ context.Context, id string, mv MoveRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.games[id]
	if !ok {
		return fmt.Errorf("game not found")
	}
	if mv.Ply < len(doc.Moves) {
		return nil
	}
	if mv.Ply > len(doc.Moves) {
		return fmt.Errorf("move gap: have %d plies, got ply %d", len(doc.Moves), mv.Ply)
	}
	doc.Moves = append(doc.Moves, mv)
	return nil
}

func (m *Memory) FinishGame(_ context.Context, id, result, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.games[id]
	if !ok {
		return fmt.Errorf("game not found")
	}
	now := time.Now()
	doc.Result = result
	doc.Reason = reason
	doc.EndedAt = &now
	doc.PGN = buildPGN(doc.Meta, doc.Moves, result, reason, now)
	return nil
}

// Game returns a copy of the stored document, or nil when absent.
func (m *Memory) Game(id string) *gameDoc {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.games[id]
	if !ok {
		return nil
	}
	cp := *doc
	cp.Moves = append([]MoveRecord(nil), doc.Moves...)
	return &cp
}
