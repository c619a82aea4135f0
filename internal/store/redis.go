package store

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const ttlGame = 24 * time.Hour

// gameDoc is the JSON document stored under game:<id>.
type gameDoc struct {
	ID        string       `json:"id"`
	Meta      GameMeta     `json:"meta"`
	Moves     []MoveRecord `json:"moves"`
	Result    string       `json:"result,omitempty"`
	Reason    string       `json:"reason,omitempty"`
	PGN       string       `json:"pgn,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
	EndedAt   *time.Time   `json:"ended_at,omitempty"`
}

// Redis is a GameStore backed by JSON game documents with a TTL, for
// deployments that run without the relational archive.
type Redis struct {
	rdb *redis.Client
}

func NewRedis(redisURL string) (*Redis, error) {
	if strings.TrimSpace(redisURL) == "" {
		return nil, fmt.Errorf("REDIS_URL is required")
	}
	opts, err := parseRedisURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Redis{rdb: rdb}, nil
}

func (r *Redis) Close() error {
	if r == nil || r.rdb == nil {
		return nil
	}
	return r.rdb.Close()
}

func gameKey(id string) string { return "game:" + strings.TrimSpace(id) }

func (r *Redis) CreateGame(ctx context.Context, meta GameMeta) (string, error) {
	doc := &gameDoc{
		ID:        uuid.NewString(),
		Meta:      meta,
		Moves:     []MoveRecord{},
		CreatedAt: time.Now(),
	}
	if err := r.save(ctx, doc); err != nil {
		return "", err
	}
	return doc.ID, nil
}

// AppendMove appends under a WATCH transaction so a concurrent retry cannot
// double-store a ply. A ply that is already present is treated as success.
func (r *Redis) AppendMove(ctx context.Context, id string, mv MoveRecord) error {
	key := gameKey(id)
	return r.rdb.Watch(ctx, func(tx *redis.Tx) error {
		doc, err := loadDoc(ctx, tx, key)
		if err != nil {
			return err
		}
		if mv.Ply < len(doc.Moves) {
			return nil
		}
		if mv.Ply > len(doc.Moves) {
			return fmt.Errorf("move gap: have %d plies, got ply %d", len(doc.Moves), mv.Ply)
		}
		doc.Moves = append(doc.Moves, mv)
		return saveTx(ctx, tx, key, doc)
	}, key)
}

func (r *Redis) FinishGame(ctx context.Context, id, result, reason string) error {
	key := gameKey(id)
	return r.rdb.Watch(ctx, func(tx *redis.Tx) error {
		doc, err := loadDoc(ctx, tx, key)
		if err != nil {
			return err
		}
		now := time.Now()
		doc.Result = result
		doc.Reason = reason
		doc.EndedAt = &now
		doc.PGN = buildPGN(doc.Meta, doc.Moves, result, reason, now)
		return saveTx(ctx, tx, key, doc)
	}, key)
}

// LoadGame returns the stored document, or nil when absent.
func (r *Redis) LoadGame(ctx context.Context, id string) (*gameDoc, error) {
	raw, err := r.rdb.Get(ctx, gameKey(id)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var doc gameDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

func (r *Redis) save(ctx context.Context, doc *gameDoc) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	return r.rdb.Set(ctx, gameKey(doc.ID), raw, ttlGame).Err()
}

func loadDoc(ctx context.Context, tx *redis.Tx, key string) (*gameDoc, error) {
	raw, err := tx.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, fmt.Errorf("game not found")
	}
	if err != nil {
		return nil, err
	}
	var doc gameDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

func saveTx(ctx context.Context, tx *redis.Tx, key string, doc *gameDoc) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	pipe := tx.TxPipeline()
	pipe.Set(ctx, key, raw, ttlGame)
	_, err = pipe.Exec(ctx)
	return err
}

func parseRedisURL(raw string) (*redis.Options, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "redis" && u.Scheme != "rediss" {
		return nil, fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	db := 0
	if p := strings.TrimPrefix(u.Path, "/"); p != "" {
		if n, err := strconv.Atoi(p); err == nil {
			db = n
		}
	}
	pass, _ := u.User.Password()
	return &redis.Options{Addr: u.Host, Password: pass, DB: db}, nil
}
