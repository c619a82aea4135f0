package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
)

// Postgres is the archive implementation of GameStore.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(databaseURL string) (*Postgres, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(16)
	db.SetMaxIdleConns(8)
	db.SetConnMaxLifetime(30 * time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	return &Postgres{db: db}, nil
}

func (p *Postgres) Close() error {
	if p == nil || p.db == nil {
		return nil
	}
	return p.db.Close()
}

// EnsureSchema creates the archive tables when they do not exist yet.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS games (
    game_id      TEXT PRIMARY KEY,
    game_type    TEXT NOT NULL,
    time_control TEXT NOT NULL,
    starting_fen TEXT NOT NULL,
    white_name   TEXT NOT NULL,
    black_name   TEXT NOT NULL,
    white_is_ai  BOOLEAN NOT NULL DEFAULT FALSE,
    black_is_ai  BOOLEAN NOT NULL DEFAULT FALSE,
    white_elo    INTEGER,
    black_elo    INTEGER,
    result       TEXT,
    reason       TEXT,
    pgn          TEXT,
    created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
    ended_at     TIMESTAMPTZ
);
CREATE TABLE IF NOT EXISTS game_moves (
    game_id   TEXT NOT NULL REFERENCES games(game_id) ON DELETE CASCADE,
    ply       INTEGER NOT NULL,
    san       TEXT NOT NULL,
    fen       TEXT NOT NULL,
    played_at BIGINT NOT NULL,
    side      TEXT NOT NULL,
    PRIMARY KEY (game_id, ply)
);`
	_, err := p.db.ExecContext(ctx, ddl)
	return err
}

func (p *Postgres) CreateGame(ctx context.Context, meta GameMeta) (string, error) {
	id := uuid.NewString()
	const q = `INSERT INTO games (
        game_id, game_type, time_control, starting_fen,
        white_name, black_name, white_is_ai, black_is_ai, white_elo, black_elo
      ) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`
	_, err := p.db.ExecContext(ctx, q,
		id, meta.GameType, meta.TimeControl, meta.StartingFEN,
		meta.White.Name, meta.Black.Name, meta.White.IsAI, meta.Black.IsAI,
		meta.White.Elo, meta.Black.Elo,
	)
	if err != nil {
		return "", err
	}
	return id, nil
}

// AppendMove stores one half-move. The (game_id, ply) primary key makes
// retries safe: a duplicate ply inserts nothing and returns success.
func (p *Postgres) AppendMove(ctx context.Context, id string, mv MoveRecord) error {
	const q = `INSERT INTO game_moves (game_id, ply, san, fen, played_at, side)
      VALUES ($1,$2,$3,$4,$5,$6)
      ON CONFLICT (game_id, ply) DO NOTHING`
	_, err := p.db.ExecContext(ctx, q, id, mv.Ply, mv.SAN, mv.FEN, mv.PlayedAt, mv.Side)
	return err
}

func (p *Postgres) FinishGame(ctx context.Context, id, result, reason string) error {
	meta, moves, err := p.loadForPGN(ctx, id)
	if err != nil {
		return err
	}
	now := time.Now()
	pgn := buildPGN(meta, moves, result, reason, now)
	const q = `UPDATE games SET result=$2, reason=$3, pgn=$4, ended_at=$5 WHERE game_id=$1`
	_, err = p.db.ExecContext(ctx, q, id, result, reason, pgn, now)
	return err
}

func (p *Postgres) loadForPGN(ctx context.Context, id string) (GameMeta, []MoveRecord, error) {
	var meta GameMeta
	const gq = `SELECT game_type, time_control, starting_fen, white_name, black_name
      FROM games WHERE game_id=$1`
	err := p.db.QueryRowContext(ctx, gq, id).Scan(
		&meta.GameType, &meta.TimeControl, &meta.StartingFEN,
		&meta.White.Name, &meta.Black.Name,
	)
	if err != nil {
		return meta, nil, err
	}
	const mq = `SELECT ply, san, fen, played_at, side FROM game_moves
      WHERE game_id=$1 ORDER BY ply`
	rows, err := p.db.QueryContext(ctx, mq, id)
	if err != nil {
		return meta, nil, err
	}
	defer rows.Close()
	var moves []MoveRecord
	for rows.Next() {
		var mv MoveRecord
		if err := rows.Scan(&mv.Ply, &mv.SAN, &mv.FEN, &mv.PlayedAt, &mv.Side); err != nil {
			return meta, nil, err
		}
		moves = append(moves, mv)
	}
	return meta, moves, rows.Err()
}
