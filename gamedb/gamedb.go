// Package gamedb keeps finished games in a sqlite database. Identical games
// (same rules, same moves, same final position) are stored once.
package gamedb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cespare/xxhash"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"

	"github.com/domino14/mnkgame/board"
	"github.com/domino14/mnkgame/mnkp"
	"github.com/domino14/mnkgame/move"
)

var ErrNotFound = errors.New("game not found")

const schema = `
CREATE TABLE IF NOT EXISTS games (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	game_key    TEXT NOT NULL UNIQUE,
	num_rows    INTEGER NOT NULL,
	num_cols    INTEGER NOT NULL,
	win_length  INTEGER NOT NULL,
	gravity     INTEGER NOT NULL,
	moves       TEXT NOT NULL,
	from_start  INTEGER NOT NULL,
	final       TEXT NOT NULL,
	result      TEXT NOT NULL,
	player_a    TEXT NOT NULL,
	player_b    TEXT NOT NULL,
	created_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS games_created_at ON games(created_at);
`

// Game is one stored game.
type Game struct {
	ID        int64
	Key       string
	Rows      int
	Cols      int
	WinLength int
	Gravity   bool
	Moves     []move.Move
	// FromStart is false when the board was loaded from a position, so
	// Moves only covers the play after loading.
	FromStart bool
	// Final is the last position in mnkp notation.
	Final     string
	Result    string
	PlayerA   string
	PlayerB   string
	CreatedAt time.Time
}

type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path. An empty path keeps the
// database in memory.
func Open(ctx context.Context, path string) (*Store, error) {
	dsn := path
	if dsn == "" {
		dsn = ":memory:"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// Every connection to :memory: is a different database.
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	log.Debug().Str("path", dsn).Msg("gamedb-opened")
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func resultString(r board.GameResult) string {
	switch r.Kind {
	case board.Win:
		return r.Winner.String()
	case board.Draw:
		return "draw"
	}
	return ""
}

func movesString(moves []move.Move) string {
	parts := make([]string, len(moves))
	for i, m := range moves {
		parts[i] = m.ShortDescription()
	}
	return strings.Join(parts, " ")
}

func parseMoves(s string) ([]move.Move, error) {
	fields := strings.Fields(s)
	moves := make([]move.Move, len(fields))
	for i, f := range fields {
		m, err := move.FromString(f)
		if err != nil {
			return nil, err
		}
		moves[i] = m
	}
	return moves, nil
}

// GameKey identifies a game by its rules, its moves and its final position.
func GameKey(b *board.Board) string {
	return fmt.Sprintf("%016x", xxhash.Sum64String(
		fmt.Sprintf("%dx%d/k%d/g%t|%s|%s", b.Rows(), b.Cols(), b.WinLength(), b.Gravity(),
			movesString(b.History()), mnkp.ToMNKP(b, nil))))
}

// SaveGame stores the game on b. It returns the stored game and whether it
// was new; saving an identical game again returns the earlier copy.
func (s *Store) SaveGame(ctx context.Context, b *board.Board, playerA, playerB string) (Game, bool, error) {
	history := b.History()
	g := Game{
		Key:       GameKey(b),
		Rows:      b.Rows(),
		Cols:      b.Cols(),
		WinLength: b.WinLength(),
		Gravity:   b.Gravity(),
		Moves:     history,
		FromStart: len(history) == b.MoveCount(),
		Final:     mnkp.ToMNKP(b, nil),
		Result:    resultString(b.Result()),
		PlayerA:   playerA,
		PlayerB:   playerB,
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}
	res, err := s.db.ExecContext(ctx, `INSERT OR IGNORE INTO games
		(game_key, num_rows, num_cols, win_length, gravity, moves, from_start, final, result, player_a, player_b, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		g.Key, g.Rows, g.Cols, g.WinLength, g.Gravity, movesString(g.Moves), g.FromStart,
		g.Final, g.Result, g.PlayerA, g.PlayerB, g.CreatedAt.Unix())
	if err != nil {
		return Game{}, false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return Game{}, false, err
	}
	if n == 0 {
		existing, err := s.gameByKey(ctx, g.Key)
		return existing, false, err
	}
	g.ID, err = res.LastInsertId()
	if err != nil {
		return Game{}, false, err
	}
	log.Debug().Int64("id", g.ID).Str("key", g.Key).Str("result", g.Result).Msg("game-saved")
	return g, true, nil
}

const selectGame = `SELECT id, game_key, num_rows, num_cols, win_length, gravity, moves, from_start,
	final, result, player_a, player_b, created_at FROM games`

type scanner interface {
	Scan(dest ...any) error
}

func scanGame(row scanner) (Game, error) {
	var g Game
	var moves string
	var created int64
	err := row.Scan(&g.ID, &g.Key, &g.Rows, &g.Cols, &g.WinLength, &g.Gravity, &moves,
		&g.FromStart, &g.Final, &g.Result, &g.PlayerA, &g.PlayerB, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return Game{}, ErrNotFound
	}
	if err != nil {
		return Game{}, err
	}
	g.Moves, err = parseMoves(moves)
	if err != nil {
		return Game{}, fmt.Errorf("game %d: %w", g.ID, err)
	}
	g.CreatedAt = time.Unix(created, 0).UTC()
	return g, nil
}

func (s *Store) gameByKey(ctx context.Context, key string) (Game, error) {
	return scanGame(s.db.QueryRowContext(ctx, selectGame+` WHERE game_key = ?`, key))
}

// LoadGame fetches a game by id.
func (s *Store) LoadGame(ctx context.Context, id int64) (Game, error) {
	g, err := scanGame(s.db.QueryRowContext(ctx, selectGame+` WHERE id = ?`, id))
	if errors.Is(err, ErrNotFound) {
		return g, fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	return g, err
}

// ListGames returns up to limit games, newest first.
func (s *Store) ListGames(ctx context.Context, limit int) ([]Game, error) {
	rows, err := s.db.QueryContext(ctx, selectGame+` ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var games []Game
	for rows.Next() {
		g, err := scanGame(rows)
		if err != nil {
			return nil, err
		}
		games = append(games, g)
	}
	return games, rows.Err()
}

// Count returns the number of stored games.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM games`).Scan(&n)
	return n, err
}

// Replay rebuilds the board. A game saved from the start is replayed move
// by move, so it can be undone; otherwise the final position is loaded.
func (g Game) Replay() (*board.Board, error) {
	if !g.FromStart {
		p, err := mnkp.ParseMNKP(g.Final)
		if err != nil {
			return nil, err
		}
		return p.Board, nil
	}
	b, err := board.New(g.Rows, g.Cols, g.WinLength, g.Gravity)
	if err != nil {
		return nil, err
	}
	if err := b.PlayMoves(g.Moves); err != nil {
		return nil, err
	}
	return b, nil
}

func (g Game) String() string {
	res := g.Result
	if res == "" {
		res = "unfinished"
	}
	return fmt.Sprintf("#%d %dx%d k=%d %s vs %s: %s (%d moves, %s)", g.ID, g.Rows, g.Cols,
		g.WinLength, g.PlayerA, g.PlayerB, res, len(g.Moves), g.CreatedAt.Format(time.RFC3339))
}
