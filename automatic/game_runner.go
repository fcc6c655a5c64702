// Package automatic plays computer-vs-computer m,n,k games: single games
// for testing strategies against each other, and whole matches spread
// over several threads with a per-move CSV log.
package automatic

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/domino14/mnkgame/ai"
	"github.com/domino14/mnkgame/board"
	"github.com/domino14/mnkgame/negamax"
)

// MatchConfig describes the games of a match and how the two players
// search.
type MatchConfig struct {
	Rows      int
	Cols      int
	WinLength int
	Gravity   bool

	Modes     [2]ai.Mode
	TimeLimit time.Duration
	MaxDepth  int
	Randomize bool
	// SearchThreads is passed to players in alphabeta_optimized mode.
	SearchThreads int
	// TTSizePower sizes a private transposition table per player. Zero
	// uses the shared table.
	TTSizePower int

	NumGames int
	// Threads is the number of games played at the same time.
	Threads int
	LogFile string
}

func (c MatchConfig) searchConfig() negamax.SearchConfig {
	return negamax.SearchConfig{TimeLimit: c.TimeLimit, MaxDepth: c.MaxDepth, Randomize: c.Randomize}
}

// PlayerName is how player idx (0 or 1) appears in logs and summaries.
func (c MatchConfig) PlayerName(idx int) string {
	return c.Modes[idx].String() + "-" + strconv.Itoa(idx+1)
}

// GameRecord is the outcome of one game.
type GameRecord struct {
	ID          string
	FirstPlayer int
	// Winner is 0 or 1, or -1 for a draw.
	Winner int
	Moves  int
	Nodes  uint64
	Final  string
}

// GameRunner is the master struct here for the automatic game logic.
type GameRunner struct {
	board     *board.Board
	cfg       MatchConfig
	searchCfg negamax.SearchConfig
	logchan   chan []string
	aiplayers [2]*ai.Player

	gameID      string
	firstPlayer int
	nodes       uint64
}

// NewGameRunner sets up a board and the two players. Log lines, if
// logchan is not nil, are sent there one move at a time.
func NewGameRunner(logchan chan []string, cfg MatchConfig) (*GameRunner, error) {
	b, err := board.New(cfg.Rows, cfg.Cols, cfg.WinLength, cfg.Gravity)
	if err != nil {
		return nil, err
	}
	r := &GameRunner{board: b, cfg: cfg, searchCfg: cfg.searchConfig(), logchan: logchan}
	for idx, mode := range cfg.Modes {
		p := ai.NewPlayer(mode)
		if cfg.SearchThreads > 1 {
			p.SetThreads(cfg.SearchThreads)
		}
		if cfg.TTSizePower > 0 && mode.Searches() {
			p.UseOwnTable(cfg.TTSizePower)
		}
		r.aiplayers[idx] = p
	}
	return r, nil
}

// StartGame clears the board. firstPlayer (0 or 1) takes X and moves first.
func (r *GameRunner) StartGame(gameID string, firstPlayer int) {
	r.board.Reset()
	r.gameID = gameID
	r.firstPlayer = firstPlayer
	r.nodes = 0
}

// PlayerOnTurn is the index of the player to move.
func (r *GameRunner) PlayerOnTurn() int {
	if r.board.ToMove() == board.PlayerA {
		return r.firstPlayer
	}
	return 1 - r.firstPlayer
}

func (r *GameRunner) Board() *board.Board {
	return r.board
}

// PlayBestTurn asks the player on turn for a move and plays it.
func (r *GameRunner) PlayBestTurn(ctx context.Context) error {
	playerIdx := r.PlayerOnTurn()
	res, err := r.aiplayers[playerIdx].Search(ctx, r.board, r.searchCfg)
	if err != nil {
		return err
	}
	if err := r.board.PlayMove(res.Move); err != nil {
		return fmt.Errorf("player %d chose %s: %w", playerIdx+1, res.Move, err)
	}
	r.nodes += res.Nodes

	if r.logchan != nil {
		result := ""
		if r.board.Result().IsTerminal() {
			result = r.board.Result().String()
		}
		r.logchan <- []string{
			r.gameID,
			strconv.Itoa(r.board.MoveCount()),
			r.cfg.PlayerName(playerIdx),
			res.Move.ShortDescription(),
			strconv.Itoa(int(res.Score)),
			strconv.Itoa(res.Depth),
			strconv.FormatUint(res.Nodes, 10),
			strconv.FormatFloat(res.Elapsed.Seconds(), 'f', 4, 64),
			result,
		}
	}
	return nil
}

// PlayGame plays a whole game from the empty board.
func (r *GameRunner) PlayGame(ctx context.Context, gameID string, firstPlayer int) (GameRecord, error) {
	r.StartGame(gameID, firstPlayer)
	for !r.board.Result().IsTerminal() {
		if err := ctx.Err(); err != nil {
			return GameRecord{}, err
		}
		if err := r.PlayBestTurn(ctx); err != nil {
			return GameRecord{}, err
		}
	}
	rec := GameRecord{
		ID:          gameID,
		FirstPlayer: firstPlayer,
		Winner:      -1,
		Moves:       r.board.MoveCount(),
		Nodes:       r.nodes,
		Final:       r.board.String(),
	}
	if res := r.board.Result(); res.Kind == board.Win {
		if res.Winner == board.PlayerA {
			rec.Winner = firstPlayer
		} else {
			rec.Winner = 1 - firstPlayer
		}
	}
	log.Debug().Str("game", gameID).Int("winner", rec.Winner).Int("moves", rec.Moves).
		Str("final", rec.Final).Msg("game-over")
	return rec, nil
}
