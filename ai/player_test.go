package ai

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/matryer/is"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/domino14/mnkgame/board"
	"github.com/domino14/mnkgame/move"
	"github.com/domino14/mnkgame/negamax"
)

func TestMain(m *testing.M) {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	os.Exit(m.Run())
}

func TestParseMode(t *testing.T) {
	for i, name := range ModeNames() {
		m, err := ParseMode(name)
		assert.NoError(t, err)
		assert.Equal(t, Mode(i), m)
		assert.Equal(t, name, m.String())
	}
	m, err := ParseMode("  AlphaBeta_Hashing ")
	assert.NoError(t, err)
	assert.Equal(t, ModeAlphaBetaHashing, m)

	_, err = ParseMode("minimax")
	assert.ErrorIs(t, err, ErrUnknownMode)
	assert.Equal(t, "Mode(99)", Mode(99).String())
}

func TestSearches(t *testing.T) {
	is := is.New(t)
	is.True(!ModeRandom.Searches())
	is.True(!ModeRandomWeighted.Searches())
	is.True(!ModeFirstSorted.Searches())
	is.True(ModeNegamax.Searches())
	is.True(ModeAlphaBetaOptimized.Searches())
}

func newBoard(t *testing.T, rows, cols, k int, gravity bool) *board.Board {
	t.Helper()
	b, err := board.New(rows, cols, k, gravity)
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func TestRandomModesReturnLegalMoves(t *testing.T) {
	is := is.New(t)
	for _, mode := range []Mode{ModeRandom, ModeRandomWeighted, ModeFirstSorted} {
		for _, gravity := range []bool{false, true} {
			b := newBoard(t, 5, 6, 4, gravity)
			p := NewPlayer(mode)
			for !b.Result().IsTerminal() {
				m, err := p.ChooseMove(context.Background(), b, negamax.SearchConfig{})
				is.NoErr(err)
				is.NoErr(b.PlayMove(m))
			}
		}
	}
}

func TestFirstSortedTakesCenter(t *testing.T) {
	is := is.New(t)
	p := NewPlayer(ModeFirstSorted)
	m, err := p.ChooseMove(context.Background(), newBoard(t, 5, 5, 4, false), negamax.SearchConfig{})
	is.NoErr(err)
	is.Equal(m, move.At(2, 2))

	m, err = p.ChooseMove(context.Background(), newBoard(t, 6, 7, 4, true), negamax.SearchConfig{})
	is.NoErr(err)
	is.Equal(m, move.At(5, 3))
}

func TestRandomWeightedFavorsCenter(t *testing.T) {
	is := is.New(t)
	b := newBoard(t, 5, 5, 4, false)
	p := NewPlayer(ModeRandomWeighted)
	counts := map[move.Move]int{}
	const n = 4000
	for i := 0; i < n; i++ {
		m, err := p.ChooseMove(context.Background(), b, negamax.SearchConfig{})
		is.NoErr(err)
		counts[m]++
	}
	// The center should get about half the picks, the next cell about a
	// quarter.
	sorted := b.SortedMoves()
	is.True(counts[sorted[0]] > n*4/10)
	is.True(counts[sorted[0]] < n*6/10)
	is.True(counts[sorted[1]] > n*15/100)
	is.True(counts[sorted[1]] < n*35/100)
}

func TestWeightedIndexInRange(t *testing.T) {
	is := is.New(t)
	for i := 0; i < 1000; i++ {
		is.Equal(weightedIndex(1), 0)
		idx := weightedIndex(3)
		is.True(idx >= 0 && idx < 3)
	}
}

func TestNoMoveOnFinishedGame(t *testing.T) {
	is := is.New(t)
	b := newBoard(t, 3, 3, 3, false)
	is.NoErr(b.PlayMoves([]move.Move{
		move.At(0, 0), move.At(1, 0), move.At(0, 1), move.At(1, 1), move.At(0, 2)}))
	for _, mode := range []Mode{ModeRandom, ModeAlphaBeta} {
		_, err := NewPlayer(mode).ChooseMove(context.Background(), b, negamax.SearchConfig{})
		is.True(errors.Is(err, negamax.ErrSearchPrecondition))
	}
}

func TestModesConfigureSolver(t *testing.T) {
	is := is.New(t)
	// With no pruning and no table, the depth-limited score of the plain
	// mode must match alpha-beta exactly.
	b := newBoard(t, 4, 4, 4, false)
	is.NoErr(b.PlayMoves([]move.Move{move.At(1, 1), move.At(2, 2), move.At(0, 3)}))
	cfg := negamax.SearchConfig{TimeLimit: time.Minute, MaxDepth: 3}
	var scores []int32
	for _, mode := range []Mode{ModeNegamax, ModeAlphaBeta, ModePVS} {
		res, err := NewPlayer(mode).Search(context.Background(), b, cfg)
		is.NoErr(err)
		is.Equal(res.Depth, 3)
		scores = append(scores, res.Score)
	}
	is.Equal(scores[0], scores[1])
	is.Equal(scores[0], scores[2])
}

func TestOneShotChooseMove(t *testing.T) {
	is := is.New(t)
	b := newBoard(t, 3, 3, 3, false)
	is.NoErr(b.PlayMoves([]move.Move{move.At(0, 0), move.At(1, 0), move.At(0, 1), move.At(1, 1)}))
	m, err := ChooseMove(context.Background(), b, ModeAlphaBeta, 2.0)
	is.NoErr(err)
	is.Equal(m, move.At(0, 2))
}

// playGame has the searching player take side ai against a uniformly
// random opponent.
func playGame(t *testing.T, searcher *Player, ai board.Player) board.GameResult {
	t.Helper()
	b := newBoard(t, 3, 3, 3, false)
	opp := NewPlayer(ModeRandom)
	cfg := negamax.SearchConfig{TimeLimit: 30 * time.Second}
	for !b.Result().IsTerminal() {
		p := opp
		if b.ToMove() == ai {
			p = searcher
		}
		m, err := p.ChooseMove(context.Background(), b, cfg)
		if err != nil {
			t.Fatal(err)
		}
		if err := b.PlayMove(m); err != nil {
			t.Fatal(err)
		}
	}
	return b.Result()
}

func TestNeverLosesToRandomTicTacToe(t *testing.T) {
	for _, mode := range []Mode{ModeNegamax, ModeAlphaBeta, ModePVS, ModeAlphaBetaHashing, ModeAlphaBetaOptimized} {
		t.Run(mode.String(), func(t *testing.T) {
			is := is.New(t)
			searcher := NewPlayer(mode)
			searcher.UseOwnTable(16)
			for i := 0; i < 6; i++ {
				for _, side := range []board.Player{board.PlayerA, board.PlayerB} {
					res := playGame(t, searcher, side)
					is.True(res.Kind != board.Win || res.Winner == side)
				}
			}
		})
	}
}

func TestOptimizedWithThreads(t *testing.T) {
	is := is.New(t)
	p := NewPlayer(ModeAlphaBetaOptimized)
	p.UseOwnTable(16)
	p.SetThreads(3)
	b := newBoard(t, 3, 3, 3, false)
	is.NoErr(b.PlayMoves([]move.Move{move.At(0, 0), move.At(1, 1), move.At(0, 1)}))
	res, err := p.Search(context.Background(), b, negamax.SearchConfig{TimeLimit: 10 * time.Second})
	is.NoErr(err)
	is.Equal(res.Move, move.At(0, 2))
	is.Equal(p.LastResult().Move, res.Move)
}
