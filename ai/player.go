package ai

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"lukechampine.com/frand"

	"github.com/domino14/mnkgame/board"
	"github.com/domino14/mnkgame/move"
	"github.com/domino14/mnkgame/negamax"
)

// Player chooses moves for one side. It keeps its solver, and so the
// solver's transposition table, from one move to the next.
type Player struct {
	mode    Mode
	solver  *negamax.Solver
	threads int

	lastResult negamax.Result
}

func NewPlayer(mode Mode) *Player {
	p := &Player{mode: mode, solver: negamax.NewSolver(), threads: 1}
	p.configure()
	return p
}

func (p *Player) configure() {
	f := p.mode.features()
	s := p.solver
	s.SetPruning(f.pruning)
	s.SetPVSOptim(f.pvs)
	s.SetTranspositionTableOptim(f.ttable)
	s.SetKillerPlayOptim(f.killers)
	s.SetIterativeDeepening(f.iterativeDeepening)
	if f.lazySMP {
		s.SetThreads(p.threads)
	} else {
		s.SetThreads(1)
	}
}

func (p *Player) Mode() Mode {
	return p.mode
}

func (p *Player) SetMode(m Mode) {
	p.mode = m
	p.configure()
}

// SetThreads sets the number of search threads. Only the optimized mode
// uses more than one.
func (p *Player) SetThreads(t int) {
	p.threads = max(t, 1)
	p.configure()
}

// UseOwnTable gives the player a private transposition table of
// 2^sizePowerOf2 slots instead of the process-wide one.
func (p *Player) UseOwnTable(sizePowerOf2 int) {
	p.solver.SetTranspositionTable(negamax.NewTranspositionTable(sizePowerOf2))
}

func (p *Player) Solver() *negamax.Solver {
	return p.solver
}

// LastResult is the result of the most recent Search.
func (p *Player) LastResult() negamax.Result {
	return p.lastResult
}

// Search returns the solver's full result for b. The random modes return
// a result with only Move set.
func (p *Player) Search(ctx context.Context, b *board.Board, cfg negamax.SearchConfig) (negamax.Result, error) {
	if b.Result().IsTerminal() || b.EmptyCells() == 0 {
		return negamax.Result{}, fmt.Errorf("%w: no move to choose (%s)", negamax.ErrSearchPrecondition, b.Result())
	}
	log.Debug().Str("mode", p.mode.String()).Str("board", b.String()).Msg("ai-choosing-move")

	var res negamax.Result
	var err error
	switch p.mode {
	case ModeRandom:
		moves := b.LegalMoves()
		res.Move = moves[frand.Intn(len(moves))]
	case ModeRandomWeighted:
		moves := b.SortedMoves()
		res.Move = moves[weightedIndex(len(moves))]
	case ModeFirstSorted:
		res.Move = b.SortedMoves()[0]
	default:
		res, err = p.solver.Solve(ctx, b, cfg)
		if err != nil {
			return res, err
		}
	}
	p.lastResult = res
	return res, nil
}

// ChooseMove returns the move the player would make on b.
func (p *Player) ChooseMove(ctx context.Context, b *board.Board, cfg negamax.SearchConfig) (move.Move, error) {
	res, err := p.Search(ctx, b, cfg)
	if err != nil {
		return move.Move{}, err
	}
	return res.Move, nil
}

// ChooseMove picks a move for the side to move on b with a fresh player.
func ChooseMove(ctx context.Context, b *board.Board, mode Mode, timeLimitSeconds float64) (move.Move, error) {
	cfg := negamax.SearchConfig{
		TimeLimit: time.Duration(timeLimitSeconds * float64(time.Second)),
	}
	return NewPlayer(mode).ChooseMove(ctx, b, cfg)
}

// weightedIndex picks i in [0, n) with weight 2^(n-i), so each move is
// half as likely as the one before it.
func weightedIndex(n int) int {
	for {
		i := 0
		for frand.Intn(2) == 1 {
			i++
		}
		if i < n {
			return i
		}
	}
}
