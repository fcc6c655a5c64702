package negamax

import (
	"context"

	"github.com/domino14/mnkgame/board"
	"github.com/domino14/mnkgame/heuristic"
	"github.com/domino14/mnkgame/move"
)

// The deadline is polled every nodeCheckInterval nodes.
const (
	nodeCheckInterval = 1024
	nodeCheckMask     = nodeCheckInterval - 1
)

// searchThread is the per-thread state: a private board and buffers
// indexed by ply.
type searchThread struct {
	id       int
	b        *board.Board
	moveBufs [][]move.Move
	pvs      []PVLine
	killers  [][MaxKillers]move.Tiny
	nodes    uint64
	// nodes already added to the solver's shared counter.
	reported uint64
}

func newSearchThread(id int, b *board.Board) *searchThread {
	// A game can't last longer than the number of empty cells; helpers
	// may ask for one more ply than that.
	// Move buffers grow on first use at each ply.
	maxPly := b.EmptyCells() + 2
	return &searchThread{
		id:       id,
		b:        b,
		moveBufs: make([][]move.Move, maxPly),
		pvs:      make([]PVLine, maxPly),
		killers:  make([][MaxKillers]move.Tiny, maxPly),
	}
}

func (t *searchThread) pendingNodes() uint64 {
	n := t.nodes - t.reported
	t.reported = t.nodes
	return n
}

// orderMoves lists the legal moves from the center outwards, with the hash
// move first and then the killers. Only moves that are legal here get
// promoted, so a hash move from a colliding position is ignored.
func (s *Solver) orderMoves(t *searchThread, ply int, hashMove move.Tiny) []move.Move {
	moves := t.b.AppendSortedMoves(t.moveBufs[ply][:0])
	t.moveBufs[ply] = moves
	front := promote(moves, 0, hashMove, s.cols)
	if s.killerPlayOptim {
		for _, k := range t.killers[ply] {
			front = promote(moves, front, k, s.cols)
		}
	}
	return moves
}

// promote moves tm to position front, shifting the moves in between down
// by one. It returns the next free front position.
func promote(moves []move.Move, front int, tm move.Tiny, cols int) int {
	if tm == move.NoTiny {
		return front
	}
	for i := front; i < len(moves); i++ {
		if moves[i].ToTiny(cols) == tm {
			m := moves[i]
			copy(moves[front+1:i+1], moves[front:i])
			moves[front] = m
			return front + 1
		}
	}
	return front
}

func (s *Solver) storeKiller(t *searchThread, ply int, m move.Move) {
	tm := m.ToTiny(s.cols)
	if t.killers[ply][0] != tm {
		t.killers[ply][1] = t.killers[ply][0]
		t.killers[ply][0] = tm
	}
}

// searchRoot searches every root move to depth and records its score in
// moves. In randomize mode the window stays one point below the best score
// so that every move tied with it gets an exact score.
func (s *Solver) searchRoot(ctx context.Context, t *searchThread, depth int, moves []rootMove,
	randomize bool) (int32, int, PVLine, error) {

	α, β := -Infinity, Infinity
	bestValue := -Infinity
	bestIdx := -1
	pv := &t.pvs[0]
	pv.Clear()
	childPV := &t.pvs[1]

	for i := range moves {
		if err := ctx.Err(); err != nil {
			return 0, 0, PVLine{}, err
		}
		childPV.Clear()
		value, err := s.searchChild(ctx, t, moves[i].m, depth-1, 1, α, β, i > 0, childPV)
		if err != nil {
			return 0, 0, PVLine{}, err
		}
		moves[i].score = value
		if value > bestValue {
			bestValue = value
			bestIdx = i
			pv.Update(moves[i].m, *childPV, bestValue)
		}
		if s.pruningOptim {
			if randomize {
				α = max(α, bestValue-1)
			} else {
				α = max(α, bestValue)
			}
		}
	}
	if s.transpositionTableOptim {
		s.ttable.store(t.b.Hash()^s.salt,
			newEntry(scoreToTT(bestValue, 0), depth, TTExact, s.gen, moves[bestIdx].m.ToTiny(s.cols)))
	}
	return bestValue, bestIdx, *pv, nil
}

// searchChild plays m, searches the child and takes m back on every path.
// It returns the score from the parent's point of view. With PVS on, a
// non-first child is tried with a null window first.
func (s *Solver) searchChild(ctx context.Context, t *searchThread, m move.Move, depth, ply int,
	α, β int32, nullWindowFirst bool, childPV *PVLine) (int32, error) {

	if err := t.b.PlayMove(m); err != nil {
		// Move generation only produces legal moves.
		panic(err)
	}
	defer t.b.UnplayLastMove()

	if s.pvsOptim && s.pruningOptim && nullWindowFirst {
		v, err := s.negamax(ctx, t, depth, ply, -α-1, -α, childPV)
		if err != nil {
			return 0, err
		}
		value := -v
		if value <= α || value >= β {
			return value, nil
		}
		// The null window failed high inside (α, β): re-search it fully.
		childPV.Clear()
	}
	v, err := s.negamax(ctx, t, depth, ply, -β, -α, childPV)
	return -v, err
}

func (s *Solver) negamax(ctx context.Context, t *searchThread, depth, ply int, α, β int32, pv *PVLine) (int32, error) {
	t.nodes++
	if t.nodes&nodeCheckMask == 0 {
		s.nodes.Add(t.pendingNodes())
		if err := ctx.Err(); err != nil {
			return 0, err
		}
	}
	b := t.b

	switch res := b.Result(); res.Kind {
	case board.Win:
		// The player who just moved won.
		return heuristic.LossIn(ply), nil
	case board.Draw:
		return 0, nil
	}
	if depth == 0 {
		return s.eval.Evaluate(b, b.ToMove()), nil
	}

	// Note: if I return early as in here, the PV might not be complete.
	// (the transposition table is cutting off the iterations)
	// The value should still be correct, though.
	alphaOrig := α
	nodeKey := b.Hash() ^ s.salt
	hashMove := move.NoTiny

	if s.transpositionTableOptim {
		if ttEntry, ok := s.ttable.lookup(nodeKey); ok {
			// search hash move first.
			hashMove = ttEntry.move()
			if ttEntry.depth() >= depth {
				// Bounds only cut; they never narrow the window, so the
				// flag stored below stays accurate.
				score := scoreFromTT(ttEntry.score(), ply)
				switch ttEntry.flag() {
				case TTExact:
					return score, nil
				case TTLower:
					if score >= β {
						return score, nil
					}
				case TTUpper:
					if score <= α {
						return score, nil
					}
				}
			}
		}
	}

	children := s.orderMoves(t, ply, hashMove)
	childPV := &t.pvs[ply+1]
	bestValue := -Infinity
	var bestMove move.Move

	for i := range children {
		child := children[i]
		childPV.Clear()
		value, err := s.searchChild(ctx, t, child, depth-1, ply+1, α, β, i > 0, childPV)
		if err != nil {
			return value, err
		}
		if value > bestValue {
			bestValue = value
			bestMove = child
			pv.Update(child, *childPV, bestValue)
		}
		if !s.pruningOptim {
			continue
		}
		α = max(α, bestValue)
		if bestValue >= β {
			if s.killerPlayOptim {
				s.storeKiller(t, ply, child)
			}
			break // beta cut-off
		}
	}

	if s.transpositionTableOptim {
		var flag uint8
		if bestValue <= alphaOrig {
			flag = TTUpper
		} else if bestValue >= β {
			flag = TTLower
		} else {
			flag = TTExact
		}
		s.ttable.store(nodeKey, newEntry(scoreToTT(bestValue, ply), depth, flag, s.gen, bestMove.ToTiny(s.cols)))
	}
	return bestValue, nil
}
