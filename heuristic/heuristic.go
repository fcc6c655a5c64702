// Package heuristic scores m,n,k positions statically. Every line of k
// cells that only one player occupies is still winnable for that player and
// counts in their favor, weighted by how many marks it already holds.
package heuristic

import (
	"sync"

	"github.com/domino14/mnkgame/board"
)

const (
	// WinScore is the magnitude of a decided game. Search subtracts the ply
	// count so that faster wins score higher.
	WinScore int32 = 1 << 30
	// MaxHeuristic bounds every non-terminal evaluation, keeping it well
	// below any mate score.
	MaxHeuristic int32 = WinScore / 4
	// MateThreshold separates mate scores from heuristic ones. Boards have
	// at most 65535 cells, so a mate score never falls below it.
	MateThreshold int32 = WinScore - 1<<16
)

// weightBase is the factor between a window holding n marks and one
// holding n+1.
const weightBase = 8

// WinIn is the score for the side to move when it wins ply plies from the
// root.
func WinIn(ply int) int32 {
	return WinScore - int32(ply)
}

// LossIn is the score for the side to move when it loses ply plies from the
// root.
func LossIn(ply int) int32 {
	return -WinIn(ply)
}

// IsMate reports whether s is a decided-game score rather than a heuristic
// one.
func IsMate(s int32) bool {
	return s >= MateThreshold || s <= -MateThreshold
}

// Evaluator holds the windows of one board geometry.
type Evaluator struct {
	rows, cols, k int
	// windows is flattened: window w covers windows[w*k : (w+1)*k].
	windows []int32
	weights []int64
}

type geometry struct{ rows, cols, k int }

var evaluators = struct {
	sync.Mutex
	m map[geometry]*Evaluator
}{m: make(map[geometry]*Evaluator)}

// For returns the shared evaluator for a board geometry.
func For(rows, cols, k int) *Evaluator {
	evaluators.Lock()
	defer evaluators.Unlock()
	g := geometry{rows, cols, k}
	if e, ok := evaluators.m[g]; ok {
		return e
	}
	e := newEvaluator(rows, cols, k)
	evaluators.m[g] = e
	return e
}

func newEvaluator(rows, cols, k int) *Evaluator {
	e := &Evaluator{rows: rows, cols: cols, k: k}
	dirs := [4][2]int{{0, 1}, {1, 0}, {1, 1}, {1, -1}}
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			for _, d := range dirs {
				er, ec := r+(k-1)*d[0], c+(k-1)*d[1]
				if er < 0 || er >= rows || ec < 0 || ec >= cols {
					continue
				}
				for i := 0; i < k; i++ {
					e.windows = append(e.windows, int32((r+i*d[0])*cols+c+i*d[1]))
				}
			}
		}
	}
	e.weights = make([]int64, k+1)
	w := int64(1)
	for n := 1; n <= k; n++ {
		e.weights[n] = w
		if w < int64(MaxHeuristic) {
			w *= weightBase
		}
	}
	return e
}

// NumWindows is the number of k-long lines on the board.
func (e *Evaluator) NumWindows() int {
	return len(e.windows) / e.k
}

// Evaluate scores b for perspective. A decided game scores WinScore, -WinScore
// or 0; anything else is clamped to MaxHeuristic in magnitude. Swapping the
// perspective negates the score exactly.
func (e *Evaluator) Evaluate(b *board.Board, perspective board.Player) int32 {
	res := b.Result()
	switch res.Kind {
	case board.Win:
		if res.Winner == perspective {
			return WinScore
		}
		return -WinScore
	case board.Draw:
		return 0
	}

	var total int64
	for w := 0; w < len(e.windows); w += e.k {
		var na, nb int
		for _, idx := range e.windows[w : w+e.k] {
			switch b.Cell(int(idx)) {
			case board.PlayerA:
				na++
			case board.PlayerB:
				nb++
			}
		}
		if na > 0 && nb == 0 {
			total += e.weights[na]
		} else if nb > 0 && na == 0 {
			total -= e.weights[nb]
		}
	}
	score := int32(clamp(total))
	if perspective == board.PlayerB {
		return -score
	}
	return score
}

// Evaluate scores b with the shared evaluator for its geometry.
func Evaluate(b *board.Board, perspective board.Player) int32 {
	return For(b.Rows(), b.Cols(), b.WinLength()).Evaluate(b, perspective)
}

func clamp(x int64) int64 {
	if x > int64(MaxHeuristic) {
		return int64(MaxHeuristic)
	}
	if x < -int64(MaxHeuristic) {
		return -int64(MaxHeuristic)
	}
	return x
}
