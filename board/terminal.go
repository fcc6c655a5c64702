package board

import (
	"fmt"

	"github.com/domino14/mnkgame/move"
)

// runThrough measures the run of p's marks through idx along axis
// (dr, dc) and returns where it starts.
func (b *Board) runThrough(idx, dr, dc int, p Player) (startR, startC, length int) {
	r, c := idx/b.cols, idx%b.cols
	back := 0
	for rr, cc := r-dr, c-dc; b.onBoard(rr, cc) && b.cells[rr*b.cols+cc] == p; rr, cc = rr-dr, cc-dc {
		back++
	}
	fwd := 0
	for rr, cc := r+dr, c+dc; b.onBoard(rr, cc) && b.cells[rr*b.cols+cc] == p; rr, cc = rr+dr, cc+dc {
		fwd++
	}
	return r - back*dr, c - back*dc, 1 + back + fwd
}

// isWinThrough checks only the four axes through idx.
func (b *Board) isWinThrough(idx int) bool {
	p := b.cells[idx]
	if p == Empty {
		return false
	}
	for _, ax := range axes {
		if _, _, n := b.runThrough(idx, ax[0], ax[1], p); n >= b.k {
			return true
		}
	}
	return false
}

// WinningLine returns the cells of the run that decided the game, in order
// along the line. It is empty unless the result is a win.
func (b *Board) WinningLine() []move.Move {
	if b.result.Kind != Win {
		return nil
	}
	if len(b.history) > 0 {
		if line := b.lineThrough(b.history[len(b.history)-1].cell); line != nil {
			return line
		}
	}
	// Loaded positions have no history; any run of the winner will do.
	for i, p := range b.cells {
		if p != b.result.Winner {
			continue
		}
		if line := b.lineThrough(i); line != nil {
			return line
		}
	}
	return nil
}

func (b *Board) lineThrough(idx int) []move.Move {
	p := b.cells[idx]
	if p == Empty {
		return nil
	}
	for _, ax := range axes {
		sr, sc, n := b.runThrough(idx, ax[0], ax[1], p)
		if n < b.k {
			continue
		}
		line := make([]move.Move, n)
		for i := range line {
			line[i] = move.At(sr+i*ax[0], sc+i*ax[1])
		}
		return line
	}
	return nil
}

// scanWinners rescans the whole board and reports which players own a run
// of at least k.
func (b *Board) scanWinners() (a, bWins bool) {
	for i, p := range b.cells {
		if p == Empty || (p == PlayerA && a) || (p == PlayerB && bWins) {
			continue
		}
		if b.isWinThrough(i) {
			if p == PlayerA {
				a = true
			} else {
				bWins = true
			}
		}
	}
	return a, bWins
}

// SetPosition replaces the board contents with cells (row-major) and the
// given side to move. The result is computed by scanning the whole board.
// History is cleared, so the loaded moves cannot be undone.
func (b *Board) SetPosition(cells []Player, toMove Player) error {
	if len(cells) != len(b.cells) {
		return errPositionSizeMismatch
	}
	var na, nb int
	heights := make([]int, b.cols)
	for i, p := range cells {
		switch p {
		case PlayerA:
			na++
		case PlayerB:
			nb++
		case Empty:
			continue
		default:
			return fmt.Errorf("%w: unknown cell content %d", ErrInvalidPosition, p)
		}
		heights[i%b.cols]++
	}
	// PlayerA always moves first.
	switch {
	case na == nb && toMove == PlayerA:
	case na == nb+1 && toMove == PlayerB:
	default:
		return fmt.Errorf("%w (%d X, %d O, %s to move)", errPositionBadSideToMove, na, nb, toMove)
	}
	if b.gravity {
		for c := 0; c < b.cols; c++ {
			for r := b.rows - heights[c]; r < b.rows; r++ {
				if cells[r*b.cols+c] == Empty {
					return fmt.Errorf("%w: column %d has a floating mark", ErrInvalidPosition, c)
				}
			}
		}
	}

	prev := b.Copy()
	copy(b.cells, cells)
	if b.gravity {
		copy(b.heights, heights)
	}
	b.moveCount = na + nb
	b.toMove = toMove
	b.history = b.history[:0]
	b.result = GameResult{}

	aWins, bWins := b.scanWinners()
	var err error
	switch {
	case aWins && bWins:
		err = fmt.Errorf("%w: both players have a winning line", ErrInvalidPosition)
	case aWins && toMove != PlayerB, bWins && toMove != PlayerA:
		err = fmt.Errorf("%w: the winner must have made the last move", ErrInvalidPosition)
	case aWins:
		b.result = GameResult{Kind: Win, Winner: PlayerA}
	case bWins:
		b.result = GameResult{Kind: Win, Winner: PlayerB}
	case b.moveCount == len(b.cells):
		b.result = GameResult{Kind: Draw}
	}
	if err != nil {
		b.CopyFrom(prev)
		return err
	}
	b.rehash()
	return nil
}
