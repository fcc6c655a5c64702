// Package board implements the m,n,k game board: an m-row by n-column grid
// on which two players alternate placing marks until one of them lines up k
// in a row, column or diagonal. In gravity mode a mark falls to the lowest
// free cell of its column.
package board

import (
	"errors"
	"fmt"
	"sort"

	"github.com/domino14/mnkgame/move"
	"github.com/domino14/mnkgame/zobrist"
)

const (
	// MaxDim bounds rows and columns so that a cell fits the compact move
	// encoding.
	MaxDim   = 255
	MaxCells = 65535
)

var (
	ErrIllegalMove           = errors.New("illegal move")
	ErrInvalidConfiguration  = errors.New("invalid board configuration")
	ErrInvalidPosition       = errors.New("invalid position")
	ErrNothingToUndo         = errors.New("nothing to undo")
	ErrUndoMismatch          = errors.New("move to undo is not the last move played")
	errPositionSizeMismatch  = fmt.Errorf("%w: cell count does not match board size", ErrInvalidPosition)
	errPositionBadSideToMove = fmt.Errorf("%w: side to move does not match mark counts", ErrInvalidPosition)
)

// the four axes: horizontal, vertical and the two diagonals.
var axes = [4][2]int{{0, 1}, {1, 0}, {1, 1}, {1, -1}}

type historyEntry struct {
	cell       int
	prevResult GameResult
}

// Board is the mutable game state. It is not safe for concurrent use; a
// search works on its own Copy.
type Board struct {
	rows    int
	cols    int
	k       int
	gravity bool

	cells []Player
	// heights[c] is the number of marks in column c. Only kept in gravity
	// mode.
	heights []int

	moveCount int
	toMove    Player
	result    GameResult
	history   []historyEntry

	hash uint64
	z    *zobrist.Zobrist

	// centerOrder lists cells (free mode) or columns (gravity mode) from the
	// center outwards.
	centerOrder []int
}

// New creates an empty board with PlayerA to move.
func New(rows, cols, winLength int, gravity bool) (*Board, error) {
	if rows <= 0 || cols <= 0 || winLength <= 0 {
		return nil, fmt.Errorf("%w: rows, cols and win length must be positive (got %d, %d, %d)",
			ErrInvalidConfiguration, rows, cols, winLength)
	}
	if winLength > max(rows, cols) {
		return nil, fmt.Errorf("%w: win length %d can never fit on a %dx%d board",
			ErrInvalidConfiguration, winLength, rows, cols)
	}
	if rows > MaxDim || cols > MaxDim || rows*cols > MaxCells {
		return nil, fmt.Errorf("%w: %dx%d board is too large", ErrInvalidConfiguration, rows, cols)
	}
	b := &Board{
		rows:    rows,
		cols:    cols,
		k:       winLength,
		gravity: gravity,
		cells:   make([]Player, rows*cols),
		toMove:  PlayerA,
		z:       zobrist.ForSize(rows, cols),
	}
	if gravity {
		b.heights = make([]int, cols)
	}
	b.history = make([]historyEntry, 0, rows*cols)
	b.centerOrder = b.computeCenterOrder()
	return b, nil
}

func (b *Board) computeCenterOrder() []int {
	var order []int
	var dist func(i int) int
	if b.gravity {
		order = make([]int, b.cols)
		dist = func(c int) int { return abs(2*c - (b.cols - 1)) }
	} else {
		order = make([]int, b.rows*b.cols)
		dist = func(i int) int {
			dr := 2*(i/b.cols) - (b.rows - 1)
			dc := 2*(i%b.cols) - (b.cols - 1)
			return dr*dr + dc*dc
		}
	}
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		return dist(order[i]) < dist(order[j])
	})
	return order
}

func (b *Board) Rows() int          { return b.rows }
func (b *Board) Cols() int          { return b.cols }
func (b *Board) WinLength() int     { return b.k }
func (b *Board) Gravity() bool      { return b.gravity }
func (b *Board) MoveCount() int     { return b.moveCount }
func (b *Board) ToMove() Player     { return b.toMove }
func (b *Board) Hash() uint64       { return b.hash }
func (b *Board) NumCells() int      { return len(b.cells) }
func (b *Board) EmptyCells() int    { return len(b.cells) - b.moveCount }
func (b *Board) Result() GameResult { return b.result }

// At returns the content of a cell. It panics if the cell is off the board.
func (b *Board) At(row, col int) Player {
	return b.cells[row*b.cols+col]
}

// Cell returns the content of a cell by row-major index.
func (b *Board) Cell(idx int) Player {
	return b.cells[idx]
}

// Cells returns a copy of the grid in row-major order.
func (b *Board) Cells() []Player {
	c := make([]Player, len(b.cells))
	copy(c, b.cells)
	return c
}

func (b *Board) onBoard(row, col int) bool {
	return row >= 0 && row < b.rows && col >= 0 && col < b.cols
}

// topSlot is the row a mark dropped into col would land on, or -1 if the
// column is full.
func (b *Board) topSlot(col int) int {
	return b.rows - 1 - b.heights[col]
}

// LegalMoves lists the moves available to the side to move in ascending
// row-major order (free mode) or ascending column order (gravity mode).
// A finished game has no legal moves.
func (b *Board) LegalMoves() []move.Move {
	return b.AppendLegalMoves(make([]move.Move, 0, b.EmptyCells()))
}

// AppendLegalMoves is LegalMoves without allocating.
func (b *Board) AppendLegalMoves(moves []move.Move) []move.Move {
	if b.result.IsTerminal() {
		return moves
	}
	if b.gravity {
		for c := 0; c < b.cols; c++ {
			if r := b.topSlot(c); r >= 0 {
				moves = append(moves, move.At(r, c))
			}
		}
		return moves
	}
	for i, p := range b.cells {
		if p == Empty {
			moves = append(moves, move.FromCellIndex(i, b.cols))
		}
	}
	return moves
}

// SortedMoves lists the legal moves from the center of the board outwards.
// Ties keep generation order.
func (b *Board) SortedMoves() []move.Move {
	return b.AppendSortedMoves(make([]move.Move, 0, b.EmptyCells()))
}

func (b *Board) AppendSortedMoves(moves []move.Move) []move.Move {
	if b.result.IsTerminal() {
		return moves
	}
	if b.gravity {
		for _, c := range b.centerOrder {
			if r := b.topSlot(c); r >= 0 {
				moves = append(moves, move.At(r, c))
			}
		}
		return moves
	}
	for _, i := range b.centerOrder {
		if b.cells[i] == Empty {
			moves = append(moves, move.FromCellIndex(i, b.cols))
		}
	}
	return moves
}

// Resolve turns m into the cell it would occupy, or returns ErrIllegalMove.
func (b *Board) Resolve(m move.Move) (move.Move, error) {
	if b.result.IsTerminal() {
		return m, fmt.Errorf("%w: game is over (%s)", ErrIllegalMove, b.result)
	}
	if m.Col < 0 || m.Col >= b.cols {
		return m, fmt.Errorf("%w: column %d out of range", ErrIllegalMove, m.Col)
	}
	if b.gravity {
		r := b.topSlot(m.Col)
		if r < 0 {
			return m, fmt.Errorf("%w: column %d is full", ErrIllegalMove, m.Col)
		}
		if m.Resolved() && m.Row != r {
			return m, fmt.Errorf("%w: %s is not the top of column %d", ErrIllegalMove, m, m.Col)
		}
		return move.At(r, m.Col), nil
	}
	if !m.Resolved() {
		return m, fmt.Errorf("%w: a row is required without gravity", ErrIllegalMove)
	}
	if !b.onBoard(m.Row, m.Col) {
		return m, fmt.Errorf("%w: %s out of range", ErrIllegalMove, m)
	}
	if b.cells[m.CellIndex(b.cols)] != Empty {
		return m, fmt.Errorf("%w: %s is occupied", ErrIllegalMove, m)
	}
	return m, nil
}

// PlayMove applies m for the side to move. On error the board is unchanged.
func (b *Board) PlayMove(m move.Move) error {
	r, err := b.Resolve(m)
	if err != nil {
		return err
	}
	b.place(r.CellIndex(b.cols))
	return nil
}

// place puts the side to move's mark on an empty cell. The caller must have
// checked legality.
func (b *Board) place(idx int) {
	p := b.toMove
	b.history = append(b.history, historyEntry{cell: idx, prevResult: b.result})
	b.cells[idx] = p
	if b.gravity {
		b.heights[idx%b.cols]++
	}
	b.moveCount++
	b.hash = b.z.AddMove(b.hash, idx, uint8(p))
	b.toMove = p.Other()

	if b.isWinThrough(idx) {
		b.result = GameResult{Kind: Win, Winner: p}
	} else if b.moveCount == len(b.cells) {
		b.result = GameResult{Kind: Draw}
	}
}

// UnplayLastMove takes back the last move. It panics if there is none; the
// search only calls it after its own PlayMove.
func (b *Board) UnplayLastMove() {
	if len(b.history) == 0 {
		panic("unplay with empty history")
	}
	h := b.history[len(b.history)-1]
	b.history = b.history[:len(b.history)-1]
	p := b.cells[h.cell]
	b.cells[h.cell] = Empty
	if b.gravity {
		b.heights[h.cell%b.cols]--
	}
	b.moveCount--
	b.hash = b.z.AddMove(b.hash, h.cell, uint8(p))
	b.toMove = p
	b.result = h.prevResult
}

// UndoMove takes back m, which must be the last move played. A gravity
// move may name only its column.
func (b *Board) UndoMove(m move.Move) error {
	last, ok := b.LastMove()
	if !ok {
		return ErrNothingToUndo
	}
	if last.Col != m.Col || (m.Resolved() && last.Row != m.Row) {
		return fmt.Errorf("%w: last move was %s, not %s", ErrUndoMismatch, last, m)
	}
	b.UnplayLastMove()
	return nil
}

// LastMove returns the most recent move, if any was played on this board.
func (b *Board) LastMove() (move.Move, bool) {
	if len(b.history) == 0 {
		return move.Move{}, false
	}
	return move.FromCellIndex(b.history[len(b.history)-1].cell, b.cols), true
}

// History returns the moves played on this board, oldest first.
func (b *Board) History() []move.Move {
	moves := make([]move.Move, len(b.history))
	for i, h := range b.history {
		moves[i] = move.FromCellIndex(h.cell, b.cols)
	}
	return moves
}

// PlayMoves applies a sequence of moves. If one of them fails, the moves
// already applied are taken back and the error is returned.
func (b *Board) PlayMoves(moves []move.Move) error {
	for i, m := range moves {
		if err := b.PlayMove(m); err != nil {
			for j := 0; j < i; j++ {
				b.UnplayLastMove()
			}
			return fmt.Errorf("move %d (%s): %w", i+1, m, err)
		}
	}
	return nil
}

// Reset clears the board, keeping its dimensions and rules.
func (b *Board) Reset() {
	for i := range b.cells {
		b.cells[i] = Empty
	}
	for i := range b.heights {
		b.heights[i] = 0
	}
	b.moveCount = 0
	b.toMove = PlayerA
	b.result = GameResult{}
	b.history = b.history[:0]
	b.hash = 0
}

// Copy returns a deep copy that shares only the immutable key table.
func (b *Board) Copy() *Board {
	c := &Board{}
	c.CopyFrom(b)
	return c
}

// CopyFrom makes b an exact copy of other, reusing b's storage when it can.
func (b *Board) CopyFrom(other *Board) {
	b.rows, b.cols, b.k, b.gravity = other.rows, other.cols, other.k, other.gravity
	b.cells = append(b.cells[:0], other.cells...)
	if other.heights == nil {
		b.heights = nil
	} else {
		b.heights = append(b.heights[:0], other.heights...)
	}
	b.moveCount = other.moveCount
	b.toMove = other.toMove
	b.result = other.result
	b.history = append(b.history[:0], other.history...)
	b.hash = other.hash
	b.z = other.z
	b.centerOrder = other.centerOrder
}

// UseHasher swaps the zobrist key table and rehashes the position.
func (b *Board) UseHasher(z *zobrist.Zobrist) error {
	if z.Rows() != b.rows || z.Cols() != b.cols {
		return zobrist.ErrKeyTable
	}
	b.z = z
	b.rehash()
	return nil
}

func (b *Board) rehash() {
	raw := make([]uint8, len(b.cells))
	for i, p := range b.cells {
		raw[i] = uint8(p)
	}
	b.hash = b.z.Hash(raw, b.toMove == PlayerB)
}

// Equals compares position state: rules, cells, side to move, result and
// hash. Move history is ignored.
func (b *Board) Equals(other *Board) bool {
	if b.rows != other.rows || b.cols != other.cols || b.k != other.k ||
		b.gravity != other.gravity {
		return false
	}
	if b.moveCount != other.moveCount || b.toMove != other.toMove ||
		b.result != other.result || b.hash != other.hash {
		return false
	}
	for i := range b.cells {
		if b.cells[i] != other.cells[i] {
			return false
		}
	}
	return true
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
