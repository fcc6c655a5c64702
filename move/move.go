// Package move contains the move representation for an m,n,k game: either a
// fully resolved cell, or (in gravity games) a column that the board resolves
// to its lowest free row.
package move

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
)

// Unresolved is the Row of a move that only names a column. Only gravity
// boards accept unresolved moves.
const Unresolved = -1

// NoTiny is the compact encoding of "no move".
const NoTiny Tiny = 0

var ErrBadMoveString = errors.New("could not parse move")

// Move is an immutable move value. Moves produced by a board's move
// generation are always resolved.
type Move struct {
	Row int
	Col int
}

// Tiny is a compact move (cell index + 1) used by the transposition table.
type Tiny uint16

var (
	reCell   = regexp.MustCompile(`^\(?\s*(\d+)\s*[, ]\s*(\d+)\s*\)?$`)
	reColumn = regexp.MustCompile(`^(\d+)$`)
)

// At returns a move targeting an explicit cell.
func At(row, col int) Move {
	return Move{Row: row, Col: col}
}

// Drop returns a gravity move naming only a column.
func Drop(col int) Move {
	return Move{Row: Unresolved, Col: col}
}

func (m Move) Resolved() bool {
	return m.Row != Unresolved
}

func (m Move) String() string {
	if !m.Resolved() {
		return strconv.Itoa(m.Col)
	}
	return fmt.Sprintf("(%d,%d)", m.Row, m.Col)
}

// ShortDescription is the form accepted back by FromString.
func (m Move) ShortDescription() string {
	if !m.Resolved() {
		return strconv.Itoa(m.Col)
	}
	return fmt.Sprintf("%d,%d", m.Row, m.Col)
}

// CellIndex returns the row-major index of a resolved move.
func (m Move) CellIndex(cols int) int {
	return m.Row*cols + m.Col
}

// FromCellIndex is the inverse of CellIndex.
func FromCellIndex(idx, cols int) Move {
	return Move{Row: idx / cols, Col: idx % cols}
}

// ToTiny encodes a resolved move. Unresolved moves encode to NoTiny.
func (m Move) ToTiny(cols int) Tiny {
	if !m.Resolved() || m.Row < 0 || m.Col < 0 {
		return NoTiny
	}
	return Tiny(m.CellIndex(cols) + 1)
}

// FromTiny decodes a compact move. The boolean is false for NoTiny.
func FromTiny(t Tiny, cols int) (Move, bool) {
	if t == NoTiny {
		return Move{}, false
	}
	return FromCellIndex(int(t)-1, cols), true
}

// FromString parses "r,c", "(r, c)", "r c" or a bare column "c".
func FromString(s string) (Move, error) {
	bad := fmt.Errorf("%w: %q", ErrBadMoveString, s)
	if m := reCell.FindStringSubmatch(s); m != nil {
		row, err := strconv.Atoi(m[1])
		if err != nil {
			return Move{}, bad
		}
		col, err := strconv.Atoi(m[2])
		if err != nil {
			return Move{}, bad
		}
		return At(row, col), nil
	}
	if m := reColumn.FindStringSubmatch(s); m != nil {
		col, err := strconv.Atoi(m[1])
		if err != nil {
			return Move{}, bad
		}
		return Drop(col), nil
	}
	return Move{}, bad
}
