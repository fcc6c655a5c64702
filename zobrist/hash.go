package zobrist

import (
	"errors"
	"sync"

	"lukechampine.com/frand"
)

const bignum = 1<<63 - 2

// NumMarks is the number of distinct non-empty cell contents.
const NumMarks = 2

var ErrKeyTable = errors.New("key table does not match board size")

// generate a zobrist hash for an m,n,k game position.
// https://en.wikipedia.org/wiki/Zobrist_hashing
type Zobrist struct {
	theirTurn uint64

	// posTable is indexed by cell, then by mark-1.
	posTable [][NumMarks]uint64

	rows int
	cols int
}

func (z *Zobrist) Initialize(rows, cols int) {
	z.rows = rows
	z.cols = cols
	z.posTable = make([][NumMarks]uint64, rows*cols)
	for i := range z.posTable {
		for j := 0; j < NumMarks; j++ {
			z.posTable[i][j] = frand.Uint64n(bignum) + 1
		}
	}
	z.theirTurn = frand.Uint64n(bignum) + 1
}

// FromKeys builds a Zobrist with caller-supplied keys. It is mostly useful
// for reproducing hash collisions.
func FromKeys(rows, cols int, posTable [][NumMarks]uint64, theirTurn uint64) (*Zobrist, error) {
	if len(posTable) != rows*cols {
		return nil, ErrKeyTable
	}
	z := &Zobrist{rows: rows, cols: cols, theirTurn: theirTurn}
	z.posTable = make([][NumMarks]uint64, len(posTable))
	copy(z.posTable, posTable)
	return z, nil
}

type sizeKey struct{ rows, cols int }

var registry = struct {
	sync.Mutex
	tables map[sizeKey]*Zobrist
}{tables: make(map[sizeKey]*Zobrist)}

// ForSize returns the process-wide key table for a board size. Every board
// of the same size shares it, so their hashes are comparable.
func ForSize(rows, cols int) *Zobrist {
	registry.Lock()
	defer registry.Unlock()
	k := sizeKey{rows, cols}
	if z, ok := registry.tables[k]; ok {
		return z
	}
	z := &Zobrist{}
	z.Initialize(rows, cols)
	registry.tables[k] = z
	return z
}

func (z *Zobrist) Rows() int { return z.rows }
func (z *Zobrist) Cols() int { return z.cols }

// Hash computes the key of a position from scratch. cells holds 0 for an
// empty cell and 1 or 2 for a mark.
func (z *Zobrist) Hash(cells []uint8, theirTurn bool) uint64 {
	key := uint64(0)
	for i, c := range cells {
		if c == 0 {
			continue
		}
		key ^= z.posTable[i][c-1]
	}
	if theirTurn {
		key ^= z.theirTurn
	}
	return key
}

// AddMove toggles a mark on a cell and flips the side to move. Calling it
// again with the same arguments undoes it.
func (z *Zobrist) AddMove(key uint64, cellIdx int, mark uint8) uint64 {
	key ^= z.posTable[cellIdx][mark-1]
	key ^= z.theirTurn
	return key
}
