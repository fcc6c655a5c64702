package negamax

import (
	"math"
	"sync"
	"sync/atomic"

	"github.com/pbnjay/memory"
	"github.com/rs/zerolog/log"

	"github.com/domino14/mnkgame/heuristic"
	"github.com/domino14/mnkgame/move"
)

const (
	TTExact = 0x01
	TTLower = 0x02
	TTUpper = 0x03
)

const entrySize = 16

const (
	MinSizePowerOf2 = 4
	MaxSizePowerOf2 = 30
	// MaxTTDepth is the deepest draft an entry can record. Deeper results
	// are stored as this depth, which only makes them less usable.
	MaxTTDepth     = 255
	generationMask = (1 << 6) - 1
)

// TableEntry is the data word of a slot:
//
//	bits  0-31 score (node-relative for mate scores)
//	bits 32-39 depth
//	bits 40-41 flag
//	bits 42-47 generation
//	bits 48-63 best move
type TableEntry uint64

func newEntry(score int32, depth int, flag uint8, gen uint8, m move.Tiny) TableEntry {
	if depth > MaxTTDepth {
		depth = MaxTTDepth
	}
	return TableEntry(uint64(uint32(score)) |
		uint64(depth)<<32 |
		uint64(flag&0x3)<<40 |
		uint64(gen&generationMask)<<42 |
		uint64(m)<<48)
}

func (t TableEntry) score() int32 {
	return int32(uint32(t))
}

func (t TableEntry) depth() int {
	return int(uint8(t >> 32))
}

func (t TableEntry) flag() uint8 {
	return uint8(t>>40) & 0x3
}

func (t TableEntry) generation() uint8 {
	return uint8(t>>42) & generationMask
}

func (t TableEntry) move() move.Tiny {
	return move.Tiny(t >> 48)
}

func (t TableEntry) valid() bool {
	// a table flag is 1, 2, or 3.
	return t.flag() != 0
}

// A slot keeps key^data next to data. A reader that sees the two words
// from different writes computes the wrong key and treats it as a miss.
type slot struct {
	check atomic.Uint64
	data  atomic.Uint64
}

type TranspositionTable struct {
	table        []slot
	created      atomic.Uint64
	lookups      atomic.Uint64
	hits         atomic.Uint64
	sizePowerOf2 int
	sizeMask     uint64
	generation   atomic.Uint32
	// "type 2" collisions: another position lives in the slot. Type 1
	// collisions (two positions with one key) cannot be detected here.
	t2collisions atomic.Uint64

	allocMu sync.Mutex
}

// GlobalTranspositionTable is shared by every solver that is not given its
// own table. It is allocated on first use and survives across searches;
// the generation tag keeps stale entries from crowding out new ones.
var GlobalTranspositionTable = &TranspositionTable{}

// NewTranspositionTable allocates a table with 2^sizePowerOf2 slots.
func NewTranspositionTable(sizePowerOf2 int) *TranspositionTable {
	t := &TranspositionTable{}
	t.allocate(sizePowerOf2)
	return t
}

func (t *TranspositionTable) allocate(sizePowerOf2 int) {
	sizePowerOf2 = min(max(sizePowerOf2, MinSizePowerOf2), MaxSizePowerOf2)
	numElems := 1 << sizePowerOf2
	if len(t.table) == numElems {
		clear(t.table)
	} else {
		t.table = make([]slot, numElems)
	}
	t.sizePowerOf2 = sizePowerOf2
	t.sizeMask = uint64(numElems - 1)
	t.generation.Store(0)
	t.ResetStats()
}

// Reset sizes the table to about fractionOfMemory of system memory, with
// at least 2^minSizePowerOf2 slots, and clears it.
func (t *TranspositionTable) Reset(fractionOfMemory float64, minSizePowerOf2 int) {
	totalMem := memory.TotalMemory()
	desiredNElems := fractionOfMemory * (float64(totalMem) / float64(entrySize))
	power := minSizePowerOf2
	if desiredNElems >= 1 {
		// find biggest power of 2 lower than desired.
		power = max(power, int(math.Log2(desiredNElems)))
	}
	prevLen := len(t.table)
	t.allocate(power)
	reset := prevLen == len(t.table)

	log.Debug().Int("num-elems", len(t.table)).
		Float64("desired-num-elems", desiredNElems).
		Int("estimated-total-memory-bytes", len(t.table)*entrySize).
		Uint64("total-system-memory-bytes", totalMem).
		Bool("reset", reset).
		Msg("transposition-table-size")
}

// ensureAllocated sizes the table on first use. Solvers sharing the table
// may call it concurrently.
func (t *TranspositionTable) ensureAllocated(fractionOfMemory float64, minSizePowerOf2 int) {
	t.allocMu.Lock()
	defer t.allocMu.Unlock()
	if !t.Allocated() {
		t.Reset(fractionOfMemory, minSizePowerOf2)
	}
}

// Allocated reports whether the table has any slots.
func (t *TranspositionTable) Allocated() bool {
	return len(t.table) > 0
}

func (t *TranspositionTable) Size() int {
	return len(t.table)
}

// NewGeneration marks every existing entry as stale for replacement
// purposes. Stale entries still answer lookups.
func (t *TranspositionTable) NewGeneration() {
	t.generation.Add(1)
}

func (t *TranspositionTable) currentGeneration() uint8 {
	return uint8(t.generation.Load()) & generationMask
}

func (t *TranspositionTable) ResetStats() {
	t.created.Store(0)
	t.lookups.Store(0)
	t.hits.Store(0)
	t.t2collisions.Store(0)
}

func (t *TranspositionTable) lookup(zval uint64) (TableEntry, bool) {
	t.lookups.Add(1)
	s := &t.table[zval&t.sizeMask]
	data := s.data.Load()
	check := s.check.Load()
	entry := TableEntry(data)
	if check^data != zval || !entry.valid() {
		if entry.valid() {
			// There is another unrelated node at this position, or a
			// write is in progress.
			t.t2collisions.Add(1)
		}
		return 0, false
	}
	t.hits.Add(1)
	// otherwise, assume the same zobrist hash is the same position. this fails
	// very, very rarely. but it could happen.
	return entry, true
}

// store writes tentry unless the slot holds a deeper result from the
// current generation.
func (t *TranspositionTable) store(zval uint64, tentry TableEntry) {
	s := &t.table[zval&t.sizeMask]
	old := TableEntry(s.data.Load())
	if old.valid() && old.generation() == tentry.generation() && old.depth() > tentry.depth() {
		return
	}
	s.data.Store(uint64(tentry))
	s.check.Store(zval ^ uint64(tentry))
	t.created.Add(1)
}

func (t *TranspositionTable) Stats() (created, lookups, hits, t2collisions uint64) {
	return t.created.Load(), t.lookups.Load(), t.hits.Load(), t.t2collisions.Load()
}

// Mate scores are stored relative to the node so that an entry reached
// at a different ply still reports the right distance to mate.

func scoreToTT(score int32, ply int) int32 {
	switch {
	case score >= heuristic.MateThreshold:
		return score + int32(ply)
	case score <= -heuristic.MateThreshold:
		return score - int32(ply)
	}
	return score
}

func scoreFromTT(score int32, ply int) int32 {
	switch {
	case score >= heuristic.MateThreshold:
		return score - int32(ply)
	case score <= -heuristic.MateThreshold:
		return score + int32(ply)
	}
	return score
}
