package negamax

import (
	"testing"

	"github.com/matryer/is"

	"github.com/domino14/mnkgame/heuristic"
	"github.com/domino14/mnkgame/move"
)

func TestTTableEntry(t *testing.T) {
	is := is.New(t)
	tt := NewTranspositionTable(10)
	is.Equal(tt.Size(), 1024)

	tm := move.At(3, 4).ToTiny(7)
	tentry := newEntry(-12, 23, TTUpper, 5, tm)
	tt.store(9409641586937047728, tentry)

	te, ok := tt.lookup(9409641586937047728)
	is.True(ok)
	is.True(te.valid())
	is.Equal(te.depth(), 23)
	is.Equal(te.flag(), uint8(TTUpper))
	is.Equal(te.score(), int32(-12))
	is.Equal(te.generation(), uint8(5))
	is.Equal(te.move(), tm)

	is.Equal(tt.t2collisions.Load(), uint64(0))
	// create a collision: same slot, different key.
	_, ok = tt.lookup(9409641586937047728 + 1024)
	is.True(!ok)
	is.Equal(tt.t2collisions.Load(), uint64(1))

	// another lookup, but this isn't a collision. collision count should not go up.
	_, ok = tt.lookup(9409641586937047728 + 1)
	is.True(!ok)
	is.Equal(tt.lookups.Load(), uint64(3))
	is.Equal(tt.t2collisions.Load(), uint64(1))
}

func TestEntryPackingExtremes(t *testing.T) {
	is := is.New(t)
	for _, score := range []int32{heuristic.WinScore, -heuristic.WinScore, 0, -1, heuristic.MaxHeuristic} {
		e := newEntry(score, 1000, TTLower, 63, move.Tiny(65535))
		is.Equal(e.score(), score)
		is.Equal(e.depth(), MaxTTDepth)
		is.Equal(e.flag(), uint8(TTLower))
		is.Equal(e.generation(), uint8(63))
		is.Equal(e.move(), move.Tiny(65535))
	}
}

func TestZeroKeyEmptySlotIsMiss(t *testing.T) {
	is := is.New(t)
	tt := NewTranspositionTable(4)
	// An empty slot has check^data == 0, which must not pass for key 0.
	_, ok := tt.lookup(0)
	is.True(!ok)
	tt.store(0, newEntry(7, 1, TTExact, 0, move.NoTiny))
	e, ok := tt.lookup(0)
	is.True(ok)
	is.Equal(e.score(), int32(7))
}

func TestTornSlotIsMiss(t *testing.T) {
	is := is.New(t)
	tt := NewTranspositionTable(4)
	key := uint64(0xdeadbeef00000003)
	tt.store(key, newEntry(100, 4, TTExact, 0, move.NoTiny))
	// Simulate a reader catching a second writer half way: the data word
	// belongs to a new entry, the check word to the old one.
	s := &tt.table[key&tt.sizeMask]
	s.data.Store(uint64(newEntry(-50, 9, TTLower, 0, move.NoTiny)))
	_, ok := tt.lookup(key)
	is.True(!ok)
	is.Equal(tt.t2collisions.Load(), uint64(1))
}

func TestReplacementPolicy(t *testing.T) {
	is := is.New(t)
	tt := NewTranspositionTable(4)
	key := uint64(0x1234500000000001)
	other := key + 16 // same slot

	tt.store(key, newEntry(1, 8, TTExact, 0, move.NoTiny))
	// Shallower result of the same generation does not replace.
	tt.store(other, newEntry(2, 3, TTExact, 0, move.NoTiny))
	_, ok := tt.lookup(other)
	is.True(!ok)
	e, ok := tt.lookup(key)
	is.True(ok)
	is.Equal(e.score(), int32(1))

	// Equal depth replaces.
	tt.store(other, newEntry(3, 8, TTExact, 0, move.NoTiny))
	e, ok = tt.lookup(other)
	is.True(ok)
	is.Equal(e.score(), int32(3))

	// A newer generation replaces regardless of depth.
	tt.NewGeneration()
	tt.store(key, newEntry(4, 1, TTExact, tt.currentGeneration(), move.NoTiny))
	e, ok = tt.lookup(key)
	is.True(ok)
	is.Equal(e.score(), int32(4))
	is.Equal(e.depth(), 1)
}

func TestReset(t *testing.T) {
	is := is.New(t)
	tt := &TranspositionTable{}
	is.True(!tt.Allocated())
	// Ask for almost nothing; the minimum size wins.
	tt.Reset(0, 12)
	is.Equal(tt.Size(), 1<<12)
	tt.store(99, newEntry(1, 1, TTExact, 0, move.NoTiny))
	tt.Reset(0, 12)
	_, ok := tt.lookup(99)
	is.True(!ok)
	created, lookups, hits, _ := tt.Stats()
	is.Equal(created, uint64(0))
	is.Equal(lookups, uint64(1))
	is.Equal(hits, uint64(0))
}

func TestMateScoresAreNodeRelative(t *testing.T) {
	is := is.New(t)
	// A win 7 plies from the root, seen from a node at ply 3, is a win 4
	// plies from that node.
	rootRel := heuristic.WinIn(7)
	stored := scoreToTT(rootRel, 3)
	is.Equal(stored, heuristic.WinIn(4))
	// Reached again at ply 5, it is a win 9 plies from the root.
	is.Equal(scoreFromTT(stored, 5), heuristic.WinIn(9))
	is.Equal(scoreFromTT(scoreToTT(heuristic.LossIn(6), 2), 2), heuristic.LossIn(6))
	// Heuristic scores pass through.
	is.Equal(scoreToTT(1234, 9), int32(1234))
	is.Equal(scoreFromTT(-1234, 9), int32(-1234))
}
