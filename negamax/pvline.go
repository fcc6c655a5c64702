package negamax

import (
	"fmt"
	"strings"

	"github.com/domino14/mnkgame/move"
)

// Credit: MIT-licensed https://github.com/algerbrex/blunder/blob/main/engine/search.go
type PVLine struct {
	Moves []move.Move
	score int32
}

// Clear the principal variation line.
func (pvLine *PVLine) Clear() {
	pvLine.Moves = pvLine.Moves[:0]
}

// Update the principal variation line with a new best move,
// and a new line of best play after the best move.
func (pvLine *PVLine) Update(m move.Move, newPVLine PVLine, score int32) {
	pvLine.Clear()
	pvLine.Moves = append(pvLine.Moves, m)
	pvLine.Moves = append(pvLine.Moves, newPVLine.Moves...)
	pvLine.score = score
}

// Get the best move from the principal variation line.
func (pvLine *PVLine) GetPVMove() (move.Move, bool) {
	if len(pvLine.Moves) == 0 {
		return move.Move{}, false
	}
	return pvLine.Moves[0], true
}

func (pvLine PVLine) Score() int32 {
	return pvLine.score
}

func (pvLine PVLine) copy() PVLine {
	return PVLine{Moves: append([]move.Move(nil), pvLine.Moves...), score: pvLine.score}
}

// Convert the principal variation line to a string.
func (pvLine PVLine) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "PV; val %d\n", pvLine.score)
	for i, m := range pvLine.Moves {
		fmt.Fprintf(&sb, "%d: %s\n", i+1, m.ShortDescription())
	}
	return sb.String()
}

func (pvLine PVLine) NLBString() string {
	// no line breaks
	var sb strings.Builder
	fmt.Fprintf(&sb, "PV; val %d; ", pvLine.score)
	for i, m := range pvLine.Moves {
		fmt.Fprintf(&sb, "%d: %s; ", i+1, m.ShortDescription())
	}
	return sb.String()
}

func (pvLine PVLine) shortDescriptions() []string {
	s := make([]string, len(pvLine.Moves))
	for i, m := range pvLine.Moves {
		s[i] = m.ShortDescription()
	}
	return s
}
