// Package ai picks moves for the computer player. Every mode except the
// random ones runs the same negamax solver with a different set of
// optimizations turned on.
package ai

import (
	"errors"
	"fmt"
	"strings"

	"github.com/samber/lo"
)

type Mode int

const (
	ModeRandom Mode = iota
	ModeRandomWeighted
	ModeFirstSorted
	ModeNegamax
	ModeAlphaBeta
	ModePVS
	ModeAlphaBetaHashing
	ModeAlphaBetaOptimized
)

var ErrUnknownMode = errors.New("unknown ai mode")

var modeNames = []string{
	ModeRandom:             "random",
	ModeRandomWeighted:     "random_weighted",
	ModeFirstSorted:        "first_sorted",
	ModeNegamax:            "negamax",
	ModeAlphaBeta:          "alphabeta",
	ModePVS:                "pvs",
	ModeAlphaBetaHashing:   "alphabeta_hashing",
	ModeAlphaBetaOptimized: "alphabeta_optimized",
}

func (m Mode) String() string {
	if m < 0 || int(m) >= len(modeNames) {
		return fmt.Sprintf("Mode(%d)", int(m))
	}
	return modeNames[m]
}

// ParseMode accepts a mode name, ignoring case and surrounding space.
func ParseMode(s string) (Mode, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	idx := lo.IndexOf(modeNames, name)
	if idx < 0 {
		return 0, fmt.Errorf("%w: %q (choose one of %s)", ErrUnknownMode, s, strings.Join(modeNames, ", "))
	}
	return Mode(idx), nil
}

// ModeNames lists every mode name in declaration order.
func ModeNames() []string {
	return append([]string(nil), modeNames...)
}

// Searches reports whether the mode runs the solver.
func (m Mode) Searches() bool {
	switch m {
	case ModeRandom, ModeRandomWeighted, ModeFirstSorted:
		return false
	}
	return true
}

type features struct {
	pruning, pvs, ttable, killers, iterativeDeepening, lazySMP bool
}

func (m Mode) features() features {
	switch m {
	case ModeNegamax:
		return features{iterativeDeepening: true}
	case ModeAlphaBeta:
		return features{pruning: true, iterativeDeepening: true}
	case ModePVS:
		return features{pruning: true, pvs: true, iterativeDeepening: true}
	case ModeAlphaBetaHashing:
		return features{pruning: true, ttable: true, iterativeDeepening: true}
	case ModeAlphaBetaOptimized:
		return features{pruning: true, pvs: true, ttable: true, killers: true,
			iterativeDeepening: true, lazySMP: true}
	}
	return features{}
}
