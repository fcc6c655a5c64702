// Package mnkp reads and writes a one-line text notation for m,n,k
// positions, in the spirit of CGP for crossword games:
//
//	<rows> <to-move> <k> [opcodes]
//
// Rows are separated by slashes, top row first. X and O are marks and a
// number is a run of empty cells. Opcodes are semicolon-terminated; `grav;`
// turns on gravity and `gid <id>;` names the game. For example
//
//	3/1X1/O2 X 3 gid abc;
package mnkp

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/domino14/mnkgame/board"
)

var ErrParse = errors.New("cannot parse mnkp")

const (
	OpGravity = "grav"
	OpGameID  = "gid"
)

type ParsedMNKP struct {
	*board.Board
	Opcodes map[string]string
}

// ParseMNKP returns a board holding the given position. The position has
// to be reachable: mark counts must agree with the side to move, there
// are no floating marks under gravity, and at most the last mover has won.
func ParseMNKP(mnkpstr string) (*ParsedMNKP, error) {
	fields := strings.SplitN(strings.TrimSpace(mnkpstr), " ", 4)
	if len(fields) < 3 {
		return nil, fmt.Errorf("%w: must have at least 3 space-separated fields", ErrParse)
	}
	rows := strings.Split(fields[0], "/")

	toMove, ok := board.PlayerFromRune(firstRune(fields[1]))
	if !ok || toMove == board.Empty || len(fields[1]) != 1 {
		return nil, fmt.Errorf("%w: side to move must be X or O, not %q", ErrParse, fields[1])
	}
	k, err := strconv.Atoi(fields[2])
	if err != nil {
		return nil, fmt.Errorf("%w: win length: %w", ErrParse, err)
	}

	var ops []string
	if len(fields) == 4 {
		ops = strings.Split(fields[3], ";")
	}
	gravity := false
	opcodes := map[string]string{}
	for _, op := range ops {
		op := strings.TrimSpace(op)
		if len(op) == 0 {
			continue
		}
		opWithParams := strings.SplitN(op, " ", 2)
		switch opWithParams[0] {
		case OpGravity:
			gravity = true
			opcodes[OpGravity] = ""
		case OpGameID:
			if len(opWithParams) != 2 {
				return nil, fmt.Errorf("%w: wrong number of arguments for gid operation", ErrParse)
			}
			opcodes[OpGameID] = opWithParams[1]
		default:
			// Unknown opcodes are kept so they survive a round trip.
			if len(opWithParams) == 2 {
				opcodes[opWithParams[0]] = opWithParams[1]
			} else {
				opcodes[opWithParams[0]] = ""
			}
		}
	}

	cells := make([]board.Player, 0)
	ncols := -1
	for i, row := range rows {
		parsed, err := rowToCells(row)
		if err != nil {
			return nil, fmt.Errorf("%w: row %d: %w", ErrParse, i, err)
		}
		if ncols >= 0 && len(parsed) != ncols {
			return nil, fmt.Errorf("%w: row %d has %d cells, expected %d", ErrParse, i, len(parsed), ncols)
		}
		ncols = len(parsed)
		cells = append(cells, parsed...)
	}

	b, err := board.New(len(rows), ncols, k, gravity)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrParse, err)
	}
	if err := b.SetPosition(cells, toMove); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrParse, err)
	}
	log.Debug().Str("position", b.String()).Interface("opcodes", opcodes).Msg("parsed-mnkp")
	return &ParsedMNKP{Board: b, Opcodes: opcodes}, nil
}

func firstRune(s string) rune {
	for _, r := range s {
		return r
	}
	return 0
}

func rowToCells(row string) ([]board.Player, error) {
	cells := []board.Player{}
	lastN := ""
	flush := func() error {
		if lastN == "" {
			return nil
		}
		n, err := strconv.Atoi(lastN)
		if err != nil {
			return err
		}
		if n == 0 || n > board.MaxDim {
			return fmt.Errorf("bad run length %d", n)
		}
		for idx := 0; idx < n; idx++ {
			cells = append(cells, board.Empty)
		}
		lastN = ""
		return nil
	}
	for _, rn := range row {
		if rn >= '0' && rn <= '9' {
			lastN += string(rn)
			continue
		}
		// parse the number then clear it out.
		if err := flush(); err != nil {
			return nil, err
		}
		p, ok := board.PlayerFromRune(rn)
		if !ok {
			return nil, fmt.Errorf("unexpected character %q", rn)
		}
		cells = append(cells, p)
	}
	if err := flush(); err != nil {
		return nil, err
	}
	if len(cells) == 0 {
		return nil, errors.New("empty row")
	}
	return cells, nil
}

// ToMNKP writes b in mnkp notation. Opcodes are written in sorted order
// after the gravity opcode.
func ToMNKP(b *board.Board, opcodes map[string]string) string {
	var sb strings.Builder
	for r := 0; r < b.Rows(); r++ {
		if r > 0 {
			sb.WriteByte('/')
		}
		empties := 0
		for c := 0; c < b.Cols(); c++ {
			p := b.At(r, c)
			if p == board.Empty {
				empties++
				continue
			}
			if empties > 0 {
				sb.WriteString(strconv.Itoa(empties))
				empties = 0
			}
			sb.WriteString(p.String())
		}
		if empties > 0 {
			sb.WriteString(strconv.Itoa(empties))
		}
	}
	fmt.Fprintf(&sb, " %s %d", b.ToMove(), b.WinLength())

	var ops []string
	if b.Gravity() {
		ops = append(ops, OpGravity+";")
	}
	keys := make([]string, 0, len(opcodes))
	for k := range opcodes {
		if k != OpGravity {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		if v := opcodes[k]; v != "" {
			ops = append(ops, k+" "+v+";")
		} else {
			ops = append(ops, k+";")
		}
	}
	if len(ops) > 0 {
		sb.WriteString(" " + strings.Join(ops, " "))
	}
	return sb.String()
}
