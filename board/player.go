package board

// Player is the content of a cell: empty or one of the two marks. It is
// also used to name the side to move.
type Player uint8

const (
	Empty Player = iota
	PlayerA
	PlayerB
)

// Other returns the opponent. Empty maps to Empty.
func (p Player) Other() Player {
	switch p {
	case PlayerA:
		return PlayerB
	case PlayerB:
		return PlayerA
	}
	return Empty
}

func (p Player) String() string {
	switch p {
	case PlayerA:
		return "X"
	case PlayerB:
		return "O"
	}
	return "."
}

// PlayerFromRune is the inverse of String for a single character. Both
// cases are accepted for marks.
func PlayerFromRune(r rune) (Player, bool) {
	switch r {
	case 'X', 'x':
		return PlayerA, true
	case 'O', 'o':
		return PlayerB, true
	case '.':
		return Empty, true
	}
	return Empty, false
}

type ResultKind uint8

const (
	InProgress ResultKind = iota
	Win
	Draw
)

// GameResult is the terminal state of a board. Winner is only set for Win.
type GameResult struct {
	Kind   ResultKind
	Winner Player
}

func (r GameResult) IsTerminal() bool {
	return r.Kind != InProgress
}

func (r GameResult) String() string {
	switch r.Kind {
	case Win:
		return "win(" + r.Winner.String() + ")"
	case Draw:
		return "draw"
	}
	return "in-progress"
}
