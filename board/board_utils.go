package board

import (
	"fmt"
	"strings"
)

// ToDisplayText renders the grid with column numbers across the top and
// row numbers down the side.
func (b *Board) ToDisplayText() string {
	var sb strings.Builder
	w := len(fmt.Sprint(max(b.rows, b.cols) - 1))
	cell := "%" + fmt.Sprint(w) + "s "

	sb.WriteString(strings.Repeat(" ", w+1))
	for c := 0; c < b.cols; c++ {
		fmt.Fprintf(&sb, cell, fmt.Sprint(c))
	}
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat(" ", w) + " " + strings.Repeat("-", b.cols*(w+1)) + "\n")
	for r := 0; r < b.rows; r++ {
		fmt.Fprintf(&sb, "%*d|", w, r)
		for c := 0; c < b.cols; c++ {
			fmt.Fprintf(&sb, cell, b.At(r, c).String())
		}
		sb.WriteString("\n")
	}
	mode := "free"
	if b.gravity {
		mode = "gravity"
	}
	fmt.Fprintf(&sb, "%dx%d k=%d %s, %s\n", b.rows, b.cols, b.k, mode, b.status())
	return sb.String()
}

func (b *Board) status() string {
	switch b.result.Kind {
	case Win:
		return b.result.Winner.String() + " wins"
	case Draw:
		return "draw"
	}
	return b.toMove.String() + " to move"
}

// String is a compact one-line form: rows separated by slashes.
func (b *Board) String() string {
	var sb strings.Builder
	for r := 0; r < b.rows; r++ {
		if r > 0 {
			sb.WriteByte('/')
		}
		for c := 0; c < b.cols; c++ {
			sb.WriteString(b.At(r, c).String())
		}
	}
	sb.WriteString(" " + b.toMove.String())
	return sb.String()
}
