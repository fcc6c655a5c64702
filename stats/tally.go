package stats

import (
	"fmt"
	"io"
	"strings"

	"github.com/aybabtme/uniplot/histogram"
)

// Outcome of one game, from the first named player's point of view.
type Outcome int

const (
	Loss Outcome = iota
	Draw
	Win
)

// Tally counts the results of a match between two players and the length
// of its games.
type Tally struct {
	Player1, Player2 string

	Wins, Draws, Losses int
	// WentFirstWins counts games won by whoever moved first.
	WentFirstWins int

	GameLength *Statistic
	Nodes      *Statistic
}

func NewTally(player1, player2 string) *Tally {
	return &Tally{
		Player1:    player1,
		Player2:    player2,
		GameLength: NewSampledStatistic(),
		Nodes:      &Statistic{},
	}
}

// Add records one game. player1First says whether Player1 made the first
// move; length is the number of moves played.
func (t *Tally) Add(o Outcome, player1First bool, length int) {
	switch o {
	case Win:
		t.Wins++
		if player1First {
			t.WentFirstWins++
		}
	case Draw:
		t.Draws++
	case Loss:
		t.Losses++
		if !player1First {
			t.WentFirstWins++
		}
	}
	t.GameLength.Push(float64(length))
}

func (t *Tally) Games() int {
	return t.Wins + t.Draws + t.Losses
}

// Score is Player1's points with a draw worth half a win.
func (t *Tally) Score() float64 {
	return float64(t.Wins) + 0.5*float64(t.Draws)
}

// WinRate is Player1's score per game.
func (t *Tally) WinRate() float64 {
	if t.Games() == 0 {
		return 0
	}
	return t.Score() / float64(t.Games())
}

// WinRateInterval is the Wilson interval around WinRate.
func (t *Tally) WinRateInterval(confidenceInterval float64) (float64, float64) {
	return WilsonInterval(t.Score(), t.Games(), confidenceInterval)
}

// Summary renders the tally as text.
func (t *Tally) Summary() string {
	var sb strings.Builder
	games := t.Games()
	fmt.Fprintf(&sb, "Games played: %d\n", games)
	if games == 0 {
		return sb.String()
	}
	lo, hi := t.WinRateInterval(95)
	fmt.Fprintf(&sb, "%s wins: %d, draws: %d, %s wins: %d\n", t.Player1, t.Wins, t.Draws, t.Player2, t.Losses)
	fmt.Fprintf(&sb, "%s score: %.1f (%.3f%%, 95%% CI %.3f%% - %.3f%%)\n",
		t.Player1, t.Score(), 100*t.WinRate(), 100*lo, 100*hi)
	fmt.Fprintf(&sb, "Player who went first wins: %d (%.3f%%)\n",
		t.WentFirstWins, 100*float64(t.WentFirstWins)/float64(games))
	fmt.Fprintf(&sb, "Game length mean: %.3f  Stdev: %.3f  Min: %.0f  Max: %.0f\n",
		t.GameLength.Mean(), t.GameLength.Stdev(), t.GameLength.Min(), t.GameLength.Max())
	if t.Nodes.Iterations() > 0 {
		fmt.Fprintf(&sb, "Nodes per game mean: %.1f  Stdev: %.1f\n", t.Nodes.Mean(), t.Nodes.Stdev())
	}
	return sb.String()
}

// WriteHistogram draws the distribution of game lengths.
func (t *Tally) WriteHistogram(w io.Writer, bins int) error {
	samples := t.GameLength.Samples()
	if len(samples) == 0 {
		_, err := io.WriteString(w, "(no games)\n")
		return err
	}
	hist := histogram.Hist(bins, samples)
	return histogram.Fprint(w, hist, histogram.Linear(40))
}
