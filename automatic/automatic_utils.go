package automatic

// Data collection for automatic games: computer vs computer matches.

import (
	"context"
	"encoding/csv"
	"errors"
	"expvar"
	"fmt"
	"io"
	"math"
	"sync"

	"github.com/cespare/xxhash"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"
	"lukechampine.com/frand"

	"github.com/domino14/mnkgame/stats"
)

var (
	CVCCounter *expvar.Int
	IsPlaying  *expvar.Int
)

var ErrAlreadyPlaying = errors.New("games are already being played, please wait till complete")

func init() {
	CVCCounter = expvar.NewInt("cvcCounter")
	IsPlaying = expvar.NewInt("isPlaying")
}

// LogHeader names the columns of the per-move log.
var LogHeader = []string{"gameID", "turn", "player", "move", "score", "depth", "nodes", "seconds", "result"}

// MatchResult holds every game of a finished (or stopped) match.
type MatchResult struct {
	Config  MatchConfig
	Records []GameRecord
	Tally   *stats.Tally
}

type job struct {
	idx int
	id  string
}

func newGameID(salt uint64, idx int) string {
	return fmt.Sprintf("%016x", xxhash.Sum64String(fmt.Sprintf("%x/%d", salt, idx)))
}

// PlayMatch plays cfg.NumGames games on cfg.Threads threads, with the
// players taking turns at moving first. If cfg.LogFile is set, every move
// is logged there as CSV, zstd-compressed if the name ends in .zst. Stopping ctx stops the match; the games finished
// so far are returned.
func PlayMatch(ctx context.Context, cfg MatchConfig) (*MatchResult, error) {
	if IsPlaying.Value() > 0 {
		return nil, ErrAlreadyPlaying
	}
	threads := max(cfg.Threads, 1)
	var logfile io.WriteCloser
	if cfg.LogFile != "" {
		f, err := createLog(cfg.LogFile)
		if err != nil {
			return nil, err
		}
		logfile = f
	}
	log.Debug().Msgf("Starting %v games, %v threads", cfg.NumGames, threads)

	// One runner per thread; this also checks the board configuration
	// before anything starts.
	runners := make([]*GameRunner, threads)
	var logChan chan []string
	if logfile != nil {
		logChan = make(chan []string, 100)
	}
	for t := range runners {
		r, err := NewGameRunner(logChan, cfg)
		if err != nil {
			if logfile != nil {
				logfile.Close()
			}
			return nil, err
		}
		runners[t] = r
	}

	CVCCounter.Set(0)
	jobs := make(chan job, 100)
	records := make(chan GameRecord, 100)
	loggerDone := make(chan error, 1)
	if logChan != nil {
		go func() {
			w := csv.NewWriter(logfile)
			w.Write(LogHeader)
			for rec := range logChan {
				w.Write(rec)
			}
			w.Flush()
			err := w.Error()
			if cerr := logfile.Close(); err == nil {
				err = cerr
			}
			log.Info().Msg("Exiting turn logger goroutine!")
			loggerDone <- err
		}()
	}

	g, gctx := errgroup.WithContext(ctx)
	salt := frand.Uint64n(math.MaxUint64)
	g.Go(func() error {
		defer close(jobs)
		for i := 0; i < cfg.NumGames; i++ {
			select {
			case jobs <- job{idx: i, id: newGameID(salt, i)}:
			case <-gctx.Done():
				log.Info().Msg("Got stop signal, exiting soon...")
				return nil
			}
		}
		log.Info().Msg("Finished queueing all jobs.")
		return nil
	})

	var wg sync.WaitGroup
	IsPlaying.Add(int64(threads))
	for _, r := range runners {
		r := r
		wg.Add(1)
		g.Go(func() error {
			defer wg.Done()
			defer IsPlaying.Add(-1)
			for j := range jobs {
				rec, err := r.PlayGame(gctx, j.id, j.idx%2)
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return nil
				}
				if err != nil {
					return err
				}
				records <- rec
				CVCCounter.Add(1)
			}
			return nil
		})
	}
	go func() {
		wg.Wait()
		close(records)
		if logChan != nil {
			close(logChan)
		}
		log.Info().Msg("All games finished.")
	}()

	res := &MatchResult{
		Config: cfg,
		Tally:  stats.NewTally(cfg.PlayerName(0), cfg.PlayerName(1)),
	}
	for rec := range records {
		res.add(rec)
	}
	err := g.Wait()
	if logChan != nil {
		if lerr := <-loggerDone; err == nil {
			err = lerr
		}
	}
	return res, err
}

func (m *MatchResult) add(rec GameRecord) {
	m.Records = append(m.Records, rec)
	outcome := stats.Draw
	switch rec.Winner {
	case 0:
		outcome = stats.Win
	case 1:
		outcome = stats.Loss
	}
	m.Tally.Add(outcome, rec.FirstPlayer == 0, rec.Moves)
	m.Tally.Nodes.Push(float64(rec.Nodes))
}

// MatchSummary is the exportable form of a match result.
type MatchSummary struct {
	Board     string  `yaml:"board"`
	Player1   string  `yaml:"player1"`
	Player2   string  `yaml:"player2"`
	TimeLimit float64 `yaml:"time-limit-sec"`
	Games     int     `yaml:"games"`
	Wins      int     `yaml:"player1-wins"`
	Draws     int     `yaml:"draws"`
	Losses    int     `yaml:"player2-wins"`
	WinRate   float64 `yaml:"player1-win-rate"`
	CILow     float64 `yaml:"ci95-low"`
	CIHigh    float64 `yaml:"ci95-high"`
	MeanMoves float64 `yaml:"mean-moves"`
}

func (m *MatchResult) Summary() MatchSummary {
	lo, hi := m.Tally.WinRateInterval(95)
	mode := "free"
	if m.Config.Gravity {
		mode = "gravity"
	}
	return MatchSummary{
		Board:     fmt.Sprintf("%dx%d k=%d %s", m.Config.Rows, m.Config.Cols, m.Config.WinLength, mode),
		Player1:   m.Tally.Player1,
		Player2:   m.Tally.Player2,
		TimeLimit: m.Config.TimeLimit.Seconds(),
		Games:     m.Tally.Games(),
		Wins:      m.Tally.Wins,
		Draws:     m.Tally.Draws,
		Losses:    m.Tally.Losses,
		WinRate:   m.Tally.WinRate(),
		CILow:     lo,
		CIHigh:    hi,
		MeanMoves: m.Tally.GameLength.Mean(),
	}
}

// WriteYAML exports the summary.
func (m *MatchResult) WriteYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	defer enc.Close()
	return enc.Encode(m.Summary())
}
