package automatic

import (
	"bytes"
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/matryer/is"
	"gopkg.in/yaml.v3"

	"github.com/domino14/mnkgame/ai"
	"github.com/domino14/mnkgame/stats"
)

func TestPlayMatch(t *testing.T) {
	is := is.New(t)
	logfile := filepath.Join(t.TempDir(), "autoplay.csv")
	cfg := ticTacToe([2]ai.Mode{ai.ModeAlphaBeta, ai.ModeRandom})
	cfg.NumGames = 6
	cfg.Threads = 2
	cfg.LogFile = logfile

	res, err := PlayMatch(context.Background(), cfg)
	is.NoErr(err)
	is.Equal(len(res.Records), 6)
	is.Equal(res.Tally.Games(), 6)
	is.Equal(res.Tally.Losses, 0)
	is.Equal(CVCCounter.Value(), int64(6))
	is.Equal(IsPlaying.Value(), int64(0))

	firsts := 0
	moves := 0
	for _, rec := range res.Records {
		firsts += rec.FirstPlayer
		moves += rec.Moves
	}
	is.Equal(firsts, 3)

	f, err := os.Open(logfile)
	is.NoErr(err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	is.NoErr(err)
	is.Equal(rows[0], LogHeader)
	is.Equal(len(rows), moves+1)

	// The log tells the same story as the in-memory records.
	f.Seek(0, 0)
	tally, err := analyzeLog(f)
	is.NoErr(err)
	is.Equal(tally.Player1, "alphabeta-1")
	is.Equal(tally.Player2, "random-2")
	is.Equal(tally.Wins, res.Tally.Wins)
	is.Equal(tally.Draws, res.Tally.Draws)
	is.Equal(tally.Losses, res.Tally.Losses)
	is.Equal(tally.WentFirstWins, res.Tally.WentFirstWins)

	summary, err := AnalyzeLogFile(logfile)
	is.NoErr(err)
	is.True(strings.HasPrefix(summary, "Games played: 6\n"))
}

func TestMatchSummaryYAML(t *testing.T) {
	is := is.New(t)
	cfg := ticTacToe([2]ai.Mode{ai.ModeFirstSorted, ai.ModeRandom})
	cfg.NumGames = 4
	res, err := PlayMatch(context.Background(), cfg)
	is.NoErr(err)

	var buf bytes.Buffer
	is.NoErr(res.WriteYAML(&buf))
	var out MatchSummary
	is.NoErr(yaml.Unmarshal(buf.Bytes(), &out))
	is.Equal(out.Board, "3x3 k=3 free")
	is.Equal(out.Player1, "first_sorted-1")
	is.Equal(out.Games, 4)
	is.Equal(out.Wins+out.Draws+out.Losses, 4)
	is.Equal(out.TimeLimit, 10.0)
	is.True(out.CILow <= out.WinRate && out.WinRate <= out.CIHigh)
}

func TestAlreadyPlaying(t *testing.T) {
	is := is.New(t)
	IsPlaying.Set(1)
	defer IsPlaying.Set(0)
	_, err := PlayMatch(context.Background(), ticTacToe([2]ai.Mode{ai.ModeRandom, ai.ModeRandom}))
	is.Equal(err, ErrAlreadyPlaying)
}

func TestStoppedMatch(t *testing.T) {
	is := is.New(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	cfg := ticTacToe([2]ai.Mode{ai.ModeRandom, ai.ModeRandom})
	cfg.NumGames = 100
	cfg.Threads = 3
	res, err := PlayMatch(ctx, cfg)
	is.NoErr(err)
	is.Equal(len(res.Records), 0)
	is.Equal(IsPlaying.Value(), int64(0))
}

func TestAnalyzeLogSkipsUnfinishedGames(t *testing.T) {
	is := is.New(t)
	log := strings.Join([]string{
		strings.Join(LogHeader, ","),
		"g1,1,pvs-1,b2,0,9,100,0.1,",
		"g1,2,random-2,a1,0,0,0,0,",
		"g1,3,pvs-1,c3,0,7,50,0.1,win(X)",
		"g2,1,random-2,a1,0,0,0,0,",
		"g2,2,pvs-1,b2,0,8,70,0.1,",
		"g3,1,random-2,a1,0,0,0,0,",
		"g3,2,pvs-1,b2,0,8,70,0.1,draw",
	}, "\n") + "\n"
	tally, err := analyzeLog(strings.NewReader(log))
	is.NoErr(err)
	is.Equal(tally.Games(), 2)
	is.Equal(tally.Wins, 1)
	is.Equal(tally.Draws, 1)
	is.Equal(tally.WentFirstWins, 1)
	is.Equal(tally.Nodes.Mean(), 110.0)
	is.True(stats.FuzzyEqual(tally.GameLength.Mean(), 2.5))
}

func TestCompressedLog(t *testing.T) {
	is := is.New(t)
	logfile := filepath.Join(t.TempDir(), "autoplay.csv"+CompressedLogSuffix)
	cfg := ticTacToe([2]ai.Mode{ai.ModeFirstSorted, ai.ModeRandomWeighted})
	cfg.NumGames = 5
	cfg.LogFile = logfile
	res, err := PlayMatch(context.Background(), cfg)
	is.NoErr(err)

	// The file on disk is not plain CSV.
	raw, err := os.ReadFile(logfile)
	is.NoErr(err)
	is.True(!bytes.HasPrefix(raw, []byte(LogHeader[0])))

	f, err := openLog(logfile)
	is.NoErr(err)
	defer f.Close()
	tally, err := analyzeLog(f)
	is.NoErr(err)
	is.Equal(tally.Games(), 5)
	is.Equal(tally.Wins, res.Tally.Wins)

	summary, err := AnalyzeLogFile(logfile)
	is.NoErr(err)
	is.True(strings.HasPrefix(summary, "Games played: 5\n"))
}
