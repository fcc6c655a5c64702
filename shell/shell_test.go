package shell

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/matryer/is"
	"github.com/rs/zerolog"

	"github.com/domino14/mnkgame/ai"
	"github.com/domino14/mnkgame/board"
	"github.com/domino14/mnkgame/config"
	"github.com/domino14/mnkgame/move"
	"github.com/domino14/mnkgame/negamax"
)

func TestMain(m *testing.M) {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	os.Exit(m.Run())
}

func newTestController(t *testing.T) (*ShellController, *bytes.Buffer) {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Set(config.ConfigAutoplayLog, filepath.Join(t.TempDir(), "autoplay.csv"))
	cfg.Set(config.ConfigAITimeLimit, 5.0)
	var out bytes.Buffer
	sc := newController(&cfg, "test", &out)
	t.Cleanup(sc.Cleanup)
	return sc, &out
}

// run executes a command line and fails the test on error.
func run(t *testing.T, sc *ShellController, line string) string {
	t.Helper()
	r, err := sc.handle(context.Background(), line)
	if err != nil {
		t.Fatalf("%s: %v", line, err)
	}
	if r == nil {
		return ""
	}
	return r.message
}

func TestExtractFields(t *testing.T) {
	is := is.New(t)
	type testdata struct {
		line   string
		expCmd *shellcmd
		expErr error
	}
	cases := []testdata{
		{"", nil, errNoData},
		{"autoplay -log /path/to/log.csv",
			&shellcmd{"autoplay", nil, CmdOptions{"log": {"/path/to/log.csv"}}},
			nil},
		{"autoplay stop",
			&shellcmd{"autoplay", []string{"stop"}, CmdOptions{}},
			nil},
		{"new 6 7 4 -gravity true ",
			&shellcmd{"new", []string{"6", "7", "4"}, CmdOptions{"gravity": {"true"}}},
			nil},
		{`mnkp "3/1X1/O2 X 3"`,
			&shellcmd{"mnkp", []string{"3/1X1/O2 X 3"}, CmdOptions{}},
			nil},
		{"undo -1",
			&shellcmd{"undo", []string{"-1"}, CmdOptions{}},
			nil},
		{"autoplay -games 10 -threads",
			nil, errWrongOptionSyntax},
	}
	for _, tc := range cases {
		cmd, err := extractFields(tc.line)
		is.Equal(cmd, tc.expCmd)
		is.Equal(err, tc.expErr)
	}
}

func TestPlayAndUndo(t *testing.T) {
	is := is.New(t)
	sc, _ := newTestController(t)
	_, err := sc.handle(context.Background(), "move 1,1")
	is.Equal(err, errNoGame)

	run(t, sc, "set opponent false")
	run(t, sc, "new")
	run(t, sc, "move 1,1")
	run(t, sc, "move 0 0")
	is.Equal(sc.board.At(1, 1), board.PlayerA)
	is.Equal(sc.board.At(0, 0), board.PlayerB)

	_, err = sc.handle(context.Background(), "move 1,1")
	is.True(errors.Is(err, board.ErrIllegalMove))
	is.Equal(sc.board.MoveCount(), 2)

	_, err = sc.handle(context.Background(), "undo 3")
	is.True(errors.Is(err, board.ErrNothingToUndo))
	is.Equal(sc.board.MoveCount(), 2)

	run(t, sc, "undo 2")
	is.Equal(sc.board.MoveCount(), 0)
	_, err = sc.handle(context.Background(), "undo")
	is.True(errors.Is(err, board.ErrNothingToUndo))
}

func TestComputerAnswers(t *testing.T) {
	is := is.New(t)
	sc, _ := newTestController(t)
	run(t, sc, "new")
	out := run(t, sc, "move 0,0")
	is.True(strings.HasPrefix(out, "Computer (alphabeta) plays"))
	is.Equal(sc.board.MoveCount(), 2)
	// Only the center holds against a corner opening.
	is.Equal(sc.board.At(1, 1), board.PlayerB)
	is.Equal(sc.names, [2]string{"human", "computer-alphabeta"})
}

func TestFailedReplyTakesMoveBack(t *testing.T) {
	is := is.New(t)
	sc, _ := newTestController(t)
	run(t, sc, "set mode alphabeta_optimized")
	run(t, sc, "set threads 2")
	run(t, sc, "new")
	// Helper threads need the table, so the computer's search fails.
	sc.player.Solver().SetTranspositionTableOptim(false)
	_, err := sc.handle(context.Background(), "move 0,0")
	is.True(errors.Is(err, negamax.ErrLazySMPNeedsTT))
	is.Equal(sc.board.MoveCount(), 0)
	is.Equal(sc.board.ToMove(), board.PlayerA)
}

func TestComputerPlaysFirst(t *testing.T) {
	is := is.New(t)
	sc, _ := newTestController(t)
	run(t, sc, "set computer-plays true")
	run(t, sc, "set mode first_sorted")
	run(t, sc, "new")
	is.Equal(sc.board.MoveCount(), 1)
	is.Equal(sc.board.At(1, 1), board.PlayerA)
	is.Equal(sc.names, [2]string{"computer-first_sorted", "human"})
}

func TestNewGameArgs(t *testing.T) {
	is := is.New(t)
	sc, _ := newTestController(t)
	run(t, sc, "set opponent false")
	run(t, sc, "new 6 7 4 -gravity true")
	is.Equal(sc.board.Rows(), 6)
	is.Equal(sc.board.Cols(), 7)
	is.True(sc.board.Gravity())
	run(t, sc, "move 3")
	is.Equal(sc.board.At(5, 3), board.PlayerA)

	// A bad size leaves the game and the settings alone.
	_, err := sc.handle(context.Background(), "new 3 3 5")
	is.True(errors.Is(err, board.ErrInvalidConfiguration))
	is.Equal(sc.options.rows, 6)
	is.Equal(sc.board.MoveCount(), 1)

	_, err = sc.handle(context.Background(), "new 3 3")
	is.True(err != nil)
}

func TestBestDoesNotPlay(t *testing.T) {
	is := is.New(t)
	sc, _ := newTestController(t)
	run(t, sc, "mnkp XX1/OO1/3 X 3")
	out := run(t, sc, "best")
	is.True(strings.HasPrefix(out, "Best move (alphabeta): (0,2) [wins in 1"))
	is.Equal(sc.board.MoveCount(), 4)

	out = run(t, sc, "aiplay")
	is.True(strings.Contains(out, "Winning line: (0,0) (0,1) (0,2)"))
	is.Equal(sc.board.Result(), board.GameResult{Kind: board.Win, Winner: board.PlayerA})

	_, err := sc.handle(context.Background(), "aiplay")
	is.True(err != nil)
}

func TestMNKP(t *testing.T) {
	is := is.New(t)
	sc, _ := newTestController(t)
	_, err := sc.handle(context.Background(), "mnkp")
	is.Equal(err, errNoGame)
	run(t, sc, `mnkp "3/1X1/O2 X 3"`)
	is.Equal(run(t, sc, "mnkp"), "3/1X1/O2 X 3")
	_, err = sc.handle(context.Background(), "mnkp 3/3 X")
	is.True(err != nil)
}

func TestSaveLoadList(t *testing.T) {
	is := is.New(t)
	sc, _ := newTestController(t)
	is.Equal(run(t, sc, "list"), "no saved games")

	run(t, sc, "set opponent false")
	run(t, sc, "new")
	for _, m := range []string{"0,0", "1,0", "0,1", "1,1", "0,2"} {
		run(t, sc, "move "+m)
	}
	out := run(t, sc, "show")
	is.True(strings.Contains(out, "X wins"))
	is.True(strings.Contains(out, "Winning line: (0,0) (0,1) (0,2)"))

	is.True(strings.HasPrefix(run(t, sc, "save"), "saved #1 3x3 k=3 human vs computer-alphabeta: X"))
	is.True(strings.HasPrefix(run(t, sc, "save"), "already saved as #1"))

	final := sc.board.Copy()
	run(t, sc, "new")
	run(t, sc, "load 1")
	is.True(sc.board.Equals(final))
	last, ok := sc.board.LastMove()
	is.True(ok)
	is.Equal(last, move.At(0, 2))

	is.True(strings.HasPrefix(run(t, sc, "list"), "#1 3x3 k=3"))
	_, err := sc.handle(context.Background(), "load 7")
	is.True(err != nil)
}

func TestSettings(t *testing.T) {
	is := is.New(t)
	sc, _ := newTestController(t)
	is.True(strings.HasPrefix(run(t, sc, "set"), "Settings:\n"))
	is.Equal(run(t, sc, "set mode"), "alphabeta")
	is.Equal(run(t, sc, "set mode PVS"), "set mode to pvs")
	is.Equal(sc.player.Mode(), ai.ModePVS)
	is.True(strings.HasPrefix(run(t, sc, "mode"), "Current mode: pvs"))
	run(t, sc, "mode alphabeta_optimized")
	is.Equal(sc.player.Mode(), ai.ModeAlphaBetaOptimized)
	is.Equal(run(t, sc, "set time 0.5"), "set time to 0.5")
	is.Equal(sc.options.timeLimit, 500*time.Millisecond)

	_, err := sc.handle(context.Background(), "set mode minimax")
	is.True(errors.Is(err, ai.ErrUnknownMode))
	_, err = sc.handle(context.Background(), "set rows 0")
	is.True(err != nil)
	_, err = sc.handle(context.Background(), "set colour blue")
	is.True(err != nil)
}

func TestAutoplayWaitsOutsideTheREPL(t *testing.T) {
	is := is.New(t)
	sc, _ := newTestController(t)
	logfile := sc.config.GetString(config.ConfigAutoplayLog)

	out := run(t, sc, "autoplay -games 4 -mode1 first_sorted -mode2 random -time 1")
	is.True(strings.HasPrefix(out, "Games played: 4\n"))
	is.True(strings.Contains(out, "first_sorted-1 wins"))

	yamlFile := filepath.Join(t.TempDir(), "match.yaml")
	run(t, sc, "autoplay export "+yamlFile)
	_, err := os.Stat(yamlFile)
	is.NoErr(err)

	is.True(strings.HasPrefix(run(t, sc, "analyze"), "Games played: 4\n"))
	is.True(strings.HasPrefix(run(t, sc, "analyze "+logfile), "Games played: 4\n"))

	_, err = sc.handle(context.Background(), "autoplay -games 0")
	is.True(err != nil)
	_, err = sc.handle(context.Background(), "autoplay -mode2 minimax")
	is.True(errors.Is(err, ai.ErrUnknownMode))
}

func TestAutoplayInBackground(t *testing.T) {
	is := is.New(t)
	sc, _ := newTestController(t)
	sc.interactive = true
	_, err := sc.handle(context.Background(), "autoplay show")
	is.True(err != nil)

	out := run(t, sc, "autoplay -games 3 -mode1 random -mode2 random")
	is.True(strings.HasPrefix(out, "Playing 3 games of random-1 vs random-2"))

	deadline := time.Now().Add(30 * time.Second)
	for {
		if _, err := sc.finishedMatch(); err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("match did not finish")
		}
		time.Sleep(10 * time.Millisecond)
	}
	is.True(strings.HasPrefix(run(t, sc, "autoplay show"), "Games played: 3\n"))
	is.True(!sc.stopMatch())
}

const testScript = `
local json = require("json")
mnk_set("opponent false")
mnk_new("3 3 3")
mnk_move("0,0")
mnk_move("1,0")
mnk_move("0,1")
mnk_move("1,1")
local best = mnk_best()
assert(best.move == "0,2", "best move " .. best.move)
mnk_move(best.move)
local st = mnk_state()
assert(st.result == "win(X)", st.result)
assert(#st.moves == 5)
local err = mnk_move("2,2")
assert(string.sub(err, 1, 6) == "ERROR:", err)
local f = io.open(args[1], "w")
f:write(json.encode({winner = st.winner, moves = #st.moves, mnkp = st.mnkp}))
f:close()
`

func TestScript(t *testing.T) {
	is := is.New(t)
	sc, _ := newTestController(t)
	dir := t.TempDir()
	script := filepath.Join(dir, "game.lua")
	is.NoErr(os.WriteFile(script, []byte(testScript), 0o644))
	outFile := filepath.Join(dir, "out.json")

	run(t, sc, "script "+script+" "+outFile)

	data, err := os.ReadFile(outFile)
	is.NoErr(err)
	var got struct {
		Winner string `json:"winner"`
		Moves  int    `json:"moves"`
		MNKP   string `json:"mnkp"`
	}
	is.NoErr(json.Unmarshal(data, &got))
	is.Equal(got.Winner, "X")
	is.Equal(got.Moves, 5)
	is.Equal(got.MNKP, "XXX/OO1/3 O 3")

	_, err = sc.handle(context.Background(), "script "+filepath.Join(dir, "missing.lua"))
	is.True(err != nil)
}

const postScript = `
local http = require("http")
local json = require("json")
mnk_new("4 5 3")
local resp, err = http.post(args[1], {body = json.encode(mnk_state())})
assert(resp, err)
assert(resp.status_code == 200, resp.status_code)
`

func TestScriptPostsState(t *testing.T) {
	is := is.New(t)
	sc, _ := newTestController(t)
	got := make(chan []byte, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		got <- body
	}))
	defer srv.Close()

	script := filepath.Join(t.TempDir(), "post.lua")
	is.NoErr(os.WriteFile(script, []byte(postScript), 0o644))
	run(t, sc, "script "+script+" "+srv.URL)

	var st struct {
		Rows int    `json:"rows"`
		Cols int    `json:"cols"`
		MNKP string `json:"mnkp"`
	}
	is.NoErr(json.Unmarshal(<-got, &st))
	is.Equal(st.Rows, 4)
	is.Equal(st.Cols, 5)
	is.Equal(st.MNKP, "5/5/5/5 X 3")
}

func TestHelp(t *testing.T) {
	is := is.New(t)
	sc, _ := newTestController(t)
	general := run(t, sc, "help")
	is.True(strings.HasPrefix(general, "Commands:"))
	is.True(strings.HasSuffix(general, "\nversion test"))
	for _, topic := range commandMetadata["help"].Args {
		run(t, sc, "help "+topic)
	}
	_, err := sc.handle(context.Background(), "help nope")
	is.True(err != nil)
	_, err = sc.handle(context.Background(), "frobnicate")
	is.True(err != nil)
	_, err = sc.handle(context.Background(), "exit")
	is.Equal(err, errQuit)
}

func TestExecute(t *testing.T) {
	is := is.New(t)
	sc, out := newTestController(t)
	sig := make(chan os.Signal, 1)
	is.True(!sc.Execute(sig, "   "))
	is.True(!sc.Execute(sig, "show"))
	is.True(strings.HasPrefix(out.String(), "Error: no game in progress"))
	is.True(sc.Execute(sig, "exit"))
	is.Equal(len(sig), 1)
}

func completions(c *ShellCompleter, text string) []string {
	matches, _ := c.Do([]rune(text), len(text))
	var out []string
	for _, m := range matches {
		out = append(out, string(m))
	}
	return out
}

func TestCompleter(t *testing.T) {
	is := is.New(t)
	sc, _ := newTestController(t)
	c := NewShellCompleter(sc)
	is.Equal(completions(c, "aut"), []string{"oplay"})
	is.Equal(completions(c, "set mode alphabeta_h"), []string{"ashing"})
	is.Equal(len(completions(c, "mode ")), len(ai.ModeNames()))
	is.Equal(completions(c, "autoplay -mode1 pv"), []string{"s"})
	is.Equal(completions(c, "new -gravity t"), []string{"rue"})
	is.Equal(completions(c, "set computer-plays f"), []string{"alse"})
}
