// Package shell is the interactive front end: a readline REPL that plays
// m,n,k games against the computer, runs computer-vs-computer matches and
// keeps finished games in the game database.
package shell

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"syscall"

	"github.com/chzyer/readline"
	"github.com/kballard/go-shellquote"
	"github.com/rs/zerolog/log"

	"github.com/domino14/mnkgame/ai"
	"github.com/domino14/mnkgame/automatic"
	"github.com/domino14/mnkgame/board"
	"github.com/domino14/mnkgame/config"
	"github.com/domino14/mnkgame/gamedb"
)

var (
	errNoData            = errors.New("no data in this line")
	errWrongOptionSyntax = errors.New("wrong format; all options need arguments")
	errNoGame            = errors.New("no game in progress; start one with `new`")
	errBusy              = errors.New("a match is being played; `autoplay stop` first")
	errQuit              = errors.New("quit")
)

type shellcmd struct {
	cmd     string
	args    []string
	options CmdOptions
}

type ShellController struct {
	l          *readline.Instance
	out        io.Writer
	config     *config.Config
	gitVersion string
	// interactive shells run matches in the background.
	interactive bool

	options *ShellOptions
	board   *board.Board
	player  *ai.Player
	// names of the players of X and O, as saved to the game database.
	names [2]string

	store   *gamedb.Store
	storeMu sync.Mutex

	matchMu     sync.Mutex
	matchCancel context.CancelFunc
	matchDone   chan struct{}
	lastMatch   *automatic.MatchResult
}

func filterInput(r rune) (rune, bool) {
	switch r {
	// block CtrlZ feature
	case readline.CharCtrlZ:
		return r, false
	}
	return r, true
}

func writeln(msg string, w io.Writer) {
	io.WriteString(w, msg)
	io.WriteString(w, "\n")
}

func (sc *ShellController) showMessage(msg string) {
	writeln(msg, sc.out)
}

func (sc *ShellController) showError(err error) {
	sc.showMessage("Error: " + err.Error())
}

// newController builds a controller that writes to out and has no line
// editor attached.
func newController(cfg *config.Config, gitVersion string, out io.Writer) *ShellController {
	sc := &ShellController{
		out:        out,
		config:     cfg,
		gitVersion: gitVersion,
		options:    NewShellOptions(cfg),
	}
	sc.player = ai.NewPlayer(sc.options.mode)
	sc.player.Solver().SetTranspositionTableSizing(
		cfg.GetFloat64(config.ConfigTTFractionOfMem), cfg.GetInt(config.ConfigTTMinSizePower))
	sc.player.SetThreads(sc.options.threads)
	return sc
}

func NewShellController(cfg *config.Config, gitVersion string) *ShellController {
	sc := newController(cfg, gitVersion, os.Stderr)
	l, err := readline.NewEx(&readline.Config{
		Prompt:          "\033[32mmnk>\033[0m ",
		HistoryFile:     "/tmp/mnk-readline.tmp",
		AutoComplete:    NewShellCompleter(sc),
		EOFPrompt:       "exit",
		InterruptPrompt: "^C",

		HistorySearchFold:   true,
		FuncFilterInputRune: filterInput,
	})
	if err != nil {
		panic(err)
	}
	sc.l = l
	sc.out = l.Stderr()
	sc.interactive = true
	return sc
}

// extractFields splits a line into a command, its arguments, and its
// -option value pairs. Quoting follows shell rules.
func extractFields(line string) (*shellcmd, error) {
	fields, err := shellquote.Split(line)
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, errNoData
	}
	cmd := &shellcmd{cmd: fields[0], options: CmdOptions{}}
	for i := 1; i < len(fields); i++ {
		f := fields[i]
		if strings.HasPrefix(f, "-") && len(f) > 1 && !isNumber(f) {
			if i == len(fields)-1 {
				return nil, errWrongOptionSyntax
			}
			key := f[1:]
			cmd.options[key] = append(cmd.options[key], fields[i+1])
			i++
			continue
		}
		cmd.args = append(cmd.args, f)
	}
	return cmd, nil
}

func isNumber(s string) bool {
	_, err := strconv.ParseFloat(s, 64)
	return err == nil
}

func (sc *ShellController) gameStore(ctx context.Context) (*gamedb.Store, error) {
	sc.storeMu.Lock()
	defer sc.storeMu.Unlock()
	if sc.store != nil {
		return sc.store, nil
	}
	st, err := gamedb.Open(ctx, sc.config.GetString(config.ConfigGameDBPath))
	if err != nil {
		return nil, err
	}
	sc.store = st
	return st, nil
}

func (sc *ShellController) handle(ctx context.Context, line string) (*Response, error) {
	cmd, err := extractFields(line)
	if err != nil {
		return nil, err
	}
	switch cmd.cmd {
	case "new", "n":
		return sc.newGame(ctx, cmd)
	case "show", "s":
		return sc.show(cmd)
	case "move", "m", "play":
		return sc.move(ctx, cmd)
	case "undo", "u":
		return sc.undo(cmd)
	case "aiplay", "ai", "a":
		return sc.aiplay(ctx, cmd)
	case "best":
		return sc.best(ctx, cmd)
	case "mnkp":
		return sc.mnkp(cmd)
	case "set":
		return sc.set(cmd)
	case "mode":
		return sc.setMode(cmd)
	case "save":
		return sc.save(ctx, cmd)
	case "load":
		return sc.load(ctx, cmd)
	case "list":
		return sc.list(ctx, cmd)
	case "autoplay":
		return sc.autoplay(ctx, cmd)
	case "analyze":
		return sc.analyze(cmd)
	case "script":
		return sc.script(ctx, cmd)
	case "help", "h":
		return sc.help(cmd)
	case "exit", "bye", "quit":
		return nil, errQuit
	default:
		msg := fmt.Sprintf("command %v not found", strconv.Quote(cmd.cmd))
		log.Info().Msg(msg)
		return nil, errors.New(msg)
	}
}

// Execute runs one command line. It reports whether the shell should quit.
func (sc *ShellController) Execute(sig chan os.Signal, line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}
	resp, err := sc.handle(context.Background(), line)
	if errors.Is(err, errQuit) {
		sig <- syscall.SIGINT
		return true
	}
	if err != nil {
		sc.showError(err)
		return false
	}
	if resp != nil && resp.message != "" {
		sc.showMessage(resp.message)
	}
	return false
}

func (sc *ShellController) Loop(sig chan os.Signal) {
	defer sc.l.Close()
	for {
		line, err := sc.l.Readline()
		if err == readline.ErrInterrupt {
			if len(line) == 0 {
				sig <- syscall.SIGINT
				break
			}
			continue
		} else if err == io.EOF {
			sig <- syscall.SIGINT
			break
		}
		if sc.Execute(sig, line) {
			break
		}
	}
	log.Debug().Msgf("Exiting readline loop...")
}

// Cleanup stops any running match and closes the game database.
func (sc *ShellController) Cleanup() {
	sc.stopMatch()
	sc.storeMu.Lock()
	defer sc.storeMu.Unlock()
	if sc.store != nil {
		if err := sc.store.Close(); err != nil {
			log.Err(err).Msg("closing-gamedb")
		}
		sc.store = nil
	}
}
