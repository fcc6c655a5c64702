package shell

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/domino14/mnkgame/ai"
	"github.com/domino14/mnkgame/config"
	"github.com/domino14/mnkgame/negamax"
)

// ShellOptions configure new games and how the computer plays.
type ShellOptions struct {
	rows, cols, winLength int
	gravity               bool

	mode      ai.Mode
	timeLimit time.Duration
	maxDepth  int
	threads   int
	randomize bool
	// computerPlays makes the computer move first in new games.
	computerPlays bool
	// opponent has the computer answer every move played with `move`.
	opponent bool
}

var optionKeys = []string{"rows", "cols", "k", "gravity", "mode", "time", "depth",
	"threads", "randomize", "computer-plays", "opponent"}

func NewShellOptions(cfg *config.Config) *ShellOptions {
	mode, err := ai.ParseMode(cfg.GetString(config.ConfigAIMode))
	if err != nil {
		mode = ai.ModeAlphaBeta
	}
	return &ShellOptions{
		rows:          cfg.GetInt(config.ConfigRows),
		cols:          cfg.GetInt(config.ConfigCols),
		winLength:     cfg.GetInt(config.ConfigWinLength),
		gravity:       cfg.GetBool(config.ConfigGravity),
		mode:          mode,
		timeLimit:     cfg.AITimeLimit(),
		maxDepth:      cfg.GetInt(config.ConfigAIMaxDepth),
		threads:       max(cfg.GetInt(config.ConfigAIThreads), 1),
		randomize:     cfg.GetBool(config.ConfigAIRandomize),
		computerPlays: cfg.GetBool(config.ConfigComputerPlays),
		opponent:      true,
	}
}

func (opts *ShellOptions) searchConfig() negamax.SearchConfig {
	return negamax.SearchConfig{TimeLimit: opts.timeLimit, MaxDepth: opts.maxDepth, Randomize: opts.randomize}
}

func (opts *ShellOptions) Show(key string) (bool, string) {
	switch key {
	case "rows":
		return true, strconv.Itoa(opts.rows)
	case "cols":
		return true, strconv.Itoa(opts.cols)
	case "k":
		return true, strconv.Itoa(opts.winLength)
	case "gravity":
		return true, strconv.FormatBool(opts.gravity)
	case "mode":
		return true, opts.mode.String()
	case "time":
		return true, strconv.FormatFloat(opts.timeLimit.Seconds(), 'f', -1, 64)
	case "depth":
		return true, strconv.Itoa(opts.maxDepth)
	case "threads":
		return true, strconv.Itoa(opts.threads)
	case "randomize":
		return true, strconv.FormatBool(opts.randomize)
	case "computer-plays":
		return true, strconv.FormatBool(opts.computerPlays)
	case "opponent":
		return true, strconv.FormatBool(opts.opponent)
	default:
		return false, "No such option: " + key
	}
}

// Set changes one option and returns its new value as shown.
func (opts *ShellOptions) Set(key, value string) (string, error) {
	var err error
	switch key {
	case "rows":
		opts.rows, err = positiveInt(value)
	case "cols":
		opts.cols, err = positiveInt(value)
	case "k":
		opts.winLength, err = positiveInt(value)
	case "gravity":
		opts.gravity, err = strconv.ParseBool(value)
	case "mode":
		opts.mode, err = ai.ParseMode(value)
	case "time":
		var secs float64
		secs, err = strconv.ParseFloat(value, 64)
		if err == nil {
			opts.timeLimit = time.Duration(secs * float64(time.Second))
		}
	case "depth":
		opts.maxDepth, err = strconv.Atoi(value)
		if err == nil && opts.maxDepth < 0 {
			err = fmt.Errorf("depth must not be negative")
		}
	case "threads":
		opts.threads, err = positiveInt(value)
	case "randomize":
		opts.randomize, err = strconv.ParseBool(value)
	case "computer-plays":
		opts.computerPlays, err = strconv.ParseBool(value)
	case "opponent":
		opts.opponent, err = strconv.ParseBool(value)
	default:
		return "", fmt.Errorf("no such option: %s", key)
	}
	if err != nil {
		return "", err
	}
	_, shown := opts.Show(key)
	return shown, nil
}

func positiveInt(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, fmt.Errorf("%d is not positive", n)
	}
	return n, nil
}

func (opts *ShellOptions) ToDisplayText() string {
	out := strings.Builder{}
	out.WriteString("Settings:\n")
	for _, key := range optionKeys {
		_, val := opts.Show(key)
		out.WriteString("  " + key + ": ")
		out.WriteString(val + "\n")
	}
	return out.String()
}
