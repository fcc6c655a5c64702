package shell

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/domino14/mnkgame/ai"
	"github.com/domino14/mnkgame/automatic"
	"github.com/domino14/mnkgame/config"
)

const (
	defaultAutoplayGames = 100
	// Each player of each thread gets a table of 2^autoplayTTPower slots.
	autoplayTTPower = 18
	histogramBins   = 10
)

func (sc *ShellController) matchConfig(cmd *shellcmd) (automatic.MatchConfig, error) {
	opts := sc.options
	cfg := automatic.MatchConfig{
		Rows:          opts.rows,
		Cols:          opts.cols,
		WinLength:     opts.winLength,
		Gravity:       opts.gravity,
		MaxDepth:      opts.maxDepth,
		Randomize:     opts.randomize,
		SearchThreads: 1,
		TTSizePower:   autoplayTTPower,
		LogFile:       cmd.options.StringDefault("log", sc.config.GetString(config.ConfigAutoplayLog)),
	}
	var err error
	for i, key := range []string{"mode1", "mode2"} {
		def := opts.mode.String()
		if i == 1 {
			def = ai.ModeRandom.String()
		}
		if cfg.Modes[i], err = ai.ParseMode(cmd.options.StringDefault(key, def)); err != nil {
			return cfg, err
		}
	}
	if cfg.NumGames, err = cmd.options.IntDefault("games", defaultAutoplayGames); err != nil {
		return cfg, err
	}
	if cfg.Threads, err = cmd.options.IntDefault("threads", 1); err != nil {
		return cfg, err
	}
	secs, err := cmd.options.FloatDefault("time", opts.timeLimit.Seconds())
	if err != nil {
		return cfg, err
	}
	cfg.TimeLimit = time.Duration(secs * float64(time.Second))
	if cfg.NumGames <= 0 || cfg.Threads <= 0 {
		return cfg, errors.New("games and threads must be positive")
	}
	return cfg, nil
}

func (sc *ShellController) autoplay(ctx context.Context, cmd *shellcmd) (*Response, error) {
	if len(cmd.args) > 0 {
		switch cmd.args[0] {
		case "stop":
			if !sc.stopMatch() {
				return nil, errors.New("no match is being played")
			}
			return msg("match stopped"), nil
		case "show":
			return sc.matchSummary()
		case "export":
			if len(cmd.args) != 2 {
				return nil, errors.New("usage: autoplay export <file.yaml>")
			}
			return sc.exportMatch(cmd.args[1])
		default:
			return nil, fmt.Errorf("unknown autoplay argument %q", cmd.args[0])
		}
	}

	cfg, err := sc.matchConfig(cmd)
	if err != nil {
		return nil, err
	}
	if !sc.interactive {
		res, err := automatic.PlayMatch(ctx, cfg)
		if err != nil {
			return nil, err
		}
		sc.setLastMatch(res)
		return sc.matchSummary()
	}

	sc.matchMu.Lock()
	defer sc.matchMu.Unlock()
	if sc.matchCancel != nil {
		return nil, errBusy
	}
	mctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	sc.matchCancel, sc.matchDone = cancel, done
	go func() {
		defer close(done)
		defer cancel()
		res, err := automatic.PlayMatch(mctx, cfg)
		if err != nil {
			log.Err(err).Msg("autoplay-failed")
		} else {
			sc.showMessage(fmt.Sprintf("Match finished after %d games. `autoplay show` for results.",
				len(res.Records)))
		}
		sc.matchMu.Lock()
		defer sc.matchMu.Unlock()
		sc.matchCancel, sc.matchDone = nil, nil
		if err == nil {
			sc.lastMatch = res
		}
	}()
	return msg(fmt.Sprintf("Playing %d games of %s vs %s on %d threads, logging to %s",
		cfg.NumGames, cfg.PlayerName(0), cfg.PlayerName(1), cfg.Threads, cfg.LogFile)), nil
}

// stopMatch cancels a running match and waits for it. It reports whether
// there was one.
func (sc *ShellController) stopMatch() bool {
	sc.matchMu.Lock()
	cancel, done := sc.matchCancel, sc.matchDone
	sc.matchMu.Unlock()
	if cancel == nil {
		return false
	}
	cancel()
	<-done
	return true
}

func (sc *ShellController) setLastMatch(res *automatic.MatchResult) {
	sc.matchMu.Lock()
	defer sc.matchMu.Unlock()
	sc.lastMatch = res
}

func (sc *ShellController) finishedMatch() (*automatic.MatchResult, error) {
	sc.matchMu.Lock()
	defer sc.matchMu.Unlock()
	if sc.lastMatch == nil {
		return nil, errors.New("no match has finished yet")
	}
	return sc.lastMatch, nil
}

func (sc *ShellController) matchSummary() (*Response, error) {
	res, err := sc.finishedMatch()
	if err != nil {
		return nil, err
	}
	var sb strings.Builder
	sb.WriteString(res.Tally.Summary())
	sb.WriteString("Game lengths:\n")
	if err := res.Tally.WriteHistogram(&sb, histogramBins); err != nil {
		return nil, err
	}
	return msg(sb.String()), nil
}

func (sc *ShellController) exportMatch(path string) (*Response, error) {
	res, err := sc.finishedMatch()
	if err != nil {
		return nil, err
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	if err := res.WriteYAML(f); err != nil {
		f.Close()
		return nil, err
	}
	if err := f.Close(); err != nil {
		return nil, err
	}
	return msg("wrote match summary to " + path), nil
}

func (sc *ShellController) analyze(cmd *shellcmd) (*Response, error) {
	path := sc.config.GetString(config.ConfigAutoplayLog)
	if len(cmd.args) > 0 {
		path = cmd.args[0]
	}
	summary, err := automatic.AnalyzeLogFile(path)
	if err != nil {
		return nil, err
	}
	return msg(summary), nil
}
