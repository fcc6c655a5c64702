package shell

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/domino14/mnkgame/ai"
	"github.com/domino14/mnkgame/board"
	"github.com/domino14/mnkgame/heuristic"
	"github.com/domino14/mnkgame/mnkp"
	"github.com/domino14/mnkgame/move"
	"github.com/domino14/mnkgame/negamax"
)

const (
	humanName    = "human"
	defaultListN = 10
)

type Response struct {
	message string
}

type CmdOptions map[string][]string

func (c CmdOptions) String(key string) string {
	v := c[key]
	if len(v) > 0 {
		return v[0]
	}
	return ""
}

func (c CmdOptions) StringDefault(key, def string) string {
	if v := c.String(key); v != "" {
		return v
	}
	return def
}

func (c CmdOptions) IntDefault(key string, defaultI int) (int, error) {
	v := c[key]
	if len(v) == 0 {
		return defaultI, nil
	}
	return strconv.Atoi(v[0])
}

func (c CmdOptions) FloatDefault(key string, defaultF float64) (float64, error) {
	v := c[key]
	if len(v) == 0 {
		return defaultF, nil
	}
	return strconv.ParseFloat(v[0], 64)
}

func (c CmdOptions) Bool(key string) bool {
	v := c[key]
	if len(v) == 0 {
		return false
	}
	return strings.ToLower(v[0]) == "true"
}

func msg(message string) *Response {
	return &Response{message: message}
}

func (sc *ShellController) computerName() string {
	return "computer-" + sc.player.Mode().String()
}

func (sc *ShellController) newGame(ctx context.Context, cmd *shellcmd) (*Response, error) {
	if len(cmd.args) != 0 && len(cmd.args) != 3 {
		return nil, errors.New("usage: new [rows cols k] [-gravity true|false]")
	}
	opts := *sc.options
	if len(cmd.args) == 3 {
		for i, key := range []string{"rows", "cols", "k"} {
			if _, err := opts.Set(key, cmd.args[i]); err != nil {
				return nil, err
			}
		}
	}
	if g := cmd.options.String("gravity"); g != "" {
		if _, err := opts.Set("gravity", g); err != nil {
			return nil, err
		}
	}
	b, err := board.New(opts.rows, opts.cols, opts.winLength, opts.gravity)
	if err != nil {
		return nil, err
	}
	*sc.options = opts
	sc.board = b
	sc.names = [2]string{humanName, sc.computerName()}
	log.Debug().Int("rows", opts.rows).Int("cols", opts.cols).Int("k", opts.winLength).
		Bool("gravity", opts.gravity).Msg("new-game")

	if !opts.computerPlays {
		return msg(b.ToDisplayText()), nil
	}
	sc.names = [2]string{sc.computerName(), humanName}
	played, err := sc.computerMove(ctx)
	if err != nil {
		return nil, err
	}
	return msg(played + "\n" + b.ToDisplayText()), nil
}

func (sc *ShellController) show(cmd *shellcmd) (*Response, error) {
	if sc.board == nil {
		return nil, errNoGame
	}
	return msg(sc.displayText()), nil
}

func (sc *ShellController) displayText() string {
	text := sc.board.ToDisplayText()
	if line := sc.board.WinningLine(); len(line) > 0 {
		cells := lo.Map(line, func(m move.Move, _ int) string { return m.String() })
		text += "Winning line: " + strings.Join(cells, " ") + "\n"
	}
	return text
}

// parseMove accepts "r,c", "r c", "(r, c)" or, on gravity boards, a column.
func parseMove(args []string) (move.Move, error) {
	if len(args) == 0 {
		return move.Move{}, errors.New("which move? give a row and column, or a column")
	}
	return move.FromString(strings.Join(args, " "))
}

func (sc *ShellController) move(ctx context.Context, cmd *shellcmd) (*Response, error) {
	if sc.board == nil {
		return nil, errNoGame
	}
	m, err := parseMove(cmd.args)
	if err != nil {
		return nil, err
	}
	if err := sc.board.PlayMove(m); err != nil {
		return nil, err
	}
	if sc.board.Result().IsTerminal() || !sc.options.opponent {
		return msg(sc.displayText()), nil
	}
	played, err := sc.computerMove(ctx)
	if err != nil {
		// Take the human's move back too so a failed reply changes nothing.
		sc.board.UnplayLastMove()
		return nil, err
	}
	return msg(played + "\n" + sc.displayText()), nil
}

func (sc *ShellController) undo(cmd *shellcmd) (*Response, error) {
	if sc.board == nil {
		return nil, errNoGame
	}
	n := 1
	if len(cmd.args) > 0 {
		var err error
		if n, err = positiveInt(cmd.args[0]); err != nil {
			return nil, err
		}
	}
	if played := len(sc.board.History()); played < n {
		return nil, fmt.Errorf("%w: asked for %d, only %d played", board.ErrNothingToUndo, n, played)
	}
	for i := 0; i < n; i++ {
		last, _ := sc.board.LastMove()
		if err := sc.board.UndoMove(last); err != nil {
			return nil, err
		}
	}
	return msg(sc.displayText()), nil
}

// computerMove has the computer play for the side to move.
func (sc *ShellController) computerMove(ctx context.Context) (string, error) {
	res, err := sc.player.Search(ctx, sc.board, sc.options.searchConfig())
	if err != nil {
		return "", err
	}
	mover := sc.board.ToMove()
	if err := sc.board.PlayMove(res.Move); err != nil {
		return "", err
	}
	if !sc.player.Mode().Searches() {
		return fmt.Sprintf("Computer (%s) plays %s for %s", sc.player.Mode(), res.Move, mover), nil
	}
	return fmt.Sprintf("Computer (%s) plays %s for %s [%s]", sc.player.Mode(), res.Move, mover,
		resultDetails(res)), nil
}

func (sc *ShellController) aiplay(ctx context.Context, cmd *shellcmd) (*Response, error) {
	if sc.board == nil {
		return nil, errNoGame
	}
	played, err := sc.computerMove(ctx)
	if err != nil {
		return nil, err
	}
	return msg(played + "\n" + sc.displayText()), nil
}

func (sc *ShellController) best(ctx context.Context, cmd *shellcmd) (*Response, error) {
	if sc.board == nil {
		return nil, errNoGame
	}
	res, err := sc.player.Search(ctx, sc.board, sc.options.searchConfig())
	if err != nil {
		return nil, err
	}
	if !sc.player.Mode().Searches() {
		return msg(fmt.Sprintf("Best move (%s): %s", sc.player.Mode(), res.Move)), nil
	}
	pv := lo.Map(res.PV.Moves, func(m move.Move, _ int) string { return m.ShortDescription() })
	return msg(fmt.Sprintf("Best move (%s): %s [%s]\nPV: %s", sc.player.Mode(), res.Move,
		resultDetails(res), strings.Join(pv, " "))), nil
}

func resultDetails(res negamax.Result) string {
	return fmt.Sprintf("%s, depth %d, %d nodes, %.3fs", describeScore(res.Score), res.Depth,
		res.Nodes, res.Elapsed.Seconds())
}

// describeScore turns a search score into words for the side that moved.
func describeScore(s int32) string {
	switch {
	case s >= heuristic.MateThreshold:
		return fmt.Sprintf("wins in %d", heuristic.WinScore-s)
	case s <= -heuristic.MateThreshold:
		return fmt.Sprintf("loses in %d", heuristic.WinScore+s)
	}
	return fmt.Sprintf("score %d", s)
}

func (sc *ShellController) mnkp(cmd *shellcmd) (*Response, error) {
	if len(cmd.args) == 0 {
		if sc.board == nil {
			return nil, errNoGame
		}
		return msg(mnkp.ToMNKP(sc.board, nil)), nil
	}
	parsed, err := mnkp.ParseMNKP(strings.Join(cmd.args, " "))
	if err != nil {
		return nil, err
	}
	sc.board = parsed.Board
	sc.names = [2]string{humanName, humanName}
	return msg(sc.displayText()), nil
}

func (sc *ShellController) set(cmd *shellcmd) (*Response, error) {
	if len(cmd.args) == 0 {
		return msg(sc.options.ToDisplayText()), nil
	}
	opt := cmd.args[0]
	if len(cmd.args) == 1 {
		_, val := sc.options.Show(opt)
		return msg(val), nil
	}
	ret, err := sc.options.Set(opt, cmd.args[1])
	if err != nil {
		return nil, err
	}
	switch opt {
	case "mode":
		sc.player.SetMode(sc.options.mode)
	case "threads":
		sc.player.SetThreads(sc.options.threads)
	}
	return msg("set " + opt + " to " + ret), nil
}

func (sc *ShellController) setMode(cmd *shellcmd) (*Response, error) {
	if len(cmd.args) == 0 {
		return msg(fmt.Sprintf("Current mode: %s\nAvailable: %s", sc.player.Mode(),
			strings.Join(ai.ModeNames(), ", "))), nil
	}
	return sc.set(&shellcmd{cmd: "set", args: []string{"mode", cmd.args[0]}})
}

func (sc *ShellController) save(ctx context.Context, cmd *shellcmd) (*Response, error) {
	if sc.board == nil {
		return nil, errNoGame
	}
	st, err := sc.gameStore(ctx)
	if err != nil {
		return nil, err
	}
	g, isNew, err := st.SaveGame(ctx, sc.board, sc.names[0], sc.names[1])
	if err != nil {
		return nil, err
	}
	if !isNew {
		return msg("already saved as " + g.String()), nil
	}
	return msg("saved " + g.String()), nil
}

func (sc *ShellController) load(ctx context.Context, cmd *shellcmd) (*Response, error) {
	if len(cmd.args) != 1 {
		return nil, errors.New("usage: load <game id>")
	}
	id, err := strconv.ParseInt(cmd.args[0], 10, 64)
	if err != nil {
		return nil, err
	}
	st, err := sc.gameStore(ctx)
	if err != nil {
		return nil, err
	}
	g, err := st.LoadGame(ctx, id)
	if err != nil {
		return nil, err
	}
	b, err := g.Replay()
	if err != nil {
		return nil, err
	}
	sc.board = b
	sc.names = [2]string{g.PlayerA, g.PlayerB}
	return msg(g.String() + "\n" + sc.displayText()), nil
}

func (sc *ShellController) list(ctx context.Context, cmd *shellcmd) (*Response, error) {
	n := defaultListN
	if len(cmd.args) > 0 {
		var err error
		if n, err = positiveInt(cmd.args[0]); err != nil {
			return nil, err
		}
	}
	st, err := sc.gameStore(ctx)
	if err != nil {
		return nil, err
	}
	games, err := st.ListGames(ctx, n)
	if err != nil {
		return nil, err
	}
	if len(games) == 0 {
		return msg("no saved games"), nil
	}
	var sb strings.Builder
	for _, g := range games {
		sb.WriteString(g.String() + "\n")
	}
	return msg(strings.TrimSuffix(sb.String(), "\n")), nil
}
