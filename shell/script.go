package shell

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/cjoudrey/gluahttp"
	"github.com/rs/zerolog/log"
	lua "github.com/yuin/gopher-lua"
	luajson "layeh.com/gopher-json"

	"github.com/domino14/mnkgame/board"
	"github.com/domino14/mnkgame/mnkp"
)

const (
	shellGlobal       = "mnk_shell"
	scriptHTTPTimeout = 30 * time.Second
)

func getShell(L *lua.LState) *ShellController {
	shell := L.GetGlobal(shellGlobal)
	ud, ok := shell.(*lua.LUserData)
	if !ok {
		panic("luserdata not right type")
	}
	sc, ok := ud.Value.(*ShellController)
	if !ok {
		panic("shellcontroller not right type")
	}
	return sc
}

func luaContext(L *lua.LState) context.Context {
	if ctx := L.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// command wraps a shell command as a Lua function taking the rest of the
// command line. It returns the command's output, or "ERROR: ..." on
// failure.
func command(name string) lua.LGFunction {
	return func(L *lua.LState) int {
		line := name
		if L.GetTop() > 0 {
			line += " " + L.ToString(1)
		}
		sc := getShell(L)
		r, err := sc.handle(luaContext(L), line)
		if err != nil {
			log.Err(err).Str("cmd", name).Msg("error-executing-command")
			L.Push(lua.LString("ERROR: " + err.Error()))
			return 1
		}
		out := ""
		if r != nil {
			out = r.message
		}
		L.Push(lua.LString(out))
		// return number of results pushed to stack.
		return 1
	}
}

type gameState struct {
	Rows      int      `json:"rows"`
	Cols      int      `json:"cols"`
	WinLength int      `json:"k"`
	Gravity   bool     `json:"gravity"`
	ToMove    string   `json:"to_move"`
	Result    string   `json:"result"`
	Winner    string   `json:"winner,omitempty"`
	Moves     []string `json:"moves"`
	MNKP      string   `json:"mnkp"`
}

type searchState struct {
	Move  string   `json:"move"`
	Score int32    `json:"score"`
	Depth int      `json:"depth"`
	Nodes uint64   `json:"nodes"`
	PV    []string `json:"pv"`
}

// pushJSON hands v to Lua as a table.
func pushJSON(L *lua.LState, v any) int {
	data, err := json.Marshal(v)
	if err != nil {
		L.RaiseError("%v", err)
		return 0
	}
	lv, err := luajson.Decode(L, data)
	if err != nil {
		L.RaiseError("%v", err)
		return 0
	}
	L.Push(lv)
	return 1
}

// State returns the current game as a table, or nil without a game.
func State(L *lua.LState) int {
	sc := getShell(L)
	b := sc.board
	if b == nil {
		L.Push(lua.LNil)
		return 1
	}
	st := gameState{
		Rows:      b.Rows(),
		Cols:      b.Cols(),
		WinLength: b.WinLength(),
		Gravity:   b.Gravity(),
		ToMove:    b.ToMove().String(),
		Result:    b.Result().String(),
		Moves:     []string{},
		MNKP:      mnkp.ToMNKP(b, nil),
	}
	if b.Result().Kind == board.Win {
		st.Winner = b.Result().Winner.String()
	}
	for _, m := range b.History() {
		st.Moves = append(st.Moves, m.ShortDescription())
	}
	return pushJSON(L, st)
}

// Best searches the current position without playing and returns the
// result as a table.
func Best(L *lua.LState) int {
	sc := getShell(L)
	if sc.board == nil {
		L.RaiseError("%v", errNoGame)
		return 0
	}
	res, err := sc.player.Search(luaContext(L), sc.board, sc.options.searchConfig())
	if err != nil {
		L.RaiseError("%v", err)
		return 0
	}
	st := searchState{
		Move:  res.Move.ShortDescription(),
		Score: res.Score,
		Depth: res.Depth,
		Nodes: res.Nodes,
		PV:    []string{},
	}
	for _, m := range res.PV.Moves {
		st.PV = append(st.PV, m.ShortDescription())
	}
	return pushJSON(L, st)
}

func (sc *ShellController) script(ctx context.Context, cmd *shellcmd) (*Response, error) {
	if len(cmd.args) == 0 {
		return nil, errors.New("need arguments for script")
	}
	filepath := cmd.args[0]

	// Scripts wait for their matches to finish.
	interactive := sc.interactive
	sc.interactive = false
	defer func() { sc.interactive = interactive }()

	L := lua.NewState()
	defer L.Close()
	L.SetContext(ctx)
	luajson.Preload(L)
	L.PreloadModule("http", gluahttp.NewHttpModule(&http.Client{Timeout: scriptHTTPTimeout}).Loader)

	lsc := L.NewUserData()
	lsc.Value = sc
	L.SetGlobal(shellGlobal, lsc)
	for _, name := range []string{"new", "move", "undo", "aiplay", "set", "mnkp", "save",
		"load", "list", "autoplay", "analyze", "show"} {
		L.SetGlobal("mnk_"+name, L.NewFunction(command(name)))
	}
	L.SetGlobal("mnk_state", L.NewFunction(State))
	L.SetGlobal("mnk_best", L.NewFunction(Best))

	args := L.NewTable()
	for _, a := range cmd.args[1:] {
		args.Append(lua.LString(a))
	}
	L.SetGlobal("args", args)

	if err := L.DoFile(filepath); err != nil {
		log.Err(err).Msg("there was a error")
		return nil, err
	}
	return nil, nil
}
