package gamedb

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/matryer/is"

	"github.com/domino14/mnkgame/board"
	"github.com/domino14/mnkgame/mnkp"
	"github.com/domino14/mnkgame/move"
)

func finishedGame(t *testing.T) *board.Board {
	t.Helper()
	b, err := board.New(3, 3, 3, false)
	if err != nil {
		t.Fatal(err)
	}
	err = b.PlayMoves([]move.Move{move.At(0, 0), move.At(1, 0), move.At(0, 1), move.At(1, 1), move.At(0, 2)})
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func TestSaveAndLoad(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	store, err := Open(ctx, "")
	is.NoErr(err)
	defer store.Close()

	b := finishedGame(t)
	g, isNew, err := store.SaveGame(ctx, b, "human", "alphabeta")
	is.NoErr(err)
	is.True(isNew)
	is.True(g.ID > 0)
	is.Equal(g.Result, "X")
	is.True(g.FromStart)

	loaded, err := store.LoadGame(ctx, g.ID)
	is.NoErr(err)
	is.Equal(loaded.Key, g.Key)
	is.Equal(loaded.Moves, b.History())
	is.Equal(loaded.PlayerB, "alphabeta")
	is.True(loaded.CreatedAt.Equal(g.CreatedAt))

	replayed, err := loaded.Replay()
	is.NoErr(err)
	is.True(replayed.Equals(b))
	is.Equal(replayed.History(), b.History())
}

func TestDuplicateGamesStoredOnce(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	store, err := Open(ctx, filepath.Join(t.TempDir(), "games.db"))
	is.NoErr(err)
	defer store.Close()

	first, isNew, err := store.SaveGame(ctx, finishedGame(t), "a", "b")
	is.NoErr(err)
	is.True(isNew)
	second, isNew, err := store.SaveGame(ctx, finishedGame(t), "c", "d")
	is.NoErr(err)
	is.True(!isNew)
	is.Equal(second.ID, first.ID)
	is.Equal(second.PlayerA, "a")

	// A gravity game of different size is a different game.
	b, err := board.New(6, 7, 4, true)
	is.NoErr(err)
	is.NoErr(b.PlayMoves([]move.Move{move.Drop(3), move.Drop(2)}))
	g, isNew, err := store.SaveGame(ctx, b, "a", "b")
	is.NoErr(err)
	is.True(isNew)
	is.Equal(g.Result, "")

	n, err := store.Count(ctx)
	is.NoErr(err)
	is.Equal(n, 2)

	games, err := store.ListGames(ctx, 10)
	is.NoErr(err)
	is.Equal(len(games), 2)
	is.Equal(games[0].ID, g.ID)
	is.True(games[0].Gravity)

	replayed, err := games[0].Replay()
	is.NoErr(err)
	is.True(replayed.Equals(b))
}

func TestLoadedPositionReplaysFinalBoard(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	store, err := Open(ctx, "")
	is.NoErr(err)
	defer store.Close()

	p, err := mnkp.ParseMNKP("3/1X1/O2 X 3")
	is.NoErr(err)
	is.NoErr(p.PlayMove(move.At(0, 0)))
	g, _, err := store.SaveGame(ctx, p.Board, "x", "y")
	is.NoErr(err)
	is.True(!g.FromStart)
	is.Equal(len(g.Moves), 1)

	loaded, err := store.LoadGame(ctx, g.ID)
	is.NoErr(err)
	replayed, err := loaded.Replay()
	is.NoErr(err)
	is.True(replayed.Equals(p.Board))
}

func TestLoadMissing(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	store, err := Open(ctx, "")
	is.NoErr(err)
	defer store.Close()
	_, err = store.LoadGame(ctx, 42)
	is.True(errors.Is(err, ErrNotFound))
}
