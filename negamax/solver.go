// Package negamax is the game-tree search for m,n,k games: negamax with
// optional alpha-beta pruning, principal variation search, a shared
// transposition table, killer moves and lazy SMP helper threads, driven by
// iterative deepening under a deadline.
package negamax

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"
	"lukechampine.com/frand"

	"github.com/domino14/mnkgame/board"
	"github.com/domino14/mnkgame/heuristic"
	"github.com/domino14/mnkgame/move"
)

// thanks Wikipedia:
/*
function negamax(node, depth, α, β, color) is
    if depth = 0 or node is a terminal node then
        return color × the heuristic value of node

    childNodes := generateMoves(node)
    childNodes := orderMoves(childNodes)
    value := −∞
    foreach child in childNodes do
        value := max(value, −negamax(child, depth − 1, −β, −α, −color))
        α := max(α, value)
        if α ≥ β then
            break (* cut-off *)
    return value
(* Initial call for Player A's root node *)
negamax(rootNode, depth, −∞, +∞, 1)
**/

// Infinity is outside every score the search can return.
const Infinity = heuristic.WinScore + 1

const MaxKillers = 2

const (
	DefaultTTFractionOfMem = 0.05
	DefaultTTMinSizePower  = 16
)

var (
	ErrSearchPrecondition = errors.New("cannot search this position")
	ErrLazySMPNeedsTT     = errors.New("cannot use lazySMP optimization without transposition table")
)

// SearchConfig holds the per-call limits of a search.
type SearchConfig struct {
	// TimeLimit bounds the wall-clock time of the search. Zero or less runs
	// a single one-ply search that scores every reply statically.
	TimeLimit time.Duration
	// MaxDepth caps iterative deepening. Zero means no cap.
	MaxDepth int
	// Randomize picks uniformly among root moves tied for the best score
	// instead of the first one searched.
	Randomize bool
	// OnDepth, if set, is called after every completed depth.
	OnDepth func(DepthInfo)
}

// DepthInfo describes one completed iteration.
type DepthInfo struct {
	Depth      int       `yaml:"depth"`
	Score      int32     `yaml:"score"`
	BestMove   string    `yaml:"best-move"`
	PV         []string  `yaml:"pv"`
	Nodes      uint64    `yaml:"nodes"`
	ElapsedSec float64   `yaml:"elapsed-sec"`
	Move       move.Move `yaml:"-"`
}

// Result is what a search returns.
type Result struct {
	Move  move.Move
	Score int32
	// Depth is the deepest fully completed iteration. Zero means not even
	// one ply finished in time and Move is the first move in search order.
	Depth   int
	PV      PVLine
	Nodes   uint64
	Elapsed time.Duration
}

type rootMove struct {
	m     move.Move
	score int32
}

type Solver struct {
	pruningOptim            bool
	pvsOptim                bool
	transpositionTableOptim bool
	killerPlayOptim         bool
	iterativeDeepeningOptim bool
	lazySMPOptim            bool

	threads int
	ttable  *TranspositionTable
	// sizing used when the table still has to be allocated.
	ttFractionOfMem float64
	ttMinSizePower  int

	eval *heuristic.Evaluator
	// salt separates keys of different geometries that share a zobrist
	// table (same size, different k or gravity).
	salt    uint64
	cols    int
	gen     uint8
	workers []*searchThread

	principalVariation PVLine
	bestPVValue        int32

	nodes     atomic.Uint64
	logStream io.Writer
}

// NewSolver returns a solver with alpha-beta pruning, the transposition
// table and iterative deepening on, single-threaded.
func NewSolver() *Solver {
	s := &Solver{}
	s.Init()
	return s
}

// Init sets the default optimizations.
func (s *Solver) Init() {
	s.pruningOptim = true
	s.pvsOptim = false
	s.transpositionTableOptim = true
	s.killerPlayOptim = false
	s.iterativeDeepeningOptim = true
	s.threads = 1
	s.lazySMPOptim = false
	s.ttable = GlobalTranspositionTable
	s.ttFractionOfMem = DefaultTTFractionOfMem
	s.ttMinSizePower = DefaultTTMinSizePower
}

func (s *Solver) SetThreads(threads int) {
	switch {
	case threads < 2:
		s.threads = 1
		s.lazySMPOptim = false
	case threads >= 2:
		s.threads = threads
		s.lazySMPOptim = true
	}
}

func geometrySalt(b *board.Board) uint64 {
	return xxhash.Sum64String(fmt.Sprintf("%dx%d/k%d/g%t", b.Rows(), b.Cols(), b.WinLength(), b.Gravity()))
}

func (s *Solver) prepare(b *board.Board) {
	s.eval = heuristic.For(b.Rows(), b.Cols(), b.WinLength())
	s.salt = geometrySalt(b)
	s.cols = b.Cols()
	s.workers = make([]*searchThread, s.threads)
	for t := range s.workers {
		s.workers[t] = newSearchThread(t, b.Copy())
	}
	if s.transpositionTableOptim {
		s.ttable.ensureAllocated(s.ttFractionOfMem, s.ttMinSizePower)
		s.ttable.NewGeneration()
		s.ttable.ResetStats()
		s.gen = s.ttable.currentGeneration()
	}
}

func (s *Solver) rootMoves(t *searchThread) []rootMove {
	var hashMove move.Tiny
	if s.transpositionTableOptim {
		if e, ok := s.ttable.lookup(t.b.Hash() ^ s.salt); ok {
			hashMove = e.move()
		}
	}
	ordered := s.orderMoves(t, 0, hashMove)
	moves := make([]rootMove, len(ordered))
	for i, m := range ordered {
		moves[i] = rootMove{m: m, score: -Infinity}
	}
	return moves
}

func (s *Solver) iterativelyDeepen(ctx context.Context, plies int, cfg SearchConfig, tstart time.Time) (Result, error) {
	mainThread := s.workers[0]
	moves := s.rootMoves(mainThread)
	// Until a depth completes, the first move in search order stands in.
	res := Result{Move: moves[0].m}
	start := 1
	if !s.iterativeDeepeningOptim {
		start = plies
	}

	for p := start; p <= plies; p++ {
		log.Debug().Int("plies", p).Msg("deepening-iteratively")

		var helpers *errgroup.Group
		var cancelHelpers context.CancelFunc
		if s.lazySMPOptim {
			helpers, cancelHelpers = s.startHelpers(ctx, p, moves)
		}

		val, bestIdx, pv, err := s.searchRoot(ctx, mainThread, p, moves, cfg.Randomize)

		if helpers != nil {
			// stop helper threads cleanly
			cancelHelpers()
			if herr := helpers.Wait(); herr != nil && !errors.Is(herr, context.Canceled) &&
				!errors.Is(herr, context.DeadlineExceeded) {
				return res, herr
			}
		}
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				// The partial depth is discarded.
				log.Debug().Int("plies", p).Msg("depth-aborted")
				break
			}
			return res, err
		}

		best := moves[bestIdx].m
		if cfg.Randomize {
			best = pickTied(moves, val)
		}
		s.principalVariation = pv.copy()
		s.bestPVValue = val
		res.Move, res.Score, res.Depth, res.PV = best, val, p, s.principalVariation

		info := DepthInfo{
			Depth:      p,
			Score:      val,
			BestMove:   best.ShortDescription(),
			PV:         pv.shortDescriptions(),
			Nodes:      s.nodes.Load() + mainThread.pendingNodes(),
			ElapsedSec: time.Since(tstart).Seconds(),
			Move:       best,
		}
		log.Debug().Int32("score", val).Int("ply", p).Str("pv", pv.NLBString()).Msg("best-val")
		s.writeLog(info)
		if cfg.OnDepth != nil {
			cfg.OnDepth(info)
		}

		// Sort root moves by value for the next time around; ties keep
		// their order.
		sort.SliceStable(moves, func(i, j int) bool {
			return moves[i].score > moves[j].score
		})
		if heuristic.IsMate(val) {
			log.Debug().Int32("score", val).Int("ply", p).Msg("forced-result-found")
			break
		}
	}
	return res, nil
}

// pickTied chooses uniformly among root moves whose score equals best.
func pickTied(moves []rootMove, best int32) move.Move {
	var tied []move.Move
	for _, rm := range moves {
		if rm.score == best {
			tied = append(tied, rm.m)
		}
	}
	return tied[frand.Intn(len(tied))]
}

func (s *Solver) startHelpers(ctx context.Context, p int, moves []rootMove) (*errgroup.Group, context.CancelFunc) {
	helperCtx, cancel := context.WithCancel(ctx)
	g := &errgroup.Group{}
	for t := 1; t < s.threads; t++ {
		w := s.workers[t]
		// search to different plies for different threads
		depth := p + t%2
		order := make([]rootMove, len(moves))
		copy(order, moves)
		if t > 1 {
			// Shuffle the order of root nodes
			frand.Shuffle(len(order), func(i, j int) {
				order[i], order[j] = order[j], order[i]
			})
		}
		g.Go(func() error {
			// ignore the score for these helper threads; we're just
			// using them to help build up the transposition table.
			_, _, _, err := s.searchRoot(helperCtx, w, depth, order, false)
			log.Trace().Int("thread", w.id).Int("depth", depth).Err(err).Msg("helper-done")
			return err
		})
	}
	return g, cancel
}

func (s *Solver) writeLog(info DepthInfo) {
	if s.logStream == nil {
		return
	}
	out, err := yaml.Marshal([]DepthInfo{info})
	if err != nil {
		log.Err(err).Msg("marshalling-depth-log")
		return
	}
	if _, err := s.logStream.Write(out); err != nil {
		log.Err(err).Msg("writing-depth-log")
	}
}

// Solve searches a private copy of b and returns the best move found at the
// deepest completed depth. b is not modified.
func (s *Solver) Solve(ctx context.Context, b *board.Board, cfg SearchConfig) (Result, error) {
	if b.Result().IsTerminal() {
		return Result{}, fmt.Errorf("%w: game is already over (%s)", ErrSearchPrecondition, b.Result())
	}
	if b.EmptyCells() == 0 {
		return Result{}, fmt.Errorf("%w: no legal moves", ErrSearchPrecondition)
	}
	if s.lazySMPOptim && !s.transpositionTableOptim {
		return Result{}, ErrLazySMPNeedsTT
	}
	if s.lazySMPOptim && !s.iterativeDeepeningOptim {
		return Result{}, errors.New("cannot use lazySMP if iterative deepening is off")
	}
	tstart := time.Now()

	plies := b.EmptyCells()
	if cfg.MaxDepth > 0 && cfg.MaxDepth < plies {
		plies = cfg.MaxDepth
	}
	if cfg.TimeLimit > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.TimeLimit)
		defer cancel()
	} else {
		plies = 1
	}
	log.Debug().Int("plies", plies).Dur("time-limit", cfg.TimeLimit).
		Bool("pruning", s.pruningOptim).Bool("pvs", s.pvsOptim).
		Bool("ttable", s.transpositionTableOptim).Bool("killers", s.killerPlayOptim).
		Int("threads", s.threads).Msg("negamax-solve-config")

	s.nodes.Store(0)
	s.prepare(b)

	g := &errgroup.Group{}
	done := make(chan bool)

	g.Go(func() error {
		ticker := time.NewTicker(1 * time.Second)
		defer ticker.Stop()
		var lastNodes uint64
		for {
			select {
			case <-done:
				return nil
			case <-ticker.C:
				nodes := s.nodes.Load()
				log.Debug().Uint64("nps", nodes-lastNodes).Msg("nodes-per-second")
				lastNodes = nodes
			}
		}
	})

	var res Result
	g.Go(func() error {
		defer close(done)
		var err error
		res, err = s.iterativelyDeepen(ctx, plies, cfg, tstart)
		return err
	})
	err := g.Wait()

	for _, w := range s.workers {
		s.nodes.Add(w.pendingNodes())
	}
	res.Nodes = s.nodes.Load()
	res.Elapsed = time.Since(tstart)

	ev := log.Debug()
	if s.transpositionTableOptim {
		created, lookups, hits, t2 := s.ttable.Stats()
		ev = ev.Uint64("ttable-created", created).
			Uint64("ttable-lookups", lookups).
			Uint64("ttable-hits", hits).
			Uint64("ttable-t2collisions", t2)
	}
	ev.Uint64("nodes", res.Nodes).
		Int("depth", res.Depth).
		Int32("score", res.Score).
		Str("move", res.Move.ShortDescription()).
		Float64("time-elapsed-sec", res.Elapsed.Seconds()).
		Msg("solve-returning")

	return res, err
}

func (s *Solver) SetPruning(p bool) {
	s.pruningOptim = p
}

func (s *Solver) SetPVSOptim(p bool) {
	s.pvsOptim = p
}

func (s *Solver) SetIterativeDeepening(id bool) {
	s.iterativeDeepeningOptim = id
}

func (s *Solver) SetKillerPlayOptim(k bool) {
	s.killerPlayOptim = k
}

func (s *Solver) SetTranspositionTableOptim(tt bool) {
	s.transpositionTableOptim = tt
}

func (s *Solver) SetTranspositionTable(tt *TranspositionTable) {
	s.ttable = tt
}

// SetTranspositionTableSizing is used when the solver's table has not been
// allocated yet.
func (s *Solver) SetTranspositionTableSizing(fractionOfMem float64, minSizePowerOf2 int) {
	s.ttFractionOfMem = fractionOfMem
	s.ttMinSizePower = minSizePowerOf2
}

func (s *Solver) TranspositionTable() *TranspositionTable {
	return s.ttable
}

// SetLogStream makes the solver write a YAML list item per completed depth.
func (s *Solver) SetLogStream(l io.Writer) {
	s.logStream = l
}

func (s *Solver) PrincipalVariation() PVLine {
	return s.principalVariation
}
