package automatic

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/domino14/mnkgame/stats"
)

type loggedGame struct {
	firstMover string
	lastMover  string
	result     string
	moves      int
	nodes      uint64
}

// AnalyzeLogFile reads a per-move log written by PlayMatch and summarizes
// the finished games in it. Games cut off before their end are skipped.
func AnalyzeLogFile(filepath string) (string, error) {
	file, err := openLog(filepath)
	if err != nil {
		return "", err
	}
	defer file.Close()
	t, err := analyzeLog(file)
	if err != nil {
		return "", err
	}
	return t.Summary(), nil
}

func analyzeLog(in io.Reader) (*stats.Tally, error) {
	r := csv.NewReader(in)
	r.FieldsPerRecord = len(LogHeader)

	games := map[string]*loggedGame{}
	var order []string
	var p1Name, p2Name string
	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if record[0] == LogHeader[0] {
			continue
		}
		id, player, result := record[0], record[2], record[8]
		if strings.HasSuffix(player, "-1") {
			p1Name = player
		} else if p2Name == "" {
			p2Name = player
		}
		nodes, err := strconv.ParseUint(record[6], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("game %s: bad node count: %w", id, err)
		}
		g, ok := games[id]
		if !ok {
			g = &loggedGame{firstMover: player}
			games[id] = g
			order = append(order, id)
		}
		g.lastMover = player
		g.moves++
		g.nodes += nodes
		if result != "" {
			g.result = result
		}
	}

	t := stats.NewTally(p1Name, p2Name)
	for _, id := range order {
		g := games[id]
		if g.result == "" {
			continue
		}
		outcome := stats.Draw
		if g.result != "draw" {
			// The last mover made the winning line.
			if g.lastMover == p1Name {
				outcome = stats.Win
			} else {
				outcome = stats.Loss
			}
		}
		t.Add(outcome, g.firstMover == p1Name, g.moves)
		t.Nodes.Push(float64(g.nodes))
	}
	return t, nil
}
