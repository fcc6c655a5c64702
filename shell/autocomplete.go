package shell

import (
	"strings"

	"github.com/kballard/go-shellquote"

	"github.com/domino14/mnkgame/ai"
)

// ShellCompleter provides context-aware autocomplete for shell commands
type ShellCompleter struct {
	sc *ShellController
}

func NewShellCompleter(sc *ShellController) *ShellCompleter {
	return &ShellCompleter{sc: sc}
}

// CommandMetadata holds autocomplete information for a command
type CommandMetadata struct {
	Options []string
	Args    []string
}

var commandMetadata = map[string]CommandMetadata{
	"new": {
		Options: []string{"-gravity"},
	},
	"autoplay": {
		Options: []string{"-games", "-threads", "-mode1", "-mode2", "-time", "-log"},
		Args:    []string{"stop", "show", "export"},
	},
	"set": {
		Args: optionKeys,
	},
	"mode": {
		Args: ai.ModeNames(),
	},
	"help": {
		Args: []string{"move", "set", "mode", "autoplay", "mnkp", "script"},
	},
}

var commandNames = []string{
	"new", "show", "move", "undo", "aiplay", "best", "mnkp", "set", "mode",
	"save", "load", "list", "autoplay", "analyze", "script", "help", "exit",
}

var boolValues = []string{"true", "false"}

// Do implements the readline.AutoComplete interface
func (c *ShellCompleter) Do(line []rune, pos int) ([][]rune, int) {
	text := string(line[:pos])

	fields, err := shellquote.Split(text)
	if err != nil {
		// unbalanced quotes while typing
		fields = strings.Fields(text)
	}
	endsWithSpace := len(text) > 0 && text[len(text)-1] == ' '

	var prefix string
	var completions []string

	if len(fields) == 0 || (len(fields) == 1 && !endsWithSpace) {
		if len(fields) == 1 {
			prefix = fields[0]
		}
		completions = commandNames
	} else {
		cmdName := fields[0]
		if !endsWithSpace {
			prefix = fields[len(fields)-1]
		}
		var lastCompleteField string
		if endsWithSpace {
			lastCompleteField = fields[len(fields)-1]
		} else if len(fields) > 1 {
			lastCompleteField = fields[len(fields)-2]
		}

		switch {
		case lastCompleteField == "-mode1" || lastCompleteField == "-mode2":
			completions = ai.ModeNames()
		case lastCompleteField == "-gravity":
			completions = boolValues
		case cmdName == "set" && len(fields) >= 2 && (len(fields) > 2 || endsWithSpace):
			switch fields[1] {
			case "mode":
				completions = ai.ModeNames()
			case "gravity", "randomize", "computer-plays", "opponent":
				completions = boolValues
			}
		}

		if completions == nil {
			if metadata, exists := commandMetadata[cmdName]; exists {
				if strings.HasPrefix(prefix, "-") || len(metadata.Args) == 0 {
					completions = metadata.Options
				} else {
					completions = metadata.Args
				}
			}
		}
	}

	var matches [][]rune
	for _, completion := range completions {
		if strings.HasPrefix(completion, prefix) {
			matches = append(matches, []rune(completion[len(prefix):]))
		}
	}
	return matches, len(prefix)
}
