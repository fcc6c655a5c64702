package shell

import (
	"embed"
	"errors"
	"strings"
)

//go:embed helptext/*.txt
var helptext embed.FS

func usage(topic string) (string, error) {
	dat, err := helptext.ReadFile("helptext/" + topic + ".txt")
	if err != nil {
		return "", errors.New("there is no help text for the topic " + topic)
	}
	return strings.TrimSuffix(string(dat), "\n"), nil
}

func (sc *ShellController) help(cmd *shellcmd) (*Response, error) {
	topic := "usage"
	if len(cmd.args) > 0 {
		topic = cmd.args[0]
	}
	text, err := usage(topic)
	if err != nil {
		return nil, err
	}
	if topic == "usage" && sc.gitVersion != "" {
		text += "\n\nversion " + sc.gitVersion
	}
	return msg(text), nil
}
