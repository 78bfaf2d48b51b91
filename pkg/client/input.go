package client

import (
	"errors"
	"strings"

	"github.com/chatterd/chatterd/pkg/protocol"
)

// ErrUnknownCommand reports a slash command the client does not understand,
// including /msg with missing arguments.
var ErrUnknownCommand = errors.New("client: unknown command")

// HelpText lists the interactive commands.
const HelpText = `Commands:
  /msg <user> <text>   private message
  /list                list users
  /help                show help
  /quit                quit`

// Input is one parsed line of user input. At most one field is set; an
// all-zero Input means the line was empty and should be ignored.
type Input struct {
	Message  *protocol.ClientMessage
	ShowHelp bool
	Quit     bool
}

// ParseInput interprets one line of terminal input. Lines not starting with
// a slash are broadcast messages; a /msg splits into recipient and text at
// the first two spaces, so the text may itself contain spaces.
func ParseInput(line string) (Input, error) {
	if strings.TrimSpace(line) == "" {
		return Input{}, nil
	}
	if !strings.HasPrefix(line, "/") {
		return Input{Message: &protocol.ClientMessage{Type: protocol.TypeMessage, Text: line}}, nil
	}

	parts := strings.SplitN(line, " ", 3)
	switch strings.ToLower(parts[0]) {
	case "/msg":
		if len(parts) < 3 {
			return Input{}, ErrUnknownCommand
		}
		return Input{Message: &protocol.ClientMessage{
			Type: protocol.TypePrivate, To: parts[1], Text: parts[2],
		}}, nil
	case "/list":
		return Input{Message: &protocol.ClientMessage{Type: protocol.TypeList}}, nil
	case "/help":
		return Input{ShowHelp: true}, nil
	case "/quit":
		return Input{Quit: true, Message: &protocol.ClientMessage{Type: protocol.TypeQuit}}, nil
	default:
		return Input{}, ErrUnknownCommand
	}
}
