package console

import "strings"

type Action int

const (
	ActionNone Action = iota
	ActionChat
	ActionSend
	ActionQuit
	ActionHelp
	ActionUnknown
)

// Command is one parsed line of interactive input.
type Command struct {
	Action Action
	// Arg is the chat text, the file path, or the unknown command name.
	Arg string
}

const Help = `Type a message and press enter to chat.
  /send <path>   send a file (connecting side only)
  /quit          disconnect and exit
  /help          show this help`

// ParseLine maps a line typed by the user to a Command. Lines starting with
// "//" are chat text beginning with a single slash.
func ParseLine(line string) Command {
	line = strings.TrimRight(line, "\r\n")
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return Command{Action: ActionNone}
	}
	if strings.HasPrefix(trimmed, "//") {
		return Command{Action: ActionChat, Arg: trimmed[1:]}
	}
	if !strings.HasPrefix(trimmed, "/") {
		return Command{Action: ActionChat, Arg: line}
	}

	name, arg, _ := strings.Cut(trimmed, " ")
	arg = strings.TrimSpace(arg)
	switch name {
	case "/send":
		if arg == "" {
			return Command{Action: ActionHelp}
		}
		return Command{Action: ActionSend, Arg: arg}
	case "/quit", "/exit":
		return Command{Action: ActionQuit}
	case "/help":
		return Command{Action: ActionHelp}
	default:
		return Command{Action: ActionUnknown, Arg: name}
	}
}
