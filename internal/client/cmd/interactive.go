package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/rudransh-shrivastava/p2p-share/internal/client/console"
	"github.com/rudransh-shrivastava/p2p-share/internal/event"
	"github.com/rudransh-shrivastava/p2p-share/internal/node"
	"github.com/rudransh-shrivastava/p2p-share/internal/transfer"
)

// peer is the part of a node the interactive loop drives.
type peer interface {
	SendChat(text string) error
	SendFile(ctx context.Context, path string) (transfer.Result, error)
	Done() <-chan struct{}
}

// interact reads commands from in until the user quits, input ends, the
// context is cancelled or the peer goes away.
func interact(ctx context.Context, p peer, in io.Reader, sink event.Sink) {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	sink.Publish(event.Chat(event.CategorySystem, "Type /help for commands"))
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			if !handle(ctx, p, console.ParseLine(line), sink) {
				return
			}
		}
	}
}

// handle runs one command and reports whether the loop should continue.
func handle(ctx context.Context, p peer, c console.Command, sink event.Sink) bool {
	switch c.Action {
	case console.ActionQuit:
		return false
	case console.ActionHelp:
		sink.Publish(event.Chat(event.CategorySystem, console.Help))
	case console.ActionUnknown:
		sink.Publish(event.Chat(event.CategoryError, fmt.Sprintf("Unknown command %s, try /help", c.Arg)))
	case console.ActionChat:
		if err := p.SendChat(c.Arg); err != nil {
			sink.Publish(event.Chat(event.CategoryError, err.Error()))
		}
	case console.ActionSend:
		sendFile(ctx, p, c.Arg, sink)
	}
	return true
}

func sendFile(ctx context.Context, p peer, path string, sink event.Sink) transfer.Result {
	res, err := p.SendFile(ctx, path)
	switch {
	case errors.Is(err, node.ErrNotInitiator):
		sink.Publish(event.Status(event.SeverityWarning, "Only the connecting side can send files"))
	case err != nil:
		sink.Publish(event.Status(event.SeverityError, err.Error()))
	case res.OK:
		sink.Publish(event.Status(event.SeveritySuccess, res.Message))
	default:
		sink.Publish(event.Status(event.SeverityError, res.Message))
	}
	return res
}
