// Package console renders peer events in a terminal: colored status and chat
// lines plus a progress bar for the transfer in flight.
package console

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rudransh-shrivastava/p2p-share/internal/event"
	"github.com/schollz/progressbar/v3"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorBlue   = "\033[34m"
	colorPurple = "\033[35m"
)

type Printer struct {
	out    io.Writer
	colors bool

	mu       sync.Mutex
	bar      *progressbar.ProgressBar
	barMoved uint64
}

func New(out io.Writer, colors bool) *Printer {
	return &Printer{out: out, colors: colors}
}

// NewStdout writes to stdout with colors when it is a terminal.
func NewStdout() *Printer {
	fd := os.Stdout.Fd()
	return New(os.Stdout, isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd))
}

// Run prints events until the channel is closed.
func (p *Printer) Run(events <-chan event.Event) {
	for e := range events {
		p.Handle(e)
	}
	p.mu.Lock()
	p.finishBar()
	p.mu.Unlock()
}

func (p *Printer) Handle(e event.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if e.Kind == event.KindProgress {
		p.progress(e)
		return
	}

	if p.bar != nil {
		_ = p.bar.Clear()
	}
	line := Format(e)
	if p.colors {
		line = color(e) + line + colorReset
	}
	fmt.Fprintln(p.out, line)
}

func (p *Printer) progress(e event.Event) {
	if e.Total == 0 {
		return
	}
	if p.bar != nil && e.Moved < p.barMoved {
		p.finishBar()
	}
	if p.bar == nil {
		p.bar = progressbar.NewOptions64(int64(e.Total),
			progressbar.OptionSetWriter(p.out),
			progressbar.OptionSetDescription("transfer"),
			progressbar.OptionShowBytes(true),
			progressbar.OptionSetWidth(30),
			progressbar.OptionThrottle(65*time.Millisecond),
			progressbar.OptionEnableColorCodes(p.colors),
			progressbar.OptionSetPredictTime(true),
			progressbar.OptionSetRenderBlankState(true),
		)
		p.barMoved = 0
	}

	_ = p.bar.Set64(int64(e.Moved))
	p.barMoved = e.Moved
	if e.Moved >= e.Total {
		p.finishBar()
	}
}

func (p *Printer) finishBar() {
	if p.bar == nil {
		return
	}
	_ = p.bar.Finish()
	fmt.Fprintln(p.out)
	p.bar = nil
	p.barMoved = 0
}

// Format renders the text of a non-progress event without colors.
func Format(e event.Event) string {
	switch e.Kind {
	case event.KindStatus:
		return statusPrefix(e.Severity) + e.Message
	case event.KindChat:
		return e.Message
	case event.KindFileReceived:
		if e.Message == "" {
			return "Saved " + e.Path
		}
		return fmt.Sprintf("%s -> %s", e.Message, e.Path)
	case event.KindProgress:
		return fmt.Sprintf("%d/%d", e.Moved, e.Total)
	default:
		return e.Message
	}
}

func statusPrefix(sev event.Severity) string {
	switch sev {
	case event.SeveritySuccess:
		return "[ok] "
	case event.SeverityWarning:
		return "[warn] "
	case event.SeverityError:
		return "[error] "
	default:
		return "[..] "
	}
}

func color(e event.Event) string {
	switch e.Kind {
	case event.KindStatus:
		switch e.Severity {
		case event.SeveritySuccess:
			return colorGreen
		case event.SeverityWarning:
			return colorYellow
		case event.SeverityError:
			return colorRed
		default:
			return colorBlue
		}
	case event.KindChat:
		switch e.Category {
		case event.CategoryLocal:
			return colorBlue
		case event.CategoryRemote:
			return colorPurple
		case event.CategoryError:
			return colorRed
		default:
			return colorGreen
		}
	case event.KindFileReceived:
		return colorGreen
	default:
		return ""
	}
}
