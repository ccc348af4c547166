package main

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/mattn/go-isatty"

	"carat/internal/events"
)

// consoleRenderer prints run events to a terminal: replaceable progress lines
// overwrite in place, messages scroll. On non-terminal output progress lines
// are dropped and only messages print.
type consoleRenderer struct {
	out          io.Writer
	tty          bool
	lastProgress bool
	done         chan struct{}
	once         sync.Once
}

func newConsoleRenderer(out *os.File) *consoleRenderer {
	return &consoleRenderer{
		out:  out,
		tty:  isTerminal(out),
		done: make(chan struct{}),
	}
}

func isTerminal(file *os.File) bool {
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// Attach subscribes to the bus and renders until the bus closes.
func (r *consoleRenderer) Attach(bus *events.Bus) {
	ch := bus.Subscribe()
	go func() {
		defer r.once.Do(func() { close(r.done) })
		for event := range ch {
			r.render(event)
		}
		r.finishProgressLine()
	}()
}

// Wait blocks until the event stream has drained.
func (r *consoleRenderer) Wait() {
	<-r.done
}

func (r *consoleRenderer) render(event events.Event) {
	switch event.Type {
	case events.TypeProgress:
		if !r.tty {
			return
		}
		fmt.Fprintf(r.out, "\r\033[K[%s] %5.1f%%", event.Stage, event.Percent)
		r.lastProgress = true
	case events.TypeMessage:
		r.finishProgressLine()
		fmt.Fprintln(r.out, event.Message)
	case events.TypeStageComplete:
		r.finishProgressLine()
	}
}

// finishProgressLine terminates an in-place progress line before scrolling
// output resumes.
func (r *consoleRenderer) finishProgressLine() {
	if r.lastProgress && r.tty {
		fmt.Fprint(r.out, "\n")
	}
	r.lastProgress = false
}
