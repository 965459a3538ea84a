// Package progress is the side channel operations report through. Nothing
// written here affects results or errors.
package progress

import (
	"fmt"
	"io"
	"sync"

	"github.com/fatih/color"
)

type Reporter interface {
	// Step announces phase index of total, e.g. "[2/3] Hashing files...".
	Step(index, total int, title string)
	// Start opens a counter for n units of work in the current phase.
	Start(n int) Bar
	Message(format string, args ...any)
}

type Bar interface {
	Increment()
	Finish()
}

func Nop() Reporter { return nop{} }

type nop struct{}

func (nop) Step(int, int, string) {}
func (nop) Start(int) Bar { return nopBar{} }
func (nop) Message(string, ...any) {}

type nopBar struct{}

func (nopBar) Increment() {}
func (nopBar) Finish() {}

// Console writes steps and counters to a terminal.
type Console struct {
	out   io.Writer
	mu    sync.Mutex
	step  *color.Color
	count *color.Color
}

func NewConsole(out io.Writer) *Console {
	return &Console{
		out:   out,
		step:  color.New(color.FgCyan),
		count: color.New(color.FgYellow),
	}
}

func (c *Console) Step(index, total int, title string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, "%s %s\n", c.step.Sprintf("[%d/%d]", index, total), title)
}

func (c *Console) Message(format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, format+"\n", args...)
}

func (c *Console) Start(n int) Bar {
	return &consoleBar{console: c, total: n}
}

type consoleBar struct {
	console *Console
	mu      sync.Mutex
	done    int
	total   int
}

func (b *consoleBar) Increment() {
	b.mu.Lock()
	b.done++
	done := b.done
	b.mu.Unlock()

	// Redraw at most ~100 times per phase.
	if b.total > 100 && done%(b.total/100) != 0 && done != b.total {
		return
	}
	b.console.mu.Lock()
	fmt.Fprintf(b.console.out, "\r  %s", b.console.count.Sprintf("%d/%d", done, b.total))
	b.console.mu.Unlock()
}

func (b *consoleBar) Finish() {
	if b.total == 0 {
		return
	}
	b.console.mu.Lock()
	fmt.Fprintln(b.console.out)
	b.console.mu.Unlock()
}

// Recorder keeps everything it is told; useful for asserting on what an
// operation did.
type Recorder struct {
	mu       sync.Mutex
	Steps    []string
	Messages []string
	Totals   []int
}

func (r *Recorder) Step(index, total int, title string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Steps = append(r.Steps, fmt.Sprintf("[%d/%d] %s", index, total, title))
}

func (r *Recorder) Message(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Messages = append(r.Messages, fmt.Sprintf(format, args...))
}

func (r *Recorder) Start(n int) Bar {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Totals = append(r.Totals, n)
	return nopBar{}
}
