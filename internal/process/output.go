package process

import (
	"strings"
	"sync"
)

// Tail is an OutputHandler keeping the last lines a process wrote.
type Tail struct {
	mu    sync.Mutex
	max   int
	lines []string
}

// NewTail keeps at most max lines.
func NewTail(max int) *Tail {
	if max <= 0 {
		max = 1
	}
	return &Tail{max: max}
}

// HandleLine implements OutputHandler.
func (t *Tail) HandleLine(_, line string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.lines) == t.max {
		copy(t.lines, t.lines[1:])
		t.lines = t.lines[:t.max-1]
	}
	t.lines = append(t.lines, line)
}

// Lines returns a copy of the retained lines, oldest first.
func (t *Tail) Lines() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.lines...)
}

// String joins the retained lines with newlines.
func (t *Tail) String() string {
	return strings.Join(t.Lines(), "\n")
}
