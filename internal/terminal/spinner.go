package terminal

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync/atomic"
	"time"
)

const spinnerInterval = 200 * time.Millisecond

var spinnerFrames = []rune("⠋⠙⠹⠸⠼⠴⠦⠧⠇⠏")

// Spinner shows pipeline progress as "Running agents (n/N)" on a TTY.
// The current agent name is shown next to the counter when set.
type Spinner struct {
	isTTY     bool
	out       io.Writer
	completed atomic.Int32
	current   atomic.Value
	total     int
}

// NewSpinner creates a spinner for total agents.
func NewSpinner(total int) *Spinner {
	s := &Spinner{
		isTTY: IsStderrTTY(),
		out:   os.Stderr,
		total: total,
	}
	s.current.Store("")
	return s
}

// Start marks name as the agent currently running.
func (s *Spinner) Start(name string) {
	s.current.Store(name)
}

// Done increments the completed counter.
func (s *Spinner) Done() {
	s.completed.Add(1)
}

// Completed returns the number of agents finished so far.
func (s *Spinner) Completed() int {
	return int(s.completed.Load())
}

// Run animates the spinner until ctx is cancelled.
func (s *Spinner) Run(ctx context.Context) {
	if !s.isTTY {
		<-ctx.Done()
		return
	}

	idx := 0
	ticker := time.NewTicker(spinnerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			tag := fmt.Sprintf("%s[%s%screw%s%s]%s",
				Color(Dim), Color(Reset), Color(Green), Color(Reset), Color(Dim), Color(Reset))
			fmt.Fprintf(s.out, "\r%s %s✓%s Agents complete %s(%d/%d)%s          \n",
				tag, Color(Green), Color(Reset), Color(Dim), s.Completed(), s.total, Color(Reset))
			return

		case <-ticker.C:
			frame := string(spinnerFrames[idx%len(spinnerFrames)])
			tag := fmt.Sprintf("%s[%s%screw%s%s]%s",
				Color(Dim), Color(Reset), Color(Cyan), Color(Reset), Color(Dim), Color(Reset))
			current, _ := s.current.Load().(string)
			fmt.Fprintf(s.out, "\r%s %s%s%s Running agents %s(%d/%d) %s%s          ",
				tag, Color(Cyan), frame, Color(Reset), Color(Dim), s.Completed(), s.total, current, Color(Reset))
			idx++
		}
	}
}
