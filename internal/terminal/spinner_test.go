package terminal

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"
)

func TestSpinner_NonTTY(t *testing.T) {
	s := NewSpinner(4)
	s.isTTY = false

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("spinner did not exit")
	}
}

func TestSpinner_CountsAndFinalLine(t *testing.T) {
	DisableColors()
	defer EnableColors()

	var buf bytes.Buffer
	s := NewSpinner(2)
	s.isTTY = true
	s.out = &buf

	s.Start("SecurityAgent")
	s.Done()
	s.Start("StyleAgent")
	s.Done()

	if s.Completed() != 2 {
		t.Fatalf("Completed() = %d, want 2", s.Completed())
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s.Run(ctx)

	if !strings.Contains(buf.String(), "Agents complete (2/2)") {
		t.Errorf("expected final progress line, got %q", buf.String())
	}
}
