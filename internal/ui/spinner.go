package ui

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/mattn/go-isatty"
)

// Spinner provides a simple command-line spinner for long-running operations
type Spinner struct {
	out     io.Writer
	tty     bool
	frames  spinner.Spinner
	message string
	active  bool
	mu      sync.Mutex
	done    chan struct{}
	stopped chan struct{}
}

// NewSpinner creates a new spinner instance on stderr
func NewSpinner(message string) *Spinner {
	return NewSpinnerTo(os.Stderr, message)
}

// NewSpinnerTo creates a spinner writing to w. Non-terminal writers get a
// single line at start and stop instead of animation.
func NewSpinnerTo(w io.Writer, message string) *Spinner {
	return &Spinner{
		out:     w,
		tty:     IsTerminal(w) && os.Getenv("NO_COLOR") == "",
		frames:  spinner.MiniDot,
		message: message,
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
}

// Start begins spinning
func (s *Spinner) Start() {
	s.mu.Lock()
	if s.active {
		s.mu.Unlock()
		return
	}
	s.active = true
	msg := s.message
	s.mu.Unlock()

	if !s.tty {
		fmt.Fprintf(s.out, "%s...\n", msg)
		close(s.stopped)
		return
	}

	go func() {
		defer close(s.stopped)
		ticker := time.NewTicker(s.frames.FPS)
		defer ticker.Stop()

		i := 0
		for {
			select {
			case <-s.done:
				fmt.Fprintf(s.out, "\r\033[K")
				return
			case <-ticker.C:
				s.mu.Lock()
				fmt.Fprintf(s.out, "\r\033[K%s %s", s.frames.Frames[i], s.message)
				s.mu.Unlock()
				i = (i + 1) % len(s.frames.Frames)
			}
		}
	}()
}

// Stop stops the spinner and optionally shows a final message
func (s *Spinner) Stop(finalMessage string) {
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return
	}
	s.active = false
	s.mu.Unlock()

	close(s.done)
	<-s.stopped

	if finalMessage != "" {
		fmt.Fprintf(s.out, "%s\n", finalMessage)
	}
}

// Update changes the spinner message while it's running
func (s *Spinner) Update(message string) {
	s.mu.Lock()
	s.message = message
	s.mu.Unlock()
}

// IsTerminal reports whether w is a terminal
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// ShowSpinner is a convenience function for simple spinner usage
func ShowSpinner(message string, fn func() error) error {
	spinner := NewSpinner(message)
	spinner.Start()
	err := fn()
	if err != nil {
		spinner.Stop(fmt.Sprintf("✗ %s", err.Error()))
	} else {
		spinner.Stop("✓ Done")
	}
	return err
}
