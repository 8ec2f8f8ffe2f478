package ui

import (
	"fmt"
	"io"
	"sync"

	"github.com/nishad/srafetch/internal/pipeline"
)

// BatchProgress drives a spinner from scheduler events.
type BatchProgress struct {
	spinner *Spinner
	total   int

	mu          sync.Mutex
	launched    int
	completed   int
	failed      int
	skipped     int
	descriptors int
}

// NewBatchProgress creates a progress display for a batch of total lines.
func NewBatchProgress(w io.Writer, total int) *BatchProgress {
	return &BatchProgress{
		spinner: NewSpinnerTo(w, fmt.Sprintf("Resolving %d lines", total)),
		total:   total,
	}
}

// Start shows the spinner.
func (p *BatchProgress) Start() {
	p.spinner.Start()
}

// OnEvent is a pipeline.EventFunc.
func (p *BatchProgress) OnEvent(ev pipeline.Event) {
	p.mu.Lock()
	switch ev.Type {
	case pipeline.EventLineSkipped:
		p.skipped++
	case pipeline.EventLaunched:
		p.launched++
	case pipeline.EventCompleted:
		p.completed++
		p.descriptors += len(ev.Result.Descriptors)
		if ev.Result.Outcome.Failed() {
			p.failed++
		}
	}
	msg := p.statusLocked()
	p.mu.Unlock()

	p.spinner.Update(msg)
}

// Stop clears the spinner and prints a summary.
func (p *BatchProgress) Stop() {
	p.mu.Lock()
	msg := fmt.Sprintf("✓ %d pipelines, %d descriptors, %d failed, %d lines skipped",
		p.completed, p.descriptors, p.failed, p.skipped)
	p.mu.Unlock()
	p.spinner.Stop(msg)
}

func (p *BatchProgress) statusLocked() string {
	return fmt.Sprintf("Resolving: %d/%d done, %d in flight, %d descriptors",
		p.completed, p.total, p.launched-p.completed, p.descriptors)
}
