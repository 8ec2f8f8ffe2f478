package pipeline

import (
	"context"
	"strings"
	"time"

	"github.com/nishad/srafetch/internal/accession"
	"github.com/nishad/srafetch/internal/models"
	"golang.org/x/sync/errgroup"
)

// DefaultInterval is the minimum spacing between pipeline launches.
const DefaultInterval = 200 * time.Millisecond

// EventType identifies a scheduler event.
type EventType int

const (
	EventLineSkipped EventType = iota // input line could not be parsed
	EventLaunched                     // pipeline started
	EventCompleted                    // pipeline finished, Result set
)

// Event is emitted while a batch runs. Handlers are called from several
// goroutines and must be safe for concurrent use.
type Event struct {
	Type      EventType
	Line      int
	Accession accession.Accession
	Failure   *LineFailure
	Result    *Result
}

// EventFunc receives scheduler events.
type EventFunc func(Event)

// LineFailure records an input line that was skipped.
type LineFailure struct {
	Line   int    `json:"line"`
	Input  string `json:"input"`
	Reason string `json:"reason"`
	Error  string `json:"error"`
}

// Batch is the outcome of one scheduler run.
type Batch struct {
	Lines    int           `json:"lines"`
	Results  []Result      `json:"results"`
	Failures []LineFailure `json:"failures"`
	Started  time.Time     `json:"started"`
	Finished time.Time     `json:"finished"`

	// Err is set when the context ended before every line was launched.
	Err error `json:"-"`
}

// Descriptors concatenates every pipeline's descriptors in launch order.
func (b *Batch) Descriptors() []models.Descriptor {
	n := 0
	for i := range b.Results {
		n += len(b.Results[i].Descriptors)
	}
	out := make([]models.Descriptor, 0, n)
	for i := range b.Results {
		out = append(out, b.Results[i].Descriptors...)
	}
	return out
}

// Counts returns the number of pipelines per outcome.
func (b *Batch) Counts() map[Outcome]int {
	counts := make(map[Outcome]int)
	for i := range b.Results {
		counts[b.Results[i].Outcome]++
	}
	return counts
}

// Failed reports whether any line was skipped or any pipeline failed.
func (b *Batch) Failed() bool {
	if len(b.Failures) > 0 || b.Err != nil {
		return true
	}
	for i := range b.Results {
		if b.Results[i].Outcome.Failed() {
			return true
		}
	}
	return false
}

// SchedulerConfig configures a Scheduler.
type SchedulerConfig struct {
	// Interval is the minimum time between two pipeline launches.
	Interval time.Duration
	// MaxInFlight bounds concurrently running pipelines; 0 means no bound.
	MaxInFlight int
	// OnEvent, if set, receives progress events.
	OnEvent EventFunc
}

// Scheduler fans a batch of input lines out to concurrent pipelines.
type Scheduler struct {
	pipeline *Pipeline
	cfg      SchedulerConfig
}

// NewScheduler creates a scheduler around p.
func NewScheduler(p *Pipeline, cfg SchedulerConfig) *Scheduler {
	if cfg.Interval < 0 {
		cfg.Interval = 0
	}
	return &Scheduler{pipeline: p, cfg: cfg}
}

type job struct {
	line int
	acc  accession.Accession
}

// Run parses lines, launches one pipeline per accession no faster than one
// per Interval and waits for all of them. Blank lines and lines starting
// with '#' are ignored; unparsable lines are reported in Batch.Failures.
// If ctx ends, no further pipelines are launched and the ones in flight see
// their requests cancelled.
func (s *Scheduler) Run(ctx context.Context, lines []string) *Batch {
	batch := &Batch{
		Lines:    len(lines),
		Failures: []LineFailure{},
		Started:  time.Now(),
	}

	jobs := make([]job, 0, len(lines))
	for i, raw := range lines {
		line := strings.TrimSpace(raw)
		if ignored(line) {
			continue
		}
		acc, err := accession.Parse(line)
		if err != nil {
			f := LineFailure{Line: i + 1, Input: line, Reason: accession.Reason(err), Error: err.Error()}
			batch.Failures = append(batch.Failures, f)
			s.emit(Event{Type: EventLineSkipped, Line: f.Line, Failure: &f})
			continue
		}
		jobs = append(jobs, job{line: i + 1, acc: acc})
	}

	results := make([]Result, len(jobs))
	var g errgroup.Group
	var slots chan struct{}
	if s.cfg.MaxInFlight > 0 {
		slots = make(chan struct{}, s.cfg.MaxInFlight)
	}

	launched := 0
	var lastLaunch time.Time
	for i := range jobs {
		if i > 0 {
			if err := s.waitUntil(ctx, lastLaunch.Add(s.cfg.Interval)); err != nil {
				batch.Err = err
				break
			}
		}
		if err := acquire(ctx, slots); err != nil {
			batch.Err = err
			break
		}

		j := jobs[i]
		idx := i
		launched++
		s.emit(Event{Type: EventLaunched, Line: j.line, Accession: j.acc})

		g.Go(func() error {
			defer release(slots)
			res := s.pipeline.Process(ctx, j.acc)
			res.Line = j.line
			results[idx] = res
			s.emit(Event{Type: EventCompleted, Line: j.line, Accession: j.acc, Result: &res})
			// failures stay inside the Result so siblings keep running
			return nil
		})
		lastLaunch = time.Now()
	}

	g.Wait()
	batch.Results = results[:launched]
	batch.Finished = time.Now()
	return batch
}

func ignored(line string) bool {
	return line == "" || strings.HasPrefix(line, "#")
}

// CountInputs returns how many of lines Run either launches or reports as
// skipped, that is every line that is neither blank nor a comment.
func CountInputs(lines []string) int {
	n := 0
	for _, raw := range lines {
		if !ignored(strings.TrimSpace(raw)) {
			n++
		}
	}
	return n
}

// acquire takes an in-flight slot, giving up when ctx ends. A nil slots
// channel means no bound.
func acquire(ctx context.Context, slots chan struct{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if slots == nil {
		return nil
	}
	select {
	case slots <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	// both cases may have been ready
	if err := ctx.Err(); err != nil {
		release(slots)
		return err
	}
	return nil
}

func release(slots chan struct{}) {
	if slots != nil {
		<-slots
	}
}

func (s *Scheduler) waitUntil(ctx context.Context, t time.Time) error {
	d := time.Until(t)
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) emit(ev Event) {
	if s.cfg.OnEvent != nil {
		s.cfg.OnEvent(ev)
	}
}
