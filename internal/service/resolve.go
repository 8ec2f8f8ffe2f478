// Package service wires the resolver, the ENA client and the scheduler into
// the resolve operation shared by the CLI and the HTTP API, recording
// metrics and batch history along the way.
package service

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/nishad/srafetch/internal/accession"
	"github.com/nishad/srafetch/internal/config"
	"github.com/nishad/srafetch/internal/database"
	"github.com/nishad/srafetch/internal/ena"
	"github.com/nishad/srafetch/internal/errors"
	"github.com/nishad/srafetch/internal/metrics"
	"github.com/nishad/srafetch/internal/models"
	"github.com/nishad/srafetch/internal/pipeline"
	"github.com/nishad/srafetch/internal/resolver"
)

// Options configures a ResolveService. Config is required; the rest are
// optional.
type Options struct {
	Config  *config.Config
	Metrics *metrics.Metrics
	// History, when set, receives every finished batch.
	History *database.DB
	// HTTPClient is shared by the GEO and ENA clients.
	HTTPClient *http.Client
	// OnEvent receives scheduler events for every batch.
	OnEvent pipeline.EventFunc
}

// ResolveService turns accession lines into download descriptors.
type ResolveService struct {
	cfg      *config.Config
	metrics  *metrics.Metrics
	history  *database.DB
	onEvent  pipeline.EventFunc
	pipeline *pipeline.Pipeline
}

// NewResolveService creates a resolve service instance
func NewResolveService(opts Options) *ResolveService {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	var r pipeline.Resolver = resolver.New(resolver.Config{
		BaseURL:    cfg.Endpoints.GEO,
		Timeout:    cfg.Timeout(),
		UserAgent:  cfg.Request.UserAgent,
		HTTPClient: opts.HTTPClient,
	})
	var f pipeline.Fetcher = ena.NewClient(ena.Config{
		BaseURL:    cfg.Endpoints.ENA,
		Timeout:    cfg.Timeout(),
		UserAgent:  cfg.Request.UserAgent,
		HTTPClient: opts.HTTPClient,
	})
	if opts.Metrics != nil {
		r = &timedResolver{next: r, m: opts.Metrics}
		f = &timedFetcher{next: f, m: opts.Metrics}
	}

	return &ResolveService{
		cfg:      cfg,
		metrics:  opts.Metrics,
		history:  opts.History,
		onEvent:  opts.OnEvent,
		pipeline: pipeline.New(r, f),
	}
}

// Interval is the minimum spacing between pipeline launches in a batch.
func (s *ResolveService) Interval() time.Duration {
	return s.cfg.Interval()
}

// HistoryEnabled reports whether batches are saved.
func (s *ResolveService) HistoryEnabled() bool {
	return s.history != nil
}

// Resolve runs one batch. Per-line and per-pipeline failures are reported
// in the response, not as an error; the error is only set when the request
// itself is unusable.
func (s *ResolveService) Resolve(ctx context.Context, req *ResolveRequest) (*ResolveResponse, error) {
	const op errors.Op = "service.Resolve"
	if req == nil {
		return nil, errors.E(op, errors.KindValidation, "nil request")
	}

	sched := pipeline.NewScheduler(s.pipeline, pipeline.SchedulerConfig{
		Interval:    s.cfg.Interval(),
		MaxInFlight: s.cfg.Request.MaxInFlight,
		OnEvent:     s.eventHandler(req.OnEvent),
	})

	start := time.Now()
	batch := sched.Run(ctx, req.Lines)
	resp := &ResolveResponse{
		Batch:       batch,
		Descriptors: batch.Descriptors(),
		Counts:      batch.Counts(),
		TimeTaken:   time.Since(start).Milliseconds(),
	}

	if s.history != nil {
		// the caller's context may already be cancelled; the batch is still worth keeping
		id, err := s.history.SaveBatch(context.WithoutCancel(ctx), batch)
		if err != nil {
			errors.LogAndContinueWith("saving batch history", err, fmt.Sprintf("%d lines", batch.Lines))
			resp.HistoryError = err.Error()
		} else {
			resp.BatchID = id
		}
	}
	return resp, nil
}

// ResolveOne runs a single pipeline without throttling or history.
func (s *ResolveService) ResolveOne(ctx context.Context, line string) (*pipeline.Result, error) {
	const op errors.Op = "service.ResolveOne"

	acc, err := accession.Parse(line)
	if err != nil {
		if s.metrics != nil {
			s.metrics.LineSkipped(accession.Reason(err))
		}
		return nil, errors.E(op, errors.KindValidation, err)
	}

	if s.metrics != nil {
		s.metrics.PipelineStarted()
	}
	res := s.pipeline.Process(ctx, acc)
	res.Line = 1
	if s.metrics != nil {
		s.metrics.PipelineFinished(string(res.Outcome), len(res.Descriptors))
	}
	return &res, nil
}

func (s *ResolveService) eventHandler(extra pipeline.EventFunc) pipeline.EventFunc {
	return func(ev pipeline.Event) {
		if s.metrics != nil {
			switch ev.Type {
			case pipeline.EventLineSkipped:
				s.metrics.LineSkipped(ev.Failure.Reason)
			case pipeline.EventLaunched:
				s.metrics.PipelineStarted()
			case pipeline.EventCompleted:
				s.metrics.PipelineFinished(string(ev.Result.Outcome), len(ev.Result.Descriptors))
			}
		}
		if s.onEvent != nil {
			s.onEvent(ev)
		}
		if extra != nil {
			extra(ev)
		}
	}
}

// timedResolver observes GEO lookups; SRX and SRR resolve locally and are
// not timed.
type timedResolver struct {
	next pipeline.Resolver
	m    *metrics.Metrics
}

func (t *timedResolver) Resolve(ctx context.Context, acc accession.Accession) (string, error) {
	if acc.Kind != accession.KindSample {
		return t.next.Resolve(ctx, acc)
	}
	start := time.Now()
	id, err := t.next.Resolve(ctx, acc)
	t.m.ObserveRequest("geo", time.Since(start), lookupError(err))
	return id, err
}

// lookupError drops the not-found case, which is a valid GEO answer.
func lookupError(err error) error {
	if errors.Is(err, resolver.ErrNoCrossReference) {
		return nil
	}
	return err
}

type timedFetcher struct {
	next pipeline.Fetcher
	m    *metrics.Metrics
}

func (t *timedFetcher) FetchRecords(ctx context.Context, id string) ([]models.Record, error) {
	start := time.Now()
	recs, err := t.next.FetchRecords(ctx, id)
	t.m.ObserveRequest("ena", time.Since(start), err)
	return recs, err
}
