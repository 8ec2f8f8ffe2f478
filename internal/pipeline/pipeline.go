// Package pipeline runs the per-accession resolve → fetch → expand chain and
// fans it out over a batch of input lines under a fixed launch interval.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nishad/srafetch/internal/accession"
	"github.com/nishad/srafetch/internal/models"
	"github.com/nishad/srafetch/internal/resolver"
)

// Resolver maps an accession to the identifier queried against ENA.
type Resolver interface {
	Resolve(ctx context.Context, acc accession.Accession) (string, error)
}

// Fetcher returns the filereport rows for a queryable identifier.
type Fetcher interface {
	FetchRecords(ctx context.Context, id string) ([]models.Record, error)
}

// Outcome classifies how a single accession's pipeline ended.
type Outcome string

const (
	OutcomeOK               Outcome = "ok"
	OutcomeNoCrossReference Outcome = "no_cross_reference"
	OutcomeResolutionFailed Outcome = "resolution_failed"
	OutcomeFetchFailed      Outcome = "fetch_failed"
)

// Failed reports whether the outcome is an error rather than a result.
func (o Outcome) Failed() bool {
	return o == OutcomeResolutionFailed || o == OutcomeFetchFailed
}

// Result is the output of one pipeline.
type Result struct {
	Line        int                 `json:"line"`
	Accession   accession.Accession `json:"accession"`
	QueryID     string              `json:"query_id,omitempty"`
	Outcome     Outcome             `json:"outcome"`
	Descriptors []models.Descriptor `json:"descriptors"`
	Records     int                 `json:"records"`
	Warnings    []string            `json:"warnings,omitempty"`
	Error       string              `json:"error,omitempty"`
	Duration    time.Duration       `json:"duration_ns"`

	Err error `json:"-"`
}

func (r *Result) fail(outcome Outcome, err error) {
	r.Outcome = outcome
	r.Err = err
	r.Error = err.Error()
}

// Pipeline resolves, fetches and expands a single accession. It holds no
// per-accession state and may be shared between goroutines.
type Pipeline struct {
	resolver Resolver
	fetcher  Fetcher
}

// New creates a pipeline.
func New(r Resolver, f Fetcher) *Pipeline {
	return &Pipeline{resolver: r, fetcher: f}
}

// Process runs the chain for acc. It never returns an error: failures are
// recorded in the Result so the caller's batch can carry on.
func (p *Pipeline) Process(ctx context.Context, acc accession.Accession) (res Result) {
	start := time.Now()
	res = Result{Accession: acc, Descriptors: []models.Descriptor{}}
	defer func() { res.Duration = time.Since(start) }()

	id, err := p.resolver.Resolve(ctx, acc)
	switch {
	case errors.Is(err, resolver.ErrNoCrossReference):
		res.fail(OutcomeNoCrossReference, err)
		return res
	case err != nil:
		res.fail(OutcomeResolutionFailed, err)
		return res
	}
	res.QueryID = id

	records, err := p.fetcher.FetchRecords(ctx, id)
	if err != nil {
		res.fail(OutcomeFetchFailed, err)
		return res
	}
	res.Records = len(records)

	for _, rec := range records {
		if !rec.Aligned() {
			res.Warnings = append(res.Warnings, fmt.Sprintf(
				"run %s: fastq_md5, fastq_ftp and fastq_aspera differ in length; extra entries dropped",
				rec.RunAccession))
		}
	}

	if d := models.Expand(acc, records); d != nil {
		res.Descriptors = d
	}
	res.Outcome = OutcomeOK
	return res
}
