package service

import (
	"github.com/nishad/srafetch/internal/models"
	"github.com/nishad/srafetch/internal/pipeline"
)

// ResolveRequest is one batch of input lines.
type ResolveRequest struct {
	Lines []string `json:"accessions"`

	// OnEvent receives scheduler events in addition to the service's own
	// handlers. It is called from several goroutines.
	OnEvent pipeline.EventFunc `json:"-"`
}

// ResolveResponse is the outcome of a batch.
type ResolveResponse struct {
	// BatchID is set when the batch was saved to history.
	BatchID     string                   `json:"batch_id,omitempty"`
	Batch       *pipeline.Batch          `json:"batch"`
	Descriptors []models.Descriptor      `json:"descriptors"`
	Counts      map[pipeline.Outcome]int `json:"counts"`
	TimeTaken   int64                    `json:"time_taken_ms"`
	// HistoryError is set when saving to history failed; the batch
	// itself is still complete.
	HistoryError string `json:"history_error,omitempty"`
}

// Failed reports whether any line was skipped or any pipeline failed.
func (r *ResolveResponse) Failed() bool {
	return r.Batch.Failed()
}
