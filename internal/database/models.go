package database

import (
	"time"

	"github.com/nishad/srafetch/internal/models"
)

// BatchSummary is one row of the batches table.
type BatchSummary struct {
	ID              string    `json:"id"`
	CreatedAt       time.Time `json:"created_at"`
	FinishedAt      time.Time `json:"finished_at"`
	LineCount       int       `json:"line_count"`
	PipelineCount   int       `json:"pipeline_count"`
	DescriptorCount int       `json:"descriptor_count"`
	FailureCount    int       `json:"failure_count"`
	// Interrupted is set when the batch stopped launching early.
	Interrupted bool `json:"interrupted"`
}

// Failure kinds stored in the failures table besides pipeline outcomes.
const (
	FailureParse = "parse"
)

// Failure records a skipped line or a pipeline that produced no
// descriptors for a reason other than success.
type Failure struct {
	BatchID   string `json:"batch_id"`
	Line      int    `json:"line"`
	Input     string `json:"input"`
	Accession string `json:"accession,omitempty"`
	// Kind is "parse" for skipped lines, otherwise the pipeline outcome.
	Kind    string `json:"kind"`
	Reason  string `json:"reason,omitempty"`
	Message string `json:"message"`
}

// StoredDescriptor is a descriptor together with the batch that produced it.
type StoredDescriptor struct {
	BatchID  string    `json:"batch_id"`
	Position int       `json:"position"`
	Line     int       `json:"line"`
	SavedAt  time.Time `json:"saved_at"`
	models.Descriptor
}

// BatchDetail is a batch with its descriptors and failures.
type BatchDetail struct {
	BatchSummary
	Descriptors []models.Descriptor `json:"descriptors"`
	Failures    []Failure           `json:"failures"`
}

// Stats holds row counts of the history tables.
type Stats struct {
	Batches     int64 `json:"batches"`
	Descriptors int64 `json:"descriptors"`
	Failures    int64 `json:"failures"`
	Size        int64 `json:"size_bytes"`
}
