package service

import (
	"context"

	"github.com/nishad/srafetch/internal/database"
	"github.com/nishad/srafetch/internal/errors"
)

// ErrHistoryDisabled is returned by HistoryService when no database is open.
var ErrHistoryDisabled = errors.E(errors.Op("service.History"), errors.KindNotFound, "batch history is disabled")

// HistoryService provides read access to saved batches.
type HistoryService struct {
	db *database.DB
}

// NewHistoryService creates a history service; db may be nil.
func NewHistoryService(db *database.DB) *HistoryService {
	return &HistoryService{db: db}
}

// Enabled reports whether a database is attached.
func (h *HistoryService) Enabled() bool {
	return h.db != nil
}

// ListBatches returns the newest batches first.
func (h *HistoryService) ListBatches(ctx context.Context, limit int) ([]database.BatchSummary, error) {
	if h.db == nil {
		return nil, ErrHistoryDisabled
	}
	return h.db.ListBatches(ctx, limit)
}

// GetBatch returns one batch with descriptors and failures.
func (h *HistoryService) GetBatch(ctx context.Context, id string) (*database.BatchDetail, error) {
	if h.db == nil {
		return nil, ErrHistoryDisabled
	}
	return h.db.GetBatch(ctx, id)
}

// FindDescriptors returns previously produced descriptors for an accession.
func (h *HistoryService) FindDescriptors(ctx context.Context, acc string) ([]database.StoredDescriptor, error) {
	if h.db == nil {
		return nil, ErrHistoryDisabled
	}
	return h.db.FindDescriptors(ctx, acc)
}

// Stats returns history row counts.
func (h *HistoryService) Stats() (*database.Stats, error) {
	if h.db == nil {
		return nil, ErrHistoryDisabled
	}
	return h.db.GetStats()
}
