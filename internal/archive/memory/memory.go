// Package memory keeps detection records in process memory. Useful for
// tests and short drills where nothing needs to survive the run.
package memory

import (
	"context"
	"sync"

	"github.com/reliefgrid/disaster-simulator/model"
)

// Backend stores records in insertion order.
type Backend struct {
	mu      sync.RWMutex
	records []model.DetectionRecord
}

// New creates an empty in-memory backend.
func New() *Backend {
	return &Backend{}
}

// Name identifies the backend kind.
func (b *Backend) Name() string { return "memory" }

// Init is a no-op.
func (b *Backend) Init() error { return nil }

// Close is a no-op.
func (b *Backend) Close() error { return nil }

// RecordDetection appends rec, assigning it the next sequence ID.
func (b *Backend) RecordDetection(_ context.Context, rec model.DetectionRecord) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	rec.ID = uint(len(b.records) + 1)
	b.records = append(b.records, rec)
	return nil
}

// Detections filters by agent, or returns everything for an empty agentID.
func (b *Backend) Detections(_ context.Context, agentID string) ([]model.DetectionRecord, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]model.DetectionRecord, 0, len(b.records))
	for _, rec := range b.records {
		if agentID == "" || rec.AgentID == agentID {
			out = append(out, rec)
		}
	}
	return out, nil
}
