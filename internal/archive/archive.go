// Package archive persists detection records behind a pluggable Backend,
// selected by name through NewBackend.
package archive

import (
	"context"
	"errors"

	"github.com/reliefgrid/disaster-simulator/model"
)

// ErrUnknownBackend is returned by NewBackend for an unrecognised kind.
var ErrUnknownBackend = errors.New("unknown archive backend")

// Backend persists detection records. Implementations must be safe for
// concurrent use.
type Backend interface {
	// Name identifies the backend kind, for logs and metrics labels.
	Name() string
	// Init prepares storage: directories, schema migration.
	Init() error
	// RecordDetection appends one record.
	RecordDetection(ctx context.Context, rec model.DetectionRecord) error
	// Detections returns records for one agent, or all records when agentID
	// is empty.
	Detections(ctx context.Context, agentID string) ([]model.DetectionRecord, error)
	// Close releases resources.
	Close() error
}

// Options selects and parameterises a backend.
type Options struct {
	Kind       string // memory | jsonfile | sqlite
	OutputDir  string // jsonfile: directory for per-agent report files
	SQLitePath string // sqlite: database path, empty keeps it in memory
}
