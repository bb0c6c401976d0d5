// Package jsonfile archives detection records as per-agent JSON report
// files, one array per file. Every write rereads, appends and rewrites the
// agent's file so the report on disk is always a complete valid document.
package jsonfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/reliefgrid/disaster-simulator/model"
)

const fileSuffix = "_events.json"

// Backend writes one JSON array per agent under a base directory.
type Backend struct {
	mu  sync.Mutex
	dir string
}

// New creates a backend rooted at dir.
func New(dir string) *Backend {
	if dir == "" {
		dir = "."
	}
	return &Backend{dir: dir}
}

// Name identifies the backend kind.
func (b *Backend) Name() string { return "jsonfile" }

// Init creates the output directory.
func (b *Backend) Init() error {
	return os.MkdirAll(b.dir, 0o755)
}

// Close is a no-op; every write already hits the disk.
func (b *Backend) Close() error { return nil }

// RecordDetection appends rec to the detecting agent's report file.
func (b *Backend) RecordDetection(_ context.Context, rec model.DetectionRecord) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	path := b.pathFor(rec.AgentID)
	records, err := readReport(path)
	if err != nil {
		return err
	}
	rec.ID = uint(len(records) + 1)
	records = append(records, rec)

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal detections: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write detections: %w", err)
	}
	return nil
}

// Detections loads one agent's report, or merges every report under the
// directory when agentID is empty, grouped per agent file.
func (b *Backend) Detections(_ context.Context, agentID string) ([]model.DetectionRecord, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if agentID != "" {
		return readReport(b.pathFor(agentID))
	}

	matches, err := filepath.Glob(filepath.Join(b.dir, "*"+fileSuffix))
	if err != nil {
		return nil, err
	}
	var out []model.DetectionRecord
	for _, path := range matches {
		records, err := readReport(path)
		if err != nil {
			return nil, err
		}
		out = append(out, records...)
	}
	return out, nil
}

func (b *Backend) pathFor(agentID string) string {
	name := strings.ReplaceAll(agentID, string(os.PathSeparator), "-")
	if name == "" {
		name = "unknown"
	}
	return filepath.Join(b.dir, name+fileSuffix)
}

func readReport(path string) ([]model.DetectionRecord, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read detections: %w", err)
	}
	var records []model.DetectionRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("parse detections %s: %w", filepath.Base(path), err)
	}
	return records, nil
}
