// Package sqlite archives detection records in a SQLite database through
// GORM, using the pure-Go driver so builds stay cgo-free.
package sqlite

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/reliefgrid/disaster-simulator/model"
)

var errNotInitialised = errors.New("sqlite backend not initialised")

// Backend persists records through GORM.
type Backend struct {
	path string
	db   *gorm.DB
}

// New creates a backend writing to the database at path. An empty path keeps
// the database in memory, which suits tests and one-shot drills.
func New(path string) *Backend {
	return &Backend{path: path}
}

// Name identifies the backend kind.
func (b *Backend) Name() string { return "sqlite" }

// Init opens the database and migrates the schema.
func (b *Backend) Init() error {
	dsn := b.path
	if dsn == "" {
		dsn = "file::memory:?cache=shared"
	} else if dir := filepath.Dir(dsn); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		PrepareStmt:            true,
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return fmt.Errorf("open sqlite database: %w", err)
	}
	if err := db.AutoMigrate(&model.DetectionRecord{}); err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}
	b.db = db
	return nil
}

// Close shuts the underlying connection pool.
func (b *Backend) Close() error {
	if b.db == nil {
		return nil
	}
	sqlDB, err := b.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// RecordDetection inserts one row.
func (b *Backend) RecordDetection(ctx context.Context, rec model.DetectionRecord) error {
	if b.db == nil {
		return errNotInitialised
	}
	if err := b.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return fmt.Errorf("insert detection: %w", err)
	}
	return nil
}

// Detections queries rows in insertion order.
func (b *Backend) Detections(ctx context.Context, agentID string) ([]model.DetectionRecord, error) {
	if b.db == nil {
		return nil, errNotInitialised
	}
	q := b.db.WithContext(ctx).Order("id")
	if agentID != "" {
		q = q.Where("agent_id = ?", agentID)
	}
	var records []model.DetectionRecord
	if err := q.Find(&records).Error; err != nil {
		return nil, fmt.Errorf("query detections: %w", err)
	}
	return records, nil
}
