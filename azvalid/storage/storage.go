// Package storage persists completed validation runs to a SQLite database.
package storage

import (
	"errors"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Run is one persisted walk-forward validation run. Payload holds the full
// serialized result; the remaining columns exist for listing and dedup
// lookups without decoding it.
type Run struct {
	ID     uint   `gorm:"primaryKey"`
	Digest string `gorm:"uniqueIndex"`

	Ticker          string
	StartDate       time.Time
	EndDate         time.Time
	ObjectiveMetric string

	TotalFolds     int
	StabilityScore float64
	StabilityTier  string

	Payload   string
	CreatedAt time.Time
}

// Storage stores and retrieves validation runs.
type Storage interface {
	SaveRun(run *Run) error
	RunByDigest(digest string) (*Run, error)
	Runs() ([]Run, error)
}

// FromMemory creates a database in memory, useful for tests and one-shot runs.
func FromMemory() (Storage, error) {
	return newSQLite(":memory:")
}

// FromFile creates a database backed by the given file.
func FromFile(path string) (Storage, error) {
	return newSQLite(path)
}

type sqliteStorage struct {
	db *gorm.DB
}

func newSQLite(dsn string) (Storage, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.AutoMigrate(&Run{}); err != nil {
		return nil, fmt.Errorf("migrate runs table: %w", err)
	}

	return &sqliteStorage{db: db}, nil
}

func (s *sqliteStorage) SaveRun(run *Run) error {
	return s.db.Save(run).Error
}

// RunByDigest returns nil without error when no run matches.
func (s *sqliteStorage) RunByDigest(digest string) (*Run, error) {
	var run Run
	err := s.db.Where("digest = ?", digest).First(&run).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}

func (s *sqliteStorage) Runs() ([]Run, error) {
	var runs []Run
	if err := s.db.Order("created_at desc").Find(&runs).Error; err != nil {
		return nil, err
	}
	return runs, nil
}
