// Package history records terminal transfers, delivered and failed, so the
// CLI can show what happened recently.
package history

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// Directions of a recorded transfer.
const (
	DirectionSent     = "sent"
	DirectionReceived = "received"
)

// maxRecords bounds the history; older rows are trimmed on insert.
const maxRecords = 50

// Record is one terminal transfer outcome, delivered or failed.
type Record struct {
	ID        uint `gorm:"primaryKey"`
	FileID    string
	PeerName  string
	FileName  string
	Size      int64
	Direction string
	Path      string
	Success   bool
	CreatedAt int64
}

// Store persists transfer records.
type Store struct {
	db *gorm.DB
}

// NewStore migrates the history table and returns a store over db.
func NewStore(db *gorm.DB) (*Store, error) {
	if err := db.AutoMigrate(&Record{}); err != nil {
		return nil, fmt.Errorf("migrate history table: %w", err)
	}
	return &Store{db: db}, nil
}

// Add inserts a record and trims the table back to the retention bound.
func (s *Store) Add(rec *Record) error {
	rec.CreatedAt = time.Now().Unix()
	if err := s.db.Create(rec).Error; err != nil {
		return fmt.Errorf("save transfer record: %w", err)
	}

	var keep []uint
	if err := s.db.Model(&Record{}).Order("id DESC").Limit(maxRecords).Pluck("id", &keep).Error; err != nil {
		return fmt.Errorf("trim history: %w", err)
	}
	if len(keep) < maxRecords {
		return nil
	}
	return s.db.Where("id NOT IN ?", keep).Delete(&Record{}).Error
}

// Recent returns up to n records, newest first.
func (s *Store) Recent(n int) ([]Record, error) {
	if n <= 0 || n > maxRecords {
		n = maxRecords
	}
	var recs []Record
	if err := s.db.Order("id DESC").Limit(n).Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	return recs, nil
}
