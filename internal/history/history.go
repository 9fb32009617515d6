package history

import (
	"fmt"
	"log"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// PlayRecord is one broadcast track start.
type PlayRecord struct {
	gorm.Model
	Key       string `gorm:"index"`
	Display   string
	Duration  float64
	StartedAt time.Time `gorm:"index"`
}

// SkipRecord is one track the supervisor gave up on, with the reason.
type SkipRecord struct {
	gorm.Model
	Key    string `gorm:"index"`
	Reason string
}

// Ledger is a best-effort local play log. Recording never blocks playback:
// errors are logged and swallowed, the stream matters more than the ledger.
type Ledger struct {
	db *gorm.DB
}

func Open(path string) (*Ledger, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open history db %s: %w", path, err)
	}
	if err := db.AutoMigrate(&PlayRecord{}, &SkipRecord{}); err != nil {
		return nil, fmt.Errorf("migrate history db: %w", err)
	}
	return &Ledger{db: db}, nil
}

func (l *Ledger) RecordPlay(key, display string, duration float64, at time.Time) {
	if l == nil {
		return
	}
	rec := PlayRecord{Key: key, Display: display, Duration: duration, StartedAt: at}
	if err := l.db.Create(&rec).Error; err != nil {
		log.Printf("History write failed for %s: %v", key, err)
	}
}

func (l *Ledger) RecordSkip(key, reason string) {
	if l == nil {
		return
	}
	rec := SkipRecord{Key: key, Reason: reason}
	if err := l.db.Create(&rec).Error; err != nil {
		log.Printf("History write failed for %s: %v", key, err)
	}
}

// Recent returns the latest n plays, newest first.
func (l *Ledger) Recent(n int) ([]PlayRecord, error) {
	if l == nil {
		return nil, nil
	}
	var records []PlayRecord
	err := l.db.Order("started_at desc").Limit(n).Find(&records).Error
	return records, err
}
