// Package history persists call-history records for monitored channels.
package history

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/lorenzolrom/dvmconsole/pkg/logger"

	// Use modernc.org/sqlite (pure Go, no CGO)
	"gorm.io/driver/sqlite"
	_ "modernc.org/sqlite"
)

// End reasons recorded when a call closes
const (
	EndReasonTerminated = "terminated"
	EndReasonTimeout    = "timeout"
)

// CallRecord is one received or transmitted call
type CallRecord struct {
	ID          uint      `gorm:"primarykey" json:"id"`
	Channel     string    `gorm:"index;size:40;not null" json:"channel"`
	Mode        string    `gorm:"size:8" json:"mode"`
	SrcID       uint32    `gorm:"index" json:"src_id"`
	DstID       uint32    `gorm:"index" json:"dst_id"`
	TalkgroupID uint32    `gorm:"index" json:"talkgroup_id"`
	StreamID    uint32    `gorm:"index" json:"stream_id"`
	Timeslot    int       `json:"timeslot"`
	Encrypted   bool      `json:"encrypted"`
	AlgID       uint8     `json:"alg_id"`
	KeyID       uint16    `json:"key_id"`
	StartedAt   time.Time `gorm:"index;not null" json:"started_at"`
	EndedAt     time.Time `json:"ended_at"`
	Duration    float64   `json:"duration"` // seconds
	EndReason   string    `gorm:"size:16" json:"end_reason"`
	CreatedAt   time.Time `json:"created_at"`
}

// TableName specifies the table name for CallRecord
func (CallRecord) TableName() string {
	return "call_records"
}

// BeforeCreate hook to ensure timestamps are set
func (c *CallRecord) BeforeCreate(tx *gorm.DB) error {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	if c.StartedAt.IsZero() {
		c.StartedAt = time.Now()
	}
	return nil
}

// Config holds store configuration
type Config struct {
	Path string // Path to SQLite database file
}

// Store wraps the GORM database connection
type Store struct {
	db     *gorm.DB
	logger *logger.Logger
}

// NewStore opens (or creates) the call-history database
func NewStore(cfg Config, log *logger.Logger) (*Store, error) {
	if cfg.Path == "" {
		cfg.Path = "dvmconsole.db"
	}

	dir := filepath.Dir(cfg.Path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	gormLog := gormlogger.New(
		&gormLogAdapter{log: log},
		gormlogger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	// pure Go driver, no CGO
	dialector := sqlite.Dialector{
		DriverName: "sqlite",
		DSN:        cfg.Path,
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: gormLog})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}
	if _, err := sqlDB.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := sqlDB.Exec("PRAGMA busy_timeout=5000"); err != nil {
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	if err := db.AutoMigrate(&CallRecord{}); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	log.Info("Call history database initialized", logger.String("path", cfg.Path))

	return &Store{db: db, logger: log}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// OpenCall creates a record for a call that just started and returns its ID
func (s *Store) OpenCall(rec *CallRecord) (uint, error) {
	if err := s.db.Create(rec).Error; err != nil {
		return 0, err
	}
	return rec.ID, nil
}

// CloseCall stamps the end time, duration and reason on an open record
func (s *Store) CloseCall(id uint, endedAt time.Time, reason string) error {
	var rec CallRecord
	if err := s.db.First(&rec, id).Error; err != nil {
		return err
	}

	rec.EndedAt = endedAt
	rec.Duration = endedAt.Sub(rec.StartedAt).Seconds()
	rec.EndReason = reason
	return s.db.Save(&rec).Error
}

// Recent retrieves the most recent N call records
func (s *Store) Recent(limit int) ([]CallRecord, error) {
	var records []CallRecord
	err := s.db.Order("started_at DESC").Limit(limit).Find(&records).Error
	return records, err
}

// ByChannel retrieves recent records for one channel
func (s *Store) ByChannel(channel string, limit int) ([]CallRecord, error) {
	var records []CallRecord
	err := s.db.Where("channel = ?", channel).
		Order("started_at DESC").
		Limit(limit).
		Find(&records).Error
	return records, err
}

// gormLogAdapter adapts our logger to GORM's logger interface
type gormLogAdapter struct {
	log *logger.Logger
}

func (l *gormLogAdapter) Printf(format string, args ...interface{}) {
	l.log.Info(fmt.Sprintf(format, args...))
}
