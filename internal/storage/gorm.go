package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// stateRecord is the GORM model for the app_state table.
type stateRecord struct {
	Key       string    `gorm:"type:varchar(64);primaryKey"`
	Value     string    `gorm:"type:text;not null"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

// TableName specifies the table name for stateRecord.
func (stateRecord) TableName() string {
	return "app_state"
}

// GormStore implements StateStore on a relational database through GORM.
// With the sqlite driver this is the default durable single-device store.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore creates a GormStore and migrates the app_state table.
func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if err := db.AutoMigrate(&stateRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate app_state table: %w", err)
	}
	return &GormStore{db: db}, nil
}

// Load reads the record for key.
func (s *GormStore) Load(ctx context.Context, key string) (json.RawMessage, error) {
	var rec stateRecord
	result := s.db.WithContext(ctx).First(&rec, "key = ?", key)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load state record: %w", result.Error)
	}
	return decodeEnvelope([]byte(rec.Value))
}

// Save upserts the record for key.
func (s *GormStore) Save(ctx context.Context, key string, state any) error {
	data, err := encodeEnvelope(state)
	if err != nil {
		return err
	}

	rec := stateRecord{Key: key, Value: string(data)}
	result := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&rec)
	if result.Error != nil {
		return fmt.Errorf("failed to save state record: %w", result.Error)
	}
	return nil
}

// Delete removes the record for key.
func (s *GormStore) Delete(ctx context.Context, key string) error {
	result := s.db.WithContext(ctx).Delete(&stateRecord{}, "key = ?", key)
	if result.Error != nil {
		return fmt.Errorf("failed to delete state record: %w", result.Error)
	}
	return nil
}

// Close closes the underlying connection pool.
func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
