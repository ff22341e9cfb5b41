// Package store keeps a local history of transfers and chat messages in
// sqlite.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const DefaultLimit = 20

type Store struct {
	DB *gorm.DB
}

// Open creates or opens the database at path and migrates the schema.
func Open(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		PrepareStmt: true,
		Logger:      gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.AutoMigrate(&Transfer{}, &ChatMessage{}); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return &Store{DB: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.DB == nil {
		return nil
	}
	sqlDB, err := s.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Store) RecordTransfer(ctx context.Context, t *Transfer) error {
	if t.StartedAt.IsZero() {
		t.StartedAt = time.Now()
	}
	return s.DB.WithContext(ctx).Create(t).Error
}

// RecentTransfers returns up to limit transfers, newest first.
func (s *Store) RecentTransfers(ctx context.Context, limit int) ([]Transfer, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	transfers := []Transfer{}
	err := s.DB.WithContext(ctx).Order("started_at desc").Limit(limit).Find(&transfers).Error
	if err != nil {
		return nil, err
	}
	return transfers, nil
}

func (s *Store) RecordChat(sender, text string, at time.Time) error {
	if at.IsZero() {
		at = time.Now()
	}
	msg := ChatMessage{Sender: sender, Text: text, Timestamp: at}
	return s.DB.Create(&msg).Error
}

// RecentChat returns the last limit messages in the order they were
// exchanged.
func (s *Store) RecentChat(ctx context.Context, limit int) ([]ChatMessage, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	messages := []ChatMessage{}
	err := s.DB.WithContext(ctx).Order("timestamp desc").Limit(limit).Find(&messages).Error
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}
