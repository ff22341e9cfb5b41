package store

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

type Transfer struct {
	ID        string `gorm:"primaryKey;type:text"`
	Direction string `gorm:"index"`
	Name      string
	Size      int64
	Status    string
	Message   string
	Peer      string
	StartedAt time.Time `gorm:"index"`
	Duration  time.Duration
}

func (t *Transfer) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	return nil
}

type ChatMessage struct {
	ID        string `gorm:"primaryKey;type:text"`
	Sender    string
	Text      string
	Timestamp time.Time `gorm:"index"`
}

func (m *ChatMessage) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return nil
}
