package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// JournalEntry is an append-only free text entry.
type JournalEntry struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	UserID    string    `gorm:"size:36;index;not null" json:"user_id"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	Points    int       `gorm:"not null;default:0" json:"points"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

func (JournalEntry) TableName() string { return "journals" }

func (j *JournalEntry) BeforeCreate(tx *gorm.DB) error {
	if j.ID == "" {
		j.ID = uuid.NewString()
	}
	return nil
}

// MoodLog records a mood label with a 1-10 intensity rating.
type MoodLog struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	UserID    string    `gorm:"size:36;index;not null" json:"user_id"`
	Mood      string    `gorm:"size:32;not null" json:"mood"`
	Rating    int       `gorm:"not null" json:"rating"`
	Points    int       `gorm:"not null;default:0" json:"points"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

func (m *MoodLog) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return nil
}

// MeditationSession is a timed session. Completed is the only field that changes after creation.
type MeditationSession struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	UserID    string    `gorm:"size:36;index;not null" json:"user_id"`
	Duration  int       `gorm:"not null" json:"duration"` // seconds
	Completed bool      `gorm:"not null;default:false" json:"completed"`
	Points    int       `gorm:"not null;default:0" json:"points"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (MeditationSession) TableName() string { return "meditations" }

func (m *MeditationSession) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return nil
}
