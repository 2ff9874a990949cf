package models

import "time"

// UserRole grants a named role to a wallet address.
type UserRole struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Address   string    `gorm:"size:42;not null;uniqueIndex:idx_role_address_role" json:"address"`
	Role      string    `gorm:"size:32;not null;uniqueIndex:idx_role_address_role" json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// All lists every model for auto migration.
func All() []interface{} {
	return []interface{}{
		&User{},
		&DailyActivity{},
		&JournalEntry{},
		&MoodLog{},
		&MeditationSession{},
		&Achievement{},
		&ChatMessage{},
		&UserRole{},
	}
}
