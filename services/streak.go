package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/isyourdayok/backend/models"
)

// StreakCounter maintains consecutive-day counters on the user row.
type StreakCounter struct {
	db *gorm.DB
}

func NewStreakCounter(db *gorm.DB) *StreakCounter {
	return &StreakCounter{db: db}
}

func streakColumns(kind ActivityKind) (streak, last string, err error) {
	switch kind {
	case KindJournal:
		return "journal_streak", "last_journal_date", nil
	case KindMeditation:
		return "meditation_streak", "last_meditation_date", nil
	default:
		return "", "", invalid("activity kind %q has no streak", string(kind))
	}
}

// Bump increments the kind's streak at most once per (user, kind, date). The counter continues when the
// previous streak day is the day before date (or unknown) and restarts at 1 after a gap. It returns the
// streak after the call and whether this call changed it.
func (s *StreakCounter) Bump(ctx context.Context, userID string, kind ActivityKind, date string) (int, bool, error) {
	streakCol, lastCol, err := streakColumns(kind)
	if err != nil {
		return 0, false, err
	}
	tx := s.db.WithContext(ctx)

	// Assignment order matters on MySQL, which evaluates SET left to right.
	res := tx.Exec(
		"UPDATE users SET "+streakCol+" = CASE WHEN "+lastCol+" = ? OR "+lastCol+" = '' THEN "+streakCol+" + 1 ELSE 1 END, "+
			lastCol+" = ?, updated_at = ? WHERE id = ? AND "+lastCol+" < ?",
		previousDay(date), date, time.Now(), userID, date,
	)
	if res.Error != nil {
		return 0, false, fmt.Errorf("bump %s streak: %w", kind, res.Error)
	}

	var user models.User
	if err := tx.Select("id", streakCol).Where("id = ?", userID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, false, fmt.Errorf("user %s: %w", userID, ErrNotFound)
		}
		return 0, false, fmt.Errorf("load %s streak: %w", kind, err)
	}
	current := user.JournalStreak
	if kind == KindMeditation {
		current = user.MeditationStreak
	}
	return current, res.RowsAffected == 1, nil
}
