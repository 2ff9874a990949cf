package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/isyourdayok/backend/models"
)

// ActivityKind is one of the three daily activities.
type ActivityKind string

const (
	KindMood       ActivityKind = "mood"
	KindJournal    ActivityKind = "journal"
	KindMeditation ActivityKind = "meditation"
)

// Fixed rewards per activity kind.
const (
	MoodPoints       = 10
	JournalPoints    = 20
	MeditationPoints = 30
)

const dateLayout = "2006-01-02"

// Reward returns the points granted for completing kind.
func (k ActivityKind) Reward() int {
	switch k {
	case KindMood:
		return MoodPoints
	case KindJournal:
		return JournalPoints
	case KindMeditation:
		return MeditationPoints
	default:
		return 0
	}
}

func (k ActivityKind) column() (string, error) {
	switch k {
	case KindMood:
		return "mood_log_done", nil
	case KindJournal:
		return "journal_done", nil
	case KindMeditation:
		return "meditation_done", nil
	default:
		return "", invalid("unknown activity kind %q", string(k))
	}
}

// Day returns the UTC calendar date of t.
func Day(t time.Time) string {
	return t.UTC().Format(dateLayout)
}

// ParseDay validates a YYYY-MM-DD date.
func ParseDay(s string) (string, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return "", invalid("date must be formatted as YYYY-MM-DD")
	}
	return t.Format(dateLayout), nil
}

func previousDay(day string) string {
	t, err := time.Parse(dateLayout, day)
	if err != nil {
		return ""
	}
	return t.AddDate(0, 0, -1).Format(dateLayout)
}

// DayActivity is the tri-boolean view of a user's day.
type DayActivity struct {
	Date           string `json:"date"`
	MoodLogDone    bool   `json:"mood_log_done"`
	JournalDone    bool   `json:"journal_done"`
	MeditationDone bool   `json:"meditation_done"`
}

// Done reports whether kind is marked.
func (d DayActivity) Done(kind ActivityKind) bool {
	switch kind {
	case KindMood:
		return d.MoodLogDone
	case KindJournal:
		return d.JournalDone
	case KindMeditation:
		return d.MeditationDone
	}
	return false
}

// ActivityLedger records which activities each user completed per day.
type ActivityLedger struct {
	db *gorm.DB
}

func NewActivityLedger(db *gorm.DB) *ActivityLedger {
	return &ActivityLedger{db: db}
}

// Record marks kind done for (userID, date), creating the day record when absent. Only the kind's own
// column is written, so concurrent calls for other kinds never lose a field. The returned bool is true
// when this call performed the false->true transition.
func (l *ActivityLedger) Record(ctx context.Context, userID, date string, kind ActivityKind) (bool, error) {
	col, err := kind.column()
	if err != nil {
		return false, err
	}
	tx := l.db.WithContext(ctx)

	// Claim the flag on an existing row.
	res := tx.Model(&models.DailyActivity{}).
		Where("user_id = ? AND date = ? AND "+col+" = ?", userID, date, false).
		Updates(map[string]interface{}{col: true, "updated_at": time.Now()})
	if res.Error != nil {
		return false, fmt.Errorf("mark %s activity: %w", kind, res.Error)
	}
	if res.RowsAffected == 1 {
		return true, nil
	}

	// Either the row is missing or the flag is already set.
	row := models.DailyActivity{UserID: userID, Date: date}
	switch kind {
	case KindMood:
		row.MoodLogDone = true
	case KindJournal:
		row.JournalDone = true
	case KindMeditation:
		row.MeditationDone = true
	}
	res = tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
	if res.Error != nil {
		return false, fmt.Errorf("create daily activity: %w", res.Error)
	}
	if res.RowsAffected == 1 {
		return true, nil
	}

	// Lost the insert race: another request created the row; try the claim once more.
	res = tx.Model(&models.DailyActivity{}).
		Where("user_id = ? AND date = ? AND "+col+" = ?", userID, date, false).
		Updates(map[string]interface{}{col: true, "updated_at": time.Now()})
	if res.Error != nil {
		return false, fmt.Errorf("mark %s activity: %w", kind, res.Error)
	}
	return res.RowsAffected == 1, nil
}

// Get returns the day's activity, all false when no record exists.
func (l *ActivityLedger) Get(ctx context.Context, userID, date string) (DayActivity, error) {
	out := DayActivity{Date: date}
	var row models.DailyActivity
	err := l.db.WithContext(ctx).Where("user_id = ? AND date = ?", userID, date).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return out, nil
	}
	if err != nil {
		return out, fmt.Errorf("load daily activity: %w", err)
	}
	out.MoodLogDone = row.MoodLogDone
	out.JournalDone = row.JournalDone
	out.MeditationDone = row.MeditationDone
	return out, nil
}
