package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/isyourdayok/backend/metrics"
	"github.com/isyourdayok/backend/models"
	"github.com/isyourdayok/backend/utils"
)

// Input limits for activity submissions.
const (
	MinJournalLength = 10
	MaxJournalLength = 10000
	MinMoodRating    = 1
	MaxMoodRating    = 10
	MaxMoodLabel     = 32

	defaultListLimit = 30
)

// Completion describes the side effects of a credited activity.
type Completion struct {
	Kind    ActivityKind `json:"kind"`
	Date    string       `json:"date"`
	Awarded int          `json:"awarded"`
	Points  int64        `json:"points"`
	// Streak is the kind's streak after the submission; zero for mood.
	Streak int `json:"streak"`
}

// ActivityService accepts journal, mood and meditation submissions and credits them through the
// activity, points and streak ledgers.
type ActivityService struct {
	db    *gorm.DB
	stats *StatsService
	log   *zap.Logger
	now   func() time.Time
}

func NewActivityService(db *gorm.DB, stats *StatsService, log *zap.Logger) *ActivityService {
	if log == nil {
		log = zap.NewNop()
	}
	return &ActivityService{db: db, stats: stats, log: log, now: time.Now}
}

// credit runs the ledger sequence inside tx. The ledger claim must transition, otherwise the
// caller's transaction is rolled back with ErrAlreadyCompleted.
func credit(ctx context.Context, tx *gorm.DB, userID string, kind ActivityKind, date string) (Completion, error) {
	out := Completion{Kind: kind, Date: date, Awarded: kind.Reward()}
	claimed, err := NewActivityLedger(tx).Record(ctx, userID, date, kind)
	if err != nil {
		return out, err
	}
	if !claimed {
		return out, fmt.Errorf("%s on %s: %w", kind, date, ErrAlreadyCompleted)
	}
	if out.Points, err = NewPointsLedger(tx).Award(ctx, userID, out.Awarded); err != nil {
		return out, err
	}
	if kind == KindJournal || kind == KindMeditation {
		if out.Streak, _, err = NewStreakCounter(tx).Bump(ctx, userID, kind, date); err != nil {
			return out, err
		}
	}
	return out, nil
}

func (s *ActivityService) credited(ctx context.Context, userID string, c Completion) {
	metrics.RecordActivity(string(c.Kind))
	s.log.Info("activity credited",
		zap.String("user_id", userID),
		zap.String("kind", string(c.Kind)),
		zap.String("date", c.Date),
		zap.Int64("points", c.Points),
		zap.Int("streak", c.Streak))
	if s.stats != nil {
		var user models.User
		if err := s.db.WithContext(ctx).Select("id", "wallet_address").Where("id = ?", userID).First(&user).Error; err == nil {
			s.stats.Invalidate(ctx, user.WalletAddress)
		}
	}
}

func ensureUser(ctx context.Context, tx *gorm.DB, userID string) error {
	var n int64
	if err := tx.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).Count(&n).Error; err != nil {
		return fmt.Errorf("load user: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("user %s: %w", userID, ErrNotFound)
	}
	return nil
}

// SubmitJournal stores a journal entry and credits today's journal activity.
func (s *ActivityService) SubmitJournal(ctx context.Context, userID, content string) (*models.JournalEntry, Completion, error) {
	content = utils.Sanitize(content)
	n := utf8.RuneCountInString(content)
	if n < MinJournalLength {
		return nil, Completion{}, invalid("journal entry must be at least %d characters", MinJournalLength)
	}
	if n > MaxJournalLength {
		return nil, Completion{}, invalid("journal entry must be at most %d characters", MaxJournalLength)
	}

	entry := models.JournalEntry{UserID: userID, Content: content, Points: JournalPoints}
	var done Completion
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureUser(ctx, tx, userID); err != nil {
			return err
		}
		if err := tx.Create(&entry).Error; err != nil {
			return fmt.Errorf("create journal: %w", err)
		}
		var err error
		done, err = credit(ctx, tx, userID, KindJournal, Day(s.now()))
		return err
	})
	if err != nil {
		return nil, Completion{}, err
	}
	s.credited(ctx, userID, done)
	return &entry, done, nil
}

// LogMood stores a mood log and credits today's mood activity.
func (s *ActivityService) LogMood(ctx context.Context, userID, mood string, rating int) (*models.MoodLog, Completion, error) {
	mood = utils.SanitizeText(mood)
	if mood == "" {
		return nil, Completion{}, invalid("mood is required")
	}
	if utf8.RuneCountInString(mood) > MaxMoodLabel {
		return nil, Completion{}, invalid("mood must be at most %d characters", MaxMoodLabel)
	}
	if rating < MinMoodRating || rating > MaxMoodRating {
		return nil, Completion{}, invalid("rating must be between %d and %d", MinMoodRating, MaxMoodRating)
	}

	entry := models.MoodLog{UserID: userID, Mood: strings.ToLower(mood), Rating: rating, Points: MoodPoints}
	var done Completion
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureUser(ctx, tx, userID); err != nil {
			return err
		}
		if err := tx.Create(&entry).Error; err != nil {
			return fmt.Errorf("create mood log: %w", err)
		}
		var err error
		done, err = credit(ctx, tx, userID, KindMood, Day(s.now()))
		return err
	})
	if err != nil {
		return nil, Completion{}, err
	}
	s.credited(ctx, userID, done)
	return &entry, done, nil
}

// RecordMeditation stores a session. Completed sessions are credited; incomplete ones are stored
// without points and can be completed later.
func (s *ActivityService) RecordMeditation(ctx context.Context, userID string, durationSeconds int, completed bool) (*models.MeditationSession, *Completion, error) {
	if durationSeconds <= 0 {
		return nil, nil, invalid("duration must be a positive number of seconds")
	}

	session := models.MeditationSession{UserID: userID, Duration: durationSeconds, Completed: completed}
	if completed {
		session.Points = MeditationPoints
	}
	var done *Completion
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureUser(ctx, tx, userID); err != nil {
			return err
		}
		if err := tx.Create(&session).Error; err != nil {
			return fmt.Errorf("create meditation: %w", err)
		}
		if !completed {
			return nil
		}
		c, err := credit(ctx, tx, userID, KindMeditation, Day(s.now()))
		if err != nil {
			return err
		}
		done = &c
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	if done != nil {
		s.credited(ctx, userID, *done)
	}
	return &session, done, nil
}

// CompleteMeditation flips a stored session to completed and credits today's meditation.
func (s *ActivityService) CompleteMeditation(ctx context.Context, userID, sessionID string) (*models.MeditationSession, Completion, error) {
	var session models.MeditationSession
	var done Completion
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ? AND user_id = ?", sessionID, userID).First(&session).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("meditation %s: %w", sessionID, ErrNotFound)
			}
			return fmt.Errorf("load meditation: %w", err)
		}
		res := tx.Model(&models.MeditationSession{}).
			Where("id = ? AND completed = ?", sessionID, false).
			Updates(map[string]interface{}{"completed": true, "points": MeditationPoints, "updated_at": s.now()})
		if res.Error != nil {
			return fmt.Errorf("complete meditation: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("meditation %s: %w", sessionID, ErrAlreadyCompleted)
		}
		session.Completed = true
		session.Points = MeditationPoints
		var err error
		done, err = credit(ctx, tx, userID, KindMeditation, Day(s.now()))
		return err
	})
	if err != nil {
		return nil, Completion{}, err
	}
	s.credited(ctx, userID, done)
	return &session, done, nil
}

// ListJournals returns every journal entry of the user, newest first.
func (s *ActivityService) ListJournals(ctx context.Context, userID string) ([]models.JournalEntry, error) {
	var out []models.JournalEntry
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at DESC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list journals: %w", err)
	}
	return out, nil
}

// ListMoods returns the newest mood logs.
func (s *ActivityService) ListMoods(ctx context.Context, userID string, limit int) ([]models.MoodLog, error) {
	var out []models.MoodLog
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).
		Order("created_at DESC").Limit(clampLimit(limit, defaultListLimit, 100)).Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("list moods: %w", err)
	}
	return out, nil
}

// ListMeditations returns the newest meditation sessions.
func (s *ActivityService) ListMeditations(ctx context.Context, userID string, limit int) ([]models.MeditationSession, error) {
	var out []models.MeditationSession
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).
		Order("created_at DESC").Limit(clampLimit(limit, defaultListLimit, 100)).Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("list meditations: %w", err)
	}
	return out, nil
}

// Today returns the user's activity for the given date, or today when date is empty.
func (s *ActivityService) Today(ctx context.Context, userID, date string) (DayActivity, error) {
	if date == "" {
		date = Day(s.now())
	} else {
		var err error
		if date, err = ParseDay(date); err != nil {
			return DayActivity{}, err
		}
	}
	return NewActivityLedger(s.db).Get(ctx, userID, date)
}

func clampLimit(limit, def, max int) int {
	if limit <= 0 {
		return def
	}
	if limit > max {
		return max
	}
	return limit
}
