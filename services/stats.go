package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/isyourdayok/backend/models"
)

// Sources of effective stats.
const (
	SourceChain    = "chain"
	SourceDatabase = "database"
)

// Stats is a user's effective points and streaks.
type Stats struct {
	Points           int64  `json:"points"`
	JournalStreak    int    `json:"journal_streak"`
	MeditationStreak int    `json:"meditation_streak"`
	Source           string `json:"source"`
}

// Streak returns the streak tracked for kind.
func (s Stats) Streak(kind ActivityKind) int {
	if kind == KindMeditation {
		return s.MeditationStreak
	}
	if kind == KindJournal {
		return s.JournalStreak
	}
	return 0
}

// StatsService resolves points and streaks, preferring the points contract over the database.
type StatsService struct {
	db     *gorm.DB
	reader PointsReader
	cache  Cache
	ttl    time.Duration
	log    *zap.Logger
	now    func() time.Time
}

// StatsOption customizes a StatsService.
type StatsOption func(*StatsService)

// WithPointsReader sets the on-chain source of truth.
func WithPointsReader(r PointsReader) StatsOption {
	return func(s *StatsService) { s.reader = r }
}

// WithStatsCache caches on-chain reads for ttl.
func WithStatsCache(c Cache, ttl time.Duration) StatsOption {
	return func(s *StatsService) {
		s.cache = c
		s.ttl = ttl
	}
}

// WithStatsLogger sets the logger.
func WithStatsLogger(l *zap.Logger) StatsOption {
	return func(s *StatsService) { s.log = l }
}

func NewStatsService(db *gorm.DB, opts ...StatsOption) *StatsService {
	s := &StatsService{db: db, log: zap.NewNop(), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func statsCacheKey(address string) string {
	return "stats:chain:" + strings.ToLower(address)
}

// Chain reads the user's on-chain data, using the cache when allowed.
func (s *StatsService) Chain(ctx context.Context, address string, useCache bool) (*ChainUserData, error) {
	if s.reader == nil {
		return nil, ErrChainDisabled
	}
	key := statsCacheKey(address)
	if useCache && s.cache != nil {
		if b, ok := s.cache.Get(ctx, key); ok {
			var data ChainUserData
			if err := json.Unmarshal(b, &data); err == nil {
				return &data, nil
			}
		}
	}
	data, err := s.reader.GetUserData(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("read points contract: %w: %v", ErrExternal, err)
	}
	if s.cache != nil && s.ttl > 0 {
		if b, err := json.Marshal(data); err == nil {
			s.cache.Set(ctx, key, b, s.ttl)
		}
	}
	return data, nil
}

// Effective returns the user's stats from the points contract when it can be read, otherwise
// from the database mirror.
func (s *StatsService) Effective(ctx context.Context, user *models.User) (Stats, error) {
	local := Stats{
		Points:           user.Points,
		JournalStreak:    user.JournalStreak,
		MeditationStreak: user.MeditationStreak,
		Source:           SourceDatabase,
	}
	if s.reader == nil {
		return local, nil
	}
	data, err := s.Chain(ctx, user.WalletAddress, true)
	if err != nil {
		s.log.Warn("points contract unavailable, using database stats",
			zap.String("user_id", user.ID), zap.Error(err))
		return local, nil
	}
	return Stats{
		Points:           data.TotalPoints,
		JournalStreak:    data.JournalStreak,
		MeditationStreak: data.MeditationStreak,
		Source:           SourceChain,
	}, nil
}

// Invalidate drops cached chain stats for address.
func (s *StatsService) Invalidate(ctx context.Context, address string) {
	if s.cache != nil {
		s.cache.Delete(ctx, statsCacheKey(address))
	}
}

// CanMeditateToday asks the points contract, falling back to today's ledger entry.
func (s *StatsService) CanMeditateToday(ctx context.Context, user *models.User) (bool, error) {
	if s.reader != nil {
		ok, err := s.reader.CanMeditateToday(ctx, user.WalletAddress)
		if err == nil {
			return ok, nil
		}
		s.log.Warn("canMeditateToday failed, using activity ledger",
			zap.String("user_id", user.ID), zap.Error(err))
	}
	day, err := NewActivityLedger(s.db).Get(ctx, user.ID, Day(s.now()))
	if err != nil {
		return false, err
	}
	return !day.MeditationDone, nil
}
