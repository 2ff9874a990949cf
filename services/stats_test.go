package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/isyourdayok/backend/utils"
)

func TestEffectiveStatsFromDatabase(t *testing.T) {
	db := newTestDB(t)
	user := newTestUser(t, db)
	setStreaks(t, db, user.ID, 4, 2)
	user = reload(t, db, user.ID)

	stats, err := NewStatsService(db).Effective(context.Background(), user)
	require.NoError(t, err)
	require.Equal(t, Stats{JournalStreak: 4, MeditationStreak: 2, Source: SourceDatabase}, stats)
}

func TestEffectiveStatsChainOverridesDatabase(t *testing.T) {
	db := newTestDB(t)
	user := newTestUser(t, db)
	setStreaks(t, db, user.ID, 4, 2)
	user = reload(t, db, user.ID)
	reader := newFakeReader()
	reader.set(user.WalletAddress, ChainUserData{TotalPoints: 900, JournalStreak: 12, MeditationStreak: 0})

	svc := NewStatsService(db, WithPointsReader(reader), WithStatsCache(utils.NewCache(nil), time.Minute))
	stats, err := svc.Effective(context.Background(), user)
	require.NoError(t, err)
	require.Equal(t, Stats{Points: 900, JournalStreak: 12, MeditationStreak: 0, Source: SourceChain}, stats)

	_, err = svc.Effective(context.Background(), user)
	require.NoError(t, err)
	require.Equal(t, 1, reader.calls, "second read is served from cache")

	svc.Invalidate(context.Background(), user.WalletAddress)
	_, err = svc.Effective(context.Background(), user)
	require.NoError(t, err)
	require.Equal(t, 2, reader.calls)
}

func TestEffectiveStatsFallsBackWhenChainFails(t *testing.T) {
	db := newTestDB(t)
	user := newTestUser(t, db)
	setStreaks(t, db, user.ID, 4, 2)
	user = reload(t, db, user.ID)
	reader := newFakeReader()
	reader.err = errors.New("rpc down")

	stats, err := NewStatsService(db, WithPointsReader(reader)).Effective(context.Background(), user)
	require.NoError(t, err)
	require.Equal(t, SourceDatabase, stats.Source)
	require.Equal(t, 4, stats.JournalStreak)
}

func TestCanMeditateToday(t *testing.T) {
	db := newTestDB(t)
	user := newTestUser(t, db)
	ctx := context.Background()

	svc := NewStatsService(db)
	svc.now = fixedClock("2026-03-01")
	ok, err := svc.CanMeditateToday(ctx, user)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = NewActivityLedger(db).Record(ctx, user.ID, "2026-03-01", KindMeditation)
	require.NoError(t, err)
	ok, err = svc.CanMeditateToday(ctx, user)
	require.NoError(t, err)
	require.False(t, ok)

	reader := newFakeReader()
	yes := true
	reader.canMeditate = &yes
	chainSvc := NewStatsService(db, WithPointsReader(reader))
	ok, err = chainSvc.CanMeditateToday(ctx, user)
	require.NoError(t, err)
	require.True(t, ok)
}
