package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/isyourdayok/backend/models"
	"github.com/isyourdayok/backend/utils"
)

func newTestCoordinator(db *gorm.DB, authority MintingAuthority, locker Locker) *MintCoordinator {
	if locker == nil {
		locker = utils.NewLocker(nil)
	}
	return NewMintCoordinator(db, MintConfig{
		Authority: authority,
		Locker:    locker,
		Chat:      NewChatService(db),
		BaseURL:   "https://isyourdayok.com",
	})
}

func countAchievements(t *testing.T, db *gorm.DB) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(&models.Achievement{}).Count(&n).Error)
	return n
}

func TestMintUnlockedAchievement(t *testing.T) {
	db := newTestDB(t)
	user := newTestUser(t, db)
	setStreaks(t, db, user.ID, 7, 0)
	user = reload(t, db, user.ID)
	authority := newFakeAuthority()
	m := newTestCoordinator(db, authority, nil)

	rec, err := m.Mint(context.Background(), user, "journal-7", 85)
	require.NoError(t, err)
	require.Equal(t, models.MintStateMinted, rec.State)
	require.True(t, rec.Minted)
	require.Equal(t, "5", rec.TokenID)
	require.Equal(t, "0xabc", rec.TransactionHash)
	require.Equal(t, testNFTAddress, rec.ContractAddress)
	require.NotNil(t, rec.MintedAt)
	require.Equal(t, 85, authority.lastRate)
	require.Equal(t, "https://isyourdayok.com/nft-metadata/journal-7.json", authority.lastURI)

	var stored models.Achievement
	require.NoError(t, db.Where("user_id = ? AND type = ?", user.ID, "journal-7").First(&stored).Error)
	require.Equal(t, models.MintStateMinted, stored.State)
	require.Equal(t, 85, stored.ImprovementRating)
	require.Equal(t, 7, stored.Days)

	views, _, err := m.Overview(context.Background(), user)
	require.NoError(t, err)
	require.Equal(t, StatusMinted, views[0].Status)
	require.NotNil(t, views[0].Record)
	require.Equal(t, StatusLocked, views[2].Status)

	msgs, err := NewChatService(db).List(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	require.Equal(t, ChatMilestone, msgs[0].Type)

	// the authority now reports the mint: a second attempt is rejected without side effects
	_, err = m.Mint(context.Background(), user, "journal-7", 85)
	require.ErrorIs(t, err, ErrAlreadyMinted)
	require.Equal(t, 1, authority.mintCalls)
}

func TestMintRejectsInvalidRatingWithoutExternalCall(t *testing.T) {
	db := newTestDB(t)
	user := newTestUser(t, db)
	setStreaks(t, db, user.ID, 7, 0)
	user = reload(t, db, user.ID)
	authority := newFakeAuthority()
	m := newTestCoordinator(db, authority, nil)

	for _, rating := range []int{0, 101} {
		_, err := m.Mint(context.Background(), user, "journal-7", rating)
		require.ErrorIs(t, err, ErrValidation)
	}
	_, err := m.Mint(context.Background(), user, "mood-7", 50)
	require.ErrorIs(t, err, ErrValidation)

	require.Zero(t, authority.hasCalls)
	require.Zero(t, authority.mintCalls)
	require.Zero(t, countAchievements(t, db))
}

func TestMintAlreadyMintedPerformsNoMutation(t *testing.T) {
	db := newTestDB(t)
	user := newTestUser(t, db)
	setStreaks(t, db, user.ID, 7, 0)
	user = reload(t, db, user.ID)
	authority := newFakeAuthority()
	authority.setMinted(user.WalletAddress, 0)
	m := newTestCoordinator(db, authority, nil)

	_, err := m.Mint(context.Background(), user, "journal-7", 50)
	require.ErrorIs(t, err, ErrAlreadyMinted)
	require.Zero(t, authority.mintCalls)
	require.Zero(t, countAchievements(t, db))
}

func TestMintNotEligible(t *testing.T) {
	db := newTestDB(t)
	user := newTestUser(t, db)
	setStreaks(t, db, user.ID, 6, 30)
	user = reload(t, db, user.ID)
	authority := newFakeAuthority()
	m := newTestCoordinator(db, authority, nil)

	_, err := m.Mint(context.Background(), user, "journal-7", 50)
	require.ErrorIs(t, err, ErrNotEligible)
	require.Zero(t, authority.mintCalls)

	rec, err := m.Mint(context.Background(), user, "meditation-30", 50)
	require.NoError(t, err)
	require.Equal(t, models.MintStateMinted, rec.State)
}

func TestMintUsesChainStreaks(t *testing.T) {
	db := newTestDB(t)
	user := newTestUser(t, db)
	reader := newFakeReader()
	reader.set(user.WalletAddress, ChainUserData{TotalPoints: 500, JournalStreak: 7})
	authority := newFakeAuthority()
	m := NewMintCoordinator(db, MintConfig{
		Authority: authority,
		Stats:     NewStatsService(db, WithPointsReader(reader)),
		Locker:    utils.NewLocker(nil),
	})

	rec, err := m.Mint(context.Background(), user, "journal-7", 10)
	require.NoError(t, err)
	require.Equal(t, models.MintStateMinted, rec.State)
}

func TestMintFailureLeavesPendingAndRetrySucceeds(t *testing.T) {
	db := newTestDB(t)
	user := newTestUser(t, db)
	setStreaks(t, db, user.ID, 7, 0)
	user = reload(t, db, user.ID)
	authority := newFakeAuthority()
	authority.mintErr = errors.New("execution reverted")
	m := newTestCoordinator(db, authority, nil)

	_, err := m.Mint(context.Background(), user, "journal-7", 40)
	require.ErrorIs(t, err, ErrExternal)

	var stored models.Achievement
	require.NoError(t, db.Where("user_id = ?", user.ID).First(&stored).Error)
	require.Equal(t, models.MintStatePending, stored.State)
	require.False(t, stored.Minted)
	require.Contains(t, stored.LastError, "execution reverted")

	authority.mintErr = nil
	rec, err := m.Mint(context.Background(), user, "journal-7", 60)
	require.NoError(t, err)
	require.Equal(t, stored.ID, rec.ID)
	require.Equal(t, models.MintStateMinted, rec.State)
	require.Empty(t, rec.LastError)
	require.Equal(t, 60, rec.ImprovementRating)
	require.EqualValues(t, 1, countAchievements(t, db))
}

func TestMintAuthorityUnavailable(t *testing.T) {
	db := newTestDB(t)
	user := newTestUser(t, db)
	setStreaks(t, db, user.ID, 7, 0)
	user = reload(t, db, user.ID)
	authority := newFakeAuthority()
	authority.hasErr = errors.New("dial tcp: connection refused")
	m := newTestCoordinator(db, authority, nil)

	_, err := m.Mint(context.Background(), user, "journal-7", 40)
	require.ErrorIs(t, err, ErrExternal)
	require.Zero(t, countAchievements(t, db))
}

func TestMintInProgress(t *testing.T) {
	db := newTestDB(t)
	user := newTestUser(t, db)
	setStreaks(t, db, user.ID, 7, 0)
	user = reload(t, db, user.ID)
	authority := newFakeAuthority()
	locker := utils.NewLocker(nil)
	m := newTestCoordinator(db, authority, locker)

	unlock, ok, err := locker.TryLock(context.Background(), "mint:lock:"+user.ID+":journal-7", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = m.Mint(context.Background(), user, "journal-7", 40)
	require.ErrorIs(t, err, ErrMintInProgress)
	require.Zero(t, authority.mintCalls)

	unlock()
	_, err = m.Mint(context.Background(), user, "journal-7", 40)
	require.NoError(t, err)
}

func TestMintDisabled(t *testing.T) {
	db := newTestDB(t)
	user := newTestUser(t, db)
	m := newTestCoordinator(db, nil, nil)
	require.False(t, m.Enabled())

	_, err := m.Mint(context.Background(), user, "journal-7", 40)
	require.ErrorIs(t, err, ErrChainDisabled)
}

func TestTokenIDFromLogs(t *testing.T) {
	contract := "0x00000000000000000000000000000000000000AA"
	cases := []struct {
		name string
		logs []ReceiptLog
		want string
	}{
		{"no logs", nil, "0"},
		{"other contract only", []ReceiptLog{{Address: "0x01", Topics: []string{"0x1", "0x2"}}}, "0"},
		{"first matching log", []ReceiptLog{
			{Address: "0x01", Topics: []string{"0x1", "0x2"}},
			{Address: "0x00000000000000000000000000000000000000aa", Topics: []string{"0xddf2", "0x000000000000000000000000000000000000000000000000000000000000002a"}},
			{Address: contract, Topics: []string{"0xddf2", "0x07"}},
		}, "42"},
		{"matching log without token topic", []ReceiptLog{
			{Address: contract, Topics: []string{"0xddf2"}},
			{Address: contract, Topics: []string{"0xddf2", "0x07"}},
		}, "0"},
		{"malformed topic", []ReceiptLog{{Address: contract, Topics: []string{"0x1", "0xzz"}}}, "0"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, TokenIDFromLogs(tc.logs, contract))
		})
	}
}

func TestMetadataURI(t *testing.T) {
	require.Equal(t, "https://example.com/nft-metadata/meditation-30.json", MetadataURI("https://example.com/", "meditation-30"))
}

// staleAuthority answers its first HasMinted calls only once all of them are in flight, so every
// caller observes the state from before any mint.
type staleAuthority struct {
	*fakeAuthority
	gate sync.WaitGroup

	seenMu sync.Mutex
	seen   int
	gated  int
}

func newStaleAuthority(gated int) *staleAuthority {
	s := &staleAuthority{fakeAuthority: newFakeAuthority(), gated: gated}
	s.gate.Add(gated)
	return s
}

func (s *staleAuthority) HasMinted(ctx context.Context, owner string, code uint8) (bool, error) {
	s.seenMu.Lock()
	s.seen++
	n := s.seen
	s.seenMu.Unlock()

	minted, err := s.fakeAuthority.HasMinted(ctx, owner, code)
	if n <= s.gated {
		s.gate.Done()
		s.gate.Wait()
	}
	return minted, err
}

func TestConcurrentMintsReachAuthorityOnce(t *testing.T) {
	db := newTestDB(t)
	user := newTestUser(t, db)
	setStreaks(t, db, user.ID, 7, 0)
	user = reload(t, db, user.ID)
	authority := newStaleAuthority(2)
	m := newTestCoordinator(db, authority, nil)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = m.Mint(context.Background(), user, "journal-7", 50)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		require.True(t, errors.Is(err, ErrAlreadyMinted) || errors.Is(err, ErrMintInProgress), "unexpected error %v", err)
	}
	require.Equal(t, 1, succeeded)
	require.Equal(t, 1, authority.mintCalls)

	var stored models.Achievement
	require.NoError(t, db.Where("user_id = ? AND type = ?", user.ID, "journal-7").First(&stored).Error)
	require.Equal(t, models.MintStateMinted, stored.State)
	require.True(t, stored.Minted)
}

// laggingAuthority answers its first HasMinted with "not minted" whatever the contract holds.
type laggingAuthority struct {
	*fakeAuthority
	once sync.Once
}

func (l *laggingAuthority) HasMinted(ctx context.Context, owner string, code uint8) (bool, error) {
	stale := false
	l.once.Do(func() { stale = true })
	minted, err := l.fakeAuthority.HasMinted(ctx, owner, code)
	if stale {
		return false, err
	}
	return minted, err
}

func TestMintRechecksAuthorityAfterLock(t *testing.T) {
	db := newTestDB(t)
	user := newTestUser(t, db)
	setStreaks(t, db, user.ID, 7, 0)
	user = reload(t, db, user.ID)
	authority := newFakeAuthority()

	first, err := newTestCoordinator(db, authority, nil).Mint(context.Background(), user, "journal-7", 50)
	require.NoError(t, err)
	require.Equal(t, 1, authority.mintCalls)

	m := newTestCoordinator(db, &laggingAuthority{fakeAuthority: authority}, nil)
	_, err = m.Mint(context.Background(), user, "journal-7", 50)
	require.ErrorIs(t, err, ErrAlreadyMinted)
	require.Equal(t, 1, authority.mintCalls)

	stored := reloadAchievement(t, db, first.ID)
	require.Equal(t, models.MintStateMinted, stored.State)
	require.Equal(t, first.TokenID, stored.TokenID)
	require.Empty(t, stored.LastError)
}

func reloadAchievement(t *testing.T, db *gorm.DB, id string) models.Achievement {
	t.Helper()
	var rec models.Achievement
	require.NoError(t, db.Where("id = ?", id).First(&rec).Error)
	return rec
}

func TestMintErrorTruncatedOnRuneBoundary(t *testing.T) {
	db := newTestDB(t)
	user := newTestUser(t, db)
	setStreaks(t, db, user.ID, 7, 0)
	user = reload(t, db, user.ID)
	authority := newFakeAuthority()
	authority.mintErr = errors.New("x" + strings.Repeat("é", 600))
	m := newTestCoordinator(db, authority, nil)

	_, err := m.Mint(context.Background(), user, "journal-7", 40)
	require.ErrorIs(t, err, ErrExternal)

	var stored models.Achievement
	require.NoError(t, db.Where("user_id = ?", user.ID).First(&stored).Error)
	require.True(t, utf8.ValidString(stored.LastError))
	require.Equal(t, maxLastErrorLength, utf8.RuneCountInString(stored.LastError))
}
