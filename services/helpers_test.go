package services

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/isyourdayok/backend/config"
	"github.com/isyourdayok/backend/models"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := config.OpenDatabase(config.AppConfig{
		DBDriver: "sqlite",
		DBPath:   filepath.Join(t.TempDir(), "test.db"),
		LogLevel: "silent",
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(models.All()...))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

var addrSeq int

func newTestUser(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()
	addrSeq++
	user, err := NewUserService(db).GetOrCreate(context.Background(), fmt.Sprintf("0x%040x", addrSeq), Profile{})
	require.NoError(t, err)
	return user
}

func setStreaks(t *testing.T, db *gorm.DB, userID string, journal, meditation int) {
	t.Helper()
	require.NoError(t, db.Model(&models.User{}).Where("id = ?", userID).Updates(map[string]interface{}{
		"journal_streak":    journal,
		"meditation_streak": meditation,
	}).Error)
}

func reload(t *testing.T, db *gorm.DB, userID string) *models.User {
	t.Helper()
	var u models.User
	require.NoError(t, db.Where("id = ?", userID).First(&u).Error)
	return &u
}

const testNFTAddress = "0x00000000000000000000000000000000000000aA"

type fakeAuthority struct {
	mu        sync.Mutex
	minted    map[string]bool
	hasCalls  int
	mintCalls int
	hasErr    error
	mintErr   error
	lastURI   string
	lastRate  int
	tokenID   string
}

func newFakeAuthority() *fakeAuthority {
	return &fakeAuthority{minted: map[string]bool{}, tokenID: "0x0000000000000000000000000000000000000000000000000000000000000005"}
}

func mintKey(owner string, code uint8) string {
	return fmt.Sprintf("%s|%d", strings.ToLower(owner), code)
}

func (f *fakeAuthority) Address() string { return testNFTAddress }

func (f *fakeAuthority) HasMinted(_ context.Context, owner string, code uint8) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hasCalls++
	if f.hasErr != nil {
		return false, f.hasErr
	}
	return f.minted[mintKey(owner, code)], nil
}

func (f *fakeAuthority) Mint(_ context.Context, owner string, code uint8, rating int, uri string) (*MintResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mintCalls++
	f.lastURI = uri
	f.lastRate = rating
	if f.mintErr != nil {
		return nil, f.mintErr
	}
	f.minted[mintKey(owner, code)] = true
	return &MintResult{
		TxHash: "0xabc",
		Logs: []ReceiptLog{
			{Address: "0x1111111111111111111111111111111111111111", Topics: []string{"0xdead", "0x09"}},
			{Address: testNFTAddress, Topics: []string{"0xfeed", f.tokenID}},
		},
	}, nil
}

func (f *fakeAuthority) setMinted(owner string, code uint8) {
	f.mu.Lock()
	f.minted[mintKey(owner, code)] = true
	f.mu.Unlock()
}

type fakeReader struct {
	mu          sync.Mutex
	data        map[string]*ChainUserData
	err         error
	calls       int
	canMeditate *bool
}

func newFakeReader() *fakeReader {
	return &fakeReader{data: map[string]*ChainUserData{}}
}

func (f *fakeReader) GetUserData(_ context.Context, owner string) (*ChainUserData, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if d, ok := f.data[strings.ToLower(owner)]; ok {
		cp := *d
		return &cp, nil
	}
	return &ChainUserData{}, nil
}

func (f *fakeReader) CanMeditateToday(_ context.Context, owner string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, f.err
	}
	if f.canMeditate == nil {
		return false, errors.New("not configured")
	}
	return *f.canMeditate, nil
}

func (f *fakeReader) set(owner string, d ChainUserData) {
	f.mu.Lock()
	f.data[strings.ToLower(owner)] = &d
	f.mu.Unlock()
}
