package routes

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/isyourdayok/backend/config"
	"github.com/isyourdayok/backend/models"
	"github.com/isyourdayok/backend/services"
	"github.com/isyourdayok/backend/utils"
)

const nftAddress = "0x00000000000000000000000000000000000000bB"

type stubAuthority struct {
	mu     sync.Mutex
	minted map[string]bool
}

func (s *stubAuthority) Address() string { return nftAddress }

func (s *stubAuthority) HasMinted(_ context.Context, owner string, code uint8) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.minted[strings.ToLower(owner)+string(rune('0'+code))], nil
}

func (s *stubAuthority) Mint(_ context.Context, owner string, code uint8, _ int, _ string) (*services.MintResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.minted[strings.ToLower(owner)+string(rune('0'+code))] = true
	return &services.MintResult{
		TxHash: "0xfeed",
		Logs:   []services.ReceiptLog{{Address: nftAddress, Topics: []string{"0x01", "0x2a"}}},
	}, nil
}

type testEnv struct {
	db     *gorm.DB
	deps   Deps
	router http.Handler
}

func newTestEnv(t *testing.T, authority services.MintingAuthority) *testEnv {
	t.Helper()
	dir := t.TempDir()
	cfg := config.AppConfig{
		JWTSecret: "router-test-secret",
		GinMode:   "test",
		GinPath:   filepath.Join(dir, "gin.log"),
		LogLevel:  "error",
		BaseURL:   "https://app.test",
	}
	config.Set(cfg)
	cfg = config.Get()

	db, err := config.OpenDatabase(config.AppConfig{DBDriver: "sqlite", DBPath: filepath.Join(dir, "app.db"), LogLevel: "silent"})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(models.All()...))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	stats := services.NewStatsService(db)
	chat := services.NewChatService(db)
	d := Deps{
		Users:      services.NewUserService(db),
		Activities: services.NewActivityService(db, stats, nil),
		Stats:      stats,
		Authz:      services.NewAuthorizer(db, cfg.RolePolicy),
		Chat:       chat,
		Nonces:     utils.NewNonceStore(nil, 0),
		Revoked:    utils.NewRevocations(nil),
	}
	d.Mints = services.NewMintCoordinator(db, services.MintConfig{
		Authority: authority,
		Stats:     stats,
		Locker:    utils.NewLocker(nil),
		Chat:      chat,
		BaseURL:   cfg.BaseURL,
	})
	d.Reconciler = services.NewReconciler(db, authority, stats, 0, 10, nil)
	return &testEnv{db: db, deps: d, router: SetupRouter(cfg, d)}
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (e *testEnv) do(t *testing.T, method, path, token string, body interface{}) (int, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	var env envelope
	_ = json.Unmarshal(w.Body.Bytes(), &env)
	return w.Code, env
}

// login signs the issued nonce with key and returns the session token and address.
func (e *testEnv) login(t *testing.T, key *ecdsa.PrivateKey) (string, string) {
	t.Helper()
	addr := crypto.PubkeyToAddress(key.PublicKey).Hex()

	status, env := e.do(t, "POST", "/api/v1/auth/nonce", "", map[string]string{"address": strings.ToLower(addr)})
	require.Equal(t, http.StatusOK, status)
	var nonce struct {
		Address string `json:"address"`
		Message string `json:"message"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &nonce))
	require.Equal(t, addr, nonce.Address)

	sig, err := crypto.Sign(accounts.TextHash([]byte(nonce.Message)), key)
	require.NoError(t, err)
	sig[crypto.RecoveryIDOffset] += 27

	status, env = e.do(t, "POST", "/api/v1/auth/wallet", "", map[string]string{
		"address":   addr,
		"signature": hexutil.Encode(sig),
		"username":  "tester",
	})
	require.Equal(t, http.StatusOK, status)
	var out struct {
		Token string      `json:"token"`
		User  models.User `json:"user"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &out))
	require.NotEmpty(t, out.Token)
	require.Equal(t, addr, out.User.WalletAddress)
	return out.Token, addr
}

func newKey(t *testing.T) *ecdsa.PrivateKey {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return key
}

func TestWalletLoginRejectsReplayAndForgery(t *testing.T) {
	e := newTestEnv(t, nil)
	key := newKey(t)
	addr := crypto.PubkeyToAddress(key.PublicKey).Hex()

	// no nonce issued
	status, _ := e.do(t, "POST", "/api/v1/auth/wallet", "", map[string]string{"address": addr, "signature": "0x00"})
	require.Equal(t, http.StatusUnauthorized, status)

	status, env := e.do(t, "POST", "/api/v1/auth/nonce", "", map[string]string{"address": addr})
	require.Equal(t, http.StatusOK, status)
	var nonce struct {
		Message string `json:"message"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &nonce))

	sig, err := crypto.Sign(accounts.TextHash([]byte(nonce.Message)), newKey(t))
	require.NoError(t, err)
	status, _ = e.do(t, "POST", "/api/v1/auth/wallet", "", map[string]string{"address": addr, "signature": hexutil.Encode(sig)})
	require.Equal(t, http.StatusUnauthorized, status)

	status, _ = e.do(t, "POST", "/api/v1/auth/nonce", "", map[string]string{"address": "not-an-address"})
	require.Equal(t, http.StatusBadRequest, status)
}

func TestActivityFlow(t *testing.T) {
	e := newTestEnv(t, nil)
	token, _ := e.login(t, newKey(t))

	status, _ := e.do(t, "GET", "/api/v1/journals", "", nil)
	require.Equal(t, http.StatusUnauthorized, status)

	status, env := e.do(t, "POST", "/api/v1/journals", token, map[string]string{"content": "short"})
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, 40001, env.Code)

	status, env = e.do(t, "POST", "/api/v1/journals", token, map[string]string{"content": "a calm and steady day"})
	require.Equal(t, http.StatusCreated, status)
	var created struct {
		Completion services.Completion `json:"completion"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &created))
	require.Equal(t, 1, created.Completion.Streak)
	require.Positive(t, created.Completion.Points)

	status, env = e.do(t, "POST", "/api/v1/journals", token, map[string]string{"content": "writing again today"})
	require.Equal(t, http.StatusConflict, status)
	require.Equal(t, 40901, env.Code)

	status, _ = e.do(t, "POST", "/api/v1/moods", token, map[string]interface{}{"mood": "Happy", "rating": 8})
	require.Equal(t, http.StatusCreated, status)

	status, env = e.do(t, "GET", "/api/v1/daily-activity", token, nil)
	require.Equal(t, http.StatusOK, status)
	var day services.DayActivity
	require.NoError(t, json.Unmarshal(env.Data, &day))
	require.True(t, day.JournalDone)
	require.True(t, day.MoodLogDone)
	require.False(t, day.MeditationDone)

	status, env = e.do(t, "GET", "/api/v1/stats/me", token, nil)
	require.Equal(t, http.StatusOK, status)
	var st struct {
		Stats services.Stats `json:"stats"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &st))
	require.Equal(t, services.SourceDatabase, st.Stats.Source)
	require.Equal(t, 1, st.Stats.JournalStreak)

	status, env = e.do(t, "GET", "/api/v1/achievements", token, nil)
	require.Equal(t, http.StatusOK, status)
	var ach struct {
		Achievements []services.AchievementView `json:"achievements"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &ach))
	require.Len(t, ach.Achievements, 4)
	require.Equal(t, "journal-7", ach.Achievements[0].Type.ID)
	require.Equal(t, services.StatusInProgress, ach.Achievements[0].Status)
	require.Equal(t, 1, ach.Achievements[0].Current)
	require.Equal(t, 7, ach.Achievements[0].Target)
}

func TestMintFlow(t *testing.T) {
	e := newTestEnv(t, &stubAuthority{minted: map[string]bool{}})
	token, addr := e.login(t, newKey(t))

	status, env := e.do(t, "POST", "/api/v1/achievements/mint", token, map[string]interface{}{"type": "journal-7", "improvement_rating": 80})
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, 40002, env.Code)

	require.NoError(t, e.db.Model(&models.User{}).Where("wallet_address = ?", addr).Update("journal_streak", 7).Error)

	status, _ = e.do(t, "POST", "/api/v1/achievements/mint", token, map[string]interface{}{"type": "journal-7", "improvement_rating": 0})
	require.Equal(t, http.StatusBadRequest, status)

	status, env = e.do(t, "POST", "/api/v1/achievements/mint", token, map[string]interface{}{"type": "journal-7", "improvement_rating": 80})
	require.Equal(t, http.StatusOK, status)
	var minted struct {
		TokenID         string `json:"token_id"`
		TransactionHash string `json:"transaction_hash"`
		ContractAddress string `json:"contract_address"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &minted))
	require.Equal(t, "42", minted.TokenID)
	require.Equal(t, "0xfeed", minted.TransactionHash)

	status, env = e.do(t, "POST", "/api/v1/achievements/mint", token, map[string]interface{}{"type": "journal-7", "improvement_rating": 80})
	require.Equal(t, http.StatusConflict, status)
	require.Equal(t, 40902, env.Code)

	status, env = e.do(t, "GET", "/api/v1/chat", "", nil)
	require.Equal(t, http.StatusOK, status)
	var msgs []models.ChatMessage
	require.NoError(t, json.Unmarshal(env.Data, &msgs))
	require.Len(t, msgs, 1)
	require.Equal(t, services.ChatMilestone, msgs[0].Type)
}

func TestMintDisabled(t *testing.T) {
	e := newTestEnv(t, nil)
	token, _ := e.login(t, newKey(t))

	status, env := e.do(t, "POST", "/api/v1/achievements/mint", token, map[string]interface{}{"type": "meditation-7", "improvement_rating": 10})
	require.Equal(t, http.StatusServiceUnavailable, status)
	require.Equal(t, 50301, env.Code)
}

func TestCapabilitiesAndAdmin(t *testing.T) {
	e := newTestEnv(t, &stubAuthority{minted: map[string]bool{}})
	token, addr := e.login(t, newKey(t))

	status, _ := e.do(t, "POST", "/api/v1/admin/reconcile", token, nil)
	require.Equal(t, http.StatusForbidden, status)
	status, _ = e.do(t, "POST", "/api/v1/chat", token, map[string]string{"content": "hello"})
	require.Equal(t, http.StatusForbidden, status)

	require.NoError(t, e.deps.Authz.Grant(context.Background(), addr, services.RoleAdmin))

	status, _ = e.do(t, "POST", "/api/v1/admin/reconcile", token, nil)
	require.Equal(t, http.StatusOK, status)

	status, env := e.do(t, "POST", "/api/v1/chat", token, map[string]string{"content": "<b>welcome</b> everyone"})
	require.Equal(t, http.StatusCreated, status)
	var msg models.ChatMessage
	require.NoError(t, json.Unmarshal(env.Data, &msg))
	require.Equal(t, "welcome everyone", msg.Content)

	status, _ = e.do(t, "DELETE", "/api/v1/chat/"+msg.ID, token, nil)
	require.Equal(t, http.StatusOK, status)
	status, _ = e.do(t, "DELETE", "/api/v1/chat/"+msg.ID, token, nil)
	require.Equal(t, http.StatusNotFound, status)

	status, env = e.do(t, "GET", "/api/v1/admin/users", token, nil)
	require.Equal(t, http.StatusOK, status)
	var page struct {
		Total int64 `json:"total"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &page))
	require.EqualValues(t, 1, page.Total)

	status, _ = e.do(t, "POST", "/api/v1/admin/roles", token, map[string]string{"address": addr, "role": "wizard"})
	require.Equal(t, http.StatusBadRequest, status)

	status, _ = e.do(t, "DELETE", "/api/v1/admin/roles/"+addr+"/admin", token, nil)
	require.Equal(t, http.StatusOK, status)
	status, _ = e.do(t, "GET", "/api/v1/admin/users", token, nil)
	require.Equal(t, http.StatusForbidden, status)
}

func TestLogoutRevokesToken(t *testing.T) {
	e := newTestEnv(t, nil)
	token, _ := e.login(t, newKey(t))

	status, _ := e.do(t, "GET", "/api/v1/auth/me", token, nil)
	require.Equal(t, http.StatusOK, status)
	status, _ = e.do(t, "POST", "/api/v1/auth/logout", token, nil)
	require.Equal(t, http.StatusOK, status)
	status, _ = e.do(t, "GET", "/api/v1/auth/me", token, nil)
	require.Equal(t, http.StatusUnauthorized, status)
}

func TestPublicEndpoints(t *testing.T) {
	e := newTestEnv(t, nil)

	status, _ := e.do(t, "GET", "/health", "", nil)
	require.Equal(t, http.StatusOK, status)

	status, env := e.do(t, "GET", "/api/v1/achievement-types", "", nil)
	require.Equal(t, http.StatusOK, status)
	var types []services.AchievementType
	require.NoError(t, json.Unmarshal(env.Data, &types))
	require.Len(t, types, 4)

	req := httptest.NewRequest("GET", "/nft-metadata/meditation-30.json", nil)
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	var meta struct {
		Name  string `json:"name"`
		Image string `json:"image"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &meta))
	require.NotEmpty(t, meta.Name)
	require.Equal(t, "https://app.test/nft-images/meditation-30.png", meta.Image)

	status, _ = e.do(t, "GET", "/nft-metadata/unknown.json", "", nil)
	require.Equal(t, http.StatusNotFound, status)

	status, env = e.do(t, "GET", "/no/such/route", "", nil)
	require.Equal(t, http.StatusNotFound, status)
	require.Equal(t, 40400, env.Code)
}
