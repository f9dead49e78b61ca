package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"barstock/internal/config"
	"barstock/internal/db"
	"barstock/internal/ledger"
	"barstock/internal/market"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_pragma=busy_timeout(10000)", t.Name())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	return conn
}

func testConfig() config.Config {
	cfg := config.Default()
	cfg.HeartbeatIntervalSeconds = 1
	cfg.HeartbeatTimeoutSeconds = 1
	return cfg
}

type testEnv struct {
	srv   *Server
	ts    *httptest.Server
	conn  *gorm.DB
	admin db.User
	owner db.User
	buyer db.User
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	conn := newTestDB(t)
	srv := New(conn, testConfig())
	srv.Engine().SetPolicy(market.NeverCrash{})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	t.Cleanup(srv.Broker().Close)

	env := &testEnv{
		srv:   srv,
		ts:    ts,
		conn:  conn,
		admin: db.User{Name: "admin", Token: "admin-token", IsAdmin: true},
		owner: db.User{Name: "owner", Token: "owner-token"},
		buyer: db.User{Name: "buyer", Token: "buyer-token"},
	}
	for _, user := range []*db.User{&env.admin, &env.owner, &env.buyer} {
		if err := conn.Create(user).Error; err != nil {
			t.Fatalf("create user %s: %v", user.Name, err)
		}
	}
	return env
}

// seedGame creates an in-progress game with the buyer already joined.
func (env *testEnv) seedGame(t *testing.T, slotCount int) db.Game {
	t.Helper()
	now := time.Now()
	game := db.Game{
		OwnerID:   env.owner.ID,
		Name:      "test party",
		JoinCode:  newJoinCode(),
		StartsAt:  now.Add(-time.Hour),
		ClosesAt:  now.Add(time.Hour),
		SlotCount: slotCount,
	}
	if err := env.conn.Create(&game).Error; err != nil {
		t.Fatalf("create game: %v", err)
	}
	for i := 0; i < slotCount; i++ {
		slot := db.BeverageSlot{
			GameID:       game.ID,
			SlotIndex:    i,
			Name:         fmt.Sprintf("beer-%d", i),
			DefaultPrice: decimal.NewFromInt(100),
			MinPrice:     decimal.NewFromInt(50),
			MaxPrice:     decimal.NewFromInt(300),
		}
		if err := env.conn.Create(&slot).Error; err != nil {
			t.Fatalf("create slot: %v", err)
		}
	}
	if err := ledger.EnsureCounters(env.conn, game.ID, slotCount); err != nil {
		t.Fatalf("ensure counters: %v", err)
	}
	participant := db.Participant{GameID: game.ID, UserID: env.buyer.ID, JoinedAt: now}
	if err := env.conn.Create(&participant).Error; err != nil {
		t.Fatalf("create participant: %v", err)
	}
	return game
}

func (env *testEnv) doRequest(t *testing.T, method, path, token string, payload any) *http.Response {
	t.Helper()
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, env.ts.URL+path, body)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return body
}
