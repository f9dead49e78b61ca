package db

import (
	"fmt"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return conn
}

func TestMigrateCreatesTables(t *testing.T) {
	conn := newTestDB(t)
	for _, model := range []any{&User{}, &Game{}, &Participant{}, &BeverageSlot{},
		&DemandCounter{}, &PriceChange{}, &Order{}, &Transaction{}, &Event{}} {
		var count int64
		if err := conn.Model(model).Count(&count).Error; err != nil {
			t.Fatalf("query %T: %v", model, err)
		}
	}
}

func TestCounterUniquePerGameSlot(t *testing.T) {
	conn := newTestDB(t)
	if err := conn.Create(&DemandCounter{GameID: 1, SlotIndex: 0}).Error; err != nil {
		t.Fatalf("create counter: %v", err)
	}
	if err := conn.Create(&DemandCounter{GameID: 1, SlotIndex: 0}).Error; err == nil {
		t.Fatal("expected unique violation for duplicate (game, slot) counter")
	}
	if err := conn.Create(&DemandCounter{GameID: 2, SlotIndex: 0}).Error; err != nil {
		t.Fatalf("same slot in another game should be fine: %v", err)
	}
}

func TestGameLifecycle(t *testing.T) {
	now := time.Now()
	game := Game{StartsAt: now.Add(time.Hour), ClosesAt: now.Add(2 * time.Hour)}

	if got := game.Lifecycle(now); got != GameNotStarted {
		t.Fatalf("expected not-started, got %s", got)
	}
	if got := game.Lifecycle(now.Add(90 * time.Minute)); got != GameInProgress {
		t.Fatalf("expected in-progress, got %s", got)
	}
	if got := game.Lifecycle(now.Add(3 * time.Hour)); got != GameFinished {
		t.Fatalf("expected finished, got %s", got)
	}
}
