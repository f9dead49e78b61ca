package ledger

import (
	"fmt"
	"testing"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"barstock/internal/db"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_pragma=busy_timeout(5000)", t.Name())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := conn.AutoMigrate(&db.DemandCounter{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return conn
}

func TestEnsureCountersIdempotent(t *testing.T) {
	conn := newTestDB(t)
	if err := EnsureCounters(conn, 1, 3); err != nil {
		t.Fatalf("ensure counters: %v", err)
	}
	if err := conn.Model(&db.DemandCounter{}).Where("game_id = ? AND slot_index = ?", 1, 0).
		Update("units", 7).Error; err != nil {
		t.Fatalf("bump counter: %v", err)
	}
	if err := EnsureCounters(conn, 1, 3); err != nil {
		t.Fatalf("ensure counters again: %v", err)
	}

	var counters []db.DemandCounter
	if err := conn.Where("game_id = ?", 1).Order("slot_index").Find(&counters).Error; err != nil {
		t.Fatalf("load counters: %v", err)
	}
	if len(counters) != 3 {
		t.Fatalf("expected 3 counters, got %d", len(counters))
	}
	if counters[0].Units != 7 {
		t.Fatalf("expected existing counter untouched, got units=%d", counters[0].Units)
	}
}

func TestLockCountersSubset(t *testing.T) {
	conn := newTestDB(t)
	if err := EnsureCounters(conn, 1, 5); err != nil {
		t.Fatalf("ensure counters: %v", err)
	}
	counters, err := LockCounters(conn, 1, []int{3, 1})
	if err != nil {
		t.Fatalf("lock counters: %v", err)
	}
	if len(counters) != 2 {
		t.Fatalf("expected 2 counters, got %d", len(counters))
	}
	if counters[0].SlotIndex != 1 || counters[1].SlotIndex != 3 {
		t.Fatalf("expected ascending slot order, got %d then %d", counters[0].SlotIndex, counters[1].SlotIndex)
	}
}

func TestApplyAccumulates(t *testing.T) {
	conn := newTestDB(t)
	if err := EnsureCounters(conn, 1, 1); err != nil {
		t.Fatalf("ensure counters: %v", err)
	}
	counters, err := LockAllCounters(conn, 1)
	if err != nil {
		t.Fatalf("lock counters: %v", err)
	}
	if err := Apply(conn, &counters[0], 4); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if err := Apply(conn, &counters[0], 2); err != nil {
		t.Fatalf("apply: %v", err)
	}

	var stored db.DemandCounter
	if err := conn.Where("game_id = ? AND slot_index = ?", 1, 0).First(&stored).Error; err != nil {
		t.Fatalf("load counter: %v", err)
	}
	if stored.Units != 6 {
		t.Fatalf("expected 6 units, got %d", stored.Units)
	}
}

func TestAverageCeiling(t *testing.T) {
	cases := []struct {
		name  string
		units []int64
		want  int64
	}{
		{"empty", nil, 0},
		{"exact", []int64{2, 4, 6}, 4},
		{"rounds up", []int64{1, 0, 0}, 1},
		{"rounds up uneven", []int64{10, 0, 0}, 4},
		{"all zero", []int64{0, 0, 0}, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			counters := make([]db.DemandCounter, 0, len(tc.units))
			for i, units := range tc.units {
				counters = append(counters, db.DemandCounter{SlotIndex: i, Units: units})
			}
			if got := Average(counters); got != tc.want {
				t.Fatalf("expected average %d, got %d", tc.want, got)
			}
		})
	}
}

func TestOffset(t *testing.T) {
	counter := db.DemandCounter{Units: 10}
	if got := Offset(counter, 4); got != 6 {
		t.Fatalf("expected offset 6, got %d", got)
	}
	if got := Offset(db.DemandCounter{Units: 1}, 4); got != -3 {
		t.Fatalf("expected offset -3, got %d", got)
	}
}
