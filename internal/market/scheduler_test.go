package market

import (
	"sync"
	"testing"
	"time"

	"barstock/internal/config"
	"barstock/internal/db"
)

type recordingSink struct {
	mu      sync.Mutex
	results []TickResult
}

func (r *recordingSink) MarketTicked(game db.Game, result TickResult) {
	r.mu.Lock()
	r.results = append(r.results, result)
	r.mu.Unlock()
}

func (r *recordingSink) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.results)
}

func TestSchedulerRunsUntilClose(t *testing.T) {
	conn := newTestDB(t)
	seedGame(t, conn, 1, 2)

	engine := NewEngine(conn, config.Default())
	engine.SetPolicy(NeverCrash{})
	sink := &recordingSink{}
	scheduler := NewScheduler(engine, sink, 20*time.Millisecond)

	now := time.Now()
	game := db.Game{ID: 1, StartsAt: now, ClosesAt: now.Add(110 * time.Millisecond)}

	done := make(chan struct{})
	go func() {
		scheduler.Run(game)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop after the game closed")
	}
	if sink.count() == 0 {
		t.Fatal("expected at least one tick before close")
	}
	if engine.Status(1) != StatusRegular {
		t.Fatalf("expected released state after finish, got %s", engine.Status(1))
	}
}

func TestSchedulerWaitsForStart(t *testing.T) {
	conn := newTestDB(t)
	seedGame(t, conn, 1, 2)

	engine := NewEngine(conn, config.Default())
	engine.SetPolicy(NeverCrash{})
	sink := &recordingSink{}
	scheduler := NewScheduler(engine, sink, 20*time.Millisecond)

	now := time.Now()
	game := db.Game{ID: 1, StartsAt: now.Add(80 * time.Millisecond), ClosesAt: now.Add(160 * time.Millisecond)}

	go scheduler.Run(game)

	time.Sleep(40 * time.Millisecond)
	if sink.count() != 0 {
		t.Fatal("scheduler ticked before the game started")
	}
	deadline := time.Now().Add(2 * time.Second)
	for sink.count() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("scheduler never ticked after the start time")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
