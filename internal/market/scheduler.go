package market

import (
	"context"
	"log"
	"time"

	"barstock/internal/db"
)

// TickSink receives the outcome of each scheduler tick. The notification
// broker implements it; tests substitute a recorder.
type TickSink interface {
	MarketTicked(game db.Game, result TickResult)
}

// Scheduler runs one background pricing loop per game. The loop waits for the
// game to start, then ticks the engine on a fixed interval until the game's
// close time passes. A failed tick is logged and the loop moves on; only the
// close time ends it.
type Scheduler struct {
	engine   *Engine
	sink     TickSink
	interval time.Duration
	now      func() time.Time
}

func NewScheduler(engine *Engine, sink TickSink, interval time.Duration) *Scheduler {
	return &Scheduler{
		engine:   engine,
		sink:     sink,
		interval: interval,
		now:      time.Now,
	}
}

// Run blocks until the game finishes. Callers launch it in its own goroutine.
func (s *Scheduler) Run(game db.Game) {
	if wait := game.StartsAt.Sub(s.now()); wait > 0 {
		log.Printf("scheduler waiting game_id=%d starts_in=%s", game.ID, wait.Round(time.Second))
		time.Sleep(wait)
	}

	s.tick(game)
	for {
		time.Sleep(s.interval)
		if !s.now().Before(game.ClosesAt) {
			s.engine.Release(game.ID)
			log.Printf("scheduler finished game_id=%d", game.ID)
			return
		}
		s.tick(game)
	}
}

func (s *Scheduler) tick(game db.Game) {
	result, err := s.engine.Tick(context.Background(), game.ID)
	if err != nil {
		log.Printf("price tick failed game_id=%d error=%v", game.ID, err)
		return
	}
	log.Printf("price tick game_id=%d status=%s slots=%d", game.ID, result.Status, len(result.Prices))
	if s.sink != nil {
		s.sink.MarketTicked(game, result)
	}
}
