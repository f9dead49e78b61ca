package server

import (
	"log"
	"time"

	"barstock/internal/db"
	"barstock/internal/market"
)

// StartSchedulers launches a pricing loop for every game that has not yet
// closed. Called once at boot; games created later get their loop from
// handleCreateGame.
func (s *Server) StartSchedulers() error {
	var games []db.Game
	if err := s.db.Where("closes_at > ?", time.Now()).Find(&games).Error; err != nil {
		return err
	}
	for _, game := range games {
		s.startScheduler(game)
	}
	return nil
}

// startScheduler runs at most one loop per game for the lifetime of the
// process. The loop itself decides when to stop (at the game's close time).
func (s *Server) startScheduler(game db.Game) {
	s.schedulersMu.Lock()
	defer s.schedulersMu.Unlock()
	if _, running := s.schedulers[game.ID]; running {
		return
	}
	s.schedulers[game.ID] = struct{}{}

	interval := time.Duration(s.cfg.PriceIntervalSeconds) * time.Second
	scheduler := market.NewScheduler(s.engine, s.broker, interval)
	log.Printf("scheduler started game_id=%d interval=%s", game.ID, interval)
	go func() {
		scheduler.Run(game)
		s.schedulersMu.Lock()
		delete(s.schedulers, game.ID)
		s.schedulersMu.Unlock()
	}()
}
