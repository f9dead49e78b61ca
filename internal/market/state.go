package market

import (
	"sync"
	"time"
)

type Status string

const (
	StatusRegular Status = "regular"
	StatusCrash   Status = "crash"
)

// marketState holds a game's in-memory market mood. Created when the game's
// scheduler starts, discarded when the game finishes. Mutated only by the
// engine.
type marketState struct {
	mu        sync.Mutex
	status    Status
	lastCrash time.Time
}

func newMarketState() *marketState {
	return &marketState{status: StatusRegular}
}

func (s *marketState) snapshot() (Status, time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status, s.lastCrash
}

func (s *marketState) markCrash(now time.Time) {
	s.mu.Lock()
	s.status = StatusCrash
	s.lastCrash = now
	s.mu.Unlock()
}

func (s *marketState) markRegular() {
	s.mu.Lock()
	s.status = StatusRegular
	s.mu.Unlock()
}
