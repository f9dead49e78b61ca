package market

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"barstock/internal/config"
	"barstock/internal/db"
	"barstock/internal/ledger"
)

type SlotPrice struct {
	SlotIndex int             `json:"slot_index"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
}

type TickResult struct {
	Status Status      `json:"status"`
	Prices []SlotPrice `json:"prices"`
}

// Engine recomputes per-slot prices for games. One engine serves all games;
// per-game market state lives in an engine-owned map keyed by game id.
type Engine struct {
	db       *gorm.DB
	policy   CrashPolicy
	cooldown time.Duration
	step     decimal.Decimal
	now      func() time.Time

	mu     sync.Mutex
	states map[uint]*marketState
}

func NewEngine(conn *gorm.DB, cfg config.Config) *Engine {
	return &Engine{
		db:       conn,
		policy:   NewRandomCrash(cfg.CrashChancePercent),
		cooldown: time.Duration(cfg.CrashCooldownMinutes) * time.Minute,
		step:     decimal.NewFromInt(int64(cfg.PriceStepPerUnit)),
		now:      time.Now,
		states:   make(map[uint]*marketState),
	}
}

// SetPolicy swaps the crash strategy. Intended for operator overrides and
// deterministic tests; not safe to call while ticks are running.
func (e *Engine) SetPolicy(policy CrashPolicy) { e.policy = policy }

func (e *Engine) state(gameID uint) *marketState {
	e.mu.Lock()
	defer e.mu.Unlock()
	state, ok := e.states[gameID]
	if !ok {
		state = newMarketState()
		e.states[gameID] = state
	}
	return state
}

// Status reports the game's current market mood. Games without state (never
// ticked) read as regular.
func (e *Engine) Status(gameID uint) Status {
	status, _ := e.state(gameID).snapshot()
	return status
}

// Release discards the in-memory state of a finished game.
func (e *Engine) Release(gameID uint) {
	e.mu.Lock()
	delete(e.states, gameID)
	e.mu.Unlock()
}

// Tick recomputes every slot price of the game once.
//
// A crash is eligible only when the cooldown has elapsed since the last one;
// eligible ticks ask the CrashPolicy. On crash every price is forced to the
// slot minimum, otherwise each price follows PriceFor over the slot's demand
// offset. Counters are read under row locks and the PriceChange rows are
// appended in the same transaction, so the ledger always reflects the
// counters that produced it.
func (e *Engine) Tick(ctx context.Context, gameID uint) (TickResult, error) {
	state := e.state(gameID)
	now := e.now()
	_, lastCrash := state.snapshot()
	crash := now.Sub(lastCrash) >= e.cooldown && e.policy.Crash()

	status := StatusRegular
	if crash {
		status = StatusCrash
	}

	var result TickResult
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var slots []db.BeverageSlot
		if err := tx.Where("game_id = ?", gameID).Order("slot_index").Find(&slots).Error; err != nil {
			return fmt.Errorf("load slots: %w", err)
		}
		if len(slots) == 0 {
			return fmt.Errorf("game %d has no beverage slots", gameID)
		}

		counters, err := ledger.LockAllCounters(tx, gameID)
		if err != nil {
			return fmt.Errorf("lock counters: %w", err)
		}
		unitsBySlot := make(map[int]int64, len(counters))
		for _, counter := range counters {
			unitsBySlot[counter.SlotIndex] = counter.Units
		}
		average := ledger.Average(counters)

		prices := make([]SlotPrice, 0, len(slots))
		changes := make([]db.PriceChange, 0, len(slots))
		for _, slot := range slots {
			var price decimal.Decimal
			if crash {
				price = slot.MinPrice
			} else {
				offset := unitsBySlot[slot.SlotIndex] - average
				price = PriceFor(slot, offset, e.step)
			}
			prices = append(prices, SlotPrice{SlotIndex: slot.SlotIndex, Name: slot.Name, Price: price})
			changes = append(changes, db.PriceChange{
				GameID:    gameID,
				SlotIndex: slot.SlotIndex,
				Price:     price,
				Status:    string(status),
			})
		}
		if err := tx.Create(&changes).Error; err != nil {
			return fmt.Errorf("append price changes: %w", err)
		}
		result = TickResult{Status: status, Prices: prices}
		return nil
	})
	if err != nil {
		return TickResult{}, err
	}

	if crash {
		state.markCrash(now)
	} else {
		state.markRegular()
	}
	return result, nil
}
