// Package orders executes purchases against the demand ledger. A purchase is
// one atomic unit of work: either every requested slot is priced, counted and
// recorded, or nothing is.
package orders

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"barstock/internal/config"
	"barstock/internal/db"
	"barstock/internal/ledger"
	"barstock/internal/market"
)

type Processor struct {
	db     *gorm.DB
	engine *market.Engine
	step   decimal.Decimal
}

func NewProcessor(conn *gorm.DB, engine *market.Engine, cfg config.Config) *Processor {
	return &Processor{
		db:     conn,
		engine: engine,
		step:   decimal.NewFromInt(int64(cfg.PriceStepPerUnit)),
	}
}

// Purchase buys the given quantities in one transaction.
//
// Only the counters of the requested slots are locked, so orders for disjoint
// slot sets run in parallel; overlapping orders serialize behind the row
// locks and each sees the counters its predecessor committed. Unit prices
// come from those live counters, the same values a concurrent price tick
// would read. While the game's market is crashed, every slot sells at its
// floor.
func (p *Processor) Purchase(ctx context.Context, userID, gameID uint, quantities map[int]int) (*db.Order, error) {
	if len(quantities) == 0 {
		return nil, badRequestf("order has no items")
	}

	var game db.Game
	if err := p.db.WithContext(ctx).First(&game, gameID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("game %d: %w", gameID, ErrNotFound)
		}
		return nil, err
	}
	if game.Lifecycle(time.Now()) != db.GameInProgress {
		return nil, badRequestf("game is not in progress")
	}

	slots := make([]int, 0, len(quantities))
	for slot, qty := range quantities {
		if slot < 0 || slot >= game.SlotCount {
			return nil, badRequestf("slot index %d out of range [0, %d)", slot, game.SlotCount)
		}
		if qty <= 0 {
			return nil, badRequestf("quantity for slot %d must be positive", slot)
		}
		slots = append(slots, slot)
	}
	sort.Ints(slots)

	if err := p.requireParticipant(ctx, &game, userID); err != nil {
		return nil, err
	}

	crashed := p.engine.Status(gameID) == market.StatusCrash

	order := db.Order{Ref: uuid.NewString(), UserID: userID, GameID: gameID}
	err := p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&order).Error; err != nil {
			return fmt.Errorf("create order: %w", err)
		}

		locked, err := ledger.LockCounters(tx, gameID, slots)
		if err != nil {
			return fmt.Errorf("lock counters: %w", err)
		}
		if len(locked) != len(slots) {
			return fmt.Errorf("game %d: %d of %d counters missing", gameID, len(slots)-len(locked), len(slots))
		}

		var slotConfigs []db.BeverageSlot
		if err := tx.Where("game_id = ? AND slot_index IN ?", gameID, slots).Find(&slotConfigs).Error; err != nil {
			return fmt.Errorf("load slots: %w", err)
		}
		configBySlot := make(map[int]db.BeverageSlot, len(slotConfigs))
		for _, slot := range slotConfigs {
			configBySlot[slot.SlotIndex] = slot
		}
		for _, slot := range slots {
			if _, ok := configBySlot[slot]; !ok {
				return badRequestf("slot %d has no beverage configured", slot)
			}
		}

		// Game-wide average: unlocked rows for context, locked values where
		// we hold them.
		all, err := ledger.ReadCounters(tx, gameID)
		if err != nil {
			return fmt.Errorf("read counters: %w", err)
		}
		lockedBySlot := make(map[int]*db.DemandCounter, len(locked))
		for i := range locked {
			lockedBySlot[locked[i].SlotIndex] = &locked[i]
		}
		for i := range all {
			if counter, ok := lockedBySlot[all[i].SlotIndex]; ok {
				all[i].Units = counter.Units
			}
		}
		average := ledger.Average(all)

		transactions := make([]db.Transaction, 0, len(slots))
		for _, slotIndex := range slots {
			counter := lockedBySlot[slotIndex]
			slot := configBySlot[slotIndex]
			var unitPrice decimal.Decimal
			if crashed {
				unitPrice = slot.MinPrice
			} else {
				unitPrice = market.PriceFor(slot, ledger.Offset(*counter, average), p.step)
			}
			if err := ledger.Apply(tx, counter, int64(quantities[slotIndex])); err != nil {
				return fmt.Errorf("apply counter delta slot=%d: %w", slotIndex, err)
			}
			transactions = append(transactions, db.Transaction{
				OrderID:   order.ID,
				UserID:    userID,
				GameID:    gameID,
				SlotIndex: slotIndex,
				Quantity:  quantities[slotIndex],
				UnitPrice: unitPrice,
			})
		}
		if err := tx.Create(&transactions).Error; err != nil {
			return fmt.Errorf("create transactions: %w", err)
		}
		order.Transactions = transactions
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (p *Processor) requireParticipant(ctx context.Context, game *db.Game, userID uint) error {
	if game.OwnerID == userID {
		return nil
	}
	var count int64
	err := p.db.WithContext(ctx).Model(&db.Participant{}).
		Where("game_id = ? AND user_id = ?", game.ID, userID).
		Count(&count).Error
	if err != nil {
		return err
	}
	if count == 0 {
		return fmt.Errorf("user %d is not a participant of game %d: %w", userID, game.ID, ErrForbidden)
	}
	return nil
}

// PriceHistory returns the game's append-only price ledger, oldest first.
func (p *Processor) PriceHistory(ctx context.Context, gameID uint) ([]db.PriceChange, error) {
	var changes []db.PriceChange
	err := p.db.WithContext(ctx).
		Where("game_id = ?", gameID).
		Order("id").
		Find(&changes).Error
	return changes, err
}

// OrderHistory returns the user's orders in the game, newest first.
func (p *Processor) OrderHistory(ctx context.Context, userID, gameID uint) ([]db.Order, error) {
	var result []db.Order
	err := p.db.WithContext(ctx).
		Preload("Transactions").
		Where("user_id = ? AND game_id = ?", userID, gameID).
		Order("id DESC").
		Find(&result).Error
	return result, err
}
