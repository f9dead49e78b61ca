// Package ledger owns the per-slot demand counters. Counters are the
// serialization point for concurrent orders and price ticks: every write, and
// every read that feeds a price computation, happens on rows locked with
// SELECT ... FOR UPDATE inside the caller's transaction.
package ledger

import (
	"fmt"
	"sort"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"barstock/internal/db"
)

// withRowLock adds FOR UPDATE on dialects that support it. sqlite serializes
// writers with its database-level lock, so the clause is skipped there.
func withRowLock(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "sqlite" {
		return tx
	}
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}

// EnsureCounters creates zeroed counter rows for every slot of the game.
// Existing rows are left untouched.
func EnsureCounters(tx *gorm.DB, gameID uint, slotCount int) error {
	for slot := 0; slot < slotCount; slot++ {
		counter := db.DemandCounter{GameID: gameID, SlotIndex: slot}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&counter).Error; err != nil {
			return fmt.Errorf("ensure counter game=%d slot=%d: %w", gameID, slot, err)
		}
	}
	return nil
}

// LockCounters fetches and exclusively locks the counters for the given slots.
// Slots are locked in ascending index order so two overlapping orders always
// acquire locks in the same sequence.
func LockCounters(tx *gorm.DB, gameID uint, slots []int) ([]db.DemandCounter, error) {
	ordered := append([]int(nil), slots...)
	sort.Ints(ordered)
	var counters []db.DemandCounter
	err := withRowLock(tx).
		Where("game_id = ? AND slot_index IN ?", gameID, ordered).
		Order("slot_index").
		Find(&counters).Error
	if err != nil {
		return nil, err
	}
	return counters, nil
}

// LockAllCounters fetches and exclusively locks every counter of the game.
func LockAllCounters(tx *gorm.DB, gameID uint) ([]db.DemandCounter, error) {
	var counters []db.DemandCounter
	err := withRowLock(tx).
		Where("game_id = ?", gameID).
		Order("slot_index").
		Find(&counters).Error
	if err != nil {
		return nil, err
	}
	return counters, nil
}

// ReadCounters fetches the game's counters without locking. Only usable for
// the game-wide average; priced slots must come from locked rows.
func ReadCounters(tx *gorm.DB, gameID uint) ([]db.DemandCounter, error) {
	var counters []db.DemandCounter
	err := tx.Where("game_id = ?", gameID).Order("slot_index").Find(&counters).Error
	if err != nil {
		return nil, err
	}
	return counters, nil
}

// Apply adds delta units to a locked counter row.
func Apply(tx *gorm.DB, counter *db.DemandCounter, delta int64) error {
	counter.Units += delta
	return tx.Model(&db.DemandCounter{}).
		Where("id = ?", counter.ID).
		Update("units", counter.Units).Error
}

// Average returns the mean units sold across the counters, rounded up.
// Ceiling keeps a single hot slot from pushing every other slot's offset
// negative by a fraction.
func Average(counters []db.DemandCounter) int64 {
	if len(counters) == 0 {
		return 0
	}
	var total int64
	for _, counter := range counters {
		total += counter.Units
	}
	n := int64(len(counters))
	return (total + n - 1) / n
}

// Offset is the slot's demand skew: units sold minus the game-wide average.
func Offset(counter db.DemandCounter, average int64) int64 {
	return counter.Units - average
}
