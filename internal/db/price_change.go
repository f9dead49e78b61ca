package db

import (
	"time"

	"github.com/shopspring/decimal"
)

// PriceChange is the append-only price ledger: one row per slot per tick.
// Rows are never updated or deleted.
type PriceChange struct {
	ID        uint            `gorm:"primaryKey"`
	GameID    uint            `gorm:"index;not null"`
	SlotIndex int             `gorm:"not null"`
	Price     decimal.Decimal `gorm:"type:numeric(10,2);not null"`
	Status    string          `gorm:"size:16;not null"`
	CreatedAt time.Time       `gorm:"index;not null"`
}
