package db

import (
	"time"

	"github.com/shopspring/decimal"
)

type BeverageSlot struct {
	ID           uint            `gorm:"primaryKey"`
	GameID       uint            `gorm:"index;not null;uniqueIndex:idx_slots_game_index"`
	SlotIndex    int             `gorm:"not null;uniqueIndex:idx_slots_game_index"`
	Name         string          `gorm:"size:80;not null"`
	DefaultPrice decimal.Decimal `gorm:"type:numeric(10,2);not null"`
	MinPrice     decimal.Decimal `gorm:"type:numeric(10,2);not null"`
	MaxPrice     decimal.Decimal `gorm:"type:numeric(10,2);not null"`
	CreatedAt    time.Time       `gorm:"not null"`
	UpdatedAt    time.Time       `gorm:"not null"`
}

type DemandCounter struct {
	ID        uint      `gorm:"primaryKey"`
	GameID    uint      `gorm:"index;not null;uniqueIndex:idx_counters_game_slot"`
	SlotIndex int       `gorm:"not null;uniqueIndex:idx_counters_game_slot"`
	Units     int64     `gorm:"not null;default:0"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}
