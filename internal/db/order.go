package db

import (
	"time"

	"github.com/shopspring/decimal"
)

type Order struct {
	ID           uint      `gorm:"primaryKey"`
	Ref          string    `gorm:"size:36;uniqueIndex;not null"`
	UserID       uint      `gorm:"index;not null"`
	GameID       uint      `gorm:"index;not null"`
	CreatedAt    time.Time `gorm:"not null"`
	UpdatedAt    time.Time `gorm:"not null"`
	Transactions []Transaction
}

// Transaction is one purchased slot within an order. Immutable once committed.
type Transaction struct {
	ID        uint            `gorm:"primaryKey"`
	OrderID   uint            `gorm:"index;not null"`
	UserID    uint            `gorm:"index;not null"`
	GameID    uint            `gorm:"index;not null"`
	SlotIndex int             `gorm:"not null"`
	Quantity  int             `gorm:"not null"`
	UnitPrice decimal.Decimal `gorm:"type:numeric(10,2);not null"`
	CreatedAt time.Time       `gorm:"not null"`
}
