package market

import (
	"testing"

	"github.com/shopspring/decimal"

	"barstock/internal/db"
)

func testSlot() db.BeverageSlot {
	return db.BeverageSlot{
		DefaultPrice: decimal.NewFromInt(100),
		MinPrice:     decimal.NewFromInt(50),
		MaxPrice:     decimal.NewFromInt(300),
	}
}

func TestPriceForMonotonic(t *testing.T) {
	slot := testSlot()
	step := decimal.NewFromInt(5)

	previous := PriceFor(slot, -10, step)
	for offset := int64(-9); offset <= 10; offset++ {
		price := PriceFor(slot, offset, step)
		if price.LessThan(previous) {
			t.Fatalf("price decreased at offset %d: %s < %s", offset, price, previous)
		}
		previous = price
	}

	if got := PriceFor(slot, 0, step); !got.Equal(slot.DefaultPrice) {
		t.Fatalf("expected default price at zero offset, got %s", got)
	}
	if got := PriceFor(slot, 2, step); !got.Equal(decimal.NewFromInt(110)) {
		t.Fatalf("expected 110 at offset 2, got %s", got)
	}
}

func TestPriceForClamp(t *testing.T) {
	slot := testSlot()
	step := decimal.NewFromInt(5)

	if got := PriceFor(slot, 1000, step); !got.Equal(slot.MaxPrice) {
		t.Fatalf("expected clamp to max %s, got %s", slot.MaxPrice, got)
	}
	if got := PriceFor(slot, -1000, step); !got.Equal(slot.MinPrice) {
		t.Fatalf("expected clamp to min %s, got %s", slot.MinPrice, got)
	}
}
