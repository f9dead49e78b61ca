package market

import (
	"github.com/shopspring/decimal"

	"barstock/internal/db"
)

// PriceFor computes a slot's regular-market price from its demand offset.
//
// The curve is linear: default price plus step units of currency per unit of
// demand offset, clamped to the slot's [min, max]. Linear keeps the mapping
// monotonic in both directions and makes the step a single operator-tunable
// knob.
func PriceFor(slot db.BeverageSlot, offset int64, step decimal.Decimal) decimal.Decimal {
	price := slot.DefaultPrice.Add(step.Mul(decimal.NewFromInt(offset)))
	if price.LessThan(slot.MinPrice) {
		return slot.MinPrice
	}
	if price.GreaterThan(slot.MaxPrice) {
		return slot.MaxPrice
	}
	return price
}
