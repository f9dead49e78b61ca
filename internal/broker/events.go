package broker

import (
	"github.com/shopspring/decimal"

	"barstock/internal/market"
)

const (
	EventPriceUpdate            = "price_update"
	EventSaleOccurred           = "sale_occurred"
	EventConnectionCountChanged = "connection_count_changed"
)

// Event is the wire envelope for every broadcast.
type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

type PricePayload struct {
	GameID uint               `json:"game_id"`
	Status market.Status      `json:"status"`
	Prices []market.SlotPrice `json:"prices"`
}

type SaleItem struct {
	SlotIndex int             `json:"slot_index"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

type SalePayload struct {
	GameID   uint       `json:"game_id"`
	OrderRef string     `json:"order_ref"`
	UserName string     `json:"user_name"`
	Items    []SaleItem `json:"items"`
}

type CountPayload struct {
	Count int `json:"count"`
}

func PriceUpdate(gameID uint, result market.TickResult) Event {
	return Event{Type: EventPriceUpdate, Payload: PricePayload{
		GameID: gameID,
		Status: result.Status,
		Prices: result.Prices,
	}}
}

func SaleOccurred(payload SalePayload) Event {
	return Event{Type: EventSaleOccurred, Payload: payload}
}

func ConnectionCountChanged(count int) Event {
	return Event{Type: EventConnectionCountChanged, Payload: CountPayload{Count: count}}
}
