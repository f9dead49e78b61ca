package server

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"barstock/internal/broker"
	"barstock/internal/db"
	"barstock/internal/orders"
)

type purchaseRequest struct {
	// Items maps slot index to quantity.
	Items map[int]int `json:"items" binding:"required"`
}

func (s *Server) handlePurchase(c *gin.Context) {
	var params gameIDParam
	if !bindURI(c, &params) {
		return
	}
	var req purchaseRequest
	if !bindJSON(c, &req, nil, "items are required") {
		return
	}
	for _, qty := range req.Items {
		if qty > maxOrderQuantity {
			c.JSON(http.StatusBadRequest, gin.H{"error": "quantity exceeds the per-order limit"})
			return
		}
	}

	user := currentUser(c)
	order, err := s.processor.Purchase(c.Request.Context(), user.ID, params.GameID, req.Items)
	if err != nil {
		s.writeOrderError(c, params.GameID, user.ID, err)
		return
	}

	items := make([]broker.SaleItem, 0, len(order.Transactions))
	responseItems := make([]gin.H, 0, len(order.Transactions))
	for _, txn := range order.Transactions {
		items = append(items, broker.SaleItem{
			SlotIndex: txn.SlotIndex,
			Quantity:  txn.Quantity,
			UnitPrice: txn.UnitPrice,
		})
		responseItems = append(responseItems, gin.H{
			"slot_index": txn.SlotIndex,
			"quantity":   txn.Quantity,
			"unit_price": txn.UnitPrice,
		})
	}
	log.Printf("order placed game_id=%d user_id=%d order_ref=%s items=%d",
		params.GameID, user.ID, order.Ref, len(items))
	s.persistAudit(params.GameID, &user.ID, "order_placed", gin.H{"order_ref": order.Ref, "items": items})
	s.broker.Broadcast(broker.GameScope(params.GameID), broker.SaleOccurred(broker.SalePayload{
		GameID:   params.GameID,
		OrderRef: order.Ref,
		UserName: user.Name,
		Items:    items,
	}))

	c.JSON(http.StatusCreated, gin.H{
		"order_ref": order.Ref,
		"game_id":   params.GameID,
		"items":     responseItems,
	})
}

func (s *Server) writeOrderError(c *gin.Context, gameID, userID uint, err error) {
	switch {
	case orders.IsBadRequest(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, orders.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "you are not a participant of this game"})
	case errors.Is(err, orders.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "game not found"})
	default:
		log.Printf("purchase failed game_id=%d user_id=%d error=%v", gameID, userID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "order could not be processed"})
	}
}

func (s *Server) handleOrderHistory(c *gin.Context) {
	var params gameIDParam
	if !bindURI(c, &params) {
		return
	}
	user := currentUser(c)
	history, err := s.processor.OrderHistory(c.Request.Context(), user.ID, params.GameID)
	if err != nil {
		log.Printf("order history failed game_id=%d user_id=%d error=%v", params.GameID, user.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load order history"})
		return
	}
	result := make([]gin.H, 0, len(history))
	for _, order := range history {
		items := make([]gin.H, 0, len(order.Transactions))
		for _, txn := range order.Transactions {
			items = append(items, gin.H{
				"slot_index": txn.SlotIndex,
				"quantity":   txn.Quantity,
				"unit_price": txn.UnitPrice,
			})
		}
		result = append(result, gin.H{
			"order_ref":  order.Ref,
			"created_at": order.CreatedAt,
			"items":      items,
		})
	}
	c.JSON(http.StatusOK, gin.H{"orders": result})
}

func (s *Server) handlePriceHistory(c *gin.Context) {
	var params gameIDParam
	if !bindURI(c, &params) {
		return
	}
	var game db.Game
	if err := s.db.First(&game, params.GameID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "game not found"})
		return
	}
	history, err := s.processor.PriceHistory(c.Request.Context(), params.GameID)
	if err != nil {
		log.Printf("price history failed game_id=%d error=%v", params.GameID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load price history"})
		return
	}
	result := make([]gin.H, 0, len(history))
	for _, change := range history {
		result = append(result, gin.H{
			"slot_index": change.SlotIndex,
			"price":      change.Price,
			"status":     change.Status,
			"created_at": change.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"prices": result})
}
