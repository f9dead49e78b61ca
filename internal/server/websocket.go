package server

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"barstock/internal/broker"
	"barstock/internal/db"
	"barstock/internal/market"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

func (s *Server) handleGameWebsocket(c *gin.Context) {
	var params gameIDParam
	if !bindURI(c, &params) {
		return
	}
	var game db.Game
	if err := s.db.First(&game, params.GameID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "game not found"})
		return
	}
	user := currentUser(c)
	if !s.isParticipant(&game, user.ID) && !user.IsAdmin {
		c.JSON(http.StatusForbidden, gin.H{"error": "join the game before connecting"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	log.Printf("ws connected game_id=%d user_id=%d remote=%s", game.ID, user.ID, c.Request.RemoteAddr)
	session := newConnectionSession(conn, s.broker,
		broker.GameScope(game.ID),
		broker.UserInfo{ID: user.ID, Name: user.Name},
		s.heartbeatInterval(), s.heartbeatTimeout())
	session.Deliver(broker.PriceUpdate(game.ID, s.currentPrices(&game)))
	go session.run()
}

func (s *Server) handleAdminWebsocket(c *gin.Context) {
	user := currentUser(c)
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	log.Printf("ws connected admin user_id=%d remote=%s", user.ID, c.Request.RemoteAddr)
	session := newConnectionSession(conn, s.broker,
		broker.AdminScope,
		broker.UserInfo{ID: user.ID, Name: user.Name},
		s.heartbeatInterval(), s.heartbeatTimeout())
	go session.run()
}

func (s *Server) isParticipant(game *db.Game, userID uint) bool {
	if game.OwnerID == userID {
		return true
	}
	var count int64
	if err := s.db.Model(&db.Participant{}).
		Where("game_id = ? AND user_id = ?", game.ID, userID).
		Count(&count).Error; err != nil {
		return false
	}
	return count > 0
}

// currentPrices builds the greeting snapshot: each slot's most recent ledger
// price, defaulting to the configured price before the first tick.
func (s *Server) currentPrices(game *db.Game) market.TickResult {
	var slots []db.BeverageSlot
	if err := s.db.Where("game_id = ?", game.ID).Order("slot_index").Find(&slots).Error; err != nil {
		return market.TickResult{Status: s.engine.Status(game.ID)}
	}
	var changes []db.PriceChange
	_ = s.db.Where("game_id = ?", game.ID).Order("id DESC").Limit(len(slots)).Find(&changes).Error

	latest := make(map[int]db.PriceChange, len(changes))
	for _, change := range changes {
		if _, ok := latest[change.SlotIndex]; !ok {
			latest[change.SlotIndex] = change
		}
	}
	prices := make([]market.SlotPrice, 0, len(slots))
	for _, slot := range slots {
		price := slot.DefaultPrice
		if change, ok := latest[slot.SlotIndex]; ok {
			price = change.Price
		}
		prices = append(prices, market.SlotPrice{SlotIndex: slot.SlotIndex, Name: slot.Name, Price: price})
	}
	return market.TickResult{Status: s.engine.Status(game.ID), Prices: prices}
}
