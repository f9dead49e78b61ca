package server

import (
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"barstock/internal/db"
	"barstock/internal/ledger"
)

type slotRequest struct {
	Name         string          `json:"name" binding:"required"`
	DefaultPrice decimal.Decimal `json:"default_price"`
	MinPrice     decimal.Decimal `json:"min_price"`
	MaxPrice     decimal.Decimal `json:"max_price"`
}

type createGameRequest struct {
	Name     string        `json:"name" binding:"required,gamename"`
	StartsAt time.Time     `json:"starts_at" binding:"required"`
	ClosesAt time.Time     `json:"closes_at" binding:"required"`
	Slots    []slotRequest `json:"slots" binding:"required,min=1"`
}

type joinGameRequest struct {
	JoinCode string `json:"join_code" binding:"required"`
}

type createUserRequest struct {
	Name string `json:"name" binding:"required,username"`
}

type gameIDParam struct {
	GameID uint `uri:"gameID" binding:"required"`
}

var createGameMessages = bindMessages{
	"Name":  {"gamename": "game name must be 1-80 characters"},
	"Slots": {"min": "at least one beverage slot is required"},
}

func (s *Server) handleCreateUser(c *gin.Context) {
	var req createUserRequest
	if !bindJSON(c, &req, bindMessages{"Name": {"username": "name must be 1-64 characters"}}, "invalid user") {
		return
	}
	user := db.User{Name: normalizeText(req.Name), Token: newUserToken()}
	if err := s.db.Create(&user).Error; err != nil {
		if isUniqueViolation(err) {
			c.JSON(http.StatusConflict, gin.H{"error": "name already taken"})
			return
		}
		log.Printf("create user failed error=%v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create user"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"user_id": user.ID,
		"name":    user.Name,
		"token":   user.Token,
	})
}

func (s *Server) handleCreateGame(c *gin.Context) {
	var req createGameRequest
	if !bindJSON(c, &req, createGameMessages, "invalid game") {
		return
	}
	if !req.ClosesAt.After(req.StartsAt) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "closes_at must be after starts_at"})
		return
	}
	if len(req.Slots) > maxSlotsPerGame {
		c.JSON(http.StatusBadRequest, gin.H{"error": "too many beverage slots"})
		return
	}
	for _, slot := range req.Slots {
		if slot.MinPrice.GreaterThan(slot.DefaultPrice) || slot.DefaultPrice.GreaterThan(slot.MaxPrice) {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "slot " + slot.Name + " requires min_price <= default_price <= max_price",
			})
			return
		}
	}

	user := currentUser(c)
	game := db.Game{
		OwnerID:   user.ID,
		Name:      normalizeText(req.Name),
		JoinCode:  newJoinCode(),
		StartsAt:  req.StartsAt.UTC(),
		ClosesAt:  req.ClosesAt.UTC(),
		SlotCount: len(req.Slots),
	}
	createOnce := func() error {
		return s.db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Create(&game).Error; err != nil {
				return err
			}
			slots := make([]db.BeverageSlot, 0, len(req.Slots))
			for i, slot := range req.Slots {
				slots = append(slots, db.BeverageSlot{
					GameID:       game.ID,
					SlotIndex:    i,
					Name:         normalizeText(slot.Name),
					DefaultPrice: slot.DefaultPrice,
					MinPrice:     slot.MinPrice,
					MaxPrice:     slot.MaxPrice,
				})
			}
			if err := tx.Create(&slots).Error; err != nil {
				return err
			}
			return ledger.EnsureCounters(tx, game.ID, game.SlotCount)
		})
	}
	var err error
	// Join codes can collide; a collision aborts the transaction, so retry
	// with a fresh code from the top.
	for attempt := 0; attempt < 3; attempt++ {
		if err = createOnce(); err == nil || !isUniqueViolation(err) {
			break
		}
		game.ID = 0
		game.JoinCode = newJoinCode()
	}
	if err != nil {
		log.Printf("create game failed user_id=%d error=%v", user.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create game"})
		return
	}

	log.Printf("game created game_id=%d join_code=%s slots=%d", game.ID, game.JoinCode, game.SlotCount)
	s.persistAudit(game.ID, &user.ID, "game_created", gin.H{"name": game.Name, "join_code": game.JoinCode})
	s.startScheduler(game)
	c.JSON(http.StatusCreated, gin.H{
		"game_id":   game.ID,
		"join_code": game.JoinCode,
		"starts_at": game.StartsAt,
		"closes_at": game.ClosesAt,
	})
}

func (s *Server) handleListGames(c *gin.Context) {
	var games []db.Game
	if err := s.db.Order("id").Find(&games).Error; err != nil {
		log.Printf("list games failed error=%v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list games"})
		return
	}
	now := time.Now()
	summaries := make([]gin.H, 0, len(games))
	for _, game := range games {
		summaries = append(summaries, gin.H{
			"game_id":   game.ID,
			"name":      game.Name,
			"lifecycle": game.Lifecycle(now),
			"starts_at": game.StartsAt,
			"closes_at": game.ClosesAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"games": summaries})
}

func (s *Server) handleGetGame(c *gin.Context) {
	var params gameIDParam
	if !bindURI(c, &params) {
		return
	}
	var game db.Game
	if err := s.db.Preload("Slots").First(&game, params.GameID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "game not found"})
		return
	}
	slots := make([]gin.H, 0, len(game.Slots))
	for _, slot := range game.Slots {
		slots = append(slots, gin.H{
			"slot_index":    slot.SlotIndex,
			"name":          slot.Name,
			"default_price": slot.DefaultPrice,
			"min_price":     slot.MinPrice,
			"max_price":     slot.MaxPrice,
		})
	}
	c.JSON(http.StatusOK, gin.H{
		"game_id":   game.ID,
		"name":      game.Name,
		"lifecycle": game.Lifecycle(time.Now()),
		"status":    s.engine.Status(game.ID),
		"starts_at": game.StartsAt,
		"closes_at": game.ClosesAt,
		"slots":     slots,
	})
}

func (s *Server) handleJoinGame(c *gin.Context) {
	var params gameIDParam
	if !bindURI(c, &params) {
		return
	}
	var req joinGameRequest
	if !bindJSON(c, &req, nil, "join_code is required") {
		return
	}
	var game db.Game
	if err := s.db.First(&game, params.GameID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "game not found"})
		return
	}
	if game.JoinCode != normalizeText(req.JoinCode) {
		c.JSON(http.StatusForbidden, gin.H{"error": "invalid join code"})
		return
	}
	user := currentUser(c)
	participant := db.Participant{GameID: game.ID, UserID: user.ID, JoinedAt: time.Now().UTC()}
	if err := s.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&participant).Error; err != nil {
		log.Printf("join game failed game_id=%d user_id=%d error=%v", game.ID, user.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to join game"})
		return
	}
	log.Printf("participant joined game_id=%d user_id=%d", game.ID, user.ID)
	s.persistAudit(game.ID, &user.ID, "participant_joined", gin.H{"user_name": user.Name})
	c.JSON(http.StatusOK, gin.H{"game_id": game.ID, "user_id": user.ID})
}
