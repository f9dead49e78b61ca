package server

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"barstock/internal/broker"
	"barstock/internal/config"
	"barstock/internal/market"
	"barstock/internal/orders"
)

type Server struct {
	db        *gorm.DB
	cfg       config.Config
	broker    *broker.Broker
	engine    *market.Engine
	processor *orders.Processor

	schedulersMu sync.Mutex
	schedulers   map[uint]struct{}
}

func New(conn *gorm.DB, cfg config.Config) *Server {
	engine := market.NewEngine(conn, cfg)
	return &Server{
		db:         conn,
		cfg:        cfg,
		broker:     broker.New(),
		engine:     engine,
		processor:  orders.NewProcessor(conn, engine, cfg),
		schedulers: make(map[uint]struct{}),
	}
}

// Engine exposes the price engine for operator tooling and tests.
func (s *Server) Engine() *market.Engine { return s.engine }

// Broker exposes the notification broker for tests.
func (s *Server) Broker() *broker.Broker { return s.broker }

func (s *Server) Handler() http.Handler {
	registerValidators()
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	router.POST("/api/users", s.handleCreateUser)

	api := router.Group("/api", s.requireUser)
	api.POST("/games", s.handleCreateGame)
	api.GET("/games", s.handleListGames)
	api.GET("/games/:gameID", s.handleGetGame)
	api.POST("/games/:gameID/join", s.handleJoinGame)
	api.POST("/games/:gameID/orders", s.handlePurchase)
	api.GET("/games/:gameID/orders", s.handleOrderHistory)
	api.GET("/games/:gameID/price-history", s.handlePriceHistory)

	admin := router.Group("/api/admin", s.requireUser, s.requireAdmin)
	admin.GET("/active-games", s.handleActiveGames)
	admin.GET("/users", s.handleConnectedUsers)

	router.GET("/ws/games/:gameID", s.requireUser, s.handleGameWebsocket)
	router.GET("/ws/admin", s.requireUser, s.requireAdmin, s.handleAdminWebsocket)

	return router
}

func (s *Server) heartbeatInterval() time.Duration {
	return time.Duration(s.cfg.HeartbeatIntervalSeconds) * time.Second
}

func (s *Server) heartbeatTimeout() time.Duration {
	return time.Duration(s.cfg.HeartbeatTimeoutSeconds) * time.Second
}
