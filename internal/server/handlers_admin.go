package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Administrators get an aggregate feed over the broker's query interface, not
// the per-game broadcasts.

func (s *Server) handleActiveGames(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"active_games": s.broker.ActiveGames()})
}

func (s *Server) handleConnectedUsers(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"users": s.broker.ConnectedUsers()})
}
