package server

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"barstock/internal/db"
)

const userContextKey = "barstock.user"

// requestToken pulls the bearer token from the Authorization header, falling
// back to the token query parameter for websocket clients that cannot set
// headers.
func requestToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	return strings.TrimSpace(c.Query("token"))
}

func (s *Server) authenticate(c *gin.Context) (*db.User, error) {
	token := requestToken(c)
	if token == "" {
		return nil, errors.New("authentication required")
	}
	var user db.User
	if err := s.db.Where("token = ?", token).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New("invalid token")
		}
		return nil, err
	}
	if subtle.ConstantTimeCompare([]byte(token), []byte(user.Token)) != 1 {
		return nil, errors.New("invalid token")
	}
	return &user, nil
}

func (s *Server) requireUser(c *gin.Context) {
	user, err := s.authenticate(c)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}
	c.Set(userContextKey, user)
	c.Next()
}

func (s *Server) requireAdmin(c *gin.Context) {
	if !currentUser(c).IsAdmin {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "administrator access required"})
		return
	}
	c.Next()
}

func currentUser(c *gin.Context) *db.User {
	user, _ := c.MustGet(userContextKey).(*db.User)
	return user
}
