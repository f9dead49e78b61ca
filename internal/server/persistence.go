package server

import (
	"encoding/json"
	"errors"
	"log"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/datatypes"

	"barstock/internal/db"
)

// persistAudit appends an audit event row. Audit failures are logged, never
// surfaced: the audit trail is best-effort and must not fail the operation
// that produced it.
func (s *Server) persistAudit(gameID uint, userID *uint, eventType string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("audit marshal failed game_id=%d type=%s error=%v", gameID, eventType, err)
		return
	}
	record := db.Event{
		GameID:  gameID,
		UserID:  userID,
		Type:    eventType,
		Payload: datatypes.JSON(data),
	}
	if err := s.db.Create(&record).Error; err != nil {
		log.Printf("audit write failed game_id=%d type=%s error=%v", gameID, eventType, err)
	}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	// sqlite surfaces constraint failures as plain strings.
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
