package db

import "time"

const (
	GameNotStarted = "not-started"
	GameInProgress = "in-progress"
	GameFinished   = "finished"
)

type Game struct {
	ID        uint      `gorm:"primaryKey"`
	OwnerID   uint      `gorm:"index;not null"`
	Name      string    `gorm:"size:80;not null"`
	JoinCode  string    `gorm:"size:12;uniqueIndex;not null"`
	StartsAt  time.Time `gorm:"not null"`
	ClosesAt  time.Time `gorm:"not null"`
	SlotCount int       `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
	Slots     []BeverageSlot
	Events    []Event
}

// Lifecycle derives the game state from wall-clock time.
func (g *Game) Lifecycle(now time.Time) string {
	switch {
	case now.Before(g.StartsAt):
		return GameNotStarted
	case now.Before(g.ClosesAt):
		return GameInProgress
	default:
		return GameFinished
	}
}

type Participant struct {
	ID        uint      `gorm:"primaryKey"`
	GameID    uint      `gorm:"index;not null;uniqueIndex:idx_participants_game_user"`
	UserID    uint      `gorm:"index;not null;uniqueIndex:idx_participants_game_user"`
	JoinedAt  time.Time `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}
