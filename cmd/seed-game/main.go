package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"barstock/internal/config"
	"barstock/internal/db"
	"barstock/internal/ledger"
)

type slotRecord struct {
	Name         string
	DefaultPrice decimal.Decimal
	MinPrice     decimal.Decimal
	MaxPrice     decimal.Decimal
}

func main() {
	filePath := flag.String("file", "slots.csv", "path to beverage slots csv (name,default,min,max)")
	gameName := flag.String("name", "Party Night", "game name")
	owner := flag.String("owner", "barkeeper", "owner user name")
	hours := flag.Int("hours", 6, "game duration in hours")
	flag.Parse()

	if err := config.LoadDotEnv(".env"); err != nil {
		log.Printf("failed to load .env: %v", err)
	}

	conn, err := db.Open()
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}
	if err := db.Migrate(conn); err != nil {
		log.Fatalf("database migration failed: %v", err)
	}

	slots, err := readSlots(*filePath)
	if err != nil {
		log.Fatalf("failed to read slots: %v", err)
	}
	if len(slots) == 0 {
		log.Fatal("slots csv is empty")
	}

	user, err := ensureOwner(conn, *owner)
	if err != nil {
		log.Fatalf("failed to ensure owner: %v", err)
	}

	now := time.Now().UTC()
	game := db.Game{
		OwnerID:   user.ID,
		Name:      *gameName,
		JoinCode:  newJoinCode(),
		StartsAt:  now,
		ClosesAt:  now.Add(time.Duration(*hours) * time.Hour),
		SlotCount: len(slots),
	}
	err = conn.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&game).Error; err != nil {
			return err
		}
		for i, record := range slots {
			slot := db.BeverageSlot{
				GameID:       game.ID,
				SlotIndex:    i,
				Name:         record.Name,
				DefaultPrice: record.DefaultPrice,
				MinPrice:     record.MinPrice,
				MaxPrice:     record.MaxPrice,
			}
			if err := tx.Create(&slot).Error; err != nil {
				return err
			}
		}
		return ledger.EnsureCounters(tx, game.ID, game.SlotCount)
	})
	if err != nil {
		log.Fatalf("failed to seed game: %v", err)
	}

	log.Printf("seeded game_id=%d join_code=%s slots=%d owner_token=%s",
		game.ID, game.JoinCode, game.SlotCount, user.Token)
}

func readSlots(path string) ([]slotRecord, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	rows, err := csv.NewReader(file).ReadAll()
	if err != nil {
		return nil, err
	}
	records := make([]slotRecord, 0, len(rows))
	for i, row := range rows {
		if len(row) != 4 {
			return nil, fmt.Errorf("row %d: expected 4 columns, got %d", i+1, len(row))
		}
		record := slotRecord{Name: row[0]}
		if record.DefaultPrice, err = decimal.NewFromString(row[1]); err != nil {
			return nil, fmt.Errorf("row %d: default price: %w", i+1, err)
		}
		if record.MinPrice, err = decimal.NewFromString(row[2]); err != nil {
			return nil, fmt.Errorf("row %d: min price: %w", i+1, err)
		}
		if record.MaxPrice, err = decimal.NewFromString(row[3]); err != nil {
			return nil, fmt.Errorf("row %d: max price: %w", i+1, err)
		}
		if record.MinPrice.GreaterThan(record.DefaultPrice) || record.DefaultPrice.GreaterThan(record.MaxPrice) {
			return nil, fmt.Errorf("row %d: requires min <= default <= max", i+1)
		}
		records = append(records, record)
	}
	return records, nil
}

func ensureOwner(conn *gorm.DB, name string) (*db.User, error) {
	var user db.User
	err := conn.Where("name = ?", name).First(&user).Error
	if err == nil {
		return &user, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, err
	}
	user = db.User{Name: name, Token: newToken()}
	if err := conn.Create(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}
