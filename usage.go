package main

import (
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Usage is one row in the request ledger. Conversation text is never
// persisted, only token counts and request metadata.
type Usage struct {
	gorm.Model
	UserID           string `gorm:"index"`
	Endpoint         string
	ModelName        string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

func openDB(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(&Usage{}); err != nil {
		return nil, err
	}

	return db, nil
}

// recordUsage writes a ledger row. Failures are logged and swallowed, the
// ledger must never fail a request.
func (s *Server) recordUsage(userID, endpoint, model string, prompt, completion int) {
	if s.db == nil {
		return
	}

	row := Usage{
		UserID:           userID,
		Endpoint:         endpoint,
		ModelName:        model,
		PromptTokens:     prompt,
		CompletionTokens: completion,
		TotalTokens:      prompt + completion,
	}

	if err := s.db.Create(&row).Error; err != nil {
		Log.WithField("error", err).Warn("failed to record usage")
	}
}

// usageSince sums token usage per user for rows created after the cutoff.
func (s *Server) usageSince(cutoff time.Time) (map[string]int, error) {
	if s.db == nil {
		return map[string]int{}, nil
	}

	var rows []Usage
	if err := s.db.Where("created_at > ?", cutoff).Find(&rows).Error; err != nil {
		return nil, err
	}

	totals := make(map[string]int, len(rows))
	for _, row := range rows {
		totals[row.UserID] += row.TotalTokens
	}

	return totals, nil
}
