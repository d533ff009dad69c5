// Package storage provides the persistence layer for the game server.
// This package implements the repository pattern to keep the domain pure.
package storage

import (
	"context"
	"time"
)

// HighScore is one row of the shared leaderboard.
type HighScore struct {
	ID         int64     `json:"id" db:"id"`
	PlayerName string    `json:"player_name" db:"player_name"`
	Score      int       `json:"score" db:"score"`
	Difficulty string    `json:"difficulty" db:"difficulty"`
	Date       time.Time `json:"date" db:"date"`
}

// ScoreRepository defines the interface for high-score persistence.
type ScoreRepository interface {
	// Save inserts a score and returns it with its ID and date filled in.
	Save(ctx context.Context, score HighScore) (HighScore, error)

	// Top returns the best scores, highest first and newest first on ties.
	// An empty difficulty (or "all") means every difficulty.
	Top(ctx context.Context, difficulty string, limit int) ([]HighScore, error)
}

// GameEvent mirrors the domain event structure for persistence.
// The domain package should NOT import this; use interfaces instead.
type GameEvent struct {
	ID        string                 `json:"id" db:"id"`
	GameID    string                 `json:"game_id" db:"game_id"`
	SessionID string                 `json:"session_id" db:"session_id"`
	Timestamp time.Time              `json:"timestamp" db:"timestamp"`
	EventType string                 `json:"event_type" db:"event_type"`
	Tick      int64                  `json:"tick" db:"tick"`
	Score     int                    `json:"score" db:"score"`
	Payload   map[string]interface{} `json:"payload" db:"payload"`
}

// EventRepository defines the interface for event persistence.
type EventRepository interface {
	// Append adds a new event to the immutable ledger.
	Append(ctx context.Context, event GameEvent) error

	// GetByGameID retrieves all events for a specific game (for replay).
	GetByGameID(ctx context.Context, gameID string) ([]GameEvent, error)

	// GetByEventType retrieves all events of a specific type.
	GetByEventType(ctx context.Context, eventType string) ([]GameEvent, error)
}

// SettingsRepository is a tiny key/value table, used for the best score.
type SettingsRepository interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}
