// Package network - replay.go
// Replay endpoint: JSON export of a finished game's event history.
package network

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/MRamiBalles/SnakeArcade/server/internal/events"
	"github.com/MRamiBalles/SnakeArcade/server/internal/infra/storage"
	"github.com/MRamiBalles/SnakeArcade/server/internal/platform/logger"
)

// ReplayHandler provides the replay API.
// Games still in memory are served from the EventLog; older ones come from the repository.
type ReplayHandler struct {
	eventLog *events.EventLog
	repo     storage.EventRepository
	logger   *logger.Logger
}

// NewReplayHandler creates a new replay handler. repo may be nil.
func NewReplayHandler(el *events.EventLog, repo storage.EventRepository, log *logger.Logger) *ReplayHandler {
	if log == nil {
		log = logger.Discard()
	}
	return &ReplayHandler{
		eventLog: el,
		repo:     repo,
		logger:   log,
	}
}

// ReplayEvent is an event formatted for viewing.
type ReplayEvent struct {
	ID        string      `json:"id"`
	Timestamp string      `json:"timestamp"`
	Tick      int64       `json:"tick"`
	Type      string      `json:"type"`
	Score     int         `json:"score"`
	Summary   string      `json:"summary"`
	Details   interface{} `json:"details,omitempty"`
}

// GameSummary condenses a game's events.
type GameSummary struct {
	FinalScore      int    `json:"final_score"`
	Ticks           int64  `json:"ticks"`
	FoodEaten       int    `json:"food_eaten"`
	PowerUpsTaken   int    `json:"power_ups_taken"`
	Pauses          int    `json:"pauses"`
	Finished        bool   `json:"finished"`
	Reason          string `json:"reason,omitempty"`
	BeatBestScore   bool   `json:"beat_best_score"`
	ScoreSubmitted  bool   `json:"score_submitted"`
	StartDifficulty string `json:"start_difficulty,omitempty"`
}

// ReplayResponse is the API response for a replay.
type ReplayResponse struct {
	GameID      string        `json:"game_id"`
	TotalEvents int           `json:"total_events"`
	FilteredBy  string        `json:"filtered_by,omitempty"`
	GeneratedAt string        `json:"generated_at"`
	Summary     GameSummary   `json:"summary"`
	Events      []ReplayEvent `json:"events"`
}

// HandleReplay returns the replay for a game.
// GET /api/replay?game_id=XXX&type=FOOD_EATEN
func (rh *ReplayHandler) HandleReplay(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		rh.jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	gameID := r.URL.Query().Get("game_id")
	if gameID == "" {
		rh.jsonError(w, "Missing game_id", http.StatusBadRequest)
		return
	}
	eventType := r.URL.Query().Get("type")

	gameEvents, err := rh.load(r.Context(), gameID)
	if err != nil {
		rh.logger.Errorf("Replay lookup for %s failed: %v", gameID, err)
		rh.jsonError(w, "Failed to load game", http.StatusInternalServerError)
		return
	}
	if len(gameEvents) == 0 {
		rh.jsonError(w, "Game not found", http.StatusNotFound)
		return
	}

	replayEvents := make([]ReplayEvent, 0, len(gameEvents))
	filterDesc := ""
	for _, e := range gameEvents {
		if eventType != "" {
			filterDesc = "type " + eventType
			if string(e.Type) != eventType {
				continue
			}
		}
		replayEvents = append(replayEvents, convertToReplayEvent(e))
	}

	response := ReplayResponse{
		GameID:      gameID,
		TotalEvents: len(replayEvents),
		FilteredBy:  filterDesc,
		GeneratedAt: time.Now().Format(time.RFC3339),
		Summary:     Summarize(gameEvents),
		Events:      replayEvents,
	}

	rh.logger.Event("REPLAY", "VIEWER", "GameID:"+gameID+" Events:"+strconv.Itoa(len(replayEvents)))

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// HandleStats returns aggregate statistics over the events still held in memory.
// GET /api/replay/stats
func (rh *ReplayHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		rh.jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	allEvents := rh.eventLog.Replay()

	stats := map[string]int{
		"total_events":      len(allEvents),
		"games_started":     0,
		"games_over":        0,
		"food_eaten":        0,
		"power_ups_taken":   0,
		"best_scores":       0,
		"scores_submitted":  0,
		"difficulty_change": 0,
	}
	highest := 0

	for _, e := range allEvents {
		switch e.Type {
		case events.EventTypeGameStarted:
			stats["games_started"]++
		case events.EventTypeGameOver:
			stats["games_over"]++
			if e.Score > highest {
				highest = e.Score
			}
		case events.EventTypeFoodEaten:
			stats["food_eaten"]++
		case events.EventTypePowerUpActivated:
			stats["power_ups_taken"]++
		case events.EventTypeBestScoreBeaten:
			stats["best_scores"]++
		case events.EventTypeScoreSubmitted:
			stats["scores_submitted"]++
		case events.EventTypeDifficultyChanged:
			stats["difficulty_change"]++
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"generated_at":   time.Now().Format(time.RFC3339),
		"highest_finish": highest,
		"stats":          stats,
	})
}

// RegisterRoutes sets up the replay API routes.
func (rh *ReplayHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/replay", rh.HandleReplay)
	mux.HandleFunc("/api/replay/stats", rh.HandleStats)
}

// load prefers the EventLog, but a game whose start has already been evicted
// from memory is read back from the repository in full.
func (rh *ReplayHandler) load(ctx context.Context, gameID string) ([]events.GameEvent, error) {
	inMemory := rh.eventLog.GetByGame(gameID)
	if rh.repo == nil || (len(inMemory) > 0 && inMemory[0].Type == events.EventTypeGameStarted) {
		return inMemory, nil
	}
	stored, err := rh.repo.GetByGameID(ctx, gameID)
	if err != nil {
		if len(inMemory) > 0 {
			rh.logger.Warn("Replay for " + gameID + " is partial: " + err.Error())
			return inMemory, nil
		}
		return nil, err
	}
	// Write-through may still be catching up on the newest events.
	if len(stored) < len(inMemory) {
		return inMemory, nil
	}
	out := make([]events.GameEvent, 0, len(stored))
	for _, s := range stored {
		out = append(out, storage.ToLedgerEvent(s))
	}
	return out, nil
}

// Summarize folds a game's events into a summary.
func Summarize(gameEvents []events.GameEvent) GameSummary {
	var s GameSummary
	for _, e := range gameEvents {
		if e.Tick > s.Ticks {
			s.Ticks = e.Tick
		}
		if e.Score > s.FinalScore {
			s.FinalScore = e.Score
		}
		switch e.Type {
		case events.EventTypeGameStarted:
			if s.StartDifficulty == "" {
				s.StartDifficulty = payloadString(e.Payload, "difficulty")
			}
		case events.EventTypeFoodEaten:
			s.FoodEaten++
		case events.EventTypePowerUpActivated:
			s.PowerUpsTaken++
		case events.EventTypeGamePaused:
			s.Pauses++
		case events.EventTypeBestScoreBeaten:
			s.BeatBestScore = true
		case events.EventTypeScoreSubmitted:
			s.ScoreSubmitted = true
		case events.EventTypeGameOver:
			s.Finished = true
			s.FinalScore = e.Score
			s.Reason = payloadString(e.Payload, "reason")
		}
	}
	return s
}

func payloadString(payload interface{}, key string) string {
	m, ok := payload.(map[string]interface{})
	if !ok {
		return ""
	}
	v, _ := m[key].(string)
	return v
}

// convertToReplayEvent transforms a ledger event to the public format.
func convertToReplayEvent(e events.GameEvent) ReplayEvent {
	return ReplayEvent{
		ID:        e.ID,
		Timestamp: e.Timestamp.Format("15:04:05.000"),
		Tick:      e.Tick,
		Type:      string(e.Type),
		Score:     e.Score,
		Summary:   summarizeEvent(e),
		Details:   e.Payload,
	}
}

// summarizeEvent creates a human-readable summary.
func summarizeEvent(e events.GameEvent) string {
	switch e.Type {
	case events.EventTypeGameStarted:
		return "Game started."
	case events.EventTypeGameOver:
		if reason := payloadString(e.Payload, "reason"); reason != "" {
			return "Game over: " + reason + "."
		}
		return "Game over."
	case events.EventTypeGamePaused:
		return "Paused."
	case events.EventTypeGameResumed:
		return "Resumed."
	case events.EventTypeFoodEaten:
		return "Ate food, score " + strconv.Itoa(e.Score) + "."
	case events.EventTypePowerUpSpawned:
		return "A " + payloadString(e.Payload, "kind") + " power-up appeared."
	case events.EventTypePowerUpActivated:
		return "Picked up " + payloadString(e.Payload, "kind") + "."
	case events.EventTypePowerUpExpired:
		return payloadString(e.Payload, "kind") + " wore off."
	case events.EventTypeDifficultyChanged:
		return "Difficulty set to " + payloadString(e.Payload, "difficulty") + "."
	case events.EventTypeBestScoreBeaten:
		return "New best score."
	case events.EventTypeScoreSubmitted:
		return "Score submitted to the leaderboard."
	default:
		return string(e.Type)
	}
}

// jsonError sends an error response.
func (rh *ReplayHandler) jsonError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
