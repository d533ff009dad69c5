// Package scores implements the shared high-score list.
// Service serves the HTTP API and accepts in-process submissions from sessions;
// Client talks to a remote Service over HTTP.
package scores

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/MRamiBalles/SnakeArcade/server/internal/domain/rules"
	"github.com/MRamiBalles/SnakeArcade/server/internal/engine"
	"github.com/MRamiBalles/SnakeArcade/server/internal/infra/storage"
	"github.com/MRamiBalles/SnakeArcade/server/internal/platform/logger"
	"github.com/MRamiBalles/SnakeArcade/server/internal/platform/metrics"
)

const (
	DefaultPlayerName   = "Anonymous"
	MaxPlayerNameLength = 50
	TopLimit            = 10
	DateLayout          = "02/01/2006 15:04"
	AllDifficulties     = "all"
	savedMessage        = "Score saved successfully"
	maxRequestBodyBytes = 4096
)

var (
	ErrInvalidDifficulty = errors.New("invalid difficulty")
	ErrNegativeScore     = errors.New("score must not be negative")
)

// Entry is one leaderboard row as clients see it.
type Entry struct {
	PlayerName string `json:"player_name"`
	Score      int    `json:"score"`
	Difficulty string `json:"difficulty"`
	Date       string `json:"date"`
}

// SaveResponse is returned by the save endpoint.
type SaveResponse struct {
	Success   bool    `json:"success"`
	Message   string  `json:"message"`
	TopScores []Entry `json:"top_scores,omitempty"`
}

// ListResponse is returned by the high-scores endpoint.
type ListResponse struct {
	Success bool    `json:"success"`
	Message string  `json:"message,omitempty"`
	Scores  []Entry `json:"scores"`
}

// Announcer is told about the refreshed leaderboard after every save.
type Announcer interface {
	AnnounceLeaderboard(entries []Entry)
}

// Service stores and lists high scores.
type Service struct {
	repo   storage.ScoreRepository
	logger *logger.Logger

	mu        sync.RWMutex
	announcer Announcer
}

// NewService creates a score service backed by repo.
func NewService(repo storage.ScoreRepository, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Discard()
	}
	return &Service{repo: repo, logger: log}
}

// SetAnnouncer registers who hears about leaderboard changes.
func (s *Service) SetAnnouncer(a Announcer) {
	s.mu.Lock()
	s.announcer = a
	s.mu.Unlock()
}

// Save validates and stores a score, then returns the overall top list.
func (s *Service) Save(ctx context.Context, sub engine.ScoreSubmission) ([]Entry, error) {
	row, err := normalize(sub)
	if err != nil {
		return nil, err
	}
	if _, err := s.repo.Save(ctx, row); err != nil {
		return nil, fmt.Errorf("failed to save score: %w", err)
	}

	top, err := s.Top(ctx, AllDifficulties)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	a := s.announcer
	s.mu.RUnlock()
	if a != nil {
		a.AnnounceLeaderboard(top)
	}

	s.logger.Event("SCORE_SAVED", row.PlayerName, fmt.Sprintf("%d on %s", row.Score, row.Difficulty))
	return top, nil
}

// Top returns the best TopLimit scores, optionally for one difficulty.
func (s *Service) Top(ctx context.Context, difficulty string) ([]Entry, error) {
	difficulty = strings.ToLower(strings.TrimSpace(difficulty))
	if difficulty == "" {
		difficulty = AllDifficulties
	}
	if difficulty != AllDifficulties {
		if _, ok := rules.ParseDifficulty(difficulty); !ok {
			return nil, fmt.Errorf("%w: %q", ErrInvalidDifficulty, difficulty)
		}
	}

	rows, err := s.repo.Top(ctx, difficulty, TopLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to list scores: %w", err)
	}
	metrics.Get().RecordLeaderboardQuery()

	entries := make([]Entry, 0, len(rows))
	for _, r := range rows {
		entries = append(entries, Entry{
			PlayerName: r.PlayerName,
			Score:      r.Score,
			Difficulty: r.Difficulty,
			Date:       r.Date.Local().Format(DateLayout),
		})
	}
	return entries, nil
}

// Submit implements engine.Submitter for sessions running in this process.
func (s *Service) Submit(ctx context.Context, sub engine.ScoreSubmission) (string, error) {
	if _, err := s.Save(ctx, sub); err != nil {
		return "", err
	}
	return savedMessage, nil
}

// normalize applies the defaults and limits every stored score obeys.
func normalize(sub engine.ScoreSubmission) (storage.HighScore, error) {
	name := strings.TrimSpace(sub.PlayerName)
	if name == "" {
		name = DefaultPlayerName
	}
	if utf8.RuneCountInString(name) > MaxPlayerNameLength {
		name = string([]rune(name)[:MaxPlayerNameLength])
	}

	diff := rules.Difficulty(strings.ToLower(strings.TrimSpace(string(sub.Difficulty))))
	if diff == "" {
		diff = rules.Medium
	}
	if _, ok := rules.ParseDifficulty(string(diff)); !ok {
		return storage.HighScore{}, fmt.Errorf("%w: %q", ErrInvalidDifficulty, sub.Difficulty)
	}

	if sub.Score < 0 {
		return storage.HighScore{}, ErrNegativeScore
	}

	return storage.HighScore{PlayerName: name, Score: sub.Score, Difficulty: string(diff)}, nil
}

// HandleSaveScore stores a score posted by a client.
// POST /api/save-score/ {"player_name": "...", "score": 120, "difficulty": "hard"}
func (s *Service) HandleSaveScore(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var sub engine.ScoreSubmission
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)).Decode(&sub); err != nil {
		s.jsonError(w, "Invalid JSON body: "+err.Error(), http.StatusBadRequest)
		return
	}

	top, err := s.Save(r.Context(), sub)
	if err != nil {
		metrics.Get().RecordScoreSubmission(err)
		status := http.StatusInternalServerError
		if errors.Is(err, ErrInvalidDifficulty) || errors.Is(err, ErrNegativeScore) {
			status = http.StatusBadRequest
		} else {
			s.logger.Errorf("Score save failed: %v", err)
		}
		s.jsonError(w, err.Error(), status)
		return
	}
	metrics.Get().RecordScoreSubmission(nil)

	writeJSON(w, http.StatusOK, SaveResponse{Success: true, Message: savedMessage, TopScores: top})
}

// HandleHighScores lists the leaderboard.
// GET /api/high-scores/?difficulty=all|easy|medium|hard
func (s *Service) HandleHighScores(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	top, err := s.Top(r.Context(), r.URL.Query().Get("difficulty"))
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, ErrInvalidDifficulty) {
			status = http.StatusBadRequest
		} else {
			s.logger.Errorf("Score listing failed: %v", err)
		}
		s.jsonError(w, err.Error(), status)
		return
	}

	writeJSON(w, http.StatusOK, ListResponse{Success: true, Scores: top})
}

// RegisterRoutes sets up the score API routes, including the legacy unprefixed paths.
func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/save-score/", s.HandleSaveScore)
	mux.HandleFunc("/save-score", s.HandleSaveScore)
	mux.HandleFunc("/api/high-scores/", s.HandleHighScores)
	mux.HandleFunc("/high-scores", s.HandleHighScores)
}

// jsonError sends an error response.
func (s *Service) jsonError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, status, SaveResponse{Success: false, Message: message})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
