package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// allDifficulties is the filter value that disables difficulty filtering.
const allDifficulties = "all"

// ---------------------------------------------------------
// SQLiteScoreRepository
// ---------------------------------------------------------

// SQLiteScoreRepository implements ScoreRepository for SQLite.
type SQLiteScoreRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewSQLiteScoreRepository(db *sql.DB) *SQLiteScoreRepository {
	return &SQLiteScoreRepository{db: db, now: time.Now}
}

func (r *SQLiteScoreRepository) Save(ctx context.Context, score HighScore) (HighScore, error) {
	if score.Date.IsZero() {
		score.Date = r.now()
	}
	score.Date = score.Date.UTC()

	query := `INSERT INTO high_scores (player_name, score, difficulty, date) VALUES (?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, query, score.PlayerName, score.Score, score.Difficulty, score.Date)
	if err != nil {
		return HighScore{}, fmt.Errorf("failed to save score: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return HighScore{}, fmt.Errorf("failed to read score id: %w", err)
	}
	score.ID = id
	return score, nil
}

func (r *SQLiteScoreRepository) Top(ctx context.Context, difficulty string, limit int) ([]HighScore, error) {
	if limit <= 0 {
		limit = 10
	}

	query := `SELECT id, player_name, score, difficulty, date FROM high_scores`
	args := []interface{}{}
	if difficulty != "" && difficulty != allDifficulties {
		query += ` WHERE difficulty = ?`
		args = append(args, difficulty)
	}
	query += ` ORDER BY score DESC, date DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query scores: %w", err)
	}
	defer rows.Close()

	scores := make([]HighScore, 0, limit)
	for rows.Next() {
		var s HighScore
		if err := rows.Scan(&s.ID, &s.PlayerName, &s.Score, &s.Difficulty, &s.Date); err != nil {
			return nil, err
		}
		scores = append(scores, s)
	}
	return scores, rows.Err()
}

// ---------------------------------------------------------
// SQLiteEventRepository
// ---------------------------------------------------------

// SQLiteEventRepository implements EventRepository for SQLite.
type SQLiteEventRepository struct {
	db *sql.DB
}

func NewSQLiteEventRepository(db *sql.DB) *SQLiteEventRepository {
	return &SQLiteEventRepository{db: db}
}

func (r *SQLiteEventRepository) Append(ctx context.Context, event GameEvent) error {
	payloadBytes, err := json.Marshal(event.Payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	query := `
		INSERT INTO events (id, game_id, session_id, timestamp, event_type, tick, score, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = r.db.ExecContext(ctx, query,
		event.ID, event.GameID, event.SessionID, event.Timestamp.UTC(), event.EventType,
		event.Tick, event.Score, string(payloadBytes),
	)
	if err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}
	return nil
}

func (r *SQLiteEventRepository) getMany(ctx context.Context, query string, args ...interface{}) ([]GameEvent, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []GameEvent
	for rows.Next() {
		var e GameEvent
		var payloadStr string
		err := rows.Scan(
			&e.ID, &e.GameID, &e.SessionID, &e.Timestamp, &e.EventType,
			&e.Tick, &e.Score, &payloadStr,
		)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(payloadStr), &e.Payload); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func (r *SQLiteEventRepository) GetByGameID(ctx context.Context, gameID string) ([]GameEvent, error) {
	query := `SELECT id, game_id, session_id, timestamp, event_type, tick, score, payload FROM events WHERE game_id = ? ORDER BY tick ASC, timestamp ASC`
	return r.getMany(ctx, query, gameID)
}

func (r *SQLiteEventRepository) GetByEventType(ctx context.Context, eventType string) ([]GameEvent, error) {
	query := `SELECT id, game_id, session_id, timestamp, event_type, tick, score, payload FROM events WHERE event_type = ? ORDER BY timestamp ASC`
	return r.getMany(ctx, query, eventType)
}

// ---------------------------------------------------------
// SQLiteSettingsRepository
// ---------------------------------------------------------

// SQLiteSettingsRepository implements SettingsRepository for SQLite.
// It also satisfies cache.KVClient, so the best score can live in the same file as the leaderboard.
type SQLiteSettingsRepository struct {
	db *sql.DB
}

func NewSQLiteSettingsRepository(db *sql.DB) *SQLiteSettingsRepository {
	return &SQLiteSettingsRepository{db: db}
}

func (r *SQLiteSettingsRepository) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := r.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to read setting %q: %w", key, err)
	}
	return value, true, nil
}

func (r *SQLiteSettingsRepository) Set(ctx context.Context, key, value string) error {
	query := `
		INSERT INTO settings (key, value, last_updated) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value=excluded.value,
			last_updated=excluded.last_updated
	`
	if _, err := r.db.ExecContext(ctx, query, key, value, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to write setting %q: %w", key, err)
	}
	return nil
}
