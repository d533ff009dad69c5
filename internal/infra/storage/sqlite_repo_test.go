package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/MRamiBalles/SnakeArcade/server/internal/events"
)

func openTestDB(t *testing.T) *SQLiteScoreRepository {
	t.Helper()
	db, err := InitSQLite(filepath.Join(t.TempDir(), "data", "snake.db"))
	if err != nil {
		t.Fatalf("InitSQLite failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewSQLiteScoreRepository(db)
}

func TestScoreRepositoryOrdering(t *testing.T) {
	repo := openTestDB(t)
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	rows := []HighScore{
		{PlayerName: "ana", Score: 50, Difficulty: "easy", Date: base},
		{PlayerName: "bo", Score: 90, Difficulty: "hard", Date: base.Add(time.Minute)},
		{PlayerName: "cy", Score: 50, Difficulty: "easy", Date: base.Add(2 * time.Minute)},
		{PlayerName: "di", Score: 10, Difficulty: "medium", Date: base.Add(3 * time.Minute)},
	}
	for _, row := range rows {
		saved, err := repo.Save(ctx, row)
		if err != nil {
			t.Fatalf("Save failed: %v", err)
		}
		if saved.ID == 0 {
			t.Errorf("Expected an ID for %s", row.PlayerName)
		}
	}

	all, err := repo.Top(ctx, "all", 10)
	if err != nil {
		t.Fatalf("Top failed: %v", err)
	}
	want := []string{"bo", "cy", "ana", "di"}
	if len(all) != len(want) {
		t.Fatalf("Expected %d scores, got %d", len(want), len(all))
	}
	for i, name := range want {
		if all[i].PlayerName != name {
			t.Errorf("Position %d: expected %s, got %s", i, name, all[i].PlayerName)
		}
	}

	easy, err := repo.Top(ctx, "easy", 10)
	if err != nil {
		t.Fatalf("Top(easy) failed: %v", err)
	}
	if len(easy) != 2 {
		t.Errorf("Expected 2 easy scores, got %d", len(easy))
	}

	limited, _ := repo.Top(ctx, "", 1)
	if len(limited) != 1 || limited[0].Score != 90 {
		t.Errorf("Expected only the best score, got %+v", limited)
	}
}

func TestSettingsRepository(t *testing.T) {
	db, err := InitSQLite(filepath.Join(t.TempDir(), "snake.db"))
	if err != nil {
		t.Fatalf("InitSQLite failed: %v", err)
	}
	defer db.Close()

	repo := NewSQLiteSettingsRepository(db)
	ctx := context.Background()

	if _, ok, err := repo.Get(ctx, "highScore"); err != nil || ok {
		t.Fatalf("Expected missing key, got ok=%v err=%v", ok, err)
	}
	if err := repo.Set(ctx, "highScore", "40"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := repo.Set(ctx, "highScore", "70"); err != nil {
		t.Fatalf("Overwrite failed: %v", err)
	}
	v, ok, err := repo.Get(ctx, "highScore")
	if err != nil || !ok || v != "70" {
		t.Errorf("Expected 70, got %q ok=%v err=%v", v, ok, err)
	}
}

func TestEventPersisterRoundTrip(t *testing.T) {
	db, err := InitSQLite(filepath.Join(t.TempDir(), "snake.db"))
	if err != nil {
		t.Fatalf("InitSQLite failed: %v", err)
	}
	defer db.Close()

	repo := NewSQLiteEventRepository(db)
	p := NewEventLogPersister(repo)

	ev := events.GameEvent{
		ID:        "e1",
		Timestamp: time.Now(),
		Type:      events.EventTypeFoodEaten,
		GameID:    "G1",
		ActorID:   "S1",
		Tick:      7,
		Score:     20,
		Payload:   map[string]interface{}{"x": 3},
	}
	if err := p.Append(ev); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	stored, err := repo.GetByGameID(context.Background(), "G1")
	if err != nil {
		t.Fatalf("GetByGameID failed: %v", err)
	}
	if len(stored) != 1 {
		t.Fatalf("Expected 1 event, got %d", len(stored))
	}
	back := ToLedgerEvent(stored[0])
	if back.Type != events.EventTypeFoodEaten || back.ActorID != "S1" || back.Tick != 7 || back.Score != 20 {
		t.Errorf("Round trip lost fields: %+v", back)
	}

	byType, _ := repo.GetByEventType(context.Background(), string(events.EventTypeFoodEaten))
	if len(byType) != 1 {
		t.Errorf("Expected 1 FOOD_EATEN event, got %d", len(byType))
	}
}
