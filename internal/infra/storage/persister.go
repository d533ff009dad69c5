package storage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/MRamiBalles/SnakeArcade/server/internal/events"
)

// EventLogPersister adapts an EventRepository to events.EventPersister
// so the in-memory ledger can write through to SQLite.
type EventLogPersister struct {
	repo    EventRepository
	timeout time.Duration
}

// NewEventLogPersister wraps repo. Each write gets its own timeout.
func NewEventLogPersister(repo EventRepository) *EventLogPersister {
	return &EventLogPersister{repo: repo, timeout: 5 * time.Second}
}

// Append stores a single ledger event.
func (p *EventLogPersister) Append(e events.GameEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()
	return p.repo.Append(ctx, toRecord(e))
}

func toRecord(e events.GameEvent) GameEvent {
	return GameEvent{
		ID:        e.ID,
		GameID:    e.GameID,
		SessionID: e.ActorID,
		Timestamp: e.Timestamp,
		EventType: string(e.Type),
		Tick:      e.Tick,
		Score:     e.Score,
		Payload:   payloadMap(e.Payload),
	}
}

// payloadMap flattens an arbitrary payload into a JSON object.
func payloadMap(payload interface{}) map[string]interface{} {
	switch p := payload.(type) {
	case nil:
		return map[string]interface{}{}
	case map[string]interface{}:
		return p
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return map[string]interface{}{"error": err.Error()}
	}
	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return map[string]interface{}{"value": payload}
	}
	return m
}

// ToLedgerEvent converts a stored event back into the ledger form.
func ToLedgerEvent(r GameEvent) events.GameEvent {
	return events.GameEvent{
		ID:        r.ID,
		Timestamp: r.Timestamp,
		Type:      events.EventType(r.EventType),
		GameID:    r.GameID,
		ActorID:   r.SessionID,
		Tick:      r.Tick,
		Score:     r.Score,
		Payload:   r.Payload,
	}
}
