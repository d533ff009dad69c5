// Package events provides the append-only ledger of game events.
// Sessions write to it; the replay API and the websocket hub read from it.
package events

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventType defines the category of a game event.
type EventType string

const (
	EventTypeGameStarted       EventType = "GAME_STARTED"
	EventTypeGameOver          EventType = "GAME_OVER"
	EventTypeGamePaused        EventType = "GAME_PAUSED"
	EventTypeGameResumed       EventType = "GAME_RESUMED"
	EventTypeFoodEaten         EventType = "FOOD_EATEN"
	EventTypePowerUpSpawned    EventType = "POWERUP_SPAWNED"
	EventTypePowerUpActivated  EventType = "POWERUP_ACTIVATED"
	EventTypePowerUpExpired    EventType = "POWERUP_EXPIRED"
	EventTypeDifficultyChanged EventType = "DIFFICULTY_CHANGED"
	EventTypeBestScoreBeaten   EventType = "BEST_SCORE_BEATEN"
	EventTypeScoreSubmitted    EventType = "SCORE_SUBMITTED"
)

// GameEvent represents an immutable record of something that happened in a game.
type GameEvent struct {
	ID        string      `json:"id"`
	Timestamp time.Time   `json:"timestamp"`
	Type      EventType   `json:"type"`
	GameID    string      `json:"game_id"`
	ActorID   string      `json:"actor_id"` // Session that produced it
	Tick      int64       `json:"tick"`
	Score     int         `json:"score"`
	Payload   interface{} `json:"payload,omitempty"`
}

// EventPersister defines how an event is durably stored.
type EventPersister interface {
	Append(event GameEvent) error
}

// DefaultPersistQueue is the write-through backlog used when none is configured.
const DefaultPersistQueue = 1024

// ErrPersistQueueFull is reported when the writer falls so far behind that an event is not persisted.
var ErrPersistQueueFull = errors.New("event persist queue full")

// Option configures an EventLog.
type Option func(*EventLog)

// WithMaxEvents caps the in-memory history. The oldest events are evicted first; 0 keeps everything.
func WithMaxEvents(n int) Option {
	return func(el *EventLog) {
		if n > 0 {
			el.maxEvents = n
		}
	}
}

// WithPersistQueue sets how many events may wait for the persister.
func WithPersistQueue(n int) Option {
	return func(el *EventLog) {
		if n > 0 {
			el.queueSize = n
		}
	}
}

// EventLog is the in-memory log of recent game events.
// When a persister is set every event is written through to it, in order, by a single writer.
// Offsets handed out by Since count every event ever appended, evicted or not.
type EventLog struct {
	mu        sync.RWMutex
	events    []GameEvent
	evicted   int
	maxEvents int
	persister EventPersister
	onError   func(error)

	queueSize  int
	queue      chan GameEvent
	writerDone chan struct{}
	closed     bool
}

// NewEventLog creates a new event log with an optional persister.
func NewEventLog(persister EventPersister, opts ...Option) *EventLog {
	el := &EventLog{
		events:    make([]GameEvent, 0),
		persister: persister,
		queueSize: DefaultPersistQueue,
	}
	for _, opt := range opts {
		opt(el)
	}
	if persister != nil {
		el.queue = make(chan GameEvent, el.queueSize)
		el.writerDone = make(chan struct{})
		go el.writeLoop()
	}
	return el
}

// OnPersistError registers a callback for failed write-throughs.
func (el *EventLog) OnPersistError(fn func(error)) {
	el.mu.Lock()
	el.onError = fn
	el.mu.Unlock()
}

// Append adds a new event to the log. Missing ID and Timestamp are filled in.
// It never waits on the persister; the tick loop calls it.
func (el *EventLog) Append(event GameEvent) GameEvent {
	if event.ID == "" {
		event.ID = GenerateEventID()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	el.mu.Lock()
	el.events = append(el.events, event)
	if el.maxEvents > 0 && len(el.events) > el.maxEvents {
		drop := len(el.events) - el.maxEvents
		el.events = el.events[drop:]
		el.evicted += drop
	}
	dropped := false
	if el.queue != nil && !el.closed {
		select {
		case el.queue <- event:
		default:
			dropped = true
		}
	}
	el.mu.Unlock()

	if dropped {
		el.reportError(fmt.Errorf("%w: %s %s", ErrPersistQueueFull, event.Type, event.ID))
	}
	return event
}

// Close flushes pending write-throughs and stops the writer. Later appends stay in memory only.
func (el *EventLog) Close() {
	el.mu.Lock()
	if el.closed || el.queue == nil {
		el.closed = true
		el.mu.Unlock()
		return
	}
	el.closed = true
	close(el.queue)
	el.mu.Unlock()

	<-el.writerDone
}

func (el *EventLog) writeLoop() {
	defer close(el.writerDone)
	for e := range el.queue {
		if err := el.persister.Append(e); err != nil {
			el.reportError(err)
		}
	}
}

func (el *EventLog) reportError(err error) {
	el.mu.RLock()
	onError := el.onError
	el.mu.RUnlock()
	if onError != nil {
		onError(err)
	}
}

// GetByGame returns all events of one game in order.
func (el *EventLog) GetByGame(gameID string) []GameEvent {
	el.mu.RLock()
	defer el.mu.RUnlock()

	var result []GameEvent
	for _, e := range el.events {
		if e.GameID == gameID {
			result = append(result, e)
		}
	}
	return result
}

// GetByType returns all events of one type in order.
func (el *EventLog) GetByType(t EventType) []GameEvent {
	el.mu.RLock()
	defer el.mu.RUnlock()

	var result []GameEvent
	for _, e := range el.events {
		if e.Type == t {
			result = append(result, e)
		}
	}
	return result
}

// Since returns the retained events appended after the first offset events, and the new offset.
// Events evicted before the caller caught up are skipped.
func (el *EventLog) Since(offset int) ([]GameEvent, int) {
	el.mu.RLock()
	defer el.mu.RUnlock()

	end := el.evicted + len(el.events)
	if offset >= end {
		return nil, end
	}
	start := offset - el.evicted
	if start < 0 {
		start = 0
	}
	out := make([]GameEvent, len(el.events)-start)
	copy(out, el.events[start:])
	return out, end
}

// Replay returns a copy of the retained history.
func (el *EventLog) Replay() []GameEvent {
	el.mu.RLock()
	defer el.mu.RUnlock()
	out := make([]GameEvent, len(el.events))
	copy(out, el.events)
	return out
}

// Len returns the number of events held in memory.
func (el *EventLog) Len() int {
	el.mu.RLock()
	defer el.mu.RUnlock()
	return len(el.events)
}

// GenerateEventID creates a unique event identifier.
func GenerateEventID() string {
	return uuid.NewString()
}
