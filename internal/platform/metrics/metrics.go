// Package metrics provides observability for the game server.
package metrics

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// Collector gathers performance metrics.
type Collector struct {
	// Tick metrics
	TickCount      int64
	TickLatencySum int64 // nanoseconds
	TickLatencyMax int64
	LastTickTime   time.Time

	// Gameplay
	GamesStarted  int64
	GamesOver     int64
	FoodEaten     int64
	PowerUpsTaken int64

	// Score service
	ScoresSubmitted    int64
	ScoreSubmitErrors  int64
	LeaderboardQueries int64

	// WebSocket metrics
	WSConnectionsActive int64
	WSMessagesIn        int64
	WSMessagesOut       int64
	WSFramesDropped     int64
	WSErrors            int64

	// System
	StartTime time.Time
	mu        sync.RWMutex
}

// Global collector instance
var collector = &Collector{
	StartTime: time.Now(),
}

// Get returns the global collector.
func Get() *Collector {
	return collector
}

// RecordTick records a tick cycle completion.
func (c *Collector) RecordTick(latency time.Duration) {
	atomic.AddInt64(&c.TickCount, 1)
	atomic.AddInt64(&c.TickLatencySum, int64(latency))

	// Update max (non-atomic but acceptable for metrics)
	if int64(latency) > atomic.LoadInt64(&c.TickLatencyMax) {
		atomic.StoreInt64(&c.TickLatencyMax, int64(latency))
	}

	c.mu.Lock()
	c.LastTickTime = time.Now()
	c.mu.Unlock()
}

// RecordGameStarted counts a new game.
func (c *Collector) RecordGameStarted() {
	atomic.AddInt64(&c.GamesStarted, 1)
}

// RecordGameOver counts a finished game.
func (c *Collector) RecordGameOver() {
	atomic.AddInt64(&c.GamesOver, 1)
}

// RecordFood counts a piece of food eaten.
func (c *Collector) RecordFood() {
	atomic.AddInt64(&c.FoodEaten, 1)
}

// RecordPowerUp counts a collected power-up.
func (c *Collector) RecordPowerUp() {
	atomic.AddInt64(&c.PowerUpsTaken, 1)
}

// RecordScoreSubmission records a high-score save attempt.
func (c *Collector) RecordScoreSubmission(err error) {
	if err != nil {
		atomic.AddInt64(&c.ScoreSubmitErrors, 1)
		return
	}
	atomic.AddInt64(&c.ScoresSubmitted, 1)
}

// RecordLeaderboardQuery counts a high-score listing.
func (c *Collector) RecordLeaderboardQuery() {
	atomic.AddInt64(&c.LeaderboardQueries, 1)
}

// RecordWSConnection records WebSocket connection changes.
func (c *Collector) RecordWSConnection(delta int64) {
	atomic.AddInt64(&c.WSConnectionsActive, delta)
}

// RecordWSMessage records WebSocket messages.
func (c *Collector) RecordWSMessage(incoming bool) {
	if incoming {
		atomic.AddInt64(&c.WSMessagesIn, 1)
	} else {
		atomic.AddInt64(&c.WSMessagesOut, 1)
	}
}

// RecordWSDrop records a frame dropped because a client fell behind.
func (c *Collector) RecordWSDrop() {
	atomic.AddInt64(&c.WSFramesDropped, 1)
}

// RecordWSError records a WebSocket error.
func (c *Collector) RecordWSError() {
	atomic.AddInt64(&c.WSErrors, 1)
}

// Snapshot returns current metrics as a map.
func (c *Collector) Snapshot() map[string]interface{} {
	c.mu.RLock()
	defer c.mu.RUnlock()

	tickCount := atomic.LoadInt64(&c.TickCount)

	var tickAvg float64
	if tickCount > 0 {
		tickAvg = float64(atomic.LoadInt64(&c.TickLatencySum)) / float64(tickCount) / 1e6 // ms
	}

	lastTick := ""
	if !c.LastTickTime.IsZero() {
		lastTick = c.LastTickTime.Format(time.RFC3339)
	}

	return map[string]interface{}{
		"uptime_seconds": time.Since(c.StartTime).Seconds(),

		"tick": map[string]interface{}{
			"count":          tickCount,
			"avg_latency_ms": tickAvg,
			"max_latency_ms": float64(atomic.LoadInt64(&c.TickLatencyMax)) / 1e6,
			"last_tick":      lastTick,
		},

		"games": map[string]interface{}{
			"started":         atomic.LoadInt64(&c.GamesStarted),
			"over":            atomic.LoadInt64(&c.GamesOver),
			"food_eaten":      atomic.LoadInt64(&c.FoodEaten),
			"power_ups_taken": atomic.LoadInt64(&c.PowerUpsTaken),
		},

		"scores": map[string]interface{}{
			"submitted":           atomic.LoadInt64(&c.ScoresSubmitted),
			"submit_errors":       atomic.LoadInt64(&c.ScoreSubmitErrors),
			"leaderboard_queries": atomic.LoadInt64(&c.LeaderboardQueries),
		},

		"websocket": map[string]interface{}{
			"active_connections": atomic.LoadInt64(&c.WSConnectionsActive),
			"messages_in":        atomic.LoadInt64(&c.WSMessagesIn),
			"messages_out":       atomic.LoadInt64(&c.WSMessagesOut),
			"frames_dropped":     atomic.LoadInt64(&c.WSFramesDropped),
			"errors":             atomic.LoadInt64(&c.WSErrors),
		},
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-cache")

		snapshot := collector.Snapshot()
		json.NewEncoder(w).Encode(snapshot)
	}
}

// PrometheusHandler returns metrics in Prometheus format.
func PrometheusHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")

		c := collector

		// Tick metrics
		fmt.Fprintf(w, "# HELP snake_tick_count Total tick cycles\n")
		fmt.Fprintf(w, "# TYPE snake_tick_count counter\n")
		fmt.Fprintf(w, "snake_tick_count %d\n\n", atomic.LoadInt64(&c.TickCount))

		fmt.Fprintf(w, "# HELP snake_tick_latency_max_ms Maximum tick latency\n")
		fmt.Fprintf(w, "# TYPE snake_tick_latency_max_ms gauge\n")
		fmt.Fprintf(w, "snake_tick_latency_max_ms %.2f\n\n", float64(atomic.LoadInt64(&c.TickLatencyMax))/1e6)

		// Gameplay
		fmt.Fprintf(w, "# HELP snake_games_total Games by lifecycle stage\n")
		fmt.Fprintf(w, "# TYPE snake_games_total counter\n")
		fmt.Fprintf(w, "snake_games_total{stage=\"started\"} %d\n", atomic.LoadInt64(&c.GamesStarted))
		fmt.Fprintf(w, "snake_games_total{stage=\"over\"} %d\n\n", atomic.LoadInt64(&c.GamesOver))

		fmt.Fprintf(w, "# HELP snake_food_eaten_total Food eaten across all games\n")
		fmt.Fprintf(w, "# TYPE snake_food_eaten_total counter\n")
		fmt.Fprintf(w, "snake_food_eaten_total %d\n\n", atomic.LoadInt64(&c.FoodEaten))

		fmt.Fprintf(w, "# HELP snake_power_ups_total Power-ups collected\n")
		fmt.Fprintf(w, "# TYPE snake_power_ups_total counter\n")
		fmt.Fprintf(w, "snake_power_ups_total %d\n\n", atomic.LoadInt64(&c.PowerUpsTaken))

		// Score service
		fmt.Fprintf(w, "# HELP snake_scores_submitted_total Score submissions by result\n")
		fmt.Fprintf(w, "# TYPE snake_scores_submitted_total counter\n")
		fmt.Fprintf(w, "snake_scores_submitted_total{result=\"ok\"} %d\n", atomic.LoadInt64(&c.ScoresSubmitted))
		fmt.Fprintf(w, "snake_scores_submitted_total{result=\"error\"} %d\n\n", atomic.LoadInt64(&c.ScoreSubmitErrors))

		// WebSocket metrics
		fmt.Fprintf(w, "# HELP snake_ws_connections Active WebSocket connections\n")
		fmt.Fprintf(w, "# TYPE snake_ws_connections gauge\n")
		fmt.Fprintf(w, "snake_ws_connections %d\n\n", atomic.LoadInt64(&c.WSConnectionsActive))

		fmt.Fprintf(w, "# HELP snake_ws_messages_total Total WebSocket messages\n")
		fmt.Fprintf(w, "# TYPE snake_ws_messages_total counter\n")
		fmt.Fprintf(w, "snake_ws_messages_total{direction=\"in\"} %d\n", atomic.LoadInt64(&c.WSMessagesIn))
		fmt.Fprintf(w, "snake_ws_messages_total{direction=\"out\"} %d\n\n", atomic.LoadInt64(&c.WSMessagesOut))

		fmt.Fprintf(w, "# HELP snake_ws_frames_dropped_total Frames dropped for slow clients\n")
		fmt.Fprintf(w, "# TYPE snake_ws_frames_dropped_total counter\n")
		fmt.Fprintf(w, "snake_ws_frames_dropped_total %d\n", atomic.LoadInt64(&c.WSFramesDropped))
	}
}
