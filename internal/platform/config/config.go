// Package config holds the server's tunables: buffer sizes, rate limits and game options.
// Presets cover the common deployments; environment variables override individual fields.
package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"
)

// Config holds tuned parameters for the server and its sessions.
type Config struct {
	// Listen address and storage
	ListenAddr string
	DBPath     string

	// Channel buffer sizes
	ClientSendBuffer int // Per WebSocket
	CommandBuffer    int // Per session
	BroadcastBuffer  int // Hub fan-out

	// Event ledger
	EventHistory      int // Events kept in memory; older ones are served from SQLite
	EventPersistQueue int // Write-through backlog before events are dropped

	// Rate limiting
	MaxMessagesPerSecond int // Per client
	MaxClients           int

	// Game options
	BoardWidth  int // Cells
	BoardHeight int
	Wrap        bool
	PowerUps    bool
	Accelerate  bool

	SubmitTimeout time.Duration
	TuneInterval  time.Duration // How often metrics are analysed; 0 disables
}

// DefaultConfig returns sensible defaults for production.
func DefaultConfig() *Config {
	numCPU := runtime.NumCPU()

	return &Config{
		ListenAddr: ":8080",
		DBPath:     "data/snake.db",

		ClientSendBuffer: 64,
		CommandBuffer:    32,
		BroadcastBuffer:  256,

		EventHistory:      10000,
		EventPersistQueue: 1024,

		MaxMessagesPerSecond: 30,          // Well above human key repeat
		MaxClients:           numCPU * 64, // One session goroutine each

		BoardWidth:  20,
		BoardHeight: 20,
		PowerUps:    true,
		Accelerate:  true,

		SubmitTimeout: 10 * time.Second,
		TuneInterval:  time.Minute,
	}
}

// StressTestConfig returns aggressive settings for bot load tests.
func StressTestConfig() *Config {
	c := DefaultConfig()
	c.ClientSendBuffer = 256
	c.CommandBuffer = 128
	c.BroadcastBuffer = 1024
	c.EventHistory = 50000
	c.EventPersistQueue = 8192
	c.MaxMessagesPerSecond = 500
	c.MaxClients = runtime.NumCPU() * 512
	c.TuneInterval = 10 * time.Second
	return c
}

// LowResourceConfig returns minimal settings for development.
func LowResourceConfig() *Config {
	c := DefaultConfig()
	c.ClientSendBuffer = 8
	c.CommandBuffer = 8
	c.BroadcastBuffer = 16
	c.EventHistory = 1000
	c.EventPersistQueue = 128
	c.MaxMessagesPerSecond = 10
	c.MaxClients = 20
	c.TuneInterval = 0
	return c
}

// Preset returns the named configuration: "default", "stress" or "low".
func Preset(name string) (*Config, error) {
	switch strings.ToLower(name) {
	case "", "default":
		return DefaultConfig(), nil
	case "stress":
		return StressTestConfig(), nil
	case "low":
		return LowResourceConfig(), nil
	}
	return nil, fmt.Errorf("unknown config preset %q", name)
}

// ApplyEnv overrides fields from SNAKE_* environment variables.
func (c *Config) ApplyEnv() error {
	return c.applyEnv(os.LookupEnv)
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup("SNAKE_ADDR"); ok && v != "" {
		c.ListenAddr = v
	}
	if v, ok := lookup("SNAKE_DB"); ok && v != "" {
		c.DBPath = v
	}

	bools := []struct {
		key string
		dst *bool
	}{
		{"SNAKE_WRAP", &c.Wrap},
		{"SNAKE_POWERUPS", &c.PowerUps},
		{"SNAKE_ACCELERATE", &c.Accelerate},
	}
	for _, b := range bools {
		v, ok := lookup(b.key)
		if !ok || v == "" {
			continue
		}
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", b.key, err)
		}
		*b.dst = parsed
	}

	ints := []struct {
		key string
		dst *int
	}{
		{"SNAKE_MAX_CLIENTS", &c.MaxClients},
		{"SNAKE_EVENT_HISTORY", &c.EventHistory},
	}
	for _, n := range ints {
		v, ok := lookup(n.key)
		if !ok || v == "" {
			continue
		}
		parsed, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", n.key, err)
		}
		*n.dst = parsed
	}
	return nil
}

// Validate rejects configurations the server cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.ListenAddr == "" {
		errs = append(errs, errors.New("listen address is empty"))
	}
	if c.BoardWidth < 2 || c.BoardHeight < 2 {
		errs = append(errs, fmt.Errorf("board %dx%d is too small", c.BoardWidth, c.BoardHeight))
	}
	if c.ClientSendBuffer <= 0 || c.CommandBuffer <= 0 || c.BroadcastBuffer <= 0 {
		errs = append(errs, errors.New("buffer sizes must be positive"))
	}
	if c.MaxMessagesPerSecond <= 0 {
		errs = append(errs, errors.New("message rate limit must be positive"))
	}
	if c.MaxClients <= 0 {
		errs = append(errs, errors.New("client limit must be positive"))
	}
	if c.EventHistory <= 0 || c.EventPersistQueue <= 0 {
		errs = append(errs, errors.New("event history and persist queue must be positive"))
	}
	return errors.Join(errs...)
}

// Recommendations provides suggestions based on observed metrics.
type Recommendations struct {
	IncreaseSendBuffer bool
	CheckStorage       bool
	Notes              []string
}

// Analyze compares a metrics snapshot with the previous one and returns tuning recommendations.
// Counters are judged by how much they grew since prev, which may be nil on the first pass.
func Analyze(prev, cur map[string]interface{}) *Recommendations {
	rec := &Recommendations{
		Notes: make([]string, 0),
	}

	// Check tick latency
	if tick, ok := cur["tick"].(map[string]interface{}); ok {
		if maxLat, ok := tick["max_latency_ms"].(float64); ok && maxLat > 10 {
			rec.Notes = append(rec.Notes, "Tick latency exceeds 10ms - the host is overloaded")
		}
	}

	// Check score persistence
	if counterDelta(prev, cur, "scores", "submit_errors") > 0 {
		rec.CheckStorage = true
		rec.Notes = append(rec.Notes, "Score submissions are failing - check the database")
	}

	// Check WebSocket backpressure
	if counterDelta(prev, cur, "websocket", "frames_dropped") > 0 {
		rec.IncreaseSendBuffer = true
		rec.Notes = append(rec.Notes, "Frames dropped for slow clients - increase client send buffer")
	}

	return rec
}

func counterDelta(prev, cur map[string]interface{}, section, key string) int64 {
	return counter(cur, section, key) - counter(prev, section, key)
}

func counter(snapshot map[string]interface{}, section, key string) int64 {
	m, ok := snapshot[section].(map[string]interface{})
	if !ok {
		return 0
	}
	v, _ := m[key].(int64)
	return v
}

// ApplyRecommendations returns a copy of c adjusted by rec. The result applies to new connections.
func ApplyRecommendations(c *Config, rec *Recommendations) *Config {
	next := *c
	if rec.IncreaseSendBuffer && next.ClientSendBuffer < 1024 {
		next.ClientSendBuffer *= 2
	}
	return &next
}
