// Package cache keeps the player's best score in a small key/value store.
// This is the server-side stand-in for the browser's local storage entry.
package cache

import (
	"context"
	"fmt"
	"strconv"
	"sync"
)

// DefaultBestScoreKey is the fixed name the best score lives under.
const DefaultBestScoreKey = "highScore"

// KVClient is an interface for key/value operations.
// This allows for easy mocking in tests.
type KVClient interface {
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Set(ctx context.Context, key, value string) error
}

// BestScore mirrors a single integer in the KV store.
// Reads are served from memory after Load; writes go through.
type BestScore struct {
	client KVClient
	key    string

	mu     sync.Mutex
	best   int
	loaded bool
}

// NewBestScore creates a best-score mirror stored under key.
func NewBestScore(client KVClient, key string) *BestScore {
	if key == "" {
		key = DefaultBestScoreKey
	}
	return &BestScore{client: client, key: key}
}

// Load reads the stored value. A missing key reads as zero.
func (b *BestScore) Load(ctx context.Context) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.loadLocked(ctx)
}

func (b *BestScore) loadLocked(ctx context.Context) (int, error) {
	if b.loaded {
		return b.best, nil
	}
	raw, found, err := b.client.Get(ctx, b.key)
	if err != nil {
		return 0, fmt.Errorf("failed to read best score: %w", err)
	}
	if found {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return 0, fmt.Errorf("failed to parse best score %q: %w", raw, err)
		}
		b.best = n
	}
	b.loaded = true
	return b.best, nil
}

// Offer records score if it beats the stored best and reports whether it did.
func (b *BestScore) Offer(ctx context.Context, score int) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	best, err := b.loadLocked(ctx)
	if err != nil {
		return false, err
	}
	if score <= best {
		return false, nil
	}
	if err := b.client.Set(ctx, b.key, strconv.Itoa(score)); err != nil {
		return false, fmt.Errorf("failed to write best score: %w", err)
	}
	b.best = score
	return true, nil
}

// Current returns the last known best without touching the store.
func (b *BestScore) Current() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.best
}

// MemoryKV is an in-process KVClient.
type MemoryKV struct {
	mu   sync.RWMutex
	data map[string]string
}

// NewMemoryKV creates an empty in-memory store.
func NewMemoryKV() *MemoryKV {
	return &MemoryKV{data: make(map[string]string)}
}

func (m *MemoryKV) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *MemoryKV) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}
