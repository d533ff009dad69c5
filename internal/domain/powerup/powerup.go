// Package powerup defines the temporary rule modifiers that can spawn on the board.
// This package is PURE and must NOT import any infrastructure packages.
package powerup

import "time"

// Kind represents the kind of power-up.
type Kind string

const (
	KindSpeed  Kind = "speed"  // Halves the tick interval
	KindDouble Kind = "double" // Doubles food score
)

// Definition provides metadata about a power-up kind.
type Definition struct {
	Name           string
	Description    string
	IntervalFactor float64 // Multiplier applied to the tick interval while active
	ScoreFactor    int     // Multiplier applied to food score while active
}

// Registry contains all known power-ups and their properties.
var Registry = map[Kind]Definition{
	KindSpeed: {
		Name:           "Speed",
		Description:    "The snake moves twice as fast for a while.",
		IntervalFactor: 0.5,
		ScoreFactor:    1,
	},
	KindDouble: {
		Name:           "Double Points",
		Description:    "Food is worth twice as much for a while.",
		IntervalFactor: 1,
		ScoreFactor:    2,
	},
}

// Kinds lists the spawnable kinds in a stable order.
var Kinds = []Kind{KindSpeed, KindDouble}

// Get returns the definition for a kind.
func Get(k Kind) (Definition, bool) {
	def, ok := Registry[k]
	return def, ok
}

// Effect is an activated power-up. It reverts once Until has passed.
type Effect struct {
	Kind  Kind      `json:"kind"`
	Until time.Time `json:"until"`
}

// Active reports whether the effect still applies at now.
func (e Effect) Active(now time.Time) bool {
	return now.Before(e.Until)
}

// Remaining returns how long the effect still has to run.
func (e Effect) Remaining(now time.Time) time.Duration {
	if !e.Active(now) {
		return 0
	}
	return e.Until.Sub(now)
}
