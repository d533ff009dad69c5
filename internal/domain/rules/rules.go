// Package rules contains the pure calculation logic for game mechanics.
// This package is PURE and must NOT import any infrastructure packages.
package rules

import (
	"time"

	"github.com/MRamiBalles/SnakeArcade/server/internal/domain/powerup"
)

const (
	// FoodPoints is the base score for one piece of food.
	FoodPoints = 10

	// PowerUpChance is the probability that eating food spawns a power-up.
	PowerUpChance = 0.10

	// PowerUpDuration is how long an activated power-up lasts.
	PowerUpDuration = 5 * time.Second

	// PowerUpBoardLifetime is how long an uncollected power-up stays on the board.
	PowerUpBoardLifetime = 10 * time.Second

	// AccelerationStep is taken off the interval each time food is eaten.
	AccelerationStep = 5 * time.Millisecond

	// MinInterval is the floor for acceleration.
	MinInterval = 50 * time.Millisecond
)

// Difficulty selects the base tick interval.
type Difficulty string

const (
	Easy   Difficulty = "easy"
	Medium Difficulty = "medium"
	Hard   Difficulty = "hard"
)

// Difficulties lists every playable level.
var Difficulties = []Difficulty{Easy, Medium, Hard}

var baseIntervals = map[Difficulty]time.Duration{
	Easy:   200 * time.Millisecond,
	Medium: 150 * time.Millisecond,
	Hard:   100 * time.Millisecond,
}

// ParseDifficulty accepts the wire names used by clients and the score API.
func ParseDifficulty(s string) (Difficulty, bool) {
	d := Difficulty(s)
	_, ok := baseIntervals[d]
	return d, ok
}

// BaseInterval returns the starting tick interval for d. Unknown levels play as medium.
func BaseInterval(d Difficulty) time.Duration {
	if iv, ok := baseIntervals[d]; ok {
		return iv
	}
	return baseIntervals[Medium]
}

// Accelerate shortens the interval after a meal, never below MinInterval.
func Accelerate(iv time.Duration) time.Duration {
	if iv <= MinInterval {
		return iv
	}
	iv -= AccelerationStep
	if iv < MinInterval {
		iv = MinInterval
	}
	return iv
}

// FoodScore computes the points for one piece of food given the active effects.
func FoodScore(active []powerup.Kind) int {
	points := FoodPoints
	for _, k := range active {
		if def, ok := powerup.Get(k); ok && def.ScoreFactor > 1 {
			points *= def.ScoreFactor
		}
	}
	return points
}

// EffectiveInterval applies the active effects to the base interval.
func EffectiveInterval(base time.Duration, active []powerup.Kind) time.Duration {
	iv := base
	for _, k := range active {
		if def, ok := powerup.Get(k); ok && def.IntervalFactor > 0 && def.IntervalFactor != 1 {
			iv = time.Duration(float64(iv) * def.IntervalFactor)
		}
	}
	if iv < time.Millisecond {
		iv = time.Millisecond
	}
	return iv
}
