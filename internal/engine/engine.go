package engine

import (
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/MRamiBalles/SnakeArcade/server/internal/domain/grid"
	"github.com/MRamiBalles/SnakeArcade/server/internal/domain/powerup"
	"github.com/MRamiBalles/SnakeArcade/server/internal/domain/rules"
)

// ErrEmptySnake is returned by Load for a state without a snake.
var ErrEmptySnake = errors.New("snake has no cells")

// Engine owns one GameState and advances it exactly once per Tick.
// It does NOT own a timer. Whoever drives it reschedules when a result reports IntervalChanged.
// Engine is not safe for concurrent use; Session serialises all calls.
type Engine struct {
	opts  Options
	state State
	rng   *rand.Rand
	now   func() time.Time

	difficulty   rules.Difficulty
	tickNumber   int64
	lastInterval time.Duration
}

// NewEngine creates an engine in the not-started state.
// A nil rng is seeded from the clock; a nil clock uses time.Now.
func NewEngine(opts Options, rng *rand.Rand, clock func() time.Time) *Engine {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if clock == nil {
		clock = time.Now
	}
	if opts.StartDirection == "" {
		opts.StartDirection = grid.Right
	}
	if opts.Boundary == "" {
		opts.Boundary = BoundaryClamp
	}
	if _, ok := rules.ParseDifficulty(string(opts.Difficulty)); !ok {
		opts.Difficulty = rules.Medium
	}
	if opts.PowerUpDuration <= 0 {
		opts.PowerUpDuration = rules.PowerUpDuration
	}
	if opts.PowerUpLifetime <= 0 {
		opts.PowerUpLifetime = rules.PowerUpBoardLifetime
	}
	e := &Engine{
		opts:       opts,
		rng:        rng,
		now:        clock,
		difficulty: opts.Difficulty,
	}
	e.state = State{
		Snake:     []grid.Cell{opts.Start},
		Direction: opts.StartDirection,
		Pending:   opts.StartDirection,
		Interval:  rules.BaseInterval(e.difficulty),
		Status:    StatusNotStarted,
	}
	e.lastInterval = e.state.Interval
	return e
}

// Options returns the configuration the engine was built with.
func (e *Engine) Options() Options {
	return e.opts
}

// Difficulty returns the current difficulty.
func (e *Engine) Difficulty() rules.Difficulty {
	return e.difficulty
}

// State returns a copy of the current state.
func (e *Engine) State() State {
	return e.state.Clone()
}

// Status returns the lifecycle state.
func (e *Engine) Status() Status {
	return e.state.Status
}

// TickNumber returns how many ticks the current game has run.
func (e *Engine) TickNumber() int64 {
	return e.tickNumber
}

// Score returns the current score.
func (e *Engine) Score() int {
	return e.state.Score
}

// Load replaces the whole state, e.g. to set up a scripted scenario.
// The snake must be non-empty and lie on the board.
func (e *Engine) Load(s State) error {
	if len(s.Snake) == 0 {
		return ErrEmptySnake
	}
	for _, c := range s.Snake {
		if !e.opts.Board.Contains(c) {
			return fmt.Errorf("snake cell %s is off the %dx%d board", c, e.opts.Board.Width, e.opts.Board.Height)
		}
	}
	if s.Status == "" {
		s.Status = StatusRunning
	}

	e.state = s.Clone()
	if e.state.Interval <= 0 {
		e.state.Interval = rules.BaseInterval(e.difficulty)
	}
	if e.state.Direction == "" {
		e.state.Direction = e.opts.StartDirection
	}
	if e.state.Pending == "" {
		e.state.Pending = e.state.Direction
	}
	if e.state.Status == StatusPaused && e.state.PausedAt.IsZero() {
		e.state.PausedAt = e.now()
	}
	e.lastInterval = e.effectiveInterval(e.now())
	return nil
}

// Start begins a fresh game from any state. Restart is the same operation.
func (e *Engine) Start() TickResult {
	e.state = State{
		Snake:     []grid.Cell{e.opts.Start},
		Direction: e.opts.StartDirection,
		Pending:   e.opts.StartDirection,
		Interval:  rules.BaseInterval(e.difficulty),
		Status:    StatusRunning,
	}
	e.tickNumber = 0
	if cell, ok := e.placeFood(); ok {
		e.state.Food, e.state.HasFood = cell, true
	}
	e.lastInterval = e.state.Interval

	res := e.snapshot(OutcomeContinuing)
	res.IntervalChanged = true
	return res
}

// Restart discards the current game and starts a new one.
func (e *Engine) Restart() TickResult {
	return e.Start()
}

// Pause suspends a running game. Effect deadlines are frozen until Resume.
func (e *Engine) Pause() bool {
	if e.state.Status != StatusRunning {
		return false
	}
	e.state.Status = StatusPaused
	e.state.PausedAt = e.now()
	return true
}

// Resume continues a paused game.
func (e *Engine) Resume() bool {
	if e.state.Status != StatusPaused {
		return false
	}
	var paused time.Duration
	if !e.state.PausedAt.IsZero() {
		paused = e.now().Sub(e.state.PausedAt)
	}
	for i := range e.state.Effects {
		e.state.Effects[i].Until = e.state.Effects[i].Until.Add(paused)
	}
	if e.state.PowerUp != nil {
		e.state.PowerUp.Expires = e.state.PowerUp.Expires.Add(paused)
	}
	e.state.PausedAt = time.Time{}
	e.state.Status = StatusRunning
	return true
}

// TogglePause flips between running and paused.
func (e *Engine) TogglePause() bool {
	if e.state.Status == StatusPaused {
		return e.Resume()
	}
	return e.Pause()
}

// ChangeDifficulty resets the base interval to the level's value.
// It returns the interval the scheduler should now run at.
func (e *Engine) ChangeDifficulty(d rules.Difficulty) (time.Duration, bool) {
	if _, ok := rules.ParseDifficulty(string(d)); !ok {
		return e.lastInterval, false
	}
	e.difficulty = d
	e.state.Interval = rules.BaseInterval(d)
	iv := e.effectiveInterval(e.now())
	changed := iv != e.lastInterval
	e.lastInterval = iv
	return iv, changed
}

// SetDirection queues a heading change for the next tick.
// A request that reverses the current (not pending) direction is rejected.
func (e *Engine) SetDirection(d grid.Direction) bool {
	if e.state.Status != StatusRunning && e.state.Status != StatusPaused {
		return false
	}
	if _, ok := grid.ParseDirection(string(d)); !ok {
		return false
	}
	if d == e.state.Direction.Opposite() {
		return false
	}
	e.state.Pending = d
	return true
}

// Interval returns the effective tick interval right now.
func (e *Engine) Interval() time.Duration {
	return e.effectiveInterval(e.now())
}

// Snapshot reports the current state without advancing it.
func (e *Engine) Snapshot() TickResult {
	return e.snapshot(OutcomeIdle)
}

// Tick advances the game by one cell.
func (e *Engine) Tick() TickResult {
	if e.state.Status != StatusRunning {
		return e.snapshot(OutcomeIdle)
	}
	e.tickNumber++
	now := e.now()

	expired := e.expire(now)

	e.state.Direction = e.state.Pending
	head := e.state.Snake[0].Step(e.state.Direction)

	if !e.opts.Board.Contains(head) {
		if e.opts.Boundary != BoundaryWrap {
			return e.gameOver(ReasonWall, expired)
		}
		head = e.opts.Board.Wrap(head)
	}

	grow := e.state.HasFood && head == e.state.Food

	// The tail is vacated this tick unless the snake grows, so it cannot be hit.
	body := e.state.Snake
	if !grow {
		body = body[:len(body)-1]
	}
	for _, c := range body {
		if c == head {
			return e.gameOver(ReasonSelf, expired)
		}
	}

	snake := make([]grid.Cell, 0, len(e.state.Snake)+1)
	snake = append(snake, head)
	snake = append(snake, e.state.Snake...)
	if !grow {
		snake = snake[:len(snake)-1]
	}
	e.state.Snake = snake

	res := TickResult{Outcome: OutcomeContinuing, Expired: expired}

	if p := e.state.PowerUp; p != nil && p.Cell == head {
		e.activate(p.Kind, now)
		e.state.PowerUp = nil
		res.PowerUpTaken = p.Kind
	}

	if grow {
		res.Outcome = OutcomeAteFood
		e.state.Score += rules.FoodScore(e.activeKinds(now))
		if e.opts.Accelerate {
			e.state.Interval = rules.Accelerate(e.state.Interval)
		}

		cell, ok := e.placeFood()
		if !ok {
			e.state.HasFood = false
			return e.gameOver(ReasonBoardFull, expired)
		}
		e.state.Food = cell

		if e.opts.PowerUps && e.state.PowerUp == nil && e.rng.Float64() < e.opts.PowerUpChance {
			res.PowerUpSpawned = e.spawnPowerUp(now)
		}
	}

	return e.finish(res, now)
}

func (e *Engine) gameOver(reason Reason, expired []powerup.Kind) TickResult {
	e.state.Status = StatusGameOver
	e.state.Reason = reason
	res := e.snapshot(OutcomeGameOver)
	res.Reason = reason
	res.Expired = expired
	return res
}

// finish fills the state-derived fields and records interval changes.
func (e *Engine) finish(res TickResult, now time.Time) TickResult {
	full := e.snapshot(res.Outcome)
	full.Expired = res.Expired
	full.PowerUpTaken = res.PowerUpTaken
	full.PowerUpSpawned = res.PowerUpSpawned

	iv := e.effectiveInterval(now)
	if iv != e.lastInterval {
		full.IntervalChanged = true
		e.lastInterval = iv
	}
	full.Interval = iv
	full.IntervalMS = iv.Milliseconds()
	return full
}

func (e *Engine) snapshot(outcome Outcome) TickResult {
	s := e.state.Clone()
	res := TickResult{
		Tick:       e.tickNumber,
		Outcome:    outcome,
		Reason:     s.Reason,
		Status:     s.Status,
		Score:      s.Score,
		Snake:      s.Snake,
		Direction:  s.Direction,
		PowerUp:    s.PowerUp,
		Effects:    s.Effects,
		Interval:   e.lastInterval,
		IntervalMS: e.lastInterval.Milliseconds(),
		Difficulty: e.difficulty,
		Board:      e.opts.Board,
	}
	if s.HasFood {
		food := s.Food
		res.Food = &food
	}
	return res
}

// expire drops effects and board power-ups whose time has passed.
func (e *Engine) expire(now time.Time) []powerup.Kind {
	var expired []powerup.Kind
	kept := e.state.Effects[:0]
	for _, eff := range e.state.Effects {
		if eff.Active(now) {
			kept = append(kept, eff)
		} else {
			expired = append(expired, eff.Kind)
		}
	}
	e.state.Effects = kept

	if p := e.state.PowerUp; p != nil && !now.Before(p.Expires) {
		e.state.PowerUp = nil
	}
	return expired
}

// activate applies a power-up. Re-activating a kind resets its deadline.
func (e *Engine) activate(kind powerup.Kind, now time.Time) {
	until := now.Add(e.opts.PowerUpDuration)
	for i := range e.state.Effects {
		if e.state.Effects[i].Kind == kind {
			e.state.Effects[i].Until = until
			return
		}
	}
	e.state.Effects = append(e.state.Effects, powerup.Effect{Kind: kind, Until: until})
}

func (e *Engine) activeKinds(now time.Time) []powerup.Kind {
	var kinds []powerup.Kind
	for _, eff := range e.state.Effects {
		if eff.Active(now) {
			kinds = append(kinds, eff.Kind)
		}
	}
	return kinds
}

func (e *Engine) effectiveInterval(now time.Time) time.Duration {
	return rules.EffectiveInterval(e.state.Interval, e.activeKinds(now))
}

func (e *Engine) placeFood() (grid.Cell, bool) {
	occupied := e.occupied()
	return PlaceFree(e.opts.Board, e.rng, occupied)
}

func (e *Engine) spawnPowerUp(now time.Time) bool {
	occupied := e.occupied()
	if e.state.HasFood {
		occupied[e.state.Food] = true
	}
	cell, ok := PlaceFree(e.opts.Board, e.rng, occupied)
	if !ok {
		return false
	}
	kind := powerup.Kinds[e.rng.Intn(len(powerup.Kinds))]
	e.state.PowerUp = &PowerUp{Cell: cell, Kind: kind, Expires: now.Add(e.opts.PowerUpLifetime)}
	return true
}

// occupied collects the cells food must avoid: the snake and any power-up.
func (e *Engine) occupied() map[grid.Cell]bool {
	occ := make(map[grid.Cell]bool, len(e.state.Snake)+1)
	for _, c := range e.state.Snake {
		occ[c] = true
	}
	if e.state.PowerUp != nil {
		occ[e.state.PowerUp.Cell] = true
	}
	return occ
}
