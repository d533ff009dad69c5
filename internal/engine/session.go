// Package engine - session.go
// Session is the single goroutine that owns one Engine and its Ticker.
// Input commands, ticks and score-submission outcomes are all serialised through Run,
// so GameState is never mutated from two places at once.
package engine

import (
	"context"
	"fmt"
	"math/rand"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/MRamiBalles/SnakeArcade/server/internal/domain/grid"
	"github.com/MRamiBalles/SnakeArcade/server/internal/domain/rules"
	"github.com/MRamiBalles/SnakeArcade/server/internal/events"
	"github.com/MRamiBalles/SnakeArcade/server/internal/infra/cache"
	"github.com/MRamiBalles/SnakeArcade/server/internal/platform/logger"
	"github.com/MRamiBalles/SnakeArcade/server/internal/platform/metrics"
)

// CommandType identifies a player input.
type CommandType string

const (
	CmdDirection   CommandType = "DIRECTION"
	CmdStart       CommandType = "START"
	CmdPause       CommandType = "PAUSE"
	CmdResume      CommandType = "RESUME"
	CmdTogglePause CommandType = "TOGGLE_PAUSE"
	CmdRestart     CommandType = "RESTART"
	CmdDifficulty  CommandType = "DIFFICULTY"
	CmdSaveScore   CommandType = "SAVE_SCORE"
	CmdSnapshot    CommandType = "SNAPSHOT"
)

// Command is a player input delivered to a Session.
type Command struct {
	Type       CommandType
	Direction  grid.Direction
	Difficulty rules.Difficulty
	PlayerName string
}

// NoticeKind classifies out-of-band messages for the player.
type NoticeKind string

const (
	NoticeScoreSaved      NoticeKind = "score_saved"
	NoticeScoreFailed     NoticeKind = "score_failed"
	NoticeBestScore       NoticeKind = "best_score"
	NoticeInvalidCommand  NoticeKind = "invalid_command"
	NoticeDifficultyShift NoticeKind = "difficulty"
)

// Notice is a user-visible message that is not part of a frame.
type Notice struct {
	Kind    NoticeKind `json:"kind"`
	Message string     `json:"message"`
	Success bool       `json:"success"`
	Score   int        `json:"score,omitempty"`
}

// Renderer consumes tick results. Nothing it does feeds back into the engine.
type Renderer interface {
	Render(res TickResult)
	Notify(n Notice)
}

// ScoreSubmission is what a finished game hands to the score service.
type ScoreSubmission struct {
	PlayerName string           `json:"player_name"`
	Score      int              `json:"score"`
	Difficulty rules.Difficulty `json:"difficulty"`
}

// Submitter persists a high score. Implemented in-process by scores.Service and over HTTP by scores.Client.
type Submitter interface {
	Submit(ctx context.Context, sub ScoreSubmission) (string, error)
}

// SessionConfig wires a Session to its collaborators. Only Options is required.
type SessionConfig struct {
	Options       Options
	Submitter     Submitter
	Best          *cache.BestScore
	EventLog      *events.EventLog
	Logger        *logger.Logger
	Rand          *rand.Rand
	Clock         func() time.Time
	SubmitTimeout time.Duration
	CommandBuffer int
}

type submitState int

const (
	submitIdle submitState = iota
	submitInFlight
	submitDone
)

type submitOutcome struct {
	gameID     string
	tick       int64
	playerName string
	notice     Notice
}

// Session drives one game.
type Session struct {
	id       string
	eng      *Engine
	ticker   *Ticker
	renderer Renderer

	submitter     Submitter
	best          *cache.BestScore
	eventLog      *events.EventLog
	logger        *logger.Logger
	submitTimeout time.Duration

	cmds     chan Command
	outcomes chan submitOutcome
	done     chan struct{}

	gameID string
	submit submitState
}

// NewSession creates a session in the not-started state. Call Run to drive it.
func NewSession(cfg SessionConfig, r Renderer) *Session {
	if cfg.Logger == nil {
		cfg.Logger = logger.Discard()
	}
	if cfg.SubmitTimeout <= 0 {
		cfg.SubmitTimeout = 10 * time.Second
	}
	if cfg.CommandBuffer <= 0 {
		cfg.CommandBuffer = 32
	}
	return &Session{
		id:            uuid.NewString(),
		eng:           NewEngine(cfg.Options, cfg.Rand, cfg.Clock),
		ticker:        NewTicker(),
		renderer:      r,
		submitter:     cfg.Submitter,
		best:          cfg.Best,
		eventLog:      cfg.EventLog,
		logger:        cfg.Logger,
		submitTimeout: cfg.SubmitTimeout,
		cmds:          make(chan Command, cfg.CommandBuffer),
		outcomes:      make(chan submitOutcome, 4),
		done:          make(chan struct{}),
	}
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Done is closed once Run has returned and every timer is released.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Send queues a command without blocking. It returns false if the queue is full or the session ended.
func (s *Session) Send(cmd Command) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.cmds <- cmd:
		return true
	default:
		return false
	}
}

// Run drives the session until ctx is cancelled. The ticker is released on every exit path.
func (s *Session) Run(ctx context.Context) {
	defer close(s.done)
	defer s.ticker.Stop()

	if s.best != nil {
		if _, err := s.best.Load(ctx); err != nil {
			s.logger.Warn("Best score unavailable: " + err.Error())
		}
	}
	s.renderer.Render(s.eng.Snapshot())

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Session " + s.id + " stopped.")
			return
		case cmd := <-s.cmds:
			s.apply(ctx, cmd)
		case out := <-s.outcomes:
			if out.gameID == s.gameID {
				if out.notice.Success {
					s.submit = submitDone
				} else {
					s.submit = submitIdle
				}
			}
			// Only a save that actually landed counts as a submission; the game may have restarted since.
			if out.notice.Success {
				s.recordGame(out.gameID, out.tick, out.notice.Score, events.EventTypeScoreSubmitted,
					map[string]interface{}{"player_name": out.playerName})
			}
			s.renderer.Notify(out.notice)
		case <-s.ticker.C():
			s.step(ctx)
		}
	}
}

func (s *Session) apply(ctx context.Context, cmd Command) {
	switch cmd.Type {
	case CmdDirection:
		s.eng.SetDirection(cmd.Direction)

	case CmdStart, CmdRestart:
		s.start()

	case CmdPause:
		s.pause()

	case CmdResume:
		s.resume()

	case CmdTogglePause:
		if s.eng.Status() == StatusPaused {
			s.resume()
		} else {
			s.pause()
		}

	case CmdDifficulty:
		iv, ok := s.eng.ChangeDifficulty(cmd.Difficulty)
		if !ok {
			s.renderer.Notify(Notice{Kind: NoticeInvalidCommand, Message: "unknown difficulty " + strconv.Quote(string(cmd.Difficulty))})
			return
		}
		if s.eng.Status() == StatusRunning {
			s.ticker.Reset(iv)
		}
		s.record(events.EventTypeDifficultyChanged, map[string]interface{}{
			"difficulty":  string(cmd.Difficulty),
			"interval_ms": iv.Milliseconds(),
		})
		s.renderer.Notify(Notice{Kind: NoticeDifficultyShift, Message: "difficulty set to " + string(cmd.Difficulty), Success: true})
		s.renderer.Render(s.eng.Snapshot())

	case CmdSaveScore:
		s.saveScore(ctx, cmd.PlayerName)

	case CmdSnapshot:
		s.renderer.Render(s.eng.Snapshot())

	default:
		s.renderer.Notify(Notice{Kind: NoticeInvalidCommand, Message: "unknown command " + string(cmd.Type)})
	}
}

func (s *Session) start() {
	res := s.eng.Start()
	s.gameID = uuid.NewString()
	s.submit = submitIdle
	s.ticker.Reset(res.Interval)

	metrics.Get().RecordGameStarted()
	s.record(events.EventTypeGameStarted, map[string]interface{}{
		"difficulty": string(s.eng.Difficulty()),
		"boundary":   string(s.eng.Options().Boundary),
	})
	s.logger.Event("GAME_STARTED", s.id, "game "+s.gameID+" at "+res.Interval.String())
	s.renderer.Render(res)
}

func (s *Session) pause() {
	if !s.eng.Pause() {
		return
	}
	// Stop the timer outright instead of letting it fire into a paused engine.
	s.ticker.Stop()
	s.record(events.EventTypeGamePaused, nil)
	s.renderer.Render(s.eng.Snapshot())
}

func (s *Session) resume() {
	if !s.eng.Resume() {
		return
	}
	s.ticker.Reset(s.eng.Interval())
	s.record(events.EventTypeGameResumed, nil)
	s.renderer.Render(s.eng.Snapshot())
}

func (s *Session) step(ctx context.Context) {
	started := time.Now()
	res := s.eng.Tick()
	metrics.Get().RecordTick(time.Since(started))

	if res.Outcome == OutcomeIdle {
		s.ticker.Stop()
		return
	}

	for _, kind := range res.Expired {
		s.record(events.EventTypePowerUpExpired, map[string]interface{}{"kind": string(kind)})
	}
	if res.PowerUpTaken != "" {
		metrics.Get().RecordPowerUp()
		s.record(events.EventTypePowerUpActivated, map[string]interface{}{"kind": string(res.PowerUpTaken)})
	}

	switch res.Outcome {
	case OutcomeAteFood:
		metrics.Get().RecordFood()
		s.record(events.EventTypeFoodEaten, map[string]interface{}{"length": len(res.Snake)})
		if res.PowerUpSpawned && res.PowerUp != nil {
			s.record(events.EventTypePowerUpSpawned, map[string]interface{}{
				"kind": string(res.PowerUp.Kind),
				"x":    res.PowerUp.Cell.X,
				"y":    res.PowerUp.Cell.Y,
			})
		}
		s.offerBest(ctx, res.Score)

	case OutcomeGameOver:
		s.ticker.Stop()
		// The last food can end the game (full board), so the final score may still be a best.
		if res.Reason == ReasonBoardFull {
			metrics.Get().RecordFood()
			s.record(events.EventTypeFoodEaten, map[string]interface{}{"length": len(res.Snake)})
		}
		s.offerBest(ctx, res.Score)
		metrics.Get().RecordGameOver()
		s.record(events.EventTypeGameOver, map[string]interface{}{
			"reason": string(res.Reason),
			"length": len(res.Snake),
		})
		s.logger.Event("GAME_OVER", s.id, fmt.Sprintf("game %s ended (%s) with score %d", s.gameID, res.Reason, res.Score))
	}

	if res.Outcome != OutcomeGameOver && res.IntervalChanged {
		s.ticker.Reset(res.Interval)
	}

	s.renderer.Render(res)
}

func (s *Session) offerBest(ctx context.Context, score int) {
	if s.best == nil {
		return
	}
	beaten, err := s.best.Offer(ctx, score)
	if err != nil {
		s.logger.Warn("Failed to store best score: " + err.Error())
		return
	}
	if beaten {
		s.record(events.EventTypeBestScoreBeaten, nil)
		s.renderer.Notify(Notice{Kind: NoticeBestScore, Message: "new best score", Success: true, Score: score})
	}
}

// saveScore hands the final score to the submitter on its own goroutine.
// Only the final score is read from the engine; the outcome comes back through Run.
func (s *Session) saveScore(ctx context.Context, playerName string) {
	switch {
	case s.submitter == nil:
		s.renderer.Notify(Notice{Kind: NoticeScoreFailed, Message: "score service not configured"})
		return
	case s.eng.Status() != StatusGameOver:
		s.renderer.Notify(Notice{Kind: NoticeScoreFailed, Message: "scores can only be saved after the game ends"})
		return
	case s.submit == submitInFlight:
		s.renderer.Notify(Notice{Kind: NoticeScoreFailed, Message: "score submission already in progress"})
		return
	case s.submit == submitDone:
		s.renderer.Notify(Notice{Kind: NoticeScoreFailed, Message: "score already saved for this game"})
		return
	}

	sub := ScoreSubmission{PlayerName: playerName, Score: s.eng.Score(), Difficulty: s.eng.Difficulty()}
	gameID, tick := s.gameID, s.eng.TickNumber()
	s.submit = submitInFlight

	go func() {
		subCtx, cancel := context.WithTimeout(ctx, s.submitTimeout)
		defer cancel()

		notice := Notice{Kind: NoticeScoreSaved, Success: true, Score: sub.Score}
		msg, err := s.submitter.Submit(subCtx, sub)
		if err != nil {
			metrics.Get().RecordScoreSubmission(err)
			notice = Notice{Kind: NoticeScoreFailed, Message: "could not save score: " + err.Error(), Score: sub.Score}
		} else {
			metrics.Get().RecordScoreSubmission(nil)
			notice.Message = msg
		}

		select {
		case s.outcomes <- submitOutcome{gameID: gameID, tick: tick, playerName: playerName, notice: notice}:
		case <-ctx.Done():
		}
	}()
}

func (s *Session) record(t events.EventType, payload map[string]interface{}) {
	s.recordGame(s.gameID, s.eng.TickNumber(), s.eng.Score(), t, payload)
}

func (s *Session) recordGame(gameID string, tick int64, score int, t events.EventType, payload map[string]interface{}) {
	if s.eventLog == nil {
		return
	}
	ev := events.GameEvent{
		Type:    t,
		GameID:  gameID,
		ActorID: s.id,
		Tick:    tick,
		Score:   score,
	}
	if payload != nil {
		ev.Payload = payload
	}
	s.eventLog.Append(ev)
}
