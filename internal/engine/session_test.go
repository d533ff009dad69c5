package engine

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/MRamiBalles/SnakeArcade/server/internal/domain/grid"
	"github.com/MRamiBalles/SnakeArcade/server/internal/domain/rules"
	"github.com/MRamiBalles/SnakeArcade/server/internal/events"
	"github.com/MRamiBalles/SnakeArcade/server/internal/infra/cache"
)

type recordingRenderer struct {
	frames  chan TickResult
	notices chan Notice
}

func newRecordingRenderer() *recordingRenderer {
	return &recordingRenderer{
		frames:  make(chan TickResult, 512),
		notices: make(chan Notice, 64),
	}
}

func (r *recordingRenderer) Render(res TickResult) {
	select {
	case r.frames <- res:
	default:
	}
}

func (r *recordingRenderer) Notify(n Notice) {
	select {
	case r.notices <- n:
	default:
	}
}

func (r *recordingRenderer) waitFrame(t *testing.T, match func(TickResult) bool) TickResult {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case f := <-r.frames:
			if match(f) {
				return f
			}
		case <-deadline:
			t.Fatal("Timed out waiting for frame")
		}
	}
}

func (r *recordingRenderer) waitNotice(t *testing.T, kind NoticeKind) Notice {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case n := <-r.notices:
			if n.Kind == kind {
				return n
			}
		case <-deadline:
			t.Fatalf("Timed out waiting for %s notice", kind)
		}
	}
}

type fakeSubmitter struct {
	mu    sync.Mutex
	subs  []ScoreSubmission
	err   error
	delay time.Duration
}

func (f *fakeSubmitter) Submit(ctx context.Context, sub ScoreSubmission) (string, error) {
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subs = append(f.subs, sub)
	if f.err != nil {
		return "", f.err
	}
	return "saved", nil
}

func (f *fakeSubmitter) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

// tinyBoard ends every game on the first tick: the snake eats the only food and fills the board.
func tinyBoard() Options {
	opts := DefaultOptions()
	opts.Board = grid.Board{Width: 2, Height: 1}
	opts.Start = grid.Cell{X: 0, Y: 0}
	opts.Difficulty = rules.Hard
	return opts
}

func runSession(t *testing.T, cfg SessionConfig) (*Session, *recordingRenderer, context.CancelFunc) {
	t.Helper()
	if cfg.Rand == nil {
		cfg.Rand = rand.New(rand.NewSource(5))
	}
	r := newRecordingRenderer()
	s := NewSession(cfg, r)
	ctx, cancel := context.WithCancel(context.Background())
	go s.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-s.Done()
	})
	r.waitFrame(t, func(f TickResult) bool { return f.Status == StatusNotStarted })
	return s, r, cancel
}

func TestSessionPlaysToGameOver(t *testing.T) {
	el := events.NewEventLog(nil)
	best := cache.NewBestScore(cache.NewMemoryKV(), "")
	s, r, _ := runSession(t, SessionConfig{Options: tinyBoard(), EventLog: el, Best: best})

	s.Send(Command{Type: CmdStart})
	over := r.waitFrame(t, func(f TickResult) bool { return f.Outcome == OutcomeGameOver })
	if over.Reason != ReasonBoardFull || over.Score != 10 {
		t.Errorf("Expected board_full with 10 points, got %s with %d", over.Reason, over.Score)
	}

	n := r.waitNotice(t, NoticeBestScore)
	if n.Score != 10 || best.Current() != 10 {
		t.Errorf("Expected best score 10, got notice %d store %d", n.Score, best.Current())
	}

	for _, typ := range []events.EventType{events.EventTypeGameStarted, events.EventTypeFoodEaten, events.EventTypeGameOver, events.EventTypeBestScoreBeaten} {
		if len(el.GetByType(typ)) != 1 {
			t.Errorf("Expected one %s event, got %d", typ, len(el.GetByType(typ)))
		}
	}
	games := el.GetByType(events.EventTypeGameStarted)
	if games[0].GameID == "" || games[0].ActorID != s.ID() {
		t.Errorf("Events must carry game and session IDs: %+v", games[0])
	}
}

func TestSessionSaveScoreOnce(t *testing.T) {
	sub := &fakeSubmitter{}
	s, r, _ := runSession(t, SessionConfig{Options: tinyBoard(), Submitter: sub})

	s.Send(Command{Type: CmdSaveScore, PlayerName: "early"})
	if n := r.waitNotice(t, NoticeScoreFailed); n.Success {
		t.Errorf("Saving before game over must fail")
	}

	s.Send(Command{Type: CmdStart})
	r.waitFrame(t, func(f TickResult) bool { return f.Outcome == OutcomeGameOver })

	s.Send(Command{Type: CmdSaveScore, PlayerName: "ana"})
	saved := r.waitNotice(t, NoticeScoreSaved)
	if !saved.Success || saved.Message != "saved" || saved.Score != 10 {
		t.Errorf("Unexpected saved notice %+v", saved)
	}

	s.Send(Command{Type: CmdSaveScore, PlayerName: "ana"})
	r.waitNotice(t, NoticeScoreFailed)

	if sub.count() != 1 {
		t.Fatalf("Expected exactly one submission, got %d", sub.count())
	}
	got := sub.subs[0]
	if got.PlayerName != "ana" || got.Score != 10 || got.Difficulty != rules.Hard {
		t.Errorf("Unexpected submission %+v", got)
	}
}

func TestSessionSaveScoreFailureAllowsRetry(t *testing.T) {
	sub := &fakeSubmitter{err: errors.New("db down")}
	s, r, _ := runSession(t, SessionConfig{Options: tinyBoard(), Submitter: sub})

	s.Send(Command{Type: CmdStart})
	r.waitFrame(t, func(f TickResult) bool { return f.Outcome == OutcomeGameOver })

	s.Send(Command{Type: CmdSaveScore, PlayerName: "bo"})
	if n := r.waitNotice(t, NoticeScoreFailed); n.Success {
		t.Errorf("Expected failure notice")
	}

	sub.mu.Lock()
	sub.err = nil
	sub.mu.Unlock()

	s.Send(Command{Type: CmdSaveScore, PlayerName: "bo"})
	r.waitNotice(t, NoticeScoreSaved)
	if sub.count() != 2 {
		t.Errorf("Expected a retry after failure, got %d submissions", sub.count())
	}
}

func TestSessionLedgerRecordsOnlySavedScores(t *testing.T) {
	el := events.NewEventLog(nil)
	sub := &fakeSubmitter{err: errors.New("db down")}
	s, r, _ := runSession(t, SessionConfig{Options: tinyBoard(), Submitter: sub, EventLog: el})

	s.Send(Command{Type: CmdStart})
	r.waitFrame(t, func(f TickResult) bool { return f.Outcome == OutcomeGameOver })

	s.Send(Command{Type: CmdSaveScore, PlayerName: "bo"})
	r.waitNotice(t, NoticeScoreFailed)
	if got := len(el.GetByType(events.EventTypeScoreSubmitted)); got != 0 {
		t.Fatalf("Failed save must not be recorded, got %d SCORE_SUBMITTED events", got)
	}

	sub.mu.Lock()
	sub.err = nil
	sub.mu.Unlock()

	s.Send(Command{Type: CmdSaveScore, PlayerName: "bo"})
	r.waitNotice(t, NoticeScoreSaved)
	submitted := el.GetByType(events.EventTypeScoreSubmitted)
	if len(submitted) != 1 {
		t.Fatalf("Expected one SCORE_SUBMITTED event, got %d", len(submitted))
	}
	started := el.GetByType(events.EventTypeGameStarted)
	if submitted[0].GameID != started[0].GameID || submitted[0].Score != 10 {
		t.Errorf("Unexpected SCORE_SUBMITTED event %+v", submitted[0])
	}
}

func TestSessionSubmissionTaggedWithFinishedGame(t *testing.T) {
	el := events.NewEventLog(nil)
	sub := &fakeSubmitter{delay: 200 * time.Millisecond}
	s, r, _ := runSession(t, SessionConfig{Options: tinyBoard(), Submitter: sub, EventLog: el})

	s.Send(Command{Type: CmdStart})
	r.waitFrame(t, func(f TickResult) bool { return f.Outcome == OutcomeGameOver })

	// Restart while the save is still in flight.
	s.Send(Command{Type: CmdSaveScore, PlayerName: "cy"})
	s.Send(Command{Type: CmdRestart})
	r.waitNotice(t, NoticeScoreSaved)

	started := el.GetByType(events.EventTypeGameStarted)
	submitted := el.GetByType(events.EventTypeScoreSubmitted)
	if len(started) != 2 || len(submitted) != 1 {
		t.Fatalf("Expected 2 games and 1 submission, got %d and %d", len(started), len(submitted))
	}
	if submitted[0].GameID != started[0].GameID {
		t.Errorf("Submission tagged with game %s, want %s", submitted[0].GameID, started[0].GameID)
	}
}

func TestSessionSaveScoreDoesNotBlockInput(t *testing.T) {
	sub := &fakeSubmitter{delay: 300 * time.Millisecond}
	s, r, _ := runSession(t, SessionConfig{Options: tinyBoard(), Submitter: sub})

	s.Send(Command{Type: CmdStart})
	r.waitFrame(t, func(f TickResult) bool { return f.Outcome == OutcomeGameOver })

	s.Send(Command{Type: CmdSaveScore, PlayerName: "slow"})
	s.Send(Command{Type: CmdSnapshot})

	start := time.Now()
	r.waitFrame(t, func(f TickResult) bool { return f.Outcome == OutcomeIdle })
	if time.Since(start) >= sub.delay {
		t.Errorf("Snapshot waited for the submission")
	}
	r.waitNotice(t, NoticeScoreSaved)
}

func TestSessionPauseStopsTicks(t *testing.T) {
	s, r, _ := runSession(t, SessionConfig{Options: DefaultOptions()})

	s.Send(Command{Type: CmdStart})
	r.waitFrame(t, func(f TickResult) bool { return f.Outcome == OutcomeContinuing && f.Tick >= 1 })

	s.Send(Command{Type: CmdPause})
	paused := r.waitFrame(t, func(f TickResult) bool { return f.Status == StatusPaused })

	select {
	case f := <-r.frames:
		t.Fatalf("Expected no frames while paused, got tick %d", f.Tick)
	case <-time.After(400 * time.Millisecond):
	}

	s.Send(Command{Type: CmdTogglePause})
	next := r.waitFrame(t, func(f TickResult) bool { return f.Tick > paused.Tick })
	if next.Status != StatusRunning {
		t.Errorf("Expected running after toggle, got %s", next.Status)
	}
}

func TestSessionDifficultyCommand(t *testing.T) {
	s, r, _ := runSession(t, SessionConfig{Options: DefaultOptions()})

	s.Send(Command{Type: CmdDifficulty, Difficulty: rules.Easy})
	r.waitNotice(t, NoticeDifficultyShift)
	f := r.waitFrame(t, func(f TickResult) bool { return f.Difficulty == rules.Easy })
	if f.IntervalMS != 200 {
		t.Errorf("Expected 200ms on easy, got %d", f.IntervalMS)
	}

	s.Send(Command{Type: CmdDifficulty, Difficulty: "insane"})
	r.waitNotice(t, NoticeInvalidCommand)
}

func TestSessionStopsOnCancel(t *testing.T) {
	r := newRecordingRenderer()
	s := NewSession(SessionConfig{Options: DefaultOptions()}, r)
	ctx, cancel := context.WithCancel(context.Background())
	go s.Run(ctx)

	s.Send(Command{Type: CmdStart})
	r.waitFrame(t, func(f TickResult) bool { return f.Status == StatusRunning })
	cancel()

	select {
	case <-s.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("Session did not stop")
	}
	if s.Send(Command{Type: CmdStart}) {
		t.Errorf("Send after stop must report false")
	}
}
