package main

import (
	"errors"
	"strings"
	"testing"

	"github.com/gdamore/tcell/v2"

	"github.com/MRamiBalles/SnakeArcade/server/internal/domain/grid"
	"github.com/MRamiBalles/SnakeArcade/server/internal/engine"
)

func newSimScreen(t *testing.T) tcell.SimulationScreen {
	t.Helper()
	s := tcell.NewSimulationScreen("UTF-8")
	if err := s.Init(); err != nil {
		t.Fatalf("Failed to init simulation screen: %v", err)
	}
	s.SetSize(120, 40)
	t.Cleanup(s.Fini)
	return s
}

func TestRenderDrawsHeadFoodAndBody(t *testing.T) {
	s := newSimScreen(t)
	r := newTermRenderer(s, func() int { return 40 }, false)

	food := grid.Cell{X: 9, Y: 3}
	r.Render(engine.TickResult{
		Status:    engine.StatusRunning,
		Snake:     []grid.Cell{{X: 4, Y: 2}, {X: 3, Y: 2}},
		Direction: grid.Left,
		Food:      &food,
		Board:     grid.Board{Width: 10, Height: 10},
	})

	// Cell (x,y) is drawn at column cellWidth+x*cellWidth, row 2+y.
	if got, _, _, _ := s.GetContent(cellWidth+4*cellWidth, 2+2); got != '◀' {
		t.Errorf("Expected left-facing head, got %q", got)
	}
	if got, _, _, _ := s.GetContent(cellWidth+9*cellWidth, 2+3); got != '●' {
		t.Errorf("Expected food glyph, got %q", got)
	}
	_, _, st, _ := s.GetContent(cellWidth+3*cellWidth, 2+2)
	if _, bg, _ := st.Decompose(); bg != tcell.ColorGreen {
		t.Errorf("Expected green body background, got %v", bg)
	}
}

func TestHudShowsBestAndEffects(t *testing.T) {
	line := hudLine(engine.TickResult{Score: 1230, Snake: make([]grid.Cell, 3), Difficulty: "hard", IntervalMS: 50}, 4500)
	for _, want := range []string{"Score 1,230", "Best 4,500", "Length 3", "hard", "50ms"} {
		if !strings.Contains(line, want) {
			t.Errorf("Expected %q in HUD %q", want, line)
		}
	}
}

func TestHeadGlyphFollowsDirection(t *testing.T) {
	cases := map[grid.Direction]rune{grid.Up: '▲', grid.Down: '▼', grid.Left: '◀', grid.Right: '▶'}
	for d, want := range cases {
		if got := headGlyph(d); got != want {
			t.Errorf("headGlyph(%s) = %q, want %q", d, got, want)
		}
	}
}

func TestKeyCommand(t *testing.T) {
	cases := []struct {
		ev   *tcell.EventKey
		want engine.CommandType
	}{
		{tcell.NewEventKey(tcell.KeyUp, 0, tcell.ModNone), engine.CmdDirection},
		{tcell.NewEventKey(tcell.KeyRune, 'a', tcell.ModNone), engine.CmdDirection},
		{tcell.NewEventKey(tcell.KeyRune, ' ', tcell.ModNone), engine.CmdTogglePause},
		{tcell.NewEventKey(tcell.KeyEnter, 0, tcell.ModNone), engine.CmdStart},
		{tcell.NewEventKey(tcell.KeyRune, 'r', tcell.ModNone), engine.CmdRestart},
		{tcell.NewEventKey(tcell.KeyRune, '3', tcell.ModNone), engine.CmdDifficulty},
		{tcell.NewEventKey(tcell.KeyRune, 'h', tcell.ModNone), engine.CmdSaveScore},
	}
	for _, c := range cases {
		cmd, ok := keyCommand(c.ev, "tester")
		if !ok || cmd.Type != c.want {
			t.Errorf("Key %q: expected %s, got %s (ok=%v)", c.ev.Name(), c.want, cmd.Type, ok)
		}
	}

	cmd, _ := keyCommand(tcell.NewEventKey(tcell.KeyRune, 'h', tcell.ModNone), "tester")
	if cmd.PlayerName != "tester" {
		t.Errorf("Expected player name on save, got %q", cmd.PlayerName)
	}
	if _, ok := keyCommand(tcell.NewEventKey(tcell.KeyRune, 'z', tcell.ModNone), ""); ok {
		t.Errorf("Expected unmapped key to be ignored")
	}
	if !isQuit(tcell.NewEventKey(tcell.KeyRune, 'q', tcell.ModNone)) {
		t.Errorf("Expected q to quit")
	}
}

func TestRenderBeepsOnFoodAndGameOver(t *testing.T) {
	s := newSimScreen(t)
	r := newTermRenderer(s, nil, true)
	beeps := 0
	r.beep = func() error {
		beeps++
		return errors.New("no bell")
	}

	board := grid.Board{Width: 5, Height: 5}
	snake := []grid.Cell{{X: 1, Y: 1}}
	for _, outcome := range []engine.Outcome{engine.OutcomeContinuing, engine.OutcomeAteFood, engine.OutcomeIdle, engine.OutcomeGameOver} {
		r.Render(engine.TickResult{Outcome: outcome, Status: engine.StatusRunning, Snake: snake, Board: board})
	}
	if beeps != 2 {
		t.Errorf("Expected 2 beeps, got %d", beeps)
	}

	muted := newTermRenderer(s, nil, false)
	if muted.beep != nil {
		t.Errorf("Muted renderer must not beep")
	}
}
