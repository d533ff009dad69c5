package main

import (
	"fmt"
	"strings"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/gdamore/tcell/v2"

	"github.com/MRamiBalles/SnakeArcade/server/internal/domain/grid"
	"github.com/MRamiBalles/SnakeArcade/server/internal/domain/powerup"
	"github.com/MRamiBalles/SnakeArcade/server/internal/engine"
	"github.com/MRamiBalles/SnakeArcade/server/internal/scores"
)

// Each board cell is two columns wide so the playfield looks square.
const cellWidth = 2

type palette struct {
	hud     tcell.Style
	border  tcell.Style
	head    tcell.Style
	body    tcell.Style
	food    tcell.Style
	speed   tcell.Style
	double  tcell.Style
	notice  tcell.Style
	overlay tcell.Style
}

var defaultPalette = palette{
	hud:     tcell.StyleDefault.Foreground(tcell.ColorWhite).Background(tcell.ColorDarkOliveGreen),
	border:  tcell.StyleDefault.Foreground(tcell.ColorGray),
	head:    tcell.StyleDefault.Foreground(tcell.ColorLawnGreen).Bold(true),
	body:    tcell.StyleDefault.Background(tcell.ColorGreen),
	food:    tcell.StyleDefault.Foreground(tcell.ColorRed).Bold(true),
	speed:   tcell.StyleDefault.Foreground(tcell.ColorDeepSkyBlue).Bold(true),
	double:  tcell.StyleDefault.Foreground(tcell.ColorGold).Bold(true),
	notice:  tcell.StyleDefault.Foreground(tcell.ColorLightCyan),
	overlay: tcell.StyleDefault.Foreground(tcell.ColorWhite).Background(tcell.ColorMaroon).Bold(true),
}

// termRenderer draws session output onto a tcell screen.
// Render and Notify arrive on the session goroutine; refreshes of the
// leaderboard arrive from main, so every draw holds mu.
type termRenderer struct {
	mu     sync.Mutex
	screen tcell.Screen
	theme  palette
	best   func() int
	beep   func() error // nil when muted

	last    engine.TickResult
	notice  string
	leaders []scores.Entry
	saved   chan struct{}
}

func newTermRenderer(s tcell.Screen, best func() int, sound bool) *termRenderer {
	if best == nil {
		best = func() int { return 0 }
	}
	r := &termRenderer{
		screen: s,
		theme:  defaultPalette,
		best:   best,
		saved:  make(chan struct{}, 1),
	}
	if sound {
		r.beep = s.Beep
	}
	return r
}

func (r *termRenderer) Render(res engine.TickResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.last = res
	r.draw()

	// Eating and dying are the two sound cues. A terminal without a bell is not an error.
	if r.beep != nil && (res.Outcome == engine.OutcomeAteFood || res.Outcome == engine.OutcomeGameOver) {
		_ = r.beep()
	}
}

func (r *termRenderer) Notify(n engine.Notice) {
	r.mu.Lock()
	r.notice = n.Message
	r.draw()
	r.mu.Unlock()

	if n.Kind == engine.NoticeScoreSaved {
		select {
		case r.saved <- struct{}{}:
		default:
		}
	}
}

// Saved signals after each successful score save so the leaderboard can be reloaded.
func (r *termRenderer) Saved() <-chan struct{} {
	return r.saved
}

func (r *termRenderer) SetLeaders(entries []scores.Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.leaders = entries
	r.draw()
}

func (r *termRenderer) Redraw() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.screen.Sync()
	r.draw()
}

func (r *termRenderer) draw() {
	s := r.screen
	s.Clear()
	res := r.last
	b := res.Board

	drawText(s, 0, 0, padRight(hudLine(res, r.best()), (b.Width+2)*cellWidth), r.theme.hud)

	// Board frame starts on row 1; cell (0,0) sits at column 2, row 2.
	left, top := cellWidth, 2
	r.drawFrame(left-cellWidth, top-1, b)

	if res.Food != nil {
		r.drawCell(left, top, *res.Food, '●', r.theme.food)
	}
	if p := res.PowerUp; p != nil {
		glyph, st := powerUpGlyph(p.Kind, r.theme)
		r.drawCell(left, top, p.Cell, glyph, st)
	}
	for i := len(res.Snake) - 1; i >= 1; i-- {
		r.drawCell(left, top, res.Snake[i], ' ', r.theme.body)
	}
	if len(res.Snake) > 0 {
		r.drawCell(left, top, res.Snake[0], headGlyph(res.Direction), r.theme.head)
	}

	footer := top + b.Height + 1
	drawText(s, 0, footer, "arrows/WASD move  space pause  enter start  r restart  1/2/3 level  h save  q quit", r.theme.border)
	if r.notice != "" {
		drawText(s, 0, footer+1, r.notice, r.theme.notice)
	}

	r.drawLeaders((b.Width+3)*cellWidth, 1)

	cx := left + b.Width*cellWidth/2
	cy := top + b.Height/2
	switch res.Status {
	case engine.StatusNotStarted:
		drawCentered(s, cx, cy, " Press ENTER to start ", r.theme.overlay)
	case engine.StatusPaused:
		drawCentered(s, cx, cy, " Paused ", r.theme.overlay)
	case engine.StatusGameOver:
		drawCentered(s, cx, cy, " Game Over! ", r.theme.overlay)
		drawCentered(s, cx, cy+1, fmt.Sprintf(" %s: %s ", gameOverText(res.Reason), humanize.Comma(int64(res.Score))), r.theme.overlay)
	}

	s.Show()
}

func (r *termRenderer) drawFrame(x, y int, b grid.Board) {
	w := (b.Width + 2) * cellWidth
	h := b.Height + 2
	for i := 0; i < w; i++ {
		r.screen.SetContent(x+i, y, '─', nil, r.theme.border)
		r.screen.SetContent(x+i, y+h-1, '─', nil, r.theme.border)
	}
	for j := 1; j < h-1; j++ {
		r.screen.SetContent(x, y+j, '│', nil, r.theme.border)
		r.screen.SetContent(x+w-1, y+j, '│', nil, r.theme.border)
	}
}

func (r *termRenderer) drawCell(left, top int, c grid.Cell, glyph rune, st tcell.Style) {
	x := left + c.X*cellWidth
	r.screen.SetContent(x, top+c.Y, glyph, nil, st)
	r.screen.SetContent(x+1, top+c.Y, ' ', nil, st)
}

func (r *termRenderer) drawLeaders(x, y int) {
	drawText(r.screen, x, y, "HIGH SCORES", r.theme.hud)
	if len(r.leaders) == 0 {
		drawText(r.screen, x, y+1, "no scores yet", r.theme.border)
		return
	}
	for i, e := range r.leaders {
		line := fmt.Sprintf("%-5s %-12s %8s %s", humanize.Ordinal(i+1), truncate(e.PlayerName, 12), humanize.Comma(int64(e.Score)), e.Difficulty)
		drawText(r.screen, x, y+1+i, line, r.theme.notice)
	}
}

func hudLine(res engine.TickResult, best int) string {
	var fx []string
	for _, eff := range res.Effects {
		fx = append(fx, strings.ToUpper(string(eff.Kind)))
	}
	line := fmt.Sprintf(" Score %s  Best %s  Length %d  %s  %dms",
		humanize.Comma(int64(res.Score)), humanize.Comma(int64(best)), len(res.Snake), res.Difficulty, res.IntervalMS)
	if len(fx) > 0 {
		line += "  [" + strings.Join(fx, " ") + "]"
	}
	return line
}

// headGlyph points the head the way the snake is travelling.
func headGlyph(d grid.Direction) rune {
	switch d {
	case grid.Up:
		return '▲'
	case grid.Down:
		return '▼'
	case grid.Left:
		return '◀'
	default:
		return '▶'
	}
}

func powerUpGlyph(k powerup.Kind, theme palette) (rune, tcell.Style) {
	if k == powerup.KindDouble {
		return '×', theme.double
	}
	return '»', theme.speed
}

func gameOverText(reason engine.Reason) string {
	switch reason {
	case engine.ReasonWall:
		return "Hit the wall"
	case engine.ReasonSelf:
		return "Bit yourself"
	case engine.ReasonBoardFull:
		return "Board cleared"
	}
	return "Final score"
}

func drawText(s tcell.Screen, x, y int, text string, st tcell.Style) {
	i := 0
	for _, ch := range text {
		s.SetContent(x+i, y, ch, nil, st)
		i++
	}
}

func drawCentered(s tcell.Screen, cx, cy int, text string, st tcell.Style) {
	drawText(s, cx-len([]rune(text))/2, cy, text, st)
}

func padRight(s string, n int) string {
	if l := len([]rune(s)); l < n {
		return s + strings.Repeat(" ", n-l)
	}
	return s
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
