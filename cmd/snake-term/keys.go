package main

import (
	"github.com/gdamore/tcell/v2"

	"github.com/MRamiBalles/SnakeArcade/server/internal/domain/grid"
	"github.com/MRamiBalles/SnakeArcade/server/internal/domain/rules"
	"github.com/MRamiBalles/SnakeArcade/server/internal/engine"
)

// keyCommand maps a key press to a session command.
// ok is false for keys the game ignores.
func keyCommand(e *tcell.EventKey, playerName string) (engine.Command, bool) {
	switch e.Key() {
	case tcell.KeyUp:
		return direction(grid.Up), true
	case tcell.KeyDown:
		return direction(grid.Down), true
	case tcell.KeyLeft:
		return direction(grid.Left), true
	case tcell.KeyRight:
		return direction(grid.Right), true
	case tcell.KeyEnter:
		return engine.Command{Type: engine.CmdStart}, true
	case tcell.KeyRune:
	default:
		return engine.Command{}, false
	}

	switch e.Rune() {
	case 'w', 'W':
		return direction(grid.Up), true
	case 's', 'S':
		return direction(grid.Down), true
	case 'a', 'A':
		return direction(grid.Left), true
	case 'd', 'D':
		return direction(grid.Right), true
	case ' ', 'p', 'P':
		return engine.Command{Type: engine.CmdTogglePause}, true
	case 'r', 'R':
		return engine.Command{Type: engine.CmdRestart}, true
	case '1':
		return engine.Command{Type: engine.CmdDifficulty, Difficulty: rules.Easy}, true
	case '2':
		return engine.Command{Type: engine.CmdDifficulty, Difficulty: rules.Medium}, true
	case '3':
		return engine.Command{Type: engine.CmdDifficulty, Difficulty: rules.Hard}, true
	case 'h', 'H':
		return engine.Command{Type: engine.CmdSaveScore, PlayerName: playerName}, true
	}
	return engine.Command{}, false
}

func direction(d grid.Direction) engine.Command {
	return engine.Command{Type: engine.CmdDirection, Direction: d}
}

func isQuit(e *tcell.EventKey) bool {
	if e.Key() == tcell.KeyEscape || e.Key() == tcell.KeyCtrlC {
		return true
	}
	r := e.Rune()
	return e.Key() == tcell.KeyRune && (r == 'q' || r == 'Q')
}
