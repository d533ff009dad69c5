// Package engine contains the game loop and simulation logic.
// This is the heartbeat of Snake Arcade.
//
// Engine advances one GameState per Tick and never blocks. Ticker is the
// timer handle that drives it, and Session is the goroutine that owns both,
// feeding player commands and ticks through a single select loop.
package engine
