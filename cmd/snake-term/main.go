// Package main is the terminal Snake client.
// It runs a local Session and draws it with tcell. Scores go to a snake-server
// when -server is given, otherwise to a local SQLite file.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/mattn/go-isatty"

	"github.com/MRamiBalles/SnakeArcade/server/internal/domain/grid"
	"github.com/MRamiBalles/SnakeArcade/server/internal/domain/rules"
	"github.com/MRamiBalles/SnakeArcade/server/internal/engine"
	"github.com/MRamiBalles/SnakeArcade/server/internal/infra/cache"
	"github.com/MRamiBalles/SnakeArcade/server/internal/infra/storage"
	"github.com/MRamiBalles/SnakeArcade/server/internal/platform/logger"
	"github.com/MRamiBalles/SnakeArcade/server/internal/scores"
)

// leaderboard lists the top scores for display.
type leaderboard interface {
	List(ctx context.Context, difficulty string) ([]scores.Entry, error)
}

// localBoard adapts the in-process score service to leaderboard.
type localBoard struct{ svc *scores.Service }

func (l localBoard) List(ctx context.Context, difficulty string) ([]scores.Entry, error) {
	return l.svc.Top(ctx, difficulty)
}

func main() {
	serverURL := flag.String("server", "", "snake-server base URL for scores (empty = local database)")
	dbPath := flag.String("db", "snake-term.db", "Local SQLite database for best score and offline scores")
	logPath := flag.String("log", "snake-term.log", "Log file")
	name := flag.String("name", scores.DefaultPlayerName, "Player name for saved scores")
	difficulty := flag.String("difficulty", string(rules.Medium), "Starting difficulty: easy, medium or hard")
	wrap := flag.Bool("wrap", false, "Wrap around the edges instead of dying on them")
	width := flag.Int("width", 20, "Board width in cells")
	height := flag.Int("height", 20, "Board height in cells")
	mute := flag.Bool("mute", false, "Disable the terminal bell on food and game over")
	flag.Parse()

	if !isatty.IsTerminal(os.Stdout.Fd()) && !isatty.IsCygwinTerminal(os.Stdout.Fd()) {
		fmt.Fprintln(os.Stderr, "snake-term needs an interactive terminal")
		os.Exit(1)
	}

	level, ok := rules.ParseDifficulty(*difficulty)
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown difficulty %q\n", *difficulty)
		os.Exit(2)
	}
	if *width < 2 || *height < 2 {
		fmt.Fprintln(os.Stderr, "board must be at least 2x2")
		os.Exit(2)
	}

	logFile, err := os.OpenFile(*logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "cannot open log file: %v\n", err)
		os.Exit(1)
	}
	defer logFile.Close()
	appLogger := logger.NewLoggerTo(logFile)

	db, err := storage.InitSQLite(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "cannot open database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	best := cache.NewBestScore(storage.NewSQLiteSettingsRepository(db), cache.DefaultBestScoreKey)

	var (
		submitter engine.Submitter
		board     leaderboard
	)
	if *serverURL != "" {
		client := scores.NewClient(*serverURL)
		submitter, board = client, client
		appLogger.Info("Scores go to " + *serverURL)
	} else {
		svc := scores.NewService(storage.NewSQLiteScoreRepository(db), appLogger)
		submitter, board = svc, localBoard{svc: svc}
		appLogger.Info("Scores stay in " + *dbPath)
	}

	screen, err := tcell.NewScreen()
	if err != nil {
		fmt.Fprintf(os.Stderr, "cannot create screen: %v\n", err)
		os.Exit(1)
	}
	if err := screen.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "cannot init screen: %v\n", err)
		os.Exit(1)
	}
	defer screen.Fini()
	screen.HideCursor()

	opts := engine.DefaultOptions()
	opts.Board = grid.Board{Width: *width, Height: *height}
	opts.Start = grid.Cell{X: min(5, *width-1), Y: min(5, *height-1)}
	opts.Difficulty = level
	if *wrap {
		opts.Boundary = engine.BoundaryWrap
	}

	renderer := newTermRenderer(screen, best.Current, !*mute)
	session := engine.NewSession(engine.SessionConfig{
		Options:   opts,
		Submitter: submitter,
		Best:      best,
		Logger:    appLogger,
	}, renderer)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go session.Run(ctx)
	go refreshLeaders(ctx, board, renderer, appLogger)

	events := make(chan tcell.Event, 32)
	go func() {
		for {
			ev := screen.PollEvent()
			if ev == nil {
				return
			}
			events <- ev
		}
	}()

	for {
		select {
		case ev := <-events:
			switch e := ev.(type) {
			case *tcell.EventResize:
				renderer.Redraw()
			case *tcell.EventKey:
				if isQuit(e) {
					cancel()
					<-session.Done()
					appLogger.Info("Terminal client closed.")
					return
				}
				if cmd, ok := keyCommand(e, *name); ok {
					session.Send(cmd)
				}
			}
		case <-session.Done():
			return
		}
	}
}

// refreshLeaders loads the leaderboard at startup and again after every saved score.
func refreshLeaders(ctx context.Context, board leaderboard, r *termRenderer, log *logger.Logger) {
	load := func() {
		reqCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		entries, err := board.List(reqCtx, scores.AllDifficulties)
		if err != nil {
			log.Warn("Leaderboard unavailable: " + err.Error())
			return
		}
		r.SetLeaders(entries)
	}

	load()
	for {
		select {
		case <-ctx.Done():
			return
		case <-r.Saved():
			load()
		}
	}
}
