// Package main - agitator
// Load generator for stress testing: many bots playing Snake over WebSocket at once.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gorilla/websocket"
)

// Config for the agitator
type Config struct {
	ServerURL      string
	NumClients     int
	ActionInterval time.Duration
	TestDuration   time.Duration
	Difficulty     string
	SaveScores     bool
}

// Stats tracks performance metrics
type Stats struct {
	MessagesSent     int64
	MessagesReceived int64
	GamesPlayed      int64
	FoodEaten        int64
	ScoresSaved      int64
	Errors           int64
	Latencies        []time.Duration
	mu               sync.Mutex
}

// frameHeader is the part of a server message the bots care about.
type frameHeader struct {
	Type  string `json:"type"`
	Frame *struct {
		Status  string `json:"status"`
		Outcome string `json:"outcome"`
		Score   int    `json:"score"`
	} `json:"frame"`
	Notice *struct {
		Kind string `json:"kind"`
	} `json:"notice"`
}

var directions = []string{"up", "down", "left", "right"}

func main() {
	// Parse flags
	serverURL := flag.String("url", "ws://localhost:8080/ws", "WebSocket server URL")
	numClients := flag.Int("clients", 50, "Number of concurrent bots")
	interval := flag.Duration("interval", 100*time.Millisecond, "Input interval per bot")
	duration := flag.Duration("duration", 60*time.Second, "Test duration")
	difficulty := flag.String("difficulty", "hard", "Difficulty each bot plays on")
	save := flag.Bool("save", false, "Submit a score after every game")
	flag.Parse()

	config := Config{
		ServerURL:      *serverURL,
		NumClients:     *numClients,
		ActionInterval: *interval,
		TestDuration:   *duration,
		Difficulty:     *difficulty,
		SaveScores:     *save,
	}

	fmt.Println("=========================================")
	fmt.Println("AGITATOR - Snake Arcade Stress Test")
	fmt.Println("=========================================")
	fmt.Printf("Server: %s\n", config.ServerURL)
	fmt.Printf("Bots: %d\n", config.NumClients)
	fmt.Printf("Interval: %v\n", config.ActionInterval)
	fmt.Printf("Duration: %v\n", config.TestDuration)
	fmt.Println("=========================================")

	// Setup graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), config.TestDuration)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt)
	go func() {
		<-sigChan
		fmt.Println("\nInterrupt received, stopping...")
		cancel()
	}()

	stats := runStressTest(ctx, config)
	printResults(stats, config)
}

func runStressTest(ctx context.Context, config Config) *Stats {
	stats := &Stats{
		Latencies: make([]time.Duration, 0, 10000),
	}

	var wg sync.WaitGroup

	fmt.Println("\nStarting bots...")

	for i := 0; i < config.NumClients; i++ {
		wg.Add(1)
		go func(clientID int) {
			defer wg.Done()
			runClient(ctx, clientID, config, stats)
		}(i)

		// Stagger bot starts to avoid thundering herd
		time.Sleep(10 * time.Millisecond)
	}

	fmt.Printf("All %d bots started\n\n", config.NumClients)

	// Progress updates
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				fmt.Printf("Progress: Sent=%s Recv=%s Games=%s Errors=%d\n",
					humanize.Comma(atomic.LoadInt64(&stats.MessagesSent)),
					humanize.Comma(atomic.LoadInt64(&stats.MessagesReceived)),
					humanize.Comma(atomic.LoadInt64(&stats.GamesPlayed)),
					atomic.LoadInt64(&stats.Errors))
			}
		}
	}()

	wg.Wait()
	return stats
}

func runClient(ctx context.Context, clientID int, config Config, stats *Stats) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, config.ServerURL, nil)
	if err != nil {
		log.Printf("Bot %d: Connection failed: %v", clientID, err)
		atomic.AddInt64(&stats.Errors, 1)
		return
	}
	defer conn.Close()

	var writeMu sync.Mutex
	send := func(msg map[string]string) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		start := time.Now()
		if err := conn.WriteJSON(msg); err != nil {
			return err
		}
		atomic.AddInt64(&stats.MessagesSent, 1)
		stats.mu.Lock()
		stats.Latencies = append(stats.Latencies, time.Since(start))
		stats.mu.Unlock()
		return nil
	}

	if err := send(map[string]string{"type": "DIFFICULTY", "difficulty": config.Difficulty}); err != nil {
		atomic.AddInt64(&stats.Errors, 1)
		return
	}
	if err := send(map[string]string{"type": "START"}); err != nil {
		atomic.AddInt64(&stats.Errors, 1)
		return
	}

	// Receiver restarts the game whenever it ends.
	go func() {
		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				return
			}
			for _, line := range bytes.Split(raw, []byte{'\n'}) {
				atomic.AddInt64(&stats.MessagesReceived, 1)
				var msg frameHeader
				if err := json.Unmarshal(line, &msg); err != nil {
					atomic.AddInt64(&stats.Errors, 1)
					continue
				}
				handleMessage(msg, clientID, config, stats, send)
			}
		}
	}()

	// Steer at configured interval
	ticker := time.NewTicker(config.ActionInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			dir := directions[rand.Intn(len(directions))]
			if err := send(map[string]string{"type": "DIRECTION", "direction": dir}); err != nil {
				atomic.AddInt64(&stats.Errors, 1)
				return
			}
		}
	}
}

func handleMessage(msg frameHeader, clientID int, config Config, stats *Stats, send func(map[string]string) error) {
	switch {
	case msg.Type == "FRAME" && msg.Frame != nil:
		switch msg.Frame.Outcome {
		case "ate_food":
			atomic.AddInt64(&stats.FoodEaten, 1)
		case "game_over":
			atomic.AddInt64(&stats.GamesPlayed, 1)
			if config.SaveScores {
				send(map[string]string{"type": "SAVE_SCORE", "player_name": fmt.Sprintf("bot-%03d", clientID)})
				return
			}
			send(map[string]string{"type": "RESTART"})
		}
	case msg.Type == "NOTICE" && msg.Notice != nil:
		switch msg.Notice.Kind {
		case "score_saved":
			atomic.AddInt64(&stats.ScoresSaved, 1)
			send(map[string]string{"type": "RESTART"})
		case "score_failed":
			atomic.AddInt64(&stats.Errors, 1)
			send(map[string]string{"type": "RESTART"})
		}
	}
}

func printResults(stats *Stats, config Config) {
	fmt.Println("\n=========================================")
	fmt.Println("STRESS TEST RESULTS")
	fmt.Println("=========================================")

	sent := atomic.LoadInt64(&stats.MessagesSent)
	recv := atomic.LoadInt64(&stats.MessagesReceived)
	errs := atomic.LoadInt64(&stats.Errors)

	fmt.Printf("Messages Sent:     %s\n", humanize.Comma(sent))
	fmt.Printf("Messages Received: %s\n", humanize.Comma(recv))
	fmt.Printf("Games Played:      %s\n", humanize.Comma(atomic.LoadInt64(&stats.GamesPlayed)))
	fmt.Printf("Food Eaten:        %s\n", humanize.Comma(atomic.LoadInt64(&stats.FoodEaten)))
	fmt.Printf("Scores Saved:      %s\n", humanize.Comma(atomic.LoadInt64(&stats.ScoresSaved)))
	fmt.Printf("Errors:            %d\n", errs)
	fmt.Printf("Error Rate:        %.2f%%\n", float64(errs)/float64(sent+1)*100)

	throughput := float64(sent) / config.TestDuration.Seconds()
	fmt.Printf("Throughput:        %.2f msg/sec\n", throughput)

	// Latency stats
	stats.mu.Lock()
	latencies := stats.Latencies
	stats.mu.Unlock()
	if len(latencies) > 0 {
		var total time.Duration
		var min, max time.Duration = latencies[0], latencies[0]

		for _, l := range latencies {
			total += l
			if l < min {
				min = l
			}
			if l > max {
				max = l
			}
		}

		avg := total / time.Duration(len(latencies))

		fmt.Printf("\nWrite latency:\n")
		fmt.Printf("  Min: %v\n", min)
		fmt.Printf("  Avg: %v\n", avg)
		fmt.Printf("  Max: %v\n", max)
	}

	// Verdict
	fmt.Println("\n-----------------------------------------")
	if errs == 0 && atomic.LoadInt64(&stats.GamesPlayed) > 0 {
		fmt.Println("TEST PASSED: System handled the load")
	} else if float64(errs)/float64(sent+1) < 0.05 {
		fmt.Println("TEST WARNING: Some errors detected")
	} else {
		fmt.Println("TEST FAILED: High error rate")
	}
	fmt.Println("=========================================")

	// Export results as JSON
	results := map[string]interface{}{
		"messages_sent":      sent,
		"messages_received":  recv,
		"games_played":       atomic.LoadInt64(&stats.GamesPlayed),
		"errors":             errs,
		"throughput_per_sec": throughput,
		"config": map[string]interface{}{
			"clients":    config.NumClients,
			"interval":   config.ActionInterval.String(),
			"duration":   config.TestDuration.String(),
			"difficulty": config.Difficulty,
		},
	}

	jsonData, _ := json.MarshalIndent(results, "", "  ")
	os.WriteFile("stress_test_results.json", jsonData, 0644)
	fmt.Println("\nResults saved to stress_test_results.json")
}
