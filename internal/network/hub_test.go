package network

import (
	"context"
	"encoding/json"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/MRamiBalles/SnakeArcade/server/internal/engine"
	"github.com/MRamiBalles/SnakeArcade/server/internal/events"
	"github.com/MRamiBalles/SnakeArcade/server/internal/scores"
)

func startHub(t *testing.T, cfg HubConfig) (*Hub, *httptest.Server) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())

	hub := NewHub(cfg, func(r engine.Renderer) *engine.Session {
		return engine.NewSession(engine.SessionConfig{
			Options:  engine.DefaultOptions(),
			Rand:     rand.New(rand.NewSource(1)),
			EventLog: events.NewEventLog(nil),
		}, r)
	}, nil)
	go hub.Run(ctx)
	<-hub.running

	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	t.Cleanup(func() {
		srv.Close()
		cancel()
	})
	return hub, srv
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readUntil reads server messages until match returns true or the deadline passes.
func readUntil(t *testing.T, conn *websocket.Conn, match func(ServerMessage) bool) ServerMessage {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("Read failed before expected message arrived: %v", err)
		}
		for _, line := range strings.Split(string(raw), "\n") {
			var msg ServerMessage
			if err := json.Unmarshal([]byte(line), &msg); err != nil {
				t.Fatalf("Bad server message %q: %v", line, err)
			}
			if match(msg) {
				return msg
			}
		}
	}
}

func TestClientPlaysOwnGame(t *testing.T) {
	_, srv := startHub(t, HubConfig{MaxMessagesPerSecond: 50})
	conn := dial(t, srv)

	first := readUntil(t, conn, func(m ServerMessage) bool { return m.Type == MsgFrame })
	if first.Frame.Status != engine.StatusNotStarted {
		t.Errorf("Expected initial not_started frame, got %s", first.Frame.Status)
	}

	conn.WriteJSON(ClientMessage{Type: "START"})
	running := readUntil(t, conn, func(m ServerMessage) bool {
		return m.Type == MsgFrame && m.Frame.Status == engine.StatusRunning
	})
	if len(running.Frame.Snake) != 1 || running.Frame.Food == nil {
		t.Errorf("Expected fresh snake with food, got %+v", running.Frame)
	}

	conn.WriteJSON(ClientMessage{Type: "DIRECTION", Direction: "north"})
	notice := readUntil(t, conn, func(m ServerMessage) bool { return m.Type == MsgNotice })
	if notice.Notice.Kind != engine.NoticeInvalidCommand {
		t.Errorf("Expected invalid_command notice, got %+v", notice.Notice)
	}

	conn.WriteJSON(ClientMessage{Type: "PAUSE"})
	readUntil(t, conn, func(m ServerMessage) bool {
		return m.Type == MsgFrame && m.Frame.Status == engine.StatusPaused
	})
}

func TestLeaderboardIsBroadcast(t *testing.T) {
	hub, srv := startHub(t, HubConfig{})
	a := dial(t, srv)
	b := dial(t, srv)

	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() < 2 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	hub.AnnounceLeaderboard([]scores.Entry{{PlayerName: "ana", Score: 90, Difficulty: "hard"}})

	for _, conn := range []*websocket.Conn{a, b} {
		msg := readUntil(t, conn, func(m ServerMessage) bool { return m.Type == MsgLeaderboard })
		if len(msg.Scores) != 1 || msg.Scores[0].PlayerName != "ana" {
			t.Errorf("Unexpected leaderboard %+v", msg.Scores)
		}
	}
}

func TestMaxClientsRejectsExtraConnections(t *testing.T) {
	hub, srv := startHub(t, HubConfig{MaxClients: 1})
	dial(t, srv)

	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() < 1 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatal("Expected second connection to be rejected")
	}
	if resp == nil || resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("Expected 503, got %v", resp)
	}
}

func TestReservedSlotsCountTowardsLimit(t *testing.T) {
	hub, srv := startHub(t, HubConfig{MaxClients: 2})

	// Two upgrades in flight fill the hub before either registers.
	if !hub.reserve() || !hub.reserve() {
		t.Fatal("Expected two slots to be available")
	}
	if hub.reserve() {
		t.Fatal("Expected a third reservation to be refused")
	}

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil || resp == nil || resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("Expected 503 while slots are reserved, got err=%v resp=%v", err, resp)
	}

	hub.release()
	conn := dial(t, srv)
	readUntil(t, conn, func(m ServerMessage) bool { return m.Type == MsgFrame })
	if hub.reserve() {
		t.Errorf("Hub should be full again after the connection registered")
	}
}

func TestToCommand(t *testing.T) {
	cases := []struct {
		msg     ClientMessage
		wantErr bool
	}{
		{ClientMessage{Type: "DIRECTION", Direction: "up"}, false},
		{ClientMessage{Type: "DIRECTION", Direction: "sideways"}, true},
		{ClientMessage{Type: "DIFFICULTY", Difficulty: "hard"}, false},
		{ClientMessage{Type: "DIFFICULTY", Difficulty: "brutal"}, true},
		{ClientMessage{Type: "SAVE_SCORE", PlayerName: "neo"}, false},
		{ClientMessage{Type: "TOGGLE_PAUSE"}, false},
		{ClientMessage{Type: "JUMP"}, true},
	}
	for _, tc := range cases {
		cmd, err := tc.msg.ToCommand()
		if (err != nil) != tc.wantErr {
			t.Errorf("%+v: expected error=%v, got %v", tc.msg, tc.wantErr, err)
		}
		if err == nil && string(cmd.Type) != tc.msg.Type {
			t.Errorf("Type not carried over: %s", cmd.Type)
		}
	}
}

func TestRateLimitWindow(t *testing.T) {
	c := &Client{hub: &Hub{rateLimit: 2}}
	now := time.Now()

	if !c.allow(now) || !c.allow(now) {
		t.Fatal("Expected first two messages to pass")
	}
	if c.allow(now.Add(100 * time.Millisecond)) {
		t.Errorf("Expected third message in the same second to be dropped")
	}
	if !c.allow(now.Add(1100 * time.Millisecond)) {
		t.Errorf("Expected a new window after one second")
	}
}
