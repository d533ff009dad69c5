package metrics

import (
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestSnapshotCountsGameplay(t *testing.T) {
	c := &Collector{StartTime: time.Now()}
	c.RecordTick(2 * time.Millisecond)
	c.RecordTick(4 * time.Millisecond)
	c.RecordGameStarted()
	c.RecordFood()
	c.RecordScoreSubmission(nil)
	c.RecordScoreSubmission(errors.New("boom"))

	snap := c.Snapshot()
	tick := snap["tick"].(map[string]interface{})
	if tick["count"].(int64) != 2 {
		t.Errorf("Expected 2 ticks, got %v", tick["count"])
	}
	if tick["avg_latency_ms"].(float64) != 3 {
		t.Errorf("Expected 3ms average, got %v", tick["avg_latency_ms"])
	}
	scores := snap["scores"].(map[string]interface{})
	if scores["submitted"].(int64) != 1 || scores["submit_errors"].(int64) != 1 {
		t.Errorf("Expected one ok and one failed submission, got %v", scores)
	}
}

func TestPrometheusHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	PrometheusHandler()(rec, httptest.NewRequest("GET", "/metrics/prometheus", nil))

	body := rec.Body.String()
	if !strings.Contains(body, "snake_tick_count") || !strings.Contains(body, "snake_ws_connections") {
		t.Errorf("Expected prometheus series in body, got:\n%s", body)
	}
}
