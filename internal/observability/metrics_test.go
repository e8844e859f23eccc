package observability

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestMetricsExposition(t *testing.T) {
	m := NewMetrics("updown_test")
	m.GameCreated("BTCUSDT")
	m.PredictionResolved(true, 220)
	m.ObserveJob("end_games", time.Now(), errors.New("boom"))

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(w.Body)
	for _, want := range []string{
		`updown_test_game_created_total{symbol="BTCUSDT"} 1`,
		`updown_test_score_points_awarded_total 220`,
		`updown_test_job_runs_total{job="end_games",status="error"} 1`,
	} {
		if !strings.Contains(string(body), want) {
			t.Fatalf("missing %q in exposition", want)
		}
	}
}

func TestNilMetricsSafe(t *testing.T) {
	var m *Metrics
	m.GameCreated("X")
	m.GameClosed("COMPLETED")
	m.PredictionResolved(false, 0)
	m.AirdropSent("daily", true, 10)
	m.SetActiveGames(3)
	m.ObserveJob("x", time.Now(), nil)
}

func TestTwoInstancesDoNotCollide(t *testing.T) {
	_ = NewMetrics("dup")
	_ = NewMetrics("dup")
}
