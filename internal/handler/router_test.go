package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"updown/internal/auth"
	"updown/internal/cache"
	"updown/internal/payout"
	"updown/internal/pricefeed"
	"updown/internal/repository/memory"
	"updown/internal/service"
)

type testServer struct {
	engine *gin.Engine
	jwt    auth.JWT
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	store := memory.New()
	feed, err := pricefeed.NewStatic(map[string]string{"BTCUSDT": "100"})
	if err != nil {
		t.Fatalf("feed: %v", err)
	}
	rankings := &service.RankingAggregator{Repo: store}
	scores := &service.ScoreAccumulator{Repo: store, Rankings: rankings}
	resolver := &service.PredictionResolver{Repo: store, Scores: scores, Rankings: rankings}
	games := &service.GameManager{Repo: store, Feed: feed, Resolver: resolver}
	predictions := &service.PredictionService{Repo: store}
	airdrops := &service.AirdropDistributor{Repo: store, Rankings: rankings, Sender: payout.Noop{}, Locks: cache.NewMemoryStore()}
	settings := &service.SystemSettingsService{Repo: store}

	j := auth.JWT{Secret: []byte("test-secret"), Issuer: "updown"}
	r := gin.New()
	rt := &Router{
		Games:    &GameHandler{Games: games, Predictions: predictions},
		Players:  &PlayerHandler{Predictions: predictions, Scores: scores, Rankings: rankings},
		Rankings: &RankingHandler{Rankings: rankings},
		Airdrops: &AirdropHandler{Airdrops: airdrops},
		Admin:    &AdminHandler{Scores: scores, Settings: settings},
		Health: &HealthHandler{Checks: map[string]func(context.Context) error{
			"db": func(context.Context) error { return nil },
		}},
		JWT: j,
	}
	rt.Mount(r)
	return &testServer{engine: r, jwt: j}
}

func (s *testServer) token(t *testing.T, user, role string) string {
	t.Helper()
	tok, _, err := s.jwt.Sign(auth.Claims{Role: role, RegisteredClaims: jwt.RegisteredClaims{Subject: user}})
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return tok
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) (int, apiResponse) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	var resp apiResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	return w.Code, resp
}

func TestGameFlowOverHTTP(t *testing.T) {
	s := newTestServer(t)
	admin := s.token(t, "ops", auth.RoleAdmin)
	alice := s.token(t, "alice", auth.RolePlayer)

	if code, _ := s.do(t, http.MethodGet, "/api/games", "", nil); code != http.StatusUnauthorized {
		t.Fatalf("no token code=%d want 401", code)
	}
	if code, _ := s.do(t, http.MethodPost, "/api/admin/games", alice, map[string]any{"symbol": "BTCUSDT"}); code != http.StatusForbidden {
		t.Fatalf("player create code=%d want 403", code)
	}

	code, resp := s.do(t, http.MethodPost, "/api/admin/games", admin, map[string]any{"symbol": "BTCUSDT", "duration": "5m"})
	if code != http.StatusOK {
		t.Fatalf("create code=%d msg=%s", code, resp.Message)
	}
	game, _ := resp.Data.(map[string]any)
	id, _ := game["id"].(float64)
	if id == 0 {
		t.Fatalf("create data=%v", resp.Data)
	}
	gamePath := "/api/games/" + jsonNumber(id)

	// The token subject wins over the body user id.
	code, resp = s.do(t, http.MethodPost, gamePath+"/predictions", alice, map[string]any{"user_id": "mallory", "direction": "UP", "confidence": 60})
	if code != http.StatusOK {
		t.Fatalf("predict code=%d msg=%s", code, resp.Message)
	}
	if p, _ := resp.Data.(map[string]any); p["user_id"] != "alice" {
		t.Fatalf("prediction user=%v want alice", p["user_id"])
	}
	if code, _ = s.do(t, http.MethodPost, gamePath+"/predictions", alice, map[string]any{"direction": "DOWN"}); code != http.StatusConflict {
		t.Fatalf("duplicate code=%d want 409", code)
	}
	if code, _ = s.do(t, http.MethodPost, gamePath+"/predictions", alice, map[string]any{"direction": "LEFT"}); code != http.StatusBadRequest {
		t.Fatalf("bad direction code=%d want 400", code)
	}

	if code, _ = s.do(t, http.MethodPost, "/api/admin/games/"+jsonNumber(id)+"/close", admin, nil); code != http.StatusOK {
		t.Fatalf("close code=%d", code)
	}
	code, resp = s.do(t, http.MethodGet, gamePath+"/stats", alice, nil)
	if code != http.StatusOK {
		t.Fatalf("stats code=%d", code)
	}
	if stats, _ := resp.Data.(map[string]any); stats["lose_count"] != float64(1) {
		t.Fatalf("stats=%v want one loss on unchanged price", stats)
	}
	if code, _ = s.do(t, http.MethodPost, gamePath+"/predictions", s.token(t, "bob", auth.RolePlayer), map[string]any{"direction": "UP"}); code != http.StatusUnprocessableEntity {
		t.Fatalf("closed game code=%d want 422", code)
	}
	if code, _ = s.do(t, http.MethodGet, "/api/games/999", alice, nil); code != http.StatusNotFound {
		t.Fatalf("unknown game code=%d want 404", code)
	}
	if code, _ = s.do(t, http.MethodGet, "/api/games/abc", alice, nil); code != http.StatusBadRequest {
		t.Fatalf("bad id code=%d want 400", code)
	}
}

func TestPlayerRoutesRespectOwnership(t *testing.T) {
	s := newTestServer(t)
	admin := s.token(t, "ops", auth.RoleAdmin)
	alice := s.token(t, "alice", auth.RolePlayer)

	if code, _ := s.do(t, http.MethodPost, "/api/admin/scores/adjust", admin, map[string]any{"user_id": "alice", "points": 25}); code != http.StatusOK {
		t.Fatalf("adjust code=%d", code)
	}
	code, resp := s.do(t, http.MethodGet, "/api/users/me/score", alice, nil)
	if code != http.StatusOK {
		t.Fatalf("me score code=%d", code)
	}
	if entry, _ := resp.Data.(map[string]any); entry["total_points_after"] != float64(25) {
		t.Fatalf("score=%v want 25", resp.Data)
	}
	if code, _ = s.do(t, http.MethodGet, "/api/users/bob/scores", alice, nil); code != http.StatusForbidden {
		t.Fatalf("other user code=%d want 403", code)
	}
	if code, _ = s.do(t, http.MethodGet, "/api/users/alice/rankings", admin, nil); code != http.StatusOK {
		t.Fatalf("admin read code=%d want 200", code)
	}
	code, resp = s.do(t, http.MethodGet, "/api/rankings/daily?limit=10", alice, nil)
	if code != http.StatusOK {
		t.Fatalf("rankings code=%d", code)
	}
	if items, _ := resp.Data.([]any); len(items) != 1 || resp.Meta["total"] != float64(1) {
		t.Fatalf("ranking page=%v meta=%v", resp.Data, resp.Meta)
	}
	if code, _ = s.do(t, http.MethodGet, "/api/rankings/yearly", alice, nil); code != http.StatusBadRequest {
		t.Fatalf("bad period code=%d want 400", code)
	}
}

func TestAdminSwitchesAndAirdropDryRun(t *testing.T) {
	s := newTestServer(t)
	admin := s.token(t, "ops", auth.RoleAdmin)

	code, resp := s.do(t, http.MethodPut, "/api/admin/settings/airdrop", admin, map[string]any{"enabled": true})
	if code != http.StatusOK {
		t.Fatalf("put switch code=%d msg=%s", code, resp.Message)
	}
	code, resp = s.do(t, http.MethodGet, "/api/admin/settings", admin, nil)
	if code != http.StatusOK {
		t.Fatalf("list switches code=%d", code)
	}
	items, _ := resp.Data.([]any)
	if len(items) != 1 {
		t.Fatalf("switches=%v want one stored", resp.Data)
	}

	s.do(t, http.MethodPost, "/api/admin/scores/adjust", admin, map[string]any{"user_id": "alice", "points": 10})
	code, resp = s.do(t, http.MethodPost, "/api/admin/airdrops/daily/dry-run", admin, nil)
	if code != http.StatusOK {
		t.Fatalf("dry run code=%d msg=%s", code, resp.Message)
	}
	if result, _ := resp.Data.(map[string]any); result["eligible"] != float64(1) || result["dry_run"] != true {
		t.Fatalf("dry run=%v", resp.Data)
	}
}

func TestHealthRoutes(t *testing.T) {
	s := newTestServer(t)
	for _, path := range []string{"/healthz", "/readyz"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		w := httptest.NewRecorder()
		s.engine.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Fatalf("%s code=%d", path, w.Code)
		}
	}

	gin.SetMode(gin.TestMode)
	r := gin.New()
	(&HealthHandler{Checks: map[string]func(context.Context) error{
		"redis": func(context.Context) error { return errors.New("down") },
	}}).Register(r)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz with failed check code=%d want 503", w.Code)
	}
}

func TestServiceErrorStatus(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cases := map[error]int{
		service.ErrNotFound:            http.StatusNotFound,
		service.ErrInvalidInput:        http.StatusBadRequest,
		service.ErrDuplicatePrediction: http.StatusConflict,
		service.ErrGameNotActive:       http.StatusUnprocessableEntity,
		service.ErrPriceUnavailable:    http.StatusServiceUnavailable,
		errors.New("boom"):             http.StatusInternalServerError,
	}
	for err, want := range cases {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		ServiceError(c, err)
		if w.Code != want {
			t.Fatalf("%v code=%d want %d", err, w.Code, want)
		}
	}
}

func jsonNumber(v float64) string {
	b, _ := json.Marshal(int64(v))
	return string(b)
}
