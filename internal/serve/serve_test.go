package serve

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"sportsml/internal/eval"
	"sportsml/internal/pipeline"
	"sportsml/internal/records"
	"sportsml/internal/registry"
)

var serveTeams = []string{"KC", "BUF", "PHI", "DAL", "SF", "DET", "BAL", "MIA"}

func servedBatch(n int) []records.RawRecord {
	recs := make([]records.RawRecord, n)
	base := time.Date(2025, 9, 7, 13, 0, 0, 0, time.UTC)
	for i := range recs {
		movement := float64(i%5) - 2
		correct := movement < 0
		recs[i] = records.RawRecord{
			ID:            fmt.Sprintf("game-%04d", i),
			Sport:         "nfl",
			HomeTeam:      serveTeams[i%len(serveTeams)],
			AwayTeam:      serveTeams[(i+3)%len(serveTeams)],
			GameTime:      base.AddDate(0, 0, i%120),
			Confidence:    55 + float64(i%40),
			OpeningSpread: float64(i%13) - 6,
			ClosingSpread: float64(i%13) - 6 + movement,
			OpeningTotal:  44.5,
			ClosingTotal:  45.5,
			OpeningML:     -120,
			ClosingML:     -130,
			WasCorrect:    &correct,
		}
	}
	return recs
}

var (
	trainedDir  string
	trainedVers string
)

// TestMain trains one winner artifact set shared by every test. The registry
// is read-only after training, so sharing is safe.
func TestMain(m *testing.M) {
	dir, err := os.MkdirTemp("", "serve-registry-*")
	if err != nil {
		fmt.Fprintln(os.Stderr, "fixture dir:", err)
		os.Exit(1)
	}
	summary, err := pipeline.Run(context.Background(), servedBatch(200), registry.New(dir), pipeline.Params{
		Sport:          "nfl",
		Target:         records.TargetWinner,
		TestFraction:   0.2,
		MinGames:       50,
		Seed:           42,
		EnableXGBoost:  true,
		Blend:          true,
		BlendWeights:   eval.DefaultBlendWeights(),
		BlendThreshold: 0.5,
	}, nil)
	if err != nil {
		os.RemoveAll(dir)
		fmt.Fprintln(os.Stderr, "training fixture:", err)
		os.Exit(1)
	}
	trainedDir = dir
	trainedVers = summary.Version

	code := m.Run()
	os.RemoveAll(dir)
	os.Exit(code)
}

func trainedRegistry(t *testing.T) (*registry.Registry, string) {
	t.Helper()
	return registry.New(trainedDir), trainedVers
}

func loadedServer(t *testing.T) *Server {
	t.Helper()
	reg, _ := trainedRegistry(t)
	svc := New(reg, "nfl", nil, nil)
	if err := svc.LoadLatest(); err != nil {
		t.Fatalf("LoadLatest failed: %v", err)
	}
	return NewServer(svc, 0)
}

func emptyServer(t *testing.T) *Server {
	t.Helper()
	svc := New(registry.New(t.TempDir()), "nfl", nil, nil)
	return NewServer(svc, 0)
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode request: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var parsed map[string]any
	if rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), &parsed); err != nil {
			t.Fatalf("decode response %q: %v", rec.Body.String(), err)
		}
	}
	return rec, parsed
}

func validGame() map[string]any {
	return map[string]any{
		"sport":         "nfl",
		"homeTeam":      "KC",
		"awayTeam":      "BUF",
		"gameTime":      "2025-12-25T18:00:00Z",
		"openingSpread": -3.5,
		"closingSpread": -4.5,
		"openingTotal":  47.5,
		"closingTotal":  48.0,
		"openingML":     -150,
		"closingML":     -165,
		"confidence":    68,
	}
}

func TestPredictBeforeLoadReturns503(t *testing.T) {
	srv := emptyServer(t)

	rec, body := doJSON(t, srv.Handler(), http.MethodPost, "/predict", validGame())
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	if body["detail"] != ErrModelsNotLoaded.Error() {
		t.Errorf("detail = %v", body["detail"])
	}
}

func TestHealthReflectsLoadedModels(t *testing.T) {
	srv := emptyServer(t)
	rec, body := doJSON(t, srv.Handler(), http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	models := body["models"].(map[string]any)
	if models["winner"] != false {
		t.Error("winner reported loaded on empty service")
	}

	srv = loadedServer(t)
	_, body = doJSON(t, srv.Handler(), http.MethodGet, "/health", nil)
	models = body["models"].(map[string]any)
	if models["winner"] != true {
		t.Error("winner not reported loaded")
	}
	if models["spread"] != false {
		t.Error("spread reported loaded without spread training")
	}
	if body["trained_at"] == "unknown" {
		t.Error("trained_at missing after load")
	}
}

func TestRootEndpoint(t *testing.T) {
	srv := loadedServer(t)
	rec, body := doJSON(t, srv.Handler(), http.MethodGet, "/", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if body["models_loaded"] != true {
		t.Errorf("models_loaded = %v", body["models_loaded"])
	}
}

func TestPredictReturnsCalibratedOutput(t *testing.T) {
	srv := loadedServer(t)
	_, version := trainedRegistry(t)

	rec, body := doJSON(t, srv.Handler(), http.MethodPost, "/predict", validGame())
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %v", rec.Code, body)
	}

	prob := body["winner_probability"].(float64)
	if prob < 0 || prob > 1 {
		t.Errorf("winner_probability = %v", prob)
	}
	conf := body["confidence"].(float64)
	expect := prob
	if expect < 0.5 {
		expect = 1 - expect
	}
	if diff := conf - expect*100; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("confidence = %v, want %v", conf, expect*100)
	}
	if body["model_version"] != version {
		t.Errorf("model_version = %v, want %v", body["model_version"], version)
	}
	if _, ok := body["spread_prediction"]; ok {
		t.Error("spread fields present without a spread model")
	}
}

func TestPredictWithExplicitDateParts(t *testing.T) {
	srv := loadedServer(t)

	game := validGame()
	delete(game, "gameTime")
	game["dayOfWeek"] = 0
	game["month"] = 12
	game["hour"] = 13

	rec, body := doJSON(t, srv.Handler(), http.MethodPost, "/predict", game)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %v", rec.Code, body)
	}
}

func TestPredictRejectsIncompleteInput(t *testing.T) {
	srv := loadedServer(t)

	game := validGame()
	delete(game, "gameTime")
	rec, body := doJSON(t, srv.Handler(), http.MethodPost, "/predict", game)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if body["detail"] == nil {
		t.Error("error body missing detail")
	}

	game = validGame()
	game["sport"] = ""
	rec, _ = doJSON(t, srv.Handler(), http.MethodPost, "/predict", game)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestPredictUnseenTeamStillScores(t *testing.T) {
	srv := loadedServer(t)

	game := validGame()
	game["homeTeam"] = "EXPANSION_CITY"
	rec, body := doJSON(t, srv.Handler(), http.MethodPost, "/predict", game)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %v", rec.Code, body)
	}
	prob := body["winner_probability"].(float64)
	if prob < 0 || prob > 1 {
		t.Errorf("winner_probability = %v", prob)
	}
}

func TestPredictBatchCountsFailures(t *testing.T) {
	srv := loadedServer(t)

	bad := validGame()
	bad["homeTeam"] = ""
	bad["awayTeam"] = "BUF"
	games := []map[string]any{validGame(), bad, validGame()}

	req := httptest.NewRequest(http.MethodPost, "/predict/batch", bytes.NewReader(mustJSON(t, games)))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var body struct {
		Predictions []map[string]any `json:"predictions"`
		Total       int              `json:"total"`
		Successful  int              `json:"successful"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Total != 3 || body.Successful != 2 {
		t.Errorf("total/successful = %d/%d, want 3/2", body.Total, body.Successful)
	}
	if len(body.Predictions) != 3 {
		t.Fatalf("predictions = %d, want 3", len(body.Predictions))
	}
	failed := body.Predictions[1]
	if failed["error"] == nil {
		t.Error("failed entry carries no error")
	}
	if failed["game"] != "BUF @ " {
		t.Errorf("game tag = %v", failed["game"])
	}
}

func TestModelsInfoEndpoint(t *testing.T) {
	srv := emptyServer(t)
	rec, _ := doJSON(t, srv.Handler(), http.MethodGet, "/models/info", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}

	srv = loadedServer(t)
	_, version := trainedRegistry(t)
	rec, body := doJSON(t, srv.Handler(), http.MethodGet, "/models/info", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	winner := body["winner"].(map[string]any)
	if winner["model_version"] != version {
		t.Errorf("model_version = %v, want %v", winner["model_version"], version)
	}
}

func TestReloadPicksUpNewArtifacts(t *testing.T) {
	reg, version := trainedRegistry(t)
	svc := New(reg, "nfl", nil, nil)
	srv := NewServer(svc, 0)

	rec, _ := doJSON(t, srv.Handler(), http.MethodPost, "/predict", validGame())
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status before reload = %d, want 503", rec.Code)
	}

	rec, _ = doJSON(t, srv.Handler(), http.MethodPost, "/models/reload", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("reload status = %d", rec.Code)
	}

	rec, body := doJSON(t, srv.Handler(), http.MethodPost, "/predict", validGame())
	if rec.Code != http.StatusOK {
		t.Fatalf("status after reload = %d", rec.Code)
	}
	if body["model_version"] != version {
		t.Errorf("model_version = %v, want %v", body["model_version"], version)
	}
}

func TestReloadWithEmptyRegistryFails(t *testing.T) {
	srv := emptyServer(t)
	rec, _ := doJSON(t, srv.Handler(), http.MethodPost, "/models/reload", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}

func TestPredictionLogAppendAndCount(t *testing.T) {
	plog, err := OpenPredictionLog(t.TempDir())
	if err != nil {
		t.Fatalf("open log: %v", err)
	}
	defer plog.Close()

	game := &GameInput{Sport: "nfl", HomeTeam: "KC", AwayTeam: "BUF", GameTime: time.Now()}
	out := &PredictionOutput{WinnerPrediction: true, WinnerProbability: 0.7, Confidence: 70, ModelVersion: "v"}

	for i := 0; i < 3; i++ {
		if err := plog.Append(game, out); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}
	n, err := plog.Count()
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 3 {
		t.Errorf("count = %d, want 3", n)
	}
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return b
}
