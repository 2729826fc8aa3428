package pipeline

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"sportsml/internal/dataset"
	"sportsml/internal/eval"
	"sportsml/internal/metrics"
	"sportsml/internal/model"
	"sportsml/internal/records"
	"sportsml/internal/registry"
)

var pipelineTeams = []string{"KC", "BUF", "PHI", "DAL", "SF", "DET", "BAL", "MIA"}

// historicalBatch builds labeled records where the outcome follows the
// direction of the spread movement, so every variant has signal to learn.
func historicalBatch(n int) []records.RawRecord {
	recs := make([]records.RawRecord, n)
	base := time.Date(2025, 9, 7, 13, 0, 0, 0, time.UTC)
	for i := range recs {
		movement := float64(i%5) - 2
		correct := movement < 0
		recs[i] = records.RawRecord{
			ID:              fmt.Sprintf("game-%04d", i),
			Sport:           "nfl",
			HomeTeam:        pipelineTeams[i%len(pipelineTeams)],
			AwayTeam:        pipelineTeams[(i+3)%len(pipelineTeams)],
			GameTime:        base.AddDate(0, 0, i%120),
			PredictedWinner: pipelineTeams[i%len(pipelineTeams)],
			Confidence:      55 + float64(i%40),
			OpeningSpread:   float64(i%13) - 6,
			ClosingSpread:   float64(i%13) - 6 + movement,
			OpeningTotal:    44.5,
			ClosingTotal:    45.5,
			OpeningML:       -120,
			ClosingML:       -130,
			WasCorrect:      &correct,
		}
	}
	return recs
}

func runParams() Params {
	return Params{
		Sport:          "nfl",
		Target:         records.TargetWinner,
		TestFraction:   0.2,
		MinGames:       50,
		Seed:           42,
		EnableXGBoost:  true,
		Blend:          true,
		BlendWeights:   eval.DefaultBlendWeights(),
		BlendThreshold: 0.5,
	}
}

func TestRunTrainsAndPersists(t *testing.T) {
	reg := registry.New(t.TempDir())
	recs := historicalBatch(200)

	summary, err := Run(context.Background(), recs, reg, runParams(), nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if summary.Version == "" {
		t.Fatal("run produced no version")
	}
	if summary.Selected == "" {
		t.Error("run selected no variant")
	}
	if summary.Rows != 200 {
		t.Errorf("rows = %d, want 200", summary.Rows)
	}
	if summary.Report.TestRows != summary.TestRows {
		t.Errorf("report rows %d != summary test rows %d", summary.Report.TestRows, summary.TestRows)
	}

	set, err := reg.Load("nfl", records.TargetWinner, registry.Latest)
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if set.Meta.ModelVersion != summary.Version {
		t.Errorf("latest resolves to %s, want %s", set.Meta.ModelVersion, summary.Version)
	}
	if set.Meta.Selected != summary.Selected {
		t.Errorf("persisted selection %s, want %s", set.Meta.Selected, summary.Selected)
	}
	for _, kind := range model.VariantOrder {
		if _, ok := set.Models[kind]; !ok {
			t.Errorf("persisted set missing %s", kind)
		}
	}
	if len(set.Meta.FeatureNames) == 0 {
		t.Error("persisted metadata has no feature manifest")
	}
	if set.Meta.TrainingRows != 200-summary.TestRows {
		t.Errorf("persisted training rows = %d, want %d", set.Meta.TrainingRows, 200-summary.TestRows)
	}
}

func TestRunPersistsBlendWeights(t *testing.T) {
	reg := registry.New(t.TempDir())

	_, err := Run(context.Background(), historicalBatch(200), reg, runParams(), nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	set, err := reg.Load("nfl", records.TargetWinner, registry.Latest)
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	blend, ok := set.Meta.Hyperparams[eval.BlendName]
	if !ok {
		t.Fatal("blend weights not persisted in hyperparams")
	}
	for _, key := range []string{"forest", "xgboost", "logreg", "threshold"} {
		if _, ok := blend[key]; !ok {
			t.Errorf("blend hyperparams missing %q", key)
		}
	}
}

func TestRunDeterministicBySeed(t *testing.T) {
	recs := historicalBatch(200)

	regA := registry.New(t.TempDir())
	a, err := Run(context.Background(), recs, regA, runParams(), nil)
	if err != nil {
		t.Fatalf("first run failed: %v", err)
	}
	regB := registry.New(t.TempDir())
	b, err := Run(context.Background(), recs, regB, runParams(), nil)
	if err != nil {
		t.Fatalf("second run failed: %v", err)
	}

	if a.Selected != b.Selected {
		t.Errorf("selection differs across runs: %s vs %s", a.Selected, b.Selected)
	}
	if a.Report != b.Report {
		t.Errorf("report differs across runs: %+v vs %+v", a.Report, b.Report)
	}
}

func TestRunAbortsBelowMinGames(t *testing.T) {
	dir := t.TempDir()
	reg := registry.New(dir)

	_, err := Run(context.Background(), historicalBatch(30), reg, runParams(), nil)
	if !errors.Is(err, dataset.ErrInsufficientData) {
		t.Fatalf("err = %v, want ErrInsufficientData", err)
	}

	if _, err := reg.Load("nfl", records.TargetWinner, registry.Latest); err == nil {
		t.Error("aborted run left artifacts in the registry")
	}
	versions, err := reg.Versions("nfl", records.TargetWinner)
	if err != nil {
		t.Fatalf("Versions failed: %v", err)
	}
	if len(versions) != 0 {
		t.Errorf("aborted run persisted versions: %v", versions)
	}
}

func TestRunCountsFailuresAndSkips(t *testing.T) {
	m := metrics.NewWithRegistry(prometheus.NewRegistry())
	reg := registry.New(t.TempDir())

	_, err := Run(context.Background(), historicalBatch(30), reg, runParams(), m)
	if !errors.Is(err, dataset.ErrInsufficientData) {
		t.Fatalf("err = %v, want ErrInsufficientData", err)
	}
	if got := testutil.ToFloat64(m.TrainingFailures); got != 1 {
		t.Errorf("training_failures_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.ErrorsTotal); got != 1 {
		t.Errorf("errors_total = %v, want 1", got)
	}

	p := runParams()
	p.EnableXGBoost = false
	if _, err := Run(context.Background(), historicalBatch(200), reg, p, m); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if got := testutil.ToFloat64(m.VariantsTrained); got != 3 {
		t.Errorf("variants_trained = %v, want 3", got)
	}
	if got := testutil.ToFloat64(m.VariantsSkipped); got != 0 {
		t.Errorf("variants_skipped_total = %v, disabled variant is not a skip", got)
	}
}

func TestRunHonorsCancellation(t *testing.T) {
	reg := registry.New(t.TempDir())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Run(ctx, historicalBatch(200), reg, runParams(), nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	versions, err := reg.Versions("nfl", records.TargetWinner)
	if err != nil {
		t.Fatalf("Versions failed: %v", err)
	}
	if len(versions) != 0 {
		t.Errorf("cancelled run persisted versions: %v", versions)
	}
}
