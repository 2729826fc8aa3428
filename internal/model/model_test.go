package model

import (
	"math"
	"math/rand"
	"testing"
)

// separable builds a dataset where the label follows the sign of the first
// feature, with a little noise in the remaining columns.
func separable(n int, seed int64) ([][]float64, []float64) {
	rng := rand.New(rand.NewSource(seed))
	x := make([][]float64, n)
	y := make([]float64, n)
	for i := range x {
		v := rng.NormFloat64()
		x[i] = []float64{v, rng.NormFloat64() * 0.1, rng.NormFloat64() * 0.1}
		if v > 0 {
			y[i] = 1
		}
	}
	return x, y
}

func accuracy(c Classifier, x [][]float64, y []float64) float64 {
	correct := 0
	for i, p := range PredictBatch(c, x) {
		if (p >= 0.5) == (y[i] >= 0.5) {
			correct++
		}
	}
	return float64(correct) / float64(len(y))
}

func smallForestOptions() ForestOptions {
	o := DefaultForestOptions()
	o.NumTrees = 25
	o.MaxDepth = 6
	return o
}

func smallBoostOptions(secondOrder bool) BoostOptions {
	var o BoostOptions
	if secondOrder {
		o = DefaultXGBoostOptions()
	} else {
		o = DefaultBoostOptions()
	}
	o.Rounds = 30
	o.MaxDepth = 3
	return o
}

func TestForestLearnsSeparableData(t *testing.T) {
	x, y := separable(300, 1)
	f, err := TrainForest(x, y, smallForestOptions())
	if err != nil {
		t.Fatalf("TrainForest failed: %v", err)
	}
	if acc := accuracy(f, x, y); acc < 0.9 {
		t.Errorf("forest training accuracy = %v, want >= 0.9", acc)
	}
}

func TestForestDeterministicBySeed(t *testing.T) {
	x, y := separable(200, 2)

	a, err := TrainForest(x, y, smallForestOptions())
	if err != nil {
		t.Fatalf("first fit failed: %v", err)
	}
	b, err := TrainForest(x, y, smallForestOptions())
	if err != nil {
		t.Fatalf("second fit failed: %v", err)
	}

	for i := range x {
		pa, pb := a.PredictProb(x[i]), b.PredictProb(x[i])
		if pa != pb {
			t.Fatalf("same seed produced different predictions at row %d: %v vs %v", i, pa, pb)
		}
	}
}

func TestForestProbabilityRange(t *testing.T) {
	x, y := separable(150, 3)
	f, err := TrainForest(x, y, smallForestOptions())
	if err != nil {
		t.Fatalf("TrainForest failed: %v", err)
	}
	for _, p := range PredictBatch(f, x) {
		if p < 0 || p > 1 || math.IsNaN(p) {
			t.Fatalf("probability out of range: %v", p)
		}
	}
}

func TestBoostVariantsLearnSeparableData(t *testing.T) {
	x, y := separable(300, 4)
	for _, secondOrder := range []bool{false, true} {
		b, err := TrainBoost(x, y, smallBoostOptions(secondOrder))
		if err != nil {
			t.Fatalf("TrainBoost(secondOrder=%v) failed: %v", secondOrder, err)
		}
		if acc := accuracy(b, x, y); acc < 0.9 {
			t.Errorf("boost(secondOrder=%v) accuracy = %v, want >= 0.9", secondOrder, acc)
		}
		for _, p := range PredictBatch(b, x) {
			if p <= 0 || p >= 1 || math.IsNaN(p) {
				t.Fatalf("boost probability out of (0, 1): %v", p)
			}
		}
	}
}

func TestBoostKinds(t *testing.T) {
	x, y := separable(100, 5)

	gb, err := TrainBoost(x, y, smallBoostOptions(false))
	if err != nil {
		t.Fatalf("TrainBoost failed: %v", err)
	}
	if gb.Kind() != KindBoost {
		t.Errorf("first-order kind = %q, want %q", gb.Kind(), KindBoost)
	}

	xgb, err := TrainBoost(x, y, smallBoostOptions(true))
	if err != nil {
		t.Fatalf("TrainBoost second-order failed: %v", err)
	}
	if xgb.Kind() != KindXGBoost {
		t.Errorf("second-order kind = %q, want %q", xgb.Kind(), KindXGBoost)
	}
}

func TestLogRegLearnsSeparableData(t *testing.T) {
	x, y := separable(300, 6)
	m, err := TrainLogReg(x, y, DefaultLogRegOptions())
	if err != nil {
		t.Fatalf("TrainLogReg failed: %v", err)
	}
	if acc := accuracy(m, x, y); acc < 0.9 {
		t.Errorf("logreg accuracy = %v, want >= 0.9", acc)
	}
}

func TestImportanceConcentratesOnSignalFeature(t *testing.T) {
	x, y := separable(300, 7)
	f, err := TrainForest(x, y, smallForestOptions())
	if err != nil {
		t.Fatalf("TrainForest failed: %v", err)
	}

	imp := f.FeatureImportances()
	if len(imp) != 3 {
		t.Fatalf("importance length = %d, want 3", len(imp))
	}
	var sum float64
	for _, v := range imp {
		if v < 0 {
			t.Errorf("negative importance %v", v)
		}
		sum += v
	}
	if math.Abs(sum-1) > 1e-9 {
		t.Errorf("importance sums to %v, want 1", sum)
	}
	if imp[0] < imp[1] || imp[0] < imp[2] {
		t.Errorf("signal feature should dominate importance, got %v", imp)
	}
}

func TestMarshalRoundTripAllKinds(t *testing.T) {
	x, y := separable(120, 8)

	forest, _ := TrainForest(x, y, smallForestOptions())
	gb, _ := TrainBoost(x, y, smallBoostOptions(false))
	xgb, _ := TrainBoost(x, y, smallBoostOptions(true))
	lr, _ := TrainLogReg(x, y, DefaultLogRegOptions())

	for _, c := range []Classifier{forest, gb, xgb, lr} {
		blob, err := Marshal(c)
		if err != nil {
			t.Fatalf("Marshal(%s) failed: %v", c.Kind(), err)
		}
		restored, err := Unmarshal(blob)
		if err != nil {
			t.Fatalf("Unmarshal(%s) failed: %v", c.Kind(), err)
		}
		if restored.Kind() != c.Kind() {
			t.Fatalf("round trip changed kind: %q -> %q", c.Kind(), restored.Kind())
		}
		for i := range x {
			if got, want := restored.PredictProb(x[i]), c.PredictProb(x[i]); got != want {
				t.Fatalf("%s: restored prediction differs at row %d: %v vs %v", c.Kind(), i, got, want)
			}
		}
	}
}

func TestUnmarshalUnknownKind(t *testing.T) {
	if _, err := Unmarshal([]byte(`{"kind":"mystery","payload":{}}`)); err == nil {
		t.Fatal("expected error for unknown model kind")
	}
}
