package eval

import (
	"math"
	"testing"
)

func TestComputeKnownConfusion(t *testing.T) {
	// 3 TP, 1 FP, 4 TN, 2 FN.
	labels := []float64{1, 1, 1, 0, 0, 0, 0, 0, 1, 1}
	probs := []float64{0.9, 0.8, 0.7, 0.6, 0.4, 0.3, 0.2, 0.1, 0.45, 0.35}

	r := Compute(labels, probs)

	if got, want := r.Accuracy, 0.7; math.Abs(got-want) > 1e-12 {
		t.Errorf("accuracy = %v, want %v", got, want)
	}
	if got, want := r.Precision, 3.0/4.0; math.Abs(got-want) > 1e-12 {
		t.Errorf("precision = %v, want %v", got, want)
	}
	if got, want := r.Recall, 3.0/5.0; math.Abs(got-want) > 1e-12 {
		t.Errorf("recall = %v, want %v", got, want)
	}
	wantF1 := 2 * (0.75 * 0.6) / (0.75 + 0.6)
	if math.Abs(r.F1-wantF1) > 1e-12 {
		t.Errorf("f1 = %v, want %v", r.F1, wantF1)
	}
	if r.TestRows != 10 {
		t.Errorf("test rows = %d, want 10", r.TestRows)
	}
}

func TestROCAUCPerfectRanking(t *testing.T) {
	labels := []float64{0, 0, 1, 1}
	probs := []float64{0.1, 0.2, 0.8, 0.9}
	if got := rocAUC(labels, probs); math.Abs(got-1) > 1e-12 {
		t.Errorf("perfect ranking AUC = %v, want 1", got)
	}
}

func TestROCAUCInvertedRanking(t *testing.T) {
	labels := []float64{1, 1, 0, 0}
	probs := []float64{0.1, 0.2, 0.8, 0.9}
	if got := rocAUC(labels, probs); math.Abs(got-0) > 1e-12 {
		t.Errorf("inverted ranking AUC = %v, want 0", got)
	}
}

func TestROCAUCTiedScores(t *testing.T) {
	// All scores identical: chance-level by the averaged-rank convention.
	labels := []float64{1, 0, 1, 0}
	probs := []float64{0.5, 0.5, 0.5, 0.5}
	if got := rocAUC(labels, probs); math.Abs(got-0.5) > 1e-12 {
		t.Errorf("fully tied AUC = %v, want 0.5", got)
	}
}

func TestROCAUCSingleClass(t *testing.T) {
	if got := rocAUC([]float64{1, 1, 1}, []float64{0.2, 0.5, 0.9}); got != 0.5 {
		t.Errorf("single-class AUC = %v, want 0.5 fallback", got)
	}
}

func TestComputeEmpty(t *testing.T) {
	r := Compute(nil, nil)
	if r.Accuracy != 0 || r.F1 != 0 || r.ROCAUC != 0.5 {
		t.Errorf("empty report = %+v", r)
	}
}

func TestComputeDegenerateAllNegative(t *testing.T) {
	labels := []float64{0, 0, 0, 0}
	probs := []float64{0.1, 0.2, 0.3, 0.4}
	r := Compute(labels, probs)
	if r.Precision != 0 || r.Recall != 0 || r.F1 != 0 {
		t.Errorf("degenerate metrics should be zero, got %+v", r)
	}
	if r.Accuracy != 1 {
		t.Errorf("accuracy = %v, want 1", r.Accuracy)
	}
}
