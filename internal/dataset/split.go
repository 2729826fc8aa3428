// Package dataset produces leakage-safe train/test partitions of a feature
// matrix, stratified by label so both partitions preserve the batch's
// positive-class rate.
package dataset

import (
	"errors"
	"fmt"
	"math/rand"
)

// ErrInsufficientData aborts a run before any model is trained: metrics from
// a tiny batch are meaningless and must not reach the registry.
var ErrInsufficientData = errors.New("insufficient data for training")

// Split holds one disjoint partition pair. The partitions are produced once
// per run and discarded afterwards; they are never persisted.
type Split struct {
	TrainX [][]float64
	TrainY []float64
	TestX  [][]float64
	TestY  []float64
}

// minPerClass is the smallest class size that still allows at least one test
// row per class after stratification.
const minPerClass = 4

// Stratified partitions (x, y) into train/test with the given test fraction,
// keeping the positive rate of each partition close to the batch rate. The
// shuffle is seeded for reproducibility. It fails with ErrInsufficientData
// when the batch is smaller than minRows or either class is too small to
// stratify.
func Stratified(x [][]float64, y []float64, testFraction float64, minRows int, seed int64) (*Split, error) {
	if len(x) != len(y) {
		return nil, fmt.Errorf("feature/label length mismatch: %d vs %d", len(x), len(y))
	}
	if testFraction <= 0 || testFraction >= 1 {
		return nil, fmt.Errorf("test fraction must be in (0, 1), got %g", testFraction)
	}
	if len(x) < minRows {
		return nil, fmt.Errorf("%w: got %d rows, need >= %d", ErrInsufficientData, len(x), minRows)
	}

	var pos, neg []int
	for i, label := range y {
		if label >= 0.5 {
			pos = append(pos, i)
		} else {
			neg = append(neg, i)
		}
	}
	if len(pos) < minPerClass || len(neg) < minPerClass {
		return nil, fmt.Errorf("%w: class sizes %d/%d too small to stratify", ErrInsufficientData, len(pos), len(neg))
	}

	rng := rand.New(rand.NewSource(seed))
	rng.Shuffle(len(pos), func(i, j int) { pos[i], pos[j] = pos[j], pos[i] })
	rng.Shuffle(len(neg), func(i, j int) { neg[i], neg[j] = neg[j], neg[i] })

	s := &Split{}
	for _, class := range [][]int{pos, neg} {
		nTest := int(float64(len(class)) * testFraction)
		if nTest < 1 {
			nTest = 1
		}
		for k, idx := range class {
			if k < nTest {
				s.TestX = append(s.TestX, x[idx])
				s.TestY = append(s.TestY, y[idx])
			} else {
				s.TrainX = append(s.TrainX, x[idx])
				s.TrainY = append(s.TrainY, y[idx])
			}
		}
	}

	// Interleave determinism: shuffle the assembled partitions too, so row
	// order does not leak class blocks to order-sensitive learners.
	shufflePair(rng, s.TrainX, s.TrainY)
	shufflePair(rng, s.TestX, s.TestY)

	return s, nil
}

// Folds returns k stratified cross-validation folds as index slices over the
// given labels. Used by grid search and the cross-validation summary.
func Folds(y []float64, k int, seed int64) [][]int {
	if k < 2 {
		k = 2
	}
	var pos, neg []int
	for i, label := range y {
		if label >= 0.5 {
			pos = append(pos, i)
		} else {
			neg = append(neg, i)
		}
	}
	rng := rand.New(rand.NewSource(seed))
	rng.Shuffle(len(pos), func(i, j int) { pos[i], pos[j] = pos[j], pos[i] })
	rng.Shuffle(len(neg), func(i, j int) { neg[i], neg[j] = neg[j], neg[i] })

	folds := make([][]int, k)
	for i, idx := range pos {
		folds[i%k] = append(folds[i%k], idx)
	}
	for i, idx := range neg {
		folds[(i+1)%k] = append(folds[(i+1)%k], idx)
	}
	return folds
}

// PositiveRate returns the share of positive labels.
func PositiveRate(y []float64) float64 {
	if len(y) == 0 {
		return 0
	}
	pos := 0
	for _, label := range y {
		if label >= 0.5 {
			pos++
		}
	}
	return float64(pos) / float64(len(y))
}

func shufflePair(rng *rand.Rand, x [][]float64, y []float64) {
	rng.Shuffle(len(x), func(i, j int) {
		x[i], x[j] = x[j], x[i]
		y[i], y[j] = y[j], y[i]
	})
}
