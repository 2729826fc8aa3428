package model

import (
	"errors"
	"math"
	"math/rand"
	"runtime"
	"sync"
)

// ForestOptions are the bagging hyperparameters. Defaults follow the fixed
// production configuration; grid search sweeps trees, depth, and min-split.
type ForestOptions struct {
	NumTrees        int   `json:"num_trees"`
	MaxDepth        int   `json:"max_depth"`
	MinSamplesSplit int   `json:"min_samples_split"`
	Seed            int64 `json:"seed"`
}

// DefaultForestOptions returns the fixed hyperparameter defaults.
func DefaultForestOptions() ForestOptions {
	return ForestOptions{
		NumTrees:        200,
		MaxDepth:        20,
		MinSamplesSplit: 2,
		Seed:            42,
	}
}

// Forest is a bootstrap-aggregated ensemble of regression trees over binary
// labels; each leaf holds the positive rate of its training rows, so the
// ensemble mean is the predicted probability.
type Forest struct {
	Trees      []*Node       `json:"trees"`
	Features   int           `json:"features"`
	Importance []float64     `json:"importance"`
	Options    ForestOptions `json:"options"`
}

// TrainForest fits the forest. Trees are independent, so they are built in
// parallel across CPU cores; each tree derives its own seed from the base
// seed and its index, keeping the fit deterministic regardless of scheduling.
func TrainForest(x [][]float64, y []float64, opts ForestOptions) (*Forest, error) {
	if len(x) == 0 || len(x) != len(y) {
		return nil, errors.New("forest: empty or mismatched training data")
	}
	nFeatures := len(x[0])
	subset := int(math.Sqrt(float64(nFeatures)))
	if subset < 1 {
		subset = 1
	}

	f := &Forest{
		Trees:    make([]*Node, opts.NumTrees),
		Features: nFeatures,
		Options:  opts,
	}

	importances := make([][]float64, opts.NumTrees)

	workers := runtime.NumCPU()
	if workers > opts.NumTrees {
		workers = opts.NumTrees
	}
	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup

	ones := make([]float64, len(y))
	for i := range ones {
		ones[i] = 1
	}

	for t := 0; t < opts.NumTrees; t++ {
		wg.Add(1)
		sem <- struct{}{}
		go func(t int) {
			defer wg.Done()
			defer func() { <-sem }()

			rng := rand.New(rand.NewSource(opts.Seed + int64(t)*7919))
			idx := make([]int, len(x))
			for i := range idx {
				idx[i] = rng.Intn(len(x))
			}
			imp := make([]float64, nFeatures)
			f.Trees[t] = buildTree(x, y, ones, idx, 0, treeParams{
				maxDepth:      opts.MaxDepth,
				minSplit:      opts.MinSamplesSplit,
				featureSubset: subset,
				rng:           rng,
				importance:    imp,
			})
			importances[t] = imp
		}(t)
	}
	wg.Wait()

	total := make([]float64, nFeatures)
	for _, imp := range importances {
		for j, v := range imp {
			total[j] += v
		}
	}
	f.Importance = normalizeImportance(total)

	return f, nil
}

// Kind implements Classifier.
func (f *Forest) Kind() string { return KindForest }

// PredictProb averages the leaf values across trees.
func (f *Forest) PredictProb(row []float64) float64 {
	if len(f.Trees) == 0 {
		return 0.5
	}
	var sum float64
	for _, t := range f.Trees {
		sum += t.Predict(row)
	}
	return clamp01(sum / float64(len(f.Trees)))
}

// FeatureImportances implements FeatureImporter.
func (f *Forest) FeatureImportances() []float64 { return f.Importance }
