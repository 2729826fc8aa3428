package train

import (
	"math"
	"time"

	"github.com/rs/zerolog/log"

	"sportsml/internal/dataset"
	"sportsml/internal/model"
)

// forestGrid is the single configurable search grid: forest size, depth and
// split minimum. The sweep is exhaustive and deterministic; it has no time
// budget of its own and is expected to be bounded by the caller.
var forestGrid = struct {
	trees    []int
	depths   []int
	minSplit []int
}{
	trees:    []int{100, 200, 300},
	depths:   []int{10, 20, 30},
	minSplit: []int{2, 5, 10},
}

const gridFolds = 3

// searchForest sweeps the grid with stratified cross-validation on the
// training partition and returns the accuracy-maximizing options. Ties keep
// the earlier grid point, so the result is deterministic.
func searchForest(x [][]float64, y []float64, base model.ForestOptions, seed int64) model.ForestOptions {
	start := time.Now()
	folds := dataset.Folds(y, gridFolds, seed)

	best := base
	bestScore := -1.0

	for _, trees := range forestGrid.trees {
		for _, depth := range forestGrid.depths {
			for _, minSplit := range forestGrid.minSplit {
				opts := base
				opts.NumTrees = trees
				opts.MaxDepth = depth
				opts.MinSamplesSplit = minSplit

				score := crossValAccuracy(x, y, folds, opts)
				if score > bestScore {
					bestScore = score
					best = opts
				}
			}
		}
	}

	log.Info().
		Int("num_trees", best.NumTrees).
		Int("max_depth", best.MaxDepth).
		Int("min_samples_split", best.MinSamplesSplit).
		Float64("cv_accuracy", bestScore).
		Dur("elapsed", time.Since(start)).
		Msg("grid search complete")
	return best
}

// CrossValAccuracy runs stratified k-fold cross-validation of a forest with
// the given options and returns mean and standard deviation of fold
// accuracy. Exported for the cross-validation summary in run metadata.
func CrossValAccuracy(x [][]float64, y []float64, k int, seed int64, opts model.ForestOptions) (mean, std float64) {
	folds := dataset.Folds(y, k, seed)
	scores := foldScores(x, y, folds, opts)
	if len(scores) == 0 {
		return 0, 0
	}
	for _, s := range scores {
		mean += s
	}
	mean /= float64(len(scores))
	for _, s := range scores {
		d := s - mean
		std += d * d
	}
	std = math.Sqrt(std / float64(len(scores)))
	return mean, std
}

func crossValAccuracy(x [][]float64, y []float64, folds [][]int, opts model.ForestOptions) float64 {
	scores := foldScores(x, y, folds, opts)
	if len(scores) == 0 {
		return 0
	}
	var sum float64
	for _, s := range scores {
		sum += s
	}
	return sum / float64(len(scores))
}

func foldScores(x [][]float64, y []float64, folds [][]int, opts model.ForestOptions) []float64 {
	var scores []float64
	for f, holdout := range folds {
		if len(holdout) == 0 {
			continue
		}
		inFold := make(map[int]bool, len(holdout))
		for _, i := range holdout {
			inFold[i] = true
		}

		var trainX [][]float64
		var trainY []float64
		for i := range x {
			if !inFold[i] {
				trainX = append(trainX, x[i])
				trainY = append(trainY, y[i])
			}
		}
		if len(trainX) == 0 {
			continue
		}

		clf, err := model.TrainForest(trainX, trainY, opts)
		if err != nil {
			log.Warn().Err(err).Int("fold", f).Msg("fold training failed")
			continue
		}

		correct := 0
		for _, i := range holdout {
			pred := clf.PredictProb(x[i]) >= 0.5
			if pred == (y[i] >= 0.5) {
				correct++
			}
		}
		scores = append(scores, float64(correct)/float64(len(holdout)))
	}
	return scores
}
