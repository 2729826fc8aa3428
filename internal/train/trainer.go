// Package train fits the classifier variants on one training partition. The
// scaling transform is fit here, on the training partition only, and frozen
// before any evaluation or inference use.
package train

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"sportsml/internal/dataset"
	"sportsml/internal/model"
	"sportsml/internal/scale"
)

// ErrNoVariantsTrained aborts the run when every variant failed: there is
// nothing to evaluate or persist.
var ErrNoVariantsTrained = errors.New("no classifier variants trained")

// Options configure one training pass.
type Options struct {
	Seed       int64
	GridSearch bool
	// EnableXGBoost gates the second-order variant; disabling it must not
	// prevent the other variants from training.
	EnableXGBoost bool
}

// Candidate is one trained variant bound to the run's scaling transform.
type Candidate struct {
	Name      string
	Model     model.Classifier
	Params    map[string]any
	TrainedAt time.Time
}

// Result couples the candidates with the frozen scaler that produced their
// training matrix.
type Result struct {
	Candidates map[string]*Candidate
	Scaler     *scale.Scaler
}

// Fit trains every enabled variant on the training partition. A variant that
// fails to train is skipped with a warning; the run only aborts if no variant
// survives.
func Fit(split *dataset.Split, opts Options) (*Result, error) {
	scaler := &scale.Scaler{}
	scaledX, err := scaler.FitTransform(split.TrainX)
	if err != nil {
		return nil, fmt.Errorf("fit scaler: %w", err)
	}

	res := &Result{
		Candidates: make(map[string]*Candidate),
		Scaler:     scaler,
	}

	for _, name := range model.VariantOrder {
		if name == model.KindXGBoost && !opts.EnableXGBoost {
			log.Warn().Str("variant", name).Msg("variant disabled, skipping")
			continue
		}

		start := time.Now()
		clf, params, err := trainVariant(name, scaledX, split.TrainY, opts)
		if err != nil {
			log.Warn().Err(err).Str("variant", name).Msg("variant failed to train, skipping")
			continue
		}

		res.Candidates[name] = &Candidate{
			Name:      name,
			Model:     clf,
			Params:    params,
			TrainedAt: time.Now().UTC(),
		}
		log.Info().
			Str("variant", name).
			Dur("elapsed", time.Since(start)).
			Int("rows", len(scaledX)).
			Msg("variant trained")
	}

	if len(res.Candidates) == 0 {
		return nil, ErrNoVariantsTrained
	}
	return res, nil
}

func trainVariant(name string, x [][]float64, y []float64, opts Options) (model.Classifier, map[string]any, error) {
	switch name {
	case model.KindForest:
		fo := model.DefaultForestOptions()
		fo.Seed = opts.Seed
		if opts.GridSearch {
			fo = searchForest(x, y, fo, opts.Seed)
		}
		clf, err := model.TrainForest(x, y, fo)
		return clf, map[string]any{
			"num_trees":         fo.NumTrees,
			"max_depth":         fo.MaxDepth,
			"min_samples_split": fo.MinSamplesSplit,
			"grid_search":       opts.GridSearch,
		}, err
	case model.KindBoost:
		bo := model.DefaultBoostOptions()
		bo.Seed = opts.Seed
		clf, err := model.TrainBoost(x, y, bo)
		return clf, map[string]any{
			"rounds":        bo.Rounds,
			"max_depth":     bo.MaxDepth,
			"learning_rate": bo.LearningRate,
		}, err
	case model.KindXGBoost:
		xo := model.DefaultXGBoostOptions()
		xo.Seed = opts.Seed
		clf, err := model.TrainBoost(x, y, xo)
		return clf, map[string]any{
			"rounds":        xo.Rounds,
			"max_depth":     xo.MaxDepth,
			"learning_rate": xo.LearningRate,
			"lambda":        xo.Lambda,
		}, err
	case model.KindLogReg:
		lo := model.DefaultLogRegOptions()
		clf, err := model.TrainLogReg(x, y, lo)
		return clf, map[string]any{
			"learning_rate": lo.LearningRate,
			"epochs":        lo.Epochs,
			"l2":            lo.L2,
		}, err
	default:
		return nil, nil, fmt.Errorf("unknown variant %q", name)
	}
}
