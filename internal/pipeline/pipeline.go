// Package pipeline runs a full batch training pass: feature extraction,
// stratified splitting, variant training, evaluation, and registry
// persistence. A run either persists a complete artifact set or nothing.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"sportsml/internal/dataset"
	"sportsml/internal/eval"
	"sportsml/internal/features"
	"sportsml/internal/metrics"
	"sportsml/internal/model"
	"sportsml/internal/records"
	"sportsml/internal/registry"
	"sportsml/internal/train"
)

// Params configure a single training run for one sport and target.
type Params struct {
	Sport          string
	Target         records.Target
	TestFraction   float64
	MinGames       int
	Seed           int64
	GridSearch     bool
	EnableXGBoost  bool
	Blend          bool
	BlendWeights   eval.BlendWeights
	BlendThreshold float64
	CVFolds        int
}

// Summary reports what a completed run produced.
type Summary struct {
	Version  string
	Selected string
	Report   eval.Report
	Rows     int
	TestRows int
	Rejected int
	Duration time.Duration
}

// Run executes the batch pipeline against an already loaded record set and
// persists the winning artifact set to reg. Nothing is written when any
// stage fails. The metrics argument may be nil for one-shot CLI use.
func Run(ctx context.Context, recs []records.RawRecord, reg *registry.Registry, p Params, m *metrics.Metrics) (*Summary, error) {
	started := time.Now()
	if m != nil {
		m.TrainingRuns.Inc()
	}

	summary, err := run(ctx, recs, reg, p, m)
	if m != nil {
		m.TrainingDuration.Observe(time.Since(started).Seconds())
		if err != nil {
			m.TrainingFailures.Inc()
			m.ErrorsTotal.Inc()
		}
	}
	if err != nil {
		return nil, err
	}
	summary.Duration = time.Since(started)

	log.Info().
		Str("sport", p.Sport).
		Str("target", string(p.Target)).
		Str("version", summary.Version).
		Str("selected", summary.Selected).
		Float64("f1", summary.Report.F1).
		Float64("auc", summary.Report.ROCAUC).
		Int("rows", summary.Rows).
		Dur("elapsed", summary.Duration).
		Msg("training run complete")
	return summary, nil
}

func run(ctx context.Context, recs []records.RawRecord, reg *registry.Registry, p Params, m *metrics.Metrics) (*Summary, error) {
	if m != nil {
		m.RecordsLoaded.Add(float64(len(recs)))
	}

	ext, err := features.Extract(recs, p.Target)
	if err != nil {
		return nil, fmt.Errorf("extract features: %w", err)
	}
	if m != nil {
		m.RecordsRejected.Add(float64(ext.Rejected))
		m.TrainingRows.Set(float64(len(ext.Matrix)))
	}
	log.Info().
		Int("rows", len(ext.Matrix)).
		Int("features", len(ext.Manifest)).
		Int("rejected", ext.Rejected).
		Msg("feature matrix built")

	if len(ext.Matrix) < p.MinGames {
		return nil, fmt.Errorf("%w: %d labeled games, need %d",
			dataset.ErrInsufficientData, len(ext.Matrix), p.MinGames)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	split, err := dataset.Stratified(ext.Matrix, ext.Labels, p.TestFraction, p.MinGames, p.Seed)
	if err != nil {
		return nil, fmt.Errorf("split dataset: %w", err)
	}
	log.Debug().
		Int("train", len(split.TrainY)).
		Int("test", len(split.TestY)).
		Float64("train_positive_rate", dataset.PositiveRate(split.TrainY)).
		Float64("test_positive_rate", dataset.PositiveRate(split.TestY)).
		Msg("stratified split")

	res, err := train.Fit(split, train.Options{
		Seed:          p.Seed,
		GridSearch:    p.GridSearch,
		EnableXGBoost: p.EnableXGBoost,
	})
	if err != nil {
		return nil, fmt.Errorf("train variants: %w", err)
	}
	if m != nil {
		m.VariantsTrained.Set(float64(len(res.Candidates)))
		attempted := len(model.VariantOrder)
		if !p.EnableXGBoost {
			attempted--
		}
		if skipped := attempted - len(res.Candidates); skipped > 0 {
			m.VariantsSkipped.Add(float64(skipped))
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	outcome, err := eval.Evaluate(res, split, eval.Options{
		Blend:          p.Blend,
		Weights:        p.BlendWeights,
		BlendThreshold: p.BlendThreshold,
	})
	if err != nil {
		return nil, fmt.Errorf("evaluate candidates: %w", err)
	}
	best := outcome.Reports[outcome.Selected]
	if m != nil {
		m.BestF1.Set(best.F1)
		m.BestAUC.Set(best.ROCAUC)
	}

	meta := registry.Metadata{
		Sport:          p.Sport,
		Target:         p.Target,
		TrainedAt:      time.Now().UTC(),
		FeatureNames:   ext.Manifest,
		Imputation:     ext.Imputation,
		Encoders:       ext.Encoding,
		Metrics:        outcome.Reports,
		Selected:       outcome.Selected,
		TrainingRows:   len(split.TrainY),
		Importance:     outcome.Importance,
		MeanImportance: outcome.MeanImportance,
		Hyperparams:    hyperparams(res, p),
	}
	if p.CVFolds >= 2 && len(split.TrainY) >= p.CVFolds*2 {
		meta.CrossValidation = crossValidate(split, p)
	}

	set := &registry.ArtifactSet{
		Meta:   meta,
		Models: make(map[string]model.Classifier, len(res.Candidates)),
		Scaler: res.Scaler,
	}
	for name, cand := range res.Candidates {
		set.Models[name] = cand.Model
	}

	version, err := reg.Save(set)
	if err != nil {
		return nil, fmt.Errorf("persist artifact set: %w", err)
	}

	return &Summary{
		Version:  version,
		Selected: outcome.Selected,
		Report:   best,
		Rows:     len(ext.Matrix),
		TestRows: len(split.TestY),
		Rejected: ext.Rejected,
	}, nil
}

func hyperparams(res *train.Result, p Params) map[string]map[string]any {
	out := make(map[string]map[string]any, len(res.Candidates)+1)
	for name, cand := range res.Candidates {
		out[name] = cand.Params
	}
	if p.Blend {
		// The scoring service needs the weights to reproduce the blend.
		out[eval.BlendName] = map[string]any{
			"forest":    p.BlendWeights.Forest,
			"xgboost":   p.BlendWeights.XGBoost,
			"logreg":    p.BlendWeights.LogReg,
			"threshold": p.BlendThreshold,
		}
	}
	return out
}

// crossValidate summarizes forest accuracy across k folds of the training
// partition. It is advisory metadata; failure to compute it never fails the
// run.
func crossValidate(split *dataset.Split, p Params) *registry.CrossValidation {
	opts := model.DefaultForestOptions()
	opts.Seed = p.Seed
	mean, std := train.CrossValAccuracy(split.TrainX, split.TrainY, p.CVFolds, p.Seed, opts)
	if mean == 0 {
		return nil
	}
	return &registry.CrossValidation{Folds: p.CVFolds, Mean: mean, Std: std}
}
