package eval

import (
	"fmt"
	"math"

	"github.com/rs/zerolog/log"

	"sportsml/internal/dataset"
	"sportsml/internal/model"
	"sportsml/internal/train"
)

// BlendName is the pseudo-variant name for the weighted ensemble.
const BlendName = "blend"

// BlendWeights is the convex weighting over the variants contributing to the
// blended probability. Weights must sum to 1.
type BlendWeights struct {
	Forest  float64 `json:"forest" yaml:"forest"`
	XGBoost float64 `json:"xgboost" yaml:"xgboost"`
	LogReg  float64 `json:"logreg" yaml:"logreg"`
}

// DefaultBlendWeights favor the second-order boosted variant.
func DefaultBlendWeights() BlendWeights {
	return BlendWeights{Forest: 0.3, XGBoost: 0.5, LogReg: 0.2}
}

func (w BlendWeights) valid() bool {
	sum := w.Forest + w.XGBoost + w.LogReg
	return math.Abs(sum-1) < 1e-9 && w.Forest >= 0 && w.XGBoost >= 0 && w.LogReg >= 0
}

// ByVariant returns the weights keyed by variant name.
func (w BlendWeights) ByVariant() map[string]float64 {
	return map[string]float64{
		model.KindForest:  w.Forest,
		model.KindXGBoost: w.XGBoost,
		model.KindLogReg:  w.LogReg,
	}
}

// Options configure evaluation.
type Options struct {
	Blend          bool
	Weights        BlendWeights
	BlendThreshold float64
}

// Outcome is the full evaluation result: one report per candidate, the
// optional blend report, the selected production candidate, and the feature
// importance summary.
type Outcome struct {
	Reports    map[string]Report    `json:"reports"`
	Selected   string               `json:"selected"`
	Importance map[string][]float64 `json:"importance,omitempty"`
	// MeanImportance is the arithmetic mean across tree-based variants,
	// a single ranked summary over the manifest.
	MeanImportance []float64 `json:"mean_importance,omitempty"`
}

// Evaluate scores every candidate on the identical unseen test partition,
// using the scaler frozen by the trainer. Selection maximizes F1, breaking
// ties by ROC-AUC and then the fixed variant ordering.
func Evaluate(res *train.Result, split *dataset.Split, opts Options) (*Outcome, error) {
	scaledTest, err := res.Scaler.Transform(split.TestX)
	if err != nil {
		return nil, fmt.Errorf("scale test partition: %w", err)
	}

	out := &Outcome{
		Reports:    make(map[string]Report),
		Importance: make(map[string][]float64),
	}

	probs := make(map[string][]float64, len(res.Candidates))
	for name, cand := range res.Candidates {
		p := model.PredictBatch(cand.Model, scaledTest)
		probs[name] = p
		out.Reports[name] = Compute(split.TestY, p)

		if imp, ok := cand.Model.(model.FeatureImporter); ok {
			out.Importance[name] = imp.FeatureImportances()
		}
	}

	out.MeanImportance = meanImportance(out.Importance)

	if opts.Blend {
		if blended, ok := blendProbs(probs, opts); ok {
			rep := Compute(split.TestY, blended)
			rep = withThreshold(split.TestY, blended, opts.BlendThreshold, rep)
			out.Reports[BlendName] = rep
		} else {
			log.Warn().Msg("blend skipped: required variants missing or weights invalid")
		}
	}

	out.Selected = selectBest(out.Reports)
	return out, nil
}

// blendProbs combines forest, second-order boost and logistic probabilities
// with the fixed convex weights. All three contributors must be present.
func blendProbs(probs map[string][]float64, opts Options) ([]float64, bool) {
	w := opts.Weights
	if !w.valid() {
		return nil, false
	}
	forest, ok1 := probs[model.KindForest]
	xgb, ok2 := probs[model.KindXGBoost]
	logreg, ok3 := probs[model.KindLogReg]
	if !ok1 || !ok2 || !ok3 {
		return nil, false
	}

	blended := make([]float64, len(forest))
	for i := range blended {
		blended[i] = w.Forest*forest[i] + w.XGBoost*xgb[i] + w.LogReg*logreg[i]
	}
	return blended, true
}

// withThreshold recomputes the thresholded metrics when the blend uses a
// cutoff other than 0.5; AUC is threshold-free and kept.
func withThreshold(labels, probs []float64, threshold float64, base Report) Report {
	if threshold == 0 || threshold == 0.5 {
		return base
	}
	shifted := make([]float64, len(probs))
	for i, p := range probs {
		// Re-center so the generic 0.5 cut in Compute applies the
		// configured threshold.
		shifted[i] = p - threshold + 0.5
	}
	rep := Compute(labels, shifted)
	rep.ROCAUC = base.ROCAUC
	return rep
}

const f1Tolerance = 1e-9

// selectBest applies the selection rule: highest F1, ties broken by ROC-AUC,
// then the deterministic variant ordering (blend considered last).
func selectBest(reports map[string]Report) string {
	order := append(append([]string{}, model.VariantOrder...), BlendName)

	best := ""
	var bestRep Report
	for _, name := range order {
		rep, ok := reports[name]
		if !ok {
			continue
		}
		if best == "" {
			best, bestRep = name, rep
			continue
		}
		if rep.F1 > bestRep.F1+f1Tolerance {
			best, bestRep = name, rep
			continue
		}
		if math.Abs(rep.F1-bestRep.F1) <= f1Tolerance && rep.ROCAUC > bestRep.ROCAUC+f1Tolerance {
			best, bestRep = name, rep
		}
	}
	return best
}

// meanImportance averages the tree-based importances column-wise.
func meanImportance(importance map[string][]float64) []float64 {
	var mean []float64
	count := 0
	for _, imp := range importance {
		if len(imp) == 0 {
			continue
		}
		if mean == nil {
			mean = make([]float64, len(imp))
		}
		if len(imp) != len(mean) {
			continue
		}
		for j, v := range imp {
			mean[j] += v
		}
		count++
	}
	if count == 0 {
		return nil
	}
	for j := range mean {
		mean[j] /= float64(count)
	}
	return mean
}
