package registry

import (
	"errors"
	"fmt"

	"sportsml/internal/eval"
)

// Score runs the selected candidate (or the persisted blend) over one scaled
// feature row. The returned threshold is the decision cut the caller should
// apply to the probability.
func (s *ArtifactSet) Score(scaled []float64) (prob, threshold float64, err error) {
	if s.Meta.Selected == eval.BlendName {
		return s.blendScore(scaled)
	}
	clf, ok := s.Models[s.Meta.Selected]
	if !ok {
		return 0, 0, fmt.Errorf("selected model %q missing from artifact set", s.Meta.Selected)
	}
	return clf.PredictProb(scaled), 0.5, nil
}

// blendScore reproduces the evaluated blend from the persisted weights.
func (s *ArtifactSet) blendScore(scaled []float64) (float64, float64, error) {
	weights := eval.DefaultBlendWeights()
	threshold := 0.5
	if params, ok := s.Meta.Hyperparams[eval.BlendName]; ok {
		if v, ok := params["forest"].(float64); ok {
			weights.Forest = v
		}
		if v, ok := params["xgboost"].(float64); ok {
			weights.XGBoost = v
		}
		if v, ok := params["logreg"].(float64); ok {
			weights.LogReg = v
		}
		if v, ok := params["threshold"].(float64); ok && v > 0 && v < 1 {
			threshold = v
		}
	}

	var sum, total float64
	for name, w := range weights.ByVariant() {
		clf, ok := s.Models[name]
		if !ok {
			return 0, 0, fmt.Errorf("blend contributor %q missing from artifact set", name)
		}
		sum += w * clf.PredictProb(scaled)
		total += w
	}
	if total == 0 {
		return 0, 0, errors.New("blend weights sum to zero")
	}
	return sum / total, threshold, nil
}
