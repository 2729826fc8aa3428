// Package model implements the classifier variants the trainer fits: a
// bagged random forest, first- and second-order gradient-boosted trees, and
// a regularized logistic baseline. All variants consume the same scaled
// feature matrix and serialize to self-describing JSON artifacts.
package model

import (
	"encoding/json"
	"fmt"
)

// Variant identifiers, in the deterministic ordering used for selection
// tie-breaks.
const (
	KindForest  = "random_forest"
	KindBoost   = "gradient_boosting"
	KindXGBoost = "xgboost"
	KindLogReg  = "logistic_regression"
)

// VariantOrder is the fixed training and tie-break order.
var VariantOrder = []string{KindForest, KindBoost, KindXGBoost, KindLogReg}

// Classifier is a trained binary classifier producing the positive-class
// probability for one feature vector.
type Classifier interface {
	Kind() string
	PredictProb(row []float64) float64
}

// FeatureImporter is implemented by the tree-based variants, exposing
// impurity-gain importance per feature, normalized to sum to one.
type FeatureImporter interface {
	FeatureImportances() []float64
}

// PredictBatch scores every row of x.
func PredictBatch(c Classifier, x [][]float64) []float64 {
	probs := make([]float64, len(x))
	for i := range x {
		probs[i] = c.PredictProb(x[i])
	}
	return probs
}

type envelope struct {
	Kind    string          `json:"kind"`
	Payload json.RawMessage `json:"payload"`
}

// Marshal serializes a classifier into a self-describing artifact.
func Marshal(c Classifier) ([]byte, error) {
	payload, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", c.Kind(), err)
	}
	return json.Marshal(envelope{Kind: c.Kind(), Payload: payload})
}

// Unmarshal restores a classifier from a Marshal artifact.
func Unmarshal(data []byte) (Classifier, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode model envelope: %w", err)
	}

	var c Classifier
	switch env.Kind {
	case KindForest:
		c = &Forest{}
	case KindBoost, KindXGBoost:
		c = &Boost{}
	case KindLogReg:
		c = &LogReg{}
	default:
		return nil, fmt.Errorf("unknown model kind %q", env.Kind)
	}
	if err := json.Unmarshal(env.Payload, c); err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", env.Kind, err)
	}
	return c, nil
}

func normalizeImportance(imp []float64) []float64 {
	var total float64
	for _, v := range imp {
		total += v
	}
	if total == 0 {
		return imp
	}
	out := make([]float64, len(imp))
	for i, v := range imp {
		out[i] = v / total
	}
	return out
}
