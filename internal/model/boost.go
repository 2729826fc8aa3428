package model

import (
	"errors"
	"math"
)

// BoostOptions are the boosted-tree hyperparameters. SecondOrder selects the
// variant that splits and weighs leaves with both gradient and hessian terms
// under L2 regularization; the first-order variant fits plain residuals.
type BoostOptions struct {
	Rounds       int     `json:"rounds"`
	MaxDepth     int     `json:"max_depth"`
	LearningRate float64 `json:"learning_rate"`
	MinSplit     int     `json:"min_samples_split"`
	Lambda       float64 `json:"lambda"`
	SecondOrder  bool    `json:"second_order"`
	Seed         int64   `json:"seed"`
}

// DefaultBoostOptions returns the first-order gradient boosting defaults.
func DefaultBoostOptions() BoostOptions {
	return BoostOptions{
		Rounds:       200,
		MaxDepth:     5,
		LearningRate: 0.1,
		MinSplit:     2,
		Seed:         42,
	}
}

// DefaultXGBoostOptions returns the second-order variant defaults.
func DefaultXGBoostOptions() BoostOptions {
	return BoostOptions{
		Rounds:       200,
		MaxDepth:     6,
		LearningRate: 0.1,
		MinSplit:     2,
		Lambda:       1.0,
		SecondOrder:  true,
		Seed:         42,
	}
}

// Boost is an additive ensemble of regression trees over the logistic loss.
// Prediction starts from the training log-odds and accumulates shrunk tree
// outputs through a sigmoid.
type Boost struct {
	KindName   string       `json:"kind"`
	InitScore  float64      `json:"init_score"`
	Trees      []*Node      `json:"boost_trees"`
	Importance []float64    `json:"importance"`
	Options    BoostOptions `json:"options"`
}

// TrainBoost fits the boosted ensemble round by round.
func TrainBoost(x [][]float64, y []float64, opts BoostOptions) (*Boost, error) {
	if len(x) == 0 || len(x) != len(y) {
		return nil, errors.New("boost: empty or mismatched training data")
	}
	n := len(x)
	nFeatures := len(x[0])

	kind := KindBoost
	if opts.SecondOrder {
		kind = KindXGBoost
	}

	b := &Boost{
		KindName:  kind,
		InitScore: logOdds(y),
		Options:   opts,
	}

	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}

	raw := make([]float64, n)
	for i := range raw {
		raw[i] = b.InitScore
	}

	g := make([]float64, n)
	h := make([]float64, n)
	importance := make([]float64, nFeatures)

	for round := 0; round < opts.Rounds; round++ {
		for i := 0; i < n; i++ {
			p := sigmoid(raw[i])
			// The builder maximizes sum(g)^2/(sum(h)+λ) with leaf value
			// sum(g)/(sum(h)+λ), so the gradient is passed as y - p.
			g[i] = y[i] - p
			if opts.SecondOrder {
				h[i] = p * (1 - p)
			} else {
				h[i] = 1
			}
		}

		tree := buildTree(x, g, h, idx, 0, treeParams{
			maxDepth:   opts.MaxDepth,
			minSplit:   opts.MinSplit,
			lambda:     opts.Lambda,
			importance: importance,
		})
		b.Trees = append(b.Trees, tree)

		for i := 0; i < n; i++ {
			raw[i] += opts.LearningRate * tree.Predict(x[i])
		}
	}

	b.Importance = normalizeImportance(importance)
	return b, nil
}

// Kind implements Classifier.
func (b *Boost) Kind() string {
	if b.KindName == "" {
		return KindBoost
	}
	return b.KindName
}

// PredictProb implements Classifier.
func (b *Boost) PredictProb(row []float64) float64 {
	raw := b.InitScore
	for _, t := range b.Trees {
		raw += b.Options.LearningRate * t.Predict(row)
	}
	return sigmoid(raw)
}

// FeatureImportances implements FeatureImporter.
func (b *Boost) FeatureImportances() []float64 { return b.Importance }

// logOdds is the base score: log(p/(1-p)) of the training positive rate,
// clamped away from the degenerate single-class edges.
func logOdds(y []float64) float64 {
	pos := 0.0
	for _, v := range y {
		if v >= 0.5 {
			pos++
		}
	}
	p := pos / float64(len(y))
	const eps = 1e-6
	if p < eps {
		p = eps
	}
	if p > 1-eps {
		p = 1 - eps
	}
	return math.Log(p / (1 - p))
}
