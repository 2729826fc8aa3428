package model

import (
	"math"
	"math/rand"
	"sort"
)

// Node is one node of a regression tree. Leaves carry the fitted value;
// internal nodes route on Feature < Threshold.
type Node struct {
	Feature   int     `json:"feature,omitempty"`
	Threshold float64 `json:"threshold,omitempty"`
	Left      *Node   `json:"left,omitempty"`
	Right     *Node   `json:"right,omitempty"`
	Value     float64 `json:"value"`
	Leaf      bool    `json:"leaf,omitempty"`
}

// Predict routes a row to its leaf value.
func (n *Node) Predict(row []float64) float64 {
	for !n.Leaf {
		if row[n.Feature] < n.Threshold {
			n = n.Left
		} else {
			n = n.Right
		}
	}
	return n.Value
}

// treeParams controls one tree fit. The builder optimizes the regularized
// objective sum(g)^2/(sum(h)+lambda); with h=1 and lambda=0 this reduces to
// ordinary variance-reduction splitting with mean-valued leaves, which is
// what the bagged forest uses. Boosting passes gradients (and, for the
// second-order variant, hessians) instead of raw targets.
type treeParams struct {
	maxDepth      int
	minSplit      int
	lambda        float64
	minGain       float64
	featureSubset int // 0 means consider every feature
	rng           *rand.Rand
	importance    []float64 // accumulated split gain per feature, may be nil
}

// buildTree fits a tree over the rows in idx. g and h are per-row gradient
// and hessian terms (see treeParams).
func buildTree(x [][]float64, g, h []float64, idx []int, depth int, p treeParams) *Node {
	var sumG, sumH float64
	for _, i := range idx {
		sumG += g[i]
		sumH += h[i]
	}
	leaf := &Node{Leaf: true, Value: leafValue(sumG, sumH, p.lambda)}

	if depth >= p.maxDepth || len(idx) < p.minSplit {
		return leaf
	}

	feature, threshold, gain := bestSplit(x, g, h, idx, sumG, sumH, p)
	if feature < 0 || gain <= p.minGain {
		return leaf
	}
	if p.importance != nil {
		p.importance[feature] += gain
	}

	var left, right []int
	for _, i := range idx {
		if x[i][feature] < threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	if len(left) == 0 || len(right) == 0 {
		return leaf
	}

	return &Node{
		Feature:   feature,
		Threshold: threshold,
		Left:      buildTree(x, g, h, left, depth+1, p),
		Right:     buildTree(x, g, h, right, depth+1, p),
		Value:     leaf.Value,
	}
}

func leafValue(sumG, sumH, lambda float64) float64 {
	denom := sumH + lambda
	if denom == 0 {
		return 0
	}
	return sumG / denom
}

// bestSplit scans candidate features for the threshold maximizing the gain
//
//	G_L^2/(H_L+λ) + G_R^2/(H_R+λ) - G^2/(H+λ)
//
// over a sorted sweep of each feature column.
func bestSplit(x [][]float64, g, h []float64, idx []int, sumG, sumH float64, p treeParams) (int, float64, float64) {
	nFeatures := len(x[idx[0]])
	candidates := featureCandidates(nFeatures, p)

	parentScore := score(sumG, sumH, p.lambda)
	bestFeature := -1
	var bestThreshold, bestGain float64

	order := make([]int, len(idx))
	for _, f := range candidates {
		copy(order, idx)
		sort.Slice(order, func(a, b int) bool { return x[order[a]][f] < x[order[b]][f] })

		var gl, hl float64
		for k := 0; k < len(order)-1; k++ {
			i := order[k]
			gl += g[i]
			hl += h[i]
			v, next := x[i][f], x[order[k+1]][f]
			if v == next {
				continue
			}
			gain := score(gl, hl, p.lambda) + score(sumG-gl, sumH-hl, p.lambda) - parentScore
			if gain > bestGain {
				bestGain = gain
				bestFeature = f
				bestThreshold = (v + next) / 2
			}
		}
	}
	return bestFeature, bestThreshold, bestGain
}

func score(sumG, sumH, lambda float64) float64 {
	denom := sumH + lambda
	if denom == 0 {
		return 0
	}
	return sumG * sumG / denom
}

func featureCandidates(nFeatures int, p treeParams) []int {
	if p.featureSubset <= 0 || p.featureSubset >= nFeatures || p.rng == nil {
		all := make([]int, nFeatures)
		for i := range all {
			all[i] = i
		}
		return all
	}
	perm := p.rng.Perm(nFeatures)
	return perm[:p.featureSubset]
}

func sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
