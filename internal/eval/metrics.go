// Package eval scores trained candidates on the held-out partition, blends
// their probabilities, and picks the production candidate.
package eval

import (
	"math"
	"sort"
)

// Report is the common metric set computed for every candidate against the
// same test partition. Read-only once computed.
type Report struct {
	Accuracy  float64 `json:"accuracy"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
	ROCAUC    float64 `json:"roc_auc"`
	TestRows  int     `json:"test_rows"`
}

// Compute derives the metric report from probabilities against labels with a
// fixed 0.5 decision threshold.
func Compute(labels, probs []float64) Report {
	n := len(labels)
	if n == 0 || len(probs) != n {
		return Report{ROCAUC: 0.5}
	}

	var tp, fp, tn, fn float64
	for i := 0; i < n; i++ {
		pred := probs[i] >= 0.5
		actual := labels[i] >= 0.5
		switch {
		case pred && actual:
			tp++
		case pred && !actual:
			fp++
		case !pred && !actual:
			tn++
		default:
			fn++
		}
	}

	r := Report{
		Accuracy: (tp + tn) / float64(n),
		TestRows: n,
	}
	if tp+fp > 0 {
		r.Precision = tp / (tp + fp)
	}
	if tp+fn > 0 {
		r.Recall = tp / (tp + fn)
	}
	if r.Precision+r.Recall > 0 {
		r.F1 = 2 * r.Precision * r.Recall / (r.Precision + r.Recall)
	}
	r.ROCAUC = rocAUC(labels, probs)
	return r
}

// rocAUC is the rank-statistic AUC with average ranks for tied scores.
func rocAUC(labels, probs []float64) float64 {
	type pair struct{ p, y float64 }
	pairs := make([]pair, len(labels))
	var pos, neg float64
	for i := range labels {
		pairs[i] = pair{p: probs[i], y: labels[i]}
		if labels[i] >= 0.5 {
			pos++
		} else {
			neg++
		}
	}
	if pos == 0 || neg == 0 {
		return 0.5
	}

	sort.Slice(pairs, func(i, j int) bool { return pairs[i].p < pairs[j].p })

	sumRankPos := 0.0
	rank := 1.0
	for i := 0; i < len(pairs); {
		j := i + 1
		for j < len(pairs) && math.Abs(pairs[j].p-pairs[i].p) < 1e-12 {
			j++
		}
		avgRank := (rank + float64(j)) / 2
		for k := i; k < j; k++ {
			if pairs[k].y >= 0.5 {
				sumRankPos += avgRank
			}
		}
		rank = float64(j + 1)
		i = j
	}

	auc := (sumRankPos - (pos*(pos+1))/2) / (pos * neg)
	if math.IsNaN(auc) || math.IsInf(auc, 0) {
		return 0.5
	}
	return auc
}
