package model

import "errors"

// LogRegOptions are the logistic baseline hyperparameters: plain gradient
// descent with L2 regularization.
type LogRegOptions struct {
	LearningRate float64 `json:"learning_rate"`
	Epochs       int     `json:"epochs"`
	L2           float64 `json:"l2"`
}

// DefaultLogRegOptions returns the fixed defaults.
func DefaultLogRegOptions() LogRegOptions {
	return LogRegOptions{
		LearningRate: 0.15,
		Epochs:       400,
		L2:           0.001,
	}
}

// LogReg is a regularized logistic classifier, the cheap sanity check
// against the tree-based variants.
type LogReg struct {
	Weights []float64     `json:"weights"`
	Bias    float64       `json:"bias"`
	Options LogRegOptions `json:"options"`
}

// TrainLogReg fits by full-batch gradient descent. The input is expected to
// be standardized, so a single learning rate works across features.
func TrainLogReg(x [][]float64, y []float64, opts LogRegOptions) (*LogReg, error) {
	if len(x) == 0 || len(x) != len(y) {
		return nil, errors.New("logreg: empty or mismatched training data")
	}
	n := float64(len(x))
	nFeatures := len(x[0])

	m := &LogReg{
		Weights: make([]float64, nFeatures),
		Options: opts,
	}

	gradW := make([]float64, nFeatures)
	for epoch := 0; epoch < opts.Epochs; epoch++ {
		for j := range gradW {
			gradW[j] = 0
		}
		gradB := 0.0

		for i := range x {
			err := m.PredictProb(x[i]) - y[i]
			for j, v := range x[i] {
				gradW[j] += err * v
			}
			gradB += err
		}

		for j := range m.Weights {
			m.Weights[j] -= opts.LearningRate * (gradW[j]/n + opts.L2*m.Weights[j])
		}
		m.Bias -= opts.LearningRate * gradB / n
	}

	return m, nil
}

// Kind implements Classifier.
func (m *LogReg) Kind() string { return KindLogReg }

// PredictProb implements Classifier.
func (m *LogReg) PredictProb(row []float64) float64 {
	z := m.Bias
	for j, w := range m.Weights {
		z += w * row[j]
	}
	return sigmoid(z)
}
