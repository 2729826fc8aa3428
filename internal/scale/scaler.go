// Package scale provides the per-feature standardization applied to every
// model input. The scaler is fit exclusively on the training partition and
// frozen; refitting on test or inference data is a leakage bug.
package scale

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/stat"
)

// ErrNotFitted is returned when Transform is called before Fit.
var ErrNotFitted = errors.New("scaler has not been fitted")

// Scaler standardizes columns to zero mean and unit variance. Constant
// columns keep scale 1 so they pass through centered instead of dividing by
// zero.
type Scaler struct {
	Mean  []float64 `json:"mean"`
	Scale []float64 `json:"scale"`
}

// Fit computes column means and standard deviations from the training
// matrix. Calling Fit again refits from scratch.
func (s *Scaler) Fit(x [][]float64) error {
	if len(x) == 0 {
		return errors.New("cannot fit scaler on empty matrix")
	}
	cols := len(x[0])
	s.Mean = make([]float64, cols)
	s.Scale = make([]float64, cols)

	col := make([]float64, len(x))
	for j := 0; j < cols; j++ {
		for i := range x {
			col[i] = x[i][j]
		}
		mean, std := stat.MeanStdDev(col, nil)
		s.Mean[j] = mean
		if std > 0 {
			s.Scale[j] = std
		} else {
			s.Scale[j] = 1
		}
	}
	return nil
}

// Transform returns a standardized copy of x. The fitted parameters are
// never modified, so applying the scaler to test or inference data is
// idempotent with respect to its state.
func (s *Scaler) Transform(x [][]float64) ([][]float64, error) {
	if len(s.Mean) == 0 {
		return nil, ErrNotFitted
	}
	out := make([][]float64, len(x))
	for i := range x {
		row, err := s.TransformRow(x[i])
		if err != nil {
			return nil, err
		}
		out[i] = row
	}
	return out, nil
}

// TransformRow standardizes a single feature vector.
func (s *Scaler) TransformRow(row []float64) ([]float64, error) {
	if len(s.Mean) == 0 {
		return nil, ErrNotFitted
	}
	if len(row) != len(s.Mean) {
		return nil, fmt.Errorf("row has %d features, scaler fitted on %d", len(row), len(s.Mean))
	}
	out := make([]float64, len(row))
	for j, v := range row {
		out[j] = (v - s.Mean[j]) / s.Scale[j]
	}
	return out, nil
}

// FitTransform fits on x and returns the standardized copy.
func (s *Scaler) FitTransform(x [][]float64) ([][]float64, error) {
	if err := s.Fit(x); err != nil {
		return nil, err
	}
	return s.Transform(x)
}
