// Package records defines the historical prediction record consumed by the
// training pipeline and the sources that materialize batches of them:
// a Postgres prediction tracker, flat CSV/JSON exports, a local BoltDB store,
// and the tracker HTTP API.
package records

import (
	"errors"
	"time"
)

// ErrMissingLabel marks a record without a resolved outcome. Such records are
// excluded from training batches; the condition is never fatal to a batch.
var ErrMissingLabel = errors.New("record has no resolved outcome label")

// RawRecord is one historical prediction with (usually) a known outcome.
// Market lines are flat columns; the open-ended decision factors ride along
// as a JSON side-channel parsed into Factors.
type RawRecord struct {
	ID              string             `json:"id"`
	GameID          string             `json:"gameId"`
	Sport           string             `json:"sport"`
	HomeTeam        string             `json:"homeTeam"`
	AwayTeam        string             `json:"awayTeam"`
	GameTime        time.Time          `json:"gameTime"`
	PredictedWinner string             `json:"predictedWinner"`
	Confidence      float64            `json:"confidence"`
	OpeningSpread   float64            `json:"openingSpread"`
	ClosingSpread   float64            `json:"closingSpread"`
	OpeningTotal    float64            `json:"openingTotal"`
	ClosingTotal    float64            `json:"closingTotal"`
	OpeningML       float64            `json:"openingML"`
	ClosingML       float64            `json:"closingML"`
	Factors         map[string]float64 `json:"factors,omitempty"`
	WasCorrect      *bool              `json:"wasCorrect,omitempty"`
	SpreadCorrect   *bool              `json:"spreadCorrect,omitempty"`
	SpreadCLV       *float64           `json:"spreadCLV,omitempty"`
	MadeAt          time.Time          `json:"madeAt"`
}

// Target identifies which outcome column a pipeline trains against.
type Target string

const (
	// TargetWinner predicts whether the tracked winner pick was correct.
	TargetWinner Target = "winner"
	// TargetSpread predicts whether the pick covered the spread.
	TargetSpread Target = "spread"
)

// Label returns the binary outcome for the given target, or ErrMissingLabel
// when the outcome has not been resolved yet.
func (r *RawRecord) Label(target Target) (float64, error) {
	var v *bool
	switch target {
	case TargetSpread:
		v = r.SpreadCorrect
	default:
		v = r.WasCorrect
	}
	if v == nil {
		return 0, ErrMissingLabel
	}
	if *v {
		return 1, nil
	}
	return 0, nil
}

// Labeled reports whether the record carries a resolved outcome for target.
func (r *RawRecord) Labeled(target Target) bool {
	_, err := r.Label(target)
	return err == nil
}

// FilterLabeled returns the subset of recs with a resolved outcome for target
// along with the number of records dropped.
func FilterLabeled(recs []RawRecord, target Target) ([]RawRecord, int) {
	out := make([]RawRecord, 0, len(recs))
	for i := range recs {
		if recs[i].Labeled(target) {
			out = append(out, recs[i])
		}
	}
	return out, len(recs) - len(out)
}
