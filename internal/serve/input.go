package serve

import (
	"fmt"
	"time"

	"sportsml/internal/records"
)

// GameInput is the request body for a prediction. Either gameTime or the
// explicit dayOfWeek/month/hour fields must be provided; explicit values win
// when both are present. Extra situational factors are optional and imputed
// when absent.
type GameInput struct {
	Sport         string             `json:"sport"`
	HomeTeam      string             `json:"homeTeam"`
	AwayTeam      string             `json:"awayTeam"`
	GameTime      time.Time          `json:"gameTime,omitzero"`
	DayOfWeek     *int               `json:"dayOfWeek,omitempty"`
	Month         *int               `json:"month,omitempty"`
	Hour          *int               `json:"hour,omitempty"`
	OpeningSpread float64            `json:"openingSpread"`
	ClosingSpread float64            `json:"closingSpread"`
	OpeningTotal  float64            `json:"openingTotal"`
	ClosingTotal  float64            `json:"closingTotal"`
	OpeningML     float64            `json:"openingML"`
	ClosingML     float64            `json:"closingML"`
	Confidence    float64            `json:"confidence"`
	Factors       map[string]float64 `json:"factors,omitempty"`
}

func (g *GameInput) validate() error {
	if g.Sport == "" {
		return fmt.Errorf("sport is required")
	}
	if g.HomeTeam == "" || g.AwayTeam == "" {
		return fmt.Errorf("homeTeam and awayTeam are required")
	}
	if g.GameTime.IsZero() && (g.DayOfWeek == nil || g.Month == nil || g.Hour == nil) {
		return fmt.Errorf("either gameTime or dayOfWeek, month and hour are required")
	}
	if g.Month != nil && (*g.Month < 1 || *g.Month > 12) {
		return fmt.Errorf("month must be between 1 and 12, got %d", *g.Month)
	}
	if g.DayOfWeek != nil && (*g.DayOfWeek < 0 || *g.DayOfWeek > 6) {
		return fmt.Errorf("dayOfWeek must be between 0 and 6, got %d", *g.DayOfWeek)
	}
	if g.Hour != nil && (*g.Hour < 0 || *g.Hour > 23) {
		return fmt.Errorf("hour must be between 0 and 23, got %d", *g.Hour)
	}
	return nil
}

// record maps the input onto the raw record shape the feature transform
// understands.
func (g *GameInput) record() *records.RawRecord {
	return &records.RawRecord{
		Sport:         g.Sport,
		HomeTeam:      g.HomeTeam,
		AwayTeam:      g.AwayTeam,
		GameTime:      g.GameTime,
		OpeningSpread: g.OpeningSpread,
		ClosingSpread: g.ClosingSpread,
		OpeningTotal:  g.OpeningTotal,
		ClosingTotal:  g.ClosingTotal,
		OpeningML:     g.OpeningML,
		ClosingML:     g.ClosingML,
		Confidence:    g.Confidence,
		Factors:       g.Factors,
	}
}

// overrideDateParts replaces derived date columns with explicitly supplied
// values.
func (g *GameInput) overrideDateParts(manifest []string, row []float64) {
	for i, name := range manifest {
		switch name {
		case "dayOfWeek":
			if g.DayOfWeek != nil {
				row[i] = float64(*g.DayOfWeek)
			}
		case "month":
			if g.Month != nil {
				row[i] = float64(*g.Month)
			}
		case "hour":
			if g.Hour != nil {
				row[i] = float64(*g.Hour)
			}
		}
	}
}

// PredictionOutput is the response body for a single game. Spread fields are
// omitted when no spread model is loaded.
type PredictionOutput struct {
	WinnerPrediction  bool     `json:"winner_prediction"`
	WinnerProbability float64  `json:"winner_probability"`
	SpreadPrediction  *bool    `json:"spread_prediction,omitempty"`
	SpreadProbability *float64 `json:"spread_probability,omitempty"`
	Confidence        float64  `json:"confidence"`
	ModelVersion      string   `json:"model_version"`
}
