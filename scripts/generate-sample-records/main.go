// Generates a synthetic labeled record export for trying out the training
// pipeline without a tracker database.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"time"

	"sportsml/internal/records"
)

var teams = []string{
	"ARI", "ATL", "BAL", "BUF", "CAR", "CHI", "CIN", "CLE",
	"DAL", "DEN", "DET", "GB", "HOU", "IND", "JAX", "KC",
	"LAC", "LAR", "LV", "MIA", "MIN", "NE", "NO", "NYG",
	"NYJ", "PHI", "PIT", "SEA", "SF", "TB", "TEN", "WAS",
}

func main() {
	var (
		out   = flag.String("out", "sample_records.json", "Output file path (.json)")
		sport = flag.String("sport", "nfl", "Sport tag for the generated records")
		games = flag.Int("games", 500, "Number of games to generate")
		seed  = flag.Int64("seed", 1, "Random seed")
	)
	flag.Parse()

	rng := rand.New(rand.NewSource(*seed))
	base := time.Now().AddDate(0, -6, 0).Truncate(24 * time.Hour).Add(13 * time.Hour)

	recs := make([]records.RawRecord, *games)
	for i := range recs {
		home := teams[rng.Intn(len(teams))]
		away := teams[rng.Intn(len(teams))]
		for away == home {
			away = teams[rng.Intn(len(teams))]
		}

		opening := float64(rng.Intn(27))/2 - 6.5
		movement := rng.NormFloat64() * 1.2
		confidence := 52 + rng.Float64()*43

		// Picks whose line moved their way win more often.
		winProb := 0.5 - movement*0.12 + (confidence-70)*0.002
		correct := rng.Float64() < clamp(winProb)
		covered := rng.Float64() < clamp(winProb-0.05)

		gameTime := base.AddDate(0, 0, i/8).Add(time.Duration(rng.Intn(9)) * time.Hour)
		recs[i] = records.RawRecord{
			ID:              fmt.Sprintf("sample-%05d", i),
			GameID:          fmt.Sprintf("%s-%s-%d", away, home, i),
			Sport:           *sport,
			HomeTeam:        home,
			AwayTeam:        away,
			GameTime:        gameTime,
			PredictedWinner: home,
			Confidence:      confidence,
			OpeningSpread:   opening,
			ClosingSpread:   opening + movement,
			OpeningTotal:    40 + rng.Float64()*15,
			ClosingTotal:    40 + rng.Float64()*15,
			OpeningML:       -110 - rng.Float64()*80,
			ClosingML:       -110 - rng.Float64()*90,
			WasCorrect:      &correct,
			SpreadCorrect:   &covered,
			MadeAt:          gameTime.Add(-20 * time.Hour),
		}
		if rng.Float64() < 0.7 {
			recs[i].Factors = sampleFactors(rng)
		}
	}

	blob, err := json.MarshalIndent(recs, "", "  ")
	if err != nil {
		log.Fatalf("marshal records: %v", err)
	}
	if err := os.WriteFile(*out, blob, 0o600); err != nil {
		log.Fatalf("write %s: %v", *out, err)
	}

	fmt.Printf("wrote %d labeled %s games to %s\n", len(recs), *sport, *out)
	fmt.Printf("train with: go run ./cmd/train -records %s -sport %s\n", *out, *sport)
}

// sampleFactors draws a factor map using keys the extractor recognizes.
func sampleFactors(rng *rand.Rand) map[string]float64 {
	return map[string]float64{
		"temperature":  30 + rng.Float64()*50,
		"windSpeed":    rng.Float64() * 25,
		"restDaysHome": float64(3 + rng.Intn(8)),
		"restDaysAway": float64(3 + rng.Intn(8)),
	}
}

func clamp(p float64) float64 {
	if p < 0.05 {
		return 0.05
	}
	if p > 0.95 {
		return 0.95
	}
	return p
}
