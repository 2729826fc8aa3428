package main

import (
	"math/rand"
	"testing"

	"sportsml/internal/features"
	"sportsml/internal/records"
)

func TestSampleFactorsAreRecognized(t *testing.T) {
	manifest := features.SpecFor(records.TargetWinner).Manifest()
	known := make(map[string]bool, len(manifest))
	for _, name := range manifest {
		known[name] = true
	}

	for key := range sampleFactors(rand.New(rand.NewSource(1))) {
		if !known[key] {
			t.Errorf("factor key %q is not in the winner manifest", key)
		}
	}
}
