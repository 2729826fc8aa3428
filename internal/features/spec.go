// Package features turns heterogeneous prediction records into a fixed,
// named numeric feature matrix. The recognized factor set is declared as a
// fixed category table; unrecognized factor keys are dropped, recognized but
// absent keys stay in the manifest and are imputed. The same derivation rules
// run at training time and at inference time.
package features

import "sportsml/internal/records"

// Category groups recognized factors. The table is data, not code: both
// targets share the derivation logic and differ only in which categories and
// base columns their spec includes.
type Category string

const (
	CategoryPerformance Category = "performance"
	CategoryRest        Category = "rest"
	CategoryWeather     Category = "weather"
	CategoryInjuries    Category = "injuries"
	CategoryForm        Category = "form"
	CategorySituational Category = "situational"
	CategoryMarket      Category = "market"
	CategoryEPA         Category = "epa"
)

// factorTable is the fixed allow-list of recognized factor keys per category.
// Order inside a category is the manifest order.
var factorTable = map[Category][]string{
	CategoryPerformance: {
		"homeOffensiveEff", "awayOffensiveEff", "homeDefensiveEff", "awayDefensiveEff",
		"homeYardsPerPlay", "awayYardsPerPlay", "homeSuccessRate", "awaySuccessRate",
		"homeExplosivePlayRate", "awayExplosivePlayRate", "homeRedZoneEff", "awayRedZoneEff",
		"homeThirdDownConv", "awayThirdDownConv",
	},
	CategoryRest: {
		"restDaysHome", "restDaysAway", "homeStrengthOfSchedule", "awayStrengthOfSchedule",
	},
	CategoryWeather: {
		"temperature", "windSpeed", "precipitation", "weatherImpactScore",
	},
	CategoryInjuries: {
		"homeKeyInjuries", "awayKeyInjuries", "homeInjuryImpact", "awayInjuryImpact",
	},
	CategoryForm: {
		"homePointsPerGameL5", "awayPointsPerGameL5",
		"homePointsAllowedL5", "awayPointsAllowedL5",
	},
	CategorySituational: {
		"homeATS", "awayATS", "homeVsTop10", "awayVsTop10",
	},
	CategoryMarket: {
		"lineMovement", "spreadCLV", "publicBettingPercent",
	},
	CategoryEPA: {
		"homeEPAPerPlay", "awayEPAPerPlay",
		"homePassEPA", "awayPassEPA", "homeRunEPA", "awayRunEPA",
	},
}

// Cross-factor derived columns, appended after the factor categories. Each is
// computable only when its source factors are present on the record and is
// imputed like any other factor otherwise.
var derivedFactors = []string{
	"homeOffensiveAdvantage",
	"awayOffensiveAdvantage",
	"restAdvantage",
}

// Spec fixes the ordered feature manifest for one target. Two runs with the
// same spec always produce the same manifest regardless of which factor keys
// a particular batch happens to carry.
type Spec struct {
	Target     records.Target
	Base       []string
	Categories []Category
}

// winner target: the comprehensive column set.
var winnerBase = []string{
	"sport_encoded", "homeTeam_encoded", "awayTeam_encoded",
	"dayOfWeek", "month", "hour",
	"openingSpread", "closingSpread", "spread_movement", "spread_movement_pct",
	"openingTotal", "closingTotal", "total_movement", "total_movement_pct",
	"openingML", "closingML", "ml_movement",
	"confidence", "high_confidence", "medium_confidence",
}

// spread target: the reduced set historically used for the cover model; no
// total/moneyline movement deltas, no medium-confidence flag, and only the
// market and situational factor categories.
var spreadBase = []string{
	"sport_encoded", "homeTeam_encoded", "awayTeam_encoded",
	"dayOfWeek", "month", "hour",
	"openingSpread", "closingSpread", "spread_movement", "spread_movement_pct",
	"openingTotal", "closingTotal",
	"openingML", "closingML",
	"confidence", "high_confidence",
}

// SpecFor returns the fixed spec for a target.
func SpecFor(target records.Target) Spec {
	switch target {
	case records.TargetSpread:
		return Spec{
			Target:     records.TargetSpread,
			Base:       spreadBase,
			Categories: []Category{CategorySituational, CategoryMarket},
		}
	default:
		return Spec{
			Target: records.TargetWinner,
			Base:   winnerBase,
			Categories: []Category{
				CategoryPerformance, CategoryRest, CategoryWeather, CategoryInjuries,
				CategoryForm, CategorySituational, CategoryMarket, CategoryEPA,
			},
		}
	}
}

// Manifest returns the ordered feature name list for this target.
func (s Spec) Manifest() []string {
	names := make([]string, 0, len(s.Base)+48)
	names = append(names, s.Base...)
	for _, cat := range s.Categories {
		names = append(names, factorTable[cat]...)
	}
	if s.Target == records.TargetWinner {
		names = append(names, derivedFactors...)
	}
	return names
}

// flag columns are imputed with a neutral constant instead of the median.
var flagColumns = map[string]bool{
	"high_confidence":   true,
	"medium_confidence": true,
}

// recognizedFactors is the union of every factor the table knows, used to
// report unrecognized keys.
var recognizedFactors = func() map[string]bool {
	m := make(map[string]bool)
	for _, names := range factorTable {
		for _, n := range names {
			m[n] = true
		}
	}
	return m
}()
