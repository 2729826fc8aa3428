package features

import (
	"errors"
	"math"
	"sort"

	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/stat"

	"sportsml/internal/records"
)

// ErrEmptyBatch is returned when no record in the batch carries a resolved
// outcome for the requested target.
var ErrEmptyBatch = errors.New("no labeled records in batch")

// Extraction is the output of one extraction pass: a dense matrix whose
// columns follow Manifest in order, the per-column imputation values used to
// fill gaps, and the categorical encoding fit on this batch. Manifest,
// Imputation and Encoding together are the inference-time transform and are
// persisted with any model trained on Matrix.
type Extraction struct {
	Matrix     [][]float64
	Labels     []float64
	Manifest   []string
	Imputation []float64
	Encoding   *Encoding
	Rejected   int
}

// Extract builds the feature matrix and label vector for a record batch.
// Records without a resolved outcome are rejected (counted, not fatal).
// Recognized factors absent from a record are imputed with the batch column
// median (flags with zero); unrecognized factor keys are dropped and logged.
func Extract(recs []records.RawRecord, target records.Target) (*Extraction, error) {
	spec := SpecFor(target)
	labeled, rejected := records.FilterLabeled(recs, target)
	if rejected > 0 {
		log.Warn().
			Int("rejected", rejected).
			Str("target", string(target)).
			Msg("records without resolved outcome excluded")
	}
	if len(labeled) == 0 {
		return nil, ErrEmptyBatch
	}

	logUnrecognized(labeled)

	enc := FitEncoding(labeled)
	manifest := spec.Manifest()

	matrix := make([][]float64, len(labeled))
	labels := make([]float64, len(labeled))
	for i := range labeled {
		matrix[i] = rawRow(&labeled[i], manifest, enc)
		labels[i], _ = labeled[i].Label(target)
	}

	imputation := fitImputation(matrix, manifest)
	for _, row := range matrix {
		Impute(row, imputation)
	}

	return &Extraction{
		Matrix:     matrix,
		Labels:     labels,
		Manifest:   manifest,
		Imputation: imputation,
		Encoding:   enc,
		Rejected:   rejected,
	}, nil
}

// Row builds the feature vector for a single record at inference time using
// a previously fitted transform. Values the record does not carry are filled
// from the stored imputation column.
func Row(rec *records.RawRecord, manifest []string, imputation []float64, enc *Encoding) []float64 {
	row := rawRow(rec, manifest, enc)
	Impute(row, imputation)
	return row
}

// Impute replaces NaN entries of row with the per-column imputation values.
func Impute(row, imputation []float64) {
	for i := range row {
		if math.IsNaN(row[i]) {
			row[i] = imputation[i]
		}
	}
}

// rawRow evaluates every manifest column against one record, leaving NaN
// where the record has no value.
func rawRow(rec *records.RawRecord, manifest []string, enc *Encoding) []float64 {
	row := make([]float64, len(manifest))
	for i, name := range manifest {
		v, ok := value(rec, enc, name)
		if !ok {
			v = math.NaN()
		}
		row[i] = v
	}
	return row
}

func value(rec *records.RawRecord, enc *Encoding, name string) (float64, bool) {
	switch name {
	case "sport_encoded":
		return enc.SportCode(rec.Sport), true
	case "homeTeam_encoded":
		return enc.TeamCode(rec.HomeTeam), true
	case "awayTeam_encoded":
		return enc.TeamCode(rec.AwayTeam), true
	case "dayOfWeek":
		return float64(rec.GameTime.Weekday()), true
	case "month":
		return float64(rec.GameTime.Month()), true
	case "hour":
		return float64(rec.GameTime.Hour()), true
	case "openingSpread":
		return rec.OpeningSpread, true
	case "closingSpread":
		return rec.ClosingSpread, true
	case "spread_movement":
		return rec.ClosingSpread - rec.OpeningSpread, true
	case "spread_movement_pct":
		return movementPct(rec.ClosingSpread, rec.OpeningSpread), true
	case "openingTotal":
		return rec.OpeningTotal, true
	case "closingTotal":
		return rec.ClosingTotal, true
	case "total_movement":
		return rec.ClosingTotal - rec.OpeningTotal, true
	case "total_movement_pct":
		return movementPct(rec.ClosingTotal, rec.OpeningTotal), true
	case "openingML":
		return rec.OpeningML, true
	case "closingML":
		return rec.ClosingML, true
	case "ml_movement":
		return rec.ClosingML - rec.OpeningML, true
	case "confidence":
		return rec.Confidence, true
	case "high_confidence":
		return boolFeature(rec.Confidence > highConfidenceCutoff), true
	case "medium_confidence":
		return boolFeature(rec.Confidence >= mediumConfidenceLow && rec.Confidence <= highConfidenceCutoff), true
	case "homeOffensiveAdvantage":
		return factorDelta(rec, "homeOffensiveEff", "awayDefensiveEff")
	case "awayOffensiveAdvantage":
		return factorDelta(rec, "awayOffensiveEff", "homeDefensiveEff")
	case "restAdvantage":
		return factorDelta(rec, "restDaysHome", "restDaysAway")
	default:
		return factorValue(rec, name)
	}
}

const (
	highConfidenceCutoff = 70.0
	mediumConfidenceLow  = 50.0
)

// movementPct is movement as a fraction of the opening line. A zero opening
// line yields zero, never NaN.
func movementPct(closing, opening float64) float64 {
	if opening == 0 {
		return 0
	}
	return (closing - opening) / math.Abs(opening)
}

func boolFeature(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func factorValue(rec *records.RawRecord, name string) (float64, bool) {
	if v, ok := rec.Factors[name]; ok {
		return v, true
	}
	// spreadCLV also exists as a flat column on resolved records.
	if name == "spreadCLV" && rec.SpreadCLV != nil {
		return *rec.SpreadCLV, true
	}
	return 0, false
}

func factorDelta(rec *records.RawRecord, a, b string) (float64, bool) {
	va, oka := factorValue(rec, a)
	vb, okb := factorValue(rec, b)
	if !oka || !okb {
		return 0, false
	}
	return va - vb, true
}

// fitImputation computes the per-column fill value over the batch: the median
// of present values for continuous columns, zero for flag columns or columns
// with no observed value at all.
func fitImputation(matrix [][]float64, manifest []string) []float64 {
	imputation := make([]float64, len(manifest))
	col := make([]float64, 0, len(matrix))
	for j, name := range manifest {
		if flagColumns[name] {
			continue
		}
		col = col[:0]
		for i := range matrix {
			if !math.IsNaN(matrix[i][j]) {
				col = append(col, matrix[i][j])
			}
		}
		if len(col) == 0 {
			continue
		}
		sort.Float64s(col)
		imputation[j] = stat.Quantile(0.5, stat.Empirical, col, nil)
	}
	return imputation
}

// logUnrecognized reports factor keys outside the allow-list once per batch.
func logUnrecognized(recs []records.RawRecord) {
	dropped := map[string]bool{}
	for i := range recs {
		for k := range recs[i].Factors {
			if !recognizedFactors[k] {
				dropped[k] = true
			}
		}
	}
	if len(dropped) == 0 {
		return
	}
	keys := make([]string, 0, len(dropped))
	for k := range dropped {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	log.Debug().Strs("keys", keys).Msg("unrecognized factor keys dropped")
}
