package features

import (
	"math"
	"testing"
	"time"

	"sportsml/internal/records"
)

func boolPtr(b bool) *bool { return &b }

func testRecord(home, away string, correct bool) records.RawRecord {
	return records.RawRecord{
		Sport:         "nfl",
		HomeTeam:      home,
		AwayTeam:      away,
		GameTime:      time.Date(2025, 10, 12, 13, 0, 0, 0, time.UTC),
		Confidence:    62,
		OpeningSpread: -3.5,
		ClosingSpread: -4.5,
		OpeningTotal:  44,
		ClosingTotal:  46,
		OpeningML:     -160,
		ClosingML:     -180,
		WasCorrect:    boolPtr(correct),
		SpreadCorrect: boolPtr(!correct),
		Factors: map[string]float64{
			"homeOffensiveEff": 0.12,
			"awayDefensiveEff": 0.05,
			"restDaysHome":     7,
			"restDaysAway":     6,
		},
	}
}

func testBatch(n int) []records.RawRecord {
	teams := []string{"KC", "BUF", "PHI", "DAL", "SF", "DET"}
	recs := make([]records.RawRecord, n)
	for i := range recs {
		recs[i] = testRecord(teams[i%len(teams)], teams[(i+1)%len(teams)], i%2 == 0)
		recs[i].GameTime = recs[i].GameTime.AddDate(0, 0, i)
		recs[i].OpeningSpread = -3.5 + float64(i%5)
		recs[i].Confidence = 50 + float64(i%40)
	}
	return recs
}

func TestExtractDeterministic(t *testing.T) {
	recs := testBatch(24)

	a, err := Extract(recs, records.TargetWinner)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	b, err := Extract(recs, records.TargetWinner)
	if err != nil {
		t.Fatalf("second Extract failed: %v", err)
	}

	if len(a.Matrix) != len(b.Matrix) {
		t.Fatalf("row counts differ: %d vs %d", len(a.Matrix), len(b.Matrix))
	}
	for i := range a.Matrix {
		for j := range a.Matrix[i] {
			if a.Matrix[i][j] != b.Matrix[i][j] {
				t.Fatalf("matrix differs at [%d][%d]: %v vs %v", i, j, a.Matrix[i][j], b.Matrix[i][j])
			}
		}
	}
	for i := range a.Manifest {
		if a.Manifest[i] != b.Manifest[i] {
			t.Fatalf("manifest differs at %d: %s vs %s", i, a.Manifest[i], b.Manifest[i])
		}
	}
}

func TestManifestStableAcrossFactorCoverage(t *testing.T) {
	sparse := testBatch(12)
	for i := range sparse {
		sparse[i].Factors = nil
	}
	rich := testBatch(12)

	a, err := Extract(sparse, records.TargetWinner)
	if err != nil {
		t.Fatalf("Extract sparse failed: %v", err)
	}
	b, err := Extract(rich, records.TargetWinner)
	if err != nil {
		t.Fatalf("Extract rich failed: %v", err)
	}

	if len(a.Manifest) != len(b.Manifest) {
		t.Fatalf("manifest length depends on factor coverage: %d vs %d", len(a.Manifest), len(b.Manifest))
	}
	for i := range a.Manifest {
		if a.Manifest[i] != b.Manifest[i] {
			t.Fatalf("manifest order depends on factor coverage at %d", i)
		}
	}
}

func TestUnlabeledRecordsRejected(t *testing.T) {
	recs := testBatch(10)
	recs[3].WasCorrect = nil
	recs[7].WasCorrect = nil

	ext, err := Extract(recs, records.TargetWinner)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if ext.Rejected != 2 {
		t.Errorf("expected 2 rejected records, got %d", ext.Rejected)
	}
	if len(ext.Matrix) != 8 {
		t.Errorf("expected 8 rows, got %d", len(ext.Matrix))
	}
}

func TestExtractAllUnlabeled(t *testing.T) {
	recs := testBatch(5)
	for i := range recs {
		recs[i].WasCorrect = nil
	}
	if _, err := Extract(recs, records.TargetWinner); err == nil {
		t.Fatal("expected error for fully unlabeled batch")
	}
}

func TestZeroOpeningLineMovementPct(t *testing.T) {
	if got := movementPct(2.5, 0); got != 0 {
		t.Errorf("movementPct with zero opening = %v, want 0", got)
	}
	if got := movementPct(-4.5, -3.5); math.Abs(got-(-1.0/3.5)) > 1e-12 {
		t.Errorf("movementPct(-4.5, -3.5) = %v", got)
	}
	if math.IsNaN(movementPct(0, 0)) || math.IsInf(movementPct(5, 0), 0) {
		t.Error("movementPct must never produce NaN or Inf")
	}
}

func TestUnseenTeamMidpoint(t *testing.T) {
	recs := testBatch(12)
	ext, err := Extract(recs, records.TargetWinner)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}

	want := float64(len(ext.Encoding.Teams) / 2)
	if got := ext.Encoding.TeamCode("NEVER_SEEN"); got != want {
		t.Errorf("unseen team code = %v, want midpoint %v", got, want)
	}
	if got := ext.Encoding.SportCode("cricket"); got != float64(len(ext.Encoding.Sports)/2) {
		t.Errorf("unseen sport code = %v, want midpoint", got)
	}
}

func TestMissingFactorImputedWithMedian(t *testing.T) {
	recs := testBatch(11)
	// Odd count so the median is an observed value.
	for i := range recs {
		recs[i].Factors = map[string]float64{"temperature": float64(30 + i)}
	}
	recs[5].Factors = nil

	ext, err := Extract(recs, records.TargetWinner)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}

	col := -1
	for j, name := range ext.Manifest {
		if name == "temperature" {
			col = j
			break
		}
	}
	if col < 0 {
		t.Fatal("temperature not in manifest")
	}

	for i := range ext.Matrix {
		if math.IsNaN(ext.Matrix[i][col]) {
			t.Fatalf("imputation left NaN at row %d", i)
		}
	}
	if ext.Imputation[col] == 0 {
		t.Error("expected non-zero median imputation for temperature")
	}
}

func TestFlagColumnsImputedWithZero(t *testing.T) {
	recs := testBatch(8)
	ext, err := Extract(recs, records.TargetWinner)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	for j, name := range ext.Manifest {
		if flagColumns[name] && ext.Imputation[j] != 0 {
			t.Errorf("flag column %s imputed with %v, want 0", name, ext.Imputation[j])
		}
	}
}

func TestDerivedAdvantageRequiresBothOperands(t *testing.T) {
	rec := testRecord("KC", "BUF", true)
	rec.Factors = map[string]float64{"homeOffensiveEff": 0.2} // missing awayDefensiveEff

	if _, ok := factorDelta(&rec, "homeOffensiveEff", "awayDefensiveEff"); ok {
		t.Error("factorDelta should report missing when an operand is absent")
	}

	rec.Factors["awayDefensiveEff"] = 0.05
	v, ok := factorDelta(&rec, "homeOffensiveEff", "awayDefensiveEff")
	if !ok || math.Abs(v-0.15) > 1e-12 {
		t.Errorf("factorDelta = %v, %v; want 0.15, true", v, ok)
	}
}

func TestSpreadManifestReduced(t *testing.T) {
	winner := SpecFor(records.TargetWinner).Manifest()
	spread := SpecFor(records.TargetSpread).Manifest()

	if len(spread) >= len(winner) {
		t.Errorf("spread manifest (%d) should be smaller than winner (%d)", len(spread), len(winner))
	}
	for _, name := range spread {
		if name == "total_movement" || name == "ml_movement" || name == "medium_confidence" {
			t.Errorf("spread manifest must not contain %s", name)
		}
	}
}

func TestRowMatchesTrainingDerivation(t *testing.T) {
	recs := testBatch(16)
	ext, err := Extract(recs, records.TargetWinner)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}

	row := Row(&recs[0], ext.Manifest, ext.Imputation, ext.Encoding)
	for j := range row {
		if row[j] != ext.Matrix[0][j] {
			t.Fatalf("inference row differs from training row at %s: %v vs %v",
				ext.Manifest[j], row[j], ext.Matrix[0][j])
		}
	}
}
