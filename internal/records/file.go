package records

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// LoadFile loads a batch of records from a flat-file export. The format is
// picked by extension: .csv or .json. Rows that fail to parse are skipped.
func LoadFile(path string) ([]RawRecord, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return loadCSV(path)
	case ".json":
		return loadJSON(path)
	default:
		return nil, fmt.Errorf("unsupported record file format: %s", path)
	}
}

func loadJSON(path string) ([]RawRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open record file: %w", err)
	}
	defer f.Close()

	// Accept either a top-level array or newline-delimited objects.
	dec := json.NewDecoder(f)
	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("read record file: %w", err)
	}

	var recs []RawRecord
	if delim, ok := tok.(json.Delim); ok && delim == '[' {
		for dec.More() {
			var r RawRecord
			if err := dec.Decode(&r); err != nil {
				return nil, fmt.Errorf("decode record: %w", err)
			}
			recs = append(recs, r)
		}
	} else {
		// Rewind and treat as NDJSON.
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			return nil, err
		}
		dec = json.NewDecoder(f)
		for {
			var r RawRecord
			if err := dec.Decode(&r); err == io.EOF {
				break
			} else if err != nil {
				return nil, fmt.Errorf("decode record: %w", err)
			}
			recs = append(recs, r)
		}
	}

	sortByMadeAt(recs)
	log.Info().Str("file", path).Int("records", len(recs)).Msg("loaded JSON record export")
	return recs, nil
}

func loadCSV(path string) ([]RawRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open record file: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read CSV header: %w", err)
	}
	idx := make(map[string]int, len(header))
	for i, col := range header {
		idx[col] = i
	}

	var recs []RawRecord
	skipped := 0
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			skipped++
			continue
		}
		r, err := recordFromCSVRow(row, idx)
		if err != nil {
			skipped++
			continue
		}
		recs = append(recs, r)
	}

	sortByMadeAt(recs)
	log.Info().
		Str("file", path).
		Int("records", len(recs)).
		Int("skipped", skipped).
		Msg("loaded CSV record export")
	return recs, nil
}

func recordFromCSVRow(row []string, idx map[string]int) (RawRecord, error) {
	field := func(name string) string {
		if i, ok := idx[name]; ok && i < len(row) {
			return row[i]
		}
		return ""
	}
	num := func(name string) float64 {
		v, _ := strconv.ParseFloat(field(name), 64)
		return v
	}

	gameTime, err := parseTime(field("gameTime"))
	if err != nil {
		return RawRecord{}, fmt.Errorf("parse gameTime: %w", err)
	}
	madeAt, err := parseTime(field("madeAt"))
	if err != nil {
		madeAt = gameTime
	}

	r := RawRecord{
		ID:              field("id"),
		GameID:          field("gameId"),
		Sport:           field("sport"),
		HomeTeam:        field("homeTeam"),
		AwayTeam:        field("awayTeam"),
		GameTime:        gameTime,
		PredictedWinner: field("predictedWinner"),
		Confidence:      num("confidence"),
		OpeningSpread:   num("openingSpread"),
		ClosingSpread:   num("closingSpread"),
		OpeningTotal:    num("openingTotal"),
		ClosingTotal:    num("closingTotal"),
		OpeningML:       num("openingML"),
		ClosingML:       num("closingML"),
		MadeAt:          madeAt,
	}

	if v := field("wasCorrect"); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			r.WasCorrect = &b
		}
	}
	if v := field("spreadCorrect"); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			r.SpreadCorrect = &b
		}
	}
	if v := field("spreadCLV"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err == nil {
			r.SpreadCLV = &f
		}
	}
	if v := field("factors"); v != "" {
		if err := json.Unmarshal([]byte(v), &r.Factors); err != nil {
			log.Warn().Str("id", r.ID).Msg("unparseable factors column, keeping flat columns")
		}
	}
	return r, nil
}

func parseTime(v string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, v); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time %q", v)
}

func sortByMadeAt(recs []RawRecord) {
	sort.Slice(recs, func(i, j int) bool {
		return recs[i].MadeAt.Before(recs[j].MadeAt)
	})
}
