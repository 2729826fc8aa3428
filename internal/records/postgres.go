package records

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"
)

// PostgresSource loads prediction records from the tracker database.
type PostgresSource struct {
	db *sql.DB
}

// NewPostgresSource opens a connection to the prediction tracker database.
func NewPostgresSource(dbURL string) (*PostgresSource, error) {
	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &PostgresSource{db: db}, nil
}

// Close releases the underlying connection pool.
func (s *PostgresSource) Close() error {
	return s.db.Close()
}

// Load returns resolved predictions for a sport made after the cutoff,
// ordered by when the prediction was made. Records whose factors blob fails
// to parse keep their flat columns and are not dropped.
func (s *PostgresSource) Load(ctx context.Context, sport string, since time.Time) ([]RawRecord, error) {
	const query = `
		SELECT "id", "gameId", "sport", "homeTeam", "awayTeam", "gameTime",
		       "predictedWinner", "confidence",
		       "openingSpread", "closingSpread",
		       "openingTotal", "closingTotal",
		       "openingML", "closingML",
		       "factors", "wasCorrect", "spreadCorrect", "spreadCLV", "madeAt"
		FROM "Prediction"
		WHERE "sport" = $1 AND "wasCorrect" IS NOT NULL AND "madeAt" >= $2
		ORDER BY "madeAt" ASC`

	rows, err := s.db.QueryContext(ctx, query, sport, since)
	if err != nil {
		return nil, fmt.Errorf("query predictions: %w", err)
	}
	defer rows.Close()

	var recs []RawRecord
	for rows.Next() {
		var (
			r       RawRecord
			factors sql.NullString
			clv     sql.NullFloat64
			correct sql.NullBool
			spread  sql.NullBool
		)
		if err := rows.Scan(
			&r.ID, &r.GameID, &r.Sport, &r.HomeTeam, &r.AwayTeam, &r.GameTime,
			&r.PredictedWinner, &r.Confidence,
			&r.OpeningSpread, &r.ClosingSpread,
			&r.OpeningTotal, &r.ClosingTotal,
			&r.OpeningML, &r.ClosingML,
			&factors, &correct, &spread, &clv, &r.MadeAt,
		); err != nil {
			return nil, fmt.Errorf("scan prediction row: %w", err)
		}
		if correct.Valid {
			v := correct.Bool
			r.WasCorrect = &v
		}
		if spread.Valid {
			v := spread.Bool
			r.SpreadCorrect = &v
		}
		if clv.Valid {
			v := clv.Float64
			r.SpreadCLV = &v
		}
		if factors.Valid && factors.String != "" {
			if err := json.Unmarshal([]byte(factors.String), &r.Factors); err != nil {
				log.Warn().Err(err).Str("id", r.ID).Msg("unparseable factors blob, keeping flat columns")
			}
		}
		recs = append(recs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate prediction rows: %w", err)
	}
	return recs, nil
}
