// Command collect pulls resolved prediction records into the local BoltDB
// store so training can run without a live database or tracker connection.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"sportsml/internal/cfg"
	"sportsml/internal/records"
)

func main() {
	var (
		recordsFile = flag.String("records", "", "Import records from a file instead of a remote source")
		sport       = flag.String("sport", "", "Sport to collect (overrides config)")
		dataPath    = flag.String("data", "", "Local store directory (overrides config)")
		lookback    = flag.Int("lookback", 0, "Days of history to fetch (overrides config)")
		logLevel    = flag.String("log-level", "info", "Log level: debug, info, warn, error")
	)
	flag.Parse()

	_ = godotenv.Load()

	level, err := zerolog.ParseLevel(*logLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	c, err := cfg.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}
	if *recordsFile != "" {
		c.RecordsFile = *recordsFile
	}
	if *sport != "" {
		c.Sport = *sport
	}
	if *dataPath != "" {
		c.DataPath = *dataPath
	}
	if *lookback != 0 {
		c.LookbackDays = *lookback
	}
	if c.DataPath == "" {
		log.Fatal().Msg("DATA_PATH must be set to collect records")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	recs, err := fetch(ctx, c)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to fetch records")
	}

	store, err := records.OpenStore(c.DataPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open record store")
	}
	defer store.Close()

	if err := store.PutBatch(recs); err != nil {
		log.Fatal().Err(err).Msg("failed to store records")
	}

	labeled, _ := records.FilterLabeled(recs, records.TargetWinner)
	fmt.Printf("stored %d records for %s (%d with resolved winner outcome)\n",
		len(recs), c.Sport, len(labeled))
}

func fetch(ctx context.Context, c cfg.Settings) ([]records.RawRecord, error) {
	since := time.Now().AddDate(0, 0, -c.LookbackDays)

	switch {
	case c.RecordsFile != "":
		return records.LoadFile(c.RecordsFile)

	case c.DatabaseURL != "":
		src, err := records.NewPostgresSource(c.DatabaseURL)
		if err != nil {
			return nil, err
		}
		defer src.Close()
		return src.Load(ctx, c.Sport, since)

	case c.TrackerBaseURL != "":
		client := records.NewTrackerClient(c.TrackerBaseURL, c.TrackerAPIKey, c.RESTTimeout)
		return client.FetchResolved(c.Sport, since, 500)

	default:
		return nil, errors.New("no record source configured: set RECORDS_FILE, DATABASE_URL or TRACKER_BASE_URL")
	}
}
