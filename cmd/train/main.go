package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"sportsml/internal/cfg"
	"sportsml/internal/dataset"
	"sportsml/internal/eval"
	"sportsml/internal/pipeline"
	"sportsml/internal/records"
	"sportsml/internal/registry"
)

func main() {
	var (
		recordsFile = flag.String("records", "", "Records file (JSON, NDJSON or CSV, overrides config)")
		sport       = flag.String("sport", "", "Sport to train for (overrides config)")
		targets     = flag.String("targets", "", "Comma-separated targets: winner,spread (overrides config)")
		modelsDir   = flag.String("models", "", "Registry directory for trained models (overrides config)")
		gridSearch  = flag.Bool("grid", false, "Run hyperparameter grid search for the forest variant")
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
	if *targets != "" {
		c.Targets = splitTargets(*targets)
	}
	if *modelsDir != "" {
		c.ModelsDir = *modelsDir
	}
	if *gridSearch {
		c.GridSearch = true
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	recs, err := loadRecords(ctx, c)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load prediction records")
	}
	log.Info().Int("records", len(recs)).Str("sport", c.Sport).Msg("records loaded")

	reg := registry.New(c.ModelsDir)
	failed := false
	for _, target := range c.Targets {
		summary, err := pipeline.Run(ctx, recs, reg, pipeline.Params{
			Sport:          c.Sport,
			Target:         records.Target(target),
			TestFraction:   c.TestFraction,
			MinGames:       c.MinGames,
			Seed:           c.Seed,
			GridSearch:     c.GridSearch,
			EnableXGBoost:  c.EnableXGBoost,
			Blend:          c.BlendEnabled,
			BlendWeights:   eval.BlendWeights{Forest: c.BlendForest, XGBoost: c.BlendXGBoost, LogReg: c.BlendLogReg},
			BlendThreshold: c.BlendThreshold,
			CVFolds:        c.CVFolds,
		}, nil)
		if err != nil {
			failed = true
			if errors.Is(err, dataset.ErrInsufficientData) {
				log.Error().Err(err).Str("target", target).Msg("not enough labeled games yet, collect more history")
			} else {
				log.Error().Err(err).Str("target", target).Msg("training run failed")
			}
			continue
		}
		fmt.Printf("%s/%s: version=%s selected=%s f1=%.4f auc=%.4f accuracy=%.4f (%d train / %d test rows)\n",
			c.Sport, target, summary.Version, summary.Selected,
			summary.Report.F1, summary.Report.ROCAUC, summary.Report.Accuracy,
			summary.Rows-summary.TestRows, summary.TestRows)
	}
	if failed {
		os.Exit(1)
	}
}

// loadRecords pulls the training history from the first configured source:
// an explicit records file, the tracker database, the tracker REST API, then
// the local BoltDB store.
func loadRecords(ctx context.Context, c cfg.Settings) ([]records.RawRecord, error) {
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

	case c.DataPath != "":
		store, err := records.OpenStore(c.DataPath)
		if err != nil {
			return nil, err
		}
		defer store.Close()
		return store.Load(c.Sport, since, time.Now())

	default:
		return nil, errors.New("no record source configured: set RECORDS_FILE, DATABASE_URL, TRACKER_BASE_URL or DATA_PATH")
	}
}

func splitTargets(s string) []string {
	var out []string
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}
