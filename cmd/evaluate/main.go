package main

import (
	"context"
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
	"sportsml/internal/records"
	"sportsml/internal/registry"
	"sportsml/internal/replay"
)

func main() {
	var (
		recordsFile = flag.String("records", "", "Path to a labeled record export (.csv or .json)")
		sport       = flag.String("sport", "", "Sport to evaluate (overrides config)")
		target      = flag.String("target", "winner", "Prediction target: winner or spread")
		modelsDir   = flag.String("models", "", "Model registry directory (overrides config)")
		versions    = flag.String("versions", "all", "Comma-separated versions, or all, or latest")
		outputPath  = flag.String("output", "replay-results", "Output directory for reports")
		startDate   = flag.String("start", "", "Window start (YYYY-MM-DD)")
		endDate     = flag.String("end", "", "Window end (YYYY-MM-DD)")
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
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if *sport != "" {
		c.Sport = *sport
	}
	if *modelsDir != "" {
		c.ModelsDir = *modelsDir
	}
	if *recordsFile != "" {
		c.RecordsFile = *recordsFile
	}
	if c.RecordsFile == "" {
		log.Fatal().Msg("a record export is required, pass -records")
	}

	tgt := records.Target(*target)
	if tgt != records.TargetWinner && tgt != records.TargetSpread {
		log.Fatal().Str("target", *target).Msg("unknown target, want winner or spread")
	}

	start, err := parseDate(*startDate)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid start date")
	}
	end, err := parseDate(*endDate)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid end date")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	recs, err := records.LoadFile(c.RecordsFile)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load records")
	}

	loader, err := replay.NewLoader(recs, tgt, start, end)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build replay window")
	}

	reg := registry.New(c.ModelsDir)
	list, err := resolveVersions(reg, c.Sport, tgt, *versions)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to resolve versions")
	}

	engine := replay.NewEngine(reg, loader, c.Sport, tgt)
	results, err := engine.Run(ctx, list)
	if err != nil {
		log.Fatal().Err(err).Msg("replay failed")
	}

	if err := replay.NewReporter(results, *outputPath).GenerateReport(); err != nil {
		log.Fatal().Err(err).Msg("failed to write reports")
	}

	best := results.Best()
	fmt.Printf("replayed %d games across %d versions\n", results.Games, len(results.Versions))
	fmt.Printf("best: %s (accuracy %.3f, F1 %.3f, AUC %.3f)\n",
		best.Version, best.Report.Accuracy, best.Report.F1, best.Report.ROCAUC)
	fmt.Printf("reports written to %s\n", *outputPath)
}

func resolveVersions(reg *registry.Registry, sport string, target records.Target, spec string) ([]string, error) {
	switch spec {
	case "all":
		versions, err := reg.Versions(sport, target)
		if err != nil {
			return nil, err
		}
		if len(versions) == 0 {
			return nil, fmt.Errorf("no versions persisted for %s/%s", sport, target)
		}
		return versions, nil
	case "latest", "":
		return []string{registry.Latest}, nil
	default:
		var list []string
		for _, v := range strings.Split(spec, ",") {
			if v = strings.TrimSpace(v); v != "" {
				list = append(list, v)
			}
		}
		return list, nil
	}
}

func parseDate(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	return time.Parse("2006-01-02", v)
}
