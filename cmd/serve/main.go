package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"sportsml/internal/cfg"
	"sportsml/internal/metrics"
	"sportsml/internal/registry"
	"sportsml/internal/serve"
)

func main() {
	var (
		modelsDir = flag.String("models", "", "Registry directory with trained models (overrides config)")
		sport     = flag.String("sport", "", "Sport to serve predictions for (overrides config)")
		port      = flag.Int("port", 0, "HTTP port (overrides config)")
		logLevel  = flag.String("log-level", "info", "Log level: debug, info, warn, error")
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
	if *modelsDir != "" {
		c.ModelsDir = *modelsDir
	}
	if *sport != "" {
		c.Sport = *sport
	}
	if *port != 0 {
		c.ServePort = *port
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	m := metrics.New()

	var plog *serve.PredictionLog
	if c.DataPath != "" {
		plog, err = serve.OpenPredictionLog(c.DataPath)
		if err != nil {
			log.Warn().Err(err).Msg("prediction log unavailable, continuing without persistence")
		} else {
			defer plog.Close()
		}
	}

	svc := serve.New(registry.New(c.ModelsDir), c.Sport, m, plog)
	if err := svc.LoadLatest(); err != nil {
		log.Warn().Err(err).Msg("starting without models, train first then POST /models/reload")
	}

	server := serve.NewServer(svc, c.ServePort)
	if err := server.Start(); err != nil {
		log.Fatal().Err(err).Msg("failed to start scoring server")
	}

	startMetricsServer(ctx, c.MetricsPort)

	<-ctx.Done()
	log.Info().Msg("shutting down gracefully...")
	if err := server.Stop(); err != nil {
		log.Error().Err(err).Msg("shutdown failed")
	}
}

// startMetricsServer exposes health and Prometheus metrics on a separate port
// for scrapers that should not reach the scoring API.
func startMetricsServer(ctx context.Context, port int) {
	go func() {
		mux := http.NewServeMux()
		mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("OK"))
		})
		mux.Handle("/metrics", promhttp.Handler())

		server := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		}

		go func() {
			<-ctx.Done()
			if err := server.Shutdown(context.Background()); err != nil {
				log.Error().Err(err).Msg("failed to shutdown metrics server")
			}
		}()

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("metrics server failed")
		}
	}()
}
