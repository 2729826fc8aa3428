// Package serve exposes trained artifact sets over HTTP. The service loads
// the latest registry version per target at startup (and on demand), scores
// incoming games with the selected variant or blend, and appends everything
// it serves to a local log for future labeling.
package serve

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"sportsml/internal/features"
	"sportsml/internal/metrics"
	"sportsml/internal/records"
	"sportsml/internal/registry"
)

// ErrModelsNotLoaded is returned while no winner artifact set is loaded.
// Handlers translate it to 503.
var ErrModelsNotLoaded = errors.New("models not loaded, train first")

type loadedSet struct {
	set      *registry.ArtifactSet
	loadedAt time.Time
}

// Service scores games against the loaded artifact sets. Loading and scoring
// may be called concurrently; a reload swaps the set atomically under the
// lock.
type Service struct {
	registry *registry.Registry
	sport    string
	m        *metrics.Metrics
	plog     *PredictionLog

	mu   sync.RWMutex
	sets map[records.Target]*loadedSet
}

// New creates a service bound to a registry and sport. Both the metrics and
// the prediction log may be nil.
func New(reg *registry.Registry, sport string, m *metrics.Metrics, plog *PredictionLog) *Service {
	return &Service{
		registry: reg,
		sport:    sport,
		m:        m,
		plog:     plog,
		sets:     make(map[records.Target]*loadedSet),
	}
}

// LoadLatest loads the newest artifact set for every target. A winner set is
// required; a missing spread set only disables spread outputs.
func (s *Service) LoadLatest() error {
	winner, err := s.registry.Load(s.sport, records.TargetWinner, registry.Latest)
	if err != nil {
		return fmt.Errorf("load winner models: %w", err)
	}

	spread, err := s.registry.Load(s.sport, records.TargetSpread, registry.Latest)
	if err != nil {
		log.Warn().Err(err).Msg("no spread models available, serving winner only")
		spread = nil
	}

	now := time.Now()
	s.mu.Lock()
	s.sets[records.TargetWinner] = &loadedSet{set: winner, loadedAt: now}
	if spread != nil {
		s.sets[records.TargetSpread] = &loadedSet{set: spread, loadedAt: now}
	} else {
		delete(s.sets, records.TargetSpread)
	}
	s.mu.Unlock()

	if s.m != nil {
		s.m.ModelAge.Set(now.Sub(winner.Meta.TrainedAt).Seconds())
	}
	log.Info().
		Str("sport", s.sport).
		Str("winner_version", winner.Meta.ModelVersion).
		Bool("spread_loaded", spread != nil).
		Msg("artifact sets loaded")
	return nil
}

// Ready reports whether the service can score at all.
func (s *Service) Ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sets[records.TargetWinner] != nil
}

// Loaded returns the current set for a target, or nil.
func (s *Service) Loaded(target records.Target) *registry.ArtifactSet {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if ls := s.sets[target]; ls != nil {
		return ls.set
	}
	return nil
}

// Predict scores one game against every loaded target and logs the result.
func (s *Service) Predict(game *GameInput) (*PredictionOutput, error) {
	started := time.Now()
	if err := game.validate(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	winner := s.sets[records.TargetWinner]
	spread := s.sets[records.TargetSpread]
	s.mu.RUnlock()

	if winner == nil {
		return nil, ErrModelsNotLoaded
	}

	winnerProb, threshold, err := s.score(winner.set, game)
	if err != nil {
		if s.m != nil {
			s.m.PredictionFailures.Inc()
			s.m.ErrorsTotal.Inc()
		}
		return nil, err
	}

	out := &PredictionOutput{
		WinnerPrediction:  winnerProb >= threshold,
		WinnerProbability: winnerProb,
		Confidence:        maxProb(winnerProb) * 100,
		ModelVersion:      winner.set.Meta.ModelVersion,
	}

	if spread != nil {
		spreadProb, spreadThreshold, err := s.score(spread.set, game)
		if err != nil {
			log.Warn().Err(err).Msg("spread scoring failed, omitting spread output")
		} else {
			pred := spreadProb >= spreadThreshold
			out.SpreadPrediction = &pred
			out.SpreadProbability = &spreadProb
		}
	}

	if s.m != nil {
		s.m.Predictions.Inc()
		s.m.PredictionScores.Observe(winnerProb)
		s.m.PredictionLatency.Observe(time.Since(started).Seconds())
	}
	if s.plog != nil {
		if err := s.plog.Append(game, out); err != nil {
			log.Warn().Err(err).Msg("failed to log served prediction")
		}
	}
	return out, nil
}

// score runs the persisted transform and the selected candidate (or blend)
// for one artifact set.
func (s *Service) score(set *registry.ArtifactSet, game *GameInput) (prob, threshold float64, err error) {
	meta := set.Meta
	row := features.Row(game.record(), meta.FeatureNames, meta.Imputation, meta.Encoders)
	game.overrideDateParts(meta.FeatureNames, row)

	scaled, err := set.Scaler.TransformRow(row)
	if err != nil {
		return 0, 0, fmt.Errorf("scale input: %w", err)
	}
	return set.Score(scaled)
}

func maxProb(p float64) float64 {
	if p >= 0.5 {
		return p
	}
	return 1 - p
}
