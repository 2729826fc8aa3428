// Package registry persists trained artifact sets under immutable version
// identifiers and maintains an overwritable "latest" alias per sport and
// target. A version directory is written atomically: either the whole
// artifact set lands or nothing does.
package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"sportsml/internal/eval"
	"sportsml/internal/features"
	"sportsml/internal/model"
	"sportsml/internal/records"
	"sportsml/internal/scale"
)

// ErrCorruption marks a version that is missing or cannot be fully
// reconstructed. Loading never returns a partially usable artifact set.
var ErrCorruption = errors.New("registry artifact set missing or corrupt")

// Latest is the version alias resolving to the most recent save.
const Latest = "latest"

const (
	metadataFile   = "metadata.json"
	scalerFileName = "scaler.json"
	versionLayout  = "20060102-150405"
)

// CrossValidation is the k-fold summary recorded for the selected variant.
type CrossValidation struct {
	Folds int     `json:"folds"`
	Mean  float64 `json:"mean"`
	Std   float64 `json:"std"`
}

// Metadata is the JSON document written beside the serialized models. It is
// sufficient to reconstruct the inference-time transform on its own: the
// manifest, imputation column, and categorical code tables all live here.
type Metadata struct {
	Sport           string                    `json:"sport"`
	Target          records.Target            `json:"target"`
	ModelVersion    string                    `json:"model_version"`
	TrainedAt       time.Time                 `json:"trained_at"`
	FeatureNames    []string                  `json:"feature_names"`
	Imputation      []float64                 `json:"imputation"`
	Encoders        *features.Encoding        `json:"encoders"`
	Metrics         map[string]eval.Report    `json:"metrics"`
	Selected        string                    `json:"selected"`
	TrainingRows    int                       `json:"training_rows"`
	CrossValidation *CrossValidation          `json:"cross_validation,omitempty"`
	Importance      map[string][]float64      `json:"importance,omitempty"`
	MeanImportance  []float64                 `json:"mean_importance,omitempty"`
	Hyperparams     map[string]map[string]any `json:"hyperparams,omitempty"`
	ModelFiles      map[string]string         `json:"model_files"`
	ScalerFile      string                    `json:"scaler_file"`
}

// ArtifactSet is a fully materialized registry entry.
type ArtifactSet struct {
	Meta   Metadata
	Models map[string]model.Classifier
	Scaler *scale.Scaler
}

// Registry stores artifact sets under a root directory, one subdirectory per
// sport/target key, one subdirectory per version inside it.
type Registry struct {
	dir string
	now func() time.Time
}

// New creates a registry rooted at dir.
func New(dir string) *Registry {
	return &Registry{dir: dir, now: time.Now}
}

// Key returns the registry namespace for a sport and target.
func Key(sport string, target records.Target) string {
	return strings.ToLower(sport) + "_" + string(target)
}

// Save persists the artifact set under a fresh version id derived from wall
// clock time. Two saves within the same second disambiguate with a counter
// suffix; existing versions are never overwritten or deleted. The version
// directory is staged and renamed into place so a failed save leaves no
// partial entry, then the latest alias is repointed.
func (r *Registry) Save(set *ArtifactSet) (string, error) {
	if set == nil || set.Scaler == nil || len(set.Models) == 0 {
		return "", errors.New("artifact set must carry models and a scaler")
	}
	key := Key(set.Meta.Sport, set.Meta.Target)
	keyDir := filepath.Join(r.dir, key)
	if err := os.MkdirAll(keyDir, 0o755); err != nil {
		return "", fmt.Errorf("create registry dir: %w", err)
	}

	version, versionDir, err := r.claimVersion(keyDir)
	if err != nil {
		return "", err
	}

	meta := set.Meta
	meta.ModelVersion = version
	if meta.TrainedAt.IsZero() {
		meta.TrainedAt = r.now().UTC()
	}
	meta.ScalerFile = scalerFileName
	meta.ModelFiles = make(map[string]string, len(set.Models))
	for name := range set.Models {
		meta.ModelFiles[name] = name + "_model.json"
	}

	staging := versionDir + ".staging"
	if err := writeVersionDir(staging, meta, set); err != nil {
		os.RemoveAll(staging)
		return "", err
	}
	if err := os.Rename(staging, versionDir); err != nil {
		os.RemoveAll(staging)
		return "", fmt.Errorf("commit version dir: %w", err)
	}

	if err := r.writeLatest(key, meta); err != nil {
		return "", err
	}

	log.Info().
		Str("key", key).
		Str("version", version).
		Str("selected", meta.Selected).
		Msg("artifact set persisted")
	return version, nil
}

// claimVersion reserves a version id, appending a counter when a save lands
// in the same second as an earlier one.
func (r *Registry) claimVersion(keyDir string) (string, string, error) {
	base := r.now().UTC().Format(versionLayout)
	version := base
	for n := 2; ; n++ {
		dir := filepath.Join(keyDir, version)
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			if _, err := os.Stat(dir + ".staging"); os.IsNotExist(err) {
				return version, dir, nil
			}
		}
		if n > 1000 {
			return "", "", fmt.Errorf("cannot allocate version id for %s", base)
		}
		version = fmt.Sprintf("%s-%d", base, n)
	}
}

func writeVersionDir(dir string, meta Metadata, set *ArtifactSet) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create staging dir: %w", err)
	}

	for name, clf := range set.Models {
		blob, err := model.Marshal(clf)
		if err != nil {
			return err
		}
		if err := os.WriteFile(filepath.Join(dir, meta.ModelFiles[name]), blob, 0o600); err != nil {
			return fmt.Errorf("write model artifact: %w", err)
		}
	}

	scalerBlob, err := json.MarshalIndent(set.Scaler, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal scaler: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, scalerFileName), scalerBlob, 0o600); err != nil {
		return fmt.Errorf("write scaler artifact: %w", err)
	}

	metaBlob, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, metadataFile), metaBlob, 0o600); err != nil {
		return fmt.Errorf("write metadata: %w", err)
	}
	return nil
}

// writeLatest mirrors the newest metadata document into <key>_latest.json at
// the registry root. The alias is the only mutable file in the registry.
func (r *Registry) writeLatest(key string, meta Metadata) error {
	blob, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal latest metadata: %w", err)
	}
	path := filepath.Join(r.dir, key+"_latest.json")
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, blob, 0o600); err != nil {
		return fmt.Errorf("write latest alias: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("commit latest alias: %w", err)
	}
	return nil
}

// Load materializes a version, resolving the Latest alias first. Any missing
// or inconsistent piece fails with ErrCorruption; the caller never sees a
// partially usable set.
func (r *Registry) Load(sport string, target records.Target, version string) (*ArtifactSet, error) {
	key := Key(sport, target)

	if version == Latest {
		meta, err := r.readLatest(key)
		if err != nil {
			return nil, err
		}
		version = meta.ModelVersion
	}

	versionDir := filepath.Join(r.dir, key, version)
	metaBlob, err := os.ReadFile(filepath.Join(versionDir, metadataFile))
	if err != nil {
		return nil, fmt.Errorf("%w: %s/%s: %v", ErrCorruption, key, version, err)
	}
	var meta Metadata
	if err := json.Unmarshal(metaBlob, &meta); err != nil {
		return nil, fmt.Errorf("%w: bad metadata for %s/%s: %v", ErrCorruption, key, version, err)
	}
	if err := validateMetadata(meta, version); err != nil {
		return nil, err
	}

	scalerBlob, err := os.ReadFile(filepath.Join(versionDir, meta.ScalerFile))
	if err != nil {
		return nil, fmt.Errorf("%w: missing scaler for %s/%s: %v", ErrCorruption, key, version, err)
	}
	scaler := &scale.Scaler{}
	if err := json.Unmarshal(scalerBlob, scaler); err != nil {
		return nil, fmt.Errorf("%w: bad scaler for %s/%s: %v", ErrCorruption, key, version, err)
	}
	if len(scaler.Mean) != len(meta.FeatureNames) {
		return nil, fmt.Errorf("%w: scaler covers %d features, manifest has %d",
			ErrCorruption, len(scaler.Mean), len(meta.FeatureNames))
	}

	models := make(map[string]model.Classifier, len(meta.ModelFiles))
	for name, file := range meta.ModelFiles {
		blob, err := os.ReadFile(filepath.Join(versionDir, file))
		if err != nil {
			return nil, fmt.Errorf("%w: missing model %s for %s/%s: %v", ErrCorruption, name, key, version, err)
		}
		clf, err := model.Unmarshal(blob)
		if err != nil {
			return nil, fmt.Errorf("%w: bad model %s for %s/%s: %v", ErrCorruption, name, key, version, err)
		}
		models[name] = clf
	}

	return &ArtifactSet{Meta: meta, Models: models, Scaler: scaler}, nil
}

func (r *Registry) readLatest(key string) (Metadata, error) {
	blob, err := os.ReadFile(filepath.Join(r.dir, key+"_latest.json"))
	if err != nil {
		return Metadata{}, fmt.Errorf("%w: no latest alias for %s: %v", ErrCorruption, key, err)
	}
	var meta Metadata
	if err := json.Unmarshal(blob, &meta); err != nil {
		return Metadata{}, fmt.Errorf("%w: bad latest alias for %s: %v", ErrCorruption, key, err)
	}
	if meta.ModelVersion == "" {
		return Metadata{}, fmt.Errorf("%w: latest alias for %s has no version", ErrCorruption, key)
	}
	return meta, nil
}

func validateMetadata(meta Metadata, version string) error {
	if meta.ModelVersion != version {
		return fmt.Errorf("%w: metadata version %q does not match directory %q",
			ErrCorruption, meta.ModelVersion, version)
	}
	if len(meta.FeatureNames) == 0 {
		return fmt.Errorf("%w: empty feature manifest in %s", ErrCorruption, version)
	}
	if len(meta.Imputation) != len(meta.FeatureNames) {
		return fmt.Errorf("%w: imputation covers %d features, manifest has %d",
			ErrCorruption, len(meta.Imputation), len(meta.FeatureNames))
	}
	if meta.Encoders == nil {
		return fmt.Errorf("%w: missing encoders in %s", ErrCorruption, version)
	}
	if len(meta.ModelFiles) == 0 || meta.ScalerFile == "" {
		return fmt.Errorf("%w: incomplete file listing in %s", ErrCorruption, version)
	}
	return nil
}

// Versions lists the persisted version ids for a sport/target, oldest first.
func (r *Registry) Versions(sport string, target records.Target) ([]string, error) {
	keyDir := filepath.Join(r.dir, Key(sport, target))
	entries, err := os.ReadDir(keyDir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var versions []string
	for _, e := range entries {
		if e.IsDir() && !strings.HasSuffix(e.Name(), ".staging") {
			versions = append(versions, e.Name())
		}
	}
	sort.Strings(versions)
	return versions, nil
}
