package cfg

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Settings struct {
	Sport        string
	Targets      []string
	DatabaseURL  string
	RecordsFile  string
	DataPath     string
	ModelsDir    string
	TestFraction float64
	MinGames     int
	LookbackDays int
	Seed         int64
	GridSearch   bool
	CVFolds      int

	EnableXGBoost  bool
	BlendEnabled   bool
	BlendForest    float64
	BlendXGBoost   float64
	BlendLogReg    float64
	BlendThreshold float64

	TrackerBaseURL string
	TrackerAPIKey  string
	RESTTimeout    time.Duration

	ServePort   int
	MetricsPort int
}

type ConfigFile struct {
	Pipeline struct {
		Sport        string   `yaml:"sport"`
		Targets      []string `yaml:"targets"`
		TestFraction float64  `yaml:"testFraction"`
		MinGames     int      `yaml:"minGames"`
		LookbackDays int      `yaml:"lookbackDays"`
		Seed         int64    `yaml:"seed"`
		GridSearch   *bool    `yaml:"gridSearch"`
		CVFolds      int      `yaml:"cvFolds"`
	} `yaml:"pipeline"`

	Models struct {
		EnableXGBoost  *bool   `yaml:"enableXGBoost"`
		BlendEnabled   *bool   `yaml:"blendEnabled"`
		BlendForest    float64 `yaml:"blendForest"`
		BlendXGBoost   float64 `yaml:"blendXGBoost"`
		BlendLogReg    float64 `yaml:"blendLogReg"`
		BlendThreshold float64 `yaml:"blendThreshold"`
	} `yaml:"models"`

	Sources struct {
		DatabaseURL    string `yaml:"databaseURL"`
		RecordsFile    string `yaml:"recordsFile"`
		TrackerBaseURL string `yaml:"trackerBaseURL"`
		TrackerAPIKey  string `yaml:"trackerAPIKey"`
	} `yaml:"sources"`

	System struct {
		DataPath    string `yaml:"dataPath"`
		ModelsDir   string `yaml:"modelsDir"`
		ServePort   int    `yaml:"servePort"`
		MetricsPort int    `yaml:"metricsPort"`
		RESTTimeout string `yaml:"restTimeout"`
	} `yaml:"system"`
}

func Load() (Settings, error) {
	// Try to load from YAML file first
	if configPath := os.Getenv("CONFIG_FILE"); configPath != "" {
		return loadFromYAML(configPath)
	}

	// Fallback to environment variables
	return loadFromEnv()
}

func loadFromYAML(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var config ConfigFile
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Settings{}, fmt.Errorf("failed to parse config file: %w", err)
	}

	restTimeout, err := time.ParseDuration(config.System.RESTTimeout)
	if err != nil {
		restTimeout = 10 * time.Second
	}

	settings := Settings{
		Sport:          getEnvOrDefault("SPORT", defaultString(config.Pipeline.Sport, "nfl")),
		Targets:        getTargetsFromEnvOrConfig(config.Pipeline.Targets),
		DatabaseURL:    getEnvOrDefault("DATABASE_URL", config.Sources.DatabaseURL),
		RecordsFile:    getEnvOrDefault("RECORDS_FILE", config.Sources.RecordsFile),
		DataPath:       getEnvOrDefault("DATA_PATH", config.System.DataPath),
		ModelsDir:      getEnvOrDefault("MODELS_DIR", defaultString(config.System.ModelsDir, "models")),
		TestFraction:   getFloatFromEnvOrConfig("TEST_FRACTION", config.Pipeline.TestFraction, 0.2),
		MinGames:       getIntFromEnvOrConfig("MIN_GAMES", config.Pipeline.MinGames, 50),
		LookbackDays:   getIntFromEnvOrConfig("LOOKBACK_DAYS", config.Pipeline.LookbackDays, 365),
		Seed:           int64(getIntFromEnvOrConfig("SEED", int(config.Pipeline.Seed), 42)),
		GridSearch:     getBoolFromEnvOrConfig("GRID_SEARCH", config.Pipeline.GridSearch, false),
		CVFolds:        getIntFromEnvOrConfig("CV_FOLDS", config.Pipeline.CVFolds, 5),
		EnableXGBoost:  getBoolFromEnvOrConfig("ENABLE_XGBOOST", config.Models.EnableXGBoost, true),
		BlendEnabled:   getBoolFromEnvOrConfig("BLEND_ENABLED", config.Models.BlendEnabled, true),
		BlendForest:    getFloatFromEnvOrConfig("BLEND_FOREST", config.Models.BlendForest, 0.3),
		BlendXGBoost:   getFloatFromEnvOrConfig("BLEND_XGBOOST", config.Models.BlendXGBoost, 0.5),
		BlendLogReg:    getFloatFromEnvOrConfig("BLEND_LOGREG", config.Models.BlendLogReg, 0.2),
		BlendThreshold: getFloatFromEnvOrConfig("BLEND_THRESHOLD", config.Models.BlendThreshold, 0.5),
		TrackerBaseURL: getEnvOrDefault("TRACKER_BASE_URL", config.Sources.TrackerBaseURL),
		TrackerAPIKey:  getEnvOrDefault("TRACKER_API_KEY", config.Sources.TrackerAPIKey),
		RESTTimeout:    restTimeout,
		ServePort:      getIntFromEnvOrConfig("SERVE_PORT", config.System.ServePort, 8090),
		MetricsPort:    getIntFromEnvOrConfig("METRICS_PORT", config.System.MetricsPort, 8080),
	}

	// Validate configuration
	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}

	return settings, nil
}

func loadFromEnv() (Settings, error) {
	settings := Settings{
		Sport:          getEnvOrDefault("SPORT", "nfl"),
		Targets:        splitOrDefault(os.Getenv("TARGETS"), []string{"winner"}),
		DatabaseURL:    os.Getenv("DATABASE_URL"), // optional, file source also works
		RecordsFile:    os.Getenv("RECORDS_FILE"),
		DataPath:       os.Getenv("DATA_PATH"),
		ModelsDir:      getEnvOrDefault("MODELS_DIR", "models"),
		TestFraction:   getFloatOrDefault("TEST_FRACTION", 0.2),
		MinGames:       getIntOrDefault("MIN_GAMES", 50),
		LookbackDays:   getIntOrDefault("LOOKBACK_DAYS", 365),
		Seed:           int64(getIntOrDefault("SEED", 42)),
		GridSearch:     getBoolOrDefault("GRID_SEARCH", false),
		CVFolds:        getIntOrDefault("CV_FOLDS", 5),
		EnableXGBoost:  getBoolOrDefault("ENABLE_XGBOOST", true),
		BlendEnabled:   getBoolOrDefault("BLEND_ENABLED", true),
		BlendForest:    getFloatOrDefault("BLEND_FOREST", 0.3),
		BlendXGBoost:   getFloatOrDefault("BLEND_XGBOOST", 0.5),
		BlendLogReg:    getFloatOrDefault("BLEND_LOGREG", 0.2),
		BlendThreshold: getFloatOrDefault("BLEND_THRESHOLD", 0.5),
		TrackerBaseURL: os.Getenv("TRACKER_BASE_URL"),
		TrackerAPIKey:  os.Getenv("TRACKER_API_KEY"),
		RESTTimeout:    getDurationOrDefault("REST_TIMEOUT", 10*time.Second),
		ServePort:      getIntOrDefault("SERVE_PORT", 8090),
		MetricsPort:    getIntOrDefault("METRICS_PORT", 8080),
	}

	// Validate configuration
	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}

	return settings, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultValue
}

func getFloatOrDefault(key string, defaultValue float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultValue
}

func splitOrDefault(v string, def []string) []string {
	if parts := splitTargets(v); len(parts) > 0 {
		return parts
	}
	return def
}

// splitTargets splits a comma-separated target list, trimming surrounding
// whitespace and dropping empty entries.
func splitTargets(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func defaultString(v, def string) string {
	if v != "" {
		return v
	}
	return def
}

func getTargetsFromEnvOrConfig(configTargets []string) []string {
	if parts := splitTargets(os.Getenv("TARGETS")); len(parts) > 0 {
		return parts
	}
	if len(configTargets) > 0 {
		return configTargets
	}
	return []string{"winner"}
}

func getIntFromEnvOrConfig(key string, configValue, defaultValue int) int {
	if env := os.Getenv(key); env != "" {
		if val, err := strconv.Atoi(env); err == nil {
			return val
		}
	}
	if configValue != 0 {
		return configValue
	}
	return defaultValue
}

func getFloatFromEnvOrConfig(key string, configValue, defaultValue float64) float64 {
	if env := os.Getenv(key); env != "" {
		if val, err := strconv.ParseFloat(env, 64); err == nil {
			return val
		}
	}
	if configValue != 0 {
		return configValue
	}
	return defaultValue
}

func getBoolFromEnvOrConfig(key string, configValue *bool, defaultValue bool) bool {
	if env := os.Getenv(key); env != "" {
		if val, err := strconv.ParseBool(env); err == nil {
			return val
		}
	}
	if configValue != nil {
		return *configValue
	}
	return defaultValue
}

// validateSettings performs comprehensive validation of configuration values
func validateSettings(settings *Settings) error {
	if settings.Sport == "" {
		return fmt.Errorf("sport must be specified")
	}
	if len(settings.Targets) == 0 {
		return fmt.Errorf("at least one prediction target must be specified")
	}
	for _, target := range settings.Targets {
		if target != "winner" && target != "spread" {
			return fmt.Errorf("unknown prediction target %q, want winner or spread", target)
		}
	}

	if settings.TestFraction <= 0 || settings.TestFraction >= 0.5 {
		return fmt.Errorf("test fraction must be between 0 and 0.5, got %f", settings.TestFraction)
	}
	if settings.MinGames < 10 {
		return fmt.Errorf("minimum games must be at least 10, got %d", settings.MinGames)
	}
	if settings.LookbackDays <= 0 || settings.LookbackDays > 3650 {
		return fmt.Errorf("lookback days must be between 1 and 3650, got %d", settings.LookbackDays)
	}
	if settings.CVFolds < 2 || settings.CVFolds > 20 {
		return fmt.Errorf("cross-validation folds must be between 2 and 20, got %d", settings.CVFolds)
	}

	if settings.BlendEnabled {
		sum := settings.BlendForest + settings.BlendXGBoost + settings.BlendLogReg
		if sum <= 0 {
			return fmt.Errorf("blend weights must sum to a positive value, got %f", sum)
		}
		if settings.BlendForest < 0 || settings.BlendXGBoost < 0 || settings.BlendLogReg < 0 {
			return fmt.Errorf("blend weights cannot be negative")
		}
	}
	if settings.BlendThreshold <= 0 || settings.BlendThreshold >= 1 {
		return fmt.Errorf("decision threshold must be between 0 and 1, got %f", settings.BlendThreshold)
	}

	if settings.RESTTimeout < time.Second || settings.RESTTimeout > time.Minute {
		return fmt.Errorf("REST timeout must be between 1s and 1m, got %v", settings.RESTTimeout)
	}
	if settings.ServePort < 1024 || settings.ServePort > 65535 {
		return fmt.Errorf("serve port must be between 1024 and 65535, got %d", settings.ServePort)
	}
	if settings.MetricsPort < 1024 || settings.MetricsPort > 65535 {
		return fmt.Errorf("metrics port must be between 1024 and 65535, got %d", settings.MetricsPort)
	}

	return nil
}
