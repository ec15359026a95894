// internal/common/config/loader.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

func Load() (*Config, error) {
	loadEnvFile()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath("../../configs")
	v.AddConfigPath(".")

	// ENV override like GENAI_API_KEY for genai.api_key
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	v.SetConfigName(fmt.Sprintf("config.%s", env))
	_ = v.MergeInConfig() // optional per-environment overlay

	return finish(v)
}

// LoadFromFile loads configuration from a specific file path
func LoadFromFile(path string) (*Config, error) {
	loadEnvFile()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return finish(v)
}

func finish(v *viper.Viper) (*Config, error) {
	expandEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	overrideEmptyConfig(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// loadEnvFile loads .env from the working directory, its parents, or the module root.
func loadEnvFile() {
	possiblePaths := []string{
		".env",
		"../.env",
		"../../.env",
		"../../../.env",
	}

	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}

// expandEnvVars resolves ${VAR} placeholders in string values.
func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		strVal, ok := v.Get(key).(string)
		if !ok {
			continue
		}
		if strings.Contains(strVal, "${") || (strings.HasPrefix(strVal, "$") && len(strVal) > 1) {
			expanded := os.ExpandEnv(strVal)
			if expanded != strVal && expanded != "" {
				v.Set(key, expanded)
			}
		}
	}
}

// overrideEmptyConfig fills secrets from well-known env names when the file left them empty.
func overrideEmptyConfig(cfg *Config) {
	if cfg.GenAI.APIKey == "" {
		if val := os.Getenv("GENAI_API_KEY"); val != "" {
			cfg.GenAI.APIKey = val
		}
	}
	if cfg.Database.Postgres.User == "" {
		if val := os.Getenv("DB_USER"); val != "" {
			cfg.Database.Postgres.User = val
		}
	}
	if cfg.Database.Postgres.Password == "" {
		if val := os.Getenv("DB_PASSWORD"); val != "" {
			cfg.Database.Postgres.Password = val
		}
	}
}

// Dimension names used as keys under ranking.weights and ranking.tolerances.
const (
	DimensionBusinessValue  = "business_value"
	DimensionTotalCost      = "total_cost"
	DimensionDistance       = "distance"
	DimensionBudget         = "budget_efficiency"
	DimensionSecondOccupant = "couple_friendliness"
	DimensionAvailability   = "availability"
	DimensionAmenity        = "amenity_lifestyle"
	DimensionHolistic       = "holistic_fit"
)

// DefaultTolerances are the tie tolerances of the rule-based dimensions.
func DefaultTolerances() map[string]float64 {
	return map[string]float64{
		DimensionBusinessValue:  0,
		DimensionTotalCost:      0.01,
		DimensionDistance:       0.1,
		DimensionBudget:         1.0,
		DimensionSecondOccupant: 10,
	}
}

// DefaultWeights gives every dimension weight 1.0.
func DefaultWeights() map[string]float64 {
	return map[string]float64{
		DimensionBusinessValue:  1.0,
		DimensionTotalCost:      1.0,
		DimensionDistance:       1.0,
		DimensionBudget:         1.0,
		DimensionSecondOccupant: 1.0,
		DimensionAvailability:   1.0,
		DimensionAmenity:        1.0,
		DimensionHolistic:       1.0,
	}
}

// applyDefaults sets default values for optional configuration fields
func applyDefaults(cfg *Config) {
	if cfg.Camunda.MaxJobsActive == 0 {
		cfg.Camunda.MaxJobsActive = 10
	}
	if cfg.Camunda.Timeout == 0 {
		cfg.Camunda.Timeout = 30000
	}
	if cfg.Camunda.RequestTimeout == 0 {
		cfg.Camunda.RequestTimeout = 30000
	}

	if cfg.Database.Postgres.MaxConnections == 0 {
		cfg.Database.Postgres.MaxConnections = 25
	}
	if cfg.Database.Postgres.MaxIdle == 0 {
		cfg.Database.Postgres.MaxIdle = 5
	}
	if cfg.Database.Postgres.SSLMode == "" {
		cfg.Database.Postgres.SSLMode = "disable"
	}

	if cfg.GenAI.Timeout == 0 {
		cfg.GenAI.Timeout = 60000
	}
	if cfg.GenAI.MaxRetries == 0 {
		cfg.GenAI.MaxRetries = 3
	}
	if cfg.GenAI.BackoffBase == 0 {
		cfg.GenAI.BackoffBase = 2000
	}
	if cfg.GenAI.Model == "" {
		cfg.GenAI.Model = "gemini-2.5-flash"
	}

	if cfg.Geocoding.BaseURL == "" {
		cfg.Geocoding.BaseURL = "https://nominatim.openstreetmap.org"
	}
	if cfg.Geocoding.UserAgent == "" {
		cfg.Geocoding.UserAgent = "placement-workers"
	}
	if cfg.Geocoding.RPS == 0 {
		cfg.Geocoding.RPS = 1
	}
	if cfg.Geocoding.CacheTTL == 0 {
		cfg.Geocoding.CacheTTL = 30 * 24 * 3600
	}
	if cfg.Geocoding.DefaultZIP == "" {
		cfg.Geocoding.DefaultZIP = "14604"
	}
	if cfg.Geocoding.Timeout == 0 {
		cfg.Geocoding.Timeout = 10000
	}

	if cfg.Ranking.Weights == nil {
		cfg.Ranking.Weights = make(map[string]float64)
	}
	for name, w := range DefaultWeights() {
		if _, ok := cfg.Ranking.Weights[name]; !ok {
			cfg.Ranking.Weights[name] = w
		}
	}
	if cfg.Ranking.Tolerances == nil {
		cfg.Ranking.Tolerances = make(map[string]float64)
	}
	for name, tol := range DefaultTolerances() {
		if _, ok := cfg.Ranking.Tolerances[name]; !ok {
			cfg.Ranking.Tolerances[name] = tol
		}
	}
	if cfg.Ranking.PrefilterSize == 0 {
		cfg.Ranking.PrefilterSize = 10
	}
	if cfg.Ranking.OutputSize == 0 {
		cfg.Ranking.OutputSize = 5
	}
	if cfg.Ranking.RuleParallelism == 0 {
		cfg.Ranking.RuleParallelism = 5
	}
	if cfg.Ranking.InferenceParallelism == 0 {
		cfg.Ranking.InferenceParallelism = 2
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}

	if cfg.Metrics.Address == "" {
		cfg.Metrics.Address = ":9090"
	}

	for key, worker := range cfg.Workers {
		if worker.MaxJobsActive == 0 {
			worker.MaxJobsActive = 5
		}
		if worker.Timeout == 0 {
			worker.Timeout = 120000
		}
		if worker.MaxRetries == 0 {
			worker.MaxRetries = 3
		}
		cfg.Workers[key] = worker
	}
}

// validateConfig validates critical configuration fields
func validateConfig(cfg *Config) error {
	if cfg.Camunda.BrokerAddress == "" {
		return fmt.Errorf("camunda.broker_address is required")
	}
	if cfg.GenAI.BaseURL == "" {
		return fmt.Errorf("genai.base_url is required")
	}
	if cfg.Ranking.OutputSize > cfg.Ranking.PrefilterSize {
		return fmt.Errorf("ranking.output_size (%d) must not exceed ranking.prefilter_size (%d)",
			cfg.Ranking.OutputSize, cfg.Ranking.PrefilterSize)
	}
	for name, w := range cfg.Ranking.Weights {
		if w < 0 {
			return fmt.Errorf("ranking.weights.%s must not be negative", name)
		}
	}
	if cfg.Ranking.PersistResults {
		if cfg.Database.Postgres.Host == "" {
			return fmt.Errorf("database.postgres.host is required when ranking.persist_results is set")
		}
		if cfg.Database.Postgres.Database == "" {
			return fmt.Errorf("database.postgres.database is required when ranking.persist_results is set")
		}
	}
	return nil
}

// GetDuration converts milliseconds from config to time.Duration
func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}

// GetWorkerConfig retrieves worker-specific configuration with fallback to defaults
func GetWorkerConfig(cfg *Config, workerName string) WorkerConfig {
	if worker, exists := cfg.Workers[workerName]; exists {
		return worker
	}

	return WorkerConfig{
		Enabled:       true,
		MaxJobsActive: 5,
		Timeout:       120000,
		MaxRetries:    3,
	}
}

// IsWorkerEnabled checks if a specific worker is enabled
func IsWorkerEnabled(cfg *Config, workerName string) bool {
	if worker, exists := cfg.Workers[workerName]; exists {
		return worker.Enabled
	}
	return true
}
