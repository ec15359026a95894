// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App       AppConfig               `mapstructure:"app"`
	Camunda   CamundaConfig           `mapstructure:"camunda"`
	Database  DatabaseConfig          `mapstructure:"database"`
	GenAI     GenAIConfig             `mapstructure:"genai"`
	Geocoding GeocodingConfig         `mapstructure:"geocoding"`
	Ranking   RankingConfig           `mapstructure:"ranking"`
	Workers   map[string]WorkerConfig `mapstructure:"workers"`
	Logging   LoggingConfig           `mapstructure:"logging"`
	Metrics   MetricsConfig           `mapstructure:"metrics"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type CamundaConfig struct {
	BrokerAddress  string `mapstructure:"broker_address"`
	MaxJobsActive  int    `mapstructure:"max_jobs_active"`
	Timeout        int    `mapstructure:"timeout"`         // milliseconds
	RequestTimeout int    `mapstructure:"request_timeout"` // milliseconds
}

type DatabaseConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// WorkerConfig holds the core settings applicable to every worker.
type WorkerConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxJobsActive int  `mapstructure:"max_jobs_active"`
	Timeout       int  `mapstructure:"timeout"`     // milliseconds
	MaxRetries    int  `mapstructure:"max_retries"` // For error handling
}

// --- Ranking Configuration ---

// GenAIConfig configures the inference service used by the AI-backed dimensions.
type GenAIConfig struct {
	BaseURL     string  `mapstructure:"base_url"`
	APIKey      string  `mapstructure:"api_key"`
	Model       string  `mapstructure:"model"`
	Temperature float64 `mapstructure:"temperature"`
	Timeout     int     `mapstructure:"timeout"` // milliseconds
	MaxRetries  int     `mapstructure:"max_retries"`
	BackoffBase int     `mapstructure:"backoff_base"` // milliseconds
}

// GeocodingConfig configures ZIP code geocoding for the distance dimension.
type GeocodingConfig struct {
	BaseURL    string  `mapstructure:"base_url"`
	UserAgent  string  `mapstructure:"user_agent"`
	RPS        float64 `mapstructure:"rps"`
	CacheTTL   int     `mapstructure:"cache_ttl"` // seconds
	DefaultZIP string  `mapstructure:"default_zip"`
	Timeout    int     `mapstructure:"timeout"` // milliseconds
}

// RankingConfig holds weights, tie tolerances and pool sizes for the engine.
type RankingConfig struct {
	Weights              map[string]float64 `mapstructure:"weights"`
	Tolerances           map[string]float64 `mapstructure:"tolerances"`
	PrefilterSize        int                `mapstructure:"prefilter_size"`
	OutputSize           int                `mapstructure:"output_size"`
	RuleParallelism      int                `mapstructure:"rule_parallelism"`
	InferenceParallelism int                `mapstructure:"inference_parallelism"`
	PersistResults       bool               `mapstructure:"persist_results"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Address string `mapstructure:"address"`
}
