// internal/workers/placement/rank-communities/config.go
package rankcommunities

import (
	"fmt"
	"time"

	"placement-workers/internal/common/config"
)

type Config struct {
	Enabled        bool
	MaxJobsActive  int
	Timeout        time.Duration
	PersistResults bool
}

func DefaultConfig() *Config {
	return &Config{
		Enabled:       true,
		MaxJobsActive: 5,
		Timeout:       120 * time.Second,
	}
}

// LoadConfig reads the workers.rank-communities section and ranking.persist_results.
func LoadConfig(appCfg *config.Config) *Config {
	wcfg := config.GetWorkerConfig(appCfg, TaskType)
	return &Config{
		Enabled:        wcfg.Enabled,
		MaxJobsActive:  wcfg.MaxJobsActive,
		Timeout:        config.GetDuration(wcfg.Timeout),
		PersistResults: appCfg.Ranking.PersistResults,
	}
}

func (c *Config) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.MaxJobsActive <= 0 {
		return fmt.Errorf("max_jobs_active must be positive")
	}
	return nil
}
