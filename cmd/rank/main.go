// cmd/rank/main.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"placement-workers/internal/common/config"
	"placement-workers/internal/common/database"
	"placement-workers/internal/common/logger"
	"placement-workers/internal/genai"
	"placement-workers/internal/geo"
	"placement-workers/internal/ranking"
	"placement-workers/internal/store"

	rc "placement-workers/internal/workers/placement/rank-communities"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "rank",
		Short: "Placement community ranking",
		Long:  `Ranks senior-living communities for a client requirement outside the workflow engine`,
	}

	rootCmd.AddCommand(createRunCmd())
	rootCmd.AddCommand(createWeightsCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type runOptions struct {
	configPath string
	offline    bool
	persist    bool
	outPath    string
	weights    map[string]string
	logLevel   string
}

// createRunCmd ranks a fixture file shaped like the rank-communities job variables.
func createRunCmd() *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run [fixture.json]",
		Short: "Rank the communities in a fixture file and print the export",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), args[0], opts)
		},
	}

	cmd.Flags().StringVar(&opts.configPath, "config", "", "config file (default: ./configs/config.yaml)")
	cmd.Flags().BoolVar(&opts.offline, "offline", false, "rule dimensions only, with ZIP-prefix distance estimates")
	cmd.Flags().BoolVar(&opts.persist, "persist", false, "save the export to PostgreSQL")
	cmd.Flags().StringVarP(&opts.outPath, "out", "o", "", "write the export to a file instead of stdout")
	cmd.Flags().StringToStringVar(&opts.weights, "weight", nil, "dimension weight override, e.g. --weight distance=2")
	cmd.Flags().StringVar(&opts.logLevel, "log-level", "warn", "debug, info, warn or error")

	return cmd
}

func createWeightsCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "weights",
		Short: "Print the effective dimension weights",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath, true)
			if err != nil {
				return err
			}
			names := make([]string, 0, len(cfg.Ranking.Weights))
			for name := range cfg.Ranking.Weights {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				fmt.Printf("%-22s %.2f\n", name, cfg.Ranking.Weights[name])
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "config file (default: ./configs/config.yaml)")

	return cmd
}

func run(ctx context.Context, fixturePath string, opts *runOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	log := logger.NewStructured(opts.logLevel, "console")

	cfg, err := loadConfig(opts.configPath, opts.offline && !opts.persist)
	if err != nil {
		return err
	}

	input, err := readFixture(fixturePath)
	if err != nil {
		return err
	}

	overrides, err := parseWeights(opts.weights)
	if err != nil {
		return err
	}
	for name, w := range input.Weights {
		if _, ok := overrides[name]; !ok {
			overrides[name] = w
		}
	}

	engine := buildEngine(cfg, opts.offline, log)
	if len(overrides) > 0 {
		engine = engine.WithWeights(overrides)
	}

	start := time.Now()
	pass, err := engine.Run(ctx, input.Communities, input.ClientRequirement)
	if err != nil {
		return fmt.Errorf("ranking aborted: %w", err)
	}
	log.Info("ranking finished", map[string]interface{}{
		"candidates": pass.CandidateCount,
		"returned":   len(pass.Rankings),
		"durationMs": time.Since(start).Milliseconds(),
	})

	exp := engine.Export(pass.Rankings, input.ClientRequirement)
	exp.Performance = pass.Performance()

	if opts.persist {
		pg, err := database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		defer pg.Close()

		s := store.New(pg, log)
		if err := s.Migrate(ctx); err != nil {
			return err
		}
		id, err := s.SaveExport(ctx, exp)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "saved consultation %s\n", id)
	}

	out, err := json.MarshalIndent(exp, "", "  ")
	if err != nil {
		return fmt.Errorf("encode export: %w", err)
	}
	if opts.outPath == "" {
		fmt.Println(string(out))
		return nil
	}
	return os.WriteFile(opts.outPath, append(out, '\n'), 0o644)
}

// loadConfig reads the config file. When lenient is set a missing or incomplete file
// falls back to the built-in ranking defaults.
func loadConfig(path string, lenient bool) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if path != "" {
		cfg, err = config.LoadFromFile(path)
	} else {
		cfg, err = config.Load()
	}
	if err == nil {
		return cfg, nil
	}
	if !lenient {
		return nil, err
	}

	return &config.Config{
		Ranking: config.RankingConfig{
			Weights:    config.DefaultWeights(),
			Tolerances: config.DefaultTolerances(),
		},
		Geocoding: config.GeocodingConfig{DefaultZIP: geo.DefaultZIP},
	}, nil
}

func readFixture(path string) (*rc.Input, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture: %w", err)
	}
	var input rc.Input
	if err := json.Unmarshal(raw, &input); err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	return &input, nil
}

func parseWeights(raw map[string]string) (map[string]float64, error) {
	weights := make(map[string]float64, len(raw))
	for name, value := range raw {
		w, err := strconv.ParseFloat(value, 64)
		if err != nil || w < 0 {
			return nil, fmt.Errorf("invalid weight %s=%q", name, value)
		}
		weights[name] = w
	}
	return weights, nil
}

// prefixDistance estimates miles from ZIP prefixes without calling the geocoder.
type prefixDistance struct{}

func (prefixDistance) Distance(_ context.Context, zip1, zip2 string) (float64, error) {
	return geo.EstimateZIPDistance(zip1, zip2), nil
}

func buildEngine(cfg *config.Config, offline bool, log logger.Logger) *ranking.Engine {
	tol := cfg.Ranking.Tolerances
	opts := ranking.OptionsFromConfig(cfg.Ranking)

	if offline {
		deps := ranking.Dependencies{
			Distance:  prefixDistance{},
			Locations: geo.NewResolver(nil, cfg.Geocoding.DefaultZIP, log),
		}
		dims := ranking.StandardDimensions(deps, tol, log)
		return ranking.NewEngine(ranking.Dimensions{Rules: dims.Rules}, opts, log)
	}

	geocoder := geo.NewGeocoder(&geo.GeocoderConfig{
		BaseURL:   cfg.Geocoding.BaseURL,
		UserAgent: cfg.Geocoding.UserAgent,
		RPS:       cfg.Geocoding.RPS,
		CacheTTL:  time.Duration(cfg.Geocoding.CacheTTL) * time.Second,
		Timeout:   config.GetDuration(cfg.Geocoding.Timeout),
	}, nil, log)

	deps := ranking.Dependencies{
		Distance:  geocoder,
		Locations: geo.NewResolver(geocoder, cfg.Geocoding.DefaultZIP, log),
		Inference: genai.NewClient(&genai.Config{
			BaseURL:     cfg.GenAI.BaseURL,
			APIKey:      cfg.GenAI.APIKey,
			Model:       cfg.GenAI.Model,
			Temperature: cfg.GenAI.Temperature,
			Timeout:     config.GetDuration(cfg.GenAI.Timeout),
		}, log),
		Retry: ranking.RetryPolicy{
			MaxAttempts: cfg.GenAI.MaxRetries,
			BackoffBase: config.GetDuration(cfg.GenAI.BackoffBase),
		},
	}
	return ranking.NewEngine(ranking.StandardDimensions(deps, tol, log), opts, log)
}
