// cmd/worker-manager/main.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"placement-workers/internal/common/camunda"
	"placement-workers/internal/common/config"
	"placement-workers/internal/common/database"
	"placement-workers/internal/common/logger"
	"placement-workers/internal/common/observability"
	"placement-workers/internal/genai"
	"placement-workers/internal/geo"
	"placement-workers/internal/ranking"
	"placement-workers/internal/store"

	rc "placement-workers/internal/workers/placement/rank-communities"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()

	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting worker manager...",
		zap.String("environment", cfg.App.Environment),
		zap.String("version", cfg.App.Version),
	)

	obs := observability.New("placement-workers")
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Zeebe ---
	var zeebe *camunda.Client
	err = retryWithBackoff(func() error {
		var err error
		zeebe, err = camunda.NewClientWithConfig(&camunda.ClientConfig{
			GatewayAddress:         cfg.Camunda.BrokerAddress,
			UsePlaintextConnection: true,
			RequestTimeout:         config.GetDuration(cfg.Camunda.RequestTimeout),
		})
		return err
	}, 10, 2*time.Second, zapLog, "Zeebe client initialization")
	if err != nil {
		zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
	}
	defer zeebe.Close()
	zapLog.Info("Zeebe client connected successfully")

	// --- Redis (geocode cache, optional) ---
	var geoCache geo.Cache
	if cfg.Database.Redis.Address != "" {
		var redis *database.RedisClient
		err = retryWithBackoff(func() error {
			var err error
			redis, err = database.NewRedis(cfg.Database.Redis)
			if err != nil {
				return err
			}
			return redis.Ping(ctx)
		}, 10, 2*time.Second, zapLog, "Redis connection")
		if err != nil {
			zapLog.Fatal("redis failed after retries", zap.Error(err))
		}
		defer redis.Close()
		geoCache = redis
		zapLog.Info("Redis connected successfully")
	} else {
		zapLog.Warn("database.redis.address not set, geocode results are cached in memory only")
	}

	// --- PostgreSQL (ranking exports, optional) ---
	var exportStore rc.ExportSaver
	if cfg.Ranking.PersistResults {
		var pg *database.PostgresClient
		err = retryWithBackoff(func() error {
			var err error
			pg, err = database.NewPostgres(cfg.Database.Postgres)
			if err != nil {
				return err
			}
			return pg.Ping(ctx)
		}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
		if err != nil {
			zapLog.Fatal("postgres failed after retries", zap.Error(err))
		}
		defer pg.Close()

		s := store.New(pg, log)
		if err := s.Migrate(ctx); err != nil {
			zapLog.Fatal("postgres schema migration failed", zap.Error(err))
		}
		exportStore = s
		zapLog.Info("PostgreSQL connected successfully")
	}

	// --- Ranking engine ---
	engine := buildEngine(cfg, geoCache, log)
	zapLog.Info("Ranking engine ready",
		zap.Int("prefilterSize", cfg.Ranking.PrefilterSize),
		zap.Int("outputSize", cfg.Ranking.OutputSize),
		zap.Any("weights", engine.Weights()),
	)

	// --- Workers ---
	var workers []*camunda.CamundaWorker

	if config.IsWorkerEnabled(cfg, rc.TaskType) {
		handler, err := rc.NewHandler(rc.HandlerOptions{
			Config:        rc.LoadConfig(cfg),
			Engine:        engine,
			Store:         exportStore,
			Observability: obs,
			Logger:        log,
		})
		if err != nil {
			zapLog.Fatal("failed to create rank-communities handler", zap.Error(err))
		}
		wcfg := config.GetWorkerConfig(cfg, rc.TaskType)
		workers = append(workers, camunda.StartWorker(zeebe.GetClient(), rc.TaskType, wcfg, handler, zapLog))
	}
	zapLog.Info("Workers registered", zap.Int("count", len(workers)))

	srv := startHealthServer(cfg, zeebe, zapLog)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping workers...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, w := range workers {
		w.Stop()
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error stopping health server", zap.Error(err))
	}

	zapLog.Info("Worker manager stopped gracefully")
}

// buildEngine wires the geocoder, location resolver and inference client into the
// standard dimensions.
func buildEngine(cfg *config.Config, cache geo.Cache, log logger.Logger) *ranking.Engine {
	geocoder := geo.NewGeocoder(&geo.GeocoderConfig{
		BaseURL:   cfg.Geocoding.BaseURL,
		UserAgent: cfg.Geocoding.UserAgent,
		RPS:       cfg.Geocoding.RPS,
		CacheTTL:  time.Duration(cfg.Geocoding.CacheTTL) * time.Second,
		Timeout:   config.GetDuration(cfg.Geocoding.Timeout),
	}, cache, log)

	inference := genai.NewClient(&genai.Config{
		BaseURL:     cfg.GenAI.BaseURL,
		APIKey:      cfg.GenAI.APIKey,
		Model:       cfg.GenAI.Model,
		Temperature: cfg.GenAI.Temperature,
		Timeout:     config.GetDuration(cfg.GenAI.Timeout),
	}, log)

	deps := ranking.Dependencies{
		Distance:  geocoder,
		Locations: geo.NewResolver(geocoder, cfg.Geocoding.DefaultZIP, log),
		Inference: inference,
		Retry: ranking.RetryPolicy{
			MaxAttempts: cfg.GenAI.MaxRetries,
			BackoffBase: config.GetDuration(cfg.GenAI.BackoffBase),
		},
	}

	dims := ranking.StandardDimensions(deps, cfg.Ranking.Tolerances, log)
	return ranking.NewEngine(dims, ranking.OptionsFromConfig(cfg.Ranking), log)
}

func startHealthServer(cfg *config.Config, zeebe *camunda.Client, log *zap.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		status, code := "ready", http.StatusOK
		if err := zeebe.HealthCheck(r.Context()); err != nil {
			status, code = "unavailable", http.StatusServiceUnavailable
		}
		w.WriteHeader(code)
		json.NewEncoder(w).Encode(map[string]string{
			"status": status,
			"time":   time.Now().Format(time.RFC3339),
		})
	})
	if cfg.Metrics.Enabled {
		mux.Handle("/metrics", promhttp.Handler())
	}
	mux.Handle("/debug/pprof/", http.DefaultServeMux)

	srv := &http.Server{Addr: cfg.Metrics.Address, Handler: mux}
	go func() {
		log.Info("Health/Metrics server listening", zap.String("address", cfg.Metrics.Address))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()
	return srv
}
