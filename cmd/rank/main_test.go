package main

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"placement-workers/internal/common/config"
	"placement-workers/internal/ranking"
)

func TestRun_Offline(t *testing.T) {
	dir := t.TempDir()
	opts := &runOptions{
		configPath: filepath.Join(dir, "missing.yaml"),
		offline:    true,
		outPath:    filepath.Join(dir, "export.json"),
		weights:    map[string]string{"distance": "2"},
		logLevel:   "error",
	}

	require.NoError(t, run(context.Background(), "../../testdata/consultation.json", opts))

	raw, err := os.ReadFile(opts.outPath)
	require.NoError(t, err)

	var exp ranking.Export
	require.NoError(t, json.Unmarshal(raw, &exp))

	require.Len(t, exp.Recommendations, 3)
	assert.Equal(t, 2.0, exp.RankingWeights[config.DimensionDistance])
	assert.Equal(t, "Margaret", exp.ClientInfo.ClientName)
	require.NotNil(t, exp.Performance)
	assert.Equal(t, 3, exp.Performance.CandidateCount)

	for i, rec := range exp.Recommendations {
		assert.Equal(t, i+1, rec.FinalRank)
		assert.Len(t, rec.Rankings, 5)
		assert.Contains(t, rec.Rankings, config.DimensionDistance+"_rank")
		assert.NotContains(t, rec.Rankings, config.DimensionAvailability+"_rank")
		assert.NotEmpty(t, rec.Explanations["holistic_reason"])
		if rec.CommunityID == 101 {
			assert.Equal(t, 0.0, rec.KeyMetrics.DistanceMiles)
		} else {
			assert.Equal(t, 10.0, rec.KeyMetrics.DistanceMiles)
		}
	}
}

func TestRun_MissingFixture(t *testing.T) {
	dir := t.TempDir()
	opts := &runOptions{
		configPath: filepath.Join(dir, "missing.yaml"),
		offline:    true,
		logLevel:   "error",
	}

	err := run(context.Background(), filepath.Join(dir, "nope.json"), opts)
	assert.ErrorContains(t, err, "read fixture")
}

func TestLoadConfig_Strict(t *testing.T) {
	_, err := loadConfig(filepath.Join(t.TempDir(), "missing.yaml"), false)
	assert.Error(t, err)

	cfg, err := loadConfig(filepath.Join(t.TempDir(), "missing.yaml"), true)
	require.NoError(t, err)
	assert.Equal(t, config.DefaultWeights(), cfg.Ranking.Weights)
	assert.Equal(t, "14604", cfg.Geocoding.DefaultZIP)
}

func TestParseWeights(t *testing.T) {
	w, err := parseWeights(map[string]string{"distance": "2.5", "total_cost": "0"})
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"distance": 2.5, "total_cost": 0}, w)

	_, err = parseWeights(map[string]string{"distance": "far"})
	assert.Error(t, err)

	_, err = parseWeights(map[string]string{"distance": "-1"})
	assert.Error(t, err)
}
