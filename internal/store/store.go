// internal/store/store.go
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"placement-workers/internal/common/database"
	"placement-workers/internal/common/errors"
	"placement-workers/internal/common/logger"
	"placement-workers/internal/ranking"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Schema creates the tables SaveExport writes to.
const Schema = `
CREATE TABLE IF NOT EXISTS consultations (
	id                  UUID PRIMARY KEY,
	client_name         TEXT NOT NULL,
	care_level          TEXT,
	budget              NUMERIC,
	timeline            TEXT,
	location_preference TEXT,
	special_needs       JSONB,
	ranking_weights     JSONB,
	total_matches       INTEGER NOT NULL,
	avg_monthly_fee     NUMERIC,
	avg_distance_miles  NUMERIC,
	top_recommendation  TEXT,
	summary_message     TEXT,
	processed_at        TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS recommendations (
	consultation_id     UUID NOT NULL REFERENCES consultations(id) ON DELETE CASCADE,
	final_rank          INTEGER NOT NULL,
	community_id        INTEGER NOT NULL,
	community_name      TEXT,
	combined_rank_score NUMERIC NOT NULL,
	key_metrics         JSONB,
	rankings            JSONB,
	explanations        JSONB,
	PRIMARY KEY (consultation_id, final_rank)
);

CREATE TABLE IF NOT EXISTS ranking_performance (
	consultation_id     UUID PRIMARY KEY REFERENCES consultations(id) ON DELETE CASCADE,
	candidate_count     INTEGER NOT NULL,
	shortlist_count     INTEGER NOT NULL,
	phase_durations_ms  JSONB,
	total_duration_ms   BIGINT NOT NULL,
	fallback_dimensions TEXT[]
);
`

// Store persists ranking exports for CRM reporting.
type Store struct {
	db     *database.PostgresClient
	logger logger.Logger
}

func New(db *database.PostgresClient, log logger.Logger) *Store {
	return &Store{
		db:     db,
		logger: log.WithFields(map[string]interface{}{"component": "ranking-store"}),
	}
}

// Migrate creates missing tables.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.DB.ExecContext(ctx, Schema); err != nil {
		return errors.NewDatabaseConnectionError(fmt.Errorf("apply schema: %w", err))
	}
	return nil
}

// SaveExport writes one consultation with its recommendations and, when present, its
// performance report in a single transaction. It returns the new consultation ID.
func (s *Store) SaveExport(ctx context.Context, exp *ranking.Export) (string, error) {
	consultationID := uuid.New().String()

	processedAt, err := time.Parse(time.RFC3339, exp.ClientInfo.ProcessedDate)
	if err != nil {
		processedAt = time.Now().UTC()
	}

	err = s.db.InTx(ctx, func(tx *sql.Tx) error {
		if err := insertConsultation(ctx, tx, consultationID, exp, processedAt); err != nil {
			return err
		}
		for _, rec := range exp.Recommendations {
			if err := insertRecommendation(ctx, tx, consultationID, rec); err != nil {
				return err
			}
		}
		if exp.Performance != nil {
			return insertPerformance(ctx, tx, consultationID, exp.Performance)
		}
		return nil
	})
	if err != nil {
		return "", errors.NewDatabaseInsertError(err)
	}

	s.logger.Info("ranking export saved", map[string]interface{}{
		"consultationId":  consultationID,
		"recommendations": len(exp.Recommendations),
	})
	return consultationID, nil
}

func insertConsultation(ctx context.Context, tx *sql.Tx, id string, exp *ranking.Export, processedAt time.Time) error {
	specialNeeds, err := jsonb(exp.ClientInfo.SpecialNeeds)
	if err != nil {
		return err
	}
	weights, err := jsonb(exp.RankingWeights)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO consultations (
			id, client_name, care_level, budget, timeline, location_preference,
			special_needs, ranking_weights, total_matches, avg_monthly_fee,
			avg_distance_miles, top_recommendation, summary_message, processed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		id,
		exp.ClientInfo.ClientName,
		exp.ClientInfo.CareLevel,
		exp.ClientInfo.Budget,
		string(exp.ClientInfo.Timeline),
		exp.ClientInfo.LocationPreference,
		specialNeeds,
		weights,
		exp.Summary.TotalMatches,
		exp.Summary.AvgMonthlyFee,
		exp.Summary.AvgDistanceMiles,
		exp.Summary.TopRecommendation,
		exp.Summary.Message,
		processedAt,
	)
	if err != nil {
		return fmt.Errorf("insert consultation: %w", err)
	}
	return nil
}

func insertRecommendation(ctx context.Context, tx *sql.Tx, consultationID string, rec ranking.Recommendation) error {
	metrics, err := jsonb(rec.KeyMetrics)
	if err != nil {
		return err
	}
	rankings, err := jsonb(rec.Rankings)
	if err != nil {
		return err
	}
	explanations, err := jsonb(rec.Explanations)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO recommendations (
			consultation_id, final_rank, community_id, community_name,
			combined_rank_score, key_metrics, rankings, explanations
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		consultationID,
		rec.FinalRank,
		rec.CommunityID,
		rec.CommunityName,
		rec.CombinedRankScore,
		metrics,
		rankings,
		explanations,
	)
	if err != nil {
		return fmt.Errorf("insert recommendation %d: %w", rec.FinalRank, err)
	}
	return nil
}

func insertPerformance(ctx context.Context, tx *sql.Tx, consultationID string, perf *ranking.Performance) error {
	phases, err := jsonb(perf.PhaseDurationsMs)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO ranking_performance (
			consultation_id, candidate_count, shortlist_count,
			phase_durations_ms, total_duration_ms, fallback_dimensions
		) VALUES ($1, $2, $3, $4, $5, $6)`,
		consultationID,
		perf.CandidateCount,
		perf.ShortlistCount,
		phases,
		perf.TotalDurationMs,
		pq.Array(perf.Fallbacks),
	)
	if err != nil {
		return fmt.Errorf("insert performance: %w", err)
	}
	return nil
}

// jsonb encodes v for a JSONB column.
func jsonb(v interface{}) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode jsonb: %w", err)
	}
	return b, nil
}
