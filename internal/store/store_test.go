// internal/store/store_test.go
package store

import (
	"context"
	stderrors "errors"
	"testing"

	"placement-workers/internal/common/database"
	"placement-workers/internal/common/errors"
	"placement-workers/internal/common/logger"
	"placement-workers/internal/ranking"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestExport() *ranking.Export {
	return &ranking.Export{
		ClientInfo: ranking.ClientInfo{
			ClientName:         "R. Alvarez",
			CareLevel:          "assisted",
			Budget:             5000,
			Timeline:           "immediate",
			LocationPreference: "Rochester",
			SpecialNeeds:       map[string]any{"pets": true},
			ProcessedDate:      "2026-03-14T14:30:00Z",
		},
		RankingWeights: map[string]float64{"distance": 2},
		Recommendations: []ranking.Recommendation{
			{FinalRank: 1, CommunityID: 7, CommunityName: "Maple Court", CombinedRankScore: 6.33},
			{FinalRank: 2, CommunityID: 3, CommunityName: "Elm House", CombinedRankScore: 9},
		},
		Summary: ranking.Summary{
			TotalMatches:      2,
			AvgMonthlyFee:     4000,
			AvgDistanceMiles:  7.55,
			TopRecommendation: "Maple Court",
		},
		Performance: &ranking.Performance{
			CandidateCount:   14,
			ShortlistCount:   10,
			PhaseDurationsMs: map[string]int64{"rule": 40},
			TotalDurationMs:  2600,
			Fallbacks:        []string{"distance"},
		},
	}
}

func newTestStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return New(&database.PostgresClient{DB: db}, logger.NewTestLogger(t)), mock
}

func TestStore_SaveExport(t *testing.T) {
	s, mock := newTestStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO consultations`).
		WithArgs(
			sqlmock.AnyArg(), // consultation ID
			"R. Alvarez",
			"assisted",
			5000.0,
			"immediate",
			"Rochester",
			[]byte(`{"pets":true}`),
			[]byte(`{"distance":2}`),
			2,
			4000.0,
			7.55,
			"Maple Court",
			"",
			sqlmock.AnyArg(), // processed_at
		).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO recommendations`).
		WithArgs(sqlmock.AnyArg(), 1, 7, "Maple Court", 6.33, sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO recommendations`).
		WithArgs(sqlmock.AnyArg(), 2, 3, "Elm House", 9.0, sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO ranking_performance`).
		WithArgs(sqlmock.AnyArg(), 14, 10, []byte(`{"rule":40}`), 2600, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	id, err := s.SaveExport(context.Background(), createTestExport())

	require.NoError(t, err)
	_, err = uuid.Parse(id)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_SaveExport_WithoutPerformance(t *testing.T) {
	s, mock := newTestStore(t)
	exp := createTestExport()
	exp.Performance = nil
	exp.Recommendations = exp.Recommendations[:1]

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO consultations`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO recommendations`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	_, err := s.SaveExport(context.Background(), exp)

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_SaveExport_RollsBackOnFailure(t *testing.T) {
	s, mock := newTestStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO consultations`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO recommendations`).WillReturnError(stderrors.New("connection reset"))
	mock.ExpectRollback()

	id, err := s.SaveExport(context.Background(), createTestExport())

	require.Error(t, err)
	assert.Empty(t, id)
	assert.Equal(t, errors.ErrCodeDatabaseInsertFailed, errors.CodeOf(err))
	assert.True(t, errors.IsRetryable(err))
	assert.Contains(t, err.Error(), "Failed to persist ranking results")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_SaveExport_BeginFails(t *testing.T) {
	s, mock := newTestStore(t)

	mock.ExpectBegin().WillReturnError(stderrors.New("too many connections"))

	_, err := s.SaveExport(context.Background(), createTestExport())

	assert.Equal(t, errors.ErrCodeDatabaseInsertFailed, errors.CodeOf(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_Migrate(t *testing.T) {
	s, mock := newTestStore(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS consultations`).WillReturnResult(sqlmock.NewResult(0, 0))
	require.NoError(t, s.Migrate(context.Background()))

	mock.ExpectExec(`CREATE TABLE`).WillReturnError(stderrors.New("permission denied"))
	err := s.Migrate(context.Background())
	assert.Equal(t, errors.ErrCodeDatabaseConnectionFailed, errors.CodeOf(err))

	assert.NoError(t, mock.ExpectationsWereMet())
}
