package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/timmy/scribe/internal/config"
	"github.com/timmy/scribe/internal/domain"
)

func newTestRepo(t *testing.T) *EventRepository {
	t.Helper()
	db, err := InitDB(&config.DatabaseConfig{
		Driver:       "sqlite",
		Path:         ":memory:",
		MaxOpenConns: 1,
		AutoMigrate:  true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return NewEventRepository(db)
}

func TestEventRepositoryRecordAndList(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	require.NoError(t, repo.Record(ctx, &domain.TranscriptionEvent{TranscriptionID: "a", Stage: domain.StageIngest, Status: domain.StatusProcessing}))
	require.NoError(t, repo.Record(ctx, &domain.TranscriptionEvent{TranscriptionID: "b", Stage: domain.StageIngest, Status: domain.StatusProcessing}))
	require.NoError(t, repo.Record(ctx, &domain.TranscriptionEvent{TranscriptionID: "a", Stage: domain.StageTranscribe, Status: domain.StatusSuccess, DurationMs: 1500}))

	events, err := repo.ListByTranscription(ctx, "a")
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, domain.StageIngest, events[0].Stage)
	assert.Equal(t, domain.StageTranscribe, events[1].Stage)
	assert.Equal(t, int64(1500), events[1].DurationMs)
	assert.False(t, events[0].CreatedAt.IsZero())

	none, err := repo.ListByTranscription(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestEventRepositoryCountByStatus(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	for _, e := range []domain.TranscriptionEvent{
		{TranscriptionID: "a", Stage: domain.StageTranscribe, Status: domain.StatusSuccess},
		{TranscriptionID: "b", Stage: domain.StageTranscribe, Status: domain.StatusError},
		{TranscriptionID: "c", Stage: domain.StageTranscribe, Status: domain.StatusSuccess},
		{TranscriptionID: "c", Stage: domain.StagePolish, Status: domain.StatusSuccess},
	} {
		e := e
		require.NoError(t, repo.Record(ctx, &e))
	}

	counts, err := repo.CountByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), counts[domain.StatusSuccess])
	assert.Equal(t, int64(1), counts[domain.StatusError])
	assert.NotContains(t, counts, domain.StatusProcessing)
}
