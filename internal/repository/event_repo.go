package repository

import (
	"context"

	"github.com/timmy/scribe/internal/domain"
	"gorm.io/gorm"
)

// EventRepository stores pipeline transition events.
type EventRepository struct {
	db *gorm.DB
}

// NewEventRepository creates a new EventRepository.
// Parameters:
//   - db: GORM database handle used for queries.
//
// Returns:
//   - *EventRepository: repository instance bound to db.
func NewEventRepository(db *gorm.DB) *EventRepository {
	return &EventRepository{db: db}
}

// Record inserts one event.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - event: event to persist; ID and CreatedAt are filled in by the database layer.
//
// Returns:
//   - error: non-nil if the insert fails.
func (r *EventRepository) Record(ctx context.Context, event *domain.TranscriptionEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}

// ListByTranscription returns the events for one transcription, oldest first.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - transcriptionID: job record id.
//
// Returns:
//   - []domain.TranscriptionEvent: events in insertion order (empty if none).
//   - error: non-nil if the query fails.
func (r *EventRepository) ListByTranscription(ctx context.Context, transcriptionID string) ([]domain.TranscriptionEvent, error) {
	events := []domain.TranscriptionEvent{}
	if err := r.db.WithContext(ctx).
		Where("transcription_id = ?", transcriptionID).
		Order("created_at ASC, id ASC").
		Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}

// CountByStatus returns how many transcribe events ended in each status.
func (r *EventRepository) CountByStatus(ctx context.Context) (map[domain.TranscriptionStatus]int64, error) {
	var rows []struct {
		Status domain.TranscriptionStatus
		Count  int64
	}
	if err := r.db.WithContext(ctx).Model(&domain.TranscriptionEvent{}).
		Select("status, COUNT(*) AS count").
		Where("stage = ?", domain.StageTranscribe).
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	counts := make(map[domain.TranscriptionStatus]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}
