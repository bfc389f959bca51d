package domain

import "time"

// EventStage names the pipeline step that produced a TranscriptionEvent.
type EventStage string

const (
	StageIngest     EventStage = "ingest"
	StageTranscribe EventStage = "transcribe"
	StagePolish     EventStage = "polish"
	StageRegenerate EventStage = "regenerate"
	StageDelete     EventStage = "delete"
)

// TranscriptionEvent is an audit entry for one pipeline transition.
// Events are informational; the job record file stays authoritative.
type TranscriptionEvent struct {
	ID              uint                `gorm:"primaryKey;autoIncrement" json:"id"`
	TranscriptionID string              `gorm:"type:text;not null;index:idx_events_transcription" json:"transcription_id"`
	Stage           EventStage          `gorm:"type:text;not null" json:"stage"`
	Status          TranscriptionStatus `gorm:"type:text" json:"status"`
	Detail          string              `gorm:"type:text" json:"detail,omitempty"`
	DurationMs      int64               `json:"duration_ms"`
	CreatedAt       time.Time           `gorm:"index" json:"created_at"`
}

// TableName returns the database table name for TranscriptionEvent.
func (TranscriptionEvent) TableName() string {
	return "transcription_events"
}
