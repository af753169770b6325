package model

import (
	"time"

	"github.com/google/uuid"
)

// Status represents the lifecycle state of a meeting recording.
type Status string

const (
	StatusRecording            Status = "recording"
	StatusPendingTranscription Status = "pending_transcription"
	StatusTranscribing         Status = "transcribing"
	StatusReady                Status = "ready"
	StatusFailed               Status = "failed"
)

// Valid reports whether s is one of the known lifecycle states.
func (s Status) Valid() bool {
	switch s {
	case StatusRecording, StatusPendingTranscription, StatusTranscribing, StatusReady, StatusFailed:
		return true
	}
	return false
}

// Meeting represents a recorded meeting and its transcription state.
// The pipeline never constructs a Meeting from scratch; it receives one,
// produces an updated copy and hands it back for persistence. AudioPath
// must stay valid and playable regardless of pipeline outcome.
type Meeting struct {
	ID              uuid.UUID  `json:"id"`
	Title           string     `json:"title"`
	AudioPath       string     `json:"audio_path"`
	Status          Status     `json:"status"`
	Transcript      *string    `json:"transcript,omitempty"`
	ErrorMessage    *string    `json:"error_message,omitempty"`
	APICostCents    *int64     `json:"api_cost_cents,omitempty"`
	DurationSeconds *float64   `json:"duration_seconds,omitempty"`
	SpeakerCount    *int       `json:"speaker_count,omitempty"`
	SegmentsJSON    *string    `json:"segments,omitempty"`
	Provider        *string    `json:"provider,omitempty"`
	ModelID         *string    `json:"model_id,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}
