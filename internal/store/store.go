package store

import (
	"context"
	"errors"

	"voicescribe/internal/model"

	"github.com/google/uuid"
)

// ErrNotFound is returned when no meeting exists for the given id.
var ErrNotFound = errors.New("meeting not found")

// MeetingStore is the persistence boundary for meetings. The pipeline hands
// plain Meeting values across it and never issues queries of its own.
type MeetingStore interface {
	Create(ctx context.Context, m *model.Meeting) error
	Get(ctx context.Context, id uuid.UUID) (*model.Meeting, error)
	Update(ctx context.Context, m *model.Meeting) error
	List(ctx context.Context, limit, offset int) ([]model.Meeting, error)
	ListByStatus(ctx context.Context, status model.Status) ([]model.Meeting, error)

	// Search runs full-text search over title and transcript.
	Search(ctx context.Context, query string, limit int) ([]model.Meeting, error)

	Close() error
}
