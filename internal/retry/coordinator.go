package retry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"voicescribe/internal/model"
	"voicescribe/internal/store"
	"voicescribe/internal/transcription"

	"github.com/google/uuid"
)

// ErrRetryInProgress is returned when a retry is requested for a meeting
// that already has one in flight.
var ErrRetryInProgress = errors.New("a retry is already in progress for this meeting")

// interItemDelay spaces out bulk retries so a backlog does not trip the
// provider's rate limit.
const interItemDelay = 500 * time.Millisecond

// Transcriber is the pipeline entry point the coordinator drives.
type Transcriber interface {
	Transcribe(ctx context.Context, path string, opts transcription.Options) (*transcription.Result, error)
}

// Coordinator owns the meeting status state machine: it moves a meeting
// through transcribing into ready or failed and persists every transition.
// At most one mutation of a given meeting's status is in flight at a time.
type Coordinator struct {
	Store       store.MeetingStore
	Transcriber Transcriber

	// Progress receives human-readable bulk retry progress ("Retrying 1 of 3").
	Progress func(msg string)

	// sleep is replaceable in tests.
	sleep func(time.Duration)

	mu       sync.Mutex
	inFlight map[uuid.UUID]bool
}

// NewCoordinator creates a coordinator over the given store and pipeline.
func NewCoordinator(st store.MeetingStore, tr Transcriber) *Coordinator {
	return &Coordinator{
		Store:       st,
		Transcriber: tr,
		sleep:       time.Sleep,
		inFlight:    make(map[uuid.UUID]bool),
	}
}

func (c *Coordinator) acquire(id uuid.UUID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inFlight[id] {
		return false
	}
	c.inFlight[id] = true
	return true
}

func (c *Coordinator) release(id uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.inFlight, id)
}

// Transcribe runs the pipeline for one meeting and applies the resulting
// status transition. The meeting is marked transcribing (with its error
// cleared) and persisted before the upload starts, so readers see the
// in-flight state while the call runs. On return the meeting is in ready or
// failed, never left in transcribing.
func (c *Coordinator) Transcribe(ctx context.Context, id uuid.UUID, opts transcription.Options) (*model.Meeting, error) {
	if !c.acquire(id) {
		return nil, ErrRetryInProgress
	}
	defer c.release(id)

	m, err := c.Store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	priorStatus := m.Status
	priorError := m.ErrorMessage

	m.Status = model.StatusTranscribing
	m.ErrorMessage = nil
	if err := c.Store.Update(ctx, m); err != nil {
		return nil, fmt.Errorf("failed to mark meeting transcribing: %w", err)
	}

	result, err := c.Transcriber.Transcribe(ctx, m.AudioPath, opts)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			// A cancelled upload is not a failure; put the meeting back the
			// way we found it instead of leaving it stuck in transcribing.
			m.Status = priorStatus
			m.ErrorMessage = priorError
			if saveErr := c.Store.Update(ctx, m); saveErr != nil {
				log.Printf("[RetryCoordinator] Failed to restore %s after cancel: %v", id, saveErr)
			}
			return m, err
		}
		c.applyFailure(m, err)
		if saveErr := c.Store.Update(ctx, m); saveErr != nil {
			log.Printf("[RetryCoordinator] Failed to persist failure for %s: %v", id, saveErr)
		}
		return m, err
	}

	c.applyResult(m, result)
	if err := c.Store.Update(ctx, m); err != nil {
		return nil, fmt.Errorf("failed to persist transcription result: %w", err)
	}
	log.Printf("[RetryCoordinator] Meeting %s ready (%.1fs audio, %d¢)", id, result.DurationSeconds, result.CostCents)
	return m, nil
}

// applyResult moves a meeting to ready with the transcription outcome.
func (c *Coordinator) applyResult(m *model.Meeting, r *transcription.Result) {
	m.Status = model.StatusReady
	m.Transcript = &r.Text
	m.ErrorMessage = nil
	cost := r.CostCents
	m.APICostCents = &cost
	duration := r.DurationSeconds
	m.DurationSeconds = &duration
	provider := string(r.Provider)
	m.Provider = &provider
	modelID := r.ModelID
	m.ModelID = &modelID
	if r.Title != "" {
		m.Title = r.Title
	}
	if r.SpeakerCount > 0 {
		count := r.SpeakerCount
		m.SpeakerCount = &count
	}
	if len(r.Segments) > 0 {
		if data, err := json.Marshal(r.Segments); err == nil {
			s := string(data)
			m.SegmentsJSON = &s
		}
	}
}

// applyFailure moves a meeting to failed. The audio path and any transcript
// or cost from an earlier partial success stay untouched; the error message
// is the provider's own, not a generic one.
func (c *Coordinator) applyFailure(m *model.Meeting, err error) {
	m.Status = model.StatusFailed
	msg := err.Error()
	m.ErrorMessage = &msg
}

// BulkResult summarizes a retry-all run.
type BulkResult struct {
	Attempted int      `json:"attempted"`
	Succeeded int      `json:"succeeded"`
	Failed    int      `json:"failed"`
	Progress  []string `json:"progress"`
}

// RetryAllFailed retries every currently failed meeting, sequentially and
// in stable store order, with a fixed delay between items (none after the
// last). The failed set is snapshotted once at the start: meetings that fail
// during the batch are not picked up. Callers should re-fetch state from the
// store afterwards rather than trust in-memory copies.
func (c *Coordinator) RetryAllFailed(ctx context.Context, opts transcription.Options) (*BulkResult, error) {
	snapshot, err := c.Store.ListByStatus(ctx, model.StatusFailed)
	if err != nil {
		return nil, fmt.Errorf("failed to list failed meetings: %w", err)
	}

	result := &BulkResult{Attempted: len(snapshot)}
	if len(snapshot) == 0 {
		return result, nil
	}

	log.Printf("[RetryCoordinator] Retrying %d failed meetings", len(snapshot))
	for i, m := range snapshot {
		msg := fmt.Sprintf("Retrying %d of %d", i+1, len(snapshot))
		result.Progress = append(result.Progress, msg)
		if c.Progress != nil {
			c.Progress(msg)
		}

		if _, err := c.Transcribe(ctx, m.ID, opts); err != nil {
			if errors.Is(err, context.Canceled) {
				return result, err
			}
			log.Printf("[RetryCoordinator] Retry of %s failed: %v", m.ID, err)
			result.Failed++
		} else {
			result.Succeeded++
		}

		if i < len(snapshot)-1 {
			c.sleep(interItemDelay)
		}
	}

	log.Printf("[RetryCoordinator] Bulk retry done: %d succeeded, %d failed", result.Succeeded, result.Failed)
	return result, nil
}
