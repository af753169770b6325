package retry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"voicescribe/internal/model"
	"voicescribe/internal/store"
	"voicescribe/internal/transcription"

	"github.com/google/uuid"
)

// statusChange records one persisted transition for assertions on ordering.
type statusChange struct {
	id     uuid.UUID
	status model.Status
	errMsg *string
}

// memStore is an in-memory MeetingStore that logs every persisted update.
type memStore struct {
	mu       sync.Mutex
	order    []uuid.UUID
	meetings map[uuid.UUID]model.Meeting
	log      []statusChange
}

func newMemStore() *memStore {
	return &memStore{meetings: make(map[uuid.UUID]model.Meeting)}
}

func (s *memStore) Create(ctx context.Context, m *model.Meeting) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.order = append(s.order, m.ID)
	s.meetings[m.ID] = *m
	return nil
}

func (s *memStore) Get(ctx context.Context, id uuid.UUID) (*model.Meeting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.meetings[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := m
	return &out, nil
}

func (s *memStore) Update(ctx context.Context, m *model.Meeting) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.meetings[m.ID]; !ok {
		return store.ErrNotFound
	}
	s.meetings[m.ID] = *m
	s.log = append(s.log, statusChange{id: m.ID, status: m.Status, errMsg: m.ErrorMessage})
	return nil
}

func (s *memStore) List(ctx context.Context, limit, offset int) ([]model.Meeting, error) {
	return nil, nil
}

func (s *memStore) ListByStatus(ctx context.Context, status model.Status) ([]model.Meeting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Meeting
	for _, id := range s.order {
		if m := s.meetings[id]; m.Status == status {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *memStore) Search(ctx context.Context, query string, limit int) ([]model.Meeting, error) {
	return nil, nil
}

func (s *memStore) Close() error { return nil }

func (s *memStore) statusLog(id uuid.UUID) []statusChange {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []statusChange
	for _, c := range s.log {
		if c.id == id {
			out = append(out, c)
		}
	}
	return out
}

// fakeTranscriber runs a configurable function per call.
type fakeTranscriber struct {
	mu    sync.Mutex
	calls int
	fn    func(path string) (*transcription.Result, error)
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, path string, opts transcription.Options) (*transcription.Result, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return f.fn(path)
}

func (f *fakeTranscriber) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func strPtr(s string) *string { return &s }

func failedMeeting(errMsg string) *model.Meeting {
	return &model.Meeting{
		ID:           uuid.New(),
		AudioPath:    "/audio/rec.wav",
		Status:       model.StatusFailed,
		ErrorMessage: strPtr(errMsg),
	}
}

func TestSingleRetrySuccess(t *testing.T) {
	st := newMemStore()
	m := failedMeeting("Network timeout")
	st.Create(context.Background(), m)

	tr := &fakeTranscriber{fn: func(path string) (*transcription.Result, error) {
		return &transcription.Result{Text: "quarterly planning", DurationSeconds: 120, CostCents: 2}, nil
	}}
	c := NewCoordinator(st, tr)

	got, err := c.Transcribe(context.Background(), m.ID, transcription.Options{})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}

	if got.Status != model.StatusReady {
		t.Errorf("final status = %s, want ready", got.Status)
	}
	if got.ErrorMessage != nil {
		t.Errorf("error message = %q, want cleared", *got.ErrorMessage)
	}
	if got.Transcript == nil || *got.Transcript != "quarterly planning" {
		t.Errorf("transcript not applied: %v", got.Transcript)
	}
	if got.APICostCents == nil || *got.APICostCents != 2 {
		t.Errorf("cost not applied: %v", got.APICostCents)
	}

	// transcribing must have been observed (and persisted) before ready,
	// with the stale error already cleared.
	log := st.statusLog(m.ID)
	if len(log) != 2 {
		t.Fatalf("expected 2 persisted transitions, got %d", len(log))
	}
	if log[0].status != model.StatusTranscribing {
		t.Errorf("first transition = %s, want transcribing", log[0].status)
	}
	if log[0].errMsg != nil {
		t.Errorf("error not cleared before upload: %q", *log[0].errMsg)
	}
	if log[1].status != model.StatusReady {
		t.Errorf("second transition = %s, want ready", log[1].status)
	}
}

func TestRetryFailureKeepsPriorResultAndAudio(t *testing.T) {
	st := newMemStore()
	m := failedMeeting("first failure")
	m.Transcript = strPtr("partial transcript from earlier run")
	m.APICostCents = func() *int64 { v := int64(3); return &v }()
	st.Create(context.Background(), m)

	tr := &fakeTranscriber{fn: func(path string) (*transcription.Result, error) {
		return nil, &transcription.ServerError{StatusCode: 500, Message: "model is overloaded"}
	}}
	c := NewCoordinator(st, tr)

	got, err := c.Transcribe(context.Background(), m.ID, transcription.Options{})
	if err == nil {
		t.Fatal("expected the pipeline error to propagate")
	}

	if got.Status != model.StatusFailed {
		t.Errorf("status = %s, want failed", got.Status)
	}
	if got.ErrorMessage == nil || *got.ErrorMessage != "provider returned status 500: model is overloaded" {
		t.Errorf("error message should be the provider's own, got %v", got.ErrorMessage)
	}
	if got.Transcript == nil || *got.Transcript != "partial transcript from earlier run" {
		t.Errorf("prior transcript must survive a failed retry: %v", got.Transcript)
	}
	if got.APICostCents == nil || *got.APICostCents != 3 {
		t.Errorf("prior cost must survive a failed retry: %v", got.APICostCents)
	}
	if got.AudioPath != "/audio/rec.wav" {
		t.Errorf("audio path must never change: %q", got.AudioPath)
	}
}

func TestConcurrentRetrySameMeetingRejected(t *testing.T) {
	st := newMemStore()
	m := failedMeeting("boom")
	st.Create(context.Background(), m)

	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	tr := &fakeTranscriber{fn: func(path string) (*transcription.Result, error) {
		once.Do(func() { close(started) })
		<-release
		return &transcription.Result{Text: "ok"}, nil
	}}
	c := NewCoordinator(st, tr)

	done := make(chan error, 1)
	go func() {
		_, err := c.Transcribe(context.Background(), m.ID, transcription.Options{})
		done <- err
	}()

	<-started
	_, err := c.Transcribe(context.Background(), m.ID, transcription.Options{})
	if !errors.Is(err, ErrRetryInProgress) {
		t.Errorf("second attempt: got %v, want ErrRetryInProgress", err)
	}
	close(release)
	if err := <-done; err != nil {
		t.Errorf("first attempt failed: %v", err)
	}

	// The slot is freed once the first attempt returns.
	if _, err := c.Transcribe(context.Background(), m.ID, transcription.Options{}); err != nil {
		t.Errorf("retry after completion: %v", err)
	}
}

func TestBulkRetryDelaysAndProgress(t *testing.T) {
	st := newMemStore()
	for i := 0; i < 3; i++ {
		st.Create(context.Background(), failedMeeting(fmt.Sprintf("failure %d", i)))
	}

	tr := &fakeTranscriber{fn: func(path string) (*transcription.Result, error) {
		return &transcription.Result{Text: "ok"}, nil
	}}
	c := NewCoordinator(st, tr)

	var sleeps []time.Duration
	c.sleep = func(d time.Duration) { sleeps = append(sleeps, d) }
	var progress []string
	c.Progress = func(msg string) { progress = append(progress, msg) }

	result, err := c.RetryAllFailed(context.Background(), transcription.Options{})
	if err != nil {
		t.Fatalf("RetryAllFailed: %v", err)
	}

	if result.Attempted != 3 || result.Succeeded != 3 || result.Failed != 0 {
		t.Errorf("result = %+v", result)
	}

	// 3 items means exactly 2 inter-item delays, never 3.
	if len(sleeps) != 2 {
		t.Errorf("observed %d delays, want 2", len(sleeps))
	}

	want := []string{"Retrying 1 of 3", "Retrying 2 of 3", "Retrying 3 of 3"}
	if len(progress) != len(want) {
		t.Fatalf("progress = %v, want %v", progress, want)
	}
	for i := range want {
		if progress[i] != want[i] {
			t.Errorf("progress[%d] = %q, want %q", i, progress[i], want[i])
		}
	}
}

func TestBulkRetrySnapshotsFailedSetOnce(t *testing.T) {
	st := newMemStore()
	m1 := failedMeeting("one")
	m2 := failedMeeting("two")
	st.Create(context.Background(), m1)
	st.Create(context.Background(), m2)

	// The first meeting fails again during the batch. It re-enters the failed
	// set but must not be picked up again within this run.
	tr := &fakeTranscriber{}
	tr.fn = func(path string) (*transcription.Result, error) {
		if tr.callCount() == 1 {
			return nil, transcription.ErrQuotaExceeded
		}
		return &transcription.Result{Text: "ok"}, nil
	}
	c := NewCoordinator(st, tr)
	c.sleep = func(time.Duration) {}

	result, err := c.RetryAllFailed(context.Background(), transcription.Options{})
	if err != nil {
		t.Fatalf("RetryAllFailed: %v", err)
	}

	if tr.callCount() != 2 {
		t.Errorf("transcriber called %d times, want 2 (snapshot, not re-scan)", tr.callCount())
	}
	if result.Succeeded != 1 || result.Failed != 1 {
		t.Errorf("result = %+v", result)
	}
}

func TestBulkRetryEmptyBacklog(t *testing.T) {
	c := NewCoordinator(newMemStore(), &fakeTranscriber{fn: func(string) (*transcription.Result, error) {
		return nil, errors.New("should never run")
	}})

	result, err := c.RetryAllFailed(context.Background(), transcription.Options{})
	if err != nil {
		t.Fatalf("RetryAllFailed: %v", err)
	}
	if result.Attempted != 0 || len(result.Progress) != 0 {
		t.Errorf("result = %+v, want empty", result)
	}
}

func TestCancelledUploadRestoresPriorStatus(t *testing.T) {
	st := newMemStore()
	m := failedMeeting("original failure")
	st.Create(context.Background(), m)

	tr := &fakeTranscriber{fn: func(path string) (*transcription.Result, error) {
		return nil, fmt.Errorf("upload aborted: %w", context.Canceled)
	}}
	c := NewCoordinator(st, tr)

	got, err := c.Transcribe(context.Background(), m.ID, transcription.Options{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("got %v, want context.Canceled", err)
	}

	if got.Status != model.StatusFailed {
		t.Errorf("status = %s, want prior status restored (failed)", got.Status)
	}
	if got.ErrorMessage == nil || *got.ErrorMessage != "original failure" {
		t.Errorf("prior error message should be restored, got %v", got.ErrorMessage)
	}

	stored, _ := st.Get(context.Background(), m.ID)
	if stored.Status == model.StatusTranscribing {
		t.Error("meeting left stuck in transcribing after cancellation")
	}
}

func TestTitleAppliedToMeeting(t *testing.T) {
	st := newMemStore()
	m := failedMeeting("x")
	st.Create(context.Background(), m)

	tr := &fakeTranscriber{fn: func(path string) (*transcription.Result, error) {
		return &transcription.Result{
			Text:            "we talked about hiring",
			Title:           "Hiring Sync",
			DurationSeconds: 300,
			CostCents:       3,
			SpeakerCount:    2,
			Segments: []transcription.Segment{
				{ID: 0, Start: 0, End: 5, Text: "we talked", Speaker: "A"},
			},
		}, nil
	}}
	c := NewCoordinator(st, tr)

	got, err := c.Transcribe(context.Background(), m.ID, transcription.Options{})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if got.Title != "Hiring Sync" {
		t.Errorf("Title = %q", got.Title)
	}
	if got.SpeakerCount == nil || *got.SpeakerCount != 2 {
		t.Errorf("SpeakerCount = %v", got.SpeakerCount)
	}
	if got.SegmentsJSON == nil {
		t.Error("segments not persisted")
	}
}
