package transcription

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"voicescribe/internal/audio"
)

// KeyStore resolves API keys for providers. Absence of a key is reported as
// an error by the implementation; keys are never cached here.
type KeyStore interface {
	ReadKey(provider string) (string, error)
}

// Titler produces a short title for a transcript. Title generation is an
// optional nicety; its failure never fails a transcription.
type Titler interface {
	GenerateTitle(ctx context.Context, transcript string) (string, error)
}

// Compressor shrinks an over-limit audio file into a new file and returns
// its path. Optional collaborator; without one, over-limit files fail fast.
type Compressor interface {
	Compress(ctx context.Context, path string) (string, error)
}

// Options configures a transcription run. The zero value is safe except for
// Provider, which must name a configured provider.
type Options struct {
	Provider             Provider
	ModelID              string
	CropSilences         bool
	SilenceCropThreshold float64 // minimum silence to crop, seconds
	EnableDiarization    bool
	GenerateTitle        bool
	Language             string
	UploadTimeout        time.Duration
}

// DefaultSilenceCropThreshold is the minimum silence length worth cropping
// out of a recording before upload.
const DefaultSilenceCropThreshold = 2.0

// cropKeepPad is how much context survives around each cut, in seconds,
// split evenly before and after the removed silence.
const cropKeepPad = 0.5

// Result is the assembled outcome of one transcription.
type Result struct {
	Text            string         `json:"text"`
	DurationSeconds float64        `json:"duration_seconds"`
	CostCents       int64          `json:"cost_cents"`
	Segments        []Segment      `json:"segments,omitempty"`
	SpeakerCount    int            `json:"speaker_count,omitempty"`
	Title           string         `json:"title,omitempty"`
	SpeakerLabels   []SpeakerLabel `json:"speaker_labels,omitempty"`
	Provider        Provider       `json:"provider"`
	ModelID         string         `json:"model_id"`
}

// Orchestrator applies transcription policy around the upload client:
// provider and key resolution, the size gate, crop-before-upload, cost
// accounting and title post-processing.
type Orchestrator struct {
	Keys       KeyStore
	Client     *Client
	Titler     Titler
	Compressor Compressor
}

// NewOrchestrator wires an orchestrator. Titler and Compressor may be nil.
func NewOrchestrator(keys KeyStore, client *Client, titler Titler, compressor Compressor) *Orchestrator {
	return &Orchestrator{Keys: keys, Client: client, Titler: titler, Compressor: compressor}
}

// Transcribe is the single entry point for turning an audio file into a
// transcription result. Any failure up to and including the upload aborts
// the call with its typed error; title generation never does.
func (o *Orchestrator) Transcribe(ctx context.Context, path string, opts Options) (*Result, error) {
	if !opts.Provider.Known() {
		return nil, ErrNoProviderConfigured
	}
	apiKey, err := o.Keys.ReadKey(string(opts.Provider))
	if err != nil || apiKey == "" {
		return nil, ErrNoAPIKey
	}

	modelID := opts.ModelID
	if modelID == "" {
		modelID = defaultModels[opts.Provider]
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", audio.ErrFileNotFound, path)
		}
		return nil, fmt.Errorf("%w: %v", audio.ErrUnreadableAudio, err)
	}

	uploadPath := path
	limit := opts.Provider.MaxUploadBytes()
	if info.Size() > limit {
		if o.Compressor == nil {
			return nil, &FileTooLargeError{
				Provider:         opts.Provider,
				SizeBytes:        info.Size(),
				LimitBytes:       limit,
				EstimatedMinutes: estimateMinutes(info.Size()),
			}
		}
		compressed, err := o.Compressor.Compress(ctx, path)
		if err != nil {
			return nil, &CompressionError{Path: path, Err: err}
		}
		log.Printf("[Orchestrator] Compressed %s -> %s before upload", path, compressed)
		uploadPath = compressed
	}

	if opts.CropSilences {
		uploadPath = o.cropForUpload(uploadPath, opts)
	}

	raw, err := o.Client.Upload(ctx, UploadRequest{
		Path:           uploadPath,
		Provider:       opts.Provider,
		APIKey:         apiKey,
		ModelID:        modelID,
		ResponseFormat: FormatVerboseJSON,
		Language:       opts.Language,
		Diarize:        opts.EnableDiarization,
		Timeout:        opts.UploadTimeout,
	})
	if err != nil {
		return nil, err
	}

	rate, err := RatePerMinuteCents(opts.Provider, modelID)
	if err != nil {
		return nil, err
	}

	result := &Result{
		Text:            raw.Text,
		DurationSeconds: raw.Duration,
		CostCents:       CostCents(raw.Duration, rate),
		Provider:        opts.Provider,
		ModelID:         modelID,
	}
	result.Segments = raw.Segments
	if opts.EnableDiarization {
		result.SpeakerCount = raw.SpeakerCount
		result.SpeakerLabels = raw.SpeakerLabels
	}

	if opts.GenerateTitle && o.Titler != nil && raw.Text != "" {
		title, err := o.Titler.GenerateTitle(ctx, raw.Text)
		if err != nil {
			log.Printf("[Orchestrator] Title generation failed (non-fatal): %v", err)
		} else {
			result.Title = title
		}
	}

	return result, nil
}

// Dictate runs the fast dictation path. Dictation responses carry no
// duration, so no honest per-minute cost can be computed; dictations are
// billed at zero rather than a guessed figure.
func (o *Orchestrator) Dictate(ctx context.Context, path string, opts Options) (*Result, error) {
	if !opts.Provider.Known() {
		return nil, ErrNoProviderConfigured
	}
	apiKey, err := o.Keys.ReadKey(string(opts.Provider))
	if err != nil || apiKey == "" {
		return nil, ErrNoAPIKey
	}
	modelID := opts.ModelID
	if modelID == "" {
		modelID = defaultModels[opts.Provider]
	}

	text, err := o.Client.Dictate(ctx, path, opts.Provider, apiKey, modelID, opts.Language)
	if err != nil {
		return nil, err
	}
	return &Result{Text: text, Provider: opts.Provider, ModelID: modelID}, nil
}

// cropForUpload runs the silence cropper and returns the path to upload.
// Cropping is an optimization: any failure falls back to the uncropped
// input rather than aborting the transcription.
func (o *Orchestrator) cropForUpload(path string, opts Options) string {
	threshold := opts.SilenceCropThreshold
	if threshold <= 0 {
		threshold = DefaultSilenceCropThreshold
	}
	crop, err := audio.CropSilences(path, threshold, cropKeepPad)
	if err != nil {
		log.Printf("[Orchestrator] Silence crop failed, uploading original: %v", err)
		return path
	}
	if crop.RegionsCropped > 0 {
		log.Printf("[Orchestrator] Cropped %d silences, saved %.1fs of upload audio",
			crop.RegionsCropped, crop.TimeSaved)
	}
	return crop.OutputPath
}
