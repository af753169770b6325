package transcription

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"time"

	"voicescribe/internal/audio"
)

// ResponseFormat selects the provider response shape.
type ResponseFormat string

const (
	// FormatVerboseJSON returns per-segment timing and duration; used for
	// full meeting transcription.
	FormatVerboseJSON ResponseFormat = "verbose_json"
	// FormatText returns the bare transcript; used for the latency-sensitive
	// dictation path.
	FormatText ResponseFormat = "text"
)

// DictationTimeout bounds the fast dictation path. Kept short on purpose;
// dictation clips are seconds long and the caller is waiting.
const DictationTimeout = 30 * time.Second

// RawResponse is the parsed provider response for one upload.
type RawResponse struct {
	Text          string         `json:"text"`
	Duration      float64        `json:"duration,omitempty"`
	Language      string         `json:"language,omitempty"`
	Segments      []Segment      `json:"segments,omitempty"`
	SpeakerCount  int            `json:"speaker_count,omitempty"`
	SpeakerLabels []SpeakerLabel `json:"speaker_labels,omitempty"`
}

// Segment is one timed slice of the transcript.
type Segment struct {
	ID      int     `json:"id"`
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	Text    string  `json:"text"`
	Speaker string  `json:"speaker,omitempty"`
}

// SpeakerLabel is provider-side diarization metadata, relayed as-is.
type SpeakerLabel struct {
	SpeakerID  string  `json:"speaker_id"`
	Name       string  `json:"name"`
	Confidence float64 `json:"confidence"`
	Evidence   string  `json:"evidence,omitempty"`
	Role       string  `json:"role,omitempty"`
}

// UploadRequest describes one transcription upload.
type UploadRequest struct {
	Path           string
	Provider       Provider
	APIKey         string
	ModelID        string
	ResponseFormat ResponseFormat
	Language       string
	Diarize        bool
	Timeout        time.Duration
}

// Client uploads audio to a transcription provider and classifies failures.
type Client struct {
	// BaseURLs overrides provider endpoints, primarily for tests.
	BaseURLs map[Provider]string

	httpClient *http.Client
}

// NewClient creates a transcription client.
func NewClient() *Client {
	return &Client{httpClient: &http.Client{}}
}

func (c *Client) baseURL(p Provider) string {
	if c.BaseURLs != nil {
		if u, ok := c.BaseURLs[p]; ok {
			return u
		}
	}
	return providerEndpoints[p].baseURL
}

// contentTypeForExt infers the audio MIME type from the file extension.
func contentTypeForExt(ext string) string {
	switch strings.ToLower(ext) {
	case ".wav":
		return "audio/wav"
	case ".mp3":
		return "audio/mpeg"
	default:
		return "audio/m4a"
	}
}

// Upload sends the audio file to the provider's transcription endpoint and
// parses the response. The file size is checked against the provider limit
// before any bytes are sent; an over-limit file never reaches the network.
func (c *Client) Upload(ctx context.Context, req UploadRequest) (*RawResponse, error) {
	info, err := os.Stat(req.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", audio.ErrFileNotFound, req.Path)
		}
		return nil, fmt.Errorf("%w: %v", audio.ErrUnreadableAudio, err)
	}

	limit := req.Provider.MaxUploadBytes()
	if info.Size() > limit {
		return nil, &FileTooLargeError{
			Provider:         req.Provider,
			SizeBytes:        info.Size(),
			LimitBytes:       limit,
			EstimatedMinutes: estimateMinutes(info.Size()),
		}
	}

	body, contentType, err := buildMultipartBody(req)
	if err != nil {
		return nil, err
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	url := c.baseURL(req.Provider) + "/audio/transcriptions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+req.APIKey)
	httpReq.Header.Set("Content-Type", contentType)

	log.Printf("[TranscriptionClient] Uploading %s (%d bytes) to %s, model=%s, format=%s",
		req.Path, info.Size(), req.Provider, req.ModelID, req.ResponseFormat)

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, ErrTimeout
		}
		return nil, &NetworkError{Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &NetworkError{Err: err}
	}

	// Status first, always. 401 and 429 map unconditionally; everything else
	// non-2xx gets the provider's own message plus substring refinement.
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Printf("[TranscriptionClient] %s returned status %d: %s",
			req.Provider, resp.StatusCode, preview(string(respBody), 500))
		switch resp.StatusCode {
		case http.StatusUnauthorized:
			return nil, ErrInvalidAPIKey
		case http.StatusTooManyRequests:
			return nil, ErrQuotaExceeded
		}
		return nil, refineProviderError(resp.StatusCode, parseErrorMessage(respBody))
	}

	result, err := parseSuccessBody(respBody, req.ResponseFormat)
	if err != nil {
		return nil, err
	}

	log.Printf("[TranscriptionClient] %s transcription done in %v: %d chars, %.1fs audio, %d segments",
		req.Provider, time.Since(start).Round(time.Millisecond), len(result.Text), result.Duration, len(result.Segments))
	return result, nil
}

// Dictate is the latency-sensitive fast path: plain text response, fixed
// short timeout, language hint to shave provider-side detection time.
func (c *Client) Dictate(ctx context.Context, path string, provider Provider, apiKey, modelID, language string) (string, error) {
	if language == "" {
		language = "en"
	}
	resp, err := c.Upload(ctx, UploadRequest{
		Path:           path,
		Provider:       provider,
		APIKey:         apiKey,
		ModelID:        modelID,
		ResponseFormat: FormatText,
		Language:       language,
		Timeout:        DictationTimeout,
	})
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}

// buildMultipartBody assembles the multipart payload: the audio bytes (part
// name "file", filename audio.<ext>, content type by extension), the model
// identifier and the response format, plus optional language and diarize
// fields.
func buildMultipartBody(req UploadRequest) (*bytes.Buffer, string, error) {
	f, err := os.Open(req.Path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to open audio file: %w", err)
	}
	defer f.Close()

	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)

	ext := filepath.Ext(req.Path)
	if ext == "" {
		ext = ".m4a"
	}
	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="audio%s"`, ext))
	header.Set("Content-Type", contentTypeForExt(ext))
	part, err := mw.CreatePart(header)
	if err != nil {
		return nil, "", err
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, "", fmt.Errorf("failed to read audio file: %w", err)
	}

	if err := mw.WriteField("model", req.ModelID); err != nil {
		return nil, "", err
	}
	if err := mw.WriteField("response_format", string(req.ResponseFormat)); err != nil {
		return nil, "", err
	}
	if req.Language != "" {
		if err := mw.WriteField("language", req.Language); err != nil {
			return nil, "", err
		}
	}
	if req.Diarize {
		if err := mw.WriteField("diarize", "true"); err != nil {
			return nil, "", err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return body, mw.FormDataContentType(), nil
}

func parseSuccessBody(body []byte, format ResponseFormat) (*RawResponse, error) {
	if format == FormatText {
		return &RawResponse{Text: strings.TrimSpace(string(body))}, nil
	}
	var resp RawResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &ServerError{StatusCode: http.StatusOK,
			Message: fmt.Sprintf("unparseable success body: %s", preview(string(body), 200))}
	}
	return &resp, nil
}

// parseErrorMessage extracts the provider's error message from a non-2xx
// body. Falls back to the raw body so the user never sees a blank error.
func parseErrorMessage(body []byte) string {
	var errResp struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Message != "" {
		return errResp.Error.Message
	}
	return strings.TrimSpace(string(body))
}

// estimateMinutes guesses audio length from file size, assuming roughly
// 32 kbps compressed audio. Only used for the FileTooLarge message.
func estimateMinutes(sizeBytes int64) float64 {
	const bytesPerMinute = 32_000 / 8 * 60
	return float64(sizeBytes) / bytesPerMinute
}

func preview(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
