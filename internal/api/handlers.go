package api

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"voicescribe/internal/ai"
	"voicescribe/internal/audio"
	"voicescribe/internal/config"
	"voicescribe/internal/model"
	"voicescribe/internal/retry"
	"voicescribe/internal/storage"
	"voicescribe/internal/store"
	"voicescribe/internal/transcription"
	"voicescribe/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Deps bundles everything the handlers need.
type Deps struct {
	Config       *config.Config
	Store        store.MeetingStore
	Audio        *storage.AudioStore
	Orchestrator *transcription.Orchestrator
	Coordinator  *retry.Coordinator
	Titler       *ai.Titler
}

type server struct {
	deps Deps
}

// RegisterRoutes mounts the API on the gin engine.
func RegisterRoutes(r *gin.Engine, deps Deps) {
	s := &server{deps: deps}

	r.GET("/health", s.healthCheck)

	v1 := r.Group("/api/v1")
	{
		v1.POST("/meetings", s.createMeeting)
		v1.GET("/meetings", s.listMeetings)
		v1.GET("/meetings/search", s.searchMeetings)
		v1.GET("/meetings/:id", s.getMeeting)
		v1.POST("/meetings/:id/transcribe", s.transcribeMeeting)
		v1.POST("/meetings/:id/retry", s.retryMeeting)
		v1.POST("/meetings/retry-failed", s.retryAllFailed)
		v1.POST("/dictations", s.dictate)
		v1.POST("/ai/ask", s.askQuestion)
	}
}

func (s *server) healthCheck(c *gin.Context) {
	utils.Success(c, gin.H{
		"status":  "ok",
		"service": "voicescribe",
	})
}

// createMeeting accepts a multipart audio upload and creates a meeting in
// pending_transcription.
func (s *server) createMeeting(c *gin.Context) {
	file, err := c.FormFile("audio_file")
	if err != nil {
		if file, err = c.FormFile("file"); err != nil {
			utils.Error(c, http.StatusBadRequest, "audio_file is required")
			return
		}
	}

	if !storage.ValidExt(file.Filename) {
		utils.Error(c, http.StatusBadRequest, "unsupported audio format. Supported: m4a, mp3, wav, aac, ogg, caf, aiff")
		return
	}

	id := uuid.New()
	path, err := s.deps.Audio.Save(file, id)
	if err != nil {
		log.Printf("[API] Failed to save upload: %v", err)
		utils.Error(c, http.StatusInternalServerError, "failed to save audio file")
		return
	}

	m := &model.Meeting{
		ID:        id,
		Title:     c.PostForm("title"),
		AudioPath: path,
		Status:    model.StatusPendingTranscription,
	}
	if err := s.deps.Store.Create(c.Request.Context(), m); err != nil {
		log.Printf("[API] Failed to create meeting: %v", err)
		utils.Error(c, http.StatusInternalServerError, "failed to create meeting")
		return
	}

	utils.Created(c, gin.H{"meeting": m})
}

func (s *server) getMeeting(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.Error(c, http.StatusBadRequest, "invalid meeting id")
		return
	}
	m, err := s.deps.Store.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			utils.Error(c, http.StatusNotFound, "meeting not found")
			return
		}
		utils.Error(c, http.StatusInternalServerError, "failed to load meeting")
		return
	}
	utils.Success(c, gin.H{"meeting": m})
}

func (s *server) listMeetings(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if limit < 1 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	meetings, err := s.deps.Store.List(c.Request.Context(), limit, offset)
	if err != nil {
		log.Printf("[API] Failed to list meetings: %v", err)
		utils.Error(c, http.StatusInternalServerError, "failed to list meetings")
		return
	}
	utils.Success(c, gin.H{"meetings": meetings, "count": len(meetings)})
}

func (s *server) searchMeetings(c *gin.Context) {
	query := c.Query("q")
	if query == "" {
		utils.Error(c, http.StatusBadRequest, "q is required")
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	meetings, err := s.deps.Store.Search(c.Request.Context(), query, limit)
	if err != nil {
		log.Printf("[API] Search failed: %v", err)
		utils.Error(c, http.StatusInternalServerError, "search failed")
		return
	}
	utils.Success(c, gin.H{"meetings": meetings, "count": len(meetings)})
}

// transcribeOverrides are per-request tweaks to the configured defaults.
type transcribeOverrides struct {
	Provider          *string `json:"provider"`
	ModelID           *string `json:"model_id"`
	CropSilences      *bool   `json:"crop_silences"`
	EnableDiarization *bool   `json:"enable_diarization"`
	GenerateTitle     *bool   `json:"generate_title"`
	Language          *string `json:"language"`
}

func (s *server) optionsFromRequest(c *gin.Context) transcription.Options {
	cfg := s.deps.Config
	opts := transcription.Options{
		Provider:             transcription.Provider(cfg.DefaultProvider),
		ModelID:              cfg.DefaultModel,
		CropSilences:         cfg.CropSilences,
		SilenceCropThreshold: cfg.SilenceCropThreshold,
		EnableDiarization:    cfg.EnableDiarization,
		GenerateTitle:        cfg.GenerateTitles,
		Language:             cfg.Language,
		UploadTimeout:        time.Duration(cfg.UploadTimeoutSeconds) * time.Second,
	}

	var o transcribeOverrides
	if err := c.ShouldBindJSON(&o); err == nil {
		if o.Provider != nil {
			opts.Provider = transcription.Provider(*o.Provider)
		}
		if o.ModelID != nil {
			opts.ModelID = *o.ModelID
		}
		if o.CropSilences != nil {
			opts.CropSilences = *o.CropSilences
		}
		if o.EnableDiarization != nil {
			opts.EnableDiarization = *o.EnableDiarization
		}
		if o.GenerateTitle != nil {
			opts.GenerateTitle = *o.GenerateTitle
		}
		if o.Language != nil {
			opts.Language = *o.Language
		}
	}
	return opts
}

func (s *server) transcribeMeeting(c *gin.Context) {
	s.runPipeline(c)
}

func (s *server) retryMeeting(c *gin.Context) {
	s.runPipeline(c)
}

// runPipeline drives one meeting through the coordinator and reports the
// final state. Retry and first transcription are the same transition.
func (s *server) runPipeline(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.Error(c, http.StatusBadRequest, "invalid meeting id")
		return
	}

	opts := s.optionsFromRequest(c)
	m, err := s.deps.Coordinator.Transcribe(c.Request.Context(), id, opts)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			utils.Error(c, http.StatusNotFound, "meeting not found")
			return
		}
		if errors.Is(err, retry.ErrRetryInProgress) {
			utils.Error(c, http.StatusConflict, err.Error())
			return
		}
		// The meeting is already persisted as failed; surface the provider's
		// message with a status matching the failure class.
		utils.Error(c, statusForPipelineError(err), err.Error())
		return
	}
	utils.Success(c, gin.H{"meeting": m})
}

func (s *server) retryAllFailed(c *gin.Context) {
	opts := s.optionsFromRequest(c)
	result, err := s.deps.Coordinator.RetryAllFailed(c.Request.Context(), opts)
	if err != nil {
		log.Printf("[API] Bulk retry failed: %v", err)
		utils.Error(c, http.StatusInternalServerError, err.Error())
		return
	}
	utils.Success(c, gin.H{"result": result})
}

// dictate is the fast path: transcribe a short clip straight from the upload
// and return plain text. Nothing is persisted and nothing is billed.
func (s *server) dictate(c *gin.Context) {
	file, err := c.FormFile("audio_file")
	if err != nil {
		if file, err = c.FormFile("file"); err != nil {
			utils.Error(c, http.StatusBadRequest, "audio_file is required")
			return
		}
	}
	if !storage.ValidExt(file.Filename) {
		utils.Error(c, http.StatusBadRequest, "unsupported audio format")
		return
	}

	id := uuid.New()
	path, err := s.deps.Audio.Save(file, id)
	if err != nil {
		utils.Error(c, http.StatusInternalServerError, "failed to save audio file")
		return
	}

	opts := s.optionsFromRequest(c)
	if p := c.PostForm("provider"); p != "" {
		opts.Provider = transcription.Provider(p)
	}
	if lang := c.PostForm("language"); lang != "" {
		opts.Language = lang
	}
	result, err := s.deps.Orchestrator.Dictate(c.Request.Context(), path, opts)
	if err != nil {
		utils.Error(c, statusForPipelineError(err), err.Error())
		return
	}
	utils.Success(c, gin.H{"text": result.Text, "cost_cents": result.CostCents})
}

type askRequest struct {
	Question   string   `json:"question" binding:"required"`
	MeetingIDs []string `json:"meeting_ids"`
}

// askQuestion answers a question over stored transcripts. With no explicit
// meeting ids it searches the transcript index for relevant meetings first.
func (s *server) askQuestion(c *gin.Context) {
	if s.deps.Titler == nil {
		utils.Error(c, http.StatusServiceUnavailable, "AI features are not configured")
		return
	}

	var req askRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.Error(c, http.StatusBadRequest, "question is required")
		return
	}

	ctx := c.Request.Context()
	var meetings []model.Meeting
	if len(req.MeetingIDs) > 0 {
		for _, idStr := range req.MeetingIDs {
			id, err := uuid.Parse(idStr)
			if err != nil {
				utils.Error(c, http.StatusBadRequest, "invalid meeting id: "+idStr)
				return
			}
			m, err := s.deps.Store.Get(ctx, id)
			if err != nil {
				utils.Error(c, http.StatusNotFound, "meeting not found: "+idStr)
				return
			}
			meetings = append(meetings, *m)
		}
	} else {
		found, err := s.deps.Store.Search(ctx, req.Question, 5)
		if err != nil {
			log.Printf("[API] Ask search failed: %v", err)
			utils.Error(c, http.StatusInternalServerError, "search failed")
			return
		}
		meetings = found
	}

	var contexts []ai.TranscriptContext
	for _, m := range meetings {
		if m.Transcript == nil || *m.Transcript == "" {
			continue
		}
		contexts = append(contexts, ai.TranscriptContext{
			MeetingID:  m.ID.String(),
			Title:      m.Title,
			CreatedAt:  m.CreatedAt.Format(time.RFC3339),
			Transcript: *m.Transcript,
		})
	}
	if len(contexts) == 0 {
		utils.Error(c, http.StatusNotFound, "no transcripts found to answer the question")
		return
	}

	answer, err := s.deps.Titler.Ask(ctx, req.Question, contexts)
	if err != nil {
		log.Printf("[API] Ask failed: %v", err)
		utils.Error(c, http.StatusInternalServerError, "failed to answer question")
		return
	}
	utils.Success(c, gin.H{"answer": answer, "meetings_used": len(contexts)})
}

// statusForPipelineError maps the typed pipeline taxonomy onto HTTP codes.
func statusForPipelineError(err error) int {
	var tooLarge *transcription.FileTooLargeError
	switch {
	case errors.Is(err, transcription.ErrNoProviderConfigured),
		errors.Is(err, transcription.ErrNoAPIKey):
		return http.StatusBadRequest
	case errors.Is(err, transcription.ErrInvalidAPIKey):
		return http.StatusUnauthorized
	case errors.Is(err, transcription.ErrQuotaExceeded):
		return http.StatusTooManyRequests
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, audio.ErrFileNotFound):
		return http.StatusNotFound
	case errors.Is(err, transcription.ErrTimeout):
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}
