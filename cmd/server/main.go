package main

import (
	"log"
	"os"

	"voicescribe/internal/ai"
	"voicescribe/internal/api"
	"voicescribe/internal/config"
	"voicescribe/internal/retry"
	"voicescribe/internal/secrets"
	"voicescribe/internal/storage"
	"voicescribe/internal/store"
	"voicescribe/internal/transcription"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	// Load .env file if it exists (ignore error if file doesn't exist)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}

	meetingStore, err := store.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to open meeting store: %v", err)
	}
	defer meetingStore.Close()
	log.Printf("Meeting store ready at %s", cfg.DBPath)

	audioStore, err := storage.NewAudioStore(cfg.UploadDir)
	if err != nil {
		log.Fatalf("Failed to prepare upload directory: %v", err)
	}

	keys := &secrets.KeyStore{KeyDir: cfg.KeyDir}

	// Title generation and ask share the OpenAI completion key. Without one
	// the pipeline still runs; titles are simply skipped.
	var titler *ai.Titler
	if openAIKey, err := keys.ReadKey("openai"); err == nil {
		titler = ai.NewTitler(openAIKey)
	} else {
		log.Printf("AI features disabled: %v", err)
	}

	// A nil *ai.Titler must not reach the orchestrator as a non-nil interface.
	var titlerIface transcription.Titler
	if titler != nil {
		titlerIface = titler
	}
	orchestrator := transcription.NewOrchestrator(keys, transcription.NewClient(), titlerIface, nil)
	coordinator := retry.NewCoordinator(meetingStore, orchestrator)
	coordinator.Progress = func(msg string) { log.Printf("[RetryCoordinator] %s", msg) }

	r := gin.Default()
	r.Use(corsMiddleware())
	api.RegisterRoutes(r, api.Deps{
		Config:       cfg,
		Store:        meetingStore,
		Audio:        audioStore,
		Orchestrator: orchestrator,
		Coordinator:  coordinator,
		Titler:       titler,
	})

	log.Printf("voicescribe backend running on :%s", cfg.Port)
	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// corsMiddleware adds CORS headers for the recording clients.
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
