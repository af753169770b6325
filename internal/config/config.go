package config

import (
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/goccy/go-yaml"
)

// Config holds the server and pipeline configuration. Values come from the
// environment, optionally overlaid by a YAML file named in VOICESCRIBE_CONFIG.
type Config struct {
	Port      string `yaml:"port"`
	DBPath    string `yaml:"db_path"`
	UploadDir string `yaml:"upload_dir"`
	KeyDir    string `yaml:"key_dir"`

	DefaultProvider      string  `yaml:"default_provider"`
	DefaultModel         string  `yaml:"default_model"`
	Language             string  `yaml:"language"`
	CropSilences         bool    `yaml:"crop_silences"`
	SilenceCropThreshold float64 `yaml:"silence_crop_threshold_seconds"`
	GenerateTitles       bool    `yaml:"generate_titles"`
	EnableDiarization    bool    `yaml:"enable_diarization"`
	UploadTimeoutSeconds int     `yaml:"upload_timeout_seconds"`
}

// Load reads configuration from the environment with safe defaults.
func Load() (*Config, error) {
	cfg := &Config{
		Port:                 getEnv("PORT", "8080"),
		DBPath:               getEnv("VOICESCRIBE_DB_PATH", "./data/meetings.db"),
		UploadDir:            getEnv("VOICESCRIBE_UPLOAD_DIR", "uploads"),
		KeyDir:               os.Getenv("VOICESCRIBE_KEY_DIR"),
		DefaultProvider:      getEnv("VOICESCRIBE_PROVIDER", "openai"),
		DefaultModel:         os.Getenv("VOICESCRIBE_MODEL"),
		Language:             os.Getenv("VOICESCRIBE_LANGUAGE"),
		CropSilences:         getEnvBool("VOICESCRIBE_CROP_SILENCES", true),
		SilenceCropThreshold: getEnvFloat("VOICESCRIBE_CROP_THRESHOLD_SECONDS", 2.0),
		GenerateTitles:       getEnvBool("VOICESCRIBE_GENERATE_TITLES", true),
		EnableDiarization:    getEnvBool("VOICESCRIBE_DIARIZATION", false),
		UploadTimeoutSeconds: getEnvInt("VOICESCRIBE_UPLOAD_TIMEOUT_SECONDS", 600),
	}

	if path := os.Getenv("VOICESCRIBE_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
		log.Printf("[Config] Loaded overrides from %s", path)
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Printf("[Config] Invalid bool for %s=%q, using %v", key, v, fallback)
		return fallback
	}
	return b
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("[Config] Invalid int for %s=%q, using %d", key, v, fallback)
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		log.Printf("[Config] Invalid float for %s=%q, using %g", key, v, fallback)
		return fallback
	}
	return f
}
