package transcription

import "math"

// Provider identifies a transcription vendor.
type Provider string

const (
	ProviderOpenAI Provider = "openai"
	ProviderGroq   Provider = "groq"
)

// providerEndpoint holds the wire-level facts about a provider.
type providerEndpoint struct {
	baseURL        string
	maxUploadBytes int64
}

var providerEndpoints = map[Provider]providerEndpoint{
	ProviderOpenAI: {baseURL: "https://api.openai.com/v1", maxUploadBytes: 25 * 1024 * 1024},
	ProviderGroq:   {baseURL: "https://api.groq.com/openai/v1", maxUploadBytes: 40 * 1024 * 1024},
}

// Known reports whether p is a configured provider.
func (p Provider) Known() bool {
	_, ok := providerEndpoints[p]
	return ok
}

// MaxUploadBytes returns the provider's stated upload size limit.
func (p Provider) MaxUploadBytes() int64 {
	return providerEndpoints[p].maxUploadBytes
}

// ratePerMinuteCents is the static per-model rate table, in cents per minute
// of audio. Models missing from this table fail with UnknownModelError
// rather than billing at a guessed rate.
var ratePerMinuteCents = map[Provider]map[string]float64{
	ProviderOpenAI: {
		"whisper-1":              0.6,
		"gpt-4o-transcribe":      0.6,
		"gpt-4o-mini-transcribe": 0.3,
	},
	ProviderGroq: {
		"whisper-large-v3":       0.185,
		"whisper-large-v3-turbo": 0.067,
	},
}

// RatePerMinuteCents looks up the per-minute rate for a model.
func RatePerMinuteCents(provider Provider, modelID string) (float64, error) {
	models, ok := ratePerMinuteCents[provider]
	if !ok {
		return 0, &UnknownModelError{Provider: provider, ModelID: modelID}
	}
	rate, ok := models[modelID]
	if !ok {
		return 0, &UnknownModelError{Provider: provider, ModelID: modelID}
	}
	return rate, nil
}

// CostCents computes the billable cost for a clip. Cost is rounded up so it
// is never under-reported: a 1.01-minute clip at 0.6¢/min costs 1¢, not 0.
func CostCents(durationSeconds, ratePerMinute float64) int64 {
	if durationSeconds <= 0 || ratePerMinute <= 0 {
		return 0
	}
	return int64(math.Ceil(durationSeconds / 60 * ratePerMinute))
}

// defaultModels maps each provider to the model used when the caller does
// not pick one.
var defaultModels = map[Provider]string{
	ProviderOpenAI: "whisper-1",
	ProviderGroq:   "whisper-large-v3-turbo",
}
