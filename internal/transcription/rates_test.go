package transcription

import (
	"errors"
	"testing"
)

func TestCostCentsRoundsUp(t *testing.T) {
	tests := []struct {
		name     string
		seconds  float64
		rate     float64
		want     int64
	}{
		{"just over a minute never rounds to zero", 60.6, 0.6, 1}, // 1.01 min at 0.6¢/min
		{"exact minutes", 120, 0.6, 2},                            // 2 min at 0.6¢/min = 1.2¢ -> 2¢
		{"ceil not floor", 600, 0.185, 2},                         // 10 min at 0.185¢/min = 1.85¢ -> 2¢
		{"one cent minimum for tiny clips", 1, 0.6, 1},
		{"zero duration", 0, 0.6, 0},
		{"negative duration clamps to zero", -5, 0.6, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CostCents(tt.seconds, tt.rate)
			if got != tt.want {
				t.Errorf("CostCents(%v, %v) = %d, want %d", tt.seconds, tt.rate, got, tt.want)
			}
			if got < 0 {
				t.Errorf("cost must never be negative, got %d", got)
			}
		})
	}
}

func TestRatePerMinuteCentsUnknownModel(t *testing.T) {
	if _, err := RatePerMinuteCents(ProviderOpenAI, "whisper-1"); err != nil {
		t.Errorf("known model should resolve: %v", err)
	}

	_, err := RatePerMinuteCents(ProviderOpenAI, "made-up-model")
	var unknown *UnknownModelError
	if !errors.As(err, &unknown) {
		t.Fatalf("expected UnknownModelError, got %v", err)
	}
	if unknown.ModelID != "made-up-model" {
		t.Errorf("error names model %q, want made-up-model", unknown.ModelID)
	}

	if _, err := RatePerMinuteCents(Provider("azure"), "whisper-1"); err == nil {
		t.Error("unknown provider must fail, not default")
	}
}
