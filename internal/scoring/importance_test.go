package scoring

import (
	"math"
	"testing"

	"github.com/recallhq/deepmemory/internal/models"
)

func TestScoreBounds(t *testing.T) {
	tests := []struct {
		name  string
		input *models.Signals
		check func(t *testing.T, got float64)
	}{
		{
			name:  "nil input yields zero",
			input: nil,
			check: func(t *testing.T, got float64) {
				if got != 0 {
					t.Errorf("expected 0, got %f", got)
				}
			},
		},
		{
			name:  "all-zero signals yield zero",
			input: &models.Signals{},
			check: func(t *testing.T, got float64) {
				if got != 0 {
					t.Errorf("expected 0, got %f", got)
				}
			},
		},
		{
			name:  "saturated signals exceed 0.8",
			input: &models.Signals{Frequency: 10, Novelty: 1, UserIntent: 1, Length: 2000},
			check: func(t *testing.T, got float64) {
				if got <= 0.8 {
					t.Errorf("expected > 0.8, got %f", got)
				}
			},
		},
		{
			name:  "oversized inputs clamp to one",
			input: &models.Signals{Frequency: 1e9, Novelty: 50, UserIntent: 3, Length: 1e12},
			check: func(t *testing.T, got float64) {
				if got != 1 {
					t.Errorf("expected 1, got %f", got)
				}
			},
		},
		{
			name:  "NaN collapses to floor",
			input: &models.Signals{Frequency: math.NaN(), Novelty: math.NaN(), UserIntent: math.NaN(), Length: math.NaN()},
			check: func(t *testing.T, got float64) {
				if got != 0 {
					t.Errorf("expected 0, got %f", got)
				}
			},
		},
		{
			name:  "negative infinity collapses to floor",
			input: &models.Signals{Frequency: math.Inf(-1), Novelty: 0.5, UserIntent: 0, Length: 0},
			check: func(t *testing.T, got float64) {
				if got != 0.5*0.25 {
					t.Errorf("expected 0.125, got %f", got)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Score(tt.input)
			if got < 0 || got > 1 {
				t.Fatalf("score out of [0,1]: %f", got)
			}
			tt.check(t, got)
		})
	}
}

func TestScoreMonotonic(t *testing.T) {
	base := models.Signals{Frequency: 3, Novelty: 0.4, UserIntent: 0.2, Length: 500}

	bump := []struct {
		name string
		mod  func(s models.Signals) models.Signals
	}{
		{"frequency", func(s models.Signals) models.Signals { s.Frequency += 2; return s }},
		{"novelty", func(s models.Signals) models.Signals { s.Novelty += 0.3; return s }},
		{"user intent", func(s models.Signals) models.Signals { s.UserIntent += 0.5; return s }},
		{"length", func(s models.Signals) models.Signals { s.Length += 800; return s }},
	}

	before := Score(&base)
	for _, b := range bump {
		t.Run(b.name, func(t *testing.T) {
			higher := b.mod(base)
			if got := Score(&higher); got < before {
				t.Errorf("score decreased when %s increased: %f -> %f", b.name, before, got)
			}
		})
	}
}

func TestScoreDeterministic(t *testing.T) {
	s := &models.Signals{Frequency: 7, Novelty: 0.9, UserIntent: 0.6, Length: 1200}
	first := Score(s)
	for i := 0; i < 10; i++ {
		if got := Score(s); got != first {
			t.Fatalf("score not deterministic: %f vs %f", first, got)
		}
	}
}
