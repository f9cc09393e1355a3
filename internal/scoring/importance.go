package scoring

import (
	"math"

	"github.com/recallhq/deepmemory/internal/models"
)

// Weights and saturation points are policy: recurrent, explicitly intentional
// content ("remember this") outranks merely long text.
const (
	weightFrequency  = 0.30
	weightNovelty    = 0.25
	weightUserIntent = 0.30
	weightLength     = 0.15

	frequencySaturation = 10.0
	lengthSaturation    = 2000.0

	maxFrequency = 100.0
	maxLength    = 10000.0
)

// Score maps raw signals to a normalized importance value in [0,1]. A nil
// input yields 0. Non-finite values are treated as their domain floor; each
// field is clamped to its domain before use. Pure and deterministic.
func Score(s *models.Signals) float64 {
	if s == nil {
		return 0
	}

	frequency := clamp(s.Frequency, 0, maxFrequency)
	novelty := clamp(s.Novelty, 0, 1)
	userIntent := clamp(s.UserIntent, 0, 1)
	length := clamp(s.Length, 0, maxLength)

	freqNorm := math.Min(frequency/frequencySaturation, 1)
	lenNorm := math.Min(length/lengthSaturation, 1)

	score := freqNorm*weightFrequency +
		novelty*weightNovelty +
		userIntent*weightUserIntent +
		lenNorm*weightLength

	return clamp(score, 0, 1)
}

// clamp bounds v to [lo, hi]; NaN and -Inf collapse to lo.
func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) || v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
