package match

import (
	"fmt"

	"github.com/sydlexius/tributary/internal/dto"
)

// Confidence is the classification of a match.
type Confidence string

// Confidence tiers, best first.
const (
	Complete   Confidence = "complete"
	Nearly     Confidence = "nearly"
	Incomplete Confidence = "incomplete"
)

// Valid reports whether c is one of the three tiers.
func (c Confidence) Valid() bool {
	switch c {
	case Complete, Nearly, Incomplete:
		return true
	}
	return false
}

// Result is one scored candidate.
type Result struct {
	Track      dto.ProviderTrack `json:"track"`
	Score      Score             `json:"score"`
	Total      float64           `json:"total"`
	Confidence Confidence        `json:"confidence"`
}

// NewResult builds a Result, rejecting unknown confidence labels.
func NewResult(track dto.ProviderTrack, s Score, c Confidence) (Result, error) {
	if !c.Valid() {
		return Result{}, &dto.InvalidInputError{
			Kind:    "match result",
			Field:   "confidence",
			Message: fmt.Sprintf("%q is not one of complete, nearly, incomplete", string(c)),
		}
	}
	return Result{Track: track, Score: s, Total: s.Total(), Confidence: c}, nil
}

// classify places total in a tier. capped limits the result to Incomplete.
func classify(total float64, capped bool, opts Options) Confidence {
	switch {
	case capped:
		return Incomplete
	case total >= opts.CompleteThreshold:
		return Complete
	case total >= opts.NearlyThreshold:
		return Nearly
	default:
		return Incomplete
	}
}
