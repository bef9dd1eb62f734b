// Package validator judges whether a guessed word is close enough to the
// secret word. The semantic model lives in an external similarity service;
// this package wraps it with caching and a cheap heuristic fallback.
package validator

import (
	"context"
	"strings"
)

// DefaultThreshold is used when a caller passes a threshold <= 0.
const DefaultThreshold = 0.5

// Rejection reasons for invalid verdicts.
const (
	ReasonBelowThreshold = "below_threshold"
	ReasonUnknownWord    = "unknown_word"
	ReasonSameAsTarget   = "same_as_target"
	ReasonEmpty          = "empty_guess"
)

// Verdict is the outcome of one similarity check.
type Verdict struct {
	Valid           bool    `json:"valid"`
	Score           float64 `json:"score"`
	ThresholdUsed   float64 `json:"threshold_used"`
	RejectionReason string  `json:"rejection_reason,omitempty"`
	// Heuristic is set when the score came from the local fallback rather than the model.
	Heuristic bool `json:"heuristic"`
}

// Validator is the word-validity contract the engine depends on.
type Validator interface {
	ComputeSimilarity(ctx context.Context, word1, word2, language string) (float64, error)
	ValidateSimilarity(ctx context.Context, target, guess, language string, threshold float64) (Verdict, error)
}

func normalize(w string) string {
	return strings.ToLower(strings.TrimSpace(w))
}

// precheck rejects guesses that never need a similarity score.
func precheck(target, guess string, threshold float64) (Verdict, bool) {
	if guess == "" {
		return Verdict{ThresholdUsed: threshold, RejectionReason: ReasonEmpty}, true
	}
	if guess == target {
		return Verdict{Score: 1, ThresholdUsed: threshold, RejectionReason: ReasonSameAsTarget}, true
	}
	return Verdict{}, false
}

func thresholdOrDefault(threshold float64) float64 {
	if threshold <= 0 || threshold > 1 {
		return DefaultThreshold
	}
	return threshold
}

func judge(score, threshold float64) Verdict {
	v := Verdict{Score: score, ThresholdUsed: threshold, Valid: score >= threshold}
	if !v.Valid {
		v.RejectionReason = ReasonBelowThreshold
	}
	return v
}
