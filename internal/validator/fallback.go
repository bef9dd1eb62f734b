package validator

import (
	"context"
	"errors"

	log "github.com/sirupsen/logrus"
)

// Fallback grades with Primary and drops to the heuristic when Primary fails.
// A caller-cancelled context is returned as an error rather than graded.
type Fallback struct {
	Primary Validator
	Backup  Validator
	// OnFallback is called each time the backup grades a guess.
	OnFallback func(err error)
}

func NewFallback(primary Validator) *Fallback {
	return &Fallback{Primary: primary, Backup: Heuristic{}}
}

func (f *Fallback) ComputeSimilarity(ctx context.Context, word1, word2, language string) (float64, error) {
	score, err := f.Primary.ComputeSimilarity(ctx, word1, word2, language)
	if err == nil || errors.Is(err, ErrUnknownWord) || ctx.Err() != nil {
		return score, err
	}
	f.fellBack(err)
	return f.Backup.ComputeSimilarity(ctx, word1, word2, language)
}

func (f *Fallback) ValidateSimilarity(ctx context.Context, target, guess, language string, threshold float64) (Verdict, error) {
	v, err := f.Primary.ValidateSimilarity(ctx, target, guess, language, threshold)
	if err == nil || ctx.Err() != nil {
		return v, err
	}
	f.fellBack(err)
	return f.Backup.ValidateSimilarity(ctx, target, guess, language, threshold)
}

func (f *Fallback) fellBack(err error) {
	log.Warnf("similarity service unavailable, grading with heuristic: %v", err)
	if f.OnFallback != nil {
		f.OnFallback(err)
	}
}
