package validator

import "context"

// Heuristic scores words by character-bigram overlap (Sørensen–Dice).
// It knows nothing about meaning and only stands in when the model is unreachable.
type Heuristic struct{}

func bigrams(w string) map[string]int {
	r := []rune(" " + w + " ")
	out := make(map[string]int, len(r))
	for i := 0; i+1 < len(r); i++ {
		out[string(r[i:i+2])]++
	}
	return out
}

// Similarity returns the Dice coefficient of the two words' bigram multisets.
func Similarity(word1, word2 string) float64 {
	a, b := bigrams(normalize(word1)), bigrams(normalize(word2))
	total, shared := 0, 0
	for g, n := range a {
		total += n
		if m, ok := b[g]; ok {
			if m < n {
				shared += m
			} else {
				shared += n
			}
		}
	}
	for _, n := range b {
		total += n
	}
	if total == 0 {
		return 0
	}
	return 2 * float64(shared) / float64(total)
}

func (Heuristic) ComputeSimilarity(_ context.Context, word1, word2, _ string) (float64, error) {
	return Similarity(word1, word2), nil
}

func (Heuristic) ValidateSimilarity(_ context.Context, target, guess, _ string, threshold float64) (Verdict, error) {
	target, guess = normalize(target), normalize(guess)
	threshold = thresholdOrDefault(threshold)
	if v, done := precheck(target, guess, threshold); done {
		v.Heuristic = true
		return v, nil
	}
	v := judge(Similarity(target, guess), threshold)
	v.Heuristic = true
	return v, nil
}
