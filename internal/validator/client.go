package validator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/avvvet/wordclash-services/internal/cache"
	log "github.com/sirupsen/logrus"
)

// ErrUnknownWord is returned by ComputeSimilarity when a word is outside the model's vocabulary.
var ErrUnknownWord = errors.New("validator: word not in vocabulary")

// Client calls the external similarity service.
type Client struct {
	baseURL    string
	httpClient *http.Client
	cache      cache.Cache
	cacheTTL   time.Duration
}

// NewClient builds a Client. The cache is optional.
func NewClient(baseURL string, c cache.Cache) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
		cache:    c,
		cacheTTL: 24 * time.Hour,
	}
}

type similarityRequest struct {
	Word1    string `json:"word1"`
	Word2    string `json:"word2"`
	Language string `json:"language"`
}

type similarityResponse struct {
	Score float64 `json:"score"`
	Known bool    `json:"known"`
}

// pair keys are order-independent; similarity is symmetric
func pairKey(word1, word2, language string) string {
	if word2 < word1 {
		word1, word2 = word2, word1
	}
	return "sim:" + cache.CacheKey(word1+"|"+word2, language)
}

func (c *Client) ComputeSimilarity(ctx context.Context, word1, word2, language string) (float64, error) {
	word1, word2 = normalize(word1), normalize(word2)
	key := pairKey(word1, word2, language)

	if c.cache != nil {
		if raw, err := c.cache.Get(ctx, key); err == nil {
			if raw == "unknown" {
				return 0, ErrUnknownWord
			}
			if score, err := strconv.ParseFloat(raw, 64); err == nil {
				return score, nil
			}
		} else if !errors.Is(err, cache.ErrMiss) {
			// cache is an optimization only
			log.Debugf("similarity cache read %s: %v", key, err)
		}
	}

	score, known, err := c.callSimilarity(ctx, word1, word2, language)
	if err != nil {
		return 0, err
	}

	if c.cache != nil {
		val := strconv.FormatFloat(score, 'f', -1, 64)
		if !known {
			val = "unknown"
		}
		if err := c.cache.Set(ctx, key, val, c.cacheTTL); err != nil {
			log.Debugf("similarity cache write %s: %v", key, err)
		}
	}

	if !known {
		return 0, ErrUnknownWord
	}
	return score, nil
}

func (c *Client) ValidateSimilarity(ctx context.Context, target, guess, language string, threshold float64) (Verdict, error) {
	target, guess = normalize(target), normalize(guess)
	threshold = thresholdOrDefault(threshold)

	if v, done := precheck(target, guess, threshold); done {
		return v, nil
	}

	score, err := c.ComputeSimilarity(ctx, target, guess, language)
	if errors.Is(err, ErrUnknownWord) {
		return Verdict{ThresholdUsed: threshold, RejectionReason: ReasonUnknownWord}, nil
	}
	if err != nil {
		return Verdict{}, err
	}
	return judge(score, threshold), nil
}

func (c *Client) callSimilarity(ctx context.Context, word1, word2, language string) (float64, bool, error) {
	reqBody, err := json.Marshal(similarityRequest{Word1: word1, Word2: word2, Language: language})
	if err != nil {
		return 0, false, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/similarity", bytes.NewBuffer(reqBody))
	if err != nil {
		return 0, false, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, false, fmt.Errorf("similarity service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return 0, false, nil
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return 0, false, fmt.Errorf("similarity service returned status %d: %s", resp.StatusCode, string(body))
	}

	var result similarityResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return 0, false, fmt.Errorf("decode similarity response: %w", err)
	}
	if result.Score < 0 {
		result.Score = 0
	}
	if result.Score > 1 {
		result.Score = 1
	}
	return result.Score, result.Known, nil
}
