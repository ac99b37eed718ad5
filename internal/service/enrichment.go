package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync/atomic"
	"time"

	"github.com/complexlabs/docchat/internal/retry"
	"golang.org/x/time/rate"
)

// Enrichment holds the tags and summary derived for a chunk.
type Enrichment struct {
	Tags    []string `json:"tags"`
	Summary string   `json:"summary"`
}

const (
	maxEnrichmentTags  = 5
	maxSummaryChars    = 150
	maxEnrichmentInput = 5000
)

// GenerativeClient defines the interface for calling the generative model
type GenerativeClient interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// DefaultEnrichmentRetryPolicy retries transient model failures:
// 3 attempts with delays of 17s and 34s.
var DefaultEnrichmentRetryPolicy = retry.Policy{Attempts: 3, Delay: 17 * time.Second, Backoff: 2}

// EnrichmentService derives tags and a summary for a chunk via the
// generative model. Calls share the model rate limiter and are gated by
// a process-wide daily quota; at quota the service returns the zero
// Enrichment without calling out.
type EnrichmentService struct {
	client      GenerativeClient
	limiter     *rate.Limiter
	retryPolicy retry.Policy
	dailyQuota  int64
	callCount   atomic.Int64
}

// NewEnrichmentService creates an EnrichmentService. The limiter is
// shared with the answer flow so all generative-model traffic stays
// under one requests-per-minute ceiling.
func NewEnrichmentService(client GenerativeClient, limiter *rate.Limiter, dailyQuota int) *EnrichmentService {
	return &EnrichmentService{
		client:      client,
		limiter:     limiter,
		retryPolicy: DefaultEnrichmentRetryPolicy,
		dailyQuota:  int64(dailyQuota),
	}
}

// QuotaExhausted reports whether the daily call budget has been reached.
func (s *EnrichmentService) QuotaExhausted() bool {
	return s.dailyQuota > 0 && s.callCount.Load() >= s.dailyQuota
}

// CallCount returns the number of model calls issued so far.
func (s *EnrichmentService) CallCount() int64 {
	return s.callCount.Load()
}

// Enrich derives up to 5 tags and a one-sentence summary for the chunk.
// A malformed model response degrades to the zero value without error;
// other failures are retried per the policy and then propagated.
func (s *EnrichmentService) Enrich(ctx context.Context, chunkText string) (Enrichment, error) {
	if s.QuotaExhausted() {
		return Enrichment{Tags: []string{}}, nil
	}

	prompt := buildEnrichmentPrompt(chunkText)

	var raw string
	err := s.retryPolicy.Do(ctx, func(ctx context.Context) error {
		if err := s.limiter.Wait(ctx); err != nil {
			return err
		}

		n := s.callCount.Add(1)
		log.Printf("enrichment: sending model request #%d", n)

		var genErr error
		raw, genErr = s.client.Generate(ctx, prompt)
		return genErr
	})
	if err != nil {
		return Enrichment{}, fmt.Errorf("enrichment failed: %w", err)
	}

	enrichment, ok := parseEnrichment(raw)
	if !ok {
		log.Printf("enrichment: model response was not valid JSON, using empty result")
		return Enrichment{Tags: []string{}}, nil
	}

	return enrichment, nil
}

func buildEnrichmentPrompt(chunkText string) string {
	if len(chunkText) > maxEnrichmentInput {
		chunkText = chunkText[:maxEnrichmentInput]
	}

	return fmt.Sprintf(`You are an intelligent document assistant. Given the following content chunk, extract 3-5 relevant tags (keywords) and a concise summary (max 50 words).

Content:
%s

Respond in JSON format:
{
    "tags": ["tag1", "tag2"],
    "summary": "A single, concise sentence summarizing the content in less than 50 words."
}`, chunkText)
}

// parseEnrichment decodes the model's JSON reply, tolerating markdown
// code fences around the payload.
func parseEnrichment(raw string) (Enrichment, bool) {
	text := strings.TrimSpace(raw)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	var enrichment Enrichment
	if err := json.Unmarshal([]byte(text), &enrichment); err != nil {
		return Enrichment{}, false
	}

	if len(enrichment.Tags) > maxEnrichmentTags {
		enrichment.Tags = enrichment.Tags[:maxEnrichmentTags]
	}
	if enrichment.Tags == nil {
		enrichment.Tags = []string{}
	}
	enrichment.Summary = trimSummary(enrichment.Summary)

	return enrichment, true
}

// trimSummary keeps the first sentence of the summary, or truncates to
// the character ceiling when the model returned no sentence boundary.
func trimSummary(summary string) string {
	if idx := strings.Index(summary, "."); idx >= 0 {
		return strings.TrimSpace(summary[:idx]) + "."
	}
	if len(summary) > maxSummaryChars {
		return summary[:maxSummaryChars]
	}
	return summary
}
