package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/complexlabs/docchat/internal/retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

// MockGenerativeClient is a mock implementation of GenerativeClient
type MockGenerativeClient struct {
	mock.Mock
}

func (m *MockGenerativeClient) Generate(ctx context.Context, prompt string) (string, error) {
	args := m.Called(ctx, prompt)
	return args.String(0), args.Error(1)
}

func newTestEnrichmentService(client GenerativeClient, quota int) *EnrichmentService {
	svc := NewEnrichmentService(client, rate.NewLimiter(rate.Inf, 1), quota)
	svc.retryPolicy = retry.Policy{Attempts: 3, Delay: time.Millisecond, Backoff: 2}
	return svc
}

func TestEnrichmentService_Enrich_Success(t *testing.T) {
	mockClient := new(MockGenerativeClient)
	svc := newTestEnrichmentService(mockClient, 250)

	mockClient.On("Generate", mock.Anything, mock.Anything).
		Return(`{"tags": ["finance", "q4"], "summary": "Revenue grew in the fourth quarter. Extra detail."}`, nil)

	enrichment, err := svc.Enrich(context.Background(), "Revenue grew 12% in Q4.")

	require.NoError(t, err)
	assert.Equal(t, []string{"finance", "q4"}, enrichment.Tags)
	assert.Equal(t, "Revenue grew in the fourth quarter.", enrichment.Summary)
	assert.Equal(t, int64(1), svc.CallCount())
}

func TestEnrichmentService_Enrich_StripsCodeFences(t *testing.T) {
	mockClient := new(MockGenerativeClient)
	svc := newTestEnrichmentService(mockClient, 250)

	mockClient.On("Generate", mock.Anything, mock.Anything).
		Return("```json\n{\"tags\": [\"a\"], \"summary\": \"One line.\"}\n```", nil)

	enrichment, err := svc.Enrich(context.Background(), "text")

	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, enrichment.Tags)
}

func TestEnrichmentService_Enrich_InvalidJSONDegrades(t *testing.T) {
	mockClient := new(MockGenerativeClient)
	svc := newTestEnrichmentService(mockClient, 250)

	mockClient.On("Generate", mock.Anything, mock.Anything).
		Return("Sorry, I cannot help with that.", nil)

	enrichment, err := svc.Enrich(context.Background(), "text")

	require.NoError(t, err, "malformed JSON must not surface as an error")
	assert.Empty(t, enrichment.Tags)
	assert.Empty(t, enrichment.Summary)
}

func TestEnrichmentService_Enrich_RetriesThenPropagates(t *testing.T) {
	mockClient := new(MockGenerativeClient)
	svc := newTestEnrichmentService(mockClient, 250)

	mockClient.On("Generate", mock.Anything, mock.Anything).
		Return("", errors.New("model unavailable"))

	_, err := svc.Enrich(context.Background(), "text")

	assert.Error(t, err)
	mockClient.AssertNumberOfCalls(t, "Generate", 3)
}

func TestEnrichmentService_Enrich_QuotaGate(t *testing.T) {
	mockClient := new(MockGenerativeClient)
	svc := newTestEnrichmentService(mockClient, 2)

	mockClient.On("Generate", mock.Anything, mock.Anything).
		Return(`{"tags": ["t"], "summary": "S."}`, nil)

	for i := 0; i < 2; i++ {
		_, err := svc.Enrich(context.Background(), "text")
		require.NoError(t, err)
	}
	assert.True(t, svc.QuotaExhausted())

	// At quota: no external call, identical empty result every time.
	for i := 0; i < 3; i++ {
		enrichment, err := svc.Enrich(context.Background(), "text")
		require.NoError(t, err)
		assert.Empty(t, enrichment.Tags)
		assert.Empty(t, enrichment.Summary)
	}
	mockClient.AssertNumberOfCalls(t, "Generate", 2)
}

func TestEnrichmentService_Enrich_TruncatesTags(t *testing.T) {
	mockClient := new(MockGenerativeClient)
	svc := newTestEnrichmentService(mockClient, 250)

	mockClient.On("Generate", mock.Anything, mock.Anything).
		Return(`{"tags": ["a","b","c","d","e","f","g"], "summary": "S."}`, nil)

	enrichment, err := svc.Enrich(context.Background(), "text")

	require.NoError(t, err)
	assert.Len(t, enrichment.Tags, 5)
}

func TestEnrichmentService_Enrich_TruncatesPromptInput(t *testing.T) {
	mockClient := new(MockGenerativeClient)
	svc := newTestEnrichmentService(mockClient, 250)

	var captured string
	mockClient.On("Generate", mock.Anything, mock.MatchedBy(func(p string) bool {
		captured = p
		return true
	})).Return(`{"tags": [], "summary": ""}`, nil)

	long := make([]byte, 20000)
	for i := range long {
		long[i] = 'x'
	}
	_, err := svc.Enrich(context.Background(), string(long))

	require.NoError(t, err)
	assert.Less(t, len(captured), 6000, "chunk input is truncated before prompting")
}

func TestTrimSummary(t *testing.T) {
	assert.Equal(t, "First sentence.", trimSummary("First sentence. Second sentence."))
	assert.Equal(t, "no boundary", trimSummary("no boundary"))

	long := make([]byte, 300)
	for i := range long {
		long[i] = 'a'
	}
	assert.Len(t, trimSummary(string(long)), maxSummaryChars)
}
