package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/civicpulse/civicpulse/pkg/apperr"
	openai "github.com/sashabaranov/go-openai"
)

const (
	// attemptTimeout bounds one LLM round trip.
	attemptTimeout = 30 * time.Second

	// backoffBase and backoffMax bound the single transient retry.
	backoffBase = 500 * time.Millisecond
	backoffMax  = 2 * time.Second
)

// repairHint is appended to the prompt on the second JSON attempt.
const repairHint = "\n\nIMPORTANT: Your previous response was not valid JSON. " +
	"Return ONLY valid JSON with no additional text, markdown, or code blocks."

// OpenAIClient implements Client against any OpenAI-compatible endpoint.
type OpenAIClient struct {
	api            *openai.Client
	model          string
	embeddingModel string

	// sleep is swapped out in tests to avoid real backoff waits.
	sleep func(ctx context.Context, d time.Duration) error
}

// OpenAIConfig configures the client. BaseURL may point at any
// OpenAI-compatible service.
type OpenAIConfig struct {
	APIKey         string
	BaseURL        string
	Model          string
	EmbeddingModel string
}

// NewOpenAIClient creates a client for an OpenAI-compatible endpoint.
func NewOpenAIClient(cfg OpenAIConfig) (*OpenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, apperr.New(apperr.KindConfig, "llm api key is empty")
	}
	apiCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		apiCfg.BaseURL = cfg.BaseURL
	}
	return &OpenAIClient{
		api:            openai.NewClientWithConfig(apiCfg),
		model:          cfg.Model,
		embeddingModel: cfg.EmbeddingModel,
		sleep:          sleepCtx,
	}, nil
}

// GenerateText returns a single completion for prompt.
func (c *OpenAIClient) GenerateText(ctx context.Context, prompt string) (string, error) {
	return c.complete(ctx, prompt)
}

// GenerateJSON implements the retry-with-repair contract: one mechanical
// decode (with jsonrepair), then one LLM retry with a repair hint, then
// LLMParseError. There is deliberately no silent fallback.
func (c *OpenAIClient) GenerateJSON(ctx context.Context, prompt string, out any) error {
	text, err := c.complete(ctx, prompt)
	if err != nil {
		return err
	}
	if err := decodeJSON(text, out); err == nil {
		return nil
	}

	slog.Warn("LLM returned malformed JSON, retrying with repair hint")
	text, err = c.complete(ctx, prompt+repairHint)
	if err != nil {
		return err
	}
	if err := decodeJSON(text, out); err != nil {
		return apperr.Wrap(apperr.KindLLMParse, err, "llm returned non-JSON after repair retry")
	}
	return nil
}

// GenerateSearchKeywords produces a short search phrase for cluster
// label matching. Failures propagate; the cluster predictor owns the
// raw-question fallback.
func (c *OpenAIClient) GenerateSearchKeywords(ctx context.Context, question string) (string, error) {
	prompt := fmt.Sprintf(`You are helping prepare a search query for matching a user message against municipal service request cluster labels (e.g. "Facility Booking", "City Hall Room Booking", "Parks", "Roads").

User message: %s

Output a single short phrase (5-15 words) that captures the key concepts for semantic search. Use terms that would match cluster labels: facility, booking, city hall, room, parks, roads, complaints, reservations, etc. No quotes or explanation - only the search phrase.`, question)

	text, err := c.complete(ctx, prompt)
	if err != nil {
		return "", err
	}
	return strings.Trim(strings.TrimSpace(text), `"'`), nil
}

// Embed returns the embedding for text via the embeddings endpoint.
func (c *OpenAIClient) Embed(ctx context.Context, text string) ([]float32, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, attemptTimeout)
	defer cancel()

	resp, err := c.api.CreateEmbeddings(attemptCtx, openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(c.embeddingModel),
		Input: []string{text},
	})
	if err != nil {
		return nil, classify(err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("embeddings response contained no data")
	}
	return resp.Data[0].Embedding, nil
}

// complete performs one chat completion with a single transient retry
// under exponential backoff.
func (c *OpenAIClient) complete(ctx context.Context, prompt string) (string, error) {
	var lastErr error
	backoff := backoffBase

	for attempt := 0; attempt < 2; attempt++ {
		if attempt > 0 {
			slog.Warn("Transient LLM error, retrying", "backoff", backoff, "error", lastErr)
			if err := c.sleep(ctx, backoff); err != nil {
				return "", err
			}
			backoff = min(backoff*2, backoffMax)
		}

		attemptCtx, cancel := context.WithTimeout(ctx, attemptTimeout)
		resp, err := c.api.CreateChatCompletion(attemptCtx, openai.ChatCompletionRequest{
			Model: c.model,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleUser, Content: prompt},
			},
		})
		cancel()

		if err == nil {
			if len(resp.Choices) == 0 {
				return "", fmt.Errorf("llm response contained no choices")
			}
			return strings.TrimSpace(resp.Choices[0].Message.Content), nil
		}

		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if !isTransient(err) {
			return "", fmt.Errorf("llm call failed: %w", err)
		}
		lastErr = err
	}

	return "", apperr.Wrap(apperr.KindLLMTransient, lastErr, "llm unavailable after retry")
}

// classify wraps transient vendor errors in the taxonomy; other errors
// pass through.
func classify(err error) error {
	if isTransient(err) {
		return apperr.Wrap(apperr.KindLLMTransient, err, "llm transient failure")
	}
	return err
}

// isTransient reports whether an error is worth one retry: rate limits,
// server-side failures, and network timeouts.
func isTransient(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == 429 || apiErr.HTTPStatusCode >= 500
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
