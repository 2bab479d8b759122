package llm

import (
	"context"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/docqa/backend/internal/errs"
	"github.com/docqa/backend/internal/metrics"
	"github.com/docqa/backend/pkg/circuitbreaker"
	"github.com/docqa/backend/pkg/logger"
	"github.com/docqa/backend/pkg/retry"
	"github.com/docqa/backend/pkg/utils"
)

// EmbeddingCache caches embeddings keyed by content hash. Implemented by
// the redis cache client; nil disables caching.
type EmbeddingCache interface {
	GetEmbedding(ctx context.Context, key string) ([]float32, bool, error)
	SetEmbedding(ctx context.Context, key string, embedding []float32) error
}

type Options struct {
	APIKey            string
	BaseURL           string
	Model             string
	EmbeddingModel    string
	Temperature       float32
	MaxTokens         int
	CompletionTimeout time.Duration
	EmbeddingTimeout  time.Duration
	Cache             EmbeddingCache
}

type Client struct {
	client            *openai.Client
	model             string
	embeddingModel    string
	temperature       float32
	maxTokens         int
	completionTimeout time.Duration
	embeddingTimeout  time.Duration
	cache             EmbeddingCache
	cb                *circuitbreaker.CircuitBreaker
	retryConfig       retry.Config
}

func NewClient(opts Options) *Client {
	if opts.CompletionTimeout == 0 {
		opts.CompletionTimeout = 60 * time.Second
	}
	if opts.EmbeddingTimeout == 0 {
		opts.EmbeddingTimeout = 30 * time.Second
	}

	cb := circuitbreaker.New("openai", circuitbreaker.Config{
		MaxRequests:      5,
		Interval:         time.Minute,
		Timeout:          30 * time.Second,
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Logger:           logger.GetLogger(),
	})

	retryConfig := retry.Config{
		MaxAttempts:    3,
		InitialDelay:   500 * time.Millisecond,
		MaxDelay:       5 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.1,
		Logger:         logger.GetLogger(),
	}

	logger.Info("LLM client initialized",
		zap.String("model", opts.Model),
		zap.String("embedding_model", opts.EmbeddingModel),
	)

	apiConfig := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		apiConfig.BaseURL = opts.BaseURL
	}

	return &Client{
		client:            openai.NewClientWithConfig(apiConfig),
		model:             opts.Model,
		embeddingModel:    opts.EmbeddingModel,
		temperature:       opts.Temperature,
		maxTokens:         opts.MaxTokens,
		completionTimeout: opts.CompletionTimeout,
		embeddingTimeout:  opts.EmbeddingTimeout,
		cache:             opts.Cache,
		cb:                cb,
		retryConfig:       retryConfig,
	}
}

// Complete sends a system+user prompt pair and returns the model's reply.
func (c *Client) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.completionTimeout)
	defer cancel()

	messages := []openai.ChatCompletionMessage{
		{
			Role:    openai.ChatMessageRoleSystem,
			Content: systemPrompt,
		},
		{
			Role:    openai.ChatMessageRoleUser,
			Content: userPrompt,
		},
	}

	var content string

	err := c.cb.Execute(ctx, func() error {
		return retry.Do(ctx, c.retryConfig, func() error {
			resp, err := c.client.CreateChatCompletion(
				ctx,
				openai.ChatCompletionRequest{
					Model:       c.model,
					Messages:    messages,
					Temperature: c.temperature,
					MaxTokens:   c.maxTokens,
				},
			)
			if err != nil {
				return fmt.Errorf("failed to create completion: %w", err)
			}
			if len(resp.Choices) == 0 {
				return fmt.Errorf("completion returned no choices")
			}

			metrics.LLMTokensUsed.WithLabelValues(c.model, "prompt").Add(float64(resp.Usage.PromptTokens))
			metrics.LLMTokensUsed.WithLabelValues(c.model, "completion").Add(float64(resp.Usage.CompletionTokens))

			logger.Debug("LLM completion generated",
				zap.Int("prompt_tokens", resp.Usage.PromptTokens),
				zap.Int("completion_tokens", resp.Usage.CompletionTokens),
			)

			content = resp.Choices[0].Message.Content
			return nil
		})
	})

	if err != nil {
		return "", &errs.UpstreamError{Service: "llm", Err: err}
	}

	return content, nil
}

// Embed returns the embedding vector for a single text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch embeds texts in API-sized batches, consulting the embedding
// cache first when one is configured.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, c.embeddingTimeout)
	defer cancel()

	vectors := make([][]float32, len(texts))
	missing := make([]int, 0, len(texts))

	if c.cache != nil {
		for i, text := range texts {
			cached, ok, err := c.cache.GetEmbedding(ctx, utils.HashString(text))
			if err != nil {
				logger.Warn("Embedding cache read failed", zap.Error(err))
				missing = append(missing, i)
				continue
			}
			if ok {
				vectors[i] = cached
			} else {
				missing = append(missing, i)
			}
		}
	} else {
		for i := range texts {
			missing = append(missing, i)
		}
	}

	batchSize := 100
	for start := 0; start < len(missing); start += batchSize {
		end := start + batchSize
		if end > len(missing) {
			end = len(missing)
		}

		batch := make([]string, 0, end-start)
		for _, idx := range missing[start:end] {
			batch = append(batch, texts[idx])
		}

		var data []openai.Embedding
		err := c.cb.Execute(ctx, func() error {
			return retry.Do(ctx, c.retryConfig, func() error {
				resp, err := c.client.CreateEmbeddings(
					ctx,
					openai.EmbeddingRequest{
						Input: batch,
						Model: openai.EmbeddingModel(c.embeddingModel),
					},
				)
				if err != nil {
					return fmt.Errorf("failed to generate embeddings: %w", err)
				}
				data = resp.Data
				return nil
			})
		})
		if err != nil {
			return nil, &errs.UpstreamError{Service: "embedding", Err: err}
		}

		if len(data) != len(batch) {
			return nil, &errs.UpstreamError{
				Service: "embedding",
				Err:     fmt.Errorf("embedding count mismatch: got %d, expected %d", len(data), len(batch)),
			}
		}

		for j, d := range data {
			idx := missing[start+j]
			embedding := make([]float32, len(d.Embedding))
			copy(embedding, d.Embedding)
			vectors[idx] = embedding

			if c.cache != nil {
				if err := c.cache.SetEmbedding(ctx, utils.HashString(texts[idx]), embedding); err != nil {
					logger.Warn("Embedding cache write failed", zap.Error(err))
				}
			}
		}
	}

	logger.Debug("Batch embeddings ready",
		zap.Int("total", len(texts)),
		zap.Int("embedded", len(missing)),
	)

	return vectors, nil
}
