package classify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/cleancity/cleancity/internal/config"
)

const visionSystemPrompt = `You review photos submitted to a municipal waste reporting service.
Decide whether the photo shows waste (litter, garbage piles, dumped material).
Respond with a single JSON object: {"label": "Waste" or "Clean", "confidence": 0.0-1.0}.`

// OpenAIClassifier is a secondary classifier backed by a vision chat model.
// It is wired in as a fallback for when the primary model service is down.
type OpenAIClassifier struct {
	client *openai.Client
	model  string
	logger *slog.Logger
}

// NewOpenAIClassifier returns a vision classifier when an API key is
// configured, or nil when no fallback is set up.
func NewOpenAIClassifier(cfg config.ClassifierConfig, logger *slog.Logger) *OpenAIClassifier {
	if cfg.OpenAIAPIKey == "" {
		return nil
	}

	model := cfg.OpenAIModel
	if model == "" {
		model = openai.GPT4oMini
	}

	return &OpenAIClassifier{
		client: openai.NewClient(cfg.OpenAIAPIKey),
		model:  model,
		logger: logger,
	}
}

// Classify sends the image to the vision model and parses its JSON verdict.
func (c *OpenAIClassifier) Classify(ctx context.Context, imageBase64 string) (Result, error) {
	request := openai.ChatCompletionRequest{
		Model:     c.model,
		MaxTokens: 100,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: visionSystemPrompt,
			},
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL:    "data:image/jpeg;base64," + imageBase64,
							Detail: openai.ImageURLDetailLow,
						},
					},
				},
			},
		},
	}

	resp, err := c.client.CreateChatCompletion(ctx, request)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return Result{}, ErrTimeout
		}
		return Result{}, fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	}

	if len(resp.Choices) == 0 {
		return Result{}, ErrInvalidUpstreamResponse
	}

	var verdict struct {
		Label      string  `json:"label"`
		Confidence float64 `json:"confidence"`
	}
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if err := json.Unmarshal([]byte(content), &verdict); err != nil || verdict.Label == "" {
		return Result{}, ErrInvalidUpstreamResponse
	}

	return Result{
		Label:        verdict.Label,
		Confidence:   verdict.Confidence,
		ModelVersion: c.model,
	}, nil
}

// WithFallback chains a secondary classifier behind the primary one. The
// fallback runs only when the primary reports the service unavailable; any
// other error surfaces directly.
func WithFallback(primary, fallback Classifier, logger *slog.Logger) Classifier {
	if fallback == nil {
		return primary
	}
	return &fallbackClassifier{primary: primary, fallback: fallback, logger: logger}
}

type fallbackClassifier struct {
	primary  Classifier
	fallback Classifier
	logger   *slog.Logger
}

func (f *fallbackClassifier) Classify(ctx context.Context, imageBase64 string) (Result, error) {
	result, err := f.primary.Classify(ctx, imageBase64)
	if err == nil {
		return result, nil
	}

	if !errors.Is(err, ErrServiceUnavailable) {
		return Result{}, err
	}

	f.logger.Warn("primary classifier unavailable, using fallback", "error", err)
	return f.fallback.Classify(ctx, imageBase64)
}

// Health delegates to the primary classifier's probe when it has one.
func (f *fallbackClassifier) Health(ctx context.Context) (HealthStatus, error) {
	if hc, ok := f.primary.(HealthChecker); ok {
		return hc.Health(ctx)
	}
	return HealthStatus{Reachable: true}, nil
}
