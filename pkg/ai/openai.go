package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	draftDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "quizdeck",
		Subsystem: "ai",
		Name:      "draft_duration_seconds",
		Help:      "Duration of question drafting requests",
	}, []string{"model"})

	draftFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "quizdeck",
		Subsystem: "ai",
		Name:      "draft_failures_total",
		Help:      "Number of question drafting failures",
	}, []string{"model"})
)

// OpenAIConfig defines configuration options for the OpenAI drafter.
type OpenAIConfig struct {
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float32
	Logger      zerolog.Logger
}

// OpenAIDrafter implements Drafter against the OpenAI chat completion API.
type OpenAIDrafter struct {
	client *openai.Client
	cfg    OpenAIConfig
	tracer trace.Tracer
	logger zerolog.Logger
}

// NewOpenAIDrafter builds a new drafter using the provided configuration.
func NewOpenAIDrafter(cfg OpenAIConfig) (*OpenAIDrafter, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai api key is required")
	}

	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 1024
	}

	logger := cfg.Logger
	if logger.GetLevel() == zerolog.Disabled {
		logger = zerolog.Nop()
	}

	return &OpenAIDrafter{
		client: openai.NewClientWithConfig(openai.DefaultConfig(cfg.APIKey)),
		cfg:    cfg,
		tracer: otel.Tracer("github.com/quizdeck/quizdeck-api/pkg/ai/openai"),
		logger: logger,
	}, nil
}

const draftSystemPrompt = `You draft multiple-choice quiz questions. Respond with a JSON object:
{"questions":[{"kind":"single|multiple|truefalse","text":"...","options":{"A":"...","B":"..."},"correct_keys":["A"]}]}
Return only JSON, no prose.`

// Draft asks the model for question proposals and parses the JSON response.
func (d *OpenAIDrafter) Draft(parent context.Context, input DraftInput) ([]DraftQuestion, error) {
	ctx, span := d.tracer.Start(parent, "openai.draft", trace.WithAttributes(
		attribute.String("model", d.cfg.Model),
		attribute.String("topic", input.Topic),
	))
	defer span.End()

	count := input.Count
	if count <= 0 {
		count = 3
	}

	started := time.Now()
	resp, err := d.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       d.cfg.Model,
		MaxTokens:   d.cfg.MaxTokens,
		Temperature: d.cfg.Temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: draftSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: fmt.Sprintf("Draft %d questions about: %s", count, input.Topic)},
		},
	})
	draftDuration.WithLabelValues(d.cfg.Model).Observe(time.Since(started).Seconds())
	if err != nil {
		draftFailures.WithLabelValues(d.cfg.Model).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "completion_failed")
		return nil, fmt.Errorf("openai completion: %w", err)
	}

	if len(resp.Choices) == 0 {
		draftFailures.WithLabelValues(d.cfg.Model).Inc()
		return nil, fmt.Errorf("openai returned no choices")
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")

	var parsed struct {
		Questions []DraftQuestion `json:"questions"`
	}
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		draftFailures.WithLabelValues(d.cfg.Model).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "parse_failed")
		return nil, fmt.Errorf("parse draft response: %w", err)
	}

	d.logger.Info().Int("questions", len(parsed.Questions)).Msg("question drafts generated")
	return parsed.Questions, nil
}
