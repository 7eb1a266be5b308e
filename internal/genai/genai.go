// Package genai provides GenAI-backed operations for DocPipe using the
// OpenAI API: interpreting prompt configurations into execution plans,
// filling document templates, suggesting answers, and a secondary
// best-effort review of submitted answers.
package genai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strings"

	"github.com/docpipe/docpipe/internal/models"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

// Error variables for better error handling and testability
var (
	ErrNoAPIKey          = errors.New("OPENAI_API_KEY not set")
	ErrNoChoicesReturned = errors.New("no choices returned")
	ErrNotJSON           = errors.New("model output is not valid JSON")
)

// ClientInterface defines the GenAI operations consumed by the rest of the
// service. The API layer depends on this interface so tests can substitute
// a double.
type ClientInterface interface {
	InterpretPlan(ctx context.Context, promptConfig, template json.RawMessage) (*models.ExecutionPlan, error)
	FillTemplate(ctx context.Context, template json.RawMessage, collected map[string]any) (json.RawMessage, error)
	SuggestAnswer(ctx context.Context, question models.QuestionView, collected map[string]any) (string, error)
	ReviewAnswers(ctx context.Context, rules models.ValidationRuleSet, answers, collected map[string]any, inScope []models.QuestionView) (*models.ValidationResult, error)
}

// chatService defines the minimal interface for chat completions.
type chatService interface {
	New(ctx context.Context, body openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
}

// Opts holds configuration options for the GenAI client.
type Opts struct {
	APIKey  string
	BaseURL string
	Model   openai.ChatModel
}

// Option defines a configuration option for the GenAI client.
type Option func(*Opts)

// WithAPIKey sets the OpenAI API key.
func WithAPIKey(key string) Option {
	return func(o *Opts) {
		o.APIKey = key
	}
}

// WithBaseURL sets a custom API base URL (e.g. an Azure-compatible proxy).
func WithBaseURL(url string) Option {
	return func(o *Opts) {
		o.BaseURL = url
	}
}

// WithModel overrides the default chat model.
func WithModel(model openai.ChatModel) Option {
	return func(o *Opts) {
		o.Model = model
	}
}

// Client wraps the OpenAI chat completion service.
type Client struct {
	chat  chatService
	model openai.ChatModel
}

// NewClient initializes a GenAI client. The API key is taken from options
// or the OPENAI_API_KEY environment variable.
func NewClient(opts ...Option) (*Client, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.APIKey == "" {
		return nil, ErrNoAPIKey
	}
	if cfg.Model == "" {
		cfg.Model = openai.ChatModelGPT4o
	}

	requestOpts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		requestOpts = append(requestOpts, option.WithBaseURL(cfg.BaseURL))
	}
	cli := openai.NewClient(requestOpts...)
	slog.Debug("genai.NewClient: client created", "model", cfg.Model, "base_url_set", cfg.BaseURL != "")
	return &Client{chat: &cli.Chat.Completions, model: cfg.Model}, nil
}

// InterpretPlan asks the model to analyze an arbitrary prompt configuration
// and convert it into the standardized execution plan schema. The returned
// plan has passed ingestion invariants; any violation fails the call.
func (c *Client) InterpretPlan(ctx context.Context, promptConfig, template json.RawMessage) (*models.ExecutionPlan, error) {
	prompt := buildAnalysisPrompt(promptConfig, template)

	content, err := c.completeJSON(ctx, prompt, 0.1)
	if err != nil {
		return nil, fmt.Errorf("plan interpretation failed: %w", err)
	}

	var plan models.ExecutionPlan
	if err := json.Unmarshal(content, &plan); err != nil {
		slog.Error("genai.InterpretPlan: failed to decode execution plan", "error", err)
		return nil, fmt.Errorf("failed to decode execution plan: %w", err)
	}
	if err := plan.Validate(); err != nil {
		slog.Error("genai.InterpretPlan: interpreted plan failed invariants", "error", err)
		return nil, err
	}
	slog.Info("genai.InterpretPlan: execution plan interpreted",
		"base_questions", len(plan.QuestionSequence),
		"conditional_questions", len(plan.ConditionalQuestions))
	return &plan, nil
}

// FillTemplate asks the model to fill the template tree with collected
// data. When the model output cannot be parsed as JSON, it falls back to
// literal [key] placeholder substitution over the raw template.
func (c *Client) FillTemplate(ctx context.Context, template json.RawMessage, collected map[string]any) (json.RawMessage, error) {
	prompt := buildFillPrompt(template, collected)

	content, err := c.complete(ctx, prompt, 0.3)
	if err != nil {
		return nil, fmt.Errorf("template filling failed: %w", err)
	}

	if filled, err := extractJSON([]byte(content)); err == nil {
		return filled, nil
	}

	slog.Warn("genai.FillTemplate: model output not parseable, falling back to literal substitution")
	return substitutePlaceholders(template, collected)
}

// SuggestAnswer returns a suggested value for the question based on the
// data collected so far, or "" when the model has no confident suggestion.
// Failures here are expected to be swallowed by callers.
func (c *Client) SuggestAnswer(ctx context.Context, question models.QuestionView, collected map[string]any) (string, error) {
	if len(collected) == 0 {
		return "", nil
	}
	prompt, err := buildSuggestionPrompt(question, collected)
	if err != nil {
		return "", err
	}

	content, err := c.completeJSON(ctx, prompt, 0.3)
	if err != nil {
		return "", err
	}

	var out struct {
		Suggestion *string `json:"suggestion"`
		Reasoning  string  `json:"reasoning"`
		Confidence float64 `json:"confidence"`
	}
	if err := json.Unmarshal(content, &out); err != nil {
		return "", fmt.Errorf("failed to decode suggestion: %w", err)
	}
	if out.Suggestion == nil || out.Confidence <= 0.5 {
		return "", nil
	}
	return *out.Suggestion, nil
}

// ReviewAnswers runs the secondary semantic validation pass over the
// submitted answers, including cross-field rules. Findings are advisory;
// the engine demotes anything blocking to a warning.
func (c *Client) ReviewAnswers(ctx context.Context, rules models.ValidationRuleSet, answers, collected map[string]any, inScope []models.QuestionView) (*models.ValidationResult, error) {
	prompt, err := buildReviewPrompt(rules, answers, collected, inScope)
	if err != nil {
		return nil, err
	}

	content, err := c.completeJSON(ctx, prompt, 0.1)
	if err != nil {
		return nil, err
	}

	var result models.ValidationResult
	if err := json.Unmarshal(content, &result); err != nil {
		return nil, fmt.Errorf("failed to decode review result: %w", err)
	}
	return &result, nil
}

// complete runs a single-user-message chat completion and returns the text.
func (c *Client) complete(ctx context.Context, prompt string, temperature float64) (string, error) {
	resp, err := c.chat.New(ctx, openai.ChatCompletionNewParams{
		Model:       c.model,
		Messages:    []openai.ChatCompletionMessageParamUnion{openai.UserMessage(prompt)},
		Temperature: openai.Float(temperature),
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", ErrNoChoicesReturned
	}
	return resp.Choices[0].Message.Content, nil
}

// completeJSON runs a chat completion in JSON mode and returns the raw
// JSON content, tolerating markdown code fences around it.
func (c *Client) completeJSON(ctx context.Context, prompt string, temperature float64) (json.RawMessage, error) {
	resp, err := c.chat.New(ctx, openai.ChatCompletionNewParams{
		Model:       c.model,
		Messages:    []openai.ChatCompletionMessageParamUnion{openai.UserMessage(prompt)},
		Temperature: openai.Float(temperature),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		},
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, ErrNoChoicesReturned
	}
	return extractJSON([]byte(resp.Choices[0].Message.Content))
}

var fencedJSONPattern = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*\\})\\s*```")

// extractJSON returns the JSON object from model output, unwrapping a
// markdown code fence when present.
func extractJSON(content []byte) (json.RawMessage, error) {
	trimmed := []byte(strings.TrimSpace(string(content)))
	if json.Valid(trimmed) {
		return trimmed, nil
	}
	if m := fencedJSONPattern.FindSubmatch(trimmed); m != nil && json.Valid(m[1]) {
		return m[1], nil
	}
	return nil, ErrNotJSON
}

// substitutePlaceholders replaces literal [key] markers in the raw
// template with collected values. Last-resort path when the model output
// is unusable; the result must still be valid JSON.
func substitutePlaceholders(template json.RawMessage, collected map[string]any) (json.RawMessage, error) {
	out := string(template)
	for key, value := range collected {
		if value == nil {
			continue
		}
		encoded, err := json.Marshal(fmt.Sprintf("%v", value))
		if err != nil {
			continue
		}
		// Strip the quotes: the placeholder sits inside a JSON string.
		replacement := strings.Trim(string(encoded), `"`)
		out = strings.ReplaceAll(out, "["+key+"]", replacement)
	}
	if !json.Valid([]byte(out)) {
		return nil, ErrNotJSON
	}
	return json.RawMessage(out), nil
}
