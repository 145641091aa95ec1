package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/teilomillet/gollm"

	"autoloop/loop"
)

// Client is a gollm-backed model collaborator implementing loop.ModelClient.
type Client struct {
	provider string
	model    string
	system   string
	llm      gollm.LLM
	policy   RetryPolicy
}

// Option configures a Client.
type Option func(*clientConfig)

type clientConfig struct {
	apiKey      string
	model       string
	system      string
	maxTokens   int
	temperature float64
	policy      RetryPolicy
	extraOpts   []gollm.ConfigOption
}

// WithAPIKey sets the API key. When empty, gollm reads it from the
// provider's environment variable.
func WithAPIKey(key string) Option {
	return func(c *clientConfig) { c.apiKey = key }
}

// WithModel sets the model identifier.
func WithModel(model string) Option {
	return func(c *clientConfig) { c.model = model }
}

// WithSystemPrompt sets the system prompt sent with every request.
func WithSystemPrompt(system string) Option {
	return func(c *clientConfig) { c.system = system }
}

// WithMaxTokens sets the response token limit.
func WithMaxTokens(n int) Option {
	return func(c *clientConfig) { c.maxTokens = n }
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) Option {
	return func(c *clientConfig) { c.temperature = t }
}

// WithRetryPolicy overrides the default retry policy.
func WithRetryPolicy(policy RetryPolicy) Option {
	return func(c *clientConfig) { c.policy = policy }
}

// WithGollmOptions adds extra gollm configuration options.
func WithGollmOptions(opts ...gollm.ConfigOption) Option {
	return func(c *clientConfig) { c.extraOpts = append(c.extraOpts, opts...) }
}

// defaultModels are fallbacks when no model is configured.
var defaultModels = map[string]string{
	"openai":    "gpt-4o-mini",
	"anthropic": "claude-sonnet-4-5-20250514",
}

// New creates a Client for the given provider ("openai", "anthropic", or any
// other provider gollm supports).
func New(provider string, opts ...Option) (*Client, error) {
	cfg := &clientConfig{
		maxTokens:   4096,
		temperature: 0.7,
		policy:      DefaultRetryPolicy(),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	model := cfg.model
	if model == "" {
		model = defaultModels[provider]
		if model == "" {
			model = defaultModels["openai"]
		}
	}

	gollmOpts := []gollm.ConfigOption{
		gollm.SetProvider(provider),
		gollm.SetModel(model),
		gollm.SetMaxTokens(cfg.maxTokens),
		gollm.SetTemperature(cfg.temperature),
		gollm.SetMaxRetries(0), // retries are handled here
		gollm.SetLogLevel(gollm.LogLevelWarn),
	}
	if cfg.apiKey != "" {
		gollmOpts = append(gollmOpts, gollm.SetAPIKey(cfg.apiKey))
	}
	gollmOpts = append(gollmOpts, cfg.extraOpts...)

	llmInstance, err := gollm.NewLLM(gollmOpts...)
	if err != nil {
		return nil, fmt.Errorf("create %s client: %w", provider, err)
	}

	return &Client{
		provider: provider,
		model:    model,
		system:   cfg.system,
		llm:      llmInstance,
		policy:   cfg.policy,
	}, nil
}

// NewFromLLM wraps an existing gollm.LLM instance.
func NewFromLLM(provider string, llmInstance gollm.LLM, opts ...Option) *Client {
	cfg := &clientConfig{policy: DefaultRetryPolicy()}
	for _, opt := range opts {
		opt(cfg)
	}
	return &Client{
		provider: provider,
		model:    cfg.model,
		system:   cfg.system,
		llm:      llmInstance,
		policy:   cfg.policy,
	}
}

// Provider returns the provider identifier.
func (c *Client) Provider() string { return c.provider }

// Model returns the configured model identifier.
func (c *Client) Model() string { return c.model }

// Send implements loop.ModelClient. The run history is flattened into a
// single prompt (gollm's prompt API is single-shot), the provider is called
// with retry for transient failures, and errors come back classified.
func (c *Client) Send(ctx context.Context, prompt string, history []loop.Exchange) (string, error) {
	promptText := flattenHistory(prompt, history)

	var promptOpts []gollm.PromptOption
	if c.system != "" {
		promptOpts = append(promptOpts, gollm.WithSystemPrompt(c.system, gollm.CacheTypeEphemeral))
	}
	p := gollm.NewPrompt(promptText, promptOpts...)

	text, err := Retry(ctx, c.policy, func(ctx context.Context) (string, error) {
		out, genErr := c.llm.Generate(ctx, p)
		if genErr != nil {
			return "", ClassifyError(c.provider, genErr)
		}
		return out, nil
	})
	if err != nil {
		return "", err
	}
	return text, nil
}

// flattenHistory folds completed exchanges into a transcript preceding the
// current prompt. Command results are not repeated: they already appear as
// the following exchange's prompt.
func flattenHistory(prompt string, history []loop.Exchange) string {
	if len(history) == 0 {
		return prompt
	}

	var sb strings.Builder
	for _, ex := range history {
		sb.WriteString(ex.Prompt)
		sb.WriteString("\n[Assistant]: ")
		sb.WriteString(ex.Response)
		sb.WriteString("\n")
	}
	sb.WriteString(prompt)
	return sb.String()
}
