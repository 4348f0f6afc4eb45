package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/googleai"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
	"golang.org/x/time/rate"

	"github.com/nijaru/yt-chat/errors"
)

const (
	ProviderGoogleAI  = "googleai"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderOllama    = "ollama"
)

type Config struct {
	Provider          string
	Model             string
	APIKey            string
	BaseURL           string
	Temperature       float64
	MaxTokens         int
	RequestsPerSecond float64
	Burst             int
	Timeout           time.Duration
}

// Model generates text through a langchaingo backend. Requests are paced
// by a shared token bucket so bursts of chunk summaries stay within the
// provider's quota.
type Model struct {
	llm       llms.Model
	modelName string
	limiter   *rate.Limiter
	timeout   time.Duration
	options   []llms.CallOption
	logger    *logrus.Entry
}

// NewModel creates the backend named by cfg.Provider.
func NewModel(ctx context.Context, cfg Config) (*Model, error) {
	const op = "llm.NewModel"

	var (
		backend llms.Model
		err     error
	)

	switch cfg.Provider {
	case ProviderGoogleAI:
		if cfg.APIKey == "" {
			return nil, errors.InvalidInput(op, nil, "Google AI API key required")
		}
		backend, err = googleai.New(ctx,
			googleai.WithAPIKey(cfg.APIKey),
			googleai.WithDefaultModel(cfg.Model),
		)

	case ProviderOpenAI:
		if cfg.APIKey == "" {
			return nil, errors.InvalidInput(op, nil, "OpenAI API key required")
		}
		opts := []openai.Option{openai.WithToken(cfg.APIKey), openai.WithModel(cfg.Model)}
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		backend, err = openai.New(opts...)

	case ProviderAnthropic:
		if cfg.APIKey == "" {
			return nil, errors.InvalidInput(op, nil, "Anthropic API key required")
		}
		backend, err = anthropic.New(
			anthropic.WithToken(cfg.APIKey),
			anthropic.WithModel(cfg.Model),
		)

	case ProviderOllama:
		opts := []ollama.Option{ollama.WithModel(cfg.Model)}
		if cfg.BaseURL != "" {
			opts = append(opts, ollama.WithServerURL(cfg.BaseURL))
		}
		backend, err = ollama.New(opts...)

	default:
		return nil, errors.InvalidInput(op, nil, fmt.Sprintf("unsupported LLM provider: %s", cfg.Provider))
	}

	if err != nil {
		return nil, errors.Internal(op, err, fmt.Sprintf("failed to create %s model", cfg.Provider))
	}

	return NewModelWithBackend(backend, cfg), nil
}

// NewModelWithBackend wraps an existing langchaingo model.
func NewModelWithBackend(backend llms.Model, cfg Config) *Model {
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}

	var options []llms.CallOption
	if cfg.Temperature > 0 {
		options = append(options, llms.WithTemperature(cfg.Temperature))
	}
	if cfg.MaxTokens > 0 {
		options = append(options, llms.WithMaxTokens(cfg.MaxTokens))
	}

	return &Model{
		llm:       backend,
		modelName: cfg.Model,
		limiter:   rate.NewLimiter(limit, burst),
		timeout:   cfg.Timeout,
		options:   options,
		logger: logrus.WithFields(logrus.Fields{
			"component": "llm",
			"provider":  cfg.Provider,
			"model":     cfg.Model,
		}),
	}
}

// GenerateText sends prompt as a single human message. Every failure,
// including cancellation and an empty reply, is a ModelError. Nothing is
// retried here.
func (m *Model) GenerateText(ctx context.Context, prompt string) (string, error) {
	const op = "Model.GenerateText"

	if err := m.limiter.Wait(ctx); err != nil {
		return "", errors.ModelError(op, err, "Model request cancelled")
	}

	if m.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}

	start := time.Now()
	response, err := llms.GenerateFromSinglePrompt(ctx, m.llm, prompt, m.options...)
	if err != nil {
		m.logger.WithError(err).WithField("duration", time.Since(start)).Warn("Model call failed")
		return "", errors.ModelError(op, err, "Model call failed")
	}

	response = strings.TrimSpace(response)
	if response == "" {
		return "", errors.ModelError(op, nil, "Model returned an empty response")
	}

	m.logger.WithFields(logrus.Fields{
		"prompt_chars":   len(prompt),
		"response_chars": len(response),
		"duration":       time.Since(start),
	}).Debug("Model call completed")

	return response, nil
}

// Model returns the configured model name.
func (m *Model) Model() string {
	return m.modelName
}
