// Concrete provider backends built on langchaingo model clients.
//
// The OpenAI-compatible family (OpenAI, DeepSeek, Mistral, OpenRouter) shares
// one client with a per-kind base URL. Ollama talks to a local server and is
// the only backend with a real liveness probe; the hosted backends are
// considered live when a credentialed client can be constructed.
package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

const (
	defaultOllamaURL  = "http://localhost:11434"
	deepseekBaseURL   = "https://api.deepseek.com"
	mistralBaseURL    = "https://api.mistral.ai/v1"
	openrouterBaseURL = "https://openrouter.ai/api/v1"

	livenessTimeout = 3 * time.Second
	temperature     = 0.1
)

// Credentials hold what a backend needs to authenticate.
type Credentials struct {
	// APIKey authenticates against hosted backends. Unused by Ollama.
	APIKey string

	// BaseURL overrides the backend endpoint. For Ollama it defaults to the
	// local server; for the OpenAI-compatible family the kind selects it.
	BaseURL string
}

// Client is a Provider backed by a langchaingo model.
type Client struct {
	kind      Kind
	modelName string
	model     llms.Model
	connected bool
	logger    *slog.Logger
}

// NewClient constructs a provider for the given backend and checks liveness.
// The returned client is never nil; a failed check leaves it disconnected.
func NewClient(ctx context.Context, kind Kind, modelName string, creds Credentials, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}

	c := &Client{
		kind:      kind,
		modelName: modelName,
		logger:    logger.With(slog.String("provider", string(kind)), slog.String("model", modelName)),
	}

	model, err := c.buildModel(ctx, creds)
	if err != nil {
		c.logger.Warn("provider liveness check failed", slog.String("error", err.Error()))
		return c
	}

	c.model = model
	c.connected = true
	c.logger.Info("provider connected")
	return c
}

func (c *Client) buildModel(ctx context.Context, creds Credentials) (llms.Model, error) {
	switch c.kind {
	case KindOllama:
		baseURL := creds.BaseURL
		if baseURL == "" {
			baseURL = defaultOllamaURL
		}
		if err := pingOllama(ctx, baseURL); err != nil {
			return nil, err
		}
		return ollama.New(
			ollama.WithModel(c.modelName),
			ollama.WithServerURL(baseURL),
		)

	case KindAnthropic:
		if creds.APIKey == "" {
			return nil, errors.New("api key required")
		}
		return anthropic.New(
			anthropic.WithToken(creds.APIKey),
			anthropic.WithModel(c.modelName),
		)

	case KindOpenAI, KindDeepSeek, KindMistral, KindOpenRouter:
		if creds.APIKey == "" {
			return nil, errors.New("api key required")
		}
		opts := []openai.Option{
			openai.WithModel(c.modelName),
			openai.WithToken(creds.APIKey),
		}
		if baseURL := c.compatibleBaseURL(creds); baseURL != "" {
			opts = append(opts, openai.WithBaseURL(baseURL))
		}
		return openai.New(opts...)

	default:
		return nil, fmt.Errorf("unsupported provider kind %q", c.kind)
	}
}

// compatibleBaseURL resolves the endpoint for the OpenAI-compatible family.
func (c *Client) compatibleBaseURL(creds Credentials) string {
	if creds.BaseURL != "" {
		return creds.BaseURL
	}
	switch c.kind {
	case KindDeepSeek:
		return deepseekBaseURL
	case KindMistral:
		return mistralBaseURL
	case KindOpenRouter:
		return openrouterBaseURL
	}
	return ""
}

// pingOllama checks that a local Ollama server answers its tags endpoint.
func pingOllama(ctx context.Context, baseURL string) error {
	ctx, cancel := context.WithTimeout(ctx, livenessTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimSuffix(baseURL, "/")+"/api/tags", nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("ollama not reachable: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ollama returned status %d", resp.StatusCode)
	}
	return nil
}

// Kind returns the backend identifier.
func (c *Client) Kind() Kind { return c.kind }

// Model returns the configured model name.
func (c *Client) Model() string { return c.modelName }

// Connected reports whether construction-time liveness passed.
func (c *Client) Connected() bool { return c.connected }

// GenerateSQL issues the generation prompt and parses the JSON answer.
func (c *Client) GenerateSQL(ctx context.Context, question, schemaText, dictionaryText string) (*Answer, error) {
	if !c.connected {
		return nil, &ProviderError{Provider: string(c.kind), Model: c.modelName, Reason: ReasonDisconnected}
	}

	prompt := buildPrompt(question, schemaText, dictionaryText)

	raw, err := llms.GenerateFromSinglePrompt(ctx, c.model, prompt, llms.WithTemperature(temperature))
	if err != nil {
		reason := ReasonNetwork
		switch {
		case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
			reason = ReasonTimeout
		case strings.Contains(strings.ToLower(err.Error()), "unauthorized"),
			strings.Contains(err.Error(), "401"):
			reason = ReasonAuth
		}
		return nil, &ProviderError{Provider: string(c.kind), Model: c.modelName, Reason: reason, Err: err}
	}

	answer, err := parseAnswer(raw)
	if err != nil {
		return nil, &ProviderError{Provider: string(c.kind), Model: c.modelName, Reason: ReasonParse, Err: err}
	}

	answer.Provider = string(c.kind)
	answer.Model = c.modelName
	return answer, nil
}
