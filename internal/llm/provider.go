// Package llm provides the provider abstraction for SQL generation.
//
// A Provider issues one prompt to one backend and returns a structured
// Answer. Providers are constructed with credentials and perform a liveness
// check at construction; a failed check yields a disconnected instance that
// can be queried for its state but refuses generation. Providers carry no
// retry policy; retries and deadlines belong to the caller.
package llm

import (
	"context"
	"errors"
	"fmt"
)

// Kind identifies a provider backend.
type Kind string

const (
	KindOllama     Kind = "ollama"
	KindOpenAI     Kind = "openai"
	KindAnthropic  Kind = "anthropic"
	KindDeepSeek   Kind = "deepseek"
	KindMistral    Kind = "mistral"
	KindOpenRouter Kind = "openrouter"
)

// Answer is the structured result of one SQL generation call. The first six
// fields form the wire contract every backend must return as JSON; the
// remaining fields are filled in by the provider client (provider, model)
// and the parallel generator (timing, error).
type Answer struct {
	SQLQuery          string   `json:"sql_query"`
	Explanation       string   `json:"explanation"`
	TablesUsed        []string `json:"tables_used"`
	ColumnsUsed       []string `json:"columns_used"`
	VisualizationType string   `json:"visualization_type"`
	Confidence        float64  `json:"confidence"`

	Provider          string  `json:"provider,omitempty"`
	Model             string  `json:"model,omitempty"`
	GenerationSeconds float64 `json:"generation_time_seconds,omitempty"`
	Err               string  `json:"error,omitempty"`
}

// Valid reports whether the answer carries usable SQL.
func (a *Answer) Valid() bool {
	return a != nil && a.Err == "" && a.SQLQuery != ""
}

// Reason classifies a provider failure.
type Reason string

const (
	ReasonNetwork      Reason = "network"
	ReasonAuth         Reason = "auth"
	ReasonParse        Reason = "parse"
	ReasonTimeout      Reason = "timeout"
	ReasonDisconnected Reason = "disconnected"
)

// ProviderError is returned when an LLM call fails. It carries the backend
// identity and a sub-reason so callers can distinguish a timeout from a
// malformed response.
type ProviderError struct {
	Provider string
	Model    string
	Reason   Reason
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s/%s: %s: %v", e.Provider, e.Model, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s/%s: %s", e.Provider, e.Model, e.Reason)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// AsProviderError unwraps err into a ProviderError when possible.
func AsProviderError(err error) (*ProviderError, bool) {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

// Provider generates SQL for a natural-language question.
type Provider interface {
	// Kind returns the backend identifier.
	Kind() Kind

	// Model returns the configured model name.
	Model() string

	// Connected reports whether the construction-time liveness check passed.
	Connected() bool

	// GenerateSQL issues the prompt and parses the structured answer. The
	// context carries the caller's deadline. A disconnected provider returns
	// a ProviderError with ReasonDisconnected without touching the network.
	GenerateSQL(ctx context.Context, question, schemaText, dictionaryText string) (*Answer, error)
}
