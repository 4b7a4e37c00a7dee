package llm

import (
	"context"
	"time"
)

// mockProvider is a deterministic in-memory Provider for tests.
type mockProvider struct {
	kind      Kind
	model     string
	connected bool
	answer    *Answer
	err       error
	delay     time.Duration
}

func (m *mockProvider) Kind() Kind      { return m.kind }
func (m *mockProvider) Model() string   { return m.model }
func (m *mockProvider) Connected() bool { return m.connected }

func (m *mockProvider) GenerateSQL(ctx context.Context, question, schemaText, dictionaryText string) (*Answer, error) {
	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return nil, &ProviderError{Provider: string(m.kind), Model: m.model, Reason: ReasonTimeout, Err: ctx.Err()}
		}
	}
	if m.err != nil {
		return nil, m.err
	}
	answer := *m.answer
	answer.Provider = string(m.kind)
	answer.Model = m.model
	return &answer, nil
}
