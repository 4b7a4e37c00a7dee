package pipeline

import (
	"context"
	"log/slog"
)

// Agent is one stage of the transformation pipeline. Implementations are
// stateless with respect to requests: every call gets its inputs through the
// data map and the read-only Context.
type Agent interface {
	// Name identifies the agent in processing logs.
	Name() string

	// Process consumes the previous stage's data map and emits a response
	// carrying the transformed query and structured metadata. The context
	// carries the caller's deadline; only the regenerator blocks on it.
	Process(ctx context.Context, input map[string]any, qc *Context) *Response
}

// logStep is the cross-cutting agent activity log.
func logStep(logger *slog.Logger, agent, message string) {
	if logger == nil {
		return
	}
	logger.Debug(message, slog.String("agent", agent))
}
