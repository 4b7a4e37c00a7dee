// Package handlers implements the HTTP handlers of the query service.
//
// The Service struct carries the pipeline orchestrator and its optional
// collaborators (parallel generator, warehouse, result cache, event
// publisher). Handlers degrade gracefully when an optional collaborator is
// absent: no generator means the request must carry SQL, no warehouse means
// no execution, no cache/publisher means no caching/events.
package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/Yerdna1/Text-to-SQL/internal/cache"
	"github.com/Yerdna1/Text-to-SQL/internal/events"
	"github.com/Yerdna1/Text-to-SQL/internal/llm"
	"github.com/Yerdna1/Text-to-SQL/internal/pipeline"
	"github.com/Yerdna1/Text-to-SQL/internal/warehouse"
)

// Service holds the handler dependencies.
type Service struct {
	Orchestrator *pipeline.Orchestrator
	Generator    *llm.Generator
	Warehouse    *warehouse.Client
	Cache        *cache.Client
	Events       *events.Publisher
	Logger       *slog.Logger
}

// NewService builds the handler service. Orchestrator is required; the
// remaining collaborators may be nil.
func NewService(orchestrator *pipeline.Orchestrator, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		Orchestrator: orchestrator,
		Logger:       logger.With(slog.String("component", "handlers")),
	}
}

// Sentinel request-flow errors.
var (
	errNoSQLNoGenerator = errors.New("no SQL supplied and no LLM providers are configured")
	errGenerationFailed = errors.New("no provider produced a usable query")
)

// errorResponse is the uniform error envelope.
type errorResponse struct {
	Error string `json:"error"`
}

// writeJSON writes a JSON response with the given status.
func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeError writes a JSON error envelope.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}
