package handlers

import (
	"log/slog"
	"net/http"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"

	"github.com/Yerdna1/Text-to-SQL/internal/pipeline"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// The demo UI is served from another origin during development.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Stream message types.
const (
	msgStep   = "step"
	msgResult = "result"
	msgError  = "error"
)

// streamMessage is one WebSocket frame of a query stream.
type streamMessage struct {
	Type      string                   `json:"type"`
	Step      *pipeline.ProcessingStep `json:"step,omitempty"`
	Response  *ProcessResponse         `json:"response,omitempty"`
	Error     string                   `json:"error,omitempty"`
}

// QueryStream processes one query per connection, streaming each pipeline
// stage to the client before the final result envelope.
func (s *Service) QueryStream(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.Logger.Warn("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}
	defer conn.Close()

	var req ProcessRequest
	if err := conn.ReadJSON(&req); err != nil {
		_ = conn.WriteJSON(streamMessage{Type: msgError, Error: "invalid request: " + err.Error()})
		return
	}
	if req.Question == "" {
		_ = conn.WriteJSON(streamMessage{Type: msgError, Error: "question is required"})
		return
	}

	resp, _, err := s.process(r.Context(), &req, chimiddleware.GetReqID(r.Context()))
	if err != nil {
		_ = conn.WriteJSON(streamMessage{Type: msgError, Error: err.Error()})
		return
	}

	for i := range resp.Result.ProcessingLog {
		if err := conn.WriteJSON(streamMessage{Type: msgStep, Step: &resp.Result.ProcessingLog[i]}); err != nil {
			s.Logger.Warn("websocket write failed", slog.String("error", err.Error()))
			return
		}
	}
	_ = conn.WriteJSON(streamMessage{Type: msgResult, Response: resp})
}
