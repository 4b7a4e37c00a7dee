// Package events provides NATS messaging for query-processing events.
//
// The service publishes an event after every pipeline run so downstream
// consumers (dashboards, audit sinks) can follow query activity without
// polling. Publishing is optional; a nil *Publisher is a no-op.
//
// Usage:
//
//	publisher, err := events.NewPublisher(events.PublisherConfig{URL: cfg.NATS.URL}, logger)
//	if err != nil {
//	    log.Fatal("Failed to create NATS publisher:", err)
//	}
//	defer publisher.Close()
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

// Event subjects
const (
	// SubjectQueryProcessed is published after a successful pipeline run.
	SubjectQueryProcessed = "query.processed"
	// SubjectQueryFailed is published when a pipeline run ends unsuccessfully.
	SubjectQueryFailed = "query.failed"
)

// QueryEvent is the envelope published for every pipeline run.
type QueryEvent struct {
	RequestID         string    `json:"request_id"`
	Question          string    `json:"question"`
	FinalQuery        string    `json:"final_query"`
	Dialect           string    `json:"dialect"`
	Success           bool      `json:"success"`
	OverallConfidence float64   `json:"overall_confidence"`
	Regenerated       bool      `json:"regenerated"`
	DurationMs        int64     `json:"duration_ms"`
	Timestamp         time.Time `json:"timestamp"`
}

// Publisher provides NATS publishing functionality.
type Publisher struct {
	conn   *nats.Conn
	logger *slog.Logger
}

// PublisherConfig holds configuration for creating a Publisher.
type PublisherConfig struct {
	// URL is the NATS server URL.
	URL string

	// Name is the client connection name.
	Name string

	// MaxReconnects is the maximum reconnection attempts.
	MaxReconnects int

	// ReconnectWait is the wait duration between reconnection attempts.
	ReconnectWait time.Duration
}

// NewPublisher creates a new NATS event publisher.
func NewPublisher(cfg PublisherConfig, logger *slog.Logger) (*Publisher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.URL == "" {
		cfg.URL = nats.DefaultURL
	}
	if cfg.Name == "" {
		cfg.Name = "text-to-sql-publisher"
	}
	if cfg.MaxReconnects == 0 {
		cfg.MaxReconnects = 10
	}
	if cfg.ReconnectWait == 0 {
		cfg.ReconnectWait = 2 * time.Second
	}

	nc, err := nats.Connect(cfg.URL,
		nats.Name(cfg.Name),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			if err != nil {
				logger.Warn("NATS disconnected", slog.String("error", err.Error()))
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("NATS reconnected", slog.String("url", nc.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("events: connect to NATS at %s: %w", cfg.URL, err)
	}

	logger.Info("event publisher connected", slog.String("url", cfg.URL))
	return &Publisher{
		conn:   nc,
		logger: logger.With(slog.String("component", "events")),
	}, nil
}

// Close drains and closes the NATS connection.
func (p *Publisher) Close() {
	if p == nil || p.conn == nil {
		return
	}
	if err := p.conn.Drain(); err != nil {
		p.logger.Warn("NATS drain failed", slog.String("error", err.Error()))
	}
}

// PublishQueryEvent publishes the event on the subject matching its outcome.
func (p *Publisher) PublishQueryEvent(ctx context.Context, event *QueryEvent) error {
	if p == nil || p.conn == nil {
		return nil
	}

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	subject := SubjectQueryProcessed
	if !event.Success {
		subject = SubjectQueryFailed
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("events: marshal event: %w", err)
	}
	if err := p.conn.Publish(subject, payload); err != nil {
		return fmt.Errorf("events: publish %s: %w", subject, err)
	}

	p.logger.Debug("event published",
		slog.String("subject", subject),
		slog.String("request_id", event.RequestID),
	)
	return nil
}
