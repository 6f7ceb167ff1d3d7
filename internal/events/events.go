// Package events publishes ingestion lifecycle notifications to NATS.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/IshaanNene/newsdesk/internal/config"
)

// Event types. Each becomes the suffix of the NATS subject.
const (
	TypeCycleCompleted   = "cycle.completed"
	TypeCycleFailed      = "cycle.failed"
	TypeSchedulerAlert   = "scheduler.alert"
	TypeArticleProcessed = "article.processed"
)

// Event is one published message.
type Event struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"source"`
	Data      any       `json:"data,omitempty"`
}

// NewEvent stamps an event with the current time.
func NewEvent(typ string, data any) Event {
	return Event{Type: typ, Timestamp: time.Now().UTC(), Source: "newsdesk", Data: data}
}

// Publisher sends events. Publishing is best effort; callers log errors
// and carry on.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close()
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
func (Nop) Close()                               {}

// conn is the subset of *nats.Conn used for publishing.
type conn interface {
	Publish(subject string, data []byte) error
	Close()
}

// NATSPublisher publishes JSON events on "<prefix>.<type>".
type NATSPublisher struct {
	conn   conn
	prefix string
	logger *slog.Logger
}

// New connects to NATS when events are enabled, otherwise returns Nop.
func New(cfg config.EventsConfig, logger *slog.Logger) (Publisher, error) {
	if !cfg.Enabled {
		return Nop{}, nil
	}
	logger = logger.With("component", "events")
	nc, err := nats.Connect(cfg.URL,
		nats.Name("newsdesk"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect %s: %w", cfg.URL, err)
	}
	logger.Info("connected to nats", "url", nc.ConnectedUrl(), "subject_prefix", cfg.SubjectPrefix)
	return newNATSPublisher(nc, cfg.SubjectPrefix, logger), nil
}

func newNATSPublisher(c conn, prefix string, logger *slog.Logger) *NATSPublisher {
	return &NATSPublisher{conn: c, prefix: prefix, logger: logger}
}

// Subject returns the subject an event of the given type is published on.
func (p *NATSPublisher) Subject(typ string) string {
	if p.prefix == "" {
		return typ
	}
	return p.prefix + "." + typ
}

// Publish marshals e and sends it. The context is checked before sending;
// core NATS publishes do not block on the server.
func (p *NATSPublisher) Publish(ctx context.Context, e Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", e.Type, err)
	}
	subject := p.Subject(e.Type)
	if err := p.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	p.logger.Debug("event published", "subject", subject, "size", len(data))
	return nil
}

// Close closes the NATS connection.
func (p *NATSPublisher) Close() { p.conn.Close() }
