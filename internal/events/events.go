// Package events publishes workflow transitions to NATS.
//
// Every successful command emits one Event on the subject
//
//	<prefix>.<project>.<type>
//
// so observers can follow a project without polling its state files.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/devforge/internal/logging"
)

// DefaultSubjectPrefix is used when no prefix is configured.
const DefaultSubjectPrefix = "devforge"

// Event describes one workflow transition.
type Event struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Project   string         `json:"project"`
	Phase     string         `json:"phase,omitempty"`
	Progress  int            `json:"progress"`
	Data      map[string]any `json:"data,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// NewEvent returns an event with a fresh id.
func NewEvent(typ, project string, now time.Time) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      typ,
		Project:   project,
		Timestamp: now.UTC(),
	}
}

// Publisher delivers workflow events.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// Nop discards every event.
type Nop struct{}

// Publish implements Publisher.
func (Nop) Publish(context.Context, Event) error { return nil }

// Close implements Publisher.
func (Nop) Close() error { return nil }

// NATSPublisher publishes events as JSON over core NATS.
type NATSPublisher struct {
	nc     *nats.Conn
	owned  bool
	prefix string
	logger *logging.Logger
}

// Connect dials url and returns a publisher that closes the connection on
// Close.
func Connect(url, prefix string, logger *logging.Logger) (*NATSPublisher, error) {
	nc, err := nats.Connect(url,
		nats.Name("devforge"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(5),
		nats.ReconnectWait(time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", url, err)
	}
	p := NewNATSPublisher(nc, prefix, logger)
	p.owned = true
	return p, nil
}

// NewNATSPublisher wraps an existing connection. The caller keeps ownership
// of nc.
func NewNATSPublisher(nc *nats.Conn, prefix string, logger *logging.Logger) *NATSPublisher {
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &NATSPublisher{nc: nc, prefix: prefix, logger: logger.Named("events")}
}

// Subject returns the subject an event is published on.
func (p *NATSPublisher) Subject(e Event) string {
	return Subject(p.prefix, e)
}

// Subject builds <prefix>.<project>.<type>. Characters NATS treats as
// token separators or wildcards are replaced with underscores.
func Subject(prefix string, e Event) string {
	return prefix + "." + token(e.Project) + "." + token(e.Type)
}

func token(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '\n', '\r':
			return '_'
		}
		return r
	}, s)
}

// Publish implements Publisher.
func (p *NATSPublisher) Publish(ctx context.Context, e Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	subject := p.Subject(e)
	if err := p.nc.Publish(subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	p.logger.Debug(ctx, "published event", zap.String("subject", subject), zap.String("id", e.ID))
	return nil
}

// Close drains the connection when the publisher owns it.
func (p *NATSPublisher) Close() error {
	if !p.owned {
		return nil
	}
	return p.nc.Drain()
}
