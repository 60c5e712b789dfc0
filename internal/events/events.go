// Package events publishes session transitions to NATS.
//
// Every event goes to the subject <prefix>.<session_id>.<event> with a JSON
// body, so consumers can follow one session or all of them with
// <prefix>.> wildcards.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/council/internal/config"
	"github.com/fyrsmithlabs/council/internal/logging"
	"github.com/fyrsmithlabs/council/internal/orchestrator"
)

// DefaultPrefix is the subject prefix used when none is configured.
const DefaultPrefix = "council.sessions"

// Publisher sends session events over a NATS connection.
type Publisher struct {
	nc     *nats.Conn
	prefix string
	logger *logging.Logger
}

// NewPublisher wraps an existing connection.
func NewPublisher(nc *nats.Conn, prefix string, logger *logging.Logger) (*Publisher, error) {
	if nc == nil {
		return nil, errors.New("nats connection is required")
	}
	prefix = strings.Trim(prefix, ".")
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if strings.ContainsAny(prefix, " *>") {
		return nil, fmt.Errorf("invalid subject prefix %q", prefix)
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Publisher{nc: nc, prefix: prefix, logger: logger}, nil
}

// Connect dials NATS with reconnects enabled.
func Connect(cfg config.NATSConfig, logger *logging.Logger) (*nats.Conn, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	ctx := context.Background()

	nc, err := nats.Connect(cfg.URL,
		nats.Name("councild"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn(ctx, "nats disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info(ctx, "nats reconnected", zap.String("url", c.ConnectedUrlRedacted()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats at %s: %w", cfg.URL, err)
	}
	return nc, nil
}

// Subject returns the subject for one event of one session.
func (p *Publisher) Subject(sessionID string, typ orchestrator.EventType) string {
	return p.prefix + "." + sessionID + "." + string(typ)
}

// Publish implements orchestrator.EventPublisher.
func (p *Publisher) Publish(ctx context.Context, ev orchestrator.Event) error {
	if ev.SessionID == "" {
		return errors.New("event without session id")
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	subject := p.Subject(ev.SessionID, ev.Type)
	if err := p.nc.Publish(subject, data); err != nil {
		return fmt.Errorf("failed to publish %s: %w", subject, err)
	}
	p.logger.Trace(ctx, "event published", zap.String("subject", subject))
	return nil
}

// Subscribe delivers every event of sessionID to fn. An empty id follows
// all sessions.
func (p *Publisher) Subscribe(sessionID string, fn func(orchestrator.Event)) (*nats.Subscription, error) {
	subject := p.prefix + ".*.*"
	if sessionID != "" {
		subject = p.prefix + "." + sessionID + ".*"
	}
	return p.nc.Subscribe(subject, func(msg *nats.Msg) {
		var ev orchestrator.Event
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			p.logger.Warn(context.Background(), "dropping malformed event",
				zap.String("subject", msg.Subject), zap.Error(err))
			return
		}
		fn(ev)
	})
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, orchestrator.Event) error { return nil }
