// Package natspub mirrors task table broadcasts onto a NATS subject.
package natspub

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/me/shopfloor/internal/logging"
)

// Publisher is the subset of *nats.Conn used by the mirror.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// Connect dials the NATS server with reconnect handling. Messages
// published while disconnected are buffered by the client.
func Connect(url string, logger *slog.Logger) (*nats.Conn, error) {
	logger = logging.Component(logger, "natspub")
	logger.Info("connecting to NATS", "url", url)

	nc, err := nats.Connect(
		url,
		nats.Name("shopfloord"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.Timeout(5*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("NATS disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("NATS reconnected", "url", nc.ConnectedUrl())
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			logger.Warn("NATS connection closed")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS at %s: %w", url, err)
	}
	return nc, nil
}

// Observer is a hub observer that publishes every state message to one
// subject. A failed publish removes it from the hub like any other
// observer.
type Observer struct {
	pub     Publisher
	subject string
	logger  *slog.Logger
}

// NewObserver creates a mirror publishing to subject.
func NewObserver(pub Publisher, subject string, logger *slog.Logger) *Observer {
	return &Observer{
		pub:     pub,
		subject: subject,
		logger:  logging.Component(logger, "natspub"),
	}
}

// ID implements hub.Observer.
func (o *Observer) ID() string {
	return "nats:" + o.subject
}

// Send implements hub.Observer.
func (o *Observer) Send(msg []byte) error {
	if err := o.pub.Publish(o.subject, msg); err != nil {
		return fmt.Errorf("publish to %s: %w", o.subject, err)
	}
	o.logger.Debug("state published", "subject", o.subject, "bytes", len(msg))
	return nil
}
