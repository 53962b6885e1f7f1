package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/diagnosis/visitor-desk/pkg/logger"
	"github.com/nats-io/nats.go"
)

type Publisher interface {
	Publish(ctx context.Context, subject string, data any) error
	Close() error
}

type NATSEventBus struct {
	conn *nats.Conn
}

func NewNATSEventBus(url, name string) (*NATSEventBus, error) {
	conn, err := nats.Connect(url,
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("NATS disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("NATS reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return &NATSEventBus{conn: conn}, nil
}

func (n *NATSEventBus) Publish(ctx context.Context, subject string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}

	logger.DebugContext(ctx, "Publishing event", "subject", subject, "data", string(payload))

	return n.conn.Publish(subject, payload)
}

func (n *NATSEventBus) Close() error {
	return n.conn.Drain()
}

// NoopPublisher drops events. Used when NATS_URL is empty.
type NoopPublisher struct{}

func (NoopPublisher) Publish(ctx context.Context, subject string, _ any) error {
	logger.DebugContext(ctx, "Event dropped, no bus configured", "subject", subject)
	return nil
}

func (NoopPublisher) Close() error { return nil }

const (
	VisitorCheckedIn  = "visitor.checked_in"
	VisitorCheckedOut = "visitor.checked_out"
)

type VisitorCheckedInEvent struct {
	VisitorID    string `json:"visitor_id"`
	Name         string `json:"name"`
	Company      string `json:"company,omitempty"`
	PersonToMeet string `json:"person_to_meet,omitempty"`
	CheckinTime  int64  `json:"checkin_time"`
	CreatedBy    *int64 `json:"created_by,omitempty"`
}

type VisitorCheckedOutEvent struct {
	VisitorID    string `json:"visitor_id"`
	CheckinTime  int64  `json:"checkin_time"`
	CheckoutTime int64  `json:"checkout_time"`
}

var (
	_ Publisher = (*NATSEventBus)(nil)
	_ Publisher = NoopPublisher{}
)
