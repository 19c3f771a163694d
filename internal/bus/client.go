package bus

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

// NATS subjects the engine consumes and emits.
const (
	SubjectSignalRecorded = "outreach.bit.signal.recorded"
	SubjectScoreUpdated   = "outreach.bit.score.updated"
	SubjectTriggerFired   = "outreach.bit.trigger.fired"
)

// SignalRecordedEvent announces a newly stored behavioral signal. The
// ingestion pipeline publishes it; the engine recomputes the entity.
type SignalRecordedEvent struct {
	EntityID   string `json:"entity_id"`
	SignalID   string `json:"signal_id"`
	SignalType string `json:"signal_type"`
	DataSource string `json:"data_source,omitempty"`
}

// TriggerFiredEvent hands a firing decision to the external action
// dispatcher. The engine never sends email or books meetings itself.
type TriggerFiredEvent struct {
	ActionID      string         `json:"action_id"`
	EntityID      string         `json:"entity_id"`
	ActionType    string         `json:"action_type"`
	Priority      string         `json:"priority"`
	PriorityScore int            `json:"priority_score"`
	Tier          string         `json:"tier"`
	DecayedScore  int            `json:"decayed_score"`
	Reason        string         `json:"reason"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}

// ScoreUpdatedEvent announces a persisted score recomputation for audit
// and downstream reporting.
type ScoreUpdatedEvent struct {
	EntityID     string `json:"entity_id"`
	RawScore     int    `json:"raw_score"`
	DecayedScore int    `json:"decayed_score"`
	Tier         string `json:"tier"`
	SignalCount  int    `json:"signal_count"`
	TierChanged  bool   `json:"tier_changed"`
}

type Client struct {
	conn   *nats.Conn
	subs   []*nats.Subscription
	logger *slog.Logger
}

func NewClient(url, token string, logger *slog.Logger) (*Client, error) {
	opts := []nats.Option{
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(60),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			logger.Info("nats reconnected")
		}),
	}
	if token != "" {
		opts = append(opts, nats.Token(token))
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	return &Client{conn: nc, logger: logger}, nil
}

func (c *Client) Publish(subject string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	return c.conn.Publish(subject, payload)
}

func (c *Client) Subscribe(subject string, handler func(subject string, data []byte)) error {
	sub, err := c.conn.Subscribe(subject, func(msg *nats.Msg) {
		handler(msg.Subject, msg.Data)
	})
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", subject, err)
	}
	c.subs = append(c.subs, sub)
	c.logger.Info("subscribed", "subject", subject)
	return nil
}

func (c *Client) Close() {
	for _, sub := range c.subs {
		_ = sub.Unsubscribe()
	}
	c.conn.Close()
}
