// Package events publishes workflow stage lifecycle events to Kafka.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	"frameworks/pkg/kafka"
	"frameworks/pkg/logging"
)

// Event types.
const (
	TypeStageStarted   = "stage_started"
	TypeStageCompleted = "stage_completed"
	TypeStageFailed    = "stage_failed"
)

// StageEvent is the payload written for every stage transition.
type StageEvent struct {
	Type      string    `json:"type"`
	SessionID string    `json:"session_id"`
	Stage     string    `json:"stage"`
	Step      string    `json:"step"`
	Artifacts []string  `json:"artifacts,omitempty"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Sink receives stage events. Use Nop when Kafka is not configured.
type Sink interface {
	Publish(ctx context.Context, ev StageEvent) error
}

// Nop discards events.
type Nop struct{}

func (Nop) Publish(context.Context, StageEvent) error { return nil }

type producer interface {
	ProduceMessage(ctx context.Context, topic string, key, value []byte, headers map[string]string) error
	Close() error
}

type PublisherConfig struct {
	Brokers []string
	Topic   string
	Source  string
	Logger  logging.Logger
}

// Publisher writes stage events keyed by session id so a session's events
// stay ordered within one partition.
type Publisher struct {
	producer producer
	topic    string
	source   string
	logger   logging.Logger
}

func NewPublisher(cfg PublisherConfig) (*Publisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers required for stage event publisher")
	}
	p, err := kafka.NewProducer(kafka.ProducerConfig{Brokers: cfg.Brokers, ClientID: "lookout"}, cfg.Logger)
	if err != nil {
		return nil, err
	}
	return newPublisher(p, cfg), nil
}

func newPublisher(p producer, cfg PublisherConfig) *Publisher {
	topic := cfg.Topic
	if topic == "" {
		topic = "lookout.stage_events"
	}
	source := cfg.Source
	if source == "" {
		source = "lookout"
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewDiscardLogger()
	}
	return &Publisher{producer: p, topic: topic, source: source, logger: logger}
}

// Client exposes the franz-go client for health checks. It is nil when the
// publisher was not built over a Kafka producer.
func (p *Publisher) Client() *kgo.Client {
	if p == nil {
		return nil
	}
	if kp, ok := p.producer.(*kafka.Producer); ok {
		return kp.Client()
	}
	return nil
}

func (p *Publisher) Close() error {
	if p == nil || p.producer == nil {
		return nil
	}
	return p.producer.Close()
}

func (p *Publisher) Publish(ctx context.Context, ev StageEvent) error {
	if p == nil || p.producer == nil {
		return nil
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal stage event: %w", err)
	}
	err = p.producer.ProduceMessage(ctx, p.topic, []byte(ev.SessionID), payload, map[string]string{
		"source":     p.source,
		"type":       ev.Type,
		"session_id": ev.SessionID,
	})
	if err != nil {
		return err
	}
	p.logger.WithFields(logging.Fields{
		"session_id": ev.SessionID,
		"type":       ev.Type,
		"stage":      ev.Stage,
		"topic":      p.topic,
	}).Debug("Published stage event")
	return nil
}
