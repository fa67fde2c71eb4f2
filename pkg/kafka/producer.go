package kafka

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	"frameworks/pkg/logging"
)

const defaultProduceTimeout = 5 * time.Second

// ProducerConfig configures a synchronous franz-go producer.
type ProducerConfig struct {
	Brokers        []string
	ClientID       string
	ProduceTimeout time.Duration
}

// Producer writes records synchronously and reports the first broker error.
type Producer struct {
	client  *kgo.Client
	logger  logging.Logger
	timeout time.Duration
}

// NewProducer creates a new Kafka producer
func NewProducer(cfg ProducerConfig, logger logging.Logger) (*Producer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers required")
	}
	clientID := cfg.ClientID
	if clientID == "" {
		clientID = "frameworks"
	}
	timeout := cfg.ProduceTimeout
	if timeout <= 0 {
		timeout = defaultProduceTimeout
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ClientID(clientID),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
		kgo.ProducerLinger(10*time.Millisecond),
		kgo.AllowAutoTopicCreation(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka client: %w", err)
	}

	return &Producer{client: client, logger: logger, timeout: timeout}, nil
}

// ProduceMessage publishes one record and waits for the broker ack.
func (p *Producer) ProduceMessage(ctx context.Context, topic string, key, value []byte, headers map[string]string) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	if err := p.client.ProduceSync(ctx, NewRecord(topic, key, value, headers)).FirstErr(); err != nil {
		return fmt.Errorf("failed to produce message: %w", err)
	}
	return nil
}

// Client returns the underlying kgo.Client for health checks
func (p *Producer) Client() *kgo.Client {
	return p.client
}

func (p *Producer) Close() error {
	p.client.Close()
	return nil
}

// NewRecord builds a record with headers in a stable key order.
func NewRecord(topic string, key, value []byte, headers map[string]string) *kgo.Record {
	record := &kgo.Record{Topic: topic, Key: key, Value: value}
	if len(headers) == 0 {
		return record
	}
	keys := make([]string, 0, len(headers))
	for k := range headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		record.Headers = append(record.Headers, kgo.RecordHeader{Key: k, Value: []byte(headers[k])})
	}
	return record
}
