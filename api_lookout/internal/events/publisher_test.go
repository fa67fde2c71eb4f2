package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
)

type recordedMessage struct {
	topic   string
	key     []byte
	value   []byte
	headers map[string]string
}

type fakeProducer struct {
	messages []recordedMessage
	err      error
	closed   bool
}

func (f *fakeProducer) ProduceMessage(_ context.Context, topic string, key, value []byte, headers map[string]string) error {
	if f.err != nil {
		return f.err
	}
	f.messages = append(f.messages, recordedMessage{topic: topic, key: key, value: value, headers: headers})
	return nil
}

func (f *fakeProducer) Close() error {
	f.closed = true
	return nil
}

func TestPublishWritesKeyedEvent(t *testing.T) {
	fp := &fakeProducer{}
	p := newPublisher(fp, PublisherConfig{})

	err := p.Publish(context.Background(), StageEvent{
		Type:      TypeStageCompleted,
		SessionID: "session_1_abc",
		Stage:     "COLLECTING",
		Step:      "step1",
		Artifacts: []string{"search_results.json"},
	})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(fp.messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(fp.messages))
	}
	msg := fp.messages[0]
	if msg.topic != "lookout.stage_events" || string(msg.key) != "session_1_abc" {
		t.Fatalf("unexpected topic/key %q %q", msg.topic, msg.key)
	}
	if msg.headers["type"] != TypeStageCompleted || msg.headers["source"] != "lookout" {
		t.Fatalf("unexpected headers %v", msg.headers)
	}
	var ev StageEvent
	if err := json.Unmarshal(msg.value, &ev); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if ev.Timestamp.IsZero() || ev.Step != "step1" || len(ev.Artifacts) != 1 {
		t.Fatalf("unexpected payload %+v", ev)
	}
}

func TestPublishPropagatesProducerError(t *testing.T) {
	boom := errors.New("broker down")
	p := newPublisher(&fakeProducer{err: boom}, PublisherConfig{Topic: "custom"})
	if err := p.Publish(context.Background(), StageEvent{Type: TypeStageFailed, SessionID: "s"}); !errors.Is(err, boom) {
		t.Fatalf("expected producer error, got %v", err)
	}
}

func TestNilPublisherIsNoop(t *testing.T) {
	var p *Publisher
	if err := p.Publish(context.Background(), StageEvent{}); err != nil {
		t.Fatalf("nil publisher should be a no-op, got %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestClientIsNilForFakeProducer(t *testing.T) {
	p := newPublisher(&fakeProducer{}, PublisherConfig{})
	if p.Client() != nil {
		t.Fatal("expected nil client for a non-kafka producer")
	}
}
