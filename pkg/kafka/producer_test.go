package kafka

import "testing"

func TestNewRecordSortsHeaders(t *testing.T) {
	rec := NewRecord("lookout.stage_events", []byte("k"), []byte("v"), map[string]string{
		"stage":      "collect",
		"event_type": "stage_started",
		"session_id": "s1",
	})

	if rec.Topic != "lookout.stage_events" || string(rec.Key) != "k" || string(rec.Value) != "v" {
		t.Fatalf("unexpected record: %+v", rec)
	}
	want := []string{"event_type", "session_id", "stage"}
	if len(rec.Headers) != len(want) {
		t.Fatalf("expected %d headers, got %d", len(want), len(rec.Headers))
	}
	for i, h := range rec.Headers {
		if h.Key != want[i] {
			t.Fatalf("header %d: expected %s, got %s", i, want[i], h.Key)
		}
	}
}

func TestNewRecordWithoutHeaders(t *testing.T) {
	rec := NewRecord("t", nil, []byte("v"), nil)
	if len(rec.Headers) != 0 {
		t.Fatalf("expected no headers, got %d", len(rec.Headers))
	}
}

func TestNewProducerRequiresBrokers(t *testing.T) {
	if _, err := NewProducer(ProducerConfig{}, nil); err == nil {
		t.Fatal("expected error without brokers")
	}
}
