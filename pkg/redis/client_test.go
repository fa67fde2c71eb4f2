package redis

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
)

func TestNewUniversalClient_Addrs(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := NewUniversalClient(context.Background(), Config{Addrs: []string{mr.Addr()}})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer client.Close()

	if err := client.Set(context.Background(), "k", "v", 0).Err(); err != nil {
		t.Fatalf("set: %v", err)
	}
	if got, _ := mr.Get("k"); got != "v" {
		t.Fatalf("expected v, got %q", got)
	}
}

func TestNewUniversalClient_URL(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := NewUniversalClient(context.Background(), Config{URL: "redis://" + mr.Addr() + "/0"})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	_ = client.Close()
}

func TestNewUniversalClient_RequiresAddress(t *testing.T) {
	if _, err := NewUniversalClient(context.Background(), Config{}); err == nil {
		t.Fatal("expected error without url or addrs")
	}
}

func TestNewUniversalClient_PingFailure(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	if _, err := NewUniversalClient(context.Background(), Config{Addrs: []string{addr}}); err == nil {
		t.Fatal("expected ping error against a closed server")
	}
}

func TestParseAddrs(t *testing.T) {
	got := ParseAddrs(" a:6379, ,b:6379")
	if len(got) != 2 || got[0] != "a:6379" || got[1] != "b:6379" {
		t.Fatalf("unexpected addrs: %v", got)
	}
}
