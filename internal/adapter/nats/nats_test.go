package nats

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/Strob0t/DomainLens/internal/logger"
	"github.com/Strob0t/DomainLens/internal/port/messagequeue"
)

// testConnect connects to NATS or skips the test if NATS_URL is not set.
func testConnect(t *testing.T) *Bus {
	t.Helper()

	url := os.Getenv("NATS_URL")
	if url == "" {
		t.Skip("requires NATS_URL")
	}

	b, err := Connect(context.Background(), url)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	t.Cleanup(func() {
		if err := b.Close(); err != nil {
			t.Errorf("Close: %v", err)
		}
	})
	return b
}

// uniqueSubject returns a subject the DOMAINLENS stream captures.
func uniqueSubject(t *testing.T) string {
	t.Helper()
	return messagequeue.SubjectPrefix + "test." + strings.ReplaceAll(t.Name(), "/", "_")
}

func TestBus_PublishCarriesRequestID(t *testing.T) {
	b := testConnect(t)
	subject := uniqueSubject(t)
	ctx := context.Background()

	consumer, err := b.js.CreateOrUpdateConsumer(ctx, streamName, jetstream.ConsumerConfig{
		FilterSubject: subject,
		AckPolicy:     jetstream.AckExplicitPolicy,
		DeliverPolicy: jetstream.DeliverNewPolicy,
	})
	if err != nil {
		t.Fatalf("create consumer: %v", err)
	}

	const wantReqID = "req-abc-123"
	if err := b.Publish(logger.WithRequestID(ctx, wantReqID), subject, []byte(`{"ok":true}`)); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	batch, err := consumer.Fetch(1, jetstream.FetchMaxWait(5*time.Second))
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	var got jetstream.Msg
	for msg := range batch.Messages() {
		got = msg
		_ = msg.Ack()
	}
	if got == nil {
		t.Fatal("timed out waiting for message")
	}
	if string(got.Data()) != `{"ok":true}` {
		t.Errorf("data = %q", got.Data())
	}
	if id := got.Headers().Get(headerRequestID); id != wantReqID {
		t.Errorf("request ID = %q, want %q", id, wantReqID)
	}
}

func TestBus_KeyValue(t *testing.T) {
	b := testConnect(t)
	ctx := context.Background()

	kv, err := b.KeyValue(ctx, "DOMAINLENS_TEST", time.Minute)
	if err != nil {
		t.Fatalf("KeyValue: %v", err)
	}
	if _, err := kv.Put(ctx, "k", []byte("v")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	entry, err := kv.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(entry.Value()) != "v" {
		t.Errorf("value = %q, want v", entry.Value())
	}
	if !b.IsConnected() {
		t.Error("expected connected")
	}
}
