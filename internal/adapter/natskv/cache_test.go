package natskv_test

import (
	"context"
	"os"
	"testing"
	"time"

	natsadapter "github.com/Strob0t/DomainLens/internal/adapter/nats"
	"github.com/Strob0t/DomainLens/internal/adapter/natskv"
	"github.com/Strob0t/DomainLens/internal/port/cache/cachetest"
)

func TestCompliance(t *testing.T) {
	url := os.Getenv("NATS_URL")
	if url == "" {
		t.Skip("requires NATS_URL")
	}
	ctx := context.Background()

	bus, err := natsadapter.Connect(ctx, url)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer func() { _ = bus.Close() }()

	kv, err := bus.KeyValue(ctx, "DOMAINLENS_CACHE_TEST", time.Minute)
	if err != nil {
		t.Fatalf("KeyValue: %v", err)
	}

	cachetest.RunComplianceTests(t, natskv.New(kv))
}
