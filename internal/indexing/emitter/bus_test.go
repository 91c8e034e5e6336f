package emitter

import (
	"context"
	"testing"

	"github.com/vietddude/ocean-indexer/internal/core/domain"
)

func TestBus_FiltersByKind(t *testing.T) {
	bus := NewBus(4, nil)
	all, cancelAll := bus.Subscribe()
	defer cancelAll()
	crawl, cancelCrawl := bus.Subscribe(domain.NotifyCrawlingStarted)
	defer cancelCrawl()

	ctx := context.Background()
	_ = bus.Emit(ctx, domain.Notification{Kind: domain.NotifyReindexChain, ChainID: 1})
	_ = bus.Emit(ctx, domain.Notification{Kind: domain.NotifyCrawlingStarted, ChainID: 1})

	if len(all) != 2 {
		t.Fatalf("expected 2 notifications for wildcard subscriber, got %d", len(all))
	}
	if len(crawl) != 1 {
		t.Fatalf("expected 1 notification for filtered subscriber, got %d", len(crawl))
	}
	if n := <-crawl; n.Kind != domain.NotifyCrawlingStarted {
		t.Errorf("unexpected kind %s", n.Kind)
	}
}

func TestBus_DropsWhenFull(t *testing.T) {
	bus := NewBus(1, nil)
	ch, cancel := bus.Subscribe()
	defer cancel()

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if err := bus.Emit(ctx, domain.Notification{Kind: domain.NotifyReindexQueuePop}); err != nil {
			t.Fatalf("Emit: %v", err)
		}
	}
	if len(ch) != 1 {
		t.Fatalf("expected buffer to hold 1 notification, got %d", len(ch))
	}
}

func TestBus_CancelAndClose(t *testing.T) {
	bus := NewBus(1, nil)
	ch, cancel := bus.Subscribe()
	cancel()
	cancel()
	if _, ok := <-ch; ok {
		t.Fatal("expected channel closed after cancel")
	}

	other, _ := bus.Subscribe()
	if err := bus.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, ok := <-other; ok {
		t.Fatal("expected channel closed after Close")
	}
	if err := bus.Emit(context.Background(), domain.Notification{Kind: domain.NotifyReindexChain}); err != nil {
		t.Fatalf("Emit after close: %v", err)
	}

	late, _ := bus.Subscribe()
	if _, ok := <-late; ok {
		t.Fatal("expected closed channel from closed bus")
	}
}
