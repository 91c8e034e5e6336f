package recovery

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

// =============================================================================
// Classifier Tests
// =============================================================================

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want FailureCategory
	}{
		{"rpc error", errors.New("connection reset"), CategoryTransient},
		{"wrapped rejection", fmt.Errorf("checksum mismatch: %w", ErrValidation), CategoryValidation},
		{"fatal config", fmt.Errorf("no start block: %w", ErrFatal), CategoryFatal},
		{"canceled", context.Canceled, CategoryFatal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.err); got != tt.want {
				t.Errorf("Classify() = %v, want %v", got, tt.want)
			}
		})
	}
}

// =============================================================================
// Strategy Tests
// =============================================================================

func TestBackoff_Delay(t *testing.T) {
	strategy := DefaultBackoff(nil)
	strategy.InitialDelay = 1 * time.Second
	strategy.MaxDelay = 10 * time.Second

	// Attempt 0: 1*2^0 = 1s
	if d := strategy.GetDelay(0); d != 1*time.Second {
		t.Errorf("expected 1s, got %v", d)
	}

	// Attempt 1: 1*2^1 = 2s
	if d := strategy.GetDelay(1); d != 2*time.Second {
		t.Errorf("expected 2s, got %v", d)
	}

	// Attempt 2: 1*2^2 = 4s
	if d := strategy.GetDelay(2); d != 4*time.Second {
		t.Errorf("expected 4s, got %v", d)
	}

	// Attempt 10: Cap at MaxDelay (10s)
	if d := strategy.GetDelay(10); d != 10*time.Second {
		t.Errorf("expected 10s, got %v", d)
	}
}

func TestBackoff_ShouldRetry(t *testing.T) {
	strategy := DefaultBackoff(nil)
	strategy.MaxAttempts = 3

	if !strategy.ShouldRetry(errors.New("err"), 0) {
		t.Error("should retry attempt 0")
	}
	if !strategy.ShouldRetry(errors.New("err"), 2) {
		t.Error("should retry attempt 2")
	}
	if strategy.ShouldRetry(errors.New("err"), 3) {
		t.Error("should NOT retry attempt 3 (max reached)")
	}
	if strategy.ShouldRetry(fmt.Errorf("bad: %w", ErrValidation), 0) {
		t.Error("should NOT retry validation failures")
	}
}

func TestBackoff_NoCeilingByDefault(t *testing.T) {
	strategy := DefaultBackoff(nil)
	if !strategy.ShouldRetry(errors.New("err"), 1_000_000) {
		t.Error("default strategy should retry transient errors forever")
	}
}

func TestSleep_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	if err := Sleep(ctx, time.Minute); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if time.Since(start) > time.Second {
		t.Error("Sleep did not return on cancellation")
	}
}

// =============================================================================
// Handler Tests
// =============================================================================

func TestHandler_BackoffGrowsAndResets(t *testing.T) {
	strategy := DefaultBackoff(nil)
	strategy.InitialDelay = 100 * time.Millisecond
	strategy.MaxDelay = time.Second
	handler := NewHandler(strategy, nil)

	rpcErr := errors.New("rpc error")
	want := []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 400 * time.Millisecond}
	for i, w := range want {
		category, delay, retry := handler.HandleFailure(rpcErr)
		if category != CategoryTransient || !retry {
			t.Fatalf("attempt %d: category=%v retry=%v", i, category, retry)
		}
		if delay != w {
			t.Errorf("attempt %d: delay = %v, want %v", i, delay, w)
		}
	}
	if handler.Attempts() != 3 {
		t.Errorf("expected 3 attempts, got %d", handler.Attempts())
	}
	if !errors.Is(handler.LastError(), rpcErr) {
		t.Errorf("unexpected last error: %v", handler.LastError())
	}

	handler.Reset()
	if handler.Attempts() != 0 || handler.LastError() != nil {
		t.Error("Reset did not clear the failure streak")
	}
	if _, delay, _ := handler.HandleFailure(rpcErr); delay != 100*time.Millisecond {
		t.Errorf("delay after reset = %v, want 100ms", delay)
	}
}

func TestHandler_FatalIsNotRetried(t *testing.T) {
	handler := NewHandler(DefaultBackoff(nil), nil)

	category, _, retry := handler.HandleFailure(fmt.Errorf("chain misconfigured: %w", ErrFatal))
	if category != CategoryFatal {
		t.Errorf("expected fatal category, got %v", category)
	}
	if retry {
		t.Error("fatal errors should not be retried")
	}
}
