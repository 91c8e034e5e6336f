package recovery

import (
	"sync"
	"time"
)

// Handler tracks consecutive loop failures and hands out backoff delays.
// It is owned by one chain loop.
type Handler struct {
	strategy RetryStrategy
	classify Classifier

	mu       sync.Mutex
	attempts int
	lastErr  error
}

// NewHandler creates a failure handler backed by strategy.
func NewHandler(strategy RetryStrategy, classify Classifier) *Handler {
	if classify == nil {
		classify = Classify
	}
	return &Handler{strategy: strategy, classify: classify}
}

// HandleFailure records err and returns its category, the delay before the
// next attempt and whether a next attempt should happen at all.
func (h *Handler) HandleFailure(err error) (FailureCategory, time.Duration, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	category := h.classify(err)
	delay := h.strategy.GetDelay(h.attempts)
	retry := h.strategy.ShouldRetry(err, h.attempts)
	h.attempts++
	h.lastErr = err
	return category, delay, retry
}

// Reset clears the failure streak after a successful iteration.
func (h *Handler) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.attempts = 0
	h.lastErr = nil
}

// Attempts returns the length of the current failure streak.
func (h *Handler) Attempts() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.attempts
}

// LastError returns the most recent failure, or nil after Reset.
func (h *Handler) LastError() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.lastErr
}
