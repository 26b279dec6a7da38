package ai

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

const (
	// defaultIdleTimeout is how long a connection may sit unused before it
	// is considered stale. The backing endpoints degrade silently after
	// idle periods, so a stale connection is torn down and redialed.
	defaultIdleTimeout = 600 * time.Second

	defaultMaxAttempts = 3
	defaultBaseBackoff = 2 * time.Second
)

// ErrModelConnection marks a model connection that could not be established
// after exhausting retries. This is the one failure the assistant surfaces
// to the user as fatal.
var ErrModelConnection = fmt.Errorf("model connection failed")

// Handle owns one live LLM connection. Connections are created lazily,
// recycled after an idle timeout, and can be refreshed unconditionally by
// callers preferring correctness over latency. Safe for concurrent use.
type Handle struct {
	mu       sync.Mutex
	factory  func() (LLMService, error)
	service  LLMService
	lastUsed time.Time

	idleTimeout time.Duration
	maxAttempts int
	baseBackoff time.Duration
}

// NewHandle creates a connection handle around the given factory.
func NewHandle(factory func() (LLMService, error)) *Handle {
	return &Handle{
		factory:     factory,
		idleTimeout: defaultIdleTimeout,
		maxAttempts: defaultMaxAttempts,
		baseBackoff: defaultBaseBackoff,
	}
}

// Get returns the live connection, dialing lazily and replacing it when it
// has been idle past the staleness timeout.
func (h *Handle) Get(ctx context.Context) (LLMService, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.service != nil && time.Since(h.lastUsed) < h.idleTimeout {
		h.lastUsed = time.Now()
		return h.service, nil
	}
	if h.service != nil {
		slog.Info("model connection stale, redialing", "idle", time.Since(h.lastUsed))
	}
	return h.dial(ctx)
}

// Refresh unconditionally tears down the current connection and dials a
// fresh one.
func (h *Handle) Refresh(ctx context.Context) (LLMService, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.service = nil
	return h.dial(ctx)
}

// dial creates a connection with bounded exponential-backoff retry.
// Exhausting the attempts is fatal to the request.
func (h *Handle) dial(ctx context.Context) (LLMService, error) {
	var lastErr error
	backoff := h.baseBackoff
	for attempt := 1; attempt <= h.maxAttempts; attempt++ {
		service, err := h.factory()
		if err == nil {
			h.service = service
			h.lastUsed = time.Now()
			return service, nil
		}
		lastErr = err
		slog.Warn("model connection attempt failed",
			"attempt", attempt, "max_attempts", h.maxAttempts, "error", err)
		if attempt == h.maxAttempts {
			break
		}
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		backoff *= 2
	}
	return nil, fmt.Errorf("%w after %d attempts: %v", ErrModelConnection, h.maxAttempts, lastErr)
}
