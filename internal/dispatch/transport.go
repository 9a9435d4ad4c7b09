package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mentora-ai/mentora-backend/internal/platform/logger"
)

// ErrDispatchFailed wraps any transport-level send failure. There is no
// fallback between transports: the first attempt may have landed, and a
// silent retry on the other transport would duplicate work.
var ErrDispatchFailed = errors.New("task dispatch failed")

const (
	ModeDirect = "direct"
	ModeQueued = "queued"
)

// Transport sends a task to the worker service.
//
// DispatchAndForget returns once the chosen transport acknowledged the
// send (HTTP 2xx from the worker's async intake, or a queue enqueue ack);
// it never waits for the task to complete.
//
// DispatchAndAwaitHTTP is reserved for the opening-message task, whose
// contract requires a synchronous acknowledgment that generation has
// *started*. It is an HTTP call in both modes for that reason.
type Transport interface {
	DispatchAndForget(ctx context.Context, task Task) error
	DispatchAndAwaitHTTP(ctx context.Context, task Task) error
}

// Config is injected at construction. Transports never read the process
// environment at call time.
type Config struct {
	Mode          string
	WorkerBaseURL string
	RedisAddr     string
	QueueStream   string
	SendTimeout   time.Duration
}

func New(cfg Config, log *logger.Logger) (Transport, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	mode := strings.TrimSpace(strings.ToLower(cfg.Mode))
	switch mode {
	case "", ModeDirect:
		return newDirectTransport(cfg, log)
	case ModeQueued:
		return newQueueTransport(cfg, log)
	default:
		return nil, fmt.Errorf("unknown transport mode %q", cfg.Mode)
	}
}
