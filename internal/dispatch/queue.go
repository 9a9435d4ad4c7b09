package dispatch

import (
	"context"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/mentora-ai/mentora-backend/internal/platform/logger"
)

// queueTransport places the task body onto a durable redis stream that the
// worker consumes out-of-band. The opening-message path still goes over
// HTTP: its started-ack contract cannot be met by an enqueue ack.
type queueTransport struct {
	log    *logger.Logger
	rdb    *goredis.Client
	stream string
	direct *directTransport
}

func newQueueTransport(cfg Config, log *logger.Logger) (*queueTransport, error) {
	addr := strings.TrimSpace(cfg.RedisAddr)
	if addr == "" {
		return nil, fmt.Errorf("missing redis address for queued transport")
	}
	stream := strings.TrimSpace(cfg.QueueStream)
	if stream == "" {
		stream = "worker:tasks"
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	direct, err := newDirectTransport(cfg, log)
	if err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("queued transport still needs the worker URL: %w", err)
	}

	return &queueTransport{
		log:    log.With("transport", "queued"),
		rdb:    rdb,
		stream: stream,
		direct: direct,
	}, nil
}

func (t *queueTransport) DispatchAndForget(ctx context.Context, task Task) error {
	body, err := task.Encode()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDispatchFailed, err)
	}
	// A failed enqueue is a hard error: without the ack there is no
	// durability guarantee for the task.
	if err := t.rdb.XAdd(ctx, &goredis.XAddArgs{
		Stream: t.stream,
		Values: map[string]interface{}{
			"task_type": string(task.Type),
			"task":      body,
		},
	}).Err(); err != nil {
		t.log.Warn("queue enqueue failed", "task_type", task.Type, "error", err)
		return fmt.Errorf("%w: %v", ErrDispatchFailed, err)
	}
	t.log.Debug("task enqueued", "task_type", task.Type, "stream", t.stream)
	return nil
}

func (t *queueTransport) DispatchAndAwaitHTTP(ctx context.Context, task Task) error {
	return t.direct.DispatchAndAwaitHTTP(ctx, task)
}

func (t *queueTransport) Close() error {
	if t == nil || t.rdb == nil {
		return nil
	}
	return t.rdb.Close()
}
