package app

import (
	"time"

	"github.com/mentora-ai/mentora-backend/internal/platform/envutil"
	"github.com/mentora-ai/mentora-backend/internal/services"
)

type Config struct {
	Port string

	TransportMode string
	WorkerBaseURL string
	RedisAddr     string
	QueueStream   string
	SendTimeout   time.Duration

	// CallbackURL is the public base the worker posts results back to.
	CallbackURL string

	ClaimAttempts int

	MemoryBackfillFromVisit int
	PersonaFromVisit        int
	PersonaMinQualifying    int

	OpeningPollInterval time.Duration
	OpeningWaitTimeout  time.Duration
	OpeningMaxRetries   int
	OpeningBackoffBase  time.Duration

	BackfillPollInterval time.Duration
	BackfillWaitTimeout  time.Duration
	BackfillMaxRetries   int
	BackfillBackoffBase  time.Duration

	PoolConcurrency int
	PoolQueueSize   int
}

func LoadConfig() Config {
	return Config{
		Port: envutil.Str("PORT", "8080"),

		TransportMode: envutil.Str("TASK_TRANSPORT_MODE", "direct"),
		WorkerBaseURL: envutil.Str("WORKER_BASE_URL", "http://localhost:8090"),
		RedisAddr:     envutil.Str("REDIS_ADDR", "localhost:6379"),
		QueueStream:   envutil.Str("TASK_QUEUE_STREAM", "mentora:tasks"),
		SendTimeout:   envutil.Seconds("TASK_SEND_TIMEOUT", 10*time.Second),

		CallbackURL: envutil.Str("WORKER_CALLBACK_URL", "http://localhost:8080/internal/worker/results"),

		ClaimAttempts: envutil.Int("VISIT_CLAIM_ATTEMPTS", 2),

		MemoryBackfillFromVisit: envutil.Int("MEMORY_BACKFILL_FROM_VISIT", 2),
		PersonaFromVisit:        envutil.Int("PERSONA_FROM_VISIT", 4),
		PersonaMinQualifying:    envutil.Int("PERSONA_MIN_QUALIFYING", 3),

		OpeningPollInterval: envutil.Seconds("OPENING_POLL_INTERVAL", 1*time.Second),
		OpeningWaitTimeout:  envutil.Seconds("OPENING_WAIT_TIMEOUT", 30*time.Second),
		OpeningMaxRetries:   envutil.Int("OPENING_MAX_RETRIES", 2),
		OpeningBackoffBase:  envutil.Seconds("OPENING_BACKOFF_BASE", 1*time.Second),

		BackfillPollInterval: envutil.Seconds("BACKFILL_POLL_INTERVAL", 2*time.Second),
		BackfillWaitTimeout:  envutil.Seconds("BACKFILL_WAIT_TIMEOUT", 120*time.Second),
		BackfillMaxRetries:   envutil.Int("BACKFILL_MAX_RETRIES", 2),
		BackfillBackoffBase:  envutil.Seconds("BACKFILL_BACKOFF_BASE", 2*time.Second),

		PoolConcurrency: envutil.Int("BACKGROUND_POOL_CONCURRENCY", 4),
		PoolQueueSize:   envutil.Int("BACKGROUND_POOL_QUEUE_SIZE", 64),
	}
}

func (c Config) openingWait() services.WaitConfig {
	return services.WaitConfig{PollInterval: c.OpeningPollInterval, Timeout: c.OpeningWaitTimeout}
}

func (c Config) openingRetry() services.RetryConfig {
	return services.RetryConfig{MaxRetries: c.OpeningMaxRetries, BackoffBase: c.OpeningBackoffBase}
}

func (c Config) backfillWait() services.WaitConfig {
	return services.WaitConfig{PollInterval: c.BackfillPollInterval, Timeout: c.BackfillWaitTimeout}
}

func (c Config) backfillRetry() services.RetryConfig {
	return services.RetryConfig{MaxRetries: c.BackfillMaxRetries, BackoffBase: c.BackfillBackoffBase}
}
