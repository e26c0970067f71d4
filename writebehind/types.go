package writebehind

import (
	"cmp"
	"context"
	"time"

	"storesync/stats_collector"
)

// Entry is one buffered write. Every Enqueue call produces its own entry;
// squashing by key happens when the buffer flushes.
type Entry[K cmp.Ordered, T any] struct {
	Key      K
	Data     T
	QueuedAt time.Time
}

// BufferConfig holds configuration for a write-behind buffer
type BufferConfig[K cmp.Ordered, T any] struct {
	Name string
	// Threshold is the number of buffered enqueue calls that triggers an immediate flush
	Threshold int
	// IdleInterval is how long a partial buffer waits before the timer flushes it
	IdleInterval time.Duration
	// PersistTimeout bounds one flush, 0 = no timeout
	PersistTimeout time.Duration
	// FlushConcurrency is how many entities of one flush are persisted in parallel
	FlushConcurrency int
	RateLimit        int // Writes per second, 0 = unlimited
	BurstCapacity    int
	// WarnAfterFailures is how many consecutive failed flushes mark the buffer unsaved
	WarnAfterFailures int
	Limiter           *SharedLimiter
	Retry             RetryPolicy
	// Retryable decides whether a persistence error is worth retrying within one flush
	Retryable func(err error) bool
	Stats     stats_collector.StatsCollector
	// PersistFunc writes the latest state of one entity
	PersistFunc func(ctx context.Context, data T) error
	// KeyFunc extracts the entity key used for squashing
	KeyFunc func(data T) K
	// OnStatusChange is called when the buffer moves between saved and unsaved
	OnStatusChange func(status BufferStatus)
}

// BufferStatus is a point-in-time view of a buffer
type BufferStatus struct {
	Name                string    `json:"name"`
	Pending             int       `json:"pending"`
	Distinct            int       `json:"distinct"`
	TimerArmed          bool      `json:"timer_armed"`
	Flushing            bool      `json:"flushing"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	Unsaved             bool      `json:"unsaved"`
	LastError           string    `json:"last_error,omitempty"`
	LastFlush           time.Time `json:"last_flush"`
}
