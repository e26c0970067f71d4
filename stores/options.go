package stores

import (
	"context"
	"time"

	"storesync/db"
	"storesync/stats_collector"
	"storesync/writebehind"
)

// BufferOptions tunes the write-behind buffer every store owns
type BufferOptions struct {
	Threshold         int
	IdleInterval      time.Duration
	PersistTimeout    time.Duration
	FlushConcurrency  int
	RateLimit         int
	BurstCapacity     int
	WarnAfterFailures int
	Retry             writebehind.RetryPolicy
	Limiter           *writebehind.SharedLimiter
	Stats             stats_collector.StatsCollector
	OnStatusChange    func(status writebehind.BufferStatus)
}

func bufferConfig[T any](name string, opts BufferOptions, persist func(ctx context.Context, data T) error, key func(data T) string) writebehind.BufferConfig[string, T] {
	return writebehind.BufferConfig[string, T]{
		Name:              name,
		Threshold:         opts.Threshold,
		IdleInterval:      opts.IdleInterval,
		PersistTimeout:    opts.PersistTimeout,
		FlushConcurrency:  opts.FlushConcurrency,
		RateLimit:         opts.RateLimit,
		BurstCapacity:     opts.BurstCapacity,
		WarnAfterFailures: opts.WarnAfterFailures,
		Limiter:           opts.Limiter,
		Retry:             opts.Retry,
		Retryable:         db.IsTransient,
		Stats:             opts.Stats,
		PersistFunc:       persist,
		KeyFunc:           key,
		OnStatusChange:    opts.OnStatusChange,
	}
}
