package writebehind

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"storesync/stats_collector"
)

const (
	defaultThreshold         = 5
	defaultIdleInterval      = 10 * time.Second
	defaultFlushConcurrency  = 4
	defaultWarnAfterFailures = 3
)

// Buffer accumulates entity snapshots and persists the latest snapshot per key,
// either once Threshold enqueue calls are buffered or when the idle timer fires.
// A failed flush keeps every entry so the next trigger retries them.
type Buffer[K cmp.Ordered, T any] struct {
	mu      sync.Mutex
	entries []*Entry[K, T]
	keys    map[K]int // key -> number of buffered entries
	timer   *time.Timer

	// flushMu serialises flushes, mu is never held across I/O
	flushMu      sync.Mutex
	flushing     bool
	flushPending bool
	generation   uint64

	consecutiveFailures int
	unsaved             bool
	lastError           error
	lastFlush           time.Time

	name              string
	threshold         int
	idleInterval      time.Duration
	persistTimeout    time.Duration
	flushConcurrency  int
	warnAfterFailures int
	limiter           *SharedLimiter
	rateLimiter       *rate.Limiter
	retry             RetryPolicy
	retryable         func(err error) bool
	persistFunc       func(ctx context.Context, data T) error
	keyFunc           func(data T) K
	onStatusChange    func(status BufferStatus)
	stats             stats_collector.StatsCollector
}

// NewBuffer creates a new write-behind buffer
func NewBuffer[K cmp.Ordered, T any](cfg BufferConfig[K, T]) *Buffer[K, T] {
	if cfg.Threshold <= 0 {
		cfg.Threshold = defaultThreshold
	}
	if cfg.IdleInterval <= 0 {
		cfg.IdleInterval = defaultIdleInterval
	}
	if cfg.FlushConcurrency <= 0 {
		cfg.FlushConcurrency = defaultFlushConcurrency
	}
	if cfg.WarnAfterFailures <= 0 {
		cfg.WarnAfterFailures = defaultWarnAfterFailures
	}
	if cfg.Stats == nil {
		cfg.Stats = stats_collector.NewNoopStatsCollector()
	}

	var rateLimiter *rate.Limiter
	if cfg.RateLimit > 0 {
		burst := cfg.BurstCapacity
		if burst <= 0 {
			burst = cfg.RateLimit
		}
		rateLimiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	return &Buffer[K, T]{
		keys:              make(map[K]int),
		name:              cfg.Name,
		threshold:         cfg.Threshold,
		idleInterval:      cfg.IdleInterval,
		persistTimeout:    cfg.PersistTimeout,
		flushConcurrency:  cfg.FlushConcurrency,
		warnAfterFailures: cfg.WarnAfterFailures,
		limiter:           cfg.Limiter,
		rateLimiter:       rateLimiter,
		retry:             cfg.Retry,
		retryable:         cfg.Retryable,
		persistFunc:       cfg.PersistFunc,
		keyFunc:           cfg.KeyFunc,
		onStatusChange:    cfg.OnStatusChange,
		stats:             cfg.Stats,
	}
}

// Enqueue buffers a snapshot of data. The caller must pass a value it will not
// mutate afterwards.
// Reaching the threshold cancels the idle timer and starts a flush in the
// background; otherwise the idle timer is armed if it is not already.
func (b *Buffer[K, T]) Enqueue(data T) {
	key := b.keyFunc(data)

	b.mu.Lock()

	if b.keys[key] > 0 {
		b.stats.IncWriteBehindSquashed(b.name)
	}
	b.keys[key]++
	b.entries = append(b.entries, &Entry[K, T]{
		Key:      key,
		Data:     data,
		QueuedAt: time.Now(),
	})
	depth := len(b.entries)

	startFlush := false
	if depth >= b.threshold {
		b.stopTimerLocked()
		if !b.flushPending {
			b.flushPending = true
			startFlush = true
		}
	} else if b.timer == nil {
		b.armTimerLocked()
	}
	b.mu.Unlock()

	b.stats.SetWriteBehindQueueDepth(b.name, float64(depth))

	if startFlush {
		go b.Flush(context.Background())
	}
}

// Flush persists the buffered entries. Failures are logged and the entries
// retained; nothing is returned to the trigger.
func (b *Buffer[K, T]) Flush(ctx context.Context) {
	_ = b.flush(ctx)
}

// FlushSync persists the buffered entries and reports the failure, if any,
// to the caller. Used before Reset and during shutdown.
func (b *Buffer[K, T]) FlushSync(ctx context.Context) error {
	return b.flush(ctx)
}

func (b *Buffer[K, T]) flush(ctx context.Context) error {
	b.flushMu.Lock()
	defer b.flushMu.Unlock()

	b.mu.Lock()
	b.flushPending = false
	b.stopTimerLocked()
	if len(b.entries) == 0 {
		b.mu.Unlock()
		return nil
	}
	snapshot := b.entries[:len(b.entries):len(b.entries)]
	generation := b.generation
	b.flushing = true
	b.mu.Unlock()

	unique := squash(snapshot)

	start := time.Now()
	err := b.persistAll(ctx, unique)
	batchTime := time.Since(start).Seconds()

	b.mu.Lock()
	b.flushing = false

	if generation != b.generation {
		// Reset while the flush was in flight, the entries are gone already
		b.mu.Unlock()
		return err
	}

	if err != nil {
		b.consecutiveFailures++
		b.lastError = err
		becameUnsaved := !b.unsaved && b.consecutiveFailures >= b.warnAfterFailures
		if becameUnsaved {
			b.unsaved = true
		}
		if b.timer == nil {
			b.armTimerLocked()
		}
		failures := b.consecutiveFailures
		status := b.statusLocked()
		b.mu.Unlock()

		b.stats.IncWriteBehindErrors(b.name)
		log.Errorf("Write-behind [%s] flush error (%d entities from %d writes, attempt %d): %v",
			b.name, len(unique), len(snapshot), failures, err)

		if becameUnsaved {
			b.stats.SetWriteBehindUnsaved(b.name, true)
			log.Warnf("Write-behind [%s] changes not yet saved after %d failed flushes", b.name, failures)
			b.notify(status)
		}
		return fmt.Errorf("write-behind [%s] flush: %w", b.name, err)
	}

	for _, entry := range snapshot {
		if b.keys[entry.Key] <= 1 {
			delete(b.keys, entry.Key)
		} else {
			b.keys[entry.Key]--
		}
	}
	remaining := make([]*Entry[K, T], len(b.entries)-len(snapshot))
	copy(remaining, b.entries[len(snapshot):])
	b.entries = remaining

	recovered := b.unsaved
	b.unsaved = false
	b.consecutiveFailures = 0
	b.lastError = nil
	b.lastFlush = time.Now()

	if len(b.entries) > 0 && b.timer == nil {
		b.armTimerLocked()
	}
	depth := len(b.entries)
	status := b.statusLocked()
	b.mu.Unlock()

	b.stats.SetWriteBehindQueueDepth(b.name, float64(depth))
	for range unique {
		b.stats.IncWriteBehindWrites(b.name)
	}
	b.stats.IncWriteBehindBatches(b.name)
	b.stats.ObserveWriteBehindBatchSize(b.name, float64(len(unique)))
	b.stats.ObserveWriteBehindBatchTime(b.name, batchTime)
	for _, entry := range unique {
		b.stats.ObserveWriteBehindLatency(b.name, time.Since(entry.QueuedAt).Seconds())
	}

	log.Debugf("Write-behind [%s] flushed %d entities from %d writes in %.1fms",
		b.name, len(unique), len(snapshot), batchTime*1000)

	if recovered {
		b.stats.SetWriteBehindUnsaved(b.name, false)
		log.Infof("Write-behind [%s] recovered, all changes saved", b.name)
		b.notify(status)
	}
	return nil
}

// squash keeps the most recent entry per key. QueuedAt of the result is the
// oldest enqueue for that key so latency covers the whole wait. Entries are
// ordered by key to keep lock ordering in the database consistent.
func squash[K cmp.Ordered, T any](entries []*Entry[K, T]) []*Entry[K, T] {
	latest := make(map[K]*Entry[K, T], len(entries))
	for _, entry := range entries {
		if existing, ok := latest[entry.Key]; ok {
			latest[entry.Key] = &Entry[K, T]{
				Key:      entry.Key,
				Data:     entry.Data,
				QueuedAt: existing.QueuedAt,
			}
			continue
		}
		latest[entry.Key] = entry
	}

	unique := make([]*Entry[K, T], 0, len(latest))
	for _, entry := range latest {
		unique = append(unique, entry)
	}
	slices.SortFunc(unique, func(a, b *Entry[K, T]) int {
		return cmp.Compare(a.Key, b.Key)
	})
	return unique
}

func (b *Buffer[K, T]) persistAll(ctx context.Context, entries []*Entry[K, T]) error {
	if b.limiter != nil {
		if err := b.limiter.Acquire(ctx); err != nil {
			return err
		}
		defer b.limiter.Release()
	}

	if b.persistTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.persistTimeout)
		defer cancel()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.flushConcurrency)

	for _, entry := range entries {
		g.Go(func() error {
			if b.rateLimiter != nil {
				if err := b.rateLimiter.Wait(gctx); err != nil {
					return err
				}
			}
			err := b.retry.Do(gctx, b.retryable, func(ctx context.Context) error {
				return b.persistFunc(ctx, entry.Data)
			})
			if err != nil {
				return fmt.Errorf("persist %v: %w", entry.Key, err)
			}
			return nil
		})
	}

	return g.Wait()
}

// armTimerLocked starts the single-shot idle timer (must be called with mu held)
func (b *Buffer[K, T]) armTimerLocked() {
	var t *time.Timer
	t = time.AfterFunc(b.idleInterval, func() {
		b.mu.Lock()
		if b.timer != t {
			// stopped, replaced or reset after it fired
			b.mu.Unlock()
			return
		}
		b.timer = nil
		b.mu.Unlock()

		b.Flush(context.Background())
	})
	b.timer = t
}

// stopTimerLocked cancels the idle timer (must be called with mu held)
func (b *Buffer[K, T]) stopTimerLocked() {
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
}

// Reset drops every buffered entry and cancels the idle timer. Callers that
// must not lose writes call FlushSync first.
func (b *Buffer[K, T]) Reset() {
	b.mu.Lock()
	b.stopTimerLocked()
	dropped := len(b.entries)
	b.entries = nil
	b.keys = make(map[K]int)
	b.generation++
	b.flushPending = false
	wasUnsaved := b.unsaved
	b.unsaved = false
	b.consecutiveFailures = 0
	b.lastError = nil
	b.mu.Unlock()

	b.stats.SetWriteBehindQueueDepth(b.name, 0)
	if wasUnsaved {
		b.stats.SetWriteBehindUnsaved(b.name, false)
	}
	if dropped > 0 {
		log.Warnf("Write-behind [%s] reset dropped %d buffered writes", b.name, dropped)
	}
}

// Size returns the number of buffered enqueue calls
func (b *Buffer[K, T]) Size() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}

// Distinct returns the number of distinct keys buffered
func (b *Buffer[K, T]) Distinct() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.keys)
}

// Pending returns the latest buffered snapshot for key, if any
func (b *Buffer[K, T]) Pending(key K) (T, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i := len(b.entries) - 1; i >= 0; i-- {
		if b.entries[i].Key == key {
			return b.entries[i].Data, true
		}
	}
	var zero T
	return zero, false
}

// Status returns a point-in-time view of the buffer
func (b *Buffer[K, T]) Status() BufferStatus {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.statusLocked()
}

func (b *Buffer[K, T]) statusLocked() BufferStatus {
	status := BufferStatus{
		Name:                b.name,
		Pending:             len(b.entries),
		Distinct:            len(b.keys),
		TimerArmed:          b.timer != nil,
		Flushing:            b.flushing,
		ConsecutiveFailures: b.consecutiveFailures,
		Unsaved:             b.unsaved,
		LastFlush:           b.lastFlush,
	}
	if b.lastError != nil {
		status.LastError = b.lastError.Error()
	}
	return status
}

func (b *Buffer[K, T]) notify(status BufferStatus) {
	if b.onStatusChange != nil {
		b.onStatusChange(status)
	}
}

// Name returns the buffer name
func (b *Buffer[K, T]) Name() string {
	return b.name
}
