package writebehind

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storesync/stats_collector"
)

// testData is the data type for testing
type testData struct {
	key     string
	content string
}

type recorder struct {
	mu    sync.Mutex
	calls []testData
	fail  error
}

func (r *recorder) persist(ctx context.Context, d testData) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail != nil {
		return r.fail
	}
	r.calls = append(r.calls, d)
	return nil
}

func (r *recorder) setFail(err error) {
	r.mu.Lock()
	r.fail = err
	r.mu.Unlock()
}

func (r *recorder) persisted() []testData {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]testData(nil), r.calls...)
}

// countingStats counts flushes through the batch and error metrics
type countingStats struct {
	stats_collector.StatsCollector
	mu      sync.Mutex
	batches int
	errors  int
}

func newCountingStats() *countingStats {
	return &countingStats{StatsCollector: stats_collector.NewNoopStatsCollector()}
}

func (s *countingStats) IncWriteBehindBatches(string) {
	s.mu.Lock()
	s.batches++
	s.mu.Unlock()
}

func (s *countingStats) IncWriteBehindErrors(string) {
	s.mu.Lock()
	s.errors++
	s.mu.Unlock()
}

func (s *countingStats) flushes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.batches + s.errors
}

func newTestBuffer(threshold int, idle time.Duration, rec *recorder, stats *countingStats) *Buffer[string, testData] {
	return NewBuffer(BufferConfig[string, testData]{
		Name:         "test",
		Threshold:    threshold,
		IdleInterval: idle,
		Stats:        stats,
		PersistFunc:  rec.persist,
		KeyFunc:      func(d testData) string { return d.key },
	})
}

func TestBufferThresholdTriggersFlush(t *testing.T) {
	rec := &recorder{}
	stats := newCountingStats()
	b := newTestBuffer(5, time.Hour, rec, stats)

	for _, key := range []string{"a", "b", "c", "d"} {
		b.Enqueue(testData{key: key})
	}
	if stats.flushes() != 0 {
		t.Fatalf("Expected no flush below threshold, got %d", stats.flushes())
	}

	b.Enqueue(testData{key: "e"})

	require.Eventually(t, func() bool { return stats.flushes() == 1 }, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return b.Size() == 0 }, time.Second, 5*time.Millisecond)
	assert.Len(t, rec.persisted(), 5)
	assert.False(t, b.Status().TimerArmed)
}

func TestBufferIdleTimerTriggersFlush(t *testing.T) {
	rec := &recorder{}
	stats := newCountingStats()
	b := newTestBuffer(5, 50*time.Millisecond, rec, stats)

	b.Enqueue(testData{key: "a"})
	b.Enqueue(testData{key: "b"})

	if !b.Status().TimerArmed {
		t.Fatal("Expected idle timer to be armed after enqueue")
	}

	require.Eventually(t, func() bool { return stats.flushes() == 1 }, time.Second, 5*time.Millisecond)

	// timer is single-shot
	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, 1, stats.flushes())
	assert.Equal(t, 0, b.Size())
	assert.False(t, b.Status().TimerArmed)
}

func TestBufferSquashesSameKey(t *testing.T) {
	rec := &recorder{}
	stats := newCountingStats()
	b := newTestBuffer(10, time.Hour, rec, stats)

	b.Enqueue(testData{key: "c1", content: "one"})
	b.Enqueue(testData{key: "c1", content: "two"})
	b.Enqueue(testData{key: "c1", content: "three"})

	if b.Size() != 3 {
		t.Errorf("Expected 3 buffered writes, got %d", b.Size())
	}
	if b.Distinct() != 1 {
		t.Errorf("Expected 1 distinct key, got %d", b.Distinct())
	}

	latest, ok := b.Pending("c1")
	require.True(t, ok)
	assert.Equal(t, "three", latest.content)

	require.NoError(t, b.FlushSync(context.Background()))

	calls := rec.persisted()
	require.Len(t, calls, 1)
	assert.Equal(t, "three", calls[0].content)
	assert.Equal(t, 1, stats.flushes())
}

func TestBufferRetainsEntriesOnFailure(t *testing.T) {
	rec := &recorder{}
	stats := newCountingStats()
	b := newTestBuffer(10, time.Hour, rec, stats)

	b.Enqueue(testData{key: "a", content: "1"})
	b.Enqueue(testData{key: "b", content: "1"})
	b.Enqueue(testData{key: "a", content: "2"})

	rec.setFail(errors.New("database is locked"))
	before := b.Size()

	err := b.FlushSync(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database is locked")
	assert.Equal(t, before, b.Size())

	status := b.Status()
	assert.Equal(t, 1, status.ConsecutiveFailures)
	assert.Contains(t, status.LastError, "database is locked")
	assert.True(t, status.TimerArmed, "failed flush re-arms the idle timer")

	rec.setFail(nil)
	require.NoError(t, b.FlushSync(context.Background()))
	assert.Equal(t, 0, b.Size())
	assert.Equal(t, 0, b.Status().ConsecutiveFailures)

	calls := rec.persisted()
	require.Len(t, calls, 2)
	assert.Equal(t, testData{key: "a", content: "2"}, calls[0])
	assert.Equal(t, testData{key: "b", content: "1"}, calls[1])
}

func TestBufferIdleTimerRetriesAfterFailure(t *testing.T) {
	rec := &recorder{}
	stats := newCountingStats()
	rec.setFail(errors.New("database is locked"))
	b := newTestBuffer(10, 20*time.Millisecond, rec, stats)

	b.Enqueue(testData{key: "a", content: "1"})
	b.Enqueue(testData{key: "a", content: "2"})

	require.Eventually(t, func() bool {
		return b.Status().ConsecutiveFailures >= 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 2, b.Size())

	// no further enqueue and no explicit flush, the re-armed timer retries
	rec.setFail(nil)
	require.Eventually(t, func() bool {
		return b.Size() == 0
	}, time.Second, 5*time.Millisecond)

	calls := rec.persisted()
	require.Len(t, calls, 1)
	assert.Equal(t, testData{key: "a", content: "2"}, calls[0])
	assert.Equal(t, 0, b.Status().ConsecutiveFailures)
	assert.False(t, b.Status().TimerArmed)
}

func TestBufferTimerRearmsAfterThresholdFlush(t *testing.T) {
	rec := &recorder{}
	stats := newCountingStats()
	b := newTestBuffer(3, 50*time.Millisecond, rec, stats)

	b.Enqueue(testData{key: "a"})
	b.Enqueue(testData{key: "b"})
	b.Enqueue(testData{key: "c"})

	require.Eventually(t, func() bool { return stats.flushes() == 1 && b.Size() == 0 }, time.Second, 5*time.Millisecond)
	assert.False(t, b.Status().TimerArmed)

	b.Enqueue(testData{key: "d"})
	assert.True(t, b.Status().TimerArmed)

	require.Eventually(t, func() bool { return stats.flushes() == 2 }, time.Second, 5*time.Millisecond)
	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, 2, stats.flushes())
	assert.Len(t, rec.persisted(), 4)
}

func TestBufferFlushSyncThenResetLeavesNoTimer(t *testing.T) {
	rec := &recorder{}
	stats := newCountingStats()
	b := newTestBuffer(5, 50*time.Millisecond, rec, stats)

	b.Enqueue(testData{key: "a"})
	b.Enqueue(testData{key: "b"})

	require.NoError(t, b.FlushSync(context.Background()))
	b.Reset()

	assert.False(t, b.Status().TimerArmed)
	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, 1, stats.flushes())
	assert.Len(t, rec.persisted(), 2)
}

func TestBufferResetCancelsArmedTimer(t *testing.T) {
	rec := &recorder{}
	stats := newCountingStats()
	b := newTestBuffer(5, 50*time.Millisecond, rec, stats)

	b.Enqueue(testData{key: "a"})
	b.Reset()

	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, 0, stats.flushes())
	assert.Empty(t, rec.persisted())
	assert.Equal(t, 0, b.Size())
}

func TestBufferConversationScenario(t *testing.T) {
	rec := &recorder{}
	stats := newCountingStats()
	b := newTestBuffer(5, 10*time.Second, rec, stats)

	b.Enqueue(testData{key: "c1", content: "hello"})
	b.Enqueue(testData{key: "c1", content: "hello there"})
	b.Enqueue(testData{key: "c1", content: "hello there, how"})
	b.Enqueue(testData{key: "c1", content: "hello there, how are you"})
	b.Enqueue(testData{key: "c2", content: "hi"})

	require.Eventually(t, func() bool { return stats.flushes() == 1 }, time.Second, 5*time.Millisecond)

	calls := rec.persisted()
	require.Len(t, calls, 2, "5 writes for 2 conversations persist twice")
	assert.Equal(t, testData{key: "c1", content: "hello there, how are you"}, calls[0])
	assert.Equal(t, testData{key: "c2", content: "hi"}, calls[1])
}

func TestBufferKeepsWritesEnqueuedDuringFlush(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	var persisted []testData
	var mu sync.Mutex

	b := NewBuffer(BufferConfig[string, testData]{
		Name:         "test",
		Threshold:    10,
		IdleInterval: time.Hour,
		PersistFunc: func(ctx context.Context, d testData) error {
			select {
			case started <- struct{}{}:
			default:
			}
			<-release
			mu.Lock()
			persisted = append(persisted, d)
			mu.Unlock()
			return nil
		},
		KeyFunc: func(d testData) string { return d.key },
	})

	b.Enqueue(testData{key: "a", content: "1"})

	done := make(chan error)
	go func() { done <- b.FlushSync(context.Background()) }()

	<-started
	b.Enqueue(testData{key: "a", content: "2"})
	close(release)
	require.NoError(t, <-done)

	assert.Equal(t, 1, b.Size())
	latest, ok := b.Pending("a")
	require.True(t, ok)
	assert.Equal(t, "2", latest.content)

	require.NoError(t, b.FlushSync(context.Background()))
	mu.Lock()
	defer mu.Unlock()
	require.Len(t, persisted, 2)
	assert.Equal(t, "2", persisted[1].content)
}

func TestBufferUnsavedStatusTransitions(t *testing.T) {
	rec := &recorder{}
	var mu sync.Mutex
	var transitions []BufferStatus

	b := NewBuffer(BufferConfig[string, testData]{
		Name:              "test",
		Threshold:         10,
		IdleInterval:      time.Hour,
		WarnAfterFailures: 2,
		PersistFunc:       rec.persist,
		KeyFunc:           func(d testData) string { return d.key },
		OnStatusChange: func(status BufferStatus) {
			mu.Lock()
			transitions = append(transitions, status)
			mu.Unlock()
		},
	})

	b.Enqueue(testData{key: "a"})
	rec.setFail(errors.New("disk I/O error"))

	require.Error(t, b.FlushSync(context.Background()))
	assert.False(t, b.Status().Unsaved)

	require.Error(t, b.FlushSync(context.Background()))
	assert.True(t, b.Status().Unsaved)

	// a third failure does not report again
	require.Error(t, b.FlushSync(context.Background()))

	rec.setFail(nil)
	require.NoError(t, b.FlushSync(context.Background()))
	assert.False(t, b.Status().Unsaved)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, transitions, 2)
	assert.True(t, transitions[0].Unsaved)
	assert.Equal(t, 2, transitions[0].ConsecutiveFailures)
	assert.False(t, transitions[1].Unsaved)
}

func TestBufferRetriesTransientErrorsWithinFlush(t *testing.T) {
	var mu sync.Mutex
	attempts := 0
	transient := errors.New("deadlock")

	b := NewBuffer(BufferConfig[string, testData]{
		Name:         "test",
		Threshold:    10,
		IdleInterval: time.Hour,
		Retry:        RetryPolicy{MaxAttempts: 3, Backoff: time.Millisecond},
		Retryable:    func(err error) bool { return errors.Is(err, transient) },
		PersistFunc: func(ctx context.Context, d testData) error {
			mu.Lock()
			defer mu.Unlock()
			attempts++
			if attempts < 3 {
				return transient
			}
			return nil
		},
		KeyFunc: func(d testData) string { return d.key },
	})

	b.Enqueue(testData{key: "a"})
	require.NoError(t, b.FlushSync(context.Background()))
	assert.Equal(t, 3, attempts)
	assert.Equal(t, 0, b.Size())
}

func TestBufferFlushEmptyIsNoop(t *testing.T) {
	rec := &recorder{}
	stats := newCountingStats()
	b := newTestBuffer(5, time.Hour, rec, stats)

	if err := b.FlushSync(context.Background()); err != nil {
		t.Fatalf("Expected no error flushing empty buffer, got %v", err)
	}
	if stats.flushes() != 0 {
		t.Errorf("Expected no flush recorded, got %d", stats.flushes())
	}
}

func TestBufferIntegerKey(t *testing.T) {
	type intKeyData struct {
		id      uint64
		quality int
	}

	var got []intKeyData
	b := NewBuffer(BufferConfig[uint64, intKeyData]{
		Name:         "test",
		Threshold:    50,
		IdleInterval: time.Hour,
		PersistFunc: func(ctx context.Context, d intKeyData) error {
			got = append(got, d)
			return nil
		},
		KeyFunc: func(d intKeyData) uint64 { return d.id },
	})

	b.Enqueue(intKeyData{id: 12345678901234, quality: 1})
	b.Enqueue(intKeyData{id: 12345678901234, quality: 2})

	if b.Distinct() != 1 {
		t.Errorf("Expected 1 distinct key after squash, got %d", b.Distinct())
	}
	if err := b.FlushSync(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].quality != 2 {
		t.Errorf("Expected quality 2 (newer), got %+v", got)
	}
}
