package writebehind

import (
	"context"
	"errors"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

const statusLogInterval = 30 * time.Second

// Flushable is a buffer the manager can report on and drain
type Flushable interface {
	Name() string
	Size() int
	Status() BufferStatus
	FlushSync(ctx context.Context) error
	Reset()
}

// Manager coordinates every buffer owned by the stores
type Manager struct {
	mu      sync.RWMutex
	buffers []Flushable
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewManager creates a new buffer manager
func NewManager() *Manager {
	return &Manager{
		buffers: make([]Flushable, 0),
	}
}

// Register adds a buffer to the manager
func (m *Manager) Register(buffer Flushable) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.buffers = append(m.buffers, buffer)
}

// Start begins periodic status logging
func (m *Manager) Start(ctx context.Context) {
	ctx, m.cancel = context.WithCancel(ctx)

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.statusLoop(ctx)
	}()

	m.mu.RLock()
	count := len(m.buffers)
	m.mu.RUnlock()
	log.Infof("Write-behind manager started with %d buffers", count)
}

func (m *Manager) statusLoop(ctx context.Context) {
	ticker := time.NewTicker(statusLogInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			var pending, unsaved int
			for _, status := range m.Statuses() {
				pending += status.Pending
				if status.Unsaved {
					unsaved++
					log.Warnf("Write-behind [%s]: %d pending, %d consecutive failures, last error: %s",
						status.Name, status.Pending, status.ConsecutiveFailures, status.LastError)
				}
			}
			log.Infof("Write-behind: %d pending writes, %d buffers unsaved", pending, unsaved)
		}
	}
}

// Stop ends status logging. Buffers are not flushed, call FlushAll for that.
func (m *Manager) Stop() {
	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()
	log.Info("Write-behind manager stopped")
}

// FlushAll awaits a FlushSync of every buffer and returns every failure
func (m *Manager) FlushAll(ctx context.Context) error {
	m.mu.RLock()
	buffers := m.buffers
	m.mu.RUnlock()

	var errs []error
	for _, b := range buffers {
		if size := b.Size(); size > 0 {
			log.Infof("Write-behind flushing %d %s writes", size, b.Name())
		}
		if err := b.FlushSync(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	log.Info("Write-behind flush complete")
	return nil
}

// Statuses returns the status of every buffer
func (m *Manager) Statuses() []BufferStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()

	statuses := make([]BufferStatus, 0, len(m.buffers))
	for _, b := range m.buffers {
		statuses = append(statuses, b.Status())
	}
	return statuses
}

// TotalSize returns the number of buffered writes across all buffers
func (m *Manager) TotalSize() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	total := 0
	for _, b := range m.buffers {
		total += b.Size()
	}
	return total
}
