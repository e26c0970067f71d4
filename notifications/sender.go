package notifications

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	log "github.com/sirupsen/logrus"

	"storesync/codec"
	"storesync/writebehind"
)

const (
	TypeSaved   = "saved"
	TypeUnsaved = "unsaved"
)

type Notification struct {
	Type    string                   `json:"type"`
	Message writebehind.BufferStatus `json:"message"`
}

type senderConfig interface {
	GetNotificationUrls() []string
	GetNotificationInterval() time.Duration
}

// Sender batches buffer status transitions and posts them to every
// configured url once per interval
type Sender struct {
	mu       sync.Mutex
	pending  []Notification
	urls     []string
	interval time.Duration
	client   *resty.Client
}

func NewSender(cfg senderConfig) (*Sender, error) {
	urls := cfg.GetNotificationUrls()
	for _, urlStr := range urls {
		urlObj, err := url.Parse(urlStr)
		if err == nil && urlObj.Scheme == "" {
			err = errors.New("no scheme")
		}
		if err != nil {
			return nil, fmt.Errorf("invalid notification url '%s': %s", urlStr, err)
		}
	}

	interval := cfg.GetNotificationInterval()
	if interval <= 0 {
		interval = time.Second
	}

	client := resty.New().
		SetLogger(log.StandardLogger()).
		SetTimeout(10*time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("X-Storesync", "status").
		SetRetryCount(2).
		SetRetryWaitTime(200 * time.Millisecond).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() >= 500
		})

	return &Sender{
		urls:     urls,
		interval: interval,
		client:   client,
	}, nil
}

// AddBufferStatus queues a status transition. It is used as the status
// change hook of every write-behind buffer.
func (s *Sender) AddBufferStatus(status writebehind.BufferStatus) {
	notificationType := TypeSaved
	if status.Unsaved {
		notificationType = TypeUnsaved
	}

	s.mu.Lock()
	s.pending = append(s.pending, Notification{Type: notificationType, Message: status})
	s.mu.Unlock()
}

// Run sends the queued notifications every interval until ctx is done
func (s *Sender) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.send(ctx)
		}
	}
}

// Flush sends whatever is queued, waiting for every delivery
func (s *Sender) Flush() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.send(ctx)
}

func (s *Sender) collect() []Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	pending := s.pending
	s.pending = nil
	return pending
}

func (s *Sender) send(ctx context.Context) {
	pending := s.collect()
	if len(pending) == 0 || len(s.urls) == 0 {
		return
	}

	payload, err := codec.JSONMarshal(pending)
	if err != nil {
		log.Errorf("Notifications: failed to generate payload: %s", err)
		return
	}
	log.Debugf("Notifications: sending %d status changes", len(pending))

	var wg sync.WaitGroup
	for _, target := range s.urls {
		wg.Add(1)
		go func(target string) {
			defer wg.Done()
			resp, err := s.client.R().SetContext(ctx).SetBody(payload).Post(target)
			if err != nil {
				log.Warnf("Notifications: failed to send to %s: %s", target, err)
				return
			}
			log.Debugf("Notifications: response %s from %s", resp.Status(), target)
		}(target)
	}
	wg.Wait()
}
