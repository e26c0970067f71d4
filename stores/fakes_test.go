package stores

import (
	"context"
	"sync"
	"time"

	"storesync/db"
)

type fakeRepo struct {
	mu            sync.Mutex
	conversations []db.ConversationRow
	resources     []db.ResourceRow
	upserted      []db.ConversationRow
	upsertedRes   []db.ResourceRow
	fail          error
	failResources error
}

func (f *fakeRepo) LoadConversations(ctx context.Context) ([]db.ConversationRow, error) {
	return f.conversations, nil
}

func (f *fakeRepo) UpsertConversation(ctx context.Context, row db.ConversationRow) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return f.fail
	}
	f.upserted = append(f.upserted, row)
	return nil
}

func (f *fakeRepo) LoadResources(ctx context.Context) ([]db.ResourceRow, error) {
	return f.resources, nil
}

func (f *fakeRepo) UpsertResource(ctx context.Context, row db.ResourceRow) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return f.fail
	}
	if f.failResources != nil {
		return f.failResources
	}
	f.upsertedRes = append(f.upsertedRes, row)
	return nil
}

func (f *fakeRepo) setFail(err error) {
	f.mu.Lock()
	f.fail = err
	f.mu.Unlock()
}

func (f *fakeRepo) conversationWrites() []db.ConversationRow {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]db.ConversationRow(nil), f.upserted...)
}

func (f *fakeRepo) resourceWrites() []db.ResourceRow {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]db.ResourceRow(nil), f.upsertedRes...)
}

// quietOptions keep the idle timer and threshold out of the way so tests
// flush explicitly
func quietOptions() BufferOptions {
	return BufferOptions{Threshold: 1000, IdleInterval: time.Hour}
}

// steppingClock advances one millisecond per call so UpdatedAt orders writes
func steppingClock() func() time.Time {
	var mu sync.Mutex
	t := time.UnixMilli(1_700_000_000_000)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t = t.Add(time.Millisecond)
		return t
	}
}
