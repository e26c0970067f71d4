package stores

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	stripedmutex "github.com/nmvalera/striped-mutex"
	"github.com/puzpuzpuz/xsync/v3"
	log "github.com/sirupsen/logrus"
	"gopkg.in/guregu/null.v4"

	"storesync/codec"
	"storesync/db"
	"storesync/writebehind"
)

var (
	ErrConversationNotFound = errors.New("conversation not found")
	ErrInvalidRole          = errors.New("invalid message role")
)

var messageRoles = []string{"user", "assistant", "system", "tool"}

type Message struct {
	Id        string `json:"id"`
	Role      string `json:"role"`
	Content   string `json:"content"`
	CreatedAt int64  `json:"created_at"`
}

type Conversation struct {
	Id        string      `json:"id"`
	Title     null.String `json:"title"`
	Model     string      `json:"model"`
	Pinned    bool        `json:"pinned"`
	Settings  Settings    `json:"settings"`
	Messages  []Message   `json:"messages"`
	CreatedAt int64       `json:"created_at"`
	UpdatedAt int64       `json:"updated_at"`
	DeletedAt null.Int    `json:"deleted_at"`
}

// clone returns a deep copy; stored conversations are never mutated in place
func (c *Conversation) clone() *Conversation {
	cp := *c
	cp.Messages = slices.Clone(c.Messages)
	cp.Settings.Tags = slices.Clone(c.Settings.Tags)
	return &cp
}

func (c *Conversation) toRow() (db.ConversationRow, error) {
	messages, err := codec.JSONMarshal(c.Messages)
	if err != nil {
		return db.ConversationRow{}, fmt.Errorf("encode messages: %w", err)
	}
	metadata, err := codec.JSONMarshal(c.Settings)
	if err != nil {
		return db.ConversationRow{}, fmt.Errorf("encode metadata: %w", err)
	}
	return db.ConversationRow{
		Id:        c.Id,
		Title:     c.Title,
		Model:     c.Model,
		Pinned:    c.Pinned,
		Messages:  string(messages),
		Metadata:  string(metadata),
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
		DeletedAt: c.DeletedAt,
	}, nil
}

func conversationFromRow(row db.ConversationRow) *Conversation {
	return &Conversation{
		Id:        row.Id,
		Title:     row.Title,
		Model:     row.Model,
		Pinned:    row.Pinned,
		Settings:  ParseSettings(row.Metadata),
		Messages:  parseMessages(row.Id, row.Messages),
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
		DeletedAt: row.DeletedAt,
	}
}

type ConversationRepository interface {
	LoadConversations(ctx context.Context) ([]db.ConversationRow, error)
	UpsertConversation(ctx context.Context, row db.ConversationRow) error
}

// ListFilter narrows List. Query matches title and message content, case
// insensitive.
type ListFilter struct {
	Query      string
	PinnedOnly bool
}

// ConversationStore caches conversations in memory and persists every
// mutation through a write-behind buffer keyed by conversation id.
type ConversationStore struct {
	// resetMu is held for reading by mutations and for writing by a reset
	resetMu       sync.RWMutex
	conversations *xsync.MapOf[string, *Conversation]
	locks         *stripedmutex.StripedMutex
	buffer        *writebehind.Buffer[string, Conversation]
	repo          ConversationRepository
	now           func() time.Time
}

func NewConversationStore(repo ConversationRepository, opts BufferOptions) *ConversationStore {
	s := &ConversationStore{
		conversations: xsync.NewMapOf[string, *Conversation](),
		locks:         stripedmutex.New(64),
		repo:          repo,
		now:           time.Now,
	}
	s.buffer = writebehind.NewBuffer(bufferConfig("conversation", opts, s.persist,
		func(c Conversation) string { return c.Id }))
	return s
}

func (s *ConversationStore) persist(ctx context.Context, c Conversation) error {
	row, err := c.toRow()
	if err != nil {
		return err
	}
	return s.repo.UpsertConversation(ctx, row)
}

// Buffer exposes the write-behind buffer for registration with the manager
func (s *ConversationStore) Buffer() *writebehind.Buffer[string, Conversation] {
	return s.buffer
}

// Init replaces the cache with the conversations stored in the database
func (s *ConversationStore) Init(ctx context.Context) error {
	rows, err := s.repo.LoadConversations(ctx)
	if err != nil {
		return fmt.Errorf("load conversations: %w", err)
	}

	s.conversations.Clear()
	for _, row := range rows {
		s.conversations.Store(row.Id, conversationFromRow(row))
	}
	log.Infof("Conversation store loaded %d conversations", len(rows))
	return nil
}

// Reset awaits a flush of every buffered write, then clears the store. If the
// flush fails nothing is cleared and the error is returned.
func (s *ConversationStore) Reset(ctx context.Context) error {
	return ResetAll(ctx, false, s)
}

// ForceReset clears the store, dropping any write that has not been persisted
func (s *ConversationStore) ForceReset() {
	s.resetMu.Lock()
	defer s.resetMu.Unlock()
	s.clear()
}

func (s *ConversationStore) resetGuard() *sync.RWMutex {
	return &s.resetMu
}

func (s *ConversationStore) flush(ctx context.Context) error {
	return s.buffer.FlushSync(ctx)
}

func (s *ConversationStore) clear() {
	s.buffer.Reset()
	s.conversations.Clear()
}

// mutate applies fn to a copy of the conversation and, when fn succeeds,
// publishes the copy and buffers it for persistence. The per-key lock keeps
// enqueue order equal to mutation order.
func (s *ConversationStore) mutate(id string, fn func(c *Conversation) error) (*Conversation, error) {
	s.resetMu.RLock()
	defer s.resetMu.RUnlock()
	s.locks.Lock(id)
	defer s.locks.Unlock(id)

	current, ok := s.conversations.Load(id)
	if !ok {
		return nil, ErrConversationNotFound
	}

	updated := current.clone()
	if err := fn(updated); err != nil {
		return nil, err
	}
	updated.UpdatedAt = s.now().UnixMilli()

	if updated.DeletedAt.Valid {
		s.conversations.Delete(id)
	} else {
		s.conversations.Store(id, updated)
	}
	s.buffer.Enqueue(*updated)
	return updated.clone(), nil
}

func (s *ConversationStore) Create(title, model string) *Conversation {
	now := s.now().UnixMilli()
	c := &Conversation{
		Id:        uuid.NewString(),
		Title:     null.NewString(title, title != ""),
		Model:     model,
		Settings:  DefaultSettings(),
		Messages:  []Message{},
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.resetMu.RLock()
	s.locks.Lock(c.Id)
	s.conversations.Store(c.Id, c)
	s.buffer.Enqueue(*c)
	s.locks.Unlock(c.Id)
	s.resetMu.RUnlock()

	return c.clone()
}

func (s *ConversationStore) Rename(id, title string) (*Conversation, error) {
	return s.mutate(id, func(c *Conversation) error {
		c.Title = null.NewString(title, title != "")
		return nil
	})
}

func (s *ConversationStore) SetPinned(id string, pinned bool) (*Conversation, error) {
	return s.mutate(id, func(c *Conversation) error {
		c.Pinned = pinned
		return nil
	})
}

// SetMetadata replaces the conversation settings. Unrecognised or malformed
// fields fall back to their defaults.
func (s *ConversationStore) SetMetadata(id string, raw string) (*Conversation, error) {
	return s.mutate(id, func(c *Conversation) error {
		c.Settings = ParseSettings(raw)
		return nil
	})
}

func (s *ConversationStore) AppendMessage(id, role, content string) (Message, error) {
	if !slices.Contains(messageRoles, role) {
		return Message{}, fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}

	msg := Message{
		Id:        uuid.NewString(),
		Role:      role,
		Content:   content,
		CreatedAt: s.now().UnixMilli(),
	}
	_, err := s.mutate(id, func(c *Conversation) error {
		c.Messages = append(c.Messages, msg)
		return nil
	})
	if err != nil {
		return Message{}, err
	}
	return msg, nil
}

// Delete soft deletes the conversation; the row is purged by the cleanup job
func (s *ConversationStore) Delete(id string) error {
	_, err := s.mutate(id, func(c *Conversation) error {
		c.DeletedAt = null.IntFrom(s.now().Unix())
		return nil
	})
	return err
}

func (s *ConversationStore) Get(id string) (*Conversation, error) {
	c, ok := s.conversations.Load(id)
	if !ok {
		return nil, ErrConversationNotFound
	}
	return c.clone(), nil
}

// List returns matching conversations, pinned first, then most recently updated
func (s *ConversationStore) List(filter ListFilter) []*Conversation {
	query := strings.ToLower(strings.TrimSpace(filter.Query))

	result := make([]*Conversation, 0, s.conversations.Size())
	s.conversations.Range(func(_ string, c *Conversation) bool {
		if filter.PinnedOnly && !c.Pinned {
			return true
		}
		if query != "" && !c.matches(query) {
			return true
		}
		result = append(result, c.clone())
		return true
	})

	slices.SortFunc(result, func(a, b *Conversation) int {
		if a.Pinned != b.Pinned {
			if a.Pinned {
				return -1
			}
			return 1
		}
		if a.UpdatedAt != b.UpdatedAt {
			if a.UpdatedAt > b.UpdatedAt {
				return -1
			}
			return 1
		}
		return strings.Compare(a.Id, b.Id)
	})
	return result
}

func (c *Conversation) matches(query string) bool {
	if strings.Contains(strings.ToLower(c.Title.String), query) {
		return true
	}
	for _, tag := range c.Settings.Tags {
		if strings.Contains(strings.ToLower(tag), query) {
			return true
		}
	}
	for _, m := range c.Messages {
		if strings.Contains(strings.ToLower(m.Content), query) {
			return true
		}
	}
	return false
}
