package stores

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/guregu/null.v4"

	"storesync/db"
)

func newConversationStore(repo *fakeRepo) *ConversationStore {
	s := NewConversationStore(repo, quietOptions())
	s.now = steppingClock()
	return s
}

func TestConversationMutationsSquashIntoOneWrite(t *testing.T) {
	repo := &fakeRepo{}
	s := newConversationStore(repo)

	c := s.Create("draft", "gpt")
	_, err := s.Rename(c.Id, "final")
	require.NoError(t, err)
	_, err = s.AppendMessage(c.Id, "user", "hello")
	require.NoError(t, err)
	_, err = s.SetPinned(c.Id, true)
	require.NoError(t, err)

	assert.Equal(t, 4, s.Buffer().Size())
	assert.Equal(t, 1, s.Buffer().Distinct())

	require.NoError(t, s.Buffer().FlushSync(context.Background()))

	writes := repo.conversationWrites()
	require.Len(t, writes, 1)
	assert.Equal(t, "final", writes[0].Title.String)
	assert.True(t, writes[0].Pinned)
	assert.Contains(t, writes[0].Messages, `"content":"hello"`)
	assert.Contains(t, writes[0].Metadata, `"temperature":0.7`)
}

func TestConversationSnapshotIsolation(t *testing.T) {
	repo := &fakeRepo{}
	s := newConversationStore(repo)

	c := s.Create("a", "m")
	_, err := s.AppendMessage(c.Id, "user", "one")
	require.NoError(t, err)

	pending, ok := s.Buffer().Pending(c.Id)
	require.True(t, ok)

	_, err = s.AppendMessage(c.Id, "assistant", "two")
	require.NoError(t, err)

	// the earlier snapshot is unaffected by the later append
	assert.Len(t, pending.Messages, 1)

	got, err := s.Get(c.Id)
	require.NoError(t, err)
	assert.Len(t, got.Messages, 2)

	got.Messages[0].Content = "changed"
	again, _ := s.Get(c.Id)
	assert.Equal(t, "one", again.Messages[0].Content)
}

func TestConversationErrors(t *testing.T) {
	s := newConversationStore(&fakeRepo{})

	_, err := s.Rename("missing", "x")
	assert.ErrorIs(t, err, ErrConversationNotFound)

	c := s.Create("a", "m")
	_, err = s.AppendMessage(c.Id, "robot", "hi")
	assert.ErrorIs(t, err, ErrInvalidRole)
	assert.Equal(t, 1, s.Buffer().Size())
}

func TestConversationDeleteHidesAndPersistsTombstone(t *testing.T) {
	repo := &fakeRepo{}
	s := newConversationStore(repo)

	c := s.Create("a", "m")
	require.NoError(t, s.Delete(c.Id))

	_, err := s.Get(c.Id)
	assert.ErrorIs(t, err, ErrConversationNotFound)
	assert.Empty(t, s.List(ListFilter{}))

	require.NoError(t, s.Buffer().FlushSync(context.Background()))
	writes := repo.conversationWrites()
	require.Len(t, writes, 1)
	assert.True(t, writes[0].DeletedAt.Valid)
}

func TestConversationListOrder(t *testing.T) {
	s := newConversationStore(&fakeRepo{})

	old := s.Create("old", "m")
	pinned := s.Create("pinned", "m")
	recent := s.Create("recent", "m")
	_, err := s.SetPinned(pinned.Id, true)
	require.NoError(t, err)
	_, err = s.AppendMessage(recent.Id, "user", "needle in here")
	require.NoError(t, err)

	ids := func(list []*Conversation) []string {
		out := []string{}
		for _, c := range list {
			out = append(out, c.Id)
		}
		return out
	}

	assert.Equal(t, []string{pinned.Id, recent.Id, old.Id}, ids(s.List(ListFilter{})))
	assert.Equal(t, []string{pinned.Id}, ids(s.List(ListFilter{PinnedOnly: true})))
	assert.Equal(t, []string{recent.Id}, ids(s.List(ListFilter{Query: "NEEDLE"})))
}

func TestConversationInitParsesRows(t *testing.T) {
	repo := &fakeRepo{conversations: []db.ConversationRow{
		{
			Id:       "c1",
			Title:    null.StringFrom("loaded"),
			Messages: `[{"id":"m1","role":"user","content":"hi","created_at":5}]`,
			Metadata: `{"system_prompt":"be brief","temperature":1.2,"tags":["work",3]}`,
		},
		{
			Id:       "c2",
			Messages: `not json`,
			Metadata: `{broken`,
		},
	}}
	s := newConversationStore(repo)
	require.NoError(t, s.Init(context.Background()))

	c1, err := s.Get("c1")
	require.NoError(t, err)
	assert.Equal(t, "be brief", c1.Settings.SystemPrompt)
	assert.Equal(t, 1.2, c1.Settings.Temperature)
	assert.Equal(t, []string{"work"}, c1.Settings.Tags)
	require.Len(t, c1.Messages, 1)
	assert.Equal(t, "hi", c1.Messages[0].Content)

	c2, err := s.Get("c2")
	require.NoError(t, err)
	assert.Equal(t, DefaultSettings(), c2.Settings)
	assert.Empty(t, c2.Messages)
}

func TestConversationResetFlushesFirst(t *testing.T) {
	repo := &fakeRepo{}
	s := newConversationStore(repo)

	c := s.Create("a", "m")
	require.NoError(t, s.Reset(context.Background()))

	assert.Len(t, repo.conversationWrites(), 1)
	assert.Equal(t, 0, s.Buffer().Size())
	_, err := s.Get(c.Id)
	assert.ErrorIs(t, err, ErrConversationNotFound)
}

func TestConversationResetKeepsStateOnFailure(t *testing.T) {
	repo := &fakeRepo{}
	repo.setFail(errors.New("disk full"))
	s := newConversationStore(repo)

	c := s.Create("a", "m")
	err := s.Reset(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")

	assert.Equal(t, 1, s.Buffer().Size())
	_, err = s.Get(c.Id)
	assert.NoError(t, err)

	s.ForceReset()
	assert.Equal(t, 0, s.Buffer().Size())
	assert.Empty(t, s.List(ListFilter{}))
}

func TestParseSettingsRejectsOutOfRangeTemperature(t *testing.T) {
	s := ParseSettings(`{"temperature":9}`)
	assert.Equal(t, defaultTemperature, s.Temperature)
}
