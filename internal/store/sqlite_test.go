package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCreateUserDuplicate(t *testing.T) {
	req := require.New(t)
	s := newTestStore(t)

	req.NoError(s.CreateUser("alice", "hash-a"))
	err := s.CreateUser("alice", "hash-b")
	req.ErrorIs(err, ErrDuplicateUser)

	// The original row is untouched.
	hash, err := s.GetUserHash("alice")
	req.NoError(err)
	req.Equal("hash-a", hash)
}

func TestGetUserHashNotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetUserHash("nobody")
	require.ErrorIs(t, err, ErrUserNotFound)
}

func TestUpsertChatInsertAndUpdate(t *testing.T) {
	req := require.New(t)
	s := newTestStore(t)
	req.NoError(s.CreateUser("alice", "h"))

	msgs := []Message{{Text: "hi", Sender: SenderUser}, {Text: "hello", Sender: SenderBot}}
	id, err := s.UpsertChat(0, "alice", "general", msgs, "")
	req.NoError(err)
	req.NotZero(id)

	more := append(msgs, Message{Text: "more", Sender: SenderUser})
	sameID, err := s.UpsertChat(id, "alice", "study", more, "a title")
	req.NoError(err)
	req.Equal(id, sameID)

	chats, err := s.ListChats("alice")
	req.NoError(err)
	req.Len(chats, 1)
	req.Equal(id, chats[0].ID)
	req.Equal("study", chats[0].Mode)
	req.Equal("a title", chats[0].Title)
	req.Equal(more, chats[0].Messages)
}

func TestUpsertChatCrossUserIsNoOp(t *testing.T) {
	req := require.New(t)
	s := newTestStore(t)
	req.NoError(s.CreateUser("alice", "h"))
	req.NoError(s.CreateUser("bob", "h"))

	msgs := []Message{{Text: "hi", Sender: SenderUser}}
	id, err := s.UpsertChat(0, "alice", "general", msgs, "alice's chat")
	req.NoError(err)

	// Bob referencing Alice's chat id must neither update her row nor insert
	// a new one.
	_, err = s.UpsertChat(id, "bob", "creative", []Message{{Text: "stolen", Sender: SenderUser}}, "bob's title")
	req.NoError(err)

	aliceChats, err := s.ListChats("alice")
	req.NoError(err)
	req.Len(aliceChats, 1)
	req.Equal("general", aliceChats[0].Mode)
	req.Equal("alice's chat", aliceChats[0].Title)
	req.Equal(msgs, aliceChats[0].Messages)

	bobChats, err := s.ListChats("bob")
	req.NoError(err)
	req.Empty(bobChats)
}

func TestListChatsOrdering(t *testing.T) {
	req := require.New(t)
	s := newTestStore(t)
	req.NoError(s.CreateUser("alice", "h"))
	req.NoError(s.CreateUser("bob", "h"))

	var ids []int64
	for i := 0; i < 5; i++ {
		id, err := s.UpsertChat(0, "alice", "general", []Message{{Text: "m", Sender: SenderUser}}, "")
		req.NoError(err)
		ids = append(ids, id)
	}
	// Another user's chats must not bleed into the listing.
	_, err := s.UpsertChat(0, "bob", "general", nil, "")
	req.NoError(err)

	chats, err := s.ListChats("alice")
	req.NoError(err)
	req.Len(chats, 5)
	for i, chat := range chats {
		req.Equal(ids[i], chat.ID, "chats must come back in creation order")
	}
	for i := 1; i < len(chats); i++ {
		req.False(chats[i].CreatedAt.Before(chats[i-1].CreatedAt))
	}
}

func TestMessageRoundTrip(t *testing.T) {
	req := require.New(t)
	s := newTestStore(t)
	req.NoError(s.CreateUser("alice", "h"))
	req.NoError(s.CreateUser("bob", "h"))

	msgs := []Message{
		{Text: "hi", Sender: SenderUser},
		{Text: "¡hola! ¿cómo estás?", Sender: SenderBot},
		{Text: "bien", Sender: SenderUser},
	}
	id, err := s.UpsertChat(0, "alice", "general", msgs, "")
	req.NoError(err)

	_, err = s.UpsertChat(0, "bob", "general", []Message{{Text: "other", Sender: SenderUser}}, "")
	req.NoError(err)

	chats, err := s.ListChats("alice")
	req.NoError(err)
	req.Len(chats, 1)
	req.Equal(id, chats[0].ID)
	req.Equal(msgs, chats[0].Messages)
}

func TestCorruptMessagesDegradeToEmpty(t *testing.T) {
	req := require.New(t)
	s := newTestStore(t)
	req.NoError(s.CreateUser("alice", "h"))

	id, err := s.UpsertChat(0, "alice", "general", []Message{{Text: "hi", Sender: SenderUser}}, "")
	req.NoError(err)

	_, err = s.db.Exec("UPDATE chats SET messages = ? WHERE id = ?", "{not json", id)
	req.NoError(err)

	chats, err := s.ListChats("alice")
	req.NoError(err)
	req.Len(chats, 1)
	req.Empty(chats[0].Messages)
}

func TestGetChatTitle(t *testing.T) {
	req := require.New(t)
	s := newTestStore(t)
	req.NoError(s.CreateUser("alice", "h"))

	id, err := s.UpsertChat(0, "alice", "general", nil, "the title")
	req.NoError(err)

	title, ok, err := s.GetChatTitle(id, "alice")
	req.NoError(err)
	req.True(ok)
	req.Equal("the title", title)

	// Wrong owner looks the same as a missing chat.
	_, ok, err = s.GetChatTitle(id, "bob")
	req.NoError(err)
	req.False(ok)

	_, ok, err = s.GetChatTitle(9999, "alice")
	req.NoError(err)
	req.False(ok)
}

func TestUpdateTitle(t *testing.T) {
	req := require.New(t)
	s := newTestStore(t)
	req.NoError(s.CreateUser("alice", "h"))

	id, err := s.UpsertChat(0, "alice", "general", nil, "old")
	req.NoError(err)

	req.NoError(s.UpdateTitle(id, "alice", "new"))
	title, ok, err := s.GetChatTitle(id, "alice")
	req.NoError(err)
	req.True(ok)
	req.Equal("new", title)

	// Cross-user update is a silent no-op.
	req.NoError(s.UpdateTitle(id, "bob", "hijacked"))
	title, _, err = s.GetChatTitle(id, "alice")
	req.NoError(err)
	req.Equal("new", title)
}
