package reply

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/anonto42/nano-midea/moments/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memConversations struct {
	mu    sync.Mutex
	convs map[string]*models.Conversation
	err   error
}

func newMemConversations() *memConversations {
	return &memConversations{convs: make(map[string]*models.Conversation)}
}

func (m *memConversations) AppendMessage(_ context.Context, key string, participants []string, msg models.Message) (*models.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	conv, ok := m.convs[key]
	if !ok {
		conv = &models.Conversation{ID: key, Participants: participants, CreatedAt: msg.SentAt}
		m.convs[key] = conv
	}
	conv.Messages = append(conv.Messages, msg)
	conv.LastSenderID = msg.SenderID
	conv.LastMessageAt = msg.SentAt
	conv.ReadBy = []string{msg.SenderID}
	copied := *conv
	return &copied, nil
}

type memNotifier struct {
	created []models.Notification
	err     error
}

func (m *memNotifier) CreateNotification(n *models.Notification) error {
	if m.err != nil {
		return m.err
	}
	m.created = append(m.created, *n)
	return nil
}

func TestPairKey(t *testing.T) {
	assert.Equal(t, PairKey("alice", "bob"), PairKey("bob", "alice"))
	assert.Equal(t, "alice:bob", PairKey("bob", "alice"))

	assert.NotEqual(t, PairKey("x:y", "z"), PairKey("x", "y:z"))
	assert.NotEqual(t, PairKey("x%3Ay", "z"), PairKey("x:y", "z"))
	assert.Equal(t, "x%3Ay:z", PairKey("z", "x:y"))
}

func TestSendReply_CreatesConversationOnce(t *testing.T) {
	convs := newMemConversations()
	notes := &memNotifier{}
	ch := NewChannel(convs, notes, nil)

	first, err := ch.SendReply(context.Background(), Reply{FromID: "bob", ToID: "alice", ItemID: "i1", MediaRef: "m/1.jpg", Text: "  nice  "})
	require.NoError(t, err)
	require.Len(t, first.Messages, 1)

	msg := first.Messages[0]
	assert.Equal(t, models.MessageStoryReply, msg.Kind)
	assert.Equal(t, "nice", msg.Text)
	assert.Equal(t, "bob", msg.SenderID)
	require.NotNil(t, msg.Story)
	assert.Equal(t, "m/1.jpg", msg.Story.MediaRef)
	assert.NotEmpty(t, msg.ID)

	second, err := ch.SendReply(context.Background(), Reply{FromID: "alice", ToID: "bob", ItemID: "i2", MediaRef: "m/2.jpg", Text: "thanks"})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, second.Messages, 2)
	assert.Len(t, convs.convs, 1)
	assert.Equal(t, []string{"alice", "bob"}, second.Participants)
}

func TestSendReply_NotifiesAuthor(t *testing.T) {
	notes := &memNotifier{}
	ch := NewChannel(newMemConversations(), notes, nil)

	_, err := ch.SendReply(context.Background(), Reply{FromID: "bob", ToID: "alice", ItemID: "i1", MediaRef: "m", Text: "hey"})
	require.NoError(t, err)

	require.Len(t, notes.created, 1)
	n := notes.created[0]
	assert.Equal(t, models.NotificationStoryReply, n.Type)
	assert.Equal(t, "alice", n.RecipientID)
	assert.Equal(t, "bob", n.ActorID)
	assert.Equal(t, "i1", n.TargetID)
}

func TestSendReply_NotificationFailureIsNotFatal(t *testing.T) {
	notes := &memNotifier{err: errors.New("pg down")}
	ch := NewChannel(newMemConversations(), notes, nil)

	conv, err := ch.SendReply(context.Background(), Reply{FromID: "bob", ToID: "alice", MediaRef: "m", Text: "hey"})
	require.NoError(t, err)
	assert.Len(t, conv.Messages, 1)
}

func TestSendReply_Rejections(t *testing.T) {
	tests := []struct {
		name string
		in   Reply
		want error
	}{
		{"empty", Reply{FromID: "bob", ToID: "alice", MediaRef: "m", Text: ""}, ErrEmptyText},
		{"whitespace", Reply{FromID: "bob", ToID: "alice", MediaRef: "m", Text: " \n\t "}, ErrEmptyText},
		{"self", Reply{FromID: "alice", ToID: "alice", MediaRef: "m", Text: "me"}, ErrSelfReply},
		{"no media", Reply{FromID: "bob", ToID: "alice", Text: "hi"}, models.ErrMissingStoryRef},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			convs := newMemConversations()
			notes := &memNotifier{}
			_, err := NewChannel(convs, notes, nil).SendReply(context.Background(), tt.in)
			assert.ErrorIs(t, err, tt.want)
			assert.Empty(t, convs.convs)
			assert.Empty(t, notes.created)
		})
	}
}

func TestSendReply_StoreError(t *testing.T) {
	convs := newMemConversations()
	convs.err = errors.New("mongo down")
	notes := &memNotifier{}

	_, err := NewChannel(convs, notes, nil).SendReply(context.Background(), Reply{FromID: "bob", ToID: "alice", MediaRef: "m", Text: "hi"})
	assert.ErrorIs(t, err, convs.err)
	assert.Empty(t, notes.created)
}
