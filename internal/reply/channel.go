// Package reply turns story replies into messages of the canonical two-party
// conversation between the viewer and the story's author.
package reply

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/anonto42/nano-midea/moments/internal/models"
	"github.com/anonto42/nano-midea/moments/pkg/metrics"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

var (
	ErrEmptyText = errors.New("reply: text is empty")
	ErrSelfReply = errors.New("reply: cannot reply to your own story")
)

// ConversationStore looks up or creates the conversation under pairKey and
// appends msg to it in one atomic step.
type ConversationStore interface {
	AppendMessage(ctx context.Context, pairKey string, participants []string, msg models.Message) (*models.Conversation, error)
}

// Notifier informs the story author about a reply.
type Notifier interface {
	CreateNotification(notification *models.Notification) error
}

// Reply is a viewer's text answer to one story item.
type Reply struct {
	FromID   string
	ToID     string
	ItemID   string
	MediaRef string
	Text     string
}

type Channel struct {
	conversations ConversationStore
	notifier      Notifier
	now           func() time.Time
	log           *logrus.Entry
}

// NewChannel builds a reply channel. notifier may be nil.
func NewChannel(conversations ConversationStore, notifier Notifier, log *logrus.Entry) *Channel {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Channel{
		conversations: conversations,
		notifier:      notifier,
		now:           time.Now,
		log:           log.WithField("component", "reply"),
	}
}

// pairEscaper keeps ':' out of the ids so the joined key splits one way only.
var pairEscaper = strings.NewReplacer("%", "%25", ":", "%3A")

// PairKey is the canonical key of the conversation between a and b. It does
// not depend on argument order.
func PairKey(a, b string) string {
	pair := []string{a, b}
	sort.Strings(pair)
	return pairEscaper.Replace(pair[0]) + ":" + pairEscaper.Replace(pair[1])
}

// SendReply appends a story_reply message to the conversation between the
// viewer and the author, creating the conversation if none exists yet.
func (c *Channel) SendReply(ctx context.Context, r Reply) (*models.Conversation, error) {
	text := strings.TrimSpace(r.Text)
	if text == "" {
		return nil, ErrEmptyText
	}
	if r.FromID == r.ToID {
		return nil, ErrSelfReply
	}

	msg := models.Message{
		ID:       uuid.NewString(),
		Kind:     models.MessageStoryReply,
		SenderID: r.FromID,
		Text:     text,
		Story:    &models.StoryReference{ItemID: r.ItemID, MediaRef: r.MediaRef},
		SentAt:   c.now().UTC(),
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}

	key := PairKey(r.FromID, r.ToID)
	participants := []string{r.FromID, r.ToID}
	sort.Strings(participants)

	conv, err := c.conversations.AppendMessage(ctx, key, participants, msg)
	if err != nil {
		return nil, fmt.Errorf("append story reply to %s: %w", key, err)
	}
	metrics.ReplySent()

	if c.notifier != nil {
		notification := &models.Notification{
			Type:            models.NotificationStoryReply,
			ActorID:         r.FromID,
			RecipientID:     r.ToID,
			TargetID:        r.ItemID,
			TargetType:      "story",
			PreviewImageURL: r.MediaRef,
			Message:         text,
		}
		if err := c.notifier.CreateNotification(notification); err != nil {
			c.log.WithError(err).WithField("conversation_id", key).Warn("story reply notification failed")
		}
	}

	return conv, nil
}
