package models

import (
	"errors"
	"time"
)

// MessageKind is the closed set of message variants
type MessageKind string

const (
	MessageText       MessageKind = "text"
	MessageStoryReply MessageKind = "story_reply"
)

var (
	ErrUnknownMessageKind = errors.New("message: unknown kind")
	ErrMissingStoryRef    = errors.New("message: story reply without story reference")
	ErrUnexpectedStoryRef = errors.New("message: text message with story reference")
)

// StoryReference points a story reply at the media it answers
type StoryReference struct {
	ItemID   string `json:"item_id" bson:"item_id"`
	MediaRef string `json:"media_ref" bson:"media_ref"`
}

// Message is an entry of a two-party conversation. Story is set only for story replies.
type Message struct {
	ID       string          `json:"id" bson:"id"`
	Kind     MessageKind     `json:"kind" bson:"kind"`
	SenderID string          `json:"sender_id" bson:"sender_id"`
	Text     string          `json:"text" bson:"text"`
	Story    *StoryReference `json:"story,omitempty" bson:"story,omitempty"`
	SentAt   time.Time       `json:"sent_at" bson:"sent_at"`
}

// Validate checks that the payload matches the message kind
func (m *Message) Validate() error {
	switch m.Kind {
	case MessageText:
		if m.Story != nil {
			return ErrUnexpectedStoryRef
		}
	case MessageStoryReply:
		if m.Story == nil || m.Story.MediaRef == "" {
			return ErrMissingStoryRef
		}
	default:
		return ErrUnknownMessageKind
	}
	return nil
}

// Conversation is a canonical two-party thread stored in MongoDB.
// ID is the pair key of its two participants.
type Conversation struct {
	ID            string    `json:"id" bson:"_id"`
	Participants  []string  `json:"participants" bson:"participants"`
	Messages      []Message `json:"messages" bson:"messages"`
	LastSenderID  string    `json:"last_sender_id" bson:"last_sender_id"`
	LastMessageAt time.Time `json:"last_message_at" bson:"last_message_at"`
	ReadBy        []string  `json:"read_by" bson:"read_by"`
	CreatedAt     time.Time `json:"created_at" bson:"created_at"`
}

// UnreadFor reports whether the conversation carries a message userID has not read
func (c *Conversation) UnreadFor(userID string) bool {
	if c.LastSenderID == userID {
		return false
	}
	for _, id := range c.ReadBy {
		if id == userID {
			return false
		}
	}
	return true
}
