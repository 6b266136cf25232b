package models

import (
	"time"
)

// MediaKind is the kind of media a story item carries
type MediaKind string

const (
	MediaImage MediaKind = "image"
	MediaVideo MediaKind = "video"
)

// StoryItem is one ephemeral media unit stored in MongoDB.
// CreatedAt is immutable; ViewerIDs never contains AuthorID.
type StoryItem struct {
	ID                string     `json:"id" bson:"_id"`
	AuthorID          string     `json:"author_id" bson:"author_id"`
	AuthorDisplayName string     `json:"author_display_name" bson:"author_display_name"`
	AuthorAvatarRef   string     `json:"author_avatar_ref" bson:"author_avatar_ref"`
	MediaRef          string     `json:"media_ref" bson:"media_ref"`
	MediaKind         MediaKind  `json:"media_kind" bson:"media_kind"`
	Caption           string     `json:"caption" bson:"caption"`
	CreatedAt         time.Time  `json:"created_at" bson:"created_at"`
	ViewerIDs         []string   `json:"viewer_ids" bson:"viewer_ids"`
	Reactions         []Reaction `json:"reactions" bson:"reactions"`
}

// Reaction is an immutable emoji reaction entry
type Reaction struct {
	ViewerID  string    `json:"viewer_id" bson:"viewer_id"`
	Emoji     string    `json:"emoji" bson:"emoji"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
}

// SeenBy reports whether viewerID is in the item's distinct viewer set
func (s *StoryItem) SeenBy(viewerID string) bool {
	for _, id := range s.ViewerIDs {
		if id == viewerID {
			return true
		}
	}
	return false
}

// VisibleTo returns the copy of the item viewerID may see. Only the author
// sees who viewed the item and every reaction; others see their own reactions.
func (s StoryItem) VisibleTo(viewerID string) StoryItem {
	if viewerID == s.AuthorID {
		return s
	}
	s.ViewerIDs = nil
	var own []Reaction
	for _, r := range s.Reactions {
		if r.ViewerID == viewerID {
			own = append(own, r)
		}
	}
	s.Reactions = own
	return s
}

// StoryGroup is the derived, never persisted, per-author stack of live items.
// Items are sorted by CreatedAt descending.
type StoryGroup struct {
	AuthorID          string      `json:"author_id"`
	AuthorDisplayName string      `json:"author_display_name"`
	AuthorAvatarRef   string      `json:"author_avatar_ref"`
	Items             []StoryItem `json:"items"`
	LatestCreatedAt   time.Time   `json:"latest_created_at"`
	Own               bool        `json:"own"`
}

// HasUnseen reports whether any item in the group has not been viewed by viewerID
func (g *StoryGroup) HasUnseen(viewerID string) bool {
	for i := range g.Items {
		if !g.Items[i].SeenBy(viewerID) {
			return true
		}
	}
	return false
}

// CreateStoryRequest defines the request body for creating a story item.
// MediaRef is the reference returned by the blob store upload.
type CreateStoryRequest struct {
	MediaRef  string `json:"media_ref" validate:"required"`
	MediaKind string `json:"media_kind" validate:"required,oneof=image video"`
	Caption   string `json:"caption" validate:"max=2200"`
}

// UpdateCaptionRequest defines the request body for editing a caption
type UpdateCaptionRequest struct {
	Caption string `json:"caption" validate:"max=2200"`
}

// ReactionRequest defines the request body for reacting to a story item
type ReactionRequest struct {
	Emoji string `json:"emoji" validate:"required,max=32"`
}

// ReplyRequest defines the request body for replying to a story item
type ReplyRequest struct {
	Text string `json:"text" validate:"required,max=1000"`
}
