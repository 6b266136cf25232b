// Package engagement records views and reactions on story items and carries
// the owner-side writes (caption edits, deletion) through to storage.
package engagement

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/anonto42/nano-midea/moments/internal/models"
	"github.com/anonto42/nano-midea/moments/internal/stories"
)

var (
	// ErrSelfView is returned when an author is recorded as viewing their own item.
	ErrSelfView = errors.New("engagement: authors are not viewers of their own stories")
)

// Store is the persistence side of story engagement.
type Store interface {
	// AppendView adds viewerID to the item's viewer set. Repeat calls are no-ops.
	AppendView(ctx context.Context, itemID, viewerID string) error
	AppendReaction(ctx context.Context, itemID string, reaction models.Reaction) error
	UpdateCaption(ctx context.Context, itemID, caption string) error
	DeleteItem(ctx context.Context, itemID string) error
}

// Index is the in-memory view of live items kept in step with successful writes.
type Index interface {
	Mutate(id string, fn func(*models.StoryItem))
	Remove(id string)
}

type Tracker struct {
	store Store
	index Index
	now   func() time.Time
}

// NewTracker builds a tracker over store. index may be nil.
func NewTracker(store Store, index Index) *Tracker {
	return &Tracker{store: store, index: index, now: time.Now}
}

// RecordView adds viewerID to the item's viewer set. The set is unordered
// and never holds duplicates or the author.
func (t *Tracker) RecordView(ctx context.Context, item models.StoryItem, viewerID string) error {
	if viewerID == item.AuthorID {
		return ErrSelfView
	}
	if err := t.store.AppendView(ctx, item.ID, viewerID); err != nil {
		return err
	}
	t.mutate(item.ID, func(it *models.StoryItem) {
		if !it.SeenBy(viewerID) {
			it.ViewerIDs = append(it.ViewerIDs, viewerID)
		}
	})
	return nil
}

// RecordReaction appends a reaction to the item's log. Reactions are never
// deduplicated: the same viewer may react any number of times.
func (t *Tracker) RecordReaction(ctx context.Context, item models.StoryItem, viewerID, emoji string) (models.Reaction, error) {
	emoji = strings.TrimSpace(emoji)
	if emoji == "" {
		return models.Reaction{}, stories.ErrEmptyReaction
	}
	if viewerID == item.AuthorID {
		return models.Reaction{}, stories.ErrOwnStory
	}

	reaction := models.Reaction{ViewerID: viewerID, Emoji: emoji, CreatedAt: t.now().UTC()}
	if err := t.AppendReaction(ctx, item.ID, reaction); err != nil {
		return models.Reaction{}, err
	}
	return reaction, nil
}

// AppendReaction stores an already-built reaction.
func (t *Tracker) AppendReaction(ctx context.Context, itemID string, reaction models.Reaction) error {
	if err := t.store.AppendReaction(ctx, itemID, reaction); err != nil {
		return err
	}
	t.mutate(itemID, func(it *models.StoryItem) {
		it.Reactions = append(it.Reactions, reaction)
	})
	return nil
}

func (t *Tracker) UpdateCaption(ctx context.Context, item models.StoryItem, actorID, caption string) error {
	if actorID != item.AuthorID {
		return stories.ErrNotOwner
	}
	if err := t.store.UpdateCaption(ctx, item.ID, caption); err != nil {
		return err
	}
	t.mutate(item.ID, func(it *models.StoryItem) {
		it.Caption = caption
	})
	return nil
}

func (t *Tracker) DeleteItem(ctx context.Context, item models.StoryItem, actorID string) error {
	if actorID != item.AuthorID {
		return stories.ErrNotOwner
	}
	if err := t.store.DeleteItem(ctx, item.ID); err != nil {
		return err
	}
	if t.index != nil {
		t.index.Remove(item.ID)
	}
	return nil
}

func (t *Tracker) mutate(id string, fn func(*models.StoryItem)) {
	if t.index != nil {
		t.index.Mutate(id, fn)
	}
}
