package stories

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/anonto42/nano-midea/moments/internal/models"
	"github.com/sirupsen/logrus"
)

// ItemSource is the trailing-window query over persisted story items.
type ItemSource interface {
	ListStoriesSince(ctx context.Context, since time.Time) ([]models.StoryItem, error)
}

// ChangeFeed streams story item changes until ctx is done.
type ChangeFeed interface {
	WatchStories(ctx context.Context, onUpsert func(models.StoryItem), onDelete func(id string)) error
}

// FollowSource resolves the ids a user follows.
type FollowSource interface {
	GetFollowingIDs(ctx context.Context, userID string) ([]string, error)
}

// Store is the live index behind the story bar. It holds every item created in
// the trailing TTL window and derives per-viewer groups from it on demand.
type Store struct {
	mu    sync.RWMutex
	items map[string]models.StoryItem
	// ids written while a resync query is in flight; nil otherwise
	touched map[string]struct{}

	resyncMu sync.Mutex

	source  ItemSource
	follows FollowSource
	now     func() time.Time
	log     *logrus.Entry
}

func NewStore(source ItemSource, follows FollowSource, log *logrus.Entry) *Store {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Store{
		items:   make(map[string]models.StoryItem),
		source:  source,
		follows: follows,
		now:     time.Now,
		log:     log.WithField("component", "story_store"),
	}
}

// SetClock replaces the time source, used by tests.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	s.now = now
	s.mu.Unlock()
}

func (s *Store) Now() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.now()
}

// Resync replaces the index with the source's trailing-window items. Items
// upserted, removed or mutated while the query runs keep their current state.
func (s *Store) Resync(ctx context.Context) error {
	s.resyncMu.Lock()
	defer s.resyncMu.Unlock()

	s.mu.Lock()
	s.touched = make(map[string]struct{})
	since := s.now().Add(-TTL)
	s.mu.Unlock()

	items, err := s.source.ListStoriesSince(ctx, since)

	s.mu.Lock()
	defer s.mu.Unlock()
	touched := s.touched
	s.touched = nil
	if err != nil {
		return fmt.Errorf("resync story index: %w", err)
	}

	next := make(map[string]models.StoryItem, len(items))
	for _, item := range items {
		next[item.ID] = item
	}
	for id := range touched {
		if item, ok := s.items[id]; ok {
			next[id] = item
		} else {
			delete(next, id)
		}
	}
	s.items = next

	s.log.WithFields(logrus.Fields{"items": len(next), "kept_writes": len(touched)}).Debug("story index resynced")
	return nil
}

// touchLocked records a write made during a resync.
func (s *Store) touchLocked(id string) {
	if s.touched != nil {
		s.touched[id] = struct{}{}
	}
}

// Upsert inserts or replaces an item in the index.
func (s *Store) Upsert(item models.StoryItem) {
	s.mu.Lock()
	s.items[item.ID] = item
	s.touchLocked(item.ID)
	s.mu.Unlock()
}

func (s *Store) Remove(id string) {
	s.mu.Lock()
	delete(s.items, id)
	s.touchLocked(id)
	s.mu.Unlock()
}

// Mutate applies fn to the indexed copy of an item. Unknown ids are ignored.
func (s *Store) Mutate(id string, fn func(*models.StoryItem)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[id]
	if !ok {
		return
	}
	fn(&item)
	s.items[id] = item
	s.touchLocked(id)
}

// Item returns a live item by id.
func (s *Store) Item(id string) (models.StoryItem, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.items[id]
	if !ok || !Live(&item, s.now()) {
		return models.StoryItem{}, false
	}
	return item, true
}

// Prune drops expired items from the index and returns how many were dropped.
// Persisted items are left untouched.
func (s *Store) Prune() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	dropped := 0
	for id, item := range s.items {
		if !Live(&item, now) {
			delete(s.items, id)
			dropped++
		}
	}
	return dropped
}

// Len is the number of indexed items, expired ones included until pruned.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Groups returns the viewer's story bar.
func (s *Store) Groups(ctx context.Context, viewerID string) ([]models.StoryGroup, error) {
	ids, err := s.follows.GetFollowingIDs(ctx, viewerID)
	if err != nil {
		return nil, fmt.Errorf("load follow set: %w", err)
	}

	s.mu.RLock()
	items := make([]models.StoryItem, 0, len(s.items))
	for _, item := range s.items {
		items = append(items, item)
	}
	now := s.now()
	s.mu.RUnlock()

	return BuildGroups(items, viewerID, NewFollowSet(ids...), now), nil
}

// Watch keeps the index current from a change feed until ctx is done.
func (s *Store) Watch(ctx context.Context, feed ChangeFeed) error {
	err := feed.WatchStories(ctx, s.Upsert, s.Remove)
	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("watch stories: %w", err)
	}
	return nil
}
