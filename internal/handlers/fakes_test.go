package handlers

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/anonto42/nano-midea/moments/internal/engagement"
	"github.com/anonto42/nano-midea/moments/internal/middleware"
	"github.com/anonto42/nano-midea/moments/internal/models"
	"github.com/anonto42/nano-midea/moments/internal/reply"
	"github.com/anonto42/nano-midea/moments/internal/repositories"
	"github.com/anonto42/nano-midea/moments/internal/stories"
	"github.com/anonto42/nano-midea/moments/validators"
	"github.com/labstack/echo/v4"
)

type memStories struct {
	mu    sync.Mutex
	seq   int
	items map[string]models.StoryItem
}

func newMemStories(items ...models.StoryItem) *memStories {
	m := &memStories{items: make(map[string]models.StoryItem)}
	for _, it := range items {
		m.items[it.ID] = it
	}
	return m
}

func (m *memStories) CreateStoryItem(_ context.Context, item *models.StoryItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	item.ID = fmt.Sprintf("new-%d", m.seq)
	item.CreatedAt = time.Now().UTC()
	m.items[item.ID] = *item
	return nil
}

func (m *memStories) GetStoryItem(_ context.Context, id string) (*models.StoryItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.items[id]
	if !ok {
		return nil, repositories.ErrStoryNotFound
	}
	return &it, nil
}

func (m *memStories) ListStoriesSince(_ context.Context, since time.Time) ([]models.StoryItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.StoryItem
	for _, it := range m.items {
		if it.CreatedAt.After(since) {
			out = append(out, it)
		}
	}
	return out, nil
}

func (m *memStories) AppendView(_ context.Context, itemID, viewerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.items[itemID]
	if !ok || it.AuthorID == viewerID {
		return repositories.ErrStoryNotFound
	}
	if !it.SeenBy(viewerID) {
		it.ViewerIDs = append(append([]string(nil), it.ViewerIDs...), viewerID)
	}
	m.items[itemID] = it
	return nil
}

func (m *memStories) AppendReaction(_ context.Context, itemID string, r models.Reaction) error {
	return m.update(itemID, func(it *models.StoryItem) {
		it.Reactions = append(append([]models.Reaction(nil), it.Reactions...), r)
	})
}

func (m *memStories) UpdateCaption(_ context.Context, itemID, caption string) error {
	return m.update(itemID, func(it *models.StoryItem) { it.Caption = caption })
}

func (m *memStories) DeleteItem(_ context.Context, itemID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[itemID]; !ok {
		return repositories.ErrStoryNotFound
	}
	delete(m.items, itemID)
	return nil
}

func (m *memStories) WatchStories(ctx context.Context, _ func(models.StoryItem), _ func(string)) error {
	<-ctx.Done()
	return nil
}

func (m *memStories) update(id string, fn func(*models.StoryItem)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.items[id]
	if !ok {
		return repositories.ErrStoryNotFound
	}
	fn(&it)
	m.items[id] = it
	return nil
}

func (m *memStories) get(id string) (models.StoryItem, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.items[id]
	return it, ok
}

type memFollows map[string][]string

func (f memFollows) GetFollowingIDs(_ context.Context, userID string) ([]string, error) {
	return f[userID], nil
}

type memUsers map[string]models.User

func (m memUsers) UpsertUser(u *models.User) error {
	m[u.ID] = *u
	return nil
}

func (m memUsers) CreateUserIfMissing(u *models.User) error {
	if _, ok := m[u.ID]; !ok {
		m[u.ID] = *u
	}
	return nil
}

func (m memUsers) GetUserByID(id string) (*models.User, error) {
	u, ok := m[id]
	if !ok {
		return nil, repositories.ErrUserNotFound
	}
	return &u, nil
}

type memConversations struct {
	mu    sync.Mutex
	convs map[string]*models.Conversation
}

func (m *memConversations) AppendMessage(_ context.Context, key string, participants []string, msg models.Message) (*models.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.convs == nil {
		m.convs = make(map[string]*models.Conversation)
	}
	conv, ok := m.convs[key]
	if !ok {
		conv = &models.Conversation{ID: key, Participants: participants}
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
	mu      sync.Mutex
	created []models.Notification
}

func (m *memNotifier) CreateNotification(n *models.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.created = append(m.created, *n)
	return nil
}

// storyFixture is bob's two items, carol's one and alice's own one. alice
// follows bob but not carol.
type storyFixture struct {
	e        *echo.Echo
	repo     *memStories
	index    *stories.Store
	tracker  *engagement.Tracker
	replies  *reply.Channel
	convs    *memConversations
	notifier *memNotifier
	users    memUsers
}

func newStoryFixture() *storyFixture {
	now := time.Now().UTC()
	repo := newMemStories(
		models.StoryItem{ID: "bob-old", AuthorID: "bob", MediaRef: "m/b1.jpg", MediaKind: models.MediaImage, CreatedAt: now.Add(-3 * time.Hour), ViewerIDs: []string{"dave"}},
		models.StoryItem{ID: "bob-new", AuthorID: "bob", MediaRef: "m/b2.mp4", MediaKind: models.MediaVideo, CreatedAt: now.Add(-time.Hour)},
		models.StoryItem{ID: "carol-1", AuthorID: "carol", MediaRef: "m/c1.jpg", MediaKind: models.MediaImage, CreatedAt: now.Add(-30 * time.Minute)},
		models.StoryItem{ID: "alice-1", AuthorID: "alice", MediaRef: "m/a1.jpg", MediaKind: models.MediaImage, CreatedAt: now.Add(-2 * time.Hour), ViewerIDs: []string{"bob"}},
		models.StoryItem{ID: "bob-expired", AuthorID: "bob", MediaRef: "m/b0.jpg", MediaKind: models.MediaImage, CreatedAt: now.Add(-25 * time.Hour)},
	)
	index := stories.NewStore(repo, memFollows{"alice": {"bob"}}, nil)
	for _, it := range repo.items {
		index.Upsert(it)
	}

	users := memUsers{"alice": {ID: "alice", Name: "Alice", AvatarRef: "a.png"}}
	convs := &memConversations{}
	notifier := &memNotifier{}
	tracker := engagement.NewTracker(repo, index)
	replies := reply.NewChannel(convs, notifier, nil)

	e := echo.New()
	e.Validator = validators.NewValidator()
	api := e.Group("/api/v1", asUser)
	NewStoryHandler(repo, users, index, tracker, replies).RegisterStoryRoutes(api)

	return &storyFixture{e: e, repo: repo, index: index, tracker: tracker, replies: replies, convs: convs, notifier: notifier, users: users}
}

// asUser authenticates requests by the ?as= query parameter.
func asUser(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if id := c.QueryParam("as"); id != "" {
			c.Set(middleware.UserIDKey, id)
		}
		return next(c)
	}
}
