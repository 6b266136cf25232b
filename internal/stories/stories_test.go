package stories

import (
	"fmt"
	"sync"
	"time"

	"github.com/anonto42/nano-midea/moments/internal/models"
)

var t0 = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func item(id, author string, age time.Duration) models.StoryItem {
	return models.StoryItem{
		ID:                id,
		AuthorID:          author,
		AuthorDisplayName: "name-" + author,
		MediaRef:          "https://blob.example/" + id,
		MediaKind:         models.MediaImage,
		CreatedAt:         t0.Add(-age),
	}
}

func group(author string, n int) models.StoryGroup {
	g := models.StoryGroup{AuthorID: author}
	for i := 0; i < n; i++ {
		g.Items = append(g.Items, item(fmt.Sprintf("%s-%d", author, i), author, time.Duration(i)*time.Minute))
	}
	return g
}

type recordingEffects struct {
	mu        sync.Mutex
	views     []string
	reactions []models.Reaction
	replies   []string
	captions  []string
	deletes   []string
}

func (r *recordingEffects) RecordView(item models.StoryItem, viewerID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.views = append(r.views, item.ID+"/"+viewerID)
}

func (r *recordingEffects) RecordReaction(item models.StoryItem, reaction models.Reaction) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reactions = append(r.reactions, reaction)
}

func (r *recordingEffects) SendReply(item models.StoryItem, viewerID, text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.replies = append(r.replies, item.ID+":"+text)
}

func (r *recordingEffects) UpdateCaption(item models.StoryItem, viewerID, caption string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.captions = append(r.captions, item.ID+":"+caption)
}

func (r *recordingEffects) DeleteItem(item models.StoryItem, viewerID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deletes = append(r.deletes, item.ID)
}
