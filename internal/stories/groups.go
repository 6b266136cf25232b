package stories

import (
	"sort"
	"time"

	"github.com/anonto42/nano-midea/moments/internal/models"
)

// FollowSet is the set of author ids a viewer follows
type FollowSet map[string]struct{}

func NewFollowSet(ids ...string) FollowSet {
	fs := make(FollowSet, len(ids))
	for _, id := range ids {
		fs[id] = struct{}{}
	}
	return fs
}

func (f FollowSet) Has(id string) bool {
	_, ok := f[id]
	return ok
}

// BuildGroups groups the live items authored by the viewer or someone the viewer
// follows. Items are sorted newest first inside a group and groups by their newest
// item; equal timestamps fall back to author id so the order is stable.
func BuildGroups(items []models.StoryItem, viewerID string, follows FollowSet, now time.Time) []models.StoryGroup {
	byAuthor := make(map[string]*models.StoryGroup)
	for i := range items {
		item := items[i]
		if item.AuthorID != viewerID && !follows.Has(item.AuthorID) {
			continue
		}
		if !Live(&item, now) {
			continue
		}
		g, ok := byAuthor[item.AuthorID]
		if !ok {
			g = &models.StoryGroup{AuthorID: item.AuthorID, Own: item.AuthorID == viewerID}
			byAuthor[item.AuthorID] = g
		}
		g.Items = append(g.Items, item)
	}

	groups := make([]models.StoryGroup, 0, len(byAuthor))
	for _, g := range byAuthor {
		sort.SliceStable(g.Items, func(i, j int) bool {
			if g.Items[i].CreatedAt.Equal(g.Items[j].CreatedAt) {
				return g.Items[i].ID < g.Items[j].ID
			}
			return g.Items[i].CreatedAt.After(g.Items[j].CreatedAt)
		})
		latest := g.Items[0]
		g.LatestCreatedAt = latest.CreatedAt
		g.AuthorDisplayName = latest.AuthorDisplayName
		g.AuthorAvatarRef = latest.AuthorAvatarRef
		groups = append(groups, *g)
	}

	sort.Slice(groups, func(i, j int) bool {
		if groups[i].LatestCreatedAt.Equal(groups[j].LatestCreatedAt) {
			return groups[i].AuthorID < groups[j].AuthorID
		}
		return groups[i].LatestCreatedAt.After(groups[j].LatestCreatedAt)
	})
	return groups
}
