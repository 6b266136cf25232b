// Package stories groups ephemeral story items by author and drives the
// story viewer session.
package stories

import (
	"time"

	"github.com/anonto42/nano-midea/moments/internal/models"
)

// TTL is the lifetime of a story item.
const TTL = 24 * time.Hour

// RingRatio is the fraction of the item's lifetime remaining at now, in [0, 1].
// It is recomputed on every render and never stored.
func RingRatio(createdAt, now time.Time) float64 {
	r := 1 - float64(now.Sub(createdAt))/float64(TTL)
	switch {
	case r < 0:
		return 0
	case r > 1:
		return 1
	}
	return r
}

// Live reports whether the item is still inside its TTL at now.
func Live(item *models.StoryItem, now time.Time) bool {
	return RingRatio(item.CreatedAt, now) > 0
}
