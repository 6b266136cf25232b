// Package playback decides which single feed video may autoplay, from
// coalesced viewport visibility observations.
package playback

import (
	"math"
	"sync"

	"github.com/anonto42/nano-midea/moments/internal/models"
	"github.com/anonto42/nano-midea/moments/pkg/metrics"
)

// ActivationThreshold is the minimum intersection ratio for a video to autoplay.
const ActivationThreshold = 0.70

// Candidate is one visibility observation of a feed media element
type Candidate struct {
	ItemID    string           `json:"item_id"`
	MediaKind models.MediaKind `json:"media_kind"`
	Ratio     float64          `json:"ratio"`
}

func (c Candidate) eligible() bool {
	return c.MediaKind == models.MediaVideo && c.Ratio >= ActivationThreshold
}

type CommandKind string

const (
	CommandActivate   CommandKind = "activate"
	CommandDeactivate CommandKind = "deactivate"
)

// Command is an activation change the feed must apply, in order
type Command struct {
	Kind   CommandKind `json:"type"`
	ItemID string      `json:"item_id"`
}

// Decision is the outcome of one scheduling pass
type Decision struct {
	Commands []Command
	ActiveID string
}

type tracked struct {
	Candidate
	order uint64
}

// Scheduler owns the active item id. A deactivate for the previous item is
// always emitted before the activate of the next one.
type Scheduler struct {
	mu         sync.Mutex
	candidates map[string]*tracked
	seq        uint64
	active     string
}

func NewScheduler() *Scheduler {
	return &Scheduler{candidates: make(map[string]*tracked)}
}

// Active returns the currently activated item id, or "".
func (s *Scheduler) Active() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// OnVisibilityBatch merges the batch into the candidate set and reselects the active item.
// An entry with ratio 0 removes the item from the candidate set.
func (s *Scheduler) OnVisibilityBatch(entries []Candidate) Decision {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range entries {
		e.Ratio = clampRatio(e.Ratio)
		if e.Ratio <= 0 {
			delete(s.candidates, e.ItemID)
			continue
		}
		if c, ok := s.candidates[e.ItemID]; ok {
			c.Candidate = e
			continue
		}
		s.seq++
		s.candidates[e.ItemID] = &tracked{Candidate: e, order: s.seq}
	}

	var cmds []Command
	if s.active != "" {
		c, ok := s.candidates[s.active]
		if !ok || !c.eligible() {
			cmds = append(cmds, s.deactivateLocked())
		}
	}

	next := s.selectLocked()
	if next != "" && next != s.active {
		if s.active != "" {
			cmds = append(cmds, s.deactivateLocked())
		}
		s.active = next
		cmds = append(cmds, Command{Kind: CommandActivate, ItemID: next})
		metrics.PlaybackCommand(string(CommandActivate))
	}

	return Decision{Commands: cmds, ActiveID: s.active}
}

// Remove drops an item from the candidate set, deactivating it if active.
func (s *Scheduler) Remove(itemID string) Decision {
	return s.OnVisibilityBatch([]Candidate{{ItemID: itemID}})
}

// Reset clears every candidate and deactivates the active item.
func (s *Scheduler) Reset() Decision {
	s.mu.Lock()
	defer s.mu.Unlock()

	var cmds []Command
	if s.active != "" {
		cmds = append(cmds, s.deactivateLocked())
	}
	s.candidates = make(map[string]*tracked)
	return Decision{Commands: cmds}
}

func (s *Scheduler) deactivateLocked() Command {
	cmd := Command{Kind: CommandDeactivate, ItemID: s.active}
	s.active = ""
	metrics.PlaybackCommand(string(CommandDeactivate))
	return cmd
}

// selectLocked picks the eligible candidate with the greatest ratio. Ties keep
// the incumbent, otherwise the candidate first observed wins.
func (s *Scheduler) selectLocked() string {
	var best *tracked
	for _, c := range s.candidates {
		if !c.eligible() {
			continue
		}
		switch {
		case best == nil, c.Ratio > best.Ratio:
			best = c
		case c.Ratio == best.Ratio && s.preferLocked(c, best):
			best = c
		}
	}
	if best == nil {
		return ""
	}
	return best.ItemID
}

func (s *Scheduler) preferLocked(a, b *tracked) bool {
	if a.ItemID == s.active {
		return true
	}
	if b.ItemID == s.active {
		return false
	}
	return a.order < b.order
}

func clampRatio(r float64) float64 {
	switch {
	case math.IsNaN(r), r < 0:
		return 0
	case r > 1:
		return 1
	}
	return r
}
