package stories

import (
	"errors"
	"strings"
	"time"

	"github.com/anonto42/nano-midea/moments/internal/models"
	"github.com/anonto42/nano-midea/moments/pkg/metrics"
	"github.com/google/uuid"
)

// ProgressSteps is the number of ticks an item stays on screen.
const ProgressSteps = 100

var (
	ErrSessionClosed = errors.New("story session closed")
	ErrNoSuchGroup   = errors.New("story group not found")
	ErrNotOwner      = errors.New("only the author can do this")
	ErrOwnStory      = errors.New("cannot react or reply to your own story")
	ErrEmptyReply    = errors.New("reply text is empty")
	ErrEmptyReaction = errors.New("reaction is empty")
	ErrNotEditing    = errors.New("caption edit is not open")
	ErrBadOverlay    = errors.New("unknown overlay")
)

type RunMode string

const (
	RunModeRunning       RunMode = "running"
	RunModePausedByUI    RunMode = "paused_ui"
	RunModePausedByFocus RunMode = "paused_focus"
	RunModeClosed        RunMode = "closed"
)

type Overlay string

const (
	OverlayNone        Overlay = "none"
	OverlayViewerList  Overlay = "viewer_list"
	OverlayOwnerMenu   Overlay = "owner_menu"
	OverlayCaptionEdit Overlay = "caption_edit"
)

// Effects receives the session's store writes. Implementations must not block:
// the session never waits for a write and never learns whether it succeeded.
type Effects interface {
	RecordView(item models.StoryItem, viewerID string)
	RecordReaction(item models.StoryItem, reaction models.Reaction)
	SendReply(item models.StoryItem, viewerID, text string)
	UpdateCaption(item models.StoryItem, viewerID, caption string)
	DeleteItem(item models.StoryItem, viewerID string)
}

// Session is one open story viewer. It is not safe for concurrent use; a
// Player serializes every event applied to it.
type Session struct {
	id       string
	viewerID string
	groups   []models.StoryGroup

	groupIndex int
	itemIndex  int
	units      int

	held      bool
	unfocused bool
	overlay   Overlay
	closed    bool

	viewed  map[string]struct{}
	effects Effects
	now     func() time.Time
}

// Open starts a session at the first item of groups[start]. Empty groups are skipped.
func Open(viewerID string, groups []models.StoryGroup, start int, effects Effects) (*Session, error) {
	if start < 0 || start >= len(groups) || len(groups[start].Items) == 0 {
		return nil, ErrNoSuchGroup
	}

	s := &Session{
		id:       uuid.NewString(),
		viewerID: viewerID,
		overlay:  OverlayNone,
		viewed:   make(map[string]struct{}),
		effects:  effects,
		now:      time.Now,
	}
	for i, g := range groups {
		if len(g.Items) == 0 {
			continue
		}
		if i == start {
			s.groupIndex = len(s.groups)
		}
		s.groups = append(s.groups, copyGroup(g))
	}

	metrics.SessionOpened()
	s.display()
	return s, nil
}

func copyGroup(g models.StoryGroup) models.StoryGroup {
	items := make([]models.StoryItem, len(g.Items))
	for i, item := range g.Items {
		item.ViewerIDs = append([]string(nil), item.ViewerIDs...)
		item.Reactions = append([]models.Reaction(nil), item.Reactions...)
		items[i] = item
	}
	g.Items = items
	return g
}

func (s *Session) ID() string { return s.id }

func (s *Session) ViewerID() string { return s.viewerID }

func (s *Session) Closed() bool { return s.closed }

// Progress is the current item's progress fraction in [0, 1].
func (s *Session) Progress() float64 {
	return float64(s.units) / ProgressSteps
}

func (s *Session) RunMode() RunMode {
	switch {
	case s.closed:
		return RunModeClosed
	case s.held || s.overlay != OverlayNone:
		return RunModePausedByUI
	case s.unfocused:
		return RunModePausedByFocus
	}
	return RunModeRunning
}

func (s *Session) current() *models.StoryItem {
	return &s.groups[s.groupIndex].Items[s.itemIndex]
}

func (s *Session) owns() bool {
	return s.current().AuthorID == s.viewerID
}

// display records the view of the item now on screen, once per item per session.
func (s *Session) display() {
	item := s.current()
	if item.AuthorID == s.viewerID {
		return
	}
	if _, ok := s.viewed[item.ID]; ok {
		return
	}
	s.viewed[item.ID] = struct{}{}
	if !item.SeenBy(s.viewerID) {
		item.ViewerIDs = append(item.ViewerIDs, s.viewerID)
	}
	if s.effects != nil {
		s.effects.RecordView(*item, s.viewerID)
	}
}

// moved resets per-item state after the displayed item changed.
func (s *Session) moved() {
	s.units = 0
	s.overlay = OverlayNone
	s.display()
}

// advance moves past the current item as if it completed.
func (s *Session) advance() {
	switch {
	case s.itemIndex+1 < len(s.groups[s.groupIndex].Items):
		s.itemIndex++
	case s.groupIndex+1 < len(s.groups):
		s.groupIndex++
		s.itemIndex = 0
	default:
		s.Close()
		return
	}
	s.moved()
}

// Tick advances progress by one step while running and reports whether anything changed.
func (s *Session) Tick() bool {
	if s.RunMode() != RunModeRunning {
		return false
	}
	s.units++
	if s.units >= ProgressSteps {
		s.advance()
	}
	return true
}

func (s *Session) Next() error {
	if s.closed {
		return ErrSessionClosed
	}
	s.advance()
	return nil
}

// Prev steps back one item, crossing into the previous group's first item.
// At the very first item it does nothing.
func (s *Session) Prev() error {
	if s.closed {
		return ErrSessionClosed
	}
	switch {
	case s.itemIndex > 0:
		s.itemIndex--
	case s.groupIndex > 0:
		s.groupIndex--
		s.itemIndex = 0
	default:
		return nil
	}
	s.moved()
	return nil
}

func (s *Session) HoldStart() error {
	if s.closed {
		return ErrSessionClosed
	}
	s.held = true
	return nil
}

func (s *Session) HoldEnd() error {
	if s.closed {
		return ErrSessionClosed
	}
	s.held = false
	return nil
}

func (s *Session) FocusLost() error {
	if s.closed {
		return ErrSessionClosed
	}
	s.unfocused = true
	return nil
}

func (s *Session) FocusGained() error {
	if s.closed {
		return ErrSessionClosed
	}
	s.unfocused = false
	return nil
}

// OpenOverlay pauses the session behind an owner overlay.
func (s *Session) OpenOverlay(kind Overlay) error {
	if s.closed {
		return ErrSessionClosed
	}
	switch kind {
	case OverlayViewerList, OverlayOwnerMenu, OverlayCaptionEdit:
	default:
		return ErrBadOverlay
	}
	if !s.owns() {
		return ErrNotOwner
	}
	s.overlay = kind
	return nil
}

// CloseOverlay returns to running whatever the hold state was. An open caption
// edit is discarded.
func (s *Session) CloseOverlay() error {
	if s.closed {
		return ErrSessionClosed
	}
	s.overlay = OverlayNone
	s.held = false
	return nil
}

func (s *Session) React(emoji string) error {
	if s.closed {
		return ErrSessionClosed
	}
	emoji = strings.TrimSpace(emoji)
	if emoji == "" {
		return ErrEmptyReaction
	}
	if s.owns() {
		return ErrOwnStory
	}
	item := s.current()
	r := models.Reaction{ViewerID: s.viewerID, Emoji: emoji, CreatedAt: s.now()}
	item.Reactions = append(item.Reactions, r)
	if s.effects != nil {
		s.effects.RecordReaction(*item, r)
	}
	return nil
}

func (s *Session) Reply(text string) error {
	if s.closed {
		return ErrSessionClosed
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyReply
	}
	if s.owns() {
		return ErrOwnStory
	}
	if s.effects != nil {
		s.effects.SendReply(*s.current(), s.viewerID, text)
	}
	return nil
}

func (s *Session) BeginEdit() error {
	return s.OpenOverlay(OverlayCaptionEdit)
}

func (s *Session) SaveEdit(caption string) error {
	if s.closed {
		return ErrSessionClosed
	}
	if s.overlay != OverlayCaptionEdit {
		return ErrNotEditing
	}
	if !s.owns() {
		return ErrNotOwner
	}
	item := s.current()
	item.Caption = caption
	if s.effects != nil {
		s.effects.UpdateCaption(*item, s.viewerID, caption)
	}
	s.overlay = OverlayNone
	s.held = false
	return nil
}

func (s *Session) CancelEdit() error {
	if s.closed {
		return ErrSessionClosed
	}
	if s.overlay != OverlayCaptionEdit {
		return ErrNotEditing
	}
	s.overlay = OverlayNone
	s.held = false
	return nil
}

// Delete removes the current item. The session then continues as if the item
// had completed, closing when nothing follows it.
func (s *Session) Delete() error {
	if s.closed {
		return ErrSessionClosed
	}
	if !s.owns() {
		return ErrNotOwner
	}
	item := *s.current()
	if s.effects != nil {
		s.effects.DeleteItem(item, s.viewerID)
	}

	g := &s.groups[s.groupIndex]
	g.Items = append(g.Items[:s.itemIndex:s.itemIndex], g.Items[s.itemIndex+1:]...)
	s.held = false

	if len(g.Items) == 0 {
		s.groups = append(s.groups[:s.groupIndex:s.groupIndex], s.groups[s.groupIndex+1:]...)
		if s.groupIndex >= len(s.groups) {
			s.Close()
			return nil
		}
		s.itemIndex = 0
		s.moved()
		return nil
	}
	if s.itemIndex < len(g.Items) {
		s.moved()
		return nil
	}
	s.itemIndex--
	s.advance()
	return nil
}

// MediaFailed ends the item early when its media could not load. Reports for
// an item that is no longer on screen are ignored.
func (s *Session) MediaFailed(itemID string) error {
	if s.closed {
		return ErrSessionClosed
	}
	if s.current().ID != itemID {
		return nil
	}
	s.advance()
	return nil
}

// Close ends the session. Closing twice is a no-op.
func (s *Session) Close() {
	if s.closed {
		return
	}
	s.closed = true
	s.held = false
	s.overlay = OverlayNone
	metrics.SessionClosed()
}

// Snapshot is the externally visible session state
type Snapshot struct {
	SessionID  string            `json:"session_id"`
	RunMode    RunMode           `json:"run_mode"`
	Overlay    Overlay           `json:"overlay"`
	GroupIndex int               `json:"group_index"`
	ItemIndex  int               `json:"item_index"`
	GroupCount int               `json:"group_count"`
	ItemCount  int               `json:"item_count"`
	Progress   float64           `json:"progress"`
	Item       *models.StoryItem `json:"item,omitempty"`
	ViewerIDs  []string          `json:"viewer_ids,omitempty"`
}

func (s *Session) Snapshot() Snapshot {
	snap := Snapshot{
		SessionID:  s.id,
		RunMode:    s.RunMode(),
		Overlay:    s.overlay,
		GroupIndex: s.groupIndex,
		ItemIndex:  s.itemIndex,
		GroupCount: len(s.groups),
		Progress:   s.Progress(),
	}
	if s.closed {
		return snap
	}
	item := *s.current()
	snap.ItemCount = len(s.groups[s.groupIndex].Items)
	snap.Item = &item
	if s.overlay == OverlayViewerList {
		snap.ViewerIDs = append([]string(nil), item.ViewerIDs...)
	}
	return snap
}
