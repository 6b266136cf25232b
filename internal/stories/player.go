package stories

import (
	"fmt"
	"sync"
	"time"

	"github.com/anonto42/nano-midea/moments/internal/clock"
	"github.com/sirupsen/logrus"
)

// DefaultTickPeriod gives every item five seconds on screen.
const DefaultTickPeriod = 50 * time.Millisecond

type EventKind string

const (
	EventPrev         EventKind = "prev"
	EventNext         EventKind = "next"
	EventHoldStart    EventKind = "hold_start"
	EventHoldEnd      EventKind = "hold_end"
	EventOverlayOpen  EventKind = "overlay_open"
	EventOverlayClose EventKind = "overlay_close"
	EventFocusLost    EventKind = "focus_lost"
	EventFocusGained  EventKind = "focus_gained"
	EventReact        EventKind = "react"
	EventReply        EventKind = "reply"
	EventEditBegin    EventKind = "edit_begin"
	EventEditSave     EventKind = "edit_save"
	EventEditCancel   EventKind = "edit_cancel"
	EventDelete       EventKind = "delete"
	EventMediaFailed  EventKind = "media_failed"
	EventClose        EventKind = "close"
)

// Event is a user gesture or UI signal applied to a session
type Event struct {
	Kind    EventKind `json:"type"`
	Overlay Overlay   `json:"overlay,omitempty"`
	Emoji   string    `json:"emoji,omitempty"`
	Text    string    `json:"text,omitempty"`
	ItemID  string    `json:"item_id,omitempty"`
}

// Listener receives a snapshot after every applied event and every progressing tick.
// It runs on the player goroutine and must not call back into the player.
type Listener func(Snapshot)

type request struct {
	event Event
	reply chan error
}

// Player owns a session's tick timer and event queue. Ticks and events are
// applied one at a time in arrival order.
type Player struct {
	session   *Session
	period    time.Duration
	newTicker clock.TickerFactory
	listener  Listener

	events chan request
	stop   chan struct{}
	done   chan struct{}

	startOnce sync.Once
	stopOnce  sync.Once

	mu   sync.Mutex
	last Snapshot

	log *logrus.Entry
}

func NewPlayer(session *Session, period time.Duration, newTicker clock.TickerFactory, listener Listener, log *logrus.Entry) *Player {
	if period <= 0 {
		period = DefaultTickPeriod
	}
	if newTicker == nil {
		newTicker = clock.NewTicker
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Player{
		session:   session,
		period:    period,
		newTicker: newTicker,
		listener:  listener,
		events:    make(chan request),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
		last:      session.Snapshot(),
		log: log.WithFields(logrus.Fields{
			"component":  "story_player",
			"session_id": session.ID(),
			"viewer_id":  session.ViewerID(),
		}),
	}
}

// Start launches the tick timer and the event loop.
func (p *Player) Start() {
	p.startOnce.Do(func() {
		ticker := p.newTicker(p.period)
		go p.run(ticker)
	})
}

func (p *Player) run(ticker clock.Ticker) {
	defer close(p.done)
	defer ticker.Stop()

	p.log.Debug("story session started")
	p.emit()
	for !p.session.Closed() {
		select {
		case <-p.stop:
			p.session.Close()
			p.emit()
		case <-ticker.C():
			if p.session.Tick() {
				p.emit()
			}
		case req := <-p.events:
			err := p.apply(req.event)
			p.emit()
			req.reply <- err
		}
	}
	p.log.Debug("story session closed")
}

// Send applies ev after every event queued before it.
func (p *Player) Send(ev Event) error {
	req := request{event: ev, reply: make(chan error, 1)}
	select {
	case p.events <- req:
		return <-req.reply
	case <-p.done:
		return ErrSessionClosed
	}
}

func (p *Player) apply(ev Event) error {
	s := p.session
	switch ev.Kind {
	case EventPrev:
		return s.Prev()
	case EventNext:
		return s.Next()
	case EventHoldStart:
		return s.HoldStart()
	case EventHoldEnd:
		return s.HoldEnd()
	case EventOverlayOpen:
		return s.OpenOverlay(ev.Overlay)
	case EventOverlayClose:
		return s.CloseOverlay()
	case EventFocusLost:
		return s.FocusLost()
	case EventFocusGained:
		return s.FocusGained()
	case EventReact:
		return s.React(ev.Emoji)
	case EventReply:
		return s.Reply(ev.Text)
	case EventEditBegin:
		return s.BeginEdit()
	case EventEditSave:
		return s.SaveEdit(ev.Text)
	case EventEditCancel:
		return s.CancelEdit()
	case EventDelete:
		return s.Delete()
	case EventMediaFailed:
		return s.MediaFailed(ev.ItemID)
	case EventClose:
		s.Close()
		return nil
	}
	return fmt.Errorf("unknown story event %q", ev.Kind)
}

func (p *Player) emit() {
	snap := p.session.Snapshot()
	p.mu.Lock()
	p.last = snap
	p.mu.Unlock()
	if p.listener != nil {
		p.listener(snap)
	}
}

// Snapshot returns the state published most recently.
func (p *Player) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last
}

// Done is closed once the session has closed and the tick timer is released.
func (p *Player) Done() <-chan struct{} {
	return p.done
}

// Stop closes the session and waits until the tick timer is released.
// It must not be called from a Listener.
func (p *Player) Stop() {
	p.stopOnce.Do(func() {
		close(p.stop)
	})
	p.Start()
	<-p.done
}
