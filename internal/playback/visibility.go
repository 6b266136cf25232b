package playback

import (
	"sync"
	"time"

	"github.com/anonto42/nano-midea/moments/internal/clock"
	"github.com/anonto42/nano-midea/moments/internal/models"
	"github.com/sirupsen/logrus"
)

// DefaultWindow is how long observations are coalesced before a batch is emitted.
const DefaultWindow = 100 * time.Millisecond

// BatchFunc receives one coalesced batch of visibility observations.
type BatchFunc func([]Candidate)

// VisibilityTracker collects intersection ratios of registered feed media
// elements and emits them in coalesced batches to its subscribers.
// Only the latest ratio per item survives within a window.
type VisibilityTracker struct {
	mu      sync.Mutex
	handles map[string]models.MediaKind
	pending map[string]float64
	order   []string
	subs    map[int]BatchFunc
	nextSub int

	// serializes batch delivery between the flush loop and explicit Flush calls
	flushMu sync.Mutex

	window    time.Duration
	newTicker clock.TickerFactory
	stop      chan struct{}
	done      chan struct{}
	log       *logrus.Entry
}

func NewVisibilityTracker(window time.Duration, newTicker clock.TickerFactory, log *logrus.Entry) *VisibilityTracker {
	if window <= 0 {
		window = DefaultWindow
	}
	if newTicker == nil {
		newTicker = clock.NewTicker
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &VisibilityTracker{
		handles:   make(map[string]models.MediaKind),
		pending:   make(map[string]float64),
		subs:      make(map[int]BatchFunc),
		window:    window,
		newTicker: newTicker,
		log:       log.WithField("component", "visibility_tracker"),
	}
}

// Subscribe adds fn to the subscription table and returns its id.
func (t *VisibilityTracker) Subscribe(fn BatchFunc) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.nextSub++
	t.subs[t.nextSub] = fn
	return t.nextSub
}

func (t *VisibilityTracker) Unsubscribe(id int) {
	t.mu.Lock()
	delete(t.subs, id)
	t.mu.Unlock()
}

// Register starts tracking a media element. Registering the same item twice is a no-op
// apart from refreshing its media kind.
func (t *VisibilityTracker) Register(itemID string, kind models.MediaKind) {
	if itemID == "" {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.handles[itemID]; !ok {
		t.log.WithField("item_id", itemID).Debug("media element registered")
	}
	t.handles[itemID] = kind
}

// Unregister stops tracking an item and queues a zero ratio so the item leaves
// the candidate set on the next batch. Unknown items are ignored.
func (t *VisibilityTracker) Unregister(itemID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.handles[itemID]; !ok {
		return
	}
	delete(t.handles, itemID)
	t.queueLocked(itemID, 0)
	t.log.WithField("item_id", itemID).Debug("media element unregistered")
}

// Registered reports whether itemID is tracked.
func (t *VisibilityTracker) Registered(itemID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.handles[itemID]
	return ok
}

// Observe records the current intersection ratio of a registered item.
// It returns false for unregistered items.
func (t *VisibilityTracker) Observe(itemID string, ratio float64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.handles[itemID]; !ok {
		return false
	}
	t.queueLocked(itemID, clampRatio(ratio))
	return true
}

func (t *VisibilityTracker) queueLocked(itemID string, ratio float64) {
	if _, ok := t.pending[itemID]; !ok {
		t.order = append(t.order, itemID)
	}
	t.pending[itemID] = ratio
}

// Flush emits the pending batch, if any, to every subscriber.
func (t *VisibilityTracker) Flush() {
	t.flushMu.Lock()
	defer t.flushMu.Unlock()

	t.mu.Lock()
	if len(t.order) == 0 {
		t.mu.Unlock()
		return
	}
	batch := make([]Candidate, 0, len(t.order))
	for _, id := range t.order {
		batch = append(batch, Candidate{ItemID: id, MediaKind: t.kindLocked(id), Ratio: t.pending[id]})
	}
	t.pending = make(map[string]float64)
	t.order = nil
	subs := make([]BatchFunc, 0, len(t.subs))
	for _, fn := range t.subs {
		subs = append(subs, fn)
	}
	t.mu.Unlock()

	for _, fn := range subs {
		fn(batch)
	}
}

// kindLocked falls back to image for items unregistered in this window, which
// can never be activated.
func (t *VisibilityTracker) kindLocked(itemID string) models.MediaKind {
	if kind, ok := t.handles[itemID]; ok {
		return kind
	}
	return models.MediaImage
}

// Start runs the flush loop. Calling Start on a running tracker is a no-op.
func (t *VisibilityTracker) Start() {
	t.mu.Lock()
	if t.stop != nil {
		t.mu.Unlock()
		return
	}
	t.stop = make(chan struct{})
	t.done = make(chan struct{})
	stop, done := t.stop, t.done
	t.mu.Unlock()

	ticker := t.newTicker(t.window)
	go func() {
		defer close(done)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C():
				t.Flush()
			case <-stop:
				return
			}
		}
	}()
}

// Stop halts the flush loop, waits for it to exit and drops every handle,
// pending observation and subscription.
func (t *VisibilityTracker) Stop() {
	t.mu.Lock()
	stop, done := t.stop, t.done
	t.stop, t.done = nil, nil
	t.mu.Unlock()

	if stop != nil {
		close(stop)
		<-done
	}

	t.mu.Lock()
	t.handles = make(map[string]models.MediaKind)
	t.pending = make(map[string]float64)
	t.order = nil
	t.subs = make(map[int]BatchFunc)
	t.mu.Unlock()
}
