package playback

import (
	"sync"
	"time"

	"github.com/anonto42/nano-midea/moments/internal/clock"
	"github.com/sirupsen/logrus"
)

// CommandSink applies activation commands to feed video elements.
type CommandSink func(Command)

// Feed binds a VisibilityTracker to a Scheduler for one feed instance and
// forwards the scheduler's commands to the sink in order.
type Feed struct {
	Tracker   *VisibilityTracker
	Scheduler *Scheduler

	sink    CommandSink
	subID   int
	stopped sync.Once
	log     *logrus.Entry
}

func NewFeed(window time.Duration, newTicker clock.TickerFactory, sink CommandSink, log *logrus.Entry) *Feed {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	f := &Feed{
		Tracker:   NewVisibilityTracker(window, newTicker, log),
		Scheduler: NewScheduler(),
		sink:      sink,
		log:       log.WithField("component", "playback_feed"),
	}
	f.subID = f.Tracker.Subscribe(f.onBatch)
	return f
}

func (f *Feed) onBatch(batch []Candidate) {
	f.apply(f.Scheduler.OnVisibilityBatch(batch))
}

func (f *Feed) apply(d Decision) {
	for _, cmd := range d.Commands {
		f.log.WithFields(logrus.Fields{"command": cmd.Kind, "item_id": cmd.ItemID}).Debug("playback command")
		if f.sink != nil {
			f.sink(cmd)
		}
	}
}

func (f *Feed) Start() {
	f.Tracker.Start()
}

// Stop halts the tracker, unregisters everything and deactivates the active item.
func (f *Feed) Stop() {
	f.stopped.Do(func() {
		f.Tracker.Unsubscribe(f.subID)
		f.Tracker.Stop()
		f.apply(f.Scheduler.Reset())
	})
}
