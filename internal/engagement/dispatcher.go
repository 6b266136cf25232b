package engagement

import (
	"context"
	"sync"
	"time"

	"github.com/anonto42/nano-midea/moments/internal/models"
	"github.com/anonto42/nano-midea/moments/internal/reply"
	"github.com/anonto42/nano-midea/moments/pkg/metrics"
	"github.com/sirupsen/logrus"
)

// DefaultWriteTimeout bounds each background write.
const DefaultWriteTimeout = 5 * time.Second

// Replier delivers story replies into conversations.
type Replier interface {
	SendReply(ctx context.Context, r reply.Reply) (*models.Conversation, error)
}

// Dispatcher runs story session writes in the background. Callers never wait
// on a write: failures are logged and counted, then dropped. Writes sharing a
// key (the item, or the conversation for replies) are applied in submission order.
type Dispatcher struct {
	tracker *Tracker
	replies Replier
	timeout time.Duration
	log     *logrus.Entry

	mu sync.Mutex
	// pending writes per key; a key is present while its drainer runs
	queues map[string][]write
	wg     sync.WaitGroup
}

type write struct {
	kind   string
	fields logrus.Fields
	run    func(ctx context.Context) error
}

func NewDispatcher(tracker *Tracker, replies Replier, timeout time.Duration, log *logrus.Entry) *Dispatcher {
	if timeout <= 0 {
		timeout = DefaultWriteTimeout
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Dispatcher{
		tracker: tracker,
		replies: replies,
		timeout: timeout,
		log:     log.WithField("component", "engagement"),
		queues:  make(map[string][]write),
	}
}

func (d *Dispatcher) RecordView(item models.StoryItem, viewerID string) {
	d.dispatch(item.ID, "view", logrus.Fields{"item_id": item.ID, "viewer_id": viewerID}, func(ctx context.Context) error {
		return d.tracker.RecordView(ctx, item, viewerID)
	})
}

func (d *Dispatcher) RecordReaction(item models.StoryItem, reaction models.Reaction) {
	d.dispatch(item.ID, "reaction", logrus.Fields{"item_id": item.ID, "viewer_id": reaction.ViewerID}, func(ctx context.Context) error {
		return d.tracker.AppendReaction(ctx, item.ID, reaction)
	})
}

func (d *Dispatcher) SendReply(item models.StoryItem, viewerID, text string) {
	d.dispatch("reply/"+reply.PairKey(viewerID, item.AuthorID), "reply", logrus.Fields{"item_id": item.ID, "viewer_id": viewerID}, func(ctx context.Context) error {
		_, err := d.replies.SendReply(ctx, reply.Reply{
			FromID:   viewerID,
			ToID:     item.AuthorID,
			ItemID:   item.ID,
			MediaRef: item.MediaRef,
			Text:     text,
		})
		return err
	})
}

func (d *Dispatcher) UpdateCaption(item models.StoryItem, viewerID, caption string) {
	d.dispatch(item.ID, "caption", logrus.Fields{"item_id": item.ID}, func(ctx context.Context) error {
		return d.tracker.UpdateCaption(ctx, item, viewerID, caption)
	})
}

func (d *Dispatcher) DeleteItem(item models.StoryItem, viewerID string) {
	d.dispatch(item.ID, "delete", logrus.Fields{"item_id": item.ID}, func(ctx context.Context) error {
		return d.tracker.DeleteItem(ctx, item, viewerID)
	})
}

// Wait blocks until every dispatched write has finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) dispatch(key, kind string, fields logrus.Fields, run func(ctx context.Context) error) {
	d.wg.Add(1)

	d.mu.Lock()
	pending, running := d.queues[key]
	d.queues[key] = append(pending, write{kind: kind, fields: fields, run: run})
	d.mu.Unlock()

	if !running {
		go d.drain(key)
	}
}

// drain applies the writes queued under key one at a time until none are left.
func (d *Dispatcher) drain(key string) {
	for {
		d.mu.Lock()
		pending := d.queues[key]
		if len(pending) == 0 {
			delete(d.queues, key)
			d.mu.Unlock()
			return
		}
		next := pending[0]
		d.queues[key] = pending[1:]
		d.mu.Unlock()

		d.apply(next)
		d.wg.Done()
	}
}

func (d *Dispatcher) apply(w write) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	if err := w.run(ctx); err != nil {
		metrics.EngagementWriteFailed(w.kind)
		d.log.WithFields(w.fields).WithField("kind", w.kind).WithError(err).Warn("story write dropped")
	}
}
