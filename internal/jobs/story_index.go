// Package jobs holds the service's scheduled background work.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Indexer is the live story index the job maintains.
type Indexer interface {
	Resync(ctx context.Context) error
	Prune() int
}

// StoryIndexJob periodically reloads the story index from storage and drops
// expired items from it. Stored items are never deleted here.
type StoryIndexJob struct {
	index   Indexer
	timeout time.Duration
	cron    *cron.Cron
	log     *logrus.Entry
}

func NewStoryIndexJob(index Indexer, spec string, timeout time.Duration, log *logrus.Entry) (*StoryIndexJob, error) {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	log = log.WithField("component", "story_index_job")

	cl := cronLogger{log: log}
	j := &StoryIndexJob{
		index:   index,
		timeout: timeout,
		log:     log,
		cron: cron.New(
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
	}
	if _, err := j.cron.AddFunc(spec, j.Run); err != nil {
		return nil, fmt.Errorf("schedule story index job %q: %w", spec, err)
	}
	return j, nil
}

// Run performs one resync and prune pass.
func (j *StoryIndexJob) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	if err := j.index.Resync(ctx); err != nil {
		j.log.WithError(err).Warn("story index resync failed")
	}
	if dropped := j.index.Prune(); dropped > 0 {
		j.log.WithField("dropped", dropped).Debug("expired stories pruned from index")
	}
}

func (j *StoryIndexJob) Start() {
	j.cron.Start()
}

// Stop halts the schedule and waits for a running pass to finish.
func (j *StoryIndexJob) Stop() {
	<-j.cron.Stop().Done()
}

// cronLogger routes cron's own logging to logrus.
type cronLogger struct {
	log *logrus.Entry
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.WithFields(fields(keysAndValues)).Debug(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.WithFields(fields(keysAndValues)).WithError(err).Error(msg)
}

func fields(keysAndValues []interface{}) logrus.Fields {
	f := logrus.Fields{}
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		f[fmt.Sprint(keysAndValues[i])] = keysAndValues[i+1]
	}
	return f
}
