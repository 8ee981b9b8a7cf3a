package session

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// Executor runs fn on the session's logical thread.
type Executor interface {
	Post(fn func())
}

// Scheduler runs fn on the session's logical thread after d has elapsed.
type Scheduler interface {
	After(d time.Duration, fn func())
}

// Loop is the single logical thread every session mutation runs on. Posted
// functions run in the order they were posted.
type Loop struct {
	queue chan func()
	done  chan struct{}
}

func NewLoop(buffer int) *Loop {
	if buffer <= 0 {
		buffer = 64
	}
	return &Loop{
		queue: make(chan func(), buffer),
		done:  make(chan struct{}),
	}
}

// Post enqueues fn. It blocks while the queue is full and drops fn once the
// loop has stopped.
func (l *Loop) Post(fn func()) {
	select {
	case l.queue <- fn:
	case <-l.done:
		logrus.Debug("session loop stopped, dropping posted work")
	}
}

// After posts fn once d has elapsed. The timer is not cancellable; callers
// decide on the loop whether the work is still wanted.
func (l *Loop) After(d time.Duration, fn func()) {
	time.AfterFunc(d, func() { l.Post(fn) })
}

// Run executes posted work until ctx is done.
func (l *Loop) Run(ctx context.Context) {
	logrus.Debug("session loop starts")
	defer close(l.done)
	for {
		select {
		case <-ctx.Done():
			logrus.Debug("session loop exits")
			return
		case fn := <-l.queue:
			fn()
		}
	}
}
