package session

import (
	"context"
	"testing"
	"time"
)

func TestLoopRunsInOrder(t *testing.T) {
	l := NewLoop(0)
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		l.Run(ctx)
		close(stopped)
	}()

	var got []int
	done := make(chan struct{})
	for i := 0; i < 10; i++ {
		i := i
		l.Post(func() { got = append(got, i) })
	}
	l.Post(func() { close(done) })

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("posted work did not run in time")
	}
	for i, v := range got {
		if v != i {
			t.Fatalf("work ran out of order: %v", got)
		}
	}

	cancel()
	<-stopped

	// Posting to a stopped loop must not block.
	l.Post(func() { t.Errorf("work ran after the loop stopped") })
}

func TestLoopAfter(t *testing.T) {
	l := NewLoop(4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go l.Run(ctx)

	fired := make(chan time.Time, 1)
	start := time.Now()
	l.After(50*time.Millisecond, func() { fired <- time.Now() })

	select {
	case at := <-fired:
		if at.Sub(start) < 50*time.Millisecond {
			t.Fatalf("deferred work fired early after %s", at.Sub(start))
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("deferred work did not fire")
	}
}
