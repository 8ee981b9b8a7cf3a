package display

import (
	"context"
	"errors"
	"testing"

	"github.com/charlie0129/gazectl/pkg/events"
)

type fakeLabel struct {
	texts []string
	err   error
}

func (l *fakeLabel) SetStatusText(_ context.Context, text string) error {
	l.texts = append(l.texts, text)
	return l.err
}

func TestBoardLastWriteWins(t *testing.T) {
	label := &fakeLabel{}
	hub := events.NewHub()
	ch := hub.Subscribe(events.StatusChanged)
	defer hub.Unsubscribe(ch)

	b := NewBoard(label, hub)
	b.SetText("Success")
	b.SetStatusTag("Connected")
	b.SetText("Press 'c' to start calibration.")

	if b.Text() != "Press 'c' to start calibration." || b.Tag() != "Connected" {
		t.Fatalf("board = %q/%q", b.Text(), b.Tag())
	}
	if len(label.texts) != 2 {
		t.Fatalf("label updated %d times, want 2", len(label.texts))
	}
	if len(ch) != 3 {
		t.Fatalf("published %d status events, want 3", len(ch))
	}

	var last events.StatusChangedEvent
	for len(ch) > 0 {
		ev, err := events.DecodeAs[events.StatusChangedEvent](<-ch)
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		last = ev
	}
	if last.Tag != "Connected" || last.Text != b.Text() {
		t.Errorf("last event = %+v", last)
	}
}

func TestBoardLabelErrorIsNotFatal(t *testing.T) {
	b := NewBoard(&fakeLabel{err: errors.New("engine unavailable")}, nil)
	b.SetText("Success")
	if b.Text() != "Success" {
		t.Fatalf("text = %q, want Success", b.Text())
	}
}
