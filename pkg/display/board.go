// Package display holds the status label shown to the operator and the status
// tag read by external loggers.
package display

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/charlie0129/gazectl/pkg/events"
)

// Label is the engine text surface mirroring the status text.
type Label interface {
	SetStatusText(ctx context.Context, text string) error
}

// Board keeps the latest text and tag. Last write wins and no history is
// kept. It is safe for concurrent use.
type Board struct {
	label   Label
	hub     *events.Hub
	timeout time.Duration

	mu   sync.RWMutex
	text string
	tag  string
}

// NewBoard creates a Board. label and hub may be nil.
func NewBoard(label Label, hub *events.Hub) *Board {
	return &Board{
		label:   label,
		hub:     hub,
		timeout: 3 * time.Second,
	}
}

func (b *Board) SetText(s string) {
	b.mu.Lock()
	b.text = s
	tag := b.tag
	b.mu.Unlock()

	if b.label != nil {
		ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
		defer cancel()
		if err := b.label.SetStatusText(ctx, s); err != nil {
			logrus.Errorf("failed to update status label: %v", err)
		}
	}
	b.publish(s, tag)
}

func (b *Board) SetStatusTag(tag string) {
	b.mu.Lock()
	b.tag = tag
	text := b.text
	b.mu.Unlock()

	b.publish(text, tag)
}

func (b *Board) Text() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.text
}

func (b *Board) Tag() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.tag
}

func (b *Board) publish(text, tag string) {
	b.hub.Publish(events.StatusChanged, events.StatusChangedEvent{
		Text: text,
		Tag:  tag,
		Ts:   time.Now().Unix(),
	})
}
