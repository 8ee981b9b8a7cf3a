// Package eyeimage counts the live eye camera frames received from the
// tracker and republishes them for the console while the feed is enabled.
package eyeimage

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/charlie0129/gazectl/pkg/events"
)

// Subscriber controls the frame subscription on the tracker side.
type Subscriber interface {
	SubscribeFrames(enabled bool) error
}

// Publisher is the eye-image subsystem. It is safe for concurrent use.
type Publisher struct {
	hub *events.Hub
	sub Subscriber

	mu       sync.Mutex
	attached bool
	enabled  bool
	frames   map[int]int
	last     time.Time
}

// Snapshot is the state of the feed.
type Snapshot struct {
	Attached  bool        `json:"attached"`
	Enabled   bool        `json:"enabled"`
	Frames    map[int]int `json:"frames"`
	LastFrame time.Time   `json:"lastFrame,omitempty"`
}

// NewPublisher creates a Publisher. hub and sub may be nil.
func NewPublisher(hub *events.Hub, sub Subscriber) *Publisher {
	return &Publisher{hub: hub, sub: sub, frames: map[int]int{}}
}

// Start attaches the feed and enables it. Starting an attached feed only
// enables it again.
func (p *Publisher) Start() {
	p.mu.Lock()
	again := p.attached
	p.attached = true
	p.mu.Unlock()

	if again {
		logrus.Debug("eye images already attached")
	} else {
		logrus.Info("eye images attached")
	}
	p.SetEnabled(true)
}

// SetEnabled toggles an attached feed. It does nothing before Start.
func (p *Publisher) SetEnabled(enabled bool) {
	p.mu.Lock()
	if !p.attached || p.enabled == enabled {
		p.mu.Unlock()
		return
	}
	p.enabled = enabled
	p.mu.Unlock()

	logrus.WithField("enabled", enabled).Debug("eye images toggled")
	if p.sub == nil {
		return
	}
	if err := p.sub.SubscribeFrames(enabled); err != nil {
		logrus.Errorf("failed to update eye frame subscription: %v", err)
	}
}

// HandleFrame records one frame of eye. Frames are dropped while disabled.
func (p *Publisher) HandleFrame(eye int) {
	p.mu.Lock()
	if !p.enabled {
		p.mu.Unlock()
		return
	}
	p.frames[eye]++
	n := p.frames[eye]
	p.last = time.Now()
	ts := p.last.Unix()
	p.mu.Unlock()

	p.hub.Publish(events.EyeFrame, events.EyeFrameEvent{Eye: eye, Frames: n, Ts: ts})
}

func (p *Publisher) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	frames := make(map[int]int, len(p.frames))
	for k, v := range p.frames {
		frames[k] = v
	}
	return Snapshot{
		Attached:  p.attached,
		Enabled:   p.enabled,
		Frames:    frames,
		LastFrame: p.last,
	}
}
