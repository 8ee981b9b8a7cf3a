package console

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/charlie0129/gazectl/pkg/events"
	"github.com/charlie0129/gazectl/pkg/session"
)

type fakeAPI struct {
	st       session.Status
	demos    int
	cals     int
	calErr   error
	streamCh chan events.Event
}

func (f *fakeAPI) GetStatus() (*session.Status, error) {
	st := f.st
	return &st, nil
}

func (f *fakeAPI) TriggerDemo() (string, error) {
	f.demos++
	return `"demo triggered"`, nil
}

func (f *fakeAPI) StartCalibration() (string, error) {
	f.cals++
	return "", f.calErr
}

func (f *fakeAPI) StreamEvents(context.Context) (<-chan events.Event, error) {
	return f.streamCh, nil
}

func keyMsg(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// run executes cmd and feeds its message back into m.
func run(t *testing.T, m Model, cmd tea.Cmd) Model {
	t.Helper()
	if cmd == nil {
		t.Fatalf("expected a command")
	}
	next, _ := m.Update(cmd())
	return next.(Model)
}

func TestDemoKey(t *testing.T) {
	api := &fakeAPI{st: session.Status{State: session.StateConnected, Text: "Connected"}}
	m := New(api)

	next, cmd := m.Update(keyMsg("s"))
	m = next.(Model)
	if m.message != "starting demo..." {
		t.Errorf("message = %q", m.message)
	}
	m = run(t, m, cmd)

	if api.demos != 1 {
		t.Fatalf("demo triggered %d times, want 1", api.demos)
	}
	if m.message != "demo triggered" || m.failed {
		t.Errorf("message = %q failed = %t", m.message, m.failed)
	}
}

func TestCalibrateKeyError(t *testing.T) {
	api := &fakeAPI{calErr: errors.New("tracker not connected")}
	m := New(api)

	next, cmd := m.Update(keyMsg("c"))
	m = run(t, next.(Model), cmd)

	if api.cals != 1 || !m.failed || m.message != "tracker not connected" {
		t.Errorf("cals = %d failed = %t message = %q", api.cals, m.failed, m.message)
	}
}

func TestQuitKey(t *testing.T) {
	m := New(&fakeAPI{})
	_, cmd := m.Update(keyMsg("q"))
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatalf("expected quit")
	}
	if m.ctx.Err() == nil {
		t.Errorf("context should be cancelled on quit")
	}
}

func TestEventsUpdateView(t *testing.T) {
	api := &fakeAPI{
		st: session.Status{
			SessionID:       "abc",
			State:           session.StateConnected,
			Tag:             session.TagConnected,
			Text:            "Connected",
			CalibrationMode: "2d",
			EyeImages:       true,
		},
		streamCh: make(chan events.Event, 4),
	}
	m := New(api)
	m = run(t, m, m.fetchStatus())
	m = run(t, m, m.connect())
	if !m.streaming {
		t.Fatalf("expected live stream")
	}

	data, _ := json.Marshal(events.StatusChangedEvent{Text: "Ready", Tag: "CalStarted"})
	next, _ := m.Update(eventMsg{ev: events.Event{Name: events.StatusChanged, Data: data}})
	m = next.(Model)
	data, _ = json.Marshal(events.EyeFrameEvent{Eye: 1, Frames: 7})
	next, _ = m.Update(eventMsg{ev: events.Event{Name: events.EyeFrame, Data: data}})
	m = next.(Model)

	if m.status.Text != "Ready" || m.status.Tag != session.TagCalStarted {
		t.Errorf("status = %+v", m.status)
	}

	view := m.View()
	for _, want := range []string{"Ready", "CalStarted", "frames 0/7", "live", "s:start demo"} {
		if !strings.Contains(view, want) {
			t.Errorf("view is missing %q:\n%s", want, view)
		}
	}

	close(api.streamCh)
	next, cmd := m.Update(waitEvent(api.streamCh)())
	m = next.(Model)
	if m.streaming || cmd == nil {
		t.Errorf("closed stream should schedule a reconnect")
	}
}

func TestViewWithoutDaemon(t *testing.T) {
	m := New(&fakeAPI{})
	next, _ := m.Update(statusMsg{err: errors.New("daemon not running")})
	m = next.(Model)
	if v := m.View(); !strings.Contains(v, "daemon unavailable: daemon not running") {
		t.Errorf("view = %q", v)
	}
}
