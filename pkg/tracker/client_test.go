package tracker

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/charlie0129/gazectl/pkg/events"
	"github.com/charlie0129/gazectl/pkg/preview"
)

type fakeTracker struct {
	upgrader websocket.Upgrader
	received chan Notification
	send     []Notification
	// closeAfterSend drops the connection once send has been written.
	closeAfterSend bool
}

func (f *fakeTracker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := f.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()
	for _, n := range f.send {
		if err := conn.WriteJSON(n); err != nil {
			return
		}
	}
	if f.closeAfterSend {
		return
	}
	for {
		var n Notification
		if err := conn.ReadJSON(&n); err != nil {
			return
		}
		f.received <- n
	}
}

type countingFrames struct {
	mu   sync.Mutex
	eyes []int
}

func (c *countingFrames) HandleFrame(eye int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.eyes = append(c.eyes, eye)
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func nextEvent(t *testing.T, ch chan events.Event) string {
	t.Helper()
	select {
	case ev := <-ch:
		return ev.Name
	case <-time.After(3 * time.Second):
		t.Fatalf("no event received in time")
	}
	return ""
}

func TestClientMapsNotifications(t *testing.T) {
	f := &fakeTracker{
		received: make(chan Notification, 4),
		send: []Notification{
			{Subject: SubjectCalibrationStarted},
			{Subject: "frame.eye.1"},
			{Subject: SubjectCalibrationFailed, Reason: "not enough pupil data"},
			{Subject: SubjectCalibrationStopped},
			{Subject: "notify.unrelated"},
			{Subject: SubjectCalibrationStarted},
			{Subject: SubjectCalibrationSuccessful},
			{Subject: SubjectCalibrationStopped},
		},
		closeAfterSend: true,
	}
	srv := httptest.NewServer(f)
	defer srv.Close()

	hub := events.NewHub()
	ch := hub.Subscribe()
	defer hub.Unsubscribe(ch)

	frames := &countingFrames{}
	c := NewClient(wsURL(srv), hub)
	c.SetFrameHandler(frames)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Run(ctx)

	want := []string{
		events.Connected,
		events.CalibrationStarted,
		events.CalibrationFailed,
		events.CalibrationStarted,
		events.CalibrationEnded,
		events.Disconnecting,
	}
	for i, w := range want {
		if got := nextEvent(t, ch); got != w {
			t.Fatalf("event %d = %q, want %q", i, got, w)
		}
	}

	frames.mu.Lock()
	defer frames.mu.Unlock()
	if len(frames.eyes) != 1 || frames.eyes[0] != 1 {
		t.Fatalf("frames = %v, want [1]", frames.eyes)
	}
}

func TestClientSendsCommands(t *testing.T) {
	f := &fakeTracker{received: make(chan Notification, 4)}
	srv := httptest.NewServer(f)
	defer srv.Close()

	hub := events.NewHub()
	ch := hub.Subscribe(events.Connected)
	defer hub.Unsubscribe(ch)

	c := NewClient(wsURL(srv), hub)
	if err := c.StartCalibration(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected before connecting, got %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Run(ctx)
	nextEvent(t, ch)

	if err := c.SetCalibrationMode(ctx, preview.Mode3D); err != nil {
		t.Fatalf("SetCalibrationMode: %v", err)
	}
	if err := c.StartCalibration(ctx); err != nil {
		t.Fatalf("StartCalibration: %v", err)
	}
	if err := c.SubscribeFrames(true); err != nil {
		t.Fatalf("SubscribeFrames: %v", err)
	}

	want := []Notification{
		{Subject: SubjectStartPlugin, Name: "HMD_Calibration_3D"},
		{Subject: SubjectShouldStart},
		{Subject: SubjectFrameSubscription, Topic: "frame.eye"},
	}
	for i, w := range want {
		select {
		case got := <-f.received:
			if got.Subject != w.Subject || got.Name != w.Name || got.Topic != w.Topic {
				t.Fatalf("command %d = %+v, want %+v", i, got, w)
			}
		case <-time.After(3 * time.Second):
			t.Fatalf("command %d not received", i)
		}
	}
	if !c.Connected() {
		t.Errorf("client should report connected")
	}
}

func TestFindProcesses(t *testing.T) {
	orig := listProcesses
	defer func() { listProcesses = orig }()
	listProcesses = func(context.Context) ([]ProcessInfo, error) {
		return []ProcessInfo{
			{PID: 1, Name: "systemd"},
			{PID: 42, Name: "Pupil_Service"},
			{PID: 43, Name: "pupil_capture"},
		}, nil
	}

	got, err := FindProcesses(context.Background(), nil)
	if err != nil {
		t.Fatalf("FindProcesses: %v", err)
	}
	if len(got) != 2 || got[0].PID != 42 || got[1].PID != 43 {
		t.Fatalf("found = %+v", got)
	}

	got, _ = FindProcesses(context.Background(), []string{"capture"})
	if len(got) != 1 || got[0].PID != 43 {
		t.Fatalf("found = %+v", got)
	}
}
