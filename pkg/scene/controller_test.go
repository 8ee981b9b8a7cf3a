package scene

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/charlie0129/gazectl/pkg/events"
)

type chanExec chan func()

func (e chanExec) Post(fn func()) { e <- fn }

// drain runs exactly one posted completion.
func (e chanExec) drain(t *testing.T) {
	t.Helper()
	select {
	case fn := <-e:
		fn()
	case <-time.After(2 * time.Second):
		t.Fatalf("no completion posted in time")
	}
}

type fakeLoader struct {
	mu       sync.Mutex
	loads    []string
	unloads  []string
	loadErr  error
	unloadEr error
}

func (f *fakeLoader) LoadScene(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loads = append(f.loads, name)
	return f.loadErr
}

func (f *fakeLoader) UnloadScene(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unloads = append(f.unloads, name)
	return f.unloadEr
}

func TestControllerLoadUnload(t *testing.T) {
	exec := make(chanExec, 4)
	loader := &fakeLoader{}
	c := NewController([]string{"Demo", "Other"}, loader, exec)

	if c.Status() != StatusEmpty || c.LoadedIndex() != -1 {
		t.Fatalf("new controller should be empty, got %s/%d", c.Status(), c.LoadedIndex())
	}

	var loadErr error
	loaded := false
	c.Load(1, func(err error) { loaded, loadErr = true, err })
	if c.Status() != StatusLoading {
		t.Fatalf("status = %s, want %s", c.Status(), StatusLoading)
	}
	exec.drain(t)
	if !loaded || loadErr != nil {
		t.Fatalf("load callback: called=%t err=%v", loaded, loadErr)
	}
	if !c.Loaded() || c.LoadedIndex() != 1 {
		t.Fatalf("expected scene 1 loaded, got %s/%d", c.Status(), c.LoadedIndex())
	}

	c.Unload(nil)
	if c.Status() != StatusUnloading {
		t.Fatalf("status = %s, want %s", c.Status(), StatusUnloading)
	}
	exec.drain(t)
	if c.Status() != StatusEmpty || c.LoadedIndex() != -1 {
		t.Fatalf("expected empty slot after unload, got %s/%d", c.Status(), c.LoadedIndex())
	}

	if len(loader.loads) != 1 || loader.loads[0] != "Other" {
		t.Errorf("loads = %v, want [Other]", loader.loads)
	}
	if len(loader.unloads) != 1 || loader.unloads[0] != "Other" {
		t.Errorf("unloads = %v, want [Other]", loader.unloads)
	}
}

func TestControllerPreconditions(t *testing.T) {
	tests := []struct {
		name string
		run  func(c *Controller, exec chanExec, t *testing.T)
	}{
		{
			name: "unload when empty",
			run: func(c *Controller, _ chanExec, _ *testing.T) {
				c.Unload(nil)
			},
		},
		{
			name: "load while loading",
			run: func(c *Controller, _ chanExec, _ *testing.T) {
				c.Load(0, nil)
				c.Load(0, nil)
			},
		},
		{
			name: "load while loaded",
			run: func(c *Controller, exec chanExec, t *testing.T) {
				c.Load(0, nil)
				exec.drain(t)
				c.Load(0, nil)
			},
		},
		{
			name: "index out of range",
			run: func(c *Controller, _ chanExec, _ *testing.T) {
				c.Load(3, nil)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exec := make(chanExec, 4)
			c := NewController([]string{"Demo"}, &fakeLoader{}, exec)
			defer func() {
				if recover() == nil {
					t.Fatalf("expected panic")
				}
			}()
			tt.run(c, exec, t)
		})
	}
}

func TestControllerFailures(t *testing.T) {
	boom := errors.New("boom")

	exec := make(chanExec, 4)
	loader := &fakeLoader{loadErr: boom}
	c := NewController([]string{"Demo"}, loader, exec)

	var got error
	c.Load(0, func(err error) { got = err })
	exec.drain(t)
	if !errors.Is(got, ErrTransition) || !errors.Is(got, boom) {
		t.Fatalf("load error = %v, want wrapped ErrTransition and cause", got)
	}
	if c.Status() != StatusEmpty {
		t.Fatalf("failed load should leave the slot empty, got %s", c.Status())
	}

	loader.loadErr = nil
	loader.unloadEr = boom
	c.Load(0, nil)
	exec.drain(t)
	c.Unload(func(err error) { got = err })
	exec.drain(t)
	if !errors.Is(got, ErrTransition) {
		t.Fatalf("unload error = %v, want ErrTransition", got)
	}
	if !c.Loaded() {
		t.Fatalf("failed unload should keep the scene loaded, got %s", c.Status())
	}
}

func TestControllerPublishesSceneChanged(t *testing.T) {
	hub := events.NewHub()
	ch := hub.Subscribe(events.SceneChanged)
	defer hub.Unsubscribe(ch)

	exec := make(chanExec, 4)
	c := NewController([]string{"Demo"}, &fakeLoader{}, exec, WithHub(hub), WithTimeout(time.Second))
	c.Load(0, nil)
	exec.drain(t)

	var statuses []string
	for len(ch) > 0 {
		ev, err := events.DecodeAs[events.SceneChangedEvent](<-ch)
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if ev.Scene != "Demo" {
			t.Errorf("scene = %q, want Demo", ev.Scene)
		}
		statuses = append(statuses, ev.Status)
	}
	if len(statuses) != 2 || statuses[0] != string(StatusLoading) || statuses[1] != string(StatusLoaded) {
		t.Fatalf("statuses = %v, want [Loading Loaded]", statuses)
	}
}
