package engine

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/charlie0129/gazectl/pkg/preview"
)

// fakeEngine finishes every scene operation after pollsToFinish GETs.
type fakeEngine struct {
	mu            sync.Mutex
	pollsToFinish int
	scenes        map[string]*SceneState
	polls         map[string]int
	active        map[string]string
	text          string
	spawned       spawnRequest
	failScene     string
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{
		pollsToFinish: 2,
		scenes:        map[string]*SceneState{"current": {Name: "Calibration", State: SceneLoaded}},
		polls:         map[string]int{},
		active:        map[string]string{},
	}
}

func (f *fakeEngine) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	body, _ := io.ReadAll(r.Body)

	switch {
	case r.URL.Path == "/ui/status-text" && r.Method == http.MethodPut:
		_ = json.Unmarshal(body, &f.text)
	case strings.HasPrefix(r.URL.Path, "/objects/") && r.Method == http.MethodPut:
		name := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/objects/"), "/active")
		f.active[name] = string(body)
	case r.URL.Path == "/markers" && r.Method == http.MethodPost:
		_ = json.Unmarshal(body, &f.spawned)
	case strings.HasPrefix(r.URL.Path, "/scenes/"):
		name := strings.TrimPrefix(r.URL.Path, "/scenes/")
		switch r.Method {
		case http.MethodPut:
			f.scenes[name] = &SceneState{Name: name, State: SceneLoading}
			f.polls[name] = 0
		case http.MethodDelete:
			st, ok := f.scenes[name]
			if !ok {
				http.NotFound(w, r)
				return
			}
			st.State = SceneUnloading
			f.polls[name] = 0
		case http.MethodGet:
			st, ok := f.scenes[name]
			if !ok {
				http.NotFound(w, r)
				return
			}
			f.polls[name]++
			if f.polls[name] >= f.pollsToFinish {
				switch st.State {
				case SceneLoading:
					st.State = SceneLoaded
				case SceneUnloading:
					st.State = SceneUnloaded
				}
				if name == f.failScene {
					st.Error = "missing asset bundle"
				}
			}
			_ = json.NewEncoder(w).Encode(st)
			return
		}
	default:
		http.NotFound(w, r)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func newTestClient(t *testing.T, f *fakeEngine) (*Client, func()) {
	t.Helper()
	srv := httptest.NewServer(f)
	c, err := NewClient(srv.URL)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	c.SetPollInterval(5 * time.Millisecond)
	return c, srv.Close
}

func TestEngineUIControls(t *testing.T) {
	f := newFakeEngine()
	c, stop := newTestClient(t, f)
	defer stop()
	ctx := context.Background()

	if err := c.SetStatusText(ctx, "Success"); err != nil {
		t.Fatalf("SetStatusText: %v", err)
	}
	if err := c.SetActive(ctx, "GazeTargets", false); err != nil {
		t.Fatalf("SetActive: %v", err)
	}
	markers := []preview.Marker{{Position: preview.Vector3{Z: 2}, Scale: preview.Vector3{X: 0.1, Y: 0.05, Z: 1}}}
	if err := c.SpawnMarkers(ctx, "Camera", markers); err != nil {
		t.Fatalf("SpawnMarkers: %v", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.text != "Success" {
		t.Errorf("text = %q", f.text)
	}
	if f.active["GazeTargets"] != "false" {
		t.Errorf("active = %v", f.active)
	}
	if f.spawned.Parent != "Camera" || f.spawned.Prefab != MarkerPrefab || len(f.spawned.Markers) != 1 {
		t.Errorf("spawned = %+v", f.spawned)
	}
}

func TestEngineSceneLifecycle(t *testing.T) {
	f := newFakeEngine()
	c, stop := newTestClient(t, f)
	defer stop()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := c.LoadScene(ctx, "Demo"); err != nil {
		t.Fatalf("LoadScene: %v", err)
	}
	if err := c.UnloadScene(ctx, "Demo"); err != nil {
		t.Fatalf("UnloadScene: %v", err)
	}
	name, err := c.CurrentScene(ctx)
	if err != nil || name != "Calibration" {
		t.Fatalf("CurrentScene = %q, %v", name, err)
	}
}

func TestEngineSceneFailure(t *testing.T) {
	f := newFakeEngine()
	f.failScene = "Broken"
	c, stop := newTestClient(t, f)
	defer stop()

	if err := c.LoadScene(context.Background(), "Broken"); err == nil {
		t.Fatalf("expected load failure")
	}
}

func TestEngineSceneTimeout(t *testing.T) {
	f := newFakeEngine()
	f.pollsToFinish = 1 << 30
	c, stop := newTestClient(t, f)
	defer stop()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := c.LoadScene(ctx, "Demo"); err == nil {
		t.Fatalf("expected timeout")
	}
}
