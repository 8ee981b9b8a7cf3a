// Package engine talks to the control API of the rendering engine hosting the
// calibration scene: the status label, object activation, preview markers and
// additive scene loading.
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/charlie0129/gazectl/internal/client"
	"github.com/charlie0129/gazectl/pkg/preview"
)

// MarkerPrefab is the engine resource instantiated for each preview marker.
const MarkerPrefab = "CalibrationPointExtendPreview"

// Scene operation states reported by GET /scenes/{name}.
const (
	SceneLoading   = "loading"
	SceneLoaded    = "loaded"
	SceneUnloading = "unloading"
	SceneUnloaded  = "unloaded"
)

type SceneState struct {
	Name  string `json:"name"`
	State string `json:"state"`
	Error string `json:"error,omitempty"`
}

type spawnRequest struct {
	Parent  string           `json:"parent"`
	Prefab  string           `json:"prefab"`
	Markers []preview.Marker `json:"markers"`
}

// Client is the engine control client.
type Client struct {
	c            *client.Client
	pollInterval time.Duration
}

func NewClient(endpoint string) (*Client, error) {
	c, err := client.New(endpoint)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "invalid engine endpoint")
	}
	return &Client{c: c, pollInterval: 100 * time.Millisecond}, nil
}

// SetPollInterval sets how often scene operations are polled for completion.
func (e *Client) SetPollInterval(d time.Duration) {
	if d > 0 {
		e.pollInterval = d
	}
}

func (e *Client) SetStatusText(ctx context.Context, text string) error {
	payload, err := json.Marshal(text)
	if err != nil {
		return err
	}
	_, err = e.c.Put(ctx, "/ui/status-text", string(payload))
	return pkgerrors.Wrapf(err, "failed to set status text")
}

func (e *Client) SetActive(ctx context.Context, name string, active bool) error {
	_, err := e.c.Put(ctx, "/objects/"+url.PathEscape(name)+"/active", fmt.Sprintf("%t", active))
	return pkgerrors.Wrapf(err, "failed to set %s active=%t", name, active)
}

func (e *Client) SpawnMarkers(ctx context.Context, parent string, markers []preview.Marker) error {
	payload, err := json.Marshal(spawnRequest{Parent: parent, Prefab: MarkerPrefab, Markers: markers})
	if err != nil {
		return err
	}
	_, err = e.c.Post(ctx, "/markers", string(payload))
	return pkgerrors.Wrapf(err, "failed to spawn markers")
}

// LoadScene loads name additively and waits until the engine reports it
// loaded.
func (e *Client) LoadScene(ctx context.Context, name string) error {
	if _, err := e.c.Put(ctx, scenePath(name), `{"mode":"additive"}`); err != nil {
		return pkgerrors.Wrapf(err, "failed to request load of scene %s", name)
	}
	return e.waitScene(ctx, name, SceneLoaded)
}

// UnloadScene unloads name and waits until the engine reports it unloaded.
func (e *Client) UnloadScene(ctx context.Context, name string) error {
	if _, err := e.c.Delete(ctx, scenePath(name)); err != nil {
		return pkgerrors.Wrapf(err, "failed to request unload of scene %s", name)
	}
	return e.waitScene(ctx, name, SceneUnloaded)
}

func (e *Client) SceneState(ctx context.Context, name string) (*SceneState, error) {
	ret, err := e.c.Get(ctx, scenePath(name))
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to get state of scene %s", name)
	}
	var st SceneState
	if err := json.Unmarshal([]byte(ret), &st); err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to unmarshal scene state")
	}
	return &st, nil
}

// CurrentScene returns the name of the active scene.
func (e *Client) CurrentScene(ctx context.Context) (string, error) {
	st, err := e.SceneState(ctx, "current")
	if err != nil {
		return "", err
	}
	return st.Name, nil
}

func (e *Client) waitScene(ctx context.Context, name, want string) error {
	ticker := time.NewTicker(e.pollInterval)
	defer ticker.Stop()
	for {
		st, err := e.SceneState(ctx, name)
		if err != nil {
			return err
		}
		if st.Error != "" {
			return fmt.Errorf("engine reported scene %s %s: %s", name, st.State, st.Error)
		}
		if st.State == want {
			return nil
		}
		logrus.WithFields(logrus.Fields{
			"scene": name,
			"state": st.State,
			"want":  want,
		}).Trace("waiting for scene operation")

		select {
		case <-ctx.Done():
			return fmt.Errorf("scene %s stuck in %s: %w", name, st.State, ctx.Err())
		case <-ticker.C:
		}
	}
}

func scenePath(name string) string {
	return "/scenes/" + url.PathEscape(name)
}
