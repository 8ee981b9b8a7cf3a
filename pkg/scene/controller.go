package scene

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/charlie0129/gazectl/pkg/events"
)

// Status describes the scene slot.
type Status string

const (
	StatusEmpty     Status = "Empty"
	StatusLoading   Status = "Loading"
	StatusLoaded    Status = "Loaded"
	StatusUnloading Status = "Unloading"
)

// ErrTransition wraps every failed load or unload.
var ErrTransition = errors.New("scene transition failed")

// Loader is the engine primitive loading and unloading additive scenes. Both
// calls block until the engine reports the operation done.
type Loader interface {
	LoadScene(ctx context.Context, name string) error
	UnloadScene(ctx context.Context, name string) error
}

// Executor runs fn on the caller's logical thread.
type Executor interface {
	Post(fn func())
}

const defaultTimeout = 2 * time.Minute

// Controller owns the single secondary scene slot. The engine call runs in
// its own goroutine; its completion is posted back through the Executor, so
// the slot is only ever mutated on the executor's thread.
type Controller struct {
	scenes  []string
	loader  Loader
	exec    Executor
	hub     *events.Hub
	timeout time.Duration

	status Status
	loaded int
}

type Option func(*Controller)

// WithHub publishes scene.changed on every slot change.
func WithHub(hub *events.Hub) Option {
	return func(c *Controller) { c.hub = hub }
}

// WithTimeout bounds a single engine operation.
func WithTimeout(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.timeout = d
		}
	}
}

func NewController(scenes []string, loader Loader, exec Executor, opts ...Option) *Controller {
	if loader == nil || exec == nil {
		panic("scene: loader and executor must not be nil")
	}
	c := &Controller{
		scenes:  append([]string(nil), scenes...),
		loader:  loader,
		exec:    exec,
		timeout: defaultTimeout,
		status:  StatusEmpty,
		loaded:  -1,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Controller) Status() Status { return c.status }

func (c *Controller) Loaded() bool { return c.status == StatusLoaded }

// LoadedIndex returns the index of the loaded scene, or -1.
func (c *Controller) LoadedIndex() int { return c.loaded }

// Name returns the scene identifier at index, or "" if out of range.
func (c *Controller) Name(index int) string {
	if index < 0 || index >= len(c.scenes) {
		return ""
	}
	return c.scenes[index]
}

// Load starts loading the scene at index. done runs on the executor once the
// engine reports completion. Calling Load while the slot is not empty is a
// programmer error and panics.
func (c *Controller) Load(index int, done func(error)) {
	if c.status != StatusEmpty {
		panic(fmt.Sprintf("scene: load requested while slot is %s", c.status))
	}
	name := c.Name(index)
	if name == "" {
		panic(fmt.Sprintf("scene: index %d out of range (%d scenes)", index, len(c.scenes)))
	}

	c.status = StatusLoading
	c.publish(name, nil)
	logrus.WithFields(logrus.Fields{
		"scene": name,
		"index": index,
	}).Info("loading scene")

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
		defer cancel()
		err := c.loader.LoadScene(ctx, name)
		c.exec.Post(func() { c.finishLoad(index, name, err, done) })
	}()
}

func (c *Controller) finishLoad(index int, name string, err error, done func(error)) {
	if err != nil {
		err = fmt.Errorf("%w: load %s: %w", ErrTransition, name, err)
		c.status = StatusEmpty
		c.loaded = -1
	} else {
		c.status = StatusLoaded
		c.loaded = index
		logrus.WithField("scene", name).Info("scene loaded")
	}
	c.publish(name, err)
	if done != nil {
		done(err)
	}
}

// Unload starts unloading the loaded scene. Calling Unload while no scene is
// loaded is a programmer error and panics.
func (c *Controller) Unload(done func(error)) {
	if c.status != StatusLoaded {
		panic(fmt.Sprintf("scene: unload requested while slot is %s", c.status))
	}
	name := c.Name(c.loaded)

	c.status = StatusUnloading
	c.publish(name, nil)
	logrus.WithField("scene", name).Info("unloading scene")

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
		defer cancel()
		err := c.loader.UnloadScene(ctx, name)
		c.exec.Post(func() { c.finishUnload(name, err, done) })
	}()
}

func (c *Controller) finishUnload(name string, err error, done func(error)) {
	if err != nil {
		// The engine still holds the scene.
		err = fmt.Errorf("%w: unload %s: %w", ErrTransition, name, err)
		c.status = StatusLoaded
	} else {
		c.status = StatusEmpty
		c.loaded = -1
		logrus.WithField("scene", name).Info("scene unloaded")
	}
	c.publish(name, err)
	if done != nil {
		done(err)
	}
}

func (c *Controller) publish(name string, err error) {
	ev := events.SceneChangedEvent{
		Scene:  name,
		Status: string(c.status),
		Ts:     time.Now().Unix(),
	}
	if err != nil {
		ev.Error = err.Error()
	}
	c.hub.Publish(events.SceneChanged, ev)
}
