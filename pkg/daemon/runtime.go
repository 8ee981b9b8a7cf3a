package daemon

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/charlie0129/gazectl/pkg/config"
	"github.com/charlie0129/gazectl/pkg/display"
	"github.com/charlie0129/gazectl/pkg/engine"
	"github.com/charlie0129/gazectl/pkg/events"
	"github.com/charlie0129/gazectl/pkg/eyeimage"
	"github.com/charlie0129/gazectl/pkg/preview"
	"github.com/charlie0129/gazectl/pkg/scene"
	"github.com/charlie0129/gazectl/pkg/session"
	"github.com/charlie0129/gazectl/pkg/tracker"
)

// Runtime is one daemon session with every collaborator wired together.
type Runtime struct {
	conf      config.Config
	sessionID string

	hub       *events.Hub
	loop      *session.Loop
	board     *display.Board
	engine    *engine.Client
	tracker   *tracker.Client
	eyes      *eyeimage.Publisher
	scenes    *scene.Controller
	renderer  *preview.Renderer
	manager   *session.Manager
	statusLog *StatusLog

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewRuntime builds a Runtime from conf. Nothing runs until Start.
func NewRuntime(conf config.Config) (*Runtime, error) {
	eng, err := engine.NewClient(conf.EngineURL())
	if err != nil {
		return nil, fmt.Errorf("failed to create engine client: %w", err)
	}

	r := &Runtime{
		conf:      conf,
		sessionID: uuid.NewString(),
		hub:       events.NewHub(),
		loop:      session.NewLoop(0),
		engine:    eng,
	}

	r.board = display.NewBoard(eng, r.hub)
	r.tracker = tracker.NewClient(conf.TrackerURL(), r.hub)
	r.eyes = eyeimage.NewPublisher(r.hub, r.tracker)
	r.tracker.SetFrameHandler(r.eyes)
	r.scenes = scene.NewController(conf.AvailableScenes(), eng, r.loop, scene.WithHub(r.hub))
	r.renderer = &preview.Renderer{
		Source:  preview.DefaultGeometry().WithOverrides(conf.Geometry()),
		Camera:  conf.Camera(),
		Spawner: eng,
		Parent:  conf.CameraObject(),
	}

	r.manager, err = session.New(r.sessionOptions(), session.Deps{
		Display:   r.board,
		Objects:   eng,
		Tracker:   r.tracker,
		EyeImages: r.eyes,
		Previewer: r.renderer,
		Scenes:    r.scenes,
		Reporter:  eng,
		Scheduler: r.loop,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	r.statusLog = NewStatusLog(conf.StatusLogPath(), r.manager)
	return r, nil
}

func (r *Runtime) sessionOptions() session.Options {
	return session.Options{
		SessionID:                r.sessionID,
		Mode:                     r.conf.CalibrationMode(),
		DisplayEyeImages:         r.conf.DisplayEyeImages(),
		CurrentSceneIndex:        r.conf.CurrentSceneIndex(),
		GazeTargets:              r.conf.GazeTargets(),
		BeforeCalibrationButtons: r.conf.BeforeCalibrationButtons(),
		ImageBlock:               r.conf.ImageBlock(),
		CameraObject:             r.conf.CameraObject(),
		DeferredDelay:            r.conf.DeferredDelay(),
		CancelSupersededDeferred: r.conf.CancelSupersededDeferred(),
		Texts:                    r.conf.Texts(),
	}
}

// Start runs the session loop, activates the session, connects to the
// tracker and schedules the status log. A Runtime starts once.
func (r *Runtime) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return errors.New("runtime already started")
	}

	if err := r.statusLog.Schedule(r.conf.StatusLogSchedule()); err != nil {
		return fmt.Errorf("invalid status log schedule: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	r.started = true
	r.cancel = cancel

	r.wg.Add(2)
	go func() {
		defer r.wg.Done()
		r.loop.Run(ctx)
	}()
	r.manager.Activate(r.hub, r.loop)
	go func() {
		defer r.wg.Done()
		r.tracker.Run(ctx)
	}()
	r.statusLog.Start()

	logrus.WithFields(logrus.Fields{
		"sessionId": r.sessionID,
		"tracker":   r.conf.TrackerURL(),
		"engine":    r.conf.EngineURL(),
	}).Info("session runtime started")
	return nil
}

// Stop deactivates the session and waits for the loop and the tracker
// connection to exit.
func (r *Runtime) Stop() {
	r.mu.Lock()
	cancel := r.cancel
	r.cancel = nil
	r.mu.Unlock()
	if cancel == nil {
		return
	}

	r.statusLog.Stop()
	r.manager.Deactivate()
	cancel()
	r.wg.Wait()
	logrus.WithField("sessionId", r.sessionID).Info("session runtime stopped")
}

// Reconfigure applies the current config to the running session. The
// scene list and the tracker and engine endpoints only change on restart.
func (r *Runtime) Reconfigure(ctx context.Context) error {
	opts := r.sessionOptions()
	src := preview.DefaultGeometry().WithOverrides(r.conf.Geometry())
	cam := r.conf.Camera()
	return r.onLoop(ctx, func() error {
		if err := r.manager.Configure(opts); err != nil {
			return err
		}
		r.renderer.Source = src
		r.renderer.Camera = cam
		r.renderer.Parent = opts.CameraObject
		return nil
	})
}

// onLoop runs fn on the session loop and waits for its result. When ctx ends
// before fn was picked up, fn never runs and ctx.Err() is returned. Once fn
// has started, onLoop waits for it, so an error always means fn did not run.
func (r *Runtime) onLoop(ctx context.Context, fn func() error) error {
	var state atomic.Int32 // 0 queued, 1 running, 2 abandoned
	errc := make(chan error, 1)
	go r.loop.Post(func() {
		if !state.CompareAndSwap(0, 1) {
			return
		}
		errc <- fn()
	})
	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		if state.CompareAndSwap(0, 2) {
			return ctx.Err()
		}
		return <-errc
	}
}

func (r *Runtime) Hub() *events.Hub { return r.hub }

func (r *Runtime) SessionID() string { return r.sessionID }
