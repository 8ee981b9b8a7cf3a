package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/charlie0129/gazectl/pkg/events"
	"github.com/charlie0129/gazectl/pkg/preview"
	"github.com/charlie0129/gazectl/pkg/scene"
)

const (
	defaultDeferredDelay = time.Second
	defaultCallTimeout   = 5 * time.Second
)

// Display is the status label and the status tag.
type Display interface {
	SetText(s string)
	SetStatusTag(tag string)
}

// Objects toggles whole UI groups and the camera object in the engine.
type Objects interface {
	SetActive(ctx context.Context, name string, active bool) error
}

// Tracker receives the calibration mode before a calibration starts.
type Tracker interface {
	SetCalibrationMode(ctx context.Context, mode preview.Mode) error
}

// EyeImages is the live eye-image feed. Start attaches and enables it;
// SetEnabled only toggles an attached feed.
type EyeImages interface {
	Start()
	SetEnabled(enabled bool)
}

// Previewer renders the calibration point preview.
type Previewer interface {
	Show(ctx context.Context, mode preview.Mode) ([]preview.Marker, error)
}

// SceneSlot is the secondary scene slot. See scene.Controller.
type SceneSlot interface {
	Status() scene.Status
	LoadedIndex() int
	Name(index int) string
	Load(index int, done func(error))
	Unload(done func(error))
}

// SceneReporter tells which engine scene is active once calibration is done.
type SceneReporter interface {
	CurrentScene(ctx context.Context) (string, error)
}

// Bus is the event source the Manager subscribes to while active.
type Bus interface {
	Subscribe(names ...string) chan events.Event
	Unsubscribe(ch chan events.Event)
}

// Options are the per-session settings.
type Options struct {
	SessionID         string
	Mode              preview.Mode
	DisplayEyeImages  bool
	CurrentSceneIndex int

	GazeTargets              string
	BeforeCalibrationButtons string
	ImageBlock               string
	CameraObject             string

	// DeferredDelay is the delay of the calibration prompt and of the demo
	// start.
	DeferredDelay time.Duration
	// CancelSupersededDeferred drops a deferred action if any input was
	// handled after it was scheduled.
	CancelSupersededDeferred bool
	// CallTimeout bounds each collaborator call made from the loop.
	CallTimeout time.Duration

	Texts Texts
}

// Deps are the collaborators of a Manager. Scenes and Scheduler are
// required; every other nil dependency is a no-op.
type Deps struct {
	Display   Display
	Objects   Objects
	Tracker   Tracker
	EyeImages EyeImages
	Previewer Previewer
	Scenes    SceneSlot
	Reporter  SceneReporter
	Scheduler Scheduler
}

func (o *Options) complete(slot SceneSlot) error {
	if slot.Name(o.CurrentSceneIndex) == "" {
		return fmt.Errorf("session: current scene index %d does not name a scene", o.CurrentSceneIndex)
	}
	if o.Mode == "" {
		o.Mode = preview.Mode2D
	}
	if o.DeferredDelay <= 0 {
		o.DeferredDelay = defaultDeferredDelay
	}
	if o.CallTimeout <= 0 {
		o.CallTimeout = defaultCallTimeout
	}
	o.Texts = o.Texts.Merge(DefaultTexts())
	return nil
}

// Manager is the session state machine.
type Manager struct {
	opts Options

	display   Display
	objects   Objects
	tracker   Tracker
	eyes      EyeImages
	previewer Previewer
	slot      SceneSlot
	reporter  SceneReporter
	sched     Scheduler

	// Loop-only fields.
	state              State
	tag                Tag
	text               string
	calibrationStarted bool
	calibrationDone    bool
	eyesAttached       bool
	eyesEnabled        bool
	pendingLoad        bool
	pendingUnload      bool
	previewBatches     int
	previewMarkers     int
	objectFlags        map[string]bool
	// epoch is bumped on every handled input.
	epoch uint64

	mu      sync.RWMutex
	snap    Status
	release func()
	closed  bool
}

func New(opts Options, deps Deps) (*Manager, error) {
	if deps.Scenes == nil {
		return nil, errors.New("session: scene slot is required")
	}
	if deps.Scheduler == nil {
		return nil, errors.New("session: scheduler is required")
	}
	if err := opts.complete(deps.Scenes); err != nil {
		return nil, err
	}

	m := &Manager{
		opts:        opts,
		display:     deps.Display,
		objects:     deps.Objects,
		tracker:     deps.Tracker,
		eyes:        deps.EyeImages,
		previewer:   deps.Previewer,
		slot:        deps.Scenes,
		reporter:    deps.Reporter,
		sched:       deps.Scheduler,
		state:       StateConnecting,
		tag:         TagConnecting,
		objectFlags: map[string]bool{},
	}
	if m.display == nil {
		m.display = nopDisplay{}
	}
	if m.objects == nil {
		m.objects = nopObjects{}
	}
	if m.tracker == nil {
		m.tracker = nopTracker{}
	}
	if m.eyes == nil {
		m.eyes = nopEyes{}
	}
	m.commit()
	return m, nil
}

// Activate subscribes to the tracker lifecycle events and resets the status
// label. Every event is handled on exec.
func (m *Manager) Activate(bus Bus, exec Executor) {
	m.mu.Lock()
	if m.release != nil {
		m.mu.Unlock()
		return
	}

	ch := bus.Subscribe(events.Lifecycle...)
	go func() {
		for ev := range ch {
			name := ev.Name
			exec.Post(func() { m.Handle(name) })
		}
	}()
	m.release = func() { bus.Unsubscribe(ch) }
	m.closed = false
	m.mu.Unlock()

	exec.Post(func() {
		m.resetText()
		m.commit()
	})
	logrus.WithField("sessionId", m.opts.SessionID).Info("session activated")
}

// Deactivate releases the event subscription. Deferred actions still pending
// will not run.
func (m *Manager) Deactivate() {
	m.mu.Lock()
	release := m.release
	m.release = nil
	m.closed = true
	m.mu.Unlock()

	if release == nil {
		return
	}
	release()
	logrus.WithField("sessionId", m.opts.SessionID).Info("session deactivated")
}

// Configure replaces the options of a running session. The session id is
// kept. Changes apply from the next handled input on.
func (m *Manager) Configure(opts Options) error {
	if err := opts.complete(m.slot); err != nil {
		return err
	}
	opts.SessionID = m.opts.SessionID
	m.opts = opts
	m.commit()
	logrus.WithFields(logrus.Fields{
		"mode":              opts.Mode,
		"displayEyeImages":  opts.DisplayEyeImages,
		"currentSceneIndex": opts.CurrentSceneIndex,
	}).Info("session reconfigured")
	return nil
}

// Handle consumes one tracker lifecycle event. Events reaching a deactivated
// session are dropped.
func (m *Manager) Handle(name string) {
	if m.isClosed() {
		logrus.WithField("event", name).Debug("session deactivated, event dropped")
		return
	}
	m.epoch++
	logrus.WithFields(logrus.Fields{
		"event": name,
		"state": m.state,
	}).Debug("handling event")

	switch name {
	case events.Disconnecting:
		m.onDisconnecting()
	case events.Connected:
		m.onConnected()
	case events.CalibrationStarted:
		m.onCalibrationStarted()
	case events.CalibrationEnded:
		m.onCalibrationEnded()
	case events.CalibrationFailed:
		m.onCalibrationFailed()
	default:
		logrus.WithField("event", name).Warn("ignoring unknown event")
		return
	}
	m.commit()
}

// HandleManualTrigger starts the demo immediately, whatever the state.
func (m *Manager) HandleManualTrigger() {
	if m.isClosed() {
		logrus.Debug("session deactivated, manual trigger dropped")
		return
	}
	m.epoch++
	logrus.WithField("state", m.state).Info("manual demo trigger")
	m.startDemo()
	m.commit()
}

func (m *Manager) onDisconnecting() {
	m.resetText()
	if m.opts.DisplayEyeImages {
		m.setEyes(false)
	}
}

func (m *Manager) onConnected() {
	m.state = StateConnected
	m.setText(m.opts.Texts.Connected)
	m.setTag(TagConnected)

	ctx, cancel := m.callCtx()
	defer cancel()

	if err := m.tracker.SetCalibrationMode(ctx, m.opts.Mode); err != nil {
		logrus.WithField("mode", m.opts.Mode).Errorf("failed to set calibration mode: %v", err)
	}

	m.showPreview(ctx)

	if m.opts.DisplayEyeImages {
		m.eyes.Start()
		m.eyesAttached = true
		m.eyesEnabled = true
	}

	m.deferred("show-calibration-prompt", func() {
		m.setText(m.opts.Texts.ReadyToCalibrate)
	})
}

func (m *Manager) onCalibrationStarted() {
	ctx, cancel := m.callCtx()
	defer cancel()

	m.setActive(ctx, m.opts.GazeTargets, false)
	m.setActive(ctx, m.opts.BeforeCalibrationButtons, false)
	m.setActive(ctx, m.opts.ImageBlock, false)
	m.setActive(ctx, m.opts.CameraObject, true)

	m.state = StateCalibrationStarted
	m.calibrationStarted = true
	m.setText("")
	m.setTag(TagCalStarted)
	m.setEyes(false)

	m.pendingLoad = false
	switch m.slot.Status() {
	case scene.StatusLoaded:
		m.unloadScene()
	case scene.StatusLoading:
		m.pendingUnload = true
		logrus.Info("scene still loading, unload queued")
	}
}

func (m *Manager) onCalibrationEnded() {
	// Only a new CalibrationStarted leaves CalibrationFailed.
	if m.state == StateCalibrationFailed {
		logrus.Warn("calibration ended after a failure, ignored")
		return
	}
	m.state = StateCalibrationDone
	m.setText(m.opts.Texts.CalibrationDone)
	m.setTag(TagCalDone)
	m.deferred("start-demo", m.startDemo)
}

func (m *Manager) onCalibrationFailed() {
	m.state = StateCalibrationFailed
	m.setText(m.opts.Texts.CalibrationFailed)
	m.setTag(TagCalError)
	if m.opts.DisplayEyeImages {
		m.setEyes(true)
	}
}

func (m *Manager) startDemo() {
	m.state = StateDemoActive
	m.setTag(TagMenu)
	m.calibrationDone = true

	switch st := m.slot.Status(); st {
	case scene.StatusEmpty:
		m.loadScene()
	case scene.StatusUnloading:
		m.pendingLoad = true
		logrus.Info("scene still unloading, load queued")
	default:
		// The demo wants the scene, drop a queued unload.
		m.pendingUnload = false
		logrus.WithField("sceneStatus", st).Warn("demo scene already loading or loaded, load skipped")
	}

	ctx, cancel := m.callCtx()
	defer cancel()
	m.setActive(ctx, m.opts.CameraObject, false)
}

func (m *Manager) loadScene() {
	m.slot.Load(m.opts.CurrentSceneIndex, func(err error) {
		if err != nil {
			m.sceneFailed(err)
		}
		if m.pendingUnload {
			m.pendingUnload = false
			if m.slot.Status() == scene.StatusLoaded {
				m.unloadScene()
			}
		}
		m.commit()
	})
}

func (m *Manager) unloadScene() {
	m.slot.Unload(func(err error) {
		if err != nil {
			m.sceneFailed(err)
		}
		if m.pendingLoad {
			m.pendingLoad = false
			if m.slot.Status() == scene.StatusEmpty {
				m.loadScene()
			}
		}
		m.commit()
	})
}

func (m *Manager) sceneFailed(err error) {
	logrus.WithField("state", m.state).Errorf("scene transition failed: %v", err)
	m.setText(m.opts.Texts.SceneFailed)
	m.setTag(TagSceneError)
}

// deferred runs fn on the loop once the deferred delay has elapsed.
func (m *Manager) deferred(name string, fn func()) {
	epoch := m.epoch
	m.sched.After(m.opts.DeferredDelay, func() {
		if m.isClosed() {
			return
		}
		if m.opts.CancelSupersededDeferred && epoch != m.epoch {
			logrus.WithField("action", name).Debug("deferred action superseded, skipped")
			return
		}
		logrus.WithField("action", name).Debug("running deferred action")
		fn()
		m.commit()
	})
}

func (m *Manager) showPreview(ctx context.Context) {
	if m.previewer == nil {
		return
	}
	markers, err := m.previewer.Show(ctx, m.opts.Mode)
	if err != nil {
		logrus.Errorf("failed to show calibration preview: %v", err)
		return
	}
	if len(markers) == 0 {
		return
	}
	m.previewBatches++
	m.previewMarkers += len(markers)
	if m.previewBatches > 1 {
		// Earlier markers are never removed.
		logrus.WithFields(logrus.Fields{
			"batches": m.previewBatches,
			"markers": m.previewMarkers,
		}).Warn("preview markers accumulate across connects")
	}
}

func (m *Manager) resetText() {
	m.state = StateConnecting
	m.setText(m.opts.Texts.Connecting)
	m.setTag(TagConnecting)
}

func (m *Manager) setText(s string) {
	m.text = s
	m.display.SetText(s)
}

func (m *Manager) setTag(t Tag) {
	m.tag = t
	m.display.SetStatusTag(string(t))
}

func (m *Manager) setEyes(enabled bool) {
	m.eyes.SetEnabled(enabled)
	if m.eyesAttached {
		m.eyesEnabled = enabled
	}
}

func (m *Manager) setActive(ctx context.Context, name string, active bool) {
	if name == "" {
		return
	}
	m.objectFlags[name] = active
	if err := m.objects.SetActive(ctx, name, active); err != nil {
		logrus.WithFields(logrus.Fields{
			"object": name,
			"active": active,
		}).Errorf("failed to set object active flag: %v", err)
	}
}

func (m *Manager) callCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), m.opts.CallTimeout)
}

func (m *Manager) isClosed() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.closed
}

// commit publishes the loop-only fields as the readable snapshot.
func (m *Manager) commit() {
	st := Status{
		SessionID:          m.opts.SessionID,
		State:              m.state,
		Tag:                m.tag,
		Text:               m.text,
		CalibrationMode:    string(m.opts.Mode),
		CalibrationStarted: m.calibrationStarted,
		CalibrationDone:    m.calibrationDone,
		SceneStatus:        m.slot.Status(),
		PendingLoad:        m.pendingLoad,
		PendingUnload:      m.pendingUnload,
		PreviewBatches:     m.previewBatches,
		PreviewMarkers:     m.previewMarkers,
		EyeImages:          m.eyesAttached && m.eyesEnabled,
		Objects:            m.objectFlags,
		UpdatedAt:          time.Now(),
	}
	if idx := m.slot.LoadedIndex(); idx >= 0 {
		st.Scene = m.slot.Name(idx)
	}
	st = st.Clone()

	m.mu.Lock()
	m.snap = st
	m.mu.Unlock()
}

// Status returns the latest snapshot. Safe for concurrent use.
func (m *Manager) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snap.Clone()
}

// SceneStat is the value consumed by external loggers: the status tag while
// calibration has not completed, the active engine scene afterwards. Safe
// for concurrent use.
func (m *Manager) SceneStat(ctx context.Context) (string, error) {
	st := m.Status()
	if !st.CalibrationDone {
		return string(st.Tag), nil
	}
	if m.reporter == nil {
		return st.Scene, nil
	}
	name, err := m.reporter.CurrentScene(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to query current scene: %w", err)
	}
	return name, nil
}

type nopDisplay struct{}

func (nopDisplay) SetText(string)      {}
func (nopDisplay) SetStatusTag(string) {}

type nopObjects struct{}

func (nopObjects) SetActive(context.Context, string, bool) error { return nil }

type nopTracker struct{}

func (nopTracker) SetCalibrationMode(context.Context, preview.Mode) error { return nil }

type nopEyes struct{}

func (nopEyes) Start()          {}
func (nopEyes) SetEnabled(bool) {}
