package config

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/charlie0129/gazectl/pkg/preview"
	"github.com/charlie0129/gazectl/pkg/session"
	"github.com/charlie0129/gazectl/pkg/utils/ptr"
)

var (
	defaultFileConfig = &RawFileConfig{
		CalibrationMode:          ptr.To(string(preview.Mode2D)),
		DisplayEyeImages:         ptr.To(true),
		AvailableScenes:          []string{"Demo"},
		CurrentSceneIndex:        ptr.To(0),
		GazeTargets:              ptr.To("PatientGazeTargets"),
		BeforeCalibrationButtons: ptr.To("BeforeCalibrationButtons"),
		ImageBlock:               ptr.To("ImageBlock"),
		CameraObject:             ptr.To("Camera"),
		TrackerURL:               ptr.To("ws://127.0.0.1:50020/notifications"),
		EngineURL:                ptr.To("http://127.0.0.1:8420"),
		DeferredDelay:            ptr.To("1s"),
		CancelSupersededDeferred: ptr.To(false),
		// Empty disables the status log.
		StatusLogSchedule:   ptr.To(""),
		StatusLogPath:       ptr.To("/var/log/gazectl/status.log"),
		TrackerProcessNames: []string{"pupil_service", "pupil_capture"},
		Camera: &RawCamera{
			FieldOfView: ptr.To(90.0),
			Aspect:      ptr.To(16.0 / 9.0),
		},
		AllowNonRootAccess: ptr.To(false),
	}
)

var _ Config = &File{}

type File struct {
	c        *RawFileConfig
	mu       *sync.RWMutex
	filepath string
}

func NewFile(configPath string) (*File, error) {
	f := &File{
		filepath: configPath,
		mu:       &sync.RWMutex{},
	}
	err := f.Load()
	if err != nil {
		return nil, err
	}

	return f, nil
}

func NewFileFromConfig(c *RawFileConfig, configPath string) *File {
	if c == nil {
		c = &RawFileConfig{}
	}

	f := &File{
		c:        c,
		mu:       &sync.RWMutex{},
		filepath: configPath,
	}

	return f
}

type RawCamera struct {
	FieldOfView *float64 `json:"fieldOfView,omitempty" yaml:"fieldOfView,omitempty"`
	Aspect      *float64 `json:"aspect,omitempty" yaml:"aspect,omitempty"`
}

type RawFileConfig struct {
	CalibrationMode          *string                     `json:"calibrationMode,omitempty" yaml:"calibrationMode,omitempty"`
	DisplayEyeImages         *bool                       `json:"displayEyeImages,omitempty" yaml:"displayEyeImages,omitempty"`
	AvailableScenes          []string                    `json:"availableScenes,omitempty" yaml:"availableScenes,omitempty"`
	CurrentSceneIndex        *int                        `json:"currentSceneIndex,omitempty" yaml:"currentSceneIndex,omitempty"`
	GazeTargets              *string                     `json:"gazeTargets,omitempty" yaml:"gazeTargets,omitempty"`
	BeforeCalibrationButtons *string                     `json:"beforeCalibrationButtons,omitempty" yaml:"beforeCalibrationButtons,omitempty"`
	ImageBlock               *string                     `json:"imageBlock,omitempty" yaml:"imageBlock,omitempty"`
	CameraObject             *string                     `json:"cameraObject,omitempty" yaml:"cameraObject,omitempty"`
	TrackerURL               *string                     `json:"trackerURL,omitempty" yaml:"trackerURL,omitempty"`
	EngineURL                *string                     `json:"engineURL,omitempty" yaml:"engineURL,omitempty"`
	DeferredDelay            *string                     `json:"deferredDelay,omitempty" yaml:"deferredDelay,omitempty"`
	CancelSupersededDeferred *bool                       `json:"cancelSupersededDeferred,omitempty" yaml:"cancelSupersededDeferred,omitempty"`
	StatusLogSchedule        *string                     `json:"statusLogSchedule,omitempty" yaml:"statusLogSchedule,omitempty"`
	StatusLogPath            *string                     `json:"statusLogPath,omitempty" yaml:"statusLogPath,omitempty"`
	TrackerProcessNames      []string                    `json:"trackerProcessNames,omitempty" yaml:"trackerProcessNames,omitempty"`
	Texts                    *session.Texts              `json:"texts,omitempty" yaml:"texts,omitempty"`
	Camera                   *RawCamera                  `json:"camera,omitempty" yaml:"camera,omitempty"`
	Geometry                 map[string]preview.Geometry `json:"geometry,omitempty" yaml:"geometry,omitempty"`
	AllowNonRootAccess       *bool                       `json:"allowNonRootAccess,omitempty" yaml:"allowNonRootAccess,omitempty"`
}

func NewRawFileConfigFromConfig(c Config) (*RawFileConfig, error) {
	if c == nil {
		return nil, pkgerrors.New("config is nil")
	}

	texts := c.Texts()
	cam := c.Camera()
	geometry := map[string]preview.Geometry{}
	for k, v := range c.Geometry() {
		geometry[string(k)] = v
	}

	rawConfig := &RawFileConfig{
		CalibrationMode:          ptr.To(string(c.CalibrationMode())),
		DisplayEyeImages:         ptr.To(c.DisplayEyeImages()),
		AvailableScenes:          c.AvailableScenes(),
		CurrentSceneIndex:        ptr.To(c.CurrentSceneIndex()),
		GazeTargets:              ptr.To(c.GazeTargets()),
		BeforeCalibrationButtons: ptr.To(c.BeforeCalibrationButtons()),
		ImageBlock:               ptr.To(c.ImageBlock()),
		CameraObject:             ptr.To(c.CameraObject()),
		TrackerURL:               ptr.To(c.TrackerURL()),
		EngineURL:                ptr.To(c.EngineURL()),
		DeferredDelay:            ptr.To(c.DeferredDelay().String()),
		CancelSupersededDeferred: ptr.To(c.CancelSupersededDeferred()),
		StatusLogSchedule:        ptr.To(c.StatusLogSchedule()),
		StatusLogPath:            ptr.To(c.StatusLogPath()),
		TrackerProcessNames:      c.TrackerProcessNames(),
		Texts:                    &texts,
		Camera: &RawCamera{
			FieldOfView: ptr.To(cam.FieldOfView),
			Aspect:      ptr.To(cam.Aspect),
		},
		Geometry:           geometry,
		AllowNonRootAccess: ptr.To(c.AllowNonRootAccess()),
	}

	return rawConfig, nil
}

// valueOr returns *v, or *d when v is unset.
func valueOr[T any](v, d *T) T {
	if v != nil {
		return *v
	}
	return *d
}

func (f *File) read() *RawFileConfig {
	if f.c == nil {
		panic("config is nil")
	}
	return f.c
}

func (f *File) CalibrationMode() preview.Mode {
	f.mu.RLock()
	defer f.mu.RUnlock()

	mode, err := preview.ParseMode(valueOr(f.read().CalibrationMode, defaultFileConfig.CalibrationMode))
	if err != nil {
		// Load rejects invalid modes.
		return preview.Mode2D
	}
	return mode
}

func (f *File) DisplayEyeImages() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return valueOr(f.read().DisplayEyeImages, defaultFileConfig.DisplayEyeImages)
}

func (f *File) AvailableScenes() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()

	scenes := f.read().AvailableScenes
	if len(scenes) == 0 {
		scenes = defaultFileConfig.AvailableScenes
	}
	return append([]string(nil), scenes...)
}

func (f *File) CurrentSceneIndex() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return valueOr(f.read().CurrentSceneIndex, defaultFileConfig.CurrentSceneIndex)
}

func (f *File) GazeTargets() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return valueOr(f.read().GazeTargets, defaultFileConfig.GazeTargets)
}

func (f *File) BeforeCalibrationButtons() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return valueOr(f.read().BeforeCalibrationButtons, defaultFileConfig.BeforeCalibrationButtons)
}

func (f *File) ImageBlock() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return valueOr(f.read().ImageBlock, defaultFileConfig.ImageBlock)
}

func (f *File) CameraObject() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return valueOr(f.read().CameraObject, defaultFileConfig.CameraObject)
}

func (f *File) TrackerURL() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return valueOr(f.read().TrackerURL, defaultFileConfig.TrackerURL)
}

func (f *File) EngineURL() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return valueOr(f.read().EngineURL, defaultFileConfig.EngineURL)
}

func (f *File) DeferredDelay() time.Duration {
	f.mu.RLock()
	defer f.mu.RUnlock()

	d, err := time.ParseDuration(valueOr(f.read().DeferredDelay, defaultFileConfig.DeferredDelay))
	if err != nil {
		// Load rejects invalid durations.
		return time.Second
	}
	return d
}

func (f *File) CancelSupersededDeferred() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return valueOr(f.read().CancelSupersededDeferred, defaultFileConfig.CancelSupersededDeferred)
}

func (f *File) StatusLogSchedule() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return valueOr(f.read().StatusLogSchedule, defaultFileConfig.StatusLogSchedule)
}

func (f *File) StatusLogPath() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return valueOr(f.read().StatusLogPath, defaultFileConfig.StatusLogPath)
}

func (f *File) TrackerProcessNames() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()

	names := f.read().TrackerProcessNames
	if len(names) == 0 {
		names = defaultFileConfig.TrackerProcessNames
	}
	return append([]string(nil), names...)
}

func (f *File) Texts() session.Texts {
	f.mu.RLock()
	defer f.mu.RUnlock()

	var t session.Texts
	if f.read().Texts != nil {
		t = *f.c.Texts
	}
	return t.Merge(session.DefaultTexts())
}

func (f *File) Camera() preview.Camera {
	f.mu.RLock()
	defer f.mu.RUnlock()

	raw := f.read().Camera
	if raw == nil {
		raw = &RawCamera{}
	}
	cam := preview.DefaultCamera()
	cam.FieldOfView = valueOr(raw.FieldOfView, defaultFileConfig.Camera.FieldOfView)
	cam.Aspect = valueOr(raw.Aspect, defaultFileConfig.Camera.Aspect)
	return cam
}

// Geometry returns the configured geometry overrides per mode.
func (f *File) Geometry() map[preview.Mode]preview.Geometry {
	f.mu.RLock()
	defer f.mu.RUnlock()

	ret := map[preview.Mode]preview.Geometry{}
	for k, v := range f.read().Geometry {
		mode, err := preview.ParseMode(k)
		if err != nil {
			continue
		}
		ret[mode] = v
	}
	return ret
}

func (f *File) AllowNonRootAccess() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return valueOr(f.read().AllowNonRootAccess, defaultFileConfig.AllowNonRootAccess)
}

func (f *File) SetCalibrationMode(m preview.Mode) {
	if _, err := preview.ParseMode(string(m)); err != nil {
		panic(err.Error())
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.read().CalibrationMode = ptr.To(string(m))
}

func (f *File) SetDisplayEyeImages(b bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.read().DisplayEyeImages = &b
}

func (f *File) SetCurrentSceneIndex(i int) {
	if i < 0 || i >= len(f.AvailableScenes()) {
		panic("current scene index must name one of the available scenes")
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.read().CurrentSceneIndex = &i
}

func (f *File) SetCancelSupersededDeferred(b bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.read().CancelSupersededDeferred = &b
}

func (f *File) SetAllowNonRootAccess(b bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.read().AllowNonRootAccess = &b
}

func (f *File) isYAML() bool {
	switch strings.ToLower(filepath.Ext(f.filepath)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

func (f *File) Load() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	fp, err := os.Open(f.filepath)
	if err != nil {
		if os.IsNotExist(err) {
			// If the file does not exist, return the empty config.
			// Do not make f.c a nil.
			f.c = &RawFileConfig{}
			return nil
		}
		return pkgerrors.Wrapf(err, "failed to open file %s", f.filepath)
	}
	defer func(fp *os.File) {
		err := fp.Close()
		if err != nil {
			logrus.Warnf("failed to close file %s", f.filepath)
		}
	}(fp)

	b, err := io.ReadAll(fp)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to read file %s", f.filepath)
	}

	if len(bytes.TrimSpace(b)) == 0 {
		f.c = &RawFileConfig{}
		return nil
	}

	conf := RawFileConfig{}
	if f.isYAML() {
		err = yaml.Unmarshal(b, &conf)
	} else {
		err = json.Unmarshal(b, &conf)
	}
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to unmarshal config from file %s", f.filepath)
	}
	if err := conf.validate(); err != nil {
		return pkgerrors.Wrapf(err, "invalid config in file %s", f.filepath)
	}
	f.c = &conf

	return nil
}

func (c *RawFileConfig) validate() error {
	if c.CalibrationMode != nil {
		if _, err := preview.ParseMode(*c.CalibrationMode); err != nil {
			return err
		}
	}
	if c.DeferredDelay != nil {
		d, err := time.ParseDuration(*c.DeferredDelay)
		if err != nil {
			return pkgerrors.Wrapf(err, "invalid deferredDelay")
		}
		if d < 0 {
			return pkgerrors.Errorf("deferredDelay must not be negative, got %s", d)
		}
	}
	scenes := c.AvailableScenes
	if len(scenes) == 0 {
		scenes = defaultFileConfig.AvailableScenes
	}
	if c.CurrentSceneIndex != nil && (*c.CurrentSceneIndex < 0 || *c.CurrentSceneIndex >= len(scenes)) {
		return pkgerrors.Errorf("currentSceneIndex %d out of range, %d scenes available", *c.CurrentSceneIndex, len(scenes))
	}
	for k := range c.Geometry {
		if _, err := preview.ParseMode(k); err != nil {
			return pkgerrors.Wrapf(err, "invalid geometry key")
		}
	}
	if c.Camera != nil {
		if c.Camera.Aspect != nil && *c.Camera.Aspect <= 0 {
			return pkgerrors.Errorf("camera aspect must be positive")
		}
		if c.Camera.FieldOfView != nil && (*c.Camera.FieldOfView <= 0 || *c.Camera.FieldOfView >= 180) {
			return pkgerrors.Errorf("camera fieldOfView must be between 0 and 180 degrees")
		}
	}
	return nil
}

func (f *File) Save() error {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.c == nil {
		return pkgerrors.New("config is nil")
	}

	fp, err := os.OpenFile(f.filepath, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to open file %s", f.filepath)
	}
	defer func(fp *os.File) {
		err := fp.Close()
		if err != nil {
			logrus.Warnf("failed to close file %s", f.filepath)
		}
	}(fp)

	if f.isYAML() {
		enc := yaml.NewEncoder(fp)
		enc.SetIndent(2)
		if err := enc.Encode(f.c); err != nil {
			return pkgerrors.Wrapf(err, "failed to encode config to file %s", f.filepath)
		}
		return enc.Close()
	}

	enc := json.NewEncoder(fp)
	enc.SetIndent("", "  ")
	err = enc.Encode(f.c)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to encode config to file %s", f.filepath)
	}

	return nil
}

func (f *File) LogrusFields() logrus.Fields {
	return logrus.Fields{
		"calibrationMode":          f.CalibrationMode(),
		"displayEyeImages":         f.DisplayEyeImages(),
		"availableScenes":          f.AvailableScenes(),
		"currentSceneIndex":        f.CurrentSceneIndex(),
		"trackerURL":               f.TrackerURL(),
		"engineURL":                f.EngineURL(),
		"deferredDelay":            f.DeferredDelay(),
		"cancelSupersededDeferred": f.CancelSupersededDeferred(),
		"statusLogSchedule":        f.StatusLogSchedule(),
		"allowNonRootAccess":       f.AllowNonRootAccess(),
	}
}
