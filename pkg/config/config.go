package config

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/charlie0129/gazectl/pkg/preview"
	"github.com/charlie0129/gazectl/pkg/session"
)

type Config interface {
	CalibrationMode() preview.Mode
	DisplayEyeImages() bool
	AvailableScenes() []string
	CurrentSceneIndex() int
	GazeTargets() string
	BeforeCalibrationButtons() string
	ImageBlock() string
	CameraObject() string
	TrackerURL() string
	EngineURL() string
	DeferredDelay() time.Duration
	CancelSupersededDeferred() bool
	StatusLogSchedule() string
	StatusLogPath() string
	TrackerProcessNames() []string
	Texts() session.Texts
	Camera() preview.Camera
	Geometry() map[preview.Mode]preview.Geometry
	AllowNonRootAccess() bool

	SetCalibrationMode(preview.Mode)
	SetDisplayEyeImages(bool)
	SetCurrentSceneIndex(int)
	SetCancelSupersededDeferred(bool)
	SetAllowNonRootAccess(bool)

	// Load reads the configuration from the source.
	Load() error
	// Save saves the configuration to the source.
	Save() error

	LogrusFields() logrus.Fields
}
