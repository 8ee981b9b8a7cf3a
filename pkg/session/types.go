package session

import (
	"time"

	"github.com/charlie0129/gazectl/pkg/scene"
)

// State defines the states of a calibration session.
type State string

const (
	StateConnecting         State = "Connecting"
	StateConnected          State = "Connected"
	StateCalibrationStarted State = "CalibrationStarted"
	StateCalibrationDone    State = "CalibrationDone"
	StateCalibrationFailed  State = "CalibrationFailed"
	StateDemoActive         State = "DemoActive"
)

// Tag is the status tag reported to external loggers while the calibration
// has not completed yet.
type Tag string

const (
	TagConnecting Tag = "Connecting"
	TagConnected  Tag = "Connected"
	TagCalStarted Tag = "CalStarted"
	TagCalDone    Tag = "CalDone"
	TagCalError   Tag = "CalError"
	// TagMenu is set as soon as the demo scene starts loading.
	TagMenu       Tag = "menu0"
	TagSceneError Tag = "SceneError"
)

// Texts holds the messages written to the status label.
type Texts struct {
	Connecting        string `json:"connecting" yaml:"connecting"`
	Connected         string `json:"connected" yaml:"connected"`
	ReadyToCalibrate  string `json:"readyToCalibrate" yaml:"readyToCalibrate"`
	CalibrationDone   string `json:"calibrationDone" yaml:"calibrationDone"`
	CalibrationFailed string `json:"calibrationFailed" yaml:"calibrationFailed"`
	SceneFailed       string `json:"sceneFailed" yaml:"sceneFailed"`
}

func DefaultTexts() Texts {
	return Texts{
		Connecting:        "Trying to connect to Pupil.\nPlease start Pupil Service/Capture\n(if you have not done so, already)",
		Connected:         "Success",
		ReadyToCalibrate:  "Press 'c' to start calibration.",
		CalibrationDone:   "Calibration ended.",
		CalibrationFailed: "Calibration failed\nPress 'c' to start it again.",
		SceneFailed:       "Scene transition failed.",
	}
}

// Merge returns t with every empty field taken from d.
func (t Texts) Merge(d Texts) Texts {
	pick := func(a, b string) string {
		if a == "" {
			return b
		}
		return a
	}
	return Texts{
		Connecting:        pick(t.Connecting, d.Connecting),
		Connected:         pick(t.Connected, d.Connected),
		ReadyToCalibrate:  pick(t.ReadyToCalibrate, d.ReadyToCalibrate),
		CalibrationDone:   pick(t.CalibrationDone, d.CalibrationDone),
		CalibrationFailed: pick(t.CalibrationFailed, d.CalibrationFailed),
		SceneFailed:       pick(t.SceneFailed, d.SceneFailed),
	}
}

// Status is a synthesized view model exposed via the HTTP API and the console.
// It is a snapshot taken on the session loop after every handled input.
type Status struct {
	SessionID          string          `json:"sessionId"`
	State              State           `json:"state"`
	Tag                Tag             `json:"tag"`
	Text               string          `json:"text"`
	CalibrationMode    string          `json:"calibrationMode"`
	CalibrationStarted bool            `json:"calibrationStarted"`
	CalibrationDone    bool            `json:"calibrationDone" yaml:"calibrationDone"`
	Scene              string          `json:"scene,omitempty"`
	SceneStatus        scene.Status    `json:"sceneStatus"`
	PendingLoad        bool            `json:"pendingLoad,omitempty"`
	PendingUnload      bool            `json:"pendingUnload,omitempty"`
	PreviewBatches     int             `json:"previewBatches"`
	PreviewMarkers     int             `json:"previewMarkers"`
	EyeImages          bool            `json:"eyeImages"`
	Objects            map[string]bool `json:"objects,omitempty"`
	UpdatedAt          time.Time       `json:"updatedAt"`
}

// Clone returns a deep copy of the Status.
func (s Status) Clone() Status {
	if s.Objects != nil {
		objects := make(map[string]bool, len(s.Objects))
		for k, v := range s.Objects {
			objects[k] = v
		}
		s.Objects = objects
	}
	return s
}
