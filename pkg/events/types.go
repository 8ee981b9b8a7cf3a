package events

import "encoding/json"

// Tracker lifecycle events consumed by the session manager.
const (
	Connected          = "tracker.connected"
	Disconnecting      = "tracker.disconnecting"
	CalibrationStarted = "calibration.started"
	CalibrationEnded   = "calibration.ended"
	CalibrationFailed  = "calibration.failed"
)

// Events published by gazectl itself.
const (
	StatusChanged = "status.changed"
	SceneChanged  = "scene.changed"
	EyeFrame      = "eye.frame"
)

// Lifecycle lists the tracker lifecycle events in a stable order.
var Lifecycle = []string{
	Connected,
	Disconnecting,
	CalibrationStarted,
	CalibrationEnded,
	CalibrationFailed,
}

// Event is a named event with a raw JSON payload.
type Event struct {
	Name string          `json:"name"`           // event name
	Data json.RawMessage `json:"data,omitempty"` // Raw JSON payload
}

// StatusChangedEvent is the payload for status.changed.
type StatusChangedEvent struct {
	Text string `json:"text"`
	Tag  string `json:"tag"`
	Ts   int64  `json:"ts"`
}

// SceneChangedEvent is the payload for scene.changed.
type SceneChangedEvent struct {
	Scene  string `json:"scene"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
	Ts     int64  `json:"ts"`
}

// EyeFrameEvent is the payload for eye.frame.
type EyeFrameEvent struct {
	Eye    int   `json:"eye"`
	Frames int   `json:"frames"`
	Ts     int64 `json:"ts"`
}

// DecodeAs decodes the event payload into the caller-specified generic type T.
// It ignores the event name and simply unmarshals Data into T. If Data is empty,
// it returns the zero value of T with a nil error.
//
// Example:
//
//	payload, err := events.DecodeAs[events.StatusChangedEvent](ev)
//	if err != nil { /* handle */ }
//	fmt.Println(payload.Text, payload.Tag)
func DecodeAs[T any](e Event) (T, error) {
	var zero T
	if len(e.Data) == 0 {
		return zero, nil
	}
	var v T
	if err := json.Unmarshal(e.Data, &v); err != nil {
		return zero, err
	}
	return v, nil
}
