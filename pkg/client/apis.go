package client

import (
	"encoding/json"
	"strconv"

	pkgerrors "github.com/pkg/errors"

	"github.com/charlie0129/gazectl/pkg/config"
	"github.com/charlie0129/gazectl/pkg/eyeimage"
	"github.com/charlie0129/gazectl/pkg/preview"
	"github.com/charlie0129/gazectl/pkg/session"
	"github.com/charlie0129/gazectl/pkg/tracker"
)

func (c *Client) GetStatus() (*session.Status, error) {
	ret, err := c.Get("/status")
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to get session status")
	}

	var st session.Status
	if err := json.Unmarshal([]byte(ret), &st); err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to unmarshal session status")
	}
	return &st, nil
}

func (c *Client) GetSceneStat() (string, error) {
	ret, err := c.Get("/scene-stat")
	if err != nil {
		return "", pkgerrors.Wrapf(err, "failed to get scene stat")
	}
	return unquote(ret)
}

// TriggerDemo fires the manual demo transition.
func (c *Client) TriggerDemo() (string, error) {
	return c.Put("/demo", "")
}

// StartCalibration asks the tracker, through the daemon, to start calibrating.
func (c *Client) StartCalibration() (string, error) {
	return c.Post("/calibration/start", "")
}

func (c *Client) SetCalibrationMode(mode preview.Mode) (string, error) {
	payload, err := json.Marshal(mode)
	if err != nil {
		return "", err
	}
	return c.Put("/calibration-mode", string(payload))
}

func (c *Client) SetDisplayEyeImages(enabled bool) (string, error) {
	return c.Put("/display-eye-images", strconv.FormatBool(enabled))
}

func (c *Client) SetCurrentScene(index int) (string, error) {
	return c.Put("/current-scene", strconv.Itoa(index))
}

func (c *Client) SetCancelSupersededDeferred(enabled bool) (string, error) {
	return c.Put("/cancel-superseded-deferred", strconv.FormatBool(enabled))
}

func (c *Client) GetTrackerProcesses() ([]tracker.ProcessInfo, error) {
	ret, err := c.Get("/tracker/processes")
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to get tracker processes")
	}

	var procs []tracker.ProcessInfo
	if err := json.Unmarshal([]byte(ret), &procs); err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to unmarshal tracker processes")
	}
	return procs, nil
}

func (c *Client) GetEyeImages() (*eyeimage.Snapshot, error) {
	ret, err := c.Get("/eye-images")
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to get eye image status")
	}

	var s eyeimage.Snapshot
	if err := json.Unmarshal([]byte(ret), &s); err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to unmarshal eye image status")
	}
	return &s, nil
}

func (c *Client) GetConfig() (*config.RawFileConfig, error) {
	ret, err := c.Get("/config")
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to get config")
	}

	var conf config.RawFileConfig
	if err := json.Unmarshal([]byte(ret), &conf); err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to unmarshal config")
	}

	return &conf, nil
}

func (c *Client) GetVersion() (string, error) {
	ret, err := c.Get("/version")
	if err != nil {
		return "", pkgerrors.Wrapf(err, "failed to get version")
	}
	return unquote(ret)
}

func unquote(ret string) (string, error) {
	var s string
	if err := json.Unmarshal([]byte(ret), &s); err != nil {
		return "", pkgerrors.Wrapf(err, "unexpected response: %s", ret)
	}
	return s, nil
}
