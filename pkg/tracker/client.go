// Package tracker bridges the eye-tracking service to the event hub. The
// service speaks JSON notifications over a websocket; connection state and
// calibration notifications become lifecycle events, eye frames are handed to
// a FrameHandler.
package tracker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/charlie0129/gazectl/pkg/events"
	"github.com/charlie0129/gazectl/pkg/preview"
)

const (
	reconnectBaseDelay = 1 * time.Second
	reconnectMaxDelay  = 30 * time.Second
	writeTimeout       = 10 * time.Second
	pongTimeout        = 60 * time.Second
	pingInterval       = 30 * time.Second
)

// Notification subjects.
const (
	SubjectCalibrationStarted    = "calibration.started"
	SubjectCalibrationSuccessful = "calibration.successful"
	SubjectCalibrationStopped    = "calibration.stopped"
	SubjectCalibrationFailed     = "calibration.failed"
	SubjectEyeFramePrefix        = "frame.eye."

	SubjectStartPlugin       = "start_plugin"
	SubjectShouldStart       = "calibration.should_start"
	SubjectFrameSubscription = "frame.subscribe"
)

// Calibration plugins per mode.
var plugins = map[preview.Mode]string{
	preview.Mode2D: "HMD_Calibration",
	preview.Mode3D: "HMD_Calibration_3D",
}

var ErrNotConnected = errors.New("tracker not connected")

// Notification is one message exchanged with the tracker.
type Notification struct {
	Subject string          `json:"subject"`
	Name    string          `json:"name,omitempty"`
	Topic   string          `json:"topic,omitempty"`
	Enabled *bool           `json:"enabled,omitempty"`
	Reason  string          `json:"reason,omitempty"`
	Args    json.RawMessage `json:"args,omitempty"`
}

// FrameHandler receives eye frames.
type FrameHandler interface {
	HandleFrame(eye int)
}

// Client keeps a websocket connection to the tracker, reconnecting with
// backoff.
type Client struct {
	url string
	hub *events.Hub

	mu      sync.Mutex
	writeMu sync.Mutex // serialises all conn writes
	conn    *websocket.Conn
	frames  FrameHandler
}

func NewClient(url string, hub *events.Hub) *Client {
	return &Client{url: url, hub: hub}
}

func (c *Client) SetFrameHandler(h FrameHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = h
}

func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// Run connects and reads notifications until ctx is done, reconnecting
// whenever the connection drops.
func (c *Client) Run(ctx context.Context) {
	delay := reconnectBaseDelay
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.url, nil)
		if err != nil {
			logrus.WithField("url", c.url).Debugf("tracker dial error: %v (retry in %v)", err, delay)
			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}
			delay = min(delay*2, reconnectMaxDelay)
			continue
		}
		delay = reconnectBaseDelay

		c.mu.Lock()
		c.conn = conn
		c.mu.Unlock()

		logrus.WithField("url", c.url).Info("connected to tracker")
		c.hub.Publish(events.Connected, nil)

		pingCtx, cancelPing := context.WithCancel(ctx)
		go c.pingLoop(pingCtx, conn)
		// Unblock the read when ctx is cancelled.
		stop := context.AfterFunc(ctx, func() { _ = conn.Close() })

		err = c.readLoop(conn)

		stop()
		cancelPing()
		c.mu.Lock()
		if c.conn == conn {
			c.conn = nil
		}
		c.mu.Unlock()
		_ = conn.Close()

		logrus.Warnf("tracker connection lost: %v", err)
		c.hub.Publish(events.Disconnecting, nil)

		select {
		case <-ctx.Done():
			return
		case <-time.After(reconnectBaseDelay):
		}
	}
}

func (c *Client) readLoop(conn *websocket.Conn) error {
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongTimeout))
	})
	_ = conn.SetReadDeadline(time.Now().Add(pongTimeout))

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		var n Notification
		if err := json.Unmarshal(data, &n); err != nil {
			logrus.Debugf("ignoring malformed tracker message: %v", err)
			continue
		}
		c.dispatch(n)
	}
}

func (c *Client) dispatch(n Notification) {
	switch n.Subject {
	case SubjectCalibrationStarted:
		c.hub.Publish(events.CalibrationStarted, nil)
	case SubjectCalibrationSuccessful:
		c.hub.Publish(events.CalibrationEnded, nil)
	case SubjectCalibrationStopped:
		// Follows both successful and failed, already reported.
		logrus.Trace("tracker reports calibration stopped")
	case SubjectCalibrationFailed:
		logrus.WithField("reason", n.Reason).Warn("tracker reports calibration failure")
		c.hub.Publish(events.CalibrationFailed, nil)
	default:
		if !strings.HasPrefix(n.Subject, SubjectEyeFramePrefix) {
			logrus.WithField("subject", n.Subject).Trace("ignoring tracker notification")
			return
		}
		eye, err := strconv.Atoi(strings.TrimPrefix(n.Subject, SubjectEyeFramePrefix))
		if err != nil {
			return
		}
		c.mu.Lock()
		h := c.frames
		c.mu.Unlock()
		if h != nil {
			h.HandleFrame(eye)
		}
	}
}

// pingLoop sends periodic pings on conn until ctx is cancelled or the
// connection changes.
func (c *Client) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.mu.Lock()
			cc := c.conn
			c.mu.Unlock()
			if cc != conn {
				return
			}
			c.writeMu.Lock()
			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			err := conn.WriteMessage(websocket.PingMessage, nil)
			c.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

// Send writes one notification to the tracker.
func (c *Client) Send(ctx context.Context, n Notification) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	deadline := time.Now().Add(writeTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = conn.SetWriteDeadline(deadline)
	if err := conn.WriteJSON(n); err != nil {
		return fmt.Errorf("failed to send %s: %w", n.Subject, err)
	}
	return nil
}

// SetCalibrationMode starts the calibration plugin matching mode.
func (c *Client) SetCalibrationMode(ctx context.Context, mode preview.Mode) error {
	name, ok := plugins[mode]
	if !ok {
		return fmt.Errorf("unknown calibration mode %q", mode)
	}
	return c.Send(ctx, Notification{Subject: SubjectStartPlugin, Name: name})
}

// StartCalibration asks the tracker to start calibrating.
func (c *Client) StartCalibration(ctx context.Context) error {
	return c.Send(ctx, Notification{Subject: SubjectShouldStart})
}

// SubscribeFrames turns the eye frame stream on or off.
func (c *Client) SubscribeFrames(enabled bool) error {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	return c.Send(ctx, Notification{Subject: SubjectFrameSubscription, Topic: "frame.eye", Enabled: &enabled})
}
