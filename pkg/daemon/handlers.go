package daemon

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/charlie0129/gazectl/pkg/config"
	"github.com/charlie0129/gazectl/pkg/preview"
	"github.com/charlie0129/gazectl/pkg/tracker"
	"github.com/charlie0129/gazectl/pkg/version"
)

const handlerTimeout = 10 * time.Second

func (r *Runtime) getStatus(c *gin.Context) {
	c.IndentedJSON(http.StatusOK, r.manager.Status())
}

func (r *Runtime) getSceneStat(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), handlerTimeout)
	defer cancel()

	stat, err := r.manager.SceneStat(ctx)
	if err != nil {
		c.IndentedJSON(http.StatusBadGateway, err.Error())
		_ = c.AbortWithError(http.StatusBadGateway, err)
		return
	}
	c.IndentedJSON(http.StatusOK, stat)
}

func (r *Runtime) triggerDemo(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), handlerTimeout)
	defer cancel()

	err := r.onLoop(ctx, func() error {
		r.manager.HandleManualTrigger()
		return nil
	})
	if err != nil {
		c.IndentedJSON(http.StatusServiceUnavailable, err.Error())
		_ = c.AbortWithError(http.StatusServiceUnavailable, err)
		return
	}

	logrus.Info("demo triggered manually")
	c.IndentedJSON(http.StatusCreated, "demo triggered")
}

func (r *Runtime) startCalibration(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), handlerTimeout)
	defer cancel()

	if err := r.tracker.StartCalibration(ctx); err != nil {
		c.IndentedJSON(http.StatusServiceUnavailable, err.Error())
		_ = c.AbortWithError(http.StatusServiceUnavailable, err)
		return
	}

	c.IndentedJSON(http.StatusCreated, "calibration requested")
}

func (r *Runtime) getConfig(c *gin.Context) {
	fc, err := config.NewRawFileConfigFromConfig(r.conf)
	if err != nil {
		_ = c.AbortWithError(http.StatusInternalServerError, err)
		return
	}
	c.IndentedJSON(http.StatusOK, fc)
}

func (r *Runtime) setCalibrationMode(c *gin.Context) {
	var s string
	if err := c.BindJSON(&s); err != nil {
		c.IndentedJSON(http.StatusBadRequest, err.Error())
		_ = c.AbortWithError(http.StatusBadRequest, err)
		return
	}

	mode, err := preview.ParseMode(s)
	if err != nil {
		c.IndentedJSON(http.StatusBadRequest, err.Error())
		_ = c.AbortWithError(http.StatusBadRequest, err)
		return
	}

	r.conf.SetCalibrationMode(mode)
	r.saveAndApply(c, fmt.Sprintf("set calibration mode to %s", mode))
}

func (r *Runtime) setDisplayEyeImages(c *gin.Context) {
	var b bool
	if err := c.BindJSON(&b); err != nil {
		c.IndentedJSON(http.StatusBadRequest, err.Error())
		_ = c.AbortWithError(http.StatusBadRequest, err)
		return
	}

	r.conf.SetDisplayEyeImages(b)
	msg := "enabled eye images"
	if !b {
		msg = "disabled eye images"
	}
	r.saveAndApply(c, msg)
}

func (r *Runtime) setCurrentScene(c *gin.Context) {
	var i int
	if err := c.BindJSON(&i); err != nil {
		c.IndentedJSON(http.StatusBadRequest, err.Error())
		_ = c.AbortWithError(http.StatusBadRequest, err)
		return
	}

	scenes := r.conf.AvailableScenes()
	if i < 0 || i >= len(scenes) {
		err := fmt.Errorf("scene index must be between 0 and %d, got %d", len(scenes)-1, i)
		c.IndentedJSON(http.StatusBadRequest, err.Error())
		_ = c.AbortWithError(http.StatusBadRequest, err)
		return
	}

	r.conf.SetCurrentSceneIndex(i)
	r.saveAndApply(c, fmt.Sprintf("set current scene to %s", scenes[i]))
}

func (r *Runtime) setCancelSupersededDeferred(c *gin.Context) {
	var b bool
	if err := c.BindJSON(&b); err != nil {
		c.IndentedJSON(http.StatusBadRequest, err.Error())
		_ = c.AbortWithError(http.StatusBadRequest, err)
		return
	}

	r.conf.SetCancelSupersededDeferred(b)
	msg := "superseded deferred actions will be cancelled"
	if !b {
		msg = "superseded deferred actions will run"
	}
	r.saveAndApply(c, msg)
}

// saveAndApply persists the config and hands it to the running session.
func (r *Runtime) saveAndApply(c *gin.Context, msg string) {
	if err := r.conf.Save(); err != nil {
		logrus.Errorf("saveConfig failed: %v", err)
		c.IndentedJSON(http.StatusInternalServerError, err.Error())
		_ = c.AbortWithError(http.StatusInternalServerError, err)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), handlerTimeout)
	defer cancel()
	if err := r.Reconfigure(ctx); err != nil {
		c.IndentedJSON(http.StatusInternalServerError, err.Error())
		_ = c.AbortWithError(http.StatusInternalServerError, err)
		return
	}

	logrus.Info(msg)
	c.IndentedJSON(http.StatusCreated, msg)
}

func (r *Runtime) getTrackerProcesses(c *gin.Context) {
	procs, err := tracker.FindProcesses(c.Request.Context(), r.conf.TrackerProcessNames())
	if err != nil {
		c.IndentedJSON(http.StatusInternalServerError, err.Error())
		_ = c.AbortWithError(http.StatusInternalServerError, err)
		return
	}
	c.IndentedJSON(http.StatusOK, procs)
}

func (r *Runtime) getEyeImages(c *gin.Context) {
	c.IndentedJSON(http.StatusOK, r.eyes.Snapshot())
}

func getVersion(c *gin.Context) {
	c.IndentedJSON(http.StatusOK, version.Version)
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// streamEvents forwards every hub event to a websocket client until either
// side goes away.
func (r *Runtime) streamEvents(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logrus.Warnf("failed to upgrade event stream: %v", err)
		return
	}
	defer conn.Close()

	ch := r.hub.Subscribe()
	defer r.hub.Unsubscribe(ch)

	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	logrus.Debug("event stream client connected")
	for {
		select {
		case <-gone:
			logrus.Debug("event stream client disconnected")
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(handlerTimeout))
			if err := conn.WriteJSON(ev); err != nil {
				logrus.Debugf("failed to write event: %v", err)
				return
			}
		}
	}
}
