package daemon

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/charlie0129/gazectl/pkg/config"
)

func (r *Runtime) setupRoutes() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(ginLogger(logrus.StandardLogger()))
	router.GET("/status", r.getStatus)
	router.GET("/scene-stat", r.getSceneStat)
	router.PUT("/demo", r.triggerDemo)
	router.POST("/calibration/start", r.startCalibration)
	router.GET("/config", r.getConfig)
	router.PUT("/calibration-mode", r.setCalibrationMode)
	router.PUT("/display-eye-images", r.setDisplayEyeImages)
	router.PUT("/current-scene", r.setCurrentScene)
	router.PUT("/cancel-superseded-deferred", r.setCancelSupersededDeferred)
	router.GET("/tracker/processes", r.getTrackerProcesses)
	router.GET("/eye-images", r.getEyeImages)
	router.GET("/events", r.streamEvents)
	router.GET("/version", getVersion)

	return router
}

func Run(configPath string, unixSocketPath string, allowNonRoot bool) error {
	conf, err := config.NewFile(configPath)
	if err != nil {
		logrus.Fatalf("failed to parse config during startup: %v", err)
	}
	logrus.WithFields(conf.LogrusFields()).Infof("config loaded")

	rt, err := NewRuntime(conf)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Handler: rt.setupRoutes(),
	}

	// Stale socket left behind by a previous crash.
	if _, err := os.Stat(unixSocketPath); err == nil {
		logrus.Warnf("removing stale socket %s", unixSocketPath)
		_ = os.Remove(unixSocketPath)
	}

	// Create the socket to listen on:
	l, err := net.Listen("unix", unixSocketPath)
	if err != nil {
		logrus.Fatal(err)
	}

	if conf.AllowNonRootAccess() || allowNonRoot {
		logrus.Infof("non-root access is allowed, changing permissions of %s to 0777", unixSocketPath)
		err = os.Chmod(unixSocketPath, 0777)
		if err != nil {
			logrus.Fatal(err)
		}
	}

	if err := rt.Start(context.Background()); err != nil {
		return err
	}

	// Receive SIGHUP to reload config
	go func() {
		sigc := make(chan os.Signal, 1)
		signal.Notify(sigc, syscall.SIGHUP)
		for range sigc {
			err := conf.Load()
			if err != nil {
				logrus.Errorf("failed to reload config: %v", err)
				continue
			}
			ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
			err = rt.Reconfigure(ctx)
			cancel()
			if err != nil {
				logrus.Errorf("failed to apply reloaded config: %v", err)
				continue
			}
			if err := rt.statusLog.Schedule(conf.StatusLogSchedule()); err != nil {
				logrus.Errorf("invalid status log schedule: %v", err)
			}
			logrus.WithFields(conf.LogrusFields()).Infof("config reloaded")
		}
	}()

	// Serve HTTP on unix socket
	go func() {
		logrus.Infof("http server listening on %s", l.Addr().String())
		if err := srv.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Fatal(err)
		}
	}()

	// Handle common process-killing signals, so we can gracefully shut down:
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	// Wait for a SIGINT or SIGTERM:
	sig := <-sigc
	logrus.Infof("caught signal \"%s\": shutting down.", sig)

	logrus.Info("shutting down http server")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	err = srv.Shutdown(ctx)
	if err != nil {
		logrus.Errorf("failed to shutdown http server: %v", err)
	}
	cancel()

	logrus.Info("stopping session")
	rt.Stop()

	logrus.Info("exiting")
	return nil
}
