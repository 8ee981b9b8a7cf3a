package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/charlie0129/gazectl/pkg/config"
	"github.com/charlie0129/gazectl/pkg/session"
)

type statusData struct {
	status    *session.Status
	sceneStat string
	config    *config.RawFileConfig
}

// fetchStatusData gathers all data required for the status command from the daemon.
func fetchStatusData() (*statusData, error) {
	st, err := apiClient.GetStatus()
	if err != nil {
		return nil, fmt.Errorf("failed to get session status: %w", err)
	}

	stat, err := apiClient.GetSceneStat()
	if err != nil {
		return nil, fmt.Errorf("failed to get scene stat: %w", err)
	}

	conf, err := apiClient.GetConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to get config: %w", err)
	}

	return &statusData{
		status:    st,
		sceneStat: stat,
		config:    conf,
	}, nil
}

func NewStatusCommand() *cobra.Command {
	asJSON := false

	cmd := &cobra.Command{
		Use:     "status",
		GroupID: gBasic,
		Short:   "Get the current session status",
		Long:    `Get the calibration session status, the demo scene and the configuration.`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			data, err := fetchStatusData()
			if err != nil {
				return err
			}

			if asJSON {
				b, err := json.MarshalIndent(map[string]any{
					"status":    data.status,
					"sceneStat": data.sceneStat,
					"config":    data.config,
				}, "", "  ")
				if err != nil {
					return err
				}
				cmd.Println(string(b))
				return nil
			}

			st := data.status
			conf := config.NewFileFromConfig(data.config, "")

			cmd.Println(bold("Session:"))
			text := st.Text
			if text == "" {
				text = "(empty)"
			}
			cmd.Printf("  Status text: %s\n", bold("%s", text))
			cmd.Printf("  State: %s (tag %s)\n", st.State, st.Tag)
			cmd.Printf("  Calibration started: %s\n", bool2Text(st.CalibrationStarted))
			cmd.Printf("  Calibration done: %s\n", bool2Text(st.CalibrationDone))
			cmd.Printf("  Scene stat: %s\n", data.sceneStat)
			cmd.Printf("  Session ID: %s\n", st.SessionID)
			cmd.Println()

			cmd.Println(bold("Demo scene:"))
			scene := st.Scene
			if scene == "" {
				scene = "none"
			}
			cmd.Printf("  Loaded: %s (%s)\n", scene, st.SceneStatus)
			if st.PendingLoad {
				cmd.Println("    A load is queued until the current unload finishes.")
			}
			if st.PendingUnload {
				cmd.Println("    An unload is queued until the current load finishes.")
			}
			cmd.Printf("  Preview: %d batches, %d markers\n", st.PreviewBatches, st.PreviewMarkers)
			cmd.Println()

			cmd.Println(bold("Configuration:"))
			cmd.Printf("  Calibration mode: %s\n", bold("%s", conf.CalibrationMode()))
			cmd.Printf("  Display eye images: %s\n", bool2Text(conf.DisplayEyeImages()))
			scenes := conf.AvailableScenes()
			if i := conf.CurrentSceneIndex(); i >= 0 && i < len(scenes) {
				cmd.Printf("  Demo scene: %d %s (of %s)\n", i, scenes[i], strings.Join(scenes, ", "))
			}
			cmd.Printf("  Deferred delay: %s\n", conf.DeferredDelay())
			cmd.Printf("  Cancel superseded deferred actions: %s\n", bool2Text(conf.CancelSupersededDeferred()))
			if sched := conf.StatusLogSchedule(); sched != "" {
				cmd.Printf("  Status log: %s (%s)\n", conf.StatusLogPath(), sched)
			} else {
				cmd.Printf("  Status log: %s\n", bool2Text(false))
			}
			cmd.Printf("  Tracker: %s\n", conf.TrackerURL())
			cmd.Printf("  Engine: %s\n", conf.EngineURL())
			if len(st.Objects) > 0 {
				cmd.Println()
				cmd.Println(bold("Engine objects:"))
				for _, name := range []string{conf.GazeTargets(), conf.BeforeCalibrationButtons(), conf.ImageBlock(), conf.CameraObject()} {
					if active, ok := st.Objects[name]; ok {
						cmd.Printf("  %s: %s\n", name, bool2Text(active))
					}
				}
			}

			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the status as JSON")

	return cmd
}
