package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/charlie0129/gazectl/pkg/console"
	"github.com/charlie0129/gazectl/pkg/version"
)

func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Printf("%s %s\n", version.Version, version.GitCommit)
		},
	}
}

func NewDemoCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "demo",
		Short:   "Start the demo scene now",
		GroupID: gBasic,
		Long: `Start the demo scene now.

This is the manual trigger: the demo starts whatever the session state is, even
if calibration has not finished.`,
		Args: cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			ret, err := apiClient.TriggerDemo()
			if err != nil {
				return fmt.Errorf("failed to start demo: %v", err)
			}
			if ret != "" {
				logrus.Infof("daemon responded: %s", ret)
			}
			return nil
		},
	}
}

func NewCalibrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "calibrate",
		Short:   "Ask the eye tracker to start calibrating",
		GroupID: gBasic,
		Args:    cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			ret, err := apiClient.StartCalibration()
			if err != nil {
				return fmt.Errorf("failed to start calibration: %v", err)
			}
			if ret != "" {
				logrus.Infof("daemon responded: %s", ret)
			}
			return nil
		},
	}
}

func NewSceneStatCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "scene-stat",
		Short:   "Print the scene stat",
		GroupID: gBasic,
		Long: `Print the scene stat.

Before calibration is done this is the status tag, afterwards it is the name of
the active engine scene. External loggers sample this value.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			stat, err := apiClient.GetSceneStat()
			if err != nil {
				return err
			}
			cmd.Println(stat)
			return nil
		},
	}
}

func NewConsoleCommand() *cobra.Command {
	logFile := ""

	cmd := &cobra.Command{
		Use:     "console",
		Short:   "Open the operator console",
		GroupID: gBasic,
		Long: `Open the operator console.

The console shows the live session status. Press s to start the demo, c to ask
the tracker to calibrate and q to quit.`,
		Args: cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			// Log lines would tear the terminal UI.
			if logFile == "" {
				logrus.SetOutput(io.Discard)
			} else {
				f, err := os.OpenFile(logFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
				if err != nil {
					return fmt.Errorf("failed to open log file: %v", err)
				}
				defer f.Close()
				logrus.SetOutput(f)
			}
			return console.Run(apiClient)
		},
	}

	cmd.Flags().StringVar(&logFile, "log-file", "", "write client logs to this file while the console is open")

	return cmd
}

func NewTrackerCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "tracker",
		Short:   "Inspect the eye tracker",
		GroupID: gAdvanced,
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "processes",
			Short: "List running eye tracker processes",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				procs, err := apiClient.GetTrackerProcesses()
				if err != nil {
					return err
				}
				if len(procs) == 0 {
					cmd.Println("no eye tracker process is running")
					return nil
				}
				for _, p := range procs {
					cmd.Printf("%d\t%s\n", p.PID, p.Name)
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "eye-images",
			Short: "Show the eye image feed",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				s, err := apiClient.GetEyeImages()
				if err != nil {
					return err
				}
				cmd.Printf("Attached: %s\n", bool2Text(s.Attached))
				cmd.Printf("Enabled:  %s\n", bool2Text(s.Enabled))
				eyes := make([]int, 0, len(s.Frames))
				for eye := range s.Frames {
					eyes = append(eyes, eye)
				}
				sort.Ints(eyes)
				var frames []string
				for _, eye := range eyes {
					frames = append(frames, fmt.Sprintf("eye%d=%d", eye, s.Frames[eye]))
				}
				if len(frames) > 0 {
					cmd.Printf("Frames:   %s\n", strings.Join(frames, " "))
				}
				return nil
			},
		},
	)

	return cmd
}
