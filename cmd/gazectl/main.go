package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/charlie0129/gazectl/pkg/client"
	"github.com/charlie0129/gazectl/pkg/version"
)

var (
	logLevel       = "info"
	unixSocketPath = "/var/run/gazectl.sock"
	configPath     = "/etc/gazectl.json"
)

var apiClient *client.Client

var (
	gBasic        = "Basic:"
	gConfig       = "Configuration:"
	gAdvanced     = "Advanced:"
	gInstallation = "Installation:"
	commandGroups = []string{
		gBasic,
		gConfig,
		gAdvanced,
		gInstallation,
	}
)

func setupLogger() error {
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		return fmt.Errorf("failed to parse log level: %v", err)
	}
	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.TextFormatter{})
	if term.IsTerminal(int(os.Stderr.Fd())) {
		logrus.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: time.Kitchen,
		})
	}

	return nil
}

func handleCmdError(err error) {
	if errors.Is(err, client.ErrDaemonNotRunning) {
		fmt.Fprintln(os.Stderr, "\nError: gazectl daemon is not running")
		fmt.Fprintln(os.Stderr, "Is the daemon running? Have you installed it?")
	} else if errors.Is(err, client.ErrPermissionDenied) {
		fmt.Fprintln(os.Stderr, "\nError: Permission Denied")
		fmt.Fprintln(os.Stderr, "  - Try running the command again with 'sudo'")
		fmt.Fprintln(os.Stderr, "  - Or reinstall the daemon with the '--allow-non-root-access' flag to grant permissions to your user")
	}
}

func main() {
	cmd := NewCommand()
	if err := cmd.Execute(); err != nil {
		handleCmdError(err)
		os.Exit(1)
	}
}

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gazectl",
		Short: "gazectl drives eye-tracker calibration sessions for a rendering engine",
		Long: `gazectl drives eye-tracker calibration sessions for a rendering engine.

The daemon follows the eye tracker, shows the operator what to do next, previews
the calibration points and loads the demo scene once calibration is done.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			err := setupLogger()
			if err != nil {
				return err
			}
			apiClient = client.NewClient(unixSocketPath)

			// The daemon itself and the installer do not talk to a daemon.
			if cmd.Name() == "daemon" || cmd.GroupID == gInstallation {
				return nil
			}

			if daemonVersion, err := apiClient.GetVersion(); err == nil {
				if daemonVersion != version.Version {
					logrus.WithFields(logrus.Fields{
						"clientVersion": version.Version,
						"daemonVersion": daemonVersion,
					}).Warn("Version mismatch between client and daemon. gazectl may not work as expected. Reinstall so both client and daemon are the same version.")
				}
			} else if errors.Is(err, client.ErrNotFound) {
				logrus.Error("gazectl daemon is too old to report its version. Reinstall so both client and daemon are the same version.")
			}

			return nil
		},
	}

	globalFlags := cmd.PersistentFlags()
	globalFlags.StringVarP(&logLevel, "log-level", "l", "info", "log level (trace, debug, info, warn, error, fatal, panic)")
	globalFlags.StringVar(&configPath, "config", configPath, "config file path (.json, .yaml or .yml)")
	globalFlags.StringVar(&unixSocketPath, "daemon-socket", unixSocketPath, "gazectl daemon unix socket path")

	for _, i := range commandGroups {
		cmd.AddGroup(&cobra.Group{
			ID:    i,
			Title: i,
		})
	}

	cmd.AddCommand(
		NewDaemonCommand(),
		NewVersionCommand(),
		NewStatusCommand(),
		NewDemoCommand(),
		NewCalibrateCommand(),
		NewSceneStatCommand(),
		NewConsoleCommand(),
		NewModeCommand(),
		NewEyeImagesCommand(),
		NewSceneCommand(),
		NewCancelDeferredCommand(),
		NewTrackerCommand(),
		NewInstallCommand(),
		NewUninstallCommand(),
	)

	return cmd
}
