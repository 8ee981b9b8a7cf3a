package main

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/charlie0129/gazectl/pkg/daemon"
	"github.com/charlie0129/gazectl/pkg/version"
)

var (
	// alwaysAllowNonRootAccess indicates whether to always allow non-root users to access the gazectl daemon.
	alwaysAllowNonRootAccess = false
)

// NewDaemonCommand runs the session daemon in the foreground. It is what the
// systemd unit written by "gazectl install" executes.
func NewDaemonCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "daemon",
		Hidden:  true,
		Short:   "Run gazectl daemon in the foreground",
		Long: `Run gazectl daemon in the foreground.

The daemon connects to the eye tracker and the engine, runs the calibration
session and serves the API used by the other commands. You normally do not run
this yourself: "gazectl install" registers it as a systemd service.`,
		Args:    cobra.NoArgs,
		GroupID: gAdvanced,
		RunE: func(_ *cobra.Command, _ []string) error {
			logrus.WithFields(logrus.Fields{
				"version":      version.Version,
				"commit":       version.GitCommit,
				"config":       configPath,
				"socket":       unixSocketPath,
				"allowNonRoot": alwaysAllowNonRootAccess,
			}).Info("gazectl daemon starting")
			return daemon.Run(configPath, unixSocketPath, alwaysAllowNonRootAccess)
		},
	}

	f := cmd.Flags()

	f.BoolVar(&alwaysAllowNonRootAccess, "always-allow-non-root-access", false,
		"Always allow non-root users to access the daemon.")

	return cmd
}
