package main

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/charlie0129/gazectl/pkg/preview"
)

func NewModeCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "mode [2d|3d]",
		Short:   "Set the calibration mode",
		GroupID: gConfig,
		Long: `Set the calibration mode.

The mode picks the calibration plugin started on the tracker and the geometry of
the calibration point preview. It applies from the next connection on.`,
		Args: cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			mode, err := preview.ParseMode(args[0])
			if err != nil {
				return err
			}

			ret, err := apiClient.SetCalibrationMode(mode)
			if err != nil {
				return fmt.Errorf("failed to set calibration mode: %v", err)
			}
			if ret != "" {
				logrus.Infof("daemon responded: %s", ret)
			}

			logrus.Infof("successfully set calibration mode to %s", mode)
			return nil
		},
	}
}

func NewSceneCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "scene [index]",
		Short:   "Pick the demo scene",
		GroupID: gConfig,
		Long: `Pick the demo scene by its index in the available scenes.

Run "gazectl status" to list the available scenes.`,
		RunE: func(_ *cobra.Command, args []string) error {
			index, err := parseIntArg(args, "scene index")
			if err != nil {
				return err
			}

			ret, err := apiClient.SetCurrentScene(index)
			if err != nil {
				return fmt.Errorf("failed to set scene: %v", err)
			}
			if ret != "" {
				logrus.Infof("daemon responded: %s", ret)
			}

			return nil
		},
	}
}

func NewEyeImagesCommand() *cobra.Command {
	return newEnableDisableCommand(
		"eye-images",
		"eye images",
		"Show the live eye camera images while the tracker is connected.",
		func() (string, error) { return apiClient.SetDisplayEyeImages(true) },
		func() (string, error) { return apiClient.SetDisplayEyeImages(false) },
	)
}

func NewCancelDeferredCommand() *cobra.Command {
	return newEnableDisableCommand(
		"cancel-deferred",
		"cancelling superseded deferred actions",
		`Cancel superseded deferred actions.

The calibration prompt and the demo start are deferred. When enabled, a deferred
action is dropped if any other tracker event arrived after it was scheduled, so a
late prompt can no longer overwrite a newer status.`,
		func() (string, error) { return apiClient.SetCancelSupersededDeferred(true) },
		func() (string, error) { return apiClient.SetCancelSupersededDeferred(false) },
	)
}
