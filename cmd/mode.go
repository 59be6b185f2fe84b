// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"

	"github.com/Thermoquad/stormctl/pkg/storm32"
	"github.com/spf13/cobra"
)

// newModeCmd builds a one argument command parsing a mode name and sending it.
func newModeCmd[T fmt.Stringer](o *rootOptions, use, short, valid string,
	parse func(string) (T, error),
	send func(c *storm32.Client, ctx context.Context, v T) error,
) *cobra.Command {
	return &cobra.Command{
		Use:   use + " MODE",
		Short: short,
		Long:  short + ".\n\nMODE is one of: " + valid,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := parse(args[0])
			if err != nil {
				return err
			}

			return o.withSession(func(cmd *cobra.Command, s *session, _ []string) error {
				if err := send(s.client, cmd.Context(), v); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s set to %s\n", use, v)
				return nil
			})(cmd, args)
		},
	}
}

func newPanModeCmd(o *rootOptions) *cobra.Command {
	return newModeCmd(o, "pan-mode", "Select which axes hold and which pan (SETPANMODE)",
		"off, hold_hold_pan, hold_hold_hold, pan_pan_pan, pan_hold_hold, pan_hold_pan, hold_pan_pan",
		storm32.ParsePanMode, (*storm32.Client).SetPanMode)
}

func newActivePanSettingCmd(o *rootOptions) *cobra.Command {
	return newModeCmd(o, "active-pan-setting", "Activate a pan mode setting (ACTIVEPANMODESETTING)",
		"default, setting_1, setting_2, setting_3",
		storm32.ParsePanModeSetting, (*storm32.Client).SetActivePanModeSetting)
}

func newStandbyCmd(o *rootOptions) *cobra.Command {
	return newModeCmd(o, "standby", "Switch motors into or out of standby (SETSTANDBY)",
		"on, off",
		storm32.ParseStandbySwitch, (*storm32.Client).SetStandby)
}

func newCameraCmd(o *rootOptions) *cobra.Command {
	return newModeCmd(o, "camera", "Trigger the camera (DOCAMERA)",
		"off, ir_shutter, ir_shutter_delayed, ir_video_on, ir_video_off",
		storm32.ParseCameraMode, (*storm32.Client).DoCamera)
}

func newScriptCmd(o *rootOptions) *cobra.Command {
	return newModeCmd(o, "script", "Control script execution (SETSCRIPTCONTROL)",
		"off, case_default, case_1, case_2, case_3",
		storm32.ParseScriptControl, (*storm32.Client).SetScriptControl)
}
