// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/Thermoquad/stormctl/pkg/storm32"
	"github.com/spf13/cobra"
)

type axisSetter func(c *storm32.Client, ctx context.Context, value uint16) error

var axisCommands = map[storm32.Command]struct {
	name string
	set  axisSetter
}{
	storm32.CmdSetPitch:  {"pitch", (*storm32.Client).SetPitch},
	storm32.CmdSetRoll:   {"roll", (*storm32.Client).SetRoll},
	storm32.CmdSetYaw:    {"yaw", (*storm32.Client).SetYaw},
	storm32.CmdSetPWMOut: {"pwm", (*storm32.Client).SetPWMOut},
}

// parseActuation reads an actuation value: "recenter", "center", a raw value
// in 700..2300 or, with degrees set, an angle in (-90, 90).
func parseActuation(s string, degrees bool) (uint16, error) {
	switch strings.ToLower(s) {
	case "recenter":
		return storm32.AxisRecenter, nil
	case "center":
		return storm32.AxisCenter, nil
	}

	if degrees {
		deg, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("angle %q: %w", s, err)
		}
		return storm32.DegreesToActuation(deg)
	}
	return parseUint16("value", s)
}

func newAxisCmd(o *rootOptions, c storm32.Command) *cobra.Command {
	axis := axisCommands[c]
	var degrees bool

	cmd := &cobra.Command{
		Use:   axis.name + " VALUE",
		Short: fmt.Sprintf("Set the %s actuation (%s)", axis.name, c),
		Long: fmt.Sprintf(`Send %s.

VALUE is 0 or "recenter" to recenter, or a value in %d..%d ("center" is %d).
With --deg VALUE is an angle in degrees strictly between -90 and 90.`,
			c, storm32.AxisMin, storm32.AxisMax, storm32.AxisCenter),
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := parseActuation(args[0], degrees)
			if err != nil {
				return err
			}
			if !storm32.ValidAxisValue(v) {
				return fmt.Errorf("%s value %d: %w", axis.name, v, storm32.ErrOutOfRange)
			}

			return o.withSession(func(cmd *cobra.Command, s *session, _ []string) error {
				if err := axis.set(s.client, cmd.Context(), v); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s set to %d\n", axis.name, v)
				return nil
			})(cmd, args)
		},
	}
	cmd.Flags().BoolVar(&degrees, "deg", false, "VALUE is an angle in degrees")

	return cmd
}

func newPitchRollYawCmd(o *rootOptions) *cobra.Command {
	var degrees bool

	cmd := &cobra.Command{
		Use:   "pitch-roll-yaw PITCH ROLL YAW",
		Short: "Set the three axis actuations at once (SETPITCHROLLYAW)",
		Long: `Send SETPITCHROLLYAW. Each value is checked independently and accepts
the same forms as the single axis commands.`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			var v [3]uint16
			for i, arg := range args {
				var err error
				if v[i], err = parseActuation(arg, degrees); err != nil {
					return err
				}
			}

			return o.withSession(func(cmd *cobra.Command, s *session, _ []string) error {
				if err := s.client.SetPitchRollYaw(cmd.Context(), v[0], v[1], v[2]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "pitch=%d roll=%d yaw=%d\n", v[0], v[1], v[2])
				return nil
			})(cmd, args)
		},
	}
	cmd.Flags().BoolVar(&degrees, "deg", false, "Values are angles in degrees")

	return cmd
}

func newAngleCmd(o *rootOptions) *cobra.Command {
	var (
		a       storm32.AngleCommand
		limited []string
	)

	cmd := &cobra.Command{
		Use:   "angle",
		Short: "Point the camera to absolute angles (SETANGLE)",
		Long: `Send SETANGLE with pitch, roll and yaw in degrees.

--limited marks axes whose angle is applied within the configured limits,
e.g. --limited pitch,yaw.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var pitch, roll, yaw bool
			for _, axis := range limited {
				switch strings.ToLower(strings.TrimSpace(axis)) {
				case "pitch":
					pitch = true
				case "roll":
					roll = true
				case "yaw":
					yaw = true
				default:
					return fmt.Errorf("limited axis %q (valid: pitch, roll, yaw): %w", axis, storm32.ErrOutOfRange)
				}
			}
			a.Flags = storm32.AngleFlagsFromAxes(pitch, roll, yaw)

			return o.withSession(func(cmd *cobra.Command, s *session, _ []string) error {
				if err := s.client.SetAngle(cmd.Context(), a); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "angle pitch=%.2f° roll=%.2f° yaw=%.2f° limited=%s\n",
					a.Pitch, a.Roll, a.Yaw, a.Flags)
				return nil
			})(cmd, args)
		},
	}
	cmd.Flags().Float32Var(&a.Pitch, "pitch", 0, "Pitch angle in degrees")
	cmd.Flags().Float32Var(&a.Roll, "roll", 0, "Roll angle in degrees")
	cmd.Flags().Float32Var(&a.Yaw, "yaw", 0, "Yaw angle in degrees")
	cmd.Flags().StringSliceVar(&limited, "limited", nil, "Axes applied within limits (pitch,roll,yaw)")

	return cmd
}
