// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

// withSession wraps a RunE that needs an open session.
func (o *rootOptions) withSession(fn func(cmd *cobra.Command, s *session, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		s, err := o.openSession(cmd.Context())
		if err != nil {
			return err
		}
		defer s.Close()

		return fn(cmd, s, args)
	}
}

func parseUint16(name, s string) (uint16, error) {
	v, err := strconv.ParseUint(s, 0, 16)
	if err != nil {
		return 0, fmt.Errorf("%s %q: must be an integer in 0..65535", name, s)
	}
	return uint16(v), nil
}

func newVersionCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show controller firmware version and identification strings",
		Long: `Query GETVERSION and GETVERSIONSTR.

The version of stormctl itself is printed by --version.`,
		Args: cobra.NoArgs,
		RunE: o.withSession(func(cmd *cobra.Command, s *session, _ []string) error {
			ctx := cmd.Context()

			v, err := s.client.Version(ctx)
			if err != nil {
				return err
			}
			strs, err := s.client.VersionStrings(ctx)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Connection:    %s\n", s.info)
			fmt.Fprintf(out, "Firmware:      %d\n", v.Firmware)
			fmt.Fprintf(out, "Setup layout:  %d\n", v.SetupLayout)
			fmt.Fprintf(out, "Capabilities:  0x%04X\n", v.BoardCapabilities)
			fmt.Fprintf(out, "Version:       %s\n", strs.Version)
			fmt.Fprintf(out, "Name:          %s\n", strs.Name)
			fmt.Fprintf(out, "Board:         %s\n", strs.Board)
			return nil
		}),
	}
}
