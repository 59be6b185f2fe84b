// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newParamCmd(o *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "param",
		Short: "Read, write and restore controller parameters",
		Long: `Access the controller parameter table by numeric id.

Ids and values accept decimal, 0x hex and 0o octal notation. Writes go to
RAM; the controller only stores them permanently from its own setup tool.`,
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "get ID...",
			Short: "Read one or more parameters",
			Args:  cobra.MinimumNArgs(1),
			RunE: o.withSession(func(cmd *cobra.Command, s *session, args []string) error {
				for _, arg := range args {
					id, err := parseUint16("parameter id", arg)
					if err != nil {
						return err
					}
					v, err := s.client.Parameter(cmd.Context(), id)
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Parameter %d = %d (0x%04X)\n", id, v, v)
				}
				return nil
			}),
		},
		&cobra.Command{
			Use:   "set ID VALUE",
			Short: "Write a parameter",
			Args:  cobra.ExactArgs(2),
			RunE: o.withSession(func(cmd *cobra.Command, s *session, args []string) error {
				id, err := parseUint16("parameter id", args[0])
				if err != nil {
					return err
				}
				v, err := parseUint16("value", args[1])
				if err != nil {
					return err
				}
				if err = s.client.SetParameter(cmd.Context(), id, v); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Parameter %d set to %d\n", id, v)
				return nil
			}),
		},
		&cobra.Command{
			Use:   "restore ID",
			Short: "Restore a parameter to its stored value",
			Args:  cobra.ExactArgs(1),
			RunE: o.withSession(func(cmd *cobra.Command, s *session, args []string) error {
				id, err := parseUint16("parameter id", args[0])
				if err != nil {
					return err
				}
				if err = s.client.RestoreParameter(cmd.Context(), id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Parameter %d restored\n", id)
				return nil
			}),
		},
		&cobra.Command{
			Use:   "restore-all",
			Short: "Restore every parameter to its stored value",
			Args:  cobra.NoArgs,
			RunE: o.withSession(func(cmd *cobra.Command, s *session, _ []string) error {
				if err := s.client.RestoreAllParameters(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "All parameters restored")
				return nil
			}),
		},
	)

	return cmd
}
