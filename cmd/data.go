// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/Thermoquad/stormctl/pkg/storm32"
	"github.com/spf13/cobra"
)

func newDataCmd(o *rootOptions) *cobra.Command {
	var validate bool

	cmd := &cobra.Command{
		Use:   "data",
		Short: "Read a full telemetry snapshot (GETDATA)",
		Args:  cobra.NoArgs,
		RunE: o.withSession(func(cmd *cobra.Command, s *session, _ []string) error {
			t, err := s.client.Telemetry(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprint(out, storm32.FormatTelemetry(t))
			if validate {
				printAnomalies(out, storm32.ValidateTelemetry(t))
			}
			return nil
		}),
	}
	cmd.Flags().BoolVar(&validate, "validate", true, "Report implausible values")

	return cmd
}

func newFieldsCmd(o *rootOptions) *cobra.Command {
	var (
		validate bool
		list     bool
	)

	cmd := &cobra.Command{
		Use:   "fields FIELD...",
		Short: "Read selected telemetry groups (GETDATAFIELDS)",
		Long: `Read the selected live data groups. Field names are case-insensitive;
"all" selects every supported group. Use --list to show the field table.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if list {
				printFieldTable(cmd.OutOrStdout())
				return nil
			}
			if len(args) == 0 {
				return fmt.Errorf("no field given (valid: %s, all)", strings.Join(storm32.LiveFieldNames(), ", "))
			}

			mask, err := storm32.ParseLiveFields(args)
			if err != nil {
				return err
			}

			return o.withSession(func(cmd *cobra.Command, s *session, _ []string) error {
				d, err := s.client.LiveData(cmd.Context(), mask)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				fmt.Fprint(out, storm32.FormatLiveData(d))
				if validate {
					printAnomalies(out, storm32.ValidateLiveData(d))
				}
				return nil
			})(cmd, args)
		},
	}
	cmd.Flags().BoolVar(&validate, "validate", true, "Report implausible values")
	cmd.Flags().BoolVar(&list, "list", false, "List the supported fields")

	return cmd
}

func printFieldTable(w io.Writer) {
	fmt.Fprintf(w, "%-20s %-8s %s\n", "FIELD", "BIT", "BYTES")
	for _, name := range storm32.LiveFieldNames() {
		f, _ := storm32.ParseLiveFields([]string{name})
		fmt.Fprintf(w, "%-20s 0x%04X   %d\n", name, uint16(f), f.PayloadLength()-2)
	}
}

func printAnomalies(w io.Writer, errs []storm32.ValidationError) {
	for _, e := range errs {
		fmt.Fprintf(w, "Warning: %s [%s]\n", e.Message, e.Type)
	}
}
