// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"time"

	"github.com/Thermoquad/stormctl/pkg/storm32"
	"github.com/spf13/cobra"
)

func newPingCmd(o *rootOptions) *cobra.Command {
	var (
		count    int
		interval time.Duration
	)

	cmd := &cobra.Command{
		Use:   "ping",
		Short: "Measure round trips with GETVERSION requests",
		Long: `Send GETVERSION requests and wait for each response.

This is useful for verifying:
  - the serial line or WebSocket bridge is connected
  - the controller answers on the RC command interface
  - checksums survive the link in both directions

Exit codes:
  0 - All pings successful
  1 - One or more pings failed/timed out
  2 - Connection error`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if count < 1 {
				return fmt.Errorf("count must be at least 1, got %d", count)
			}
			stats := storm32.NewStatistics()

			s, err := o.openSession(cmd.Context(), stats)
			if err != nil {
				return &ExitError{Code: 2, Err: err}
			}
			defer s.Close()

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "stormctl - Ping\n")
			fmt.Fprintf(out, "Connection: %s\n", s.info)
			fmt.Fprintf(out, "Timeout: %s per ping\n", o.config.Timeout)
			fmt.Fprintf(out, "Count: %d pings\n\n", count)

			failCount := 0
			for i := 1; i <= count; i++ {
				fmt.Fprintf(out, "Ping %d/%d: ", i, count)

				start := time.Now()
				v, err := s.client.Version(cmd.Context())
				stats.Update(err, nil)
				if err != nil {
					fmt.Fprintf(out, "FAILED: %v\n", err)
					failCount++
				} else {
					fmt.Fprintf(out, "firmware %d, rtt=%v\n", v.Firmware, time.Since(start).Round(time.Microsecond))
				}

				if i < count {
					time.Sleep(interval)
				}
			}

			fmt.Fprintf(out, "\n--- Ping statistics ---\n")
			fmt.Fprintf(out, "%d pings sent, %d responses received, %.0f%% loss\n",
				count, count-failCount, float64(failCount)/float64(count)*100)
			fmt.Fprint(out, stats.String())

			if failCount > 0 {
				return exitf(1, "%d of %d pings failed", failCount, count)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&count, "count", 3, "Number of pings to send")
	cmd.Flags().DurationVar(&interval, "interval", 100*time.Millisecond, "Delay between pings")

	return cmd
}
