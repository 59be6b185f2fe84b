// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/Thermoquad/stormctl/pkg/storm32"
	"github.com/spf13/cobra"
)

func newPacketTestCmd(o *rootOptions) *cobra.Command {
	var (
		wait   time.Duration
		silent bool
	)

	cmd := &cobra.Command{
		Use:   "packet_test",
		Short: "Test the connection by waiting for a valid response frame",
		Long: `Send a GETVERSION request and wait for any CRC-valid response frame.

Unlike ping, no response validation is done beyond the frame checksum and
invalid bytes before the frame are skipped. With --listen nothing is sent,
for lines where another host drives the controller.

Exit codes:
  0 - Frame received before timeout
  1 - Timeout reached without receiving a valid frame
  2 - Connection error`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			conn, connInfo, err := o.OpenConnection(cmd.Context())
			if err != nil {
				return &ExitError{Code: 2, Err: err}
			}
			defer conn.Close()

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "stormctl - Packet Test\n")
			fmt.Fprintf(out, "Connection: %s\n", connInfo)
			fmt.Fprintf(out, "Timeout: %s\n", wait)

			if !silent {
				raw, _ := storm32.NewGetVersion().Encode()
				if err := conn.Write(raw); err != nil {
					return &ExitError{Code: 2, Err: fmt.Errorf("write: %w", err)}
				}
				fmt.Fprintf(out, "Sent: %s\n", storm32.FormatHex(raw))
			}
			fmt.Fprintf(out, "Waiting for valid StorM32 frame...\n\n")

			ctx, cancel := context.WithTimeout(cmd.Context(), wait)
			defer cancel()

			frameChan := make(chan *storm32.Frame, 1)
			dec := storm32.NewStreamDecoder()
			go func() {
				_ = sniff(ctx, conn, dec, func(f *storm32.Frame) bool {
					frameChan <- f
					return false
				})
			}()

			select {
			case f := <-frameChan:
				if skipped := dec.Skipped(); skipped > 0 {
					fmt.Fprintf(out, "(skipped %d invalid bytes before sync)\n", skipped)
				}
				fmt.Fprintf(out, "SUCCESS: Received valid frame\n")
				fmt.Fprintf(out, "  Command: %s (0x%02X)\n", f.Command, uint8(f.Command))
				fmt.Fprintf(out, "  Length: %d bytes\n", f.Length)
				fmt.Fprintf(out, "  CRC: 0x%04X\n", f.CRC)
				return nil

			case <-ctx.Done():
				return exitf(1, "TIMEOUT: No valid frame received within %s", wait)
			}
		},
	}
	cmd.Flags().DurationVar(&wait, "wait", 10*time.Second, "How long to wait for a frame")
	cmd.Flags().BoolVar(&silent, "listen", false, "Do not send a request, only listen")

	return cmd
}
