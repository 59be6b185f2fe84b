// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/Thermoquad/stormctl/pkg/storm32"
	"github.com/mdouchement/logger"
	"github.com/spf13/cobra"
)

func newReplayCmd(o *rootOptions) *cobra.Command {
	var validate bool

	cmd := &cobra.Command{
		Use:   "replay FILE",
		Short: "Decode a capture file written with --capture",
		Long: `Print every frame of a capture file. Each response is decoded against the
request it answered, so ACK status and payload checks are reported the same way
as during the live exchange.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			records, err := storm32.ReadCapture(f)
			if err != nil {
				logger.LogWith(cmd.Context()).WithError(err).Warnf("Capture truncated after %d records", len(records))
			}

			replay(cmd.OutOrStdout(), records, validate)
			return nil
		},
	}
	cmd.Flags().BoolVar(&validate, "validate", false, "Report implausible telemetry values")

	return cmd
}

// replay prints records, decoding each response against the last request.
func replay(w io.Writer, records []storm32.Record, validate bool) {
	var (
		req     storm32.Request
		pending bool
	)

	for i := range records {
		rec := &records[i]
		f, err := rec.Frame()
		if f == nil {
			fmt.Fprintf(w, "[%s] record %d: %v\n", rec.Time.Format("15:04:05.000"), i, err)
			continue
		}
		fmt.Fprintf(w, "[%s] %s %s (0x%02X) len=%d crc=0x%04X\n",
			f.Timestamp.Format("15:04:05.000"), f.Direction, f.Command, uint8(f.Command), f.Length, f.CRC)
		if err != nil {
			fmt.Fprintf(w, "  %v\n", err)
		}

		if f.Direction == storm32.DirectionIncoming {
			req = storm32.Request{Command: f.Command, Payload: f.Payload}
			pending = true
			fmt.Fprint(w, storm32.FormatRequestPayload(f.Command, f.Payload))
			continue
		}

		if !pending || req.Command != rec.Command {
			fmt.Fprintf(w, "  (no matching request) %s\n", storm32.FormatHex(f.Payload))
			continue
		}
		pending = false

		resp, err := storm32.DecodeResponse(req, f)
		if resp != nil {
			fmt.Fprint(w, storm32.FormatResponse(resp))
		}
		if err != nil {
			fmt.Fprintf(w, "  Error: %v\n", err)
			continue
		}

		if !validate {
			continue
		}
		switch v := resp.(type) {
		case *storm32.Telemetry:
			printAnomalies(w, storm32.ValidateTelemetry(v))
		case *storm32.LiveData:
			printAnomalies(w, storm32.ValidateLiveData(v))
		}
	}
}
