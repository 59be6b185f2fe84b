// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"syscall"
	"time"

	"github.com/Thermoquad/stormctl/pkg/storm32"
	"github.com/mdouchement/logger"
	"github.com/spf13/cobra"
)

func newRawLogCmd(o *rootOptions) *cobra.Command {
	var requests bool

	cmd := &cobra.Command{
		Use:   "raw_log",
		Short: "Display frames seen on the line in human-readable format",
		Long: `Passively decode and display StorM32 frames as they arrive.

The decoder hunts for start signs and only accepts CRC-valid frames, so it
resynchronizes on its own after noise. With --requests, host requests (0xFA)
are shown too, which is useful when tapping a line shared with another host.

Supports both serial and WebSocket connections.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			conn, connInfo, err := o.OpenConnection(cmd.Context())
			if err != nil {
				return err
			}
			defer conn.Close()

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "stormctl - Raw Frame Log\n")
			fmt.Fprintf(out, "Connection: %s\n", connInfo)
			fmt.Fprintf(out, "Press Ctrl+C to exit\n\n")

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			dec := newSniffDecoder(requests)
			err = sniff(ctx, conn, dec, func(f *storm32.Frame) bool {
				fmt.Fprint(out, storm32.FormatFrame(f))
				return true
			})

			fmt.Fprintf(out, "\n%d frames, %d bytes skipped, %d CRC rejects\n", dec.Frames(), dec.Skipped(), dec.CRCErrors())
			return err
		},
	}
	cmd.Flags().BoolVar(&requests, "requests", false, "Also show host requests (0xFA frames)")

	return cmd
}

func newSniffDecoder(requests bool) *storm32.StreamDecoder {
	if requests {
		return storm32.NewStreamDecoder(storm32.DirectionIncoming, storm32.DirectionOutgoing)
	}
	return storm32.NewStreamDecoder()
}

// sniff feeds everything read from r to dec and calls fn for each frame until
// fn returns false, the stream ends or ctx is done.
func sniff(ctx context.Context, r io.Reader, dec *storm32.StreamDecoder, fn func(*storm32.Frame) bool) error {
	log := logger.LogWith(ctx)
	buf := make([]byte, 128)

	for {
		if ctx.Err() != nil {
			return nil
		}

		n, err := r.Read(buf)
		for _, f := range dec.Feed(buf[:n]) {
			if !fn(f) {
				return nil
			}
		}

		switch {
		case err == nil:
		case errors.Is(err, io.EOF), errors.Is(err, ErrConnectionClosed):
			log.Info("Connection closed")
			return nil
		default:
			log.WithError(err).Warnf("Read error")
			time.Sleep(pollInterval)
		}
	}
}
