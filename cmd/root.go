// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"regexp"
	"runtime"

	"github.com/Thermoquad/stormctl/pkg/storm32"
	"github.com/mdouchement/logger"
	"github.com/spf13/cobra"
)

var (
	version  = "dev"
	revision = "none"
	date     = "unknown"
)

// rootOptions is the state shared by every subcommand of one invocation.
type rootOptions struct {
	configPath string
	flags      Config // values bound to persistent flags
	config     Config // effective settings after PersistentPreRunE
	dummy      bool

	log logger.Logger

	// simulator backs --dummy; tests preset it to inspect the emulated controller.
	simulator *storm32.Simulator
}

// ExitError carries a process exit code out of a command.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("exit status %d", e.Code)
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error { return e.Err }

func exitf(code int, format string, args ...any) error {
	return &ExitError{Code: code, Err: fmt.Errorf(format, args...)}
}

func newRootCmd(o *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stormctl",
		Short: "StorM32 gimbal controller serial command tool",
		Long: `stormctl - query and drive a StorM32 gimbal controller over its serial
command interface (RC commands).

Every operation is one request frame answered by one response frame, guarded by
a Modbus CRC. Responses are checked for framing, checksum, command echo and ACK
status.

Connection modes:
  Serial:    --port /dev/ttyUSB0 [--baud 115200]
  WebSocket: --url ws://host/path [--username user]
  Simulator: --dummy

Settings are read from --config (default ~/.config/stormctl/stormctl.yml when
present). Flags given on the command line take precedence.

For WebSocket authentication, the password is read from the STORMCTL_PASSWORD
environment variable, or prompted interactively if not set. The --password
flag is intentionally not provided to avoid leaking credentials in shell history.`,
		Version:       fmt.Sprintf("%s - build %.7s @ %s - %s", version, revision, date, runtime.Version()),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return o.setup(cmd)
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVarP(&o.configPath, "config", "c", DefaultConfigPath(), "Configfile path")

	// Serial connection flags
	pf.StringVarP(&o.flags.Port, "port", "p", "", "Serial port device")
	pf.IntVarP(&o.flags.Baud, "baud", "b", 115200, "Baud rate (serial only)")

	// WebSocket connection flags
	pf.StringVarP(&o.flags.URL, "url", "u", "", "WebSocket URL (ws:// or wss://)")
	pf.StringVar(&o.flags.Username, "username", "", "Username for HTTP Basic auth")
	pf.BoolVar(&o.flags.NoSSLVerify, "no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")

	// Client flags
	pf.DurationVar(&o.flags.Timeout.Duration, "timeout", storm32.DefaultTimeout, "Response timeout per read")
	pf.BoolVar(&o.flags.StrictCRC, "strict-crc", false, "Reject responses with a checksum mismatch")
	pf.StringVar(&o.flags.Capture, "capture", "", "Append exchanged frames to a CBOR capture file")
	pf.BoolVar(&o.flags.Debug, "debug", false, "Log every frame")
	pf.BoolVar(&o.dummy, "dummy", false, "Talk to a simulated controller")

	cmd.AddCommand(
		newVersionCmd(o),
		newParamCmd(o),
		newDataCmd(o),
		newFieldsCmd(o),
		newAxisCmd(o, storm32.CmdSetPitch),
		newAxisCmd(o, storm32.CmdSetRoll),
		newAxisCmd(o, storm32.CmdSetYaw),
		newAxisCmd(o, storm32.CmdSetPWMOut),
		newPitchRollYawCmd(o),
		newAngleCmd(o),
		newPanModeCmd(o),
		newActivePanSettingCmd(o),
		newStandbyCmd(o),
		newCameraCmd(o),
		newScriptCmd(o),
		newPingCmd(o),
		newPacketTestCmd(o),
		newRawLogCmd(o),
		newReplayCmd(o),
		newMonitorCmd(o),
		newControlCmd(o),
	)

	return cmd
}

// setup resolves the effective configuration and the logger.
func (o *rootOptions) setup(cmd *cobra.Command) error {
	cfg, err := LoadConfig(o.configPath, cmd.Flags().Changed("config"))
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	cfg.Override(o.flags, cmd.Flags().Changed)
	if err = cfg.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	o.config = cfg

	o.log = newLogger(cmd.ErrOrStderr(), cfg.Debug)
	cmd.SetContext(logger.WithLogger(cmd.Context(), o.log))
	return nil
}

func newLogger(w io.Writer, debug bool) logger.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}

	h := logger.NewSlogTextHandler(w, &logger.SlogTextOption{
		Level:           level,
		ForceFormatting: true,
		PrefixRE:        regexp.MustCompile(`^(\[.*?\])\s`),
		FullTimestamp:   true,
		TimestampFormat: "15:04:05.000",
	})
	return logger.WrapSlogHandler(h)
}

// Execute runs the root command and exits with the command's exit code.
func Execute() {
	err := newRootCmd(&rootOptions{}).Execute()
	if err == nil {
		return
	}

	fmt.Fprintln(os.Stderr, "Error:", err)

	var exit *ExitError
	if errors.As(err, &exit) {
		os.Exit(exit.Code)
	}
	os.Exit(1)
}
