// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/Thermoquad/stormctl/pkg/storm32"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"
)

func newControlCmd(o *rootOptions) *cobra.Command {
	var (
		fields   []string
		pollRate float64
	)

	cmd := &cobra.Command{
		Use:   "control",
		Short: "Interactive TUI for driving the gimbal",
		Long: `Drive a StorM32 controller via an interactive terminal UI.

Features:
  - Pitch, roll, yaw and PWM output actuation (degrees or raw values)
  - Recenter, standby, pan mode and camera actions
  - Real-time telemetry display (GETDATAFIELDS polling)
  - Statistics tracking
  - Event logging

Tab switches between the action list, the value input and the send button.
Arrow keys navigate the action list.

Supports both serial and WebSocket connections.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			mask, err := storm32.ParseLiveFields(fields)
			if err != nil {
				return err
			}
			if pollRate <= 0 {
				return fmt.Errorf("rate must be positive, got %g", pollRate)
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			stats := storm32.NewStatistics()
			s, err := o.openSession(ctx, stats)
			if err != nil {
				return err
			}

			cm := &connectionManager{s: s, stats: stats}
			defer cm.close()

			p := tea.NewProgram(newControlModel(cm, s.info, mask), tea.WithAltScreen(), tea.WithContext(ctx))
			cm.p = p

			go cm.pollLoop(ctx, &poller{
				fields:  mask,
				limiter: rate.NewLimiter(rate.Limit(pollRate), 1),
				stats:   stats,
			})

			if _, err := p.Run(); err != nil && ctx.Err() == nil {
				return fmt.Errorf("TUI error: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&fields, "fields", []string{"status", "imu1_angles", "pid_control", "inputs"}, "Telemetry groups to poll")
	cmd.Flags().Float64Var(&pollRate, "rate", 2, "Telemetry polls per second")

	return cmd
}

// connectionManager owns the session of the control TUI. Once the link is
// lost actions are refused; the TUI has to be restarted.
type connectionManager struct {
	stats *storm32.Statistics
	p     *tea.Program

	mu   sync.Mutex
	s    *session
	lost bool
}

func (cm *connectionManager) client() *storm32.Client {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	if cm.s == nil || cm.lost {
		return nil
	}
	return cm.s.client
}

func (cm *connectionManager) close() {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	if cm.s != nil {
		cm.s.Close()
		cm.s = nil
	}
}

// connectionLost reports whether err means the link is gone rather than one
// exchange failing.
func connectionLost(err error) bool {
	return errors.Is(err, ErrConnectionClosed) || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)
}

// pollLoop polls telemetry until ctx is done or the link drops.
func (cm *connectionManager) pollLoop(ctx context.Context, p *poller) {
	for {
		c := cm.client()
		if c == nil {
			return
		}
		p.client = c

		smp, ok := p.poll(ctx)
		if !ok {
			return
		}
		cm.p.Send(sampleMsg(smp))

		if smp.err != nil && connectionLost(smp.err) {
			cm.mu.Lock()
			cm.lost = true
			cm.mu.Unlock()
			cm.p.Send(connectionLostMsg{})
			return
		}
	}
}

// run executes an action on the current client as a tea.Cmd.
func (cm *connectionManager) run(a controlAction, value uint16) tea.Cmd {
	return func() tea.Msg {
		c := cm.client()
		if c == nil {
			return actionResultMsg{action: a.title, err: ErrConnectionClosed}
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		err := a.run(ctx, c, value)
		cm.stats.Update(err, nil)
		return actionResultMsg{action: a.title, value: value, hasValue: a.input != inputNone, err: err}
	}
}
