// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"syscall"
	"time"

	"github.com/Thermoquad/stormctl/pkg/storm32"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"
)

type monitorOptions struct {
	fields        []string
	rate          float64
	count         int
	showAll       bool
	useTUI        bool
	statsInterval time.Duration
	metricsAddr   string
}

func newMonitorCmd(o *rootOptions) *cobra.Command {
	mo := &monitorOptions{}

	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Poll telemetry and track errors and anomalous values",
		Long: `Poll the controller for telemetry and validate every answer.

This command tracks:
  - Checksum mismatches, timeouts and framing errors
  - Protocol errors (wrong command echo, length or mask mismatch) and ACK errors
  - Anomalous telemetry values (angles out of range, low battery, unknown state)
  - Statistics and trends (exchange rate, error rate, success rate)

Without --fields a full GETDATA snapshot is polled, otherwise GETDATAFIELDS with
the selected groups. By default only errors are displayed in text mode. Use
--show-all to display every snapshot.

With --metrics-addr the exchange counters and the last telemetry values are
served in Prometheus format under /metrics.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var mask storm32.LiveField
			if len(mo.fields) > 0 {
				var err error
				if mask, err = storm32.ParseLiveFields(mo.fields); err != nil {
					return err
				}
			}
			if mo.rate <= 0 {
				return fmt.Errorf("rate must be positive, got %g", mo.rate)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			p := &poller{
				fields:  mask,
				limiter: rate.NewLimiter(rate.Limit(mo.rate), 1),
				stats:   storm32.NewStatistics(),
			}
			observers := []storm32.Observer{p.stats}
			if mo.metricsAddr != "" {
				reg := newMetricsRegistry()
				p.metrics = newExchangeMetrics(reg)
				observers = append(observers, p.metrics)
				if err := serveMetrics(ctx, mo.metricsAddr, reg); err != nil {
					return fmt.Errorf("metrics: %w", err)
				}
			}

			s, err := o.openSession(ctx, observers...)
			if err != nil {
				return err
			}
			defer s.Close()
			p.client = s.client

			if mo.useTUI {
				return runMonitorTUI(ctx, p, s.info, mo)
			}
			return runMonitorText(ctx, cmd.OutOrStdout(), p, s.info, mo)
		},
	}
	cmd.Flags().StringSliceVar(&mo.fields, "fields", nil, "Poll GETDATAFIELDS with these groups instead of GETDATA")
	cmd.Flags().Float64Var(&mo.rate, "rate", 5, "Polls per second")
	cmd.Flags().IntVar(&mo.count, "count", 0, "Stop after this many polls (0 = until interrupted, text mode)")
	cmd.Flags().BoolVar(&mo.showAll, "show-all", false, "Show all snapshots (not just errors)")
	cmd.Flags().BoolVar(&mo.useTUI, "tui", true, "Use terminal UI (false for text mode)")
	cmd.Flags().DurationVar(&mo.statsInterval, "stats-interval", 10*time.Second, "Statistics update interval")
	cmd.Flags().StringVar(&mo.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")

	return cmd
}

// sample is the outcome of one telemetry poll.
type sample struct {
	time      time.Time
	fields    storm32.LiveField // groups present in telemetry
	telemetry *storm32.Telemetry
	anomalies []storm32.ValidationError
	err       error
}

// poller requests telemetry at the limiter's pace and records every outcome.
type poller struct {
	client  *storm32.Client
	fields  storm32.LiveField // zero polls GETDATA
	limiter *rate.Limiter
	stats   *storm32.Statistics
	metrics *exchangeMetrics
}

// poll waits for the limiter and runs one exchange. It returns false once ctx is done.
func (p *poller) poll(ctx context.Context) (sample, bool) {
	if err := p.limiter.Wait(ctx); err != nil {
		return sample{}, false
	}

	smp := sample{time: time.Now()}
	if p.fields == 0 {
		t, err := p.client.Telemetry(ctx)
		smp.err = err
		if err == nil {
			smp.telemetry = t
			smp.fields = storm32.SupportedLiveFields
			smp.anomalies = storm32.ValidateTelemetry(t)
		}
	} else {
		d, err := p.client.LiveData(ctx, p.fields)
		smp.err = err
		if err == nil {
			smp.telemetry = &d.Telemetry
			smp.fields = d.Fields
			smp.anomalies = storm32.ValidateLiveData(d)
		}
	}
	if ctx.Err() != nil {
		return smp, false
	}

	p.stats.Update(smp.err, smp.anomalies)
	if p.metrics != nil && smp.telemetry != nil {
		p.metrics.ObserveTelemetry(smp.telemetry, smp.fields, smp.anomalies)
	}
	return smp, true
}

func (p *poller) request() string {
	if p.fields == 0 {
		return storm32.CmdGetData.String()
	}
	return fmt.Sprintf("%s %s", storm32.CmdGetDataFields, p.fields)
}

func runMonitorTUI(ctx context.Context, p *poller, connInfo string, mo *monitorOptions) error {
	prog := tea.NewProgram(newMonitorModel(connInfo, p, mo.showAll), tea.WithContext(ctx))

	pollCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		for {
			smp, ok := p.poll(pollCtx)
			if !ok {
				return
			}
			prog.Send(sampleMsg(smp))
		}
	}()

	if _, err := prog.Run(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}

func runMonitorText(ctx context.Context, w io.Writer, p *poller, connInfo string, mo *monitorOptions) error {
	fmt.Fprintf(w, "stormctl - Monitor\n")
	fmt.Fprintf(w, "Connection: %s\n", connInfo)
	fmt.Fprintf(w, "Request: %s at %g/s\n", p.request(), mo.rate)
	fmt.Fprintf(w, "Statistics interval: %s\n", mo.statsInterval)
	if mo.showAll {
		fmt.Fprintf(w, "Mode: All snapshots\n")
	} else {
		fmt.Fprintf(w, "Mode: Errors only\n")
	}
	fmt.Fprintf(w, "Press Ctrl+C to exit\n\n")

	lastStats := time.Now()
	for i := 0; mo.count == 0 || i < mo.count; i++ {
		smp, ok := p.poll(ctx)
		if !ok {
			break
		}
		printSample(w, smp, mo.showAll)

		if mo.statsInterval > 0 && time.Since(lastStats) >= mo.statsInterval {
			lastStats = time.Now()
			fmt.Fprintf(w, "\n%s\n", p.stats)
		}
	}

	fmt.Fprintf(w, "\n%s", p.stats)
	return nil
}

// printSample prints exchange errors, anomalies and, with showAll, valid snapshots.
func printSample(w io.Writer, smp sample, showAll bool) {
	timestamp := smp.time.Format("15:04:05.000")

	switch {
	case smp.err != nil:
		fmt.Fprintf(w, "[%s] ERROR: %v\n", timestamp, smp.err)
	case len(smp.anomalies) > 0:
		fmt.Fprintf(w, "[%s] VALIDATION ERROR: state %s\n", timestamp, smp.telemetry.State)
		for i, a := range smp.anomalies {
			fmt.Fprintf(w, "  Issue %d: %s [%s]\n", i+1, a.Message, a.Type)
		}
	case showAll:
		fmt.Fprintf(w, "[%s] %s\n", timestamp, smp.fields)
		fmt.Fprint(w, storm32.FormatLiveData(&storm32.LiveData{Fields: smp.fields, Telemetry: *smp.telemetry}))
	}
}
