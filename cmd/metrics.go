// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/Thermoquad/stormctl/pkg/storm32"
	"github.com/mdouchement/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// exchangeMetrics exports exchange events and the last telemetry snapshot.
// It is installed as a client Observer.
type exchangeMetrics struct {
	events     *prometheus.CounterVec // labels: command, event
	roundTrip  *prometheus.HistogramVec
	anomalies  *prometheus.CounterVec // labels: type
	state      prometheus.Gauge
	voltage    prometheus.Gauge
	cycleTime  prometheus.Gauge
	i2cErrors  prometheus.Gauge
	imu1Angles *prometheus.GaugeVec // labels: axis
}

func newExchangeMetrics(reg prometheus.Registerer) *exchangeMetrics {
	m := &exchangeMetrics{
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "stormctl",
			Name:      "exchange_events_total",
			Help:      "Exchange events by command and kind.",
		}, []string{"command", "event"}),
		roundTrip: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "stormctl",
			Name:      "round_trip_seconds",
			Help:      "Time from request sent to response received.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 10),
		}, []string{"command"}),
		anomalies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "stormctl",
			Name:      "telemetry_anomalies_total",
			Help:      "Implausible telemetry values by anomaly type.",
		}, []string{"type"}),
		state: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "stormctl",
			Name:      "controller_state",
			Help:      "Last reported controller state.",
		}),
		voltage: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "stormctl",
			Name:      "lipo_voltage_volts",
			Help:      "Last reported battery voltage.",
		}),
		cycleTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "stormctl",
			Name:      "cycle_time_seconds",
			Help:      "Last reported controller loop cycle time.",
		}),
		i2cErrors: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "stormctl",
			Name:      "i2c_errors",
			Help:      "Last reported I2C error counter.",
		}),
		imu1Angles: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "stormctl",
			Name:      "imu1_angle_degrees",
			Help:      "Last reported IMU1 angles.",
		}, []string{"axis"}),
	}
	reg.MustRegister(m.events, m.roundTrip, m.anomalies, m.state, m.voltage, m.cycleTime, m.i2cErrors, m.imu1Angles)
	return m
}

// Observe implements storm32.Observer.
func (m *exchangeMetrics) Observe(e storm32.Event) {
	cmd := e.Command.String()
	m.events.WithLabelValues(cmd, e.Kind.String()).Inc()
	if e.Kind == storm32.EventReceived {
		m.roundTrip.WithLabelValues(cmd).Observe(e.Elapsed.Seconds())
	}
}

// ObserveTelemetry records the groups of t selected by fields.
func (m *exchangeMetrics) ObserveTelemetry(t *storm32.Telemetry, fields storm32.LiveField, anomalies []storm32.ValidationError) {
	for _, a := range anomalies {
		m.anomalies.WithLabelValues(a.Type.String()).Inc()
	}

	if fields&storm32.LiveStatus != 0 {
		m.state.Set(float64(t.State))
		m.voltage.Set(float64(t.LipoVoltage) / 1000)
		m.i2cErrors.Set(float64(t.I2CErrors))
	}
	if fields&storm32.LiveTimes != 0 {
		m.cycleTime.Set(float64(t.CycleTime) / 1e6)
	}
	if fields&storm32.LiveIMU1Angles != 0 {
		m.imu1Angles.WithLabelValues("pitch").Set(t.IMU1Angles.Pitch)
		m.imu1Angles.WithLabelValues("roll").Set(t.IMU1Angles.Roll)
		m.imu1Angles.WithLabelValues("yaw").Set(t.IMU1Angles.Yaw)
	}
}

func newMetricsRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// serveMetrics exposes reg on addr under /metrics until ctx is done.
func serveMetrics(ctx context.Context, addr string, reg *prometheus.Registry) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	l, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdown, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		srv.Shutdown(shutdown)
	}()
	go func() {
		if err := srv.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.LogWith(ctx).WithError(err).Error("Metrics server stopped")
		}
	}()

	logger.LogWith(ctx).Infof("Serving metrics on http://%s/metrics", l.Addr())
	return nil
}
