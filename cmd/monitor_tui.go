// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/Thermoquad/stormctl/pkg/storm32"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Event log entry
type eventLogEntry struct {
	timestamp time.Time
	message   string
	isError   bool // true for errors, false for information
}

// eventLog keeps the most recent entries.
type eventLog struct {
	entries []eventLogEntry
	max     int
}

func newEventLog(size int) eventLog {
	return eventLog{max: size}
}

func (l *eventLog) add(message string, isError bool) {
	l.entries = append(l.entries, eventLogEntry{
		timestamp: time.Now(),
		message:   message,
		isError:   isError,
	})

	// Keep only last N entries
	if len(l.entries) > l.max {
		l.entries = l.entries[len(l.entries)-l.max:]
	}
}

// render returns the last height entries.
func (l *eventLog) render(height int) string {
	if len(l.entries) == 0 {
		return headerStyle.Render("  (no events yet)")
	}

	var b strings.Builder
	for _, entry := range l.entries[max(0, len(l.entries)-height):] {
		timestamp := headerStyle.Render(entry.timestamp.Format("15:04:05.000"))
		if entry.isError {
			fmt.Fprintf(&b, "%s %s\n", timestamp, errorStyle.Render("✗ "+entry.message))
		} else {
			fmt.Fprintf(&b, "%s %s\n", timestamp, warningStyle.Render("ℹ "+entry.message))
		}
	}
	return b.String()
}

// Styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("12")).
			Background(lipgloss.Color("235")).
			Padding(0, 1)

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("12")).
			Bold(true)

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("10"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9")).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("11"))

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)
)

// Messages
type tickMsg time.Time
type sampleMsg sample

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// monitorModel is the telemetry monitor TUI.
type monitorModel struct {
	connInfo string
	request  string
	showAll  bool
	stats    *storm32.Statistics
	events   eventLog
	last     *sample
	width    int
	height   int
	quitting bool
}

func newMonitorModel(connInfo string, p *poller, showAll bool) monitorModel {
	return monitorModel{
		connInfo: connInfo,
		request:  p.request(),
		showAll:  showAll,
		stats:    p.stats,
		events:   newEventLog(100),
		width:    80,
		height:   24,
	}
}

func (m monitorModel) Init() tea.Cmd {
	return tea.Batch(
		tickCmd(),
		tea.EnterAltScreen,
	)
}

func (m monitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "r":
			m.stats.Reset()
			m.events.add("Statistics reset", false)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tickMsg:
		return m, tickCmd()

	case sampleMsg:
		smp := sample(msg)
		switch {
		case smp.err != nil:
			m.events.add(smp.err.Error(), true)
		case len(smp.anomalies) > 0:
			m.last = &smp
			for _, a := range smp.anomalies {
				m.events.add(a.Message, true)
			}
		default:
			m.last = &smp
			if m.showAll {
				m.events.add(fmt.Sprintf("%s (valid)", smp.fields), false)
			}
		}
	}

	return m, nil
}

func (m monitorModel) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	// Header
	var s strings.Builder
	s.WriteString(titleStyle.Render("STORMCTL - MONITOR"))
	s.WriteString("\n")
	s.WriteString(headerStyle.Render(fmt.Sprintf("%s | %s | Press 'r' to reset, 'q' to quit", m.connInfo, m.request)))
	s.WriteString("\n\n")

	s.WriteString(boxStyle.Render(renderStats(m.stats)))
	s.WriteString("\n\n")

	// Telemetry section (only shown once a snapshot arrived)
	if m.last != nil {
		s.WriteString(labelStyle.Render("Latest Telemetry:"))
		s.WriteString("\n")
		s.WriteString(boxStyle.Render(renderTelemetry(m.last)))
		s.WriteString("\n\n")
	}

	s.WriteString(labelStyle.Render("Recent Events:"))
	s.WriteString("\n")

	// Reserve space for header, stats and telemetry
	logHeight := max(m.height-22, 5)
	s.WriteString(boxStyle.Width(m.width - 4).Render(m.events.render(logHeight)))

	return s.String()
}

// renderStats renders the statistics box content.
func renderStats(stats *storm32.Statistics) string {
	st := stats.Snapshot()
	errs := st.ChecksumErrors + st.Timeouts + st.FramingErrors + st.ProtocolErrors + st.AckErrors + st.OtherErrors

	var validPercent, errorPercent float64
	if st.TotalExchanges > 0 {
		validPercent = float64(st.ValidExchanges) * 100.0 / float64(st.TotalExchanges)
		errorPercent = float64(errs) * 100.0 / float64(st.TotalExchanges)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s   %s %s   %s %s\n",
		labelStyle.Render("Total:"), valueStyle.Render(fmt.Sprintf("%d", st.TotalExchanges)),
		labelStyle.Render("Valid:"), valueStyle.Render(fmt.Sprintf("%d (%.1f%%)", st.ValidExchanges, validPercent)),
		labelStyle.Render("Errors:"), errorStyle.Render(fmt.Sprintf("%d (%.1f%%)", errs, errorPercent)),
	)

	if errs > 0 {
		fmt.Fprintf(&b, "%s %d  %s %d  %s %d  %s %d  %s %d\n",
			labelStyle.Render("CRC:"), st.ChecksumErrors,
			labelStyle.Render("Timeout:"), st.Timeouts,
			labelStyle.Render("Framing:"), st.FramingErrors,
			labelStyle.Render("Protocol:"), st.ProtocolErrors,
			labelStyle.Render("ACK:"), st.AckErrors,
		)
	}

	if st.AnomalousValues > 0 {
		fmt.Fprintf(&b, "%s %s\n",
			labelStyle.Render("Anomalous:"), warningStyle.Render(fmt.Sprintf("%d", st.AnomalousValues)))
	}
	if st.ChecksumWarnings > 0 {
		fmt.Fprintf(&b, "%s %s\n",
			labelStyle.Render("CRC warnings:"), warningStyle.Render(fmt.Sprintf("%d", st.ChecksumWarnings)))
	}

	errorRate := valueStyle.Render(fmt.Sprintf("%.1f err/s", st.ErrorRate))
	if st.ErrorRate > 0 {
		errorRate = errorStyle.Render(fmt.Sprintf("%.1f err/s", st.ErrorRate))
	}
	fmt.Fprintf(&b, "%s %s   %s %s   %s %s",
		labelStyle.Render("Rate:"), valueStyle.Render(fmt.Sprintf("%.1f exch/s", st.ExchangeRate)),
		labelStyle.Render("Error Rate:"), errorRate,
		labelStyle.Render("RTT:"), valueStyle.Render(st.LastRoundTrip.Round(time.Microsecond).String()),
	)
	return b.String()
}

// renderTelemetry renders the groups present in the last snapshot.
func renderTelemetry(smp *sample) string {
	t := smp.telemetry
	var b strings.Builder

	if smp.fields&storm32.LiveStatus != 0 {
		fmt.Fprintf(&b, "%s %s   %s %s   %s %d\n",
			labelStyle.Render("State:"), valueStyle.Render(t.State.String()),
			labelStyle.Render("LiPo:"), valueStyle.Render(fmt.Sprintf("%.2f V", float64(t.LipoVoltage)/1000)),
			labelStyle.Render("I2C errors:"), t.I2CErrors,
		)
	}
	if smp.fields&storm32.LiveTimes != 0 {
		fmt.Fprintf(&b, "%s %s\n",
			labelStyle.Render("Cycle time:"), valueStyle.Render(fmt.Sprintf("%d µs", t.CycleTime)))
	}
	angles := func(name string, a storm32.Angles) {
		fmt.Fprintf(&b, "%s %s\n", labelStyle.Render(name+":"),
			valueStyle.Render(fmt.Sprintf("pitch %7.2f°  roll %7.2f°  yaw %7.2f°", a.Pitch, a.Roll, a.Yaw)))
	}
	if smp.fields&storm32.LiveIMU1Angles != 0 {
		angles("IMU1", t.IMU1Angles)
	}
	if smp.fields&storm32.LiveIMU2Angles != 0 {
		angles("IMU2", t.IMU2Angles)
	}
	if smp.fields&storm32.LivePIDControl != 0 {
		angles("PID", t.PIDControl)
	}
	if smp.fields&storm32.LiveInputs != 0 {
		fmt.Fprintf(&b, "%s %s\n", labelStyle.Render("Inputs:"),
			valueStyle.Render(fmt.Sprintf("pitch %d  roll %d  yaw %d", t.Inputs.Pitch, t.Inputs.Roll, t.Inputs.Yaw)))
	}
	if smp.fields&storm32.LiveIMUAccConfidence != 0 {
		fmt.Fprintf(&b, "%s %s\n", labelStyle.Render("Acc confidence:"),
			valueStyle.Render(fmt.Sprintf("%.1f%%", t.AccConfidence*100)))
	}

	return strings.TrimSuffix(b.String(), "\n")
}
