// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/Thermoquad/stormctl/pkg/storm32"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

//////////////////////////////////////////////////////////////
// Actions
//////////////////////////////////////////////////////////////

// Focus states
const (
	focusActionList = iota
	focusValueInput
	focusButton
)

type inputKind int

const (
	inputNone inputKind = iota
	inputDegrees
	inputRaw
)

// controlAction is one entry of the action list.
type controlAction struct {
	title string
	desc  string
	input inputKind
	run   func(ctx context.Context, c *storm32.Client, value uint16) error
}

// Implement list.Item interface
func (a controlAction) Title() string       { return a.title }
func (a controlAction) Description() string { return a.desc }
func (a controlAction) FilterValue() string { return a.title }

// parse reads the value typed for the action.
func (a controlAction) parse(s string) (uint16, error) {
	s = strings.TrimSpace(s)
	if a.input == inputNone {
		return 0, nil
	}
	if s == "" {
		return 0, fmt.Errorf("%s: no value", a.title)
	}

	v, err := parseActuation(s, a.input == inputDegrees)
	if err != nil {
		return 0, err
	}
	if !storm32.ValidAxisValue(v) {
		return 0, fmt.Errorf("%s value %d: %w", a.title, v, storm32.ErrOutOfRange)
	}
	return v, nil
}

func axisAction(c storm32.Command, input inputKind, desc string) controlAction {
	axis := axisCommands[c]
	return controlAction{
		title: strings.ToUpper(axis.name[:1]) + axis.name[1:],
		desc:  desc,
		input: input,
		run: func(ctx context.Context, cl *storm32.Client, v uint16) error {
			return axis.set(cl, ctx, v)
		},
	}
}

func sendAction[T fmt.Stringer](title string, v T, send func(*storm32.Client, context.Context, T) error) controlAction {
	return controlAction{
		title: title,
		desc:  v.String(),
		run: func(ctx context.Context, c *storm32.Client, _ uint16) error {
			return send(c, ctx, v)
		},
	}
}

func controlActions() []controlAction {
	return []controlAction{
		axisAction(storm32.CmdSetPitch, inputDegrees, "angle in degrees"),
		axisAction(storm32.CmdSetRoll, inputDegrees, "angle in degrees"),
		axisAction(storm32.CmdSetYaw, inputDegrees, "angle in degrees"),
		axisAction(storm32.CmdSetPWMOut, inputRaw, "raw value 700..2300"),
		{
			title: "Recenter",
			desc:  "all axes",
			run: func(ctx context.Context, c *storm32.Client, _ uint16) error {
				return c.SetPitchRollYaw(ctx, storm32.AxisRecenter, storm32.AxisRecenter, storm32.AxisRecenter)
			},
		},
		sendAction("Standby", storm32.StandbyOn, (*storm32.Client).SetStandby),
		sendAction("Wake up", storm32.StandbyOff, (*storm32.Client).SetStandby),
		sendAction("Hold", storm32.PanModeHoldHoldHold, (*storm32.Client).SetPanMode),
		sendAction("Pan yaw", storm32.PanModeHoldHoldPan, (*storm32.Client).SetPanMode),
		sendAction("Pan all", storm32.PanModePanPanPan, (*storm32.Client).SetPanMode),
		sendAction("Shutter", storm32.CameraIRShutter, (*storm32.Client).DoCamera),
	}
}

//////////////////////////////////////////////////////////////
// Model
//////////////////////////////////////////////////////////////

// controlModel is the Bubble Tea model for the control TUI
type controlModel struct {
	cm       *connectionManager
	connInfo string
	fields   storm32.LiveField

	actionList   list.Model
	valueInput   textinput.Model
	focusedField int
	pending      bool // action in flight

	stats  *storm32.Statistics
	events eventLog
	last   *sample

	width          int
	height         int
	quitting       bool
	connectionLost bool
}

//////////////////////////////////////////////////////////////
// Messages
//////////////////////////////////////////////////////////////

type actionResultMsg struct {
	action   string
	value    uint16
	hasValue bool
	err      error
}

type connectionLostMsg struct{}

//////////////////////////////////////////////////////////////
// Model Initialization
//////////////////////////////////////////////////////////////

func newControlModel(cm *connectionManager, connInfo string, fields storm32.LiveField) controlModel {
	ti := textinput.New()
	ti.Placeholder = "0.0"
	ti.CharLimit = 8
	ti.Width = 10

	actions := controlActions()
	items := make([]list.Item, len(actions))
	for i, a := range actions {
		items[i] = a
	}

	delegate := list.NewDefaultDelegate()
	delegate.ShowDescription = true
	delegate.SetHeight(2)
	actionList := list.New(items, delegate, 30, 10)
	actionList.Title = "Actions"
	actionList.SetShowStatusBar(false)
	actionList.SetShowHelp(false)
	actionList.SetFilteringEnabled(false)

	return controlModel{
		cm:           cm,
		connInfo:     connInfo,
		fields:       fields,
		actionList:   actionList,
		valueInput:   ti,
		focusedField: focusActionList,
		stats:        cm.stats,
		events:       newEventLog(100),
		width:        80,
		height:       24,
	}
}

//////////////////////////////////////////////////////////////
// Bubble Tea Interface
//////////////////////////////////////////////////////////////

func (m controlModel) Init() tea.Cmd {
	return tickCmd()
}

func (m controlModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyMsg(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.actionList.SetSize(30, max(m.height-20, 10))

	case tickMsg:
		return m, tickCmd()

	case sampleMsg:
		smp := sample(msg)
		switch {
		case smp.err != nil:
			if !m.connectionLost {
				m.events.add(fmt.Sprintf("%s: %v", smp.fields, smp.err), true)
			}
		default:
			m.last = &smp
			for _, a := range smp.anomalies {
				m.events.add(a.Message, true)
			}
		}

	case actionResultMsg:
		m.pending = false
		desc := msg.action
		if msg.hasValue {
			desc = fmt.Sprintf("%s %d", msg.action, msg.value)
		}
		if msg.err != nil {
			m.events.add(fmt.Sprintf("%s failed: %v", desc, msg.err), true)
		} else {
			m.events.add(desc+" acknowledged", false)
		}

	case connectionLostMsg:
		m.connectionLost = true
		m.events.add("Connection lost - restart to reconnect", true)
	}

	// Update child components
	var cmd tea.Cmd
	if m.focusedField == focusValueInput {
		m.valueInput, cmd = m.valueInput.Update(msg)
		cmds = append(cmds, cmd)
	}
	if m.focusedField == focusActionList {
		m.actionList, cmd = m.actionList.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

func (m controlModel) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		if m.focusedField != focusValueInput || msg.String() == "ctrl+c" {
			m.quitting = true
			return m, tea.Quit
		}

	case "tab":
		return m.cycleFocus(1), nil

	case "shift+tab":
		return m.cycleFocus(-1), nil

	case "enter":
		return m.handleEnter()
	}

	// Pass through to focused component
	var cmd tea.Cmd
	switch m.focusedField {
	case focusValueInput:
		m.valueInput, cmd = m.valueInput.Update(msg)
	case focusActionList:
		m.actionList, cmd = m.actionList.Update(msg)
	}
	return m, cmd
}

func (m controlModel) cycleFocus(delta int) controlModel {
	const n = focusButton + 1
	m.focusedField = (m.focusedField + delta + n) % n

	// Skip value input for actions without a value
	if a, ok := m.selectedAction(); m.focusedField == focusValueInput && (!ok || a.input == inputNone) {
		m.focusedField = (m.focusedField + delta + n) % n
	}

	if m.focusedField == focusValueInput {
		m.valueInput.Focus()
	} else {
		m.valueInput.Blur()
	}
	return m
}

func (m controlModel) handleEnter() (tea.Model, tea.Cmd) {
	// Don't allow control commands while connection is lost
	if m.connectionLost {
		m.events.add("Cannot send command: connection lost", true)
		return m, nil
	}
	if m.pending {
		return m, nil
	}

	a, ok := m.selectedAction()
	if !ok {
		return m, nil
	}
	if m.focusedField == focusActionList && a.input != inputNone {
		return m.cycleFocus(1), nil
	}

	v, err := a.parse(m.valueInput.Value())
	if err != nil {
		m.events.add(err.Error(), true)
		return m, nil
	}

	m.pending = true
	return m, m.cm.run(a, v)
}

func (m controlModel) selectedAction() (controlAction, bool) {
	a, ok := m.actionList.SelectedItem().(controlAction)
	return a, ok
}

//////////////////////////////////////////////////////////////
// View
//////////////////////////////////////////////////////////////

var (
	focusedBoxStyle = boxStyle.
			BorderForeground(lipgloss.Color("12"))

	buttonStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("0")).
			Background(lipgloss.Color("12")).
			Padding(0, 2)

	focusedButtonStyle = buttonStyle.
				Background(lipgloss.Color("10"))
)

func (m controlModel) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	var s strings.Builder

	// Header
	s.WriteString(titleStyle.Render("STORMCTL CONTROL"))
	s.WriteString(" ")
	connStatus := m.connInfo
	if m.connectionLost {
		connStatus = errorStyle.Render("CONNECTION LOST")
	}
	s.WriteString(headerStyle.Render(fmt.Sprintf("| %s | q=quit Tab=switch Enter=send", connStatus)))
	s.WriteString("\n\n")

	// Layout: left panel (actions) | right panel (control)
	leftWidth := 30
	rightWidth := max(m.width-leftWidth-6, 20)

	listStyle := boxStyle.Width(leftWidth)
	if m.focusedField == focusActionList {
		listStyle = focusedBoxStyle.Width(leftWidth)
	}
	actionPanel := listStyle.Render(m.actionList.View())
	controlPanel := boxStyle.Width(rightWidth).Render(m.renderControlPanel())

	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, actionPanel, " ", controlPanel))
	s.WriteString("\n\n")

	s.WriteString(boxStyle.Width(m.width - 4).Render(renderStats(m.stats)))
	s.WriteString("\n\n")

	// Telemetry
	var telemetry string
	if m.last == nil {
		telemetry = labelStyle.Render("TELEMETRY") + " | No telemetry data (" + m.fields.String() + ")"
	} else {
		telemetry = renderTelemetry(m.last)
	}
	s.WriteString(boxStyle.Width(m.width - 4).Render(telemetry))
	s.WriteString("\n\n")

	// Event log
	s.WriteString(labelStyle.Render("Recent Events:"))
	s.WriteString("\n")
	s.WriteString(boxStyle.Width(m.width - 4).Render(m.events.render(max(m.height-30, 5))))

	return s.String()
}

func (m controlModel) renderControlPanel() string {
	var s strings.Builder

	a, ok := m.selectedAction()
	if !ok {
		s.WriteString(headerStyle.Render("No action selected"))
		return s.String()
	}

	s.WriteString(fmt.Sprintf("%s %s\n", labelStyle.Render("Action:"), valueStyle.Render(a.title)))
	s.WriteString(fmt.Sprintf("%s %s\n\n", labelStyle.Render("Detail:"), a.desc))

	if a.input != inputNone {
		label := "Degrees: "
		if a.input == inputRaw {
			label = "Value: "
		}
		s.WriteString(labelStyle.Render(label))
		if m.focusedField == focusValueInput {
			s.WriteString(m.valueInput.View())
		} else {
			// Show as plain text when not focused
			val := m.valueInput.Value()
			if val == "" {
				val = m.valueInput.Placeholder
			}
			s.WriteString(fmt.Sprintf("[%s]", val))
		}
		s.WriteString("\n\n")
	}

	btnText := "[ Send ]"
	if m.pending {
		btnText = "[ Sending... ]"
	}
	if m.focusedField == focusButton {
		s.WriteString(focusedButtonStyle.Render(btnText))
	} else {
		s.WriteString(buttonStyle.Render(btnText))
	}

	return s.String()
}
