// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package storm32 implements the StorM32 gimbal controller serial command protocol.
//
// The StorM32 RC command interface is a binary request/response protocol. Every
// frame is a 3 byte header (start sign, payload length, command id), the payload
// and a little-endian CRC-16 over header and payload. This package provides frame
// encoding/decoding, CRC validation, per-command request builders, typed response
// decoding and a synchronous Client that drives exchanges over a Transport.
package storm32

import (
	"fmt"
	"strings"
)

// Direction is the frame start sign.
type Direction byte

// Frame start signs
const (
	DirectionIncoming Direction = 0xFA // host → controller (request)
	DirectionOutgoing Direction = 0xFB // controller → host (response)
)

func (d Direction) String() string {
	switch d {
	case DirectionIncoming:
		return "request"
	case DirectionOutgoing:
		return "response"
	default:
		return fmt.Sprintf("unknown(0x%02X)", byte(d))
	}
}

// Frame size limits
const (
	HeaderSize     = 3
	CRCSize        = 2
	MaxPayloadSize = 255
	MaxFrameSize   = HeaderSize + MaxPayloadSize + CRCSize
)

// Modbus CRC-16 configuration
const (
	crcPolynomial = 0xA001
	crcInitial    = 0xFFFF
)

// Command is a StorM32 RC command id.
type Command uint8

// Query commands
const (
	CmdGetVersion    Command = 0x01
	CmdGetVersionStr Command = 0x02
	CmdGetParameter  Command = 0x03
	CmdSetParameter  Command = 0x04
	CmdGetData       Command = 0x05
	CmdGetDataFields Command = 0x06
)

// Control commands
const (
	CmdSetPitch             Command = 0x0A
	CmdSetRoll              Command = 0x0B
	CmdSetYaw               Command = 0x0C
	CmdSetPanMode           Command = 0x0D
	CmdSetStandby           Command = 0x0E
	CmdDoCamera             Command = 0x0F
	CmdSetScriptControl     Command = 0x10
	CmdSetAngle             Command = 0x11
	CmdSetPitchRollYaw      Command = 0x12
	CmdSetPWMOut            Command = 0x13
	CmdRestoreParameter     Command = 0x14
	CmdRestoreAllParameter  Command = 0x15
	CmdActivePanModeSetting Command = 0x64
)

// CmdAck is the command id of the controller's acknowledgement response.
const CmdAck Command = 0x96

// Commands lists every command id known to the registry, in id order.
var Commands = []Command{
	CmdGetVersion, CmdGetVersionStr, CmdGetParameter, CmdSetParameter, CmdGetData, CmdGetDataFields,
	CmdSetPitch, CmdSetRoll, CmdSetYaw, CmdSetPanMode, CmdSetStandby, CmdDoCamera, CmdSetScriptControl,
	CmdSetAngle, CmdSetPitchRollYaw, CmdSetPWMOut, CmdRestoreParameter, CmdRestoreAllParameter,
	CmdActivePanModeSetting, CmdAck,
}

// String returns the command name, or UNKNOWN_0xNN for ids outside the registry.
func (c Command) String() string {
	if spec, ok := registry[c]; ok {
		return spec.Name
	}
	return fmt.Sprintf("UNKNOWN_0x%02X", uint8(c))
}

// AckStatus is the single status byte carried by an ACK response.
type AckStatus uint8

// ACK status codes
const (
	AckOK              AckStatus = 0
	AckErrFail         AckStatus = 1
	AckErrAccessDenied AckStatus = 2
	AckErrNotSupported AckStatus = 3
	AckErrTimeout      AckStatus = 150
	AckErrCRC          AckStatus = 151
	AckErrPayloadLen   AckStatus = 152
)

func (s AckStatus) String() string {
	switch s {
	case AckOK:
		return "SERIALRCCMD_ACK_OK"
	case AckErrFail:
		return "SERIALRCCMD_ACK_ERR_FAIL"
	case AckErrAccessDenied:
		return "SERIALRCCMD_ACK_ERR_ACCESS_DENIED"
	case AckErrNotSupported:
		return "SERIALRCCMD_ACK_ERR_NOT_SUPPORTED"
	case AckErrTimeout:
		return "SERIALRCCMD_ACK_ERR_TIMEOUT"
	case AckErrCRC:
		return "SERIALRCCMD_ACK_ERR_CRC"
	case AckErrPayloadLen:
		return "SERIALRCCMD_ACK_ERR_PAYLOADLEN"
	default:
		return fmt.Sprintf("SERIALRCCMD_ACK_UNKNOWN_%d", uint8(s))
	}
}

// Command returns CmdAck.
func (s AckStatus) Command() Command { return CmdAck }

// Axis actuation limits. Zero recenters the axis.
const (
	AxisRecenter = 0
	AxisMin      = 700
	AxisCenter   = 1500
	AxisMax      = 2300
)

// ValidAxisValue reports whether v is an accepted SETPITCH/SETROLL/SETYAW/SETPWMOUT value.
func ValidAxisValue(v uint16) bool {
	return v == AxisRecenter || (v >= AxisMin && v <= AxisMax)
}

// PanMode selects which axes hold and which pan.
type PanMode uint8

// Pan modes
const (
	PanModeOff PanMode = iota
	PanModeHoldHoldPan
	PanModeHoldHoldHold
	PanModePanPanPan
	PanModePanHoldHold
	PanModePanHoldPan
	PanModeHoldPanPan
)

var panModeNames = []string{
	"OFF", "HOLD_HOLD_PAN", "HOLD_HOLD_HOLD", "PAN_PAN_PAN", "PAN_HOLD_HOLD", "PAN_HOLD_PAN", "HOLD_PAN_PAN",
}

func (m PanMode) String() string { return enumName(panModeNames, int(m)) }

// Valid reports whether m is a known pan mode.
func (m PanMode) Valid() bool { return int(m) < len(panModeNames) }

// ParsePanMode parses a pan mode name, case-insensitively.
func ParsePanMode(s string) (PanMode, error) {
	i, err := parseEnum("pan mode", panModeNames, s)
	return PanMode(i), err
}

// StandbySwitch turns controller standby on or off.
type StandbySwitch uint8

// Standby switch values
const (
	StandbyOff StandbySwitch = iota
	StandbyOn
)

var standbyNames = []string{"OFF", "ON"}

func (s StandbySwitch) String() string { return enumName(standbyNames, int(s)) }

// Valid reports whether s is a known standby value.
func (s StandbySwitch) Valid() bool { return int(s) < len(standbyNames) }

// ParseStandbySwitch parses a standby switch name, case-insensitively.
func ParseStandbySwitch(s string) (StandbySwitch, error) {
	i, err := parseEnum("standby switch", standbyNames, s)
	return StandbySwitch(i), err
}

// CameraMode is the DOCAMERA action.
type CameraMode uint8

// Camera modes
const (
	CameraOff CameraMode = iota
	CameraIRShutter
	CameraIRShutterDelayed
	CameraIRVideoOn
	CameraIRVideoOff
)

var cameraModeNames = []string{"OFF", "IR_SHUTTER", "IR_SHUTTER_DELAYED", "IR_VIDEO_ON", "IR_VIDEO_OFF"}

func (m CameraMode) String() string { return enumName(cameraModeNames, int(m)) }

// Valid reports whether m is a known camera mode.
func (m CameraMode) Valid() bool { return int(m) < len(cameraModeNames) }

// ParseCameraMode parses a camera mode name, case-insensitively.
func ParseCameraMode(s string) (CameraMode, error) {
	i, err := parseEnum("camera mode", cameraModeNames, s)
	return CameraMode(i), err
}

// ScriptControl selects the active script case.
type ScriptControl uint8

// Script control values
const (
	ScriptOff ScriptControl = iota
	ScriptCaseDefault
	ScriptCase1
	ScriptCase2
	ScriptCase3
)

var scriptControlNames = []string{"OFF", "CASE_DEFAULT", "CASE_1", "CASE_2", "CASE_3"}

func (s ScriptControl) String() string { return enumName(scriptControlNames, int(s)) }

// Valid reports whether s is a known script control value.
func (s ScriptControl) Valid() bool { return int(s) < len(scriptControlNames) }

// ParseScriptControl parses a script control name, case-insensitively.
func ParseScriptControl(s string) (ScriptControl, error) {
	i, err := parseEnum("script control", scriptControlNames, s)
	return ScriptControl(i), err
}

// PanModeSetting selects one of the stored pan mode settings.
type PanModeSetting uint16

// Pan mode settings
const (
	PanModeSettingDefault PanModeSetting = iota
	PanModeSetting1
	PanModeSetting2
	PanModeSetting3
)

var panModeSettingNames = []string{"DEFAULT", "SETTING_1", "SETTING_2", "SETTING_3"}

func (s PanModeSetting) String() string { return enumName(panModeSettingNames, int(s)) }

// Valid reports whether s is a known pan mode setting.
func (s PanModeSetting) Valid() bool { return int(s) < len(panModeSettingNames) }

// ParsePanModeSetting parses a pan mode setting name, case-insensitively.
func ParsePanModeSetting(s string) (PanModeSetting, error) {
	i, err := parseEnum("pan mode setting", panModeSettingNames, s)
	return PanModeSetting(i), err
}

// AngleFlags marks SETANGLE axes as limited.
type AngleFlags uint8

// Angle flags
const (
	AngleFlagPitch AngleFlags = 0x01
	AngleFlagRoll  AngleFlags = 0x02
	AngleFlagYaw   AngleFlags = 0x04

	angleFlagsMask = AngleFlagPitch | AngleFlagRoll | AngleFlagYaw
)

// AngleFlagsFromAxes builds the flags byte from per-axis limited switches.
func AngleFlagsFromAxes(pitch, roll, yaw bool) AngleFlags {
	var f AngleFlags
	if pitch {
		f |= AngleFlagPitch
	}
	if roll {
		f |= AngleFlagRoll
	}
	if yaw {
		f |= AngleFlagYaw
	}
	return f
}

func (f AngleFlags) String() string {
	if f == 0 {
		return "NONE"
	}
	var parts []string
	if f&AngleFlagPitch != 0 {
		parts = append(parts, "PITCH")
	}
	if f&AngleFlagRoll != 0 {
		parts = append(parts, "ROLL")
	}
	if f&AngleFlagYaw != 0 {
		parts = append(parts, "YAW")
	}
	if rest := f &^ angleFlagsMask; rest != 0 {
		parts = append(parts, fmt.Sprintf("0x%02X", uint8(rest)))
	}
	return strings.Join(parts, "|")
}

// Valid reports whether f only uses the three axis bits.
func (f AngleFlags) Valid() bool { return f&^angleFlagsMask == 0 }

// State is the controller state word reported in telemetry.
type State int16

// Controller states
const (
	StateStartupMotors State = iota
	StateStartupSettle
	StateStartupCalibrate
	StateStartupLevel
	StateStartupMotorDirDetect
	StateStartupRelevel
	StateNormal
	StateStandby
)

var stateNames = []string{
	"STARTUP_MOTORS", "STARTUP_SETTLE", "STARTUP_CALIBRATE", "STARTUP_LEVEL",
	"STARTUP_MOTORDIRDETECT", "STARTUP_RELEVEL", "NORMAL", "STANDBY",
}

func (s State) String() string { return enumName(stateNames, int(s)) }

// Valid reports whether s is a known controller state.
func (s State) Valid() bool { return s >= 0 && int(s) < len(stateNames) }

func enumName(names []string, i int) string {
	if i >= 0 && i < len(names) {
		return names[i]
	}
	return fmt.Sprintf("UNKNOWN(%d)", i)
}

func parseEnum(kind string, names []string, s string) (int, error) {
	want := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), "-", "_"))
	for i, name := range names {
		if name == want {
			return i, nil
		}
	}
	return 0, fmt.Errorf("unknown %s %q (valid: %s): %w", kind, s, strings.ToLower(strings.Join(names, ", ")), ErrOutOfRange)
}
