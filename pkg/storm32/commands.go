// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package storm32

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Request is an encoded command ready to be framed.
type Request struct {
	Command Command
	Payload []byte
}

// Encode frames the request for sending to the controller.
func (r Request) Encode() ([]byte, error) {
	return EncodeFrame(DirectionIncoming, r.Command, r.Payload)
}

func u16(v uint16) []byte {
	return binary.LittleEndian.AppendUint16(nil, v)
}

// NewGetVersion creates a GETVERSION request.
func NewGetVersion() Request {
	return Request{Command: CmdGetVersion}
}

// NewGetVersionStrings creates a GETVERSIONSTR request.
func NewGetVersionStrings() Request {
	return Request{Command: CmdGetVersionStr}
}

// NewGetParameter creates a GETPARAMETER request for parameter id.
func NewGetParameter(id uint16) Request {
	return Request{Command: CmdGetParameter, Payload: u16(id)}
}

// NewSetParameter creates a SETPARAMETER request.
func NewSetParameter(id, value uint16) Request {
	return Request{Command: CmdSetParameter, Payload: append(u16(id), u16(value)...)}
}

// NewGetData creates a GETDATA request. Only data type 0 exists.
func NewGetData(dataType uint8) (Request, error) {
	if dataType != 0 {
		return Request{}, fmt.Errorf("GETDATA type %d: %w", dataType, ErrOutOfRange)
	}
	return Request{Command: CmdGetData, Payload: []byte{dataType}}, nil
}

// NewGetDataFields creates a GETDATAFIELDS request for the selected fields.
func NewGetDataFields(mask LiveField) (Request, error) {
	if err := mask.Validate(); err != nil {
		return Request{}, err
	}
	return Request{Command: CmdGetDataFields, Payload: u16(uint16(mask))}, nil
}

func newSetAxis(cmd Command, value uint16) (Request, error) {
	if !ValidAxisValue(value) {
		return Request{}, fmt.Errorf("%s value %d (0 or %d..%d): %w", cmd, value, AxisMin, AxisMax, ErrOutOfRange)
	}
	return Request{Command: cmd, Payload: u16(value)}, nil
}

// NewSetPitch creates a SETPITCH request. value is 0 (recenter) or 700..2300.
func NewSetPitch(value uint16) (Request, error) { return newSetAxis(CmdSetPitch, value) }

// NewSetRoll creates a SETROLL request. value is 0 (recenter) or 700..2300.
func NewSetRoll(value uint16) (Request, error) { return newSetAxis(CmdSetRoll, value) }

// NewSetYaw creates a SETYAW request. value is 0 (recenter) or 700..2300.
func NewSetYaw(value uint16) (Request, error) { return newSetAxis(CmdSetYaw, value) }

// NewSetPWMOut creates a SETPWMOUT request. value is 0 or 700..2300.
func NewSetPWMOut(value uint16) (Request, error) { return newSetAxis(CmdSetPWMOut, value) }

// NewSetPitchRollYaw creates a SETPITCHROLLYAW request.
// Each axis is validated on its own.
func NewSetPitchRollYaw(pitch, roll, yaw uint16) (Request, error) {
	axes := []struct {
		name  string
		value uint16
	}{{"pitch", pitch}, {"roll", roll}, {"yaw", yaw}}

	payload := make([]byte, 0, 6)
	for _, a := range axes {
		if !ValidAxisValue(a.value) {
			return Request{}, fmt.Errorf("SETPITCHROLLYAW %s value %d (0 or %d..%d): %w",
				a.name, a.value, AxisMin, AxisMax, ErrOutOfRange)
		}
		payload = binary.LittleEndian.AppendUint16(payload, a.value)
	}
	return Request{Command: CmdSetPitchRollYaw, Payload: payload}, nil
}

// NewSetPanMode creates a SETPANMODE request.
func NewSetPanMode(mode PanMode) (Request, error) {
	if !mode.Valid() {
		return Request{}, fmt.Errorf("pan mode %d: %w", mode, ErrOutOfRange)
	}
	return Request{Command: CmdSetPanMode, Payload: []byte{byte(mode)}}, nil
}

// NewSetStandby creates a SETSTANDBY request.
func NewSetStandby(s StandbySwitch) (Request, error) {
	if !s.Valid() {
		return Request{}, fmt.Errorf("standby switch %d: %w", s, ErrOutOfRange)
	}
	return Request{Command: CmdSetStandby, Payload: []byte{byte(s)}}, nil
}

// NewDoCamera creates a DOCAMERA request.
func NewDoCamera(mode CameraMode) (Request, error) {
	if !mode.Valid() {
		return Request{}, fmt.Errorf("camera mode %d: %w", mode, ErrOutOfRange)
	}
	return Request{Command: CmdDoCamera, Payload: []byte{0, byte(mode), 0, 0, 0, 0}}, nil
}

// NewSetScriptControl creates a SETSCRIPTCONTROL request.
func NewSetScriptControl(s ScriptControl) (Request, error) {
	if !s.Valid() {
		return Request{}, fmt.Errorf("script control %d: %w", s, ErrOutOfRange)
	}
	return Request{Command: CmdSetScriptControl, Payload: []byte{0, byte(s), 0, 0, 0, 0}}, nil
}

// NewRestoreParameter creates a RESTOREPARAMETER request.
func NewRestoreParameter(id uint16) Request {
	return Request{Command: CmdRestoreParameter, Payload: u16(id)}
}

// NewRestoreAllParameters creates a RESTOREALLPARAMETER request.
func NewRestoreAllParameters() Request {
	return Request{Command: CmdRestoreAllParameter}
}

// NewActivePanModeSetting creates an ACTIVEPANMODESETTING request.
func NewActivePanModeSetting(s PanModeSetting) (Request, error) {
	if !s.Valid() {
		return Request{}, fmt.Errorf("pan mode setting %d: %w", s, ErrOutOfRange)
	}
	return Request{Command: CmdActivePanModeSetting, Payload: u16(uint16(s))}, nil
}

const angleCommandSize = 3*4 + 2

// AngleCommand is the SETANGLE payload: target angles in degrees plus limit flags.
type AngleCommand struct {
	Pitch, Roll, Yaw float32
	Flags            AngleFlags
}

// MarshalBinary packs three little-endian float32, the flags byte and a reserved zero.
func (a AngleCommand) MarshalBinary() ([]byte, error) {
	if !a.Flags.Valid() {
		return nil, fmt.Errorf("angle flags 0x%02X: %w", uint8(a.Flags), ErrOutOfRange)
	}
	for _, v := range []float32{a.Pitch, a.Roll, a.Yaw} {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			return nil, fmt.Errorf("angle %v: %w", v, ErrOutOfRange)
		}
	}
	buf := make([]byte, 0, angleCommandSize)
	buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(a.Pitch))
	buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(a.Roll))
	buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(a.Yaw))
	return append(buf, byte(a.Flags), 0), nil
}

// UnmarshalAngleCommand decodes a SETANGLE payload.
func UnmarshalAngleCommand(payload []byte) (AngleCommand, error) {
	if err := checkLength(CmdSetAngle, payload, angleCommandSize); err != nil {
		return AngleCommand{}, err
	}
	return AngleCommand{
		Pitch: math.Float32frombits(binary.LittleEndian.Uint32(payload[0:4])),
		Roll:  math.Float32frombits(binary.LittleEndian.Uint32(payload[4:8])),
		Yaw:   math.Float32frombits(binary.LittleEndian.Uint32(payload[8:12])),
		Flags: AngleFlags(payload[12]),
	}, nil
}

// NewSetAngle creates a SETANGLE request.
func NewSetAngle(a AngleCommand) (Request, error) {
	payload, err := a.MarshalBinary()
	if err != nil {
		return Request{}, err
	}
	return Request{Command: CmdSetAngle, Payload: payload}, nil
}

// DegreesToActuation maps an angle in the open interval (-90, 90) onto the
// 700..2300 actuation range: round((deg+90) * 1600/180 + 700).
func DegreesToActuation(deg float64) (uint16, error) {
	if math.IsNaN(deg) || deg <= -90 || deg >= 90 {
		return 0, fmt.Errorf("%v degrees (want -90 < deg < 90): %w", deg, ErrOutOfRange)
	}
	v := math.Round((deg+90)*(AxisMax-AxisMin)/180 + AxisMin)
	return uint16(v), nil
}
