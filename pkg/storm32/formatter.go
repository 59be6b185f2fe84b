// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package storm32

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// FormatHex formats bytes as space separated upper-case hex.
func FormatHex(b []byte) string {
	var sb strings.Builder
	for i, v := range b {
		if i > 0 {
			sb.WriteByte(' ')
		}
		fmt.Fprintf(&sb, "%02X", v)
	}
	return sb.String()
}

// FormatCommand returns the human-readable name for a command id
func FormatCommand(id uint8) string {
	return Command(id).String()
}

// FormatFrame formats a frame into a human-readable string
func FormatFrame(f *Frame) string {
	timestamp := f.Timestamp.Format("15:04:05.000")
	crc := "ok"
	if !f.ValidCRC() {
		crc = fmt.Sprintf("BAD (calculated 0x%04X)", frameCRC(f.Header, f.Payload))
	}

	result := fmt.Sprintf("[%s] %s %s (0x%02X) len=%d crc=0x%04X %s\n",
		timestamp, f.Direction, f.Command, uint8(f.Command), f.Length, f.CRC, crc)

	if f.Direction == DirectionIncoming {
		return result + FormatRequestPayload(f.Command, f.Payload)
	}
	return result + formatResponsePayload(f)
}

// FormatRequestPayload formats the payload of a request frame.
func FormatRequestPayload(cmd Command, p []byte) string {
	if len(p) == 0 {
		return "  (no payload)\n"
	}

	switch cmd {
	case CmdGetParameter, CmdRestoreParameter:
		if len(p) == 2 {
			return fmt.Sprintf("  Parameter: %d\n", binary.LittleEndian.Uint16(p))
		}
	case CmdSetParameter:
		if len(p) == 4 {
			return fmt.Sprintf("  Parameter: %d, Value: %d\n",
				binary.LittleEndian.Uint16(p), binary.LittleEndian.Uint16(p[2:]))
		}
	case CmdGetData:
		return fmt.Sprintf("  Type: %d\n", p[0])
	case CmdGetDataFields:
		if len(p) == 2 {
			mask := LiveField(binary.LittleEndian.Uint16(p))
			return fmt.Sprintf("  Fields: %s (0x%04X)\n", mask, uint16(mask))
		}
	case CmdSetPitch, CmdSetRoll, CmdSetYaw, CmdSetPWMOut:
		if len(p) == 2 {
			return fmt.Sprintf("  Value: %d\n", binary.LittleEndian.Uint16(p))
		}
	case CmdSetPitchRollYaw:
		if len(p) == 6 {
			return fmt.Sprintf("  Pitch: %d, Roll: %d, Yaw: %d\n", binary.LittleEndian.Uint16(p),
				binary.LittleEndian.Uint16(p[2:]), binary.LittleEndian.Uint16(p[4:]))
		}
	case CmdSetPanMode:
		return fmt.Sprintf("  Pan mode: %s (%d)\n", PanMode(p[0]), p[0])
	case CmdSetStandby:
		return fmt.Sprintf("  Standby: %s (%d)\n", StandbySwitch(p[0]), p[0])
	case CmdDoCamera:
		if len(p) > 1 {
			return fmt.Sprintf("  Camera: %s (%d)\n", CameraMode(p[1]), p[1])
		}
	case CmdSetScriptControl:
		if len(p) > 1 {
			return fmt.Sprintf("  Script: %s (%d)\n", ScriptControl(p[1]), p[1])
		}
	case CmdActivePanModeSetting:
		if len(p) == 2 {
			s := PanModeSetting(binary.LittleEndian.Uint16(p))
			return fmt.Sprintf("  Setting: %s (%d)\n", s, uint16(s))
		}
	case CmdSetAngle:
		if a, err := UnmarshalAngleCommand(p); err == nil {
			return fmt.Sprintf("  Pitch: %.2f°, Roll: %.2f°, Yaw: %.2f°, Limited: %s\n", a.Pitch, a.Roll, a.Yaw, a.Flags)
		}
	}
	return "  Payload: " + FormatHex(p) + "\n"
}

// formatResponsePayload decodes a response using the ids it echoes.
func formatResponsePayload(f *Frame) string {
	req := Request{Command: f.Command}
	switch f.Command {
	case CmdAck:
		req.Command = CmdSetParameter
	case CmdGetParameter, CmdGetDataFields:
		if len(f.Payload) >= 2 {
			req.Payload = f.Payload[:2]
		}
	}

	resp, err := DecodeResponse(req, f)
	if resp == nil {
		if err != nil {
			return fmt.Sprintf("  Payload: %s\n  (%v)\n", FormatHex(f.Payload), err)
		}
		return "  Payload: " + FormatHex(f.Payload) + "\n"
	}
	return FormatResponse(resp)
}

// FormatResponse formats a decoded response
func FormatResponse(r Response) string {
	switch v := r.(type) {
	case AckStatus:
		return fmt.Sprintf("  Status: %s (%d)\n", v, uint8(v))
	case VersionInfo:
		return fmt.Sprintf("  Firmware: %d, Setup layout: %d, Board capabilities: 0x%04X\n",
			v.Firmware, v.SetupLayout, v.BoardCapabilities)
	case VersionStrings:
		return fmt.Sprintf("  Version: %q, Name: %q, Board: %q\n", v.Version, v.Name, v.Board)
	case ParameterValue:
		return fmt.Sprintf("  Parameter: %d, Value: %d\n", v.ID, v.Value)
	case *Telemetry:
		return FormatTelemetry(v)
	case *LiveData:
		return FormatLiveData(v)
	default:
		return fmt.Sprintf("  %v\n", r)
	}
}

// FormatTelemetry formats a GETDATA snapshot
func FormatTelemetry(t *Telemetry) string {
	return formatStatus(t) + formatTimes(t) + formatSensors(t) +
		formatAngles("IMU1", t.IMU1Angles) + formatAngles("PID", t.PIDControl) + formatInputs(t) +
		formatAngles("IMU2", t.IMU2Angles) + formatMag(t) + formatConfidence(t) +
		fmt.Sprintf("  Extra function input: %d\n", t.ExtraFunctionInput)
}

// FormatLiveData formats the groups present in a GETDATAFIELDS response
func FormatLiveData(d *LiveData) string {
	result := fmt.Sprintf("  Fields: %s\n", d.Fields)
	t := &d.Telemetry
	if d.Has(LiveStatus) {
		result += formatStatus(t)
	}
	if d.Has(LiveTimes) {
		result += formatTimes(t)
	}
	if d.Has(LiveIMU1Gyro) {
		result += formatVector("Gyro", t.IMU1Gyro)
	}
	if d.Has(LiveIMU1Acc) {
		result += formatVector("Acc", t.IMU1Acc)
	}
	if d.Has(LiveIMU1R) {
		result += formatVector("R", t.IMU1Rotation)
	}
	if d.Has(LiveIMU1Angles) {
		result += formatAngles("IMU1", t.IMU1Angles)
	}
	if d.Has(LivePIDControl) {
		result += formatAngles("PID", t.PIDControl)
	}
	if d.Has(LiveInputs) {
		result += formatInputs(t)
	}
	if d.Has(LiveIMU2Angles) {
		result += formatAngles("IMU2", t.IMU2Angles)
	}
	if d.Has(LiveMagAngles) {
		result += formatMag(t)
	}
	if d.Has(LiveIMUAccConfidence) {
		result += formatConfidence(t)
	}
	return result
}

func formatStatus(t *Telemetry) string {
	return fmt.Sprintf("  State: %s (%d), Status: 0x%04X, Status2: 0x%04X, I2C errors: %d, LiPo: %.2f V\n",
		t.State, int16(t.State), t.Status, t.Status2, t.I2CErrors, float64(t.LipoVoltage)/1000)
}

func formatTimes(t *Telemetry) string {
	return fmt.Sprintf("  Timestamp: %d, Cycle time: %d µs\n", t.Timestamp, t.CycleTime)
}

func formatSensors(t *Telemetry) string {
	return formatVector("Gyro", t.IMU1Gyro) + formatVector("Acc", t.IMU1Acc) + formatVector("R", t.IMU1Rotation)
}

func formatVector(name string, v Vector3) string {
	return fmt.Sprintf("  IMU1 %s: x=%d y=%d z=%d\n", name, v.X, v.Y, v.Z)
}

func formatAngles(name string, a Angles) string {
	return fmt.Sprintf("  %s: pitch=%.2f° roll=%.2f° yaw=%.2f°\n", name, a.Pitch, a.Roll, a.Yaw)
}

func formatInputs(t *Telemetry) string {
	return fmt.Sprintf("  Inputs: pitch=%d roll=%d yaw=%d\n", t.Inputs.Pitch, t.Inputs.Roll, t.Inputs.Yaw)
}

func formatMag(t *Telemetry) string {
	return fmt.Sprintf("  Mag: yaw=%.2f° pitch=%.2f°\n", t.MagYaw, t.MagPitch)
}

func formatConfidence(t *Telemetry) string {
	return fmt.Sprintf("  Acc confidence: %.4f\n", t.AccConfidence)
}
