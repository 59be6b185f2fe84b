// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package storm32

import (
	"encoding/binary"
	"fmt"
	"sync"
	"time"
)

// SimulatorParameters is the number of parameters exposed by the Simulator.
const SimulatorParameters = 128

// A Simulator emulates a StorM32 controller behind the Transport interface.
// It should only be used for dev & tests.
type Simulator struct {
	mu sync.Mutex

	in  []byte // bytes written by the host, not yet parsed
	out []byte // response bytes waiting to be read

	version   VersionInfo
	strings   VersionStrings
	params    map[uint16]uint16
	defaults  map[uint16]uint16
	telemetry Telemetry

	axes       [3]uint16 // pitch, roll, yaw actuation
	pwm        uint16
	panMode    PanMode
	standby    StandbySwitch
	camera     CameraMode
	script     ScriptControl
	panSetting PanModeSetting

	requests    []Request
	silent      bool
	corruptNext bool
	failNext    *AckStatus
}

// NewSimulator creates a Simulator in the NORMAL state.
func NewSimulator() *Simulator {
	s := &Simulator{
		version: VersionInfo{Firmware: 96, SetupLayout: 2, BoardCapabilities: 0x0003},
		strings: VersionStrings{Version: "v0.96", Name: "StorM32-Sim", Board: "BGC v1.31"},
		params:  make(map[uint16]uint16, SimulatorParameters),
		telemetry: Telemetry{
			State:        StateNormal,
			Status:       0x0015,
			LipoVoltage:  11800,
			CycleTime:    1500,
			IMU1Acc:      Vector3{X: 0, Y: 0, Z: 4096},
			IMU1Rotation: Vector3{X: 0, Y: 0, Z: 4096},

			AccConfidence: 1.0,
		},
	}
	s.defaults = make(map[uint16]uint16, SimulatorParameters)
	for i := uint16(0); i < SimulatorParameters; i++ {
		s.defaults[i] = i * 10
		s.params[i] = i * 10
	}
	return s
}

// Write implements Transport.
func (s *Simulator) Write(p []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.in = append(s.in, p...)
	for {
		// Hunt for a request start sign
		for len(s.in) > 0 && Direction(s.in[0]) != DirectionIncoming {
			s.in = s.in[1:]
		}
		if len(s.in) < HeaderSize {
			return nil
		}
		total := HeaderSize + int(s.in[1]) + CRCSize
		if len(s.in) < total {
			return nil
		}
		raw := s.in[:total]
		s.in = s.in[total:]

		f, err := DecodeFrame(raw)
		if err != nil {
			if f != nil {
				s.respondAck(AckErrCRC)
			}
			continue
		}
		s.handle(f)
	}
}

// ReadExact implements Transport.
func (s *Simulator) ReadExact(n int, timeout time.Duration) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.out) < n {
		return nil, fmt.Errorf("simulator: %d of %d bytes after %s: %w", len(s.out), n, timeout, ErrTimeout)
	}
	b := append([]byte(nil), s.out[:n]...)
	s.out = s.out[n:]
	return b, nil
}

// Pending returns the number of response bytes not yet read.
func (s *Simulator) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.out)
}

// Close implements io.Closer.
func (s *Simulator) Close() error {
	return nil
}

// Inject queues raw bytes as if sent by the controller.
func (s *Simulator) Inject(raw []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.out = append(s.out, raw...)
}

// SetSilent makes the simulator drop requests without answering.
func (s *Simulator) SetSilent(silent bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.silent = silent
}

// CorruptNextCRC damages the CRC of the next response.
func (s *Simulator) CorruptNextCRC() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.corruptNext = true
}

// FailNext answers the next request with an ACK carrying status.
func (s *Simulator) FailNext(status AckStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNext = &status
}

// SetTelemetry replaces the simulated telemetry snapshot.
func (s *Simulator) SetTelemetry(t Telemetry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.telemetry = t
}

// Requests returns every request received so far.
func (s *Simulator) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

// Parameter returns the simulated value of parameter id.
func (s *Simulator) Parameter(id uint16) (uint16, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.params[id]
	return v, ok
}

// SimulatorState is the actuator and mode state set by control commands.
type SimulatorState struct {
	Pitch, Roll, Yaw uint16
	PWMOut           uint16
	PanMode          PanMode
	Standby          StandbySwitch
	Camera           CameraMode
	Script           ScriptControl
	PanModeSetting   PanModeSetting
}

// State returns the current actuator and mode state.
func (s *Simulator) State() SimulatorState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SimulatorState{
		Pitch:          s.axes[0],
		Roll:           s.axes[1],
		Yaw:            s.axes[2],
		PWMOut:         s.pwm,
		PanMode:        s.panMode,
		Standby:        s.standby,
		Camera:         s.camera,
		Script:         s.script,
		PanModeSetting: s.panSetting,
	}
}

func (s *Simulator) respond(cmd Command, payload []byte) {
	raw, err := EncodeFrame(DirectionOutgoing, cmd, payload)
	if err != nil {
		return
	}
	if s.corruptNext {
		raw[len(raw)-1] ^= 0xFF
		s.corruptNext = false
	}
	s.out = append(s.out, raw...)
}

func (s *Simulator) respondAck(status AckStatus) {
	s.respond(CmdAck, []byte{byte(status)})
}

func (s *Simulator) handle(f *Frame) {
	req := Request{Command: f.Command, Payload: f.Payload}
	s.requests = append(s.requests, req)

	if s.silent {
		return
	}
	if s.failNext != nil {
		s.respondAck(*s.failNext)
		s.failNext = nil
		return
	}

	spec, err := Lookup(f.Command)
	if err != nil || f.Command == CmdAck {
		s.respondAck(AckErrNotSupported)
		return
	}
	if len(f.Payload) != spec.RequestLength {
		s.respondAck(AckErrPayloadLen)
		return
	}

	p := f.Payload
	switch f.Command {
	case CmdGetVersion:
		buf := binary.LittleEndian.AppendUint16(nil, s.version.Firmware)
		buf = binary.LittleEndian.AppendUint16(buf, s.version.SetupLayout)
		buf = binary.LittleEndian.AppendUint16(buf, s.version.BoardCapabilities)
		s.respond(f.Command, buf)

	case CmdGetVersionStr:
		buf := make([]byte, versionStringsSize)
		copy(buf[0:versionStringSize], s.strings.Version)
		copy(buf[versionStringSize:2*versionStringSize], s.strings.Name)
		copy(buf[2*versionStringSize:], s.strings.Board)
		s.respond(f.Command, buf)

	case CmdGetParameter:
		id := binary.LittleEndian.Uint16(p)
		v, ok := s.params[id]
		if !ok {
			s.respondAck(AckErrFail)
			return
		}
		s.respond(f.Command, append(u16(id), u16(v)...))

	case CmdSetParameter:
		id := binary.LittleEndian.Uint16(p)
		if _, ok := s.params[id]; !ok {
			s.respondAck(AckErrFail)
			return
		}
		s.params[id] = binary.LittleEndian.Uint16(p[2:])
		s.respondAck(AckOK)

	case CmdRestoreParameter:
		id := binary.LittleEndian.Uint16(p)
		v, ok := s.defaults[id]
		if !ok {
			s.respondAck(AckErrFail)
			return
		}
		s.params[id] = v
		s.respondAck(AckOK)

	case CmdRestoreAllParameter:
		for id, v := range s.defaults {
			s.params[id] = v
		}
		s.respondAck(AckOK)

	case CmdGetData:
		if p[0] != 0 {
			s.respondAck(AckErrFail)
			return
		}
		s.telemetry.Timestamp++
		buf, _ := s.telemetry.MarshalBinary()
		s.respond(f.Command, buf)

	case CmdGetDataFields:
		d := LiveData{Fields: LiveField(binary.LittleEndian.Uint16(p)), Telemetry: s.telemetry}
		buf, err := d.MarshalBinary()
		if err != nil {
			s.respondAck(AckErrFail)
			return
		}
		s.respond(f.Command, buf)

	case CmdSetPitch, CmdSetRoll, CmdSetYaw:
		v := binary.LittleEndian.Uint16(p)
		if !ValidAxisValue(v) {
			s.respondAck(AckErrFail)
			return
		}
		s.setAxis(int(f.Command-CmdSetPitch), v)
		s.respondAck(AckOK)

	case CmdSetPitchRollYaw:
		var v [3]uint16
		for i := range v {
			v[i] = binary.LittleEndian.Uint16(p[2*i:])
			if !ValidAxisValue(v[i]) {
				s.respondAck(AckErrFail)
				return
			}
		}
		for i := range v {
			s.setAxis(i, v[i])
		}
		s.respondAck(AckOK)

	case CmdSetPWMOut:
		v := binary.LittleEndian.Uint16(p)
		if !ValidAxisValue(v) {
			s.respondAck(AckErrFail)
			return
		}
		s.pwm = v
		s.respondAck(AckOK)

	case CmdSetAngle:
		a, err := UnmarshalAngleCommand(p)
		if err != nil || !a.Flags.Valid() {
			s.respondAck(AckErrFail)
			return
		}
		s.telemetry.IMU1Angles = Angles{Pitch: float64(a.Pitch), Roll: float64(a.Roll), Yaw: float64(a.Yaw)}
		s.respondAck(AckOK)

	case CmdSetPanMode:
		if m := PanMode(p[0]); m.Valid() {
			s.panMode = m
			s.respondAck(AckOK)
			return
		}
		s.respondAck(AckErrFail)

	case CmdSetStandby:
		sw := StandbySwitch(p[0])
		if !sw.Valid() {
			s.respondAck(AckErrFail)
			return
		}
		s.standby = sw
		if sw == StandbyOn {
			s.telemetry.State = StateStandby
		} else {
			s.telemetry.State = StateNormal
		}
		s.respondAck(AckOK)

	case CmdDoCamera:
		if m := CameraMode(p[1]); m.Valid() {
			s.camera = m
			s.respondAck(AckOK)
			return
		}
		s.respondAck(AckErrFail)

	case CmdSetScriptControl:
		if sc := ScriptControl(p[1]); sc.Valid() {
			s.script = sc
			s.respondAck(AckOK)
			return
		}
		s.respondAck(AckErrFail)

	case CmdActivePanModeSetting:
		if ps := PanModeSetting(binary.LittleEndian.Uint16(p)); ps.Valid() {
			s.panSetting = ps
			s.respondAck(AckOK)
			return
		}
		s.respondAck(AckErrFail)

	default:
		s.respondAck(AckErrNotSupported)
	}
}

// setAxis stores an actuation value and mirrors it into the IMU1 angles.
func (s *Simulator) setAxis(axis int, v uint16) {
	s.axes[axis] = v
	deg := 0.0
	if v != AxisRecenter {
		deg = (float64(v)-AxisMin)*180/(AxisMax-AxisMin) - 90
	}
	switch axis {
	case 0:
		s.telemetry.IMU1Angles.Pitch = deg
	case 1:
		s.telemetry.IMU1Angles.Roll = deg
	case 2:
		s.telemetry.IMU1Angles.Yaw = deg
	}
}
