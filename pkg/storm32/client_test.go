// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package storm32

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================
// Test Helpers
// ============================================================

// eventLog collects observer events
type eventLog struct {
	events []Event
}

func (l *eventLog) Observe(e Event) { l.events = append(l.events, e) }

func (l *eventLog) kinds() []EventKind {
	var kinds []EventKind
	for _, e := range l.events {
		kinds = append(kinds, e.Kind)
	}
	return kinds
}

// stubTransport records writes and replays a fixed response stream
type stubTransport struct {
	written  bytes.Buffer
	response []byte
	reads    []int
	writeErr error
}

func (s *stubTransport) Write(p []byte) error {
	if s.writeErr != nil {
		return s.writeErr
	}
	s.written.Write(p)
	return nil
}

func (s *stubTransport) ReadExact(n int, _ time.Duration) ([]byte, error) {
	s.reads = append(s.reads, n)
	if len(s.response) < n {
		return nil, ErrTimeout
	}
	b := s.response[:n]
	s.response = s.response[n:]
	return b, nil
}

func encodeResponse(t *testing.T, cmd Command, payload []byte) []byte {
	t.Helper()
	raw, err := EncodeFrame(DirectionOutgoing, cmd, payload)
	require.NoError(t, err)
	return raw
}

// ============================================================
// Client Exchange Tests
// ============================================================

func TestClient_Version(t *testing.T) {
	sim := NewSimulator()
	c := NewClient(sim)

	v, err := c.Version(context.Background())
	require.NoError(t, err)
	assert.Equal(t, VersionInfo{Firmware: 96, SetupLayout: 2, BoardCapabilities: 3}, v)

	vs, err := c.VersionStrings(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "v0.96", vs.Version)
	assert.Equal(t, "StorM32-Sim", vs.Name)
	assert.Equal(t, "BGC v1.31", vs.Board)
}

func TestClient_WritesExactFrame(t *testing.T) {
	st := &stubTransport{response: encodeResponse(t, CmdAck, []byte{0})}
	c := NewClient(st)

	require.NoError(t, c.SetPitch(context.Background(), 1500))
	assert.Equal(t, []byte{0xFA, 0x02, 0x0A, 0xDC, 0x05, 0x45, 0x6D}, st.written.Bytes())
	assert.Equal(t, []int{HeaderSize, 1 + CRCSize}, st.reads)
}

func TestClient_Parameters(t *testing.T) {
	sim := NewSimulator()
	c := NewClient(sim)
	ctx := context.Background()

	v, err := c.Parameter(ctx, 12)
	require.NoError(t, err)
	assert.Equal(t, uint16(120), v)

	require.NoError(t, c.SetParameter(ctx, 12, 777))
	v, err = c.Parameter(ctx, 12)
	require.NoError(t, err)
	assert.Equal(t, uint16(777), v)

	require.NoError(t, c.RestoreParameter(ctx, 12))
	v, _ = sim.Parameter(12)
	assert.Equal(t, uint16(120), v)

	require.NoError(t, c.SetParameter(ctx, 1, 1))
	require.NoError(t, c.SetParameter(ctx, 2, 2))
	require.NoError(t, c.RestoreAllParameters(ctx))
	v1, _ := sim.Parameter(1)
	v2, _ := sim.Parameter(2)
	assert.Equal(t, []uint16{10, 20}, []uint16{v1, v2})

	_, err = c.Parameter(ctx, 9999)
	var aerr *AckError
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, AckErrFail, aerr.Status)
	assert.Equal(t, CmdGetParameter, aerr.Command)
}

func TestClient_ParameterMismatch(t *testing.T) {
	st := &stubTransport{response: encodeResponse(t, CmdGetParameter, []byte{0x07, 0x00, 0x01, 0x00})}
	c := NewClient(st)

	_, err := c.Parameter(context.Background(), 8)
	var merr *ParameterMismatchError
	require.ErrorAs(t, err, &merr)
	assert.Equal(t, uint16(8), merr.Requested)
	assert.Equal(t, uint16(7), merr.Echoed)
}

func TestClient_Telemetry(t *testing.T) {
	sim := NewSimulator()
	tel, err := DecodeTelemetry(goldenTelemetry)
	require.NoError(t, err)
	sim.SetTelemetry(*tel)

	c := NewClient(sim)
	got, err := c.Telemetry(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateNormal, got.State)
	assert.Equal(t, int16(1500), got.CycleTime)
	assert.InDelta(t, -25.85, got.IMU1Angles.Pitch, 1e-9)
	assert.InDelta(t, 1.3779, got.AccConfidence, 1e-9)
	// the simulator advances its timestamp on each GETDATA
	assert.Equal(t, int16(12346), got.Timestamp)
}

func TestClient_LiveData(t *testing.T) {
	sim := NewSimulator()
	c := NewClient(sim)

	d, err := c.LiveData(context.Background(), LiveStatus|LiveIMU1Angles)
	require.NoError(t, err)
	assert.True(t, d.Has(LiveStatus))
	assert.True(t, d.Has(LiveIMU1Angles))
	assert.False(t, d.Has(LiveTimes))
	assert.Equal(t, StateNormal, d.State)

	_, err = c.LiveData(context.Background(), LiveStorM32Link)
	require.ErrorIs(t, err, ErrUnknownField)
	assert.Len(t, sim.Requests(), 1, "invalid masks must not reach the wire")
}

func TestClient_LiveDataMaskMismatch(t *testing.T) {
	st := &stubTransport{response: encodeResponse(t, CmdGetDataFields, []byte{0x02, 0x00, 0x39, 0x30, 0xDC, 0x05})}
	c := NewClient(st)

	_, err := c.LiveData(context.Background(), LiveStatus)
	var perr *ProtocolError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, ProtocolMaskMismatch, perr.Reason)
	// header-declared length: the whole frame was consumed
	assert.Equal(t, []int{HeaderSize, 6 + CRCSize}, st.reads)
}

func TestClient_ControlCommands(t *testing.T) {
	sim := NewSimulator()
	c := NewClient(sim)
	ctx := context.Background()

	require.NoError(t, c.SetPitch(ctx, 1100))
	require.NoError(t, c.SetRoll(ctx, 0))
	require.NoError(t, c.SetYaw(ctx, 2300))
	st := sim.State()
	assert.Equal(t, [3]uint16{1100, 0, 2300}, [3]uint16{st.Pitch, st.Roll, st.Yaw})

	require.NoError(t, c.SetPitchRollYaw(ctx, 1500, 1600, 1700))
	require.NoError(t, c.SetPWMOut(ctx, 900))
	require.NoError(t, c.SetPanMode(ctx, PanModePanPanPan))
	require.NoError(t, c.SetStandby(ctx, StandbyOn))
	require.NoError(t, c.DoCamera(ctx, CameraIRShutter))
	require.NoError(t, c.SetScriptControl(ctx, ScriptCase1))
	require.NoError(t, c.SetActivePanModeSetting(ctx, PanModeSetting2))

	st = sim.State()
	assert.Equal(t, SimulatorState{
		Pitch: 1500, Roll: 1600, Yaw: 1700,
		PWMOut:         900,
		PanMode:        PanModePanPanPan,
		Standby:        StandbyOn,
		Camera:         CameraIRShutter,
		Script:         ScriptCase1,
		PanModeSetting: PanModeSetting2,
	}, st)

	require.NoError(t, c.SetAngle(ctx, AngleCommand{Pitch: 10, Roll: -5, Yaw: 30}))
	tel, err := c.Telemetry(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 10, tel.IMU1Angles.Pitch, 1e-9)
	assert.Equal(t, StateStandby, tel.State)
}

func TestClient_InvalidRequestNeverSent(t *testing.T) {
	sim := NewSimulator()
	c := NewClient(sim)

	err := c.SetPitch(context.Background(), 2400)
	require.ErrorIs(t, err, ErrOutOfRange)
	err = c.SetPitchRollYaw(context.Background(), 1500, 1500, 600)
	require.ErrorIs(t, err, ErrOutOfRange)
	assert.Empty(t, sim.Requests())
}

// ============================================================
// Client Error Path Tests
// ============================================================

func TestClient_AckError(t *testing.T) {
	sim := NewSimulator()
	sim.FailNext(AckErrAccessDenied)
	c := NewClient(sim)

	err := c.SetStandby(context.Background(), StandbyOn)
	var aerr *AckError
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, AckErrAccessDenied, aerr.Status)
	assert.Contains(t, err.Error(), "SERIALRCCMD_ACK_ERR_ACCESS_DENIED")
}

func TestClient_Timeout(t *testing.T) {
	sim := NewSimulator()
	sim.SetSilent(true)
	c := NewClient(sim, WithTimeout(10*time.Millisecond))

	_, err := c.Version(context.Background())
	require.ErrorIs(t, err, ErrTimeout)
	var terr *TimeoutError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, "header", terr.Stage)
	assert.Equal(t, CmdGetVersion, terr.Command)
}

func TestClient_BodyTimeout(t *testing.T) {
	st := &stubTransport{response: []byte{0xFB, 0x06, 0x01, 0x60}}
	c := NewClient(st)

	_, err := c.Version(context.Background())
	var terr *TimeoutError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, "body", terr.Stage)
}

func TestClient_BadDirection(t *testing.T) {
	st := &stubTransport{response: []byte{0xFA, 0x00, 0x01, 0x90, 0x31}}
	c := NewClient(st)

	_, err := c.Version(context.Background())
	var ferr *FramingError
	require.ErrorAs(t, err, &ferr)
	assert.Equal(t, FramingBadDirection, ferr.Reason)
}

func TestClient_UnknownResponseCommand(t *testing.T) {
	st := &stubTransport{response: []byte{0xFB, 0x00, 0x42}}
	c := NewClient(st)

	_, err := c.Version(context.Background())
	var perr *ProtocolError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, ProtocolUnexpectedCommand, perr.Reason)
	assert.Equal(t, 0x42, perr.Got)
}

func TestClient_ChecksumDiagnostic(t *testing.T) {
	sim := NewSimulator()
	sim.CorruptNextCRC()
	log := &eventLog{}
	c := NewClient(sim, WithObserver(log))

	v, err := c.Version(context.Background())
	require.NoError(t, err, "diagnostic mode keeps the frame")
	assert.Equal(t, uint16(96), v.Firmware)
	assert.Equal(t, []EventKind{EventSent, EventReceived, EventChecksumMismatch}, log.kinds())

	var cerr *ChecksumError
	require.ErrorAs(t, log.events[2].Err, &cerr)
	assert.NotEqual(t, cerr.Received, cerr.Calculated)
}

func TestClient_ChecksumStrict(t *testing.T) {
	sim := NewSimulator()
	sim.CorruptNextCRC()
	log := &eventLog{}
	c := NewClient(sim, WithChecksumPolicy(ChecksumStrict), WithObserver(log))

	_, err := c.Version(context.Background())
	var cerr *ChecksumError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, CmdGetVersion, cerr.Command)
	assert.Equal(t, []EventKind{EventSent, EventReceived, EventError}, log.kinds())

	// the stream is still aligned for the next exchange
	_, err = c.Version(context.Background())
	require.NoError(t, err)
}

func TestClient_RequestCorruptedInTransit(t *testing.T) {
	sim := NewSimulator()
	raw, err := NewGetVersion().Encode()
	require.NoError(t, err)
	raw[len(raw)-1] ^= 0x01
	require.NoError(t, sim.Write(raw))

	resp, err := sim.ReadExact(HeaderSize+1+CRCSize, time.Millisecond)
	require.NoError(t, err)
	f, err := DecodeFrame(resp)
	require.NoError(t, err)
	assert.Equal(t, CmdAck, f.Command)
	assert.Equal(t, []byte{byte(AckErrCRC)}, f.Payload)
}

func TestClient_CancelledContext(t *testing.T) {
	sim := NewSimulator()
	c := NewClient(sim)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Version(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, sim.Requests())
}

func TestClient_WriteError(t *testing.T) {
	boom := errors.New("port closed")
	c := NewClient(&stubTransport{writeErr: boom})

	err := c.SetPanMode(context.Background(), PanModeOff)
	require.ErrorIs(t, err, boom)
}

func TestClient_ObserverEvents(t *testing.T) {
	sim := NewSimulator()
	log := &eventLog{}
	stats := NewStatistics()
	c := NewClient(sim, WithObserver(log), WithObserver(stats))

	_, err := c.Version(context.Background())
	require.NoError(t, err)
	require.Len(t, log.events, 2)

	sent, received := log.events[0], log.events[1]
	assert.Equal(t, []byte{0xFA, 0x00, 0x01, 0x90, 0x31}, sent.Raw)
	assert.Equal(t, CmdGetVersion, received.Command)
	assert.Equal(t, HeaderSize+6+CRCSize, len(received.Raw))
	assert.False(t, received.Time.Before(sent.Time))
	assert.Zero(t, stats.Snapshot().ChecksumErrors)
}
