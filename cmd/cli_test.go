// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bytes"
	"errors"
	"path/filepath"
	"testing"

	"github.com/Thermoquad/stormctl/pkg/storm32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runCLI executes stormctl against sim and returns its standard output.
func runCLI(t *testing.T, sim *storm32.Simulator, args ...string) (string, error) {
	t.Helper()

	o := &rootOptions{simulator: sim}
	root := newRootCmd(o)

	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(append([]string{"--config=", "--dummy"}, args...))

	err := root.Execute()
	return out.String(), err
}

//////////////////////////////////////////////////////////////
// Queries
//////////////////////////////////////////////////////////////

func TestCLI_Version(t *testing.T) {
	out, err := runCLI(t, storm32.NewSimulator(), "version")
	require.NoError(t, err)

	assert.Contains(t, out, "Connection:    Simulator")
	assert.Contains(t, out, "Firmware:      96")
	assert.Contains(t, out, "Capabilities:  0x0003")
	assert.Contains(t, out, "Name:          StorM32-Sim")
}

func TestCLI_Param(t *testing.T) {
	sim := storm32.NewSimulator()

	out, err := runCLI(t, sim, "param", "set", "3", "0x20")
	require.NoError(t, err)
	assert.Equal(t, "Parameter 3 set to 32\n", out)

	v, ok := sim.Parameter(3)
	require.True(t, ok)
	assert.EqualValues(t, 32, v)

	out, err = runCLI(t, sim, "param", "get", "3", "4")
	require.NoError(t, err)
	assert.Equal(t, "Parameter 3 = 32 (0x0020)\nParameter 4 = 40 (0x0028)\n", out)

	_, err = runCLI(t, sim, "param", "restore", "3")
	require.NoError(t, err)
	v, _ = sim.Parameter(3)
	assert.EqualValues(t, 30, v)
}

func TestCLI_Param_InvalidID(t *testing.T) {
	sim := storm32.NewSimulator()

	_, err := runCLI(t, sim, "param", "get", "70000")
	require.Error(t, err)
	assert.Empty(t, sim.Requests())
}

func TestCLI_AckError(t *testing.T) {
	sim := storm32.NewSimulator()
	sim.FailNext(storm32.AckErrAccessDenied)

	_, err := runCLI(t, sim, "param", "set", "1", "5")

	var aerr *storm32.AckError
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, storm32.AckErrAccessDenied, aerr.Status)
}

func TestCLI_Data(t *testing.T) {
	out, err := runCLI(t, storm32.NewSimulator(), "data")
	require.NoError(t, err)
	assert.NotContains(t, out, "Warning:")
}

func TestCLI_Fields(t *testing.T) {
	sim := storm32.NewSimulator()

	out, err := runCLI(t, sim, "fields", "status", "imu1_angles")
	require.NoError(t, err)
	assert.Contains(t, out, "STATUS|IMU1_ANGLES")

	reqs := sim.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, storm32.CmdGetDataFields, reqs[0].Command)
	assert.Equal(t, []byte{0x21, 0x00}, reqs[0].Payload)
}

func TestCLI_Fields_List(t *testing.T) {
	sim := storm32.NewSimulator()

	out, err := runCLI(t, sim, "fields", "--list")
	require.NoError(t, err)
	assert.Contains(t, out, "IMU_ACC_CONFIDENCE")
	assert.NotContains(t, out, "STORM32_LINK")
	assert.Empty(t, sim.Requests())
}

func TestCLI_Fields_Unsupported(t *testing.T) {
	sim := storm32.NewSimulator()

	_, err := runCLI(t, sim, "fields", "storm32_link")
	require.Error(t, err)
	assert.Empty(t, sim.Requests())
}

//////////////////////////////////////////////////////////////
// Control commands
//////////////////////////////////////////////////////////////

func TestCLI_Axis(t *testing.T) {
	sim := storm32.NewSimulator()

	out, err := runCLI(t, sim, "pitch", "--deg", "45")
	require.NoError(t, err)
	assert.Equal(t, "pitch set to 1900\n", out)

	_, err = runCLI(t, sim, "yaw", "center")
	require.NoError(t, err)

	_, err = runCLI(t, sim, "pwm", "1200")
	require.NoError(t, err)

	state := sim.State()
	assert.EqualValues(t, 1900, state.Pitch)
	assert.EqualValues(t, 1500, state.Yaw)
	assert.EqualValues(t, 1200, state.PWMOut)
}

func TestCLI_Axis_OutOfRange(t *testing.T) {
	sim := storm32.NewSimulator()

	_, err := runCLI(t, sim, "roll", "2400")
	require.ErrorIs(t, err, storm32.ErrOutOfRange)

	_, err = runCLI(t, sim, "pitch", "--deg", "90")
	require.ErrorIs(t, err, storm32.ErrOutOfRange)

	assert.Empty(t, sim.Requests())
}

func TestCLI_PitchRollYaw(t *testing.T) {
	sim := storm32.NewSimulator()

	out, err := runCLI(t, sim, "pitch-roll-yaw", "1400", "center", "recenter")
	require.NoError(t, err)
	assert.Equal(t, "pitch=1400 roll=1500 yaw=0\n", out)

	state := sim.State()
	assert.EqualValues(t, 1400, state.Pitch)
	assert.EqualValues(t, 1500, state.Roll)
	assert.EqualValues(t, 0, state.Yaw)
}

func TestCLI_Modes(t *testing.T) {
	sim := storm32.NewSimulator()

	out, err := runCLI(t, sim, "pan-mode", "hold_hold_pan")
	require.NoError(t, err)
	assert.Equal(t, "pan-mode set to HOLD_HOLD_PAN\n", out)

	_, err = runCLI(t, sim, "standby", "on")
	require.NoError(t, err)
	_, err = runCLI(t, sim, "camera", "ir_shutter")
	require.NoError(t, err)
	_, err = runCLI(t, sim, "script", "case_2")
	require.NoError(t, err)
	_, err = runCLI(t, sim, "active-pan-setting", "setting_1")
	require.NoError(t, err)

	state := sim.State()
	assert.Equal(t, storm32.PanModeHoldHoldPan, state.PanMode)
	assert.Equal(t, storm32.StandbyOn, state.Standby)
	assert.Equal(t, storm32.CameraIRShutter, state.Camera)
	assert.Equal(t, storm32.ScriptCase2, state.Script)
	assert.Equal(t, storm32.PanModeSetting1, state.PanModeSetting)
}

func TestCLI_Modes_InvalidName(t *testing.T) {
	sim := storm32.NewSimulator()

	_, err := runCLI(t, sim, "standby", "maybe")
	require.Error(t, err)
	assert.Empty(t, sim.Requests())
}

//////////////////////////////////////////////////////////////
// Link diagnostics
//////////////////////////////////////////////////////////////

func TestCLI_Ping(t *testing.T) {
	out, err := runCLI(t, storm32.NewSimulator(), "ping", "--count", "2", "--interval", "0s")
	require.NoError(t, err)
	assert.Contains(t, out, "2 pings sent, 2 responses received, 0% loss")
	assert.Contains(t, out, "Valid Exchanges:        2 (100.0%)")
}

func TestCLI_Ping_Timeout(t *testing.T) {
	sim := storm32.NewSimulator()
	sim.SetSilent(true)

	out, err := runCLI(t, sim, "--timeout", "10ms", "ping", "--count", "1", "--interval", "0s")

	var exit *ExitError
	require.ErrorAs(t, err, &exit)
	assert.Equal(t, 1, exit.Code)
	assert.Contains(t, out, "Timeouts:               1")
}

func TestCLI_Ping_InvalidCount(t *testing.T) {
	_, err := runCLI(t, storm32.NewSimulator(), "ping", "--count", "0")
	require.Error(t, err)

	var exit *ExitError
	assert.False(t, errors.As(err, &exit))
}

func TestCLI_PacketTest(t *testing.T) {
	out, err := runCLI(t, storm32.NewSimulator(), "packet_test", "--wait", "1s")
	require.NoError(t, err)
	assert.Contains(t, out, "Sent: FA 00 01 90 31")
	assert.Contains(t, out, "SUCCESS: Received valid frame")
	assert.Contains(t, out, "Command: GETVERSION (0x01)")
	assert.Contains(t, out, "Length: 6 bytes")
}

func TestCLI_PacketTest_Listen(t *testing.T) {
	_, err := runCLI(t, storm32.NewSimulator(), "packet_test", "--listen", "--wait", "50ms")

	var exit *ExitError
	require.ErrorAs(t, err, &exit)
	assert.Equal(t, 1, exit.Code)
}

func TestCLI_Monitor_Text(t *testing.T) {
	sim := storm32.NewSimulator()

	out, err := runCLI(t, sim, "monitor", "--tui=false", "--count", "3", "--rate", "1000", "--fields", "status,times")
	require.NoError(t, err)
	assert.Contains(t, out, "Request: GETDATAFIELDS STATUS|TIMES")
	assert.Contains(t, out, "Total Exchanges:        3")
	assert.Len(t, sim.Requests(), 3)
}

func TestCLI_CaptureReplay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.cbor")
	sim := storm32.NewSimulator()

	_, err := runCLI(t, sim, "--capture", path, "version")
	require.NoError(t, err)
	_, err = runCLI(t, sim, "--capture", path, "yaw", "1600")
	require.NoError(t, err)

	out, err := runCLI(t, sim, "replay", path)
	require.NoError(t, err)
	assert.Contains(t, out, "GETVERSION (0x01)")
	assert.Contains(t, out, "Firmware: 96, Setup layout: 2, Board capabilities: 0x0003")
	assert.Contains(t, out, `Name: "StorM32-Sim"`)
	assert.Contains(t, out, "SETYAW (0x0C)")
	assert.Contains(t, out, "Status: SERIALRCCMD_ACK_OK (0)")
	assert.NotContains(t, out, "Error:")
}

func TestCLI_NoConnection(t *testing.T) {
	root := newRootCmd(&rootOptions{})
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"--config=", "version"})

	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--dummy")
}
