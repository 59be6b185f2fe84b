// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package storm32

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder_CapturesExchanges(t *testing.T) {
	var buf bytes.Buffer
	rec, err := NewRecorder(&buf)
	require.NoError(t, err)

	sim := NewSimulator()
	client := NewClient(sim, WithObserver(rec))

	_, err = client.Version(context.Background())
	require.NoError(t, err)
	require.NoError(t, client.SetPitch(context.Background(), AxisCenter))
	require.NoError(t, rec.Err())

	records, err := ReadCapture(&buf)
	require.NoError(t, err)
	require.Len(t, records, 4)

	wantDirs := []Direction{DirectionIncoming, DirectionOutgoing, DirectionIncoming, DirectionOutgoing}
	wantCmds := []Command{CmdGetVersion, CmdGetVersion, CmdSetPitch, CmdSetPitch}
	for i, r := range records {
		assert.Equal(t, wantDirs[i], r.Direction, "record %d", i)
		assert.Equal(t, wantCmds[i], r.Command, "record %d", i)
		assert.False(t, r.Time.IsZero(), "record %d", i)
	}

	req, err := records[0].Frame()
	require.NoError(t, err)
	assert.Equal(t, []byte{0xFA, 0x00, 0x01, 0x90, 0x31}, req.Raw())
	assert.Equal(t, records[0].Time, req.Timestamp)

	ack, err := records[3].Frame()
	require.NoError(t, err)
	assert.Equal(t, CmdAck, ack.Command)
}

func TestRecorder_WriteAndRead(t *testing.T) {
	var buf bytes.Buffer
	rec, err := NewRecorder(&buf)
	require.NoError(t, err)

	ts := time.Date(2025, 3, 14, 9, 26, 53, 589793000, time.UTC)
	raw := []byte{0xFB, 0x01, 0x96, 0x00, 0x0F, 0x60}
	require.NoError(t, rec.Write(Record{Time: ts, Direction: DirectionOutgoing, Command: CmdSetPanMode, Raw: raw}))

	records, err := ReadCapture(&buf)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.True(t, ts.Equal(records[0].Time))
	assert.Equal(t, CmdSetPanMode, records[0].Command)
	assert.Equal(t, raw, records[0].Raw)
}

func TestReadCapture_Empty(t *testing.T) {
	records, err := ReadCapture(bytes.NewReader(nil))
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestReadCapture_Truncated(t *testing.T) {
	var buf bytes.Buffer
	rec, err := NewRecorder(&buf)
	require.NoError(t, err)

	raw := []byte{0xFA, 0x00, 0x01, 0x90, 0x31}
	for range 2 {
		require.NoError(t, rec.Write(Record{Time: time.Now(), Direction: DirectionIncoming, Command: CmdGetVersion, Raw: raw}))
	}
	data := buf.Bytes()

	records, err := ReadCapture(bytes.NewReader(data[:len(data)-3]))
	require.Error(t, err)
	assert.Len(t, records, 1)
}

func TestRecord_FrameCorrupted(t *testing.T) {
	r := Record{Raw: []byte{0xFB, 0x01, 0x96, 0x00, 0x0F, 0x61}}
	f, err := r.Frame()

	var cerr *ChecksumError
	require.ErrorAs(t, err, &cerr)
	require.NotNil(t, f)
	assert.False(t, f.ValidCRC())
}

// versionResponse encodes a GETVERSION response whose header declares length.
func versionResponse(length uint8) []byte {
	raw := []byte{byte(DirectionOutgoing), length, byte(CmdGetVersion), 96, 0, 2, 0, 3, 0}
	crc := CalculateCRC(raw)
	return append(raw, byte(crc), byte(crc>>8))
}

func TestRecord_FrameWrongLengthByte(t *testing.T) {
	r := Record{Direction: DirectionOutgoing, Command: CmdGetVersion, Raw: versionResponse(2)}

	f, err := r.Frame()
	require.NoError(t, err)
	assert.Len(t, f.Payload, 6)
	assert.True(t, f.ValidCRC())
	assert.Equal(t, r.Raw, f.Raw())

	resp, err := DecodeResponse(NewGetVersion(), f)
	require.NoError(t, err)
	assert.Equal(t, uint16(96), resp.(VersionInfo).Firmware)
}

func TestRecorder_ReplaysWhatClientRead(t *testing.T) {
	var buf bytes.Buffer
	rec, err := NewRecorder(&buf)
	require.NoError(t, err)

	sim := NewSimulator()
	sim.SetSilent(true)
	sim.Inject(versionResponse(0))
	client := NewClient(sim, WithObserver(rec))

	_, err = client.Version(context.Background())
	require.NoError(t, err)

	records, err := ReadCapture(&buf)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, versionResponse(0), records[1].Raw)

	f, err := records[1].Frame()
	require.NoError(t, err)
	assert.Equal(t, []byte{96, 0, 2, 0, 3, 0}, f.Payload)
}
