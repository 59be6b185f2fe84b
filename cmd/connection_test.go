// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"testing"
	"time"

	"github.com/Thermoquad/stormctl/pkg/storm32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.bug.st/serial"
)

// fakePort implements the serial.Port methods SerialConnection uses.
type fakePort struct {
	serial.Port

	rx       []byte
	flushErr error
	closeErr error
	flushed  bool
	closed   bool
}

func (p *fakePort) Read(b []byte) (int, error) {
	n := copy(b, p.rx)
	p.rx = p.rx[n:]
	return n, nil
}

func (p *fakePort) SetReadTimeout(time.Duration) error { return nil }

func (p *fakePort) ResetInputBuffer() error {
	p.flushed = true
	return p.flushErr
}

func (p *fakePort) Close() error {
	p.closed = true
	return p.closeErr
}

func TestSerialConnection_Close(t *testing.T) {
	port := &fakePort{}
	conn := &SerialConnection{port: port}

	require.NoError(t, conn.Close())
	assert.True(t, port.flushed)
	assert.True(t, port.closed)
}

func TestSerialConnection_CloseAfterFlushError(t *testing.T) {
	unplugged := errors.New("device unplugged")
	port := &fakePort{flushErr: unplugged}
	conn := &SerialConnection{port: port}

	err := conn.Close()
	assert.ErrorIs(t, err, unplugged)
	assert.True(t, port.closed, "port must be closed when the flush fails")
}

func TestSerialConnection_CloseJoinsErrors(t *testing.T) {
	flush, closing := errors.New("flush"), errors.New("close")
	port := &fakePort{flushErr: flush, closeErr: closing}

	err := (&SerialConnection{port: port}).Close()
	assert.ErrorIs(t, err, flush)
	assert.ErrorIs(t, err, closing)
}

func TestSerialConnection_ReadExact(t *testing.T) {
	port := &fakePort{rx: []byte{0xFB, 0x01, 0x96}}
	conn := &SerialConnection{port: port}

	b, err := conn.ReadExact(2, time.Second)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xFB, 0x01}, b)

	b, err = conn.ReadExact(2, 50*time.Millisecond)
	assert.ErrorIs(t, err, storm32.ErrTimeout)
	assert.Equal(t, []byte{0x96}, b)
}
