// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Thermoquad/stormctl/pkg/storm32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "stormctl.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfig_Missing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.yml")

	c, err := LoadConfig(path, false)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), c)

	_, err = LoadConfig(path, true)
	assert.Error(t, err)
}

func TestLoadConfig_Empty(t *testing.T) {
	c, err := LoadConfig(writeConfig(t, ""), true)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), c)
}

func TestLoadConfig_Values(t *testing.T) {
	path := writeConfig(t, `
port: /dev/ttyUSB1
baud: 57600
timeout: 250ms
strict_crc: true
capture: /tmp/session.cbor
`)

	c, err := LoadConfig(path, true)
	require.NoError(t, err)
	assert.Equal(t, "/dev/ttyUSB1", c.Port)
	assert.Equal(t, 57600, c.Baud)
	assert.Equal(t, 250*time.Millisecond, c.Timeout.Duration)
	assert.True(t, c.StrictCRC)
	assert.Equal(t, "/tmp/session.cbor", c.Capture)
}

func TestLoadConfig_Invalid(t *testing.T) {
	c, err := LoadConfig(writeConfig(t, "port: /dev/ttyUSB0\nurl: ws://gimbal/ws\n"), true)
	require.NoError(t, err)
	assert.Error(t, c.Validate())

	_, err = LoadConfig(writeConfig(t, "timeout: soon\n"), true)
	assert.Error(t, err)

	c, err = LoadConfig(writeConfig(t, "baud: -1\n"), true)
	require.NoError(t, err)
	assert.Error(t, c.Validate())
}

func TestConfig_Override(t *testing.T) {
	c := DefaultConfig()
	c.Port = "/dev/ttyUSB1"
	c.Baud = 57600

	flags := Config{Port: "/dev/ttyACM0", Baud: 115200, Debug: true}
	changed := map[string]bool{"port": true, "debug": true}
	c.Override(flags, func(name string) bool { return changed[name] })

	assert.Equal(t, "/dev/ttyACM0", c.Port)
	assert.Equal(t, 57600, c.Baud)
	assert.True(t, c.Debug)
}

func TestConfig_OverrideTransport(t *testing.T) {
	c := DefaultConfig()
	c.Port = "/dev/ttyUSB1"
	c.Override(Config{URL: "ws://gimbal/ws"}, func(name string) bool { return name == "url" })
	assert.Empty(t, c.Port)
	assert.Equal(t, "ws://gimbal/ws", c.URL)
	assert.NoError(t, c.Validate())

	c.Override(Config{Port: "/dev/ttyACM0"}, func(name string) bool { return name == "port" })
	assert.Equal(t, "/dev/ttyACM0", c.Port)
	assert.Empty(t, c.URL)

	both := func(name string) bool { return name == "port" || name == "url" }
	c.Override(Config{Port: "/dev/ttyACM0", URL: "ws://gimbal/ws"}, both)
	assert.Error(t, c.Validate())
}

func TestRoot_FlagTransportOverridesConfigFile(t *testing.T) {
	path := writeConfig(t, "port: /dev/ttyUSB1\nbaud: 57600\n")

	o := &rootOptions{}
	root := newRootCmd(o)
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"--config", path, "--url", "ws://127.0.0.1:1/ws", "--dummy", "version"})

	require.NoError(t, root.Execute())
	assert.Empty(t, o.config.Port)
	assert.Equal(t, "ws://127.0.0.1:1/ws", o.config.URL)
	assert.Equal(t, 57600, o.config.Baud)
}

func TestConfig_ClientOptions(t *testing.T) {
	sim := storm32.NewSimulator()
	sim.CorruptNextCRC()

	c := DefaultConfig()
	client := storm32.NewClient(DummyConnection{sim}, c.ClientOptions()...)
	_, err := client.Version(t.Context())
	require.NoError(t, err, "checksum mismatches are diagnostic by default")

	sim.CorruptNextCRC()
	c.StrictCRC = true
	client = storm32.NewClient(DummyConnection{sim}, c.ClientOptions()...)
	_, err = client.Version(t.Context())
	var cerr *storm32.ChecksumError
	assert.ErrorAs(t, err, &cerr)
}
