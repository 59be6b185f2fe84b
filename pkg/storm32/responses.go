// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package storm32

import (
	"bytes"
	"encoding/binary"
	"strings"
)

// Response payload sizes
const (
	versionSize        = 6
	versionStringSize  = 16
	versionStringsSize = 3 * versionStringSize
	parameterSize      = 4
)

// VersionInfo is the GETVERSION response.
type VersionInfo struct {
	Firmware          uint16
	SetupLayout       uint16
	BoardCapabilities uint16
}

// Command returns CmdGetVersion.
func (VersionInfo) Command() Command { return CmdGetVersion }

// VersionStrings is the GETVERSIONSTR response.
type VersionStrings struct {
	Version string
	Name    string
	Board   string
}

// Command returns CmdGetVersionStr.
func (VersionStrings) Command() Command { return CmdGetVersionStr }

// ParameterValue is the GETPARAMETER response.
type ParameterValue struct {
	ID    uint16
	Value uint16
}

// Command returns CmdGetParameter.
func (ParameterValue) Command() Command { return CmdGetParameter }

func decodeAck(req Request, payload []byte) (Response, error) {
	if err := checkLength(CmdAck, payload, 1); err != nil {
		return nil, err
	}
	return AckStatus(payload[0]), nil
}

func decodeVersion(req Request, payload []byte) (Response, error) {
	if err := checkLength(CmdGetVersion, payload, versionSize); err != nil {
		return nil, err
	}
	return VersionInfo{
		Firmware:          binary.LittleEndian.Uint16(payload[0:2]),
		SetupLayout:       binary.LittleEndian.Uint16(payload[2:4]),
		BoardCapabilities: binary.LittleEndian.Uint16(payload[4:6]),
	}, nil
}

func decodeVersionStrings(req Request, payload []byte) (Response, error) {
	if err := checkLength(CmdGetVersionStr, payload, versionStringsSize); err != nil {
		return nil, err
	}
	return VersionStrings{
		Version: cString(payload[0:16]),
		Name:    cString(payload[16:32]),
		Board:   cString(payload[32:48]),
	}, nil
}

// cString decodes a NUL-padded field, replacing invalid UTF-8.
func cString(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return strings.ToValidUTF8(string(b), "\uFFFD")
}

func decodeParameter(req Request, payload []byte) (Response, error) {
	if err := checkLength(CmdGetParameter, payload, parameterSize); err != nil {
		return nil, err
	}
	p := ParameterValue{
		ID:    binary.LittleEndian.Uint16(payload[0:2]),
		Value: binary.LittleEndian.Uint16(payload[2:4]),
	}
	if len(req.Payload) >= 2 {
		if requested := binary.LittleEndian.Uint16(req.Payload); requested != p.ID {
			return nil, &ParameterMismatchError{Requested: requested, Echoed: p.ID}
		}
	}
	return p, nil
}

func decodeTelemetry(req Request, payload []byte) (Response, error) {
	if err := checkLength(CmdGetData, payload, TelemetrySize); err != nil {
		return nil, err
	}
	t, err := DecodeTelemetry(payload)
	if err != nil {
		return nil, err
	}
	return t, nil
}
