// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package storm32

import "fmt"

// Shape describes how the length of a command's response payload is known.
type Shape int

const (
	// ShapeFixed responses always carry Length payload bytes.
	ShapeFixed Shape = iota
	// ShapeAck responses are an ACK frame with one status byte.
	ShapeAck
	// ShapeHeaderDeclared responses carry the length declared in the header.
	ShapeHeaderDeclared
)

// ResponseShape is a Shape plus its fixed length where applicable.
type ResponseShape struct {
	Kind   Shape
	Length int
}

// Fixed returns a fixed-length response shape.
func Fixed(n int) ResponseShape { return ResponseShape{Kind: ShapeFixed, Length: n} }

// Response shapes without a fixed length argument
var (
	AckShape            = ResponseShape{Kind: ShapeAck, Length: 1}
	HeaderDeclaredShape = ResponseShape{Kind: ShapeHeaderDeclared}
)

// PayloadLength resolves the number of payload bytes to read after header h.
func (s ResponseShape) PayloadLength(h Header) int {
	switch s.Kind {
	case ShapeHeaderDeclared:
		return int(h.Length)
	default:
		return s.Length
	}
}

func (s ResponseShape) String() string {
	switch s.Kind {
	case ShapeFixed:
		return fmt.Sprintf("Fixed(%d)", s.Length)
	case ShapeAck:
		return "Ack"
	case ShapeHeaderDeclared:
		return "HeaderDeclared"
	default:
		return fmt.Sprintf("Shape(%d)", int(s.Kind))
	}
}

// Response is a typed, decoded response payload.
type Response interface {
	Command() Command
}

type decodeFunc func(req Request, payload []byte) (Response, error)

// CommandSpec is the static description of one command id.
type CommandSpec struct {
	ID   Command
	Name string
	// RequestLength is the request payload length in bytes.
	RequestLength int
	Response      ResponseShape

	decode decodeFunc
}

var registry = map[Command]CommandSpec{
	CmdGetVersion:           {CmdGetVersion, "GETVERSION", 0, Fixed(versionSize), decodeVersion},
	CmdGetVersionStr:        {CmdGetVersionStr, "GETVERSIONSTR", 0, Fixed(versionStringsSize), decodeVersionStrings},
	CmdGetParameter:         {CmdGetParameter, "GETPARAMETER", 2, Fixed(parameterSize), decodeParameter},
	CmdSetParameter:         {CmdSetParameter, "SETPARAMETER", 4, AckShape, decodeAck},
	CmdGetData:              {CmdGetData, "GETDATA", 1, Fixed(TelemetrySize), decodeTelemetry},
	CmdGetDataFields:        {CmdGetDataFields, "GETDATAFIELDS", 2, HeaderDeclaredShape, decodeLiveData},
	CmdSetPitch:             {CmdSetPitch, "SETPITCH", 2, AckShape, decodeAck},
	CmdSetRoll:              {CmdSetRoll, "SETROLL", 2, AckShape, decodeAck},
	CmdSetYaw:               {CmdSetYaw, "SETYAW", 2, AckShape, decodeAck},
	CmdSetPanMode:           {CmdSetPanMode, "SETPANMODE", 1, AckShape, decodeAck},
	CmdSetStandby:           {CmdSetStandby, "SETSTANDBY", 1, AckShape, decodeAck},
	CmdDoCamera:             {CmdDoCamera, "DOCAMERA", 6, AckShape, decodeAck},
	CmdSetScriptControl:     {CmdSetScriptControl, "SETSCRIPTCONTROL", 6, AckShape, decodeAck},
	CmdSetAngle:             {CmdSetAngle, "SETANGLE", angleCommandSize, AckShape, decodeAck},
	CmdSetPitchRollYaw:      {CmdSetPitchRollYaw, "SETPITCHROLLYAW", 6, AckShape, decodeAck},
	CmdSetPWMOut:            {CmdSetPWMOut, "SETPWMOUT", 2, AckShape, decodeAck},
	CmdRestoreParameter:     {CmdRestoreParameter, "RESTOREPARAMETER", 2, AckShape, decodeAck},
	CmdRestoreAllParameter:  {CmdRestoreAllParameter, "RESTOREALLPARAMETER", 0, AckShape, decodeAck},
	CmdActivePanModeSetting: {CmdActivePanModeSetting, "ACTIVEPANMODESETTING", 2, AckShape, decodeAck},
	CmdAck:                  {CmdAck, "ACK", 0, AckShape, decodeAck},
}

// Lookup returns the registry entry for c.
func Lookup(c Command) (CommandSpec, error) {
	spec, ok := registry[c]
	if !ok {
		return CommandSpec{}, fmt.Errorf("command 0x%02X: %w", uint8(c), ErrUnknownCommand)
	}
	return spec, nil
}

// DecodeResponse decodes a received frame as the response to req.
//
// A frame carrying a different command id fails with a ProtocolError. An ACK
// frame received for a command that expects data is still decoded: a failing
// status is returned as an *AckError. A failing ACK for an Ack-shaped command
// is returned as an *AckError together with the AckStatus.
func DecodeResponse(req Request, f *Frame) (Response, error) {
	spec, err := Lookup(req.Command)
	if err != nil {
		return nil, err
	}

	got := f.Command
	wantAck := spec.Response.Kind == ShapeAck

	switch {
	case got == CmdAck && !wantAck:
		status, err := decodeAck(req, f.Payload)
		if err != nil {
			return nil, err
		}
		if s := status.(AckStatus); s != AckOK {
			return nil, &AckError{Command: req.Command, Status: s}
		}
		return nil, &ProtocolError{Reason: ProtocolUnexpectedCommand, Command: req.Command,
			Expected: int(req.Command), Got: int(got)}
	case wantAck && got != CmdAck:
		return nil, &ProtocolError{Reason: ProtocolUnexpectedCommand, Command: req.Command,
			Expected: int(CmdAck), Got: int(got)}
	case !wantAck && got != req.Command:
		return nil, &ProtocolError{Reason: ProtocolUnexpectedCommand, Command: req.Command,
			Expected: int(req.Command), Got: int(got)}
	}

	resp, err := spec.decode(req, f.Payload)
	if err != nil {
		return nil, err
	}
	if s, ok := resp.(AckStatus); ok && s != AckOK {
		return s, &AckError{Command: req.Command, Status: s}
	}
	return resp, nil
}

func checkLength(cmd Command, payload []byte, want int) error {
	if len(payload) != want {
		return &ProtocolError{Reason: ProtocolLengthMismatch, Command: cmd, Expected: want, Got: len(payload)}
	}
	return nil
}
