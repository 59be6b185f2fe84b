// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package storm32

import (
	"errors"
	"fmt"
)

// Sentinel errors
var (
	ErrOutOfRange     = errors.New("value out of range")
	ErrUnknownCommand = errors.New("unknown command")
	ErrUnknownField   = errors.New("unknown live data field")
	ErrTimeout        = errors.New("timeout")
)

// FramingReason classifies a FramingError.
type FramingReason int

const (
	FramingShortRead FramingReason = iota
	FramingBadDirection
)

func (r FramingReason) String() string {
	switch r {
	case FramingShortRead:
		return "short read"
	case FramingBadDirection:
		return "bad direction"
	default:
		return fmt.Sprintf("framing reason %d", int(r))
	}
}

// FramingError reports a malformed frame envelope.
type FramingError struct {
	Reason FramingReason
	Got    int  // bytes available (ShortRead)
	Want   int  // bytes required (ShortRead)
	Start  byte // received start sign (BadDirection)
}

func (e *FramingError) Error() string {
	switch e.Reason {
	case FramingShortRead:
		return fmt.Sprintf("framing: short read: got %d bytes, expected %d", e.Got, e.Want)
	case FramingBadDirection:
		return fmt.Sprintf("framing: bad start sign 0x%02X (expected 0x%02X)", e.Start, byte(DirectionOutgoing))
	default:
		return "framing: " + e.Reason.String()
	}
}

// ChecksumError reports a CRC mismatch on a received frame.
type ChecksumError struct {
	Command    Command
	Received   uint16
	Calculated uint16
}

func (e *ChecksumError) Error() string {
	return fmt.Sprintf("checksum: CRC mismatch on %s: received 0x%04X, calculated 0x%04X",
		e.Command, e.Received, e.Calculated)
}

// ProtocolReason classifies a ProtocolError.
type ProtocolReason int

const (
	ProtocolUnexpectedCommand ProtocolReason = iota
	ProtocolMaskMismatch
	ProtocolLengthMismatch
)

func (r ProtocolReason) String() string {
	switch r {
	case ProtocolUnexpectedCommand:
		return "unexpected command"
	case ProtocolMaskMismatch:
		return "mask mismatch"
	case ProtocolLengthMismatch:
		return "length mismatch"
	default:
		return fmt.Sprintf("protocol reason %d", int(r))
	}
}

// ProtocolError reports a well-formed frame whose content does not match the request.
type ProtocolError struct {
	Reason   ProtocolReason
	Command  Command // command being decoded
	Expected int
	Got      int
}

func (e *ProtocolError) Error() string {
	switch e.Reason {
	case ProtocolUnexpectedCommand:
		return fmt.Sprintf("protocol: expected response to %s, got %s",
			Command(e.Expected), Command(e.Got))
	case ProtocolMaskMismatch:
		return fmt.Sprintf("protocol: %s echoed field mask 0x%04X, requested 0x%04X",
			e.Command, e.Got, e.Expected)
	case ProtocolLengthMismatch:
		return fmt.Sprintf("protocol: %s payload is %d bytes, expected %d",
			e.Command, e.Got, e.Expected)
	default:
		return "protocol: " + e.Reason.String()
	}
}

// ParameterMismatchError reports a GETPARAMETER response echoing a different id.
type ParameterMismatchError struct {
	Requested uint16
	Echoed    uint16
}

func (e *ParameterMismatchError) Error() string {
	return fmt.Sprintf("parameter: requested id %d, controller echoed %d", e.Requested, e.Echoed)
}

// AckError reports a non-zero ACK status.
type AckError struct {
	Command Command
	Status  AckStatus
}

func (e *AckError) Error() string {
	return fmt.Sprintf("ack: %s failed: %s (%d)", e.Command, e.Status, uint8(e.Status))
}

// TimeoutError reports a transport read that did not complete in time.
type TimeoutError struct {
	Command Command
	Stage   string // "header" or "body"
	Err     error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timeout: %s %s: %v", e.Command, e.Stage, e.Err)
}

func (e *TimeoutError) Unwrap() error { return e.Err }

// Is matches ErrTimeout even when the transport error does not wrap it.
func (e *TimeoutError) Is(target error) bool { return target == ErrTimeout }

// EncodingError reports a request that cannot be framed.
type EncodingError struct {
	Command Command
	Length  int
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("encoding: %s payload too large: %d bytes (max %d)", e.Command, e.Length, MaxPayloadSize)
}
