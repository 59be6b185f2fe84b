// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package storm32

import (
	"encoding/binary"
	"time"
)

// Header is the 3 byte frame header.
type Header struct {
	Direction Direction
	Length    uint8
	Command   Command
}

// Bytes returns the header as sent on the wire.
func (h Header) Bytes() []byte {
	return []byte{byte(h.Direction), h.Length, byte(h.Command)}
}

// Frame represents a decoded StorM32 frame
type Frame struct {
	Header
	Payload   []byte
	CRC       uint16
	Timestamp time.Time
}

// Raw returns the frame re-assembled as wire bytes, including the received CRC.
func (f *Frame) Raw() []byte {
	raw := make([]byte, 0, HeaderSize+len(f.Payload)+CRCSize)
	raw = append(raw, f.Header.Bytes()...)
	raw = append(raw, f.Payload...)
	return binary.LittleEndian.AppendUint16(raw, f.CRC)
}

// ValidCRC reports whether the received CRC matches header and payload.
func (f *Frame) ValidCRC() bool {
	return f.CRC == frameCRC(f.Header, f.Payload)
}

func frameCRC(h Header, payload []byte) uint16 {
	buf := make([]byte, 0, HeaderSize+len(payload))
	buf = append(buf, h.Bytes()...)
	buf = append(buf, payload...)
	return CalculateCRC(buf)
}

// EncodeFrame builds a complete wire frame.
// Returns an *EncodingError when the payload exceeds 255 bytes.
func EncodeFrame(dir Direction, cmd Command, payload []byte) ([]byte, error) {
	if len(payload) > MaxPayloadSize {
		return nil, &EncodingError{Command: cmd, Length: len(payload)}
	}

	buf := make([]byte, 0, HeaderSize+len(payload)+CRCSize)
	buf = append(buf, byte(dir), byte(len(payload)), byte(cmd))
	buf = append(buf, payload...)
	return binary.LittleEndian.AppendUint16(buf, CalculateCRC(buf)), nil
}

// DecodeHeader parses a response header.
// The start sign must be the controller's outgoing marker (0xFB).
func DecodeHeader(b []byte) (Header, error) {
	if len(b) < HeaderSize {
		return Header{}, &FramingError{Reason: FramingShortRead, Got: len(b), Want: HeaderSize}
	}
	if Direction(b[0]) != DirectionOutgoing {
		return Header{}, &FramingError{Reason: FramingBadDirection, Start: b[0]}
	}
	return Header{Direction: DirectionOutgoing, Length: b[1], Command: Command(b[2])}, nil
}

// DecodeBody parses payload and CRC following a header.
// body holds the payload followed by the 2 CRC bytes. On CRC mismatch the
// frame is returned together with a *ChecksumError.
func DecodeBody(h Header, body []byte) (*Frame, error) {
	if len(body) < CRCSize {
		return nil, &FramingError{Reason: FramingShortRead, Got: len(body), Want: CRCSize}
	}

	n := len(body) - CRCSize
	f := &Frame{
		Header:    h,
		Payload:   append([]byte(nil), body[:n]...),
		CRC:       binary.LittleEndian.Uint16(body[n:]),
		Timestamp: time.Now(),
	}

	if calculated := frameCRC(h, f.Payload); calculated != f.CRC {
		return f, &ChecksumError{Command: h.Command, Received: f.CRC, Calculated: calculated}
	}
	return f, nil
}

// DecodeFrame parses one complete frame in either direction.
// raw must hold exactly the header, the declared payload and the CRC.
func DecodeFrame(raw []byte) (*Frame, error) {
	if len(raw) < HeaderSize+CRCSize {
		return nil, &FramingError{Reason: FramingShortRead, Got: len(raw), Want: HeaderSize + CRCSize}
	}
	dir := Direction(raw[0])
	if dir != DirectionIncoming && dir != DirectionOutgoing {
		return nil, &FramingError{Reason: FramingBadDirection, Start: raw[0]}
	}

	h := Header{Direction: dir, Length: raw[1], Command: Command(raw[2])}
	want := HeaderSize + int(h.Length) + CRCSize
	if len(raw) < want {
		return nil, &FramingError{Reason: FramingShortRead, Got: len(raw), Want: want}
	}
	if len(raw) > want {
		return nil, &ProtocolError{Reason: ProtocolLengthMismatch, Command: h.Command, Expected: want, Got: len(raw)}
	}
	return DecodeBody(h, raw[HeaderSize:])
}
