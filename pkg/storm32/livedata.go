// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package storm32

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// LiveField is a GETDATAFIELDS selection bitmask.
type LiveField uint16

// Live data fields, in wire order
const (
	LiveStatus           LiveField = 0x0001
	LiveTimes            LiveField = 0x0002
	LiveIMU1Gyro         LiveField = 0x0004
	LiveIMU1Acc          LiveField = 0x0008
	LiveIMU1R            LiveField = 0x0010
	LiveIMU1Angles       LiveField = 0x0020
	LivePIDControl       LiveField = 0x0040
	LiveInputs           LiveField = 0x0080
	LiveIMU2Angles       LiveField = 0x0100
	LiveMagAngles        LiveField = 0x0200
	LiveStorM32Link      LiveField = 0x0400
	LiveIMUAccConfidence LiveField = 0x0800
)

// liveFieldInfo maps a field onto a run of telemetry words.
// words == 0 marks a field whose layout is not supported.
type liveFieldInfo struct {
	field LiveField
	name  string
	word  int
	words int
}

var liveFields = []liveFieldInfo{
	{LiveStatus, "STATUS", wordState, 5},
	{LiveTimes, "TIMES", wordTimestamp, 2},
	{LiveIMU1Gyro, "IMU1_GYRO", wordIMU1Gyro, 3},
	{LiveIMU1Acc, "IMU1_ACC", wordIMU1Acc, 3},
	{LiveIMU1R, "IMU1_R", wordIMU1Rotation, 3},
	{LiveIMU1Angles, "IMU1_ANGLES", wordIMU1Angles, 3},
	{LivePIDControl, "PID_CONTROL", wordPIDControl, 3},
	{LiveInputs, "INPUTS", wordInputs, 3},
	{LiveIMU2Angles, "IMU2_ANGLES", wordIMU2Angles, 3},
	{LiveMagAngles, "MAG_ANGLES", wordMagAngles, 2},
	{LiveStorM32Link, "STORM32_LINK", 0, 0},
	{LiveIMUAccConfidence, "IMU_ACC_CONFIDENCE", wordAccConfidence, 1},
}

// SupportedLiveFields is the union of every field this package can decode.
var SupportedLiveFields = func() LiveField {
	var m LiveField
	for _, f := range liveFields {
		if f.words > 0 {
			m |= f.field
		}
	}
	return m
}()

// String returns the selected field names joined by '|'.
func (m LiveField) String() string {
	if m == 0 {
		return "NONE"
	}
	var parts []string
	rest := m
	for _, f := range liveFields {
		if m&f.field != 0 {
			parts = append(parts, f.name)
			rest &^= f.field
		}
	}
	if rest != 0 {
		parts = append(parts, fmt.Sprintf("0x%04X", uint16(rest)))
	}
	return strings.Join(parts, "|")
}

// Validate checks that the mask is non-empty and only selects supported fields.
func (m LiveField) Validate() error {
	if m == 0 {
		return fmt.Errorf("empty field mask: %w", ErrUnknownField)
	}
	if rest := m &^ SupportedLiveFields; rest != 0 {
		return fmt.Errorf("field mask 0x%04X selects unsupported %s: %w", uint16(m), rest, ErrUnknownField)
	}
	return nil
}

// PayloadLength is the GETDATAFIELDS response payload length for the mask:
// the 2 byte echoed mask plus the width of every selected field.
func (m LiveField) PayloadLength() int {
	n := 2
	for _, f := range liveFields {
		if m&f.field != 0 {
			n += 2 * f.words
		}
	}
	return n
}

// ParseLiveFields parses field names into a mask.
// Names are case-insensitive; "all" selects every supported field.
func ParseLiveFields(names []string) (LiveField, error) {
	var m LiveField
	for _, name := range names {
		want := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(name), "-", "_"))
		if want == "ALL" {
			m |= SupportedLiveFields
			continue
		}
		found := false
		for _, f := range liveFields {
			if f.name == want {
				m |= f.field
				found = true
				break
			}
		}
		if !found {
			return 0, fmt.Errorf("field %q: %w", name, ErrUnknownField)
		}
	}
	return m, m.Validate()
}

// LiveFieldNames lists the names of the supported fields in wire order.
func LiveFieldNames() []string {
	var names []string
	for _, f := range liveFields {
		if f.words > 0 {
			names = append(names, strings.ToLower(f.name))
		}
	}
	return names
}

// LiveData is a GETDATAFIELDS response. Only the groups selected by Fields
// are populated; the rest of the embedded Telemetry is zero.
type LiveData struct {
	Fields LiveField
	Telemetry
}

// Command returns CmdGetDataFields.
func (*LiveData) Command() Command { return CmdGetDataFields }

// Has reports whether the response carries field f.
func (d *LiveData) Has(f LiveField) bool { return d.Fields&f == f }

// MarshalBinary encodes the response payload: echoed mask followed by the selected fields.
func (d *LiveData) MarshalBinary() ([]byte, error) {
	if err := d.Fields.Validate(); err != nil {
		return nil, err
	}
	w := d.Telemetry.words()
	buf := make([]byte, 0, d.Fields.PayloadLength())
	buf = binary.LittleEndian.AppendUint16(buf, uint16(d.Fields))
	for _, f := range liveFields {
		if d.Fields&f.field == 0 {
			continue
		}
		for i := f.word; i < f.word+f.words; i++ {
			buf = binary.LittleEndian.AppendUint16(buf, uint16(w[i]))
		}
	}
	return buf, nil
}

func decodeLiveData(req Request, payload []byte) (Response, error) {
	var requested LiveField
	if len(req.Payload) >= 2 {
		requested = LiveField(binary.LittleEndian.Uint16(req.Payload))
	}
	if len(payload) < 2 {
		return nil, &ProtocolError{Reason: ProtocolLengthMismatch, Command: CmdGetDataFields,
			Expected: requested.PayloadLength(), Got: len(payload)}
	}

	echoed := LiveField(binary.LittleEndian.Uint16(payload))
	if echoed != requested {
		return nil, &ProtocolError{Reason: ProtocolMaskMismatch, Command: CmdGetDataFields,
			Expected: int(requested), Got: int(echoed)}
	}
	if err := echoed.Validate(); err != nil {
		return nil, err
	}
	if err := checkLength(CmdGetDataFields, payload, echoed.PayloadLength()); err != nil {
		return nil, err
	}

	var w [telemetryWords]int16
	off := 2
	for _, f := range liveFields {
		if echoed&f.field == 0 {
			continue
		}
		for i := f.word; i < f.word+f.words; i++ {
			w[i] = int16(binary.LittleEndian.Uint16(payload[off:]))
			off += 2
		}
	}
	return &LiveData{Fields: echoed, Telemetry: telemetryFromWords(&w)}, nil
}
