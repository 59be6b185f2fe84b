// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package storm32

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// Record is one captured frame. A capture file is a CBOR sequence of records.
type Record struct {
	Time      time.Time `cbor:"0,keyasint"`
	Direction Direction `cbor:"1,keyasint"`
	Command   Command   `cbor:"2,keyasint"` // command of the exchange the frame belongs to
	Raw       []byte    `cbor:"3,keyasint"`
}

// Frame decodes the captured bytes. Responses are split the way the client
// read them, so a wrong length byte on a fixed-size response still decodes.
func (r *Record) Frame() (*Frame, error) {
	f, err := decodeCaptured(r.Raw)
	if f != nil {
		f.Timestamp = r.Time
	}
	return f, err
}

func decodeCaptured(raw []byte) (*Frame, error) {
	if len(raw) < HeaderSize || Direction(raw[0]) != DirectionOutgoing {
		return DecodeFrame(raw)
	}
	h, err := DecodeHeader(raw)
	if err != nil {
		return nil, err
	}
	spec, err := Lookup(h.Command)
	if err != nil {
		return DecodeFrame(raw)
	}

	want := HeaderSize + spec.Response.PayloadLength(h) + CRCSize
	if len(raw) < want {
		return nil, &FramingError{Reason: FramingShortRead, Got: len(raw), Want: want}
	}
	if len(raw) > want {
		return nil, &ProtocolError{Reason: ProtocolLengthMismatch, Command: h.Command, Expected: want, Got: len(raw)}
	}
	return DecodeBody(h, raw[HeaderSize:])
}

// Recorder is an Observer writing sent and received frames to a capture stream.
type Recorder struct {
	mu  sync.Mutex
	enc *cbor.Encoder
	err error
}

// NewRecorder creates a Recorder writing to w.
func NewRecorder(w io.Writer) (*Recorder, error) {
	mode, err := cbor.EncOptions{Time: cbor.TimeRFC3339Nano}.EncMode()
	if err != nil {
		return nil, fmt.Errorf("capture: %w", err)
	}
	return &Recorder{enc: mode.NewEncoder(w)}, nil
}

// Observe implements Observer.
func (r *Recorder) Observe(e Event) {
	var dir Direction
	switch e.Kind {
	case EventSent:
		dir = DirectionIncoming
	case EventReceived:
		dir = DirectionOutgoing
	default:
		return
	}
	// Errors are kept for Err.
	_ = r.Write(Record{Time: e.Time, Direction: dir, Command: e.Command, Raw: e.Raw})
}

// Write appends a record. The first write error is kept and returned by Err.
func (r *Recorder) Write(rec Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.err != nil {
		return r.err
	}
	if err := r.enc.Encode(rec); err != nil {
		r.err = fmt.Errorf("capture: %w", err)
	}
	return r.err
}

// Err returns the first write error, if any.
func (r *Recorder) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// ReadCapture reads every record of a capture stream.
func ReadCapture(rd io.Reader) ([]Record, error) {
	dec := cbor.NewDecoder(rd)

	var records []Record
	for {
		var rec Record
		err := dec.Decode(&rec)
		if errors.Is(err, io.EOF) {
			return records, nil
		}
		if err != nil {
			return records, fmt.Errorf("capture record %d: %w", len(records), err)
		}
		records = append(records, rec)
	}
}
