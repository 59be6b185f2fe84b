// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package storm32

import (
	"encoding/binary"
	"time"
)

// StreamDecoder extracts frames from an unsynchronized byte stream.
//
// It hunts for a start sign, waits for the declared length and accepts the
// candidate only if its CRC matches. On a mismatch it slides one byte and
// hunts again, so a start sign inside a payload cannot desynchronize it.
type StreamDecoder struct {
	buf    []byte
	accept map[Direction]bool

	skipped   uint64
	crcErrors uint64
	frames    uint64
}

// NewStreamDecoder creates a decoder accepting frames with the given start
// signs. With no argument it accepts controller responses (0xFB) only.
func NewStreamDecoder(dirs ...Direction) *StreamDecoder {
	if len(dirs) == 0 {
		dirs = []Direction{DirectionOutgoing}
	}
	d := &StreamDecoder{
		buf:    make([]byte, 0, 2*MaxFrameSize),
		accept: make(map[Direction]bool, len(dirs)),
	}
	for _, dir := range dirs {
		d.accept[dir] = true
	}
	return d
}

// Reset drops buffered bytes and counters
func (d *StreamDecoder) Reset() {
	d.buf = d.buf[:0]
	d.skipped = 0
	d.crcErrors = 0
	d.frames = 0
}

// Feed appends p and returns every complete frame found so far.
func (d *StreamDecoder) Feed(p []byte) []*Frame {
	d.buf = append(d.buf, p...)
	var frames []*Frame

	for {
		start := d.indexStart()
		if start < 0 {
			d.skipped += uint64(len(d.buf))
			d.buf = d.buf[:0]
			return frames
		}
		if start > 0 {
			d.skipped += uint64(start)
			d.buf = append(d.buf[:0], d.buf[start:]...)
		}
		if len(d.buf) < HeaderSize {
			return frames
		}

		total := HeaderSize + int(d.buf[1]) + CRCSize
		if len(d.buf) < total {
			return frames
		}

		h := Header{Direction: Direction(d.buf[0]), Length: d.buf[1], Command: Command(d.buf[2])}
		payload := d.buf[HeaderSize : total-CRCSize]
		crc := binary.LittleEndian.Uint16(d.buf[total-CRCSize : total])
		if crc != frameCRC(h, payload) {
			d.crcErrors++
			d.skipped++
			d.buf = append(d.buf[:0], d.buf[1:]...)
			continue
		}

		frames = append(frames, &Frame{
			Header:    h,
			Payload:   append([]byte(nil), payload...),
			CRC:       crc,
			Timestamp: time.Now(),
		})
		d.frames++
		d.buf = append(d.buf[:0], d.buf[total:]...)
	}
}

// DecodeByte feeds a single byte. It returns the last frame completed by it, or nil.
func (d *StreamDecoder) DecodeByte(b byte) *Frame {
	frames := d.Feed([]byte{b})
	if len(frames) == 0 {
		return nil
	}
	return frames[len(frames)-1]
}

// Frames returns the number of frames decoded.
func (d *StreamDecoder) Frames() uint64 { return d.frames }

// Skipped returns the number of bytes discarded while hunting for frames.
func (d *StreamDecoder) Skipped() uint64 { return d.skipped }

// CRCErrors returns the number of candidate frames rejected by CRC.
func (d *StreamDecoder) CRCErrors() uint64 { return d.crcErrors }

// Pending returns the number of buffered bytes not yet decoded.
func (d *StreamDecoder) Pending() int { return len(d.buf) }

func (d *StreamDecoder) indexStart() int {
	for i, b := range d.buf {
		if d.accept[Direction(b)] {
			return i
		}
	}
	return -1
}
