// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package storm32

import (
	"time"

	"github.com/mdouchement/logger"
)

// EventKind identifies an exchange event.
type EventKind int

const (
	EventSent EventKind = iota
	EventReceived
	EventChecksumMismatch
	EventError
)

func (k EventKind) String() string {
	switch k {
	case EventSent:
		return "sent"
	case EventReceived:
		return "received"
	case EventChecksumMismatch:
		return "checksum_mismatch"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Event is emitted by the Client at each exchange stage.
type Event struct {
	Kind    EventKind
	Time    time.Time
	Command Command // command of the request being exchanged
	Raw     []byte  // wire bytes (Sent, Received)
	Err     error   // ChecksumMismatch, Error
	Elapsed time.Duration
}

// Observer receives exchange events. Observe is called synchronously while the
// exchange lock is held and must not call back into the Client.
type Observer interface {
	Observe(Event)
}

// ObserverFunc adapts a function to an Observer.
type ObserverFunc func(Event)

// Observe calls f(e).
func (f ObserverFunc) Observe(e Event) { f(e) }

// LogObserver traces frames at debug level and checksum mismatches at warning level.
type LogObserver struct {
	log logger.Logger
}

// NewLogObserver returns an Observer logging through l.
func NewLogObserver(l logger.Logger) *LogObserver {
	return &LogObserver{log: l}
}

// Observe implements Observer.
func (o *LogObserver) Observe(e Event) {
	switch e.Kind {
	case EventSent:
		o.log.Debug("-> " + e.Command.String() + " " + FormatHex(e.Raw))
	case EventReceived:
		o.log.Debug("<- " + e.Command.String() + " " + FormatHex(e.Raw) + " (" + e.Elapsed.Round(time.Microsecond).String() + ")")
	case EventChecksumMismatch:
		o.log.Warnf("%s: %v (frame kept)", e.Command, e.Err)
	case EventError:
		o.log.WithError(e.Err).Debug(e.Command.String() + " exchange failed")
	}
}
