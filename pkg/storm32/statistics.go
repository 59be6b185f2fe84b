// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package storm32

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// Statistics tracks exchange statistics and error rates.
// It is safe for concurrent use, so it can be installed as a client Observer.
type Statistics struct {
	mu sync.Mutex

	StartTime      time.Time
	LastUpdateTime time.Time

	// Counters
	TotalExchanges  uint64
	ValidExchanges  uint64
	ChecksumErrors  uint64
	Timeouts        uint64
	FramingErrors   uint64
	ProtocolErrors  uint64
	AckErrors       uint64
	OtherErrors     uint64
	AnomalousValues uint64

	// Checksum mismatches accepted in diagnostic mode. The exchange itself
	// is counted by Update, so these are not errors.
	ChecksumWarnings uint64

	// Round trip of the last successful exchange
	LastRoundTrip time.Duration

	// Rates (calculated)
	ExchangeRate float64 // exchanges/sec
	ErrorRate    float64 // errors/sec
}

// NewStatistics creates a new statistics tracker
func NewStatistics() *Statistics {
	now := time.Now()
	return &Statistics{
		StartTime:      now,
		LastUpdateTime: now,
	}
}

// Update records one exchange outcome and its validation errors
func (s *Statistics) Update(err error, validationErrors []ValidationError) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.TotalExchanges++
	s.LastUpdateTime = time.Now()

	if err != nil {
		var (
			cerr *ChecksumError
			ferr *FramingError
			perr *ProtocolError
			merr *ParameterMismatchError
			aerr *AckError
		)
		switch {
		case errors.As(err, &cerr):
			s.ChecksumErrors++
		case errors.Is(err, ErrTimeout):
			s.Timeouts++
		case errors.As(err, &ferr):
			s.FramingErrors++
		case errors.As(err, &perr), errors.As(err, &merr):
			s.ProtocolErrors++
		case errors.As(err, &aerr):
			s.AckErrors++
		default:
			s.OtherErrors++
		}
		return
	}

	if len(validationErrors) > 0 {
		s.AnomalousValues++
		return
	}
	s.ValidExchanges++
}

// Observe records checksum mismatches that diagnostic mode lets through and
// the round trip of received frames. It never counts exchanges.
func (s *Statistics) Observe(e Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch e.Kind {
	case EventChecksumMismatch:
		s.ChecksumWarnings++
	case EventReceived:
		s.LastRoundTrip = e.Elapsed
	}
}

// Errors returns the total number of failed exchanges
func (s *Statistics) Errors() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errors()
}

func (s *Statistics) errors() uint64 {
	return s.ChecksumErrors + s.Timeouts + s.FramingErrors + s.ProtocolErrors + s.AckErrors + s.OtherErrors
}

// CalculateRates calculates exchange and error rates
func (s *Statistics) CalculateRates() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calculateRates()
}

func (s *Statistics) calculateRates() {
	elapsed := time.Since(s.StartTime).Seconds()
	if elapsed > 0 {
		s.ExchangeRate = float64(s.TotalExchanges) / elapsed
		s.ErrorRate = float64(s.errors()) / elapsed
	}
}

// String returns a formatted statistics summary
func (s *Statistics) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calculateRates()

	percent := func(n uint64) float64 {
		if s.TotalExchanges == 0 {
			return 0
		}
		return float64(n) * 100.0 / float64(s.TotalExchanges)
	}

	elapsed := time.Since(s.StartTime)

	result := fmt.Sprintf("=== Statistics (%.0f seconds) ===\n", elapsed.Seconds())
	result += fmt.Sprintf("Total Exchanges: %8d\n", s.TotalExchanges)
	result += fmt.Sprintf("Valid Exchanges: %8d (%.1f%%)\n", s.ValidExchanges, percent(s.ValidExchanges))

	if s.ChecksumErrors > 0 {
		result += fmt.Sprintf("CRC Errors:      %8d (%.1f%%)\n", s.ChecksumErrors, percent(s.ChecksumErrors))
	}
	if s.Timeouts > 0 {
		result += fmt.Sprintf("Timeouts:        %8d (%.1f%%)\n", s.Timeouts, percent(s.Timeouts))
	}
	if s.FramingErrors > 0 {
		result += fmt.Sprintf("Framing Errors:  %8d (%.1f%%)\n", s.FramingErrors, percent(s.FramingErrors))
	}
	if s.ProtocolErrors > 0 {
		result += fmt.Sprintf("Protocol Errors: %8d (%.1f%%)\n", s.ProtocolErrors, percent(s.ProtocolErrors))
	}
	if s.AckErrors > 0 {
		result += fmt.Sprintf("ACK Errors:      %8d (%.1f%%)\n", s.AckErrors, percent(s.AckErrors))
	}
	if s.OtherErrors > 0 {
		result += fmt.Sprintf("Other Errors:    %8d (%.1f%%)\n", s.OtherErrors, percent(s.OtherErrors))
	}
	if s.AnomalousValues > 0 {
		result += fmt.Sprintf("Anomalous Data:  %8d (%.1f%%)\n", s.AnomalousValues, percent(s.AnomalousValues))
	}
	if s.ChecksumWarnings > 0 {
		result += fmt.Sprintf("CRC Warnings:    %8d (%.1f%%)\n", s.ChecksumWarnings, percent(s.ChecksumWarnings))
	}

	result += fmt.Sprintf("Exchange Rate:   %8.1f exch/sec\n", s.ExchangeRate)
	result += fmt.Sprintf("Error Rate:      %8.1f errors/sec\n", s.ErrorRate)
	if s.LastRoundTrip > 0 {
		result += fmt.Sprintf("Last Round Trip: %8s\n", s.LastRoundTrip.Round(time.Microsecond))
	}
	result += "================================\n"

	return result
}

// Reset resets all statistics counters
func (s *Statistics) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	s.StartTime = now
	s.LastUpdateTime = now
	s.TotalExchanges = 0
	s.ValidExchanges = 0
	s.ChecksumErrors = 0
	s.Timeouts = 0
	s.FramingErrors = 0
	s.ProtocolErrors = 0
	s.AckErrors = 0
	s.OtherErrors = 0
	s.AnomalousValues = 0
	s.ChecksumWarnings = 0
	s.LastRoundTrip = 0
	s.ExchangeRate = 0
	s.ErrorRate = 0
}

// Snapshot returns a copy of the counters with rates calculated.
func (s *Statistics) Snapshot() Statistics {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calculateRates()
	return Statistics{
		StartTime:        s.StartTime,
		LastUpdateTime:   s.LastUpdateTime,
		TotalExchanges:   s.TotalExchanges,
		ValidExchanges:   s.ValidExchanges,
		ChecksumErrors:   s.ChecksumErrors,
		Timeouts:         s.Timeouts,
		FramingErrors:    s.FramingErrors,
		ProtocolErrors:   s.ProtocolErrors,
		AckErrors:        s.AckErrors,
		OtherErrors:      s.OtherErrors,
		AnomalousValues:  s.AnomalousValues,
		ChecksumWarnings: s.ChecksumWarnings,
		LastRoundTrip:    s.LastRoundTrip,
		ExchangeRate:     s.ExchangeRate,
		ErrorRate:        s.ErrorRate,
	}
}
