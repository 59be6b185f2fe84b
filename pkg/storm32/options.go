// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package storm32

import (
	"time"

	"github.com/mdouchement/logger"
)

// ChecksumPolicy controls how a received CRC mismatch is handled.
type ChecksumPolicy int

const (
	// ChecksumDiagnostic reports the mismatch to observers and decodes the frame anyway.
	ChecksumDiagnostic ChecksumPolicy = iota
	// ChecksumStrict fails the exchange with a *ChecksumError.
	ChecksumStrict
)

func (p ChecksumPolicy) String() string {
	if p == ChecksumStrict {
		return "strict"
	}
	return "diagnostic"
}

// DefaultTimeout is the per-read timeout used when none is configured.
const DefaultTimeout = time.Second

// Config holds client configuration
type Config struct {
	Timeout        time.Duration
	ChecksumPolicy ChecksumPolicy
	Observers      []Observer
}

// Option configures a Client
type Option func(*Config)

func defaultConfig() Config {
	return Config{
		Timeout:        DefaultTimeout,
		ChecksumPolicy: ChecksumDiagnostic,
	}
}

// WithTimeout sets the timeout of each header and body read.
func WithTimeout(d time.Duration) Option {
	return func(c *Config) {
		if d > 0 {
			c.Timeout = d
		}
	}
}

// WithChecksumPolicy selects strict or diagnostic CRC handling.
func WithChecksumPolicy(p ChecksumPolicy) Option {
	return func(c *Config) {
		c.ChecksumPolicy = p
	}
}

// WithObserver adds an exchange observer.
func WithObserver(o Observer) Option {
	return func(c *Config) {
		if o != nil {
			c.Observers = append(c.Observers, o)
		}
	}
}

// WithLogger traces frames through l.
func WithLogger(l logger.Logger) Option {
	return WithObserver(NewLogObserver(l))
}
