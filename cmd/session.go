// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/Thermoquad/stormctl/pkg/storm32"
	"github.com/mdouchement/logger"
)

// session is an open connection with a configured client on top of it.
type session struct {
	conn     Connection
	info     string
	client   *storm32.Client
	log      logger.Logger
	capture  *os.File
	recorder *storm32.Recorder
}

// openSession opens the connection and builds a client logging through the
// command logger. Extra observers see every exchange.
func (o *rootOptions) openSession(ctx context.Context, observers ...storm32.Observer) (*session, error) {
	conn, info, err := o.OpenConnection(ctx)
	if err != nil {
		return nil, err
	}

	s := &session{conn: conn, info: info, log: o.log}
	if s.log == nil {
		s.log = logger.LogWith(ctx)
	}

	opts := o.config.ClientOptions()
	opts = append(opts, storm32.WithLogger(s.log))

	if o.config.Capture != "" {
		s.capture, err = os.OpenFile(o.config.Capture, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("capture: %w", err)
		}
		s.recorder, err = storm32.NewRecorder(s.capture)
		if err != nil {
			s.Close()
			return nil, err
		}
		opts = append(opts, storm32.WithObserver(s.recorder))
	}

	for _, obs := range observers {
		opts = append(opts, storm32.WithObserver(obs))
	}

	s.client = storm32.NewClient(conn, opts...)
	return s, nil
}

// Close releases the connection and flushes the capture file.
func (s *session) Close() error {
	var errs []error
	if s.recorder != nil {
		if err := s.recorder.Err(); err != nil {
			errs = append(errs, err)
		}
	}
	if s.capture != nil {
		errs = append(errs, s.capture.Close())
	}
	errs = append(errs, s.conn.Close())
	return errors.Join(errs...)
}
