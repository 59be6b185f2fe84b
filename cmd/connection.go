// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bufio"
	"context"
	"crypto/tls"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/Thermoquad/stormctl/pkg/storm32"
	"github.com/gorilla/websocket"
	"go.bug.st/serial"
	"golang.org/x/term"
)

// Connection is a byte channel to a controller. ReadExact drives request/response
// exchanges; Read is used by passive sniffers.
type Connection interface {
	storm32.Transport
	io.Reader
	io.Closer
}

// pollInterval bounds a single blocking read so ReadExact can honor its deadline.
const pollInterval = 20 * time.Millisecond

// SerialConnection wraps a serial port
type SerialConnection struct {
	port serial.Port
}

func (s *SerialConnection) Read(p []byte) (int, error) {
	return s.port.Read(p)
}

func (s *SerialConnection) Write(p []byte) error {
	_, err := s.port.Write(p)
	return err
}

// ReadExact reads n bytes or fails with storm32.ErrTimeout once timeout elapsed.
func (s *SerialConnection) ReadExact(n int, timeout time.Duration) ([]byte, error) {
	buf := make([]byte, n)
	deadline := time.Now().Add(timeout)

	got := 0
	for got < n {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return buf[:got], fmt.Errorf("serial: %d of %d bytes: %w", got, n, storm32.ErrTimeout)
		}
		if err := s.port.SetReadTimeout(min(remaining, pollInterval)); err != nil {
			return buf[:got], err
		}

		m, err := s.port.Read(buf[got:])
		if err != nil {
			return buf[:got], err
		}
		got += m
	}
	return buf, nil
}

// Close discards unread input and closes the port. The port is closed even
// when the flush fails.
func (s *SerialConnection) Close() error {
	return errors.Join(s.port.ResetInputBuffer(), s.port.Close())
}

// ErrConnectionClosed is returned when reading from a closed WebSocket connection
var ErrConnectionClosed = errors.New("websocket connection closed")

// WebSocketConnection wraps a WebSocket bridge carrying raw serial bytes in binary messages
type WebSocketConnection struct {
	conn      *websocket.Conn
	buf       []byte
	bufOffset int
	closed    bool // Track if connection has failed/closed
}

func (w *WebSocketConnection) Read(p []byte) (int, error) {
	if w.closed {
		return 0, ErrConnectionClosed
	}

	if w.bufOffset < len(w.buf) {
		n := copy(p, w.buf[w.bufOffset:])
		w.bufOffset += n
		return n, nil
	}

	if err := w.next(); err != nil {
		return 0, err
	}
	n := copy(p, w.buf)
	w.bufOffset = n
	return n, nil
}

// next blocks until the next binary message and buffers it.
func (w *WebSocketConnection) next() error {
	for {
		messageType, data, err := w.conn.ReadMessage()
		if err != nil {
			var nerr net.Error
			if !errors.As(err, &nerr) || !nerr.Timeout() {
				w.closed = true
			}
			return err
		}

		// Only binary messages carry controller bytes
		if messageType != websocket.BinaryMessage {
			continue
		}

		w.buf = data
		w.bufOffset = 0
		return nil
	}
}

func (w *WebSocketConnection) Write(p []byte) error {
	return w.conn.WriteMessage(websocket.BinaryMessage, p)
}

// ReadExact reads n bytes across as many messages as needed.
//
// gorilla/websocket does not recover from a read deadline, so a timeout leaves
// the connection unusable and later calls fail with ErrConnectionClosed.
func (w *WebSocketConnection) ReadExact(n int, timeout time.Duration) ([]byte, error) {
	if w.closed {
		return nil, ErrConnectionClosed
	}
	if err := w.conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return nil, err
	}
	defer w.conn.SetReadDeadline(time.Time{})

	out := make([]byte, 0, n)
	for len(out) < n {
		if w.bufOffset >= len(w.buf) {
			if err := w.next(); err != nil {
				var nerr net.Error
				if errors.As(err, &nerr) && nerr.Timeout() {
					w.closed = true
					return out, fmt.Errorf("websocket: %d of %d bytes: %w", len(out), n, storm32.ErrTimeout)
				}
				return out, err
			}
		}
		m := min(n-len(out), len(w.buf)-w.bufOffset)
		out = append(out, w.buf[w.bufOffset:w.bufOffset+m]...)
		w.bufOffset += m
	}
	return out, nil
}

func (w *WebSocketConnection) Close() error {
	return w.conn.Close()
}

// DummyConnection talks to an in-memory simulated controller
type DummyConnection struct {
	*storm32.Simulator
}

// Read drains pending simulator output. The simulator only answers requests,
// so an empty queue reads as io.EOF.
func (d DummyConnection) Read(p []byte) (int, error) {
	n := d.Pending()
	if n == 0 {
		return 0, io.EOF
	}
	b, err := d.ReadExact(min(n, len(p)), 0)
	return copy(p, b), err
}

// OpenSerialConnection opens a serial port connection
func OpenSerialConnection(portName string, baudRate int) (*SerialConnection, error) {
	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", portName, err)
	}

	// Sniffers poll so they can notice cancellation
	if err = port.SetReadTimeout(pollInterval); err != nil {
		port.Close()
		return nil, err
	}

	// Drop bytes left over from a previous session
	if err = port.ResetInputBuffer(); err != nil {
		port.Close()
		return nil, err
	}

	return &SerialConnection{port: port}, nil
}

// OpenWebSocketConnection opens a WebSocket connection with HTTP Basic auth
func OpenWebSocketConnection(ctx context.Context, wsURL, username, password string, skipSSLVerify bool) (*WebSocketConnection, error) {
	u, err := url.Parse(wsURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}

	switch u.Scheme {
	case "ws", "wss":
		// OK
	default:
		return nil, fmt.Errorf("unsupported URL scheme: %s (use ws:// or wss://)", u.Scheme)
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	if u.Scheme == "wss" {
		dialer.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: skipSSLVerify,
		}
	}

	headers := http.Header{}
	if username != "" && password != "" {
		credentials := base64.StdEncoding.EncodeToString([]byte(username + ":" + password))
		headers.Set("Authorization", "Basic "+credentials)
	}

	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	conn, resp, err := dialer.DialContext(ctx, wsURL, headers)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("WebSocket connection failed (HTTP %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("WebSocket connection failed: %w", err)
	}

	return &WebSocketConnection{conn: conn}, nil
}

// GetPassword retrieves password from environment or prompts user
func GetPassword() (string, error) {
	if pw := os.Getenv("STORMCTL_PASSWORD"); pw != "" {
		return pw, nil
	}

	fmt.Fprint(os.Stderr, "Password: ")

	passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		// Fallback to regular input if terminal functions fail
		reader := bufio.NewReader(os.Stdin)
		password, err := reader.ReadString('\n')
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		fmt.Fprintln(os.Stderr)
		return strings.TrimSpace(password), nil
	}

	fmt.Fprintln(os.Stderr)
	return string(passwordBytes), nil
}

// OpenConnection opens a serial, WebSocket or simulated connection based on settings
func (o *rootOptions) OpenConnection(ctx context.Context) (Connection, string, error) {
	cfg := o.config

	switch {
	case o.dummy:
		if o.simulator == nil {
			o.simulator = storm32.NewSimulator()
		}
		return DummyConnection{o.simulator}, "Simulator", nil

	case cfg.URL != "":
		password := ""
		if cfg.Username != "" {
			var err error
			password, err = GetPassword()
			if err != nil {
				return nil, "", err
			}
		}

		conn, err := OpenWebSocketConnection(ctx, cfg.URL, cfg.Username, password, cfg.NoSSLVerify)
		if err != nil {
			return nil, "", err
		}
		return conn, fmt.Sprintf("WebSocket: %s", cfg.URL), nil

	case cfg.Port != "":
		conn, err := OpenSerialConnection(cfg.Port, cfg.Baud)
		if err != nil {
			return nil, "", err
		}
		return conn, fmt.Sprintf("Serial: %s @ %d baud", cfg.Port, cfg.Baud), nil
	}

	return nil, "", errors.New("one of --port, --url or --dummy must be specified")
}
