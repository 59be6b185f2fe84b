// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package storm32

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// Transport is a blocking byte channel to the controller.
//
// ReadExact returns exactly n bytes or an error. A read that does not
// complete within timeout must return an error wrapping ErrTimeout.
type Transport interface {
	Write(p []byte) error
	ReadExact(n int, timeout time.Duration) ([]byte, error)
}

// Client drives synchronous request/response exchanges with a StorM32 controller.
// Exchanges are serialized; a Client is safe for concurrent use.
type Client struct {
	mu        sync.Mutex
	transport Transport
	config    Config
}

// NewClient creates a Client over t.
func NewClient(t Transport, opts ...Option) *Client {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Client{transport: t, config: cfg}
}

func (c *Client) emit(e Event) {
	if len(c.config.Observers) == 0 {
		return
	}
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	for _, o := range c.config.Observers {
		o.Observe(e)
	}
}

// Exchange sends req and decodes the controller's response.
func (c *Client) Exchange(ctx context.Context, req Request) (Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	resp, err := c.exchange(ctx, req)
	if err != nil {
		c.emit(Event{Kind: EventError, Command: req.Command, Err: err})
	}
	return resp, err
}

func (c *Client) exchange(ctx context.Context, req Request) (Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	raw, err := req.Encode()
	if err != nil {
		return nil, err
	}

	start := time.Now()
	c.emit(Event{Kind: EventSent, Time: start, Command: req.Command, Raw: raw})
	if err := c.transport.Write(raw); err != nil {
		return nil, fmt.Errorf("write %s: %w", req.Command, err)
	}

	frame, err := c.readFrame(req.Command)
	if err != nil {
		return nil, err
	}
	c.emit(Event{Kind: EventReceived, Command: req.Command, Raw: frame.Raw(), Elapsed: time.Since(start)})

	if !frame.ValidCRC() {
		cerr := &ChecksumError{Command: frame.Command, Received: frame.CRC, Calculated: frameCRC(frame.Header, frame.Payload)}
		if c.config.ChecksumPolicy == ChecksumStrict {
			return nil, cerr
		}
		c.emit(Event{Kind: EventChecksumMismatch, Command: req.Command, Err: cerr})
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return DecodeResponse(req, frame)
}

// readFrame reads the header, resolves the payload length from the echoed
// command id and reads payload and CRC.
func (c *Client) readFrame(cmd Command) (*Frame, error) {
	hb, err := c.transport.ReadExact(HeaderSize, c.config.Timeout)
	if err != nil {
		return nil, readError(cmd, "header", err)
	}
	h, err := DecodeHeader(hb)
	if err != nil {
		return nil, err
	}

	spec, err := Lookup(h.Command)
	if err != nil {
		return nil, &ProtocolError{Reason: ProtocolUnexpectedCommand, Command: cmd, Expected: int(cmd), Got: int(h.Command)}
	}

	body, err := c.transport.ReadExact(spec.Response.PayloadLength(h)+CRCSize, c.config.Timeout)
	if err != nil {
		return nil, readError(cmd, "body", err)
	}

	frame, err := DecodeBody(h, body)
	var cerr *ChecksumError
	if err != nil && !errors.As(err, &cerr) {
		return nil, err
	}
	return frame, nil
}

func readError(cmd Command, stage string, err error) error {
	var terr *TimeoutError
	if errors.As(err, &terr) {
		return err
	}
	if errors.Is(err, ErrTimeout) {
		return &TimeoutError{Command: cmd, Stage: stage, Err: err}
	}
	return fmt.Errorf("read %s %s: %w", cmd, stage, err)
}

func (c *Client) ack(ctx context.Context, req Request, reqErr error) error {
	if reqErr != nil {
		return reqErr
	}
	_, err := c.Exchange(ctx, req)
	return err
}

// Version queries firmware version, setup layout and board capabilities.
func (c *Client) Version(ctx context.Context) (VersionInfo, error) {
	resp, err := c.Exchange(ctx, NewGetVersion())
	if err != nil {
		return VersionInfo{}, fmt.Errorf("get_version: %w", err)
	}
	return resp.(VersionInfo), nil
}

// VersionStrings queries the version, name and board strings.
func (c *Client) VersionStrings(ctx context.Context) (VersionStrings, error) {
	resp, err := c.Exchange(ctx, NewGetVersionStrings())
	if err != nil {
		return VersionStrings{}, fmt.Errorf("get_version_str: %w", err)
	}
	return resp.(VersionStrings), nil
}

// Parameter reads parameter id.
func (c *Client) Parameter(ctx context.Context, id uint16) (uint16, error) {
	resp, err := c.Exchange(ctx, NewGetParameter(id))
	if err != nil {
		return 0, fmt.Errorf("get_parameter: %w", err)
	}
	return resp.(ParameterValue).Value, nil
}

// SetParameter writes parameter id.
func (c *Client) SetParameter(ctx context.Context, id, value uint16) error {
	if err := c.ack(ctx, NewSetParameter(id, value), nil); err != nil {
		return fmt.Errorf("set_parameter: %w", err)
	}
	return nil
}

// RestoreParameter restores parameter id to its stored value.
func (c *Client) RestoreParameter(ctx context.Context, id uint16) error {
	if err := c.ack(ctx, NewRestoreParameter(id), nil); err != nil {
		return fmt.Errorf("restore_parameter: %w", err)
	}
	return nil
}

// RestoreAllParameters restores every parameter to its stored value.
func (c *Client) RestoreAllParameters(ctx context.Context) error {
	if err := c.ack(ctx, NewRestoreAllParameters(), nil); err != nil {
		return fmt.Errorf("restore_all_parameter: %w", err)
	}
	return nil
}

// Telemetry reads the GETDATA snapshot.
func (c *Client) Telemetry(ctx context.Context) (*Telemetry, error) {
	req, err := NewGetData(0)
	if err != nil {
		return nil, err
	}
	resp, err := c.Exchange(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("get_data: %w", err)
	}
	return resp.(*Telemetry), nil
}

// LiveData reads the fields selected by mask.
func (c *Client) LiveData(ctx context.Context, mask LiveField) (*LiveData, error) {
	req, err := NewGetDataFields(mask)
	if err != nil {
		return nil, fmt.Errorf("get_data_fields: %w", err)
	}
	resp, err := c.Exchange(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("get_data_fields: %w", err)
	}
	return resp.(*LiveData), nil
}

// SetPitch sets the pitch actuation value.
func (c *Client) SetPitch(ctx context.Context, value uint16) error {
	req, err := NewSetPitch(value)
	if err := c.ack(ctx, req, err); err != nil {
		return fmt.Errorf("set_pitch: %w", err)
	}
	return nil
}

// SetRoll sets the roll actuation value.
func (c *Client) SetRoll(ctx context.Context, value uint16) error {
	req, err := NewSetRoll(value)
	if err := c.ack(ctx, req, err); err != nil {
		return fmt.Errorf("set_roll: %w", err)
	}
	return nil
}

// SetYaw sets the yaw actuation value.
func (c *Client) SetYaw(ctx context.Context, value uint16) error {
	req, err := NewSetYaw(value)
	if err := c.ack(ctx, req, err); err != nil {
		return fmt.Errorf("set_yaw: %w", err)
	}
	return nil
}

// SetPitchRollYaw sets all three actuation values in one command.
func (c *Client) SetPitchRollYaw(ctx context.Context, pitch, roll, yaw uint16) error {
	req, err := NewSetPitchRollYaw(pitch, roll, yaw)
	if err := c.ack(ctx, req, err); err != nil {
		return fmt.Errorf("set_pitch_roll_yaw: %w", err)
	}
	return nil
}

// SetPWMOut sets the PWM output value.
func (c *Client) SetPWMOut(ctx context.Context, value uint16) error {
	req, err := NewSetPWMOut(value)
	if err := c.ack(ctx, req, err); err != nil {
		return fmt.Errorf("set_pwm_out: %w", err)
	}
	return nil
}

// SetAngle commands target angles in degrees.
func (c *Client) SetAngle(ctx context.Context, a AngleCommand) error {
	req, err := NewSetAngle(a)
	if err := c.ack(ctx, req, err); err != nil {
		return fmt.Errorf("set_angle: %w", err)
	}
	return nil
}

// SetPanMode selects the pan mode.
func (c *Client) SetPanMode(ctx context.Context, mode PanMode) error {
	req, err := NewSetPanMode(mode)
	if err := c.ack(ctx, req, err); err != nil {
		return fmt.Errorf("set_pan_mode: %w", err)
	}
	return nil
}

// SetStandby switches standby on or off.
func (c *Client) SetStandby(ctx context.Context, s StandbySwitch) error {
	req, err := NewSetStandby(s)
	if err := c.ack(ctx, req, err); err != nil {
		return fmt.Errorf("set_standby: %w", err)
	}
	return nil
}

// DoCamera triggers a camera action.
func (c *Client) DoCamera(ctx context.Context, mode CameraMode) error {
	req, err := NewDoCamera(mode)
	if err := c.ack(ctx, req, err); err != nil {
		return fmt.Errorf("do_camera: %w", err)
	}
	return nil
}

// SetScriptControl selects the active script case.
func (c *Client) SetScriptControl(ctx context.Context, s ScriptControl) error {
	req, err := NewSetScriptControl(s)
	if err := c.ack(ctx, req, err); err != nil {
		return fmt.Errorf("set_script_control: %w", err)
	}
	return nil
}

// SetActivePanModeSetting activates a stored pan mode setting.
func (c *Client) SetActivePanModeSetting(ctx context.Context, s PanModeSetting) error {
	req, err := NewActivePanModeSetting(s)
	if err := c.ack(ctx, req, err); err != nil {
		return fmt.Errorf("active_pan_mode_setting: %w", err)
	}
	return nil
}
