// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package storm32

import (
	"encoding/binary"
	"math"
)

// TelemetrySize is the GETDATA response payload size: 32 little-endian int16 words.
const TelemetrySize = 2 * telemetryWords

const telemetryWords = 32

// Word offsets inside the telemetry block
const (
	wordState         = 0
	wordStatus        = 1
	wordStatus2       = 2
	wordI2CErrors     = 3
	wordLipoVoltage   = 4
	wordTimestamp     = 5
	wordCycleTime     = 6
	wordIMU1Gyro      = 7
	wordIMU1Acc       = 10
	wordIMU1Rotation  = 13
	wordIMU1Angles    = 16
	wordPIDControl    = 19
	wordInputs        = 22
	wordIMU2Angles    = 25
	wordMagAngles     = 28
	wordAccConfidence = 30
	wordExtraFunction = 31
)

// Fixed-point scales
const (
	angleScale         = 100.0
	accConfidenceScale = 10000.0
)

// Vector3 is a raw sensor 3-vector.
type Vector3 struct {
	X, Y, Z int16
}

// Angles holds pitch, roll and yaw in degrees.
type Angles struct {
	Pitch, Roll, Yaw float64
}

// Inputs holds raw pitch, roll and yaw input values.
type Inputs struct {
	Pitch, Roll, Yaw int16
}

// Telemetry is the GETDATA snapshot.
type Telemetry struct {
	State       State
	Status      uint16
	Status2     uint16
	I2CErrors   int16
	LipoVoltage int16 // mV
	Timestamp   int16
	CycleTime   int16 // µs

	IMU1Gyro     Vector3
	IMU1Acc      Vector3
	IMU1Rotation Vector3

	IMU1Angles Angles
	PIDControl Angles
	Inputs     Inputs
	IMU2Angles Angles

	MagYaw   float64
	MagPitch float64

	AccConfidence      float64
	ExtraFunctionInput int16
}

// Command returns CmdGetData.
func (*Telemetry) Command() Command { return CmdGetData }

// DecodeTelemetry decodes a 64 byte GETDATA payload.
func DecodeTelemetry(payload []byte) (*Telemetry, error) {
	if err := checkLength(CmdGetData, payload, TelemetrySize); err != nil {
		return nil, err
	}
	var w [telemetryWords]int16
	for i := range w {
		w[i] = int16(binary.LittleEndian.Uint16(payload[2*i:]))
	}
	t := telemetryFromWords(&w)
	return &t, nil
}

// MarshalBinary encodes the snapshot as a GETDATA payload.
func (t *Telemetry) MarshalBinary() ([]byte, error) {
	w := t.words()
	buf := make([]byte, 0, TelemetrySize)
	for _, v := range w {
		buf = binary.LittleEndian.AppendUint16(buf, uint16(v))
	}
	return buf, nil
}

func telemetryFromWords(w *[telemetryWords]int16) Telemetry {
	return Telemetry{
		State:       State(w[wordState]),
		Status:      uint16(w[wordStatus]),
		Status2:     uint16(w[wordStatus2]),
		I2CErrors:   w[wordI2CErrors],
		LipoVoltage: w[wordLipoVoltage],
		Timestamp:   w[wordTimestamp],
		CycleTime:   w[wordCycleTime],

		IMU1Gyro:     vectorAt(w, wordIMU1Gyro),
		IMU1Acc:      vectorAt(w, wordIMU1Acc),
		IMU1Rotation: vectorAt(w, wordIMU1Rotation),

		IMU1Angles: anglesAt(w, wordIMU1Angles),
		PIDControl: anglesAt(w, wordPIDControl),
		Inputs:     Inputs{Pitch: w[wordInputs], Roll: w[wordInputs+1], Yaw: w[wordInputs+2]},
		IMU2Angles: anglesAt(w, wordIMU2Angles),

		MagYaw:   float64(w[wordMagAngles]) / angleScale,
		MagPitch: float64(w[wordMagAngles+1]) / angleScale,

		AccConfidence:      float64(w[wordAccConfidence]) / accConfidenceScale,
		ExtraFunctionInput: w[wordExtraFunction],
	}
}

func (t *Telemetry) words() [telemetryWords]int16 {
	var w [telemetryWords]int16
	w[wordState] = int16(t.State)
	w[wordStatus] = int16(t.Status)
	w[wordStatus2] = int16(t.Status2)
	w[wordI2CErrors] = t.I2CErrors
	w[wordLipoVoltage] = t.LipoVoltage
	w[wordTimestamp] = t.Timestamp
	w[wordCycleTime] = t.CycleTime

	putVector(&w, wordIMU1Gyro, t.IMU1Gyro)
	putVector(&w, wordIMU1Acc, t.IMU1Acc)
	putVector(&w, wordIMU1Rotation, t.IMU1Rotation)

	putAngles(&w, wordIMU1Angles, t.IMU1Angles)
	putAngles(&w, wordPIDControl, t.PIDControl)
	w[wordInputs], w[wordInputs+1], w[wordInputs+2] = t.Inputs.Pitch, t.Inputs.Roll, t.Inputs.Yaw
	putAngles(&w, wordIMU2Angles, t.IMU2Angles)

	w[wordMagAngles] = scaled(t.MagYaw, angleScale)
	w[wordMagAngles+1] = scaled(t.MagPitch, angleScale)

	w[wordAccConfidence] = scaled(t.AccConfidence, accConfidenceScale)
	w[wordExtraFunction] = t.ExtraFunctionInput
	return w
}

func vectorAt(w *[telemetryWords]int16, i int) Vector3 {
	return Vector3{X: w[i], Y: w[i+1], Z: w[i+2]}
}

func anglesAt(w *[telemetryWords]int16, i int) Angles {
	return Angles{
		Pitch: float64(w[i]) / angleScale,
		Roll:  float64(w[i+1]) / angleScale,
		Yaw:   float64(w[i+2]) / angleScale,
	}
}

func putVector(w *[telemetryWords]int16, i int, v Vector3) {
	w[i], w[i+1], w[i+2] = v.X, v.Y, v.Z
}

func putAngles(w *[telemetryWords]int16, i int, a Angles) {
	w[i] = scaled(a.Pitch, angleScale)
	w[i+1] = scaled(a.Roll, angleScale)
	w[i+2] = scaled(a.Yaw, angleScale)
}

// scaled converts a physical value back to its raw word, saturating at the int16 range.
func scaled(v, scale float64) int16 {
	r := math.Round(v * scale)
	switch {
	case r > math.MaxInt16:
		return math.MaxInt16
	case r < math.MinInt16:
		return math.MinInt16
	}
	return int16(r)
}
