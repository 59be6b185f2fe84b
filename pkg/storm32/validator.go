// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package storm32

import (
	"fmt"
	"math"
)

// AnomalyType represents different types of telemetry anomalies
type AnomalyType int

const (
	AnomalyInvalidState AnomalyType = iota
	AnomalyLowVoltage
	AnomalyI2CErrors
	AnomalyLowConfidence
	AnomalyAngleRange
	AnomalyCycleTime
)

func (a AnomalyType) String() string {
	switch a {
	case AnomalyInvalidState:
		return "invalid_state"
	case AnomalyLowVoltage:
		return "low_voltage"
	case AnomalyI2CErrors:
		return "i2c_errors"
	case AnomalyLowConfidence:
		return "low_confidence"
	case AnomalyAngleRange:
		return "angle_range"
	case AnomalyCycleTime:
		return "cycle_time"
	default:
		return "unknown"
	}
}

// Validation thresholds
const (
	MinLipoVoltage   = 6000 // mV, 2S LiPo cut-off; 0 means USB powered
	MinAccConfidence = 0.5
	MaxAngle         = 180.0
	MaxCycleTime     = 5000 // µs
)

// ValidationError represents a telemetry validation failure
type ValidationError struct {
	Type    AnomalyType
	Message string
	Details map[string]interface{}
}

// Error implements the error interface
func (v *ValidationError) Error() string {
	return v.Message
}

// ValidateTelemetry checks a snapshot for implausible values.
// Returns a slice of validation errors (empty if the snapshot looks sane)
func ValidateTelemetry(t *Telemetry) []ValidationError {
	return validate(t, SupportedLiveFields)
}

// ValidateLiveData checks the groups present in a GETDATAFIELDS response.
func ValidateLiveData(d *LiveData) []ValidationError {
	return validate(&d.Telemetry, d.Fields)
}

func validate(t *Telemetry, fields LiveField) []ValidationError {
	errors := []ValidationError{}

	if fields&LiveStatus != 0 {
		if !t.State.Valid() {
			errors = append(errors, ValidationError{
				Type:    AnomalyInvalidState,
				Message: fmt.Sprintf("Invalid state value=%d", int16(t.State)),
				Details: map[string]interface{}{"state": int16(t.State)},
			})
		}
		if t.LipoVoltage > 0 && t.LipoVoltage < MinLipoVoltage {
			errors = append(errors, ValidationError{
				Type:    AnomalyLowVoltage,
				Message: fmt.Sprintf("Low LiPo voltage %d mV (min %d)", t.LipoVoltage, MinLipoVoltage),
				Details: map[string]interface{}{"voltage": t.LipoVoltage, "min": MinLipoVoltage},
			})
		}
		if t.I2CErrors != 0 {
			errors = append(errors, ValidationError{
				Type:    AnomalyI2CErrors,
				Message: fmt.Sprintf("I2C errors reported: %d", t.I2CErrors),
				Details: map[string]interface{}{"count": t.I2CErrors},
			})
		}
	}

	if fields&LiveTimes != 0 && (t.CycleTime <= 0 || t.CycleTime > MaxCycleTime) {
		errors = append(errors, ValidationError{
			Type:    AnomalyCycleTime,
			Message: fmt.Sprintf("Cycle time %d µs outside (0, %d]", t.CycleTime, MaxCycleTime),
			Details: map[string]interface{}{"cycle_time": t.CycleTime, "max": MaxCycleTime},
		})
	}

	if fields&LiveIMU1Angles != 0 {
		errors = append(errors, validateAngles("imu1", t.IMU1Angles)...)
	}
	if fields&LiveIMU2Angles != 0 {
		errors = append(errors, validateAngles("imu2", t.IMU2Angles)...)
	}

	if fields&LiveIMUAccConfidence != 0 && t.AccConfidence < MinAccConfidence {
		errors = append(errors, ValidationError{
			Type:    AnomalyLowConfidence,
			Message: fmt.Sprintf("Low acc confidence %.4f (min %.1f)", t.AccConfidence, MinAccConfidence),
			Details: map[string]interface{}{"confidence": t.AccConfidence, "min": MinAccConfidence},
		})
	}

	return errors
}

func validateAngles(source string, a Angles) []ValidationError {
	errors := []ValidationError{}
	for _, axis := range []struct {
		name  string
		value float64
	}{{"pitch", a.Pitch}, {"roll", a.Roll}, {"yaw", a.Yaw}} {
		if math.Abs(axis.value) > MaxAngle {
			errors = append(errors, ValidationError{
				Type:    AnomalyAngleRange,
				Message: fmt.Sprintf("%s %s angle %.2f° outside ±%.0f°", source, axis.name, axis.value, MaxAngle),
				Details: map[string]interface{}{"source": source, "axis": axis.name, "angle": axis.value},
			})
		}
	}
	return errors
}
