package focus

import "errors"

// DefaultNeutralIrisFocus is the fixed iris baseline. Unlike pitch and yaw it is never
// recalibrated from live samples.
const DefaultNeutralIrisFocus = 50.0

// ErrNoCalibrationData is returned by Calibrate before any pose has been observed.
var ErrNoCalibrationData = errors.New("no calibration data yet")

// Calibration is a user's neutral baseline.
type Calibration struct {
	NeutralPitch     float64 `json:"neutral_pitch"`
	NeutralYaw       float64 `json:"neutral_yaw"`
	NeutralIrisFocus float64 `json:"neutral_iris_focus"`
	Calibrated       bool    `json:"calibrated"`
}

// DefaultCalibration returns the baseline an engine starts with.
func DefaultCalibration(neutralIris float64) Calibration {
	return Calibration{NeutralIrisFocus: neutralIris}
}

// rebase adopts the buffer means as the neutral pose. The buffers hold angles already
// offset by the previous baseline, so calibrating again at the same pose yields ~0.
func (c Calibration) rebase(pitchMean, yawMean float64) Calibration {
	c.NeutralPitch = pitchMean
	c.NeutralYaw = yawMean
	c.Calibrated = true
	return c
}
