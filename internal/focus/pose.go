package focus

import "math"

const epsilon = 1e-7

// PoseAngles is a head orientation in degrees. Roll is not estimated and is always 0.
type PoseAngles struct {
	Pitch float64 `json:"pitch"`
	Yaw   float64 `json:"yaw"`
	Roll  float64 `json:"roll"`
}

func degrees(rad float64) float64 { return rad * 180 / math.Pi }

// EstimatePose derives pitch and yaw from the face vectors, before any calibration offset.
func EstimatePose(v FaceVectors) PoseAngles {
	yaw := degrees(math.Atan2(v.LR.X, v.LR.Z))

	var pitch float64
	if denom := math.Hypot(v.Normal.X, v.Normal.Z); denom > epsilon {
		pitch = degrees(math.Atan2(v.Normal.Y, denom))
	}
	return PoseAngles{Pitch: pitch, Yaw: yaw}
}

// Relative offsets the pose by the calibration baseline.
func (p PoseAngles) Relative(c Calibration) PoseAngles {
	return PoseAngles{
		Pitch: p.Pitch - c.NeutralPitch,
		Yaw:   p.Yaw - c.NeutralYaw,
		Roll:  p.Roll,
	}
}

// AngleFocus scores an angle against its tolerance: 100 at 0°, falling linearly to 0 at
// maxAngle and beyond.
func AngleFocus(angle, maxAngle float64) float64 {
	if maxAngle <= 0 {
		return 0
	}
	return math.Max(0, (1-math.Abs(angle)/maxAngle)*100)
}
