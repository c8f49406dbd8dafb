package focus

import "math"

const frameSize = 1024

// syntheticFace builds a full face mesh with both irises centered in their eye boxes.
// Coordinates are dyadic so pixel flooring is exact at frameSize.
//
// Left eye box: x 384..512, y 416..480, center (448,448).
// Right eye box: x 512..640, y 416..480, center (576,448).
// The pose anchors are placed so yaw reads yawDeg (0..90) and pitch reads 0.
func syntheticFace(yawDeg float64) []Landmark {
	lms := make([]Landmark, MeshSize)
	for i := range lms {
		lms[i] = Landmark{X: 0.5, Y: 0.5}
	}

	set := func(idx int, x, y float64) { lms[idx] = Landmark{X: x, Y: y} }

	// Left eye contour [33, 133, 159, 145, 153, 144, 160, 161]
	set(33, 0.5, 0.4375)
	set(133, 0.375, 0.4375)
	set(159, 0.4375, 0.40625)
	set(145, 0.4375, 0.46875)
	set(153, 0.40625, 0.4375)
	set(144, 0.40625, 0.453125)
	set(160, 0.46875, 0.421875)
	set(161, 0.5, 0.421875)

	// Right eye contour [263, 362, 386, 374, 380, 373, 387, 388]
	set(362, 0.5, 0.4375)
	set(386, 0.5625, 0.40625)
	set(374, 0.5625, 0.46875)
	set(380, 0.53125, 0.4375)
	set(373, 0.53125, 0.453125)
	set(387, 0.59375, 0.421875)
	set(388, 0.625, 0.4375)

	// Iris rings
	set(468, 0.421875, 0.4375)
	set(469, 0.453125, 0.4375)
	set(470, 0.4375, 0.421875)
	set(471, 0.4375, 0.453125)
	set(473, 0.546875, 0.4375)
	set(474, 0.578125, 0.4375)
	set(475, 0.5625, 0.421875)
	set(476, 0.5625, 0.453125)

	// Pose anchors: LR = 0.125*(sin yaw, 0, cos yaw), LN = (0, 0.125, 0).
	rad := yawDeg * math.Pi / 180
	lms[LeftEyeOuter] = Landmark{X: 0.5, Y: 0.4375, Z: 0}
	lms[RightEyeOuter] = Landmark{X: 0.5 + 0.125*math.Sin(rad), Y: 0.4375, Z: 0.125 * math.Cos(rad)}
	lms[NoseTip] = Landmark{X: 0.5, Y: 0.5625, Z: 0}

	return lms
}

func approx(a, b, eps float64) bool { return math.Abs(a-b) <= eps }
