package focus

import "math"

// irisScale maps a reading equal to the neutral iris focus onto this score.
const irisScale = 90.0

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// EyeFocus scores how centered iris sits inside box, from 0 (at or beyond the edge)
// to 100 (exactly centered). A degenerate box scores 0.
func EyeFocus(box EyeBox, iris Point) float64 {
	halfW, halfH := box.Width()/2, box.Height()/2
	if halfW == 0 || halfH == 0 {
		return 0
	}
	c := box.Center()

	hOffset := clamp(math.Abs(iris.X-c.X)/halfW, 0, 1)
	vOffset := clamp(math.Abs(iris.Y-c.Y)/halfH, 0, 1)

	hFocus := clamp((1-hOffset)*100, 0, 100)
	vFocus := clamp((1-vOffset)*100, 0, 100)
	return (hFocus + vFocus) / 2
}

// RawIrisFocus averages the per-eye focus of both eyes. It is 0 when either eye is
// unavailable.
func RawIrisFocus(left, right Eye) float64 {
	if !left.OK || !right.OK {
		return 0
	}
	return (EyeFocus(left.Box, left.Iris) + EyeFocus(right.Box, right.Iris)) / 2
}

// AdjustIrisFocus rescales a raw iris focus against the neutral baseline and clamps it
// to [0,100].
func AdjustIrisFocus(raw, neutral float64) float64 {
	if neutral <= 0 {
		return 0
	}
	return clamp(raw/neutral*irisScale, 0, 100)
}
