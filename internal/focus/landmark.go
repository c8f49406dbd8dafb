// Package focus turns per-frame facial landmarks into a smoothed attention score.
//
// An Engine is fed one landmark snapshot per video frame. It extracts eye boxes, iris
// centers and a head pose from the snapshot, scores how centered the gaze and head are,
// smooths the result over a short window and classifies it as Focused, NotFocused or
// NoFaceDetected. The engine performs no I/O.
package focus

// Landmark is a detected facial keypoint. X and Y are normalized to [0,1] relative to the
// frame width and height; Z is a relative depth.
type Landmark struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Face-mesh landmark indices (MediaPipe face mesh with refined iris landmarks).
const (
	NoseTip       = 1
	Chin          = 152
	LeftEyeOuter  = 33
	RightEyeOuter = 263
	LeftMouth     = 61
	RightMouth    = 291

	// MeshSize is the number of landmarks a refined face mesh produces.
	MeshSize = 478
)

// Indices is the index scheme used to address a landmark snapshot.
type Indices struct {
	LeftEye   []int `json:"left_eye" validate:"len=8,dive,gte=0"`
	RightEye  []int `json:"right_eye" validate:"len=8,dive,gte=0"`
	LeftIris  []int `json:"left_iris" validate:"len=4,dive,gte=0"`
	RightIris []int `json:"right_iris" validate:"len=4,dive,gte=0"`

	// Pose anchors
	LeftEyeOuter  int `json:"left_eye_outer" validate:"gte=0"`
	RightEyeOuter int `json:"right_eye_outer" validate:"gte=0"`
	NoseTip       int `json:"nose_tip" validate:"gte=0"`
}

// DefaultIndices returns the face-mesh index scheme.
func DefaultIndices() Indices {
	return Indices{
		LeftEye:       []int{33, 133, 159, 145, 153, 144, 160, 161},
		RightEye:      []int{263, 362, 386, 374, 380, 373, 387, 388},
		LeftIris:      []int{468, 469, 470, 471},
		RightIris:     []int{473, 474, 475, 476},
		LeftEyeOuter:  LeftEyeOuter,
		RightEyeOuter: RightEyeOuter,
		NoseTip:       NoseTip,
	}
}

// MaxIndex returns the largest index referenced by the scheme. A snapshot must hold at
// least MaxIndex()+1 landmarks to be scored.
func (ix Indices) MaxIndex() int {
	hi := ix.LeftEyeOuter
	for _, v := range []int{ix.RightEyeOuter, ix.NoseTip} {
		hi = max(hi, v)
	}
	for _, group := range [][]int{ix.LeftEye, ix.RightEye, ix.LeftIris, ix.RightIris} {
		for _, v := range group {
			hi = max(hi, v)
		}
	}
	return hi
}

func (ix Indices) clone() Indices {
	out := ix
	out.LeftEye = append([]int(nil), ix.LeftEye...)
	out.RightEye = append([]int(nil), ix.RightEye...)
	out.LeftIris = append([]int(nil), ix.LeftIris...)
	out.RightIris = append([]int(nil), ix.RightIris...)
	return out
}
