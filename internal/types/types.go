package types

import "github.com/andresmejia3/focuswatch/internal/focus"

// FrameTask represents a single frame sent to a worker for landmark detection
type FrameTask struct {
	Index int
	Data  []byte
}

// LandmarkResult matches the JSON structure coming back from the face-mesh worker.
// Faces is empty when no face was found in the frame.
type LandmarkResult struct {
	Width  int                `json:"width"`
	Height int                `json:"height"`
	Faces  [][]focus.Landmark `json:"faces"`
}

// Primary returns the landmarks of the first detected face, or nil.
func (r LandmarkResult) Primary() []focus.Landmark {
	if len(r.Faces) == 0 {
		return nil
	}
	return r.Faces[0]
}

// ErrorResult captures the error object returned by the worker on failure
type ErrorResult struct {
	Error string `json:"error"`
}

// FramePayload is one landmark snapshot as recorded in JSONL files and posted to the API.
// Op is set instead of landmarks for control lines ("calibrate", "reset").
type FramePayload struct {
	Op        string           `json:"op,omitempty"`
	Width     int              `json:"width" validate:"gte=0"`
	Height    int              `json:"height" validate:"gte=0"`
	Landmarks []focus.Landmark `json:"landmarks"`
}
