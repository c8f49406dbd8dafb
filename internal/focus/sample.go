package focus

import (
	"fmt"
	"math"
)

// Status is the discrete classification of a sample.
type Status int

const (
	NotFocused Status = iota
	Focused
	NoFaceDetected
)

var statusNames = map[Status]string{
	Focused:        "Focused",
	NotFocused:     "Not Focused",
	NoFaceDetected: "No Face Detected",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// MarshalText encodes the status by its display name.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText accepts the display names produced by MarshalText.
func (s *Status) UnmarshalText(text []byte) error {
	for k, v := range statusNames {
		if v == string(text) {
			*s = k
			return nil
		}
	}
	return fmt.Errorf("unknown focus status %q", text)
}

// Metrics are the diagnostics behind a score.
type Metrics struct {
	IrisFocus        float64 `json:"iris_focus"`
	Yaw              float64 `json:"yaw"`
	YawFocus         float64 `json:"yaw_focus"`
	Pitch            float64 `json:"pitch"`
	PitchFocus       float64 `json:"pitch_focus"`
	OrientationFocus float64 `json:"orientation_focus"`
}

// Text renders the metrics the way the focus overlay displays them.
func (m Metrics) Text() string {
	return fmt.Sprintf("Iris Focus: %d%%\nYaw: %d° (Focus: %d%%)\nPitch: %d° (Focus: %d%%)\nOrientation Focus: %d%%",
		round(m.IrisFocus),
		round(m.Yaw), round(m.YawFocus),
		round(m.Pitch), round(m.PitchFocus),
		round(m.OrientationFocus),
	)
}

// FocusSample is the engine's output for one frame.
type FocusSample struct {
	Score   float64 `json:"score"`
	Status  Status  `json:"status"`
	Metrics Metrics `json:"metrics"`
}

// Focused reports whether the sample is classified as Focused.
func (s FocusSample) Focused() bool { return s.Status == Focused }

// MetricsText is the overlay text for the sample; empty while no face is detected.
func (s FocusSample) MetricsText() string {
	if s.Status == NoFaceDetected {
		return ""
	}
	return s.Metrics.Text()
}

// Rounded returns the sample with the score and every metric rounded to whole numbers,
// as shown to users and reported upstream.
func (s FocusSample) Rounded() FocusSample {
	m := s.Metrics
	return FocusSample{
		Score:  math.Round(s.Score),
		Status: s.Status,
		Metrics: Metrics{
			IrisFocus:        math.Round(m.IrisFocus),
			Yaw:              math.Round(m.Yaw),
			YawFocus:         math.Round(m.YawFocus),
			Pitch:            math.Round(m.Pitch),
			PitchFocus:       math.Round(m.PitchFocus),
			OrientationFocus: math.Round(m.OrientationFocus),
		},
	}
}

func round(v float64) int { return int(math.Round(v)) }
