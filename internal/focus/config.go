package focus

import (
	"errors"
	"fmt"
	"sync"

	"github.com/go-playground/validator/v10"
)

// ErrInvalidConfig wraps every configuration validation failure.
var ErrInvalidConfig = errors.New("invalid focus config")

// Config holds every tunable of the scoring pipeline.
type Config struct {
	// Status
	FocusThreshold float64 `json:"focus_threshold" validate:"gte=0,lte=100"` // Smoothed score needed for Focused

	// Orientation tolerances (degrees)
	MaxYawAngle   float64 `json:"max_yaw_angle" validate:"gt=0,lte=180"`
	MaxPitchAngle float64 `json:"max_pitch_angle" validate:"gt=0,lte=90"`

	// Weights
	IrisWeight        float64 `json:"iris_weight" validate:"gte=0,lte=1"`
	OrientationWeight float64 `json:"orientation_weight" validate:"gte=0,lte=1"`
	YawWeight         float64 `json:"yaw_weight" validate:"gte=0,lte=1"`
	PitchWeight       float64 `json:"pitch_weight" validate:"gte=0,lte=1"`

	// Smoothing windows (frames)
	FocusBufferSize      int `json:"focus_buffer_size" validate:"gte=1,lte=1000"`
	AngleSmoothingWindow int `json:"angle_smoothing_window" validate:"gte=1,lte=1000"`

	// Consecutive frames without a face before NoFaceDetected
	NoFaceThreshold int `json:"no_face_threshold" validate:"gte=1"`

	// Iris baseline prior
	NeutralIrisFocus float64 `json:"neutral_iris_focus" validate:"gt=0,lte=100"`

	Indices Indices `json:"indices"`
}

// DefaultConfig returns the recommended configuration for a ~30 fps webcam feed.
func DefaultConfig() Config {
	return Config{
		FocusThreshold: 70,

		MaxYawAngle:   20,
		MaxPitchAngle: 15,

		IrisWeight:        0.7, // Gaze dominates
		OrientationWeight: 0.3,
		YawWeight:         0.6,
		PitchWeight:       0.4,

		FocusBufferSize:      10,
		AngleSmoothingWindow: 10, // ~1/3 s at 30 fps

		NoFaceThreshold: 30, // ~1 s at 30 fps

		NeutralIrisFocus: DefaultNeutralIrisFocus,

		Indices: DefaultIndices(),
	}
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func configValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// Validate checks field ranges and that each weight pair sums to at most 1, which keeps
// every score inside [0,100].
func (c Config) Validate() error {
	if err := configValidator().Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if c.IrisWeight+c.OrientationWeight > 1+1e-9 {
		return fmt.Errorf("%w: iris_weight + orientation_weight = %.3f, must be <= 1",
			ErrInvalidConfig, c.IrisWeight+c.OrientationWeight)
	}
	if c.YawWeight+c.PitchWeight > 1+1e-9 {
		return fmt.Errorf("%w: yaw_weight + pitch_weight = %.3f, must be <= 1",
			ErrInvalidConfig, c.YawWeight+c.PitchWeight)
	}
	return nil
}
