package focus

import (
	"fmt"
	"io"
	"sync"

	"github.com/sirupsen/logrus"
)

// State is the dropout state of an engine.
type State int

const (
	// Detecting means the last frame had a usable face.
	Detecting State = iota
	// Degraded means a run of missed frames shorter than the no-face threshold. The
	// engine keeps emitting its last sample.
	Degraded
	// NoFace means the face has been absent for at least the no-face threshold.
	NoFace
)

func (s State) String() string {
	switch s {
	case Detecting:
		return "detecting"
	case Degraded:
		return "degraded"
	case NoFace:
		return "no_face"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// UnmarshalText accepts the names produced by MarshalText.
func (s *State) UnmarshalText(text []byte) error {
	for _, st := range []State{Detecting, Degraded, NoFace} {
		if st.String() == string(text) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown engine state %q", text)
}

// Snapshot is a read-only view of an engine's session state.
type Snapshot struct {
	State       State       `json:"state"`
	Dropouts    int         `json:"dropouts"`
	Calibration Calibration `json:"calibration"`
	Last        FocusSample `json:"last"`
	Frames      int         `json:"frames"`
}

// Engine scores a single face across consecutive frames. All methods are safe for
// concurrent use; frame processing, calibration and reset are mutually exclusive.
type Engine struct {
	mu  sync.Mutex
	cfg Config
	log logrus.FieldLogger

	calibration Calibration

	pitch  *RollingBuffer[float64]
	yaw    *RollingBuffer[float64]
	roll   *RollingBuffer[float64] // kept for parity, not scored
	scores *RollingBuffer[float64]

	dropouts int
	state    State
	last     FocusSample
	frames   int
}

// Option customizes an Engine.
type Option func(*Engine)

// WithLogger routes engine diagnostics to l.
func WithLogger(l logrus.FieldLogger) Option {
	return func(e *Engine) { e.log = l }
}

// NewEngine validates cfg and returns an engine with default calibration.
func NewEngine(cfg Config, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.Indices = cfg.Indices.clone()

	discard := logrus.New()
	discard.SetOutput(io.Discard)

	e := &Engine{
		cfg:    cfg,
		log:    discard,
		pitch:  NewRollingBuffer[float64](cfg.AngleSmoothingWindow),
		yaw:    NewRollingBuffer[float64](cfg.AngleSmoothingWindow),
		roll:   NewRollingBuffer[float64](cfg.AngleSmoothingWindow),
		scores: NewRollingBuffer[float64](cfg.FocusBufferSize),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.resetLocked()
	return e, nil
}

// Config returns the engine's configuration.
func (e *Engine) Config() Config {
	c := e.cfg
	c.Indices = c.Indices.clone()
	return c
}

// ProcessFrame scores one frame. An empty landmark slice, or one too short for the index
// scheme, counts as a frame without a face.
func (e *Engine) ProcessFrame(lms []Landmark, width, height int) FocusSample {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.processLocked(lms, width, height)
}

// ProcessFrameState is ProcessFrame that also returns the dropout state the frame left the
// engine in, read under the same lock.
func (e *Engine) ProcessFrameState(lms []Landmark, width, height int) (FocusSample, State) {
	e.mu.Lock()
	defer e.mu.Unlock()
	sample := e.processLocked(lms, width, height)
	return sample, e.state
}

func (e *Engine) processLocked(lms []Landmark, width, height int) FocusSample {
	e.frames++
	if len(lms) <= e.cfg.Indices.MaxIndex() {
		if len(lms) > 0 {
			e.log.WithFields(logrus.Fields{
				"landmarks": len(lms),
				"required":  e.cfg.Indices.MaxIndex() + 1,
			}).Debug("insufficient landmarks, treating frame as no face")
		}
		return e.missLocked()
	}

	if e.state != Detecting {
		e.log.WithFields(logrus.Fields{"from": e.state, "dropouts": e.dropouts}).Debug("face reacquired")
	}
	e.dropouts = 0
	e.state = Detecting

	g := ExtractGeometry(lms, width, height, e.cfg.Indices)
	irisFocus := AdjustIrisFocus(RawIrisFocus(g.Left, g.Right), e.calibration.NeutralIrisFocus)

	pose := EstimatePose(g.Pose).Relative(e.calibration)
	e.pitch.Push(pose.Pitch)
	e.yaw.Push(pose.Yaw)
	e.roll.Push(pose.Roll)

	smoothedPitch := e.pitch.Mean()
	smoothedYaw := e.yaw.Mean()

	yawFocus := AngleFocus(smoothedYaw, e.cfg.MaxYawAngle)
	pitchFocus := AngleFocus(smoothedPitch, e.cfg.MaxPitchAngle)
	orientationFocus := yawFocus*e.cfg.YawWeight + pitchFocus*e.cfg.PitchWeight

	final := clamp(irisFocus*e.cfg.IrisWeight+orientationFocus*e.cfg.OrientationWeight, 0, 100)
	e.scores.Push(final)
	smoothed := clamp(e.scores.Mean(), 0, 100)

	status := NotFocused
	if smoothed >= e.cfg.FocusThreshold {
		status = Focused
	}

	e.last = FocusSample{
		Score:  smoothed,
		Status: status,
		Metrics: Metrics{
			IrisFocus:        irisFocus,
			Yaw:              smoothedYaw,
			YawFocus:         yawFocus,
			Pitch:            smoothedPitch,
			PitchFocus:       pitchFocus,
			OrientationFocus: orientationFocus,
		},
	}
	return e.last
}

// missLocked advances the dropout counter for a frame without a usable face.
func (e *Engine) missLocked() FocusSample {
	e.dropouts++
	// NoFace begins on the NoFaceThreshold-th consecutive miss, not the one after it:
	// threshold misses report NoFaceDetected, threshold-1 misses never do.
	if e.dropouts < e.cfg.NoFaceThreshold {
		if e.state == Detecting {
			e.log.Debug("face lost, holding last sample")
		}
		e.state = Degraded
		return e.last
	}

	if e.state != NoFace {
		e.log.WithField("dropouts", e.dropouts).Info("no face detected")
	}
	e.state = NoFace
	e.scores.Push(0)
	e.last = FocusSample{
		Score:  clamp(e.scores.Mean(), 0, 100),
		Status: NoFaceDetected,
	}
	return e.last
}

// Calibrate adopts the currently smoothed pitch and yaw as the neutral pose. It fails with
// ErrNoCalibrationData, leaving the baseline untouched, before any face has been scored.
func (e *Engine) Calibrate() (Calibration, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.pitch.Len() == 0 || e.yaw.Len() == 0 {
		return e.calibration, ErrNoCalibrationData
	}
	e.calibration = e.calibration.rebase(e.pitch.Mean(), e.yaw.Mean())
	e.log.WithFields(logrus.Fields{
		"neutral_pitch": fmt.Sprintf("%.2f", e.calibration.NeutralPitch),
		"neutral_yaw":   fmt.Sprintf("%.2f", e.calibration.NeutralYaw),
	}).Info("calibrated neutral position")
	return e.calibration, nil
}

// Calibration returns the current baseline.
func (e *Engine) Calibration() Calibration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calibration
}

// Snapshot returns the engine's session state.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Snapshot{
		State:       e.state,
		Dropouts:    e.dropouts,
		Calibration: e.calibration,
		Last:        e.last,
		Frames:      e.frames,
	}
}

// Reset clears every buffer and counter and restores the default calibration.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.resetLocked()
}

func (e *Engine) resetLocked() {
	e.pitch.Reset()
	e.yaw.Reset()
	e.roll.Reset()
	e.scores.Reset()
	e.calibration = DefaultCalibration(e.cfg.NeutralIrisFocus)
	e.dropouts = 0
	e.state = Detecting
	e.last = FocusSample{Status: NotFocused}
	e.frames = 0
}
