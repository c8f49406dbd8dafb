package focus

import (
	"errors"
	"math"
	"math/rand"
	"testing"
)

func newTestEngine(t *testing.T, mutate func(*Config)) *Engine {
	t.Helper()
	cfg := DefaultConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	e, err := NewEngine(cfg)
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	return e
}

func TestEngine_ConvergesWhenLookingStraight(t *testing.T) {
	e := newTestEngine(t, nil)

	var s FocusSample
	for i := 0; i < 10; i++ {
		s = e.ProcessFrame(syntheticFace(0), frameSize, frameSize)
	}

	if s.Score < 95 {
		t.Errorf("Expected smoothed score >= 95, got %v", s.Score)
	}
	if s.Status != Focused {
		t.Errorf("Expected Focused, got %v", s.Status)
	}
	if !approx(s.Metrics.OrientationFocus, 100, 1e-9) {
		t.Errorf("Expected orientation focus 100, got %v", s.Metrics.OrientationFocus)
	}
	if !approx(s.Metrics.IrisFocus, 100, 1e-9) {
		t.Errorf("Expected iris focus 100, got %v", s.Metrics.IrisFocus)
	}
}

func TestEngine_DropoutReachesNoFace(t *testing.T) {
	e := newTestEngine(t, nil)
	threshold := e.Config().NoFaceThreshold

	first := e.ProcessFrame(syntheticFace(0), frameSize, frameSize)
	if first.Status != Focused {
		t.Fatalf("Expected first frame to be Focused, got %v", first.Status)
	}

	for i := 1; i < threshold; i++ {
		s := e.ProcessFrame(nil, frameSize, frameSize)
		if s != first {
			t.Fatalf("Frame %d: expected the last sample to be held, got %+v", i, s)
		}
		if st := e.Snapshot().State; st != Degraded {
			t.Fatalf("Frame %d: expected degraded state, got %v", i, st)
		}
	}

	s := e.ProcessFrame(nil, frameSize, frameSize)
	if s.Status != NoFaceDetected {
		t.Fatalf("Expected NoFaceDetected after %d missed frames, got %v", threshold, s.Status)
	}
	// Score history is [100, 0]
	if !approx(s.Score, 50, 1e-9) {
		t.Errorf("Expected the score to decay to 50, got %v", s.Score)
	}
	if s.MetricsText() != "" {
		t.Errorf("Expected empty metrics text without a face, got %q", s.MetricsText())
	}

	// Further absence keeps decaying toward 0
	next := e.ProcessFrame(nil, frameSize, frameSize)
	if next.Score >= s.Score {
		t.Errorf("Expected decaying score, got %v after %v", next.Score, s.Score)
	}

	// Recovery is immediate
	back := e.ProcessFrame(syntheticFace(0), frameSize, frameSize)
	if back.Status == NoFaceDetected {
		t.Error("Expected recovery on the first detected frame")
	}
	if snap := e.Snapshot(); snap.Dropouts != 0 || snap.State != Detecting {
		t.Errorf("Expected counter reset after recovery, got %+v", snap)
	}
}

func TestEngine_DropoutBelowThresholdNeverReportsNoFace(t *testing.T) {
	e := newTestEngine(t, nil)
	threshold := e.Config().NoFaceThreshold

	for i := 0; i < threshold-1; i++ {
		if s := e.ProcessFrame(nil, frameSize, frameSize); s.Status == NoFaceDetected {
			t.Fatalf("Frame %d: reported NoFaceDetected below the threshold", i)
		}
	}
	s := e.ProcessFrame(syntheticFace(0), frameSize, frameSize)
	if s.Status != Focused {
		t.Errorf("Expected the detected frame to be Focused, got %v", s.Status)
	}
	if e.Snapshot().Dropouts != 0 {
		t.Errorf("Expected dropout counter reset, got %d", e.Snapshot().Dropouts)
	}
}

func TestEngine_InsufficientLandmarksCountAsMissing(t *testing.T) {
	e := newTestEngine(t, nil)
	e.ProcessFrame(make([]Landmark, 100), frameSize, frameSize)
	if snap := e.Snapshot(); snap.Dropouts != 1 || snap.State != Degraded {
		t.Errorf("Expected one dropout, got %+v", snap)
	}
}

func TestEngine_UnavailableIrisScoresZero(t *testing.T) {
	e := newTestEngine(t, nil)
	lms := syntheticFace(0)
	lms[473] = Landmark{X: 1.5, Y: 0.4375}

	s := e.ProcessFrame(lms, frameSize, frameSize)
	if s.Metrics.IrisFocus != 0 {
		t.Errorf("Expected iris focus 0, got %v", s.Metrics.IrisFocus)
	}
	// Orientation alone: 100 * 0.3
	if !approx(s.Score, 30, 1e-9) {
		t.Errorf("Expected score 30, got %v", s.Score)
	}
	if s.Status != NotFocused {
		t.Errorf("Expected NotFocused, got %v", s.Status)
	}
	if e.Snapshot().Dropouts != 0 {
		t.Error("A face with partial landmarks is still a detection")
	}
}

func TestEngine_DegenerateEyeBox(t *testing.T) {
	e := newTestEngine(t, nil)
	lms := syntheticFace(0)
	for _, idx := range DefaultIndices().LeftEye {
		lms[idx].Y = 0.4375
	}

	s := e.ProcessFrame(lms, frameSize, frameSize)
	// (0 + 100) / 2 = 50 raw, rescaled to 90
	if !approx(s.Metrics.IrisFocus, 90, 1e-9) {
		t.Errorf("Expected iris focus 90 with one flat eye, got %v", s.Metrics.IrisFocus)
	}
}

func TestEngine_CalibrateWithoutData(t *testing.T) {
	e := newTestEngine(t, nil)
	e.ProcessFrame(nil, frameSize, frameSize)

	c, err := e.Calibrate()
	if !errors.Is(err, ErrNoCalibrationData) {
		t.Fatalf("Expected ErrNoCalibrationData, got %v", err)
	}
	if c.Calibrated || c.NeutralPitch != 0 || c.NeutralYaw != 0 {
		t.Errorf("Baseline changed on failed calibration: %+v", c)
	}
	if e.Calibration().NeutralIrisFocus != DefaultNeutralIrisFocus {
		t.Errorf("Expected iris prior %v, got %v", DefaultNeutralIrisFocus, e.Calibration().NeutralIrisFocus)
	}
}

func TestEngine_CalibrateRebasesOrientation(t *testing.T) {
	e := newTestEngine(t, nil)
	window := e.Config().AngleSmoothingWindow

	var s FocusSample
	for i := 0; i < window; i++ {
		s = e.ProcessFrame(syntheticFace(30), frameSize, frameSize)
	}
	if s.Metrics.YawFocus != 0 {
		t.Fatalf("Expected zero yaw focus at 30° before calibration, got %v", s.Metrics.YawFocus)
	}

	c, err := e.Calibrate()
	if err != nil {
		t.Fatalf("Calibrate failed: %v", err)
	}
	if !c.Calibrated || !approx(c.NeutralYaw, 30, 1e-6) || !approx(c.NeutralPitch, 0, 1e-6) {
		t.Fatalf("Unexpected calibration %+v", c)
	}

	for i := 0; i < window; i++ {
		s = e.ProcessFrame(syntheticFace(30), frameSize, frameSize)
	}
	if !approx(s.Metrics.OrientationFocus, 100, 1e-6) {
		t.Errorf("Expected orientation focus 100 at the neutral pose, got %v", s.Metrics.OrientationFocus)
	}

	// Calibrating again adopts the mean of the offset angles, which is ~0 at the same pose.
	c2, err := e.Calibrate()
	if err != nil {
		t.Fatalf("Second Calibrate failed: %v", err)
	}
	if !c2.Calibrated || !approx(c2.NeutralYaw, 0, 1e-6) || !approx(c2.NeutralPitch, 0, 1e-6) {
		t.Errorf("Expected the baseline to be the current buffer means (0), got %+v", c2)
	}

	// The 30° pose is no longer neutral once the yaw buffer refills with it.
	for i := 0; i < window; i++ {
		s = e.ProcessFrame(syntheticFace(30), frameSize, frameSize)
	}
	if !approx(s.Metrics.Yaw, 30, 1e-6) || s.Metrics.YawFocus != 0 {
		t.Errorf("Expected yaw 30 with zero focus after recalibrating, got yaw %v focus %v", s.Metrics.Yaw, s.Metrics.YawFocus)
	}
}

func TestEngine_ResetReplaysIdentically(t *testing.T) {
	e := newTestEngine(t, func(c *Config) { c.NoFaceThreshold = 3 })

	run := func() []FocusSample {
		var out []FocusSample
		for i := 0; i < 40; i++ {
			switch {
			case i%7 == 3:
				out = append(out, e.ProcessFrame(nil, frameSize, frameSize))
			case i == 20:
				e.Calibrate()
				fallthrough
			default:
				out = append(out, e.ProcessFrame(syntheticFace(float64(i%5)*8), frameSize, frameSize))
			}
		}
		for i := 0; i < 5; i++ {
			out = append(out, e.ProcessFrame(nil, frameSize, frameSize))
		}
		return out
	}

	first := run()
	e.Reset()
	if snap := e.Snapshot(); snap.Frames != 0 || snap.Calibration.Calibrated || snap.Dropouts != 0 {
		t.Fatalf("Reset left state behind: %+v", snap)
	}
	second := run()

	if len(first) != len(second) {
		t.Fatalf("Length mismatch %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("Frame %d differs after reset: %+v vs %+v", i, first[i], second[i])
		}
	}
}

func TestEngine_ScoreAlwaysInRange(t *testing.T) {
	e := newTestEngine(t, func(c *Config) { c.NoFaceThreshold = 2 })
	rng := rand.New(rand.NewSource(42))

	for i := 0; i < 2000; i++ {
		var lms []Landmark
		if rng.Intn(5) > 0 {
			lms = make([]Landmark, MeshSize)
			for j := range lms {
				lms[j] = Landmark{
					X: rng.Float64()*1.4 - 0.2,
					Y: rng.Float64()*1.4 - 0.2,
					Z: rng.Float64()*0.2 - 0.1,
				}
			}
		}
		if i%250 == 0 {
			e.Calibrate()
		}
		s := e.ProcessFrame(lms, 1+rng.Intn(1920), 1+rng.Intn(1080))
		if math.IsNaN(s.Score) || s.Score < 0 || s.Score > 100 {
			t.Fatalf("Frame %d: score %v out of range", i, s.Score)
		}
	}
}

func TestEngine_ConcurrentCalibrate(t *testing.T) {
	e := newTestEngine(t, nil)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			e.Calibrate()
		}
	}()
	for i := 0; i < 200; i++ {
		e.ProcessFrame(syntheticFace(10), frameSize, frameSize)
	}
	<-done
}

func TestEngine_ProcessFrameStateMatchesSample(t *testing.T) {
	// With a threshold of 1 every miss is NoFace, so the state is derivable from the sample.
	e := newTestEngine(t, func(c *Config) { c.NoFaceThreshold = 1 })
	face := syntheticFace(0)

	errs := make(chan string, 400)
	done := make(chan struct{})
	for g := 0; g < 2; g++ {
		go func(g int) {
			defer func() { done <- struct{}{} }()
			for i := 0; i < 200; i++ {
				lms := face
				if (i+g)%2 == 0 {
					lms = nil
				}
				sample, state := e.ProcessFrameState(lms, frameSize, frameSize)
				if (state == NoFace) != (sample.Status == NoFaceDetected) {
					errs <- state.String() + " paired with " + sample.Status.String()
				}
			}
		}(g)
	}
	<-done
	<-done
	close(errs)
	for msg := range errs {
		t.Errorf("State and sample disagree: %s", msg)
	}

	if _, state := e.ProcessFrameState(face, frameSize, frameSize); state != Detecting {
		t.Errorf("Expected Detecting after a face, got %v", state)
	}
}
