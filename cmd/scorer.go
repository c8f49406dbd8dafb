package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/andresmejia3/focuswatch/internal/focus"
	"github.com/andresmejia3/focuswatch/internal/store"
	"github.com/andresmejia3/focuswatch/internal/types"
)

// sampleBatch is how many samples are buffered before a COPY into focus_samples.
const sampleBatch = 500

// sampleSink persists scored samples. *store.Store satisfies it.
type sampleSink interface {
	InsertSamples(ctx context.Context, sessionID string, samples []store.Sample) (int64, error)
}

// frameResult wraps the output from a worker to be sent to the aggregator
type frameResult struct {
	Index  int
	Result types.LandmarkResult
}

type scoreSummary struct {
	Frames      int
	Focused     int
	NoFace      int
	ScoreSum    float64
	Calibration focus.Calibration
}

func (s scoreSummary) MeanScore() float64 {
	if s.Frames == 0 {
		return 0
	}
	return s.ScoreSum / float64(s.Frames)
}

func (s scoreSummary) FocusedPct() float64 {
	if s.Frames == 0 {
		return 0
	}
	return 100 * float64(s.Focused) / float64(s.Frames)
}

// scorer runs frames through one engine in order and persists the samples in batches.
type scorer struct {
	engine      *focus.Engine
	sink        sampleSink // nil disables persistence
	sessionID   string
	calibrateAt int // calibrate once after this many frames; 0 disables
	batchSize   int

	pending []store.Sample
	summary scoreSummary
}

func newScorer(engine *focus.Engine, sink sampleSink, sessionID string, calibrateAt int) *scorer {
	return &scorer{
		engine:      engine,
		sink:        sink,
		sessionID:   sessionID,
		calibrateAt: calibrateAt,
		batchSize:   sampleBatch,
	}
}

// score processes one frame and records the sample.
func (s *scorer) score(ctx context.Context, index int, lms []focus.Landmark, width, height int) (focus.FocusSample, error) {
	sample := s.engine.ProcessFrame(lms, width, height)

	s.summary.Frames++
	s.summary.ScoreSum += sample.Score
	switch sample.Status {
	case focus.Focused:
		s.summary.Focused++
	case focus.NoFaceDetected:
		s.summary.NoFace++
	}

	if s.calibrateAt > 0 && s.summary.Frames == s.calibrateAt {
		if _, err := s.calibrate(); err != nil {
			fmt.Fprintf(os.Stderr, "\n⚠️  Calibration at frame %d skipped: %v\n", index, err)
		}
	}

	if s.sink == nil {
		return sample, nil
	}
	s.pending = append(s.pending, store.Sample{FrameIndex: index, FocusSample: sample})
	if len(s.pending) >= s.batchSize {
		return sample, s.flush(ctx)
	}
	return sample, nil
}

func (s *scorer) calibrate() (focus.Calibration, error) {
	cal, err := s.engine.Calibrate()
	if err != nil {
		return cal, err
	}
	s.summary.Calibration = cal
	fmt.Fprintf(os.Stderr, "\n🎯 Calibrated: neutral pitch %.1f°, neutral yaw %.1f°\n", cal.NeutralPitch, cal.NeutralYaw)
	return cal, nil
}

func (s *scorer) reset() {
	s.engine.Reset()
	s.summary.Calibration = s.engine.Calibration()
}

// flush writes the pending samples.
func (s *scorer) flush(ctx context.Context) error {
	if s.sink == nil || len(s.pending) == 0 {
		return nil
	}
	if _, err := s.sink.InsertSamples(ctx, s.sessionID, s.pending); err != nil {
		return fmt.Errorf("failed to persist %d samples: %w", len(s.pending), err)
	}
	s.pending = s.pending[:0]
	return nil
}

// consume reorders worker results by frame index (worker 2 might finish before worker 1)
// and scores them strictly in order. Indices start at first and advance by step.
// The channel is always drained so workers never block, even after a persistence error.
func (s *scorer) consume(ctx context.Context, results <-chan frameResult, first, step int) error {
	buffer := make(map[int]frameResult)
	next := first
	var errs []error

	for res := range results {
		buffer[res.Index] = res

		// Process frames in strict order
		for {
			frame, ok := buffer[next]
			if !ok {
				break
			}
			delete(buffer, next)
			next += step

			if len(errs) > 0 {
				continue
			}
			if _, err := s.score(ctx, frame.Index, frame.Result.Primary(), frame.Result.Width, frame.Result.Height); err != nil {
				errs = append(errs, err)
			}
		}
	}

	if len(buffer) > 0 {
		errs = append(errs, fmt.Errorf("%d frames never became contiguous (next expected %d)", len(buffer), next))
	}
	if len(errs) == 0 {
		errs = append(errs, s.flush(ctx))
	}
	return errors.Join(errs...)
}
