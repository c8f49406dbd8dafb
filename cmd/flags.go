package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/andresmejia3/focuswatch/internal/focus"
	"github.com/andresmejia3/focuswatch/internal/worker"
)

// bindEngineFlags registers the focus engine tunables on fs, defaulting cfg to focus.DefaultConfig.
func bindEngineFlags(fs *pflag.FlagSet, cfg *focus.Config) {
	*cfg = focus.DefaultConfig()
	fs.Float64Var(&cfg.FocusThreshold, "focus-threshold", cfg.FocusThreshold, "Smoothed score at or above which a frame is Focused")
	fs.Float64Var(&cfg.MaxYawAngle, "max-yaw", cfg.MaxYawAngle, "Yaw (degrees) at which yaw focus reaches 0")
	fs.Float64Var(&cfg.MaxPitchAngle, "max-pitch", cfg.MaxPitchAngle, "Pitch (degrees) at which pitch focus reaches 0")
	fs.Float64Var(&cfg.IrisWeight, "iris-weight", cfg.IrisWeight, "Weight of iris focus in the final score")
	fs.Float64Var(&cfg.OrientationWeight, "orientation-weight", cfg.OrientationWeight, "Weight of head orientation in the final score")
	fs.Float64Var(&cfg.YawWeight, "yaw-weight", cfg.YawWeight, "Weight of yaw within orientation focus")
	fs.Float64Var(&cfg.PitchWeight, "pitch-weight", cfg.PitchWeight, "Weight of pitch within orientation focus")
	fs.IntVar(&cfg.FocusBufferSize, "focus-buffer", cfg.FocusBufferSize, "Frames averaged into the smoothed score")
	fs.IntVar(&cfg.AngleSmoothingWindow, "angle-window", cfg.AngleSmoothingWindow, "Frames averaged into the smoothed pitch and yaw")
	fs.IntVar(&cfg.NoFaceThreshold, "no-face-threshold", cfg.NoFaceThreshold, "Consecutive frames without a face before No Face Detected")
	fs.Float64Var(&cfg.NeutralIrisFocus, "neutral-iris", cfg.NeutralIrisFocus, "Iris focus treated as looking straight ahead")
}

// bindWorkerFlags registers the face-mesh detector flags.
func bindWorkerFlags(fs *pflag.FlagSet, opts *Options) {
	def := worker.DefaultConfig()
	fs.StringVar(&opts.Python, "python", def.Python, "Python interpreter for the face-mesh worker")
	fs.StringVar(&opts.Script, "script", def.Script, "Face-mesh worker script")
	fs.Float64Var(&opts.MinConfidence, "min-confidence", def.MinConfidence, "Face detection confidence threshold")
	fs.StringVar(&opts.WorkerTimeout, "worker-timeout", def.ReadTimeout.String(), "Maximum time to wait for one frame (0 disables)")
}

// workerConfig converts the flags into a worker.Config.
func workerConfig(opts Options) (worker.Config, error) {
	cfg := worker.DefaultConfig()
	if opts.Python != "" {
		cfg.Python = opts.Python
	}
	if opts.Script != "" {
		cfg.Script = opts.Script
	}
	if opts.MinConfidence > 0 {
		cfg.MinConfidence = opts.MinConfidence
	}
	if opts.WorkerTimeout != "" {
		d, err := time.ParseDuration(opts.WorkerTimeout)
		if err != nil {
			return cfg, fmt.Errorf("invalid worker-timeout %q: %w", opts.WorkerTimeout, err)
		}
		cfg.ReadTimeout = d
	}
	return cfg, nil
}
