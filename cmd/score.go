package cmd

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/andresmejia3/focuswatch/internal/focus"
	"github.com/andresmejia3/focuswatch/internal/log"
	"github.com/andresmejia3/focuswatch/internal/store"
	"github.com/andresmejia3/focuswatch/internal/types"
	"github.com/andresmejia3/focuswatch/internal/utils"
	"github.com/andresmejia3/focuswatch/internal/worker"
)

const megabyte = 1024 * 1024

var (
	scoreOpts   Options
	scoreEngine focus.Config
)

var scoreCmd = &cobra.Command{
	Use:         "score",
	Short:       "Score a recorded video frame by frame with parallel face-mesh workers",
	Annotations: map[string]string{annotationDB: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		return runScore(cmd.Context(), scoreOpts, scoreEngine)
	},
}

func init() {
	scoreCmd.Flags().StringVarP(&scoreOpts.InputPath, "input", "i", "", "Path to video")
	scoreCmd.Flags().IntVarP(&scoreOpts.NthFrame, "nth-frame", "n", 1, "Score every nth frame")
	scoreCmd.Flags().IntVarP(&scoreOpts.NumEngines, "engines", "e", 1, "Number of parallel face-mesh workers")
	scoreCmd.Flags().IntVar(&scoreOpts.CalibrateAt, "calibrate-at", 0, "Calibrate the neutral pose after this many scored frames (0 disables)")
	scoreCmd.Flags().StringVarP(&scoreOpts.Room, "room", "r", "offline", "Room the session belongs to")
	scoreCmd.Flags().StringVarP(&scoreOpts.Student, "student", "s", "", "Student being scored (default: video file name)")
	bindWorkerFlags(scoreCmd.Flags(), &scoreOpts)
	bindEngineFlags(scoreCmd.Flags(), &scoreEngine)

	scoreCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(scoreCmd)
}

// Buffer pool to reduce GC pressure during scoring
var frameBufferPool = sync.Pool{
	New: func() interface{} { return make([]byte, 0, megabyte) },
}

// runScore orchestrates offline scoring: session setup, worker pool, FFmpeg streaming,
// in-order scoring and progress tracking.
func runScore(ctx context.Context, opts Options, cfg focus.Config) error {
	if err := validateScoreFlags(&opts); err != nil {
		return err
	}
	wcfg, err := workerConfig(opts)
	if err != nil {
		utils.ShowError("Invalid worker flags", err, nil)
		return err
	}

	engine, err := focus.NewEngine(cfg, focus.WithLogger(log.Component("engine")))
	if err != nil {
		utils.ShowError("Invalid engine configuration", err, nil)
		return err
	}

	// 1. Database is initialized in Root PersistentPreRun
	// 2. Generate Session ID & Register. Re-scoring the same file replaces its samples.
	sourceID, err := utils.GenerateSourceID(opts.InputPath)
	if err != nil {
		utils.ShowError("Failed to generate session ID", err, nil)
		return err
	}
	sess := store.Session{ID: sourceID[:16], Room: opts.Room, Student: opts.Student, Source: opts.InputPath}
	if err := DB.CreateSession(ctx, sess); err != nil {
		utils.ShowError("Failed to register session", err, nil)
		return err
	}
	fmt.Fprintf(os.Stderr, "📼 Scoring %s as %s/%s (session %s)\n", filepath.Base(opts.InputPath), sess.Room, sess.Student, sess.ID)
	fmt.Fprintf(os.Stderr, "⚙️  Spawning %d Face-Mesh Workers...\n", opts.NumEngines)

	// 3. Get FPS for Time Calculations
	fps, err := utils.GetVideoFPS(opts.InputPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "⚠️  Could not determine FPS (%v), assuming 30\n", err)
		fps = 30
	}

	// 4. Get total frames for progress bar
	totalVideoFrames := utils.GetTotalFrames(opts.InputPath)
	if totalVideoFrames <= 0 {
		// Fallback to a spinner if ffprobe fails
		totalVideoFrames = -1
	}

	bar := progressbar.NewOptions(totalVideoFrames,
		progressbar.OptionSetDescription("👁️  Scoring focus"),
		progressbar.OptionSetWriter(os.Stderr), // Write bar to Stderr
		progressbar.OptionShowCount(),
	)

	taskChan := make(chan types.FrameTask, opts.NumEngines)
	resultsChan := make(chan frameResult, opts.NumEngines*2)
	var wg sync.WaitGroup

	// 5. Start Aggregator (Consumer)
	// Must run concurrently to prevent deadlock on resultsChan
	sc := newScorer(engine, DB, sess.ID, opts.CalibrateAt)
	aggErr := make(chan error, 1)
	go func() {
		aggErr <- sc.consume(ctx, resultsChan, opts.NthFrame, opts.NthFrame)
	}()

	// 6. Spawn the Worker Pool
	for i := 0; i < opts.NumEngines; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			startWorker(ctx, workerID, wcfg, taskChan, resultsChan)
		}(i)
	}

	// 7. Start FFmpeg
	ffmpeg := utils.NewFFmpegCmd(ctx, opts.InputPath)

	var stderrBuf bytes.Buffer
	ffmpeg.Stderr = &stderrBuf

	ffmpegOut, err := ffmpeg.StdoutPipe()
	if err != nil {
		utils.Die("Failed to create FFmpeg stdout pipe", err, nil)
	}
	defer ffmpegOut.Close() // Ensure pipe is closed to prevent leaks/zombies

	if err := ffmpeg.Start(); err != nil {
		utils.Die("Failed to start FFmpeg", err, nil)
	}

	// 8. Frame Splitter & Nth-Frame Logic
	scanner := bufio.NewScanner(ffmpegOut)
	scanner.Buffer(make([]byte, megabyte), 64*megabyte)
	scanner.Split(utils.SplitJpeg)

	totalFrames := 0
	sentFrames := 0
	for scanner.Scan() {
		if ctx.Err() != nil {
			break
		}
		totalFrames++
		bar.Add(1) // Update progress bar for every frame read

		if totalFrames%opts.NthFrame == 0 {
			// Get buffer from pool
			buf := frameBufferPool.Get().([]byte)
			if cap(buf) < len(scanner.Bytes()) {
				buf = make([]byte, len(scanner.Bytes()))
			}
			buf = buf[:len(scanner.Bytes())]
			copy(buf, scanner.Bytes())
			taskChan <- types.FrameTask{Index: totalFrames, Data: buf}
			sentFrames++
		}
	}

	// Check for scanner errors (e.g. token too long, unexpected EOF)
	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		utils.Die("Frame scanner failed", err, nil)
	}

	// 9. Cleanup & Completion Check
	if err := ffmpeg.Wait(); err != nil && ctx.Err() == nil {
		if stderrBuf.Len() > 0 {
			fmt.Fprintf(os.Stderr, "\nFFmpeg Logs:\n%s\n", stderrBuf.String())
		}
		utils.Die("FFmpeg execution failed", err, nil)
	}

	close(taskChan)
	wg.Wait()
	close(resultsChan)

	// Wait for aggregator to finish processing
	if err := <-aggErr; err != nil {
		utils.ShowError("Scoring failed", err, nil)
		return err
	}

	bar.Finish()
	if ctx.Err() != nil {
		fmt.Fprintf(os.Stderr, "\n🛑 Interrupted after %d frames.\n", totalFrames)
	}
	printScoreSummary(sc.summary, sentFrames, totalFrames, float64(opts.NthFrame)/fps)
	return nil
}

// startWorker manages the lifecycle of a single face-mesh worker process.
// It reads tasks from the channel, sends them to Python, and forwards landmarks to the aggregator.
func startWorker(ctx context.Context, id int, cfg worker.Config, tasks <-chan types.FrameTask, results chan<- frameResult) {
	w, err := worker.NewFaceMeshWorker(ctx, id, cfg)
	if err != nil {
		utils.Die("Worker startup failed", err, nil)
	}
	defer w.Close()

	for task := range tasks {
		res, err := w.ProcessFrame(task.Data)

		// Return buffer to pool immediately after sending
		frameBufferPool.Put(task.Data[:0])

		if errors.Is(err, worker.ErrDetector) {
			// The frame is lost but the worker is alive. Scored as a frame without a face.
			log.Warn(log.Fields{"worker": id, "frame": task.Index, "error": err}, "frame scored as no face")
			results <- frameResult{Index: task.Index}
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				// Interrupted: the process was killed, keep the aggregator unblocked
				results <- frameResult{Index: task.Index}
				continue
			}
			// DRAIN: Wait for process to exit and capture final stderr logs
			w.Close()
			utils.Die("Python crashed", err, w.Cmd)
		}

		results <- frameResult{Index: task.Index, Result: res}
	}
}

func printScoreSummary(sum scoreSummary, scored, total int, secondsPerSample float64) {
	fmt.Fprintf(os.Stderr, "\n---------------------------------------------------------\n")
	fmt.Fprintf(os.Stderr, "📊 FOCUS SUMMARY\n")
	fmt.Fprintf(os.Stderr, "---------------------------------------------------------\n")
	fmt.Fprintf(os.Stderr, "🎞️  Frames Scored:      %d of %d\n", scored, total)
	fmt.Fprintf(os.Stderr, "🎯 Focused:            %.1f%% (%s)\n", sum.FocusedPct(), fmtTime(float64(sum.Focused)*secondsPerSample))
	fmt.Fprintf(os.Stderr, "📈 Mean Score:         %.1f\n", sum.MeanScore())
	fmt.Fprintf(os.Stderr, "🙈 No Face Frames:     %d (%s)\n", sum.NoFace, fmtTime(float64(sum.NoFace)*secondsPerSample))
	if sum.Calibration.Calibrated {
		fmt.Fprintf(os.Stderr, "🧭 Neutral Pose:       pitch %.1f°, yaw %.1f°\n", sum.Calibration.NeutralPitch, sum.Calibration.NeutralYaw)
	}
	fmt.Fprintf(os.Stderr, "---------------------------------------------------------\n")
}

// validateScoreFlags ensures all CLI arguments are valid before starting heavy processes.
func validateScoreFlags(opts *Options) error {
	info, err := os.Stat(opts.InputPath)
	if err != nil {
		if os.IsNotExist(err) {
			utils.ShowError("Input file does not exist", err, nil)
			return err
		}
		utils.ShowError("Unable to access input file", err, nil)
		return err
	}
	if info.IsDir() {
		err := fmt.Errorf("%s is a directory, expected a video file", opts.InputPath)
		utils.ShowError("Invalid input path", err, nil)
		return err
	}
	if opts.NthFrame < 1 {
		err := fmt.Errorf("must be >= 1, got %d", opts.NthFrame)
		utils.ShowError("Invalid nth-frame interval", err, nil)
		return err
	}
	if opts.NumEngines < 1 {
		opts.NumEngines = 1
	}
	if opts.CalibrateAt < 0 {
		err := fmt.Errorf("must be >= 0, got %d", opts.CalibrateAt)
		utils.ShowError("Invalid calibrate-at frame count", err, nil)
		return err
	}
	if strings.TrimSpace(opts.Room) == "" {
		err := errors.New("room must not be empty")
		utils.ShowError("Invalid room", err, nil)
		return err
	}
	if opts.Student == "" {
		base := filepath.Base(opts.InputPath)
		opts.Student = strings.TrimSuffix(base, filepath.Ext(base))
	}
	if opts.WorkerTimeout != "" {
		if _, err := time.ParseDuration(opts.WorkerTimeout); err != nil {
			utils.ShowError("Invalid worker-timeout format (use '30s', '500ms')", err, nil)
			return err
		}
	}
	return nil
}

func fmtTime(seconds float64) string {
	duration := time.Duration(seconds * float64(time.Second))
	h := int(duration.Hours())
	m := int(duration.Minutes()) % 60
	s := int(duration.Seconds()) % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}
