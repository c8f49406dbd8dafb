package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"

	"github.com/andresmejia3/focuswatch/internal/focus"
	"github.com/andresmejia3/focuswatch/internal/log"
	"github.com/andresmejia3/focuswatch/internal/store"
	"github.com/andresmejia3/focuswatch/internal/types"
	"github.com/andresmejia3/focuswatch/internal/utils"
)

var (
	replayOpts   Options
	replayEngine focus.Config
)

var replayCmd = &cobra.Command{
	Use:   "replay [file|-]",
	Short: "Score recorded landmark frames (JSON lines) and write one sample per line",
	Long: `Reads one JSON object per line, either a frame
  {"width":640,"height":480,"landmarks":[{"x":0.5,"y":0.4,"z":-0.01}, ...]}
or a control line
  {"op":"calibrate"} / {"op":"reset"}
and writes the resulting samples as JSON lines to stdout. Reads stdin when no file is given.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		in := io.Reader(os.Stdin)
		if len(args) == 1 && args[0] != "-" {
			f, err := os.Open(args[0])
			if err != nil {
				utils.ShowError("Failed to open landmark file", err, nil)
				return err
			}
			defer f.Close()
			in = f
		}

		engine, err := focus.NewEngine(replayEngine, focus.WithLogger(log.Component("engine")))
		if err != nil {
			utils.ShowError("Invalid engine configuration", err, nil)
			return err
		}

		var sink sampleSink
		sessionID := uuid.NewString()
		if replayOpts.Save {
			if err := openDB(cmd.Context()); err != nil {
				return err
			}
			sess := store.Session{ID: sessionID, Room: replayOpts.Room, Student: replayOpts.Student, Source: "replay"}
			if err := DB.CreateSession(cmd.Context(), sess); err != nil {
				utils.ShowError("Failed to register session", err, nil)
				return err
			}
			sink = DB
			fmt.Fprintf(os.Stderr, "💾 Saving samples under session %s\n", sessionID)
		}

		sc := newScorer(engine, sink, sessionID, replayOpts.CalibrateAt)
		bw := bufio.NewWriter(os.Stdout)
		defer bw.Flush()
		return runReplay(cmd.Context(), in, bw, sc)
	},
}

func init() {
	replayCmd.Flags().BoolVar(&replayOpts.Save, "save", false, "Persist the samples as a new session")
	replayCmd.Flags().StringVarP(&replayOpts.Room, "room", "r", "replay", "Room of the saved session")
	replayCmd.Flags().StringVarP(&replayOpts.Student, "student", "s", "anonymous", "Student of the saved session")
	replayCmd.Flags().IntVar(&replayOpts.CalibrateAt, "calibrate-at", 0, "Calibrate the neutral pose after this many frames (0 disables)")
	bindEngineFlags(replayCmd.Flags(), &replayEngine)
	rootCmd.AddCommand(replayCmd)
}

// replayRecord is one output line.
type replayRecord struct {
	Frame       int                `json:"frame,omitempty"`
	Op          string             `json:"op,omitempty"`
	State       *focus.State       `json:"state,omitempty"`
	Sample      *focus.FocusSample `json:"sample,omitempty"`
	Calibration *focus.Calibration `json:"calibration,omitempty"`
	Error       string             `json:"error,omitempty"`
}

var replayJSON = jsoniter.ConfigCompatibleWithStandardLibrary

// runReplay scores every frame line of in and writes a record per line to out.
func runReplay(ctx context.Context, in io.Reader, out io.Writer, sc *scorer) error {
	scanner := bufio.NewScanner(in)
	// A full mesh is ~40KB per line
	scanner.Buffer(make([]byte, 64*1024), 16*megabyte)
	enc := replayJSON.NewEncoder(out)

	line, frame := 0, 0
	for scanner.Scan() {
		line++
		if ctx.Err() != nil {
			return ctx.Err()
		}
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}

		var p types.FramePayload
		if err := replayJSON.Unmarshal(raw, &p); err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}

		var rec replayRecord
		switch p.Op {
		case "":
			frame++
			sample, err := sc.score(ctx, frame, p.Landmarks, p.Width, p.Height)
			if err != nil {
				return err
			}
			state := sc.engine.Snapshot().State
			rec = replayRecord{Frame: frame, State: &state, Sample: &sample}
		case "calibrate":
			rec.Op = p.Op
			cal, err := sc.calibrate()
			if err != nil {
				rec.Error = err.Error()
			} else {
				rec.Calibration = &cal
			}
		case "reset":
			rec.Op = p.Op
			sc.reset()
		default:
			return fmt.Errorf("line %d: unknown op %q", line, p.Op)
		}

		if err := enc.Encode(rec); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	return sc.flush(ctx)
}
