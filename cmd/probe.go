package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/andresmejia3/focuswatch/internal/focus"
	"github.com/andresmejia3/focuswatch/internal/utils"
	"github.com/andresmejia3/focuswatch/internal/worker"
)

var (
	probeOpts   Options
	probeEngine focus.Config
)

var probeCmd = &cobra.Command{
	Use:   "probe <image_path>",
	Short: "Run the face-mesh worker on one image and print the extracted eye and pose geometry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		return runProbe(cmd.Context(), args[0], probeOpts, probeEngine)
	},
}

func init() {
	bindWorkerFlags(probeCmd.Flags(), &probeOpts)
	bindEngineFlags(probeCmd.Flags(), &probeEngine)
	rootCmd.AddCommand(probeCmd)
}

func runProbe(ctx context.Context, imagePath string, opts Options, cfg focus.Config) error {
	if _, err := os.Stat(imagePath); os.IsNotExist(err) {
		utils.ShowError("Input file does not exist", err, nil)
		return err
	}
	engine, err := focus.NewEngine(cfg)
	if err != nil {
		utils.ShowError("Invalid engine configuration", err, nil)
		return err
	}
	wcfg, err := workerConfig(opts)
	if err != nil {
		utils.ShowError("Invalid worker flags", err, nil)
		return err
	}

	fmt.Fprintln(os.Stderr, "🚀 Starting Face-Mesh Worker...")
	// We use ID 0 for this ad-hoc worker
	w, err := worker.NewFaceMeshWorker(ctx, 0, wcfg)
	if err != nil {
		utils.ShowError("Failed to start face-mesh worker", err, nil)
		return err
	}
	defer w.Close()

	imgData, err := os.ReadFile(imagePath)
	if err != nil {
		utils.ShowError("Failed to read image file", err, nil)
		return err
	}

	fmt.Fprintln(os.Stderr, "🔍 Extracting landmarks...")
	res, err := w.ProcessFrame(imgData)
	if err != nil {
		utils.ShowError("Landmark detection failed", err, w.Cmd)
		return err
	}

	lms := res.Primary()
	if lms == nil {
		fmt.Println("❌ No face detected in the provided image.")
		return nil
	}
	if len(res.Faces) > 1 {
		fmt.Printf("⚠️  Multiple faces detected (%d). Using the first face.\n", len(res.Faces))
	}
	ix := cfg.Indices
	if len(lms) <= ix.MaxIndex() {
		fmt.Printf("❌ Only %d landmarks returned, the index scheme needs %d (refined iris landmarks missing?).\n", len(lms), ix.MaxIndex()+1)
		return nil
	}

	printProbe(res.Width, res.Height, lms, ix, engine.ProcessFrame(lms, res.Width, res.Height))
	return nil
}

func printProbe(width, height int, lms []focus.Landmark, ix focus.Indices, sample focus.FocusSample) {
	g := focus.ExtractGeometry(lms, width, height, ix)
	pose := focus.EstimatePose(g.Pose)

	fmt.Printf("🖼️  Frame %dx%d, %d landmarks\n\n", width, height, len(lms))

	wOut := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
	fmt.Fprintln(wOut, "EYE\tBOX (x0,y0)-(x1,y1)\tIRIS\tFOCUS")
	fmt.Fprintln(wOut, "---\t-------------------\t----\t-----")
	for _, e := range []struct {
		name string
		eye  focus.Eye
	}{{"left", g.Left}, {"right", g.Right}} {
		if !e.eye.OK {
			fmt.Fprintf(wOut, "%s\t(outside frame)\t-\t0%%\n", e.name)
			continue
		}
		b := e.eye.Box
		fmt.Fprintf(wOut, "%s\t(%.0f,%.0f)-(%.0f,%.0f)\t(%.0f,%.0f)\t%.0f%%\n",
			e.name, b.MinX, b.MinY, b.MaxX, b.MaxY, e.eye.Iris.X, e.eye.Iris.Y, focus.EyeFocus(b, e.eye.Iris))
	}
	wOut.Flush()

	fmt.Printf("\n🧭 Pose: pitch %.1f°, yaw %.1f°, roll %.1f°\n", pose.Pitch, pose.Yaw, pose.Roll)
	fmt.Printf("📈 Single-frame score: %.0f (%s)\n%s\n", sample.Score, sample.Status, sample.MetricsText())
}
