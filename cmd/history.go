package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/andresmejia3/focuswatch/internal/utils"
)

var (
	historyRoom    string
	historySession string
)

var historyCmd = &cobra.Command{
	Use:         "history",
	Short:       "List scored sessions and their aggregate focus",
	Annotations: map[string]string{annotationDB: "true"},
	Run: func(cmd *cobra.Command, args []string) {
		if historySession != "" {
			runSessionSamples(cmd.Context(), historySession)
			return
		}
		runHistory(cmd.Context(), historyRoom)
	},
}

func init() {
	historyCmd.Flags().StringVarP(&historyRoom, "room", "r", "", "Only list sessions of this room")
	historyCmd.Flags().StringVar(&historySession, "session", "", "List the per-frame samples of one session instead")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(ctx context.Context, room string) {
	sessions, err := DB.ListSessions(ctx, room)
	if err != nil {
		utils.Die("Failed to list sessions", err, nil)
	}

	if len(sessions) == 0 {
		fmt.Println("No sessions found in database.")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "SESSION\tROOM\tSTUDENT\tFRAMES\tMEAN SCORE\tFOCUSED\tNO FACE\tSTARTED")
	fmt.Fprintln(w, "-------\t----\t-------\t------\t----------\t-------\t-------\t-------")

	for _, s := range sessions {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%.1f\t%.1f%%\t%d\t%s\n",
			shortID(s.ID), s.Room, s.Student, s.Frames, s.MeanScore, s.FocusedPct, s.NoFaceCount,
			s.StartedAt.Local().Format("2006-01-02 15:04"))
	}
	w.Flush()
}

func runSessionSamples(ctx context.Context, sessionID string) {
	samples, err := DB.ListSamples(ctx, sessionID)
	if err != nil {
		utils.Die("Failed to list samples", err, nil)
	}

	if len(samples) == 0 {
		fmt.Printf("No samples found for session %s.\n", sessionID)
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "FRAME\tSCORE\tSTATUS\tIRIS\tYAW\tYAW FOCUS\tPITCH\tPITCH FOCUS\tORIENTATION")
	fmt.Fprintln(w, "-----\t-----\t------\t----\t---\t---------\t-----\t-----------\t-----------")

	for _, smp := range samples {
		m := smp.Metrics
		fmt.Fprintf(w, "%d\t%.0f\t%s\t%.0f%%\t%.0f°\t%.0f%%\t%.0f°\t%.0f%%\t%.0f%%\n",
			smp.FrameIndex, smp.Score, smp.Status, m.IrisFocus, m.Yaw, m.YawFocus, m.Pitch, m.PitchFocus, m.OrientationFocus)
	}
	w.Flush()
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
