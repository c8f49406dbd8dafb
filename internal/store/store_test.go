package store

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/andresmejia3/focuswatch/internal/focus"
)

// TestStoreIntegration runs a full integration test against a real Postgres container.
// It requires Docker to be running.
func TestStoreIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx := context.Background()

	// Explicitly check for Docker availability and fail hard if missing
	// We wrap this in a function to recover from panics inside testcontainers (e.g. socket not found)
	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("testcontainers panicked: %v", r)
			}
		}()
		_, err = testcontainers.NewDockerClientWithOpts(ctx)
		return
	}()
	if err != nil {
		t.Fatalf("Docker not available, cannot run integration test: %v", err)
	}

	pgContainer, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("focuswatch_test"),
		postgres.WithUsername("user"),
		postgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
		testcontainers.WithLogger(noopLogger{}),
	)
	if err != nil {
		t.Fatalf("Failed to start postgres container: %v", err)
	}
	defer func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Fatalf("Failed to terminate container: %v", err)
		}
	}()

	// Get Connection String
	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("Failed to get connection string: %v", err)
	}

	// Initialize Store (runs migrations)
	s, err := New(ctx, connStr)
	if err != nil {
		t.Fatalf("Failed to connect to store: %v", err)
	}
	defer s.Close()

	// --- Test Scenarios ---

	t.Run("Focus report upsert keeps one row per student", func(t *testing.T) {
		first := focus.FocusSample{Score: 40, Status: focus.NotFocused, Metrics: focus.Metrics{IrisFocus: 35, Yaw: 12.4}}
		second := focus.FocusSample{Score: 82.6, Status: focus.Focused, Metrics: focus.Metrics{IrisFocus: 88, Yaw: 1.2, OrientationFocus: 93}}

		if err := s.UpsertFocusReport(ctx, "math-101", "alice", first); err != nil {
			t.Fatalf("UpsertFocusReport failed: %v", err)
		}
		if err := s.UpsertFocusReport(ctx, "math-101", "alice", second); err != nil {
			t.Fatalf("UpsertFocusReport failed: %v", err)
		}
		if err := s.UpsertFocusReport(ctx, "math-101", "bob", first); err != nil {
			t.Fatalf("UpsertFocusReport failed: %v", err)
		}

		got, err := s.GetFocusReport(ctx, "math-101", "alice")
		if err != nil {
			t.Fatalf("GetFocusReport failed: %v", err)
		}
		if got.Status != focus.Focused || got.Score != 82.6 || got.Metrics.OrientationFocus != 93 {
			t.Errorf("Expected the latest report, got %+v", got)
		}
		if got.MetricsText == "" {
			t.Error("Expected metrics text on a focused report")
		}

		all, err := s.ListFocusReports(ctx, "math-101")
		if err != nil {
			t.Fatalf("ListFocusReports failed: %v", err)
		}
		if len(all) != 2 || all[0].Student != "alice" || all[1].Student != "bob" {
			t.Errorf("Expected alice and bob, got %+v", all)
		}
	})

	t.Run("Missing report", func(t *testing.T) {
		if _, err := s.GetFocusReport(ctx, "math-101", "nobody"); !errors.Is(err, ErrNotFound) {
			t.Errorf("Expected ErrNotFound, got %v", err)
		}
		empty, err := s.ListFocusReports(ctx, "empty-room")
		if err != nil || len(empty) != 0 {
			t.Errorf("Expected empty list, got %v (%v)", empty, err)
		}
	})

	t.Run("Samples and session summary", func(t *testing.T) {
		sess := Session{ID: "sess-1", Room: "math-101", Student: "alice", Source: "/tmp/lecture.mp4"}
		if err := s.CreateSession(ctx, sess); err != nil {
			t.Fatalf("CreateSession failed: %v", err)
		}

		samples := []Sample{
			{FrameIndex: 0, FocusSample: focus.FocusSample{Score: 80, Status: focus.Focused}},
			{FrameIndex: 1, FocusSample: focus.FocusSample{Score: 60, Status: focus.NotFocused}},
			{FrameIndex: 2, FocusSample: focus.FocusSample{Score: 40, Status: focus.NoFaceDetected}},
			{FrameIndex: 3, FocusSample: focus.FocusSample{Score: 100, Status: focus.Focused}},
		}
		n, err := s.InsertSamples(ctx, sess.ID, samples)
		if err != nil {
			t.Fatalf("InsertSamples failed: %v", err)
		}
		if n != int64(len(samples)) {
			t.Errorf("Expected %d rows copied, got %d", len(samples), n)
		}

		// Re-creating the session must clear the old samples
		if err := s.CreateSession(ctx, sess); err != nil {
			t.Fatalf("CreateSession (again) failed: %v", err)
		}
		if _, err := s.InsertSamples(ctx, sess.ID, samples); err != nil {
			t.Fatalf("InsertSamples (again) failed: %v", err)
		}

		summaries, err := s.ListSessions(ctx, "math-101")
		if err != nil {
			t.Fatalf("ListSessions failed: %v", err)
		}
		if len(summaries) != 1 {
			t.Fatalf("Expected 1 session, got %d", len(summaries))
		}
		got := summaries[0]
		if got.Frames != 4 || got.NoFaceCount != 1 {
			t.Errorf("Expected 4 frames / 1 no-face, got %+v", got)
		}
		if math.Abs(got.MeanScore-70) > 1e-9 || math.Abs(got.FocusedPct-50) > 1e-9 {
			t.Errorf("Expected mean 70 and 50%% focused, got %f / %f", got.MeanScore, got.FocusedPct)
		}

		if others, _ := s.ListSessions(ctx, "other-room"); len(others) != 0 {
			t.Errorf("Expected room filter to exclude sessions, got %d", len(others))
		}
	})

	t.Run("Samples keep every metric", func(t *testing.T) {
		sess := Session{ID: "sess-metrics", Room: "math-101", Student: "bob", Source: "replay"}
		if err := s.CreateSession(ctx, sess); err != nil {
			t.Fatalf("CreateSession failed: %v", err)
		}
		want := Sample{FrameIndex: 7, FocusSample: focus.FocusSample{
			Score:  64.5,
			Status: focus.NotFocused,
			Metrics: focus.Metrics{
				IrisFocus: 55, Yaw: 8, YawFocus: 60, Pitch: -3, PitchFocus: 80, OrientationFocus: 68,
			},
		}}
		if _, err := s.InsertSamples(ctx, sess.ID, []Sample{want}); err != nil {
			t.Fatalf("InsertSamples failed: %v", err)
		}

		got, err := s.ListSamples(ctx, sess.ID)
		if err != nil {
			t.Fatalf("ListSamples failed: %v", err)
		}
		if len(got) != 1 || got[0] != want {
			t.Errorf("Expected %+v, got %+v", want, got)
		}
	})

	t.Run("Unknown session has no samples", func(t *testing.T) {
		if others, _ := s.ListSamples(ctx, "missing"); len(others) != 0 {
			t.Errorf("Expected no samples, got %d", len(others))
		}
	})

	t.Run("Reset drops everything", func(t *testing.T) {
		if err := s.Reset(ctx); err != nil {
			t.Fatalf("Reset failed: %v", err)
		}
		if _, err := s.GetFocusReport(ctx, "math-101", "alice"); err == nil {
			t.Error("Expected an error after tables were dropped")
		}
	})
}

type noopLogger struct{}

func (n noopLogger) Printf(format string, v ...interface{}) {}
