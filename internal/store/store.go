package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/andresmejia3/focuswatch/internal/focus"
)

// ErrNotFound is returned when a session or report does not exist.
var ErrNotFound = errors.New("not found")

// Store manages the PostgreSQL pool for sessions, samples and focus reports.
type Store struct {
	pool *pgxpool.Pool
}

// Session is one scoring run: a live API session or an offline recording.
type Session struct {
	ID        string    `json:"id"`
	Room      string    `json:"room"`
	Student   string    `json:"student"`
	Source    string    `json:"source"`
	StartedAt time.Time `json:"started_at"`
}

// Sample is a FocusSample tagged with the frame it was produced for.
type Sample struct {
	FrameIndex int
	focus.FocusSample
}

// Report is the latest focus sample reported for a student in a room.
type Report struct {
	Room        string        `json:"room"`
	Student     string        `json:"student"`
	Status      focus.Status  `json:"status"`
	Score       float64       `json:"score"`
	Metrics     focus.Metrics `json:"metrics"`
	MetricsText string        `json:"metrics_text"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// SessionSummary aggregates the samples of one session.
type SessionSummary struct {
	Session
	Frames      int
	MeanScore   float64
	FocusedPct  float64
	NoFaceCount int
}

// New establishes a connection pool to the database and ensures the schema is initialized.
func New(ctx context.Context, connString string) (*Store, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, err
	}

	// Initialize schema (Auto-Migration)
	if err := initSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to initialize database schema: %w", err)
	}

	return &Store{pool: pool}, nil
}

// initSchema creates the necessary tables if they don't exist (Auto-Migration).
func initSchema(ctx context.Context, pool *pgxpool.Pool) error {
	query := `
		CREATE TABLE IF NOT EXISTS focus_sessions (
			id TEXT PRIMARY KEY,
			room TEXT NOT NULL,
			student TEXT NOT NULL,
			source TEXT NOT NULL DEFAULT '',
			started_at TIMESTAMPTZ DEFAULT NOW()
		);
		CREATE TABLE IF NOT EXISTS focus_samples (
			session_id TEXT REFERENCES focus_sessions(id) ON DELETE CASCADE,
			frame_index INT NOT NULL,
			score DOUBLE PRECISION NOT NULL,
			status SMALLINT NOT NULL,
			iris_focus DOUBLE PRECISION NOT NULL,
			yaw DOUBLE PRECISION NOT NULL,
			yaw_focus DOUBLE PRECISION NOT NULL,
			pitch DOUBLE PRECISION NOT NULL,
			pitch_focus DOUBLE PRECISION NOT NULL,
			orientation_focus DOUBLE PRECISION NOT NULL,
			PRIMARY KEY (session_id, frame_index)
		);
		ALTER TABLE focus_samples ADD COLUMN IF NOT EXISTS yaw_focus DOUBLE PRECISION NOT NULL DEFAULT 0;
		ALTER TABLE focus_samples ADD COLUMN IF NOT EXISTS pitch_focus DOUBLE PRECISION NOT NULL DEFAULT 0;
		CREATE TABLE IF NOT EXISTS focus_reports (
			room TEXT NOT NULL,
			student TEXT NOT NULL,
			status SMALLINT NOT NULL,
			score DOUBLE PRECISION NOT NULL,
			metrics JSONB NOT NULL,
			updated_at TIMESTAMPTZ DEFAULT NOW(),
			PRIMARY KEY (room, student)
		);
		CREATE INDEX IF NOT EXISTS focus_sessions_room_idx ON focus_sessions (room);
	`
	_, err := pool.Exec(ctx, query)
	return err
}

// Close releases every pooled connection.
func (s *Store) Close() {
	s.pool.Close()
}

// CreateSession registers a session. Re-registering the same ID clears its previous samples
// so a re-scored recording never accumulates duplicates.
func (s *Store) CreateSession(ctx context.Context, sess Session) error {
	if _, err := s.pool.Exec(ctx, "DELETE FROM focus_samples WHERE session_id = $1", sess.ID); err != nil {
		return err
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO focus_sessions (id, room, student, source, started_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (id) DO UPDATE SET started_at = NOW(), room = EXCLUDED.room,
			student = EXCLUDED.student, source = EXCLUDED.source
	`, sess.ID, sess.Room, sess.Student, sess.Source)
	return err
}

// InsertSamples bulk-loads samples with the COPY protocol.
func (s *Store) InsertSamples(ctx context.Context, sessionID string, samples []Sample) (int64, error) {
	if len(samples) == 0 {
		return 0, nil
	}
	return s.pool.CopyFrom(ctx,
		pgx.Identifier{"focus_samples"},
		sampleColumns,
		pgx.CopyFromSlice(len(samples), func(i int) ([]any, error) {
			smp := samples[i]
			m := smp.Metrics
			return []any{
				sessionID, smp.FrameIndex, smp.Score, int16(smp.Status),
				m.IrisFocus, m.Yaw, m.YawFocus, m.Pitch, m.PitchFocus, m.OrientationFocus,
			}, nil
		}),
	)
}

var sampleColumns = []string{
	"session_id", "frame_index", "score", "status",
	"iris_focus", "yaw", "yaw_focus", "pitch", "pitch_focus", "orientation_focus",
}

// ListSamples returns the samples of a session ordered by frame.
func (s *Store) ListSamples(ctx context.Context, sessionID string) ([]Sample, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT frame_index, score, status, iris_focus, yaw, yaw_focus, pitch, pitch_focus, orientation_focus
		FROM focus_samples WHERE session_id = $1 ORDER BY frame_index
	`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Sample
	for rows.Next() {
		var smp Sample
		var status int16
		m := &smp.Metrics
		if err := rows.Scan(&smp.FrameIndex, &smp.Score, &status,
			&m.IrisFocus, &m.Yaw, &m.YawFocus, &m.Pitch, &m.PitchFocus, &m.OrientationFocus); err != nil {
			return nil, err
		}
		smp.Status = focus.Status(status)
		out = append(out, smp)
	}
	return out, rows.Err()
}

// UpsertFocusReport keeps exactly one latest report per (room, student).
func (s *Store) UpsertFocusReport(ctx context.Context, room, student string, sample focus.FocusSample) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO focus_reports (room, student, status, score, metrics, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (room, student) DO UPDATE SET status = EXCLUDED.status, score = EXCLUDED.score,
			metrics = EXCLUDED.metrics, updated_at = NOW()
	`, room, student, int16(sample.Status), sample.Score, sample.Metrics)
	return err
}

const reportColumns = "room, student, status, score, metrics, updated_at"

func scanReport(row pgx.Row) (Report, error) {
	var r Report
	var status int16
	if err := row.Scan(&r.Room, &r.Student, &status, &r.Score, &r.Metrics, &r.UpdatedAt); err != nil {
		return Report{}, err
	}
	r.Status = focus.Status(status)
	r.MetricsText = focus.FocusSample{Status: r.Status, Metrics: r.Metrics}.MetricsText()
	return r, nil
}

// GetFocusReport returns the latest report of one student.
func (s *Store) GetFocusReport(ctx context.Context, room, student string) (Report, error) {
	row := s.pool.QueryRow(ctx, "SELECT "+reportColumns+" FROM focus_reports WHERE room = $1 AND student = $2", room, student)
	r, err := scanReport(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Report{}, ErrNotFound
	}
	return r, err
}

// ListFocusReports returns the latest report of every student in a room, ordered by student.
func (s *Store) ListFocusReports(ctx context.Context, room string) ([]Report, error) {
	rows, err := s.pool.Query(ctx, "SELECT "+reportColumns+" FROM focus_reports WHERE room = $1 ORDER BY student", room)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	reports := []Report{}
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		reports = append(reports, r)
	}
	return reports, rows.Err()
}

// ListSessions summarizes sessions, newest first. An empty room lists every room.
func (s *Store) ListSessions(ctx context.Context, room string) ([]SessionSummary, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT s.id, s.room, s.student, s.source, s.started_at,
			COUNT(f.frame_index),
			COALESCE(AVG(f.score), 0)::float8,
			COALESCE(100.0 * AVG(CASE WHEN f.status = $2 THEN 1 ELSE 0 END), 0)::float8,
			COUNT(f.frame_index) FILTER (WHERE f.status = $3)
		FROM focus_sessions s
		LEFT JOIN focus_samples f ON f.session_id = s.id
		WHERE $1::text = '' OR s.room = $1
		GROUP BY s.id
		ORDER BY s.started_at DESC
	`, room, int16(focus.Focused), int16(focus.NoFaceDetected))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SessionSummary
	for rows.Next() {
		var ss SessionSummary
		if err := rows.Scan(&ss.ID, &ss.Room, &ss.Student, &ss.Source, &ss.StartedAt,
			&ss.Frames, &ss.MeanScore, &ss.FocusedPct, &ss.NoFaceCount); err != nil {
			return nil, err
		}
		out = append(out, ss)
	}
	return out, rows.Err()
}

// Reset drops all application tables to clear the database state.
// This is useful for development to force a schema refresh without migrations.
func (s *Store) Reset(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		DROP TABLE IF EXISTS focus_samples CASCADE;
		DROP TABLE IF EXISTS focus_sessions CASCADE;
		DROP TABLE IF EXISTS focus_reports CASCADE;
	`)
	return err
}
