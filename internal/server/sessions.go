package server

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/andresmejia3/focuswatch/internal/cache"
	"github.com/andresmejia3/focuswatch/internal/focus"
	"github.com/andresmejia3/focuswatch/internal/store"
	"github.com/andresmejia3/focuswatch/internal/types"
)

var errSessionNotFound = errors.New("session not found")

// session is one student's live engine.
type session struct {
	id      string
	room    string
	student string
	engine  *focus.Engine
	report  *rate.Limiter
	created time.Time
}

// ConfigOverrides replaces individual engine settings for one session.
type ConfigOverrides struct {
	FocusThreshold       *float64 `json:"focus_threshold"`
	MaxYawAngle          *float64 `json:"max_yaw_angle"`
	MaxPitchAngle        *float64 `json:"max_pitch_angle"`
	IrisWeight           *float64 `json:"iris_weight"`
	OrientationWeight    *float64 `json:"orientation_weight"`
	YawWeight            *float64 `json:"yaw_weight"`
	PitchWeight          *float64 `json:"pitch_weight"`
	FocusBufferSize      *int     `json:"focus_buffer_size"`
	AngleSmoothingWindow *int     `json:"angle_smoothing_window"`
	NoFaceThreshold      *int     `json:"no_face_threshold"`
	NeutralIrisFocus     *float64 `json:"neutral_iris_focus"`
}

// Apply returns cfg with every non-nil override set.
func (o *ConfigOverrides) Apply(cfg focus.Config) focus.Config {
	if o == nil {
		return cfg
	}
	setF := func(dst *float64, v *float64) {
		if v != nil {
			*dst = *v
		}
	}
	setI := func(dst *int, v *int) {
		if v != nil {
			*dst = *v
		}
	}
	setF(&cfg.FocusThreshold, o.FocusThreshold)
	setF(&cfg.MaxYawAngle, o.MaxYawAngle)
	setF(&cfg.MaxPitchAngle, o.MaxPitchAngle)
	setF(&cfg.IrisWeight, o.IrisWeight)
	setF(&cfg.OrientationWeight, o.OrientationWeight)
	setF(&cfg.YawWeight, o.YawWeight)
	setF(&cfg.PitchWeight, o.PitchWeight)
	setI(&cfg.FocusBufferSize, o.FocusBufferSize)
	setI(&cfg.AngleSmoothingWindow, o.AngleSmoothingWindow)
	setI(&cfg.NoFaceThreshold, o.NoFaceThreshold)
	setF(&cfg.NeutralIrisFocus, o.NeutralIrisFocus)
	return cfg
}

type CreateSessionRequest struct {
	Room    string           `json:"room" validate:"required,max=128"`
	Student string           `json:"student" validate:"required,max=128"`
	Config  *ConfigOverrides `json:"config"`
}

type SessionResponse struct {
	ID        string          `json:"id"`
	Room      string          `json:"room"`
	Student   string          `json:"student"`
	CreatedAt time.Time       `json:"created_at"`
	Config    *focus.Config   `json:"config,omitempty"`
	Snapshot  *focus.Snapshot `json:"snapshot,omitempty"`
}

// FrameResponse is the rounded sample shown to the student, plus the engine's dropout state.
type FrameResponse struct {
	SessionID   string            `json:"session_id"`
	Student     string            `json:"student"`
	State       focus.State       `json:"state"`
	Sample      focus.FocusSample `json:"sample"`
	MetricsText string            `json:"metrics_text"`
}

func (s *Server) lookup(id string) (*session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, errSessionNotFound
	}
	return sess, nil
}

func (s *Server) handleCreateSession(c *fiber.Ctx) error {
	var req CreateSessionRequest
	if err := s.bind(c, &req); err != nil {
		return err
	}

	cfg := req.Config.Apply(s.opts.Engine)
	id := uuid.NewString()
	engine, err := focus.NewEngine(cfg, focus.WithLogger(s.log.WithField("session", id)))
	if err != nil {
		return err
	}

	interval := s.opts.ReportInterval
	if interval <= 0 {
		interval = time.Second
	}
	sess := &session{
		id:      id,
		room:    req.Room,
		student: req.Student,
		engine:  engine,
		report:  rate.NewLimiter(rate.Every(interval), 1),
		created: time.Now(),
	}

	if err := s.repo.CreateSession(c.UserContext(), store.Session{
		ID: id, Room: req.Room, Student: req.Student, Source: "live",
	}); err != nil {
		return err
	}

	s.mu.Lock()
	s.sessions[id] = sess
	s.mu.Unlock()

	s.log.WithField("session", id).Infof("session started for %s in %s", req.Student, req.Room)
	engineCfg := engine.Config()
	return c.Status(fiber.StatusCreated).JSON(SessionResponse{
		ID: id, Room: req.Room, Student: req.Student, CreatedAt: sess.created, Config: &engineCfg,
	})
}

func (s *Server) handleGetSession(c *fiber.Ctx) error {
	sess, err := s.lookup(c.Params("id"))
	if err != nil {
		return err
	}
	snap := sess.engine.Snapshot()
	return c.JSON(SessionResponse{
		ID: sess.id, Room: sess.room, Student: sess.student, CreatedAt: sess.created, Snapshot: &snap,
	})
}

func (s *Server) handleDeleteSession(c *fiber.Ctx) error {
	id := c.Params("id")
	s.mu.Lock()
	_, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()
	if !ok {
		return errSessionNotFound
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) handleFrame(c *fiber.Ctx) error {
	sess, err := s.lookup(c.Params("id"))
	if err != nil {
		return err
	}

	var frame types.FramePayload
	if err := s.bind(c, &frame); err != nil {
		return err
	}

	sample, state := sess.engine.ProcessFrameState(frame.Landmarks, frame.Width, frame.Height)
	resp := FrameResponse{
		SessionID:   sess.id,
		Student:     sess.student,
		State:       state,
		Sample:      sample.Rounded(),
		MetricsText: sample.MetricsText(),
	}

	if err := s.hubs.Publish(sess.room, resp); err != nil {
		s.log.Warnf("broadcast failed: %v", err)
	}
	if sess.report.Allow() {
		if err := s.saveReport(c.UserContext(), sess.room, sess.student, sample); err != nil {
			s.log.WithField("session", sess.id).Warnf("focus report not saved: %v", err)
		}
	}
	return c.JSON(resp)
}

func (s *Server) handleCalibrate(c *fiber.Ctx) error {
	sess, err := s.lookup(c.Params("id"))
	if err != nil {
		return err
	}
	cal, err := sess.engine.Calibrate()
	if err != nil {
		return err
	}
	return c.JSON(cal)
}

func (s *Server) handleReset(c *fiber.Ctx) error {
	sess, err := s.lookup(c.Params("id"))
	if err != nil {
		return err
	}
	sess.engine.Reset()
	snap := sess.engine.Snapshot()
	return c.JSON(SessionResponse{
		ID: sess.id, Room: sess.room, Student: sess.student, CreatedAt: sess.created, Snapshot: &snap,
	})
}

// saveReport upserts the student's latest report and drops the cached copies.
func (s *Server) saveReport(ctx context.Context, room, student string, sample focus.FocusSample) error {
	if err := s.repo.UpsertFocusReport(ctx, room, student, sample); err != nil {
		return err
	}
	if err := s.cache.Delete(ctx, cache.ReportKey(room, student), cache.RoomKey(room)); err != nil {
		s.log.Warnf("cache invalidation failed: %v", err)
	}
	return nil
}
