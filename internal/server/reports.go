package server

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/andresmejia3/focuswatch/internal/cache"
	"github.com/andresmejia3/focuswatch/internal/focus"
	"github.com/andresmejia3/focuswatch/internal/store"
)

// ReportRequest is a focus sample pushed by a client that scores locally.
type ReportRequest struct {
	Score   float64       `json:"score" validate:"gte=0,lte=100"`
	Status  focus.Status  `json:"status"`
	Metrics focus.Metrics `json:"metrics"`
}

func (s *Server) handleSaveReport(c *fiber.Ctx) error {
	var req ReportRequest
	if err := s.bind(c, &req); err != nil {
		return err
	}
	room, student := c.Params("room"), c.Params("student")
	sample := focus.FocusSample{Score: req.Score, Status: req.Status, Metrics: req.Metrics}
	if err := s.saveReport(c.UserContext(), room, student, sample); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) handleGetReport(c *fiber.Ctx) error {
	ctx := c.UserContext()
	room, student := c.Params("room"), c.Params("student")
	key := cache.ReportKey(room, student)

	var report store.Report
	err := s.cache.GetJSON(ctx, key, &report)
	if err == nil {
		return c.JSON(report)
	}
	if !errors.Is(err, cache.ErrMiss) {
		s.log.Warnf("cache read failed for %s: %v", key, err)
	}

	report, err = s.repo.GetFocusReport(ctx, room, student)
	if err != nil {
		return err
	}
	if err := s.cache.SetJSON(ctx, key, report); err != nil {
		s.log.Warnf("cache write failed for %s: %v", key, err)
	}
	return c.JSON(report)
}

func (s *Server) handleListReports(c *fiber.Ctx) error {
	ctx := c.UserContext()
	room := c.Params("room")
	key := cache.RoomKey(room)

	var reports []store.Report
	err := s.cache.GetJSON(ctx, key, &reports)
	if err == nil {
		return c.JSON(reports)
	}
	if !errors.Is(err, cache.ErrMiss) {
		s.log.Warnf("cache read failed for %s: %v", key, err)
	}

	reports, err = s.repo.ListFocusReports(ctx, room)
	if err != nil {
		return err
	}
	if err := s.cache.SetJSON(ctx, key, reports); err != nil {
		s.log.Warnf("cache write failed for %s: %v", key, err)
	}
	return c.JSON(reports)
}
