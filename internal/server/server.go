// Package server exposes focus engines over HTTP: live scoring sessions, the per-room focus
// report API and a websocket stream of samples for each room.
package server

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"

	"github.com/andresmejia3/focuswatch/internal/cache"
	"github.com/andresmejia3/focuswatch/internal/focus"
	"github.com/andresmejia3/focuswatch/internal/hub"
	"github.com/andresmejia3/focuswatch/internal/log"
	"github.com/andresmejia3/focuswatch/internal/store"
)

// Repository is the persistence the server needs. *store.Store satisfies it.
type Repository interface {
	CreateSession(ctx context.Context, sess store.Session) error
	UpsertFocusReport(ctx context.Context, room, student string, sample focus.FocusSample) error
	GetFocusReport(ctx context.Context, room, student string) (store.Report, error)
	ListFocusReports(ctx context.Context, room string) ([]store.Report, error)
}

// Options configures a Server.
type Options struct {
	// Engine is the base configuration new sessions start from.
	Engine focus.Config
	// ReportInterval throttles how often a session's sample is written as the student's report.
	ReportInterval time.Duration
}

type Server struct {
	app      *fiber.App
	repo     Repository
	cache    cache.Cache
	hubs     *hub.Registry
	opts     Options
	validate *validator.Validate
	log      *logrus.Entry

	mu       sync.RWMutex
	sessions map[string]*session
}

// New builds the fiber app and registers every route.
func New(repo Repository, c cache.Cache, opts Options) *Server {
	if c == nil {
		c = cache.Nop{}
	}
	s := &Server{
		repo:     repo,
		cache:    c,
		hubs:     hub.NewRegistry(),
		opts:     opts,
		validate: validator.New(),
		log:      log.Component("server"),
		sessions: make(map[string]*session),
	}

	app := fiber.New(fiber.Config{
		AppName:               "focuswatch",
		DisableStartupMessage: true,
		StrictRouting:         true,
		CaseSensitive:         true,
		JSONEncoder:           jsoniter.Marshal,
		JSONDecoder:           jsoniter.Unmarshal,
		ErrorHandler:          s.handleError,
	})
	app.Use(recover.New())
	app.Use(cors.New())

	api := app.Group("/api")
	api.Post("/sessions", s.handleCreateSession)
	api.Get("/sessions/:id", s.handleGetSession)
	api.Delete("/sessions/:id", s.handleDeleteSession)
	api.Post("/sessions/:id/frames", s.handleFrame)
	api.Post("/sessions/:id/calibrate", s.handleCalibrate)
	api.Post("/sessions/:id/reset", s.handleReset)

	api.Get("/focus/:room", s.handleListReports)
	api.Get("/focus/:room/:student", s.handleGetReport)
	api.Post("/focus/:room/:student", s.handleSaveReport)

	// WebSocket upgrade middleware
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/rooms/:room", websocket.New(s.handleRoomWS))

	s.app = app
	return s
}

// App exposes the fiber app, mainly for app.Test.
func (s *Server) App() *fiber.App { return s.app }

// Listen blocks serving addr until Shutdown.
func (s *Server) Listen(addr string) error {
	s.log.Infof("listening on %s", addr)
	return s.app.Listen(addr)
}

// Shutdown stops accepting requests and closes every room hub.
func (s *Server) Shutdown(ctx context.Context) error {
	defer s.hubs.Close()
	return s.app.ShutdownWithContext(ctx)
}

type errorResponse struct {
	Error string `json:"error"`
}

// handleError maps domain errors onto status codes.
func (s *Server) handleError(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError

	var fe *fiber.Error
	var ve validator.ValidationErrors
	switch {
	case errors.As(err, &fe):
		code = fe.Code
	case errors.Is(err, store.ErrNotFound), errors.Is(err, errSessionNotFound):
		code = fiber.StatusNotFound
	case errors.Is(err, focus.ErrNoCalibrationData):
		code = fiber.StatusConflict
	case errors.Is(err, focus.ErrInvalidConfig), errors.As(err, &ve):
		code = fiber.StatusBadRequest
	}

	if code >= fiber.StatusInternalServerError {
		s.log.WithField("path", c.Path()).Errorf("request failed: %v", err)
	}
	return c.Status(code).JSON(errorResponse{Error: err.Error()})
}

// bind parses and validates a JSON body.
func (s *Server) bind(c *fiber.Ctx, dst any) error {
	if err := c.BodyParser(dst); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body: "+err.Error())
	}
	return s.validate.Struct(dst)
}

func (s *Server) handleRoomWS(c *websocket.Conn) {
	room := c.Params("room")
	hub.NewClient(s.hubs.Room(room), c).Run()
}
