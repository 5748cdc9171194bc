// Package api exposes the redaction service over HTTP.
package api

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"

	"github.com/docshield/redactor/internal/config"
	apperr "github.com/docshield/redactor/internal/errors"
	"github.com/docshield/redactor/internal/manager"
	"github.com/docshield/redactor/internal/metrics"
	"github.com/docshield/redactor/internal/storage"
)

// Server handles the HTTP API.
type Server struct {
	app     *fiber.App
	config  *config.Config
	manager *manager.Manager
	jobs    *storage.JobStore
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// New creates a new API server. jobs may be nil, in which case the job
// lookup endpoints report not found.
func New(cfg *config.Config, mgr *manager.Manager, jobs *storage.JobStore, mx *metrics.Metrics, log *zap.Logger) *Server {
	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    64 << 20,
	})

	s := &Server{
		app:     app,
		config:  cfg,
		manager: mgr,
		jobs:    jobs,
		metrics: mx,
		logger:  log,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.app.Use(recover.New())
	s.app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))

	s.app.Get("/healthz", s.handleHealth)
	s.app.Get("/metrics", adaptor.HTTPHandler(s.metrics.Handler()))

	protected := s.app.Group("/", s.authMiddleware())
	protected.Post("/redact", s.handleRedact)
	protected.Post("/apply", s.handleApply)
	protected.Get("/jobs", s.handleListJobs)
	protected.Get("/jobs/:id", s.handleGetJob)
}

// App exposes the fiber app for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Address, s.config.Server.Port)
	return s.app.Listen(addr)
}

func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.app.ShutdownWithContext(ctx)
}

// authMiddleware enforces the shared key when one is configured. An empty
// key leaves the API open, for local runs.
func (s *Server) authMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		key := s.config.Security.APIKey
		if key == "" {
			return c.Next()
		}
		supplied := c.Get("X-Api-Key")
		if subtle.ConstantTimeCompare([]byte(supplied), []byte(key)) != 1 {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"code":  apperr.ErrUnauthorized.Code,
				"error": apperr.ErrUnauthorized.Message,
			})
		}
		return c.Next()
	}
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

func (s *Server) handleRedact(c *fiber.Ctx) error {
	var req manager.Request
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	result := s.manager.TryRedact(c.Context(), &req)
	return c.JSON(result)
}

func (s *Server) handleApply(c *fiber.Ctx) error {
	var req manager.Request
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	result := s.manager.TryApply(c.Context(), &req)
	return c.JSON(result)
}

func (s *Server) handleGetJob(c *fiber.Ctx) error {
	if s.jobs == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "job records are not enabled"})
	}
	rec, err := s.jobs.Get(c.Params("id"))
	if err != nil {
		if errors.Is(err, apperr.ErrJobNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"code":  apperr.ErrJobNotFound.Code,
				"error": apperr.ErrJobNotFound.Message,
			})
		}
		s.logger.Error("job lookup failed", zap.String("id", c.Params("id")), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "job lookup failed"})
	}
	return c.JSON(rec)
}

func (s *Server) handleListJobs(c *fiber.Ctx) error {
	if s.jobs == nil {
		return c.JSON([]storage.JobRecord{})
	}
	records, err := s.jobs.List()
	if err != nil {
		s.logger.Error("job listing failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "job listing failed"})
	}
	if records == nil {
		records = []storage.JobRecord{}
	}
	return c.JSON(records)
}
