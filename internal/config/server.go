package config

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"ImageLabelViewer/database/postgres"
	viewerHandler "ImageLabelViewer/internal/api/viewer/handler"
	viewerRepository "ImageLabelViewer/internal/api/viewer/repository"
	viewerService "ImageLabelViewer/internal/api/viewer/service"
	"ImageLabelViewer/internal/middleware"
	"ImageLabelViewer/pkg/gemini"
	"ImageLabelViewer/pkg/hub"
	"ImageLabelViewer/pkg/labeler"
	"ImageLabelViewer/pkg/redis"
	"ImageLabelViewer/pkg/s3"
	"ImageLabelViewer/pkg/utils"
	"ImageLabelViewer/pkg/vision"
	websocketPkg "ImageLabelViewer/pkg/websocket"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
)

type ServerOption func(*Server) error

type Server struct {
	engine      *fiber.App
	db          *sqlx.DB
	log         *logrus.Logger
	middleware  middleware.Middleware
	validator   *validator.Validate
	utils       utils.IUtils
	handlers    []handler
	redisServer redis.IRedis
	s3Client    s3.ItfS3
	labeler     labeler.Factory
	hub         hub.IHub
	viewerCfg   viewerService.Config
}

type handler interface {
	Start(srv fiber.Router)
}

func NewServer(options ...ServerOption) (*Server, error) {
	server := &Server{}

	for _, option := range options {
		if err := option(server); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	if server.engine == nil {
		return nil, fmt.Errorf("fiber app is required")
	}
	if server.log == nil {
		return nil, fmt.Errorf("logger is required")
	}

	return server, nil
}

func WithFiber(fiberApp *fiber.App) ServerOption {
	return func(s *Server) error {
		s.engine = fiberApp
		return nil
	}
}

func WithLogger(logger *logrus.Logger) ServerOption {
	return func(s *Server) error {
		s.log = logger
		return nil
	}
}

func WithValidator(validator *validator.Validate) ServerOption {
	return func(s *Server) error {
		s.validator = validator
		return nil
	}
}

// WithDatabase connects the permission store and brings its schema up to
// date.
func WithDatabase() ServerOption {
	return func(s *Server) error {
		db, err := postgres.New()
		if err != nil {
			if s.log != nil {
				s.log.Errorf("Failed to connect to database: %v", err)
			}
			return fmt.Errorf("failed to create database connection: %w", err)
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := postgres.Migrate(ctx, db); err != nil {
			_ = db.Close()
			return fmt.Errorf("failed to migrate database: %w", err)
		}

		s.db = db
		return nil
	}
}

func WithRedisServer(redisServer redis.IRedis) ServerOption {
	return func(s *Server) error {
		s.redisServer = redisServer
		return nil
	}
}

func WithMiddleware() ServerOption {
	return func(s *Server) error {
		if s.log == nil {
			return fmt.Errorf("logger must be initialized before middleware")
		}
		s.middleware = middleware.New(s.log)
		return nil
	}
}

func WithS3Client() ServerOption {
	return func(s *Server) error {
		client, err := s3.New()
		if err != nil {
			if s.log != nil {
				s.log.Errorf("Failed to initialize S3 client: %v", err)
			}
			return fmt.Errorf("failed to create S3 client: %w", err)
		}
		s.s3Client = client
		return nil
	}
}

// WithLabeler picks the detection backend from LABELER_BACKEND: vision
// (default), gemini or remote.
func WithLabeler() ServerOption {
	return func(s *Server) error {
		factory, err := newLabelerFactory(os.Getenv("LABELER_BACKEND"))
		if err != nil {
			if s.log != nil {
				s.log.Errorf("Failed to configure labeler: %v", err)
			}
			return fmt.Errorf("failed to create labeler: %w", err)
		}
		if s.log != nil {
			s.log.Infof("Using %s labeler", factory.Name())
		}
		s.labeler = factory
		return nil
	}
}

func newLabelerFactory(backend string) (labeler.Factory, error) {
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case "", "vision":
		return vision.NewFactory(context.Background(), vision.ConfigFromEnv())
	case "gemini":
		return gemini.NewFactory(gemini.ConfigFromEnv())
	case "remote":
		return websocketPkg.NewFactory(websocketPkg.ConfigFromEnv())
	default:
		return nil, fmt.Errorf("unknown LABELER_BACKEND %q", backend)
	}
}

func WithHub() ServerOption {
	return func(s *Server) error {
		if s.log == nil {
			return fmt.Errorf("logger must be initialized before hub")
		}
		s.hub = hub.New(s.log)
		return nil
	}
}

func WithViewerConfig(cfg viewerService.Config) ServerOption {
	return func(s *Server) error {
		s.viewerCfg = cfg
		return nil
	}
}

func WithUtils() ServerOption {
	return func(s *Server) error {
		s.utils = utils.New()
		return nil
	}
}

func (s *Server) RegisterHandler() {
	// Viewer
	viewerRepo := viewerRepository.New(s.db, s.log)
	viewerServices := viewerService.NewViewerService(s.log, viewerRepo, s.redisServer, s.s3Client, s.labeler, s.hub, s.utils, s.viewerCfg)
	viewerHandlers := viewerHandler.New(s.log, s.validator, s.middleware, viewerServices, s.utils, s.viewerCfg.LabelingTimeout+10*time.Second)

	s.setupHealthCheck()
	s.handlers = append(s.handlers, viewerHandlers)
}

func (s *Server) Run() error {
	s.engine.Use(s.middleware.NewRequestIDMiddleware())
	s.engine.Use(s.middleware.NewLoggingMiddleware())
	router := s.engine.Group("/api/v1")

	for _, h := range s.handlers {
		h.Start(router)
	}

	port := os.Getenv("APP_PORT")
	if port == "" {
		port = "3000"
	}

	return s.engine.Listen(fmt.Sprintf(":%s", port))
}

// Shutdown stops accepting requests and releases the database.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.engine.ShutdownWithContext(ctx)
	if s.db != nil {
		if cerr := s.db.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}

func (s *Server) setupHealthCheck() {
	s.engine.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.JSON(fiber.Map{
			"message": "Server is Healthy!",
		})
	})
}
