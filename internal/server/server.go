// Package server serves the persisted evaluation artifacts over HTTP as JSON.
package server

import (
	"context"
	"errors"
	"fmt"

	"github.com/bytedance/sonic"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/rs/zerolog/log"

	"github.com/tensorplex-labs/molgan/internal/artifact"
	"github.com/tensorplex-labs/molgan/internal/config"
)

// ConfigFromEnv maps the server section of the application config.
func ConfigFromEnv(env config.ServerEnvConfig) *ServerConfig {
	return &ServerConfig{Host: env.Address, Port: env.Port, BodyLimit: env.BodySizeLimit}
}

// NewServer creates a server reading artifacts from store.
func NewServer(serverConfig *ServerConfig, store *artifact.Store) *Server {
	if serverConfig == nil {
		serverConfig = &ServerConfig{
			Host:      DefaultServerHost,
			Port:      DefaultServerPort,
			BodyLimit: DefaultBodyLimit,
		}
	}
	if serverConfig.BodyLimit <= 0 {
		serverConfig.BodyLimit = DefaultBodyLimit
	}

	log.Info().
		Any("serverConfig", serverConfig).
		Str("data_dir", store.DataDir).
		Str("output_dir", store.OutputDir).
		Msg("Server configuration loaded")

	app := fiber.New(fiber.Config{
		Prefork:               false,
		DisableStartupMessage: true,
		ErrorHandler:          fiberErrHandler,
		JSONEncoder:           sonic.Marshal,
		JSONDecoder:           sonic.Unmarshal,
		BodyLimit:             serverConfig.BodyLimit,
	})

	app.Use(recover.New())
	app.Use(compress.New(compress.Config{Level: compress.LevelBestSpeed}))
	app.Use(ZstdMiddleware([]string{"/health"}))

	server := &Server{
		App:    app,
		config: serverConfig,
		store:  store,
	}
	server.routes()
	return server
}

func (s *Server) routes() {
	s.App.Get("/health", s.getHealth)
	s.App.Get("/similarity", s.getSimilarity)
	s.App.Get("/projection", s.getProjection)
	s.App.Get("/report", s.getReport)
	s.App.Get("/synthetic", s.getSynthetic)
	s.App.Get("/training", s.getTraining)
}

func fiberErrHandler(ctx *fiber.Ctx, err error) error {
	// Status code defaults to 500
	code := fiber.StatusInternalServerError

	// Retrieve the custom status code if it's a *fiber.Error
	var e *fiber.Error
	if errors.As(err, &e) {
		code = e.Code
	}

	evt := log.Error()
	if code < fiber.StatusInternalServerError {
		evt = log.Warn()
	}
	evt.Err(err).
		Int("status_code", code).
		Str("path", ctx.Path()).
		Str("method", ctx.Method()).
		Msg("Fiber error handler triggered")

	return ctx.Status(code).JSON(createResponse(map[string]interface{}{}, err))
}

func (s *Server) Addr() string {
	return fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
}

// Start listens until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", s.Addr()).Msg("report server listening")
		errCh <- s.App.Listen(s.Addr())
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		log.Info().Msg("shutting down report server")
		return s.App.Shutdown()
	}
}
