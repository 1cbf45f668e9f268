// Package server HTTP сервер ELIMFILTERS поверх контейнера зависимостей
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"elimfilters/internal/container"
)

// Server HTTP сервер с фоновым майнером правил
type Server struct {
	container  *container.Container
	logger     *zap.Logger
	httpServer *http.Server

	handlerOnce sync.Once
	httpHandler http.Handler

	cancelBackground context.CancelFunc
}

// New создает сервер поверх готового контейнера
func New(c *container.Container) *Server {
	return &Server{
		container: c,
		logger:    c.Logger,
	}
}

// Handler возвращает HTTP handler; router строится один раз
func (s *Server) Handler() http.Handler {
	s.handlerOnce.Do(func() {
		s.httpHandler = s.container.Router()
	})
	return s.httpHandler
}

// ServeHTTP реализует http.Handler для тестов и вспомогательных утилит
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.Handler().ServeHTTP(w, r)
}

// Start запускает майнер и HTTP сервер. Блокирует до остановки сервера
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%s", s.container.Config.Port)
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancelBackground = cancel
	s.container.StartMiner(ctx)

	s.logger.Info("Starting HTTP server",
		zap.String("addr", addr),
		zap.Duration("selfheal_interval", s.container.Config.SelfHeal.Interval),
	)

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start HTTP server on %s: %w", addr, err)
	}
	return nil
}

// Shutdown останавливает HTTP сервер gracefully, затем фоновые задачи и хранилища
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Initiating graceful shutdown...")

	if s.cancelBackground != nil {
		s.cancelBackground()
	}

	var errs []error
	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop HTTP server: %w", err))
		}
	}
	if err := s.container.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close container: %w", err))
	}

	if len(errs) == 0 {
		s.logger.Info("Graceful shutdown completed")
	}
	return errors.Join(errs...)
}
