package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"chess_analysis/internal/app"
	"chess_analysis/internal/bootstrap"
	analysisDelivery "chess_analysis/internal/delivery/analysis"
	ownMiddleware "chess_analysis/internal/middleware"
)

type mainDeliveryHandler struct {
	analysis *analysisDelivery.AnalysisHandler
}

func main() {
	logger := NewLogger()
	defer logger.Sync()

	cfg, err := bootstrap.Setup(".env")
	if err != nil {
		logger.Errorw("Failed to setup configuration", "error", err)
		return
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	stack := app.New(ctx, cfg, logger)
	defer stack.Close(context.Background())

	r := chi.NewRouter()
	handlers := initializeDeliveryHandlers(stack, logger)
	handlers.Router(r, cfg.IsLocalCors)

	srv := &http.Server{
		Addr:              cfg.ServerPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("Server is running on port %s", cfg.ServerPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		logger.Errorw("Failed to start server", "error", err)
		return
	case <-ctx.Done():
		logger.Info("Received shutdown signal")
	}

	handleShutdown(srv, logger)
}

func NewLogger() *zap.SugaredLogger {
	if os.Getenv("DEBUG") != "" {
		logger, err := zap.NewDevelopment()
		if err != nil {
			panic("failed to initialize logger: " + err.Error())
		}
		return logger.Sugar()
	}
	logger, err := zap.NewProduction()
	if err != nil {
		panic("failed to initialize logger: " + err.Error())
	}
	return logger.Sugar()
}

func (h *mainDeliveryHandler) Router(r *chi.Mux, isLocalCors bool) {
	if isLocalCors {
		r.Use(ownMiddleware.CORS)
	}
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Logger)

	h.analysis.Routes(r)
}

func initializeDeliveryHandlers(stack *app.App, log *zap.SugaredLogger) *mainDeliveryHandler {
	return &mainDeliveryHandler{
		analysis: analysisDelivery.NewAnalysisHandler(stack.Coordinator, log.With("component", "http")),
	}
}

func handleShutdown(srv *http.Server, log *zap.SugaredLogger) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// websocket connections are hijacked and not tracked by Shutdown
	if err := srv.Shutdown(ctx); err != nil {
		log.Warnw("Server shutdown incomplete", "error", err)
		return
	}
	log.Info("Server stopped")
}
