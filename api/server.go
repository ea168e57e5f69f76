package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/namnv2496/go-exec-broker/internal/executor/batch"
	"github.com/namnv2496/go-exec-broker/internal/executor/worker/job_executor"
	"github.com/namnv2496/go-exec-broker/internal/language"
	"github.com/namnv2496/go-exec-broker/internal/model"
	"github.com/namnv2496/go-exec-broker/internal/report"
)

// Options tunes the HTTP surface. Zero values disable the limit they control.
type Options struct {
	MaxCodeBytes int
	RateLimit    float64
	RateBurst    int
}

type Server struct {
	registry  *language.Registry
	executor  job_executor.JobExecutor
	evaluator *batch.Evaluator
	publisher report.Publisher
	opts      Options
	logger    *zap.Logger
	engine    *gin.Engine
}

func NewServer(
	registry *language.Registry,
	executor job_executor.JobExecutor,
	evaluator *batch.Evaluator,
	publisher report.Publisher,
	opts Options,
	logger *zap.Logger,
) *Server {
	if publisher == nil {
		publisher = report.Nop()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		registry:  registry,
		executor:  executor,
		evaluator: evaluator,
		publisher: publisher,
		opts:      opts,
		logger:    logger,
	}
	s.engine = s.routes()
	return s
}

func (s *Server) routes() *gin.Engine {
	route := gin.New()

	route.Use(requestID(), accessLog(s.logger), corsMiddleware(), staticCORS(), recovery(s.logger))
	if s.opts.RateLimit > 0 {
		burst := s.opts.RateBurst
		if burst < 1 {
			burst = 1
		}
		route.Use(rateLimit(rate.NewLimiter(rate.Limit(s.opts.RateLimit), burst)))
	}

	route.POST("/execute", s.executeHandler)
	route.POST("/execute-code", s.executeHandler)
	route.GET("/ws/execute", s.streamHandler)
	route.GET("/health/ping", pingHandler)
	route.GET("/languages", s.languagesHandler)

	route.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, model.ErrorResponse{Error: "Not found"})
	})
	return route
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves on addr until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server started", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listen on %s: %w", addr, err)
	case <-ctx.Done():
	}

	s.logger.Info("shutting down http server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	return nil
}

func pingHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "pong"})
}

type languageInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func (s *Server) languagesHandler(c *gin.Context) {
	all := s.registry.All()
	out := make([]languageInfo, 0, len(all))
	for _, lang := range all {
		out = append(out, languageInfo{ID: lang.ID, Name: lang.DisplayName})
	}
	c.JSON(http.StatusOK, out)
}
