package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"slidereel/internal/api"
	"slidereel/internal/artifacts"
	"slidereel/internal/config"
	"slidereel/internal/logging"
	"slidereel/internal/services"
	"slidereel/internal/store"
)

type errorResponse = api.ErrorResponse

type apiServer struct {
	bind   string
	logger *slog.Logger
	daemon *Daemon
	jobs   *api.JobService
	echo   *echo.Echo

	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) (*apiServer, error) {
	if cfg == nil || d == nil {
		return nil, errors.New("api server requires config and daemon")
	}
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		return nil, errors.New("paths.api_bind is empty")
	}

	srv := &apiServer{
		bind:   bind,
		logger: logging.NewComponentLogger(logger, "api-server"),
		daemon: d,
		jobs:   api.NewJobService(d.store),
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		HandleError:  true,
		LogValuesFunc: func(_ echo.Context, v middleware.RequestLoggerValues) error {
			srv.logger.Debug("api request",
				logging.String("method", v.Method),
				logging.String("uri", v.URI),
				logging.Int("status", v.Status),
				logging.Duration("latency", v.Latency),
				logging.String(logging.FieldCorrelationID, v.RequestID),
			)
			return nil
		},
	}))

	e.GET("/api/health", srv.handleHealth)

	guarded := e.Group("/api", authMiddleware(cfg.Paths.APIToken))
	guarded.GET("/jobs", srv.handleListJobs)
	guarded.GET("/jobs/:id", srv.handleGetJob)
	guarded.POST("/jobs/:id/cancel", srv.handleCancelJob)
	guarded.POST("/scripts/:id/jobs", srv.handleSubmit)

	srv.echo = e
	srv.server = &http.Server{
		Handler:           e,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv, nil
}

func (s *apiServer) start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		s.stop()
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	if s == nil || s.server == nil {
		return
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.server.Shutdown(shutdownCtx)
}

func (s *apiServer) address() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *apiServer) handleHealth(c echo.Context) error {
	status := s.daemon.Status(c.Request().Context())
	payload := api.Health{
		Status:  "ok",
		Running: status.Running,
		Worker: api.WorkerStatus{
			Running:   status.Worker.Running,
			Workers:   status.Worker.Workers,
			LastJob:   status.Worker.LastJob,
			LastError: status.Worker.LastError,
		},
		Jobs: api.MergeJobStats(status.Jobs),
	}
	if !status.StartedAt.IsZero() {
		payload.StartedAt = status.StartedAt.UTC().Format(time.RFC3339)
	}
	if !status.NextJanitor.IsZero() {
		payload.NextJanitor = status.NextJanitor.UTC().Format(time.RFC3339)
	}
	return c.JSON(http.StatusOK, payload)
}

func (s *apiServer) handleListJobs(c echo.Context) error {
	var statuses []store.JobStatus
	for _, value := range c.QueryParams()["status"] {
		status, ok := store.ParseJobStatus(strings.TrimSpace(value))
		if !ok {
			return c.JSON(http.StatusBadRequest, errorResponse{Error: fmt.Sprintf("unknown status %q", value)})
		}
		statuses = append(statuses, status)
	}
	limit := 50
	if raw := c.QueryParam("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid limit"})
		}
		limit = parsed
	}
	jobs, err := s.jobs.List(s.requestContext(c), limit, statuses...)
	if err != nil {
		return s.writeError(c, err)
	}
	return c.JSON(http.StatusOK, api.JobListResponse{Jobs: jobs})
}

func (s *apiServer) handleGetJob(c echo.Context) error {
	job, err := s.jobs.Describe(s.requestContext(c), c.Param("id"))
	if err != nil {
		return s.writeError(c, err)
	}
	return c.JSON(http.StatusOK, api.JobResponse{Job: *job})
}

func (s *apiServer) handleCancelJob(c echo.Context) error {
	ctx := s.requestContext(c)
	id := c.Param("id")
	if err := s.daemon.Cancel(ctx, id); err != nil {
		return s.writeError(c, err)
	}
	job, err := s.daemon.Job(ctx, id)
	if err != nil {
		return s.writeError(c, err)
	}
	return c.JSON(http.StatusOK, api.JobResponse{Job: api.FromJob(job)})
}

func (s *apiServer) handleSubmit(c echo.Context) error {
	kind := artifacts.KindVideo
	if regen, _ := strconv.ParseBool(c.QueryParam("regen")); regen {
		kind = artifacts.KindRegen
	}
	ctx := services.WithScriptID(s.requestContext(c), c.Param("id"))
	job, err := s.daemon.Submit(ctx, c.Param("id"), kind)
	if err != nil {
		return s.writeError(c, err)
	}
	return c.JSON(http.StatusAccepted, api.JobResponse{Job: api.FromJob(job)})
}

func (s *apiServer) requestContext(c echo.Context) context.Context {
	rid := c.Response().Header().Get(echo.HeaderXRequestID)
	return services.WithRequestID(c.Request().Context(), rid)
}

func (s *apiServer) writeError(c echo.Context, err error) error {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, store.ErrNotFound), errors.Is(err, services.ErrScriptNotFound):
		status = http.StatusNotFound
	case errors.Is(err, store.ErrTerminal):
		status = http.StatusConflict
	}
	if status == http.StatusInternalServerError {
		logging.WithContext(s.requestContext(c), s.logger).Error("api request failed", logging.Error(err))
	}
	body := errorResponse{Error: err.Error()}
	if errors.Is(err, services.ErrScriptNotFound) {
		body.Kind = services.Kind(err)
	}
	return c.JSON(status, body)
}
