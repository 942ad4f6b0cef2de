// Package server exposes playback, uploads and schedules over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vidyalaya/prayerbell/internal/blobstore"
	"github.com/vidyalaya/prayerbell/internal/settings"
	"github.com/vidyalaya/prayerbell/internal/upload"
	"github.com/vidyalaya/prayerbell/playback"
	"github.com/vidyalaya/prayerbell/prayer"
)

// maxUploadBytes bounds a single recording upload.
const maxUploadBytes = 50 << 20

// ScheduleApplier installs a saved schedule, e.g. the daily cron entry.
type ScheduleApplier interface {
	Apply(s prayer.Schedule) error
}

// Deps are the components the server drives.
type Deps struct {
	SchoolID   string
	Controller *playback.Controller
	Catalog    *prayer.Catalog
	Uploader   *upload.Uploader
	Blobs      *blobstore.Store
	Settings   *settings.Store
	Scheduler  ScheduleApplier // optional
}

// Server is the HTTP control surface.
type Server struct {
	deps    Deps
	engine  *gin.Engine
	metrics *Metrics
	logger  *log.Logger
}

type handlerFunc func(c *gin.Context) (any, *apiError)

// New builds the router and subscribes the metrics to the components.
func New(deps Deps) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		deps:    deps,
		engine:  gin.New(),
		metrics: NewMetrics(),
		logger:  log.WithPrefix("http"),
	}
	s.engine.Use(gin.Recovery(), s.requestLogger())

	deps.Controller.OnStateChange(s.metrics.observeSession)
	deps.Controller.OnError(s.metrics.observeError)
	deps.Uploader.OnResult(s.metrics.observeUpload)
	deps.Settings.OnSync(s.metrics.observeSync)

	s.routes()
	return s
}

func (s *Server) routes() {
	r := s.engine
	api := r.Group("/api")
	{
		api.GET("/prayers", s.resolve(s.listPrayers))
		api.GET("/prayers/:id", s.resolve(s.getPrayer))
		api.POST("/prayers/:id/play", s.resolve(s.playPrayer))
		api.POST("/prayers/:id/audio", s.resolve(s.uploadAudio))
		api.GET("/prayers/:id/audio/status", s.resolve(s.uploadStatus))

		api.GET("/playback", s.resolve(s.playbackState))
		api.POST("/playback/stop", s.resolve(s.stopPlayback))
		api.PUT("/playback/volume", s.resolve(s.setVolume))
		api.PUT("/playback/mute", s.resolve(s.setMuted))

		api.GET("/schedule", s.resolve(s.getSchedule))
		api.PUT("/schedule", s.resolve(s.putSchedule))
		api.POST("/session/start", s.resolve(s.startSession))

		api.GET("/blobs/:id", s.serveBlob)
	}
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.metrics.Registry(), promhttp.HandlerOpts{})))
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Metrics returns the server's collectors.
func (s *Server) Metrics() *Metrics {
	return s.metrics
}

// Run serves on addr until ctx is done.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		s.logger.Info("Listening", "addr", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) resolve(h handlerFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		result, apiErr := h(c)
		if apiErr != nil {
			c.JSON(apiErr.Code, gin.H{"error": apiErr.Message, "kind": apiErr.Kind})
			return
		}
		status := http.StatusOK
		if c.Writer.Status() != http.StatusOK && !c.Writer.Written() {
			status = c.Writer.Status()
		}
		c.JSON(status, result)
	}
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		s.metrics.requestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(status)).Inc()
		s.logger.Debug("Request", "method", c.Request.Method, "path", c.Request.URL.Path, "status", status, "took", time.Since(start))
	}
}
