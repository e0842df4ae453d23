// Package web serves an interactive UI for running decode experiments and
// trying single images.
package web

import (
	"context"
	"embed"
	"html/template"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/signalnine/qrscale/internal/decoder"
	"github.com/signalnine/qrscale/internal/runner"
)

//go:embed templates/*.html
var templatesFS embed.FS

type Options struct {
	DatasetsDir      string
	OutputsDir       string
	Decoders         []string
	Scales           []float64
	Iterations       int
	BinStepPx        int
	ParetoMinSamples int
	MaxUploadBytes   int64
	Factory          runner.Factory
}

// Server owns the job store and routes. Decoders are never shared between
// requests: every job and every single-image decode builds its own.
type Server struct {
	opts   Options
	jobs   *jobStore
	engine *gin.Engine

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(opts Options) *Server {
	if opts.Factory == nil {
		opts.Factory = decoder.New
	}
	if len(opts.Decoders) == 0 {
		opts.Decoders = decoder.Names()
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 512 << 20
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{opts: opts, jobs: newJobStore(), ctx: ctx, cancel: cancel}

	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())
	r.SetHTMLTemplate(template.Must(template.ParseFS(templatesFS, "templates/*.html")))
	s.routes(r)
	s.engine = r
	return s
}

func (s *Server) routes(r *gin.Engine) {
	r.GET("/", s.indexHandler)
	r.GET("/jobs/:id", s.jobPageHandler)
	api := r.Group("/api")
	api.GET("/decoders", s.listDecodersHandler)
	api.GET("/datasets", s.listDatasetsHandler)
	api.POST("/datasets", s.uploadDatasetHandler)
	api.GET("/datasets/:name/image", s.datasetImageHandler)
	api.GET("/jobs", s.listJobsHandler)
	api.POST("/jobs", s.createJobHandler)
	api.GET("/jobs/:id", s.getJobHandler)
	api.GET("/jobs/:id/stats", s.jobStatsHandler)
	api.GET("/jobs/:id/samples", s.jobSamplesHandler)
	api.POST("/decode", s.decodeHandler)
	r.GET("/outputs/*path", s.outputsHandler)
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

// ListenAndServe serves until ctx is done, then stops accepting requests and
// cancels running jobs.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.engine, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("web server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		s.Close()
		return errors.Wrap(err, "web server")
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	s.Close()
	return errors.Wrap(err, "shutting down web server")
}

// Close cancels running jobs and waits for them to exit.
func (s *Server) Close() {
	s.cancel()
	s.wg.Wait()
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		ev := log.Info()
		if c.Writer.Status() >= http.StatusInternalServerError {
			ev = log.Error()
		}
		ev.Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("took", time.Since(start)).
			Msg("request")
	}
}
