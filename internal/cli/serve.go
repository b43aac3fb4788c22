package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/rawp123/covertower/pkg/config"
	"github.com/rawp123/covertower/pkg/errors"
	"github.com/rawp123/covertower/pkg/observability"
	"github.com/rawp123/covertower/pkg/pipeline"
)

// serveCommand creates the serve command exposing chart data over HTTP.
func (c *CLI) serveCommand() *cobra.Command {
	var (
		addr    string
		noCache bool
	)
	cmd := &cobra.Command{
		Use:   "serve [dir]",
		Short: "Serve chart data for a directory of source tables over HTTP",
		Long: `Serve chart data for a directory of source tables over HTTP.

Endpoints:
  GET /healthz   liveness probe
  GET /chart     chart data as JSON; filters via query parameters:
                 view, theme, annualized, carriers, groups, programs,
                 limit_types, year_min, year_max, refresh

Every response carries an X-Request-ID. Charts are cached with the same
keys the CLI uses, so a warm CLI cache also serves HTTP traffic.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runServe(cmd.Context(), args[0], addr, noCache)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":8080", "listen address")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable caching")

	return cmd
}

// runServe blocks until the context is cancelled or the listener fails.
func (c *CLI) runServe(ctx context.Context, dir, addr string, noCache bool) error {
	runner, err := c.newRunner(ctx, noCache)
	if err != nil {
		return fmt.Errorf("initialize runner: %w", err)
	}
	defer runner.Close()

	srv := &server{
		runner: runner,
		dir:    dir,
		config: c.Config,
		logger: c.Logger,
	}

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	printInfo("Serving %s on %s", dir, addr)
	c.Logger.Info("server listening", "addr", addr, "dir", dir)

	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// server holds the HTTP handler state: one runner, one source directory.
// Each request drives its own engine, so color slots and legend state
// never bleed between callers.
type server struct {
	runner *pipeline.Runner
	dir    string
	config config.Config
	logger *log.Logger
}

// routes builds the chi router with request-id and logging middleware.
func (s *server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(s.requestID)
	r.Use(s.logRequests)

	r.Get("/healthz", s.handleHealthz)
	r.Get("/chart", s.handleChart)

	return r
}

// requestID tags every request and response with a UUID.
func (s *server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		id := req.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, req.WithContext(withLogger(req.Context(), s.logger.With("request_id", id))))
	})
}

// logRequests emits one structured log line per request.
func (s *server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		start := time.Now()
		observability.Server().OnRequest(req.Context(), req.Method, req.URL.Path)

		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, req)

		duration := time.Since(start)
		observability.Server().OnResponse(req.Context(), req.Method, req.URL.Path, sw.status, duration)
		loggerFromContext(req.Context()).Info("request",
			"method", req.Method,
			"path", req.URL.Path,
			"status", sw.status,
			"duration", duration.Round(time.Millisecond))
	})
}

// statusWriter captures the response status for logging.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func (s *server) handleHealthz(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// handleChart runs the pipeline for the query's filter set and returns the
// JSON artifact.
func (s *server) handleChart(w http.ResponseWriter, req *http.Request) {
	opts, err := s.optionsFromQuery(req)
	if err != nil {
		s.writeError(w, err)
		return
	}

	result, err := s.runner.Execute(req.Context(), opts)
	if err != nil {
		s.writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Dataset-Hash", result.DatasetHash)
	w.Header().Set("X-Chart-Hash", result.ChartHash)
	if result.CacheInfo.RenderHit {
		w.Header().Set("X-Cache", "hit")
	} else {
		w.Header().Set("X-Cache", "miss")
	}
	_, _ = w.Write(result.Artifacts[pipeline.FormatJSON])
}

// optionsFromQuery maps query parameters onto pipeline options. The server
// always renders the JSON artifact; binary formats stay CLI-only.
func (s *server) optionsFromQuery(req *http.Request) (pipeline.Options, error) {
	q := req.URL.Query()
	opts := pipeline.Options{
		Dir:        s.dir,
		YearAxis:   true,
		Refresh:    q.Get("refresh") == "true",
		View:       q.Get("view"),
		Theme:      q.Get("theme"),
		Annualized: q.Get("annualized") == "true",
		Carriers:   parseList(q.Get("carriers")),
		Groups:     parseList(q.Get("groups")),
		Programs:   parseList(q.Get("programs")),
		LimitTypes: parseList(q.Get("limit_types")),
		Formats:    []string{pipeline.FormatJSON},
		Logger:     loggerFromContext(req.Context()),
	}

	for name, dst := range map[string]*int{"year_min": &opts.YearMin, "year_max": &opts.YearMax} {
		v := q.Get(name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return pipeline.Options{}, errors.New(errors.ErrCodeInvalidInput, "invalid %s: %q", name, v)
		}
		*dst = n
	}

	s.config.Apply(&opts)
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return pipeline.Options{}, err
	}
	return opts, nil
}

// writeError maps error codes onto HTTP statuses and returns a JSON body.
func (s *server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch errors.GetCode(err) {
	case errors.ErrCodeInvalidInput, errors.ErrCodeInvalidFormat,
		errors.ErrCodeInvalidView, errors.ErrCodeInvalidTheme,
		errors.ErrCodeInvalidPath:
		status = http.StatusBadRequest
	case errors.ErrCodeNotFound, errors.ErrCodeFileNotFound:
		status = http.StatusNotFound
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error": errors.UserMessage(err),
		"code":  string(errors.GetCode(err)),
	})
}
