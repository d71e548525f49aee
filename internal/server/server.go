package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/cwbudde/soilfit/internal/chart"
	"github.com/cwbudde/soilfit/internal/config"
	"github.com/cwbudde/soilfit/internal/fit"
)

// maxBodyBytes bounds the size of a job request
const maxBodyBytes = 1 << 20

// Server represents the HTTP server
type Server struct {
	jobManager *JobManager
	cfg        *config.Config
	server     *http.Server

	// ctx is the parent of every job context
	ctx  context.Context
	stop context.CancelFunc
	wg   sync.WaitGroup
}

// NewServer creates a new HTTP server. A nil config uses the defaults.
func NewServer(cfg *config.Config) *Server {
	if cfg == nil {
		cfg = config.Default()
	}
	ctx, stop := context.WithCancel(context.Background())
	return &Server{
		jobManager: NewJobManager(),
		cfg:        cfg,
		ctx:        ctx,
		stop:       stop,
	}
}

// Handler returns the routed and wrapped handler
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Register API routes
	mux.HandleFunc("/api/v1/jobs", s.handleJobs)
	mux.HandleFunc("/api/v1/jobs/", s.handleJobsWithID)
	mux.Handle("/metrics", promhttp.Handler())

	c := cors.New(cors.Options{
		AllowedOrigins: s.cfg.Server.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
	})

	return s.loggingMiddleware(c.Handler(mux))
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:              s.cfg.Server.Address,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	slog.Info("Starting HTTP server", "addr", s.cfg.Server.Address)
	return s.server.ListenAndServe()
}

// Shutdown cancels all jobs, waits for their workers and shuts the
// listener down gracefully
func (s *Server) Shutdown(ctx context.Context) error {
	slog.Info("Shutting down HTTP server")
	s.jobManager.CancelAll()
	s.stop()

	var err error
	if s.server != nil {
		err = s.server.Shutdown(ctx)
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return errors.Join(err, ctx.Err())
	}
	return err
}

// handleJobs handles /api/v1/jobs
func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleCreateJob(w, r)
	case http.MethodGet:
		s.handleListJobs(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleJobsWithID handles /api/v1/jobs/:id/*
func (s *Server) handleJobsWithID(w http.ResponseWriter, r *http.Request) {
	// Parse job ID from path
	path := strings.TrimPrefix(r.URL.Path, "/api/v1/jobs/")
	parts := strings.Split(path, "/")
	if len(parts) == 0 || parts[0] == "" {
		http.Error(w, "Job ID required", http.StatusBadRequest)
		return
	}

	jobID := parts[0]

	if len(parts) == 1 && r.Method == http.MethodDelete {
		s.handleCancelJob(w, r, jobID)
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// Route based on subpath
	switch {
	case len(parts) == 1 || parts[1] == "status":
		s.handleGetJobStatus(w, r, jobID)
	case parts[1] == "stream":
		s.handleJobStream(w, r, jobID)
	case parts[1] == "plot.png":
		s.handleGetPlot(w, r, jobID, "png")
	case parts[1] == "plot.svg":
		s.handleGetPlot(w, r, jobID, "svg")
	default:
		http.Error(w, "Not found", http.StatusNotFound)
	}
}

// handleCreateJob handles POST /api/v1/jobs
func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	var config JobConfig
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&config); err != nil {
		http.Error(w, fmt.Sprintf("Invalid JSON: %v", err), http.StatusBadRequest)
		return
	}

	session, err := s.newSession(config)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	// Create job
	job := s.jobManager.CreateJob(config, session)
	slog.Info("Job created", "job_id", job.ID, "method", job.Method)

	// Start worker in background
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		runJob(s.ctx, s.jobManager, job.ID)
	}()

	writeJSON(w, http.StatusCreated, job)
}

// newSession resolves a job request against the server defaults
func (s *Server) newSession(config JobConfig) (*fit.Session, error) {
	name := config.Method
	if name == "" {
		name = s.cfg.Fit.Method
	}
	sub := config.LSQ
	if sub == "" {
		sub = s.cfg.Fit.LSQ
	}
	method, err := fit.ParseMethod(name, sub)
	if err != nil {
		return nil, err
	}

	var curve fit.Curve
	switch {
	case config.Curve != nil && config.DataPath != "":
		return nil, errors.New("curve and dataPath are mutually exclusive")
	case config.Curve != nil:
		curve, err = fit.NewCurve(config.Curve.Depths, config.Curve.Resistivities)
	case config.DataPath != "":
		curve, err = loadCurve(s.cfg.Server.DataDir, config.DataPath)
	default:
		err = errors.New("curve or dataPath is required")
	}
	if err != nil {
		return nil, err
	}

	starts, err := s.startPolicy(config)
	if err != nil {
		return nil, err
	}

	opts := s.cfg.DriverOptions()
	if config.Workers > 0 {
		opts.Workers = config.Workers
	}
	if config.Seed != 0 {
		opts.Solvers.DifferentialEvolution.Seed = config.Seed
		opts.Solvers.Mayfly.Seed = config.Seed
	}

	return &fit.Session{
		Curve:   curve,
		Method:  method,
		Starts:  starts,
		Options: opts,
	}, nil
}

func (s *Server) startPolicy(config JobConfig) (fit.StartPolicy, error) {
	switch strings.ToLower(config.Starts) {
	case "":
		return s.cfg.StartPolicy()
	case "grid":
		g := s.cfg.Fit.Starts.Grid
		if config.Limit > 0 {
			g.Limit = config.Limit
		}
		return g, nil
	case "random":
		r := s.cfg.Fit.Starts.Random
		if config.Limit > 0 {
			r.N = config.Limit
		}
		if config.Seed != 0 {
			r.Seed = config.Seed
		}
		return r, nil
	case "fixed":
		if len(config.Fixed) == 0 {
			return nil, errors.New("fixed starts require at least one point")
		}
		return fit.FixedPolicy(config.Fixed), nil
	default:
		return nil, fmt.Errorf("unknown start policy %q (want grid, random or fixed)", config.Starts)
	}
}

// handleListJobs handles GET /api/v1/jobs
func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.jobManager.ListJobs())
}

// jobStatus is a job plus its run time in seconds
type jobStatus struct {
	*Job
	Elapsed float64 `json:"elapsed"`
}

// handleGetJobStatus handles GET /api/v1/jobs/:id/status
func (s *Server) handleGetJobStatus(w http.ResponseWriter, r *http.Request, jobID string) {
	job, exists := s.jobManager.GetJob(jobID)
	if !exists {
		http.Error(w, "Job not found", http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, jobStatus{Job: job, Elapsed: job.elapsed().Seconds()})
}

// handleCancelJob handles DELETE /api/v1/jobs/:id
func (s *Server) handleCancelJob(w http.ResponseWriter, r *http.Request, jobID string) {
	ok, err := s.jobManager.Cancel(jobID)
	if err != nil {
		http.Error(w, "Job not found", http.StatusNotFound)
		return
	}
	if !ok {
		http.Error(w, "Job already finished", http.StatusConflict)
		return
	}

	slog.Info("Job cancellation requested", "job_id", jobID)
	job, _ := s.jobManager.GetJob(jobID)
	writeJSON(w, http.StatusAccepted, job)
}

// handleGetPlot handles GET /api/v1/jobs/:id/plot.png and plot.svg
func (s *Server) handleGetPlot(w http.ResponseWriter, r *http.Request, jobID, format string) {
	job, exists := s.jobManager.GetJob(jobID)
	if !exists {
		http.Error(w, "Job not found", http.StatusNotFound)
		return
	}

	// Check if job has results
	if job.Result == nil {
		http.Error(w, "No results yet", http.StatusNotFound)
		return
	}

	opts := chart.DefaultOptions()
	opts.Format = format
	opts.Title = fmt.Sprintf("%s (MSE %.2f)", job.Result.Method, job.Result.MSE)
	if job.session != nil {
		opts.Model = job.session.Options.Model
	}
	switch strings.ToLower(r.URL.Query().Get("log")) {
	case "1", "true", "yes":
		opts.LogX = true
	}

	// Set headers
	if format == "svg" {
		w.Header().Set("Content-Type", "image/svg+xml")
	} else {
		w.Header().Set("Content-Type", "image/png")
	}
	w.Header().Set("Cache-Control", "no-cache")

	if err := chart.Render(w, job.Curve, job.Result.Params, opts); err != nil {
		slog.Error("Failed to render plot", "job_id", jobID, "error", err)
	}
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		slog.Debug("HTTP request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}
