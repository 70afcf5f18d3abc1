package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/liamcoop/fatechart/fate"
	"github.com/liamcoop/fatechart/internal/archive"
	"github.com/liamcoop/fatechart/internal/calendar"
	"github.com/liamcoop/fatechart/internal/config"
	"github.com/liamcoop/fatechart/internal/logger"
	"github.com/liamcoop/fatechart/internal/oracle"
	"github.com/liamcoop/fatechart/rules"
)

const maxBodyBytes = 1 << 20

type Server struct {
	engine  *fate.Engine
	store   archive.Store
	advisor oracle.Advisor
	router  *chi.Mux
}

func NewServer(engine *fate.Engine, store archive.Store, advisor oracle.Advisor) *Server {
	if advisor == nil {
		advisor = oracle.Disabled{}
	}
	s := &Server{
		engine:  engine,
		store:   store,
		advisor: advisor,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/api/v1/health", s.handleHealth)
	r.Get("/api/v1/hours", s.handleHours)
	r.Get("/api/v1/stats", s.handleStats)

	r.Route("/api/v1/reports", func(r chi.Router) {
		r.Post("/", s.handleCreateReport)
		r.Get("/", s.handleListReports)

		r.Route("/{reportId}", func(r chi.Router) {
			r.Get("/", s.handleGetReport)
			r.Get("/rules", s.handleExplainRules)
			r.Post("/questions", s.handleAskQuestion)
		})
	})

	s.router = r
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) advisorEnabled() bool {
	_, disabled := s.advisor.(oracle.Disabled)
	return !disabled
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if _, err := s.store.List(r.Context(), 1); err != nil {
		respondJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "unhealthy",
			"error":  err.Error(),
		})
		return
	}

	respondJSON(w, http.StatusOK, HealthResponse{
		Status:       "healthy",
		RulesVersion: s.engine.RulesVersion(),
		Advisor:      s.advisorEnabled(),
	})
}

func (s *Server) handleHours(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, HoursResponse{
		Hours:   calendar.HourLabels[:],
		Unknown: calendar.UnknownHour,
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, StatsResponse{
		Counters:     logger.Snapshot(),
		RuleCache:    s.engine.RuleCacheStats(),
		RulesVersion: s.engine.RulesVersion(),
	})
}

func (s *Server) handleCreateReport(w http.ResponseWriter, r *http.Request) {
	var req CreateReportRequest
	if err := decodeBody(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	startTime := time.Now()
	report, err := s.engine.Generate(req.moment())
	if err != nil {
		var invalid *fate.InvalidInputError
		if errors.As(err, &invalid) {
			logger.InvalidInputs.Add(1)
			respondInvalid(w, invalid)
			return
		}
		logger.Error("report generation failed", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to generate report", err)
		return
	}
	logger.ReportsGenerated.Add(1)

	rec, err := s.store.Save(r.Context(), report)
	if err != nil {
		logger.ArchiveFailures.Add(1)
		logger.Error("archive save failed", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to save report", err)
		return
	}

	logger.Debug("report generated",
		"report_id", rec.ID,
		"archetype", report.Archetype.ID,
		"duration", time.Since(startTime))

	w.Header().Set("Location", "/api/v1/reports/"+rec.ID.String())
	respondJSON(w, http.StatusCreated, newReportResponse(rec))
}

func (s *Server) handleListReports(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			respondError(w, http.StatusBadRequest, "limit must be a positive integer", err)
			return
		}
		limit = n
	}

	summaries, err := s.store.List(r.Context(), limit)
	if err != nil {
		logger.ArchiveFailures.Add(1)
		respondError(w, http.StatusInternalServerError, "failed to list reports", err)
		return
	}

	respondJSON(w, http.StatusOK, ReportsListResponse{Reports: summaries, Count: len(summaries)})
}

func (s *Server) handleGetReport(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.lookup(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, newReportResponse(rec))
}

// handleExplainRules re-evaluates the archetype rules over an archived report's
// birth moment with the current rule set. ?rule=<id> narrows it to one rule.
func (s *Server) handleExplainRules(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.lookup(w, r)
	if !ok {
		return
	}

	if id := r.URL.Query().Get("rule"); id != "" {
		rule, err := s.engine.ExplainRule(rec.Report.Birth, id)
		switch {
		case errors.Is(err, rules.ErrRuleNotFound):
			respondError(w, http.StatusNotFound, "rule not found", err)
			return
		case err != nil:
			logger.Error("rule explanation failed", "report_id", rec.ID, "rule", id, "error", err)
			respondError(w, http.StatusInternalServerError, "failed to explain rule", err)
			return
		}
		respondJSON(w, http.StatusOK, RuleResponse{ReportID: rec.ID, Rule: *rule})
		return
	}

	x, err := s.engine.Explain(rec.Report.Birth)
	if err != nil {
		logger.Error("rule explanation failed", "report_id", rec.ID, "error", err)
		respondError(w, http.StatusInternalServerError, "failed to explain rules", err)
		return
	}
	respondJSON(w, http.StatusOK, RulesResponse{
		ReportID:          rec.ID,
		ArchivedArchetype: rec.Report.Archetype,
		Explanation:       x,
	})
}

func (s *Server) handleAskQuestion(w http.ResponseWriter, r *http.Request) {
	var req QuestionRequest
	if err := decodeBody(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	question, err := oracle.CheckQuestion(req.Question)
	if err != nil {
		respondRejected(w, err)
		return
	}

	rec, ok := s.lookup(w, r)
	if !ok {
		return
	}

	logger.QuestionsAsked.Add(1)
	answer, err := s.advisor.Ask(r.Context(), rec.Report.Birth, rec.Report, question)
	switch {
	case errors.Is(err, oracle.ErrDisabled):
		respondError(w, http.StatusServiceUnavailable, "advisor is not configured", nil)
		return
	case err != nil:
		logger.AdvisorFailures.Add(1)
		logger.Warn("advisor failed", "report_id", rec.ID, "error", err)
		respondError(w, http.StatusBadGateway, "advisor failed to answer", err)
		return
	}

	respondJSON(w, http.StatusOK, QuestionResponse{
		ReportID: rec.ID,
		Question: question,
		Answer:   answer,
	})
}

// lookup resolves the reportId URL parameter, writing the error response itself
// when the report cannot be returned.
func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (*archive.Record, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "reportId"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid report id", err)
		return nil, false
	}

	rec, err := s.store.Get(r.Context(), id)
	if errors.Is(err, archive.ErrNotFound) {
		respondError(w, http.StatusNotFound, "report not found", nil)
		return nil, false
	}
	if err != nil {
		logger.ArchiveFailures.Add(1)
		respondError(w, http.StatusInternalServerError, "failed to load report", err)
		return nil, false
	}
	return rec, true
}

// Helper functions
func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string, err error) {
	logger.CountStatus(status)
	response := ErrorResponse{Error: message}
	if err != nil {
		response.Details = err.Error()
	}
	respondJSON(w, status, response)
}

func respondInvalid(w http.ResponseWriter, err *fate.InvalidInputError) {
	logger.CountStatus(http.StatusBadRequest)
	respondJSON(w, http.StatusBadRequest, ErrorResponse{
		Error:   "invalid " + err.Field,
		Details: err.Error(),
		Field:   err.Field,
	})
}

// respondRejected answers 400 for input that failed a check, naming the field
// when the error carries one.
func respondRejected(w http.ResponseWriter, err error) {
	var invalid *fate.InvalidInputError
	if errors.As(err, &invalid) {
		respondInvalid(w, invalid)
		return
	}
	respondError(w, http.StatusBadRequest, "invalid request", err)
}

func newEngine(cfg config.Config) (*fate.Engine, error) {
	var opts []fate.Option
	if cfg.QuoteSeed != nil {
		opts = append(opts, fate.WithSeed(*cfg.QuoteSeed))
	}
	return fate.NewEngine(opts...)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("invalid configuration", "error", err)
	}
	if err := logger.Setup(context.Background(), logger.Options{
		Level:       cfg.LogLevel,
		SampleRate:  cfg.ErrorSampleRate,
		OTEL:        cfg.OTELEnabled,
		ServiceName: cfg.OTELServiceName,
	}); err != nil {
		logger.Warn("logger setup", "error", err)
	}

	engine, err := newEngine(cfg)
	if err != nil {
		logger.Fatal("failed to build report engine", "error", err)
	}

	store, err := archive.Open(context.Background(), cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("failed to open report archive", "error", err)
	}
	defer store.Close()

	advisor, err := oracle.New(context.Background(), cfg.GenAIAPIKey, cfg.GenAIModel)
	if err != nil {
		logger.Fatal("failed to create advisor", "error", err)
	}
	if !cfg.AdvisorEnabled() {
		logger.Info("advisor disabled: GENAI_API_KEY is not set")
	}

	server := NewServer(engine, store, advisor)

	httpServer := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      server,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	go func() {
		logger.Info("server starting", "addr", httpServer.Addr, "rules_version", engine.RulesVersion())
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed to start", "error", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}
	if err := logger.Shutdown(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "logger shutdown: %v\n", err)
	}

	logger.Info("server stopped")
}
