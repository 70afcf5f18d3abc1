// Package logger configures the process-wide slog logger and keeps the
// counters reported by the stats endpoint.
package logger

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"strings"
	"sync/atomic"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

const (
	LevelTrace = slog.Level(-8)
	LevelDebug = slog.LevelDebug
	LevelInfo  = slog.LevelInfo
	LevelWarn  = slog.LevelWarn
	LevelError = slog.LevelError
	LevelFatal = slog.Level(12)
)

var (
	Logger       *slog.Logger
	sampleRate   atomic.Int32
	programLevel = new(slog.LevelVar)
	shutdownFunc func(context.Context) error
)

// Counters are incremented on every event, regardless of sampling.
var (
	ReportsGenerated atomic.Int64
	InvalidInputs    atomic.Int64
	QuestionsAsked   atomic.Int64
	AdvisorFailures  atomic.Int64
	ArchiveFailures  atomic.Int64
	TotalWarnings    atomic.Int64
	TotalErrors      atomic.Int64
	Total4xxErrors   atomic.Int64
	Total5xxErrors   atomic.Int64
)

// Options selects the output and verbosity.
type Options struct {
	Level       string
	SampleRate  int
	OTEL        bool
	ServiceName string
}

func init() {
	programLevel.Set(LevelInfo)
	sampleRate.Store(1)
	setupJSONLogging()
}

// Setup replaces the default JSON logger according to opts. When the OTEL
// exporter cannot be created it falls back to JSON and returns the error.
func Setup(ctx context.Context, opts Options) error {
	level, err := ParseLevel(opts.Level)
	programLevel.Set(level)
	if opts.SampleRate > 0 {
		sampleRate.Store(int32(opts.SampleRate))
	}

	if !opts.OTEL {
		setupJSONLogging()
		return err
	}

	name := opts.ServiceName
	if name == "" {
		name = "fatechart"
	}
	shutdown, otelErr := setupOTELLogging(ctx, name)
	if otelErr != nil {
		setupJSONLogging()
		return fmt.Errorf("otel logging disabled: %w", otelErr)
	}
	shutdownFunc = shutdown
	return err
}

func setupJSONLogging() {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: programLevel})
	Logger = slog.New(handler)
	slog.SetDefault(Logger)
}

func setupOTELLogging(ctx context.Context, serviceName string) (func(context.Context) error, error) {
	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceName(serviceName)))
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	exporter, err := otlploggrpc.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("create OTLP exporter: %w", err)
	}

	provider := sdklog.NewLoggerProvider(
		sdklog.WithResource(res),
		sdklog.WithProcessor(sdklog.NewBatchProcessor(exporter)),
	)

	Logger = slog.New(&levelHandler{
		level:   programLevel,
		handler: otelslog.NewHandler(serviceName, otelslog.WithLoggerProvider(provider)),
	})
	slog.SetDefault(Logger)

	return provider.Shutdown, nil
}

// levelHandler filters records below level before handing them to the bridge.
type levelHandler struct {
	level   slog.Leveler
	handler slog.Handler
}

func (h *levelHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *levelHandler) Handle(ctx context.Context, r slog.Record) error {
	return h.handler.Handle(ctx, r)
}

func (h *levelHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &levelHandler{level: h.level, handler: h.handler.WithAttrs(attrs)}
}

func (h *levelHandler) WithGroup(name string) slog.Handler {
	return &levelHandler{level: h.level, handler: h.handler.WithGroup(name)}
}

// Shutdown flushes the OTEL exporter, if one is running.
func Shutdown(ctx context.Context) error {
	if shutdownFunc != nil {
		return shutdownFunc(ctx)
	}
	return nil
}

// SetLevel sets the minimum level.
func SetLevel(level slog.Level) { programLevel.Set(level) }

// GetLevel returns the minimum level.
func GetLevel() slog.Level { return programLevel.Level() }

// ParseLevel converts a level name. Unknown names yield INFO and an error.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "TRACE":
		return LevelTrace, nil
	case "DEBUG":
		return LevelDebug, nil
	case "", "INFO":
		return LevelInfo, nil
	case "WARN", "WARNING":
		return LevelWarn, nil
	case "ERROR":
		return LevelError, nil
	case "FATAL":
		return LevelFatal, nil
	default:
		return LevelInfo, fmt.Errorf("unknown log level: %s (defaulting to INFO)", s)
	}
}

// shouldSample keeps one out of every N warnings and errors.
func shouldSample() bool {
	rate := sampleRate.Load()
	if rate <= 1 {
		return true
	}
	return rand.Intn(int(rate)) == 0
}

func Trace(msg string, args ...any) {
	Logger.Log(context.Background(), LevelTrace, msg, args...)
}

func Debug(msg string, args ...any) { Logger.Debug(msg, args...) }

func Info(msg string, args ...any) { Logger.Info(msg, args...) }

// Warn counts every call but logs only sampled ones.
func Warn(msg string, args ...any) {
	TotalWarnings.Add(1)
	if shouldSample() {
		Logger.Warn(msg, args...)
	}
}

// Error counts every call but logs only sampled ones.
func Error(msg string, args ...any) {
	TotalErrors.Add(1)
	if shouldSample() {
		Logger.Error(msg, args...)
	}
}

// Fatal logs, flushes the exporter and exits.
func Fatal(msg string, args ...any) {
	Logger.Log(context.Background(), LevelFatal, msg, args...)
	if shutdownFunc != nil {
		_ = shutdownFunc(context.Background())
	}
	os.Exit(1)
}

// CountStatus records an HTTP response status in the 4xx/5xx counters.
func CountStatus(status int) {
	switch {
	case status >= 500:
		Total5xxErrors.Add(1)
	case status >= 400:
		Total4xxErrors.Add(1)
	}
}

// Stats is a point-in-time copy of the counters.
type Stats struct {
	ReportsGenerated int64 `json:"reportsGenerated"`
	InvalidInputs    int64 `json:"invalidInputs"`
	QuestionsAsked   int64 `json:"questionsAsked"`
	AdvisorFailures  int64 `json:"advisorFailures"`
	ArchiveFailures  int64 `json:"archiveFailures"`
	Warnings         int64 `json:"warnings"`
	Errors           int64 `json:"errors"`
	Responses4xx     int64 `json:"responses4xx"`
	Responses5xx     int64 `json:"responses5xx"`
}

// Snapshot reads every counter.
func Snapshot() Stats {
	return Stats{
		ReportsGenerated: ReportsGenerated.Load(),
		InvalidInputs:    InvalidInputs.Load(),
		QuestionsAsked:   QuestionsAsked.Load(),
		AdvisorFailures:  AdvisorFailures.Load(),
		ArchiveFailures:  ArchiveFailures.Load(),
		Warnings:         TotalWarnings.Load(),
		Errors:           TotalErrors.Load(),
		Responses4xx:     Total4xxErrors.Load(),
		Responses5xx:     Total5xxErrors.Load(),
	}
}
