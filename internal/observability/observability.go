// Package observability configures process-wide logging and tracing.
//
// Records always go to a console handler (text or JSON). Optionally they are
// also bridged into OpenTelemetry logs and shipped by an exporter. A global
// tracer provider and the W3C trace context propagator are installed as well,
// so spans started anywhere (the token refresh, proxied requests) carry real
// ids and log records made inside them get trace_id and span_id.
package observability

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	slogmulti "github.com/samber/slog-multi"
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/contrib/processors/minsev"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutlog"
	"go.opentelemetry.io/otel/propagation"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Supported console formats.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// Supported log exporters.
const (
	ExporterNone     = "none"
	ExporterStdout   = "stdout"
	ExporterOTLPHTTP = "otlp-http"
	ExporterOTLPGRPC = "otlp-grpc"
)

const instrumentationName = "github.com/florianilch/ledgerly"

// Option configures Instrument.
type Option func(*options)

type options struct {
	exporter string
	writer   io.Writer
}

// WithExporter selects an OpenTelemetry log exporter (ExporterNone by default).
// OTLP exporters read their endpoint from the standard OTEL_EXPORTER_OTLP_* variables.
func WithExporter(name string) Option {
	return func(o *options) {
		o.exporter = name
	}
}

// WithWriter sets the console destination. Defaults to os.Stderr.
func WithWriter(w io.Writer) Option {
	return func(o *options) {
		o.writer = w
	}
}

// Instrument installs the default slog logger, the global tracer provider and
// the trace context propagator. It returns a function that flushes and stops
// both providers. The returned function is never nil.
func Instrument(ctx context.Context, level slog.Level, format string, opts ...Option) (func(context.Context) error, error) {
	o := options{exporter: ExporterNone, writer: os.Stderr}
	for _, opt := range opts {
		opt(&o)
	}

	handlerOpts := &slog.HandlerOptions{Level: level}
	var console slog.Handler
	switch format {
	case "", FormatText:
		console = slog.NewTextHandler(o.writer, handlerOpts)
	case FormatJSON:
		console = slog.NewJSONHandler(o.writer, handlerOpts)
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}

	exporter, err := newExporter(ctx, o.exporter, o.writer)
	if err != nil {
		return nil, err
	}

	var shutdowns []func(context.Context) error

	tracerProvider := sdktrace.NewTracerProvider()
	otel.SetTracerProvider(tracerProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	shutdowns = append(shutdowns, tracerProvider.Shutdown)

	handler := console
	if exporter != nil {
		processor := minsev.NewLogProcessor(sdklog.NewBatchProcessor(exporter), severity(level))
		loggerProvider := sdklog.NewLoggerProvider(sdklog.WithProcessor(processor))
		handler = slogmulti.Fanout(
			console,
			otelslog.NewHandler(instrumentationName, otelslog.WithLoggerProvider(loggerProvider)),
		)
		shutdowns = append(shutdowns, loggerProvider.Shutdown)
	}
	slog.SetDefault(slog.New(traceHandler{handler}))

	return func(ctx context.Context) error {
		var errs []error
		// Logs last, so records emitted while spans end are still exported
		for _, shutdown := range shutdowns {
			errs = append(errs, shutdown(ctx))
		}
		return errors.Join(errs...)
	}, nil
}

func newExporter(ctx context.Context, name string, w io.Writer) (sdklog.Exporter, error) {
	switch name {
	case "", ExporterNone:
		return nil, nil
	case ExporterStdout:
		return stdoutlog.New(stdoutlog.WithWriter(w))
	case ExporterOTLPHTTP:
		return otlploghttp.New(ctx)
	case ExporterOTLPGRPC:
		return otlploggrpc.New(ctx)
	default:
		return nil, fmt.Errorf("unknown log exporter %q", name)
	}
}

// severity maps a slog level onto the OpenTelemetry severity scale.
func severity(level slog.Level) minsev.Severity {
	switch {
	case level < slog.LevelInfo:
		return minsev.SeverityDebug
	case level < slog.LevelWarn:
		return minsev.SeverityInfo
	case level < slog.LevelError:
		return minsev.SeverityWarn
	default:
		return minsev.SeverityError
	}
}
