package observe

import (
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// statusRecorder captures the status code written by the downstream handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

// uninstrumented lists paths the middleware passes through untouched. The
// audio WebSocket is a long-lived hijacked connection: wrapping its
// ResponseWriter breaks the upgrade, and its lifetime would swamp the
// request-latency histogram.
var uninstrumented = map[string]bool{
	"/audio": true,
}

// scrapePaths are probed every few seconds by the orchestrator and scraper;
// their completions log at debug so they do not drown out conversation logs.
var scrapePaths = map[string]bool{
	"/healthz": true,
	"/readyz":  true,
	"/metrics": true,
}

// Middleware wraps a handler with trace propagation, a server span per
// request, the X-Correlation-ID response header, request-latency recording,
// and a completion log line.
func Middleware(m *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if uninstrumented[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}
			serve(m, next, w, r)
		})
	}
}

func serve(m *Metrics, next http.Handler, w http.ResponseWriter, r *http.Request) {
	prop := otel.GetTextMapPropagator()
	ctx := prop.Extract(r.Context(), propagation.HeaderCarrier(r.Header))

	route := r.Method + " " + r.URL.Path
	ctx, span := StartSpan(ctx, "HTTP "+route,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			semconv.HTTPRequestMethodKey.String(r.Method),
			semconv.URLPath(r.URL.Path),
		))
	defer span.End()

	cid := CorrelationID(ctx)
	if cid != "" {
		w.Header().Set("X-Correlation-ID", cid)
	}
	prop.Inject(ctx, propagation.HeaderCarrier(w.Header()))

	rec := statusRecorder{ResponseWriter: w, status: http.StatusOK}
	start := time.Now()
	next.ServeHTTP(&rec, r.WithContext(ctx))
	elapsed := time.Since(start)

	span.SetAttributes(semconv.HTTPResponseStatusCode(rec.status))
	m.HTTPRequestDuration.Record(ctx, elapsed.Seconds(), metric.WithAttributes(
		attribute.String("method", r.Method),
		attribute.String("path", r.URL.Path),
	))

	level := slog.LevelInfo
	if scrapePaths[r.URL.Path] {
		level = slog.LevelDebug
	}
	slog.LogAttrs(ctx, level, "request completed",
		slog.String("trace_id", cid),
		slog.String("route", route),
		slog.Int("status", rec.status),
		slog.Duration("elapsed", elapsed),
	)
}
