package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// tracer is the voxloop instrumentation scope. The global provider delegates,
// so resolving it once is safe even before [InitProvider] has run.
var tracer = sync.OnceValue(func() trace.Tracer {
	return otel.Tracer("github.com/voxloop/voxloop")
})

// StartSpan starts a span on the voxloop tracer. The caller must end it.
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return tracer().Start(ctx, name, opts...)
}

// CorrelationID returns the active trace ID from ctx, or "" when the context
// carries no recording span. It is what the HTTP middleware echoes back in
// the X-Correlation-ID header.
func CorrelationID(ctx context.Context) string {
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		return sc.TraceID().String()
	}
	return ""
}
