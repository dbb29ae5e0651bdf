// Package observe provides application-wide observability primitives for
// voxloop: OpenTelemetry metrics, tracing helpers, structured logging, and
// HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API and exported to
// Prometheus by the reader that [InitProvider] registers, so the standard
// /metrics endpoint keeps working. Production code shares the process-wide
// [DefaultMetrics] instance; tests build their own via [NewMetrics] with a
// private [metric.MeterProvider] so runs stay isolated.
package observe

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all voxloop metrics.
const meterName = "github.com/voxloop/voxloop"

// Metrics holds the metric instruments for the conversation pipeline. The
// instruments are concurrency-safe, so one instance serves every goroutine.
type Metrics struct {
	// Latency histograms, one per conversation stage.

	// CaptureDuration tracks how long a listening turn took from start to
	// final transcript.
	CaptureDuration metric.Float64Histogram

	// ReplyDuration tracks responder latency.
	ReplyDuration metric.Float64Histogram

	// SynthesisDuration tracks text-to-speech synthesis latency.
	SynthesisDuration metric.Float64Histogram

	// PlaybackDuration tracks how long a clip played.
	PlaybackDuration metric.Float64Histogram

	// Turns counts completed conversation turns. Use with attribute:
	//   attribute.String("outcome", "ok"|"no_speech"|"duplicate"|"error")
	Turns metric.Int64Counter

	// Restarts counts returns to listening after playback or errors.
	Restarts metric.Int64Counter

	// Goodbyes counts conversations ended by goodbye detection. Use with
	// attribute: attribute.String("source", "user"|"assistant")
	Goodbyes metric.Int64Counter

	// ProviderErrors counts provider failures. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...)
	ProviderErrors metric.Int64Counter

	// ActiveConversations tracks the number of live conversations.
	ActiveConversations metric.Int64UpDownCounter

	// HTTPRequestDuration tracks HTTP request processing time, recorded by
	// [Middleware] with method and path attributes.
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) optimised
// for voice-pipeline latencies.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// NewMetrics registers every instrument on a meter from the given provider.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	meter := mp.Meter(meterName)

	var errs []error
	seconds := func(name, desc string) metric.Float64Histogram {
		h, err := meter.Float64Histogram(name,
			metric.WithDescription(desc),
			metric.WithUnit("s"),
			metric.WithExplicitBucketBoundaries(latencyBuckets...),
		)
		errs = append(errs, err)
		return h
	}
	count := func(name, desc string) metric.Int64Counter {
		c, err := meter.Int64Counter(name, metric.WithDescription(desc))
		errs = append(errs, err)
		return c
	}

	met := &Metrics{
		CaptureDuration:   seconds("voxloop.capture.duration", "Latency from listening start to final transcript."),
		ReplyDuration:     seconds("voxloop.reply.duration", "Latency of responder reply generation."),
		SynthesisDuration: seconds("voxloop.synthesis.duration", "Latency of text-to-speech synthesis."),
		PlaybackDuration:  seconds("voxloop.playback.duration", "Duration of reply playback."),

		Turns:          count("voxloop.turns", "Completed conversation turns by outcome."),
		Restarts:       count("voxloop.restarts", "Returns to listening after playback or errors."),
		Goodbyes:       count("voxloop.goodbyes", "Conversations ended by goodbye detection, by source."),
		ProviderErrors: count("voxloop.provider.errors", "Provider failures by provider and kind."),

		HTTPRequestDuration: seconds("voxloop.http.request.duration", "HTTP request latency by method and path."),
	}

	active, err := meter.Int64UpDownCounter("voxloop.active_conversations",
		metric.WithDescription("Number of live conversations."))
	errs = append(errs, err)
	met.ActiveConversations = active

	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("observe: create instruments: %w", err)
	}
	return met, nil
}

// DefaultMetrics returns the process-wide [Metrics] instance, built on first
// use from the global meter provider. Instrument registration on the global
// provider cannot fail with valid names, so a failure here panics.
var DefaultMetrics = sync.OnceValue(func() *Metrics {
	m, err := NewMetrics(otel.GetMeterProvider())
	if err != nil {
		panic(err)
	}
	return m
})

// RecordTurn records a completed turn with its outcome.
func (m *Metrics) RecordTurn(ctx context.Context, outcome string) {
	m.Turns.Add(ctx, 1,
		metric.WithAttributes(attribute.String("outcome", outcome)),
	)
}

// RecordGoodbye records a goodbye-triggered termination by source.
func (m *Metrics) RecordGoodbye(ctx context.Context, source string) {
	m.Goodbyes.Add(ctx, 1,
		metric.WithAttributes(attribute.String("source", source)),
	)
}

// RecordProviderError records a provider failure.
func (m *Metrics) RecordProviderError(ctx context.Context, provider, kind string) {
	m.ProviderErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
		),
	)
}
