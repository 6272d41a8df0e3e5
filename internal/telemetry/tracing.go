// Package telemetry configures OpenTelemetry tracing for the auth-session
// service. Span attributes use the `auth.` prefix.
package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "semaphore/auth-session"

func Tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

// InitTraceProvider installs an OTLP gRPC exporter. An empty endpoint leaves
// the noop provider in place. The returned function flushes on shutdown.
func InitTraceProvider(ctx context.Context, endpoint, serviceName string) (func(context.Context) error, error) {
	if endpoint == "" {
		return func(context.Context) error { return nil }, nil
	}

	exporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("create OTLP exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithHost(),
		resource.WithAttributes(semconv.ServiceNameKey.String(serviceName)),
	)
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	return tp.Shutdown, nil
}

func StartLoginSpan(ctx context.Context, userType string) (context.Context, trace.Span) {
	return Tracer().Start(ctx, "auth.login",
		trace.WithAttributes(attribute.String("auth.user_type", userType)),
		trace.WithSpanKind(trace.SpanKindServer),
	)
}

// EndLoginSpan records the outcome. Credentials never become attributes.
func EndLoginSpan(span trace.Span, outcome string, err error) {
	span.SetAttributes(attribute.String("auth.outcome", outcome))
	if err != nil {
		span.SetStatus(codes.Error, outcome)
	}
	span.End()
}

func StartIdentitySpan(ctx context.Context, source string) (context.Context, trace.Span) {
	return Tracer().Start(ctx, "auth.identity_check",
		trace.WithAttributes(attribute.String("auth.source", source)),
	)
}

func EndIdentitySpan(span trace.Span, result string) {
	span.SetAttributes(attribute.String("auth.result", result))
	span.End()
}
