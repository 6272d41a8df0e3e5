package telemetry

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func setupTestTracer(t *testing.T) *tracetest.InMemoryExporter {
	t.Helper()
	exporter := tracetest.NewInMemoryExporter()
	tp := trace.NewTracerProvider(trace.WithSyncer(exporter))
	previous := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
		otel.SetTracerProvider(previous)
	})
	return exporter
}

func TestInitTraceProviderNoopWhenEmpty(t *testing.T) {
	shutdown, err := InitTraceProvider(context.Background(), "", "auth-session")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown error: %v", err)
	}
}

func TestLoginSpanRecordsOutcome(t *testing.T) {
	exporter := setupTestTracer(t)

	_, span := StartLoginSpan(context.Background(), "teacher")
	EndLoginSpan(span, "rejected", errors.New("bad password"))

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("got %d spans, want 1", len(spans))
	}
	if spans[0].Name != "auth.login" {
		t.Fatalf("span name = %q, want auth.login", spans[0].Name)
	}
	if spans[0].Status.Code != codes.Error {
		t.Fatalf("expected error status, got %v", spans[0].Status.Code)
	}
	attrs := map[attribute.Key]string{}
	for _, kv := range spans[0].Attributes {
		attrs[kv.Key] = kv.Value.AsString()
	}
	if attrs["auth.user_type"] != "teacher" || attrs["auth.outcome"] != "rejected" {
		t.Fatalf("unexpected attributes %v", attrs)
	}
}

func TestIdentitySpan(t *testing.T) {
	exporter := setupTestTracer(t)

	_, span := StartIdentitySpan(context.Background(), "http")
	EndIdentitySpan(span, "anonymous")

	spans := exporter.GetSpans()
	if len(spans) != 1 || spans[0].Name != "auth.identity_check" {
		t.Fatalf("unexpected spans %v", spans)
	}
}
