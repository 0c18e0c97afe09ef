package otel

import (
	"context"
	"testing"
)

func TestInitDisabledIsNoop(t *testing.T) {
	p, err := Init(context.Background(), Config{Enabled: false})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if p.Tracer == nil || p.Meter == nil {
		t.Fatal("disabled provider must still expose tracer and meter")
	}
	// Spans and shutdown must work without a backend.
	_, span := StartSpan(context.Background(), p.Tracer, "test", AttrModule.String("compute"))
	span.End()
	if err := p.Shutdown(context.Background()); err != nil {
		t.Errorf("shutdown: %v", err)
	}
}

func TestInitUnknownExporter(t *testing.T) {
	if _, err := Init(context.Background(), Config{Enabled: true, Exporter: "carrier-pigeon"}); err == nil {
		t.Fatal("unknown exporter accepted")
	}
}

func TestInitNoneExporter(t *testing.T) {
	p, err := Init(context.Background(), Config{Enabled: true, Exporter: "none", ServiceName: "test"})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	defer func() {
		if err := p.Shutdown(context.Background()); err != nil {
			t.Errorf("shutdown: %v", err)
		}
	}()
	if p.TracerProvider == nil {
		t.Fatal("expected real tracer provider with none exporter")
	}
}

func TestNewMetrics(t *testing.T) {
	p, err := Init(context.Background(), Config{Enabled: false})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	m, err := NewMetrics(p.Meter)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	if m.RequestDuration == nil || m.RetryCount == nil || m.QueueDepth == nil {
		t.Error("instruments not created")
	}
	// Instruments on a noop meter must accept records.
	ctx := context.Background()
	m.RequestDuration.Record(ctx, 0.118)
	m.RetryCount.Add(ctx, 1)
	m.ActiveRequests.Add(ctx, 1)
	m.ActiveRequests.Add(ctx, -1)
}
