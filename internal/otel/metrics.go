package otel

import "go.opentelemetry.io/otel/metric"

// Metrics holds all bridge metric instruments.
type Metrics struct {
	RequestDuration  metric.Float64Histogram
	DelegateDuration metric.Float64Histogram
	RetryCount       metric.Int64Counter
	BreakerRejects   metric.Int64Counter
	BreakerTrips     metric.Int64Counter
	ActiveRequests   metric.Int64UpDownCounter
	QueueDepth       metric.Int64UpDownCounter
	RequestsTotal    metric.Int64Counter
	RequestErrors    metric.Int64Counter
}

// NewMetrics creates all metric instruments from the given meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	m.RequestDuration, err = meter.Float64Histogram("offbridge.request.duration",
		metric.WithDescription("End-to-end offload request duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	m.DelegateDuration, err = meter.Float64Histogram("offbridge.delegate.duration",
		metric.WithDescription("Single delegate call duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	m.RetryCount, err = meter.Int64Counter("offbridge.request.retries",
		metric.WithDescription("Retry attempts across all requests"),
	)
	if err != nil {
		return nil, err
	}

	m.BreakerRejects, err = meter.Int64Counter("offbridge.breaker.rejects",
		metric.WithDescription("Calls rejected while the circuit breaker is open"),
	)
	if err != nil {
		return nil, err
	}

	m.BreakerTrips, err = meter.Int64Counter("offbridge.breaker.trips",
		metric.WithDescription("Circuit breaker open transitions"),
	)
	if err != nil {
		return nil, err
	}

	m.ActiveRequests, err = meter.Int64UpDownCounter("offbridge.requests.active",
		metric.WithDescription("Requests currently executing against the delegate"),
	)
	if err != nil {
		return nil, err
	}

	m.QueueDepth, err = meter.Int64UpDownCounter("offbridge.queue.depth",
		metric.WithDescription("Requests waiting in the dispatch queue"),
	)
	if err != nil {
		return nil, err
	}

	m.RequestsTotal, err = meter.Int64Counter("offbridge.requests.total",
		metric.WithDescription("Terminal request outcomes"),
	)
	if err != nil {
		return nil, err
	}

	m.RequestErrors, err = meter.Int64Counter("offbridge.requests.errors",
		metric.WithDescription("Terminal request failures by error class"),
	)
	if err != nil {
		return nil, err
	}

	return m, nil
}
