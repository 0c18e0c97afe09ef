package cron

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestNewSchedulerRejectsBadExpression(t *testing.T) {
	for _, expr := range []string{"", "not a cron", "* * *", "61 * * * *"} {
		if _, err := NewScheduler(Config{Schedule: expr}); err == nil {
			t.Errorf("expression %q accepted", expr)
		}
	}
}

func TestNewSchedulerAcceptsFiveFieldExpressions(t *testing.T) {
	for _, expr := range []string{"*/5 * * * *", "0 3 * * *", "* * * * *"} {
		if _, err := NewScheduler(Config{Schedule: expr}); err != nil {
			t.Errorf("expression %q rejected: %v", expr, err)
		}
	}
}

func TestSchedulerStartStop(t *testing.T) {
	s, err := NewScheduler(Config{
		Schedule: "*/5 * * * *",
		Probe:    func(context.Context) error { return nil },
		Report:   func(error) {},
	})
	if err != nil {
		t.Fatalf("NewScheduler: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)

	done := make(chan struct{})
	go func() {
		s.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return")
	}
}

func TestFireReportsOutcome(t *testing.T) {
	probeErr := errors.New("delegate unreachable")
	var reported []error
	s, err := NewScheduler(Config{
		Schedule: "*/5 * * * *",
		Probe:    func(context.Context) error { return probeErr },
		Report:   func(err error) { reported = append(reported, err) },
	})
	if err != nil {
		t.Fatalf("NewScheduler: %v", err)
	}

	s.fire(context.Background())
	if len(reported) != 1 || !errors.Is(reported[0], probeErr) {
		t.Errorf("reported = %v, want the probe error", reported)
	}

	s.probe = func(context.Context) error { return nil }
	s.fire(context.Background())
	if len(reported) != 2 || reported[1] != nil {
		t.Errorf("reported = %v, want trailing nil", reported)
	}
}

func TestFireBoundsProbeDuration(t *testing.T) {
	var sawDeadline bool
	s, err := NewScheduler(Config{
		Schedule:     "* * * * *",
		ProbeTimeout: 10 * time.Millisecond,
		Probe: func(ctx context.Context) error {
			_, sawDeadline = ctx.Deadline()
			return nil
		},
		Report: func(error) {},
	})
	if err != nil {
		t.Fatalf("NewScheduler: %v", err)
	}
	s.fire(context.Background())
	if !sawDeadline {
		t.Error("probe context carries no deadline")
	}
}
