// Package cron runs the periodic delegate connectivity probe on a cron
// schedule and feeds the outcome back into the bridge status.
package cron

import (
	"context"
	"log/slog"
	"sync"
	"time"

	cronlib "github.com/robfig/cron/v3"
)

// cronParser parses standard 5-field cron expressions (minute, hour, dom, month, dow).
var cronParser = cronlib.NewParser(
	cronlib.Minute | cronlib.Hour | cronlib.Dom | cronlib.Month | cronlib.Dow,
)

// ProbeFunc performs one connectivity check against the delegate.
type ProbeFunc func(ctx context.Context) error

// ReportFunc receives each probe outcome (nil on success).
type ReportFunc func(err error)

// Config holds the dependencies for the probe scheduler.
type Config struct {
	Schedule     string // 5-field cron expression
	Probe        ProbeFunc
	Report       ReportFunc
	ProbeTimeout time.Duration // per-probe bound; defaults to 10s
	Logger       *slog.Logger
}

// Scheduler fires the delegate probe whenever the cron schedule is due.
type Scheduler struct {
	schedule     cronlib.Schedule
	probe        ProbeFunc
	report       ReportFunc
	probeTimeout time.Duration
	logger       *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewScheduler parses the schedule and creates a Scheduler.
func NewScheduler(cfg Config) (*Scheduler, error) {
	schedule, err := cronParser.Parse(cfg.Schedule)
	if err != nil {
		return nil, err
	}
	timeout := cfg.ProbeTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		schedule:     schedule,
		probe:        cfg.Probe,
		report:       cfg.Report,
		probeTimeout: timeout,
		logger:       logger,
	}, nil
}

// Start begins the probe loop in a background goroutine.
func (s *Scheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	go s.loop(ctx)
	s.logger.Info("probe scheduler started", "next", s.schedule.Next(time.Now()))
}

// Stop cancels the loop and waits for it to exit.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	s.logger.Info("probe scheduler stopped")
}

func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()

	for {
		next := s.schedule.Next(time.Now())
		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			s.fire(ctx)
		}
	}
}

func (s *Scheduler) fire(ctx context.Context) {
	probeCtx, cancel := context.WithTimeout(ctx, s.probeTimeout)
	defer cancel()

	err := s.probe(probeCtx)
	if err != nil {
		s.logger.Warn("delegate probe failed", "error", err)
	} else {
		s.logger.Debug("delegate probe succeeded")
	}
	if s.report != nil {
		s.report(err)
	}
}
