// Package scheduler fires decision cycles on a cron spec, evaluated in
// exchange time. Overlap protection lives in the engine: a tick that
// lands while a cycle is still running is dropped there, not queued.
package scheduler

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

type runner interface {
	RunCycle(ctx context.Context) error
}

// Scheduler wraps a cron loop around the engine.
type Scheduler struct {
	l        *zap.Logger
	spec     string
	schedule cron.Schedule
	cron     *cron.Cron
	engine   runner
}

// New parses spec (standard five-field cron, descriptors like
// "@every 30s" allowed) and prepares a loop that evaluates it in loc.
func New(l *zap.Logger, spec string, loc *time.Location, eng runner) (*Scheduler, error) {
	if l == nil {
		l = zap.NewNop()
	}
	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, errors.Wrapf(err, "parse cron spec %q", spec)
	}

	return &Scheduler{
		l:        l,
		spec:     spec,
		schedule: schedule,
		cron:     cron.New(cron.WithLocation(loc)),
		engine:   eng,
	}, nil
}

// Start begins firing cycles. Every tick runs with ctx, so cancelling
// it aborts the in-flight cycle; call Stop to halt the loop itself.
func (s *Scheduler) Start(ctx context.Context) {
	s.cron.Schedule(s.schedule, cron.FuncJob(func() { s.tick(ctx) }))
	s.cron.Start()
	s.l.Info("scheduler started", zap.String("cron", s.spec))
}

// Stop halts the cron loop and blocks until in-flight cycles return.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.l.Info("scheduler stopped")
}

func (s *Scheduler) tick(ctx context.Context) {
	if err := s.engine.RunCycle(ctx); err != nil {
		s.l.Error("cycle failed", zap.Error(err))
	}
}
