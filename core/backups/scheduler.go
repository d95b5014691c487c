package backups

import (
	"context"
	"sync"

	"complaintdesk/config"

	"github.com/robfig/cron/v3"
)

// Scheduler takes snapshots on the configured cron schedule.
type Scheduler struct {
	cfg config.BackupsConfig
	svc *Service

	mu      sync.Mutex
	cron    *cron.Cron
	running bool
	ctx     context.Context
	cancel  context.CancelFunc
}

func NewScheduler(cfg config.BackupsConfig, svc *Service) *Scheduler {
	return &Scheduler{cfg: cfg, svc: svc}
}

func (s *Scheduler) StartWithContext(ctx context.Context) {
	if s == nil || s.svc == nil || !s.cfg.Enabled {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	c := cron.New()
	if _, err := c.AddFunc(s.cfg.Schedule, func() { _ = s.RunOnce(runCtx) }); err != nil {
		cancel()
		s.svc.logger.Errorf("backups: bad schedule %q: %v", s.cfg.Schedule, err)
		return
	}
	s.cron, s.ctx, s.cancel, s.running = c, runCtx, cancel, true
	c.Start()
}

func (s *Scheduler) StopWithContext(ctx context.Context) error {
	if s == nil || !s.cfg.Enabled {
		return nil
	}
	s.mu.Lock()
	c, cancel, wasRunning := s.cron, s.cancel, s.running
	s.cron, s.cancel, s.running = nil, nil, false
	s.mu.Unlock()
	if !wasRunning || c == nil {
		return nil
	}
	cancel()
	done := c.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) RunOnce(ctx context.Context) error {
	if s == nil || s.svc == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	a, err := s.svc.RunScheduled(ctx)
	if err != nil {
		s.svc.logger.Errorf("scheduled snapshot: %v", err)
		return err
	}
	s.svc.logger.Printf("scheduled snapshot %s (%d bytes)", a.Name, a.Size)
	return nil
}
