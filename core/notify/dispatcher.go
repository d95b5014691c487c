package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"complaintdesk/core/utils"

	"github.com/robfig/cron/v3"
)

type Outbox interface {
	PendingNotifications(ctx context.Context, now time.Time, maxAttempts, limit int) ([]Record, error)
	MarkDelivered(ctx context.Context, id string, at time.Time) error
	MarkFailed(ctx context.Context, id string, errMsg string, nextAttempt time.Time) error
}

// DeliveryObserver is told about every delivery attempt.
type DeliveryObserver interface {
	ObserveDelivery(kind Kind, ok bool)
}

type Options struct {
	Schedule     string
	BatchSize    int
	MaxAttempts  int
	RetryBackoff time.Duration
}

// Dispatcher drains the outbox into a Sink. It runs on a cron schedule and
// whenever Kick is called; a run delivers at most one batch.
type Dispatcher struct {
	outbox   Outbox
	sink     Sink
	opts     Options
	logger   *utils.Logger
	observer DeliveryObserver
	kick     chan struct{}

	mu      sync.Mutex
	cancel  context.CancelFunc
	running bool
	cron    *cron.Cron
	wg      sync.WaitGroup
}

func NewDispatcher(outbox Outbox, sink Sink, opts Options, logger *utils.Logger) *Dispatcher {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 50
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 1
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = 30 * time.Second
	}
	if opts.Schedule == "" {
		opts.Schedule = "@every 15s"
	}
	return &Dispatcher{outbox: outbox, sink: sink, opts: opts, logger: logger, kick: make(chan struct{}, 1)}
}

func (d *Dispatcher) SetObserver(o DeliveryObserver) { d.observer = o }

// Kick asks for a run without blocking. Kicks coalesce while one is pending.
func (d *Dispatcher) Kick() {
	if d == nil {
		return
	}
	select {
	case d.kick <- struct{}{}:
	default:
	}
}

func (d *Dispatcher) StartWithContext(ctx context.Context) {
	if d == nil || d.outbox == nil || d.sink == nil {
		return
	}
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return
	}
	c := cron.New()
	if _, err := c.AddFunc(d.opts.Schedule, d.Kick); err != nil {
		d.mu.Unlock()
		d.logger.Errorf("notifications: bad schedule %q: %v", d.opts.Schedule, err)
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.cron = c
	d.running = true
	d.wg.Add(1)
	d.mu.Unlock()

	c.Start()
	go func() {
		defer d.wg.Done()
		for {
			select {
			case <-d.kick:
				if _, err := d.RunOnce(runCtx, time.Now().UTC()); err != nil && runCtx.Err() == nil {
					d.logger.Errorf("notifications: %v", err)
				}
			case <-runCtx.Done():
				return
			}
		}
	}()
	d.Kick()
}

func (d *Dispatcher) StopWithContext(ctx context.Context) error {
	if d == nil {
		return nil
	}
	d.mu.Lock()
	cancel := d.cancel
	c := d.cron
	d.cancel = nil
	d.cron = nil
	wasRunning := d.running
	d.mu.Unlock()
	if !wasRunning || cancel == nil {
		return nil
	}
	if c != nil {
		c.Stop()
	}
	cancel()
	waitDone := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(waitDone)
	}()
	select {
	case <-waitDone:
		d.mu.Lock()
		d.running = false
		d.mu.Unlock()
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunOnce delivers one batch of due notifications and reports how many went out.
// Failures are rescheduled with linear backoff until MaxAttempts is used up.
func (d *Dispatcher) RunOnce(ctx context.Context, now time.Time) (int, error) {
	batch, err := d.outbox.PendingNotifications(ctx, now, d.opts.MaxAttempts, d.opts.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("load pending notifications: %w", err)
	}
	delivered := 0
	for _, rec := range batch {
		if ctx.Err() != nil {
			return delivered, ctx.Err()
		}
		sendErr := d.sink.Notify(ctx, rec)
		if d.observer != nil {
			d.observer.ObserveDelivery(rec.Kind, sendErr == nil)
		}
		if sendErr == nil {
			if err := d.outbox.MarkDelivered(ctx, rec.ID, now); err != nil {
				return delivered, fmt.Errorf("mark %s delivered: %w", rec.ID, err)
			}
			delivered++
			continue
		}
		attempt := rec.Attempts + 1
		next := now.Add(time.Duration(attempt) * d.opts.RetryBackoff)
		if attempt >= d.opts.MaxAttempts {
			d.logger.Warn("notification dropped", "id", rec.ID, "recipient", rec.Recipient, "attempts", attempt, "error", sendErr.Error())
		}
		if err := d.outbox.MarkFailed(ctx, rec.ID, sendErr.Error(), next); err != nil {
			return delivered, fmt.Errorf("mark %s failed: %w", rec.ID, err)
		}
	}
	return delivered, nil
}
