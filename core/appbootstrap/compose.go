package appbootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"complaintdesk/api"
	"complaintdesk/config"
	"complaintdesk/core/auth"
	"complaintdesk/core/backups"
	"complaintdesk/core/complaints"
	"complaintdesk/core/directory"
	"complaintdesk/core/metrics"
	"complaintdesk/core/notify"
	"complaintdesk/core/rbac"
	"complaintdesk/core/routing"
	"complaintdesk/core/store"
	"complaintdesk/core/utils"

	"github.com/redis/go-redis/v9"
)

// Runtime holds every wired component of a running instance.
type Runtime struct {
	Config     *config.AppConfig
	Logger     *utils.Logger
	DB         *sql.DB
	Directory  *directory.Directory
	Resolver   *routing.Resolver
	Repo       store.ComplaintsStore
	Outbox     store.OutboxStore
	Audits     store.AuditStore
	Complaints *complaints.Service
	Dispatcher *notify.Dispatcher
	Auth       *auth.Provider
	Policy     *rbac.Policy
	Metrics    *metrics.Metrics
	Backups    *backups.Service
	Scheduler  *backups.Scheduler

	closers []func() error
}

// Compose opens storage, applies migrations, seeds demo data when configured
// and wires the services together. Callers must Close the runtime.
func Compose(ctx context.Context, cfg *config.AppConfig, logger *utils.Logger) (*Runtime, error) {
	rt := &Runtime{Config: cfg, Logger: logger}

	people, err := LoadDirectory(cfg)
	if err != nil {
		return nil, err
	}
	rt.Directory = people

	db, err := store.NewDB(cfg, logger)
	if err != nil {
		return nil, err
	}
	rt.DB = db
	rt.closers = append(rt.closers, db.Close)
	if err := store.ApplyMigrations(ctx, db, logger); err != nil {
		_ = rt.Close()
		return nil, err
	}

	rt.Repo = store.NewComplaintsStore(db, cfg.Complaints.IDFormat)
	rt.Outbox = store.NewOutboxStore(db)
	rt.Audits = store.NewAuditStore(db)
	rt.Resolver = routing.NewResolver(people)
	rt.Metrics = metrics.New()
	rt.Policy, err = rbac.NewPolicy(rbac.DefaultRoles())
	if err != nil {
		_ = rt.Close()
		return nil, err
	}
	rt.Auth, err = auth.NewProvider(people, cfg, logger)
	if err != nil {
		_ = rt.Close()
		return nil, err
	}

	sink, err := rt.newSink(ctx)
	if err != nil {
		_ = rt.Close()
		return nil, err
	}
	rt.Dispatcher = notify.NewDispatcher(rt.Outbox, sink, notify.Options{
		Schedule:     cfg.Notifications.Schedule,
		BatchSize:    cfg.Notifications.BatchSize,
		MaxAttempts:  cfg.Notifications.MaxAttempts,
		RetryBackoff: cfg.Notifications.RetryBackoff,
	}, logger.With("component", "notify"))
	rt.Dispatcher.SetObserver(rt.Metrics)

	rt.Complaints = complaints.NewService(rt.Repo, people, rt.Resolver, logger.With("component", "complaints"))
	rt.Complaints.SetObserver(rt.Metrics)
	rt.Complaints.SetNotifier(rt.Dispatcher.Kick)

	rt.Backups = backups.NewService(cfg.Backups, rt.Repo, rt.Audits, logger.With("component", "backups"))
	rt.Scheduler = backups.NewScheduler(cfg.Backups, rt.Backups)

	if cfg.Complaints.SeedDemo {
		seeded, err := complaints.SeedIfEmpty(ctx, rt.Repo, logger)
		if err != nil {
			_ = rt.Close()
			return nil, err
		}
		if seeded {
			_ = rt.Audits.Log(ctx, "system", "complaints.seed", "demo")
		}
	}
	return rt, nil
}

// LoadDirectory reads the configured people file, or the embedded demo
// directory when no path is set.
func LoadDirectory(cfg *config.AppConfig) (*directory.Directory, error) {
	opts := directory.Options{BcryptCost: cfg.Directory.BcryptCost}
	if path := strings.TrimSpace(cfg.Directory.Path); path != "" {
		return directory.LoadFile(path, opts)
	}
	return directory.LoadDemo(opts)
}

func (rt *Runtime) newSink(ctx context.Context) (notify.Sink, error) {
	switch rt.Config.Notifications.Sink {
	case "redis":
		rc := rt.Config.Notifications.Redis
		client := redis.NewClient(&redis.Options{Addr: rc.Addr, Password: rc.Password, DB: rc.DB})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("redis %s: %w", rc.Addr, err)
		}
		rt.closers = append(rt.closers, client.Close)
		return notify.NewRedisSink(client, rc.Channel), nil
	case "none":
		return notify.DiscardSink{}, nil
	default:
		return notify.NewLogSink(rt.Logger.With("component", "notify.sink")), nil
	}
}

// Server builds the HTTP server with the notification dispatcher and the
// snapshot scheduler as background workers.
func (rt *Runtime) Server() *api.Server {
	return api.NewServer(rt.Config, api.ServerDeps{
		Directory:  rt.Directory,
		Resolver:   rt.Resolver,
		Complaints: rt.Complaints,
		Outbox:     rt.Outbox,
		Audits:     rt.Audits,
		Auth:       rt.Auth,
		Policy:     rt.Policy,
		Metrics:    rt.Metrics,
		Workers:    []api.BackgroundWorker{rt.Dispatcher, rt.Scheduler},
	}, rt.Logger)
}

// Close releases resources in reverse order of acquisition.
func (rt *Runtime) Close() error {
	var first error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	rt.closers = nil
	return first
}
